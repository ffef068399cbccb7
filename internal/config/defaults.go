package config

const (
	defaultDataDir                = "~/.local/share/labelflow"
	defaultLogDir                 = "~/.local/share/labelflow/logs"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultLockTimeoutSeconds     = 30
	defaultLockRetryMillis        = 50
	defaultRollbackTimeoutSeconds = 60
	defaultStageGraphCacheSize    = 512
	defaultStageGraphCacheTTL     = 30
	defaultAlertRequestTimeout    = 10
	defaultObjectStoreRegion      = "us-east-1"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Pipeline: Pipeline{
			LockTimeoutSeconds:     defaultLockTimeoutSeconds,
			LockRetryMillis:        defaultLockRetryMillis,
			RollbackTimeoutSeconds: defaultRollbackTimeoutSeconds,
			CrossProcessLocks:      true,
		},
		StageGraph: StageGraph{
			CacheSize:       defaultStageGraphCacheSize,
			CacheTTLSeconds: defaultStageGraphCacheTTL,
		},
		Alerts: Alerts{
			RequestTimeout: defaultAlertRequestTimeout,
			NotifyCritical: true,
		},
		ObjectStore: ObjectStore{
			Region: defaultObjectStoreRegion,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
