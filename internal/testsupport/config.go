package testsupport

import (
	"path/filepath"
	"testing"

	"labelflow/internal/config"
)

// ConfigOption adjusts the config built by NewConfig.
type ConfigOption func(*config.Config)

// NewConfig returns a default config rooted in a fresh temp directory with
// short lock and rollback timeouts and no ntfy topic.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(root, "data")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.Pipeline.LockTimeoutSeconds = 2
	cfg.Pipeline.RollbackTimeoutSeconds = 5
	cfg.Alerts.NtfyTopic = ""

	for _, apply := range opts {
		apply(&cfg)
	}
	return &cfg
}

// WithNtfyTopic enables critical notifications to topic.
func WithNtfyTopic(topic string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Alerts.NtfyTopic = topic
		cfg.Alerts.NotifyCritical = topic != ""
	}
}

// WithoutCrossProcessLocks keeps per-task locking in memory only.
func WithoutCrossProcessLocks() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Pipeline.CrossProcessLocks = false
	}
}

// BaseDir returns the temp directory NewConfig created for cfg.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
