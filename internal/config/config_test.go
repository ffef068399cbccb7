package config_test

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"labelflow/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	t.Setenv("LABELFLOW_NTFY_TOPIC", "https://ntfy.example/alerts")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "labelflow")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "labelflow.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.LockDir() != filepath.Join(wantData, "locks") {
		t.Fatalf("unexpected lock dir: %q", cfg.LockDir())
	}
	if cfg.Alerts.NtfyTopic != "https://ntfy.example/alerts" {
		t.Fatalf("expected ntfy topic from env, got %q", cfg.Alerts.NtfyTopic)
	}
	if cfg.LockTimeout() != 30*time.Second {
		t.Fatalf("unexpected lock timeout: %s", cfg.LockTimeout())
	}
	if !cfg.Pipeline.CrossProcessLocks {
		t.Fatal("expected cross-process locks enabled by default")
	}
	if cfg.ObjectStore.Enabled {
		t.Fatal("expected object store disabled by default")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.LockDir()} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "labelflow.toml")

	type payload struct {
		Paths struct {
			DataDir string `toml:"data_dir"`
		} `toml:"paths"`
		Pipeline struct {
			LockTimeoutSeconds     int  `toml:"lock_timeout_seconds"`
			RollbackTimeoutSeconds int  `toml:"rollback_timeout_seconds"`
			CrossProcessLocks      bool `toml:"cross_process_locks"`
		} `toml:"pipeline"`
		Logging struct {
			Format string `toml:"format"`
		} `toml:"logging"`
	}
	custom := payload{}
	custom.Paths.DataDir = filepath.Join(tempDir, "data")
	custom.Pipeline.LockTimeoutSeconds = 5
	custom.Pipeline.RollbackTimeoutSeconds = 12
	custom.Pipeline.CrossProcessLocks = false
	custom.Logging.Format = " JSON "
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Paths.DataDir != filepath.Join(tempDir, "data") {
		t.Fatalf("expected data dir from file, got %q", cfg.Paths.DataDir)
	}
	if cfg.LockTimeout() != 5*time.Second {
		t.Fatalf("expected lock timeout 5s, got %s", cfg.LockTimeout())
	}
	if cfg.RollbackTimeout() != 12*time.Second {
		t.Fatalf("expected rollback timeout 12s, got %s", cfg.RollbackTimeout())
	}
	if cfg.Pipeline.CrossProcessLocks {
		t.Fatal("expected cross-process locks disabled by file")
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected normalized json format, got %q", cfg.Logging.Format)
	}
	if cfg.Pipeline.LockRetryMillis != config.Default().Pipeline.LockRetryMillis {
		t.Fatalf("expected default retry interval to survive partial file, got %d", cfg.Pipeline.LockRetryMillis)
	}
}

func TestEnvVarFillsObjectStoreCredentials(t *testing.T) {
	t.Setenv("LABELFLOW_S3_ACCESS_KEY", "env-access")
	t.Setenv("LABELFLOW_S3_SECRET_KEY", "env-secret")
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "labelflow.toml")
	content := "[paths]\ndata_dir = \"" + filepath.ToSlash(filepath.Join(tempDir, "data")) + "\"\n\n[object_store]\nenabled = true\nendpoint = \"minio.local:9000\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.ObjectStore.AccessKey != "env-access" || cfg.ObjectStore.SecretKey != "env-secret" {
		t.Fatalf("expected credentials from env, got %q/%q", cfg.ObjectStore.AccessKey, cfg.ObjectStore.SecretKey)
	}
	if cfg.ObjectStore.Region != "us-east-1" {
		t.Fatalf("expected default region, got %q", cfg.ObjectStore.Region)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "[pipeline]") {
		t.Fatalf("sample config missing pipeline section: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}

	if runtime.GOOS != "windows" {
		if !strings.Contains(cfg.Paths.DataDir, "labelflow") {
			t.Fatalf("expected data dir to contain labelflow, got %q", cfg.Paths.DataDir)
		}
	}
	if cfg.Pipeline.LockTimeoutSeconds != config.Default().Pipeline.LockTimeoutSeconds {
		t.Fatalf("sample lock timeout drifted from defaults: %d", cfg.Pipeline.LockTimeoutSeconds)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	cfg.Pipeline.LockTimeoutSeconds = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive lock timeout")
	}

	cfg = config.Default()
	cfg.Pipeline.RollbackTimeoutSeconds = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative rollback timeout")
	}

	cfg = config.Default()
	cfg.StageGraph.CacheSize = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative cache size")
	}

	cfg = config.Default()
	cfg.ObjectStore.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when object store enabled without endpoint")
	}

	cfg = config.Default()
	cfg.ObjectStore.Enabled = true
	cfg.ObjectStore.Endpoint = "localhost:9000"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when object store enabled without credentials")
	}

	cfg = config.Default()
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported log format")
	}

	cfg = config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}
