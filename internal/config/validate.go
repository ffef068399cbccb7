package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateStageGraph(); err != nil {
		return err
	}
	if err := c.validateObjectStore(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.LockTimeoutSeconds <= 0 {
		return errors.New("pipeline.lock_timeout_seconds must be positive")
	}
	if c.Pipeline.LockRetryMillis <= 0 {
		return errors.New("pipeline.lock_retry_millis must be positive")
	}
	if c.Pipeline.RollbackTimeoutSeconds <= 0 {
		return errors.New("pipeline.rollback_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateStageGraph() error {
	if c.StageGraph.CacheSize < 0 {
		return errors.New("stage_graph.cache_size must be >= 0")
	}
	if c.StageGraph.CacheTTLSeconds < 0 {
		return errors.New("stage_graph.cache_ttl_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateObjectStore() error {
	if !c.ObjectStore.Enabled {
		return nil
	}
	if c.ObjectStore.Endpoint == "" {
		return errors.New("object_store.endpoint must be set when object_store.enabled is true")
	}
	if c.ObjectStore.AccessKey == "" || c.ObjectStore.SecretKey == "" {
		return errors.New("object_store.access_key and object_store.secret_key must be set when object_store.enabled is true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
