package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateJobs(); err != nil {
		return err
	}
	if err := c.validateWorker(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	return nil
}

func (c *Config) validateStore() error {
	if c.Store.BusyTimeoutMS < 0 {
		return errors.New("store.busy_timeout_ms must be zero or positive")
	}
	return nil
}

func (c *Config) validateJobs() error {
	if c.Jobs.DefaultMaxRetries < 0 {
		return errors.New("jobs.default_max_retries must be zero or positive")
	}
	if c.Jobs.DefaultTimeEstimate < 0 {
		return errors.New("jobs.default_time_estimate must be zero or positive")
	}
	if c.Jobs.MaxTraversalDepth <= 0 {
		return errors.New("jobs.max_traversal_depth must be positive")
	}
	if c.Jobs.ClaimAttempts <= 0 {
		return errors.New("jobs.claim_attempts must be positive")
	}
	return nil
}

func (c *Config) validateWorker() error {
	if c.Worker.Concurrency <= 0 {
		return errors.New("worker.concurrency must be positive")
	}
	if c.Worker.PollInterval <= 0 {
		return errors.New("worker.poll_interval must be positive")
	}
	if c.Worker.ErrorRetryInterval <= 0 {
		return errors.New("worker.error_retry_interval must be positive")
	}
	if c.Worker.RateLimit < 0 {
		return errors.New("worker.rate_limit must not be negative")
	}
	if c.Worker.RateBurst < 0 {
		return errors.New("worker.rate_burst must not be negative")
	}
	if strings.ContainsAny(c.Worker.ID, "/\\") {
		return fmt.Errorf("worker.id %q must not contain path separators", c.Worker.ID)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
