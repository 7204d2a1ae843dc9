package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWorker()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("BGJOB_DATA_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.DataDir = value
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	var err error
	if c.Paths.DataDir, err = expandPath(strings.TrimSpace(c.Paths.DataDir)); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeWorker() {
	if c.Worker.ID == "" {
		if value, ok := os.LookupEnv("BGJOB_WORKER_ID"); ok {
			c.Worker.ID = value
		}
	}
	c.Worker.ID = strings.TrimSpace(c.Worker.ID)
	if c.Worker.Queue == "" {
		if value, ok := os.LookupEnv("BGJOB_QUEUE"); ok {
			c.Worker.Queue = value
		}
	}
	c.Worker.Queue = strings.TrimSpace(c.Worker.Queue)
	if c.Worker.Concurrency == 0 {
		c.Worker.Concurrency = defaultWorkerConcurrency
	}
	if c.Worker.PollInterval == 0 {
		c.Worker.PollInterval = defaultPollInterval
	}
	if c.Worker.ErrorRetryInterval == 0 {
		c.Worker.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Worker.RateBurst == 0 {
		c.Worker.RateBurst = defaultRateBurst
	}
	c.Worker.MetricsAddr = strings.TrimSpace(c.Worker.MetricsAddr)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.Level == "warning" {
		c.Logging.Level = "warn"
	}
}
