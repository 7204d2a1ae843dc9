package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"bgjob/internal/config"
	"bgjob/internal/jobs"
	"bgjob/internal/jobtypes"
	"bgjob/internal/logging"
	"bgjob/internal/queue"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// logger builds the invocation logger. Only the worker echoes to stderr;
// other commands log to the data directory so their stdout stays clean.
func (c *commandContext) logger(console bool) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if console {
		return logging.NewFromConfig(cfg)
	}
	return logging.New(logging.Options{
		Level:            cfg.Logging.Level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{cfg.LogPath()},
		ErrorOutputPaths: []string{cfg.LogPath()},
	})
}

func (c *commandContext) withStore(fn func(*queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open job store: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func (c *commandContext) withManager(console bool, fn func(*jobs.Manager, *queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.logger(console)
	if err != nil {
		return err
	}
	return c.withStore(func(store *queue.Store) error {
		return fn(newManager(cfg, store, logger), store)
	})
}

func newManager(cfg *config.Config, store jobs.RecordStore, logger *slog.Logger) *jobs.Manager {
	registry := jobs.NewRegistry()
	jobtypes.Register(registry)
	return jobs.NewManager(store, registry, logger,
		jobs.WithDefaultMaxRetries(cfg.Jobs.DefaultMaxRetries),
		jobs.WithDefaultTimeEstimate(cfg.Jobs.DefaultTimeEstimate),
		jobs.WithMaxTraversalDepth(cfg.Jobs.MaxTraversalDepth),
		jobs.WithClaimAttempts(cfg.Jobs.ClaimAttempts),
	)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func parseJobID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid job id %q", raw)
	}
	return id, nil
}

func parseStatuses(values []string) ([]jobs.Status, error) {
	if len(values) == 0 {
		return nil, nil
	}
	statuses := make([]jobs.Status, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			status, ok := jobs.ParseStatus(part)
			if !ok {
				return nil, fmt.Errorf("unknown status %q", part)
			}
			statuses = append(statuses, status)
		}
	}
	return statuses, nil
}

func describeLoadError(id int64, err error) error {
	if errors.Is(err, jobs.ErrJobNotFound) {
		return fmt.Errorf("job #%d not found", id)
	}
	return err
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
