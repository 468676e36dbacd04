package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/studyforge"
	"github.com/poiesic/studyforge/budget"
	"github.com/poiesic/studyforge/config"
)

const (
	configKey  = "config"
	cleanupKey = "logCleanup"
)

// loadConfig resolves the configuration (defaults, file, environment, then
// global flags) and installs the process logger.
func loadConfig(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("data-dir") {
		cfg.DataDir = c.String("data-dir")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger, cleanup := config.SetupLogger(cfg.LogFile, level)
	slog.SetDefault(logger)

	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata[configKey] = cfg
	c.App.Metadata[cleanupKey] = cleanup
	return nil
}

func closeLogger(c *cli.Context) error {
	if cleanup, ok := c.App.Metadata[cleanupKey].(func() error); ok {
		return cleanup()
	}
	return nil
}

func configFrom(c *cli.Context) (*config.Config, error) {
	cfg, ok := c.App.Metadata[configKey].(*config.Config)
	if !ok {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}

func openService(c *cli.Context) (*studyforge.Service, error) {
	cfg, err := configFrom(c)
	if err != nil {
		return nil, err
	}
	logger := slog.Default()
	svc, err := studyforge.Open(c.Context, cfg.DatabasePath,
		studyforge.WithAIConfig(cfg.AIConfig()),
		studyforge.WithRAGDir(cfg.RAGDir),
		studyforge.WithUploadDir(cfg.UploadDir),
		studyforge.WithWorkers(cfg.Workers),
		studyforge.WithTaskRetention(cfg.TaskRetention),
		studyforge.WithShutdownTimeout(cfg.ShutdownTimeout),
		studyforge.WithBudgets(cfg.ContextBudget, cfg.SummaryBudget, cfg.MindmapBudget),
		studyforge.WithTokenizer(budget.NewTokenizer(cfg.TokenizerModel, logger)),
		studyforge.WithReindexProgress(os.Stderr),
		studyforge.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", cfg.DatabasePath, err)
	}
	return svc, nil
}

// withService opens the service for the duration of fn.
func withService(c *cli.Context, fn func(*studyforge.Service) error) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	err = fn(svc)
	if cerr := svc.Close(); cerr != nil {
		slog.Warn("error closing service", "err", cerr)
	}
	return err
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
