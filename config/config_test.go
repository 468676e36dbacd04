package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "studyforge.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 4, cfg.Workers)
	assert.Zero(t, cfg.TaskRetention, "tasks are kept forever by default")
	assert.Equal(t, filepath.Join(cfg.DataDir, "studyforge.db"), cfg.DatabasePath)
	assert.Equal(t, filepath.Join(cfg.DataDir, "rag"), cfg.RAGDir)
	assert.Equal(t, filepath.Join(cfg.DataDir, "uploads"), cfg.UploadDir)
	assert.Equal(t, TransportStdio, cfg.Server.Transport)
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	path := writeConfig(t, `
data_dir = "/srv/studyforge"
workers = 8
task_retention = "48h"
log_level = "DEBUG"

[ai]
host = "https://api.example.com"
completion_model = "gpt-4o-mini"

[server]
transport = "http"
addr = ":9000"
`)

	cfg, err := LoadWithEnv(path, env(map[string]string{
		"STUDYFORGE_WORKERS":          "2",
		"STUDYFORGE_COMPLETION_MODEL": "override-model",
		"OPENAI_API_KEY":              "sk-test",
	}))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/srv/studyforge", cfg.DataDir)
	assert.Equal(t, 2, cfg.Workers, "environment wins over the file")
	assert.Equal(t, 48*time.Hour, cfg.TaskRetention)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "override-model", cfg.AI.CompletionModel)
	assert.Equal(t, "sk-test", cfg.AI.APIKey)
	assert.Equal(t, TransportHTTP, cfg.Server.Transport)
	assert.Equal(t, ":9000", cfg.Server.Addr)

	aiCfg := cfg.AIConfig()
	assert.Equal(t, "https://api.example.com/v1", aiCfg.CompletionHost)
	assert.Equal(t, "https://api.example.com/v1", aiCfg.EmbeddingHost)
	assert.Equal(t, "override-model", aiCfg.VisionModel, "vision falls back to the completion model")
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := LoadWithEnv("", env(map[string]string{"STUDYFORGE_DATA_DIR": "/tmp/sf"}))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/sf", cfg.DataDir)
}

func TestLoad_Errors(t *testing.T) {
	_, err := LoadWithEnv(filepath.Join(t.TempDir(), "missing.toml"), env(nil))
	assert.Error(t, err)

	_, err = LoadWithEnv(writeConfig(t, "wrokers = 3\n"), env(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrokers")

	_, err = LoadWithEnv("", env(map[string]string{"STUDYFORGE_WORKERS": "many"}))
	assert.ErrorContains(t, err, "STUDYFORGE_WORKERS")

	_, err = LoadWithEnv("", env(map[string]string{"STUDYFORGE_TASK_RETENTION": "forever"}))
	assert.ErrorContains(t, err, "STUDYFORGE_TASK_RETENTION")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no workers", func(c *Config) { c.Workers = 0 }, "Workers"},
		{"negative retention", func(c *Config) { c.TaskRetention = -time.Hour }, "TaskRetention"},
		{"no shutdown timeout", func(c *Config) { c.ShutdownTimeout = 0 }, "ShutdownTimeout"},
		{"zero budget", func(c *Config) { c.SummaryBudget = 0 }, "budgets"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log level"},
		{"bad transport", func(c *Config) { c.Server.Transport = "carrier-pigeon" }, "transport"},
		{"http without addr", func(c *Config) { c.Server.Transport = TransportHTTP; c.Server.Addr = "" }, "Addr"},
		{"bad ai config", func(c *Config) { c.AI.CompletionModel = "" }, "CompletionModel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	cfg := Default()
	cfg.TaskRetention = 0
	assert.NoError(t, cfg.Validate(), "zero retention disables pruning")
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	} {
		got, err := ParseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLogLevel("verbose")
	assert.Error(t, err)
}

func TestSetupLoggerWithWriters_FansOut(t *testing.T) {
	var text, jsonOut bytes.Buffer
	logger := SetupLoggerWithWriters(&text, &jsonOut, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("task done", "task_id", "t1")

	assert.Contains(t, text.String(), "msg=\"task done\" task_id=t1")
	assert.NotContains(t, text.String(), "hidden")

	var record map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(jsonOut.Bytes()), &record))
	assert.Equal(t, "task done", record["msg"])
	assert.Equal(t, "t1", record["task_id"])
}

func TestSetupLogger_WritesJSONFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "studyforge.log")
	logger, cleanup := SetupLogger(logFile, slog.LevelInfo)
	logger.Info("hello", "component", "test")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "{"))
	assert.Contains(t, string(data), `"msg":"hello"`)
}
