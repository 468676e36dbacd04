package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/poiesic/studyforge/ai"
)

// Server transports.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config holds all configuration values.
type Config struct {
	// DataDir is the root for the database, graph directories and uploads.
	DataDir string `toml:"data_dir"`

	// DatabasePath, RAGDir and UploadDir default to locations under DataDir.
	DatabasePath string `toml:"database_path"`
	RAGDir       string `toml:"rag_dir"`
	UploadDir    string `toml:"upload_dir"`

	// Task manager
	Workers         int           `toml:"workers"`
	TaskRetention   time.Duration `toml:"task_retention"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`

	// Token budgets
	TokenizerModel string `toml:"tokenizer_model"`
	ContextBudget  int    `toml:"context_budget"`
	SummaryBudget  int    `toml:"summary_budget"`
	MindmapBudget  int    `toml:"mindmap_budget"`

	// Logging
	LogLevel string `toml:"log_level"`
	LogFile  string `toml:"log_file"`

	AI     AIConfig     `toml:"ai"`
	Server ServerConfig `toml:"server"`
}

// AIConfig is the file form of ai.Config.
type AIConfig struct {
	Host                string  `toml:"host"`
	EmbeddingHost       string  `toml:"embedding_host"`
	ClassifierHost      string  `toml:"classifier_host"`
	CompletionHost      string  `toml:"completion_host"`
	APIKey              string  `toml:"api_key"`
	EmbeddingModel      string  `toml:"embedding_model"`
	ClassifierModel     string  `toml:"classifier_model"`
	CompletionModel     string  `toml:"completion_model"`
	VisionModel         string  `toml:"vision_model"`
	MinImportance       int     `toml:"min_importance"`
	RequestsPerSecond   float64 `toml:"requests_per_second"`
	MaxCompletionTokens int     `toml:"max_completion_tokens"`
}

// ServerConfig selects how the MCP server is exposed.
type ServerConfig struct {
	Transport string `toml:"transport"`
	Addr      string `toml:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	aiDefaults := ai.DefaultConfig()
	return &Config{
		DataDir:         defaultDataDir(),
		Workers:         4,
		ShutdownTimeout: 30 * time.Second,
		TokenizerModel:  "gpt-4o",
		ContextBudget:   120000,
		SummaryBudget:   120000,
		MindmapBudget:   100000,
		LogLevel:        "info",
		AI: AIConfig{
			Host:            aiDefaults.CompletionHost,
			APIKey:          aiDefaults.APIKey,
			EmbeddingModel:  aiDefaults.EmbeddingModel,
			ClassifierModel: aiDefaults.ClassifierModel,
			CompletionModel: aiDefaults.CompletionModel,
			MinImportance:   aiDefaults.MinImportance,
		},
		Server: ServerConfig{
			Transport: TransportStdio,
			Addr:      "127.0.0.1:8080",
		},
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "studyforge")
	}
	return ".studyforge"
}

// Load builds a Config from defaults, the TOML file at path (skipped when
// path is empty) and the process environment.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an injectable environment lookup.
func LoadWithEnv(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if path != "" {
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"STUDYFORGE_DATA_DIR":         &c.DataDir,
		"STUDYFORGE_DATABASE_PATH":    &c.DatabasePath,
		"STUDYFORGE_RAG_DIR":          &c.RAGDir,
		"STUDYFORGE_UPLOAD_DIR":       &c.UploadDir,
		"STUDYFORGE_LOG_LEVEL":        &c.LogLevel,
		"STUDYFORGE_LOG_FILE":         &c.LogFile,
		"STUDYFORGE_AI_HOST":          &c.AI.Host,
		"STUDYFORGE_API_KEY":          &c.AI.APIKey,
		"STUDYFORGE_EMBEDDING_MODEL":  &c.AI.EmbeddingModel,
		"STUDYFORGE_CLASSIFIER_MODEL": &c.AI.ClassifierModel,
		"STUDYFORGE_COMPLETION_MODEL": &c.AI.CompletionModel,
		"STUDYFORGE_VISION_MODEL":     &c.AI.VisionModel,
		"STUDYFORGE_TRANSPORT":        &c.Server.Transport,
		"STUDYFORGE_ADDR":             &c.Server.Addr,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	if c.AI.APIKey == "" || c.AI.APIKey == "none" {
		if v, ok := lookup("OPENAI_API_KEY"); ok && v != "" {
			c.AI.APIKey = v
		}
	}

	ints := map[string]*int{
		"STUDYFORGE_WORKERS":        &c.Workers,
		"STUDYFORGE_CONTEXT_BUDGET": &c.ContextBudget,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}

	if v, ok := lookup("STUDYFORGE_TASK_RETENTION"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("STUDYFORGE_TASK_RETENTION: %w", err)
		}
		c.TaskRetention = d
	}
	return nil
}

// Normalize fills derived paths from DataDir.
func (c *Config) Normalize() {
	if c.DatabasePath == "" {
		c.DatabasePath = filepath.Join(c.DataDir, "studyforge.db")
	}
	if c.RAGDir == "" {
		c.RAGDir = filepath.Join(c.DataDir, "rag")
	}
	if c.UploadDir == "" {
		c.UploadDir = filepath.Join(c.DataDir, "uploads")
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.Server.Transport = strings.ToLower(strings.TrimSpace(c.Server.Transport))
}

// Validate checks that the configuration is usable.
// It normalizes the configuration first.
func (c *Config) Validate() error {
	c.Normalize()

	if c.Workers < 1 {
		return errors.New("config: Workers must be at least 1")
	}
	if c.TaskRetention < 0 {
		return errors.New("config: TaskRetention cannot be negative")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("config: ShutdownTimeout must be positive")
	}
	if c.ContextBudget <= 0 || c.SummaryBudget <= 0 || c.MindmapBudget <= 0 {
		return errors.New("config: token budgets must be positive")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.Server.Transport {
	case TransportStdio:
	case TransportHTTP:
		if c.Server.Addr == "" {
			return errors.New("config: server Addr is required for the http transport")
		}
	default:
		return fmt.Errorf("config: unknown server transport %q", c.Server.Transport)
	}
	return c.AIConfig().Validate()
}

// AIConfig converts the ai section into a normalized ai.Config.
// Per-service hosts override Host.
func (c *Config) AIConfig() *ai.Config {
	opts := []ai.ConfigOption{
		ai.WithAPIKey(c.AI.APIKey),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithClassifierModel(c.AI.ClassifierModel),
		ai.WithCompletionModel(c.AI.CompletionModel),
		ai.WithVisionModel(c.AI.VisionModel),
		ai.WithMinImportance(c.AI.MinImportance),
		ai.WithRequestsPerSecond(c.AI.RequestsPerSecond),
		ai.WithMaxCompletionTokens(c.AI.MaxCompletionTokens),
	}
	if c.AI.Host != "" {
		opts = append(opts, ai.WithHost(c.AI.Host))
	}
	if c.AI.EmbeddingHost != "" {
		opts = append(opts, ai.WithEmbeddingHost(c.AI.EmbeddingHost))
	}
	if c.AI.ClassifierHost != "" {
		opts = append(opts, ai.WithClassifierHost(c.AI.ClassifierHost))
	}
	if c.AI.CompletionHost != "" {
		opts = append(opts, ai.WithCompletionHost(c.AI.CompletionHost))
	}
	cfg := ai.NewConfig(opts...)
	cfg.Normalize()
	return cfg
}

// ParseLogLevel maps a level name onto slog. Empty means info.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
