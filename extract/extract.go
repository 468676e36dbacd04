package extract

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/poiesic/studyforge/ai"
	"github.com/poiesic/studyforge/core"
)

// Result is the text extracted from one payload.
type Result struct {
	Title     string
	Text      string
	SourceURL string
	FilePath  string
	Metadata  map[string]any
}

// Extractor produces text for one content kind.
// Implementations must be safe for concurrent use and honour ctx.
type Extractor interface {
	Extract(ctx context.Context, payload core.Payload) (*Result, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, payload core.Payload) (*Result, error)

// Extract implements Extractor.
func (f ExtractorFunc) Extract(ctx context.Context, payload core.Payload) (*Result, error) {
	return f(ctx, payload)
}

// Registry maps content kinds to extractors.
type Registry struct {
	mu         sync.RWMutex
	extractors map[core.ContentType]Extractor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{extractors: make(map[core.ContentType]Extractor)}
}

// Register sets the extractor for kind, replacing any previous one.
func (r *Registry) Register(kind core.ContentType, e Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[kind] = e
}

// Supports reports whether kind has an extractor.
func (r *Registry) Supports(kind core.ContentType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.extractors[kind]
	return ok
}

// Extract runs the extractor registered for kind. The result always carries
// non-blank text.
func (r *Registry) Extract(ctx context.Context, kind core.ContentType, payload core.Payload) (*Result, error) {
	r.mu.RLock()
	e, ok := r.extractors[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, core.NewValidationError("kind", fmt.Errorf("%w: %q", ErrUnsupportedKind, kind))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := e.Extract(ctx, payload)
	if err != nil {
		return nil, err
	}
	if res == nil || strings.TrimSpace(res.Text) == "" {
		return nil, core.NewValidationError("content", ErrNoText)
	}
	if res.Title == "" {
		res.Title = payload.Title
	}
	res.Metadata = mergeMetadata(payload.Metadata, res.Metadata)
	return res, nil
}

// StandardOption configures Standard.
type StandardOption func(*standardConfig)

type standardConfig struct {
	converter Converter
	fetcher   TranscriptFetcher
	client    *http.Client
	logger    *slog.Logger
}

// WithConverter adds a converter for document formats that are not plain text.
func WithConverter(c Converter) StandardOption {
	return func(cfg *standardConfig) { cfg.converter = c }
}

// WithTranscriptFetcher enables YouTube ingestion.
func WithTranscriptFetcher(f TranscriptFetcher) StandardOption {
	return func(cfg *standardConfig) { cfg.fetcher = f }
}

// WithHTTPClient sets the client used to fetch web pages.
func WithHTTPClient(client *http.Client) StandardOption {
	return func(cfg *standardConfig) { cfg.client = client }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) StandardOption {
	return func(cfg *standardConfig) { cfg.logger = logger }
}

// Standard returns a registry with the built-in extractors. Image extraction
// is registered when describer is non-nil, YouTube when a fetcher is given.
func Standard(describer ai.ImageDescriber, opts ...StandardOption) *Registry {
	cfg := standardConfig{
		client: &http.Client{Timeout: 60 * time.Second},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger.With("component", "extract")

	r := NewRegistry()
	r.Register(core.ContentTypeText, Text{})
	r.Register(core.ContentTypeDocument, &Document{Converter: cfg.converter})
	r.Register(core.ContentTypeWebpage, &Webpage{Client: cfg.client, Logger: logger})
	if describer != nil {
		r.Register(core.ContentTypeImage, &Image{Describer: describer})
	}
	if cfg.fetcher != nil {
		r.Register(core.ContentTypeYouTube, &YouTube{Fetcher: cfg.fetcher})
	}
	return r
}

func mergeMetadata(base, extra map[string]any) map[string]any {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// firstLine returns the first non-blank line of text, cut to max runes.
func firstLine(text string, max int) string {
	for line := range strings.SplitSeq(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if utf8.RuneCountInString(line) > max {
			line = string([]rune(line)[:max]) + "..."
		}
		return line
	}
	return ""
}
