package reindex

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/studyforge/core"
	"github.com/poiesic/studyforge/graph"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
)

// Store is the part of the content store a rebuild reads.
type Store interface {
	GetTopic(ctx context.Context, id string) (*core.Topic, error)
	ContentItemsInOrder(ctx context.Context, topicID string) ([]*core.ContentItem, error)
}

// Report summarizes a finished rebuild.
type Report struct {
	TopicID  string        `json:"topic_id"`
	Items    int           `json:"items"`
	Inserted int           `json:"inserted"`
	Failed   []FailedItem  `json:"failed,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
}

// FailedItem is an item that could not be inserted.
type FailedItem struct {
	ContentID string `json:"content_id"`
	Title     string `json:"title"`
	Error     string `json:"error"`
}

// Rebuilder rebuilds topic graphs from stored content.
type Rebuilder struct {
	store          Store
	cache          *graph.Cache
	maxAttempts    int
	baseDelay      time.Duration
	progress       io.Writer
	reportInterval int
	logger         *slog.Logger
}

// Option configures a Rebuilder.
type Option func(*Rebuilder)

// WithRetry sets how often and how patiently retryable inserts are retried.
// Default is 3 attempts starting at 500ms.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(r *Rebuilder) {
		if maxAttempts > 0 {
			r.maxAttempts = maxAttempts
		}
		if baseDelay > 0 {
			r.baseDelay = baseDelay
		}
	}
}

// WithProgress writes a progress line to w every interval items.
func WithProgress(w io.Writer, interval int) Option {
	return func(r *Rebuilder) {
		r.progress = w
		r.reportInterval = interval
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Rebuilder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRebuilder creates a Rebuilder.
func NewRebuilder(store Store, cache *graph.Cache, opts ...Option) (*Rebuilder, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if cache == nil {
		return nil, ErrCacheRequired
	}
	r := &Rebuilder{
		store:          store,
		cache:          cache,
		maxAttempts:    defaultMaxAttempts,
		baseDelay:      defaultBaseDelay,
		reportInterval: 10,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "reindex")
	return r, nil
}

// Rebuild discards topicID's graph and re-inserts its content items oldest
// first. Ingestion into the topic waits until the rebuild is over. Items
// that keep failing are listed in the report; only context cancellation
// and setup failures abort the rebuild.
func (r *Rebuilder) Rebuild(ctx context.Context, topicID string) (*Report, error) {
	unlock := r.cache.LockTopic(topicID)
	defer unlock()

	topic, err := r.store.GetTopic(ctx, topicID)
	if err != nil {
		return nil, err
	}
	if !topic.UseKnowledgeGraph {
		return nil, core.NewValidationError("topic", ErrGraphDisabled)
	}
	items, err := r.store.ContentItemsInOrder(ctx, topicID)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Reset(topicID); err != nil {
		return nil, core.NewStorageError("resetting graph", err)
	}
	handle, err := r.cache.GetOrCreate(ctx, topicID)
	if err != nil {
		return nil, err
	}

	report := &Report{TopicID: topicID, Items: len(items)}
	tracker := NewProgressTracker(r.progress, len(items), r.reportInterval)
	tracker.Start()
	r.logger.Info("rebuilding graph", "topic_id", topicID, "items", len(items))

	for _, item := range items {
		doc := graph.Document{ID: item.ID, Title: item.Title, Text: item.Text}
		err := RetryWithBackoff(ctx, r.logger, func() error {
			return handle.Insert(ctx, doc)
		}, r.maxAttempts, r.baseDelay)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			r.logger.Warn("item not reindexed", "topic_id", topicID, "content_id", item.ID, "err", err)
			report.Failed = append(report.Failed, FailedItem{ContentID: item.ID, Title: item.Title, Error: err.Error()})
		} else {
			report.Inserted++
		}
		tracker.Increment(1)
	}

	tracker.Finish()
	report.Elapsed = tracker.Elapsed()
	r.logger.Info("graph rebuilt", "topic_id", topicID,
		"inserted", report.Inserted, "failed", len(report.Failed), "elapsed", report.Elapsed)
	return report, nil
}
