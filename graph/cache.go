package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/poiesic/studyforge/core"
)

// Cache shares one engine per topic. The first caller for a topic builds
// the engine; concurrent callers wait for it and receive the same Handle.
// Failed constructions are not cached.
type Cache struct {
	factory Factory
	ragDir  string
	logger  *slog.Logger

	mu      sync.Mutex
	entries map[string]*cacheEntry
	closed  bool

	locksMu sync.Mutex
	locks   map[string]*topicLock
}

// topicLock orders whole-graph operations on a topic against ingestion.
// It outlives the topic's engine, so a rebuild holds it across Reset.
type topicLock struct {
	sync.RWMutex
	refs int
}

type cacheEntry struct {
	// building is a one-slot semaphore guarding construction so waiters
	// can give up when their context ends.
	building chan struct{}
	handle   *Handle
	removed  bool
}

// Handle gives access to a topic's engine. Insert and Delete hold the
// topic's write lock; Query holds it for reading.
type Handle struct {
	topicID string
	engine  Engine

	mu     sync.RWMutex
	closed bool
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithCacheLogger sets a custom logger.
// Default is slog.Default().
func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCache creates a cache building engines with factory under ragDir.
func NewCache(ragDir string, factory Factory, opts ...CacheOption) (*Cache, error) {
	if factory == nil {
		return nil, ErrFactoryRequired
	}
	c := &Cache{
		factory: factory,
		ragDir:  ragDir,
		logger:  slog.Default(),
		entries: make(map[string]*cacheEntry),
		locks:   make(map[string]*topicLock),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "engine-cache")
	return c, nil
}

// GetOrCreate returns the handle for topicID, building the engine on first
// use. Construction failures are returned as an ExternalServiceError with
// reason unavailable.
func (c *Cache) GetOrCreate(ctx context.Context, topicID string) (*Handle, error) {
	for {
		entry, err := c.entry(topicID)
		if err != nil {
			return nil, err
		}

		select {
		case entry.building <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		if entry.removed {
			<-entry.building
			continue
		}
		if entry.handle != nil {
			handle := entry.handle
			<-entry.building
			return handle, nil
		}

		handle, err := c.build(ctx, topicID)
		if err == nil {
			entry.handle = handle
		}
		<-entry.building
		return handle, err
	}
}

func (c *Cache) entry(topicID string) (*cacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrCacheClosed
	}
	entry, ok := c.entries[topicID]
	if !ok {
		entry = &cacheEntry{building: make(chan struct{}, 1)}
		c.entries[topicID] = entry
	}
	return entry, nil
}

func (c *Cache) build(ctx context.Context, topicID string) (*Handle, error) {
	dir := TopicDir(c.ragDir, topicID)
	c.logger.Debug("building engine", "topic_id", topicID, "dir", dir)

	engine, err := c.factory(ctx, topicID, dir)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Error("error building engine", "topic_id", topicID, "err", err)
		return nil, core.NewExternalServiceError("graph engine", core.ReasonUnavailable, true, err)
	}
	c.logger.Info("engine ready", "topic_id", topicID)
	return &Handle{topicID: topicID, engine: engine}, nil
}

// Invalidate drops topicID's engine and closes it once in-flight operations
// on its handle finish. Invalidating an unknown topic is a no-op.
func (c *Cache) Invalidate(topicID string) error {
	c.mu.Lock()
	entry, ok := c.entries[topicID]
	delete(c.entries, topicID)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	return c.retire(entry)
}

// Reset invalidates topicID and removes its graph directory so the next
// GetOrCreate starts from an empty graph. Callers hold LockTopic so no
// writer is using the engine being discarded.
func (c *Cache) Reset(topicID string) error {
	if err := c.Invalidate(topicID); err != nil {
		return err
	}
	dir := TopicDir(c.ragDir, topicID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing graph directory %s: %w", dir, err)
	}
	c.logger.Info("graph reset", "topic_id", topicID)
	return nil
}

// retire waits out any construction in progress, marks the entry removed
// and closes its engine.
func (c *Cache) retire(entry *cacheEntry) error {
	entry.building <- struct{}{}
	entry.removed = true
	handle := entry.handle
	entry.handle = nil
	<-entry.building

	if handle == nil {
		return nil
	}
	return handle.close()
}

// LockTopic takes topicID exclusively and returns the function releasing
// it. Rebuilds and topic deletion hold it so no ingestion can write into an
// engine that is about to be discarded.
func (c *Cache) LockTopic(topicID string) (unlock func()) {
	l := c.acquire(topicID)
	l.Lock()
	return func() {
		l.Unlock()
		c.release(topicID, l)
	}
}

// RLockTopic takes topicID shared with other ingestions and returns the
// function releasing it. Hold it from reading the topic until the item is
// committed.
func (c *Cache) RLockTopic(topicID string) (unlock func()) {
	l := c.acquire(topicID)
	l.RLock()
	return func() {
		l.RUnlock()
		c.release(topicID, l)
	}
}

func (c *Cache) acquire(topicID string) *topicLock {
	c.locksMu.Lock()
	defer c.locksMu.Unlock()
	l, ok := c.locks[topicID]
	if !ok {
		l = &topicLock{}
		c.locks[topicID] = l
	}
	l.refs++
	return l
}

func (c *Cache) release(topicID string, l *topicLock) {
	c.locksMu.Lock()
	defer c.locksMu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(c.locks, topicID)
	}
}

// Len returns the number of topics with a cached entry.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close closes every cached engine. The cache rejects further use.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	entries := c.entries
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()

	var errs []error
	for _, entry := range entries {
		if err := c.retire(entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// TopicID returns the topic the handle serves.
func (h *Handle) TopicID() string {
	return h.topicID
}

// Insert indexes doc under the topic's write lock.
func (h *Handle) Insert(ctx context.Context, doc Document) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrEngineClosed
	}
	return h.engine.Insert(ctx, doc)
}

// Delete removes a document under the topic's write lock.
func (h *Handle) Delete(ctx context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrEngineClosed
	}
	return h.engine.Delete(ctx, id)
}

// Query answers question under the topic's read lock.
func (h *Handle) Query(ctx context.Context, question string, mode core.QueryMode) (string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return "", ErrEngineClosed
	}
	return h.engine.Query(ctx, question, mode)
}

func (h *Handle) close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.engine.Close()
}
