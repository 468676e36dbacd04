package graph

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/studyforge/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// stubEngine records calls and can be slowed down.
type stubEngine struct {
	mu      sync.Mutex
	docs    map[string]Document
	closed  atomic.Bool
	delay   time.Duration
	answer  string
	queries atomic.Int64
}

func newStubEngine() *stubEngine {
	return &stubEngine{docs: make(map[string]Document), answer: "stub answer"}
}

func (s *stubEngine) Insert(ctx context.Context, doc Document) error {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
	return nil
}

func (s *stubEngine) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	return nil
}

func (s *stubEngine) Query(context.Context, string, core.QueryMode) (string, error) {
	s.queries.Add(1)
	return s.answer, nil
}

func (s *stubEngine) Close() error {
	s.closed.Store(true)
	return nil
}

// countingFactory builds stub engines and counts constructions per topic.
type countingFactory struct {
	mu      sync.Mutex
	built   map[string]int
	engines map[string]*stubEngine
	delay   time.Duration
	fail    atomic.Int64
}

func newCountingFactory() *countingFactory {
	return &countingFactory{built: make(map[string]int), engines: make(map[string]*stubEngine)}
}

func (f *countingFactory) build(ctx context.Context, topicID, _ string) (Engine, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.fail.Load() > 0 {
		f.fail.Add(-1)
		return nil, errors.New("disk full")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.built[topicID]++
	engine := newStubEngine()
	f.engines[topicID] = engine
	return engine, nil
}

func (f *countingFactory) count(topicID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.built[topicID]
}

func TestNewCache_RequiresFactory(t *testing.T) {
	_, err := NewCache(t.TempDir(), nil)
	assert.ErrorIs(t, err, ErrFactoryRequired)
}

func TestCache_SingleConstructionUnderConcurrency(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	factory := newCountingFactory()
	factory.delay = 20 * time.Millisecond
	cache, err := NewCache(t.TempDir(), factory.build)
	require.NoError(t, err)
	defer cache.Close()

	const callers = 20
	handles := make([]*Handle, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := cache.GetOrCreate(context.Background(), "t1")
			assert.NoError(t, err)
			handles[i] = h
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, factory.count("t1"))
	for _, h := range handles {
		assert.Same(t, handles[0], h)
	}
}

func TestCache_FailedConstructionNotCached(t *testing.T) {
	factory := newCountingFactory()
	factory.fail.Store(1)
	cache, err := NewCache(t.TempDir(), factory.build)
	require.NoError(t, err)
	defer cache.Close()

	_, err = cache.GetOrCreate(context.Background(), "t1")
	require.Error(t, err)
	var ext *core.ExternalServiceError
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, core.ReasonUnavailable, ext.Reason)

	h, err := cache.GetOrCreate(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", h.TopicID())
	assert.Equal(t, 1, factory.count("t1"))
}

func TestCache_InvalidateClosesAndRebuilds(t *testing.T) {
	factory := newCountingFactory()
	cache, err := NewCache(t.TempDir(), factory.build)
	require.NoError(t, err)
	defer cache.Close()
	ctx := context.Background()

	h1, err := cache.GetOrCreate(ctx, "t1")
	require.NoError(t, err)
	first := factory.engines["t1"]

	require.NoError(t, cache.Invalidate("t1"))
	assert.True(t, first.closed.Load())
	assert.ErrorIs(t, h1.Insert(ctx, Document{ID: "d"}), ErrEngineClosed)
	_, err = h1.Query(ctx, "q", core.QueryModeNaive)
	assert.ErrorIs(t, err, ErrEngineClosed)

	h2, err := cache.GetOrCreate(ctx, "t1")
	require.NoError(t, err)
	assert.NotSame(t, h1, h2)
	assert.Equal(t, 2, factory.count("t1"))

	assert.NoError(t, cache.Invalidate("unknown"))
}

func TestCache_ResetRemovesGraphDirectory(t *testing.T) {
	factory := newCountingFactory()
	ragDir := t.TempDir()
	cache, err := NewCache(ragDir, factory.build)
	require.NoError(t, err)
	defer cache.Close()
	ctx := context.Background()

	_, err = cache.GetOrCreate(ctx, "t1")
	require.NoError(t, err)
	dir := TopicDir(ragDir, "t1")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(dir+"/MANIFEST", []byte("x"), 0o644))

	require.NoError(t, cache.Reset("t1"))
	assert.True(t, factory.engines["t1"].closed.Load())
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
	assert.Zero(t, cache.Len())

	require.NoError(t, cache.Reset("never-built"))
}

func TestCache_TopicsAreIndependent(t *testing.T) {
	factory := newCountingFactory()
	cache, err := NewCache(t.TempDir(), factory.build)
	require.NoError(t, err)
	defer cache.Close()

	a, err := cache.GetOrCreate(context.Background(), "a")
	require.NoError(t, err)
	b, err := cache.GetOrCreate(context.Background(), "b")
	require.NoError(t, err)
	assert.NotSame(t, a, b)
	assert.Equal(t, 2, cache.Len())
}

func TestCache_CloseRejectsFurtherUse(t *testing.T) {
	factory := newCountingFactory()
	cache, err := NewCache(t.TempDir(), factory.build)
	require.NoError(t, err)

	_, err = cache.GetOrCreate(context.Background(), "t1")
	require.NoError(t, err)
	require.NoError(t, cache.Close())
	assert.True(t, factory.engines["t1"].closed.Load())

	_, err = cache.GetOrCreate(context.Background(), "t1")
	assert.ErrorIs(t, err, ErrCacheClosed)
	assert.NoError(t, cache.Close())
}

func TestCache_WaiterHonoursContext(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	factory := newCountingFactory()
	factory.delay = 200 * time.Millisecond
	cache, err := NewCache(t.TempDir(), factory.build)
	require.NoError(t, err)
	defer cache.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = cache.GetOrCreate(context.Background(), "t1")
	}()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = cache.GetOrCreate(ctx, "t1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	<-done
}

func TestHandle_WritesAreSerialized(t *testing.T) {
	factory := newCountingFactory()
	cache, err := NewCache(t.TempDir(), factory.build)
	require.NoError(t, err)
	defer cache.Close()

	h, err := cache.GetOrCreate(context.Background(), "t1")
	require.NoError(t, err)
	engine := factory.engines["t1"]
	engine.delay = 10 * time.Millisecond

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, h.Insert(context.Background(), Document{ID: string(rune('a' + i))}))
		}()
	}
	wg.Wait()
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Len(t, engine.docs, 5)
}

func TestCache_TopicLocks(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	cache, err := NewCache(t.TempDir(), newCountingFactory().build)
	require.NoError(t, err)
	defer cache.Close()

	// Shared holders run together.
	r1 := cache.RLockTopic("t1")
	r2 := cache.RLockTopic("t1")

	locked := make(chan struct{})
	released := make(chan struct{})
	go func() {
		unlock := cache.LockTopic("t1")
		close(locked)
		unlock()
		close(released)
	}()

	// Other topics are not held up.
	other := cache.LockTopic("t2")
	other()

	select {
	case <-locked:
		t.Fatal("exclusive lock taken while shared holders remain")
	case <-time.After(50 * time.Millisecond):
	}
	r1()
	r2()
	select {
	case <-locked:
	case <-time.After(time.Second):
		t.Fatal("exclusive lock not taken after shared holders left")
	}
	<-released

	cache.locksMu.Lock()
	defer cache.locksMu.Unlock()
	assert.Empty(t, cache.locks)
}
