package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/poiesic/studyforge/budget"
	"github.com/poiesic/studyforge/core"
	"github.com/poiesic/studyforge/extract"
	"github.com/poiesic/studyforge/graph"
	"github.com/poiesic/studyforge/storage"
	"github.com/poiesic/studyforge/storage/sqlite"
)

// recordingEngine is a graph.Engine that records inserts and deletes.
type recordingEngine struct {
	mu        sync.Mutex
	inserted  map[string]graph.Document
	deleted   []string
	insertErr error
}

func (e *recordingEngine) Insert(ctx context.Context, doc graph.Document) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.insertErr != nil {
		return e.insertErr
	}
	e.inserted[doc.ID] = doc
	return nil
}

func (e *recordingEngine) Delete(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inserted, id)
	e.deleted = append(e.deleted, id)
	return nil
}

func (e *recordingEngine) Query(ctx context.Context, question string, mode core.QueryMode) (string, error) {
	return "", nil
}

func (e *recordingEngine) Close() error { return nil }

func (e *recordingEngine) documents() map[string]graph.Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]graph.Document, len(e.inserted))
	for k, v := range e.inserted {
		out[k] = v
	}
	return out
}

func (e *recordingEngine) deletions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.deleted...)
}

// engineFactory hands out one recordingEngine and counts constructions.
type engineFactory struct {
	engine *recordingEngine
	built  atomic.Int64
	delay  time.Duration
}

func newEngineFactory() *engineFactory {
	return &engineFactory{engine: &recordingEngine{inserted: make(map[string]graph.Document)}}
}

func (f *engineFactory) build(ctx context.Context, topicID, dir string) (graph.Engine, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.built.Add(1)
	return f.engine, nil
}

type fixture struct {
	store    *sqlite.Store
	registry *extract.Registry
	factory  *engineFactory
	cache    *graph.Cache
	budgeter *budget.Budgeter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := sqlite.NewStore(filepath.Join(t.TempDir(), "studyforge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	factory := newEngineFactory()
	cache, err := graph.NewCache(t.TempDir(), factory.build)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	budgeter, err := budget.New(budget.ApproxTokenizer{})
	require.NoError(t, err)

	return &fixture{
		store:    store,
		registry: extract.Standard(nil),
		factory:  factory,
		cache:    cache,
		budgeter: budgeter,
	}
}

func (f *fixture) manager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	return f.managerWithStore(t, f.store, opts...)
}

func (f *fixture) managerWithStore(t *testing.T, store storage.Store, opts ...Option) *Manager {
	t.Helper()
	m, err := NewManager(store, f.registry, f.cache, f.budgeter, opts...)
	require.NoError(t, err)
	return m
}

func (f *fixture) topic(t *testing.T, useGraph bool) *core.Topic {
	t.Helper()
	topic, err := f.store.CreateTopic(context.Background(), &core.Topic{Name: "Geography", UseKnowledgeGraph: useGraph})
	require.NoError(t, err)
	return topic
}

func (f *fixture) items(t *testing.T, topicID string) []*core.ContentItem {
	t.Helper()
	items, err := f.store.ContentItemsInOrder(context.Background(), topicID)
	require.NoError(t, err)
	return items
}

// waitTerminal polls until the task is done or failed.
func waitTerminal(t *testing.T, m *Manager, taskID string) *core.Task {
	t.Helper()
	var task *core.Task
	require.Eventually(t, func() bool {
		var err error
		task, err = m.Status(context.Background(), taskID)
		require.NoError(t, err)
		return task.Status.Terminal()
	}, 5*time.Second, 5*time.Millisecond)
	return task
}

// gate is an extractor that blocks until released or its context ends.
type gate struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGate() *gate {
	return &gate{started: make(chan struct{}, 16), release: make(chan struct{})}
}

func (g *gate) Extract(ctx context.Context, p core.Payload) (*extract.Result, error) {
	g.started <- struct{}{}
	select {
	case <-g.release:
		return &extract.Result{Title: "gated", Text: p.Text}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *gate) open() { g.once.Do(func() { close(g.release) }) }

func textPayload(text string) core.Payload {
	return core.Payload{Text: text}
}

func TestNewManager_RequiresDependencies(t *testing.T) {
	f := newFixture(t)

	_, err := NewManager(nil, f.registry, f.cache, f.budgeter)
	assert.ErrorIs(t, err, ErrStoreRequired)
	_, err = NewManager(f.store, nil, f.cache, f.budgeter)
	assert.ErrorIs(t, err, ErrExtractorRequired)
	_, err = NewManager(f.store, f.registry, nil, f.budgeter)
	assert.ErrorIs(t, err, ErrCacheRequired)
	_, err = NewManager(f.store, f.registry, f.cache, nil)
	assert.ErrorIs(t, err, ErrBudgeterRequired)
}

func TestSubmit_RejectsBadRequestsSynchronously(t *testing.T) {
	f := newFixture(t)
	m := f.manager(t)
	defer m.Shutdown(time.Second)
	topic := f.topic(t, true)
	ctx := context.Background()

	_, err := m.Submit(ctx, core.ContentTypeText, topic.ID, textPayload("   "))
	assert.Equal(t, core.ErrorKindInvalidInput, core.KindOf(err))

	_, err = m.Submit(ctx, core.ContentType("podcast"), topic.ID, textPayload("x"))
	assert.ErrorIs(t, err, core.ErrInvalidContentType)

	_, err = m.Submit(ctx, core.ContentTypeYouTube, topic.ID, core.Payload{URL: "https://youtu.be/abc"})
	assert.ErrorIs(t, err, extract.ErrUnsupportedKind)

	_, err = m.Submit(ctx, core.ContentTypeText, "no-such-topic", textPayload("x"))
	assert.True(t, core.IsNotFound(err))

	assert.Equal(t, 0, m.Pending())
}

func TestSubmit_ReturnsBeforeWorkFinishes(t *testing.T) {
	f := newFixture(t)
	g := newGate()
	f.registry.Register(core.ContentTypeText, g)
	m := f.manager(t)
	defer m.Shutdown(time.Second)
	topic := f.topic(t, true)

	id, err := m.Submit(context.Background(), core.ContentTypeText, topic.ID, textPayload("Paris is the capital of France."))
	require.NoError(t, err)

	task, err := m.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Contains(t, []core.TaskStatus{core.TaskStatusPending, core.TaskStatusProcessing}, task.Status)
	assert.Nil(t, task.Result)

	<-g.started
	g.open()
	task = waitTerminal(t, m, id)
	assert.Equal(t, core.TaskStatusDone, task.Status)
}

func TestTask_DoneProducesExactlyOneItem(t *testing.T) {
	f := newFixture(t)
	m := f.manager(t)
	defer m.Shutdown(time.Second)
	topic := f.topic(t, true)

	id, err := m.Submit(context.Background(), core.ContentTypeText, topic.ID, core.Payload{
		Title:    "Capitals",
		Text:     "Paris is the capital of France.",
		Metadata: map[string]any{"source": "notes"},
	})
	require.NoError(t, err)

	task := waitTerminal(t, m, id)
	require.Equal(t, core.TaskStatusDone, task.Status)
	require.NotNil(t, task.Result)
	assert.Nil(t, task.Error)

	items := f.items(t, topic.ID)
	require.Len(t, items, 1)
	item := items[0]
	assert.Equal(t, task.Result.ContentID, item.ID)
	assert.Equal(t, "Capitals", item.Title)
	assert.Equal(t, core.ContentTypeText, item.Type)
	assert.Equal(t, len("Paris is the capital of France."), item.ContentLength)
	assert.Equal(t, f.budgeter.Count(item.Text), item.TokenCount)
	assert.Equal(t, "notes", item.Metadata["source"])

	docs := f.factory.engine.documents()
	require.Contains(t, docs, item.ID)
	assert.Equal(t, item.Text, docs[item.ID].Text)
}

func TestTask_ExtractionFailureLeavesNoItem(t *testing.T) {
	f := newFixture(t)
	f.registry.Register(core.ContentTypeText, extract.ExtractorFunc(func(ctx context.Context, p core.Payload) (*extract.Result, error) {
		return nil, core.NewExternalServiceError("webpage fetch", core.ReasonRateLimited, true, errors.New("429"))
	}))
	m := f.manager(t)
	defer m.Shutdown(time.Second)
	topic := f.topic(t, true)

	id, err := m.Submit(context.Background(), core.ContentTypeText, topic.ID, textPayload("x"))
	require.NoError(t, err)

	task := waitTerminal(t, m, id)
	require.Equal(t, core.TaskStatusFailed, task.Status)
	require.NotNil(t, task.Error)
	assert.Equal(t, core.ErrorKindExternalService, task.Error.Kind)
	assert.True(t, task.Error.Retryable)
	assert.Nil(t, task.Result)
	assert.Empty(t, f.items(t, topic.ID))
	assert.Empty(t, f.factory.engine.documents())
}

func TestTask_GraphFailureLeavesNoItem(t *testing.T) {
	f := newFixture(t)
	f.factory.engine.insertErr = core.NewExternalServiceError("completion", core.ReasonUnavailable, true, errors.New("connection refused"))
	m := f.manager(t)
	defer m.Shutdown(time.Second)
	topic := f.topic(t, true)

	id, err := m.Submit(context.Background(), core.ContentTypeText, topic.ID, textPayload("Tokyo is the capital of Japan."))
	require.NoError(t, err)

	task := waitTerminal(t, m, id)
	assert.Equal(t, core.TaskStatusFailed, task.Status)
	assert.Equal(t, core.ErrorKindExternalService, task.Error.Kind)
	assert.Empty(t, f.items(t, topic.ID))
}

func TestTask_NonGraphTopicSkipsEngine(t *testing.T) {
	f := newFixture(t)
	m := f.manager(t)
	defer m.Shutdown(time.Second)
	topic := f.topic(t, false)

	id, err := m.Submit(context.Background(), core.ContentTypeText, topic.ID, textPayload("Rome is the capital of Italy."))
	require.NoError(t, err)

	task := waitTerminal(t, m, id)
	assert.Equal(t, core.TaskStatusDone, task.Status)
	assert.Len(t, f.items(t, topic.ID), 1)
	assert.Zero(t, f.factory.built.Load())
}

// failingCompleteStore rejects every completion.
type failingCompleteStore struct {
	storage.Store
}

func (s failingCompleteStore) CompleteTask(ctx context.Context, id string, item *core.ContentItem) error {
	return core.NewStorageError("completing task", errors.New("disk I/O error"))
}

func TestTask_PersistenceFailureRemovesGraphDocument(t *testing.T) {
	f := newFixture(t)
	m := f.managerWithStore(t, failingCompleteStore{Store: f.store})
	defer m.Shutdown(time.Second)
	topic := f.topic(t, true)

	id, err := m.Submit(context.Background(), core.ContentTypeText, topic.ID, textPayload("Berlin is the capital of Germany."))
	require.NoError(t, err)

	task := waitTerminal(t, m, id)
	assert.Equal(t, core.TaskStatusFailed, task.Status)
	assert.Equal(t, core.ErrorKindStorage, task.Error.Kind)
	assert.Empty(t, f.items(t, topic.ID))
	assert.Empty(t, f.factory.engine.documents())
	assert.Len(t, f.factory.engine.deletions(), 1)
}

func TestTask_TopicDeletedDuringExtraction(t *testing.T) {
	f := newFixture(t)
	g := newGate()
	f.registry.Register(core.ContentTypeText, g)
	m := f.manager(t)
	defer m.Shutdown(time.Second)
	topic := f.topic(t, true)
	ctx := context.Background()

	id, err := m.Submit(ctx, core.ContentTypeText, topic.ID, textPayload("Lima is the capital of Peru."))
	require.NoError(t, err)
	<-g.started

	unlock := f.cache.LockTopic(topic.ID)
	_, err = f.store.DeleteTopic(ctx, topic.ID)
	require.NoError(t, err)
	require.NoError(t, f.cache.Reset(topic.ID))
	unlock()
	g.open()

	task := waitTerminal(t, m, id)
	assert.Equal(t, core.TaskStatusFailed, task.Status)
	assert.Equal(t, core.ErrorKindNotFound, task.Error.Kind)
	assert.Zero(t, f.factory.built.Load(), "no engine is built for a deleted topic")
	assert.Zero(t, f.cache.Len())
}

func TestTask_PanicIsRecordedAndPoolSurvives(t *testing.T) {
	f := newFixture(t)
	var calls atomic.Int64
	f.registry.Register(core.ContentTypeText, extract.ExtractorFunc(func(ctx context.Context, p core.Payload) (*extract.Result, error) {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		return &extract.Result{Text: p.Text}, nil
	}))
	m := f.manager(t, WithMaxWorkers(1))
	defer m.Shutdown(time.Second)
	topic := f.topic(t, false)

	first, err := m.Submit(context.Background(), core.ContentTypeText, topic.ID, textPayload("one"))
	require.NoError(t, err)
	second, err := m.Submit(context.Background(), core.ContentTypeText, topic.ID, textPayload("two"))
	require.NoError(t, err)

	task := waitTerminal(t, m, first)
	assert.Equal(t, core.TaskStatusFailed, task.Status)
	assert.Equal(t, core.ErrorKindInternal, task.Error.Kind)
	assert.Contains(t, task.Error.Message, "boom")

	task = waitTerminal(t, m, second)
	assert.Equal(t, core.TaskStatusDone, task.Status)
}

func TestTasks_RunInSubmissionOrder(t *testing.T) {
	f := newFixture(t)
	var (
		mu    sync.Mutex
		order []string
	)
	f.registry.Register(core.ContentTypeText, extract.ExtractorFunc(func(ctx context.Context, p core.Payload) (*extract.Result, error) {
		mu.Lock()
		order = append(order, p.Text)
		mu.Unlock()
		return &extract.Result{Text: p.Text}, nil
	}))
	m := f.manager(t, WithMaxWorkers(1))
	defer m.Shutdown(time.Second)
	topic := f.topic(t, false)

	want := []string{"a", "b", "c", "d", "e"}
	ids := make([]string, len(want))
	for i, text := range want {
		id, err := m.Submit(context.Background(), core.ContentTypeText, topic.ID, textPayload(text))
		require.NoError(t, err)
		ids[i] = id
	}
	for _, id := range ids {
		waitTerminal(t, m, id)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, order)
}

func TestConcurrentSubmits_BuildTopicEngineOnce(t *testing.T) {
	f := newFixture(t)
	f.factory.delay = 20 * time.Millisecond
	m := f.manager(t, WithMaxWorkers(4))
	defer m.Shutdown(time.Second)
	topic := f.topic(t, true)

	const n = 12
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := m.Submit(context.Background(), core.ContentTypeText, topic.ID, textPayload("fact"))
			assert.NoError(t, err)
			ids[i] = id
		}()
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, core.TaskStatusDone, waitTerminal(t, m, id).Status)
	}

	assert.Equal(t, int64(1), f.factory.built.Load())
	assert.Len(t, f.items(t, topic.ID), n)
}

func TestShutdown_InterruptsRunningTask(t *testing.T) {
	f := newFixture(t)
	g := newGate()
	f.registry.Register(core.ContentTypeText, g)
	topic := f.topic(t, true)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	m := f.manager(t)
	id, err := m.Submit(context.Background(), core.ContentTypeText, topic.ID, textPayload("slow"))
	require.NoError(t, err)
	<-g.started

	require.NoError(t, m.Shutdown(100*time.Millisecond))

	task, err := f.store.GetTask(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, core.TaskStatusFailed, task.Status)
	assert.Equal(t, core.ErrorKindInterrupted, task.Error.Kind)
	assert.Empty(t, f.items(t, topic.ID))
}

func TestShutdown_DeadlineForcesInterruption(t *testing.T) {
	f := newFixture(t)
	started := make(chan struct{})
	finished := make(chan struct{})
	f.registry.Register(core.ContentTypeText, extract.ExtractorFunc(func(ctx context.Context, p core.Payload) (*extract.Result, error) {
		defer close(finished)
		close(started)
		time.Sleep(300 * time.Millisecond) // ignores ctx
		return &extract.Result{Text: p.Text}, nil
	}))
	topic := f.topic(t, true)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	m := f.manager(t)
	id, err := m.Submit(context.Background(), core.ContentTypeText, topic.ID, textPayload("stubborn"))
	require.NoError(t, err)
	<-started

	begin := time.Now()
	err = m.Shutdown(100 * time.Millisecond)
	assert.ErrorIs(t, err, ErrShutdownTimeout)
	assert.Less(t, time.Since(begin), 250*time.Millisecond)

	task, err := f.store.GetTask(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, core.TaskStatusFailed, task.Status)
	assert.Equal(t, core.ErrorKindInterrupted, task.Error.Kind)

	// The late worker must not resurrect the task or write an item.
	<-finished
	require.Eventually(t, func() bool { return m.Pending() == 0 }, time.Second, 5*time.Millisecond)
	task, err = f.store.GetTask(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, core.TaskStatusFailed, task.Status)
	assert.Empty(t, f.items(t, topic.ID))
	assert.Empty(t, f.factory.engine.documents())
}

func TestShutdown_FailsQueuedTasks(t *testing.T) {
	f := newFixture(t)
	g := newGate()
	f.registry.Register(core.ContentTypeText, g)
	m := f.manager(t, WithMaxWorkers(1))
	topic := f.topic(t, false)

	running, err := m.Submit(context.Background(), core.ContentTypeText, topic.ID, textPayload("first"))
	require.NoError(t, err)
	<-g.started
	queued, err := m.Submit(context.Background(), core.ContentTypeText, topic.ID, textPayload("second"))
	require.NoError(t, err)

	require.NoError(t, m.Shutdown(time.Second))

	for _, id := range []string{running, queued} {
		task, err := f.store.GetTask(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, core.TaskStatusFailed, task.Status, id)
		assert.Equal(t, core.ErrorKindInterrupted, task.Error.Kind, id)
	}

	_, err = m.Submit(context.Background(), core.ContentTypeText, topic.ID, textPayload("third"))
	assert.ErrorIs(t, err, ErrManagerClosed)
	assert.NoError(t, m.Shutdown(time.Second))
}

// hangingServer accepts callbacks and never answers them.
func hangingServer(t *testing.T) *httptest.Server {
	t.Helper()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})
	return srv
}

func TestShutdown_HangingCallbacksKeepDeadline(t *testing.T) {
	srv := hangingServer(t)
	f := newFixture(t)
	g := newGate()
	f.registry.Register(core.ContentTypeText, g)
	m := f.manager(t, WithMaxWorkers(1),
		WithNotifier(NewNotifier(WithHTTPClient(&http.Client{Timeout: 5 * time.Second}))))
	topic := f.topic(t, false)
	ctx := context.Background()

	_, err := m.Submit(ctx, core.ContentTypeText, topic.ID, textPayload("running"))
	require.NoError(t, err)
	<-g.started
	var queued []string
	for range 2 {
		id, err := m.Submit(ctx, core.ContentTypeText, topic.ID, core.Payload{Text: "queued", CallbackURL: srv.URL})
		require.NoError(t, err)
		queued = append(queued, id)
	}

	begin := time.Now()
	require.NoError(t, m.Shutdown(200*time.Millisecond))
	assert.Less(t, time.Since(begin), time.Second)

	for _, id := range queued {
		task, err := f.store.GetTask(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, core.TaskStatusFailed, task.Status)
		assert.Equal(t, core.ErrorKindInterrupted, task.Error.Kind)
	}
}

func TestCancel_DoesNotWaitForCallback(t *testing.T) {
	srv := hangingServer(t)
	f := newFixture(t)
	g := newGate()
	f.registry.Register(core.ContentTypeText, g)
	m := f.manager(t, WithMaxWorkers(1),
		WithNotifier(NewNotifier(WithHTTPClient(&http.Client{Timeout: 5 * time.Second}))))
	topic := f.topic(t, false)
	ctx := context.Background()

	_, err := m.Submit(ctx, core.ContentTypeText, topic.ID, textPayload("running"))
	require.NoError(t, err)
	<-g.started
	queued, err := m.Submit(ctx, core.ContentTypeText, topic.ID, core.Payload{Text: "queued", CallbackURL: srv.URL})
	require.NoError(t, err)

	begin := time.Now()
	assert.True(t, m.Cancel(queued))
	assert.Less(t, time.Since(begin), 500*time.Millisecond)
	assert.Equal(t, core.ErrorKindCancelled, waitTerminal(t, m, queued).Error.Kind)

	begin = time.Now()
	require.NoError(t, m.Shutdown(100*time.Millisecond))
	assert.Less(t, time.Since(begin), time.Second)
}

func TestCancel_QueuedAndRunningTasks(t *testing.T) {
	f := newFixture(t)
	g := newGate()
	f.registry.Register(core.ContentTypeText, g)
	m := f.manager(t, WithMaxWorkers(1))
	defer m.Shutdown(time.Second)
	topic := f.topic(t, false)

	running, err := m.Submit(context.Background(), core.ContentTypeText, topic.ID, textPayload("first"))
	require.NoError(t, err)
	<-g.started
	queued, err := m.Submit(context.Background(), core.ContentTypeText, topic.ID, textPayload("second"))
	require.NoError(t, err)

	assert.True(t, m.Cancel(queued))
	assert.True(t, m.Cancel(running))
	assert.False(t, m.Cancel("unknown"))

	for _, id := range []string{running, queued} {
		task := waitTerminal(t, m, id)
		assert.Equal(t, core.TaskStatusFailed, task.Status)
		assert.Equal(t, core.ErrorKindCancelled, task.Error.Kind)
	}
	assert.Empty(t, f.items(t, topic.ID))
}

func TestReconcile_FailsLeftoverTasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	topic := f.topic(t, false)

	pending, err := f.store.CreateTask(ctx, &core.Task{Kind: core.ContentTypeText, TopicID: topic.ID})
	require.NoError(t, err)
	processing, err := f.store.CreateTask(ctx, &core.Task{Kind: core.ContentTypeText, TopicID: topic.ID})
	require.NoError(t, err)
	require.NoError(t, f.store.MarkProcessing(ctx, processing.ID))

	m := f.manager(t)
	defer m.Shutdown(time.Second)

	n, err := m.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, id := range []string{pending.ID, processing.ID} {
		task, err := m.Status(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, core.TaskStatusFailed, task.Status)
		assert.Equal(t, core.ErrorKindInterrupted, task.Error.Kind)
	}
}

func TestJanitor_PrunesFinishedTasks(t *testing.T) {
	f := newFixture(t)
	m := f.manager(t, WithTaskRetention(time.Millisecond), WithJanitorInterval(10*time.Millisecond))
	defer m.Shutdown(time.Second)
	topic := f.topic(t, false)

	id, err := m.Submit(context.Background(), core.ContentTypeText, topic.ID, textPayload("ephemeral"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := m.Status(context.Background(), id)
		return core.IsNotFound(err)
	}, 5*time.Second, 10*time.Millisecond)
	assert.Len(t, f.items(t, topic.ID), 1, "pruning tasks keeps their content")
}

func TestTask_CallbackReceivesOutcome(t *testing.T) {
	received := make(chan Notification, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var n Notification
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&n))
		received <- n
	}))
	defer srv.Close()

	f := newFixture(t)
	m := f.manager(t, WithNotifier(NewNotifier(WithHTTPClient(srv.Client()))))
	defer m.Shutdown(time.Second)
	topic := f.topic(t, false)

	id, err := m.Submit(context.Background(), core.ContentTypeText, topic.ID, core.Payload{
		Text:        "Madrid is the capital of Spain.",
		CallbackURL: srv.URL,
	})
	require.NoError(t, err)

	select {
	case n := <-received:
		task := waitTerminal(t, m, id)
		assert.Equal(t, id, n.TaskID)
		assert.Equal(t, core.TaskStatusDone, n.Status)
		assert.Equal(t, topic.ID, n.TopicID)
		assert.Equal(t, task.Result.ContentID, n.ContentID)
		assert.Empty(t, n.Error)
		assert.GreaterOrEqual(t, n.ProcessingTimeSeconds, 0.0)
	case <-time.After(5 * time.Second):
		t.Fatal("callback not received")
	}
}
