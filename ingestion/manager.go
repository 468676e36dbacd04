package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/studyforge/budget"
	"github.com/poiesic/studyforge/core"
	"github.com/poiesic/studyforge/extract"
	"github.com/poiesic/studyforge/graph"
	"github.com/poiesic/studyforge/storage"
)

const (
	defaultMaxWorkers      = 4
	defaultJanitorInterval = time.Hour
	callbackTimeout        = 10 * time.Second
)

// Manager owns the ingestion worker pool and task lifecycle.
type Manager struct {
	store     storage.Store
	extractor Extractor
	proc      processor
	notifier  *Notifier
	logger    *slog.Logger

	maxWorkers      int
	retention       time.Duration
	janitorInterval time.Duration

	pool       *ants.Pool
	baseCtx    context.Context
	baseCancel context.CancelCauseFunc

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []*job
	jobs    map[string]*job
	closed  bool
	running sync.WaitGroup

	// Callbacks are sent in the background so neither Cancel nor Shutdown
	// waits on a slow receiver. Shutdown abandons them at its deadline.
	notifyMu     sync.Mutex
	notifyClosed bool
	callbacks    sync.WaitGroup
	notifyCtx    context.Context
	notifyCancel context.CancelFunc

	dispatcherDone chan struct{}
	janitorDone    chan struct{}
}

// job is a task queued or running in this process.
type job struct {
	task   *core.Task
	ctx    context.Context
	cancel context.CancelCauseFunc
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxWorkers sets how many tasks run at once. Default is 4.
func WithMaxWorkers(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxWorkers = n
		}
	}
}

// WithTaskRetention sets how long finished tasks are kept.
// Default is zero, which keeps them forever.
func WithTaskRetention(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.retention = d
		}
	}
}

// WithJanitorInterval sets how often finished tasks are pruned. Default is one hour.
func WithJanitorInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.janitorInterval = d
		}
	}
}

// WithNotifier sets the notifier used for completion callbacks.
func WithNotifier(n *Notifier) Option {
	return func(m *Manager) {
		if n != nil {
			m.notifier = n
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a Manager and starts its dispatcher.
func NewManager(
	store storage.Store,
	extractor Extractor,
	cache *graph.Cache,
	budgeter *budget.Budgeter,
	opts ...Option,
) (*Manager, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if extractor == nil {
		return nil, ErrExtractorRequired
	}
	if cache == nil {
		return nil, ErrCacheRequired
	}
	if budgeter == nil {
		return nil, ErrBudgeterRequired
	}

	m := &Manager{
		store:           store,
		extractor:       extractor,
		logger:          slog.Default(),
		maxWorkers:      defaultMaxWorkers,
		janitorInterval: defaultJanitorInterval,
		jobs:            make(map[string]*job),
		dispatcherDone:  make(chan struct{}),
		janitorDone:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "ingestion")
	if m.notifier == nil {
		m.notifier = NewNotifier(WithNotifierLogger(m.logger))
	}
	m.proc = &contentProcessor{
		store:     store,
		extractor: extractor,
		cache:     cache,
		budgeter:  budgeter,
		logger:    m.logger,
	}

	pool, err := ants.NewPool(m.maxWorkers, ants.WithPanicHandler(func(r any) {
		m.logger.Error("worker panic escaped task recovery", "panic", r)
	}))
	if err != nil {
		return nil, err
	}
	m.pool = pool
	m.cond = sync.NewCond(&m.mu)
	m.baseCtx, m.baseCancel = context.WithCancelCause(context.Background())
	m.notifyCtx, m.notifyCancel = context.WithCancel(context.Background())

	go m.dispatch()
	go m.janitor()
	return m, nil
}

// Submit validates a request, records a pending task and queues it. It
// returns as soon as the task is recorded. Validation and unknown-topic
// failures are returned directly and nothing is recorded.
func (m *Manager) Submit(ctx context.Context, kind core.TaskKind, topicID string, payload core.Payload) (string, error) {
	if m.isClosed() {
		return "", ErrManagerClosed
	}
	if err := core.ValidatePayload(kind, payload); err != nil {
		return "", err
	}
	if !m.extractor.Supports(kind) {
		return "", core.NewValidationError("kind", fmt.Errorf("%w: %q", extract.ErrUnsupportedKind, kind))
	}
	if _, err := m.store.GetTopic(ctx, topicID); err != nil {
		return "", err
	}

	task, err := m.store.CreateTask(ctx, &core.Task{Kind: kind, TopicID: topicID, Payload: payload})
	if err != nil {
		return "", err
	}

	if err := m.enqueue(task); err != nil {
		m.failDetached(task.ID, &core.InterruptedError{Reason: "submitted during shutdown"})
		return "", err
	}
	m.logger.Debug("task submitted", "task_id", task.ID, "kind", kind, "topic_id", topicID)
	return task.ID, nil
}

// Status returns the current record of a task.
func (m *Manager) Status(ctx context.Context, taskID string) (*core.Task, error) {
	return m.store.GetTask(ctx, taskID)
}

// Cancel stops a queued or running task. The task ends failed with kind
// cancelled. Cancelling a task this process is not running is a no-op.
func (m *Manager) Cancel(taskID string) bool {
	m.mu.Lock()
	j, ok := m.jobs[taskID]
	if ok {
		for i, queued := range m.queue {
			if queued == j {
				m.queue = append(m.queue[:i], m.queue[i+1:]...)
				delete(m.jobs, taskID)
				m.mu.Unlock()
				m.finish(j, time.Now(), nil, core.ErrCancelled)
				j.cancel(core.ErrCancelled)
				m.running.Done()
				return true
			}
		}
	}
	m.mu.Unlock()
	if ok {
		j.cancel(core.ErrCancelled)
	}
	return ok
}

// Pending returns the number of queued and running tasks.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

// Reconcile fails every task a previous process left pending or
// processing. Call it once at startup, before the first Submit.
func (m *Manager) Reconcile(ctx context.Context) (int, error) {
	n, err := m.store.FailUnfinishedTasks(ctx, core.TaskErrorFrom(&core.InterruptedError{Reason: "process restarted"}))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.logger.Warn("failed tasks left unfinished by a previous run", "count", n)
	}
	return n, nil
}

// Shutdown stops accepting work, fails queued tasks, cancels running ones
// and waits up to timeout for them to stop. Tasks still running at the
// deadline are recorded as interrupted and ErrShutdownTimeout is returned.
func (m *Manager) Shutdown(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	queued := m.queue
	m.queue = nil
	for _, j := range queued {
		delete(m.jobs, j.task.ID)
	}
	m.cond.Broadcast()
	m.mu.Unlock()

	m.logger.Info("shutting down task manager", "queued", len(queued))
	for _, j := range queued {
		m.finish(j, time.Now(), nil, &core.InterruptedError{Reason: "shutdown before start"})
		j.cancel(errShuttingDown)
		m.running.Done()
	}
	m.baseCancel(errShuttingDown)

	done := make(chan struct{})
	go func() {
		m.running.Wait()
		close(done)
	}()

	var result error
	select {
	case <-done:
	case <-time.After(time.Until(deadline)):
		result = ErrShutdownTimeout
		m.interruptRemaining()
	}

	m.pool.Release()
	remaining := time.Until(deadline)
	if remaining < 10*time.Millisecond {
		remaining = 10 * time.Millisecond
	}
	select {
	case <-m.dispatcherDone:
	case <-time.After(remaining):
	}
	m.drainCallbacks(deadline)
	<-m.janitorDone
	return result
}

// interruptRemaining records every task still tracked as interrupted. A
// late completion from its worker is then rejected by the store.
func (m *Manager) interruptRemaining() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.jobs))
	for id := range m.jobs {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.logger.Warn("task did not stop before shutdown deadline", "task_id", id)
		m.failDetached(id, &core.InterruptedError{Reason: "shutdown deadline exceeded"})
	}
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Manager) enqueue(task *core.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrManagerClosed
	}
	ctx, cancel := context.WithCancelCause(m.baseCtx)
	j := &job{task: task, ctx: ctx, cancel: cancel}
	m.jobs[task.ID] = j
	m.queue = append(m.queue, j)
	m.running.Add(1)
	m.cond.Signal()
	return nil
}

// next blocks until a job is queued or the manager closes.
func (m *Manager) next() (*job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.queue) == 0 && !m.closed {
		m.cond.Wait()
	}
	if len(m.queue) == 0 {
		return nil, false
	}
	j := m.queue[0]
	m.queue[0] = nil
	m.queue = m.queue[1:]
	return j, true
}

// dispatch hands queued jobs to the pool in submission order. Submit blocks
// while every worker is busy, which keeps the queue FIFO.
func (m *Manager) dispatch() {
	defer close(m.dispatcherDone)
	for {
		j, ok := m.next()
		if !ok {
			return
		}
		if err := m.pool.Submit(func() { m.run(j) }); err != nil {
			m.logger.Warn("could not schedule task", "task_id", j.task.ID, "err", err)
			m.untrack(j)
			m.finish(j, time.Now(), nil, &core.InterruptedError{Reason: "worker pool closed"})
			m.running.Done()
		}
	}
}

func (m *Manager) run(j *job) {
	defer m.running.Done()
	defer m.untrack(j)
	start := time.Now()

	item, err := m.execute(j)
	if err != nil {
		err = m.classify(j.ctx, err)
	}
	m.finish(j, start, item, err)
}

// execute runs one task, converting a panic into an error.
func (m *Manager) execute(j *job) (item *core.ContentItem, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("task panicked", "task_id", j.task.ID, "panic", r, "stack", string(debug.Stack()))
			item, err = nil, fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()

	if err := j.ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.store.MarkProcessing(j.ctx, j.task.ID); err != nil {
		return nil, err
	}
	return m.proc.process(j.ctx, j.task)
}

// classify maps an error from a task whose context ended onto the
// cancellation kinds.
func (m *Manager) classify(ctx context.Context, err error) error {
	if ctx.Err() == nil {
		return err
	}
	switch cause := context.Cause(ctx); {
	case errors.Is(cause, errShuttingDown):
		return &core.InterruptedError{Reason: "shutdown"}
	case errors.Is(cause, core.ErrCancelled):
		return core.ErrCancelled
	default:
		return fmt.Errorf("%w: %w", core.ErrCancelled, err)
	}
}

// finish records a failure when err is set, then sends the callback.
func (m *Manager) finish(j *job, start time.Time, item *core.ContentItem, err error) {
	status := core.TaskStatusDone
	contentID := ""
	if err != nil {
		status = core.TaskStatusFailed
		m.failDetached(j.task.ID, err)
		m.logger.Warn("task failed", "task_id", j.task.ID, "kind", j.task.Kind, "err", err)
	} else {
		contentID = item.ID
		m.logger.Info("task done", "task_id", j.task.ID, "kind", j.task.Kind,
			"content_id", item.ID, "elapsed", time.Since(start))
	}

	if url := j.task.Payload.CallbackURL; url != "" {
		m.notify(url, Notification{
			TaskID:                j.task.ID,
			Status:                status,
			TopicID:               j.task.TopicID,
			ContentID:             contentID,
			Error:                 errorMessage(err),
			ProcessingTimeSeconds: time.Since(start).Seconds(),
		})
	}
}

// notify posts a callback in the background. Callbacks for tasks that
// finish after shutdown has drained them are dropped.
func (m *Manager) notify(url string, body Notification) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	if m.notifyClosed {
		m.logger.Warn("callback dropped after shutdown", "task_id", body.TaskID, "url", url)
		return
	}
	m.callbacks.Add(1)
	go func() {
		defer m.callbacks.Done()
		ctx, cancel := context.WithTimeout(m.notifyCtx, callbackTimeout)
		defer cancel()
		m.notifier.Notify(ctx, url, body)
	}()
}

// drainCallbacks waits for in-flight callbacks until deadline, then
// cancels the rest.
func (m *Manager) drainCallbacks(deadline time.Time) {
	m.notifyMu.Lock()
	m.notifyClosed = true
	m.notifyMu.Unlock()

	done := make(chan struct{})
	go func() {
		m.callbacks.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Until(deadline)):
		m.logger.Warn("abandoning callbacks still in flight at shutdown deadline")
		m.notifyCancel()
		<-done
	}
	m.notifyCancel()
}

// failDetached moves a task to failed outside of any task context.
func (m *Manager) failDetached(taskID string, err error) {
	ctx, cancel := detached()
	defer cancel()
	ferr := m.store.FailTask(ctx, taskID, core.TaskErrorFrom(err))
	switch {
	case ferr == nil:
	case errors.Is(ferr, storage.ErrInvalidTransition):
		m.logger.Debug("task already terminal", "task_id", taskID)
	default:
		m.logger.Error("failed to record task failure", "task_id", taskID, "err", ferr)
	}
}

func (m *Manager) untrack(j *job) {
	m.mu.Lock()
	if m.jobs[j.task.ID] == j {
		delete(m.jobs, j.task.ID)
	}
	m.mu.Unlock()
	j.cancel(nil)
}

// janitor prunes finished tasks older than the retention period.
func (m *Manager) janitor() {
	defer close(m.janitorDone)
	if m.retention == 0 {
		return
	}
	ticker := time.NewTicker(m.janitorInterval)
	defer ticker.Stop()
	for {
		m.prune()
		select {
		case <-m.baseCtx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Manager) prune() {
	n, err := m.store.PruneTasks(m.baseCtx, time.Now().Add(-m.retention))
	switch {
	case err != nil && m.baseCtx.Err() == nil:
		m.logger.Warn("failed to prune tasks", "err", err)
	case n > 0:
		m.logger.Info("pruned finished tasks", "count", n)
	}
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
