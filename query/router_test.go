package query

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/studyforge/ai/mock"
	"github.com/poiesic/studyforge/budget"
	"github.com/poiesic/studyforge/core"
	"github.com/poiesic/studyforge/extract"
	"github.com/poiesic/studyforge/graph"
	"github.com/poiesic/studyforge/ingestion"
	"github.com/poiesic/studyforge/storage/sqlite"
)

// stubEngine answers every query with a fixed reply and records calls.
type stubEngine struct {
	mu       sync.Mutex
	answer   string
	err      error
	queries  []string
	lastMode core.QueryMode
}

func (e *stubEngine) Insert(ctx context.Context, doc graph.Document) error { return nil }
func (e *stubEngine) Delete(ctx context.Context, id string) error          { return nil }
func (e *stubEngine) Close() error                                         { return nil }

func (e *stubEngine) Query(ctx context.Context, question string, mode core.QueryMode) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queries = append(e.queries, question)
	e.lastMode = mode
	return e.answer, e.err
}

type fixture struct {
	store     *sqlite.Store
	engine    *stubEngine
	built     atomic.Int64
	buildErr  error
	cache     *graph.Cache
	completer *mock.MockCompleter
	budgeter  *budget.Budgeter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		engine:    &stubEngine{answer: "from the graph"},
		completer: mock.NewMockCompleter(),
	}

	var err error
	f.store, err = sqlite.NewStore(filepath.Join(t.TempDir(), "studyforge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.store.Close() })

	f.cache, err = graph.NewCache(t.TempDir(), func(ctx context.Context, topicID, dir string) (graph.Engine, error) {
		if f.buildErr != nil {
			return nil, f.buildErr
		}
		f.built.Add(1)
		return f.engine, nil
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.cache.Close() })

	f.budgeter, err = budget.New(budget.ApproxTokenizer{})
	require.NoError(t, err)
	return f
}

func (f *fixture) router(t *testing.T, opts ...Option) *Router {
	t.Helper()
	r, err := NewRouter(f.store, f.cache, f.completer, f.budgeter, opts...)
	require.NoError(t, err)
	return r
}

func (f *fixture) topic(t *testing.T, name string, useGraph bool) *core.Topic {
	t.Helper()
	topic, err := f.store.CreateTopic(context.Background(), &core.Topic{Name: name, UseKnowledgeGraph: useGraph})
	require.NoError(t, err)
	return topic
}

// addItem stores a content item the way a finished task does.
func (f *fixture) addItem(t *testing.T, topicID, title, text string) {
	t.Helper()
	ctx := context.Background()
	task, err := f.store.CreateTask(ctx, &core.Task{Kind: core.ContentTypeText, TopicID: topicID})
	require.NoError(t, err)
	require.NoError(t, f.store.MarkProcessing(ctx, task.ID))
	require.NoError(t, f.store.CompleteTask(ctx, task.ID, &core.ContentItem{
		TopicID: topicID, Type: core.ContentTypeText, Title: title, Text: text,
	}))
}

func TestNewRouter_RequiresCollaborators(t *testing.T) {
	f := newFixture(t)

	_, err := NewRouter(nil, f.cache, f.completer, f.budgeter)
	assert.ErrorIs(t, err, ErrStoreRequired)
	_, err = NewRouter(f.store, nil, f.completer, f.budgeter)
	assert.ErrorIs(t, err, ErrCacheRequired)
	_, err = NewRouter(f.store, f.cache, nil, f.budgeter)
	assert.ErrorIs(t, err, ErrCompleterRequired)
	_, err = NewRouter(f.store, f.cache, f.completer, nil)
	assert.ErrorIs(t, err, ErrBudgeterRequired)
}

func TestResolve(t *testing.T) {
	assert.Equal(t, GraphStrategy{Mode: core.QueryModeLocal},
		Resolve(&core.Topic{UseKnowledgeGraph: true}, core.QueryModeLocal, 10))
	assert.Equal(t, ContextStrategy{Budget: 10},
		Resolve(&core.Topic{UseKnowledgeGraph: false}, core.QueryModeLocal, 10))
	assert.Equal(t, MethodKnowledgeGraph, GraphStrategy{}.Method())
	assert.Equal(t, MethodContextLLM, ContextStrategy{}.Method())
}

func TestAnswer_RejectsBadInput(t *testing.T) {
	f := newFixture(t)
	r := f.router(t)
	topic := f.topic(t, "Geography", true)

	_, err := r.Answer(context.Background(), topic.ID, "  ", "")
	assert.ErrorIs(t, err, core.ErrEmptyQuestion)

	_, err = r.Answer(context.Background(), topic.ID, "Why?", "sideways")
	assert.ErrorIs(t, err, core.ErrInvalidQueryMode)
	assert.Equal(t, core.ErrorKindInvalidInput, core.KindOf(err))

	assert.Zero(t, f.built.Load())
	assert.Zero(t, f.completer.CallCount())
}

func TestAnswer_UnknownTopicDoesNoWork(t *testing.T) {
	f := newFixture(t)
	r := f.router(t)

	_, err := r.Answer(context.Background(), "missing", "What is the capital of France?", "")
	assert.True(t, core.IsNotFound(err))
	assert.Zero(t, f.built.Load())
	assert.Zero(t, f.completer.CallCount())
}

func TestAnswer_GraphTopicNeverUsesContextPath(t *testing.T) {
	f := newFixture(t)
	r := f.router(t)
	topic := f.topic(t, "Geography", true)
	f.addItem(t, topic.ID, "France", "Paris is the capital of France.")

	env, err := r.Answer(context.Background(), topic.ID, "What is the capital of France?", "")
	require.NoError(t, err)

	assert.Equal(t, "from the graph", env.AnswerText)
	assert.Equal(t, MethodKnowledgeGraph, env.ProcessingMethod)
	assert.Equal(t, topic.ID, env.TopicID)
	assert.Equal(t, "Geography", env.TopicName)
	assert.GreaterOrEqual(t, env.ProcessingTimeSeconds, 0.0)
	assert.Equal(t, core.QueryModeHybrid, f.engine.lastMode)
	assert.Equal(t, int64(1), f.built.Load())
	assert.Zero(t, f.completer.CallCount())

	_, err = r.Answer(context.Background(), topic.ID, "And Japan?", "LOCAL")
	require.NoError(t, err)
	assert.Equal(t, core.QueryModeLocal, f.engine.lastMode)
	assert.Equal(t, int64(1), f.built.Load(), "engine is reused across questions")
}

func TestAnswer_ContextTopicNeverUsesGraph(t *testing.T) {
	f := newFixture(t)
	r := f.router(t)
	topic := f.topic(t, "Geography", false)
	f.addItem(t, topic.ID, "France", "Paris is the capital of France.")

	env, err := r.Answer(context.Background(), topic.ID, "What is the capital of France?", "global")
	require.NoError(t, err)

	assert.Equal(t, MethodContextLLM, env.ProcessingMethod)
	assert.Zero(t, f.built.Load())
	assert.Empty(t, f.engine.queries)
	assert.Equal(t, 1, f.completer.CallCount())

	system, prompt := f.completer.LastRequest()
	assert.Equal(t, contextSystemPrompt, system)
	assert.Contains(t, prompt, "--- France ---\nParis is the capital of France.")
	assert.True(t, strings.HasSuffix(prompt, "Question: What is the capital of France?\n\nAnswer:"))
}

func TestAnswer_ContextBudgetKeepsOldestWholeItems(t *testing.T) {
	f := newFixture(t)
	topic := f.topic(t, "Geography", false)
	f.addItem(t, topic.ID, "France", "Paris is the capital of France.")
	f.addItem(t, topic.ID, "Japan", "Tokyo is the capital of Japan.")
	f.addItem(t, topic.ID, "Peru", "Lima.")

	first := f.budgeter.Sections([]string{"France"}, []string{"Paris is the capital of France."})[0]
	r := f.router(t, WithContextBudget(first.Tokens()+1))

	_, err := r.Answer(context.Background(), topic.ID, "Capitals?", "")
	require.NoError(t, err)

	_, prompt := f.completer.LastRequest()
	assert.Contains(t, prompt, "Paris is the capital of France.")
	assert.NotContains(t, prompt, "Tokyo")
	assert.NotContains(t, prompt, "Lima", "a later smaller item is not picked once the budget is hit")
}

func TestAnswer_ContextWithoutContent(t *testing.T) {
	f := newFixture(t)
	topic := f.topic(t, "Empty", false)

	_, err := f.router(t).Answer(context.Background(), topic.ID, "Anything?", "")
	assert.ErrorIs(t, err, ErrNoContent)
	assert.Zero(t, f.completer.CallCount())

	f.addItem(t, topic.ID, "Huge", strings.Repeat("word ", 200))
	_, err = f.router(t, WithContextBudget(5)).Answer(context.Background(), topic.ID, "Anything?", "")
	assert.ErrorIs(t, err, ErrContextBudgetExceeded)
	assert.Zero(t, f.completer.CallCount())
}

func TestAnswer_CompletionFailureKeepsUpstreamReason(t *testing.T) {
	f := newFixture(t)
	f.completer.CompleteFunc = func(ctx context.Context, system, prompt string) (string, error) {
		return "", core.NewExternalServiceError("completion", core.ReasonRateLimited, true, errors.New("429"))
	}
	topic := f.topic(t, "Geography", false)
	f.addItem(t, topic.ID, "France", "Paris is the capital of France.")

	_, err := f.router(t).Answer(context.Background(), topic.ID, "Capital?", "")
	var ese *core.ExternalServiceError
	require.ErrorAs(t, err, &ese)
	assert.Equal(t, core.ReasonRateLimited, ese.Reason)
	assert.True(t, core.IsRetryable(err))
}

func TestAnswer_GraphFailuresAreDistinguished(t *testing.T) {
	t.Run("engine unavailable", func(t *testing.T) {
		f := newFixture(t)
		f.buildErr = errors.New("corrupt value log")
		topic := f.topic(t, "Geography", true)

		_, err := f.router(t).Answer(context.Background(), topic.ID, "Capital?", "")
		var ese *core.ExternalServiceError
		require.ErrorAs(t, err, &ese)
		assert.Equal(t, core.ReasonUnavailable, ese.Reason)
		assert.Zero(t, f.completer.CallCount(), "no fallback to context mode")
	})

	t.Run("query execution error", func(t *testing.T) {
		f := newFixture(t)
		f.engine.err = errors.New("index out of range")
		topic := f.topic(t, "Geography", true)

		_, err := f.router(t).Answer(context.Background(), topic.ID, "Capital?", "")
		var ese *core.ExternalServiceError
		require.ErrorAs(t, err, &ese)
		assert.Equal(t, core.ReasonQueryFailed, ese.Reason)
		assert.False(t, ese.Retryable)
	})

	t.Run("upstream reason kept", func(t *testing.T) {
		f := newFixture(t)
		f.engine.err = core.NewExternalServiceError("completion", core.ReasonTimeout, true, context.DeadlineExceeded)
		topic := f.topic(t, "Geography", true)

		_, err := f.router(t).Answer(context.Background(), topic.ID, "Capital?", "")
		var ese *core.ExternalServiceError
		require.ErrorAs(t, err, &ese)
		assert.Equal(t, core.ReasonTimeout, ese.Reason)
		assert.True(t, ese.Retryable)
	})
}

func TestEndToEnd_ContextTopicAnswersFromIngestedText(t *testing.T) {
	f := newFixture(t)
	topic := f.topic(t, "T", false)
	ctx := context.Background()

	manager, err := ingestion.NewManager(f.store, extract.Standard(nil), f.cache, f.budgeter)
	require.NoError(t, err)
	defer manager.Shutdown(time.Second)

	for _, text := range []string{"Paris is the capital of France.", "Tokyo is the capital of Japan."} {
		id, err := manager.Submit(ctx, core.ContentTypeText, topic.ID, core.Payload{Text: text})
		require.NoError(t, err)
		require.Eventually(t, func() bool {
			task, err := manager.Status(ctx, id)
			return err == nil && task.Status == core.TaskStatusDone
		}, 5*time.Second, 5*time.Millisecond)
	}

	env, err := f.router(t).Answer(ctx, topic.ID, "What is the capital of France?", "")
	require.NoError(t, err)
	assert.Equal(t, MethodContextLLM, env.ProcessingMethod)
	assert.Contains(t, env.AnswerText, "Paris")
	assert.Zero(t, f.built.Load())
}
