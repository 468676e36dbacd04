package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/studyforge/ai"
	"github.com/poiesic/studyforge/budget"
	"github.com/poiesic/studyforge/core"
	"github.com/poiesic/studyforge/graph"
)

// DefaultContextBudget is the token budget for context-mode prompts.
const DefaultContextBudget = 120000

// Envelope is the uniform answer returned for every strategy.
type Envelope struct {
	AnswerText            string  `json:"answer_text"`
	ProcessingMethod      Method  `json:"processing_method"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`
	TopicID               string  `json:"topic_id"`
	TopicName             string  `json:"topic_name"`
}

// Store is the part of the content store the router reads.
type Store interface {
	GetTopic(ctx context.Context, id string) (*core.Topic, error)
	ContentItemsInOrder(ctx context.Context, topicID string) ([]*core.ContentItem, error)
}

// Router answers questions by topic.
type Router struct {
	store         Store
	cache         *graph.Cache
	completer     ai.Completer
	budgeter      *budget.Budgeter
	contextBudget int
	logger        *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithContextBudget sets the token budget for context-mode prompts.
// Default is DefaultContextBudget.
func WithContextBudget(tokens int) Option {
	return func(r *Router) {
		if tokens > 0 {
			r.contextBudget = tokens
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRouter creates a Router.
func NewRouter(store Store, cache *graph.Cache, completer ai.Completer, budgeter *budget.Budgeter, opts ...Option) (*Router, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if cache == nil {
		return nil, ErrCacheRequired
	}
	if completer == nil {
		return nil, ErrCompleterRequired
	}
	if budgeter == nil {
		return nil, ErrBudgeterRequired
	}
	r := &Router{
		store:         store,
		cache:         cache,
		completer:     completer,
		budgeter:      budgeter,
		contextBudget: DefaultContextBudget,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "query")
	return r, nil
}

// Answer answers question against the topic. An empty mode means hybrid;
// mode only matters for topics that use the knowledge graph.
func (r *Router) Answer(ctx context.Context, topicID, question, mode string) (*Envelope, error) {
	if err := core.ValidateQuestion(question); err != nil {
		return nil, err
	}
	queryMode, err := core.ParseQueryMode(mode)
	if err != nil {
		return nil, err
	}

	topic, err := r.store.GetTopic(ctx, topicID)
	if err != nil {
		return nil, err
	}
	strategy := Resolve(topic, queryMode, r.contextBudget)

	start := time.Now()
	answer, err := r.run(ctx, strategy, topic, question)
	elapsed := time.Since(start)
	if err != nil {
		r.logger.Warn("query failed", "topic_id", topic.ID, "strategy", strategy.String(), "err", err)
		return nil, err
	}

	r.logger.Info("query answered", "topic_id", topic.ID, "strategy", strategy.String(), "elapsed", elapsed)
	return &Envelope{
		AnswerText:            answer,
		ProcessingMethod:      strategy.Method(),
		ProcessingTimeSeconds: elapsed.Seconds(),
		TopicID:               topic.ID,
		TopicName:             topic.Name,
	}, nil
}

func (r *Router) run(ctx context.Context, strategy Strategy, topic *core.Topic, question string) (string, error) {
	switch s := strategy.(type) {
	case GraphStrategy:
		return r.answerFromGraph(ctx, topic, question, s.Mode)
	case ContextStrategy:
		return r.answerFromContext(ctx, topic, question, s.Budget)
	default:
		return "", fmt.Errorf("unknown strategy %T", strategy)
	}
}

func (r *Router) answerFromGraph(ctx context.Context, topic *core.Topic, question string, mode core.QueryMode) (string, error) {
	handle, err := r.cache.GetOrCreate(ctx, topic.ID)
	if err != nil {
		return "", err
	}
	answer, err := handle.Query(ctx, question, mode)
	if err != nil {
		return "", graphQueryError(ctx, err)
	}
	return answer, nil
}

// graphQueryError separates an engine that cannot serve from a query that
// failed while running.
func graphQueryError(ctx context.Context, err error) error {
	var (
		ese *core.ExternalServiceError
		ve  *core.ValidationError
	)
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, graph.ErrEngineClosed):
		return core.NewExternalServiceError("graph engine", core.ReasonUnavailable, true, err)
	case errors.As(err, &ese), errors.As(err, &ve):
		return err
	default:
		return core.NewExternalServiceError("graph engine", core.ReasonQueryFailed, false, err)
	}
}

func (r *Router) answerFromContext(ctx context.Context, topic *core.Topic, question string, tokens int) (string, error) {
	items, err := r.store.ContentItemsInOrder(ctx, topic.ID)
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return "", core.NewValidationError("topic", ErrNoContent)
	}

	titles := make([]string, len(items))
	texts := make([]string, len(items))
	for i, item := range items {
		titles[i] = item.Title
		texts[i] = item.Text
	}
	sections, used := budget.SelectWithinBudget(r.budgeter.Sections(titles, texts), tokens)
	if len(sections) == 0 {
		return "", core.NewValidationError("topic", ErrContextBudgetExceeded)
	}
	if len(sections) < len(items) {
		r.logger.Info("context budget reached, dropping newer items",
			"topic_id", topic.ID, "kept", len(sections), "dropped", len(items)-len(sections), "tokens", used)
	}

	prompt := buildContextPrompt(topic.Name, budget.Join(sections), question)
	answer, err := r.completer.Complete(ctx, contextSystemPrompt, prompt)
	if err != nil {
		var ese *core.ExternalServiceError
		if errors.As(err, &ese) || ctx.Err() != nil {
			return "", err
		}
		return "", core.NewExternalServiceError("completion", core.ReasonUpstream, false, err)
	}
	return answer, nil
}
