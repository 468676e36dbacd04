package digest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/poiesic/studyforge/ai"
	"github.com/poiesic/studyforge/budget"
	"github.com/poiesic/studyforge/core"
)

const (
	// DefaultSummaryBudget is the token budget for summary materials.
	DefaultSummaryBudget = 120000

	// DefaultMindmapBudget is the token budget for mindmap materials.
	DefaultMindmapBudget = 100000

	generateTimeout = 5 * time.Minute
)

var (
	// ErrNoContent is returned for a topic with no content items.
	ErrNoContent = errors.New("topic has no content to digest")

	// ErrStoreRequired is returned when a store is not provided.
	ErrStoreRequired = errors.New("content store required")

	// ErrCompleterRequired is returned when a completer is not provided.
	ErrCompleterRequired = errors.New("completer required")

	// ErrBudgeterRequired is returned when a token budgeter is not provided.
	ErrBudgeterRequired = errors.New("token budgeter required")
)

// Kind selects a digest type.
type Kind string

const (
	KindSummary Kind = "summary"
	KindMindmap Kind = "mindmap"
)

// Digest is a generated or cached topic digest.
type Digest struct {
	TopicID     string    `json:"topic_id"`
	TopicName   string    `json:"topic_name"`
	Kind        Kind      `json:"kind"`
	Text        string    `json:"text"`
	GeneratedAt time.Time `json:"generated_at"`
	Cached      bool      `json:"cached"`
	ItemsUsed   int       `json:"items_used,omitempty"`
	ItemsTotal  int       `json:"items_total,omitempty"`
	Tokens      int       `json:"tokens,omitempty"`
}

// Store is the part of the content store digests need.
type Store interface {
	GetTopic(ctx context.Context, id string) (*core.Topic, error)
	ContentItemsInOrder(ctx context.Context, topicID string) ([]*core.ContentItem, error)
	SaveSummary(ctx context.Context, id, summary string, at time.Time) error
	SaveMindmap(ctx context.Context, id, mindmap string, at time.Time) error
}

// Service generates topic digests.
type Service struct {
	store         Store
	completer     ai.Completer
	budgeter      *budget.Budgeter
	summaryBudget int
	mindmapBudget int
	logger        *slog.Logger
	group         singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithBudgets sets the token budgets for summary and mindmap materials.
func WithBudgets(summary, mindmap int) Option {
	return func(s *Service) {
		if summary > 0 {
			s.summaryBudget = summary
		}
		if mindmap > 0 {
			s.mindmapBudget = mindmap
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a Service.
func NewService(store Store, completer ai.Completer, budgeter *budget.Budgeter, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if completer == nil {
		return nil, ErrCompleterRequired
	}
	if budgeter == nil {
		return nil, ErrBudgeterRequired
	}
	s := &Service{
		store:         store,
		completer:     completer,
		budgeter:      budgeter,
		summaryBudget: DefaultSummaryBudget,
		mindmapBudget: DefaultMindmapBudget,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "digest")
	return s, nil
}

// Summary returns the topic's summary, generating it when none is cached or
// refresh is set.
func (s *Service) Summary(ctx context.Context, topicID string, refresh bool) (*Digest, error) {
	return s.get(ctx, KindSummary, topicID, refresh)
}

// Mindmap returns the topic's Mermaid mindmap, generating it when none is
// cached or refresh is set.
func (s *Service) Mindmap(ctx context.Context, topicID string, refresh bool) (*Digest, error) {
	return s.get(ctx, KindMindmap, topicID, refresh)
}

func (s *Service) get(ctx context.Context, kind Kind, topicID string, refresh bool) (*Digest, error) {
	topic, err := s.store.GetTopic(ctx, topicID)
	if err != nil {
		return nil, err
	}
	if !refresh {
		if d := cached(topic, kind); d != nil {
			return d, nil
		}
	}

	// Callers share one generation. It runs detached so one caller giving
	// up does not fail the others; each caller still honours its own ctx.
	genCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(string(kind)+":"+topicID, func() (any, error) {
		genCtx, cancel := context.WithTimeout(genCtx, generateTimeout)
		defer cancel()
		return s.generate(genCtx, kind, topic)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		d := *res.Val.(*Digest)
		return &d, nil
	}
}

func cached(topic *core.Topic, kind Kind) *Digest {
	var (
		text string
		at   *time.Time
	)
	switch kind {
	case KindSummary:
		text, at = topic.Summary, topic.SummaryGeneratedAt
	case KindMindmap:
		text, at = topic.Mindmap, topic.MindmapGeneratedAt
	}
	if text == "" || at == nil {
		return nil
	}
	return &Digest{
		TopicID:     topic.ID,
		TopicName:   topic.Name,
		Kind:        kind,
		Text:        text,
		GeneratedAt: *at,
		Cached:      true,
	}
}

func (s *Service) generate(ctx context.Context, kind Kind, topic *core.Topic) (*Digest, error) {
	start := time.Now()
	items, err := s.store.ContentItemsInOrder(ctx, topic.ID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, core.NewValidationError("topic", ErrNoContent)
	}

	titles := make([]string, len(items))
	texts := make([]string, len(items))
	for i, item := range items {
		titles[i] = item.Title
		texts[i] = describeItem(item)
	}

	tokens := s.summaryBudget
	if kind == KindMindmap {
		tokens = s.mindmapBudget
	}
	sections, used := budget.SelectWithinBudget(s.budgeter.Sections(titles, texts), tokens)
	if len(sections) == 0 {
		return nil, core.NewValidationError("topic", fmt.Errorf("%w: first item exceeds %d tokens", ErrNoContent, tokens))
	}
	if len(sections) < len(items) {
		s.logger.Warn("digest materials truncated to budget",
			"topic_id", topic.ID, "kind", kind, "kept", len(sections), "total", len(items))
	}
	materials := budget.Join(sections)

	var (
		text string
		now  = time.Now().UTC()
	)
	switch kind {
	case KindSummary:
		prompt := buildPrompt(summaryInstructions, topic.Name, topic.Description, materials, "Provide the summary below:")
		text, err = s.completer.Complete(ctx, summarySystemPrompt, prompt)
		if err != nil {
			return nil, completionError(ctx, err)
		}
		text = strings.TrimSpace(text)
		err = s.store.SaveSummary(ctx, topic.ID, text, now)
	case KindMindmap:
		prompt := buildPrompt(mindmapInstructions, topic.Name, topic.Description, materials, "Generate the Mermaid mindmap source code:")
		text, err = s.completer.Complete(ctx, mindmapSystemPrompt, prompt)
		if err != nil {
			return nil, completionError(ctx, err)
		}
		text = cleanMindmap(text, topic.Name)
		err = s.store.SaveMindmap(ctx, topic.ID, text, now)
	default:
		return nil, fmt.Errorf("unknown digest kind %q", kind)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("digest generated", "topic_id", topic.ID, "kind", kind,
		"items", len(sections), "tokens", used, "elapsed", time.Since(start))
	return &Digest{
		TopicID:     topic.ID,
		TopicName:   topic.Name,
		Kind:        kind,
		Text:        text,
		GeneratedAt: now,
		ItemsUsed:   len(sections),
		ItemsTotal:  len(items),
		Tokens:      used,
	}, nil
}

func completionError(ctx context.Context, err error) error {
	var ese *core.ExternalServiceError
	if errors.As(err, &ese) || ctx.Err() != nil {
		return err
	}
	return core.NewExternalServiceError("completion", core.ReasonUpstream, false, err)
}

// describeItem prefixes an item's text with its type and provenance.
func describeItem(item *core.ContentItem) string {
	var sb strings.Builder
	sb.WriteString("Content Type: ")
	sb.WriteString(string(item.Type))
	switch {
	case item.SourceURL != "":
		sb.WriteString("\nSource: ")
		sb.WriteString(item.SourceURL)
	case item.FilePath != "":
		sb.WriteString("\nFile: ")
		sb.WriteString(filepath.Base(item.FilePath))
	}
	sb.WriteString("\n")
	sb.WriteString(item.Text)
	return sb.String()
}
