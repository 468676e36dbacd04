// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package studyforge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/poiesic/studyforge/ai"
	"github.com/poiesic/studyforge/ai/openai"
	"github.com/poiesic/studyforge/budget"
	"github.com/poiesic/studyforge/core"
	"github.com/poiesic/studyforge/digest"
	"github.com/poiesic/studyforge/extract"
	"github.com/poiesic/studyforge/graph"
	"github.com/poiesic/studyforge/ingestion"
	"github.com/poiesic/studyforge/query"
	"github.com/poiesic/studyforge/reindex"
	"github.com/poiesic/studyforge/storage"
	"github.com/poiesic/studyforge/storage/sqlite"
)

// Service wires the store, engine cache, task manager, query router and
// digest generator for one data directory.
type Service struct {
	store     *sqlite.Store
	cache     *graph.Cache
	provider  ai.AIProvider
	budgeter  *budget.Budgeter
	manager   *ingestion.Manager
	router    *query.Router
	digests   *digest.Service
	rebuilder *reindex.Rebuilder
	uploadDir string
	options   *serviceOptions
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	aiConfig        *ai.Config
	provider        ai.AIProvider
	factory         graph.Factory
	tokenizer       budget.Tokenizer
	ragDir          string
	uploadDir       string
	workers         int
	retention       time.Duration
	retentionSet    bool
	shutdownTimeout time.Duration
	contextBudget   int
	summaryBudget   int
	mindmapBudget   int
	converter       extract.Converter
	transcripts     extract.TranscriptFetcher
	progress        io.Writer
	logger          *slog.Logger
}

// WithAIConfig sets the configuration for the default OpenAI-compatible provider.
func WithAIConfig(cfg *ai.Config) Option {
	return func(o *serviceOptions) {
		o.aiConfig = cfg
	}
}

// WithProvider uses provider instead of building one from the AI config.
// The Service closes it on Close.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *serviceOptions) {
		o.provider = provider
	}
}

// WithEngineFactory replaces the badger-backed graph engine.
func WithEngineFactory(factory graph.Factory) Option {
	return func(o *serviceOptions) {
		o.factory = factory
	}
}

// WithTokenizer sets the tokenizer used for budgets.
// Default is a tiktoken tokenizer for gpt-4o.
func WithTokenizer(t budget.Tokenizer) Option {
	return func(o *serviceOptions) {
		o.tokenizer = t
	}
}

// WithRAGDir sets the directory holding per-topic graph directories.
// Default is "rag" next to the database.
func WithRAGDir(dir string) Option {
	return func(o *serviceOptions) {
		o.ragDir = dir
	}
}

// WithUploadDir sets where uploaded files are kept.
// Default is "uploads" next to the database.
func WithUploadDir(dir string) Option {
	return func(o *serviceOptions) {
		o.uploadDir = dir
	}
}

// WithWorkers bounds concurrent ingestion tasks.
func WithWorkers(n int) Option {
	return func(o *serviceOptions) {
		o.workers = n
	}
}

// WithTaskRetention sets how long terminal tasks are kept. Zero disables pruning.
func WithTaskRetention(d time.Duration) Option {
	return func(o *serviceOptions) {
		o.retention = d
		o.retentionSet = true
	}
}

// WithShutdownTimeout bounds how long Close waits for running tasks.
// Default is 30s.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *serviceOptions) {
		o.shutdownTimeout = d
	}
}

// WithBudgets sets the token budgets for context answers, summaries and mindmaps.
func WithBudgets(contextTokens, summaryTokens, mindmapTokens int) Option {
	return func(o *serviceOptions) {
		o.contextBudget = contextTokens
		o.summaryBudget = summaryTokens
		o.mindmapBudget = mindmapTokens
	}
}

// WithConverter enables document formats beyond the natively read ones.
func WithConverter(c extract.Converter) Option {
	return func(o *serviceOptions) {
		o.converter = c
	}
}

// WithTranscriptFetcher enables youtube ingestion.
func WithTranscriptFetcher(f extract.TranscriptFetcher) Option {
	return func(o *serviceOptions) {
		o.transcripts = f
	}
}

// WithReindexProgress reports graph rebuild progress to w.
func WithReindexProgress(w io.Writer) Option {
	return func(o *serviceOptions) {
		o.progress = w
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Open opens or creates the database at dbPath and starts the task manager.
// Tasks left unfinished by a previous process are marked failed.
func Open(ctx context.Context, dbPath string, opts ...Option) (*Service, error) {
	options := &serviceOptions{
		aiConfig:        ai.DefaultConfig(),
		shutdownTimeout: 30 * time.Second,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	base := filepath.Dir(dbPath)
	if options.ragDir == "" {
		options.ragDir = filepath.Join(base, "rag")
	}
	if options.uploadDir == "" {
		options.uploadDir = filepath.Join(base, "uploads")
	}
	for _, dir := range []string{base, options.ragDir, options.uploadDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	logger := options.logger

	if options.tokenizer == nil {
		options.tokenizer = budget.NewTokenizer("gpt-4o", logger)
	}
	budgeter, err := budget.New(options.tokenizer)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.NewStore(dbPath, sqlite.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	factory := options.factory
	if factory == nil {
		factory = graph.NewBadgerFactory(provider, budgeter, logger)
	}
	cache, err := graph.NewCache(options.ragDir, factory, graph.WithCacheLogger(logger))
	if err != nil {
		provider.Close()
		store.Close()
		return nil, err
	}

	s := &Service{
		store:     store,
		cache:     cache,
		provider:  provider,
		budgeter:  budgeter,
		uploadDir: options.uploadDir,
		options:   options,
		logger:    logger.With("component", "studyforge"),
	}
	if err := s.wire(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) wire(ctx context.Context) error {
	o := s.options

	var extractOpts []extract.StandardOption
	extractOpts = append(extractOpts, extract.WithLogger(o.logger))
	if o.converter != nil {
		extractOpts = append(extractOpts, extract.WithConverter(o.converter))
	}
	if o.transcripts != nil {
		extractOpts = append(extractOpts, extract.WithTranscriptFetcher(o.transcripts))
	}
	extractors := extract.Standard(s.provider.ImageDescriber(), extractOpts...)

	managerOpts := []ingestion.Option{ingestion.WithLogger(o.logger)}
	if o.workers > 0 {
		managerOpts = append(managerOpts, ingestion.WithMaxWorkers(o.workers))
	}
	if o.retentionSet {
		managerOpts = append(managerOpts, ingestion.WithTaskRetention(o.retention))
	}
	manager, err := ingestion.NewManager(s.store, extractors, s.cache, s.budgeter, managerOpts...)
	if err != nil {
		return err
	}
	s.manager = manager
	n, err := manager.Reconcile(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Warn("marked tasks from a previous run as interrupted", "count", n)
	}

	s.router, err = query.NewRouter(s.store, s.cache, s.provider.Completer(), s.budgeter,
		query.WithContextBudget(o.contextBudget), query.WithLogger(o.logger))
	if err != nil {
		return err
	}
	s.digests, err = digest.NewService(s.store, s.provider.Completer(), s.budgeter,
		digest.WithBudgets(o.summaryBudget, o.mindmapBudget), digest.WithLogger(o.logger))
	if err != nil {
		return err
	}
	s.rebuilder, err = reindex.NewRebuilder(s.store, s.cache,
		reindex.WithProgress(o.progress, 10), reindex.WithLogger(o.logger))
	return err
}

// Close stops the task manager, interrupting tasks still running after the
// shutdown timeout, and releases storage and AI resources.
func (s *Service) Close() error {
	var errs []error
	if s.manager != nil {
		if err := s.manager.Shutdown(s.options.shutdownTimeout); err != nil {
			s.logger.Error("error shutting down task manager", "err", err)
			errs = append(errs, err)
		}
	}
	if err := s.closeResources(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Service) closeResources() error {
	var errs []error
	if err := s.cache.Close(); err != nil {
		s.logger.Error("error closing graph engines", "err", err)
		errs = append(errs, err)
	}
	if err := s.provider.Close(); err != nil {
		s.logger.Error("error closing AI provider", "err", err)
		errs = append(errs, err)
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing store", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Store returns the content store.
func (s *Service) Store() storage.Store {
	return s.store
}

// Budgeter returns the token budgeter.
func (s *Service) Budgeter() *budget.Budgeter {
	return s.budgeter
}

// CreateTopic creates a topic.
func (s *Service) CreateTopic(ctx context.Context, name, description string, useKnowledgeGraph bool) (*core.Topic, error) {
	if err := core.ValidateTopicName(name); err != nil {
		return nil, err
	}
	return s.store.CreateTopic(ctx, &core.Topic{
		Name:              strings.TrimSpace(name),
		Description:       description,
		UseKnowledgeGraph: useKnowledgeGraph,
	})
}

// Topic returns a topic.
func (s *Service) Topic(ctx context.Context, id string) (*core.Topic, error) {
	return s.store.GetTopic(ctx, id)
}

// ListTopics lists topics newest first with their content counts.
func (s *Service) ListTopics(ctx context.Context, limit, offset int) ([]*core.Topic, error) {
	return s.store.ListTopics(ctx, storage.Page{Limit: limit, Offset: offset})
}

// UpdateTopic applies a partial update. Turning the knowledge graph on
// rebuilds the topic's graph from its stored content; turning it off
// discards the graph.
func (s *Service) UpdateTopic(ctx context.Context, id string, update core.TopicUpdate) (*core.Topic, error) {
	if err := core.ValidateTopicUpdate(update); err != nil {
		return nil, err
	}
	before, err := s.store.GetTopic(ctx, id)
	if err != nil {
		return nil, err
	}
	topic, err := s.store.UpdateTopic(ctx, id, update)
	if err != nil {
		return nil, err
	}

	switch {
	case !before.UseKnowledgeGraph && topic.UseKnowledgeGraph:
		if _, err := s.rebuilder.Rebuild(ctx, id); err != nil {
			return topic, fmt.Errorf("rebuilding graph: %w", err)
		}
	case before.UseKnowledgeGraph && !topic.UseKnowledgeGraph:
		unlock := s.cache.LockTopic(id)
		err := s.cache.Reset(id)
		unlock()
		if err != nil {
			s.logger.Warn("error discarding graph", "topic_id", id, "err", err)
		}
	}
	return topic, nil
}

// DeleteTopic removes a topic, its content items, its graph and the files
// uploaded for it.
func (s *Service) DeleteTopic(ctx context.Context, id string) error {
	unlock := s.cache.LockTopic(id)
	defer unlock()

	files, err := s.store.DeleteTopic(ctx, id)
	if err != nil {
		return err
	}
	if err := s.cache.Reset(id); err != nil {
		s.logger.Warn("error removing graph", "topic_id", id, "err", err)
	}
	for _, path := range files {
		s.removeUpload(path)
	}
	s.logger.Info("topic deleted", "topic_id", id, "files", len(files))
	return nil
}

// ListContent lists a topic's content items newest first.
func (s *Service) ListContent(ctx context.Context, topicID string, limit, offset int) ([]*core.ContentItem, error) {
	if _, err := s.store.GetTopic(ctx, topicID); err != nil {
		return nil, err
	}
	return s.store.ListContentItems(ctx, topicID, storage.Page{Limit: limit, Offset: offset})
}

// DeleteContent removes a content item, its backing file and its graph
// entries, and clears the topic's cached digests.
func (s *Service) DeleteContent(ctx context.Context, id string) error {
	item, err := s.store.DeleteContentItem(ctx, id)
	if err != nil {
		return err
	}
	// A rebuild that read the item before it was deleted finishes first.
	unlock := s.cache.RLockTopic(item.TopicID)
	topic, err := s.store.GetTopic(ctx, item.TopicID)
	if err == nil && topic.UseKnowledgeGraph {
		handle, herr := s.cache.GetOrCreate(ctx, item.TopicID)
		if herr == nil {
			herr = handle.Delete(ctx, item.ID)
		}
		if herr != nil {
			s.logger.Warn("error removing item from graph", "topic_id", item.TopicID, "content_id", id, "err", herr)
		}
	}
	unlock()
	if err := s.store.ClearDigests(ctx, item.TopicID); err != nil {
		s.logger.Warn("error clearing digests", "topic_id", item.TopicID, "err", err)
	}
	if item.FilePath != "" {
		s.removeUpload(item.FilePath)
	}
	return nil
}

// removeUpload deletes path when it lives under the upload directory.
// Files ingested from elsewhere are left alone.
func (s *Service) removeUpload(path string) {
	rel, err := filepath.Rel(s.uploadDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("error removing uploaded file", "path", path, "err", err)
	}
}

// SaveUpload copies r into the topic's upload directory and returns the
// stored path, suitable for a document or image payload.
func (s *Service) SaveUpload(ctx context.Context, topicID, filename string, r io.Reader) (string, error) {
	if _, err := s.store.GetTopic(ctx, topicID); err != nil {
		return "", err
	}
	name := filepath.Base(filename)
	if name == "." || name == string(filepath.Separator) {
		return "", core.NewValidationError("filename", core.ErrInvalidPayload)
	}
	dir := filepath.Join(s.uploadDir, topicID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating upload directory: %w", err)
	}
	path := filepath.Join(dir, core.NewID()+"_"+name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating upload: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("writing upload: %w", err)
	}
	return path, nil
}

// Submit records an ingestion task and returns its id.
func (s *Service) Submit(ctx context.Context, kind core.TaskKind, topicID string, payload core.Payload) (string, error) {
	return s.manager.Submit(ctx, kind, topicID, payload)
}

// Task returns a task's current state.
func (s *Service) Task(ctx context.Context, id string) (*core.Task, error) {
	return s.manager.Status(ctx, id)
}

// CancelTask cancels a queued or running task.
func (s *Service) CancelTask(id string) bool {
	return s.manager.Cancel(id)
}

// WaitTask polls a task until it is terminal or ctx ends.
func (s *Service) WaitTask(ctx context.Context, id string, interval time.Duration) (*core.Task, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		task, err := s.manager.Status(ctx, id)
		if err != nil {
			return nil, err
		}
		if task.Status.Terminal() {
			return task, nil
		}
		select {
		case <-ctx.Done():
			return task, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Ask answers a question against a topic.
func (s *Service) Ask(ctx context.Context, topicID, question, mode string) (*query.Envelope, error) {
	return s.router.Answer(ctx, topicID, question, mode)
}

// Summary returns the topic's summary, generating it if needed.
func (s *Service) Summary(ctx context.Context, topicID string, refresh bool) (*digest.Digest, error) {
	return s.digests.Summary(ctx, topicID, refresh)
}

// Mindmap returns the topic's mindmap, generating it if needed.
func (s *Service) Mindmap(ctx context.Context, topicID string, refresh bool) (*digest.Digest, error) {
	return s.digests.Mindmap(ctx, topicID, refresh)
}

// Reindex rebuilds a knowledge-graph topic from its stored content.
func (s *Service) Reindex(ctx context.Context, topicID string) (*reindex.Report, error) {
	return s.rebuilder.Rebuild(ctx, topicID)
}
