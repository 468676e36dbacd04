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

package graph

import (
	"context"
	"log/slog"

	"github.com/poiesic/studyforge/ai"
	"github.com/poiesic/studyforge/budget"
	"github.com/poiesic/studyforge/storage"
	badgerstore "github.com/poiesic/studyforge/storage/badger"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	defaultChunkTokens    = 600
	defaultChunkOverlap   = 60
	defaultContextBudget  = 12000
	defaultMaxChunks      = 20
	defaultMinSimilarity  = 0.35
	defaultConcurrency    = 4
	defaultEmbedBatchSize = 32
	defaultNeighborLimit  = 8
)

// BadgerEngine is the default Engine, storing the graph in badger.
type BadgerEngine struct {
	repo      storage.GraphRepository
	embedder  ai.Embedder
	extractor ai.ConceptExtractor
	completer ai.Completer
	budgeter  *budget.Budgeter
	splitter  textsplitter.TextSplitter

	chunkTokens   int
	chunkOverlap  int
	contextBudget int
	maxChunks     int
	minSimilarity float32
	concurrency   int
	monitor       Monitor
	logger        *slog.Logger
}

var _ Engine = (*BadgerEngine)(nil)

// EngineOption configures a BadgerEngine.
type EngineOption func(*BadgerEngine)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *BadgerEngine) {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
	}
}

// WithChunking sets the chunk size and overlap, in tokens.
func WithChunking(tokens, overlap int) EngineOption {
	return func(e *BadgerEngine) {
		if tokens > 0 {
			e.chunkTokens = tokens
		}
		if overlap >= 0 && overlap < e.chunkTokens {
			e.chunkOverlap = overlap
		}
	}
}

// WithContextBudget caps the tokens of retrieved text sent to the completer.
func WithContextBudget(tokens int) EngineOption {
	return func(e *BadgerEngine) {
		if tokens > 0 {
			e.contextBudget = tokens
		}
	}
}

// WithMaxChunks caps the number of chunks retrieved per query.
func WithMaxChunks(n int) EngineOption {
	return func(e *BadgerEngine) {
		if n > 0 {
			e.maxChunks = n
		}
	}
}

// WithMinSimilarity sets the cosine threshold for vector retrieval.
func WithMinSimilarity(min float32) EngineOption {
	return func(e *BadgerEngine) {
		e.minSimilarity = min
	}
}

// WithConcurrency bounds concurrent model calls during insert.
func WithConcurrency(n int) EngineOption {
	return func(e *BadgerEngine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithMonitor observes each query's retrieval stages.
func WithMonitor(m Monitor) EngineOption {
	return func(e *BadgerEngine) {
		if m != nil {
			e.monitor = m
		}
	}
}

// NewBadgerEngine creates an engine over repo. The engine owns repo and
// closes it on Close.
func NewBadgerEngine(repo storage.GraphRepository, provider ai.AIProvider, budgeter *budget.Budgeter, opts ...EngineOption) (*BadgerEngine, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}
	if budgeter == nil {
		return nil, ErrBudgeterRequired
	}

	e := &BadgerEngine{
		repo:          repo,
		embedder:      provider.Embedder(),
		extractor:     provider.ConceptExtractor(),
		completer:     provider.Completer(),
		budgeter:      budgeter,
		chunkTokens:   defaultChunkTokens,
		chunkOverlap:  defaultChunkOverlap,
		contextBudget: defaultContextBudget,
		maxChunks:     defaultMaxChunks,
		minSimilarity: defaultMinSimilarity,
		concurrency:   defaultConcurrency,
		monitor:       noopMonitor{},
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "graph-engine")

	e.splitter = textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(e.chunkTokens),
		textsplitter.WithChunkOverlap(e.chunkOverlap),
		textsplitter.WithLenFunc(budgeter.Count),
	)
	return e, nil
}

// NewBadgerFactory returns a Factory opening a badger-backed engine in the
// topic directory. Engines log through logger tagged with their topic.
func NewBadgerFactory(provider ai.AIProvider, budgeter *budget.Budgeter, logger *slog.Logger, opts ...EngineOption) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, topicID, dir string) (Engine, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		topicLogger := logger.With("topic_id", topicID)

		repo, err := badgerstore.OpenGraphRepository(dir, badgerstore.WithLogger(topicLogger))
		if err != nil {
			return nil, err
		}
		engineOpts := append([]EngineOption{WithLogger(topicLogger)}, opts...)
		engine, err := NewBadgerEngine(repo, provider, budgeter, engineOpts...)
		if err != nil {
			repo.Close()
			return nil, err
		}
		return engine, nil
	}
}

// Close closes the engine's repository.
func (e *BadgerEngine) Close() error {
	return e.repo.Close()
}
