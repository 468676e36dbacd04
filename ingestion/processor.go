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

package ingestion

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/poiesic/studyforge/budget"
	"github.com/poiesic/studyforge/core"
	"github.com/poiesic/studyforge/extract"
	"github.com/poiesic/studyforge/graph"
	"github.com/poiesic/studyforge/storage"
)

// Extractor produces text for a content kind. *extract.Registry implements it.
type Extractor interface {
	Supports(kind core.ContentType) bool
	Extract(ctx context.Context, kind core.ContentType, payload core.Payload) (*extract.Result, error)
}

// processor performs the work of one task once it is processing.
type processor interface {
	// process turns the task into a content item and commits it together
	// with the task's done transition.
	process(ctx context.Context, task *core.Task) (*core.ContentItem, error)
}

// contentProcessor extracts text, indexes it into the topic graph when the
// topic uses one, and completes the task.
type contentProcessor struct {
	store     storage.Store
	extractor Extractor
	cache     *graph.Cache
	budgeter  *budget.Budgeter
	logger    *slog.Logger
}

func (p *contentProcessor) process(ctx context.Context, task *core.Task) (*core.ContentItem, error) {
	if _, err := p.store.GetTopic(ctx, task.TopicID); err != nil {
		return nil, err
	}

	res, err := p.extractor.Extract(ctx, task.Kind, task.Payload)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	item := &core.ContentItem{
		ID:            core.NewID(),
		TopicID:       task.TopicID,
		Type:          task.Kind,
		Title:         res.Title,
		Text:          res.Text,
		SourceURL:     res.SourceURL,
		FilePath:      res.FilePath,
		Metadata:      res.Metadata,
		ContentLength: utf8.RuneCountInString(res.Text),
		TokenCount:    p.budgeter.Count(res.Text),
		CreatedAt:     time.Now().UTC(),
	}

	// The topic may have changed during extraction. Read it again under the
	// topic lock and hold the lock until the item is committed.
	unlock := p.cache.RLockTopic(task.TopicID)
	defer unlock()
	topic, err := p.store.GetTopic(ctx, task.TopicID)
	if err != nil {
		return nil, err
	}

	var handle *graph.Handle
	if topic.UseKnowledgeGraph {
		handle, err = p.cache.GetOrCreate(ctx, task.TopicID)
		if err != nil {
			return nil, err
		}
		if err := handle.Insert(ctx, graph.Document{ID: item.ID, Title: item.Title, Text: item.Text}); err != nil {
			return nil, err
		}
	}

	if err := p.store.CompleteTask(ctx, task.ID, item); err != nil {
		if handle != nil {
			p.compensate(handle, item.ID)
		}
		return nil, err
	}

	// Cached digests no longer describe the topic.
	clearCtx, cancel := detached()
	defer cancel()
	if err := p.store.ClearDigests(clearCtx, task.TopicID); err != nil {
		p.logger.Warn("failed to clear topic digests", "topic_id", task.TopicID, "err", err)
	}
	return item, nil
}

// compensate removes a document whose item was never persisted.
func (p *contentProcessor) compensate(handle *graph.Handle, docID string) {
	ctx, cancel := detached()
	defer cancel()
	if err := handle.Delete(ctx, docID); err != nil {
		p.logger.Error("failed to remove orphaned graph document",
			"topic_id", handle.TopicID(), "document_id", docID, "err", err)
	}
}

// detached returns a bounded context for bookkeeping that must run even
// after a task's own context has ended.
func detached() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}
