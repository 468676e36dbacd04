package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/poiesic/studyforge/ai"
	"github.com/poiesic/studyforge/core"
	"golang.org/x/sync/errgroup"
)

// Insert splits doc into chunks, extracts the entities each chunk mentions,
// embeds the chunks and stores the result under doc.ID.
func (e *BadgerEngine) Insert(ctx context.Context, doc Document) error {
	text := strings.TrimSpace(doc.Text)
	if text == "" {
		return core.NewValidationError("text", ErrEmptyDocument)
	}

	pieces, err := e.splitter.SplitText(text)
	if err != nil {
		return fmt.Errorf("splitting document: %w", err)
	}
	pieces = nonEmpty(pieces)
	if len(pieces) == 0 {
		return core.NewValidationError("text", ErrEmptyDocument)
	}
	e.logger.Debug("inserting document", "document_id", doc.ID, "chunks", len(pieces))

	chunks := make([]*core.Chunk, len(pieces))
	extracted := make([][]ai.ExtractedConcept, len(pieces))
	for i, piece := range pieces {
		chunks[i] = &core.Chunk{
			ID:         core.ChunkID(doc.ID, i),
			DocumentID: doc.ID,
			Index:      i,
			Text:       piece,
		}
	}

	// Extraction runs per chunk; embeddings go out in batches.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, piece := range pieces {
		g.Go(func() error {
			concepts, err := e.extractor.ExtractConcepts(gctx, piece)
			if err != nil {
				return err
			}
			extracted[i] = concepts
			return nil
		})
	}
	for start := 0; start < len(pieces); start += defaultEmbedBatchSize {
		end := min(start+defaultEmbedBatchSize, len(pieces))
		g.Go(func() error {
			vectors, err := e.embedder.EmbedTexts(gctx, pieces[start:end])
			if err != nil {
				return err
			}
			if len(vectors) != end-start {
				return fmt.Errorf("embedding result mismatch. expected %d, received %d", end-start, len(vectors))
			}
			for j, v := range vectors {
				chunks[start+j].Vector = v
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.logger.Error("error indexing document", "document_id", doc.ID, "err", err)
		return err
	}

	entities := make(map[core.ID]*core.Entity)
	order := make([]core.ID, 0)
	for i, concepts := range extracted {
		for _, c := range concepts {
			name := normalizeEntityName(c.Name)
			if name == "" {
				continue
			}
			id := core.EntityID(name)
			chunks[i].EntityIDs = append(chunks[i].EntityIDs, id)
			if existing, ok := entities[id]; ok {
				existing.Importance = max(existing.Importance, c.Importance)
				continue
			}
			entities[id] = &core.Entity{ID: id, Name: name, Type: c.Type, Importance: c.Importance}
			order = append(order, id)
		}
	}
	list := make([]*core.Entity, len(order))
	for i, id := range order {
		list[i] = entities[id]
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	graphDoc := &core.GraphDocument{ID: doc.ID, Title: doc.Title}
	if err := e.repo.PutDocument(ctx, graphDoc, chunks, list); err != nil {
		return engineError("storing graph document", err)
	}
	e.logger.Info("indexed document", "document_id", doc.ID, "chunks", len(chunks), "entities", len(list))
	return nil
}

// Delete removes everything document id contributed to the graph.
func (e *BadgerEngine) Delete(ctx context.Context, id string) error {
	if err := e.repo.DeleteDocument(ctx, id); err != nil {
		return engineError("deleting graph document", err)
	}
	e.logger.Debug("deleted document", "document_id", id)
	return nil
}

func normalizeEntityName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

func nonEmpty(pieces []string) []string {
	out := pieces[:0]
	for _, p := range pieces {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}
