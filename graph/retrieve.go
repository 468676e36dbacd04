package graph

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/poiesic/studyforge/budget"
	"github.com/poiesic/studyforge/core"
)

// Hybrid scoring weights.
const (
	bothBoost     = 1.5
	localScore    = 1.2
	globalScore   = 1.0
	verbatimBoost = 0.3
)

// Query retrieves chunks for question in mode and asks the completer to
// answer from them. An empty mode means hybrid.
func (e *BadgerEngine) Query(ctx context.Context, question string, mode core.QueryMode) (string, error) {
	if err := core.ValidateQuestion(question); err != nil {
		return "", err
	}
	if mode == "" {
		mode = core.DefaultQueryMode
	}

	e.monitor.Start(question, mode)
	chunks, err := e.retrieve(ctx, question, mode)
	if err != nil {
		return "", err
	}
	e.monitor.Finish(chunks)

	if len(chunks) == 0 {
		e.logger.Debug("no chunks retrieved", "mode", mode)
		return NoContextAnswer, nil
	}

	titles := make([]string, len(chunks))
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		titles[i] = "excerpt " + strconv.Itoa(i+1)
		texts[i] = c.Chunk.Text
	}
	selected, used := budget.SelectWithinBudget(e.budgeter.Sections(titles, texts), e.contextBudget)
	if len(selected) == 0 {
		return NoContextAnswer, nil
	}
	e.logger.Debug("answering from graph", "mode", mode, "chunks", len(selected), "tokens", used)

	return e.completer.Complete(ctx, answerSystemPrompt, buildAnswerPrompt(budget.Join(selected), question))
}

func (e *BadgerEngine) retrieve(ctx context.Context, question string, mode core.QueryMode) ([]*core.ScoredChunk, error) {
	switch mode {
	case core.QueryModeNaive:
		return e.semantic(ctx, question)
	case core.QueryModeLocal:
		entities, err := e.questionEntities(ctx, question)
		if err != nil {
			return nil, err
		}
		return e.local(ctx, entities)
	case core.QueryModeGlobal:
		entities, err := e.questionEntities(ctx, question)
		if err != nil {
			return nil, err
		}
		return e.global(ctx, entities)
	case core.QueryModeHybrid:
		return e.hybrid(ctx, question)
	default:
		return nil, core.NewValidationError("mode", fmt.Errorf("%w: %q", core.ErrInvalidQueryMode, mode))
	}
}

// semantic ranks chunks by vector similarity to the question.
func (e *BadgerEngine) semantic(ctx context.Context, question string) ([]*core.ScoredChunk, error) {
	vector, err := e.embedder.EmbedText(ctx, question)
	if err != nil {
		e.logger.Error("error generating embedding for question", "err", err)
		return nil, err
	}
	hits, err := e.repo.FindSimilarChunks(ctx, vector, e.minSimilarity, e.maxChunks)
	if err != nil {
		return nil, engineError("searching chunks", err)
	}
	e.monitor.AfterSemanticSearch(hits)
	return hits, nil
}

// questionEntities extracts concepts from the question and keeps the ones
// present in the graph.
func (e *BadgerEngine) questionEntities(ctx context.Context, question string) ([]*core.Entity, error) {
	extracted, err := e.extractor.ExtractConcepts(ctx, question)
	if err != nil {
		e.logger.Error("error extracting concepts from question", "err", err)
		return nil, err
	}
	ids := make([]core.ID, 0, len(extracted))
	for _, c := range extracted {
		if name := normalizeEntityName(c.Name); name != "" {
			ids = append(ids, core.EntityID(name))
		}
	}
	entities, err := e.repo.GetEntities(ctx, ids...)
	if err != nil {
		return nil, engineError("looking up entities", err)
	}
	e.monitor.AfterEntityMatch(entities)
	return entities, nil
}

// local returns chunks mentioning the entities, ranked by how many of them
// each chunk mentions.
func (e *BadgerEngine) local(ctx context.Context, entities []*core.Entity) ([]*core.ScoredChunk, error) {
	if len(entities) == 0 {
		return nil, nil
	}
	weights := make(map[core.ID]int, len(entities))
	ids := make([]core.ID, len(entities))
	for i, entity := range entities {
		ids[i] = entity.ID
		weights[entity.ID] = 1
	}
	return e.chunksByWeight(ctx, ids, weights)
}

// global returns chunks reached through the co-occurrence neighbourhood of
// the entities, ranked by the summed edge weight of the neighbours each
// chunk mentions.
func (e *BadgerEngine) global(ctx context.Context, entities []*core.Entity) ([]*core.ScoredChunk, error) {
	if len(entities) == 0 {
		return nil, nil
	}
	weights := make(map[core.ID]int)
	var all []core.Neighbor
	for _, entity := range entities {
		neighbors, err := e.repo.Neighbors(ctx, entity.ID, defaultNeighborLimit)
		if err != nil {
			return nil, engineError("walking neighbours", err)
		}
		for _, n := range neighbors {
			weights[n.EntityID] += n.Weight
		}
		all = append(all, neighbors...)
	}
	e.monitor.AfterNeighborhood(all)
	if len(weights) == 0 {
		return nil, nil
	}

	ids := make([]core.ID, 0, len(weights))
	for id := range weights {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return e.chunksByWeight(ctx, ids, weights)
}

func (e *BadgerEngine) chunksByWeight(ctx context.Context, ids []core.ID, weights map[core.ID]int) ([]*core.ScoredChunk, error) {
	chunks, err := e.repo.ChunksForEntities(ctx, ids...)
	if err != nil {
		return nil, engineError("loading chunks", err)
	}
	scored := make([]*core.ScoredChunk, 0, len(chunks))
	for _, chunk := range chunks {
		total := 0
		for _, id := range chunk.EntityIDs {
			total += weights[id]
		}
		scored = append(scored, &core.ScoredChunk{Chunk: chunk, Score: float32(total)})
	}
	return e.rank(scored), nil
}

// hybrid merges semantic, local and global hits. Chunks found both
// semantically and through the graph are boosted, and chunks containing
// every content word of the question get a verbatim bonus.
func (e *BadgerEngine) hybrid(ctx context.Context, question string) ([]*core.ScoredChunk, error) {
	semanticHits, err := e.semantic(ctx, question)
	if err != nil {
		return nil, err
	}
	entities, err := e.questionEntities(ctx, question)
	if err != nil {
		return nil, err
	}
	localHits, err := e.local(ctx, entities)
	if err != nil {
		return nil, err
	}
	globalHits, err := e.global(ctx, entities)
	if err != nil {
		return nil, err
	}

	type candidate struct {
		chunk      *core.Chunk
		similarity float32
		semantic   bool
		local      bool
		global     bool
	}
	candidates := make(map[core.ID]*candidate)
	get := func(chunk *core.Chunk) *candidate {
		c, ok := candidates[chunk.ID]
		if !ok {
			c = &candidate{chunk: chunk}
			candidates[chunk.ID] = c
		}
		return c
	}
	for _, hit := range semanticHits {
		c := get(hit.Chunk)
		c.semantic, c.similarity = true, hit.Score
	}
	for _, hit := range localHits {
		get(hit.Chunk).local = true
	}
	for _, hit := range globalHits {
		get(hit.Chunk).global = true
	}

	results := make([]*core.ScoredChunk, 0, len(candidates))
	for _, c := range candidates {
		var score float32
		switch {
		case c.semantic && (c.local || c.global):
			score = bothBoost * c.similarity
		case c.local:
			score = localScore
		case c.global:
			score = globalScore
		default:
			score = c.similarity
		}
		if containsAllQueryWords(c.chunk.Text, question) {
			score += verbatimBoost
		}
		results = append(results, &core.ScoredChunk{Chunk: c.chunk, Score: score})
	}
	return e.rank(results), nil
}

// rank sorts by score descending, breaking ties by document and position,
// and keeps the best maxChunks.
func (e *BadgerEngine) rank(results []*core.ScoredChunk) []*core.ScoredChunk {
	slices.SortFunc(results, func(a, b *core.ScoredChunk) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		case a.Chunk.DocumentID != b.Chunk.DocumentID:
			if a.Chunk.DocumentID < b.Chunk.DocumentID {
				return -1
			}
			return 1
		}
		return a.Chunk.Index - b.Chunk.Index
	})
	if len(results) > e.maxChunks {
		results = results[:e.maxChunks]
	}
	return results
}
