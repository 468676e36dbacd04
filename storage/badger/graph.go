package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/studyforge/core"
	"github.com/poiesic/studyforge/storage"
)

// GraphRepository implements storage.GraphRepository on a Backend.
type GraphRepository struct {
	backend *Backend
	owned   bool
}

var _ storage.GraphRepository = (*GraphRepository)(nil)

// NewGraphRepository creates a repository on backend. Closing the
// repository leaves backend open.
func NewGraphRepository(backend *Backend) *GraphRepository {
	return &GraphRepository{backend: backend}
}

// OpenGraphRepository opens a repository that owns its backend in dir.
func OpenGraphRepository(dir string, opts ...BackendOption) (*GraphRepository, error) {
	backend, err := OpenBackend(dir, opts...)
	if err != nil {
		return nil, err
	}
	return &GraphRepository{backend: backend, owned: true}, nil
}

// Close closes the backend when the repository owns it.
func (r *GraphRepository) Close() error {
	if r.owned {
		return r.backend.Close()
	}
	return nil
}

// PutDocument stores a document's chunks and entities and updates the links.
func (r *GraphRepository) PutDocument(ctx context.Context, doc *core.GraphDocument, chunks []*core.Chunk, entities []*core.Entity) error {
	return r.backend.WithTx(ctx, true, func(tx *badger.Txn) error {
		if err := deleteDocument(tx, doc.ID); err != nil {
			return err
		}

		mentions := make(map[core.ID]int)
		doc.ChunkIDs = doc.ChunkIDs[:0]
		for _, chunk := range chunks {
			chunk.DocumentID = doc.ID
			chunk.EntityIDs = uniqueIDs(chunk.EntityIDs)
			if err := putRecord(tx, makeChunkKey(chunk.ID), chunk); err != nil {
				return err
			}
			doc.ChunkIDs = append(doc.ChunkIDs, chunk.ID)

			for _, entityID := range chunk.EntityIDs {
				mentions[entityID]++
				if err := tx.Set(makeEntityChunkKey(entityID, chunk.ID), nil); err != nil {
					return err
				}
			}
			if err := adjustCooccurrence(tx, chunk.EntityIDs, 1); err != nil {
				return err
			}
		}

		doc.EntityIDs = doc.EntityIDs[:0]
		for _, entity := range entities {
			count := mentions[entity.ID]
			if count == 0 {
				continue
			}
			stored, err := getRecord[core.Entity](tx, makeEntityKey(entity.ID))
			if err != nil {
				return err
			}
			if stored == nil {
				stored = &core.Entity{ID: entity.ID, Name: entity.Name, Type: entity.Type}
			}
			stored.Mentions += count
			stored.Importance = max(stored.Importance, entity.Importance)
			if err := putRecord(tx, makeEntityKey(entity.ID), stored); err != nil {
				return err
			}
			doc.EntityIDs = append(doc.EntityIDs, entity.ID)
		}

		return putRecord(tx, makeDocumentKey(doc.ID), doc)
	})
}

// DeleteDocument removes a document and every chunk it contributed.
func (r *GraphRepository) DeleteDocument(ctx context.Context, id string) error {
	return r.backend.WithTx(ctx, true, func(tx *badger.Txn) error {
		return deleteDocument(tx, id)
	})
}

func deleteDocument(tx *badger.Txn, id string) error {
	doc, err := getRecord[core.GraphDocument](tx, makeDocumentKey(id))
	if err != nil || doc == nil {
		return err
	}

	mentions := make(map[core.ID]int)
	for _, chunkID := range doc.ChunkIDs {
		chunk, err := getRecord[core.Chunk](tx, makeChunkKey(chunkID))
		if err != nil {
			return err
		}
		if chunk == nil {
			continue
		}
		for _, entityID := range chunk.EntityIDs {
			mentions[entityID]++
			if err := tx.Delete(makeEntityChunkKey(entityID, chunkID)); err != nil {
				return err
			}
		}
		if err := adjustCooccurrence(tx, chunk.EntityIDs, -1); err != nil {
			return err
		}
		if err := tx.Delete(makeChunkKey(chunkID)); err != nil {
			return err
		}
	}

	for entityID, count := range mentions {
		key := makeEntityKey(entityID)
		entity, err := getRecord[core.Entity](tx, key)
		if err != nil {
			return err
		}
		if entity == nil {
			continue
		}
		entity.Mentions -= count
		if entity.Mentions <= 0 {
			err = tx.Delete(key)
		} else {
			err = putRecord(tx, key, entity)
		}
		if err != nil {
			return err
		}
	}
	return tx.Delete(makeDocumentKey(id))
}

// HasDocument reports whether a document is stored.
func (r *GraphRepository) HasDocument(ctx context.Context, id string) (bool, error) {
	var found bool
	err := r.backend.WithTx(ctx, false, func(tx *badger.Txn) error {
		_, err := tx.Get(makeDocumentKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		found = err == nil
		return err
	})
	return found, err
}

// FindSimilarChunks scans every chunk and ranks them by cosine similarity.
func (r *GraphRepository) FindSimilarChunks(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.ScoredChunk, error) {
	var results []*core.ScoredChunk
	queryNorm := norm(vector)
	if queryNorm == 0 {
		return results, nil
	}

	err := r.backend.WithTx(ctx, false, func(tx *badger.Txn) error {
		return forEachPrefix(ctx, tx, []byte(chunkPrefix), true, func(item *badger.Item) error {
			var chunk *core.Chunk
			err := item.Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalRecord[core.Chunk](val)
				return err
			})
			if err != nil {
				return err
			}
			if len(chunk.Vector) == 0 {
				return nil
			}
			chunkNorm := norm(chunk.Vector)
			if chunkNorm == 0 {
				return nil
			}
			similarity := dotProduct(vector, chunk.Vector) / (queryNorm * chunkNorm)
			if similarity >= minSimilarity {
				results = append(results, &core.ScoredChunk{Chunk: chunk, Score: similarity})
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(results, func(a, b *core.ScoredChunk) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return a.Chunk.Index - b.Chunk.Index
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// ChunksForEntities returns the chunks linked to any of the entities.
func (r *GraphRepository) ChunksForEntities(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error) {
	var chunks []*core.Chunk
	err := r.backend.WithTx(ctx, false, func(tx *badger.Txn) error {
		seen := make(map[core.ID]bool)
		var chunkIDs []core.ID
		for _, entityID := range ids {
			err := forEachPrefix(ctx, tx, makePartialEntityChunkKey(entityID), false, func(item *badger.Item) error {
				chunkID := trailingID(item.Key())
				if !seen[chunkID] {
					seen[chunkID] = true
					chunkIDs = append(chunkIDs, chunkID)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		for _, chunkID := range chunkIDs {
			chunk, err := getRecord[core.Chunk](tx, makeChunkKey(chunkID))
			if err != nil {
				return err
			}
			if chunk != nil {
				chunks = append(chunks, chunk)
			}
		}
		return nil
	})
	return chunks, err
}

// GetEntities returns the stored entities among ids.
func (r *GraphRepository) GetEntities(ctx context.Context, ids ...core.ID) ([]*core.Entity, error) {
	var entities []*core.Entity
	err := r.backend.WithTx(ctx, false, func(tx *badger.Txn) error {
		for _, id := range ids {
			entity, err := getRecord[core.Entity](tx, makeEntityKey(id))
			if err != nil {
				return err
			}
			if entity != nil {
				entities = append(entities, entity)
			}
		}
		return nil
	})
	return entities, err
}

// Neighbors returns the entities co-occurring with id, heaviest first.
func (r *GraphRepository) Neighbors(ctx context.Context, id core.ID, limit int) ([]core.Neighbor, error) {
	var neighbors []core.Neighbor
	err := r.backend.WithTx(ctx, false, func(tx *badger.Txn) error {
		return forEachPrefix(ctx, tx, makePartialCooccurKey(id), true, func(item *badger.Item) error {
			return item.Value(func(val []byte) error {
				neighbors = append(neighbors, core.Neighbor{
					EntityID: trailingID(item.Key()),
					Weight:   int(binary.BigEndian.Uint64(val)),
				})
				return nil
			})
		})
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(neighbors, func(a, b core.Neighbor) int {
		return b.Weight - a.Weight
	})
	if limit > 0 && len(neighbors) > limit {
		neighbors = neighbors[:limit]
	}
	return neighbors, nil
}

// Stats counts documents, chunks and entities.
func (r *GraphRepository) Stats(ctx context.Context) (core.GraphStats, error) {
	var stats core.GraphStats
	err := r.backend.WithTx(ctx, false, func(tx *badger.Txn) error {
		counters := []struct {
			prefix string
			count  *int
		}{
			{documentPrefix, &stats.Documents},
			{chunkPrefix, &stats.Chunks},
			{entityPrefix, &stats.Entities},
		}
		for _, c := range counters {
			err := forEachPrefix(ctx, tx, []byte(c.prefix), false, func(*badger.Item) error {
				*c.count++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return stats, err
}

// adjustCooccurrence adds delta to the weight of every ordered pair of
// distinct entities in ids. Weights that reach zero are deleted.
func adjustCooccurrence(tx *badger.Txn, ids []core.ID, delta int) error {
	for _, a := range ids {
		for _, b := range ids {
			if a == b {
				continue
			}
			key := makeCooccurKey(a, b)
			weight := 0
			item, err := tx.Get(key)
			switch {
			case err == nil:
				err = item.Value(func(val []byte) error {
					weight = int(binary.BigEndian.Uint64(val))
					return nil
				})
				if err != nil {
					return err
				}
			case !errors.Is(err, badger.ErrKeyNotFound):
				return err
			}

			weight += delta
			if weight <= 0 {
				err = tx.Delete(key)
			} else {
				err = tx.Set(key, binary.BigEndian.AppendUint64(nil, uint64(weight)))
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// getRecord reads and decodes the record at key, returning nil when absent.
func getRecord[T any](tx *badger.Txn, key []byte) (*T, error) {
	item, err := tx.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var record *T
	err = item.Value(func(val []byte) error {
		var err error
		record, err = storage.UnmarshalRecord[T](val)
		return err
	})
	return record, err
}

func putRecord[T any](tx *badger.Txn, key []byte, record *T) error {
	value, err := storage.MarshalRecord(record)
	if err != nil {
		return err
	}
	return tx.Set(key, value)
}

func uniqueIDs(ids []core.ID) []core.ID {
	seen := make(map[core.ID]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

func norm(v []float32) float32 {
	return float32(math.Sqrt(float64(dotProduct(v, v))))
}

