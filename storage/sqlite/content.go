package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/poiesic/studyforge/core"
	"github.com/poiesic/studyforge/storage"
)

const contentColumns = `content_id, study_topic_id, content_type, title, content, source_url, file_path,
	metadata, content_length, token_count, created_at`

// GetContentItem retrieves a single content item by ID.
func (s *Store) GetContentItem(ctx context.Context, id string) (*core.ContentItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+contentColumns+` FROM content_items WHERE content_id = ?`, id)
	item, err := scanContentItem(row)
	if err != nil {
		return nil, core.NewStorageError("getting content item", notFound(err, "content item", id))
	}
	return item, nil
}

// ListContentItems lists a topic's items newest first.
func (s *Store) ListContentItems(ctx context.Context, topicID string, page storage.Page) ([]*core.ContentItem, error) {
	clause, args := pageClause(page)
	return s.queryContentItems(ctx, `SELECT `+contentColumns+` FROM content_items
		WHERE study_topic_id = ? ORDER BY created_at DESC, rowid DESC`+clause,
		append([]any{topicID}, args...)...)
}

// ContentItemsInOrder returns all of a topic's items in creation order.
func (s *Store) ContentItemsInOrder(ctx context.Context, topicID string) ([]*core.ContentItem, error) {
	return s.queryContentItems(ctx, `SELECT `+contentColumns+` FROM content_items
		WHERE study_topic_id = ? ORDER BY created_at ASC, rowid ASC`, topicID)
}

// CountContentItems returns the number of items attached to a topic.
func (s *Store) CountContentItems(ctx context.Context, topicID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM content_items WHERE study_topic_id = ?", topicID).Scan(&count)
	if err != nil {
		return 0, core.NewStorageError("counting content items", err)
	}
	return count, nil
}

// DeleteContentItem removes an item and returns the removed record.
func (s *Store) DeleteContentItem(ctx context.Context, id string) (*core.ContentItem, error) {
	var item *core.ContentItem
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+contentColumns+` FROM content_items WHERE content_id = ?`, id)
		var err error
		item, err = scanContentItem(row)
		if err != nil {
			return notFound(err, "content item", id)
		}
		_, err = tx.ExecContext(ctx, "DELETE FROM content_items WHERE content_id = ?", id)
		return err
	})
	if err != nil {
		return nil, core.NewStorageError("deleting content item", err)
	}
	return item, nil
}

func (s *Store) queryContentItems(ctx context.Context, query string, args ...any) ([]*core.ContentItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.NewStorageError("querying content items", err)
	}
	defer rows.Close()

	var items []*core.ContentItem
	for rows.Next() {
		item, err := scanContentItem(rows)
		if err != nil {
			return nil, core.NewStorageError("scanning content item", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewStorageError("iterating content items", err)
	}
	return items, nil
}

// insertContentItem writes item inside tx. Used by task completion.
func insertContentItem(ctx context.Context, tx *sql.Tx, item *core.ContentItem) error {
	if item.ID == "" {
		item.ID = core.NewID()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	if item.SourceURL != "" && item.FilePath != "" {
		return fmt.Errorf("%w: content item has both source url and file path", storage.ErrInvalidQuery)
	}
	metadata := item.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO content_items (`+contentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.ID, item.TopicID, string(item.Type), item.Title, item.Text,
		nullString(item.SourceURL), nullString(item.FilePath), string(metadataJSON),
		item.ContentLength, item.TokenCount, toUnix(item.CreatedAt))
	return err
}

func scanContentItem(row rowScanner) (*core.ContentItem, error) {
	var (
		item                core.ContentItem
		contentType         string
		sourceURL, filePath sql.NullString
		metadataJSON        string
		createdAt           int64
	)
	if err := row.Scan(&item.ID, &item.TopicID, &contentType, &item.Title, &item.Text,
		&sourceURL, &filePath, &metadataJSON, &item.ContentLength, &item.TokenCount, &createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(metadataJSON), &item.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshaling metadata: %w", err)
	}
	item.Type = core.ContentType(contentType)
	item.SourceURL = sourceURL.String
	item.FilePath = filePath.String
	item.CreatedAt = fromUnix(createdAt)
	return &item, nil
}
