package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/studyforge/core"
	"github.com/poiesic/studyforge/storage"
)

const topicColumns = `t.topic_id, t.name, t.description, t.use_knowledge_graph, t.created_at, t.updated_at,
	t.summary, t.summary_generated_at, t.mindmap, t.mindmap_generated_at`

// CreateTopic inserts a topic.
func (s *Store) CreateTopic(ctx context.Context, topic *core.Topic) (*core.Topic, error) {
	if topic.ID == "" {
		topic.ID = core.NewID()
	}
	now := time.Now().UTC()
	if topic.CreatedAt.IsZero() {
		topic.CreatedAt = now
	}
	topic.UpdatedAt = topic.CreatedAt

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO study_topics (topic_id, name, description, use_knowledge_graph, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, topic.ID, topic.Name, topic.Description, topic.UseKnowledgeGraph,
		toUnix(topic.CreatedAt), toUnix(topic.UpdatedAt))
	if err != nil {
		return nil, core.NewStorageError("creating topic", err)
	}
	return topic, nil
}

// GetTopic retrieves a topic by ID.
func (s *Store) GetTopic(ctx context.Context, id string) (*core.Topic, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+topicColumns+` FROM study_topics t WHERE t.topic_id = ?`, id)
	topic, err := scanTopic(row)
	if err != nil {
		return nil, core.NewStorageError("getting topic", notFound(err, "topic", id))
	}
	return topic, nil
}

// ListTopics lists topics newest first with content counts.
func (s *Store) ListTopics(ctx context.Context, page storage.Page) ([]*core.Topic, error) {
	clause, args := pageClause(page)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+topicColumns+`, COUNT(c.content_id)
		FROM study_topics t
		LEFT JOIN content_items c ON c.study_topic_id = t.topic_id
		GROUP BY t.topic_id
		ORDER BY t.created_at DESC, t.rowid DESC`+clause, args...)
	if err != nil {
		return nil, core.NewStorageError("querying topics", err)
	}
	defer rows.Close()

	var topics []*core.Topic
	for rows.Next() {
		var count int
		topic, err := scanTopic(rows, &count)
		if err != nil {
			return nil, core.NewStorageError("scanning topic", err)
		}
		topic.ContentCount = count
		topics = append(topics, topic)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewStorageError("iterating topics", err)
	}
	return topics, nil
}

// UpdateTopic applies a partial update.
func (s *Store) UpdateTopic(ctx context.Context, id string, update core.TopicUpdate) (*core.Topic, error) {
	sets := make([]string, 0, 4)
	args := make([]any, 0, 5)
	if update.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *update.Name)
	}
	if update.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *update.Description)
	}
	if update.UseKnowledgeGraph != nil {
		sets = append(sets, "use_knowledge_graph = ?")
		args = append(args, *update.UseKnowledgeGraph)
	}
	if len(sets) == 0 {
		return s.GetTopic(ctx, id)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, toUnix(time.Now()), id)

	res, err := s.db.ExecContext(ctx,
		"UPDATE study_topics SET "+strings.Join(sets, ", ")+" WHERE topic_id = ?", args...)
	if err != nil {
		return nil, core.NewStorageError("updating topic", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, core.NewNotFoundError("topic", id)
	}
	return s.GetTopic(ctx, id)
}

// DeleteTopic removes a topic and its content items.
func (s *Store) DeleteTopic(ctx context.Context, id string) ([]string, error) {
	var files []string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			"SELECT file_path FROM content_items WHERE study_topic_id = ? AND file_path IS NOT NULL", id)
		if err != nil {
			return err
		}
		for rows.Next() {
			var path string
			if err := rows.Scan(&path); err != nil {
				rows.Close()
				return err
			}
			files = append(files, path)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, "DELETE FROM study_topics WHERE topic_id = ?", id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return core.NewNotFoundError("topic", id)
		}
		return nil
	})
	if err != nil {
		return nil, core.NewStorageError("deleting topic", err)
	}
	return files, nil
}

// SaveSummary caches a generated summary on the topic row.
func (s *Store) SaveSummary(ctx context.Context, id, summary string, at time.Time) error {
	return s.saveDigest(ctx, id, "summary", summary, at)
}

// SaveMindmap caches a generated mindmap on the topic row.
func (s *Store) SaveMindmap(ctx context.Context, id, mindmap string, at time.Time) error {
	return s.saveDigest(ctx, id, "mindmap", mindmap, at)
}

func (s *Store) saveDigest(ctx context.Context, id, column, value string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE study_topics SET %[1]s = ?, %[1]s_generated_at = ? WHERE topic_id = ?", column),
		value, toUnix(at), id)
	if err != nil {
		return core.NewStorageError("saving "+column, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NewNotFoundError("topic", id)
	}
	return nil
}

// ClearDigests drops cached summary and mindmap for a topic.
func (s *Store) ClearDigests(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE study_topics
		SET summary = NULL, summary_generated_at = NULL, mindmap = NULL, mindmap_generated_at = NULL
		WHERE topic_id = ?`, id)
	return core.NewStorageError("clearing digests", err)
}

// scanTopic scans topicColumns followed by any extra destinations.
func scanTopic(row rowScanner, extra ...any) (*core.Topic, error) {
	var (
		topic                core.Topic
		createdAt, updatedAt int64
		summary, mindmap     sql.NullString
		summaryAt, mindmapAt sql.NullInt64
	)
	dest := []any{&topic.ID, &topic.Name, &topic.Description, &topic.UseKnowledgeGraph,
		&createdAt, &updatedAt, &summary, &summaryAt, &mindmap, &mindmapAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	topic.CreatedAt = fromUnix(createdAt)
	topic.UpdatedAt = fromUnix(updatedAt)
	topic.Summary = summary.String
	topic.SummaryGeneratedAt = fromNullUnix(summaryAt)
	topic.Mindmap = mindmap.String
	topic.MindmapGeneratedAt = fromNullUnix(mindmapAt)
	return &topic, nil
}
