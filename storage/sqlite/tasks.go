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

const taskColumns = `task_id, kind, status, topic_id, payload, result, error, created_at, updated_at`

// CreateTask inserts a pending task.
func (s *Store) CreateTask(ctx context.Context, task *core.Task) (*core.Task, error) {
	if task.ID == "" {
		task.ID = core.NewID()
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = task.CreatedAt
	task.Status = core.TaskStatusPending

	payloadJSON, err := json.Marshal(task.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshalling payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (task_id, kind, status, topic_id, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, task.ID, string(task.Kind), string(task.Status), task.TopicID, string(payloadJSON),
		toUnix(task.CreatedAt), toUnix(task.UpdatedAt))
	if err != nil {
		return nil, core.NewStorageError("creating task", err)
	}
	return task, nil
}

// GetTask retrieves a task by ID.
func (s *Store) GetTask(ctx context.Context, id string) (*core.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE task_id = ?`, id)
	task, err := scanTask(row)
	if err != nil {
		return nil, core.NewStorageError("getting task", notFound(err, "task", id))
	}
	return task, nil
}

// MarkProcessing moves a pending task to processing.
func (s *Store) MarkProcessing(ctx context.Context, id string) error {
	return s.transition(ctx, id, "UPDATE tasks SET status = ?, updated_at = ? WHERE task_id = ? AND status = ?",
		string(core.TaskStatusProcessing), toUnix(time.Now()), id, string(core.TaskStatusPending))
}

// CompleteTask inserts item and marks the task done in one transaction.
func (s *Store) CompleteTask(ctx context.Context, id string, item *core.ContentItem) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertContentItem(ctx, tx, item); err != nil {
			return err
		}
		resultJSON, err := json.Marshal(core.TaskResult{ContentID: item.ID})
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE tasks SET status = ?, result = ?, error = NULL, updated_at = ?
			WHERE task_id = ? AND status = ?
		`, string(core.TaskStatusDone), string(resultJSON), toUnix(time.Now()),
			id, string(core.TaskStatusProcessing))
		if err != nil {
			return err
		}
		return s.checkTransition(ctx, tx, res, id)
	})
	if err != nil {
		return core.NewStorageError("completing task", err)
	}
	return nil
}

// FailTask moves a non-terminal task to failed.
func (s *Store) FailTask(ctx context.Context, id string, taskErr *core.TaskError) error {
	errJSON, err := json.Marshal(taskErr)
	if err != nil {
		return fmt.Errorf("marshalling task error: %w", err)
	}
	return s.transition(ctx, id, `
		UPDATE tasks SET status = ?, error = ?, updated_at = ?
		WHERE task_id = ? AND status IN (?, ?)`,
		string(core.TaskStatusFailed), string(errJSON), toUnix(time.Now()),
		id, string(core.TaskStatusPending), string(core.TaskStatusProcessing))
}

// FailUnfinishedTasks fails every pending or processing task.
func (s *Store) FailUnfinishedTasks(ctx context.Context, taskErr *core.TaskError) (int, error) {
	errJSON, err := json.Marshal(taskErr)
	if err != nil {
		return 0, fmt.Errorf("marshalling task error: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, error = ?, updated_at = ?
		WHERE status IN (?, ?)`,
		string(core.TaskStatusFailed), string(errJSON), toUnix(time.Now()),
		string(core.TaskStatusPending), string(core.TaskStatusProcessing))
	if err != nil {
		return 0, core.NewStorageError("failing unfinished tasks", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// PruneTasks deletes terminal tasks last updated before cutoff.
func (s *Store) PruneTasks(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE status IN (?, ?) AND updated_at < ?`,
		string(core.TaskStatusDone), string(core.TaskStatusFailed), toUnix(cutoff))
	if err != nil {
		return 0, core.NewStorageError("pruning tasks", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// transition runs a guarded single-row status update.
func (s *Store) transition(ctx context.Context, id, query string, args ...any) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		return s.checkTransition(ctx, tx, res, id)
	})
	if err != nil {
		return core.NewStorageError("updating task status", err)
	}
	return nil
}

// checkTransition tells a missing task apart from a disallowed transition
// when a guarded update touched no rows.
func (s *Store) checkTransition(ctx context.Context, tx *sql.Tx, res sql.Result, id string) error {
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}
	var status string
	err := tx.QueryRowContext(ctx, "SELECT status FROM tasks WHERE task_id = ?", id).Scan(&status)
	if err != nil {
		return notFound(err, "task", id)
	}
	return fmt.Errorf("%w: task %s is %s", storage.ErrInvalidTransition, id, status)
}

func scanTask(row rowScanner) (*core.Task, error) {
	var (
		task                  core.Task
		kind, status, payload string
		result, taskErr       sql.NullString
		createdAt, updatedAt  int64
	)
	if err := row.Scan(&task.ID, &kind, &status, &task.TopicID, &payload,
		&result, &taskErr, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	task.Kind = core.TaskKind(kind)
	task.Status = core.TaskStatus(status)
	if err := json.Unmarshal([]byte(payload), &task.Payload); err != nil {
		return nil, fmt.Errorf("unmarshaling payload: %w", err)
	}
	if result.Valid {
		task.Result = &core.TaskResult{}
		if err := json.Unmarshal([]byte(result.String), task.Result); err != nil {
			return nil, fmt.Errorf("unmarshaling result: %w", err)
		}
	}
	if taskErr.Valid {
		task.Error = &core.TaskError{}
		if err := json.Unmarshal([]byte(taskErr.String), task.Error); err != nil {
			return nil, fmt.Errorf("unmarshaling error: %w", err)
		}
	}
	task.CreatedAt = fromUnix(createdAt)
	task.UpdatedAt = fromUnix(updatedAt)
	return &task, nil
}
