package tasks

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/garnizeh/freelance/internal/db"
)

// DefaultMaxAttempts applies when a task is inserted without a limit.
const DefaultMaxAttempts = 5

// DefaultLease is how long a claimed task may stay running before another
// worker may claim it again.
const DefaultLease = 5 * time.Minute

// Execer is satisfied by *sql.DB and *sql.Tx, so tasks can be inserted inside
// the transaction that produced them.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Insert marshals payload and queues a task of type typ through e.
func Insert(ctx context.Context, e Execer, typ string, payload any, maxAttempts int) (int64, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	now := time.Now().UTC().Unix()
	q := `INSERT INTO tasks(type, payload, status, attempts, max_attempts, priority, scheduled_at, created, updated) VALUES(?,?,?,?,?,?,?,?,?)`
	res, err := e.ExecContext(ctx, q, typ, string(b), StatusQueued, 0, maxAttempts, 100, now, now, now)
	if err != nil {
		return 0, fmt.Errorf("enqueue failed: %w", err)
	}

	return res.LastInsertId()
}

type Repository struct {
	db    *db.DB
	lease time.Duration
}

func NewRepository(d *db.DB) *Repository { return &Repository{db: d, lease: DefaultLease} }

// SetLease changes how long a running task is held before it is reclaimed.
// Non-positive values restore DefaultLease.
func (r *Repository) SetLease(d time.Duration) {
	if d <= 0 {
		d = DefaultLease
	}
	r.lease = d
}

// runnable matches tasks waiting for a worker, plus running tasks whose
// worker stopped touching them before the lease ran out.
const runnable = `((status = 'queued' OR status = 'retry') OR (status = 'running' AND updated <= ?))`

// Enqueue inserts a task and returns the new ID
func (r *Repository) Enqueue(ctx context.Context, typ string, payload any, maxAttempts int) (int64, error) {
	return Insert(ctx, r.db.GetConn(), typ, payload, maxAttempts)
}

// FetchNext claims the next runnable task respecting priority and schedule.
// Tasks left running past the lease, e.g. by a crashed worker, are claimed
// again. It returns nil, nil when nothing is runnable.
func (r *Repository) FetchNext(ctx context.Context) (*Task, error) {
	for {
		now := time.Now().UTC().Unix()
		expired := now - int64(r.lease/time.Second)
		q := `SELECT id FROM tasks WHERE ` + runnable + ` AND (next_try_at IS NULL OR next_try_at <= ?) AND scheduled_at <= ? ORDER BY priority ASC, scheduled_at ASC, id ASC LIMIT 1`
		var id int64
		if err := r.db.QueryRow(ctx, q, expired, now, now).Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}
			return nil, fmt.Errorf("fetch next task: %w", err)
		}

		// claim; another worker may have won the race, in which case look again
		res, err := r.db.Exec(ctx, `UPDATE tasks SET status = ?, updated = ? WHERE id = ? AND `+runnable, StatusRunning, now, id, expired)
		if err != nil {
			return nil, fmt.Errorf("claim task %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}

		return r.Get(ctx, id)
	}
}

// Get loads a task by id, returning nil, nil when it does not exist
func (r *Repository) Get(ctx context.Context, id int64) (*Task, error) {
	q := `SELECT id, type, payload, status, attempts, max_attempts, priority, scheduled_at, next_try_at, last_error, created, updated FROM tasks WHERE id = ?`
	var (
		t           Task
		payload     sql.NullString
		scheduledAt int64
		nextTry     sql.NullInt64
		lastError   sql.NullString
		created     int64
		updated     int64
	)
	err := r.db.QueryRow(ctx, q, id).Scan(&t.ID, &t.Type, &payload, &t.Status, &t.Attempts, &t.MaxAttempts, &t.Priority, &scheduledAt, &nextTry, &lastError, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}

	t.ScheduledAt = time.Unix(scheduledAt, 0)
	t.Created = time.Unix(created, 0)
	t.Updated = time.Unix(updated, 0)
	if payload.Valid {
		t.Payload = json.RawMessage(payload.String)
	}
	if nextTry.Valid {
		nt := time.Unix(nextTry.Int64, 0)
		t.NextTryAt = &nt
	}
	if lastError.Valid {
		t.LastError = lastError.String
	}

	return &t, nil
}

// UpdateTask updates attempts, status, next_try_at, last_error
func (r *Repository) UpdateTask(ctx context.Context, t *Task) error {
	var nextTry any
	if t.NextTryAt != nil {
		nextTry = t.NextTryAt.Unix()
	}
	q := `UPDATE tasks SET status = ?, attempts = ?, next_try_at = ?, last_error = ?, updated = ? WHERE id = ?`
	_, err := r.db.Exec(ctx, q, t.Status, t.Attempts, nextTry, t.LastError, time.Now().UTC().Unix(), t.ID)

	return err
}

// MoveToDeadLetter moves a task to dead_letter_tasks and deletes the original
func (r *Repository) MoveToDeadLetter(ctx context.Context, t *Task) error {
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	insert := `INSERT INTO dead_letter_tasks(task_id, type, payload, attempts, last_error, failed_at) VALUES(?,?,?,?,?,?)`
	if _, err := tx.ExecContext(ctx, insert, t.ID, t.Type, string(t.Payload), t.Attempts, t.LastError, time.Now().UTC().Unix()); err != nil {
		return fmt.Errorf("insert dead letter: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, t.ID); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}

	return tx.Commit()
}

// CountDeadLetters returns the number of tasks that exhausted their attempts
func (r *Repository) CountDeadLetters(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM dead_letter_tasks`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
