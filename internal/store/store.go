package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nissyi-gh/taskr/internal/model"
	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

// TaskStore is the on-device cache: the full task set, the queue of
// mutations the remote store has not acknowledged, and a few metadata keys.
type TaskStore struct {
	db *sql.DB
}

// DefaultPath returns $XDG_DATA_HOME/taskr/taskr.db, creating the directory.
func DefaultPath() (string, error) {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	dir := filepath.Join(dataHome, "taskr")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, "taskr.db"), nil
}

// Open opens (or creates) the SQLite database and ensures the schema exists.
func Open(dbPath string) (*TaskStore, error) {
	if dbPath == "" {
		var err error
		dbPath, err = DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("determine db path: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection keeps ":memory:" databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id          TEXT    PRIMARY KEY,
			title       TEXT    NOT NULL,
			description TEXT,
			status      TEXT    NOT NULL DEFAULT 'To Do',
			due_date    TEXT,
			created_at  TEXT    NOT NULL,
			updated_at  TEXT    NOT NULL,
			parent_id   TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS pending_changes (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			type       TEXT    NOT NULL,
			task       TEXT    NOT NULL,
			created_at TEXT    NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	if err := ensureColumn(db, "tasks", "is_subtask", "INTEGER NOT NULL DEFAULT 0"); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate is_subtask: %w", err)
	}
	if err := ensureColumn(db, "tasks", "position", "INTEGER NOT NULL DEFAULT 0"); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate position: %w", err)
	}

	return &TaskStore{db: db}, nil
}

// ensureColumn adds column to table unless a previous version created it.
func ensureColumn(db *sql.DB, table, column, ddl string) error {
	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		return err
	}
	defer rows.Close()

	found := false
	for rows.Next() {
		var cid int
		var name, typ string
		var notNull, pk int
		var dfltValue sql.NullString
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dfltValue, &pk); err != nil {
			return err
		}
		if name == column {
			found = true
			break
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	if !found {
		_, err := db.Exec("ALTER TABLE " + table + " ADD COLUMN " + column + " " + ddl)
		return err
	}
	return nil
}

func scanTask(scanner interface{ Scan(...any) error }) (model.Task, error) {
	var t model.Task
	var status, createdStr, updatedStr string
	var description, dueDate, parentID sql.NullString
	var isSubtask int
	if err := scanner.Scan(&t.ID, &t.Title, &description, &status, &dueDate,
		&createdStr, &updatedStr, &parentID, &isSubtask); err != nil {
		return model.Task{}, err
	}
	t.Status = model.Status(status)
	t.CreatedAt, _ = time.Parse(timeLayout, createdStr)
	t.UpdatedAt, _ = time.Parse(timeLayout, updatedStr)
	if description.Valid {
		d := description.String
		t.Description = &d
	}
	if dueDate.Valid {
		d := dueDate.String
		t.DueDate = &d
	}
	if parentID.Valid {
		p := parentID.String
		t.ParentID = &p
	}
	t.IsSubtask = isSubtask != 0
	return t, nil
}

// ReplaceAll atomically discards the cached task set and stores tasks.
func (s *TaskStore) ReplaceAll(ctx context.Context, tasks []model.Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tasks"); err != nil {
		return fmt.Errorf("clear tasks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO tasks
		(id, title, description, status, due_date, created_at, updated_at, parent_id, is_subtask, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for pos, t := range model.NewIndex(tasks).Flatten() {
		sub := 0
		if t.IsSubtask {
			sub = 1
		}
		if _, err := stmt.ExecContext(ctx, t.ID, t.Title, nullable(t.Description), string(t.Status),
			nullable(t.DueDate), t.CreatedAt.UTC().Format(timeLayout), t.UpdatedAt.UTC().Format(timeLayout),
			nullable(t.ParentID), sub, pos); err != nil {
			return fmt.Errorf("insert task %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	return nil
}

// ReadAll returns the cached top-level tasks with subtasks populated, in
// the order they were stored. A never-written cache yields an empty slice.
func (s *TaskStore) ReadAll(ctx context.Context) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, description, status, due_date,
		created_at, updated_at, parent_id, is_subtask FROM tasks ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var flat []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		flat = append(flat, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return model.Assemble(flat), nil
}

// EnqueueChange appends a pending change. Changes are never deduplicated.
func (s *TaskStore) EnqueueChange(ctx context.Context, change model.PendingChange) error {
	snapshot, err := json.Marshal(change.Task)
	if err != nil {
		return fmt.Errorf("encode pending %s: %w", change.Type, err)
	}
	if change.Timestamp.IsZero() {
		change.Timestamp = time.Now()
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO pending_changes (type, task, created_at) VALUES (?, ?, ?)",
		string(change.Type), string(snapshot), change.Timestamp.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("enqueue pending %s for task %s: %w", change.Type, change.Task.ID, err)
	}
	return nil
}

// ReadPendingChanges returns the queue in insertion order.
func (s *TaskStore) ReadPendingChanges(ctx context.Context) ([]model.PendingChange, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT type, task, created_at FROM pending_changes ORDER BY seq ASC")
	if err != nil {
		return nil, fmt.Errorf("query pending changes: %w", err)
	}
	defer rows.Close()

	var changes []model.PendingChange
	for rows.Next() {
		var typ, snapshot, createdStr string
		if err := rows.Scan(&typ, &snapshot, &createdStr); err != nil {
			return nil, fmt.Errorf("scan pending change: %w", err)
		}
		c := model.PendingChange{Type: model.ChangeType(typ)}
		if err := json.Unmarshal([]byte(snapshot), &c.Task); err != nil {
			return nil, fmt.Errorf("decode pending change: %w", err)
		}
		c.Timestamp, _ = time.Parse(timeLayout, createdStr)
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// ClearPendingChanges empties the queue.
func (s *TaskStore) ClearPendingChanges(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM pending_changes"); err != nil {
		return fmt.Errorf("clear pending changes: %w", err)
	}
	return nil
}

// Meta returns the value stored under key.
func (s *TaskStore) Meta(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get meta %s: %w", key, err)
	}
	return v, true, nil
}

// SetMeta stores value under key, replacing any previous value.
func (s *TaskStore) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		return fmt.Errorf("set meta %s: %w", key, err)
	}
	return nil
}

// DeleteMeta removes key.
func (s *TaskStore) DeleteMeta(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM meta WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete meta %s: %w", key, err)
	}
	return nil
}

// Close closes the database connection.
func (s *TaskStore) Close() error {
	return s.db.Close()
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
