package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/TSGCFO/OmniAgent-v2/internal/domain"
)

// SQLiteThreadStore implements domain.ThreadStore using SQLite.
type SQLiteThreadStore struct {
	db *sql.DB
	// SQLite allows one writer at a time; serialize writes to avoid
	// SQLITE_BUSY under concurrent threads.
	mu sync.Mutex
}

// NewSQLiteThreadStore opens (or creates) a SQLite database at dbPath and
// runs the schema migration.
func NewSQLiteThreadStore(dbPath string) (*SQLiteThreadStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open thread db: %w", err)
	}
	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate thread db: %w", err)
	}
	return &SQLiteThreadStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS threads (
			id          TEXT PRIMARY KEY,
			resource_id TEXT NOT NULL,
			metadata    TEXT NOT NULL DEFAULT '{}',
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_threads_resource ON threads(resource_id);

		CREATE TABLE IF NOT EXISTS messages (
			id         TEXT PRIMARY KEY,
			thread_id  TEXT NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
			role       TEXT NOT NULL,
			content    TEXT NOT NULL,
			name       TEXT NOT NULL DEFAULT '',
			tool_calls TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id, id);
	`)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteThreadStore) Close() error {
	return s.db.Close()
}

// CreateThread creates a thread, generating a ULID when threadID is empty.
// Creating an existing ID returns the existing thread unchanged, but only
// for its owning resource; another resource's ID reads as not found so a
// request can never join a foreign conversation.
func (s *SQLiteThreadStore) CreateThread(ctx context.Context, resourceID, threadID string, metadata map[string]string) (*domain.Thread, error) {
	const op = "SQLiteThreadStore.CreateThread"
	if resourceID == "" {
		return nil, domain.NewDomainError(op, domain.ErrInvalidInput, "resource id is required")
	}

	if threadID != "" {
		existing, err := s.GetThread(ctx, threadID)
		if err == nil {
			if existing.ResourceID != resourceID {
				return nil, domain.NewDomainError(op, domain.ErrThreadNotFound, threadID)
			}
			return existing, nil
		}
		if !errors.Is(err, domain.ErrThreadNotFound) {
			return nil, err
		}
	} else {
		threadID = ulid.Make().String()
	}

	if metadata == nil {
		metadata = map[string]string{}
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, domain.NewDomainError(op, domain.ErrMemoryStore, err.Error())
	}

	now := time.Now().UTC()
	s.mu.Lock()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO threads (id, resource_id, metadata, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		threadID, resourceID, string(metaJSON),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	s.mu.Unlock()
	if err != nil {
		return nil, domain.NewDomainError(op, domain.ErrMemoryStore, err.Error())
	}

	return &domain.Thread{
		ID:         threadID,
		ResourceID: resourceID,
		CreatedAt:  now,
		UpdatedAt:  now,
		Metadata:   metadata,
	}, nil
}

// GetThread returns one thread by ID.
func (s *SQLiteThreadStore) GetThread(ctx context.Context, threadID string) (*domain.Thread, error) {
	const op = "SQLiteThreadStore.GetThread"
	row := s.db.QueryRowContext(ctx,
		"SELECT id, resource_id, metadata, created_at, updated_at FROM threads WHERE id = ?", threadID,
	)
	t, err := scanThread(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewDomainError(op, domain.ErrThreadNotFound, threadID)
	}
	if err != nil {
		return nil, domain.NewDomainError(op, domain.ErrMemoryStore, err.Error())
	}
	return t, nil
}

// ThreadsByResource lists a user's threads, newest first.
func (s *SQLiteThreadStore) ThreadsByResource(ctx context.Context, resourceID string) ([]domain.Thread, error) {
	const op = "SQLiteThreadStore.ThreadsByResource"
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, resource_id, metadata, created_at, updated_at FROM threads WHERE resource_id = ? ORDER BY updated_at DESC",
		resourceID,
	)
	if err != nil {
		return nil, domain.NewDomainError(op, domain.ErrMemoryStore, err.Error())
	}
	defer rows.Close()

	var threads []domain.Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, domain.NewDomainError(op, domain.ErrMemoryStore, err.Error())
		}
		threads = append(threads, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewDomainError(op, domain.ErrMemoryStore, err.Error())
	}
	return threads, nil
}

// Append adds messages to a thread's history in order. Message IDs are
// ULIDs, so insertion order and lexical order agree.
func (s *SQLiteThreadStore) Append(ctx context.Context, threadID string, msgs []domain.Message) error {
	const op = "SQLiteThreadStore.Append"
	if threadID == "" {
		return domain.NewDomainError(op, domain.ErrInvalidInput, "thread id is required")
	}
	if len(msgs) == 0 {
		return nil
	}
	if _, err := s.GetThread(ctx, threadID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewDomainError(op, domain.ErrMemoryStore, err.Error())
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, msg := range msgs {
		id := msg.ID
		if id == "" {
			id = ulid.Make().String()
		}
		callsJSON, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return domain.NewDomainError(op, domain.ErrMemoryStore, err.Error())
		}
		ts := msg.Timestamp
		if ts.IsZero() {
			ts = now
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO messages (id, thread_id, role, content, name, tool_calls, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
			id, threadID, msg.Role, msg.Content, msg.Name, string(callsJSON), ts.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return domain.NewDomainError(op, domain.ErrMemoryStore, err.Error())
		}
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE threads SET updated_at = ? WHERE id = ?",
		now.Format(time.RFC3339Nano), threadID,
	); err != nil {
		return domain.NewDomainError(op, domain.ErrMemoryStore, err.Error())
	}

	if err := tx.Commit(); err != nil {
		return domain.NewDomainError(op, domain.ErrMemoryStore, err.Error())
	}
	return nil
}

// History returns the most recent limit messages in chronological order.
// limit <= 0 returns everything.
func (s *SQLiteThreadStore) History(ctx context.Context, threadID string, limit int) ([]domain.Message, error) {
	const op = "SQLiteThreadStore.History"
	if _, err := s.GetThread(ctx, threadID); err != nil {
		return nil, err
	}

	query := "SELECT id, role, content, name, tool_calls, created_at FROM messages WHERE thread_id = ? ORDER BY id DESC"
	args := []any{threadID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.NewDomainError(op, domain.ErrMemoryStore, err.Error())
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		var callsJSON, createdAt string
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.Name, &callsJSON, &createdAt); err != nil {
			return nil, domain.NewDomainError(op, domain.ErrMemoryStore, err.Error())
		}
		if err := json.Unmarshal([]byte(callsJSON), &m.ToolCalls); err != nil {
			return nil, domain.NewDomainError(op, domain.ErrMemoryStore, err.Error())
		}
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			m.Timestamp = ts
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewDomainError(op, domain.ErrMemoryStore, err.Error())
	}

	// The query walks newest-first for the LIMIT; flip to chronological.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Clear deletes a thread's messages, keeping the thread handle.
func (s *SQLiteThreadStore) Clear(ctx context.Context, threadID string) error {
	const op = "SQLiteThreadStore.Clear"
	if _, err := s.GetThread(ctx, threadID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, "DELETE FROM messages WHERE thread_id = ?", threadID); err != nil {
		return domain.NewDomainError(op, domain.ErrMemoryStore, err.Error())
	}
	return nil
}

// DeleteThread removes the thread and its messages.
func (s *SQLiteThreadStore) DeleteThread(ctx context.Context, threadID string) error {
	const op = "SQLiteThreadStore.DeleteThread"
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, "DELETE FROM messages WHERE thread_id = ?", threadID); err != nil {
		return domain.NewDomainError(op, domain.ErrMemoryStore, err.Error())
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM threads WHERE id = ?", threadID)
	if err != nil {
		return domain.NewDomainError(op, domain.ErrMemoryStore, err.Error())
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.NewDomainError(op, domain.ErrThreadNotFound, threadID)
	}
	return nil
}

func scanThread(row interface{ Scan(...any) error }) (*domain.Thread, error) {
	var t domain.Thread
	var metaJSON, createdAt, updatedAt string
	if err := row.Scan(&t.ID, &t.ResourceID, &metaJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(metaJSON), &t.Metadata); err != nil {
		return nil, err
	}
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		t.CreatedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		t.UpdatedAt = ts
	}
	return &t, nil
}

var _ domain.ThreadStore = (*SQLiteThreadStore)(nil)
