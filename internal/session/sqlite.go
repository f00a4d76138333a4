package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/samsaffron/term-chat/internal/chat"
	"github.com/samsaffron/term-chat/internal/llm"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	cfg    Config
	logger *slog.Logger
}

// Schema for the conversations database.
const schema = `
CREATE TABLE IF NOT EXISTS conversations (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    system_message TEXT NOT NULL DEFAULT '',
    backend_id TEXT NOT NULL DEFAULT '',
    model TEXT NOT NULL DEFAULT '',
    temperature REAL NOT NULL DEFAULT 0.7,
    request_buffer TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    sequence INTEGER NOT NULL,
    body TEXT NOT NULL,
    own BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (conversation_id, sequence)
);

CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at DESC);

-- Full-text search on message bodies
CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
    body,
    content='messages',
    content_rowid='id'
);

-- Triggers to keep FTS in sync
CREATE TRIGGER IF NOT EXISTS messages_ai AFTER INSERT ON messages BEGIN
    INSERT INTO messages_fts(rowid, body) VALUES (new.id, new.body);
END;

CREATE TRIGGER IF NOT EXISTS messages_ad AFTER DELETE ON messages BEGIN
    INSERT INTO messages_fts(messages_fts, rowid, body) VALUES ('delete', old.id, old.body);
END;

CREATE TRIGGER IF NOT EXISTS messages_au AFTER UPDATE ON messages BEGIN
    INSERT INTO messages_fts(messages_fts, rowid, body) VALUES ('delete', old.id, old.body);
    INSERT INTO messages_fts(rowid, body) VALUES (new.id, new.body);
END;
`

// NewSQLiteStore opens (creating if needed) the conversations database.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	dbPath := cfg.Path
	if dbPath == "" {
		p, err := GetDBPath()
		if err != nil {
			return nil, fmt.Errorf("get db path: %w", err)
		}
		dbPath = p
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Initialize schema and run migrations
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	store := &SQLiteStore{db: db, cfg: cfg, logger: slog.Default()}

	// Run cleanup if configured
	if err := store.cleanup(); err != nil {
		// Log but don't fail
		store.logger.Warn("conversation cleanup failed", "error", err)
	}

	return store, nil
}

// schemaVersion is the current schema version.
// - Fresh databases get the full schema from `schema` const and start at this version
// - Existing databases run migrations to reach this version
// Increment when adding new migrations.
const schemaVersion = 1

// migration represents a schema migration.
type migration struct {
	version     int
	description string
	up          func(db *sql.DB) error
}

// migrations upgrade databases created before a schema change. The base
// `schema` const always contains the FULL current schema.
var migrations = []migration{
	{
		version:     1,
		description: "add request_buffer and temperature columns",
		up: func(db *sql.DB) error {
			alterStatements := []string{
				"ALTER TABLE conversations ADD COLUMN request_buffer TEXT",
				"ALTER TABLE conversations ADD COLUMN temperature REAL NOT NULL DEFAULT 0.7",
			}
			for _, stmt := range alterStatements {
				if _, err := db.Exec(stmt); err != nil {
					if !isDuplicateColumnError(err) {
						return err
					}
				}
			}
			return nil
		},
	},
}

// initSchema initializes the database schema and runs any pending migrations.
// Optimized for the common case: schema already current = single SELECT query.
func initSchema(db *sql.DB) error {
	var currentVersion int
	err := db.QueryRow("SELECT version FROM schema_version").Scan(&currentVersion)
	if err == nil && currentVersion >= schemaVersion {
		return nil
	}
	return initSchemaFull(db, err, currentVersion)
}

// initSchemaFull handles schema creation and migrations.
func initSchemaFull(db *sql.DB, versionErr error, currentVersion int) error {
	// Detect a pre-versioning database before the base schema creates tables.
	var existing int
	if err := db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='table' AND name='conversations'
	`).Scan(&existing); err != nil {
		return fmt.Errorf("check conversations table: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create base schema: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	// versionErr is non-nil if schema_version table doesn't exist or has no rows
	if versionErr != nil && (errors.Is(versionErr, sql.ErrNoRows) || strings.Contains(versionErr.Error(), "no such table")) {
		if existing > 0 {
			currentVersion = 0
		} else {
			currentVersion = schemaVersion
		}
		if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", currentVersion); err != nil {
			return fmt.Errorf("insert initial version: %w", err)
		}
	} else if versionErr != nil {
		return fmt.Errorf("get current version: %w", versionErr)
	}

	for _, m := range migrations {
		if m.version > currentVersion {
			if err := m.up(db); err != nil {
				return fmt.Errorf("migration %d (%s): %w", m.version, m.description, err)
			}
			if _, err := db.Exec("UPDATE schema_version SET version = ?", m.version); err != nil {
				return fmt.Errorf("update version to %d: %w", m.version, err)
			}
		}
	}

	return nil
}

// isDuplicateColumnError checks if an error is due to a column already existing.
func isDuplicateColumnError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "duplicate column") ||
		strings.Contains(errStr, "already exists")
}

// cleanup removes old conversations based on configuration.
func (s *SQLiteStore) cleanup() error {
	ctx := context.Background()

	if s.cfg.MaxAgeDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -s.cfg.MaxAgeDays)
		if _, err := s.db.ExecContext(ctx, "DELETE FROM conversations WHERE updated_at < ?", cutoff); err != nil {
			return fmt.Errorf("delete old conversations: %w", err)
		}
	}

	if s.cfg.MaxCount > 0 {
		_, err := s.db.ExecContext(ctx, `
			DELETE FROM conversations WHERE id IN (
				SELECT id FROM conversations
				ORDER BY updated_at DESC
				LIMIT -1 OFFSET ?
			)`, s.cfg.MaxCount)
		if err != nil {
			return fmt.Errorf("enforce max count: %w", err)
		}
	}

	return nil
}

// SaveConversation writes the full conversation state in one transaction.
// Messages are upserted by sequence; rows past the last sequence in snap are
// removed.
func (s *SQLiteStore) SaveConversation(ctx context.Context, snap chat.Snapshot) error {
	buffer, err := json.Marshal(snap.RequestBuffer)
	if err != nil {
		return fmt.Errorf("serialize request buffer: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	updatedAt := snap.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	createdAt := snap.CreatedAt
	if createdAt.IsZero() {
		createdAt = updatedAt
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (id, name, system_message, backend_id, model, temperature, request_buffer, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			system_message = excluded.system_message,
			backend_id = excluded.backend_id,
			model = excluded.model,
			temperature = excluded.temperature,
			request_buffer = excluded.request_buffer,
			updated_at = excluded.updated_at`,
		snap.ID, snap.Name, snap.SystemMessage, snap.BackendID, snap.Model, snap.Temperature,
		string(buffer), createdAt, updatedAt)
	if err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}

	maxSeq := -1
	for _, m := range snap.Messages {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO messages (conversation_id, sequence, body, own, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(conversation_id, sequence) DO UPDATE SET
				body = excluded.body,
				created_at = excluded.created_at
			WHERE messages.body != excluded.body OR messages.created_at != excluded.created_at`,
			snap.ID, m.Sequence, m.Body, m.Own, m.CreatedAt)
		if err != nil {
			return fmt.Errorf("upsert message %d: %w", m.Sequence, err)
		}
		if m.Sequence > maxSeq {
			maxSeq = m.Sequence
		}
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM messages WHERE conversation_id = ? AND sequence > ?", snap.ID, maxSeq); err != nil {
		return fmt.Errorf("trim messages: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// resolveID finds the single conversation whose id equals or starts with
// idOrPrefix.
func (s *SQLiteStore) resolveID(ctx context.Context, idOrPrefix string) (string, error) {
	if idOrPrefix == "" {
		return "", ErrNotFound
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM conversations
		WHERE id = ? OR id LIKE ? ESCAPE '\'
		ORDER BY (id = ?) DESC, updated_at DESC
		LIMIT 2`, idOrPrefix, escapeLike(idOrPrefix)+"%", idOrPrefix)
	if err != nil {
		return "", fmt.Errorf("resolve id: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	switch {
	case len(ids) == 0:
		return "", fmt.Errorf("%w: %s", ErrNotFound, idOrPrefix)
	case ids[0] == idOrPrefix || len(ids) == 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("ambiguous conversation id prefix: %s", idOrPrefix)
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Load reads a conversation by id or unique id prefix.
func (s *SQLiteStore) Load(ctx context.Context, idOrPrefix string) (chat.Snapshot, error) {
	id, err := s.resolveID(ctx, idOrPrefix)
	if err != nil {
		return chat.Snapshot{}, err
	}

	var snap chat.Snapshot
	var buffer sql.NullString
	err = s.db.QueryRowContext(ctx, `
		SELECT id, name, system_message, backend_id, model, temperature, request_buffer, created_at, updated_at
		FROM conversations WHERE id = ?`, id).Scan(
		&snap.ID, &snap.Name, &snap.SystemMessage, &snap.BackendID, &snap.Model, &snap.Temperature,
		&buffer, &snap.CreatedAt, &snap.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return chat.Snapshot{}, fmt.Errorf("scan conversation: %w", err)
	}
	if buffer.Valid && buffer.String != "" {
		var pairs []llm.ChatMessage
		if err := json.Unmarshal([]byte(buffer.String), &pairs); err != nil {
			return chat.Snapshot{}, fmt.Errorf("deserialize request buffer: %w", err)
		}
		snap.RequestBuffer = pairs
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence, body, own, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY sequence ASC`, id)
	if err != nil {
		return chat.Snapshot{}, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m chat.Message
		if err := rows.Scan(&m.Sequence, &m.Body, &m.Own, &m.CreatedAt); err != nil {
			return chat.Snapshot{}, fmt.Errorf("scan message: %w", err)
		}
		snap.Messages = append(snap.Messages, m)
	}
	return snap, rows.Err()
}

// List returns conversations, most recently updated first.
func (s *SQLiteStore) List(ctx context.Context, opts ListOptions) ([]Summary, error) {
	query := `
		SELECT c.id, c.name, c.backend_id, c.model, c.created_at, c.updated_at,
		       (SELECT COUNT(*) FROM messages WHERE conversation_id = c.id) AS message_count
		FROM conversations c
		WHERE 1=1`
	args := []any{}

	if opts.BackendID != "" {
		query += " AND c.backend_id = ?"
		args = append(args, opts.BackendID)
	}

	query += " ORDER BY c.updated_at DESC"

	limit := opts.Limit
	if limit == 0 {
		limit = 50 // Default
	}
	query += fmt.Sprintf(" LIMIT %d", limit)
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var results []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.BackendID, &sum.Model,
			&sum.CreatedAt, &sum.UpdatedAt, &sum.MessageCount); err != nil {
			return nil, fmt.Errorf("scan conversation summary: %w", err)
		}
		results = append(results, sum)
	}
	return results, rows.Err()
}

// Search finds messages containing the query text using FTS5.
func (s *SQLiteStore) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit == 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.conversation_id, c.name, m.sequence, snippet(messages_fts, 0, '**', '**', '...', 32), m.created_at
		FROM messages_fts f
		JOIN messages m ON m.id = f.rowid
		JOIN conversations c ON c.id = m.conversation_id
		WHERE messages_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ConversationID, &r.Name, &r.Sequence, &r.Snippet, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Rename sets a conversation's display name. id may be a unique prefix.
func (s *SQLiteStore) Rename(ctx context.Context, idOrPrefix, name string) error {
	id, err := s.resolveID(ctx, idOrPrefix)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx,
		"UPDATE conversations SET name = ?, updated_at = ? WHERE id = ?", name, time.Now(), id)
	if err != nil {
		return fmt.Errorf("rename conversation: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Delete removes a conversation and its messages. id may be a unique prefix.
func (s *SQLiteStore) Delete(ctx context.Context, idOrPrefix string) error {
	id, err := s.resolveID(ctx, idOrPrefix)
	if err != nil {
		return err
	}
	// Foreign key cascade handles messages
	result, err := s.db.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
