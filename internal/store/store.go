package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrSessionNotFound is returned by GetSession when no row matches the id.
var ErrSessionNotFound = errors.New("session not found")

type Session struct {
	ID        string
	CreatedAt int64
	UpdatedAt int64
	Title     string
}

type Message struct {
	ID        string
	SessionID string
	TS        int64
	Role      string
	Text      string
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Store is the sqlite-backed persistence gateway for sessions and messages.
// All writes are upserts keyed by entity id; deleting a session cascades to
// its messages and their search-index rows.
type Store struct {
	dbPath     string
	db         *sql.DB
	ftsEnabled bool
	mu         sync.Mutex
}

func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	s := &Store{dbPath: dbPath, db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	stmts := []string{
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			title TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			role TEXT NOT NULL,
			text TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session_id ON messages(session_id);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session_ts ON messages(session_id, ts, id);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return s.ensureFTSTable()
}

func (s *Store) ensureFTSTable() error {
	var sqlDef string
	err := s.db.QueryRow(`SELECT sql FROM sqlite_master WHERE name = 'messages_fts'`).Scan(&sqlDef)
	if err == nil {
		lower := strings.ToLower(sqlDef)
		s.ftsEnabled = strings.Contains(lower, "virtual table") && strings.Contains(lower, "fts5")
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("inspect messages_fts table: %w", err)
	}

	_, err = s.db.Exec(`CREATE VIRTUAL TABLE messages_fts USING fts5(
		message_id UNINDEXED,
		session_id UNINDEXED,
		text
	);`)
	if err == nil {
		s.ftsEnabled = true
		return nil
	}

	if !strings.Contains(strings.ToLower(err.Error()), "no such module: fts5") {
		return fmt.Errorf("create messages_fts: %w", err)
	}

	// Fallback for sqlite builds without FTS5 support.
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS messages_fts (
		message_id TEXT PRIMARY KEY,
		session_id TEXT,
		text TEXT
	);`); err != nil {
		return fmt.Errorf("create messages_fts fallback table: %w", err)
	}
	if _, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_messages_fts_session_id ON messages_fts(session_id);`); err != nil {
		return fmt.Errorf("create fallback messages_fts index: %w", err)
	}
	s.ftsEnabled = false
	return nil
}

func (s *Store) CreateSession(ctx context.Context, session Session) error {
	return s.upsertSession(ctx, session)
}

func (s *Store) UpdateSession(ctx context.Context, session Session) error {
	return s.upsertSession(ctx, session)
}

func (s *Store) upsertSession(ctx context.Context, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions(id, created_at, updated_at, title)
		VALUES(?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			updated_at=excluded.updated_at,
			title=excluded.title
	`, session.ID, session.CreatedAt, session.UpdatedAt, session.Title)
	if err != nil {
		return fmt.Errorf("upsert session %s: %w", session.ID, err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out Session
	err := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, updated_at, title
		FROM sessions WHERE id = ?
	`, sessionID).Scan(&out.ID, &out.CreatedAt, &out.UpdatedAt, &out.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	return out, nil
}

func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages_fts WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete search rows for %s: %w", sessionID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete messages for %s: %w", sessionID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete session %s: %w", sessionID, err)
	}
	return nil
}

func (s *Store) CreateMessage(ctx context.Context, msg Message) error {
	return s.upsertMessage(ctx, msg)
}

func (s *Store) UpdateMessage(ctx context.Context, msg Message) error {
	return s.upsertMessage(ctx, msg)
}

func (s *Store) upsertMessage(ctx context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin message upsert tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages(id, session_id, ts, role, text)
		VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			ts=excluded.ts,
			role=excluded.role,
			text=excluded.text
	`, msg.ID, msg.SessionID, msg.TS, msg.Role, msg.Text); err != nil {
		return fmt.Errorf("upsert message %s: %w", msg.ID, err)
	}

	// The FTS table has no usable unique constraint in the fts5 case, so the
	// upsert is expressed as delete + insert keyed by message id.
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages_fts WHERE message_id = ?`, msg.ID); err != nil {
		return fmt.Errorf("clear search row for message %s: %w", msg.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages_fts(message_id, session_id, text)
		VALUES(?, ?, ?)
	`, msg.ID, msg.SessionID, msg.Text); err != nil {
		return fmt.Errorf("index message %s: %w", msg.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit message upsert %s: %w", msg.ID, err)
	}
	return nil
}

func (s *Store) FetchAllMessages(ctx context.Context, sessionID string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, ts, role, text
		FROM messages
		WHERE session_id = ?
		ORDER BY ts, id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session messages: %w", err)
	}
	defer rows.Close()

	out := make([]Message, 0, 64)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.TS, &m.Role, &m.Text); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return out, nil
}

func (s *Store) FetchAllSessions(ctx context.Context) ([]Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, updated_at, title
		FROM sessions
		ORDER BY updated_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := make([]Session, 0, 64)
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.CreatedAt, &sess.UpdatedAt, &sess.Title); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}
	return out, nil
}

// SearchMessages returns the ids of sessions that have at least one message
// containing the query, best matches first. The predicate runs inside sqlite
// (FTS5 when available, LIKE otherwise); message bodies are never returned.
func (s *Store) SearchMessages(ctx context.Context, query string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	if s.ftsEnabled {
		ids, err := s.searchFTS(ctx, query)
		if err == nil {
			return ids, nil
		}
		fallback, fbErr := s.searchLike(ctx, query)
		if fbErr != nil {
			return nil, fmt.Errorf("search messages (fts and fallback failed): fts=%w, fallback=%v", err, fbErr)
		}
		return fallback, nil
	}
	return s.searchLike(ctx, query)
}

func (s *Store) searchFTS(ctx context.Context, query string) ([]string, error) {
	ftsQuery := buildFTSQuery(query)
	if ftsQuery == "" {
		return nil, fmt.Errorf("empty fts query")
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id
		FROM messages_fts
		WHERE messages_fts MATCH ?
		GROUP BY session_id
		ORDER BY COUNT(*) DESC
	`, ftsQuery)
	if err != nil {
		return nil, fmt.Errorf("fts query failed: %w", err)
	}
	return scanSessionIDs(rows)
}

func (s *Store) searchLike(ctx context.Context, query string) ([]string, error) {
	terms := tokenizeSearchTerms(query)
	if len(terms) == 0 {
		terms = []string{strings.ToLower(query)}
	}

	var b strings.Builder
	b.WriteString(`
		SELECT session_id
		FROM messages
		WHERE `)
	args := make([]any, 0, len(terms))
	for idx, term := range terms {
		if idx > 0 {
			b.WriteString(" OR ")
		}
		b.WriteString("LOWER(text) LIKE ?")
		args = append(args, "%"+term+"%")
	}
	b.WriteString(`
		GROUP BY session_id
		ORDER BY COUNT(*) DESC
	`)
	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("like query failed: %w", err)
	}
	return scanSessionIDs(rows)
}

func scanSessionIDs(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	out := make([]string, 0, 32)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return out, nil
}

func buildFTSQuery(raw string) string {
	parts := tokenizeSearchTerms(raw)
	if len(parts) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ReplaceAll(p, `"`, "")
		if p == "" {
			continue
		}
		quoted = append(quoted, fmt.Sprintf(`"%s"*`, p))
	}
	return strings.Join(quoted, " AND ")
}

func tokenizeSearchTerms(raw string) []string {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(raw)))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, "`\"'.,:;!?()[]{}<>|")
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func FormatUnix(ts int64) string {
	if ts <= 0 {
		return "n/a"
	}
	return time.Unix(ts, 0).Local().Format("2006-01-02 15:04")
}
