package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pavelanni/omrgrader/internal/grading"
	"github.com/pavelanni/omrgrader/internal/model"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a review session does not exist.
var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS review_sessions (
		id TEXT PRIMARY KEY,
		alphabet TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'in_review',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		finalized_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS session_metadata (
		session_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (session_id, key),
		FOREIGN KEY (session_id) REFERENCES review_sessions(id)
	);

	CREATE TABLE IF NOT EXISTS key_entries (
		session_id TEXT NOT NULL,
		question_number INTEGER NOT NULL,
		correct_option TEXT NOT NULL,
		max_points REAL NOT NULL,
		topic TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (session_id, question_number),
		FOREIGN KEY (session_id) REFERENCES review_sessions(id)
	);

	CREATE TABLE IF NOT EXISTS responses (
		session_id TEXT NOT NULL,
		question_number INTEGER NOT NULL,
		selection TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (session_id, question_number),
		FOREIGN KEY (session_id) REFERENCES review_sessions(id)
	);

	CREATE TABLE IF NOT EXISTS overrides (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		question_number INTEGER NOT NULL,
		previous TEXT NOT NULL DEFAULT '',
		selection TEXT NOT NULL DEFAULT '',
		reviewer TEXT NOT NULL DEFAULT '',
		comment TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		FOREIGN KEY (session_id) REFERENCES review_sessions(id)
	);

	CREATE INDEX IF NOT EXISTS idx_overrides_session ON overrides(session_id, id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateSession stores a session with its exam details, answer key and responses
// in a single transaction.
func (s *Store) CreateSession(sess model.ReviewSession, key []grading.KeyEntry, responses grading.Responses) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO review_sessions (id, alphabet, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		sess.ID, strings.Join(sess.Alphabet, ","), sess.Status, sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	if err := setExamInfo(tx, sess.ID, sess.Info); err != nil {
		return fmt.Errorf("insert exam info: %w", err)
	}
	for _, k := range key {
		_, err := tx.Exec(
			`INSERT INTO key_entries (session_id, question_number, correct_option, max_points, topic)
			 VALUES (?, ?, ?, ?, ?)`,
			sess.ID, k.QuestionNumber, string(k.CorrectOption), k.MaxPoints, k.Topic,
		)
		if err != nil {
			return fmt.Errorf("insert key entry %d: %w", k.QuestionNumber, err)
		}
	}
	for q, sel := range responses {
		_, err := tx.Exec(
			`INSERT INTO responses (session_id, question_number, selection) VALUES (?, ?, ?)`,
			sess.ID, q, string(sel),
		)
		if err != nil {
			return fmt.Errorf("insert response %d: %w", q, err)
		}
	}
	return tx.Commit()
}

// GetSession returns a session by ID.
func (s *Store) GetSession(id string) (model.ReviewSession, error) {
	return getSession(s.db, id)
}

func getSession(q querier, id string) (model.ReviewSession, error) {
	var sess model.ReviewSession
	var alphabet string
	err := q.QueryRow(
		`SELECT id, alphabet, status, created_at, updated_at, finalized_at FROM review_sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &alphabet, &sess.Status, &sess.CreatedAt, &sess.UpdatedAt, &sess.FinalizedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ReviewSession{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.ReviewSession{}, fmt.Errorf("get session: %w", err)
	}
	sess.Alphabet = splitAlphabet(alphabet)
	if sess.Info, err = getExamInfo(q, id); err != nil {
		return model.ReviewSession{}, fmt.Errorf("get exam info: %w", err)
	}
	return sess, nil
}

// ListSessions returns all sessions, newest first.
func (s *Store) ListSessions() ([]model.ReviewSession, error) {
	rows, err := s.db.Query(`SELECT id FROM review_sessions ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan session: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sessions := make([]model.ReviewSession, 0, len(ids))
	for _, id := range ids {
		sess, err := s.GetSession(id)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// UpdateSessionStatus updates the session status.
func (s *Store) UpdateSessionStatus(id string, status model.SessionStatus) error {
	now := time.Now().UTC()
	query := `UPDATE review_sessions SET status = ?, updated_at = ? WHERE id = ?`
	args := []any{status, now, id}
	if status == model.StatusFinalized {
		query = `UPDATE review_sessions SET status = ?, updated_at = ?, finalized_at = ? WHERE id = ?`
		args = []any{status, now, now, id}
	}
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetKey returns the answer key of a session ordered by question number.
func (s *Store) GetKey(sessionID string) ([]grading.KeyEntry, error) {
	return getKey(s.db, sessionID)
}

func getKey(q querier, sessionID string) ([]grading.KeyEntry, error) {
	rows, err := q.Query(
		`SELECT question_number, correct_option, max_points, topic FROM key_entries
		 WHERE session_id = ? ORDER BY question_number`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("get key: %w", err)
	}
	defer rows.Close()
	var key []grading.KeyEntry
	for rows.Next() {
		var k grading.KeyEntry
		var correct string
		if err := rows.Scan(&k.QuestionNumber, &correct, &k.MaxPoints, &k.Topic); err != nil {
			return nil, fmt.Errorf("scan key entry: %w", err)
		}
		k.CorrectOption = grading.Option(correct)
		key = append(key, k)
	}
	return key, rows.Err()
}

// GetResponses returns the current selections of a session, overrides applied.
func (s *Store) GetResponses(sessionID string) (grading.Responses, error) {
	return getResponses(s.db, sessionID)
}

func getResponses(q querier, sessionID string) (grading.Responses, error) {
	rows, err := q.Query(`SELECT question_number, selection FROM responses WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get responses: %w", err)
	}
	defer rows.Close()
	responses := grading.Responses{}
	for rows.Next() {
		var qn int
		var sel string
		if err := rows.Scan(&qn, &sel); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		responses[qn] = grading.Option(sel)
	}
	return responses, rows.Err()
}

// RecordOverride stores the new selection and appends the audit event in one transaction.
// The returned event carries its assigned ID.
func (s *Store) RecordOverride(ev model.OverrideEvent) (model.OverrideEvent, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return ev, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE review_sessions SET updated_at = ? WHERE id = ?`, ev.At, ev.SessionID)
	if err != nil {
		return ev, fmt.Errorf("touch session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ev, fmt.Errorf("session %s: %w", ev.SessionID, ErrNotFound)
	}

	_, err = tx.Exec(
		`INSERT INTO responses (session_id, question_number, selection) VALUES (?, ?, ?)
		 ON CONFLICT(session_id, question_number) DO UPDATE SET selection = ?`,
		ev.SessionID, ev.QuestionNumber, string(ev.Selection), string(ev.Selection),
	)
	if err != nil {
		return ev, fmt.Errorf("update response: %w", err)
	}

	res, err = tx.Exec(
		`INSERT INTO overrides (session_id, question_number, previous, selection, reviewer, comment, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.SessionID, ev.QuestionNumber, string(ev.Previous), string(ev.Selection), ev.Reviewer, ev.Comment, ev.At,
	)
	if err != nil {
		return ev, fmt.Errorf("insert override: %w", err)
	}
	if ev.ID, err = res.LastInsertId(); err != nil {
		return ev, fmt.Errorf("insert override: %w", err)
	}
	return ev, tx.Commit()
}

// ListOverrides returns the audit log of a session in the order it was written.
func (s *Store) ListOverrides(sessionID string) ([]model.OverrideEvent, error) {
	return listOverrides(s.db, sessionID)
}

func listOverrides(q querier, sessionID string) ([]model.OverrideEvent, error) {
	rows, err := q.Query(
		`SELECT id, session_id, question_number, previous, selection, reviewer, comment, created_at
		 FROM overrides WHERE session_id = ? ORDER BY id`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	defer rows.Close()
	events := []model.OverrideEvent{}
	for rows.Next() {
		var ev model.OverrideEvent
		var prev, sel string
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.QuestionNumber, &prev, &sel, &ev.Reviewer, &ev.Comment, &ev.At); err != nil {
			return nil, fmt.Errorf("scan override: %w", err)
		}
		ev.Previous = grading.Option(prev)
		ev.Selection = grading.Option(sel)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// SessionCount returns the number of review sessions in the database.
func (s *Store) SessionCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM review_sessions`).Scan(&count)
	return count, err
}

func splitAlphabet(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
