package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rvlxssss/inventario-casa-sub000/internal/model"
)

type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

const sessionCols = `code, snapshot, created_at, updated_at, expires_at`

func scanSession(scanner interface{ Scan(...any) error }) (*model.Session, error) {
	var s model.Session
	var snapshot string
	err := scanner.Scan(&s.Code, &snapshot, &s.CreatedAt, &s.UpdatedAt, &s.ExpiresAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(snapshot), &s.Snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &s, nil
}

// Create inserts a session with the given code and snapshot, expiring after
// ttl. It fails if the code already exists, which the registry uses to
// detect code collisions.
func (s *SessionStore) Create(code string, snapshot model.Snapshot, ttl time.Duration) (*model.Session, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}

	now := time.Now().UTC()
	_, err = s.db.Exec(
		`INSERT INTO sessions (code, snapshot, created_at, updated_at, expires_at) VALUES (?, ?, ?, ?, ?)`,
		code, string(data), now, now, now.Add(ttl),
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return s.GetByCode(code)
}

// GetByCode returns the session for a canonical code, or nil if none
// exists. Expiry is not checked here; the registry distinguishes expired
// from missing.
func (s *SessionStore) GetByCode(code string) (*model.Session, error) {
	row := s.db.QueryRow(`SELECT `+sessionCols+` FROM sessions WHERE code = ?`, code)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// UpdateSnapshot persists the room snapshot after an applied action.
func (s *SessionStore) UpdateSnapshot(code string, snapshot model.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = s.db.Exec(
		`UPDATE sessions SET snapshot = ?, updated_at = ? WHERE code = ?`,
		string(data), time.Now().UTC(), code,
	)
	if err != nil {
		return fmt.Errorf("update snapshot: %w", err)
	}
	return nil
}

// Delete removes a session record.
func (s *SessionStore) Delete(code string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE code = ?`, code)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpired reclaims sessions whose lifetime has elapsed and returns
// how many were removed.
func (s *SessionStore) DeleteExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM sessions WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
