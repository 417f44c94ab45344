package model

import "time"

// Session is the server-held record for one room: the canonical join code,
// the authoritative snapshot, and a bounded lifetime. Owned exclusively by
// the session registry; clients only ever hold the code.
type Session struct {
	Code      string    `json:"code"`
	Snapshot  Snapshot  `json:"snapshot"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session's lifetime has elapsed.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
