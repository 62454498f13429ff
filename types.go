package sessionkit

import "time"

// Tokens is the credential set handed to a client when a session is
// created or refreshed. AccessToken and RefreshToken are bearer secrets and
// are only ever returned here; the store keeps their digests.
type Tokens struct {
	SessionID    string    `json:"session_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Stats is a point-in-time view of the session key space.
//
// ExpiredSessions counts records past their ExpiresAt that the store has
// not yet evicted. SessionsByUser only lists users with at least one live
// session.
type Stats struct {
	TotalSessions   int            `json:"total_sessions"`
	ActiveSessions  int            `json:"active_sessions"`
	ExpiredSessions int            `json:"expired_sessions"`
	SessionsByUser  map[string]int `json:"sessions_by_user"`
}
