package domain

import "time"

// ActivePlayer is one live participant in a game, tracked in cache only.
// Guests get a session-scoped identity; signed-in players are keyed by user id.
type ActivePlayer struct {
	UserID    *int64    `json:"user_id,omitempty"`
	UserName  string    `json:"user_name"`
	SessionID string    `json:"session_id"`
	StartedAt time.Time `json:"started_at"`
	LastSeen  time.Time `json:"last_seen"`
}

// SessionStartResult is returned when a game session begins
type SessionStartResult struct {
	SessionID          string `json:"session_id"`
	ActivePlayersCount int    `json:"active_players_count"`
}
