package domain

import (
	"fmt"
	"time"
)

// ScoreRecord is a single score submission. Records are append-only: once
// written they are never updated or deleted, so the score log doubles as an
// audit trail for every leaderboard the engine derives from it.
type ScoreRecord struct {
	ID                int64          `json:"id"`
	UserID            int64          `json:"user_id"`
	GameID            int64          `json:"game_id"`
	Score             int64          `json:"score"`
	LevelReached      *int           `json:"level_reached,omitempty"`
	TimePlayedSeconds *int           `json:"time_played_seconds,omitempty"`
	GameData          map[string]any `json:"game_data,omitempty"`
	CompletedAt       time.Time      `json:"completed_at"`
	CreatedAt         time.Time      `json:"created_at"`
}

// ScoreSubmission is the input for creating a ScoreRecord
type ScoreSubmission struct {
	UserID            int64          `json:"user_id"`
	GameID            int64          `json:"game_id"`
	Score             int64          `json:"score"`
	LevelReached      *int           `json:"level_reached,omitempty"`
	TimePlayedSeconds *int           `json:"time_played_seconds,omitempty"`
	GameData          map[string]any `json:"game_data,omitempty"`
	CompletedAt       *time.Time     `json:"completed_at,omitempty"`
}

// Validate checks the submission's declared constraints. A negative score is
// rejected outright; the optional fields must be positive (level) or
// non-negative (time played) when present.
func (s ScoreSubmission) Validate() error {
	if s.Score < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidScore, s.Score)
	}
	if s.LevelReached != nil && *s.LevelReached < 1 {
		return fmt.Errorf("%w: level_reached must be >= 1", ErrInvalidRequest)
	}
	if s.TimePlayedSeconds != nil && *s.TimePlayedSeconds < 0 {
		return fmt.Errorf("%w: time_played_seconds must be >= 0", ErrInvalidRequest)
	}
	return nil
}

// LeaderboardEntry is one row of a computed leaderboard; rank is implicit in
// the slice position.
type LeaderboardEntry struct {
	RecordID     int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	UserName     string    `json:"user_name"`
	Score        int64     `json:"score"`
	LevelReached *int      `json:"level_reached,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// CurrentUserEntry carries the requesting user's own standing alongside the
// top entries, mirroring what the leaderboard modal shows.
type CurrentUserEntry struct {
	LeaderboardEntry
	Rank     int64 `json:"rank"`
	InTopTen bool  `json:"in_top_ten"`
}

// Leaderboard is the full response for a leaderboard query
type Leaderboard struct {
	Game        GameRef            `json:"game"`
	Timeframe   Timeframe          `json:"timeframe"`
	Entries     []LeaderboardEntry `json:"entries"`
	CurrentUser *CurrentUserEntry  `json:"current_user,omitempty"`
}

// ScoreSubmitted is the payload broadcast to subscribers when a score lands
type ScoreSubmitted struct {
	GameSlug string         `json:"game_slug"`
	UserID   int64          `json:"user_id"`
	UserName string         `json:"user_name"`
	Score    int64          `json:"score"`
	Rank     int64          `json:"rank"`
	GameData map[string]any `json:"game_data,omitempty"`
}

// SubmitResult is returned to the submitting caller
type SubmitResult struct {
	RecordID int64 `json:"record_id"`
	Score    int64 `json:"score"`
	Rank     int64 `json:"rank"`
}
