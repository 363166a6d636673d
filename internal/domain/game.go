package domain

import "time"

// Game difficulty levels
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Game represents a hosted browser game. Games are resolved by slug on every
// public route; the numeric id only appears in foreign keys.
type Game struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Slug        string     `json:"slug"`
	Description string     `json:"description,omitempty"`
	Category    string     `json:"category"`
	Difficulty  Difficulty `json:"difficulty"`
	IsActive    bool       `json:"is_active"`
	IsFeatured  bool       `json:"is_featured"`
	PlayCount   int64      `json:"play_count"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// GameRef is the lightweight game identity embedded in leaderboard responses
type GameRef struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Ref returns the game's embeddable identity
func (g *Game) Ref() GameRef {
	return GameRef{Name: g.Name, Slug: g.Slug}
}

// CreateGameRequest is the admin input for registering a new game
type CreateGameRequest struct {
	Name        string     `json:"name"`
	Slug        string     `json:"slug,omitempty"`
	Description string     `json:"description,omitempty"`
	Category    string     `json:"category,omitempty"`
	Difficulty  Difficulty `json:"difficulty,omitempty"`
	IsFeatured  bool       `json:"is_featured,omitempty"`
}
