// Package ranking derives leaderboards and rank numbers from the append-only
// score log. The engine holds no state of its own: every query is a pure
// computation over the records the store returns plus the query parameters.
package ranking

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/arcadehub/arcade/internal/domain"
)

// DefaultLimit is used when a caller does not specify a leaderboard size
const DefaultLimit = 10

// ScoreStore is the read side of the score log the engine computes over
type ScoreStore interface {
	// ScoresByGame returns every record for the game with created_at >= since.
	// A zero since means all time. Order is unspecified.
	ScoresByGame(ctx context.Context, gameID int64, since time.Time) ([]domain.ScoreRecord, error)
	// ScoresByUserGame returns every record a user has for a game, in
	// unspecified order.
	ScoresByUserGame(ctx context.Context, userID, gameID int64) ([]domain.ScoreRecord, error)
}

// Engine computes leaderboard views over a ScoreStore
type Engine struct {
	store ScoreStore
	now   func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithClock overrides the engine's clock, fixing the timeframe windows for
// deterministic queries in tests
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a ranking engine backed by the given store
func NewEngine(store ScoreStore, opts ...Option) *Engine {
	e := &Engine{store: store, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Leaderboard returns the top records for a game within the timeframe window,
// at most one per user. Entries are ordered by score descending; score ties
// rank the earlier submission first. An unknown gameID yields an empty board,
// not an error.
func (e *Engine) Leaderboard(ctx context.Context, gameID int64, tf domain.Timeframe, limit int) ([]domain.ScoreRecord, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	records, err := e.windowed(ctx, gameID, tf)
	if err != nil {
		return nil, err
	}

	best := bestPerUser(records)
	sortStanding(best)

	if len(best) > limit {
		best = best[:limit]
	}
	return best, nil
}

// UserBestScore returns the record with the user's maximum score for a game,
// all time. Ties at the maximum resolve to the earliest submission. Returns
// domain.ErrNoScore when the user has never scored in the game.
func (e *Engine) UserBestScore(ctx context.Context, userID, gameID int64) (*domain.ScoreRecord, error) {
	records, err := e.store.ScoresByUserGame(ctx, userID, gameID)
	if err != nil {
		return nil, fmt.Errorf("querying user scores: %w", err)
	}
	if len(records) == 0 {
		return nil, domain.ErrNoScore
	}

	best := records[0]
	for _, r := range records[1:] {
		if betterRepresentative(r, best) {
			best = r
		}
	}
	return &best, nil
}

// UserRank returns the user's 1-indexed standing for a game: one plus the
// number of distinct users whose best score within the timeframe window is
// strictly greater than the user's all-time best. Users tied with the target
// share its rank number. The user's own score is deliberately not
// timeframe-filtered, matching the reference behavior. Returns
// domain.ErrNoScore when the user has no score for the game.
func (e *Engine) UserRank(ctx context.Context, userID, gameID int64, tf domain.Timeframe) (int64, error) {
	target, err := e.UserBestScore(ctx, userID, gameID)
	if err != nil {
		return 0, err
	}

	records, err := e.windowed(ctx, gameID, tf)
	if err != nil {
		return 0, err
	}

	var better int64
	for _, r := range bestPerUser(records) {
		if r.UserID == userID {
			continue
		}
		if r.Score > target.Score {
			better++
		}
	}
	return better + 1, nil
}

// SubmissionRank mirrors the rank reported back to a submitting player: one
// plus the number of individual records (not users) beating the submitted
// score, over all time.
func (e *Engine) SubmissionRank(ctx context.Context, gameID, score int64) (int64, error) {
	records, err := e.store.ScoresByGame(ctx, gameID, time.Time{})
	if err != nil {
		return 0, fmt.Errorf("querying game scores: %w", err)
	}

	var better int64
	for _, r := range records {
		if r.Score > score {
			better++
		}
	}
	return better + 1, nil
}

// windowed fetches a game's records filtered to the timeframe's lower bound
func (e *Engine) windowed(ctx context.Context, gameID int64, tf domain.Timeframe) ([]domain.ScoreRecord, error) {
	var since time.Time
	if bound, ok := tf.LowerBound(e.now()); ok {
		since = bound
	}

	records, err := e.store.ScoresByGame(ctx, gameID, since)
	if err != nil {
		return nil, fmt.Errorf("querying game scores: %w", err)
	}
	return records, nil
}

// bestPerUser collapses the record set to one representative per user: the
// maximum score, ties resolved to the earliest createdAt (record id as the
// final tiebreak, since ids are assigned in submission order).
func bestPerUser(records []domain.ScoreRecord) []domain.ScoreRecord {
	best := make(map[int64]domain.ScoreRecord, len(records))
	for _, r := range records {
		cur, ok := best[r.UserID]
		if !ok || betterRepresentative(r, cur) {
			best[r.UserID] = r
		}
	}

	out := make([]domain.ScoreRecord, 0, len(best))
	for _, r := range best {
		out = append(out, r)
	}
	return out
}

// betterRepresentative reports whether a should represent its user over b
func betterRepresentative(a, b domain.ScoreRecord) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// sortStanding orders records by score descending, then createdAt ascending
// (earlier submission wins ties), then id ascending for full determinism.
func sortStanding(records []domain.ScoreRecord) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
