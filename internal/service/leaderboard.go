// Package service provides the business logic between HTTP/Kafka transport
// and the ranking core.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/arcadehub/arcade/internal/config"
	"github.com/arcadehub/arcade/internal/domain"
	"github.com/arcadehub/arcade/internal/metrics"
	"github.com/arcadehub/arcade/internal/ranking"
)

// Store is the persistent state the leaderboard service depends on
type Store interface {
	AppendScore(ctx context.Context, sub domain.ScoreSubmission) (domain.ScoreRecord, error)
	GameBySlug(ctx context.Context, slug string) (*domain.Game, error)
	UserNamesByIDs(ctx context.Context, ids []int64) (map[int64]string, error)
}

// LeaderboardCache caches computed leaderboards between submissions
type LeaderboardCache interface {
	GetLeaderboard(ctx context.Context, slug string, tf domain.Timeframe) ([]domain.LeaderboardEntry, error)
	SetLeaderboard(ctx context.Context, slug string, tf domain.Timeframe, entries []domain.LeaderboardEntry, ttl time.Duration) error
	InvalidateLeaderboard(ctx context.Context, slug string) error
}

// Broadcaster pushes real-time events to subscribed clients
type Broadcaster interface {
	Broadcast(gameSlug, event string, payload any)
}

// Real-time event names
const (
	EventScoreSubmitted = "score.submitted"
	EventGameStarted    = "game.started"
	EventGameEnded      = "game.ended"
)

// LeaderboardService handles score submission and leaderboard queries
type LeaderboardService struct {
	store   Store
	engine  *ranking.Engine
	cache   LeaderboardCache
	hub     Broadcaster
	config  *config.LeaderboardConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewLeaderboardService creates a new leaderboard service. cache and hub may
// be nil; the service then skips caching and broadcasting.
func NewLeaderboardService(
	store Store,
	engine *ranking.Engine,
	cache LeaderboardCache,
	hub Broadcaster,
	cfg *config.LeaderboardConfig,
	m *metrics.Metrics,
	logger *slog.Logger,
) *LeaderboardService {
	return &LeaderboardService{
		store:   store,
		engine:  engine,
		cache:   cache,
		hub:     hub,
		config:  cfg,
		metrics: m,
		logger:  logger,
	}
}

// SubmitScore validates and records a score for an authenticated user, then
// reports the submission's standing. The record is written exactly once;
// cache invalidation and broadcast failures never roll it back.
func (s *LeaderboardService) SubmitScore(ctx context.Context, gameSlug, userName string, userID int64, sub domain.ScoreSubmission) (*domain.SubmitResult, error) {
	if userID <= 0 {
		return nil, domain.ErrAuthRequired
	}

	game, err := s.store.GameBySlug(ctx, gameSlug)
	if err != nil {
		return nil, err
	}

	sub.UserID = userID
	sub.GameID = game.ID
	if err := sub.Validate(); err != nil {
		if s.metrics != nil {
			s.metrics.ScoresRejected.Inc()
		}
		return nil, err
	}

	record, err := s.store.AppendScore(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("appending score: %w", err)
	}

	rank, err := s.engine.SubmissionRank(ctx, game.ID, record.Score)
	if err != nil {
		return nil, fmt.Errorf("computing submission rank: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.InvalidateLeaderboard(ctx, game.Slug); err != nil {
			s.logger.Warn("failed to invalidate leaderboard cache", "game", game.Slug, "error", err)
		}
	}

	if s.hub != nil {
		s.hub.Broadcast(game.Slug, EventScoreSubmitted, domain.ScoreSubmitted{
			GameSlug: game.Slug,
			UserID:   userID,
			UserName: userName,
			Score:    record.Score,
			Rank:     rank,
			GameData: record.GameData,
		})
	}

	if s.metrics != nil {
		s.metrics.ScoresSubmitted.Inc()
	}

	return &domain.SubmitResult{
		RecordID: record.ID,
		Score:    record.Score,
		Rank:     rank,
	}, nil
}

// Leaderboard returns the top entries for a game and timeframe, plus the
// viewer's own standing when viewerID is set. An unknown slug yields an
// empty, well-formed board rather than an error.
func (s *LeaderboardService) Leaderboard(ctx context.Context, gameSlug string, tf domain.Timeframe, limit int, viewerID *int64) (*domain.Leaderboard, error) {
	if limit <= 0 {
		limit = s.config.DefaultLimit
	}
	if limit > s.config.MaxLimit {
		limit = s.config.MaxLimit
	}
	if s.metrics != nil {
		s.metrics.LeaderboardQueries.Inc()
	}

	game, err := s.store.GameBySlug(ctx, gameSlug)
	if err != nil {
		if errors.Is(err, domain.ErrGameNotFound) {
			return &domain.Leaderboard{
				Game:      domain.GameRef{Slug: gameSlug},
				Timeframe: tf,
				Entries:   []domain.LeaderboardEntry{},
			}, nil
		}
		return nil, err
	}

	entries, err := s.entries(ctx, game, tf)
	if err != nil {
		return nil, err
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}

	board := &domain.Leaderboard{
		Game:      game.Ref(),
		Timeframe: tf,
		Entries:   entries,
	}

	if viewerID != nil {
		current, err := s.currentUser(ctx, game, tf, *viewerID)
		if err != nil {
			return nil, err
		}
		board.CurrentUser = current
	}
	return board, nil
}

// UserRank returns a user's standing for a game and timeframe. It reports
// domain.ErrNoScore when the user has no score, including for unknown games.
func (s *LeaderboardService) UserRank(ctx context.Context, gameSlug string, userID int64, tf domain.Timeframe) (int64, error) {
	game, err := s.store.GameBySlug(ctx, gameSlug)
	if err != nil {
		if errors.Is(err, domain.ErrGameNotFound) {
			return 0, domain.ErrNoScore
		}
		return 0, err
	}
	return s.engine.UserRank(ctx, userID, game.ID, tf)
}

// entries resolves the leaderboard rows for a game/timeframe, answering from
// cache when possible. The cache holds the max-limit board; callers truncate.
func (s *LeaderboardService) entries(ctx context.Context, game *domain.Game, tf domain.Timeframe) ([]domain.LeaderboardEntry, error) {
	if s.cache != nil {
		cached, err := s.cache.GetLeaderboard(ctx, game.Slug, tf)
		if err != nil {
			s.logger.Warn("leaderboard cache read failed", "game", game.Slug, "error", err)
		} else if cached != nil {
			if s.metrics != nil {
				s.metrics.CacheHits.Inc()
			}
			return cached, nil
		}
	}
	if s.metrics != nil {
		s.metrics.CacheMisses.Inc()
	}

	entries, err := s.ComputeEntries(ctx, game, tf)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetLeaderboard(ctx, game.Slug, tf, entries, s.config.CacheTTL); err != nil {
			s.logger.Warn("leaderboard cache write failed", "game", game.Slug, "error", err)
		}
	}
	return entries, nil
}

// ComputeEntries builds a game's board from the score log and resolves the
// players' display names. Exported for the cache refresh worker.
func (s *LeaderboardService) ComputeEntries(ctx context.Context, game *domain.Game, tf domain.Timeframe) ([]domain.LeaderboardEntry, error) {
	start := time.Now()
	records, err := s.engine.Leaderboard(ctx, game.ID, tf, s.config.MaxLimit)
	if err != nil {
		return nil, fmt.Errorf("computing leaderboard: %w", err)
	}
	if s.metrics != nil {
		s.metrics.LeaderboardCompute.Observe(time.Since(start).Seconds())
	}

	ids := make([]int64, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.UserID)
	}
	names, err := s.store.UserNamesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolving user names: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(records))
	for _, r := range records {
		name := names[r.UserID]
		if name == "" {
			name = "Anonymous"
		}
		entries = append(entries, domain.LeaderboardEntry{
			RecordID:     r.ID,
			UserID:       r.UserID,
			UserName:     name,
			Score:        r.Score,
			LevelReached: r.LevelReached,
			CreatedAt:    r.CreatedAt,
		})
	}
	return entries, nil
}

// currentUser builds the viewer's own leaderboard standing, or nil when they
// have no score for the game.
func (s *LeaderboardService) currentUser(ctx context.Context, game *domain.Game, tf domain.Timeframe, viewerID int64) (*domain.CurrentUserEntry, error) {
	best, err := s.engine.UserBestScore(ctx, viewerID, game.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNoScore) {
			return nil, nil
		}
		return nil, err
	}

	rank, err := s.engine.UserRank(ctx, viewerID, game.ID, tf)
	if err != nil {
		return nil, err
	}

	names, err := s.store.UserNamesByIDs(ctx, []int64{viewerID})
	if err != nil {
		return nil, fmt.Errorf("resolving user name: %w", err)
	}
	name := names[viewerID]
	if name == "" {
		name = "Anonymous"
	}

	return &domain.CurrentUserEntry{
		LeaderboardEntry: domain.LeaderboardEntry{
			RecordID:     best.ID,
			UserID:       viewerID,
			UserName:     name,
			Score:        best.Score,
			LevelReached: best.LevelReached,
			CreatedAt:    best.CreatedAt,
		},
		Rank:     rank,
		InTopTen: rank <= ranking.DefaultLimit,
	}, nil
}
