package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/arcadehub/arcade/internal/config"
	"github.com/arcadehub/arcade/internal/domain"
)

// GameLister provides the set of games whose boards should be kept warm
type GameLister interface {
	List(ctx context.Context) ([]domain.Game, error)
}

// BoardComputer recomputes a leaderboard from the score log
type BoardComputer interface {
	ComputeEntries(ctx context.Context, game *domain.Game, tf domain.Timeframe) ([]domain.LeaderboardEntry, error)
}

// BoardCache stores precomputed leaderboards
type BoardCache interface {
	SetLeaderboard(ctx context.Context, slug string, tf domain.Timeframe, entries []domain.LeaderboardEntry, ttl time.Duration) error
}

// Refresher periodically recomputes every game's leaderboard for every
// timeframe and writes the results to the cache, so hot reads rarely pay
// the full aggregation cost.
type Refresher struct {
	games       GameLister
	leaderboard BoardComputer
	cache       BoardCache
	config      *config.RefreshConfig
	cacheTTL    time.Duration
	logger      *slog.Logger
	stopCh      chan struct{}
	doneCh      chan struct{}
	mu          sync.Mutex
	running     bool
}

// NewRefresher creates a new leaderboard cache refresher
func NewRefresher(
	games GameLister,
	leaderboard BoardComputer,
	cache BoardCache,
	cfg *config.RefreshConfig,
	cacheTTL time.Duration,
	logger *slog.Logger,
) *Refresher {
	return &Refresher{
		games:       games,
		leaderboard: leaderboard,
		cache:       cache,
		config:      cfg,
		cacheTTL:    cacheTTL,
		logger:      logger,
	}
}

// Start begins the background refresh process. A stopped refresher may be
// started again; each run gets its own lifecycle channels.
func (w *Refresher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	stopCh, doneCh := w.stopCh, w.doneCh
	w.running = true
	w.mu.Unlock()

	w.logger.Info("refresh worker started", "interval", w.config.Interval)

	go w.run(ctx, stopCh, doneCh)
	return nil
}

// Stop stops the background refresh process
func (w *Refresher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stopCh)
	<-doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("refresh worker stopped")
	return nil
}

// run is the main worker loop
func (w *Refresher) run(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			w.refreshAll(ctx)
		}
	}
}

// refreshAll recomputes and caches every board for every active game
func (w *Refresher) refreshAll(ctx context.Context) {
	startTime := time.Now()

	games, err := w.games.List(ctx)
	if err != nil {
		w.logger.Error("failed to list games for refresh", "error", err)
		return
	}

	refreshedCount := 0
	errorCount := 0

	for _, game := range games {
		for _, tf := range domain.Timeframes {
			if err := w.refresh(ctx, &game, tf); err != nil {
				w.logger.Error("failed to refresh leaderboard",
					"game", game.Slug,
					"timeframe", tf,
					"error", err,
				)
				errorCount++
			} else {
				refreshedCount++
			}
		}
	}

	w.logger.Info("refresh cycle completed",
		"duration", time.Since(startTime),
		"refreshed", refreshedCount,
		"errors", errorCount,
	)
}

// refresh recomputes one board and writes it to the cache. The cache entry
// outlives the refresh interval so a slow cycle never leaves readers cold.
func (w *Refresher) refresh(ctx context.Context, game *domain.Game, tf domain.Timeframe) error {
	entries, err := w.leaderboard.ComputeEntries(ctx, game, tf)
	if err != nil {
		return err
	}

	ttl := w.cacheTTL
	if refreshTTL := w.config.Interval * 2; refreshTTL > ttl {
		ttl = refreshTTL
	}

	return w.cache.SetLeaderboard(ctx, game.Slug, tf, entries, ttl)
}

// IsRunning returns whether the worker is currently running
func (w *Refresher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// RunOnce runs a single refresh cycle (useful for manual triggers)
func (w *Refresher) RunOnce(ctx context.Context) {
	w.refreshAll(ctx)
}
