// Package redis holds the cache-backed collaborators of the ranking core:
// a short-TTL leaderboard cache and the active-player presence lists.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arcadehub/arcade/internal/config"
	"github.com/arcadehub/arcade/internal/domain"
)

// Cache provides Redis-backed caching for leaderboards and game sessions
type Cache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewCache creates a new Redis cache
func NewCache(cfg *config.RedisConfig, logger *slog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Cache{
		client: client,
		logger: logger,
	}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// leaderboardKey returns the cache key for a game's computed leaderboard
func (c *Cache) leaderboardKey(slug string, tf domain.Timeframe) string {
	return fmt.Sprintf("leaderboard:%s:%s", slug, tf)
}

// sessionKey returns the key for a game's active player hash
func (c *Cache) sessionKey(slug string) string {
	return fmt.Sprintf("game:%s:active_players", slug)
}

// GetLeaderboard returns a cached leaderboard, or nil on a cache miss
func (c *Cache) GetLeaderboard(ctx context.Context, slug string, tf domain.Timeframe) ([]domain.LeaderboardEntry, error) {
	data, err := c.client.Get(ctx, c.leaderboardKey(slug, tf)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting cached leaderboard: %w", err)
	}

	var entries []domain.LeaderboardEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("unmarshaling cached leaderboard: %w", err)
	}
	return entries, nil
}

// SetLeaderboard caches a computed leaderboard with the given TTL
func (c *Cache) SetLeaderboard(ctx context.Context, slug string, tf domain.Timeframe, entries []domain.LeaderboardEntry, ttl time.Duration) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshaling leaderboard: %w", err)
	}
	if err := c.client.Set(ctx, c.leaderboardKey(slug, tf), data, ttl).Err(); err != nil {
		return fmt.Errorf("caching leaderboard: %w", err)
	}
	return nil
}

// InvalidateLeaderboard drops every cached timeframe window for a game. Called
// after a score lands so readers never see a board older than the cache TTL.
func (c *Cache) InvalidateLeaderboard(ctx context.Context, slug string) error {
	keys := make([]string, 0, len(domain.Timeframes))
	for _, tf := range domain.Timeframes {
		keys = append(keys, c.leaderboardKey(slug, tf))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidating leaderboard cache: %w", err)
	}
	return nil
}

// playerField is the hash field identifying one participant. Signed-in users
// are keyed by user id so reconnects collapse to one entry; guests by session.
func playerField(userID *int64, sessionID string) string {
	if userID != nil {
		return fmt.Sprintf("user_%d", *userID)
	}
	return fmt.Sprintf("guest_%s", sessionID)
}

// PutActivePlayer adds or refreshes a participant in a game's active set
func (c *Cache) PutActivePlayer(ctx context.Context, slug string, p domain.ActivePlayer, ttl time.Duration) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling active player: %w", err)
	}

	key := c.sessionKey(slug)
	pipe := c.client.Pipeline()
	pipe.HSet(ctx, key, playerField(p.UserID, p.SessionID), data)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("putting active player: %w", err)
	}
	return nil
}

// TouchActivePlayer refreshes a participant's heartbeat. Returns false when
// the participant is not in the active set (e.g. already swept as stale).
func (c *Cache) TouchActivePlayer(ctx context.Context, slug string, userID *int64, sessionID string, ttl time.Duration) (bool, error) {
	key := c.sessionKey(slug)
	field := playerField(userID, sessionID)

	raw, err := c.client.HGet(ctx, key, field).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("getting active player: %w", err)
	}

	var p domain.ActivePlayer
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return false, fmt.Errorf("unmarshaling active player: %w", err)
	}
	p.LastSeen = time.Now()

	if err := c.PutActivePlayer(ctx, slug, p, ttl); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveActivePlayer drops a participant from a game's active set
func (c *Cache) RemoveActivePlayer(ctx context.Context, slug string, userID *int64, sessionID string) error {
	err := c.client.HDel(ctx, c.sessionKey(slug), playerField(userID, sessionID)).Err()
	if err != nil {
		return fmt.Errorf("removing active player: %w", err)
	}
	return nil
}

// ActivePlayers returns a game's current participants, sweeping out entries
// whose last heartbeat is older than the stale cutoff.
func (c *Cache) ActivePlayers(ctx context.Context, slug string, staleCutoff time.Duration) ([]domain.ActivePlayer, error) {
	key := c.sessionKey(slug)
	fields, err := c.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("getting active players: %w", err)
	}

	cutoff := time.Now().Add(-staleCutoff)
	players := make([]domain.ActivePlayer, 0, len(fields))
	var stale []string

	for field, raw := range fields {
		var p domain.ActivePlayer
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			stale = append(stale, field)
			continue
		}
		lastSeen := p.LastSeen
		if lastSeen.IsZero() {
			lastSeen = p.StartedAt
		}
		if lastSeen.Before(cutoff) {
			stale = append(stale, field)
			continue
		}
		players = append(players, p)
	}

	if len(stale) > 0 {
		if err := c.client.HDel(ctx, key, stale...).Err(); err != nil {
			c.logger.Warn("failed to sweep stale sessions", "game", slug, "error", err)
		}
	}
	return players, nil
}

// ActivePlayerCount returns the size of a game's active set after sweeping
func (c *Cache) ActivePlayerCount(ctx context.Context, slug string, staleCutoff time.Duration) (int, error) {
	players, err := c.ActivePlayers(ctx, slug, staleCutoff)
	if err != nil {
		return 0, err
	}
	return len(players), nil
}
