package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/arcadehub/arcade/internal/config"
	"github.com/arcadehub/arcade/internal/domain"
)

// SessionCache is the cache backing the active-player presence lists
type SessionCache interface {
	PutActivePlayer(ctx context.Context, slug string, p domain.ActivePlayer, ttl time.Duration) error
	TouchActivePlayer(ctx context.Context, slug string, userID *int64, sessionID string, ttl time.Duration) (bool, error)
	RemoveActivePlayer(ctx context.Context, slug string, userID *int64, sessionID string) error
	ActivePlayers(ctx context.Context, slug string, staleCutoff time.Duration) ([]domain.ActivePlayer, error)
}

// SessionService tracks who is currently playing each game. Presence lives
// only in cache; nothing here touches the score log.
type SessionService struct {
	cache  SessionCache
	hub    Broadcaster
	config *config.SessionConfig
	logger *slog.Logger
}

// NewSessionService creates a new session service. hub may be nil.
func NewSessionService(cache SessionCache, hub Broadcaster, cfg *config.SessionConfig, logger *slog.Logger) *SessionService {
	return &SessionService{
		cache:  cache,
		hub:    hub,
		config: cfg,
		logger: logger,
	}
}

// Start opens a game session for a player or guest and returns the session id
// plus the current active player count. A missing session id gets a fresh one.
func (s *SessionService) Start(ctx context.Context, gameSlug, sessionID, userName string, userID *int64) (*domain.SessionStartResult, error) {
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	if userName == "" {
		userName = "Guest"
	}

	now := time.Now()
	player := domain.ActivePlayer{
		UserID:    userID,
		UserName:  userName,
		SessionID: sessionID,
		StartedAt: now,
		LastSeen:  now,
	}
	if err := s.cache.PutActivePlayer(ctx, gameSlug, player, s.config.TTL); err != nil {
		return nil, err
	}

	count, err := s.activeCount(ctx, gameSlug)
	if err != nil {
		return nil, err
	}

	if s.hub != nil {
		s.hub.Broadcast(gameSlug, EventGameStarted, player)
	}

	return &domain.SessionStartResult{
		SessionID:          sessionID,
		ActivePlayersCount: count,
	}, nil
}

// Heartbeat keeps a session alive. Returns the active player count; a session
// that has already been swept reports ErrSessionNotFound.
func (s *SessionService) Heartbeat(ctx context.Context, gameSlug, sessionID string, userID *int64) (int, error) {
	alive, err := s.cache.TouchActivePlayer(ctx, gameSlug, userID, sessionID, s.config.TTL)
	if err != nil {
		return 0, err
	}
	if !alive {
		return 0, domain.ErrSessionNotFound
	}
	return s.activeCount(ctx, gameSlug)
}

// End closes a game session and returns the remaining active player count
func (s *SessionService) End(ctx context.Context, gameSlug, sessionID, userName string, userID *int64) (int, error) {
	if err := s.cache.RemoveActivePlayer(ctx, gameSlug, userID, sessionID); err != nil {
		return 0, err
	}

	count, err := s.activeCount(ctx, gameSlug)
	if err != nil {
		return 0, err
	}

	if s.hub != nil {
		s.hub.Broadcast(gameSlug, EventGameEnded, domain.ActivePlayer{
			UserID:    userID,
			UserName:  userName,
			SessionID: sessionID,
		})
	}
	return count, nil
}

// ActivePlayers returns the current participants of a game
func (s *SessionService) ActivePlayers(ctx context.Context, gameSlug string) ([]domain.ActivePlayer, error) {
	return s.cache.ActivePlayers(ctx, gameSlug, s.config.StaleCutoff)
}

func (s *SessionService) activeCount(ctx context.Context, gameSlug string) (int, error) {
	players, err := s.cache.ActivePlayers(ctx, gameSlug, s.config.StaleCutoff)
	if err != nil {
		return 0, err
	}
	return len(players), nil
}
