package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/arcadehub/arcade/internal/domain"
)

// GameStore is the persistent state the game catalog depends on
type GameStore interface {
	GameBySlug(ctx context.Context, slug string) (*domain.Game, error)
	ListGames(ctx context.Context) ([]domain.Game, error)
	CreateGame(ctx context.Context, g domain.Game) (domain.Game, error)
	IncrementPlayCount(ctx context.Context, gameID int64) error
}

// GameService handles the game catalog and play counters
type GameService struct {
	store  GameStore
	logger *slog.Logger
}

// NewGameService creates a new game service
func NewGameService(store GameStore, logger *slog.Logger) *GameService {
	return &GameService{store: store, logger: logger}
}

// List returns all active games, featured first
func (s *GameService) List(ctx context.Context) ([]domain.Game, error) {
	return s.store.ListGames(ctx)
}

// BySlug resolves a game by its slug
func (s *GameService) BySlug(ctx context.Context, slug string) (*domain.Game, error) {
	return s.store.GameBySlug(ctx, slug)
}

// Create registers a new game, deriving the slug from the name when absent
func (s *GameService) Create(ctx context.Context, req domain.CreateGameRequest) (domain.Game, error) {
	if req.Name == "" {
		return domain.Game{}, fmt.Errorf("%w: name is required", domain.ErrInvalidRequest)
	}

	slug := req.Slug
	if slug == "" {
		slug = Slugify(req.Name)
	}
	category := req.Category
	if category == "" {
		category = "action"
	}
	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = domain.DifficultyMedium
	}

	game, err := s.store.CreateGame(ctx, domain.Game{
		Name:        req.Name,
		Slug:        slug,
		Description: req.Description,
		Category:    category,
		Difficulty:  difficulty,
		IsActive:    true,
		IsFeatured:  req.IsFeatured,
	})
	if err != nil {
		return domain.Game{}, err
	}

	s.logger.Info("game created", "slug", game.Slug, "name", game.Name)
	return game, nil
}

// RecordPlay bumps a game's play counter. Invoked when a play session starts;
// unrelated to ranking correctness.
func (s *GameService) RecordPlay(ctx context.Context, slug string) error {
	game, err := s.store.GameBySlug(ctx, slug)
	if err != nil {
		return err
	}
	return s.store.IncrementPlayCount(ctx, game.ID)
}

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL-safe slug from a display name
func Slugify(name string) string {
	slug := slugInvalid.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}
