package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arcadehub/arcade/internal/config"
	"github.com/arcadehub/arcade/internal/domain"
)

// Repository provides PostgreSQL-based data access. game_scores is treated as
// an append-only ledger: the repository exposes no update or delete for score
// rows.
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(32) NOT NULL DEFAULT 'player',
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS games (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			slug VARCHAR(255) NOT NULL UNIQUE,
			description TEXT,
			category VARCHAR(64) DEFAULT 'action',
			difficulty VARCHAR(16) DEFAULT 'medium',
			is_active BOOLEAN DEFAULT TRUE,
			is_featured BOOLEAN DEFAULT FALSE,
			play_count BIGINT DEFAULT 0,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS game_scores (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			game_id BIGINT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
			score BIGINT NOT NULL CHECK (score >= 0),
			level_reached INT,
			time_played_seconds INT,
			game_data JSONB,
			completed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_game_scores_game_score ON game_scores(game_id, score DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_game_scores_user_game ON game_scores(user_id, game_id)`,
		`CREATE INDEX IF NOT EXISTS idx_game_scores_game_created ON game_scores(game_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_games_active_featured ON games(is_active, is_featured)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// AppendScore validates and persists a new score record, assigning its id and
// created_at. The write either lands whole or not at all.
func (r *Repository) AppendScore(ctx context.Context, sub domain.ScoreSubmission) (domain.ScoreRecord, error) {
	if sub.Score < 0 {
		return domain.ScoreRecord{}, domain.ErrInvalidScore
	}

	var gameDataJSON []byte
	var err error
	if sub.GameData != nil {
		gameDataJSON, err = json.Marshal(sub.GameData)
		if err != nil {
			return domain.ScoreRecord{}, fmt.Errorf("marshaling game data: %w", err)
		}
	}

	completedAt := time.Now()
	if sub.CompletedAt != nil {
		completedAt = *sub.CompletedAt
	}

	query := `
		INSERT INTO game_scores (user_id, game_id, score, level_reached, time_played_seconds, game_data, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	record := domain.ScoreRecord{
		UserID:            sub.UserID,
		GameID:            sub.GameID,
		Score:             sub.Score,
		LevelReached:      sub.LevelReached,
		TimePlayedSeconds: sub.TimePlayedSeconds,
		GameData:          sub.GameData,
		CompletedAt:       completedAt,
	}
	err = r.pool.QueryRow(ctx, query,
		sub.UserID,
		sub.GameID,
		sub.Score,
		sub.LevelReached,
		sub.TimePlayedSeconds,
		gameDataJSON,
		completedAt,
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return domain.ScoreRecord{}, fmt.Errorf("appending score: %w", err)
	}
	return record, nil
}

// ScoresByGame returns all score records for a game with created_at >= since.
// A zero since returns the full history. Ordering is left to the caller.
func (r *Repository) ScoresByGame(ctx context.Context, gameID int64, since time.Time) ([]domain.ScoreRecord, error) {
	query := `
		SELECT id, user_id, game_id, score, level_reached, time_played_seconds, game_data, completed_at, created_at
		FROM game_scores
		WHERE game_id = $1 AND ($2::timestamptz IS NULL OR created_at >= $2)
	`
	var sinceArg *time.Time
	if !since.IsZero() {
		sinceArg = &since
	}

	rows, err := r.pool.Query(ctx, query, gameID, sinceArg)
	if err != nil {
		return nil, fmt.Errorf("querying game scores: %w", err)
	}
	defer rows.Close()

	return scanScoreRecords(rows)
}

// ScoresByUserGame returns all score records a user holds for a game
func (r *Repository) ScoresByUserGame(ctx context.Context, userID, gameID int64) ([]domain.ScoreRecord, error) {
	query := `
		SELECT id, user_id, game_id, score, level_reached, time_played_seconds, game_data, completed_at, created_at
		FROM game_scores
		WHERE user_id = $1 AND game_id = $2
	`
	rows, err := r.pool.Query(ctx, query, userID, gameID)
	if err != nil {
		return nil, fmt.Errorf("querying user scores: %w", err)
	}
	defer rows.Close()

	return scanScoreRecords(rows)
}

func scanScoreRecords(rows pgx.Rows) ([]domain.ScoreRecord, error) {
	var records []domain.ScoreRecord
	for rows.Next() {
		var rec domain.ScoreRecord
		var gameDataJSON []byte
		err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.GameID,
			&rec.Score,
			&rec.LevelReached,
			&rec.TimePlayedSeconds,
			&gameDataJSON,
			&rec.CompletedAt,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning score record: %w", err)
		}
		if len(gameDataJSON) > 0 {
			if err := json.Unmarshal(gameDataJSON, &rec.GameData); err != nil {
				return nil, fmt.Errorf("unmarshaling game data: %w", err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading score rows: %w", err)
	}
	return records, nil
}

// GameBySlug retrieves a game by its slug
func (r *Repository) GameBySlug(ctx context.Context, slug string) (*domain.Game, error) {
	query := `
		SELECT id, name, slug, description, category, difficulty, is_active, is_featured, play_count, created_at, updated_at
		FROM games
		WHERE slug = $1
	`
	var g domain.Game
	err := r.pool.QueryRow(ctx, query, slug).Scan(
		&g.ID, &g.Name, &g.Slug, &g.Description, &g.Category, &g.Difficulty,
		&g.IsActive, &g.IsFeatured, &g.PlayCount, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrGameNotFound
		}
		return nil, fmt.Errorf("getting game by slug: %w", err)
	}
	return &g, nil
}

// ListGames retrieves all active games, featured first
func (r *Repository) ListGames(ctx context.Context) ([]domain.Game, error) {
	query := `
		SELECT id, name, slug, description, category, difficulty, is_active, is_featured, play_count, created_at, updated_at
		FROM games
		WHERE is_active = TRUE
		ORDER BY is_featured DESC, name ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing games: %w", err)
	}
	defer rows.Close()

	var games []domain.Game
	for rows.Next() {
		var g domain.Game
		err := rows.Scan(
			&g.ID, &g.Name, &g.Slug, &g.Description, &g.Category, &g.Difficulty,
			&g.IsActive, &g.IsFeatured, &g.PlayCount, &g.CreatedAt, &g.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning game: %w", err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// CreateGame registers a new game
func (r *Repository) CreateGame(ctx context.Context, g domain.Game) (domain.Game, error) {
	query := `
		INSERT INTO games (name, slug, description, category, difficulty, is_active, is_featured)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, play_count, created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		g.Name, g.Slug, g.Description, g.Category, g.Difficulty, g.IsActive, g.IsFeatured,
	).Scan(&g.ID, &g.PlayCount, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return domain.Game{}, fmt.Errorf("creating game: %w", err)
	}
	return g, nil
}

// IncrementPlayCount bumps a game's play counter
func (r *Repository) IncrementPlayCount(ctx context.Context, gameID int64) error {
	query := `UPDATE games SET play_count = play_count + 1, updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, gameID)
	if err != nil {
		return fmt.Errorf("incrementing play count: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrGameNotFound
	}
	return nil
}

// CreateUser persists a new user account
func (r *Repository) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	query := `
		INSERT INTO users (name, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := r.pool.QueryRow(ctx, query, u.Name, u.Email, u.PasswordHash, u.Role).
		Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.User{}, domain.ErrUserExists
		}
		return domain.User{}, fmt.Errorf("creating user: %w", err)
	}
	return u, nil
}

// UserByEmail retrieves a user by email
func (r *Repository) UserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT id, name, email, password_hash, role, created_at FROM users WHERE email = $1`
	return r.scanUser(r.pool.QueryRow(ctx, query, email))
}

// UserByID retrieves a user by id
func (r *Repository) UserByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT id, name, email, password_hash, role, created_at FROM users WHERE id = $1`
	return r.scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *Repository) scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return &u, nil
}

// UserNamesByIDs resolves display names for a set of user ids
func (r *Repository) UserNamesByIDs(ctx context.Context, ids []int64) (map[int64]string, error) {
	names := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	query := `SELECT id, name FROM users WHERE id = ANY($1)`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("querying user names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scanning user name: %w", err)
		}
		names[id] = name
	}
	return names, rows.Err()
}
