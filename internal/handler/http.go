// Package handler exposes the HTTP API. It marshals requests into the
// services and maps domain errors onto status codes; no ranking logic lives
// here.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/arcadehub/arcade/internal/auth"
	"github.com/arcadehub/arcade/internal/config"
	"github.com/arcadehub/arcade/internal/domain"
	"github.com/arcadehub/arcade/internal/metrics"
	"github.com/arcadehub/arcade/internal/websocket"
)

// LeaderboardAPI is the score/leaderboard surface the handler talks to
type LeaderboardAPI interface {
	SubmitScore(ctx context.Context, gameSlug, userName string, userID int64, sub domain.ScoreSubmission) (*domain.SubmitResult, error)
	Leaderboard(ctx context.Context, gameSlug string, tf domain.Timeframe, limit int, viewerID *int64) (*domain.Leaderboard, error)
	UserRank(ctx context.Context, gameSlug string, userID int64, tf domain.Timeframe) (int64, error)
}

// GameAPI is the game catalog surface the handler talks to
type GameAPI interface {
	List(ctx context.Context) ([]domain.Game, error)
	BySlug(ctx context.Context, slug string) (*domain.Game, error)
	Create(ctx context.Context, req domain.CreateGameRequest) (domain.Game, error)
	RecordPlay(ctx context.Context, slug string) error
}

// SessionAPI is the presence surface the handler talks to
type SessionAPI interface {
	Start(ctx context.Context, gameSlug, sessionID, userName string, userID *int64) (*domain.SessionStartResult, error)
	Heartbeat(ctx context.Context, gameSlug, sessionID string, userID *int64) (int, error)
	End(ctx context.Context, gameSlug, sessionID, userName string, userID *int64) (int, error)
	ActivePlayers(ctx context.Context, gameSlug string) ([]domain.ActivePlayer, error)
}

// AuthAPI is the account surface the handler talks to
type AuthAPI interface {
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.AuthResult, error)
	Login(ctx context.Context, req domain.LoginRequest) (*domain.AuthResult, error)
}

// Handler provides HTTP handlers for the arcade API
type Handler struct {
	leaderboards LeaderboardAPI
	games        GameAPI
	sessions     SessionAPI
	accounts     AuthAPI
	tokens       *auth.TokenManager
	roles        *config.RolesConfig
	hub          *websocket.Hub
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	leaderboards LeaderboardAPI,
	games GameAPI,
	sessions SessionAPI,
	accounts AuthAPI,
	tokens *auth.TokenManager,
	roles *config.RolesConfig,
	hub *websocket.Hub,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		leaderboards: leaderboards,
		games:        games,
		sessions:     sessions,
		accounts:     accounts,
		tokens:       tokens,
		roles:        roles,
		hub:          hub,
		metrics:      m,
		logger:       logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)
	r.Use(countRequests(h.metrics))
	r.Use(h.authenticate)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)

		r.Route("/games", func(r chi.Router) {
			r.Get("/", h.ListGames)
			r.With(h.requirePermission("manage-content")).Post("/", h.CreateGame)

			r.Route("/{gameSlug}", func(r chi.Router) {
				r.Post("/play", h.RecordPlay)
				r.Get("/leaderboard", h.GetLeaderboard)
				r.With(h.requireAuth).Post("/scores", h.SubmitScore)
				r.With(h.requireAuth).Get("/rank", h.GetUserRank)

				r.Route("/sessions", func(r chi.Router) {
					r.Post("/start", h.StartSession)
					r.Post("/heartbeat", h.SessionHeartbeat)
					r.Post("/end", h.EndSession)
					r.Get("/active", h.GetActivePlayers)
				})
			})
		})

		// WebSocket info endpoint
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data any) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// writeDomainError maps a domain error onto its HTTP status
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsValidationError(err):
		h.writeError(w, http.StatusBadRequest, err)
	case domain.IsNotFoundError(err):
		h.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrAuthRequired):
		h.writeError(w, http.StatusUnauthorized, err)
	case errors.Is(err, domain.ErrPermissionDenied):
		h.writeError(w, http.StatusForbidden, err)
	default:
		h.logger.Error("request failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
	}
}

// HandleWebSocket upgrades the connection, carrying over the identity the
// authenticate middleware resolved from the token, if any
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	var identity websocket.Identity
	if claims := claimsFromContext(r.Context()); claims != nil {
		identity = websocket.Identity{UserName: claims.UserName, UserID: &claims.UserID}
	}
	websocket.ServeWs(h.hub, h.games, h.logger, w, r, identity)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]any{
		"total_connections": h.hub.GetTotalConnections(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// Register handles account registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	result, err := h.accounts.Register(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			h.writeError(w, http.StatusConflict, err)
			return
		}
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, APIResponse{Success: true, Data: result})
}

// Login handles account login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	result, err := h.accounts.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			h.writeError(w, http.StatusUnauthorized, err)
			return
		}
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, result)
}

// ListGames returns the active game catalog
func (h *Handler) ListGames(w http.ResponseWriter, r *http.Request) {
	games, err := h.games.List(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, games)
}

// CreateGame registers a new game
func (h *Handler) CreateGame(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	game, err := h.games.Create(r.Context(), req)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, APIResponse{Success: true, Data: game})
}

// RecordPlay bumps a game's play counter
func (h *Handler) RecordPlay(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "gameSlug")
	if err := h.games.RecordPlay(r.Context(), slug); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "recorded"})
}

// SubmitScore handles score submission for the authenticated player
func (h *Handler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	var sub domain.ScoreSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	slug := chi.URLParam(r, "gameSlug")
	result, err := h.leaderboards.SubmitScore(r.Context(), slug, claims.UserName, claims.UserID, sub)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, result)
}

// GetLeaderboard returns a game's leaderboard. Guests see the top entries;
// authenticated callers also get their own standing.
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "gameSlug")
	tf := domain.ParseTimeframe(r.URL.Query().Get("timeframe"))

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 {
			h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
			return
		}
		limit = l
	}

	var viewerID *int64
	if claims := claimsFromContext(r.Context()); claims != nil {
		viewerID = &claims.UserID
	}

	board, err := h.leaderboards.Leaderboard(r.Context(), slug, tf, limit, viewerID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, board)
}

// GetUserRank returns the authenticated player's rank for a game
func (h *Handler) GetUserRank(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	slug := chi.URLParam(r, "gameSlug")
	tf := domain.ParseTimeframe(r.URL.Query().Get("timeframe"))

	rank, err := h.leaderboards.UserRank(r.Context(), slug, claims.UserID, tf)
	if err != nil {
		if errors.Is(err, domain.ErrNoScore) {
			// No score is a valid answer, not a failure
			h.writeSuccess(w, map[string]any{"rank": nil})
			return
		}
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, map[string]any{"rank": rank})
}
