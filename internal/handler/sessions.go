package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/arcadehub/arcade/internal/domain"
)

type sessionRequest struct {
	SessionID string `json:"session_id"`
	UserName  string `json:"user_name,omitempty"`
}

// sessionIdentity resolves who the session belongs to. Authenticated players
// carry their account identity; guests are tracked by session id only.
func (h *Handler) sessionIdentity(r *http.Request, req sessionRequest) (string, *int64) {
	if claims := claimsFromContext(r.Context()); claims != nil {
		return claims.UserName, &claims.UserID
	}
	return req.UserName, nil
}

// StartSession registers a player as actively playing a game
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	slug := chi.URLParam(r, "gameSlug")
	userName, userID := h.sessionIdentity(r, req)

	result, err := h.sessions.Start(r.Context(), slug, req.SessionID, userName, userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, result)
}

// SessionHeartbeat refreshes an active session's last-seen time
func (h *Handler) SessionHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	slug := chi.URLParam(r, "gameSlug")
	_, userID := h.sessionIdentity(r, req)

	count, err := h.sessions.Heartbeat(r.Context(), slug, req.SessionID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, map[string]any{"active_players": count})
}

// EndSession removes a player's active session
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	slug := chi.URLParam(r, "gameSlug")
	userName, userID := h.sessionIdentity(r, req)

	count, err := h.sessions.End(r.Context(), slug, req.SessionID, userName, userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, map[string]any{"active_players": count})
}

// GetActivePlayers lists players currently in a game
func (h *Handler) GetActivePlayers(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "gameSlug")

	players, err := h.sessions.ActivePlayers(r.Context(), slug)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, map[string]any{
		"count":   len(players),
		"players": players,
	})
}
