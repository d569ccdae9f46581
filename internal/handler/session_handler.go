package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"confidee-relayer/internal/model"
	"confidee-relayer/internal/ratelimit"
	"confidee-relayer/internal/service"
)

// SessionHandler serves the wallet handshake, logout and quota report.
type SessionHandler struct {
	sessions *service.SessionService
	limiter  *ratelimit.Limiter
	logger   *zap.Logger
}

func NewSessionHandler(sessions *service.SessionService, limiter *ratelimit.Limiter, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		limiter:  limiter,
		logger:   logger,
	}
}

func (h *SessionHandler) RegisterRoutes(router chi.Router) {
	router.Post("/session/create", h.CreateSession)
	router.Post("/session/logout", h.Logout)
	router.Get("/rate-limits", h.RateLimits)
}

type createSessionResponse struct {
	Success   bool   `json:"success"`
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"` // unix millis
}

// CreateSession exchanges a signed challenge for a bearer token.
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req service.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, r, h.logger, service.ErrMissingFields, false)
		return
	}

	grant, err := h.sessions.CreateSession(r.Context(), req)
	if err != nil {
		respondWithError(w, r, h.logger, err, false)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, createSessionResponse{
		Success:   true,
		Token:     grant.Token,
		ExpiresAt: grant.ExpiresAt.UnixMilli(),
	})
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		respondWithJSON(w, h.logger, http.StatusUnauthorized, errorBody{Error: "No session token provided"})
		return
	}
	if err := h.sessions.Logout(r.Context(), token); err != nil {
		respondWithError(w, r, h.logger, err, false)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, map[string]bool{"success": true})
}

type limitView struct {
	Used      int   `json:"used"`
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	ResetAt   int64 `json:"resetAt"` // unix millis
}

type rateLimitsResponse struct {
	Success bool                 `json:"success"`
	Address string               `json:"address"`
	Limits  map[string]limitView `json:"limits"`
}

// RateLimits reports today's usage for every action of the caller.
func (h *SessionHandler) RateLimits(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		respondWithJSON(w, h.logger, http.StatusUnauthorized, errorBody{Error: "No session token provided"})
		return
	}

	session, err := h.sessions.Resolve(r.Context(), token)
	if err != nil {
		respondWithError(w, r, h.logger, err, false)
		return
	}

	snapshot, err := h.limiter.Snapshot(r.Context(), session.Address)
	if err != nil {
		respondWithError(w, r, h.logger, err, false)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, rateLimitsResponse{
		Success: true,
		Address: session.Address,
		Limits:  toLimitViews(snapshot),
	})
}

func toLimitViews(snapshot map[string]model.RateLimitInfo) map[string]limitView {
	out := make(map[string]limitView, len(snapshot))
	for action, info := range snapshot {
		out[action] = limitView{
			Used:      info.Used,
			Limit:     info.Limit,
			Remaining: info.Remaining,
			ResetAt:   info.ResetAt.UnixMilli(),
		}
	}
	return out
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
