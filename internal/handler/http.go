package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gamehub-engine/internal/domain"
	"github.com/gamehub-engine/internal/engine"
	"github.com/gamehub-engine/internal/postgres"
	"github.com/gamehub-engine/internal/redis"
	"github.com/gamehub-engine/internal/websocket"
)

// Handler provides HTTP handlers for the game session API
type Handler struct {
	engine  *engine.Engine
	store   *redis.Store
	archive *postgres.Repository
	hub     *websocket.Hub
	logger  *slog.Logger
}

// NewHandler creates a new HTTP handler. store, archive and hub may be
// nil when the corresponding subsystem is disabled.
func NewHandler(eng *engine.Engine, store *redis.Store, archive *postgres.Repository, hub *websocket.Hub, logger *slog.Logger) *Handler {
	return &Handler{
		engine:  eng,
		store:   store,
		archive: archive,
		hub:     hub,
		logger:  logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
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

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/games", h.ListGameTypes)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.CreateSession)
			r.Get("/", h.ListSessions)

			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", h.GetSession)
				r.Post("/join", h.JoinSession)
				r.Post("/start", h.StartSession)
				r.Post("/cancel", h.CancelSession)
				r.Post("/actions", h.SubmitAction)
				r.Get("/leaderboard", h.GetSessionLeaderboard)
			})
		})

		// All-time leaderboards
		r.Route("/leaderboards/{gameType}", func(r chi.Router) {
			r.Get("/top", h.GetTop)
			r.Get("/player/{playerID}", h.GetPlayerRank)
		})

		// Finished-session archive
		r.Route("/archive", func(r chi.Router) {
			r.Get("/sessions", h.ListArchivedSessions)
			r.Get("/sessions/{sessionID}", h.GetArchivedSession)
		})

		// WebSocket info endpoint
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
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

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		h.writeError(w, http.StatusServiceUnavailable, domain.ErrInternalError)
		return
	}
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		h.writeSuccess(w, map[string]interface{}{"total_connections": 0})
		return
	}
	h.writeSuccess(w, map[string]interface{}{
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

// ListGameTypes returns the supported game types with their win thresholds
func (h *Handler) ListGameTypes(w http.ResponseWriter, r *http.Request) {
	games := make([]map[string]interface{}, 0, len(domain.GameTypes))
	for _, gt := range domain.GameTypes {
		games = append(games, map[string]interface{}{
			"game_type":     gt,
			"win_threshold": h.engine.Rules().WinThreshold(gt),
			"actions":       h.engine.Rules().ActionKinds(gt),
		})
	}
	h.writeSuccess(w, games)
}

// CreateSessionRequest is the session creation payload. Duration is
// given in seconds.
type CreateSessionRequest struct {
	GameType        domain.GameType        `json:"game_type"`
	MinPlayers      int                    `json:"min_players"`
	MaxPlayers      int                    `json:"max_players"`
	DurationSeconds int                    `json:"duration_seconds"`
	EntryFee        string                 `json:"entry_fee,omitempty"`
	PrizePool       string                 `json:"prize_pool,omitempty"`
	AIEnabled       bool                   `json:"ai_enabled"`
	RewardEligible  bool                   `json:"reward_eligible"`
	Difficulty      domain.Difficulty      `json:"difficulty,omitempty"`
	Settings        map[string]interface{} `json:"settings,omitempty"`
	Creator         domain.Player          `json:"creator"`
}

// CreateSession handles session creation
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if !domain.IsValidGameType(req.GameType) || req.MaxPlayers <= 0 ||
		req.MinPlayers <= 0 || req.MinPlayers > req.MaxPlayers || req.DurationSeconds <= 0 {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidConfig)
		return
	}

	sessionID := h.engine.CreateSession(r.Context(), domain.GameConfig{
		GameType:       req.GameType,
		MinPlayers:     req.MinPlayers,
		MaxPlayers:     req.MaxPlayers,
		Duration:       time.Duration(req.DurationSeconds) * time.Second,
		EntryFee:       req.EntryFee,
		PrizePool:      req.PrizePool,
		AIEnabled:      req.AIEnabled,
		RewardEligible: req.RewardEligible,
		Difficulty:     req.Difficulty,
		Settings:       req.Settings,
	}, req.Creator)

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    map[string]string{"session_id": sessionID},
	})
}

// ListSessions returns live sessions, optionally filtered by status
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	var statuses []domain.SessionStatus
	if s := r.URL.Query().Get("status"); s != "" {
		statuses = append(statuses, domain.SessionStatus(s))
	}
	h.writeSuccess(w, h.engine.SessionsByStatus(statuses...))
}

// GetSession returns one live session snapshot
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	snap, ok := h.engine.Session(sessionID)
	if !ok {
		h.writeError(w, http.StatusNotFound, domain.ErrSessionNotFound)
		return
	}
	h.writeSuccess(w, snap)
}

// JoinSession handles a player joining a waiting session
func (h *Handler) JoinSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var player domain.Player
	if err := json.NewDecoder(r.Body).Decode(&player); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if _, ok := h.engine.Session(sessionID); !ok {
		h.writeError(w, http.StatusNotFound, domain.ErrSessionNotFound)
		return
	}
	if !h.engine.JoinSession(r.Context(), sessionID, player) {
		h.writeError(w, http.StatusConflict, domain.ErrSessionNotJoinable)
		return
	}

	snap, _ := h.engine.Session(sessionID)
	h.writeSuccess(w, snap)
}

// StartSession manually starts a waiting session
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if _, ok := h.engine.Session(sessionID); !ok {
		h.writeError(w, http.StatusNotFound, domain.ErrSessionNotFound)
		return
	}
	if !h.engine.StartSession(r.Context(), sessionID) {
		h.writeError(w, http.StatusConflict, domain.ErrSessionNotStartable)
		return
	}

	snap, _ := h.engine.Session(sessionID)
	h.writeSuccess(w, snap)
}

// CancelSession cancels a waiting session
func (h *Handler) CancelSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if _, ok := h.engine.Session(sessionID); !ok {
		h.writeError(w, http.StatusNotFound, domain.ErrSessionNotFound)
		return
	}
	if !h.engine.CancelSession(r.Context(), sessionID) {
		h.writeError(w, http.StatusConflict, domain.ErrSessionNotStartable)
		return
	}

	h.writeSuccess(w, map[string]string{"status": "cancelled"})
}

// SubmitAction handles a player action against an active session
func (h *Handler) SubmitAction(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var action domain.Action
	if err := json.NewDecoder(r.Body).Decode(&action); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}
	if !action.Valid() {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidAction)
		return
	}

	if _, ok := h.engine.Session(sessionID); !ok {
		h.writeError(w, http.StatusNotFound, domain.ErrSessionNotFound)
		return
	}
	if !h.engine.ProcessAction(r.Context(), sessionID, action) {
		h.writeError(w, http.StatusConflict, domain.ErrInvalidAction)
		return
	}

	snap, _ := h.engine.Session(sessionID)
	h.writeSuccess(w, map[string]interface{}{
		"turn_count":  snap.TurnCount,
		"leaderboard": snap.Leaderboard,
	})
}

// GetSessionLeaderboard returns the live leaderboard for one session
func (h *Handler) GetSessionLeaderboard(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	snap, ok := h.engine.Session(sessionID)
	if !ok {
		h.writeError(w, http.StatusNotFound, domain.ErrSessionNotFound)
		return
	}
	h.writeSuccess(w, snap.Leaderboard)
}

// GetTop returns the top N all-time players for a game type
func (h *Handler) GetTop(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.writeError(w, http.StatusServiceUnavailable, domain.ErrInternalError)
		return
	}

	gameType := domain.GameType(chi.URLParam(r, "gameType"))
	if !domain.IsValidGameType(gameType) {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	n := 10
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > 1000 {
			h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
			return
		}
		n = parsed
	}

	entries, err := h.store.TopN(r.Context(), gameType, n)
	if err != nil {
		h.logger.Error("failed to get top players", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	count, err := h.store.Count(r.Context(), gameType)
	if err != nil {
		h.logger.Error("failed to get player count", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, map[string]interface{}{
		"game_type":     gameType,
		"entries":       entries,
		"total_players": count,
	})
}

// GetPlayerRank returns a player's all-time rank for a game type
func (h *Handler) GetPlayerRank(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.writeError(w, http.StatusServiceUnavailable, domain.ErrInternalError)
		return
	}

	gameType := domain.GameType(chi.URLParam(r, "gameType"))
	playerID := chi.URLParam(r, "playerID")
	if !domain.IsValidGameType(gameType) || playerID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	entry, err := h.store.PlayerRank(r.Context(), gameType, playerID)
	if err != nil {
		if domain.IsNotFoundError(err) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.logger.Error("failed to get player rank", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, entry)
}

// ListArchivedSessions returns finished sessions from the archive
func (h *Handler) ListArchivedSessions(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		h.writeError(w, http.StatusServiceUnavailable, domain.ErrInternalError)
		return
	}

	gameType := domain.GameType(r.URL.Query().Get("game_type"))
	if gameType != "" && !domain.IsValidGameType(gameType) {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > 500 {
			h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
			return
		}
		limit = parsed
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
			return
		}
		offset = parsed
	}

	sessions, err := h.archive.ListSessions(r.Context(), gameType, limit, offset)
	if err != nil {
		h.logger.Error("failed to list archived sessions", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, sessions)
}

// GetArchivedSession returns one finished session from the archive
func (h *Handler) GetArchivedSession(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		h.writeError(w, http.StatusServiceUnavailable, domain.ErrInternalError)
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.archive.GetSession(r.Context(), sessionID)
	if err != nil {
		if domain.IsNotFoundError(err) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.logger.Error("failed to get archived session", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, session)
}
