package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	authapp "rpg-server/internal/app/auth"
	charapp "rpg-server/internal/app/character"
	eventsapp "rpg-server/internal/app/events"
)

type Handler struct {
	logger      zerolog.Logger
	auth        *authapp.Service
	characters  *charapp.Service
	events      *eventsapp.Service
	corsOrigin  string
	maxBodySize int64
}

type contextKey string

const accountIDContextKey contextKey = "account_id"

func NewHandler(logger zerolog.Logger, auth *authapp.Service, characters *charapp.Service, events *eventsapp.Service, corsOrigin string, maxBodySize int64) *Handler {
	return &Handler{logger: logger, auth: auth, characters: characters, events: events, corsOrigin: corsOrigin, maxBodySize: maxBodySize}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(20 * time.Second))
	r.Use(h.cors)

	r.Get("/healthz", h.health)
	r.Get("/readyz", h.ready)

	r.Route("/v1", func(v1 chi.Router) {
		v1.Post("/auth/sign-up", h.signUp)
		v1.Post("/auth/sign-in", h.signIn)
		v1.Get("/events/ws", h.eventsWS)

		// Anyone may look at a character; the projection hides money
		// from everyone but the owner.
		v1.With(h.optionalAuthMiddleware).Get("/characters/{characterID}", h.getCharacter)

		v1.Group(func(protected chi.Router) {
			protected.Use(h.authMiddleware)
			protected.Post("/characters", h.createCharacter)
			protected.Delete("/characters/{characterID}", h.deleteCharacter)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) ready(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (h *Handler) signUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Account         string `json:"account"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirm_password"`
		Name            string `json:"name"`
	}
	if !h.decodeBody(w, r, &req) {
		return
	}
	summary, err := h.auth.SignUp(r.Context(), req.Account, req.Password, req.ConfirmPassword, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, authapp.ErrHandleTaken):
			writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
		case errors.Is(err, authapp.ErrInvalidHandle),
			errors.Is(err, authapp.ErrWeakPassword),
			errors.Is(err, authapp.ErrPasswordMismatch):
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		default:
			h.logger.Error().Err(err).Msg("sign-up failed")
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
		}
		return
	}
	writeJSON(w, http.StatusCreated, summary)
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Account  string `json:"account"`
		Password string `json:"password"`
	}
	if !h.decodeBody(w, r, &req) {
		return
	}
	token, err := h.auth.SignIn(r.Context(), req.Account, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, authapp.ErrUnknownAccount), errors.Is(err, authapp.ErrWrongPassword):
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": err.Error()})
		default:
			h.logger.Error().Err(err).Msg("sign-in failed")
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token})
}

func (h *Handler) createCharacter(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromCtx(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if !h.decodeBody(w, r, &req) {
		return
	}
	id, err := h.characters.Create(r.Context(), accountID, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, charapp.ErrNameTaken):
			writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
		case errors.Is(err, charapp.ErrNameRequired):
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		default:
			h.logger.Error().Err(err).Int64("account_id", accountID).Msg("create character failed")
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
		}
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (h *Handler) deleteCharacter(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromCtx(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
		return
	}
	characterID, ok := characterIDParam(w, r)
	if !ok {
		return
	}
	if err := h.characters.Delete(r.Context(), accountID, characterID); err != nil {
		switch {
		case errors.Is(err, charapp.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]any{"error": err.Error()})
		case errors.Is(err, charapp.ErrForbidden):
			writeJSON(w, http.StatusForbidden, map[string]any{"error": "not allowed to delete this character"})
		default:
			h.logger.Error().Err(err).Int64("character_id", characterID).Msg("delete character failed")
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "character deleted"})
}

func (h *Handler) getCharacter(w http.ResponseWriter, r *http.Request) {
	callerID, _ := accountIDFromCtx(r.Context())
	characterID, ok := characterIDParam(w, r)
	if !ok {
		return
	}
	view, err := h.characters.Get(r.Context(), callerID, characterID)
	if err != nil {
		switch {
		case errors.Is(err, charapp.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]any{"error": err.Error()})
		default:
			h.logger.Error().Err(err).Int64("character_id", characterID).Msg("get character failed")
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
		}
		return
	}
	writeJSON(w, http.StatusOK, view)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

func (h *Handler) eventsWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(r)
	}
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "missing token"})
		return
	}
	accountID, err := h.auth.ParseToken(token)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid token"})
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := h.events.RegisterClient(conn, accountID)
	go h.writePump(client)
	h.readPump(client)
}

// readPump drains the connection so pings and close frames are handled;
// the feed itself is one-way.
func (h *Handler) readPump(client *eventsapp.Client) {
	defer h.events.UnregisterClient(client)
	if client.Conn == nil {
		return
	}
	client.Conn.SetReadLimit(512)
	_ = client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.Conn.SetPongHandler(func(string) error {
		_ = client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) writePump(client *eventsapp.Client) {
	if client.Conn == nil {
		return
	}
	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-client.Send:
			if !ok {
				_ = client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "missing bearer token"})
			return
		}
		accountID, err := h.auth.ParseToken(token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid token"})
			return
		}
		ctx := context.WithValue(r.Context(), accountIDContextKey, accountID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// optionalAuthMiddleware resolves a bearer token when one is presented but
// lets anonymous requests through. A presented-but-invalid token is still
// rejected rather than silently downgraded.
func (h *Handler) optionalAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		accountID, err := h.auth.ParseToken(token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid token"})
			return
		}
		ctx := context.WithValue(r.Context(), accountIDContextKey, accountID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
}

func accountIDFromCtx(ctx context.Context) (int64, bool) {
	v := ctx.Value(accountIDContextKey)
	id, ok := v.(int64)
	return id, ok
}

func characterIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "characterID"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid character id"})
		return 0, false
	}
	return id, true
}

func (h *Handler) cors(next http.Handler) http.Handler {
	origin := h.corsOrigin
	if origin == "" {
		origin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization,Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
