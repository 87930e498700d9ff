// ABOUTME: Admin HTTP API for inspecting and resetting conversation sessions
// ABOUTME: Reads live sessions from the store and past turns from the ledger

package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/2389/assistant-relay/internal/store"
)

// SessionResponse is one session in the admin API.
type SessionResponse struct {
	User       string    `json:"user"`
	SessionID  string    `json:"session_id"`
	BackendID  string    `json:"backend_id"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
	Turns      int       `json:"turns"`
	ExpiresAt  time.Time `json:"expires_at"`
	Expired    bool      `json:"expired"`
}

// TurnResponse is one ledger entry in the admin API.
type TurnResponse struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	BackendID string          `json:"backend_id"`
	Channel   string          `json:"channel"`
	Direction store.Direction `json:"direction"`
	Text      string          `json:"text"`
	CreatedAt time.Time       `json:"created_at"`
}

// writeJSON writes v as a JSON response.
func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	g.writeJSON(w, status, map[string]string{"error": message})
}

// handleListSessions returns every live session.
func (g *Gateway) handleListSessions(w http.ResponseWriter, r *http.Request) {
	now := g.sessions.Now()
	timeout := g.sessions.Timeout()
	list := g.sessions.List()

	resp := make([]SessionResponse, 0, len(list))
	for _, s := range list {
		resp = append(resp, SessionResponse{
			User:       s.User,
			SessionID:  s.ID,
			BackendID:  s.BackendID,
			CreatedAt:  s.CreatedAt,
			LastActive: s.LastActive,
			Turns:      len(s.History),
			ExpiresAt:  s.LastActive.Add(timeout),
			Expired:    g.sessions.IsExpired(s, now),
		})
	}

	g.writeJSON(w, http.StatusOK, map[string]any{
		"sessions":             resp,
		"idle_timeout_seconds": int(timeout.Seconds()),
	})
}

// handleDeleteSession drops a user's session so their next message starts over.
func (g *Gateway) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")

	unlock := g.sessions.Lock(user)
	deleted := g.sessions.Delete(user)
	unlock()

	if !deleted {
		g.sendJSONError(w, http.StatusNotFound, "session not found")
		return
	}
	g.logger.Info("session reset by operator", "user", user)
	w.WriteHeader(http.StatusNoContent)
}

// handleListTurns returns a user's recent ledger entries, oldest first.
func (g *Gateway) handleListTurns(w http.ResponseWriter, r *http.Request) {
	if g.ledger == nil {
		g.sendJSONError(w, http.StatusNotImplemented, "ledger disabled")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			g.sendJSONError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	turns, err := g.ledger.ListTurns(r.Context(), chi.URLParam(r, "user"), limit)
	if err != nil {
		g.logger.Error("listing turns failed", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "failed to list turns")
		return
	}

	resp := make([]TurnResponse, 0, len(turns))
	for _, t := range turns {
		resp = append(resp, TurnResponse{
			ID:        t.ID,
			SessionID: t.SessionID,
			BackendID: t.BackendID,
			Channel:   t.Channel,
			Direction: t.Direction,
			Text:      t.Text,
			CreatedAt: t.CreatedAt,
		})
	}

	g.writeJSON(w, http.StatusOK, map[string]any{"turns": resp})
}
