// ABOUTME: Slack webhook handlers for Events API deliveries and button interactions
// ABOUTME: Validates tokens and signatures and maps relay outcomes onto HTTP status codes

package gateway

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/2389/assistant-relay/internal/relay"
	"github.com/2389/assistant-relay/internal/slack"
)

// maxBodyBytes bounds inbound webhook bodies.
const maxBodyBytes = 1 << 20

// readBody reads a bounded request body and checks its signature when a
// signing secret is configured.
func (g *Gateway) readBody(w http.ResponseWriter, r *http.Request) ([]byte, int, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, http.StatusBadRequest, err
	}

	if secret := g.config.Slack.SigningSecret; secret != "" {
		if err := slack.VerifySignature(secret, r.Header, body, g.now()); err != nil {
			return nil, http.StatusUnauthorized, err
		}
	}
	return body, 0, nil
}

func (g *Gateway) tokenMatches(token string) bool {
	return subtle.ConstantTimeCompare([]byte(token), []byte(g.config.Slack.WebhookSecret)) == 1
}

// handleEvents serves the Events API endpoint.
func (g *Gateway) handleEvents(w http.ResponseWriter, r *http.Request) {
	body, status, err := g.readBody(w, r)
	if err != nil {
		g.logger.Warn("rejected event delivery", "error", err)
		http.Error(w, http.StatusText(status), status)
		return
	}

	env, err := slack.ParseEnvelope(body)
	if err != nil {
		g.logger.Warn("undecodable event delivery", "error", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if env.Challenge != nil {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(*env.Challenge))
		return
	}

	if env.Token == "" || env.EventID == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if !g.tokenMatches(env.Token) {
		g.logger.Warn("event token mismatch", "team_id", env.TeamID)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	if env.Event == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	// the reply must finish even if the platform stops waiting
	ctx := context.WithoutCancel(r.Context())

	outcome, err := g.relay.HandleEvent(ctx, env.EventID, env.Event)
	if err != nil {
		g.logger.Warn("malformed event", "event_id", env.EventID, "error", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if outcome != relay.Handled {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	_, _ = w.Write([]byte(outcome.String()))
}

// handleAction serves the interactivity endpoint for option buttons.
func (g *Gateway) handleAction(w http.ResponseWriter, r *http.Request) {
	body, status, err := g.readBody(w, r)
	if err != nil {
		g.logger.Warn("rejected action delivery", "error", err)
		http.Error(w, http.StatusText(status), status)
		return
	}

	form, err := url.ParseQuery(string(body))
	if err != nil || form.Get("payload") == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	payload, err := slack.ParseActionPayload(form.Get("payload"))
	if err != nil {
		g.logger.Warn("undecodable action payload", "error", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	// mismatched tokens are acknowledged so the platform does not retry
	if !g.tokenMatches(payload.Token) {
		g.logger.Warn("action token mismatch", "user", payload.User.ID)
		w.WriteHeader(http.StatusOK)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	if err := g.relay.HandleAction(ctx, payload); err != nil {
		if errors.Is(err, slack.ErrBadActionValue) {
			g.logger.Warn("unrecognized button value", "user", payload.User.ID, "error", err)
		} else {
			g.logger.Error("handling action failed", "user", payload.User.ID, "error", err)
		}
	}
	w.WriteHeader(http.StatusOK)
}
