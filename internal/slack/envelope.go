// ABOUTME: Inbound Events API envelopes and block_actions interaction payloads
// ABOUTME: Only the fields the relay routes on are decoded; blocks are kept raw

package slack

import (
	"encoding/json"
	"fmt"

	"github.com/2389/assistant-relay/internal/event"
)

// Envelope is an Events API request body.
type Envelope struct {
	Token     string    `json:"token"`
	Challenge *string   `json:"challenge"`
	Type      string    `json:"type"`
	TeamID    string    `json:"team_id"`
	EventID   string    `json:"event_id"`
	Event     event.Raw `json:"event"`
}

// ParseEnvelope decodes an Events API body.
func ParseEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decoding event envelope: %w", err)
	}
	return &env, nil
}

// ActionPayload is a block_actions interaction, posted as the form field "payload".
type ActionPayload struct {
	Type        string `json:"type"`
	Token       string `json:"token"`
	ResponseURL string `json:"response_url"`

	User struct {
		ID string `json:"id"`
	} `json:"user"`

	Channel struct {
		ID string `json:"id"`
	} `json:"channel"`

	Actions []struct {
		Type     string `json:"type"`
		ActionID string `json:"action_id"`
		Value    string `json:"value"`
	} `json:"actions"`

	Message struct {
		TS     string            `json:"ts"`
		Blocks []json.RawMessage `json:"blocks"`
	} `json:"message"`
}

// ParseActionPayload decodes the "payload" form value of an interaction.
func ParseActionPayload(payload string) (*ActionPayload, error) {
	var p ActionPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, fmt.Errorf("decoding action payload: %w", err)
	}
	return &p, nil
}

// ButtonValue returns the value of the first action when it is a button.
func (p *ActionPayload) ButtonValue() (string, bool) {
	if len(p.Actions) == 0 || p.Actions[0].Type != "button" {
		return "", false
	}
	return p.Actions[0].Value, true
}
