// ABOUTME: Backend interface, request/reply types and the error taxonomy for assistant calls
// ABOUTME: Both Direct and Proxy strategies produce the same Reply and the same sentinel errors

package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by backends.
var (
	// ErrSessionInvalid means the backend lost or rejected the session.
	ErrSessionInvalid = errors.New("assistant session invalid")

	// ErrUpstreamMisconfigured means the backend is unreachable or rejects
	// this deployment's credentials or integration id.
	ErrUpstreamMisconfigured = errors.New("assistant upstream misconfigured")
)

// UpstreamError describes a fatal backend failure.
type UpstreamError struct {
	Op     string // what was being attempted, e.g. "create session"
	Status int    // HTTP status, zero when no response was received
	Code   string // fault code reported in a response body
	Body   string
	Err    error
}

func (e *UpstreamError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Op, ErrUpstreamMisconfigured)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " (fault code %s)", e.Code)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Body != "" {
		fmt.Fprintf(&b, ": %s", e.Body)
	}
	return b.String()
}

// Unwrap lets errors.Is match both ErrUpstreamMisconfigured and the cause.
func (e *UpstreamError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrUpstreamMisconfigured, e.Err}
	}
	return []error{ErrUpstreamMisconfigured}
}

// IsFatal reports whether err should stop the process.
func IsFatal(err error) bool {
	return errors.Is(err, ErrUpstreamMisconfigured)
}

// Backend is one assistant strategy.
type Backend interface {
	// CreateSession starts a backend session and returns its id.
	// Strategies that learn ids lazily return an empty id.
	CreateSession(ctx context.Context) (string, error)

	// Send delivers one user turn and returns the assistant's reply.
	Send(ctx context.Context, req *Request) (*Reply, error)
}

// Request is one turn sent to the assistant.
type Request struct {
	User      string
	SessionID string
	Text      string
	Context   map[string]any
}

// input is the assistant-facing message input.
type input struct {
	MessageType string       `json:"message_type"`
	Text        string       `json:"text"`
	Options     inputOptions `json:"options"`
}

type inputOptions struct {
	ReturnContext bool `json:"return_context"`
}

func newInput(text string) input {
	return input{
		MessageType: "text",
		Text:        text,
		Options:     inputOptions{ReturnContext: true},
	}
}

// NoText is recorded in history when a reply carries no text.
const NoText = "{ NO TEXT RETURNED }"

// Reply is a normalized assistant response.
type Reply struct {
	Output  Output         `json:"output"`
	Context map[string]any `json:"context,omitempty"`

	// Raw is the response exactly as the backend returned it.
	Raw json.RawMessage `json:"-"`
}

// Output holds the renderable parts of a reply.
type Output struct {
	Generic []Generic `json:"generic"`
	Actions []Action  `json:"actions,omitempty"`
}

// Generic is one renderable response element.
type Generic struct {
	ResponseType string `json:"response_type"`

	// text
	Text string `json:"text,omitempty"`

	// option
	Title   string   `json:"title,omitempty"`
	Options []Option `json:"options,omitempty"`

	// image
	Source      string `json:"source,omitempty"`
	Description string `json:"description,omitempty"`
}

// Option is a selectable choice offered by the assistant.
type Option struct {
	Label string      `json:"label"`
	Value OptionValue `json:"value"`
}

// OptionValue is the input sent back when an option is chosen.
type OptionValue struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
}

// Action is a request from the assistant for the client to do something.
type Action struct {
	Type       string         `json:"type"`
	Name       string         `json:"name,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// ParseReply decodes a backend response body.
func ParseReply(data []byte) (*Reply, error) {
	var r Reply
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding assistant reply: %w", err)
	}
	r.Raw = append(json.RawMessage(nil), data...)
	return &r, nil
}

// Text concatenates the text elements of the reply.
func (r *Reply) Text() string {
	var b strings.Builder
	for _, g := range r.Output.Generic {
		if g.ResponseType == "text" {
			b.WriteString(g.Text)
		}
	}
	return b.String()
}

// HistoryText is the reply's text, or NoText when it has none.
func (r *Reply) HistoryText() string {
	if t := r.Text(); t != "" {
		return t
	}
	return NoText
}

// ClientAction returns the first action when it asks the client to act.
func (r *Reply) ClientAction() (*Action, bool) {
	if len(r.Output.Actions) == 0 || r.Output.Actions[0].Type != "client" {
		return nil, false
	}
	return &r.Output.Actions[0], true
}

// Payload decodes Raw into a generic map, for storing as session context.
func (r *Reply) Payload() map[string]any {
	var m map[string]any
	if len(r.Raw) > 0 && json.Unmarshal(r.Raw, &m) == nil {
		return m
	}
	m = map[string]any{"output": r.Output}
	if r.Context != nil {
		m["context"] = r.Context
	}
	return m
}
