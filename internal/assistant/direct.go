// ABOUTME: Direct strategy that calls the assistant v2 REST API with its own sessions
// ABOUTME: A 404 on a message maps to ErrSessionInvalid; session creation failures are fatal

package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// DefaultVersion is the API version date sent when none is configured.
const DefaultVersion = "2020-04-01"

const optOutHeader = "X-Watson-Learning-Opt-Out"

// DirectConfig configures the Direct strategy.
type DirectConfig struct {
	URL         string // service base URL
	Version     string
	APIKey      string
	AssistantID string
	OptOut      bool // ask the service not to learn from this traffic
	Client      *http.Client
}

// Direct talks to the assistant service without a proxy.
type Direct struct {
	cfg    DirectConfig
	client *http.Client
	logger *slog.Logger
}

// NewDirect creates the Direct strategy.
func NewDirect(cfg DirectConfig, logger *slog.Logger) *Direct {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Direct{
		cfg:    cfg,
		client: client,
		logger: logger.With("component", "assistant.direct"),
	}
}

func (d *Direct) endpoint(parts ...string) string {
	u := d.cfg.URL + "/v2/assistants/" + url.PathEscape(d.cfg.AssistantID) + "/sessions"
	for _, p := range parts {
		u += "/" + url.PathEscape(p)
	}
	return u + "?version=" + url.QueryEscape(d.cfg.Version)
}

// CreateSession opens a new assistant session. Any failure is an
// *UpstreamError since it means the credentials or assistant id are wrong.
func (d *Direct) CreateSession(ctx context.Context) (string, error) {
	status, body, err := d.post(ctx, d.endpoint(), nil)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		return "", &UpstreamError{Op: "create session", Err: err}
	}
	if status < 200 || status >= 300 {
		return "", &UpstreamError{Op: "create session", Status: status, Body: string(body)}
	}

	var created struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(body, &created); err != nil || created.SessionID == "" {
		return "", &UpstreamError{Op: "create session", Status: status, Body: string(body), Err: err}
	}

	d.logger.Debug("assistant session created", "backend_id", created.SessionID)
	return created.SessionID, nil
}

// Send posts one message to the session named in req.
func (d *Direct) Send(ctx context.Context, req *Request) (*Reply, error) {
	payload := map[string]any{
		"input":   newInput(req.Text),
		"context": req.Context,
	}

	status, body, err := d.post(ctx, d.endpoint(req.SessionID, "message"), payload)
	if err != nil {
		return nil, fmt.Errorf("sending message: %w", err)
	}

	switch {
	case status == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrSessionInvalid, bytes.TrimSpace(body))
	case status < 200 || status >= 300:
		return nil, fmt.Errorf("assistant returned status %d: %s", status, bytes.TrimSpace(body))
	}

	return ParseReply(body)
}

func (d *Direct) post(ctx context.Context, endpoint string, payload any) (int, []byte, error) {
	var reader io.Reader = http.NoBody
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth("apikey", d.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if d.cfg.OptOut {
		req.Header.Set(optOutHeader, "true")
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

var _ Backend = (*Direct)(nil)
