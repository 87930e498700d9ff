// ABOUTME: Proxy strategy that wraps turns in an integration envelope for a relay service
// ABOUTME: Learns rotated session ids from replies and maps proxy faults onto the error taxonomy

package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// invalidSessionMessage is the proxy's error message for an unknown session.
const invalidSessionMessage = "Invalid Session"

// SessionRotator records a backend session id learned from the proxy.
type SessionRotator interface {
	ReplaceBackendID(user, backendID string)
}

// ProxyConfig configures the Proxy strategy.
type ProxyConfig struct {
	URL           string
	IntegrationID string
	Client        *http.Client
}

// Proxy talks to the assistant through an integration proxy.
type Proxy struct {
	cfg      ProxyConfig
	client   *http.Client
	sessions SessionRotator
	logger   *slog.Logger
}

// NewProxy creates the Proxy strategy. Rotated session ids are written to sessions.
func NewProxy(cfg ProxyConfig, sessions SessionRotator, logger *slog.Logger) *Proxy {
	if logger == nil {
		logger = slog.Default()
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Proxy{
		cfg:      cfg,
		client:   client,
		sessions: sessions,
		logger:   logger.With("component", "assistant.proxy"),
	}
}

// CreateSession returns an empty id; the proxy assigns one on the first turn.
func (p *Proxy) CreateSession(ctx context.Context) (string, error) {
	return "", nil
}

type proxyEnvelope struct {
	SessionID     string       `json:"sessionId"`
	IntegrationID string       `json:"integration_id"`
	Payload       proxyPayload `json:"wa_payload"`
}

type proxyPayload struct {
	Input   input          `json:"input"`
	Context map[string]any `json:"context"`
}

type proxyResponse struct {
	Result  json.RawMessage `json:"result"`
	Message string          `json:"message"`
}

type proxyResult struct {
	SessionID   *string         `json:"sessionId"`
	FaultCode   any             `json:"cf_error_code"`
	InnerResult json.RawMessage `json:"result"`
}

// Send wraps the turn in the proxy envelope and unwraps the assistant reply.
func (p *Proxy) Send(ctx context.Context, req *Request) (*Reply, error) {
	data, err := json.Marshal(proxyEnvelope{
		SessionID:     req.SessionID,
		IntegrationID: p.cfg.IntegrationID,
		Payload: proxyPayload{
			Input:   newInput(req.Text),
			Context: req.Context,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal proxy envelope: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("proxy request: %w", err)
		}
		return nil, &UpstreamError{Op: "proxy request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read proxy response: %w", err)
	}

	var envelope proxyResponse
	decodeErr := json.Unmarshal(body, &envelope)

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !ok || decodeErr != nil || isJSONNull(envelope.Result) {
		if envelope.Message == invalidSessionMessage {
			return nil, fmt.Errorf("%w: proxy rejected session %q", ErrSessionInvalid, req.SessionID)
		}
		p.logger.Error("proxy unreachable, misconfigured or not running",
			"url", p.cfg.URL,
			"status", resp.StatusCode,
			"body", string(body))
		return nil, &UpstreamError{Op: "proxy request", Status: resp.StatusCode, Body: string(body), Err: decodeErr}
	}

	var result proxyResult
	if err := json.Unmarshal(envelope.Result, &result); err != nil {
		return nil, fmt.Errorf("decoding proxy result: %w", err)
	}

	if result.FaultCode != nil {
		code := fmt.Sprint(result.FaultCode)
		p.logger.Error("proxy reported a fault; check the integration id",
			"integration_id", p.cfg.IntegrationID,
			"fault_code", code)
		return nil, &UpstreamError{Op: "proxy request", Status: resp.StatusCode, Code: code}
	}

	if result.SessionID == nil {
		return nil, fmt.Errorf("proxy result has no sessionId")
	}
	if isJSONNull(result.InnerResult) {
		return nil, fmt.Errorf("proxy result has no inner result")
	}

	if p.sessions != nil {
		p.sessions.ReplaceBackendID(req.User, *result.SessionID)
	}

	return ParseReply(result.InnerResult)
}

func isJSONNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

var _ Backend = (*Proxy)(nil)
