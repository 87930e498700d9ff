// ABOUTME: Fulfillment webhook client driven by client actions in assistant replies
// ABOUTME: Extracts the webhook URL and parameters, posts them and returns the JSON result

package fulfillment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/2389/assistant-relay/internal/assistant"
)

// Extraction errors.
var (
	ErrNoWebhook    = errors.New("reply context has no fulfillment webhook")
	ErrNoParameters = errors.New("client action has no cloudFunction parameters")
)

// Request is one webhook invocation.
type Request struct {
	URL        string
	Parameters any
}

// RequestFromReply builds the webhook call a reply asks for.
func RequestFromReply(reply *assistant.Reply) (*Request, error) {
	action, ok := reply.ClientAction()
	if !ok {
		return nil, fmt.Errorf("reply has no client action")
	}

	url, ok := lookupString(reply.Context, "skills", "main skill", "user_defined", "private", "cloudfunctions", "webhook")
	if !ok || url == "" {
		return nil, ErrNoWebhook
	}

	params, ok := action.Parameters["cloudFunction"]
	if !ok {
		return nil, ErrNoParameters
	}

	return &Request{URL: url, Parameters: params}, nil
}

func lookupString(m map[string]any, path ...string) (string, bool) {
	var cur any = m
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return "", false
		}
		if cur, ok = obj[key]; !ok {
			return "", false
		}
	}
	s, ok := cur.(string)
	return s, ok
}

// Client posts fulfillment requests.
type Client struct {
	http   *http.Client
	logger *slog.Logger
}

// New creates a webhook client. A nil httpClient gets a 30 second timeout.
func New(httpClient *http.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		http:   httpClient,
		logger: logger.With("component", "fulfillment"),
	}
}

// Call posts {"cloudFunction": parameters} and decodes the JSON result.
func (c *Client) Call(ctx context.Context, req *Request) (any, error) {
	data, err := json.Marshal(map[string]any{"cloudFunction": req.Parameters})
	if err != nil {
		return nil, fmt.Errorf("marshal webhook payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Cache-Control", "no-cache")

	c.logger.Debug("calling fulfillment webhook", "url", req.URL)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read webhook response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var result any
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decoding webhook response: %w", err)
	}
	return result, nil
}

// UserContext returns the userContext object in a webhook result, if any.
func UserContext(result any) (map[string]any, bool) {
	obj, ok := result.(map[string]any)
	if !ok {
		return nil, false
	}
	uc, ok := obj["userContext"].(map[string]any)
	return uc, ok
}
