// ABOUTME: Slack Web API client for posting messages, resolving users and answering interactions
// ABOUTME: Outbound chat.postMessage calls are paced by a token-bucket limiter

package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultAPIURL is the Slack Web API base.
const DefaultAPIURL = "https://slack.com/api"

// APIError is a Web API call that returned ok=false.
type APIError struct {
	Method string
	Code   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("slack %s: %s", e.Method, e.Code)
}

// ClientConfig configures a Client.
type ClientConfig struct {
	Token    string // bot user OAuth token
	APIURL   string
	Username string // display name for posted messages

	// PostRate and PostBurst pace chat.postMessage; a zero rate disables pacing.
	PostRate  float64
	PostBurst int

	HTTPClient *http.Client
}

// Client calls the Slack Web API.
type Client struct {
	token    string
	apiURL   string
	username string
	http     *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// NewClient creates a Web API client.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.PostRate > 0 {
		burst := cfg.PostBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.PostRate), burst)
	}

	return &Client{
		token:    cfg.Token,
		apiURL:   strings.TrimRight(cfg.APIURL, "/"),
		username: cfg.Username,
		http:     httpClient,
		limiter:  limiter,
		logger:   logger.With("component", "slack"),
	}
}

// Message is a chat.postMessage request.
type Message struct {
	Channel  string  `json:"channel"`
	AsUser   bool    `json:"as_user"`
	Username string  `json:"username,omitempty"`
	Text     string  `json:"text,omitempty"`
	Blocks   []Block `json:"blocks"`
	ThreadTS string  `json:"thread_ts,omitempty"`
}

type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// PostMessage posts msg as the bot. It waits for the post limiter first.
func (c *Client) PostMessage(ctx context.Context, msg *Message) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for post limiter: %w", err)
	}

	msg.AsUser = true
	if msg.Username == "" {
		msg.Username = c.username
	}

	body, err := c.call(ctx, http.MethodPost, "chat.postMessage", msg)
	if err != nil {
		return err
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("decoding chat.postMessage response: %w", err)
	}
	if !resp.OK {
		return &APIError{Method: "chat.postMessage", Code: resp.Error}
	}

	c.logger.Debug("message posted", "channel", msg.Channel, "thread_ts", msg.ThreadTS, "blocks", len(msg.Blocks))
	return nil
}

// AuthTest returns the user id the bot token belongs to.
func (c *Client) AuthTest(ctx context.Context) (string, error) {
	body, err := c.call(ctx, http.MethodPost, "auth.test", nil)
	if err != nil {
		return "", err
	}

	var resp struct {
		apiResponse
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decoding auth.test response: %w", err)
	}
	if !resp.OK || resp.UserID == "" {
		return "", &APIError{Method: "auth.test", Code: resp.Error}
	}
	return resp.UserID, nil
}

// UserProfile is the subset of users.info the relay uses.
type UserProfile struct {
	RealName string
	Email    string
	Timezone string
}

// UserInfo looks up a user's profile.
func (c *Client) UserInfo(ctx context.Context, user string) (*UserProfile, error) {
	body, err := c.call(ctx, http.MethodGet, "users.info?user="+url.QueryEscape(user), nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		apiResponse
		User struct {
			TZ      string `json:"tz"`
			Profile struct {
				RealName string `json:"real_name"`
				Email    string `json:"email"`
			} `json:"profile"`
		} `json:"user"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding users.info response: %w", err)
	}
	if !resp.OK {
		return nil, &APIError{Method: "users.info", Code: resp.Error}
	}

	return &UserProfile{
		RealName: resp.User.Profile.RealName,
		Email:    resp.User.Profile.Email,
		Timezone: resp.User.TZ,
	}, nil
}

// Respond replaces an interactive message through its response URL.
func (c *Client) Respond(ctx context.Context, responseURL string, blocks []json.RawMessage) error {
	data, err := json.Marshal(map[string]any{
		"replace_original": true,
		"blocks":           blocks,
	})
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, responseURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("posting to response url: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("response url returned status %d: %s", resp.StatusCode, respBody)
	}
	return nil
}

func (c *Client) call(ctx context.Context, method, apiMethod string, payload any) ([]byte, error) {
	var reader io.Reader = http.NoBody
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", apiMethod, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+"/"+apiMethod, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	} else {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("slack %s: %w", apiMethod, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", apiMethod, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("slack %s returned status %d: %s", apiMethod, resp.StatusCode, body)
	}
	return body, nil
}
