// ABOUTME: Tests for the Slack Web API client against a fake API server
// ABOUTME: Covers posting, ok=false errors, profile lookups, auth.test and response URLs

package slack

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClient_PostMessage(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat.postMessage", r.URL.Path)
		assert.Equal(t, "Bearer xoxb-test", r.Header.Get("Authorization"))
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &got))
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Token: "xoxb-test", APIURL: srv.URL, Username: "helper"}, discardLogger())

	err := c.PostMessage(context.Background(), &Message{
		Channel:  "C1",
		Blocks:   FormatText("hello"),
		ThreadTS: "100.1",
	})
	require.NoError(t, err)

	assert.Equal(t, "C1", got["channel"])
	assert.Equal(t, true, got["as_user"])
	assert.Equal(t, "helper", got["username"])
	assert.Equal(t, "100.1", got["thread_ts"])
	blocks := got["blocks"].([]any)
	require.Len(t, blocks, 1)
}

func TestClient_PostMessage_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok": false, "error": "channel_not_found"}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Token: "t", APIURL: srv.URL}, discardLogger())
	err := c.PostMessage(context.Background(), &Message{Channel: "C404"})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "channel_not_found", apiErr.Code)
}

func TestClient_PostMessage_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Token: "t", APIURL: srv.URL, PostRate: 0.001, PostBurst: 1}, discardLogger())

	require.NoError(t, c.PostMessage(context.Background(), &Message{Channel: "C1"}))

	// the bucket is drained, so a cancelled context fails the wait
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.PostMessage(ctx, &Message{Channel: "C1"})
	assert.Error(t, err)
}

func TestClient_UserInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users.info", r.URL.Path)
		assert.Equal(t, "U1", r.URL.Query().Get("user"))
		_, _ = w.Write([]byte(`{"ok": true, "user": {"tz": "America/Chicago", "profile": {"real_name": "Ada Lovelace", "email": "ada@example.com"}}}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Token: "t", APIURL: srv.URL}, discardLogger())
	p, err := c.UserInfo(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, &UserProfile{RealName: "Ada Lovelace", Email: "ada@example.com", Timezone: "America/Chicago"}, p)
}

func TestClient_UserInfo_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok": false, "error": "user_not_found"}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Token: "t", APIURL: srv.URL}, discardLogger())
	_, err := c.UserInfo(context.Background(), "U404")
	assert.Error(t, err)
}

func TestClient_AuthTest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth.test", r.URL.Path)
		_, _ = w.Write([]byte(`{"ok": true, "user_id": "UBOT"}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Token: "t", APIURL: srv.URL}, discardLogger())
	id, err := c.AuthTest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "UBOT", id)
}

func TestClient_AuthTest_InvalidToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok": false, "error": "invalid_auth"}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Token: "t", APIURL: srv.URL}, discardLogger())
	_, err := c.AuthTest(context.Background())
	assert.Error(t, err)
}

func TestClient_Respond(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"), "response urls are not sent the bot token")
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &got))
		_, _ = w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Token: "t"}, discardLogger())
	blocks := WithNotice(nil, "> _You replied: north_")
	require.NoError(t, c.Respond(context.Background(), srv.URL, blocks))

	assert.Equal(t, true, got["replace_original"])
	require.Len(t, got["blocks"], 1)
}
