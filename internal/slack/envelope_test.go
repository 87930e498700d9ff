// ABOUTME: Tests for decoding Events API envelopes and interaction payloads
// ABOUTME: Checks challenge detection, raw event passthrough and button extraction

package slack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvelope(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{
		"token": "tok", "team_id": "T1", "event_id": "Ev1", "type": "event_callback",
		"event": {"type": "app_mention", "user": "U1", "text": "hi", "ts": "1.0"}
	}`))
	require.NoError(t, err)
	assert.Nil(t, env.Challenge)
	assert.Equal(t, "tok", env.Token)
	assert.Equal(t, "Ev1", env.EventID)
	assert.Equal(t, "app_mention", env.Event["type"])
}

func TestParseEnvelope_Challenge(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"token": "tok", "challenge": "abc123", "type": "url_verification"}`))
	require.NoError(t, err)
	require.NotNil(t, env.Challenge)
	assert.Equal(t, "abc123", *env.Challenge)
	assert.Nil(t, env.Event)
}

func TestParseEnvelope_Invalid(t *testing.T) {
	_, err := ParseEnvelope([]byte(`{"event": [}`))
	assert.Error(t, err)
}

func TestParseActionPayload(t *testing.T) {
	p, err := ParseActionPayload(`{
		"type": "block_actions", "token": "tok", "response_url": "https://hooks.example.com/r/1",
		"user": {"id": "U1"}, "channel": {"id": "C1"},
		"actions": [{"type": "button", "action_id": "a1", "value": "north:1.0:EventType.MESSAGE"}],
		"message": {"ts": "2.0", "blocks": [{"type": "section"}, {"type": "actions"}]}
	}`)
	require.NoError(t, err)

	assert.Equal(t, "U1", p.User.ID)
	assert.Equal(t, "C1", p.Channel.ID)
	assert.Equal(t, "https://hooks.example.com/r/1", p.ResponseURL)
	assert.Len(t, p.Message.Blocks, 2)

	value, ok := p.ButtonValue()
	require.True(t, ok)
	assert.Equal(t, "north:1.0:EventType.MESSAGE", value)
}

func TestActionPayload_ButtonValueNonButton(t *testing.T) {
	p, err := ParseActionPayload(`{"actions": [{"type": "static_select"}]}`)
	require.NoError(t, err)
	_, ok := p.ButtonValue()
	assert.False(t, ok)

	p, err = ParseActionPayload(`{}`)
	require.NoError(t, err)
	_, ok = p.ButtonValue()
	assert.False(t, ok)
}
