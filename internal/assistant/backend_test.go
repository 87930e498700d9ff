// ABOUTME: Tests for reply parsing helpers and the upstream error type
// ABOUTME: Covers text concatenation, client action detection and error unwrapping

package assistant

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReply(t *testing.T) {
	raw := `{
		"output": {
			"generic": [
				{"response_type": "text", "text": "Pick one"},
				{"response_type": "option", "title": "Buildings", "options": [
					{"label": "North", "value": {"input": {"text": "north"}}}
				]},
				{"response_type": "image", "title": "Map", "source": "https://example.com/map.png", "description": "floor map"}
			],
			"actions": [{"type": "client", "name": "lookup", "parameters": {"cloudFunction": {"op": "find"}}}]
		},
		"context": {"skills": {"main skill": {}}}
	}`

	reply, err := ParseReply([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, "Pick one", reply.Text())
	require.Len(t, reply.Output.Generic, 3)
	assert.Equal(t, "north", reply.Output.Generic[1].Options[0].Value.Input.Text)
	assert.Equal(t, "https://example.com/map.png", reply.Output.Generic[2].Source)

	action, ok := reply.ClientAction()
	require.True(t, ok)
	assert.Equal(t, "lookup", action.Name)

	payload := reply.Payload()
	assert.Contains(t, payload, "output")
	assert.Contains(t, payload, "context")
}

func TestReply_HistoryText(t *testing.T) {
	reply, err := ParseReply([]byte(`{"output": {"generic": [{"response_type": "image", "source": "x"}]}}`))
	require.NoError(t, err)
	assert.Equal(t, NoText, reply.HistoryText())
}

func TestReply_ClientActionIgnoresOtherTypes(t *testing.T) {
	reply, err := ParseReply([]byte(`{"output": {"generic": [], "actions": [{"type": "server"}]}}`))
	require.NoError(t, err)
	_, ok := reply.ClientAction()
	assert.False(t, ok)
}

func TestParseReply_Invalid(t *testing.T) {
	_, err := ParseReply([]byte(`not json`))
	assert.Error(t, err)
}

func TestUpstreamError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &UpstreamError{Op: "proxy request", Status: 502, Code: "E1", Body: "bad", Err: cause}

	assert.ErrorIs(t, err, ErrUpstreamMisconfigured)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsFatal(err))
	assert.Contains(t, err.Error(), "status 502")
	assert.Contains(t, err.Error(), "fault code E1")

	assert.False(t, IsFatal(ErrSessionInvalid))
}
