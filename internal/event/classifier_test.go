// ABOUTME: Tests for event classification, mention stripping and thread key resolution
// ABOUTME: Covers the priority rules, thread-membership demotion and constructor failures

package event

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const botID = "UBOT"

// fakeThreads implements Membership for testing
type fakeThreads map[string][]string

func (f fakeThreads) Tracked(threadKey string) bool {
	_, ok := f[threadKey]
	return ok
}

func (f fakeThreads) IsMember(threadKey, user string) bool {
	for _, u := range f[threadKey] {
		if u == user {
			return true
		}
	}
	return false
}

func testClassifier(threads fakeThreads) *Classifier {
	return NewClassifier(botID, threads, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestStripMention(t *testing.T) {
	marker := MentionMarker(botID)

	tests := []struct {
		name      string
		text      string
		want      string
		mentioned bool
	}{
		{"leading space", "hello <@UBOT>", "hello", true},
		{"trailing space", "<@UBOT> hello", "hello", true},
		{"bare", "<@UBOT>", "", true},
		{"not mentioned", "hello there", "hello there", false},
		{"other user", "hi <@UOTHER>", "hi <@UOTHER>", false},
		{"only first occurrence", "a <@UBOT> b <@UBOT>", "a b <@UBOT>", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, mentioned := StripMention(tt.text, marker)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.mentioned, mentioned)
		})
	}
}

func TestClassify_AppMentionAlwaysReplyable(t *testing.T) {
	// thread state must not matter for app mentions
	c := testClassifier(fakeThreads{"100.1": {"USOMEONE"}})

	ev, err := c.Classify(Raw{
		"type":      "app_mention",
		"user":      "U1",
		"text":      "<@UBOT> what's my balance",
		"channel":   "C1",
		"ts":        "100.2",
		"thread_ts": "100.1",
	})
	require.NoError(t, err)
	assert.Equal(t, AppMention, ev.Type)
	assert.Equal(t, "what's my balance", ev.Text)
	assert.True(t, ev.Mentioned)
}

func TestClassify_DirectChannel(t *testing.T) {
	c := testClassifier(nil)

	ev, err := c.Classify(Raw{
		"type":         "message",
		"channel_type": "im",
		"user":         "U1",
		"text":         "hello",
		"channel":      "D1",
		"ts":           "1.0",
	})
	require.NoError(t, err)
	assert.Equal(t, AppMention, ev.Type)
}

func TestClassify_MentionedMessage(t *testing.T) {
	c := testClassifier(nil)

	ev, err := c.Classify(Raw{
		"type":    "message",
		"user":    "U1",
		"text":    "<@UBOT> hi",
		"channel": "C1",
		"ts":      "1.0",
	})
	require.NoError(t, err)
	assert.Equal(t, Message, ev.Type)
	assert.Equal(t, "hi", ev.Text)
}

func TestClassify_UnmentionedChannelMessage(t *testing.T) {
	c := testClassifier(nil)

	ev, err := c.Classify(Raw{
		"type":    "message",
		"user":    "U1",
		"text":    "just chatting",
		"channel": "C1",
		"ts":      "1.0",
	})
	require.NoError(t, err)
	assert.Equal(t, Unhandled, ev.Type)
}

func TestClassify_TrackedThread(t *testing.T) {
	threads := fakeThreads{"100.1": {"UMEMBER"}}
	c := testClassifier(threads)

	t.Run("member gets a reply", func(t *testing.T) {
		ev, err := c.Classify(Raw{
			"type": "message", "user": "UMEMBER", "text": "and another thing",
			"channel": "C1", "ts": "100.5", "thread_ts": "100.1",
		})
		require.NoError(t, err)
		assert.Equal(t, Message, ev.Type)
		assert.Equal(t, "100.1", ev.ThreadTS)
	})

	t.Run("non-member is demoted", func(t *testing.T) {
		ev, err := c.Classify(Raw{
			"type": "message", "user": "USTRANGER", "text": "me too",
			"channel": "C1", "ts": "100.6", "thread_ts": "100.1",
		})
		require.NoError(t, err)
		assert.Equal(t, Unhandled, ev.Type)
	})

	t.Run("member talking to someone else is demoted", func(t *testing.T) {
		ev, err := c.Classify(Raw{
			"type": "message", "user": "UMEMBER", "text": "<@UOTHER> can you check",
			"channel": "C1", "ts": "100.7", "thread_ts": "100.1",
		})
		require.NoError(t, err)
		assert.Equal(t, Unhandled, ev.Type)
	})

	t.Run("untracked thread is ignored", func(t *testing.T) {
		ev, err := c.Classify(Raw{
			"type": "message", "user": "UMEMBER", "text": "hello",
			"channel": "C1", "ts": "200.2", "thread_ts": "200.1",
		})
		require.NoError(t, err)
		assert.Equal(t, Unhandled, ev.Type)
	})
}

func TestClassify_Subtypes(t *testing.T) {
	threads := fakeThreads{"100.1": {"U1"}}
	c := testClassifier(threads)

	tests := []struct {
		name string
		raw  Raw
		want EventType
	}{
		{
			name: "deleted",
			raw:  Raw{"type": "message", "subtype": "message_deleted", "user": "U1", "ts": "1.0", "thread_ts": "100.1"},
			want: DeleteMessage,
		},
		{
			name: "changed",
			raw:  Raw{"type": "message", "subtype": "message_changed", "user": "U1", "text": "edited", "ts": "1.0", "thread_ts": "100.1"},
			want: EditMessage,
		},
		{
			name: "unknown subtype",
			raw:  Raw{"type": "message", "subtype": "channel_join", "user": "U1", "text": "<@UBOT> joined", "ts": "1.0"},
			want: Unhandled,
		},
		{
			name: "file upload",
			raw:  Raw{"type": "message", "user": "U1", "text": "", "files": []any{map[string]any{"id": "F1"}}, "ts": "1.0", "thread_ts": "100.1"},
			want: FileUpload,
		},
		{
			name: "empty message",
			raw:  Raw{"type": "message", "user": "U1", "ts": "1.0", "thread_ts": "100.1"},
			want: EmptyMessage,
		},
		{
			name: "bare mention is empty",
			raw:  Raw{"type": "message", "user": "U1", "text": "<@UBOT>", "ts": "1.0"},
			want: EmptyMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := c.Classify(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev.Type)
		})
	}
}

func TestClassify_Reaction(t *testing.T) {
	c := testClassifier(nil)

	ev, err := c.Classify(Raw{
		"type":     "reaction_added",
		"reaction": "thumbsup",
		"item":     map[string]any{"type": "message", "channel": "C9", "ts": "5.0"},
		"event_ts": "5.1",
	})
	require.NoError(t, err)
	assert.Equal(t, ReactionAdded, ev.Type)
	assert.Equal(t, "C9", ev.Channel)
	assert.Empty(t, ev.User)
}

func TestClassify_MessageWithoutUserIsNotReplyable(t *testing.T) {
	c := testClassifier(nil)

	ev, err := c.Classify(Raw{"type": "app_mention", "text": "<@UBOT> hi", "ts": "1.0"})
	require.NoError(t, err)
	assert.Equal(t, Unhandled, ev.Type)
}

func TestClassify_ThreadKeyPrecedence(t *testing.T) {
	c := testClassifier(nil)

	tests := []struct {
		name string
		raw  Raw
		want string
	}{
		{"event_ts wins", Raw{"type": "app_mention", "user": "U1", "event_ts": "3", "thread_ts": "2", "ts": "1"}, "3"},
		{"thread_ts before ts", Raw{"type": "app_mention", "user": "U1", "thread_ts": "2", "ts": "1"}, "2"},
		{"ts fallback", Raw{"type": "app_mention", "user": "U1", "ts": "1"}, "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := c.Classify(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev.ThreadKey)
		})
	}
}

func TestClassify_InvalidTimestamp(t *testing.T) {
	c := testClassifier(nil)

	tests := []struct {
		name string
		raw  Raw
	}{
		{"missing", Raw{"type": "app_mention", "user": "U1", "text": "hi"}},
		{"numeric", Raw{"type": "app_mention", "user": "U1", "text": "hi", "ts": 12345.6}},
		{"null", Raw{"type": "app_mention", "user": "U1", "text": "hi", "event_ts": nil}},
		{"empty", Raw{"type": "app_mention", "user": "U1", "text": "hi", "ts": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := c.Classify(tt.raw)
			assert.Nil(t, ev)
			assert.ErrorIs(t, err, ErrInvalidTimestamp)
		})
	}
}
