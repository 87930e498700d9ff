// ABOUTME: Tests for the button value codec
// ABOUTME: Covers round trips, colons inside the text and malformed values

package slack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/assistant-relay/internal/event"
)

func TestActionValue_RoundTrip(t *testing.T) {
	value := EncodeActionValue("book room 4", "1700000000.000100", event.AppMention)
	assert.Equal(t, "book room 4:1700000000.000100:EventType.APP_MENTION", value)

	av, err := DecodeActionValue(value)
	require.NoError(t, err)
	assert.Equal(t, ActionValue{Text: "book room 4", ThreadKey: "1700000000.000100", Type: event.AppMention}, av)
}

func TestDecodeActionValue_TextWithColons(t *testing.T) {
	av, err := DecodeActionValue("meet at 10:30:1700000000.000100:EventType.MESSAGE")
	require.NoError(t, err)
	assert.Equal(t, "meet at 10:30", av.Text)
	assert.Equal(t, "1700000000.000100", av.ThreadKey)
	assert.Equal(t, event.Message, av.Type)
}

func TestDecodeActionValue_NonMentionTypesBecomeMessage(t *testing.T) {
	av, err := DecodeActionValue("yes:1.0:EventType.REACTION_ADDED")
	require.NoError(t, err)
	assert.Equal(t, event.Message, av.Type)

	av, err = DecodeActionValue("yes:1.0:garbage")
	require.NoError(t, err)
	assert.Equal(t, event.Message, av.Type)
}

func TestDecodeActionValue_Malformed(t *testing.T) {
	for _, v := range []string{"", "just text", "text:1.0"} {
		_, err := DecodeActionValue(v)
		assert.ErrorIs(t, err, ErrBadActionValue, "value %q", v)
	}
}
