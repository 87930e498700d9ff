// ABOUTME: Codec for the context packed into option button values
// ABOUTME: Values look like "text:thread_key:EventType.NAME"; text may itself contain colons

package slack

import (
	"errors"
	"fmt"
	"strings"

	"github.com/2389/assistant-relay/internal/event"
)

// ErrBadActionValue is returned for button values that were not produced by
// EncodeActionValue.
var ErrBadActionValue = errors.New("malformed action value")

// ActionValue is the decoded context of a clicked button.
type ActionValue struct {
	Text      string
	ThreadKey string
	Type      event.EventType
}

// EncodeActionValue packs a button's reply text with the originating event.
func EncodeActionValue(text, threadKey string, t event.EventType) string {
	return text + ":" + threadKey + ":EventType." + t.String()
}

// DecodeActionValue unpacks a button value. Only APP_MENTION survives the
// round trip; every other origin is replayed as a MESSAGE.
func DecodeActionValue(value string) (ActionValue, error) {
	typeSep := strings.LastIndex(value, ":")
	if typeSep < 0 {
		return ActionValue{}, fmt.Errorf("%w: %q", ErrBadActionValue, value)
	}
	keySep := strings.LastIndex(value[:typeSep], ":")
	if keySep < 0 {
		return ActionValue{}, fmt.Errorf("%w: %q", ErrBadActionValue, value)
	}

	av := ActionValue{
		Text:      value[:keySep],
		ThreadKey: value[keySep+1 : typeSep],
		Type:      event.Message,
	}
	if t, ok := event.ParseEventType(value[typeSep+1:]); ok && t == event.AppMention {
		av.Type = event.AppMention
	}
	return av, nil
}
