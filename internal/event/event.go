// ABOUTME: ChatEvent type and its single constructor for inbound chat events
// ABOUTME: Enforces the non-empty thread key invariant and defines EventType

package event

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTimestamp is returned when an event has no usable thread key.
// Callers treat it as a bad request and never retry.
var ErrInvalidTimestamp = errors.New("invalid event timestamp")

// EventType classifies an inbound event.
type EventType int

const (
	Unhandled     EventType = -1
	Message       EventType = 1
	AppMention    EventType = 2
	ReactionAdded EventType = 3
	FileUpload    EventType = 4
	EmptyMessage  EventType = 5
	DeleteMessage EventType = 6
	EditMessage   EventType = 7
)

var typeNames = map[EventType]string{
	Unhandled:     "UNHANDLED",
	Message:       "MESSAGE",
	AppMention:    "APP_MENTION",
	ReactionAdded: "REACTION_ADDED",
	FileUpload:    "FILE_UPLOAD",
	EmptyMessage:  "EMPTY_MESSAGE",
	DeleteMessage: "DELETE_MESSAGE",
	EditMessage:   "EDIT_MESSAGE",
}

func (t EventType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("EventType(%d)", int(t))
}

// ParseEventType maps a name produced by String back to an EventType.
// The "EventType." prefix used in older button values is accepted.
func ParseEventType(s string) (EventType, bool) {
	s = strings.TrimPrefix(s, "EventType.")
	for t, name := range typeNames {
		if name == s {
			return t, true
		}
	}
	return Unhandled, false
}

// Replyable reports whether events of this type can receive a reply.
func (t EventType) Replyable() bool {
	return t == Message || t == AppMention
}

// ChatEvent is an immutable record of one inbound occurrence.
type ChatEvent struct {
	Type EventType

	// ThreadKey is the dedupe/thread key and the reply anchor.
	ThreadKey string

	// ThreadTS is the raw thread_ts of the event, empty for top-level messages.
	ThreadTS string

	Channel string
	User    string // empty for events without an actor, e.g. reactions
	Text    string

	// Mentioned is set when the bot's mention marker was stripped from Text.
	Mentioned bool
}

// New builds a ChatEvent. It is the only way ChatEvents are created, both
// for webhook deliveries and for events synthesized from button callbacks.
func New(t EventType, threadKey, channel, user, text string) (*ChatEvent, error) {
	if threadKey == "" {
		return nil, fmt.Errorf("%w: empty thread key for %s event", ErrInvalidTimestamp, t)
	}
	return &ChatEvent{
		Type:      t,
		ThreadKey: threadKey,
		Channel:   channel,
		User:      user,
		Text:      text,
	}, nil
}

// String renders the event for logs.
func (e *ChatEvent) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s in channel %q at %q", e.Type, e.Channel, e.ThreadKey)
	switch {
	case e.User != "" && e.Text != "":
		fmt.Fprintf(&b, " from user %q saying %q", e.User, e.Text)
	case e.User != "":
		fmt.Fprintf(&b, " from user %q", e.User)
	case e.Text != "":
		fmt.Fprintf(&b, " with text %q and no user", e.Text)
	}
	return b.String()
}
