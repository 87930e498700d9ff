// ABOUTME: Classifier that turns raw chat platform event objects into ChatEvents
// ABOUTME: Handles mention stripping, thread-membership gating and sub-type resolution

package event

import (
	"fmt"
	"log/slog"
	"strings"
)

// Raw is a decoded inbound event object, e.g. the "event" field of a Slack
// Events API envelope.
type Raw map[string]any

// str returns the value at key when it is a string.
func (r Raw) str(key string) string {
	s, _ := r[key].(string)
	return s
}

func (r Raw) has(key string) bool {
	_, ok := r[key]
	return ok
}

// Membership answers thread-membership questions for the Classifier.
type Membership interface {
	Tracked(threadKey string) bool
	IsMember(threadKey, user string) bool
}

// Classifier decides what an inbound event is and whether it deserves a reply.
type Classifier struct {
	botID   string
	marker  string
	threads Membership
	logger  *slog.Logger
}

// NewClassifier creates a Classifier for the bot with the given user id.
func NewClassifier(botID string, threads Membership, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		botID:   botID,
		marker:  MentionMarker(botID),
		threads: threads,
		logger:  logger.With("component", "classifier"),
	}
}

// MentionMarker returns the in-text mention token for a user id.
func MentionMarker(userID string) string {
	return "<@" + userID + ">"
}

// StripMention removes the first occurrence of marker from text, preferring
// a space-prefixed match, then a space-suffixed match, then a bare match.
func StripMention(text, marker string) (string, bool) {
	for _, candidate := range []string{" " + marker, marker + " ", marker} {
		if strings.Contains(text, candidate) {
			return strings.Replace(text, candidate, "", 1), true
		}
	}
	return text, false
}

// Classify builds a ChatEvent from a raw event object.
// It fails with ErrInvalidTimestamp when no string thread key can be resolved.
func (c *Classifier) Classify(raw Raw) (*ChatEvent, error) {
	kind := raw.str("type")
	user := raw.str("user")

	text, mentioned := StripMention(raw.str("text"), c.marker)

	channel := raw.str("channel")
	if channel == "" {
		// reactions carry their channel on the item
		if item, ok := raw["item"].(map[string]any); ok {
			channel, _ = item["channel"].(string)
		}
	}

	threadTS := raw.str("thread_ts")

	eventType := Unhandled
	switch {
	case kind == "app_mention" || raw.str("channel_type") == "im":
		eventType = AppMention

	case kind == "message" && mentioned:
		eventType = c.resolveSubtype(raw, text)

	case threadTS != "" && c.threads != nil && c.threads.Tracked(threadTS):
		eventType = c.resolveSubtype(raw, text)
		if eventType == Message && !c.threads.IsMember(threadTS, user) {
			eventType = Unhandled
		}
		if eventType == Message && strings.Contains(text, "<@") && !mentioned {
			eventType = Unhandled
		}

	case kind == "reaction_added":
		eventType = ReactionAdded
	}

	// a reply needs somebody to attribute the session to
	if eventType.Replyable() && user == "" {
		c.logger.Debug("demoting message without user", "type", eventType)
		eventType = Unhandled
	}

	threadKey, err := resolveThreadKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w (event type %q)", err, kind)
	}

	ev, err := New(eventType, threadKey, channel, user, text)
	if err != nil {
		return nil, err
	}
	ev.ThreadTS = threadTS
	ev.Mentioned = mentioned

	c.logger.Debug("classified event", "event", ev.String())
	return ev, nil
}

// resolveSubtype maps a message event to its specific EventType.
func (c *Classifier) resolveSubtype(raw Raw, text string) EventType {
	if raw.has("subtype") {
		switch subtype := raw.str("subtype"); subtype {
		case "message_deleted":
			return DeleteMessage
		case "message_changed":
			return EditMessage
		default:
			c.logger.Warn("unknown event subtype", "subtype", raw["subtype"])
			return Unhandled
		}
	}
	if raw.has("files") && text == "" {
		return FileUpload
	}
	if text == "" {
		return EmptyMessage
	}
	return Message
}

// resolveThreadKey picks event_ts, then thread_ts, then ts.
// A present but non-string value is an error rather than a fallthrough.
func resolveThreadKey(raw Raw) (string, error) {
	for _, key := range []string{"event_ts", "thread_ts", "ts"} {
		v, ok := raw[key]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("%w: %s has type %T, expecting string", ErrInvalidTimestamp, key, v)
		}
		if s != "" {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: no timestamp", ErrInvalidTimestamp)
}
