// ABOUTME: Relay orchestrator wiring classification, dedupe, sessions and the assistant together
// ABOUTME: HandleEvent is the webhook entry point and reports an Outcome for the HTTP layer

package relay

import (
	"context"
	"encoding/json"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2389/assistant-relay/internal/assistant"
	"github.com/2389/assistant-relay/internal/dedupe"
	"github.com/2389/assistant-relay/internal/event"
	"github.com/2389/assistant-relay/internal/fulfillment"
	"github.com/2389/assistant-relay/internal/metrics"
	"github.com/2389/assistant-relay/internal/session"
	"github.com/2389/assistant-relay/internal/slack"
	"github.com/2389/assistant-relay/internal/store"
	"github.com/2389/assistant-relay/internal/threads"
)

var tracer = otel.Tracer("github.com/2389/assistant-relay/internal/relay")

// maxFulfillmentDepth bounds chained webhook follow-ups within one message.
const maxFulfillmentDepth = 3

// Assistant sends turns to the assistant backend.
type Assistant interface {
	Send(ctx context.Context, req *assistant.Request) (*assistant.Reply, error)
}

// Poster delivers output to the chat platform.
type Poster interface {
	PostMessage(ctx context.Context, msg *slack.Message) error
	Respond(ctx context.Context, responseURL string, blocks []json.RawMessage) error
}

// Profiles resolves user contexts.
type Profiles interface {
	Get(ctx context.Context, user string) map[string]any
	Update(user string, userContext map[string]any)
}

// Fulfiller calls fulfillment webhooks.
type Fulfiller interface {
	Call(ctx context.Context, req *fulfillment.Request) (any, error)
}

// Deps are the collaborators a Relay needs. Ledger, Metrics and Fatal are optional.
type Deps struct {
	BotID string

	Classifier *event.Classifier
	Dedupe     *dedupe.Cache
	Threads    *threads.Registry
	Sessions   *session.Store

	Assistant Assistant
	Poster    Poster
	Profiles  Profiles
	Fulfiller Fulfiller

	Ledger  store.Ledger
	Metrics *metrics.Metrics

	// Fatal is called with errors that mean the deployment is broken.
	Fatal func(error)

	Logger *slog.Logger
}

// Relay is the conversation orchestrator.
type Relay struct {
	botID      string
	classifier *event.Classifier
	dedupe     *dedupe.Cache
	threads    *threads.Registry
	sessions   *session.Store
	assistant  Assistant
	poster     Poster
	profiles   Profiles
	fulfiller  Fulfiller
	ledger     store.Ledger
	metrics    *metrics.Metrics
	fatal      func(error)
	logger     *slog.Logger
}

// New creates a Relay.
func New(deps Deps) *Relay {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "relay")

	fatal := deps.Fatal
	if fatal == nil {
		fatal = func(err error) {
			logger.Error("fatal upstream error", "error", err)
		}
	}

	return &Relay{
		botID:      deps.BotID,
		classifier: deps.Classifier,
		dedupe:     deps.Dedupe,
		threads:    deps.Threads,
		sessions:   deps.Sessions,
		assistant:  deps.Assistant,
		poster:     deps.Poster,
		profiles:   deps.Profiles,
		fulfiller:  deps.Fulfiller,
		ledger:     deps.Ledger,
		metrics:    deps.Metrics,
		fatal:      fatal,
		logger:     logger,
	}
}

// Outcome is what happened to an inbound event.
type Outcome int

const (
	// Handled means the event was accepted for a reply.
	Handled Outcome = iota
	// Repeated means the event id was seen before.
	Repeated
	// SubtypeIgnored means the event was an edit or delete.
	SubtypeIgnored
	// Unsupported means the event needs no reply.
	Unsupported
)

// String returns the response body the webhook answers with.
func (o Outcome) String() string {
	switch o {
	case Handled:
		return "Message Received"
	case Repeated:
		return "Repeated event, not responding."
	case SubtypeIgnored:
		return "Message subtype not used."
	default:
		return "Not Supported yet"
	}
}

// HandleEvent processes one Events API delivery. The only error is
// event.ErrInvalidTimestamp for events without a usable thread key.
// Reply failures are reported to the user, not returned.
func (r *Relay) HandleEvent(ctx context.Context, eventID string, raw event.Raw) (Outcome, error) {
	ev, err := r.classifier.Classify(raw)
	if err != nil {
		return Unsupported, err
	}
	r.metrics.Event(ev.Type.String())

	// every delivery is recorded, whatever its type
	firstSeen := r.dedupe.FirstSeen(eventID)

	switch {
	case ev.Type == event.EditMessage || ev.Type == event.DeleteMessage:
		return SubtypeIgnored, nil

	case !ev.Type.Replyable() || ev.User == "":
		return Unsupported, nil

	case ev.User == r.botID:
		return Handled, nil

	case !firstSeen:
		r.metrics.Duplicate()
		r.logger.Debug("repeated event", "event_id", eventID)
		return Repeated, nil
	}

	ctx, span := tracer.Start(ctx, "relay.message")
	span.SetAttributes(
		attribute.String("relay.event_id", eventID),
		attribute.String("relay.event_type", ev.Type.String()),
		attribute.String("relay.user", ev.User),
	)
	defer span.End()

	r.handleMessage(ctx, ev)
	return Handled, nil
}
