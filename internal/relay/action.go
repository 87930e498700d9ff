// ABOUTME: Button callback path of the orchestrator
// ABOUTME: Decodes the clicked option, echoes it on the original message and continues the conversation

package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/2389/assistant-relay/internal/event"
	"github.com/2389/assistant-relay/internal/metrics"
	"github.com/2389/assistant-relay/internal/slack"
	"github.com/2389/assistant-relay/internal/store"
)

// HandleAction continues a conversation from a clicked option button.
// Payloads without a button action are ignored. A malformed button value
// is reported on the original message and returned.
func (r *Relay) HandleAction(ctx context.Context, p *slack.ActionPayload) error {
	value, ok := p.ButtonValue()
	if !ok {
		r.logger.Debug("ignoring non-button action", "type", p.Type)
		return nil
	}

	ctx, span := tracer.Start(ctx, "relay.action")
	span.SetAttributes(attribute.String("relay.user", p.User.ID))
	defer span.End()

	stripped := slack.StripInteractive(p.Message.Blocks)
	out := surface{responseURL: p.ResponseURL, blocks: stripped}

	av, err := slack.DecodeActionValue(value)
	if err == nil {
		var ev *event.ChatEvent
		ev, err = event.New(av.Type, av.ThreadKey, p.Channel.ID, p.User.ID, av.Text)
		if err == nil {
			r.metrics.Event(ev.Type.String())
			r.respond(ctx, p.ResponseURL, slack.WithNotice(stripped, youReplied(av.Text)))
			r.continueAction(ctx, ev, out)
			return nil
		}
	}

	r.respond(ctx, p.ResponseURL, slack.WithNotice(stripped, NoticeActionFailure))
	return fmt.Errorf("handling action from %s: %w", p.User.ID, err)
}

func (r *Relay) continueAction(ctx context.Context, ev *event.ChatEvent, out surface) {
	unlock := r.sessions.Lock(ev.User)
	defer unlock()
	defer r.recoverTurn(ctx, ev, out)

	sess, ok := r.sessions.Get(ev.User)
	if !ok || r.sessions.IsExpired(sess, r.sessions.Now()) {
		if _, err := r.forceCreate(ctx, ev.User, metrics.ReasonAction); err != nil {
			r.handleFailure(ctx, ev, err, out)
			return
		}
	}

	r.sessions.AppendTurn(ev.User, ev.Text, nil)
	r.record(ctx, ev, store.DirectionInbound, ev.Text)

	userContext := r.profiles.Get(ctx, ev.User)
	r.converse(ctx, ev, ev.Text, BuildContext(userContext), 0, out)
}

func (r *Relay) respond(ctx context.Context, responseURL string, blocks []json.RawMessage) {
	if responseURL == "" {
		return
	}
	if err := r.poster.Respond(ctx, responseURL, blocks); err != nil {
		r.logger.Error("responding to action failed", "error", err)
	}
}
