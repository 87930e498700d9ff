// ABOUTME: Message path of the orchestrator: session resolution, assistant turns and replies
// ABOUTME: Also handles lost sessions, fatal upstream errors and fulfillment follow-ups

package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/2389/assistant-relay/internal/assistant"
	"github.com/2389/assistant-relay/internal/event"
	"github.com/2389/assistant-relay/internal/fulfillment"
	"github.com/2389/assistant-relay/internal/metrics"
	"github.com/2389/assistant-relay/internal/profile"
	"github.com/2389/assistant-relay/internal/session"
	"github.com/2389/assistant-relay/internal/slack"
	"github.com/2389/assistant-relay/internal/store"
)

// surface is where notices for a conversation go. Channel posts are used
// unless the conversation came from a button with a response URL.
type surface struct {
	responseURL string
	blocks      []json.RawMessage
}

func (r *Relay) handleMessage(ctx context.Context, ev *event.ChatEvent) {
	unlock := r.sessions.Lock(ev.User)
	defer unlock()
	defer r.recoverTurn(ctx, ev, surface{})

	if _, err := r.resolveSession(ctx, ev.User, ev.Text); err != nil {
		r.handleFailure(ctx, ev, err, surface{})
		return
	}

	r.sessions.AppendTurn(ev.User, ev.Text, nil)
	r.record(ctx, ev, store.DirectionInbound, ev.Text)

	userContext := r.profiles.Get(ctx, ev.User)
	r.converse(ctx, ev, ev.Text, BuildContext(userContext), 0, surface{})
}

// recoverTurn turns a panic during a turn into a logged error and a
// generic notice, so the delivery is still acknowledged.
func (r *Relay) recoverTurn(ctx context.Context, ev *event.ChatEvent, out surface) {
	p := recover()
	if p == nil {
		return
	}
	r.metrics.AssistantError(metrics.KindOther)
	r.logger.Error("panic while handling turn",
		"user", ev.User,
		"panic", p,
		"stack", string(debug.Stack()))
	r.notify(ctx, ev, NoticeFailure, out)
}

// resolveSession returns the session the user's text should be sent on.
func (r *Relay) resolveSession(ctx context.Context, user, text string) (*session.Session, error) {
	if IsGreeting(text) {
		r.logger.Debug("greeting, starting new session", "user", user)
		return r.forceCreate(ctx, user, metrics.ReasonGreeting)
	}

	sess, ok := r.sessions.Get(user)
	switch {
	case !ok:
		return r.forceCreate(ctx, user, metrics.ReasonFirstContact)
	case r.sessions.IsExpired(sess, r.sessions.Now()):
		return r.forceCreate(ctx, user, metrics.ReasonExpired)
	}
	return sess, nil
}

// forceCreate replaces the user's session and primes it with a silent
// greeting turn. Only fatal errors are returned from the greeting.
func (r *Relay) forceCreate(ctx context.Context, user, reason string) (*session.Session, error) {
	sess, err := r.sessions.Create(ctx, user)
	if err != nil {
		return nil, err
	}
	r.metrics.SessionCreated(reason)
	r.logger.Debug("session replaced, sending greeting", "user", user, "reason", reason)

	userContext := r.profiles.Get(ctx, user)
	_, err = r.assistant.Send(ctx, &assistant.Request{
		User:      user,
		SessionID: sess.BackendID,
		Text:      greetingText,
		Context:   BuildContext(userContext),
	})
	if err != nil {
		if assistant.IsFatal(err) {
			return nil, err
		}
		r.logger.Error("greeting turn failed", "user", user, "error", err)
	}

	// the backend id may have rotated during the greeting
	if current, ok := r.sessions.Get(user); ok {
		return current, nil
	}
	return sess, nil
}

// converse sends one turn and posts the reply. Failures become notices on out.
func (r *Relay) converse(ctx context.Context, ev *event.ChatEvent, text string, assistantContext map[string]any, depth int, out surface) {
	ctx, span := tracer.Start(ctx, "relay.converse")
	defer span.End()

	sess, ok := r.sessions.Get(ev.User)
	if !ok {
		r.handleFailure(ctx, ev, fmt.Errorf("no session for %s", ev.User), out)
		return
	}

	start := time.Now()
	reply, err := r.assistant.Send(ctx, &assistant.Request{
		User:      ev.User,
		SessionID: sess.BackendID,
		Text:      text,
		Context:   assistantContext,
	})
	r.metrics.ObserveAssistant(time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.handleFailure(ctx, ev, err, out)
		return
	}

	replyText := reply.HistoryText()
	r.sessions.AppendTurn(ev.User, replyText, reply.Payload())
	r.sessions.Refresh(ev.User)
	r.record(ctx, ev, store.DirectionOutbound, replyText)

	r.post(ctx, ev, slack.FormatReply(reply, ev))

	if _, ok := reply.ClientAction(); ok {
		r.fulfill(ctx, ev, reply, depth, out)
	}
}

// handleFailure maps an error onto the user-visible recovery.
func (r *Relay) handleFailure(ctx context.Context, ev *event.ChatEvent, err error, out surface) {
	switch {
	case assistant.IsFatal(err):
		r.metrics.AssistantError(metrics.KindFatal)
		r.logger.Error("assistant upstream misconfigured", "user", ev.User, "error", err)
		r.fatal(err)

	case errors.Is(err, assistant.ErrSessionInvalid):
		r.metrics.AssistantError(metrics.KindSessionInvalid)
		r.logger.Warn("assistant lost the session", "user", ev.User, "error", err)
		if _, err := r.forceCreate(ctx, ev.User, metrics.ReasonInvalid); err != nil {
			r.handleFailure(ctx, ev, err, out)
			return
		}
		r.notify(ctx, ev, NoticeLostContext, out)

	default:
		r.metrics.AssistantError(metrics.KindOther)
		r.logger.Error("exception in response from assistant", "user", ev.User, "error", err)
		r.notify(ctx, ev, NoticeFailure, out)
	}
}

// fulfill calls the webhook a reply asks for and feeds the result back.
func (r *Relay) fulfill(ctx context.Context, ev *event.ChatEvent, reply *assistant.Reply, depth int, out surface) {
	if depth >= maxFulfillmentDepth {
		r.logger.Warn("fulfillment chain too deep, not calling webhook", "user", ev.User, "depth", depth)
		return
	}
	if r.fulfiller == nil {
		r.logger.Warn("client action requested but no fulfiller configured", "user", ev.User)
		return
	}

	req, err := fulfillment.RequestFromReply(reply)
	if err != nil {
		r.fulfillmentFailed(ctx, ev, err)
		return
	}

	result, err := r.fulfiller.Call(ctx, req)
	if err != nil {
		r.fulfillmentFailed(ctx, ev, err)
		return
	}

	timezone := profile.Timezone(r.profiles.Get(ctx, ev.User))
	updated, ok := fulfillment.UserContext(result)
	if ok {
		r.profiles.Update(ev.User, updated)
	}

	r.converse(ctx, ev, "", FulfillmentContext(timezone, result, updated), depth+1, out)
}

func (r *Relay) fulfillmentFailed(ctx context.Context, ev *event.ChatEvent, err error) {
	r.metrics.AssistantError(metrics.KindFulfillment)
	r.logger.Error("fulfillment webhook failed", "user", ev.User, "error", err)
	r.post(ctx, ev, slack.FormatText(NoticeFailure))
}

// post sends blocks to the event's channel. Replies outside direct mentions
// are threaded on the event's parent, or on the event itself when it starts
// a thread, and the user becomes a member of that thread.
func (r *Relay) post(ctx context.Context, ev *event.ChatEvent, blocks []slack.Block) {
	msg := &slack.Message{
		Channel: ev.Channel,
		Blocks:  blocks,
	}

	if ev.Type != event.AppMention {
		msg.ThreadTS = ev.ThreadKey
		if ev.ThreadTS != "" {
			msg.ThreadTS = ev.ThreadTS
		}
		r.threads.Record(ev.ThreadKey, ev.User)
		if ev.ThreadTS != "" && ev.ThreadTS != ev.ThreadKey {
			r.threads.Record(ev.ThreadTS, ev.User)
		}
	}

	if err := r.poster.PostMessage(ctx, msg); err != nil {
		r.logger.Error("posting reply failed", "channel", ev.Channel, "user", ev.User, "error", err)
	}
}

// notify shows a plain notice on the conversation's surface.
func (r *Relay) notify(ctx context.Context, ev *event.ChatEvent, notice string, out surface) {
	if out.responseURL == "" {
		r.post(ctx, ev, slack.FormatText(notice))
		return
	}
	r.respond(ctx, out.responseURL, slack.WithNotice(out.blocks, notice))
}

// record appends a turn to the transcript ledger when one is configured.
func (r *Relay) record(ctx context.Context, ev *event.ChatEvent, direction store.Direction, text string) {
	if r.ledger == nil {
		return
	}

	turn := &store.Turn{
		User:      ev.User,
		Channel:   ev.Channel,
		Direction: direction,
		Text:      text,
	}
	if sess, ok := r.sessions.Get(ev.User); ok {
		turn.SessionID = sess.ID
		turn.BackendID = sess.BackendID
	}

	if err := r.ledger.SaveTurn(ctx, turn); err != nil {
		r.logger.Warn("recording turn failed", "user", ev.User, "error", err)
	}
}
