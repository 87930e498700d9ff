// Package event turns raw chat platform payloads into typed ChatEvents.
//
// # Overview
//
// Every inbound webhook delivery carries one event object. The Classifier
// inspects it, strips the bot's mention marker from the text, resolves the
// thread key and decides which EventType applies. Only MESSAGE and
// APP_MENTION events are eligible for a reply.
//
// # Classification Order
//
//  1. app_mention events and direct (im) channels are always APP_MENTION
//  2. message events that mention the bot resolve their sub-type
//  3. messages in a tracked thread resolve their sub-type, then plain
//     messages are demoted when the sender is not a thread member or when
//     somebody other than the bot is mentioned
//  4. reaction_added events are REACTION_ADDED
//  5. everything else is UNHANDLED
//
// # Thread Key
//
// The thread key doubles as the dedupe/thread key and the anchor that
// replies are threaded on. It resolves from event_ts, then thread_ts, then
// ts. An event without a string thread key cannot be constructed.
package event
