// Package slack is the relay's chat platform edge.
//
// It holds the Web API client (chat.postMessage, users.info, auth.test and
// interaction response URLs), the inbound Events API and interaction payload
// types, request signature verification, and the formatting that turns an
// assistant reply into Block Kit blocks with mrkdwn text.
//
// Option buttons carry their context in the button value as
// "text:thread_key:EventType.NAME" so a click can be routed back into the
// same thread the conversation started in.
package slack
