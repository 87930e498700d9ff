// Package relay is the conversation orchestrator.
//
// For each inbound event the Relay classifies it, drops repeats, resolves the
// user's session, sends the text to the assistant with the user's profile as
// context, records the exchange and posts the formatted reply. Button clicks
// enter through HandleAction and reuse the same send-and-post path.
//
// Session resolution:
//
//   - a greeting ("hi" or "hello") always starts a new session;
//   - otherwise an absent or expired session is replaced and primed with a
//     silent "hi" turn, so the user does not have to repeat themselves.
//
// Work for one user is serialized with the session store's per-user lock.
// A backend that reports the session invalid gets a new session and the user
// a restart notice. Errors that mean the deployment itself is broken are
// handed to the fatal hook, which stops the process.
package relay
