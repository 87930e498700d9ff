// Package assistant talks to the conversational assistant.
//
// A Backend is either Direct, which calls the assistant's v2 REST API with
// its own session ids, or Proxy, which wraps every turn in an integration
// envelope and learns rotated session ids from the proxy's replies. The
// strategy is chosen once at startup; callers only see Send and the two
// distinguished failures:
//
//   - ErrSessionInvalid: the backend no longer accepts the session. Start a
//     new one and tell the user the conversation restarted.
//   - ErrUpstreamMisconfigured (carried by *UpstreamError): the deployment is
//     broken in a way only an operator can fix. The process should stop.
package assistant
