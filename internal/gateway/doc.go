// Package gateway serves the relay over HTTP.
//
// # Overview
//
// The gateway package wires the relay components from configuration and
// owns the HTTP server. It builds the Slack client, the assistant backend
// (direct or proxy), the session store, the caches and the optional
// ledger, then hands them to a relay.Relay.
//
// # HTTP API
//
//   - GET / - Platform liveness probe ("Healthy")
//   - GET /health - Liveness check
//   - GET /health/ready - Readiness check (503 after a fatal upstream error)
//   - GET /metrics - Prometheus metrics, when enabled
//   - POST /slack - Events API deliveries
//   - POST /slack/handle_action - Button interactions
//   - GET /api/sessions - List live sessions (admin JWT)
//   - DELETE /api/sessions/{user} - Reset a user's session (admin JWT)
//   - GET /api/sessions/{user}/turns - Recent ledger entries (admin JWT)
//
// # Event Responses
//
// Deliveries are answered with the status the platform expects:
//
//	url_verification       challenge echoed as text/plain
//	missing token/event_id 400
//	token mismatch         403
//	no event               204
//	unparseable event      400
//	accepted               200 "Message Received"
//	anything else          204
//
// The reply to an accepted event is produced before the response is written.
//
// # Lifecycle
//
//	gw, err := gateway.New(ctx, cfg, logger)
//	err = gw.Run(ctx)
//
// Run returns nil when ctx is canceled and an error when the HTTP server
// fails or the assistant upstream reports a misconfiguration.
//
// # Key Files
//
//   - gateway.go: Gateway struct, wiring, Run/Shutdown, health handlers
//   - router.go: chi routes and request logging
//   - events.go: Slack webhook handlers
//   - api.go: Admin session API
package gateway
