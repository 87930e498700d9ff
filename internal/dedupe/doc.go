// Package dedupe suppresses repeated deliveries of the same inbound event.
//
// Chat platforms retry webhook deliveries that are slow to acknowledge, so
// the same event id can arrive several times. The Cache remembers the most
// recent ids up to cache.max_events and evicts the oldest-inserted id first.
//
// Check-and-record is atomic within one process. Deliveries are recorded
// before they are handled, so a delivery whose handling fails is not
// retried, and a fleet of relays does not share one cache.
package dedupe
