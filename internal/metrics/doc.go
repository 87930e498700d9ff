// Package metrics exposes the relay's Prometheus collectors.
package metrics
