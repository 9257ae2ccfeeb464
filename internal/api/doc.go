// Package api implements the HTTP REST API and WebSocket server for the
// heating controller.
//
// This package provides:
//   - Read-only endpoints for supply, zone and keep-alive state
//   - Supply event and claim history backed by SQLite
//   - A force-evaluation trigger that fires the host event on the loop
//   - Prometheus exposition and a JSON runtime summary
//   - A WebSocket hub broadcasting evaluations as they happen
//
// # Architecture
//
// The controller's components run on a single dispatch loop. The API never
// touches them directly: a Board observes evaluation results on the loop
// and keeps a mutex-guarded copy for HTTP readers, and writes go back to
// the loop as host events.
//
// # Graceful Degradation
//
// History, health and metrics are optional. A missing dependency turns
// its endpoint into 503 Service Unavailable; the rest keeps working.
package api
