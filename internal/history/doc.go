// Package history persists supply decisions and zone claim transitions to
// SQLite so the dashboard can show why the boiler ran.
//
// The Recorder is attached as an observer to the arbitrator and the zone
// engines. Observers run on the dispatch loop, so the Recorder only queues
// entries; a background goroutine writes them and prunes rows older than
// the configured retention.
package history
