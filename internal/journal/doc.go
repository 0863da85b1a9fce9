// Package journal provides a SQLite-backed audit log of routed events.
//
// The journal is diagnostics only. The correlator never reads it back and
// its state is never rebuilt from it. Each routed event produces one row
// recording what arrived and what the correlator did with it.
//
// # Ordering
//
//   - All ordering uses seq INTEGER (the router's logical clock), never
//     wall time
//   - Queries end with ORDER BY seq ASC, id ASC so output is stable across
//     runs
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Content payloads are stored as canonical JSON alongside their content
// hash from internal/bundle.
package journal
