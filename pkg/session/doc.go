// Package session implements the continuous path quality measurement
// engine: one [Session] per target, repeatedly probing every distance
// between the local host and the destination and accumulating per-hop
// loss, latency and jitter statistics.
//
// A session runs a cycle on a fixed interval. Each cycle issues one
// probe per distance from 1 up to the current probing horizon,
// concurrently, and waits for their outcomes up to the probe timeout.
// The horizon grows by one distance per cycle until the destination
// itself replies, then freezes there; hops beyond the destination are
// never probed again. Timeouts count as loss, so a dead path keeps the
// session running and simply reads as 100% loss at every distance.
//
// Consumers never touch live state. [Session.Snapshot] returns an
// immutable copy of all hops with their statistics recomputed and each
// hop classified into a stability [Grade] by the configured
// [Thresholds].
//
// Typical usage:
//
//	s, err := session.New(session.Config{Target: "example.com"}, prober)
//	err = s.Start(ctx)
//	// ... read s.Snapshot() at any cadence ...
//	s.Stop()
//
// The lifecycle is a strict state machine: Idle -> Running via Start,
// Running -> Stopped via Stop (idempotent), Stopped -> Idle via Reset,
// which discards all measured state.
package session
