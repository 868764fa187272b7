// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package session

import "time"

// Stats are the measured statistics of a single hop, recomputed from
// the running counters on every read. The round trip time fields are
// only meaningful when Received > 0 and are zero otherwise; Jitter
// needs at least two answers.
type Stats struct {
	// Sent is the number of probes issued towards this hop.
	Sent uint64 `json:"sent" yaml:"sent"`
	// Received is the number of probes answered, by the hop itself or
	// by the destination.
	Received uint64 `json:"received" yaml:"received"`
	// Loss is the packet loss in percent, 0 when nothing was sent yet.
	Loss float64 `json:"loss" yaml:"loss"`
	// Last, Avg, Best and Worst describe the answered round trips.
	Last  time.Duration `json:"last,omitempty" yaml:"last,omitempty"`
	Avg   time.Duration `json:"avg,omitempty" yaml:"avg,omitempty"`
	Best  time.Duration `json:"best,omitempty" yaml:"best,omitempty"`
	Worst time.Duration `json:"worst,omitempty" yaml:"worst,omitempty"`
	// Jitter is the mean absolute difference between consecutive round
	// trip times.
	Jitter time.Duration `json:"jitter,omitempty" yaml:"jitter,omitempty"`
}

// accumulator holds the running moments behind [Stats]. It keeps
// constant-size state no matter how long a session runs: averages and
// jitter are derived from sums, not from a sample history.
type accumulator struct {
	sent      uint64
	received  uint64
	last      time.Duration
	best      time.Duration
	worst     time.Duration
	sum       time.Duration
	jitterSum time.Duration
}

// markSent counts one issued probe. Called on issue, not on reply, so
// a probe that never comes back still reads as loss.
func (a *accumulator) markSent() {
	a.sent++
}

// record feeds one answered round trip into the moments. rtt must be
// positive; the prober treats anything else as a timeout.
func (a *accumulator) record(rtt time.Duration) {
	if a.received > 0 {
		a.jitterSum += (rtt - a.last).Abs()
	}
	a.received++
	a.last = rtt
	a.sum += rtt
	if a.best == 0 || rtt < a.best {
		a.best = rtt
	}
	if rtt > a.worst {
		a.worst = rtt
	}
}

// stats derives the externally visible statistics from the current
// moments.
func (a *accumulator) stats() Stats {
	s := Stats{Sent: a.sent, Received: a.received}
	if a.sent > 0 {
		s.Loss = float64(a.sent-a.received) / float64(a.sent) * 100
	}
	if a.received > 0 {
		s.Last = a.last
		s.Best = a.best
		s.Worst = a.worst
		s.Avg = a.sum / time.Duration(a.received)
	}
	if a.received > 1 {
		s.Jitter = a.jitterSum / time.Duration(a.received-1)
	}
	return s
}
