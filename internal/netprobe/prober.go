// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package netprobe

import (
	"context"
	"fmt"
)

var (
	_ Prober = (*icmpProber)(nil)
	_ Prober = (*tcpProber)(nil)
)

// Prober sends single probes with a capped distance and reports what
// came back. Implementations are safe for concurrent use: any number
// of goroutines may probe at once, each blocking only on its own
// outcome.
//
//go:generate go tool moq -out prober_moq.go . Prober
type Prober interface {
	// Probe sends one probe and blocks until its terminal outcome:
	// an answer arrived, the timeout elapsed (reported as an outcome
	// of [KindTimeout], not an error), or the context was canceled.
	// A returned error means the probe could not be sent or awaited,
	// not that the network stayed silent.
	Probe(ctx context.Context, req Request) (Outcome, error)
	// Close releases the prober's sockets. In-flight probes are
	// unblocked with [ErrProberClosed].
	Close() error
}

// New creates a [Prober] for the given mode. The ICMP prober opens its
// socket eagerly, so a permission problem surfaces here rather than on
// the first probe.
func New(ctx context.Context, mode Mode) (Prober, error) {
	switch mode {
	case ModeTCP:
		return newTCPProber(), nil
	case ModeICMP, "":
		return newICMPProber(ctx)
	default:
		return nil, fmt.Errorf("unsupported probe mode: %s", mode)
	}
}
