// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package netprobe

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"

	"github.com/telekom/sandpiper/internal/logger"
)

// newTestProber builds an engine with no socket behind it. Tests drive
// answers through deliver or dispatch directly.
func newTestProber(t *testing.T) *icmpProber {
	t.Helper()
	p := &icmpProber{
		log:     logger.NewLogger(),
		id:      0x0B0B,
		pending: make(map[uint16]*pendingProbe),
		closed:  make(chan struct{}),
	}
	p.sendEcho = func(_ Request, _ uint16) error { return nil }
	return p
}

func testRequest() Request {
	return Request{
		Target:   net.IPv4(192, 0, 2, 10).To4(),
		Distance: 4,
		Timeout:  250 * time.Millisecond,
	}
}

func TestICMPProber_Probe(t *testing.T) {
	router := &net.IPAddr{IP: net.ParseIP("10.0.0.1")}

	tests := []struct {
		name     string
		answered bool
		kind     Kind
		wantKind Kind
		wantFrom string
	}{
		{
			name:     "reply from the destination",
			answered: true,
			kind:     KindReply,
			wantKind: KindReply,
			wantFrom: "10.0.0.1",
		},
		{
			name:     "time exceeded from a router",
			answered: true,
			kind:     KindTimeExceeded,
			wantKind: KindTimeExceeded,
			wantFrom: "10.0.0.1",
		},
		{
			name:     "unreachable notice",
			answered: true,
			kind:     KindUnreachable,
			wantKind: KindUnreachable,
			wantFrom: "10.0.0.1",
		},
		{
			name:     "silence is a timeout",
			answered: false,
			wantKind: KindTimeout,
			wantFrom: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProber(t)
			p.sendEcho = func(_ Request, seq uint16) error {
				if tt.answered {
					go p.deliver(seq, tt.kind, router)
				}
				return nil
			}

			out, err := p.Probe(t.Context(), testRequest())

			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, out.Kind)
			assert.Equal(t, tt.wantFrom, out.From.IP)
			assert.Equal(t, 4, out.Distance)
			if tt.wantKind != KindTimeout {
				assert.Positive(t, out.RTT, "an answered probe must carry a round trip time")
			} else {
				assert.Zero(t, out.RTT)
			}
		})
	}
}

func TestICMPProber_Probe_SendError(t *testing.T) {
	p := newTestProber(t)
	p.sendEcho = func(_ Request, _ uint16) error {
		return errors.New("sendto: operation not permitted")
	}

	_, err := p.Probe(t.Context(), testRequest())

	require.Error(t, err)
	assert.Empty(t, p.pending, "a failed send must not leave the probe tracked")
}

func TestICMPProber_Probe_InvalidRequest(t *testing.T) {
	p := newTestProber(t)

	tests := []struct {
		name string
		req  Request
	}{
		{"empty target", Request{Distance: 1, Timeout: time.Second}},
		{"ipv6 target", Request{Target: net.ParseIP("2001:db8::1"), Distance: 1, Timeout: time.Second}},
		{"zero distance", Request{Target: net.IPv4(192, 0, 2, 1), Distance: 0, Timeout: time.Second}},
		{"distance beyond TTL range", Request{Target: net.IPv4(192, 0, 2, 1), Distance: 256, Timeout: time.Second}},
		{"no timeout", Request{Target: net.IPv4(192, 0, 2, 1), Distance: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Probe(t.Context(), tt.req)
			assert.Error(t, err)
		})
	}
}

func TestICMPProber_Probe_ContextCanceled(t *testing.T) {
	p := newTestProber(t)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := p.Probe(ctx, testRequest())

	assert.ErrorIs(t, err, context.Canceled)
}

func TestICMPProber_Probe_Closed(t *testing.T) {
	p := newTestProber(t)
	require.NoError(t, p.Close())

	_, err := p.Probe(t.Context(), testRequest())

	assert.ErrorIs(t, err, ErrProberClosed)
}

func TestICMPProber_Close_UnblocksInflightProbes(t *testing.T) {
	p := newTestProber(t)

	done := make(chan error, 1)
	go func() {
		req := testRequest()
		req.Timeout = time.Minute
		_, err := p.Probe(context.Background(), req)
		done <- err
	}()

	// Wait for the probe to be tracked before closing.
	require.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return len(p.pending) == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, p.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrProberClosed)
	case <-time.After(time.Second):
		t.Fatal("Probe did not unblock after Close")
	}
}

func TestICMPProber_StaleAnswerDropped(t *testing.T) {
	p := newTestProber(t)

	// Nothing is tracked under this sequence number; the answer must
	// vanish without disturbing anything.
	p.deliver(42, KindReply, &net.IPAddr{IP: net.ParseIP("10.0.0.1")})

	assert.Empty(t, p.pending)
}

func TestICMPProber_SequenceWraparound(t *testing.T) {
	p := newTestProber(t)
	p.seq.Store(65534)

	s1, _ := p.track()
	s2, _ := p.track()
	s3, _ := p.track()

	assert.Equal(t, uint16(65535), s1)
	assert.Equal(t, uint16(0), s2)
	assert.Equal(t, uint16(1), s3)
}

func TestICMPProber_TrackSkipsBusySequence(t *testing.T) {
	p := newTestProber(t)
	p.seq.Store(4)
	p.pending[5] = &pendingProbe{ch: make(chan probeAnswer, 1), sentAt: time.Now()}

	seq, _ := p.track()

	assert.Equal(t, uint16(6), seq, "an in-flight sequence number must not be reused")
}

func TestICMPProber_RTTSanity(t *testing.T) {
	p := newTestProber(t)
	router := &net.IPAddr{IP: net.ParseIP("10.0.0.1")}
	p.sendEcho = func(_ Request, seq uint16) error {
		// Backdate the probe so the computed round trip time exceeds
		// the request timeout.
		p.mu.Lock()
		p.pending[seq].sentAt = time.Now().Add(-time.Hour)
		p.mu.Unlock()
		go p.deliver(seq, KindReply, router)
		return nil
	}

	out, err := p.Probe(t.Context(), testRequest())

	require.NoError(t, err)
	assert.Equal(t, KindTimeout, out.Kind, "an answer with an impossible round trip time counts as lost")
}

func TestICMPProber_Dispatch(t *testing.T) {
	p := newTestProber(t)
	src := &net.IPAddr{IP: net.ParseIP("203.0.113.7")}

	seq, ch := p.track()

	t.Run("foreign identity is ignored", func(t *testing.T) {
		raw := mustMarshal(t, icmp.Message{
			Type: ipv4.ICMPTypeEchoReply,
			Body: &icmp.Echo{ID: p.id + 1, Seq: int(seq), Data: echoPayload},
		})
		p.dispatch(src, raw)
		assert.Empty(t, ch)
	})

	t.Run("matching reply is delivered", func(t *testing.T) {
		raw := mustMarshal(t, icmp.Message{
			Type: ipv4.ICMPTypeEchoReply,
			Body: &icmp.Echo{ID: p.id, Seq: int(seq), Data: echoPayload},
		})
		p.dispatch(src, raw)

		select {
		case ans := <-ch:
			assert.Equal(t, KindReply, ans.kind)
			assert.Equal(t, src, ans.from)
			assert.Positive(t, ans.rtt)
		default:
			t.Fatal("expected the reply to be delivered")
		}
	})
}

func TestICMPProber_ConcurrentProbes(t *testing.T) {
	p := newTestProber(t)
	router := &net.IPAddr{IP: net.ParseIP("10.0.0.1")}
	p.sendEcho = func(_ Request, seq uint16) error {
		go p.deliver(seq, KindTimeExceeded, router)
		return nil
	}

	const probes = 32
	results := make(chan error, probes)
	for range probes {
		go func() {
			_, err := p.Probe(context.Background(), testRequest())
			results <- err
		}()
	}

	for range probes {
		require.NoError(t, <-results)
	}
	assert.Empty(t, p.pending, "all probes must untrack themselves")
}
