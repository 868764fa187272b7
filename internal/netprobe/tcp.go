// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package netprobe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
	"golang.org/x/sys/unix"

	"github.com/telekom/sandpiper/internal/logger"
)

const (
	// defaultTCPPort is probed when the request does not name one.
	defaultTCPPort = 80
	// maxPortAttempts bounds how often a probe redraws its source port
	// when the drawn one is already taken.
	maxPortAttempts = 3
)

// tcpProber probes with TCP SYN segments. Each probe dials from a
// random source port with the distance cap set on the socket and pairs
// the dial with a raw ICMP listener to learn which hop answered when
// the segment dies en route.
type tcpProber struct {
	dialTCP     func(ctx context.Context, addr net.Addr, port, ttl int, timeout time.Duration) (net.Conn, error)
	newListener func(probePort int) (icmpListener, error)
}

func newTCPProber() *tcpProber {
	return &tcpProber{
		dialTCP:     dialTCP,
		newListener: newRawListener,
	}
}

// Probe sends one TCP probe and waits for its terminal outcome.
func (p *tcpProber) Probe(ctx context.Context, req Request) (Outcome, error) {
	if err := req.Validate(); err != nil {
		return Outcome{}, err
	}
	if req.Port == 0 {
		req.Port = defaultTCPPort
	}

	for range maxPortAttempts {
		out, err := p.probe(ctx, req)
		if errors.Is(err, unix.EADDRINUSE) {
			// Drew a busy source port, go again with a fresh one.
			continue
		}
		return out, err
	}
	return Outcome{}, fmt.Errorf("failed to find a free source port after %d attempts", maxPortAttempts)
}

func (p *tcpProber) probe(ctx context.Context, req Request) (Outcome, error) {
	log := logger.FromContext(ctx)
	port := randomPort()

	il, err := p.newListener(port)
	if err != nil {
		return Outcome{}, wrapError(ctx, err, "failed to create ICMP listener")
	}
	defer func() { _ = il.Close() }()

	addr := &net.TCPAddr{IP: req.Target, Port: req.Port}
	start := time.Now()
	conn, err := p.dialTCP(ctx, addr, port, req.Distance, req.Timeout)

	switch {
	// Happiest path: the handshake completed, the probe went the
	// whole way to the destination.
	case err == nil:
		rtt := time.Since(start)
		_ = conn.Close()
		log.DebugContext(ctx, "TCP connection established", "addr", addr, "distance", req.Distance)
		return Outcome{RTT: rtt, From: newHopAddress(addr), Kind: KindReply, Distance: req.Distance}, nil

	case errors.Is(err, unix.EADDRINUSE):
		return Outcome{}, err

	// A refusal is sent by the destination's own stack, so the probe
	// went the whole way even though no connection came of it.
	case errors.Is(err, unix.ECONNREFUSED):
		return Outcome{RTT: time.Since(start), From: newHopAddress(addr), Kind: KindReply, Distance: req.Distance}, nil

	// The distance budget ran out en route. The hop that killed the
	// probe announced itself over ICMP, the listener has the details.
	case errors.Is(err, unix.EHOSTUNREACH):

	case isDialTimeout(err):
		return Outcome{Kind: KindTimeout, Distance: req.Distance}, nil

	default:
		return Outcome{}, wrapError(ctx, err, "failed to dial TCP connection")
	}

	rctx, cancel := context.WithDeadline(ctx, start.Add(req.Timeout))
	defer cancel()

	notice, err := il.Read(rctx)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Outcome{Kind: KindTimeout, Distance: req.Distance}, nil
	case err != nil:
		return Outcome{}, wrapError(ctx, err, "failed to read ICMP notice")
	default:
		log.DebugContext(ctx, "Received ICMP notice", "kind", notice.kind, "from", notice.from)
		return Outcome{RTT: time.Since(start), From: newHopAddress(notice.from), Kind: notice.kind, Distance: req.Distance}, nil
	}
}

// Close is a no-op: TCP probes hold no sockets between probes.
func (p *tcpProber) Close() error {
	return nil
}

// isDialTimeout reports whether the dial gave up without the network
// ever answering.
func isDialTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// dialTCP dials the address from the given source port with the
// distance cap set on the socket.
func dialTCP(ctx context.Context, addr net.Addr, port, ttl int, timeout time.Duration) (net.Conn, error) {
	dialer := net.Dialer{
		LocalAddr: &net.TCPAddr{
			Port: port,
		},
		Timeout: timeout,
		ControlContext: func(_ context.Context, _, _ string, c syscall.RawConn) error {
			var opErr error
			if err := c.Control(func(fd uintptr) {
				opErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_TTL, ttl) // #nosec G115 // The net package is safe to use
			}); err != nil {
				return err
			}
			return opErr
		},
	}

	return dialer.DialContext(ctx, "tcp", addr.String())
}

// icmpListener reads the ICMP notices routers send in answer to one
// TCP probe.
//
//go:generate go tool moq -out icmp_moq.go . icmpListener
type icmpListener interface {
	Read(ctx context.Context) (icmpNotice, error)
	Close() error
}

// icmpNotice is a parsed ICMP answer to a TCP probe.
type icmpNotice struct {
	// from is the device that sent the notice.
	from net.Addr
	// kind is [KindTimeExceeded] or [KindUnreachable].
	kind Kind
	// probePort is the source port of the original probe quoted in the
	// notice. It tells our probe's answers apart from unrelated traffic.
	probePort int
}

// rawListener reads ICMP messages off a raw socket, filtered down to
// the ones answering the probe sent from probePort.
// It requires NET_RAW capabilities to be created successfully.
type rawListener struct {
	conn *icmp.PacketConn
	// probePort is the source port of the probe this listener serves.
	probePort int
	// canICMP indicates whether the listener was successfully created
	// with NET_RAW capabilities, meaning it can read ICMP messages.
	canICMP bool
}

// newRawListener creates a [rawListener] for answers to the probe sent
// from probePort. If the socket cannot be created due to permission
// issues, it returns a listener that reports ICMP as unavailable, but
// does not return an error.
func newRawListener(probePort int) (icmpListener, error) {
	conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err == nil {
		return &rawListener{conn: conn, probePort: probePort, canICMP: true}, nil
	}

	if errors.Is(err, unix.EPERM) {
		return &rawListener{conn: nil, probePort: probePort, canICMP: false}, nil
	}

	return nil, fmt.Errorf("failed to create ICMP listener: %w", err)
}

// Read receives ICMP messages until one answers our probe or the
// context deadline passes.
//
// Returns [ErrRawNotAvailable] if the listener was created without
// NET_RAW capabilities, meaning ICMP is not available for reading.
func (l *rawListener) Read(ctx context.Context) (icmpNotice, error) {
	if !l.canICMP {
		return icmpNotice{}, ErrRawNotAvailable
	}
	log := logger.FromContext(ctx)

	for {
		select {
		case <-ctx.Done():
			return icmpNotice{}, ctx.Err()
		default:
		}

		notice, err := l.recvNotice(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return icmpNotice{}, context.DeadlineExceeded
			}
			log.DebugContext(ctx, "Discarding unusable ICMP message", "error", err)
			continue
		}

		if notice.probePort != l.probePort {
			log.DebugContext(ctx, "Received ICMP notice for another probe, ignoring",
				"expectedPort", l.probePort,
				"receivedPort", notice.probePort)
			continue
		}

		return *notice, nil
	}
}

// recvNotice reads the next ICMP message from the listener's socket.
func (l *rawListener) recvNotice(ctx context.Context) (*icmpNotice, error) {
	deadline, ok := ctx.Deadline()
	if !ok || deadline.IsZero() {
		return nil, context.Canceled
	}

	if err := l.conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("failed to set read deadline: %w", err)
	}

	buf := make([]byte, mtuSize)
	n, src, err := l.conn.ReadFrom(buf)
	if err != nil {
		// This is most probably a timeout or a closed connection
		return nil, fmt.Errorf("failed to read from ICMP socket: %w", err)
	}

	msg, err := icmp.ParseMessage(protocolICMP, buf[:n])
	if err != nil {
		return nil, fmt.Errorf("failed to parse ICMP message: %w", err)
	}

	return newTCPNotice(src, msg)
}

// newTCPNotice recovers a notice from an ICMP message quoting one of
// our TCP probes. The first two bytes of the quoted TCP segment are
// the source port the probe was sent from.
func newTCPNotice(src net.Addr, msg *icmp.Message) (*icmpNotice, error) {
	var data []byte
	var kind Kind
	switch msg.Type {
	case ipv4.ICMPTypeTimeExceeded:
		data = msg.Body.(*icmp.TimeExceeded).Data
		kind = KindTimeExceeded
	case ipv4.ICMPTypeDestinationUnreachable:
		data = msg.Body.(*icmp.DstUnreach).Data
		kind = KindUnreachable
	// Currently, we do not support IPv6 ICMP messages.
	// If we ever do, the header size is [ipv6.HeaderLen].
	case ipv6.ICMPTypeTimeExceeded:
		return nil, fmt.Errorf("ipv6 ICMP messages are not supported")
	case ipv6.ICMPTypeDestinationUnreachable:
		return nil, fmt.Errorf("ipv6 ICMP messages are not supported")
	default:
		return nil, fmt.Errorf("unexpected ICMP message type: %v", msg.Type)
	}

	if len(data) < 1 {
		return nil, errors.New("quoted packet is empty")
	}
	headerLen := int(data[0]&ipHeaderLengthMask) * byteMultiplier
	if headerLen < ipv4.HeaderLen || len(data) < headerLen+2 {
		return nil, fmt.Errorf("quoted TCP segment too short: %d bytes", len(data))
	}

	tcpSegment := data[headerLen:]
	return &icmpNotice{
		from:      src,
		kind:      kind,
		probePort: int(tcpSegment[0])<<8 + int(tcpSegment[1]),
	}, nil
}

// Close closes the listener's socket.
//
// It is safe to call this method even if the listener was not
// successfully created or does not have NET_RAW capabilities.
func (l *rawListener) Close() error {
	if l.conn != nil {
		return l.conn.Close()
	}
	return nil
}
