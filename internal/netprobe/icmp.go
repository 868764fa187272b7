// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package netprobe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"

	"github.com/telekom/sandpiper/internal/logger"
)

// readPollInterval caps how long the read loop blocks before checking
// for shutdown. On the datagram socket it also bounds how late a queued
// error can be drained when no other traffic wakes the reader.
const readPollInterval = time.Second

// icmpProber probes with ICMP echo requests over a single shared
// socket. One background goroutine reads every incoming message and
// correlates it back to the waiting probe via the echo sequence number.
type icmpProber struct {
	// conn is the shared ICMP socket, raw when NET_RAW capabilities are
	// available, a datagram ping socket otherwise.
	conn net.PacketConn
	// pc exposes the TTL control over conn.
	pc *ipv4.PacketConn
	// rawConn reaches the socket's file descriptor for error queue
	// reads. Only set in datagram mode.
	rawConn syscall.RawConn
	// dgram indicates the unprivileged datagram fallback is in use, in
	// which time-exceeded and unreachable notices arrive through the
	// socket error queue instead of the regular read path.
	dgram bool
	// id is the echo identity stamped on outgoing probes. In datagram
	// mode the kernel assigns it.
	id int

	// sendEcho abstracts the marshal, TTL set and write of one probe,
	// so tests can run the correlation machinery without a socket.
	sendEcho func(req Request, seq uint16) error

	log *slog.Logger
	seq atomic.Uint32

	// sendMu serializes setting the TTL and writing the probe. The TTL
	// lives on the socket, not the packet, so the pair must not
	// interleave with another probe's.
	sendMu sync.Mutex

	mu      sync.Mutex
	pending map[uint16]*pendingProbe

	closeOnce sync.Once
	closed    chan struct{}
}

// pendingProbe tracks one in-flight probe until its answer arrives or
// the waiter gives up.
type pendingProbe struct {
	ch     chan probeAnswer
	sentAt time.Time
}

// probeAnswer is what the read loop hands to a waiting probe.
type probeAnswer struct {
	from net.Addr
	rtt  time.Duration
	kind Kind
}

// newICMPProber opens the shared ICMP socket and starts the read loop.
// Without NET_RAW capabilities it falls back to an unprivileged
// datagram ping socket; if that is restricted too, it returns
// [ErrRawNotAvailable].
func newICMPProber(ctx context.Context) (*icmpProber, error) {
	log := logger.FromContext(ctx)
	p := &icmpProber{
		log:     log,
		pending: make(map[uint16]*pendingProbe),
		closed:  make(chan struct{}),
	}
	p.sendEcho = p.send

	conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	switch {
	case err == nil:
		p.conn = conn
		p.pc = conn.IPv4PacketConn()
		p.id = echoIdentity()
	case errors.Is(err, unix.EPERM):
		log.InfoContext(ctx, "No NET_RAW capabilities, falling back to datagram ICMP socket", "hint", CapabilityHint())
		if err = p.listenDgram(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRawNotAvailable, err)
		}
	default:
		return nil, fmt.Errorf("failed to create ICMP socket: %w", err)
	}

	go p.readLoop()
	return p, nil
}

// echoIdentity derives the echo identity for a raw socket from the
// process ID plus a random component, so concurrent engines on one
// host do not steal each other's replies.
func echoIdentity() int {
	return (rand.N(0x7f)+1)<<8 | os.Getpid()&0xff // #nosec G404 // uniqueness, not secrecy
}

// listenDgram opens an unprivileged datagram ICMP socket with the
// error queue enabled and wires it into the prober. The kernel assigns
// the echo identity and reports it as the local address port.
func (p *icmpProber) listenDgram() error {
	s, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_ICMP)
	if err != nil {
		return fmt.Errorf("failed to create datagram ICMP socket: %w", err)
	}

	if err = unix.SetsockoptInt(s, unix.SOL_IP, unix.IP_RECVERR, 1); err != nil {
		_ = unix.Close(s)
		return fmt.Errorf("failed to enable IP_RECVERR: %w", err)
	}
	if err = unix.Bind(s, &unix.SockaddrInet4{}); err != nil {
		_ = unix.Close(s)
		return fmt.Errorf("failed to bind datagram ICMP socket: %w", err)
	}

	f := os.NewFile(uintptr(s), "datagram-icmp")
	defer func() { _ = f.Close() }()
	conn, err := net.FilePacketConn(f)
	if err != nil {
		return fmt.Errorf("failed to wrap datagram ICMP socket: %w", err)
	}

	sc, ok := conn.(syscall.Conn)
	if !ok {
		_ = conn.Close()
		return fmt.Errorf("datagram ICMP socket does not implement syscall.Conn: %T", conn)
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to get RawConn: %w", err)
	}

	p.conn = conn
	p.pc = ipv4.NewPacketConn(conn)
	p.rawConn = rc
	p.dgram = true
	if la, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		p.id = la.Port
	}
	return nil
}

// Probe sends one echo request and waits for its terminal outcome.
func (p *icmpProber) Probe(ctx context.Context, req Request) (Outcome, error) {
	if err := req.Validate(); err != nil {
		return Outcome{}, err
	}
	select {
	case <-p.closed:
		return Outcome{}, ErrProberClosed
	default:
	}

	seq, ch := p.track()
	defer p.untrack(seq)

	if err := p.sendEcho(req, seq); err != nil {
		if errors.Is(err, net.ErrClosed) {
			return Outcome{}, ErrProberClosed
		}
		return Outcome{}, wrapError(ctx, err, "failed to send probe", "target", req.Target.String(), "distance", req.Distance)
	}

	timer := time.NewTimer(req.Timeout)
	defer timer.Stop()

	select {
	case ans := <-ch:
		if ans.rtt <= 0 || ans.rtt > req.Timeout {
			// Clock weirdness or an answer racing the deadline.
			return Outcome{Kind: KindTimeout, Distance: req.Distance}, nil
		}
		return Outcome{
			RTT:      ans.rtt,
			From:     newHopAddress(ans.from),
			Kind:     ans.kind,
			Distance: req.Distance,
		}, nil
	case <-timer.C:
		return Outcome{Kind: KindTimeout, Distance: req.Distance}, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	case <-p.closed:
		return Outcome{}, ErrProberClosed
	}
}

// track reserves a free sequence number and registers the channel its
// answer will be delivered on.
func (p *icmpProber) track() (uint16, chan probeAnswer) {
	ch := make(chan probeAnswer, 1)
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		seq := uint16(p.seq.Add(1)) // #nosec G115 // wraps at 16 bits on purpose
		if _, taken := p.pending[seq]; taken {
			// A probe from 65536 sends ago is still in flight.
			continue
		}
		p.pending[seq] = &pendingProbe{ch: ch, sentAt: time.Now()}
		return seq, ch
	}
}

func (p *icmpProber) untrack(seq uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pending, seq)
}

// send marshals and writes one echo request with the requested distance.
func (p *icmpProber) send(req Request, seq uint16) error {
	wb, err := marshalEcho(p.id, seq)
	if err != nil {
		return fmt.Errorf("failed to marshal echo request: %w", err)
	}

	p.sendMu.Lock()
	defer p.sendMu.Unlock()
	if err := p.pc.SetTTL(req.Distance); err != nil {
		return fmt.Errorf("failed to set TTL %d: %w", req.Distance, err)
	}
	if _, err := p.conn.WriteTo(wb, p.dst(req.Target)); err != nil {
		return fmt.Errorf("failed to send echo request: %w", err)
	}
	return nil
}

// dst wraps the target IP in the address type the socket expects.
func (p *icmpProber) dst(ip net.IP) net.Addr {
	if p.dgram {
		return &net.UDPAddr{IP: ip}
	}
	return &net.IPAddr{IP: ip}
}

// readLoop serves the shared socket until the prober is closed,
// correlating every message back to its waiting probe. On the datagram
// socket a queued ICMP error wakes the read immediately with a socket
// error, so the error queue is drained on every failed read.
func (p *icmpProber) readLoop() {
	buf := make([]byte, mtuSize)
	for {
		select {
		case <-p.closed:
			return
		default:
		}

		if err := p.conn.SetReadDeadline(time.Now().Add(readPollInterval)); err != nil {
			return
		}

		n, src, err := p.conn.ReadFrom(buf)
		switch {
		case err == nil:
			p.dispatch(src, buf[:n])
		case errors.Is(err, net.ErrClosed):
			return
		default:
			if p.dgram {
				p.drainErrQueue()
			}
		}
	}
}

// dispatch parses a message from the regular read path and delivers it
// to the probe it answers. Raw sockets see every ICMP message on the
// host; anything that is not ours falls out here.
func (p *icmpProber) dispatch(src net.Addr, b []byte) {
	reply, err := parseEchoReply(src, b)
	if err != nil {
		return
	}
	if reply.id != p.id {
		return
	}
	p.deliver(reply.seq, reply.kind, reply.from)
}

// drainErrQueue empties the socket error queue, delivering each
// recovered time-exceeded or unreachable notice to its probe.
func (p *icmpProber) drainErrQueue() {
	oob := make([]byte, oobBufSize)
	for {
		var msg *errQueueMsg
		var opErr error
		err := p.rawConn.Read(func(fd uintptr) bool {
			msg, opErr = recvErrMsg(fd, oob)
			return true
		})
		if err != nil {
			return
		}
		if opErr != nil {
			if !errors.Is(opErr, unix.EAGAIN) && !errors.Is(opErr, unix.EWOULDBLOCK) {
				p.log.Debug("Failed to read from socket error queue", "error", opErr)
			}
			return
		}

		ind, err := parseErrQueueMsg(msg)
		if err != nil {
			p.log.Debug("Discarding unusable error queue message", "error", err)
			continue
		}
		p.deliver(ind.seq, ind.kind, ind.offender)
	}
}

// deliver hands an answer to the probe waiting on seq. Answers nobody
// waits for anymore, e.g. for a probe that already timed out, are
// dropped.
func (p *icmpProber) deliver(seq uint16, kind Kind, from net.Addr) {
	p.mu.Lock()
	pp, ok := p.pending[seq]
	if ok {
		delete(p.pending, seq)
	}
	p.mu.Unlock()
	if !ok {
		return
	}

	select {
	case pp.ch <- probeAnswer{from: from, rtt: time.Since(pp.sentAt), kind: kind}:
	default:
	}
}

// Close shuts the shared socket down and unblocks every in-flight probe.
func (p *icmpProber) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.closed)
		if p.conn != nil {
			err = p.conn.Close()
		}
	})
	return err
}
