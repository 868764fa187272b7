// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/telekom/sandpiper/internal/logger"
	"github.com/telekom/sandpiper/internal/netprobe"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// State is the lifecycle state of a session.
type State string

const (
	// StateIdle means no measurement data exists and the session can
	// be started.
	StateIdle State = "idle"
	// StateRunning means the probe cycle is active.
	StateRunning State = "running"
	// StateStopped means probing has ended; the measured data stays
	// readable until the session is reset.
	StateStopped State = "stopped"
)

// Session measures the path to one target. Create it with [New], drive
// it with Start, Stop and Reset and read it through [Session.Snapshot].
// All methods are safe for concurrent use.
type Session struct {
	// cfg's identity fields (Target, Mode, Port) are never rewritten
	// after New and may be read without the lock; the tunables are
	// only accessed under mu.
	cfg    Config
	prober netprobe.Prober
	tracer trace.Tracer

	// resolveTarget and resolveAddr are swappable in tests.
	resolveTarget func(ctx context.Context, host string) (net.IP, error)
	resolveAddr   func(address string) string

	mu       sync.Mutex
	state    State
	address  net.IP
	table    *table
	horizon  int
	cycleID  uint64
	cycles   uint64
	stopping bool
	done     chan struct{}
	finished chan struct{}
}

// New builds a session for the given configuration, filling in
// defaults for unset fields. The prober may be shared between any
// number of sessions and stays owned by the caller; the session never
// closes it.
func New(cfg Config, prober netprobe.Prober) (*Session, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Session{
		cfg:           cfg,
		prober:        prober,
		state:         StateIdle,
		tracer:        otel.Tracer("session"),
		resolveTarget: netprobe.ResolveTarget,
		resolveAddr:   netprobe.ResolveName,
	}, nil
}

// Start resolves the target and begins probing. It fails with
// [ErrTargetResolution] when the target does not resolve and with
// [ErrInvalidTransition] unless the session is idle; in both cases no
// session state is touched. The measurement runs until Stop is called
// or ctx is canceled.
func (s *Session) Start(ctx context.Context) error {
	addr, err := s.resolveTarget(ctx, s.cfg.Target)
	if err != nil {
		return ErrTargetResolution{Target: s.cfg.Target, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return ErrInvalidTransition{From: s.state, To: StateRunning}
	}
	s.state = StateRunning
	s.address = addr
	s.table = newTable(addr.String())
	s.horizon = 1
	s.cycles = 0
	s.stopping = false
	s.done = make(chan struct{})
	s.finished = make(chan struct{})
	go s.run(ctx)
	return nil
}

// Stop ends the measurement and waits for the session to settle, which
// takes at most one probe timeout: a cycle in flight finishes and its
// outcomes are recorded. Stopping an idle or already stopped session
// does nothing. The measured data stays readable via Snapshot.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	if !s.stopping {
		s.stopping = true
		close(s.done)
	}
	finished := s.finished
	s.mu.Unlock()
	<-finished
}

// Reset discards all measured state and returns the session to idle,
// ready for a fresh Start with a new resolution and route discovery.
// Resetting an idle session does nothing; resetting a running session
// is an [ErrInvalidTransition].
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateRunning:
		return ErrInvalidTransition{From: StateRunning, To: StateIdle}
	case StateIdle:
		return nil
	}
	s.state = StateIdle
	s.address = nil
	s.table = nil
	s.horizon = 0
	s.cycles = 0
	return nil
}

// UpdateConfig applies new tunables (interval, timeout, discovery cap,
// name resolution, thresholds) to the session, also while it is
// running. The target identity is fixed: an update naming a different
// target, mode or port is rejected with [ErrTargetMismatch].
func (s *Session) UpdateConfig(cfg Config) error {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !cfg.SameTarget(s.cfg) {
		return ErrTargetMismatch{Current: s.cfg.Target, Updated: cfg.Target}
	}
	// Assigned field by field so the identity fields are never written
	// again after New.
	s.cfg.Interval = cfg.Interval
	s.cfg.Timeout = cfg.Timeout
	s.cfg.MaxDistance = cfg.MaxDistance
	s.cfg.ResolveNames = cfg.ResolveNames
	s.cfg.Thresholds = cfg.Thresholds
	return nil
}

// Config returns the session's current configuration.
func (s *Session) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Snapshot returns an immutable copy of the session's state. It can be
// called at any cadence from any goroutine and never blocks on probing
// or name resolution.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Target:    s.cfg.Target,
		State:     s.state,
		Cycles:    s.cycles,
		Timestamp: time.Now().UTC(),
	}
	if s.address != nil {
		snap.Address = s.address.String()
	}
	if s.table != nil {
		snap.Hops = s.table.export(s.cfg.Thresholds)
	}
	return snap
}

// run is the session's control loop: one cycle immediately, then one
// per interval until the session is stopped or ctx is canceled.
func (s *Session) run(ctx context.Context) {
	defer close(s.finished)
	ctx, cancel := logger.NewContextWithLogger(ctx)
	defer cancel()
	log := logger.FromContext(ctx)
	log.InfoContext(ctx, "Starting path measurement",
		"target", s.cfg.Target, "address", s.address.String(), "interval", s.interval().String())

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			s.halt(ctx)
			return
		case <-s.done:
			s.halt(ctx)
			return
		case <-timer.C:
			s.cycle(ctx)
			timer.Reset(s.interval())
		}
	}
}

// halt marks the session stopped after the control loop has drained.
func (s *Session) halt(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning {
		s.state = StateStopped
	}
	logger.FromContext(ctx).InfoContext(ctx, "Session stopped", "target", s.cfg.Target, "cycles", s.cycles)
}

func (s *Session) interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Interval
}

// cycle runs one measurement round: it issues one probe per distance
// up to the current horizon, concurrently, counts every probe as sent
// on issue and waits for all outcomes. Afterwards the horizon either
// freezes at the destination, truncating everything behind it, or
// grows by one distance up to the configured cap.
func (s *Session) cycle(ctx context.Context) {
	log := logger.FromContext(ctx)
	ctx, span := s.tracer.Start(ctx, "session.cycle", trace.WithAttributes(
		attribute.String("session.target", s.cfg.Target),
	))
	defer span.End()

	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	s.cycleID++
	id := s.cycleID
	reqs := make([]netprobe.Request, 0, s.horizon)
	for d := 1; d <= s.horizon; d++ {
		s.table.ensure(d).markSent()
		reqs = append(reqs, netprobe.Request{
			Target:   s.address,
			Port:     s.cfg.Port,
			Distance: d,
			Timeout:  s.cfg.Timeout,
		})
	}
	s.mu.Unlock()
	span.SetAttributes(attribute.Int("session.cycle.distances", len(reqs)))

	var wg sync.WaitGroup
	errc := make(chan error, len(reqs))
	for _, req := range reqs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := s.prober.Probe(ctx, req)
			if err != nil {
				if !errors.Is(err, context.Canceled) && !netprobe.IsExpectedError(err) {
					errc <- err
				}
				return
			}
			s.record(id, out)
		}()
	}
	wg.Wait()
	close(errc)

	var first error
	failed := 0
	for err := range errc {
		if first == nil {
			first = err
		}
		failed++
	}
	if failed > 0 {
		log.WarnContext(ctx, "Measurement degraded, probes could not be sent",
			"target", s.cfg.Target, "failed", failed, "error", first)
		span.RecordError(first)
		span.SetStatus(codes.Error, "Failed to send probes")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return
	}
	s.cycles++
	if d, ok := s.table.destination(); ok {
		s.horizon = d
		s.table.truncate(d)
	} else if s.horizon < s.cfg.MaxDistance {
		s.horizon++
	}
}

// record applies one probe outcome to the hop table. Outcomes from an
// earlier cycle or from a session that is no longer running are
// dropped so late answers never corrupt current counters.
func (s *Session) record(id uint64, out netprobe.Outcome) {
	s.mu.Lock()
	if s.state != StateRunning || id != s.cycleID {
		s.mu.Unlock()
		return
	}
	address := s.table.record(out)
	resolve := address != "" && s.cfg.ResolveNames
	s.mu.Unlock()

	if resolve {
		go s.resolveName(out.Distance, address)
	}
}

// resolveName looks up the display name for a hop address and attaches
// it to the slot, unless the slot's address changed while the lookup
// was in flight. Failed lookups leave the address as the display name.
func (s *Session) resolveName(distance int, address string) {
	name := s.resolveAddr(address)
	if name == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.table != nil {
		s.table.setName(distance, address, name)
	}
}
