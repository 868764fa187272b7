// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

// Package monitor owns the set of running path sessions. It reconciles
// them against runtime configuration updates and feeds their snapshots
// to the metric collectors and the live stream hub.
package monitor

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/telekom/sandpiper/internal/logger"
	"github.com/telekom/sandpiper/internal/netprobe"
	"github.com/telekom/sandpiper/pkg/session"
)

// DefaultPollInterval is the cadence at which session snapshots are
// collected for metrics and live subscribers.
const DefaultPollInterval = time.Second

//go:generate go tool moq -out pathsession_moq.go . PathSession

// PathSession is the per-target measurement engine the controller
// manages. Implemented by session.Session plus the probe engine it
// owns; mocked in tests.
type PathSession interface {
	// Start begins measuring. It fails if the target cannot be
	// resolved or the session is not idle.
	Start(ctx context.Context) error
	// Stop halts measuring and waits for the current cycle to drain.
	Stop()
	// UpdateConfig applies new tunables to the running session.
	UpdateConfig(cfg session.Config) error
	// Snapshot returns the current state of the measured path.
	Snapshot() session.Snapshot
	// Close releases the probe engine's sockets.
	Close() error
}

// Controller manages one session per configured target.
type Controller struct {
	mu       sync.RWMutex
	sessions map[string]PathSession
	metrics  *metrics
	hub      *Hub
	// factory builds the session for one path config; swapped in tests.
	factory  func(ctx context.Context, cfg session.Config) (PathSession, error)
	interval time.Duration
	done     chan struct{}
	shutOnce sync.Once
}

// NewController creates a controller with no sessions and registers
// its metric collectors on the given registry.
func NewController(registry prometheus.Registerer) *Controller {
	m := newMetrics()
	registry.MustRegister(m.GetCollectors()...)

	return &Controller{
		sessions: make(map[string]PathSession),
		metrics:  m,
		hub:      NewHub(),
		factory:  newPathSession,
		interval: DefaultPollInterval,
		done:     make(chan struct{}),
	}
}

// Run polls the running sessions and publishes their snapshots until
// the context is done or the controller is shut down.
func (c *Controller) Run(ctx context.Context) error {
	ctx, cancel := logger.NewContextWithLogger(ctx)
	defer cancel()
	log := logger.FromContext(ctx)
	log.InfoContext(ctx, "Starting monitor controller")

	tick := time.NewTicker(c.interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		case <-tick.C:
			c.observe()
		}
	}
}

func (c *Controller) observe() {
	for _, snap := range c.Snapshots() {
		c.metrics.Record(snap)
		c.hub.Publish(snap)
	}
}

// Reconcile brings the running sessions in line with the given runtime
// configuration. Sessions for new targets are started, sessions for
// dropped targets are stopped and discarded, and tunable changes are
// applied to the survivors. A target whose probe mode or port changed
// gets a fresh session on a fresh probe engine. An invalid
// configuration is rejected as a whole and the current sessions keep
// running.
func (c *Controller) Reconcile(ctx context.Context, cfg Config) {
	log := logger.FromContext(ctx)
	if err := cfg.Validate(); err != nil {
		log.ErrorContext(ctx, "Rejecting invalid runtime configuration", "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for target, sess := range c.sessions {
		if _, ok := cfg.For(target); !ok {
			c.remove(ctx, target, sess)
		}
	}

	for _, want := range cfg.Paths {
		sess, ok := c.sessions[want.Target]
		if !ok {
			c.add(ctx, want)
			continue
		}

		err := sess.UpdateConfig(want)
		if err == nil {
			continue
		}
		var mismatch session.ErrTargetMismatch
		if errors.As(err, &mismatch) {
			// The probe mode or port changed, which needs a new
			// probe engine.
			c.remove(ctx, want.Target, sess)
			c.add(ctx, want)
			continue
		}
		log.ErrorContext(ctx, "Failed to update session configuration", "target", want.Target, "error", err)
	}
}

// add creates and starts the session for one path config. The caller
// must hold the lock. Failures are logged, not returned: the next
// runtime configuration delivery retries.
func (c *Controller) add(ctx context.Context, cfg session.Config) {
	log := logger.FromContext(ctx)

	sess, err := c.factory(ctx, cfg)
	if err != nil {
		log.ErrorContext(ctx, "Failed to create session", "target", cfg.Target, "error", err)
		return
	}
	if err := sess.Start(ctx); err != nil {
		log.ErrorContext(ctx, "Failed to start session", "target", cfg.Target, "error", err)
		if cErr := sess.Close(); cErr != nil {
			log.DebugContext(ctx, "Failed to close probe engine", "target", cfg.Target, "error", cErr)
		}
		return
	}

	c.sessions[cfg.Target] = sess
	log.InfoContext(ctx, "Session started", "target", cfg.Target)
}

// remove stops and discards the session of one target, together with
// its metrics and live stream bookkeeping. The caller must hold the
// lock.
func (c *Controller) remove(ctx context.Context, target string, sess PathSession) {
	log := logger.FromContext(ctx)

	sess.Stop()
	if err := sess.Close(); err != nil {
		log.DebugContext(ctx, "Failed to close probe engine", "target", target, "error", err)
	}
	delete(c.sessions, target)
	c.hub.Forget(target)
	if err := c.metrics.Remove(target); err != nil {
		log.DebugContext(ctx, "No metrics to remove", "target", target, "error", err)
	}
	log.InfoContext(ctx, "Session removed", "target", target)
}

// Shutdown stops all sessions, the live stream and the polling loop.
// It is safe to call more than once.
func (c *Controller) Shutdown(ctx context.Context) {
	c.shutOnce.Do(func() {
		log := logger.FromContext(ctx)
		log.InfoContext(ctx, "Shutting down monitor controller")

		c.mu.Lock()
		defer c.mu.Unlock()
		for target, sess := range c.sessions {
			c.remove(ctx, target, sess)
		}
		c.hub.Close()
		close(c.done)
	})
}

// Snapshots returns the snapshots of all sessions, sorted by target.
func (c *Controller) Snapshots() []session.Snapshot {
	c.mu.RLock()
	sessions := make([]PathSession, 0, len(c.sessions))
	for _, sess := range c.sessions {
		sessions = append(sessions, sess)
	}
	c.mu.RUnlock()

	snaps := make([]session.Snapshot, 0, len(sessions))
	for _, sess := range sessions {
		snaps = append(snaps, sess.Snapshot())
	}
	slices.SortFunc(snaps, func(a, b session.Snapshot) int {
		return strings.Compare(a.Target, b.Target)
	})
	return snaps
}

// Snapshot returns the snapshot of the session measuring the given
// target.
func (c *Controller) Snapshot(target string) (session.Snapshot, bool) {
	c.mu.RLock()
	sess, ok := c.sessions[target]
	c.mu.RUnlock()
	if !ok {
		return session.Snapshot{}, false
	}
	return sess.Snapshot(), true
}

// Subscribe streams live snapshots of one target, or of every target
// when empty, until the returned cancel function is called.
func (c *Controller) Subscribe(target string) (<-chan session.Snapshot, func()) {
	return c.hub.Subscribe(target)
}

// newPathSession builds a production session: a probe engine for the
// configured mode wired to a fresh session that owns it exclusively.
func newPathSession(ctx context.Context, cfg session.Config) (PathSession, error) {
	cfg = cfg.WithDefaults()
	if cfg.Mode == netprobe.ModeTCP && !netprobe.HasRawCapability() {
		logger.FromContext(ctx).WarnContext(ctx, "No NET_RAW capabilities, TCP probes cannot identify intermediate hops",
			"target", cfg.Target, "hint", netprobe.CapabilityHint())
	}
	prober, err := netprobe.New(ctx, cfg.Mode)
	if err != nil {
		return nil, err
	}
	sess, err := session.New(cfg, prober)
	if err != nil {
		return nil, errors.Join(err, prober.Close())
	}
	return &probedSession{Session: sess, prober: prober}, nil
}

// probedSession couples a session with the probe engine it was built
// on, so discarding the session also releases the engine's sockets.
type probedSession struct {
	*session.Session
	prober netprobe.Prober
}

func (p *probedSession) Close() error {
	return p.prober.Close()
}
