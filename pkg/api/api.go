// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

// Package api serves the measured path state over HTTP: JSON
// snapshots, HTML reports, a live WebSocket stream, the openapi
// description and the prometheus metrics endpoint.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telekom/sandpiper/internal/logger"
	"github.com/telekom/sandpiper/pkg/session"
)

const (
	// shutdownTimeout bounds the grace period for in-flight requests
	// when the server stops because its context was canceled.
	shutdownTimeout = 20 * time.Second

	readHeaderTimeout = 3 * time.Second
)

// Config is the configuration of the api server.
type Config struct {
	// ListeningAddress is the address the server binds to.
	ListeningAddress string `yaml:"address" mapstructure:"address"`
}

// Validate validates the api configuration.
func (c *Config) Validate() error {
	if c.ListeningAddress == "" {
		return ErrMissingListeningAddress
	}
	return nil
}

// PathReader is the read side of the path monitor, as far as the api
// needs it.
//
//go:generate go tool moq -out pathreader_moq.go . PathReader
type PathReader interface {
	// Snapshots returns a snapshot of every monitored path, ordered by
	// target.
	Snapshots() []session.Snapshot
	// Snapshot returns the snapshot of a single monitored path.
	Snapshot(target string) (session.Snapshot, bool)
	// Subscribe streams future snapshots of the given target, or of
	// every path when target is empty. The cancel function releases the
	// subscription and closes the channel.
	Subscribe(target string) (<-chan session.Snapshot, func())
}

// API is the sandpiper's http api.
type API interface {
	// Run serves the api until the context is canceled or Shutdown is
	// called.
	Run(ctx context.Context) error
	// Shutdown gracefully stops the api server.
	Shutdown(ctx context.Context) error
}

type api struct {
	server   *http.Server
	router   chi.Router
	paths    PathReader
	gatherer prometheus.Gatherer
}

// New creates the api over the given path reader. The gatherer backs
// the /metrics endpoint.
func New(cfg Config, paths PathReader, gatherer prometheus.Gatherer) API {
	r := chi.NewRouter()
	return &api{
		server: &http.Server{
			Addr:              cfg.ListeningAddress,
			Handler:           r,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		router:   r,
		paths:    paths,
		gatherer: gatherer,
	}
}

// Run starts the api server. It blocks until the context is canceled,
// Shutdown is called or the server fails.
func (a *api) Run(ctx context.Context) error {
	ctx, cancel := logger.NewContextWithLogger(ctx)
	defer cancel()
	log := logger.FromContext(ctx)

	a.routes(ctx)

	cErr := make(chan error, 1)
	go func() {
		log.Info("Serving api", "address", a.server.Addr)
		cErr <- a.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		sCtx, sCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer sCancel()
		if err := a.server.Shutdown(sCtx); err != nil {
			return errors.Join(ctx.Err(), err)
		}
		return ctx.Err()
	case err := <-cErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Api server stopped unexpectedly", "error", err)
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	}
}

// Shutdown gracefully stops the api server. The caller owns the
// deadline; hijacked live streams are not waited for.
func (a *api) Shutdown(ctx context.Context) error {
	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down api server: %w", err)
	}
	return nil
}

// routes wires up the router. The context carries the logger that
// every request handler inherits.
func (a *api) routes(ctx context.Context) {
	a.router.Use(logger.Middleware(ctx))

	a.router.Get("/v1/paths", a.handlePaths)
	a.router.Route("/v1/paths/{target}", func(r chi.Router) {
		r.Get("/", a.handlePath)
		r.Get("/report", a.handleReport)
		r.Get("/live", a.handleLive)
	})
	a.router.Get("/openapi.yaml", a.handleOpenAPI)
	a.router.Handle("/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
	a.router.Get("/healthz", a.handleHealthz)
}
