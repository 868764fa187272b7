// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package sandpiper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/telekom/sandpiper/internal/logger"
	"github.com/telekom/sandpiper/pkg/api"
	"github.com/telekom/sandpiper/pkg/config"
	"github.com/telekom/sandpiper/pkg/monitor"
	"github.com/telekom/sandpiper/pkg/sandpiper/metrics"
)

const shutdownTimeout = time.Second * 90

// Sandpiper is the main struct of the sandpiper application
type Sandpiper struct {
	// config is the startup configuration of the sandpiper
	config *config.Config
	// api is the sandpiper's API
	api api.API
	// loader is used to load the runtime configuration
	loader config.Loader
	// metrics is used to collect metrics
	metrics metrics.Provider
	// controller is used to manage the path sessions
	controller *monitor.Controller
	// cRuntime is used to signal that the runtime configuration has changed
	cRuntime chan monitor.Config
	// cErr is used to handle non-recoverable errors of the sandpiper components
	cErr chan error
	// cDone is used to signal that the sandpiper was shut down because of an error
	cDone chan struct{}
	// shutOnce is used to ensure that the shutdown function is only called once
	shutOnce sync.Once
}

// New creates a new sandpiper from a given configfile
func New(cfg *config.Config) *Sandpiper {
	m := metrics.New(cfg.Telemetry)
	controller := monitor.NewController(m.GetRegistry())

	sandpiper := &Sandpiper{
		config:     cfg,
		api:        api.New(cfg.Api, controller, m.GetRegistry()),
		metrics:    m,
		controller: controller,
		cRuntime:   make(chan monitor.Config, 1),
		cErr:       make(chan error, 1),
		cDone:      make(chan struct{}, 1),
		shutOnce:   sync.Once{},
	}

	sandpiper.loader = config.NewLoader(cfg, sandpiper.cRuntime)

	return sandpiper
}

// Run starts the sandpiper
func (s *Sandpiper) Run(ctx context.Context) error {
	ctx, cancel := logger.NewContextWithLogger(ctx)
	log := logger.FromContext(ctx)
	defer cancel()

	err := s.metrics.InitTracing(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	err = metrics.RegisterInstanceInfo(s.metrics.GetRegistry(), s.config.Name, map[string]string{
		"team_name":  s.config.Metadata.Team.Name,
		"team_email": s.config.Metadata.Team.Email,
		"platform":   s.config.Metadata.Platform,
	})
	if err != nil {
		return fmt.Errorf("failed to register instance info: %w", err)
	}

	go func() {
		s.cErr <- s.loader.Run(ctx)
	}()

	go func() {
		s.cErr <- s.api.Run(ctx)
	}()

	go func() {
		s.cErr <- s.controller.Run(ctx)
	}()

	for {
		select {
		case cfg := <-s.cRuntime:
			s.controller.Reconcile(ctx, cfg)
		case <-ctx.Done():
			s.shutdown(ctx)
		case err := <-s.cErr:
			if err != nil {
				log.Error("Non-recoverable error in sandpiper component", "error", err)
				s.shutdown(ctx)
			}
		case <-s.cDone:
			log.InfoContext(ctx, "Sandpiper was shut down")
			return ErrFinalShutdown
		}
	}
}

// shutdown shuts down the sandpiper and all managed components
// gracefully. Shutdown errors are logged, not returned.
func (s *Sandpiper) shutdown(ctx context.Context) {
	errC := ctx.Err()
	log := logger.FromContext(ctx)
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.shutOnce.Do(func() {
		log.InfoContext(ctx, "Shutting down sandpiper")
		var sErrs ErrShutdown
		sErrs.errAPI = s.api.Shutdown(ctx)
		sErrs.errMetrics = s.metrics.Shutdown(ctx)
		s.loader.Shutdown(ctx)
		s.controller.Shutdown(ctx)

		if sErrs.HasError() {
			log.ErrorContext(ctx, "Failed to shutdown gracefully", "contextError", errC, "errors", sErrs)
		}

		// Signal that shutdown is complete
		s.cDone <- struct{}{}
	})
}
