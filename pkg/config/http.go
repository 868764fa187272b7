// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/telekom/sandpiper/internal/helper"
	"github.com/telekom/sandpiper/internal/logger"
	"github.com/telekom/sandpiper/pkg/monitor"
)

var _ Loader = (*HttpLoader)(nil)

type HttpLoader struct {
	config   LoaderConfig
	cRuntime chan<- monitor.Config
	done     chan struct{}
	client   *http.Client
}

func NewHttpLoader(cfg *Config, cRuntime chan<- monitor.Config) *HttpLoader {
	return &HttpLoader{
		config:   cfg.Loader,
		cRuntime: cRuntime,
		done:     make(chan struct{}, 1),
		client: &http.Client{
			Timeout: cfg.Loader.Http.Timeout,
		},
	}
}

// Run gets the runtime configuration from the remote endpoint.
// The config will be loaded periodically defined by the loader interval configuration.
// Failed fetches are retried with the configured backoff; a fetch that
// still fails afterwards is skipped, so the last delivered configuration
// stays in effect. If the interval is 0, the configuration is only
// fetched once and the loader is disabled.
func (h *HttpLoader) Run(ctx context.Context) error {
	ctx, cancel := logger.NewContextWithLogger(ctx)
	defer cancel()
	log := logger.FromContext(ctx).With("url", h.config.Http.Url)

	var cfg monitor.Config
	getConfigRetry := helper.Retry(func(ctx context.Context) (err error) {
		cfg, err = h.getRuntimeConfig(ctx)
		return err
	}, h.config.Http.RetryCfg)

	// Get the runtime configuration once on startup
	err := getConfigRetry(ctx)
	if err != nil {
		log.Warn("Could not get remote runtime configuration", "error", err)
		err = fmt.Errorf("could not get remote runtime configuration: %w", err)
	} else {
		h.cRuntime <- cfg
	}

	if h.config.Interval == 0 {
		log.Info("HTTP Loader disabled")
		return err
	}

	tick := time.NewTicker(h.config.Interval)
	defer tick.Stop()

	for {
		select {
		case <-h.done:
			log.Info("HTTP Loader terminated")
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
			if err := getConfigRetry(ctx); err != nil {
				log.Warn("Could not get remote runtime configuration", "error", err)
				tick.Reset(h.config.Interval)
				continue
			}

			log.Info("Successfully got remote runtime configuration")
			h.cRuntime <- cfg
			tick.Reset(h.config.Interval)
		}
	}
}

// getRuntimeConfig gets the remote runtime configuration from the
// configured endpoint, authenticated with the bearer token if one is
// set.
func (h *HttpLoader) getRuntimeConfig(ctx context.Context) (cfg monitor.Config, err error) {
	log := logger.FromContext(ctx).With("url", h.config.Http.Url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.config.Http.Url, http.NoBody)
	if err != nil {
		log.Error("Failed to create http request", "error", err)
		return cfg, fmt.Errorf("failed to create http request: %w", err)
	}
	if h.config.Http.Token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", h.config.Http.Token))
	}

	resp, err := h.client.Do(req) //nolint:bodyclose // Closed in defer below
	if err != nil {
		log.Error("Failed to fetch runtime configuration", "error", err)
		return cfg, fmt.Errorf("failed to fetch runtime configuration: %w", err)
	}
	defer func(body io.ReadCloser) {
		cerr := body.Close()
		if cerr != nil {
			log.Error("Failed to close response body", "error", cerr)
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		log.Error("Fetching runtime configuration was not ok", "status", resp.Status)
		return cfg, fmt.Errorf("request failed, status is %s", resp.Status)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("Failed to read response body", "error", err)
		return cfg, fmt.Errorf("failed to read response body: %w", err)
	}

	if err := yaml.Unmarshal(b, &cfg); err != nil {
		log.Error("Failed to parse runtime configuration", "error", err)
		return cfg, fmt.Errorf("failed to parse runtime configuration: %w", err)
	}

	return cfg, nil
}

func (h *HttpLoader) Shutdown(ctx context.Context) {
	log := logger.FromContext(ctx)
	select {
	case h.done <- struct{}{}:
		log.Debug("Sending signal to shut down http loader")
	default:
	}
}
