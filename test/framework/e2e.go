// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

// Package framework boots a complete sandpiper instance for
// end-to-end tests: a real loader feeds it runtime configuration and
// the assertions run against its HTTP surface.
package framework

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/telekom/sandpiper/pkg/api"
	"github.com/telekom/sandpiper/pkg/config"
	"github.com/telekom/sandpiper/pkg/monitor"
	"github.com/telekom/sandpiper/pkg/sandpiper"
	"github.com/telekom/sandpiper/pkg/session"
)

var _ Runner = (*E2E)(nil)

// Runner runs a test scenario until its context is canceled.
type Runner interface {
	Run(ctx context.Context) error
}

// E2E is an end-to-end test around one sandpiper instance.
type E2E struct {
	t      *testing.T
	config config.Config
	piper  *sandpiper.Sandpiper

	paths []session.Config
	buf   bytes.Buffer

	listener net.Listener
	server   *http.Server

	running int32
}

// New creates an end-to-end test with a default startup configuration:
// a file loader rooted in the test's temp directory and an api server
// on a free loopback port.
func New(t *testing.T) *E2E {
	t.Helper()
	return &E2E{
		t: t,
		config: config.Config{
			Name: "e2e.sandpiper.example.com",
			Api:  api.Config{ListeningAddress: freeAddr(t)},
			Loader: config.LoaderConfig{
				Type:     "file",
				Interval: 500 * time.Millisecond,
				File:     config.FileLoaderConfig{Path: filepath.Join(t.TempDir(), "paths.yaml")},
			},
		},
	}
}

// WithPaths sets the monitored paths of the test.
func (e *E2E) WithPaths(paths ...session.Config) *E2E {
	e.paths = paths
	e.buf.Reset()
	e.buf.Write(marshalPaths(e.t, paths))
	return e
}

// UpdatePaths replaces the monitored paths of the running test.
func (e *E2E) UpdatePaths(paths ...session.Config) *E2E {
	e.paths = paths
	e.buf.Reset()
	e.buf.Write(marshalPaths(e.t, paths))

	// Write the config to file only if no remote server is used.
	if e.server == nil {
		if err := e.writePathConfig(); err != nil {
			e.t.Fatalf("Failed to write path config: %v", err)
		}
	}
	return e
}

// WithRemote serves the runtime configuration over HTTP instead of the
// local file.
func (e *E2E) WithRemote() *E2E {
	e.t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		e.t.Fatalf("Failed to listen for the config server: %v", err)
	}

	e.listener = l
	e.server = &http.Server{
		Handler:           http.HandlerFunc(e.serveConfig),
		ReadHeaderTimeout: 3 * time.Second,
	}
	e.config.Loader.Type = "http"
	e.config.Loader.Http = config.HttpLoaderConfig{Url: fmt.Sprintf("http://%s", l.Addr())}
	return e
}

// Run starts the test. If a remote config server is configured it runs
// in a goroutine. Run must be called once.
func (e *E2E) Run(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&e.running, 0, 1) {
		e.t.Fatal("E2E.Run must be called once")
	}

	if e.server != nil {
		go func() {
			if err := e.server.Serve(e.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				e.t.Errorf("Failed to serve runtime config: %v", err)
			}
		}()
		defer func() {
			if err := e.server.Shutdown(context.Background()); err != nil {
				e.t.Errorf("Failed to shutdown config server: %v", err)
			}
		}()
	} else {
		if err := e.writePathConfig(); err != nil {
			e.t.Fatalf("Failed to write path config: %v", err)
		}
	}

	e.piper = sandpiper.New(&e.config)
	return e.piper.Run(ctx)
}

// ApiURL returns the base url of the api under test.
func (e *E2E) ApiURL() string {
	return fmt.Sprintf("http://%s", e.config.Api.ListeningAddress)
}

// AwaitAll waits for the api to be ready, the loader to deliver the
// runtime configuration, and the first measurement cycles to finish.
//
// Must be called after the test started with [E2E.Run].
func (e *E2E) AwaitAll() *E2E {
	e.t.Helper()
	const failureTimeout = 5 * time.Second
	e.AwaitStartup(e.ApiURL()+"/healthz", failureTimeout).
		AwaitLoader().
		AwaitCycles()
	return e
}

// AwaitStartup waits for the provided URL to be ready.
//
// Must be called after the test started with [E2E.Run].
func (e *E2E) AwaitStartup(u string, failureTimeout time.Duration) *E2E {
	e.t.Helper()
	const backoff = 100 * time.Millisecond

	// Initial delay to allow the server to start.
	<-time.After(backoff)
	if !e.isRunning() {
		e.t.Fatal("E2E.AwaitStartup must be called after E2E.Run")
	}

	deadline := time.Now().Add(failureTimeout)
	for time.Now().Before(deadline) {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, u, http.NoBody)
		if err != nil {
			e.t.Fatalf("Failed to create request: %v", err)
		}

		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return e
			}
		}

		<-time.After(backoff)
	}

	e.t.Fatalf("%s did not become ready within %v", u, failureTimeout)
	return e
}

// AwaitLoader waits for the loader to deliver the runtime configuration.
//
// Must be called after the test started with [E2E.Run].
func (e *E2E) AwaitLoader() *E2E {
	e.t.Helper()
	if !e.isRunning() {
		e.t.Fatal("E2E.AwaitLoader must be called after E2E.Run")
	}

	// Two intervals cover a poll that started just before the
	// configuration changed.
	wait := 2 * e.config.Loader.Interval
	e.t.Logf("Waiting %s for loader to deliver the configuration", wait.String())
	<-time.After(wait)
	return e
}

// AwaitCycles waits for every configured path to finish at least one
// full measurement cycle.
//
// Must be called after the test started with [E2E.Run].
func (e *E2E) AwaitCycles() *E2E {
	e.t.Helper()
	if !e.isRunning() {
		e.t.Fatal("E2E.AwaitCycles must be called after E2E.Run")
	}

	wait := 5 * time.Second
	for _, p := range e.paths {
		p = p.WithDefaults()
		wait = max(wait, 2*p.Interval+2*p.Timeout)
	}
	e.t.Logf("Waiting %s for measurement cycles to finish", wait.String())
	<-time.After(wait)
	return e
}

// writePathConfig writes the runtime configuration to the file the
// loader watches.
func (e *E2E) writePathConfig() error {
	const fileMode = 0o644
	path := e.config.Loader.File.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %q: %w", filepath.Dir(path), err)
	}

	if err := os.WriteFile(path, e.buf.Bytes(), fileMode); err != nil {
		return fmt.Errorf("failed to write %q: %w", path, err)
	}
	return nil
}

// isRunning returns true if the test is running.
func (e *E2E) isRunning() bool {
	return atomic.LoadInt32(&e.running) == 1
}

// serveConfig serves the runtime configuration over HTTP as text/yaml.
func (e *E2E) serveConfig(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/yaml")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(e.buf.Bytes()); err != nil {
		e.t.Errorf("Failed to write response: %v", err)
	}
}

// marshalPaths renders the runtime configuration the loaders expect.
func marshalPaths(t *testing.T, paths []session.Config) []byte {
	t.Helper()
	b, err := yaml.Marshal(monitor.Config{Paths: paths})
	if err != nil {
		t.Fatalf("Failed to marshal runtime config: %v", err)
	}
	return b
}

// freeAddr reserves a loopback address for the api server.
func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to allocate a port: %v", err)
	}
	addr := l.Addr().String()
	if err := l.Close(); err != nil {
		t.Fatalf("Failed to release the port: %v", err)
	}
	return addr
}
