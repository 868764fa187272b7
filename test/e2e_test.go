// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/telekom/sandpiper/internal/netprobe"
	"github.com/telekom/sandpiper/pkg/sandpiper"
	"github.com/telekom/sandpiper/pkg/session"
	"github.com/telekom/sandpiper/test/framework"
)

const (
	startupTimeout  = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

// TestE2E_APISurface boots a sandpiper without any paths and checks its
// HTTP surface.
func TestE2E_APISurface(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e2e := framework.New(t)
	cErr := make(chan error, 1)
	go func() { cErr <- e2e.Run(ctx) }()

	e2e.AwaitStartup(e2e.ApiURL()+"/healthz", startupTimeout)

	e2e.HttpAssertion(e2e.ApiURL() + "/v1/paths").
		WithSchema().
		WithSnapshotList().
		Assert(http.StatusOK)
	e2e.HttpAssertion(e2e.ApiURL() + "/v1/paths/unknown.example.com").
		Assert(http.StatusNotFound)
	e2e.HttpAssertion(e2e.ApiURL() + "/metrics").Assert(http.StatusOK)

	cancel()
	awaitShutdown(t, cErr)
}

// TestE2E_PathLifecycle measures one path and checks the served
// snapshot and report.
func TestE2E_PathLifecycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	target := "198.51.100.7"
	e2e := framework.New(t).WithPaths(pathConfig(target))

	cErr := make(chan error, 1)
	go func() { cErr <- e2e.Run(ctx) }()
	e2e.AwaitAll()

	e2e.HttpAssertion(e2e.ApiURL() + "/v1/paths").
		WithSchema().
		WithSnapshotList(target).
		Assert(http.StatusOK)
	e2e.HttpAssertion(e2e.ApiURL() + "/v1/paths/" + target).
		WithSchema().
		WithSnapshot(target).
		Assert(http.StatusOK)
	e2e.HttpAssertion(e2e.ApiURL() + "/v1/paths/" + target + "/report").
		Assert(http.StatusOK)

	cancel()
	awaitShutdown(t, cErr)
}

// TestE2E_RemoteConfig serves the runtime configuration over HTTP and
// changes it while sandpiper is running.
func TestE2E_RemoteConfig(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := pathConfig("198.51.100.23")
	second := pathConfig("198.51.100.42")

	e2e := framework.New(t).WithRemote().WithPaths(first)

	cErr := make(chan error, 1)
	go func() { cErr <- e2e.Run(ctx) }()

	e2e.AwaitStartup(e2e.ApiURL()+"/healthz", startupTimeout).AwaitLoader()
	e2e.HttpAssertion(e2e.ApiURL() + "/v1/paths").
		WithSchema().
		WithSnapshotList(first.Target).
		Assert(http.StatusOK)

	e2e.UpdatePaths(first, second).AwaitLoader()
	e2e.HttpAssertion(e2e.ApiURL() + "/v1/paths").
		WithSchema().
		WithSnapshotList(first.Target, second.Target).
		Assert(http.StatusOK)

	cancel()
	awaitShutdown(t, cErr)
}

// pathConfig builds a quick probing configuration. The targets live in
// the TEST-NET-2 documentation range, so probes need no DNS and go
// unanswered; the measured path reports loss instead of replies.
func pathConfig(target string) session.Config {
	return session.Config{
		Target:      target,
		Mode:        netprobe.ModeTCP,
		Port:        443,
		Interval:    500 * time.Millisecond,
		Timeout:     500 * time.Millisecond,
		MaxDistance: 4,
	}
}

// awaitShutdown expects sandpiper to finish its shutdown sequence after
// the test canceled its context.
func awaitShutdown(t *testing.T, cErr <-chan error) {
	t.Helper()
	select {
	case err := <-cErr:
		require.ErrorIs(t, err, sandpiper.ErrFinalShutdown)
	case <-time.After(shutdownTimeout):
		t.Fatal("Sandpiper did not shut down in time")
	}
}
