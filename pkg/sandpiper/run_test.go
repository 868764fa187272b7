// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package sandpiper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/telekom/sandpiper/pkg/api"
	"github.com/telekom/sandpiper/pkg/config"
)

// TestSandpiper_Run_FullComponentStart tests that the Run method starts the API,
// the loader and the monitor controller, and that canceling the context
// shuts all of them down again.
func TestSandpiper_Run_FullComponentStart(t *testing.T) {
	c := &config.Config{
		Name: "sandpiper.example.com",
		Api:  api.Config{ListeningAddress: ":9090"},
		Loader: config.LoaderConfig{
			Type:     "file",
			File:     config.FileLoaderConfig{Path: "../config/test/data/config.yaml"},
			Interval: time.Second * 1,
		},
	}

	s := New(c)
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	cRun := make(chan error, 1)
	go func() { cRun <- s.Run(ctx) }()

	t.Log("Running sandpiper for 100ms")
	<-time.After(100 * time.Millisecond)

	cancel()
	select {
	case err := <-cRun:
		require.ErrorIs(t, err, ErrFinalShutdown)
	case <-time.After(time.Second * 5):
		t.Fatal("sandpiper did not shut down in time")
	}
}

// TestSandpiper_Run_ContextCancel tests that after a context cancels the Run method
// will return an error and all started components will be shut down.
func TestSandpiper_Run_ContextCancel(t *testing.T) {
	c := &config.Config{
		Name: "sandpiper.example.com",
		Api:  api.Config{ListeningAddress: ":9090"},
		Loader: config.LoaderConfig{
			Type:     "file",
			File:     config.FileLoaderConfig{Path: "../config/test/data/config.yaml"},
			Interval: time.Second * 1,
		},
	}

	s := New(c)
	ctx, cancel := context.WithCancel(t.Context())

	cRun := make(chan error, 1)
	go func() { cRun <- s.Run(ctx) }()

	t.Log("Running sandpiper for 10ms")
	time.Sleep(time.Millisecond * 10)

	t.Log("Canceling context and waiting for shutdown")
	cancel()
	select {
	case err := <-cRun:
		require.Error(t, err)
	case <-time.After(time.Second * 5):
		t.Fatal("sandpiper did not shut down in time")
	}
}
