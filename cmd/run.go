// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/telekom/sandpiper/internal/logger"
	"github.com/telekom/sandpiper/pkg/config"
	"github.com/telekom/sandpiper/pkg/sandpiper"
)

// NewCmdRun creates a new run command
func NewCmdRun() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run sandpiper",
		Long:  `Sandpiper will be started with the provided configuration`,
		RunE:  run,
	}
}

// run is the entry point to start the sandpiper
func run(cmd *cobra.Command, _ []string) error {
	cfg := &config.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	ctx, cancel := logger.NewContextWithLogger(cmd.Context())
	defer cancel()
	log := logger.FromContext(ctx)

	if err := cfg.Validate(ctx); err != nil {
		return err
	}

	s := sandpiper.New(cfg)
	cErr := make(chan error, 1)
	log.InfoContext(ctx, "Running sandpiper")
	go func() {
		cErr <- s.Run(ctx)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case <-sig:
		log.InfoContext(ctx, "Signal received, shutting down")
		cancel()
		// Wait for the graceful shutdown to finish.
		<-cErr
		return nil
	case err := <-cErr:
		return err
	}
}
