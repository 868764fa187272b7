// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/rodaine/table"
	"github.com/spf13/cobra"

	"github.com/telekom/sandpiper/internal/logger"
	"github.com/telekom/sandpiper/internal/netprobe"
	"github.com/telekom/sandpiper/pkg/hosts"
	"github.com/telekom/sandpiper/pkg/report"
	"github.com/telekom/sandpiper/pkg/session"
)

// pollInterval is how often diagnose checks for completed cycles.
const pollInterval = 100 * time.Millisecond

type diagnoseOptions struct {
	cycles       int
	interval     time.Duration
	timeout      time.Duration
	mode         string
	port         int
	maxDistance  int
	resolveNames bool
	reportFile   string
	remember     bool
}

// NewCmdDiagnose creates a new diagnose command
func NewCmdDiagnose() *cobra.Command {
	opts := diagnoseOptions{}

	cmd := &cobra.Command{
		Use:   "diagnose <target>",
		Short: "Measure the path to a single target once",
		Long: "Diagnose runs a fixed number of measurement cycles against a single target and\n" +
			"prints the per-hop result table. Interrupting the run prints what was measured so far.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return diagnose(cmd, args[0], opts)
		},
	}

	cmd.Flags().IntVarP(&opts.cycles, "cycles", "n", 10, "number of measurement cycles")
	cmd.Flags().DurationVarP(&opts.interval, "interval", "i", session.DefaultInterval, "pause between two cycles")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", session.DefaultTimeout, "probe timeout")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", string(netprobe.ModeICMP), "probe protocol (icmp or tcp)")
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "destination port for tcp mode")
	cmd.Flags().IntVar(&opts.maxDistance, "max-distance", session.DefaultMaxDistance, "deepest hop probed when the destination does not answer")
	cmd.Flags().BoolVar(&opts.resolveNames, "resolve-names", true, "reverse resolve hop addresses")
	cmd.Flags().StringVar(&opts.reportFile, "report", "", "write an HTML report to this file")
	cmd.Flags().BoolVar(&opts.remember, "remember", false, "record the target in the host history")

	return cmd
}

// diagnose measures the path to the target for the configured number of
// cycles and prints the result.
func diagnose(cmd *cobra.Command, target string, opts diagnoseOptions) error {
	if opts.cycles < 1 {
		return fmt.Errorf("cycles must be at least 1, got %d", opts.cycles)
	}

	ctx, cancel := logger.NewContextWithLogger(cmd.Context())
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	log := logger.FromContext(ctx)

	cfg := session.Config{
		Target:       target,
		Mode:         netprobe.Mode(opts.mode),
		Port:         opts.port,
		Interval:     opts.interval,
		Timeout:      opts.timeout,
		MaxDistance:  opts.maxDistance,
		ResolveNames: opts.resolveNames,
	}.WithDefaults()

	if cfg.Mode == netprobe.ModeTCP && !netprobe.HasRawCapability() {
		log.WarnContext(ctx, "No NET_RAW capabilities, TCP probes cannot identify intermediate hops",
			"hint", netprobe.CapabilityHint())
	}

	prober, err := netprobe.New(ctx, cfg.Mode)
	if err != nil {
		return fmt.Errorf("failed to set up the probe engine: %w", err)
	}
	defer func() {
		if cErr := prober.Close(); cErr != nil {
			log.DebugContext(ctx, "Failed to close probe engine", "error", cErr)
		}
	}()

	sess, err := session.New(cfg, prober)
	if err != nil {
		return err
	}
	if err = sess.Start(ctx); err != nil {
		return fmt.Errorf("failed to start measuring: %w", err)
	}

	waitForCycles(ctx, sess, uint64(opts.cycles))
	sess.Stop()

	snap := sess.Snapshot()
	renderTable(cmd.OutOrStdout(), snap)

	if opts.reportFile != "" {
		if err = writeReport(opts.reportFile, snap); err != nil {
			return err
		}
		log.InfoContext(ctx, "Report written", "file", opts.reportFile)
	}
	if opts.remember {
		if err = rememberTarget(target); err != nil {
			return err
		}
	}
	return nil
}

// waitForCycles blocks until the session has completed the wanted
// number of cycles or the context is done.
func waitForCycles(ctx context.Context, sess *session.Session, want uint64) {
	tick := time.NewTicker(pollInterval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if sess.Snapshot().Cycles >= want {
				return
			}
		}
	}
}

// renderTable prints the per-hop result table for one snapshot.
func renderTable(w io.Writer, snap session.Snapshot) {
	address := snap.Address
	if address == "" {
		address = "unresolved"
	}
	fmt.Fprintf(w, "Path to %s (%s), %d cycles:\n", snap.Target, address, snap.Cycles)

	headerFmt := color.New(color.FgGreen, color.Underline).SprintfFunc()
	columnFmt := color.New(color.FgYellow).SprintfFunc()

	tbl := table.New("Hop", "Loss%", "Snt", "Last", "Avg", "Best", "Wrst", "Jitter", "Grade", "Host")
	tbl.WithWriter(w).WithHeaderFormatter(headerFmt).WithFirstColumnFormatter(columnFmt)

	for _, hop := range snap.Hops {
		tbl.AddRow(
			hop.Distance,
			formatLoss(hop.Stats.Loss),
			hop.Stats.Sent,
			formatMs(hop.Stats.Last),
			formatMs(hop.Stats.Avg),
			formatMs(hop.Stats.Best),
			formatMs(hop.Stats.Worst),
			formatMs(hop.Stats.Jitter),
			formatGrade(hop.Grade),
			formatHost(hop),
		)
	}
	tbl.Print()
}

func formatLoss(pct float64) string {
	return fmt.Sprintf("%.1f%%", pct)
}

func formatMs(d time.Duration) string {
	return fmt.Sprintf("%.2f", float64(d)/float64(time.Millisecond))
}

var gradeColors = map[session.Grade]*color.Color{
	session.GradeExcellent: color.New(color.FgGreen),
	session.GradeGood:      color.New(color.FgGreen),
	session.GradeFair:      color.New(color.FgYellow),
	session.GradePoor:      color.New(color.FgRed),
}

func formatGrade(g session.Grade) string {
	if c, ok := gradeColors[g]; ok {
		return c.Sprint(string(g))
	}
	return string(g)
}

func formatHost(hop session.Hop) string {
	if hop.Name != "" {
		return hop.Name
	}
	if hop.Address != "" {
		return hop.Address
	}
	return "???"
}

// writeReport writes the HTML export of the snapshot to the given file.
func writeReport(path string, snap session.Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if err = report.Render(f, snap); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to render report: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("failed to close report file: %w", err)
	}
	return nil
}

// rememberTarget records the target in the host history.
func rememberTarget(target string) error {
	path, err := hosts.DefaultPath()
	if err != nil {
		return err
	}
	store := hosts.New(path)
	if err = store.Load(); err != nil {
		return err
	}
	store.Add(target)
	return store.Save()
}
