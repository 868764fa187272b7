// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/telekom/sandpiper/pkg/session"
)

// metrics defines the metric collectors of the path monitor. Hop-level
// collectors are labelled by target and distance, path-level ones by
// target only.
type metrics struct {
	loss   *prometheus.GaugeVec
	last   *prometheus.GaugeVec
	avg    *prometheus.GaugeVec
	best   *prometheus.GaugeVec
	worst  *prometheus.GaugeVec
	jitter *prometheus.GaugeVec
	grade  *prometheus.GaugeVec
	length *prometheus.GaugeVec
	cycles *prometheus.CounterVec

	mu sync.Mutex
	// seen holds the cycle count at the last record per target, so the
	// counter can be advanced by the delta between polls.
	seen map[string]uint64
	// depth holds the hop count at the last record per target, so
	// series of truncated hops can be dropped.
	depth map[string]int
}

// newMetrics initializes the metric collectors of the path monitor.
func newMetrics() *metrics {
	hopLabels := []string{"target", "distance"}
	return &metrics{
		loss: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sandpiper_path_hop_loss_percent",
				Help: "Percentage of probes to the hop that went unanswered.",
			},
			hopLabels,
		),
		last: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sandpiper_path_hop_rtt_last_seconds",
				Help: "Most recent round trip time of the hop in seconds.",
			},
			hopLabels,
		),
		avg: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sandpiper_path_hop_rtt_avg_seconds",
				Help: "Mean round trip time of the hop in seconds.",
			},
			hopLabels,
		),
		best: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sandpiper_path_hop_rtt_best_seconds",
				Help: "Lowest round trip time of the hop in seconds.",
			},
			hopLabels,
		),
		worst: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sandpiper_path_hop_rtt_worst_seconds",
				Help: "Highest round trip time of the hop in seconds.",
			},
			hopLabels,
		),
		jitter: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sandpiper_path_hop_jitter_seconds",
				Help: "Mean absolute difference between consecutive round trip times in seconds.",
			},
			hopLabels,
		),
		grade: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sandpiper_path_hop_grade_severity",
				Help: "Stability grade of the hop as a severity rank, 0 (excellent) to 3 (poor).",
			},
			hopLabels,
		),
		length: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sandpiper_path_hops",
				Help: "Number of hops currently tracked on the path.",
			},
			[]string{"target"},
		),
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sandpiper_path_cycles_total",
				Help: "Total number of completed measurement cycles.",
			},
			[]string{"target"},
		),
		seen:  make(map[string]uint64),
		depth: make(map[string]int),
	}
}

// GetCollectors returns all metric collectors.
func (m *metrics) GetCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.loss,
		m.last,
		m.avg,
		m.best,
		m.worst,
		m.jitter,
		m.grade,
		m.length,
		m.cycles,
	}
}

// Record sets the metrics of one path snapshot.
func (m *metrics) Record(snap session.Snapshot) {
	target := snap.Target
	for _, hop := range snap.Hops {
		d := strconv.Itoa(hop.Distance)
		m.loss.WithLabelValues(target, d).Set(hop.Stats.Loss)
		m.last.WithLabelValues(target, d).Set(hop.Stats.Last.Seconds())
		m.avg.WithLabelValues(target, d).Set(hop.Stats.Avg.Seconds())
		m.best.WithLabelValues(target, d).Set(hop.Stats.Best.Seconds())
		m.worst.WithLabelValues(target, d).Set(hop.Stats.Worst.Seconds())
		m.jitter.WithLabelValues(target, d).Set(hop.Stats.Jitter.Seconds())
		m.grade.WithLabelValues(target, d).Set(float64(hop.Grade.Severity()))
	}
	m.length.WithLabelValues(target).Set(float64(len(snap.Hops)))

	m.mu.Lock()
	defer m.mu.Unlock()

	if last := m.seen[target]; snap.Cycles >= last {
		m.cycles.WithLabelValues(target).Add(float64(snap.Cycles - last))
	} else {
		// The session was reset; the count starts over.
		m.cycles.WithLabelValues(target).Add(float64(snap.Cycles))
	}
	m.seen[target] = snap.Cycles

	if prev := m.depth[target]; prev > len(snap.Hops) {
		for d := len(snap.Hops) + 1; d <= prev; d++ {
			m.forgetHop(target, strconv.Itoa(d))
		}
	}
	m.depth[target] = len(snap.Hops)
}

// Remove removes the metrics of one target.
func (m *metrics) Remove(target string) error {
	m.mu.Lock()
	_, known := m.seen[target]
	delete(m.seen, target)
	delete(m.depth, target)
	m.mu.Unlock()

	byTarget := prometheus.Labels{"target": target}
	m.loss.DeletePartialMatch(byTarget)
	m.last.DeletePartialMatch(byTarget)
	m.avg.DeletePartialMatch(byTarget)
	m.best.DeletePartialMatch(byTarget)
	m.worst.DeletePartialMatch(byTarget)
	m.jitter.DeletePartialMatch(byTarget)
	m.grade.DeletePartialMatch(byTarget)
	m.length.DeleteLabelValues(target)
	m.cycles.DeleteLabelValues(target)

	if !known {
		return ErrMetricNotFound{Target: target}
	}
	return nil
}

func (m *metrics) forgetHop(target, distance string) {
	m.loss.DeleteLabelValues(target, distance)
	m.last.DeleteLabelValues(target, distance)
	m.avg.DeleteLabelValues(target, distance)
	m.best.DeleteLabelValues(target, distance)
	m.worst.DeleteLabelValues(target, distance)
	m.jitter.DeleteLabelValues(target, distance)
	m.grade.DeleteLabelValues(target, distance)
}
