// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package session

import "time"

// Grade is the qualitative stability rating of a hop, derived from its
// loss, average latency and jitter.
type Grade string

const (
	GradeExcellent Grade = "excellent"
	GradeGood      Grade = "good"
	GradeFair      Grade = "fair"
	GradePoor      Grade = "poor"
)

// Severity orders grades from best to worst: 0 for [GradeExcellent] up
// to 3 for [GradePoor]. Useful as a metric value and for alerting on
// "severity >= n".
func (g Grade) Severity() int {
	switch g {
	case GradeExcellent:
		return 0
	case GradeGood:
		return 1
	case GradeFair:
		return 2
	default:
		return 3
	}
}

// Limits is one row of the classifier's threshold table. A hop falls
// into the row's grade as soon as any single statistic reaches its
// limit.
type Limits struct {
	// Loss is the packet loss limit in percent.
	Loss float64 `json:"loss" yaml:"loss" mapstructure:"loss"`
	// AvgRTT is the average round trip time limit.
	AvgRTT time.Duration `json:"avgRtt" yaml:"avgRtt" mapstructure:"avgRtt"`
	// Jitter is the limit on the mean variation between consecutive
	// round trip times.
	Jitter time.Duration `json:"jitter" yaml:"jitter" mapstructure:"jitter"`
}

// reached reports whether any of the hop's statistics is at or above
// the row's limit.
func (l Limits) reached(s Stats) bool {
	return s.Loss >= l.Loss || s.Avg >= l.AvgRTT || s.Jitter >= l.Jitter
}

// atMost reports whether every limit is less than or equal to its
// counterpart in u.
func (l Limits) atMost(u Limits) bool {
	return l.Loss <= u.Loss && l.AvgRTT <= u.AvgRTT && l.Jitter <= u.Jitter
}

// Thresholds is the full grading policy. Rows are checked worst first,
// so a hop that qualifies for several grades always gets the worst one.
type Thresholds struct {
	Poor Limits `json:"poor" yaml:"poor" mapstructure:"poor"`
	Fair Limits `json:"fair" yaml:"fair" mapstructure:"fair"`
	Good Limits `json:"good" yaml:"good" mapstructure:"good"`
}

// DefaultThresholds is the grading policy applied when none is
// configured.
var DefaultThresholds = Thresholds{
	Poor: Limits{Loss: 20, AvgRTT: 200 * time.Millisecond, Jitter: 50 * time.Millisecond},
	Fair: Limits{Loss: 5, AvgRTT: 100 * time.Millisecond, Jitter: 20 * time.Millisecond},
	Good: Limits{Loss: 1, AvgRTT: 50 * time.Millisecond, Jitter: 10 * time.Millisecond},
}

// Classify maps a hop's current statistics onto a [Grade]. It is a
// pure function: identical statistics always yield the identical
// grade. A hop that never got an answer despite probes being sent is
// [GradePoor] no matter how the thresholds are tuned.
func (t Thresholds) Classify(s Stats) Grade {
	if s.Sent > 0 && s.Received == 0 {
		return GradePoor
	}
	switch {
	case t.Poor.reached(s):
		return GradePoor
	case t.Fair.reached(s):
		return GradeFair
	case t.Good.reached(s):
		return GradeGood
	default:
		return GradeExcellent
	}
}

// Validate checks that the policy is usable: all limits positive and
// not decreasing from good to poor, so that every statistics triple
// maps to exactly one grade.
func (t Thresholds) Validate() error {
	if t.Good.Loss <= 0 || t.Good.AvgRTT <= 0 || t.Good.Jitter <= 0 {
		return ErrInvalidConfig{Field: "thresholds.good", Reason: "limits must be positive"}
	}
	if !t.Good.atMost(t.Fair) {
		return ErrInvalidConfig{Field: "thresholds.fair", Reason: "limits must not be below the good limits"}
	}
	if !t.Fair.atMost(t.Poor) {
		return ErrInvalidConfig{Field: "thresholds.poor", Reason: "limits must not be below the fair limits"}
	}
	return nil
}
