// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package monitor

import "fmt"

// ErrDuplicateTarget is returned when a runtime configuration lists the
// same target more than once.
type ErrDuplicateTarget struct {
	Target string
}

func (e ErrDuplicateTarget) Error() string {
	return fmt.Sprintf("target %q is configured more than once", e.Target)
}

// ErrMetricNotFound is returned when removing the metrics of an
// unknown target.
type ErrMetricNotFound struct {
	Target string
}

func (e ErrMetricNotFound) Error() string {
	return fmt.Sprintf("metric not found for target %q", e.Target)
}
