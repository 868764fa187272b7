// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package netprobe

import (
	"context"
	"errors"
)

// ErrRawNotAvailable is returned when probing needs a raw socket but the
// process lacks NET_RAW capabilities. This typically occurs when running
// unprivileged in an environment where the datagram ping socket fallback
// is also restricted (e.g. net.ipv4.ping_group_range does not cover us).
var ErrRawNotAvailable = errors.New("no NET_RAW capabilities, raw socket not available")

// ErrProberClosed is returned when probing through a [Prober] that has
// already been shut down.
var ErrProberClosed = errors.New("prober is closed")

// IsExpectedError checks if the error is one of the common and expected
// probing errors that callers handle as part of normal operation rather
// than failure.
func IsExpectedError(err error) bool {
	return errors.Is(err, ErrRawNotAvailable) ||
		errors.Is(err, context.DeadlineExceeded)
}
