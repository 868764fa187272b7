// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccumulator_Zero(t *testing.T) {
	var a accumulator
	got := a.stats()

	assert.Zero(t, got.Sent)
	assert.Zero(t, got.Received)
	assert.Zero(t, got.Loss, "loss must be 0, not NaN, when nothing was sent")
	assert.Zero(t, got.Last)
	assert.Zero(t, got.Avg)
	assert.Zero(t, got.Best)
	assert.Zero(t, got.Worst)
	assert.Zero(t, got.Jitter)
}

func TestAccumulator_Loss(t *testing.T) {
	var a accumulator
	for range 4 {
		a.markSent()
	}
	a.record(10 * time.Millisecond)
	a.record(20 * time.Millisecond)

	got := a.stats()
	assert.EqualValues(t, 4, got.Sent)
	assert.EqualValues(t, 2, got.Received)
	assert.InDelta(t, 50.0, got.Loss, 1e-9)
}

func TestAccumulator_TotalLoss(t *testing.T) {
	var a accumulator
	for range 10 {
		a.markSent()
	}

	got := a.stats()
	assert.InDelta(t, 100.0, got.Loss, 1e-9)
	assert.Zero(t, got.Last, "rtt must stay unset without answers")
	assert.Zero(t, got.Avg)
	assert.Zero(t, got.Best)
	assert.Zero(t, got.Worst)
}

func TestAccumulator_RTT(t *testing.T) {
	var a accumulator
	for _, rtt := range []time.Duration{30 * time.Millisecond, 10 * time.Millisecond, 20 * time.Millisecond} {
		a.markSent()
		a.record(rtt)
	}

	got := a.stats()
	assert.Equal(t, 20*time.Millisecond, got.Last)
	assert.Equal(t, 10*time.Millisecond, got.Best)
	assert.Equal(t, 30*time.Millisecond, got.Worst)
	assert.Equal(t, 20*time.Millisecond, got.Avg)
}

func TestAccumulator_Jitter(t *testing.T) {
	var a accumulator

	a.markSent()
	a.record(10 * time.Millisecond)
	assert.Zero(t, a.stats().Jitter, "jitter needs at least two samples")

	// Consecutive differences are 10ms and 5ms, so the mean is 7.5ms.
	a.markSent()
	a.record(20 * time.Millisecond)
	a.markSent()
	a.record(15 * time.Millisecond)

	assert.Equal(t, 7500*time.Microsecond, a.stats().Jitter)
}

func TestAccumulator_JitterIsDirectionless(t *testing.T) {
	var up, down accumulator
	for _, rtt := range []time.Duration{10 * time.Millisecond, 30 * time.Millisecond} {
		up.markSent()
		up.record(rtt)
	}
	for _, rtt := range []time.Duration{30 * time.Millisecond, 10 * time.Millisecond} {
		down.markSent()
		down.record(rtt)
	}

	assert.Equal(t, up.stats().Jitter, down.stats().Jitter)
	assert.Equal(t, 20*time.Millisecond, up.stats().Jitter)
}

func TestAccumulator_Invariants(t *testing.T) {
	var a accumulator
	for i := range 1000 {
		a.markSent()
		if i%3 != 0 {
			a.record(time.Duration(i%50+1) * time.Millisecond)
		}

		got := a.stats()
		assert.LessOrEqual(t, got.Received, got.Sent)
		assert.GreaterOrEqual(t, got.Loss, 0.0)
		assert.LessOrEqual(t, got.Loss, 100.0)
		if got.Received > 0 {
			assert.LessOrEqual(t, got.Best, got.Worst)
			assert.LessOrEqual(t, got.Best, got.Avg)
			assert.GreaterOrEqual(t, got.Worst, got.Avg)
		}
	}
}
