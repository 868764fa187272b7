// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package helper

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestRetry(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		config    RetryConfig
		wantCalls int
		wantErr   bool
	}{
		{
			name:      "Succeeds on first attempt",
			failures:  0,
			config:    RetryConfig{Count: 3, Delay: time.Millisecond},
			wantCalls: 1,
			wantErr:   false,
		},
		{
			name:      "Succeeds after two failures",
			failures:  2,
			config:    RetryConfig{Count: 3, Delay: time.Millisecond},
			wantCalls: 3,
			wantErr:   false,
		},
		{
			name:      "Exhausts retries",
			failures:  5,
			config:    RetryConfig{Count: 2, Delay: time.Millisecond},
			wantCalls: 3,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			effector := func(_ context.Context) error {
				calls++
				if calls <= tt.failures {
					return fmt.Errorf("transient error %d", calls)
				}
				return nil
			}

			err := Retry(effector, tt.config)(t.Context())
			if (err != nil) != tt.wantErr {
				t.Errorf("Retry() error = %v, wantErr %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("Retry() called effector %d times, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestRetry_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	calls := 0
	effector := func(_ context.Context) error {
		calls++
		cancel()
		return fmt.Errorf("always failing")
	}

	err := Retry(effector, RetryConfig{Count: 5, Delay: time.Minute})(ctx)
	if err != context.Canceled {
		t.Errorf("Retry() error = %v, want %v", err, context.Canceled)
	}
	if calls != 1 {
		t.Errorf("Retry() called effector %d times, want 1", calls)
	}
}

func Test_getExpBackoff(t *testing.T) {
	tests := []struct {
		name      string
		delay     time.Duration
		iteration int
		want      time.Duration
	}{
		{"first iteration keeps initial delay", time.Second, 1, time.Second},
		{"zeroth iteration keeps initial delay", time.Second, 0, time.Second},
		{"second iteration doubles", time.Second, 2, 2 * time.Second},
		{"fourth iteration is 8x", 250 * time.Millisecond, 4, 2 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getExpBackoff(tt.delay, tt.iteration); got != tt.want {
				t.Errorf("getExpBackoff(%v, %d) = %v, want %v", tt.delay, tt.iteration, got, tt.want)
			}
		})
	}
}
