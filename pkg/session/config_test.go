// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/telekom/sandpiper/internal/netprobe"
)

func TestConfig_WithDefaults(t *testing.T) {
	got := Config{Target: "example.com"}.WithDefaults()

	assert.Equal(t, netprobe.ModeICMP, got.Mode)
	assert.Equal(t, DefaultInterval, got.Interval)
	assert.Equal(t, DefaultTimeout, got.Timeout)
	assert.Equal(t, DefaultMaxDistance, got.MaxDistance)
	assert.Equal(t, DefaultThresholds, got.Thresholds)
	assert.False(t, got.ResolveNames)
}

func TestConfig_WithDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := Config{
		Target:      "example.com",
		Mode:        netprobe.ModeTCP,
		Port:        443,
		Interval:    5 * time.Second,
		Timeout:     -1,
		MaxDistance: 12,
	}
	got := cfg.WithDefaults()

	assert.Equal(t, netprobe.ModeTCP, got.Mode)
	assert.Equal(t, 5*time.Second, got.Interval)
	assert.Equal(t, time.Duration(-1), got.Timeout, "invalid values are for Validate to reject, not to silently fix")
	assert.Equal(t, 12, got.MaxDistance)
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{Target: "example.com"}.WithDefaults()

	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantField string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:      "empty target",
			mutate:    func(c *Config) { c.Target = "" },
			wantField: "target",
		},
		{
			name:      "unknown mode",
			mutate:    func(c *Config) { c.Mode = "carrier-pigeon" },
			wantField: "mode",
		},
		{
			name:      "port out of range",
			mutate:    func(c *Config) { c.Port = 70000 },
			wantField: "port",
		},
		{
			name:      "negative interval",
			mutate:    func(c *Config) { c.Interval = -time.Second },
			wantField: "interval",
		},
		{
			name:      "negative timeout",
			mutate:    func(c *Config) { c.Timeout = -time.Second },
			wantField: "timeout",
		},
		{
			name:      "distance beyond the ttl range",
			mutate:    func(c *Config) { c.MaxDistance = 300 },
			wantField: "maxDistance",
		},
		{
			name:      "broken thresholds",
			mutate:    func(c *Config) { c.Thresholds.Poor.Loss = 0.5 },
			wantField: "thresholds.poor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var invalid ErrInvalidConfig
			assert.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.wantField, invalid.Field)
		})
	}
}

func TestConfig_SameTarget(t *testing.T) {
	base := Config{Target: "example.com", Mode: netprobe.ModeICMP}.WithDefaults()

	same := base
	same.Interval = time.Minute
	same.Thresholds.Good.Loss = 0.5
	assert.True(t, base.SameTarget(same), "tunables do not change the identity")

	other := base
	other.Target = "other.example.com"
	assert.False(t, base.SameTarget(other))

	tcp := base
	tcp.Mode = netprobe.ModeTCP
	assert.False(t, base.SameTarget(tcp))

	port := base
	port.Port = 8080
	assert.False(t, base.SameTarget(port))
}
