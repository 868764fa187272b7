// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"time"

	"github.com/telekom/sandpiper/internal/netprobe"
)

const (
	// DefaultInterval is the pause between two measurement cycles.
	DefaultInterval = time.Second
	// DefaultTimeout is how long a single probe waits for an answer.
	DefaultTimeout = 2 * time.Second
	// DefaultMaxDistance caps route discovery when the destination
	// never answers.
	DefaultMaxDistance = 30
)

// Config are the settings of a single measurement session.
type Config struct {
	// Target is the hostname or IPv4 address to measure the path to.
	// It is resolved once when the session starts.
	Target string `json:"target" yaml:"target" mapstructure:"target"`
	// Mode selects the probe protocol. Defaults to ICMP.
	Mode netprobe.Mode `json:"mode,omitempty" yaml:"mode,omitempty" mapstructure:"mode"`
	// Port is the destination port for TCP mode. Ignored for ICMP.
	Port int `json:"port,omitempty" yaml:"port,omitempty" mapstructure:"port"`
	// Interval is the pause between two measurement cycles.
	Interval time.Duration `json:"interval,omitempty" yaml:"interval,omitempty" mapstructure:"interval"`
	// Timeout is how long a single probe waits for an answer. It also
	// bounds how long a cycle can take.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" mapstructure:"timeout"`
	// MaxDistance is the deepest distance probed when the destination
	// does not answer.
	MaxDistance int `json:"maxDistance,omitempty" yaml:"maxDistance,omitempty" mapstructure:"maxDistance"`
	// ResolveNames enables best-effort reverse DNS lookups for hop
	// addresses. Lookups run asynchronously and never delay probing.
	ResolveNames bool `json:"resolveNames,omitempty" yaml:"resolveNames,omitempty" mapstructure:"resolveNames"`
	// Thresholds tune the stability classifier. Zero means
	// [DefaultThresholds].
	Thresholds Thresholds `json:"thresholds,omitempty" yaml:"thresholds,omitempty" mapstructure:"thresholds"`
}

// WithDefaults returns a copy of the configuration with every unset
// field filled in. Explicitly set but invalid values are left alone
// for Validate to reject.
func (c Config) WithDefaults() Config {
	if c.Mode == "" {
		c.Mode = netprobe.ModeICMP
	}
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxDistance == 0 {
		c.MaxDistance = DefaultMaxDistance
	}
	if c.Thresholds == (Thresholds{}) {
		c.Thresholds = DefaultThresholds
	}
	return c
}

// Validate checks the configuration for a session.
func (c Config) Validate() error {
	if c.Target == "" {
		return ErrInvalidConfig{Field: "target", Reason: "must not be empty"}
	}
	if !c.Mode.IsValid() {
		return ErrInvalidConfig{Field: "mode", Reason: "must be one of icmp, tcp"}
	}
	if c.Port < 0 || c.Port > 65535 {
		return ErrInvalidConfig{Field: "port", Reason: "must be between 0 and 65535"}
	}
	if c.Interval <= 0 {
		return ErrInvalidConfig{Field: "interval", Reason: "must be greater than 0"}
	}
	if c.Timeout <= 0 {
		return ErrInvalidConfig{Field: "timeout", Reason: "must be greater than 0"}
	}
	if c.MaxDistance < 1 || c.MaxDistance > 255 {
		return ErrInvalidConfig{Field: "maxDistance", Reason: "must be between 1 and 255"}
	}
	return c.Thresholds.Validate()
}

// SameTarget reports whether both configurations probe the same
// destination with the same protocol. Configurations that differ only
// in tunables can be applied to a running session via UpdateConfig.
func (c Config) SameTarget(o Config) bool {
	return c.Target == o.Target && c.Mode == o.Mode && c.Port == o.Port
}
