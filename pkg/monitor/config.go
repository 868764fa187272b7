// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"errors"

	"github.com/telekom/sandpiper/pkg/session"
)

// Config holds the runtime configuration: one session config per
// monitored path. It is what the config loader delivers and what the
// controller reconciles against.
type Config struct {
	Paths []session.Config `json:"paths" yaml:"paths"`
}

// Empty returns true if no paths are configured.
func (c Config) Empty() bool {
	return len(c.Paths) == 0
}

// Validate validates every path config and rejects duplicate targets,
// since the target is the identity a session is reconciled by.
func (c Config) Validate() (err error) {
	seen := make(map[string]bool, len(c.Paths))
	for _, p := range c.Paths {
		if vErr := p.WithDefaults().Validate(); vErr != nil {
			err = errors.Join(err, vErr)
			continue
		}
		if seen[p.Target] {
			err = errors.Join(err, ErrDuplicateTarget{Target: p.Target})
			continue
		}
		seen[p.Target] = true
	}

	return err
}

// For returns the config for the given target.
func (c Config) For(target string) (session.Config, bool) {
	for _, p := range c.Paths {
		if p.Target == target {
			return p, true
		}
	}
	return session.Config{}, false
}
