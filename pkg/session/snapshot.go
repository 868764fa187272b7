// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package session

import "time"

// Hop is one network element on the measured path, as seen in a
// snapshot.
type Hop struct {
	// Distance is the hop's position on the path, starting at 1.
	Distance int `json:"distance" yaml:"distance"`
	// Address is the responding address at this distance, empty while
	// nothing ever answered here.
	Address string `json:"address,omitempty" yaml:"address,omitempty"`
	// Name is the display name: the reverse-resolved hostname when
	// available, the address otherwise.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// IsDestination marks the hop that answered with the target's own
	// address.
	IsDestination bool `json:"isDestination,omitempty" yaml:"isDestination,omitempty"`
	// Stats are the hop's measurements at snapshot time.
	Stats Stats `json:"stats" yaml:"stats"`
	// Grade is the stability rating derived from Stats.
	Grade Grade `json:"grade" yaml:"grade"`
}

// Snapshot is a point-in-time copy of a session. It is fully detached
// from the live session and safe to hold, marshal or hand to other
// goroutines.
type Snapshot struct {
	// Target is the session's configured target.
	Target string `json:"target" yaml:"target"`
	// Address is the resolved target address, empty while Idle.
	Address string `json:"address,omitempty" yaml:"address,omitempty"`
	// State is the session state at snapshot time.
	State State `json:"state" yaml:"state"`
	// Cycles counts the completed measurement cycles.
	Cycles uint64 `json:"cycles" yaml:"cycles"`
	// Timestamp is the UTC time the snapshot was taken.
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	// Hops is the measured path ordered by distance.
	Hops []Hop `json:"hops" yaml:"hops"`
}
