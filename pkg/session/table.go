// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"github.com/telekom/sandpiper/internal/netprobe"
)

// slot is the mutable measurement state of one distance. A slot
// represents "whatever currently answers at this distance", not a
// fixed router identity: when the route changes, the address is
// replaced but the accumulated statistics stay.
type slot struct {
	accumulator
	distance      int
	address       string
	name          string
	isDestination bool
}

// identify notes the responder's address. It returns the address when
// it is new for this slot, so the caller can kick off a name lookup,
// and "" when the identity is unchanged.
func (sl *slot) identify(from netprobe.HopAddress) string {
	if from.IsZero() || from.IP == sl.address {
		return ""
	}
	sl.address = from.IP
	sl.name = ""
	return sl.address
}

// export copies the slot into an immutable [Hop] with its statistics
// recomputed and graded.
func (sl *slot) export(th Thresholds) Hop {
	st := sl.stats()
	name := sl.name
	if name == "" {
		name = sl.address
	}
	return Hop{
		Distance:      sl.distance,
		Address:       sl.address,
		Name:          name,
		IsDestination: sl.isDestination,
		Stats:         st,
		Grade:         th.Classify(st),
	}
}

// table tracks the measurement state of every probed distance. Slots
// always form a contiguous run starting at distance 1. The table is
// not safe for concurrent use; the owning session serializes access.
type table struct {
	// target is the resolved destination address. A reply from it
	// marks the answering slot as the destination.
	target string
	slots  []*slot
}

func newTable(target string) *table {
	return &table{target: target}
}

// ensure grows the table up to the given distance and returns its
// slot. Growing never leaves gaps: all slots in between are created
// too.
func (t *table) ensure(distance int) *slot {
	for len(t.slots) < distance {
		t.slots = append(t.slots, &slot{distance: len(t.slots) + 1})
	}
	return t.slots[distance-1]
}

// record applies a probe outcome to the slot at its distance. Answers
// count as received, an unreachable notice contributes the responder's
// identity but still reads as loss, and a timeout only leaves the
// already counted sent probe behind. Outcomes beyond the table, e.g.
// for distances dropped by truncate, are discarded. The return value
// is a newly observed responder address as for [slot.identify].
func (t *table) record(out netprobe.Outcome) string {
	if out.Distance < 1 || out.Distance > len(t.slots) {
		return ""
	}
	sl := t.slots[out.Distance-1]
	switch out.Kind {
	case netprobe.KindReply:
		sl.record(out.RTT)
		if out.From.IP == t.target {
			sl.isDestination = true
		}
	case netprobe.KindTimeExceeded:
		sl.record(out.RTT)
	case netprobe.KindUnreachable:
	default:
		return ""
	}
	return sl.identify(out.From)
}

// setName attaches a resolved display name to the slot at the given
// distance. The name is dropped when the slot is gone or its address
// changed while the lookup was in flight.
func (t *table) setName(distance int, address, name string) {
	if distance < 1 || distance > len(t.slots) {
		return
	}
	if sl := t.slots[distance-1]; sl.address == address {
		sl.name = name
	}
}

// destination returns the shallowest distance confirmed as the
// destination. Checking shallowest first lets a shortened route move
// the destination closer and invalidate everything behind it.
func (t *table) destination() (int, bool) {
	for _, sl := range t.slots {
		if sl.isDestination {
			return sl.distance, true
		}
	}
	return 0, false
}

// truncate drops all slots beyond the given distance, discarding their
// statistics.
func (t *table) truncate(distance int) {
	if distance < len(t.slots) {
		t.slots = t.slots[:distance]
	}
}

// export copies all slots into immutable hops.
func (t *table) export(th Thresholds) []Hop {
	hops := make([]Hop, 0, len(t.slots))
	for _, sl := range t.slots {
		hops = append(hops, sl.export(th))
	}
	return hops
}
