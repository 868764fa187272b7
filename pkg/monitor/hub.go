// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"sync"

	"github.com/telekom/sandpiper/pkg/session"
)

// subscriberBuffer is the number of snapshots a subscriber may lag
// behind before frames are dropped for it.
const subscriberBuffer = 8

type subscriber struct {
	ch chan session.Snapshot
	// target filters the stream to one path; empty receives all.
	target string
}

// Hub fans snapshots out to live subscribers. Publishing never blocks:
// a subscriber that does not keep up loses frames, never the publisher.
type Hub struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	latest map[string]uint64
	closed bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs:   make(map[*subscriber]struct{}),
		latest: make(map[string]uint64),
	}
}

// Subscribe registers for snapshots of the given target, or of every
// target when empty. The returned cancel function releases the
// subscription and closes the channel; it must be called exactly once.
// Subscribing to a closed hub yields an already closed channel.
func (h *Hub) Subscribe(target string) (<-chan session.Snapshot, func()) {
	sub := &subscriber{
		ch:     make(chan session.Snapshot, subscriberBuffer),
		target: target,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}
	h.subs[sub] = struct{}{}
	return sub.ch, func() { h.drop(sub) }
}

func (h *Hub) drop(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	close(sub.ch)
}

// Publish fans a snapshot out to the matching subscribers. Snapshots
// whose cycle count has not advanced since the last publish of the
// target are dropped, so pollers can publish unconditionally.
func (h *Hub) Publish(snap session.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	if last, ok := h.latest[snap.Target]; ok && last == snap.Cycles {
		return
	}
	h.latest[snap.Target] = snap.Cycles

	for sub := range h.subs {
		if sub.target != "" && sub.target != snap.Target {
			continue
		}
		select {
		case sub.ch <- snap:
		default:
		}
	}
}

// Forget clears the publish bookkeeping of a removed target.
func (h *Hub) Forget(target string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.latest, target)
}

// Close closes all subscriber channels and drops further publishes.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		close(sub.ch)
	}
	clear(h.subs)
}
