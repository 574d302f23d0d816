package qnetd

import (
	"sync/atomic"
)

// RingID identifies a specific membership view (spec GLOSSARY: "Ring").
// It is monotonically non-decreasing the way serf's LamportClock keeps its
// logical clock: each cluster remembers the highest ring id any of its
// sessions has announced, so a late or reordered NODE_LIST for a stale ring
// never overrides a newer one.
type RingID uint64

// ringClock is a thread-safe high-water mark for ring ids witnessed by a
// cluster. Unlike serf's LamportClock it never needs to "tick" locally —
// the arbiter never originates a ring, it only observes ones announced by
// clients — so it only exposes Witness and Current.
type ringClock struct {
	highest uint64
}

// Current returns the highest ring id witnessed so far.
func (c *ringClock) Current() RingID {
	return RingID(atomic.LoadUint64(&c.highest))
}

// Witness records a ring id observed from a client, advancing the
// high-water mark if it is newer.
func (c *ringClock) Witness(r RingID) {
	for {
		cur := atomic.LoadUint64(&c.highest)
		if uint64(r) <= cur {
			return
		}
		if atomic.CompareAndSwapUint64(&c.highest, cur, uint64(r)) {
			return
		}
	}
}
