package qnetd

import (
	"errors"
)

// Tick is the heap's unit of time. The heap never reasons about wall-clock
// time directly; callers supply the current tick via TimerHeap.Advance.
type Tick uint32

// MaxInterval bounds how far into the future a timer may be scheduled. It is
// half of the tick space, which is also the threshold timeToExpire uses to
// decide whether an entry has already expired rather than wrapped around
// into the future.
const MaxInterval = Tick(1<<31) - 1

// ErrBadInterval is returned by Add and SetInterval when interval is outside
// [1, MaxInterval].
var ErrBadInterval = errors.New("qnetd: timer interval out of range")

// TimerFunc is invoked when a timer entry expires. Returning false causes the
// heap to delete the entry; returning true reschedules it (from the current
// tick, using whatever interval is active after the callback returns, since
// the callback may have called SetInterval on itself).
type TimerFunc func(h *TimerHandle) bool

// TimerHandle is a stable reference to a scheduled timer entry. The zero
// value is not a valid handle.
type TimerHandle struct {
	entry *timerEntry
}

// Valid reports whether the handle still refers to a live entry.
func (h TimerHandle) Valid() bool {
	return h.entry != nil && h.entry.active
}

type timerEntry struct {
	epoch    Tick
	interval Tick
	fn       TimerFunc
	heapPos  int
	active   bool
}

// TimerHeap is a binary min-heap of deadlines ordered by wraparound-safe
// time-to-expire from the heap's own notion of "now". It is not safe for
// concurrent use; the readiness loop (Loop) is its only caller, and it calls
// the heap from a single goroutine.
type TimerHeap struct {
	entries []*timerEntry
	free    []*timerEntry
	now     Tick
}

// NewTimerHeap returns an empty heap with its clock starting at now.
func NewTimerHeap(now Tick) *TimerHeap {
	return &TimerHeap{now: now}
}

// Now returns the heap's current tick.
func (h *TimerHeap) Now() Tick { return h.now }

// Advance moves the heap's clock forward to now. The readiness loop calls
// this twice per iteration with a monotonic tick: before computing the wait
// phase's timeout, and again after the wait phase, right before Expire.
func (h *TimerHeap) Advance(now Tick) { h.now = now }

// timeToExpire computes e.expire - at, treated as unsigned and wraparound
// safe: if the difference exceeds half the tick space the entry is already
// expired, regardless of how far "in the future" the raw subtraction reads.
func timeToExpire(expire, at Tick) Tick {
	diff := expire - at
	if diff > MaxInterval {
		return 0
	}
	return diff
}

func (e *timerEntry) expireAt() Tick { return e.epoch + e.interval }

func (h *TimerHeap) less(i, j int) bool {
	a := timeToExpire(h.entries[i].expireAt(), h.now)
	b := timeToExpire(h.entries[j].expireAt(), h.now)
	return a < b
}

func (h *TimerHeap) set(pos int, e *timerEntry) {
	h.entries[pos] = e
	e.heapPos = pos
}

func (h *TimerHeap) siftUp(pos int) {
	for pos > 0 {
		parent := (pos - 1) / 2
		if !h.less(pos, parent) {
			break
		}
		h.entries[pos], h.entries[parent] = h.entries[parent], h.entries[pos]
		h.entries[pos].heapPos = pos
		h.entries[parent].heapPos = parent
		pos = parent
	}
}

func (h *TimerHeap) siftDown(pos int) {
	n := len(h.entries)
	for {
		left, right := 2*pos+1, 2*pos+2
		smallest := pos
		if left < n && h.less(left, smallest) {
			smallest = left
		}
		if right < n && h.less(right, smallest) {
			smallest = right
		}
		if smallest == pos {
			return
		}
		h.entries[pos], h.entries[smallest] = h.entries[smallest], h.entries[pos]
		h.entries[pos].heapPos = pos
		h.entries[smallest].heapPos = smallest
		pos = smallest
	}
}

// Add schedules fn to fire interval ticks from now and returns a handle used
// to Delete, Reschedule, or SetInterval it later.
func (h *TimerHeap) Add(interval Tick, fn TimerFunc) (TimerHandle, error) {
	if interval < 1 || interval > MaxInterval || fn == nil {
		return TimerHandle{}, ErrBadInterval
	}

	var e *timerEntry
	if n := len(h.free); n > 0 {
		e = h.free[n-1]
		h.free = h.free[:n-1]
	} else {
		e = &timerEntry{}
	}
	e.epoch = h.now
	e.interval = interval
	e.fn = fn
	e.active = true

	h.entries = append(h.entries, nil)
	h.set(len(h.entries)-1, e)
	h.siftUp(len(h.entries) - 1)

	return TimerHandle{entry: e}, nil
}

// Delete removes the entry referenced by handle. A handle for an inactive or
// already-deleted entry is a no-op, matching the C original's idempotence.
func (h *TimerHeap) Delete(handle TimerHandle) {
	e := handle.entry
	if e == nil || !e.active {
		return
	}
	h.deleteEntry(e)
}

func (h *TimerHeap) deleteEntry(e *timerEntry) {
	last := len(h.entries) - 1
	pos := e.heapPos

	if pos != last {
		h.set(pos, h.entries[last])
		h.entries = h.entries[:last]
		h.siftUp(pos)
		h.siftDown(pos)
	} else {
		h.entries = h.entries[:last]
	}

	e.active = false
	e.heapPos = -1
	e.fn = nil
	h.free = append(h.free, e)
}

// Reschedule re-inserts handle's entry with a fresh epoch at the current
// tick, preserving its interval and callback.
func (h *TimerHeap) Reschedule(handle TimerHandle) {
	e := handle.entry
	if e == nil || !e.active {
		return
	}
	interval, fn := e.interval, e.fn
	h.deleteEntry(e)
	e.epoch = h.now
	e.interval = interval
	e.fn = fn
	e.active = true
	h.entries = append(h.entries, nil)
	h.set(len(h.entries)-1, e)
	h.siftUp(len(h.entries) - 1)
}

// SetInterval changes handle's interval and reschedules it from the current
// tick. It is a no-op on an inactive handle.
func (h *TimerHeap) SetInterval(handle TimerHandle, interval Tick) error {
	if interval < 1 || interval > MaxInterval {
		return ErrBadInterval
	}
	e := handle.entry
	if e == nil || !e.active {
		return nil
	}
	fn := e.fn
	h.deleteEntry(e)
	e.epoch = h.now
	e.interval = interval
	e.fn = fn
	e.active = true
	h.entries = append(h.entries, nil)
	h.set(len(h.entries)-1, e)
	h.siftUp(len(h.entries) - 1)
	return nil
}

// TimeToExpireResult distinguishes an empty heap from a heap whose next
// deadline has already elapsed.
type TimeToExpireResult struct {
	Empty bool
	Ticks Tick
}

// TimeToExpire reports how many ticks remain before the earliest entry
// fires, or Empty=true if the heap holds nothing.
func (h *TimerHeap) TimeToExpire() TimeToExpireResult {
	if len(h.entries) == 0 {
		return TimeToExpireResult{Empty: true}
	}
	return TimeToExpireResult{Ticks: timeToExpire(h.entries[0].expireAt(), h.now)}
}

// Expire fires every entry at the top of the heap whose time-to-expire is
// zero. A callback returning false deletes its entry; returning true
// reschedules it from the (possibly changed, if the callback called
// SetInterval on its own handle) current state.
func (h *TimerHeap) Expire() {
	for len(h.entries) > 0 {
		top := h.entries[0]
		if timeToExpire(top.expireAt(), h.now) != 0 {
			return
		}

		handle := TimerHandle{entry: top}
		fn := top.fn
		keep := fn(&handle)
		if !keep {
			h.Delete(handle)
			continue
		}
		if top.active {
			h.Reschedule(handle)
		}
	}
}

// Len reports the number of live entries; used by tests and status reporting.
func (h *TimerHeap) Len() int { return len(h.entries) }

// debugIsValidHeap is the min-heap invariant checker used only by tests.
func (h *TimerHeap) debugIsValidHeap() bool {
	for i := range h.entries {
		left, right := 2*i+1, 2*i+2
		if left < len(h.entries) && h.less(left, i) {
			return false
		}
		if right < len(h.entries) && h.less(right, i) {
			return false
		}
		if h.entries[i].heapPos != i {
			return false
		}
	}
	return true
}
