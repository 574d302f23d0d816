package qnetd

import (
	"time"

	"golang.org/x/sys/unix"
)

// EventMask is a bitmask subset of {READ, WRITE, PRI}, mirroring poll(2)'s
// POLLIN/POLLOUT/POLLPRI (spec §4.2).
type EventMask uint32

const (
	EventRead EventMask = 1 << iota
	EventWrite
	EventPri
)

func (m EventMask) toPollEvents() int16 {
	var e int16
	if m&EventRead != 0 {
		e |= unix.POLLIN
	}
	if m&EventWrite != 0 {
		e |= unix.POLLOUT
	}
	if m&EventPri != 0 {
		e |= unix.POLLPRI
	}
	return e
}

// CallbackResult is returned by an fd entry's read/write/error callback.
type CallbackResult int

const (
	CBOk CallbackResult = iota
	CBErr
)

// SetEventsResult is returned by an fd entry's SetEvents hook during the
// build phase (spec §4.2 step 2).
type SetEventsResult int

const (
	SetEventsAccept SetEventsResult = iota
	SetEventsSkip
	SetEventsAbort
	SetEventsInternalErr
)

// PrePollResult is returned by a pre-poll hook (spec §4.2 step 1).
type PrePollResult int

const (
	PrePollContinue PrePollResult = iota
	PrePollStop
)

// FdEntry is one descriptor the loop multiplexes: a plain socket, a TLS
// socket, or any other fd, unified behind one callback signature per spec
// §9's "polymorphic over {plain, TLS, pipe} I/O" design note. TLS-specific
// I/O primitives (handshake, record framing) are an external collaborator;
// FdEntry only needs the raw fd to poll on and callbacks that already know
// how to drive whatever sits behind it.
type FdEntry struct {
	Fd       int
	Interest EventMask

	// SetEvents may mutate the final event mask for this iteration and
	// decide whether this entry participates at all. A nil SetEvents
	// always returns SetEventsAccept with Interest unchanged.
	SetEvents func(e *FdEntry) (EventMask, SetEventsResult)

	OnRead  func(e *FdEntry) CallbackResult
	OnWrite func(e *FdEntry) CallbackResult
	OnError func(e *FdEntry) CallbackResult

	User interface{}

	finalEvents EventMask
	participate bool
}

// PrePollHook runs once per iteration before the build phase. Hooks may add
// or remove fd entries and clients; per spec §9's open question, insertions
// made during a hook's own invocation take effect starting with the next
// iteration, not the one currently running.
type PrePollHook func() PrePollResult

// Loop is the single-threaded readiness dispatcher: one poll(2)-style wait
// over all registered descriptors plus the timer heap's next deadline
// (spec §4.2).
type Loop struct {
	fds     []*FdEntry
	hooks   []PrePollHook
	Timer   *TimerHeap
	pollfds []unix.PollFd
}

// NewLoop returns a Loop with an empty fd/hook set and a fresh timer heap.
func NewLoop() *Loop {
	return &Loop{Timer: NewTimerHeap(0)}
}

// AddFd registers a new descriptor. The build phase snapshots entries at
// its start, which is after the pre-poll hooks have run: calling AddFd from
// a pre-poll hook takes effect in the same iteration's build phase, while
// calling it from an fd callback takes effect in the *next* iteration's.
func (l *Loop) AddFd(e *FdEntry) {
	l.fds = append(l.fds, e)
}

// RemoveFd unregisters a descriptor by fd number.
func (l *Loop) RemoveFd(fd int) {
	for i, e := range l.fds {
		if e.Fd == fd {
			l.fds = append(l.fds[:i], l.fds[i+1:]...)
			return
		}
	}
}

// AddPrePollHook appends hook to the pre-poll chain. Hooks run in
// insertion order (spec §4.2 step 1).
func (l *Loop) AddPrePollHook(hook PrePollHook) {
	l.hooks = append(l.hooks, hook)
}

// currentTick derives a monotonic millisecond tick from time.Since(epoch),
// truncated to fit Tick's wraparound space; the timer heap only ever
// compares relative differences so truncation is harmless until an entry
// has been alive for the full tick space, which MaxInterval already bounds.
func (l *Loop) currentTick(epoch time.Time) Tick {
	return Tick(time.Since(epoch).Milliseconds())
}

// Exec runs exactly one iteration: pre-poll, build, wait, dispatch, timer
// (spec §4.2). Return codes match spec §4.2: 0 normal, -1 hook/callback
// asked to stop or errored, -2 invariant violation, -3 poll system error.
func (l *Loop) Exec(epoch time.Time) int {
	for _, hook := range l.hooks {
		switch hook() {
		case PrePollContinue:
		case PrePollStop:
			return -1
		default:
			return -2
		}
	}

	l.pollfds = l.pollfds[:0]
	active := make([]*FdEntry, 0, len(l.fds))
	for _, e := range l.fds {
		events := e.Interest
		result := SetEventsAccept
		if e.SetEvents != nil {
			events, result = e.SetEvents(e)
		}
		switch result {
		case SetEventsAccept:
		case SetEventsSkip:
			e.participate = false
			continue
		case SetEventsAbort:
			return -1
		default:
			return -2
		}
		if events == 0 {
			e.participate = false
			continue
		}
		e.finalEvents = events
		e.participate = true
		l.pollfds = append(l.pollfds, unix.PollFd{Fd: int32(e.Fd), Events: events.toPollEvents()})
		active = append(active, e)
	}

	l.Timer.Advance(l.currentTick(epoch))
	timeout := -1
	if tte := l.Timer.TimeToExpire(); !tte.Empty {
		timeout = int(tte.Ticks)
	}

	n, err := unix.Poll(l.pollfds, timeout)
	if err != nil && err != unix.EINTR {
		return -3
	}

	if n > 0 {
		for i, pfd := range l.pollfds {
			if pfd.Revents == 0 {
				continue
			}
			e := active[i]
			readFired := pfd.Revents&(unix.POLLIN|unix.POLLHUP) != 0
			writeFired := pfd.Revents&unix.POLLOUT != 0
			fired := false

			if readFired && e.OnRead != nil {
				fired = true
				if e.OnRead(e) == CBErr {
					return -1
				}
			}
			if writeFired && e.OnWrite != nil {
				fired = true
				if e.OnWrite(e) == CBErr {
					return -1
				}
			}
			// Error fires only if neither read nor write did (spec §4.2
			// step 4); POLLHUP/POLLERR on a descriptor that also reported
			// POLLIN already surfaces through the read callback above.
			if !fired && e.OnError != nil {
				if e.OnError(e) == CBErr {
					return -1
				}
			}
		}
	}

	l.Timer.Advance(l.currentTick(epoch))
	l.Timer.Expire()

	return 0
}
