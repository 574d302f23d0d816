package qnetd

import (
	"io"
	"log"
	"net"
	"os"
	"sync"
	"time"

	metrics "github.com/armon/go-metrics"
	multierror "github.com/hashicorp/go-multierror"
)

// Instance is the top-level orchestrator (spec §3, C10): it owns the
// readiness loop, the listener, the cluster registry, and every connected
// client session, and drives one call to Loop.Exec per iteration from
// Run. It plays the role serf.Serf plays for the agent package, minus any
// gossip: there is no membership protocol here, only the arbiter side of
// one.
type Instance struct {
	Settings Settings
	Clusters *ClusterRegistry
	Loop     *Loop

	listener *Listener
	clients  map[int]*Client // keyed by fd
	// clientOrder is fd insertion order, so shutdown drain and the
	// deferred-disconnect hook tear clients down in the order they
	// connected (spec scenario S6), rather than the map's random order.
	clientOrder []int

	logger *log.Logger

	metricsTimer TimerHandle

	shutdown     bool
	shutdownCh   chan struct{}
	shutdownLock sync.Mutex
}

// NewInstance wires together a fresh, unstarted Instance from s. logOutput
// defaults to os.Stderr, mirroring agent.Create's own default.
func NewInstance(s Settings, logOutput io.Writer) (*Instance, error) {
	if logOutput == nil {
		logOutput = os.Stderr
	}

	sink, err := newMetricsSink(s, s.ListenAddr)
	if err != nil {
		return nil, newError(ErrKindBadArgument, "configure metrics sink", err)
	}
	metrics.NewGlobal(metrics.DefaultConfig("qnetd"), sink)

	inst := &Instance{
		Settings:   s,
		Clusters:   NewClusterRegistry(),
		Loop:       NewLoop(),
		clients:    make(map[int]*Client),
		logger:     log.New(logOutput, "", log.LstdFlags),
		shutdownCh: make(chan struct{}),
	}
	return inst, nil
}

// Start binds the listener, registers it with the readiness loop, and
// installs the deferred-disconnect pre-poll hook. Run must be called
// afterward to actually pump the loop.
func (inst *Instance) Start() error {
	ln, err := NewListener(inst.Settings)
	if err != nil {
		return err
	}
	inst.listener = ln
	inst.logger.Printf("[INFO] qnetd: listening on %s", ln.Addr())

	inst.Loop.AddFd(&FdEntry{
		Fd:       ln.Fd(),
		Interest: EventRead,
		OnRead:   inst.onListenerReadable,
	})

	inst.Loop.AddPrePollHook(inst.drainScheduledDisconnects)

	h, err := inst.Loop.Timer.Add(Tick(metricsInterval.Milliseconds()), inst.onMetricsTimer)
	if err == nil {
		inst.metricsTimer = h
	}

	return nil
}

func (inst *Instance) onMetricsTimer(*TimerHandle) bool {
	inst.reportGauges()
	return true
}

// Run pumps the readiness loop until Shutdown is called or Loop.Exec
// reports a fatal condition, matching agent.eventLoop's own
// select-until-shutdown shape.
func (inst *Instance) Run() error {
	epoch := time.Now()
	for {
		select {
		case <-inst.shutdownCh:
			return nil
		default:
		}

		switch code := inst.Loop.Exec(epoch); code {
		case 0:
		case -1, -2:
			return newError(ErrKindInternalInvariant, "readiness loop aborted", nil)
		case -3:
			return newError(ErrKindIOError, "poll syscall failed", nil)
		}
	}
}

// onListenerReadable accepts one pending connection per readable wakeup
// (poll keeps reporting the listener readable while more are pending),
// closing it at once when MaxClients is reached and otherwise admitting it
// onto the loop in the PREINIT-expecting Accepted state (spec §4.8).
func (inst *Instance) onListenerReadable(e *FdEntry) CallbackResult {
	conn, fd, err := inst.listener.Accept()
	if err != nil {
		inst.logger.Printf("[WARN] qnetd: accept failed: %v", err)
		return CBOk
	}
	if conn == nil {
		return CBOk
	}
	if inst.Settings.MaxClients > 0 && len(inst.clients) >= inst.Settings.MaxClients {
		conn.Close()
		return CBOk
	}
	inst.admit(conn, fd)
	return CBOk
}

func (inst *Instance) admit(conn net.Conn, fd int) {
	c := newClient(inst, conn, fd, peerAddr(conn), inst.Settings.MaxClientReceiveSize)
	inst.clients[fd] = c
	inst.clientOrder = append(inst.clientOrder, fd)

	inst.Loop.AddFd(&FdEntry{
		Fd:       fd,
		Interest: EventRead,
		SetEvents: func(entry *FdEntry) (EventMask, SetEventsResult) {
			mask := EventRead
			if c.wantsWrite() {
				mask |= EventWrite
			}
			return mask, SetEventsAccept
		},
		OnRead:  c.onReadable,
		OnWrite: c.onWritable,
		OnError: c.onErrored,
	})

	inst.logger.Printf("[INFO] qnetd: accepted connection from %s (session %s)", c.Addr, c.CorrelationID)
}

// onReadable performs exactly one non-blocking read attempt via the
// codec, per spec §5's single-threaded, non-blocking I/O model: the fd
// was reported readable for the data already queued by the kernel, not a
// promise that more will follow immediately, so this never loops trying
// to drain further frames in the same wakeup.
func (c *Client) onReadable(e *FdEntry) CallbackResult {
	frame, res := c.codec.Read(c.Conn)
	switch res {
	case ReadPartial:
		return CBOk
	case ReadEOF, ReadIOErr:
		c.requestDisconnect(DisconnectIOError)
		return CBOk
	default:
		c.HandleFrame(frame)
		return CBOk
	}
}

// onWritable performs exactly one non-blocking write attempt, mirroring
// onReadable; a non-empty queue keeps EventWrite interest armed via
// wantsWrite so the next writable wakeup resumes the drain.
func (c *Client) onWritable(e *FdEntry) CallbackResult {
	switch c.sendQ.Flush(c.Conn) {
	case WriteEOF, WriteIOErr:
		c.requestDisconnect(DisconnectIOError)
	}
	return CBOk
}

func (c *Client) onErrored(e *FdEntry) CallbackResult {
	c.requestDisconnect(DisconnectIOError)
	return CBOk
}

// drainScheduledDisconnects is the pre-poll hook that actually tears down
// sessions marked by requestDisconnect during the previous iteration's
// dispatch phase (spec §9: fd/client removal takes effect starting with
// the loop iteration after the one that requested it).
func (inst *Instance) drainScheduledDisconnects() PrePollResult {
	for _, fd := range inst.clientOrder {
		c, ok := inst.clients[fd]
		if !ok || !c.scheduleDisconnect {
			continue
		}
		inst.teardown(fd, c)
	}
	inst.compactClientOrder()
	return PrePollContinue
}

func (inst *Instance) teardown(fd int, c *Client) {
	if c.algorithm != nil {
		c.algorithm.Disconnect(c)
	}
	if c.dpdTimer.Valid() {
		inst.Loop.Timer.Delete(c.dpdTimer)
	}
	if c.algoTimer.Valid() {
		inst.Loop.Timer.Delete(c.algoTimer)
	}
	inst.Clusters.Remove(c)
	inst.Loop.RemoveFd(fd)
	delete(inst.clients, fd)
	_ = c.Conn.Close()
	inst.logger.Printf("[INFO] qnetd: disconnected %s (session %s, %s)", c.Addr, c.CorrelationID, c.disconnectReason)
}

// compactClientOrder drops fds teardown already removed from inst.clients,
// so clientOrder doesn't grow unboundedly across a long-running instance's
// connect/disconnect churn.
func (inst *Instance) compactClientOrder() {
	live := inst.clientOrder[:0]
	for _, fd := range inst.clientOrder {
		if _, ok := inst.clients[fd]; ok {
			live = append(live, fd)
		}
	}
	inst.clientOrder = live
}

// Shutdown disconnects every client and stops the listener, returning the
// listener's close error through a multierror, the same aggregate-then-report
// shape agent.Shutdown uses for its own teardown. Errors from closing client
// connections are discarded by teardown and are not part of the result.
func (inst *Instance) Shutdown() error {
	inst.shutdownLock.Lock()
	defer inst.shutdownLock.Unlock()
	if inst.shutdown {
		return nil
	}

	if inst.metricsTimer.Valid() {
		inst.Loop.Timer.Delete(inst.metricsTimer)
	}

	var result *multierror.Error
	for _, fd := range inst.clientOrder {
		c, ok := inst.clients[fd]
		if !ok {
			continue
		}
		c.requestDisconnect(DisconnectServerDown)
		inst.teardown(fd, c)
	}
	inst.clientOrder = nil
	if inst.listener != nil {
		if err := inst.listener.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	inst.logger.Printf("[INFO] qnetd: shutdown complete")
	inst.shutdown = true
	close(inst.shutdownCh)
	return result.ErrorOrNil()
}

// ShutdownCh returns a channel closed once Shutdown completes.
func (inst *Instance) ShutdownCh() <-chan struct{} {
	return inst.shutdownCh
}

// ClientCount reports the number of currently connected sessions, used by
// the control socket's `status` command.
func (inst *Instance) ClientCount() int { return len(inst.clients) }

// ClientsSnapshot returns a stable-ordered copy of currently connected
// sessions for status reporting.
func (inst *Instance) ClientsSnapshot() []*Client {
	out := make([]*Client, 0, len(inst.clientOrder))
	for _, fd := range inst.clientOrder {
		if c, ok := inst.clients[fd]; ok {
			out = append(out, c)
		}
	}
	return out
}
