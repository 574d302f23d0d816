package qnetd

import (
	"net"
	"time"

	uuid "github.com/hashicorp/go-uuid"
)

// ClientState is the per-connection protocol state (spec §4.5).
type ClientState int

const (
	StateAccepted ClientState = iota
	StatePreinitReplied
	StateWaitStartTLS
	StateTLSHandshake
	StateWaitInit
	StateInitialised
	StateRunning
	StateTerminal
)

func (s ClientState) String() string {
	names := [...]string{
		"accepted", "preinit_replied", "wait_starttls", "tls_handshake",
		"wait_init", "initialised", "running", "terminal",
	}
	if int(s) < len(names) {
		return names[s]
	}
	return "unknown"
}

// TLSConnState is the per-connection TLS negotiation state (spec §3).
type TLSConnState int

const (
	TLSStateOff TLSConnState = iota
	TLSStateRequested
	TLSStateActive
)

// Client is one connected cluster node's session (spec §3, C5). Both its
// receive-side codec and send-side queue carry partial-I/O cursors across
// loop iterations, since every socket operation is non-blocking (spec §5).
type Client struct {
	Conn net.Conn
	Fd   int
	Addr string

	TLSState TLSConnState
	State    ClientState

	Heartbeat          time.Duration
	PreferredAlgorithm AlgorithmID
	algorithm          Algorithm

	ClusterName string
	NodeID      uint32

	codec *Codec
	sendQ *SendQueue

	LastMembershipRing RingID
	ConfigNodes        []uint32
	MembershipNodes    []uint32
	QuorumNodes        []uint32

	HeuristicsResult HeuristicsResult
	heuristicsByRing map[RingID]HeuristicsResult

	AlgoState interface{}

	dpdTimer  TimerHandle
	algoTimer TimerHandle
	pending   pendingVote

	scheduleDisconnect bool
	disconnectReason   DisconnectReason

	CorrelationID string

	inst *Instance
}

func newClient(inst *Instance, conn net.Conn, fd int, addr string, maxRecv uint32) *Client {
	id, _ := uuid.GenerateUUID()
	return &Client{
		Conn:             conn,
		Fd:               fd,
		Addr:             addr,
		State:            StateAccepted,
		codec:            NewCodec(maxRecv),
		sendQ:            NewSendQueue(inst.Settings.MaxSendQueueFrames, inst.Settings.MaxSendQueueBytes),
		heuristicsByRing: make(map[RingID]HeuristicsResult),
		CorrelationID:    id,
		inst:             inst,
	}
}

// wantsWrite reports whether the fd's poll interest should include WRITE:
// the send queue is non-empty (spec §4.4).
func (c *Client) wantsWrite() bool { return !c.sendQ.Empty() }

func (c *Client) enqueue(t MessageType, payload interface{}) error {
	buf, err := EncodeFrame(t, payload)
	if err != nil {
		return newError(ErrKindInternalInvariant, "encode frame", err)
	}
	if err := c.sendQ.Enqueue(buf); err != nil {
		return newError(ErrKindResourceExhausted, "enqueue frame", err)
	}
	return nil
}

func (c *Client) sendServerError(code ErrorCode, detail string) {
	_ = c.enqueue(MsgServerError, &serverErrorPayload{Code: code, Detail: detail})
}

func (c *Client) requestDisconnect(reason DisconnectReason) {
	c.scheduleDisconnect = true
	c.disconnectReason = reason
}

// resetDPD reschedules the dead-peer-detection timer from now; called by
// every valid inbound frame (spec §4.5).
func (c *Client) resetDPD() {
	if c.dpdTimer.Valid() {
		c.inst.Loop.Timer.Reschedule(c.dpdTimer)
	}
}

func (c *Client) installDPD() {
	if !c.inst.Settings.DPDEnabled {
		return
	}
	interval := dpdInterval(c.Heartbeat, c.inst.Settings.DPDCoefficient)
	h, err := c.inst.Loop.Timer.Add(interval, func(*TimerHandle) bool {
		c.requestDisconnect(DisconnectDPDTimeout)
		return false
	})
	if err == nil {
		c.dpdTimer = h
	}
}

func dpdInterval(heartbeat time.Duration, coefficient float64) Tick {
	ms := float64(heartbeat.Milliseconds()) * coefficient
	if ms < 1 {
		ms = 1
	}
	if ms > float64(MaxInterval) {
		ms = float64(MaxInterval)
	}
	return Tick(ms)
}

func (c *Client) recomputeDPD() {
	if !c.dpdTimer.Valid() {
		return
	}
	interval := dpdInterval(c.Heartbeat, c.inst.Settings.DPDCoefficient)
	_ = c.inst.Loop.Timer.SetInterval(c.dpdTimer, interval)
}

// sendVote resolves a previously deferred (WAIT_FOR_REPLY) vote by emitting
// whichever reply frame the pending slot recorded (spec §4.7,
// WAIT_FOR_REPLY design note in §9). It is a no-op if nothing is pending.
func (c *Client) sendVote(v Vote) {
	c.pending.resolve(c, v)
}

// handleVote is the common tail of every inbound message handler that
// produces a Vote: WAIT_FOR_REPLY parks it in the pending slot (optionally
// under a bounded timer), anything else replies immediately. A cached
// heuristics FAIL for ring overrides every algorithm, including one that
// asked to wait, per spec §4.7's "all four share one rule" clause.
func (c *Client) handleVote(kind pendingVoteKind, ring RingID, v Vote, boundMs Tick) {
	if c.heuristicsFor(ring) == HeuristicsFail {
		v = VoteNACK
	}
	if v == VoteWaitForReply {
		c.pending.arm(c, kind, ring, boundMs)
		return
	}
	c.pending.kind = kind
	c.pending.ring = ring
	c.pending.resolve(c, v)
}

// heuristicsFor returns the cached result for ring, or the client's latest
// known result if ring hasn't reported one yet (SPEC_FULL supplement 1).
func (c *Client) heuristicsFor(ring RingID) HeuristicsResult {
	if r, ok := c.heuristicsByRing[ring]; ok {
		return r
	}
	return c.HeuristicsResult
}

func (c *Client) witnessHeuristics(ring RingID, result HeuristicsResult) {
	c.HeuristicsResult = result
	c.heuristicsByRing[ring] = result
}
