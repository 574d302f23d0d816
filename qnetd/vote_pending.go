package qnetd

// pendingVoteKind records which inbound message a deferred Vote answers, so
// the eventual reply goes out as the right frame type (spec §9's
// WAIT_FOR_REPLY design note: the arbiter parks a pending-vote slot rather
// than suspending a call stack, since the whole instance is single-threaded
// and non-blocking).
type pendingVoteKind int

const (
	pendingNone pendingVoteKind = iota
	pendingInitReply
	pendingNodeListReply
	pendingAskForVoteReply
	pendingHeuristicsChangeReply
)

// pendingVote is the one outstanding deferred vote a session may carry at a
// time. A second WAIT_FOR_REPLY while one is already armed is a protocol
// violation (spec §4.7): an algorithm only ever has one question in flight
// per session.
type pendingVote struct {
	kind  pendingVoteKind
	ring  RingID
	timer TimerHandle
}

// arm parks kind/ring as the outstanding vote and, if boundMs is non-zero,
// schedules a fallback NACK so a session can never wedge forever waiting on
// an algorithm that never calls sendVote (SPEC_FULL's bounded-wait
// resolution of the FFSPLIT "how long do we wait for the rest of the
// cluster" open question).
func (p *pendingVote) arm(c *Client, kind pendingVoteKind, ring RingID, boundMs Tick) {
	if p.kind != pendingNone {
		c.protocolViolation("deferred vote already pending")
		return
	}
	p.kind = kind
	p.ring = ring
	if boundMs == 0 {
		return
	}
	h, err := c.inst.Loop.Timer.Add(boundMs, func(*TimerHandle) bool {
		c.sendVote(VoteNACK)
		return false
	})
	if err == nil {
		p.timer = h
	}
}

// resolve emits the reply frame the armed kind calls for and clears the
// slot. A call with nothing armed is a no-op, so a late algorithm callback
// racing a session teardown or a disconnect never panics.
func (p *pendingVote) resolve(c *Client, v Vote) {
	if p.kind == pendingNone {
		return
	}
	kind, ring := p.kind, p.ring
	if p.timer.Valid() {
		c.inst.Loop.Timer.Delete(p.timer)
	}
	p.kind = pendingNone
	p.timer = TimerHandle{}

	switch kind {
	case pendingInitReply:
		_ = c.enqueue(MsgInitReply, &initReplyPayload{Vote: v})
	case pendingNodeListReply:
		_ = c.enqueue(MsgNodeListReply, &nodeListReplyPayload{Ring: ring, Vote: v})
	case pendingAskForVoteReply:
		_ = c.enqueue(MsgAskForVoteReply, &askForVoteReplyPayload{Ring: ring, Vote: v})
	case pendingHeuristicsChangeReply:
		_ = c.enqueue(MsgHeuristicsChangeReply, &heuristicsChangeReplyPayload{Vote: v})
	}
}
