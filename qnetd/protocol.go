package qnetd

// HandleFrame advances c's protocol state machine by one inbound frame
// (spec §4.5). It never returns an error for a well-formed-but-wrong-state
// message: that is a protocol violation the caller learns about through
// c.scheduleDisconnect, exactly like every other disconnect reason, so the
// instance's dispatch loop has one teardown path rather than two.
func (c *Client) HandleFrame(f Frame) {
	if f.Skipped {
		c.sendServerError(f.SkipReason, "")
		return
	}

	switch c.State {
	case StateAccepted:
		c.handlePreinit(f)
	case StateWaitStartTLS:
		c.handleStartTLS(f)
	case StateWaitInit:
		c.handleInit(f)
	case StateRunning:
		c.handleRunning(f)
	default:
		c.protocolViolation("frame received in terminal state")
	}
}

func (c *Client) protocolViolation(detail string) {
	c.sendServerError(ErrUnexpectedMessage, detail)
	c.requestDisconnect(DisconnectProtocolError)
}

func (c *Client) handlePreinit(f Frame) {
	if f.Type != MsgPreinit {
		c.protocolViolation("expected PREINIT")
		return
	}
	var req preinitPayload
	if err := decodePayload(f.Body, &req); err != nil {
		c.protocolViolation("malformed PREINIT")
		return
	}

	_ = c.enqueue(MsgPreinitReply, &preinitReplyPayload{
		SupportedAlgorithms: SupportedAlgorithms,
		Node:                c.Addr,
	})

	wantTLS := req.TLSRequired || c.inst.Settings.TLSMode != TLSOff
	if wantTLS && c.inst.Settings.TLSMode != TLSOff {
		c.State = StateWaitStartTLS
	} else {
		c.State = StateWaitInit
	}
}

func (c *Client) handleStartTLS(f Frame) {
	if f.Type != MsgStartTLS {
		c.protocolViolation("expected STARTTLS")
		return
	}
	// HandleFrame only owns protocol-state bookkeeping: TLSState is
	// recorded here, but nothing in this package performs a TLS handshake
	// or wraps c.Conn, so the session keeps using the plain connection.
	c.TLSState = TLSStateActive
	c.State = StateWaitInit
}

func (c *Client) handleInit(f Frame) {
	if f.Type != MsgInit {
		c.protocolViolation("expected INIT")
		return
	}
	var req initPayload
	if err := decodePayload(f.Body, &req); err != nil {
		c.protocolViolation("malformed INIT")
		return
	}

	algo := newAlgorithm(req.Algorithm)
	if algo == nil {
		c.sendServerError(ErrBadOption, "unsupported algorithm")
		c.requestDisconnect(DisconnectProtocolError)
		return
	}
	c.PreferredAlgorithm = req.Algorithm
	c.algorithm = algo

	if err := c.inst.Clusters.Add(req.ClusterName, req.NodeID, c); err != nil {
		c.sendServerError(ErrBadOption, "duplicate node id in cluster")
		c.requestDisconnect(DisconnectAdmission)
		return
	}

	c.Heartbeat = c.inst.Settings.clampHeartbeat(durationFromMillis(req.Heartbeat))
	c.installDPD()

	c.algorithm.Init(c)
	c.State = StateRunning
	_ = c.enqueue(MsgInitReply, &initReplyPayload{Vote: VoteACK})
}

func (c *Client) handleRunning(f Frame) {
	switch f.Type {
	case MsgEchoRequest:
		c.onEchoRequest(f)
	case MsgNodeList:
		c.onNodeList(f)
	case MsgAskForVote:
		c.onAskForVote(f)
	case MsgVoteInfoReply:
		c.onVoteInfoReply(f)
	case MsgHeuristicsChange:
		c.onHeuristicsChange(f)
	case MsgSetOption:
		c.onSetOption(f)
	default:
		c.protocolViolation("unexpected message in RUNNING state")
		return
	}
	c.resetDPD()
}

func (c *Client) onEchoRequest(f Frame) {
	var req echoRequestPayload
	if err := decodePayload(f.Body, &req); err != nil {
		c.protocolViolation("malformed ECHO_REQUEST")
		return
	}
	_ = c.enqueue(MsgEchoReply, &echoReplyPayload{Cookie: req.Cookie})
}

func (c *Client) onNodeList(f Frame) {
	var req nodeListPayload
	if err := decodePayload(f.Body, &req); err != nil {
		c.protocolViolation("malformed NODE_LIST")
		return
	}
	nodes := nodeIDs(req.Nodes)
	config := nodeIDs(req.Config)

	if group := c.inst.Clusters.group(c.ClusterName); group != nil {
		group.ring.Witness(req.Ring)
	}
	c.LastMembershipRing = req.Ring

	vote := c.algorithm.OnNodeList(c, req.Kind, req.Ring, nodes, config)
	c.handleVote(pendingNodeListReply, req.Ring, vote, c.boundedWaitTicks())
}

func (c *Client) onAskForVote(f Frame) {
	var req askForVotePayload
	if err := decodePayload(f.Body, &req); err != nil {
		c.protocolViolation("malformed ASK_FOR_VOTE")
		return
	}
	vote := c.algorithm.OnAskForVote(c, req.Ring)
	c.handleVote(pendingAskForVoteReply, req.Ring, vote, c.boundedWaitTicks())
}

func (c *Client) onVoteInfoReply(f Frame) {
	c.algorithm.OnVoteInfoReply(c)
}

func (c *Client) onHeuristicsChange(f Frame) {
	var req heuristicsChangePayload
	if err := decodePayload(f.Body, &req); err != nil {
		c.protocolViolation("malformed HEURISTICS_CHANGE")
		return
	}
	c.witnessHeuristics(req.Ring, req.Result)
	vote := c.algorithm.OnHeuristicsChange(c, req.Ring, req.Result)
	c.handleVote(pendingHeuristicsChangeReply, req.Ring, vote, c.boundedWaitTicks())
}

func (c *Client) onSetOption(f Frame) {
	var req setOptionPayload
	if err := decodePayload(f.Body, &req); err != nil {
		c.protocolViolation("malformed SET_OPTION")
		return
	}
	if req.Heartbeat != nil {
		c.Heartbeat = c.inst.Settings.clampHeartbeat(durationFromMillis(*req.Heartbeat))
		c.recomputeDPD()
	}
	keepalive := req.Keepalive != nil && *req.Keepalive
	_ = c.enqueue(MsgSetOptionReply, &setOptionReplyPayload{
		Heartbeat: uint32(c.Heartbeat.Milliseconds()),
		Keepalive: keepalive,
	})
}

func nodeIDs(nodes []nodeInfo) []uint32 {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]uint32, len(nodes))
	for i, n := range nodes {
		out[i] = n.NodeID
	}
	return out
}

// boundedWaitTicks is the timeout after which a deferred (WAIT_FOR_REPLY)
// vote resolves to NACK on its own, sized off the session's negotiated
// heartbeat so it scales with how chatty the client already promised to
// be (SPEC_FULL's resolution of the FFSPLIT bounded-wait open question).
func (c *Client) boundedWaitTicks() Tick {
	ms := c.Heartbeat.Milliseconds() * 4
	if ms < 1000 {
		ms = 1000
	}
	if ms > int64(MaxInterval) {
		ms = int64(MaxInterval)
	}
	return Tick(ms)
}
