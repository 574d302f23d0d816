package qnetd

// Algorithm is the decision-algorithm capability set spec §4.7 describes:
// one implementation per AlgorithmID, selected by the client at INIT time
// and driven for the rest of that session's life. It mirrors the shape of
// serf's event delegate — a small set of lifecycle and on-message hooks the
// instance calls into — generalized from membership events to quorum votes.
//
// Every hook that can legitimately need to consult other sessions in the
// same cluster (NODE_LIST, ASK_FOR_VOTE, HEURISTICS_CHANGE) may return
// VoteWaitForReply; the instance parks the answer in the session's pending
// vote slot, which is resolved by Client.sendVote, by the next concrete vote
// the same session produces, or by the slot's bounded timeout (NACK). None
// of the built-in algorithms call sendVote.
type Algorithm interface {
	// Init runs once a session has completed INIT with this algorithm
	// selected and been admitted to its cluster. It returns no vote: the
	// INIT_REPLY (always ACK) is enqueued as soon as Init returns, so an
	// algorithm cannot defer it.
	Init(c *Client)

	// Disconnect notifies the algorithm that c is leaving, including
	// sessions whose INIT selected this algorithm but was then rejected
	// (SPEC_FULL supplement 3). It must not touch c's connection; c is
	// already being torn down.
	Disconnect(c *Client)

	// OnNodeList handles a NODE_LIST message of the given kind for ring,
	// with the client's reported membership and (for NodeListConfig)
	// configuration node sets.
	OnNodeList(c *Client, kind NodeListKind, ring RingID, nodes, config []uint32) Vote

	// OnAskForVote handles an ASK_FOR_VOTE for ring.
	OnAskForVote(c *Client, ring RingID) Vote

	// OnVoteInfoReply acknowledges a client's VOTE_INFO_REPLY to a
	// previously delivered VOTE_INFO notification.
	OnVoteInfoReply(c *Client)

	// OnHeuristicsChange handles a HEURISTICS_CHANGE report for ring.
	OnHeuristicsChange(c *Client, ring RingID, result HeuristicsResult) Vote

	// OnTimer is the hook for c's algorithm timer (c.algoTimer). None of
	// the built-in algorithms arm c.algoTimer and nothing in this package
	// calls OnTimer; FFSPLIT's bounded config-list wait is the pending-vote
	// timeout in vote_pending.go instead.
	OnTimer(c *Client) Vote
}

// newAlgorithm constructs the Algorithm implementation for id, or nil if id
// is not one of SupportedAlgorithms.
func newAlgorithm(id AlgorithmID) Algorithm {
	switch id {
	case AlgorithmTest:
		return &testAlgorithm{}
	case AlgorithmFFSplit:
		return &ffsplitAlgorithm{}
	case Algorithm2NodeLMS:
		return &twoNodeLMSAlgorithm{}
	case AlgorithmLMS:
		return &lmsAlgorithm{}
	default:
		return nil
	}
}
