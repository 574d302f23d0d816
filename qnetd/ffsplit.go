package qnetd

// ffsplitAlgorithm is AlgorithmFFSplit ("fifty-fifty split"): it grants the
// ACK to whichever partition holds a strict majority of the cluster's
// configured nodes, and falls back to the instance's TieBreaker when a
// partition holds exactly half (spec §4.7, GLOSSARY "Quorum Partition").
//
// A session can only be scored once it has reported both its current
// membership view (NODE_LIST membership/initial/quorum) and the full
// config node list (NODE_LIST config) at least once; until then
// OnNodeList and OnAskForVote answer VoteWaitForReply, which the session's
// generic bounded pending-vote slot resolves to VoteNACK unless the same
// session produces a concrete vote first. The decision uses only this
// session's own lists: other sessions of the cluster are not consulted,
// neither for the wait nor for consistency of ACKs across the cluster.
type ffsplitAlgorithm struct{}

func (a *ffsplitAlgorithm) Init(c *Client) {}

func (a *ffsplitAlgorithm) Disconnect(c *Client) {}

func (a *ffsplitAlgorithm) OnNodeList(c *Client, kind NodeListKind, ring RingID, nodes, config []uint32) Vote {
	switch kind {
	case NodeListConfig:
		c.ConfigNodes = config
	default:
		c.MembershipNodes = nodes
	}
	return a.vote(c)
}

func (a *ffsplitAlgorithm) OnAskForVote(c *Client, ring RingID) Vote {
	return a.vote(c)
}

// vote is the majority/tie-breaker decision shared by every call site that
// can produce a vote (NODE_LIST and ASK_FOR_VOTE both feed it the same
// partition-vs-config view), so a membership NODE_LIST gets the same
// answer ASK_FOR_VOTE would (spec §4.5, scenario S3).
func (a *ffsplitAlgorithm) vote(c *Client) Vote {
	if len(c.ConfigNodes) == 0 || len(c.MembershipNodes) == 0 {
		return VoteWaitForReply
	}

	total := len(c.ConfigNodes)
	have := len(c.MembershipNodes)

	switch {
	case have*2 > total:
		return VoteACK
	case have*2 < total:
		return VoteNACK
	}

	if c.inst.Settings.TieBreaker.favors(c.MembershipNodes, c.ConfigNodes) {
		return VoteACK
	}
	return VoteNACK
}

func (a *ffsplitAlgorithm) OnVoteInfoReply(c *Client) {}

func (a *ffsplitAlgorithm) OnHeuristicsChange(c *Client, ring RingID, result HeuristicsResult) Vote {
	c.witnessHeuristics(ring, result)
	if result == HeuristicsFail {
		return VoteNACK
	}
	return VoteACK
}

func (a *ffsplitAlgorithm) OnTimer(c *Client) Vote { return VoteACK }
