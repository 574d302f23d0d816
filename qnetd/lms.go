package qnetd

// lmsState is the per-cluster state for AlgorithmLMS: the single node id
// currently holding the ACK for the cluster's latest-witnessed ring,
// generalized from twoNodeLMSState to an arbitrary node count (spec §4.7).
type lmsState struct {
	ring   RingID
	holder uint32
	held   bool
}

// lmsAlgorithm is AlgorithmLMS ("last man standing"): exactly one session
// per cluster holds the ACK for any given ring at a time, granted to
// whichever session asks first; a higher ring always displaces a stale
// holder, matching the testable single-ACK-holder invariant (spec §8).
type lmsAlgorithm struct{}

func (a *lmsAlgorithm) Init(c *Client) {}

func (a *lmsAlgorithm) Disconnect(c *Client) {
	group := c.inst.Clusters.group(c.ClusterName)
	if group == nil {
		return
	}
	if st, ok := group.algoState.(*lmsState); ok && st.held && st.holder == c.NodeID {
		st.held = false
	}
}

func (a *lmsAlgorithm) state(c *Client) *lmsState {
	group := c.inst.Clusters.group(c.ClusterName)
	if group == nil {
		return &lmsState{}
	}
	st, ok := group.algoState.(*lmsState)
	if !ok {
		st = &lmsState{}
		group.algoState = st
	}
	return st
}

// OnNodeList stores the reported list and, for a membership/initial/quorum
// ring change, runs the same hold/displace decision OnAskForVote does:
// spec §4.7 assigns LMS's ACK "on a ring change", which arrives here, not
// only via a later ASK_FOR_VOTE (testable property 9).
func (a *lmsAlgorithm) OnNodeList(c *Client, kind NodeListKind, ring RingID, nodes, config []uint32) Vote {
	if kind == NodeListConfig {
		c.ConfigNodes = config
		return VoteACK
	}
	c.MembershipNodes = nodes
	return a.decide(c, ring)
}

func (a *lmsAlgorithm) OnAskForVote(c *Client, ring RingID) Vote {
	return a.decide(c, ring)
}

func (a *lmsAlgorithm) decide(c *Client, ring RingID) Vote {
	st := a.state(c)
	switch {
	case !st.held || ring > st.ring:
		st.ring = ring
		st.holder = c.NodeID
		st.held = true
		return VoteACK
	case ring < st.ring:
		return VoteNACK
	case st.holder == c.NodeID:
		return VoteACK
	default:
		return VoteNACK
	}
}

func (a *lmsAlgorithm) OnVoteInfoReply(c *Client) {}

func (a *lmsAlgorithm) OnHeuristicsChange(c *Client, ring RingID, result HeuristicsResult) Vote {
	st := a.state(c)
	if result == HeuristicsFail && st.held && st.holder == c.NodeID {
		st.held = false
		return VoteNACK
	}
	return VoteACK
}

func (a *lmsAlgorithm) OnTimer(c *Client) Vote { return VoteACK }
