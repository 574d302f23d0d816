package qnetd

// twoNodeLMSState is the per-cluster state for Algorithm2NodeLMS: which of
// the (at most two) node ids currently holds the ACK for the cluster's
// latest-witnessed ring.
type twoNodeLMSState struct {
	ring   RingID
	holder uint32
	held   bool
}

// twoNodeLMSAlgorithm is Algorithm2NodeLMS: a specialization of LMS for
// exactly two nodes, where the first asker for a ring wins and holds the
// vote until a newer ring supersedes it (spec §4.7, GLOSSARY "Last man
// standing").
type twoNodeLMSAlgorithm struct{}

func (a *twoNodeLMSAlgorithm) Init(c *Client) {}

func (a *twoNodeLMSAlgorithm) Disconnect(c *Client) {
	group := c.inst.Clusters.group(c.ClusterName)
	if group == nil {
		return
	}
	st, ok := group.algoState.(*twoNodeLMSState)
	if ok && st.held && st.holder == c.NodeID {
		st.held = false
	}
}

func (a *twoNodeLMSAlgorithm) state(c *Client) *twoNodeLMSState {
	group := c.inst.Clusters.group(c.ClusterName)
	if group == nil {
		return &twoNodeLMSState{}
	}
	st, ok := group.algoState.(*twoNodeLMSState)
	if !ok {
		st = &twoNodeLMSState{}
		group.algoState = st
	}
	return st
}

// OnNodeList stores the reported list and, for a membership/initial/quorum
// ring change, runs the same hold/displace decision OnAskForVote does, so
// the NODE_LIST_REPLY path honors the single-ACK-holder invariant too
// (spec §4.7, testable property 9).
func (a *twoNodeLMSAlgorithm) OnNodeList(c *Client, kind NodeListKind, ring RingID, nodes, config []uint32) Vote {
	if kind == NodeListConfig {
		c.ConfigNodes = config
		return VoteACK
	}
	c.MembershipNodes = nodes
	return a.decide(c, ring)
}

// OnAskForVote grants the ACK to whichever node asks first for a ring; a
// second asker for the same ring is refused, and a newer ring always
// displaces a stale holder (testable property: single ACK holder per
// cluster per ring).
func (a *twoNodeLMSAlgorithm) OnAskForVote(c *Client, ring RingID) Vote {
	return a.decide(c, ring)
}

func (a *twoNodeLMSAlgorithm) decide(c *Client, ring RingID) Vote {
	st := a.state(c)
	if !st.held || ring > st.ring {
		st.ring = ring
		st.holder = c.NodeID
		st.held = true
		return VoteACK
	}
	if ring < st.ring {
		return VoteNACK
	}
	if st.holder == c.NodeID {
		return VoteACK
	}
	return VoteNACK
}

func (a *twoNodeLMSAlgorithm) OnVoteInfoReply(c *Client) {}

func (a *twoNodeLMSAlgorithm) OnHeuristicsChange(c *Client, ring RingID, result HeuristicsResult) Vote {
	st := a.state(c)
	if result == HeuristicsFail && st.held && st.holder == c.NodeID {
		st.held = false
		return VoteNACK
	}
	return VoteACK
}

func (a *twoNodeLMSAlgorithm) OnTimer(c *Client) Vote { return VoteACK }
