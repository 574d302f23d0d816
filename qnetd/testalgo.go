package qnetd

// testAlgorithm is AlgorithmTest: always grants the vote, used by clients
// to exercise the wire protocol and session lifecycle without any real
// quorum logic (spec §4.7).
type testAlgorithm struct{}

func (a *testAlgorithm) Init(c *Client) {}

func (a *testAlgorithm) Disconnect(c *Client) {}

func (a *testAlgorithm) OnNodeList(c *Client, kind NodeListKind, ring RingID, nodes, config []uint32) Vote {
	return VoteACK
}

func (a *testAlgorithm) OnAskForVote(c *Client, ring RingID) Vote {
	return VoteACK
}

func (a *testAlgorithm) OnVoteInfoReply(c *Client) {}

func (a *testAlgorithm) OnHeuristicsChange(c *Client, ring RingID, result HeuristicsResult) Vote {
	return VoteACK
}

func (a *testAlgorithm) OnTimer(c *Client) Vote { return VoteACK }
