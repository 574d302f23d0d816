package qnetd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFFSplitWaitsForFullInfo(t *testing.T) {
	inst := newTestInstance(DefaultSettings())
	a := &ffsplitAlgorithm{}
	c := newTestClient(inst, 1, "c1")

	require.Equal(t, VoteWaitForReply, a.OnAskForVote(c, 1))

	c.ConfigNodes = []uint32{1, 2, 3, 4}
	require.Equal(t, VoteWaitForReply, a.OnAskForVote(c, 1), "membership still unknown")
}

func TestFFSplitMajorityWins(t *testing.T) {
	inst := newTestInstance(DefaultSettings())
	a := &ffsplitAlgorithm{}
	c := newTestClient(inst, 1, "c1")
	c.ConfigNodes = []uint32{1, 2, 3, 4}
	c.MembershipNodes = []uint32{1, 2, 3}

	require.Equal(t, VoteACK, a.OnAskForVote(c, 1))
}

func TestFFSplitMinorityLoses(t *testing.T) {
	inst := newTestInstance(DefaultSettings())
	a := &ffsplitAlgorithm{}
	c := newTestClient(inst, 1, "c1")
	c.ConfigNodes = []uint32{1, 2, 3, 4}
	c.MembershipNodes = []uint32{1}

	require.Equal(t, VoteNACK, a.OnAskForVote(c, 1))
}

func TestFFSplitExactHalfUsesTieBreaker(t *testing.T) {
	inst := newTestInstance(DefaultSettings())
	inst.Settings.TieBreaker = TieBreaker{Mode: TieBreakLowest}
	a := &ffsplitAlgorithm{}

	winnerSide := newTestClient(inst, 1, "c1")
	winnerSide.ConfigNodes = []uint32{1, 2, 3, 4}
	winnerSide.MembershipNodes = []uint32{1, 2} // contains node 1, the lowest id

	loserSide := newTestClient(inst, 3, "c1")
	loserSide.ConfigNodes = []uint32{1, 2, 3, 4}
	loserSide.MembershipNodes = []uint32{3, 4}

	require.Equal(t, VoteACK, a.OnAskForVote(winnerSide, 1))
	require.Equal(t, VoteNACK, a.OnAskForVote(loserSide, 1))
}

// TestFFSplitNodeListScenarioS3 drives the literal S3 scenario through
// OnNodeList rather than OnAskForVote: configured nodes {1,2,3}, sessions 1
// and 2 report a membership NODE_LIST for ring R with members {1,2} and
// must get ACK; session 3 reports the same ring with members {3} and must
// get NACK (spec §8 scenario S3, testable property 8).
func TestFFSplitNodeListScenarioS3(t *testing.T) {
	inst := newTestInstance(DefaultSettings())
	a := &ffsplitAlgorithm{}

	n1 := newTestClient(inst, 1, "c")
	n2 := newTestClient(inst, 2, "c")
	n3 := newTestClient(inst, 3, "c")

	config := []uint32{1, 2, 3}
	for _, c := range []*Client{n1, n2, n3} {
		require.Equal(t, VoteWaitForReply, a.OnNodeList(c, NodeListConfig, 0, nil, config))
	}

	require.Equal(t, VoteACK, a.OnNodeList(n1, NodeListMembership, 1, []uint32{1, 2}, nil))
	require.Equal(t, VoteACK, a.OnNodeList(n2, NodeListMembership, 1, []uint32{1, 2}, nil))
	require.Equal(t, VoteNACK, a.OnNodeList(n3, NodeListMembership, 1, []uint32{3}, nil))
}

func TestFFSplitHeuristicsFailNACKs(t *testing.T) {
	inst := newTestInstance(DefaultSettings())
	a := &ffsplitAlgorithm{}
	c := newTestClient(inst, 1, "c1")

	require.Equal(t, VoteNACK, a.OnHeuristicsChange(c, 1, HeuristicsFail))
	require.Equal(t, VoteACK, a.OnHeuristicsChange(c, 1, HeuristicsPass))
}
