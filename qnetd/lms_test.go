package qnetd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLMSFirstAskerHoldsVote(t *testing.T) {
	inst := newTestInstance(DefaultSettings())
	a := &lmsAlgorithm{}

	n1 := newTestClient(inst, 1, "c1")
	n2 := newTestClient(inst, 2, "c1")
	n3 := newTestClient(inst, 3, "c1")

	require.Equal(t, VoteACK, a.OnAskForVote(n1, 5))
	require.Equal(t, VoteNACK, a.OnAskForVote(n2, 5))
	require.Equal(t, VoteNACK, a.OnAskForVote(n3, 5))

	// The holder re-asking for the same ring keeps its ACK.
	require.Equal(t, VoteACK, a.OnAskForVote(n1, 5))
}

func TestLMSNewerRingDisplacesHolder(t *testing.T) {
	inst := newTestInstance(DefaultSettings())
	a := &lmsAlgorithm{}

	n1 := newTestClient(inst, 1, "c1")
	n2 := newTestClient(inst, 2, "c1")

	require.Equal(t, VoteACK, a.OnAskForVote(n1, 5))
	require.Equal(t, VoteNACK, a.OnAskForVote(n2, 5))

	// n2 asks again for a strictly newer ring and takes over the vote.
	require.Equal(t, VoteACK, a.OnAskForVote(n2, 6))
	require.Equal(t, VoteNACK, a.OnAskForVote(n1, 6))
}

func TestLMSStaleRingRefused(t *testing.T) {
	inst := newTestInstance(DefaultSettings())
	a := &lmsAlgorithm{}

	n1 := newTestClient(inst, 1, "c1")
	n2 := newTestClient(inst, 2, "c1")

	require.Equal(t, VoteACK, a.OnAskForVote(n1, 10))
	require.Equal(t, VoteNACK, a.OnAskForVote(n2, 3))
}

func TestLMSDisconnectReleasesHold(t *testing.T) {
	inst := newTestInstance(DefaultSettings())
	a := &lmsAlgorithm{}

	n1 := newTestClient(inst, 1, "c1")
	n2 := newTestClient(inst, 2, "c1")

	require.Equal(t, VoteACK, a.OnAskForVote(n1, 5))
	a.Disconnect(n1)
	inst.Clusters.Remove(n1)

	require.Equal(t, VoteACK, a.OnAskForVote(n2, 5))
}

// TestLMSNodeListHoldsSingleACK drives the hold/displace decision through
// OnNodeList (a membership ring change), not just OnAskForVote: at most one
// session may hold ACK from LMS at any moment, on either path (spec §4.7,
// testable property 9).
func TestLMSNodeListHoldsSingleACK(t *testing.T) {
	inst := newTestInstance(DefaultSettings())
	a := &lmsAlgorithm{}

	n1 := newTestClient(inst, 1, "c1")
	n2 := newTestClient(inst, 2, "c1")
	n3 := newTestClient(inst, 3, "c1")

	require.Equal(t, VoteACK, a.OnNodeList(n1, NodeListMembership, 5, []uint32{1}, nil))
	require.Equal(t, VoteNACK, a.OnNodeList(n2, NodeListMembership, 5, []uint32{2}, nil))
	require.Equal(t, VoteNACK, a.OnNodeList(n3, NodeListMembership, 5, []uint32{3}, nil))

	// A newer ring displaces the holder via NODE_LIST too.
	require.Equal(t, VoteACK, a.OnNodeList(n2, NodeListMembership, 6, []uint32{2}, nil))
	require.Equal(t, VoteNACK, a.OnNodeList(n1, NodeListMembership, 6, []uint32{1}, nil))
}

func Test2NodeLMSSameBehaviorForTwoNodes(t *testing.T) {
	inst := newTestInstance(DefaultSettings())
	a := &twoNodeLMSAlgorithm{}

	n1 := newTestClient(inst, 1, "pair")
	n2 := newTestClient(inst, 2, "pair")

	require.Equal(t, VoteACK, a.OnAskForVote(n1, 1))
	require.Equal(t, VoteNACK, a.OnAskForVote(n2, 1))
}
