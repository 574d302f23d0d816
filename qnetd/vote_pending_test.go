package qnetd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandleVoteImmediateACKEnqueues(t *testing.T) {
	inst := newTestInstance(DefaultSettings())
	c := newTestClient(inst, 1, "c1")

	c.handleVote(pendingAskForVoteReply, 7, VoteACK, 0)
	require.Equal(t, 1, c.sendQ.Len())
	require.Equal(t, pendingNone, c.pending.kind)
}

func TestHandleVoteWaitForReplyArmsThenResolves(t *testing.T) {
	inst := newTestInstance(DefaultSettings())
	c := newTestClient(inst, 1, "c1")

	c.handleVote(pendingNodeListReply, 3, VoteWaitForReply, 0)
	require.Equal(t, pendingNodeListReply, c.pending.kind)
	require.Equal(t, 0, c.sendQ.Len(), "no reply yet while deferred")

	c.sendVote(VoteACK)
	require.Equal(t, pendingNone, c.pending.kind)
	require.Equal(t, 1, c.sendQ.Len())
}

func TestPendingVoteBoundedTimeoutFallsBackToNACK(t *testing.T) {
	inst := newTestInstance(DefaultSettings())
	c := newTestClient(inst, 1, "c1")

	c.handleVote(pendingAskForVoteReply, 1, VoteWaitForReply, 50)
	require.Equal(t, 0, c.sendQ.Len())

	inst.Loop.Timer.Advance(50)
	inst.Loop.Timer.Expire()

	require.Equal(t, pendingNone, c.pending.kind)
	require.Equal(t, 1, c.sendQ.Len())
}

func TestSendVoteNoopWithoutPending(t *testing.T) {
	inst := newTestInstance(DefaultSettings())
	c := newTestClient(inst, 1, "c1")

	c.sendVote(VoteACK) // nothing armed; must not panic or enqueue
	require.Equal(t, 0, c.sendQ.Len())
}
