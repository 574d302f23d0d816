package qnetd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func frameOf(t *testing.T, typ MessageType, payload interface{}) Frame {
	t.Helper()
	body, err := encodePayload(payload)
	require.NoError(t, err)
	return Frame{Type: typ, Body: body}
}

func TestProtocolFullHandshakeToRunning(t *testing.T) {
	inst := newTestInstance(DefaultSettings())
	inst.Settings.TLSMode = TLSOff
	c := newClient(inst, nil, 0, "127.0.0.1:9", inst.Settings.MaxClientReceiveSize)

	c.HandleFrame(frameOf(t, MsgPreinit, &preinitPayload{}))
	require.Equal(t, StateWaitInit, c.State)
	require.Equal(t, 1, c.sendQ.Len()) // PREINIT_REPLY

	c.HandleFrame(frameOf(t, MsgInit, &initPayload{
		ClusterName: "mycluster",
		NodeID:      1,
		Algorithm:   AlgorithmTest,
		Heartbeat:   1000,
	}))
	require.Equal(t, StateRunning, c.State)
	require.Equal(t, uint32(1), c.NodeID)
	require.Equal(t, "mycluster", c.ClusterName)
	require.Equal(t, 2, c.sendQ.Len()) // + INIT_REPLY
}

func TestProtocolWrongStateIsProtocolViolation(t *testing.T) {
	inst := newTestInstance(DefaultSettings())
	c := newClient(inst, nil, 0, "127.0.0.1:9", inst.Settings.MaxClientReceiveSize)

	c.HandleFrame(frameOf(t, MsgInit, &initPayload{}))
	require.True(t, c.scheduleDisconnect)
	require.Equal(t, DisconnectProtocolError, c.disconnectReason)
}

func TestProtocolRunningEchoRequest(t *testing.T) {
	inst := newTestInstance(DefaultSettings())
	c := newTestClient(inst, 1, "c1")
	c.algorithm = &testAlgorithm{}

	c.HandleFrame(frameOf(t, MsgEchoRequest, &echoRequestPayload{Cookie: 99}))
	require.Equal(t, 1, c.sendQ.Len())
}

func TestProtocolRunningAskForVoteImmediateACK(t *testing.T) {
	inst := newTestInstance(DefaultSettings())
	c := newTestClient(inst, 1, "c1")
	c.algorithm = &testAlgorithm{}

	c.HandleFrame(frameOf(t, MsgAskForVote, &askForVotePayload{Ring: 4}))
	require.Equal(t, 1, c.sendQ.Len())
	require.Equal(t, pendingNone, c.pending.kind)
}

func TestProtocolSkippedFrameRepliesServerErrorWithoutDisconnect(t *testing.T) {
	inst := newTestInstance(DefaultSettings())
	c := newTestClient(inst, 1, "c1")

	c.HandleFrame(Frame{Skipped: true, SkipReason: ErrMessageTooLong})
	require.Equal(t, 1, c.sendQ.Len())
	require.False(t, c.scheduleDisconnect)
}

func TestProtocolHeuristicsFailOverridesAskForVote(t *testing.T) {
	inst := newTestInstance(DefaultSettings())
	c := newTestClient(inst, 1, "c1")
	c.algorithm = &testAlgorithm{} // always ACK on its own

	c.witnessHeuristics(4, HeuristicsFail)
	c.HandleFrame(frameOf(t, MsgAskForVote, &askForVotePayload{Ring: 4}))

	require.Equal(t, 1, c.sendQ.Len())
	last := c.sendQ.entries[c.sendQ.Len()-1]
	frame, res := NewCodec(inst.Settings.MaxClientReceiveSize).Read(bytes.NewReader(last.buf))
	require.Equal(t, ReadComplete, res)
	require.Equal(t, MsgAskForVoteReply, frame.Type)
	var reply askForVoteReplyPayload
	require.NoError(t, decodePayload(frame.Body, &reply))
	require.Equal(t, VoteNACK, reply.Vote, "cached heuristics FAIL must override an ACK-returning algorithm")
}

func TestProtocolUnknownAlgorithmRejectsInit(t *testing.T) {
	inst := newTestInstance(DefaultSettings())
	c := newClient(inst, nil, 0, "127.0.0.1:9", inst.Settings.MaxClientReceiveSize)
	c.State = StateWaitInit

	c.HandleFrame(frameOf(t, MsgInit, &initPayload{
		ClusterName: "c1",
		NodeID:      1,
		Algorithm:   AlgorithmID(255),
	}))
	require.True(t, c.scheduleDisconnect)
}
