package qnetd

import (
	"bytes"

	"github.com/hashicorp/go-msgpack/codec"
)

// MessageType identifies the frame's payload shape on the wire (spec §3).
type MessageType uint8

const (
	MsgPreinit MessageType = iota
	MsgPreinitReply
	MsgStartTLS
	MsgInit
	MsgInitReply
	MsgSetOption
	MsgSetOptionReply
	MsgEchoRequest
	MsgEchoReply
	MsgNodeList
	MsgNodeListReply
	MsgAskForVote
	MsgAskForVoteReply
	MsgVoteInfo
	MsgVoteInfoReply
	MsgServerError
	MsgHeuristicsChange
	MsgHeuristicsChangeReply
)

func (t MessageType) known() bool {
	return t <= MsgHeuristicsChangeReply
}

func (t MessageType) String() string {
	names := [...]string{
		"PREINIT", "PREINIT_REPLY", "STARTTLS", "INIT", "INIT_REPLY",
		"SET_OPTION", "SET_OPTION_REPLY", "ECHO_REQUEST", "ECHO_REPLY",
		"NODE_LIST", "NODE_LIST_REPLY", "ASK_FOR_VOTE", "ASK_FOR_VOTE_REPLY",
		"VOTE_INFO", "VOTE_INFO_REPLY", "SERVER_ERROR", "HEURISTICS_CHANGE",
		"HEURISTICS_CHANGE_REPLY",
	}
	if int(t) < len(names) {
		return names[t]
	}
	return "UNKNOWN"
}

// ErrorCode is carried in a SERVER_ERROR frame's payload, identifying the
// error kind from spec §7.
type ErrorCode string

const (
	ErrMessageTooLong    ErrorCode = "MESSAGE_TOO_LONG"
	ErrUnsupportedType   ErrorCode = "UNSUPPORTED_MESSAGE_TYPE"
	ErrUnexpectedMessage ErrorCode = "UNEXPECTED_MESSAGE"
	ErrBadOption         ErrorCode = "BAD_OPTION"
)

// AlgorithmID is the static set of decision algorithms the arbiter
// advertises in PREINIT_REPLY, in the order spec §4.7 and S1 list them.
type AlgorithmID uint8

const (
	AlgorithmTest AlgorithmID = iota
	AlgorithmFFSplit
	Algorithm2NodeLMS
	AlgorithmLMS
)

func (a AlgorithmID) String() string {
	switch a {
	case AlgorithmTest:
		return "test"
	case AlgorithmFFSplit:
		return "ffsplit"
	case Algorithm2NodeLMS:
		return "2nodelms"
	case AlgorithmLMS:
		return "lms"
	default:
		return "unknown"
	}
}

// SupportedAlgorithms is the static, ordered list advertised by every
// arbiter instance (spec S1).
var SupportedAlgorithms = []AlgorithmID{AlgorithmTest, AlgorithmFFSplit, Algorithm2NodeLMS, AlgorithmLMS}

// TLSMode is the per-connection TLS negotiation policy (spec §6).
type TLSMode int

const (
	TLSOff TLSMode = iota
	TLSOn
	TLSRequired
)

// --- typed payload structs, one per MessageType, TLV-encoded via go-msgpack ---

type preinitPayload struct {
	TLSRequired bool
}

type preinitReplyPayload struct {
	SupportedAlgorithms []AlgorithmID
	Node                string
}

type startTLSPayload struct{}

type initPayload struct {
	ClusterName string
	NodeID      uint32
	Algorithm   AlgorithmID
	Heartbeat   uint32 // milliseconds
}

type initReplyPayload struct {
	Vote Vote
}

type setOptionPayload struct {
	Heartbeat *uint32 // milliseconds, nil = unchanged
	Keepalive *bool
}

type setOptionReplyPayload struct {
	Heartbeat uint32
	Keepalive bool
}

type echoRequestPayload struct {
	Cookie uint64
}

type echoReplyPayload struct {
	Cookie uint64
}

type nodeInfo struct {
	NodeID uint32
}

type nodeListPayload struct {
	Kind   NodeListKind
	Ring   RingID
	Nodes  []nodeInfo
	Config []nodeInfo // present only for NodeListConfig
}

type nodeListReplyPayload struct {
	Ring RingID
	Vote Vote
}

type askForVotePayload struct {
	Ring RingID
}

type askForVoteReplyPayload struct {
	Ring RingID
	Vote Vote
}

type voteInfoPayload struct {
	Ring RingID
	Vote Vote
}

type voteInfoReplyPayload struct{}

type serverErrorPayload struct {
	Code   ErrorCode
	Detail string
}

type heuristicsChangePayload struct {
	Ring   RingID
	Result HeuristicsResult
}

type heuristicsChangeReplyPayload struct {
	Vote Vote
}

var msgpackHandle = &codec.MsgpackHandle{}

func encodePayload(v interface{}) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	enc := codec.NewEncoder(buf, msgpackHandle)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodePayload(raw []byte, out interface{}) error {
	dec := codec.NewDecoder(bytes.NewReader(raw), msgpackHandle)
	return dec.Decode(out)
}
