package qnetd

// Vote is the arbiter's answer to a membership or quorum event. It is never
// sent unsolicited: every Vote is carried in a reply to a client-initiated
// message (spec Non-goals).
type Vote int

const (
	// VoteACK grants the partition permission to remain quorate.
	VoteACK Vote = iota
	// VoteNACK denies it.
	VoteNACK
	// VoteWaitForReply defers the answer into the session's pending-vote
	// slot (see vote_pending.go), which Client.sendVote, the session's next
	// concrete vote, or the slot's bounded timeout (NACK) resolves.
	VoteWaitForReply
)

func (v Vote) String() string {
	switch v {
	case VoteACK:
		return "ACK"
	case VoteNACK:
		return "NACK"
	case VoteWaitForReply:
		return "WAIT_FOR_REPLY"
	default:
		return "UNKNOWN"
	}
}

// HeuristicsResult is the outcome of the cluster-side heuristics runner, as
// reported in a HEURISTICS_CHANGE message.
type HeuristicsResult int

const (
	HeuristicsUndefined HeuristicsResult = iota
	HeuristicsPass
	HeuristicsFail
)

// NodeListKind distinguishes the four call sites a NODE_LIST message can
// arrive on; each drives a different algorithm hook (spec §4.5, SPEC_FULL
// supplement 2).
type NodeListKind int

const (
	NodeListInitial NodeListKind = iota
	NodeListMembership
	NodeListQuorum
	NodeListConfig
)

func (k NodeListKind) String() string {
	switch k {
	case NodeListInitial:
		return "initial"
	case NodeListMembership:
		return "membership"
	case NodeListQuorum:
		return "quorum"
	case NodeListConfig:
		return "config"
	default:
		return "unknown"
	}
}
