package qnetd

import "time"

// TieBreaker picks the winning side of an otherwise-even split (spec
// GLOSSARY, SPEC_FULL supplement 4).
type TieBreaker struct {
	Mode TieBreakerMode
	// NodeID is only meaningful when Mode == TieBreakNodeID.
	NodeID uint32
}

type TieBreakerMode int

const (
	TieBreakLowest TieBreakerMode = iota
	TieBreakHighest
	TieBreakNodeID
)

// winner picks the member of candidates that the tie-breaker selects.
// candidates must be non-empty.
func (tb TieBreaker) winner(candidates []uint32) uint32 {
	switch tb.Mode {
	case TieBreakHighest:
		best := candidates[0]
		for _, c := range candidates[1:] {
			if c > best {
				best = c
			}
		}
		return best
	case TieBreakNodeID:
		for _, c := range candidates {
			if c == tb.NodeID {
				return c
			}
		}
		return candidates[0]
	default: // TieBreakLowest
		best := candidates[0]
		for _, c := range candidates[1:] {
			if c < best {
				best = c
			}
		}
		return best
	}
}

// favors reports whether the tie-breaker would select a node that is a
// member of partition.
func (tb TieBreaker) favors(partition []uint32, allCandidates []uint32) bool {
	if len(allCandidates) == 0 {
		return false
	}
	w := tb.winner(allCandidates)
	for _, p := range partition {
		if p == w {
			return true
		}
	}
	return false
}

// Settings are the instance's immutable, CLI/advanced-settings-derived
// knobs (spec §6). Advanced settings (`-S opt=value,...`) are decoded into
// this struct via mapstructure, the same role it plays decoding serf's
// generic IPC command payloads.
type Settings struct {
	ListenAddr   string
	ListenPort   int
	AddressFamily AddressFamily
	ListenBacklog int

	TLSMode           TLSMode
	ClientCertRequired ClientCertPolicy

	MaxClients int

	HeartbeatMin time.Duration
	HeartbeatMax time.Duration

	DPDEnabled     bool
	DPDCoefficient float64

	MaxClientReceiveSize uint32
	MaxSendQueueFrames   int
	MaxSendQueueBytes    int

	TieBreaker TieBreaker

	ControlSocketPath string
	ControlSocketGID  int
	ControlSocketMode uint32

	LockFilePath string

	MetricsSink     string // "", "datadog", "circonus", "prometheus"
	MetricsSinkAddr string // statsd/dogstatsd address, meaningful for MetricsSink == "datadog"
}

type AddressFamily int

const (
	AddressAny AddressFamily = iota
	AddressV4
	AddressV6
)

type ClientCertPolicy int

const (
	ClientCertNever ClientCertPolicy = iota
	ClientCertOptional
	ClientCertRequired
)

// DefaultSettings mirrors SPEC_FULL supplement 6's defaults, taken from
// qnetd-advanced-settings.h.
func DefaultSettings() Settings {
	return Settings{
		ListenPort:           5403,
		AddressFamily:        AddressAny,
		ListenBacklog:        10,
		TLSMode:              TLSOn,
		ClientCertRequired:   ClientCertOptional,
		MaxClients:           0,
		HeartbeatMin:         1000 * time.Millisecond,
		HeartbeatMax:         30000 * time.Millisecond,
		DPDEnabled:           true,
		DPDCoefficient:       3.0,
		MaxClientReceiveSize: 64 * 1024,
		MaxSendQueueFrames:   100,
		MaxSendQueueBytes:    1 << 20,
		TieBreaker:           TieBreaker{Mode: TieBreakLowest},
		ControlSocketPath:    "/var/run/qnetd/qnetd.sock",
		ControlSocketMode:    0600,
		LockFilePath:         "/var/run/qnetd/qnetd.pid",
	}
}

// clampHeartbeat clamps a client-requested heartbeat to [min, max].
func (s Settings) clampHeartbeat(requested time.Duration) time.Duration {
	if requested < s.HeartbeatMin {
		return s.HeartbeatMin
	}
	if requested > s.HeartbeatMax {
		return s.HeartbeatMax
	}
	return requested
}
