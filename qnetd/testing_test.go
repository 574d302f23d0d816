package qnetd

import (
	"io/ioutil"
	"log"
)

// newTestInstance builds an Instance without binding a real listener or
// touching the global metrics registry, for unit tests that only need
// Clusters/Loop/Settings wiring (client state machine, algorithms).
func newTestInstance(s Settings) *Instance {
	return &Instance{
		Settings:   s,
		Clusters:   NewClusterRegistry(),
		Loop:       NewLoop(),
		clients:    make(map[int]*Client),
		logger:     log.New(ioutil.Discard, "", 0),
		shutdownCh: make(chan struct{}),
	}
}

// newTestClient returns a bare Client wired to inst but with no real
// net.Conn, for tests that exercise algorithm/session-state logic without
// any actual I/O.
func newTestClient(inst *Instance, nodeID uint32, cluster string) *Client {
	c := &Client{
		State:            StateRunning,
		codec:            NewCodec(inst.Settings.MaxClientReceiveSize),
		sendQ:            NewSendQueue(inst.Settings.MaxSendQueueFrames, inst.Settings.MaxSendQueueBytes),
		heuristicsByRing: make(map[RingID]HeuristicsResult),
		inst:             inst,
	}
	if cluster != "" {
		_ = inst.Clusters.Add(cluster, nodeID, c)
	}
	return c
}
