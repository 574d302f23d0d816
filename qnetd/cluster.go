package qnetd

import (
	"errors"

	"github.com/armon/go-radix"
)

// ErrDuplicateNodeID is returned by ClusterRegistry.Add when another
// session already registered the same node id within the cluster.
var ErrDuplicateNodeID = errors.New("qnetd: duplicate node id in cluster")

// clusterGroup is the set of sessions sharing one cluster name.
type clusterGroup struct {
	name     string
	sessions []*Client
	ring     ringClock

	// algoState is owned by whichever Algorithm the cluster's sessions
	// negotiated (they all share one, enforced at INIT time) and holds
	// cross-session state such as LMS/2NODELMS's current ACK holder.
	algoState interface{}
}

func (g *clusterGroup) indexOf(c *Client) int {
	for i, s := range g.sessions {
		if s == c {
			return i
		}
	}
	return -1
}

// ClusterRegistry maps cluster_name -> group of client sessions (spec §4.6,
// C6). It is keyed by a radix tree rather than a plain map so that status
// reporting can cheaply enumerate clusters by name prefix, the same way a
// radix tree backs prefix-scoped lookups elsewhere in the pack this module
// was enriched from.
type ClusterRegistry struct {
	tree *radix.Tree
}

// NewClusterRegistry returns an empty registry.
func NewClusterRegistry() *ClusterRegistry {
	return &ClusterRegistry{tree: radix.New()}
}

// Add assigns session to the named cluster, creating the group if absent.
// It rejects the assignment if another session already in the group
// carries the same node id (spec invariant: unique (cluster_name, node_id)
// pairs).
func (r *ClusterRegistry) Add(name string, nodeID uint32, session *Client) error {
	var group *clusterGroup
	if v, ok := r.tree.Get(name); ok {
		group = v.(*clusterGroup)
		for _, s := range group.sessions {
			if s.NodeID == nodeID {
				return ErrDuplicateNodeID
			}
		}
	} else {
		group = &clusterGroup{name: name}
		r.tree.Insert(name, group)
	}
	session.NodeID = nodeID
	session.ClusterName = name
	group.sessions = append(group.sessions, session)
	return nil
}

// Remove unlinks session from its cluster, deleting the group if it
// becomes empty.
func (r *ClusterRegistry) Remove(session *Client) {
	if session.ClusterName == "" {
		return
	}
	v, ok := r.tree.Get(session.ClusterName)
	if !ok {
		return
	}
	group := v.(*clusterGroup)
	if i := group.indexOf(session); i >= 0 {
		group.sessions = append(group.sessions[:i], group.sessions[i+1:]...)
	}
	if len(group.sessions) == 0 {
		r.tree.Delete(session.ClusterName)
	}
	session.ClusterName = ""
}

// Iter returns the sessions currently in the named cluster, in join order.
// Algorithms use this to compute cross-node predicates (spec §4.6).
func (r *ClusterRegistry) Iter(name string) []*Client {
	v, ok := r.tree.Get(name)
	if !ok {
		return nil
	}
	group := v.(*clusterGroup)
	out := make([]*Client, len(group.sessions))
	copy(out, group.sessions)
	return out
}

// group returns the internal group record for name, or nil. Used by
// algorithms (e.g. LMS) that need to store per-cluster state such as the
// current ACK-holding partition, and by ring-id witnessing.
func (r *ClusterRegistry) group(name string) *clusterGroup {
	if v, ok := r.tree.Get(name); ok {
		return v.(*clusterGroup)
	}
	return nil
}

// Len reports the number of distinct clusters currently registered.
func (r *ClusterRegistry) Len() int {
	return r.tree.Len()
}

// ClusterNames returns all registered cluster names in sorted (radix walk)
// order, for status reporting.
func (r *ClusterRegistry) ClusterNames() []string {
	var names []string
	r.tree.Walk(func(k string, _ interface{}) bool {
		names = append(names, k)
		return false
	})
	return names
}
