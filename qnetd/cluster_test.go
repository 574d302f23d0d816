package qnetd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClusterRegistryRejectsDuplicateNodeID(t *testing.T) {
	r := NewClusterRegistry()
	c1 := &Client{}
	c2 := &Client{}

	require.NoError(t, r.Add("mycluster", 1, c1))
	err := r.Add("mycluster", 1, c2)
	require.ErrorIs(t, err, ErrDuplicateNodeID)

	require.Equal(t, 1, r.Len())
	require.Len(t, r.Iter("mycluster"), 1)
}

func TestClusterRegistrySameNodeIDDifferentClusters(t *testing.T) {
	r := NewClusterRegistry()
	c1 := &Client{}
	c2 := &Client{}

	require.NoError(t, r.Add("a", 1, c1))
	require.NoError(t, r.Add("b", 1, c2))
	require.Equal(t, 2, r.Len())
}

func TestClusterRegistryRemoveEmptiesGroup(t *testing.T) {
	r := NewClusterRegistry()
	c1 := &Client{}

	require.NoError(t, r.Add("mycluster", 1, c1))
	r.Remove(c1)

	require.Equal(t, 0, r.Len())
	require.Empty(t, c1.ClusterName)
	require.Nil(t, r.Iter("mycluster"))
}

func TestClusterRegistryRemoveUnknownClientIsNoOp(t *testing.T) {
	r := NewClusterRegistry()
	c1 := &Client{}
	r.Remove(c1) // never added; must not panic
}

func TestRingClockWitnessMonotonic(t *testing.T) {
	var rc ringClock
	rc.Witness(5)
	rc.Witness(3)
	require.Equal(t, RingID(5), rc.Current())
	rc.Witness(9)
	require.Equal(t, RingID(9), rc.Current())
}
