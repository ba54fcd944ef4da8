package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/michael-schnell/esjc/internal/tasks"
)

func TestStaticSingleEndpoint(t *testing.T) {
	ep := tasks.NodeEndpoints{TCP: "127.0.0.1:1113"}
	d := NewStatic(ep)

	got, err := d.Discover(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, ep, got)
}

func TestStaticNoEndpoints(t *testing.T) {
	d := NewStatic()
	_, err := d.Discover(context.Background(), nil)
	require.ErrorIs(t, err, ErrNoCandidates)
}

func TestStaticAvoidsFailedEndpoint(t *testing.T) {
	a := tasks.NodeEndpoints{TCP: "10.0.0.1:1113"}
	b := tasks.NodeEndpoints{TCP: "10.0.0.2:1113"}
	d := NewStatic(a, b)

	got, err := d.Discover(context.Background(), &a)
	require.NoError(t, err)
	require.NotEqual(t, a, got)
}

type fakeResolver struct {
	seeds []string
	err   error
}

func (f *fakeResolver) ResolveSeeds(context.Context, string, int) ([]string, error) {
	return f.seeds, f.err
}

type fakeGossip struct {
	members map[string][]tasks.NodeEndpoints
	err     error
}

func (f *fakeGossip) Gossip(_ context.Context, seed string) ([]tasks.NodeEndpoints, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.members[seed], nil
}

func TestClusterDiscoversFromGossip(t *testing.T) {
	master := tasks.NodeEndpoints{TCP: "10.0.0.5:1113"}
	resolver := &fakeResolver{seeds: []string{"seed1", "seed2"}}
	gossip := &fakeGossip{members: map[string][]tasks.NodeEndpoints{
		"seed1": {master},
	}}

	c := NewCluster("cluster.internal", 2113, 2, resolver, gossip)
	got, err := c.Discover(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, master, got)
}

func TestClusterNoSeeds(t *testing.T) {
	resolver := &fakeResolver{seeds: nil}
	c := NewCluster("cluster.internal", 2113, 2, resolver, &fakeGossip{})

	_, err := c.Discover(context.Background(), nil)
	require.ErrorIs(t, err, ErrNoCandidates)
}

func TestClusterGossipFailsEverywhere(t *testing.T) {
	resolver := &fakeResolver{seeds: []string{"seed1"}}
	gossip := &fakeGossip{err: errors.New("unreachable")}
	c := NewCluster("cluster.internal", 2113, 1, resolver, gossip)

	_, err := c.Discover(context.Background(), nil)
	require.Error(t, err)
}
