// Package discovery implements endpoint discovery: either a static
// preconfigured endpoint pair, or DNS/gossip-based cluster resolution of a
// master/alive node. Discovery either resolves or fails; failures are not
// retried here, callers retry by scheduling a new attempt after their own
// reconnection delay.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/michael-schnell/esjc/internal/tasks"
)

// ErrNoCandidates is returned when discovery has no endpoint to offer.
var ErrNoCandidates = errors.New("discovery: no candidate endpoints")

// Discoverer resolves candidate node endpoints. failedEndpoint, if
// non-empty, is the endpoint that just failed to connect/authenticate, used
// by cluster discovery to avoid immediately re-offering the same node.
type Discoverer interface {
	Discover(ctx context.Context, failedEndpoint *tasks.NodeEndpoints) (tasks.NodeEndpoints, error)
}

// Static returns a fixed, preconfigured set of candidate endpoints,
// round-robining past a failed one.
type Static struct {
	Endpoints []tasks.NodeEndpoints
	rr        int
}

// NewStatic builds a Static discoverer over one or more candidate endpoints.
func NewStatic(endpoints ...tasks.NodeEndpoints) *Static {
	return &Static{Endpoints: endpoints}
}

// Discover implements Discoverer.
func (s *Static) Discover(_ context.Context, failedEndpoint *tasks.NodeEndpoints) (tasks.NodeEndpoints, error) {
	if len(s.Endpoints) == 0 {
		return tasks.NodeEndpoints{}, ErrNoCandidates
	}
	if len(s.Endpoints) == 1 {
		return s.Endpoints[0], nil
	}

	s.rr = (s.rr + 1) % len(s.Endpoints)
	candidate := s.Endpoints[s.rr]
	if failedEndpoint != nil && candidate == *failedEndpoint {
		s.rr = (s.rr + 1) % len(s.Endpoints)
		candidate = s.Endpoints[s.rr]
	}
	return candidate, nil
}

// GossipClient is the out-of-scope collaborator that speaks the cluster's
// gossip protocol: given a seed address, it returns the set of member
// endpoints the seed currently knows about, most-preferred first (e.g. the
// write master).
type GossipClient interface {
	Gossip(ctx context.Context, seed string) ([]tasks.NodeEndpoints, error)
}

// SeedResolver resolves a cluster DNS name to candidate seed addresses
// (e.g. via DNS SRV/A lookup). The concrete lookup mechanism is a
// collaborator concern.
type SeedResolver interface {
	ResolveSeeds(ctx context.Context, clusterDNS string, gossipPort int) ([]string, error)
}

// Cluster discovers a node via DNS-seeded gossip: resolve clusterDNS to a
// set of seed addresses, then query each seed's gossip endpoint until one
// answers, returning its top candidate.
type Cluster struct {
	ClusterDNS        string
	GossipPort        int
	MaxDiscoverAttempts int

	Seeds  SeedResolver
	Gossip GossipClient
	rand   *rand.Rand
}

// NewCluster builds a Cluster discoverer.
func NewCluster(clusterDNS string, gossipPort, maxDiscoverAttempts int, seeds SeedResolver, gossip GossipClient) *Cluster {
	return &Cluster{
		ClusterDNS:          clusterDNS,
		GossipPort:          gossipPort,
		MaxDiscoverAttempts: maxDiscoverAttempts,
		Seeds:               seeds,
		Gossip:              gossip,
		rand:                rand.New(rand.NewSource(1)),
	}
}

// Discover implements Discoverer.
func (c *Cluster) Discover(ctx context.Context, failedEndpoint *tasks.NodeEndpoints) (tasks.NodeEndpoints, error) {
	seedAddrs, err := c.Seeds.ResolveSeeds(ctx, c.ClusterDNS, c.GossipPort)
	if err != nil {
		return tasks.NodeEndpoints{}, fmt.Errorf("discovery: resolve seeds: %w", err)
	}
	if len(seedAddrs) == 0 {
		return tasks.NodeEndpoints{}, ErrNoCandidates
	}

	order := c.rand.Perm(len(seedAddrs))
	attempts := c.MaxDiscoverAttempts
	if attempts <= 0 {
		attempts = len(seedAddrs)
	}

	var lastErr error
	for i := 0; i < attempts && i < len(order); i++ {
		seed := seedAddrs[order[i]]
		members, err := c.Gossip.Gossip(ctx, seed)
		if err != nil {
			lastErr = err
			continue
		}
		for _, m := range members {
			if failedEndpoint != nil && m == *failedEndpoint {
				continue
			}
			return m, nil
		}
	}

	if lastErr != nil {
		return tasks.NodeEndpoints{}, fmt.Errorf("discovery: gossip failed: %w", lastErr)
	}
	return tasks.NodeEndpoints{}, ErrNoCandidates
}
