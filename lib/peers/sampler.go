package peers

import (
	"fmt"
	"math/rand/v2"
)

// Sampler draws a bounded, uniformly random subset of peers from a provider
// on each synchronization tick. The publish and the pull loop each call
// Sample independently, the two never share a draw.
type Sampler struct {
	provider IPeerProvider
	fanOut   int
}

// NewSampler creates a sampler with the given fan-out (the r0 configuration
// value, peers contacted per tick).
func NewSampler(provider IPeerProvider, fanOut int) (*Sampler, error) {
	if fanOut <= 0 {
		return nil, fmt.Errorf("fan-out must be positive, got %d", fanOut)
	}
	return &Sampler{
		provider: provider,
		fanOut:   fanOut,
	}, nil
}

// Sample fetches the current membership and draws min(fanOut, len(peers))
// peers without replacement.
//
// Thread-safety: safe for concurrent use from both gossip loops.
func (s *Sampler) Sample() ([]Peer, error) {
	peers, err := s.provider.Get()
	if err != nil {
		return nil, fmt.Errorf("peer provider: %w", err)
	}
	if len(peers) == 0 {
		return nil, nil
	}

	k := s.fanOut
	if k > len(peers) {
		k = len(peers)
	}

	out := make([]Peer, 0, k)
	for _, idx := range rand.Perm(len(peers))[:k] {
		out = append(out, peers[idx])
	}
	return out, nil
}
