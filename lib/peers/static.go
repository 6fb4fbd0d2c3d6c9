package peers

import "fmt"

// NewStaticProvider creates a provider backed by a fixed list of peer
// addresses ("host" or "host:port"), typically from configuration.
func NewStaticProvider(addrs []string) IPeerProvider {
	return &staticProvider{addrs: addrs}
}

type staticProvider struct {
	addrs []string
	peers []Peer
}

// --------------------------------------------------------------------------
// Interface Methods (docu see peers.IPeerProvider)
// --------------------------------------------------------------------------

func (p *staticProvider) Init() error {
	peers := make([]Peer, 0, len(p.addrs))
	for _, addr := range p.addrs {
		if addr == "" {
			continue
		}
		peer, err := ParsePeer(addr)
		if err != nil {
			return fmt.Errorf("static peer list: %w", err)
		}
		peers = append(peers, peer)
	}
	p.peers = peers
	return nil
}

func (p *staticProvider) Get() ([]Peer, error) {
	// copy so callers can never mutate the configured membership
	out := make([]Peer, len(p.peers))
	copy(out, p.peers)
	return out, nil
}
