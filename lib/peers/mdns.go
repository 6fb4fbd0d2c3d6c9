package peers

import (
	"context"
	"fmt"
	"sync"

	"github.com/grandcat/zeroconf"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("peers")

const mdnsService = "_dsync._tcp"

// NewMDNSProvider creates a provider that announces the local exchange
// endpoint via mDNS and discovers peers on the local network. nodeID must be
// unique per agent, port is the local exchange listening port.
func NewMDNSProvider(nodeID string, port int) IPeerProvider {
	return &mdnsProvider{
		nodeID: nodeID,
		port:   port,
	}
}

type mdnsProvider struct {
	nodeID string
	port   int

	initOnce sync.Once
	initErr  error

	server *zeroconf.Server
	cancel context.CancelFunc

	mu    sync.RWMutex
	peers map[string]Peer
}

// --------------------------------------------------------------------------
// Interface Methods (docu see peers.IPeerProvider)
// --------------------------------------------------------------------------

func (p *mdnsProvider) Init() error {
	p.initOnce.Do(func() {
		p.peers = make(map[string]Peer)

		server, err := zeroconf.Register(p.nodeID, mdnsService, "local.", p.port, []string{
			"node=" + p.nodeID,
		}, nil)
		if err != nil {
			p.initErr = fmt.Errorf("mdns register: %w", err)
			return
		}

		resolver, err := zeroconf.NewResolver(nil)
		if err != nil {
			server.Shutdown()
			p.initErr = fmt.Errorf("mdns resolver: %w", err)
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		entries := make(chan *zeroconf.ServiceEntry)

		go p.browseLoop(entries)

		if err := resolver.Browse(ctx, mdnsService, "local.", entries); err != nil {
			cancel()
			server.Shutdown()
			p.initErr = fmt.Errorf("mdns browse: %w", err)
			return
		}

		p.server = server
		p.cancel = cancel
		log.Infof("mdns provider announcing %s on port %d", p.nodeID, p.port)
	})
	return p.initErr
}

func (p *mdnsProvider) Get() ([]Peer, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Peer, 0, len(p.peers))
	for _, peer := range p.peers {
		out = append(out, peer)
	}
	return out, nil
}

// Stop withdraws the mDNS announcement and ends discovery.
func (p *mdnsProvider) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	if p.server != nil {
		p.server.Shutdown()
	}
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (p *mdnsProvider) browseLoop(entries <-chan *zeroconf.ServiceEntry) {
	for entry := range entries {
		if p.isSelf(entry) {
			continue
		}
		p.mu.Lock()
		for _, ip := range entry.AddrIPv4 {
			peer := Peer{Host: ip.String(), Port: entry.Port}
			p.peers[peer.String()] = peer
		}
		for _, ip := range entry.AddrIPv6 {
			peer := Peer{Host: ip.String(), Port: entry.Port}
			p.peers[peer.String()] = peer
		}
		p.mu.Unlock()
	}
}

// isSelf returns true if the discovered service entry belongs to this node.
func (p *mdnsProvider) isSelf(entry *zeroconf.ServiceEntry) bool {
	for _, txt := range entry.Text {
		if txt == "node="+p.nodeID {
			return true
		}
	}
	return false
}
