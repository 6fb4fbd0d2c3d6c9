package peers

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Peer Type
// --------------------------------------------------------------------------

// Peer is a candidate replication partner: a bare network host or a
// host+port pair. The port is optional, a zero port is resolved by the
// consumer through the fallback chain in Addr.
type Peer struct {
	Host string
	Port int
}

// ParsePeer parses "host" or "host:port" into a Peer.
func ParsePeer(s string) (Peer, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Peer{}, fmt.Errorf("empty peer address")
	}
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		// a bare host without port
		return Peer{Host: s}, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return Peer{}, fmt.Errorf("invalid peer port in %q", s)
	}
	return Peer{Host: host, Port: port}, nil
}

// Addr resolves the dialable address of the peer. A missing port falls back
// to the configured target port, and finally to the local listening port
// (peers are assumed to mirror our own setup when nothing else is known).
func (p Peer) Addr(targetPort, localPort int) string {
	port := p.Port
	if port == 0 {
		port = targetPort
	}
	if port == 0 {
		port = localPort
	}
	return net.JoinHostPort(p.Host, strconv.Itoa(port))
}

// String returns the peer in the form it was configured in.
func (p Peer) String() string {
	if p.Port == 0 {
		return p.Host
	}
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IPeerProvider supplies the current peer membership to the gossip layer.
//
// Init performs idempotent setup and is called once at agent start. Get is
// called fresh on every sampling request and must be safe for repeated and
// concurrent use from both gossip loops; a provider may cache internally but
// must reflect reasonably current membership.
type IPeerProvider interface {
	Init() error
	Get() ([]Peer, error)
}
