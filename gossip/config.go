package gossip

import (
	"fmt"
	"time"
)

// maxInFlight bounds the concurrent per-peer exchange requests within one
// gossip tick.
const maxInFlight = 4

// Config holds the tuning parameters shared by the publish and pull loops.
type Config struct {
	// PushInterval is the cadence of the publish (push-diff) loop.
	PushInterval time.Duration
	// PullInterval is the cadence of the pull (full-snapshot) loop.
	PullInterval time.Duration
	// FanOut is the number of peers sampled per tick (r0).
	FanOut int
	// Timeout bounds every single peer request.
	Timeout time.Duration
	// TargetPort is used for peers that carry no port of their own.
	TargetPort int
	// LocalPort is the local exchange listening port, the last resort of
	// the peer port fallback chain.
	LocalPort int
}

// Validate checks the configuration for values the loops cannot run with.
func (c Config) Validate() error {
	if c.PushInterval <= 0 {
		return fmt.Errorf("push interval must be positive")
	}
	if c.PullInterval <= 0 {
		return fmt.Errorf("pull interval must be positive")
	}
	if c.FanOut <= 0 {
		return fmt.Errorf("fan-out (r0) must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("peer timeout must be positive")
	}
	return nil
}
