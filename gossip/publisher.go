package gossip

import (
	"bytes"
	"sync"
	"time"

	"github.com/ValentinKolb/dSync/exchange"
	"github.com/ValentinKolb/dSync/lib/peers"
	"github.com/ValentinKolb/dSync/lib/store"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("gossip")

// NewPublisher creates the push side of the anti-entropy protocol.
func NewPublisher(s store.IStore, sampler *peers.Sampler, client *exchange.Client, cfg Config) *Publisher {
	return &Publisher{
		store:   s,
		sampler: sampler,
		client:  client,
		cfg:     cfg,
		stop:    make(chan struct{}),
	}
}

// Publisher periodically computes the diff since its last publication and
// pushes it to a random sample of peers. Decoupling the push cadence from
// the mutation rate bounds the network cost independently of write
// burstiness; diffing avoids re-sending unchanged data.
//
// Peers answer a push with an empty 204; the response body is never merged
// back into the local store.
type Publisher struct {
	store   store.IStore
	sampler *peers.Sampler
	client  *exchange.Client
	cfg     Config

	// publication baseline, only touched by the loop goroutine
	lastSnapshot []byte
	lastVersion  string

	startOnce sync.Once
	stop      chan struct{}
	wg        sync.WaitGroup
}

// Start launches the publish loop. It runs until Stop is called at process
// shutdown.
func (p *Publisher) Start() {
	p.startOnce.Do(func() {
		p.wg.Add(1)
		go p.loop()
		log.Infof("publisher started (interval %s, fan-out %d)", p.cfg.PushInterval, p.cfg.FanOut)
	})
}

// Stop terminates the loop and waits for it to finish.
func (p *Publisher) Stop() {
	select {
	case <-p.stop:
	default:
		close(p.stop)
	}
	p.wg.Wait()
}

func (p *Publisher) loop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.PushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

// tick runs one publish round. Any single-peer failure is logged and
// skipped; it never aborts the round.
func (p *Publisher) tick() {
	metrics.GetOrCreateCounter("dsync_gossip_publish_ticks_total").Inc()

	version, err := p.store.Version()
	if err != nil {
		log.Errorf("publish tick: version: %v", err)
		return
	}
	// nothing changed since the last publication
	if version == p.lastVersion {
		return
	}

	currentRoot, err := p.store.GetRoot()
	if err != nil {
		log.Errorf("publish tick: snapshot: %v", err)
		return
	}
	// version moved but the serialized content is identical, skip the send
	if bytes.Equal(currentRoot, p.lastSnapshot) {
		return
	}

	payload, err := p.store.Diff(p.lastSnapshot)
	if err != nil {
		// diff unavailable is not an error, trade bandwidth for correctness
		log.Warningf("publish tick: diff failed, sending full snapshot: %v", err)
		payload = currentRoot
	}

	sampled, err := p.sampler.Sample()
	if err != nil {
		log.Warningf("publish tick: sampling failed: %v", err)
		return
	}

	p.fanOutPush(sampled, payload)

	p.lastSnapshot = currentRoot
	if p.lastVersion, err = p.store.Version(); err != nil {
		log.Errorf("publish tick: version: %v", err)
	}
}

// fanOutPush pushes the payload to every sampled peer with bounded
// concurrency.
func (p *Publisher) fanOutPush(sampled []peers.Peer, payload []byte) {
	// the buffered channel acts as a counting semaphore
	sem := make(chan struct{}, maxInFlight)
	var wg sync.WaitGroup

	for _, peer := range sampled {
		wg.Add(1)
		sem <- struct{}{}
		go func(peer peers.Peer) {
			defer func() {
				<-sem
				wg.Done()
			}()

			addr := peer.Addr(p.cfg.TargetPort, p.cfg.LocalPort)
			if err := p.client.Push(addr, payload); err != nil {
				metrics.GetOrCreateCounter("dsync_gossip_push_failures_total").Inc()
				log.Warningf("push to %s failed: %v", addr, err)
				return
			}
			metrics.GetOrCreateCounter("dsync_gossip_pushes_total").Inc()
		}(peer)
	}
	wg.Wait()
}
