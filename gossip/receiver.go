package gossip

import (
	"sync"
	"time"

	"github.com/ValentinKolb/dSync/exchange"
	"github.com/ValentinKolb/dSync/lib/peers"
	"github.com/ValentinKolb/dSync/lib/store"
	"github.com/ValentinKolb/dSync/lib/store/cqueue"
	"github.com/VictoriaMetrics/metrics"
)

// NewReceiver creates the pull side of the anti-entropy protocol. Fetched
// snapshots are handed to the commit queue so a large merge never stalls the
// next tick.
func NewReceiver(s store.IStore, queue *cqueue.CommitQueue, sampler *peers.Sampler, client *exchange.Client, cfg Config) *Receiver {
	return &Receiver{
		store:   s,
		queue:   queue,
		sampler: sampler,
		client:  client,
		cfg:     cfg,
		stop:    make(chan struct{}),
	}
}

// Receiver periodically asks a random sample of peers for their state,
// sending the local version along. Only peers whose version differs answer
// with a snapshot, so the expensive full-state transfer happens exactly when
// a mismatch proves divergence.
type Receiver struct {
	store   store.IStore
	queue   *cqueue.CommitQueue
	sampler *peers.Sampler
	client  *exchange.Client
	cfg     Config

	startOnce sync.Once
	stop      chan struct{}
	wg        sync.WaitGroup
}

// Start launches the pull loop. It runs until Stop is called at process
// shutdown.
func (r *Receiver) Start() {
	r.startOnce.Do(func() {
		r.wg.Add(1)
		go r.loop()
		log.Infof("receiver started (interval %s, fan-out %d)", r.cfg.PullInterval, r.cfg.FanOut)
	})
}

// Stop terminates the loop and waits for it to finish.
func (r *Receiver) Stop() {
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
	r.wg.Wait()
}

func (r *Receiver) loop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.PullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.tick()
		}
	}
}

// tick runs one pull round. Any single-peer failure is logged and skipped;
// it never aborts the round.
func (r *Receiver) tick() {
	metrics.GetOrCreateCounter("dsync_gossip_pull_ticks_total").Inc()

	sampled, err := r.sampler.Sample()
	if err != nil {
		log.Warningf("pull tick: sampling failed: %v", err)
		return
	}
	if len(sampled) == 0 {
		return
	}

	version, err := r.store.Version()
	if err != nil {
		log.Errorf("pull tick: version: %v", err)
		return
	}

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

			addr := peer.Addr(r.cfg.TargetPort, r.cfg.LocalPort)
			blob, changed, err := r.client.Pull(addr, version)
			if err != nil {
				metrics.GetOrCreateCounter("dsync_gossip_pull_failures_total").Inc()
				log.Warningf("pull from %s failed: %v", addr, err)
				return
			}
			if !changed {
				// the peer holds exactly our state
				return
			}

			metrics.GetOrCreateCounter("dsync_gossip_snapshots_received_total").Inc()
			if err := r.queue.Submit(blob); err != nil {
				log.Warningf("pull from %s: %v", addr, err)
			}
		}(peer)
	}
	wg.Wait()
}
