package mstore

import "time"

// --------------------------------------------------------------------------
// Purger (background expiry sweep)
// --------------------------------------------------------------------------

// Activate starts the background purge sweep with the given interval.
// Construction and activation are deliberately separate steps: NewMemoryStore
// never spawns goroutines, Activate does. Calling Activate more than once has
// no effect.
//
// The sweep runs until Close is called. A sweep that finds nothing to remove
// is a no-op.
func (s *MemoryStore) Activate(purgeInterval time.Duration) {
	s.activateOnce.Do(func() {
		s.wg.Add(1)
		go s.purgeLoop(purgeInterval)
		log.Infof("purger started (interval %s)", purgeInterval)
	})
}

// Close stops the background purge sweep and waits for it to finish.
// The store itself remains readable and writable; only maintenance stops.
func (s *MemoryStore) Close() {
	// Activate the sweep first if it never ran, so Close never blocks on a
	// wait group that was never armed and remains idempotent.
	s.Activate(time.Hour)
	select {
	case <-s.stop:
		// already closed
	default:
		close(s.stop)
	}
	s.wg.Wait()
}

func (s *MemoryStore) purgeLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			removed, err := s.Purge()
			if err != nil {
				log.Errorf("purge sweep failed: %v", err)
				continue
			}
			if removed > 0 {
				log.Debugf("purge sweep removed %d expired entries", removed)
			}
		}
	}
}
