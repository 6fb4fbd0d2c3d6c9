package mstore

import (
	"fmt"
	"sync"
	"time"

	"github.com/ValentinKolb/dSync/lib/codec"
	"github.com/ValentinKolb/dSync/lib/store"
	"github.com/ValentinKolb/dSync/lib/util"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("store")

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// Options configures the in-memory store during initialization
type Options struct {
	// DefaultTTL is applied to incoming entries that carry no expiry of
	// their own. Zero means entries without an expiry live forever.
	DefaultTTL time.Duration
	// Clock overrides the time source (nil = time.Now). Used by tests.
	Clock func() time.Time
}

// DefaultOptions returns the default store options
func DefaultOptions() *Options {
	return &Options{}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMemoryStore creates a new in-memory versioned store. The codec is the
// only component that knows the structure of the blobs crossing the IStore
// boundary.
//
// The returned store is fully usable but passive: background maintenance
// (the purge sweep) only starts with an explicit call to Activate. Keeping
// construction free of goroutine side effects makes the store cheap to
// create in tests and lets the caller decide the sweep cadence.
//
// Thread-safety: the constructor itself is not thread-safe and should only
// be called once during initialization; the returned store is safe for
// concurrent use.
func NewMemoryStore(c codec.ISnapshotCodec, opts *Options) *MemoryStore {
	if opts == nil {
		opts = DefaultOptions()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &MemoryStore{
		codec:      c,
		clock:      clock,
		defaultTTL: opts.DefaultTTL,
		entries:    make(map[string]store.Entry),
		version:    util.FormatDigest(0),
		stop:       make(chan struct{}),
	}
}

// MemoryStore is the in-memory reference implementation of store.IStore.
//
// One instance is shared by reference among every component that reads or
// mutates replicated state (gossip publisher, gossip receiver, commit queue
// worker, purger, agent shim). All mutation paths funnel through the single
// write lock; reads proceed concurrently with each other but never with an
// in-progress mutation.
type MemoryStore struct {
	codec      codec.ISnapshotCodec
	clock      func() time.Time
	defaultTTL time.Duration

	mu      sync.RWMutex
	entries map[string]store.Entry
	dirty   bool
	version string

	// purger lifecycle, see purger.go
	activateOnce sync.Once
	stop         chan struct{}
	wg           sync.WaitGroup
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *MemoryStore) Get(key string) ([]byte, bool, error) {
	now := s.clock()

	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	// expired entries are invisible even before the purge sweep drops them
	if !ok || entry.Expired(now) {
		return nil, false, nil
	}
	return entry.Value, true, nil
}

func (s *MemoryStore) GetOr(key string, def []byte) ([]byte, error) {
	value, loaded, err := s.Get(key)
	if err != nil {
		return nil, err
	}
	if !loaded {
		return def, nil
	}
	return value, nil
}

func (s *MemoryStore) Set(blob []byte) error {
	batch := codec.Batch{}
	if err := s.codec.Deserialize(blob, &batch); err != nil {
		return store.NewError(store.RetCDecodeError, fmt.Sprintf("decode batch: %v", err))
	}

	now := s.clock()

	// the whole batch is applied under one exclusive section so that
	// partial-batch visibility is never observed by readers
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range batch {
		if entry.Expired(now) {
			continue
		}
		if s.defaultTTL > 0 && entry.ExpiresAt == 0 {
			entry.ExpiresAt = now.Add(s.defaultTTL).UnixMilli()
		}
		current, ok := s.entries[key]
		if !ok || entry.NewerThan(current) {
			s.entries[key] = entry
			s.dirty = true
		}
	}
	return nil
}

func (s *MemoryStore) Diff(baseline []byte) ([]byte, error) {
	snapshot := s.visible()

	base := codec.Batch{}
	if err := s.codec.Deserialize(baseline, &base); err != nil {
		// incremental computation is not possible, fall back to the full
		// snapshot instead of failing
		log.Debugf("diff baseline unusable, falling back to full snapshot: %v", err)
		return s.serialize(snapshot)
	}

	diff := codec.Batch{}
	for key, entry := range snapshot {
		baseEntry, ok := base[key]
		if !ok || entry.CreatedAt != baseEntry.CreatedAt {
			diff[key] = entry
		}
	}
	return s.serialize(diff)
}

func (s *MemoryStore) GetRoot() ([]byte, error) {
	return s.serialize(s.visible())
}

func (s *MemoryStore) Version() (string, error) {
	s.mu.RLock()
	if !s.dirty {
		version := s.version
		s.mu.RUnlock()
		return version, nil
	}
	s.mu.RUnlock()

	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dirty {
		var digest uint64
		for key, entry := range s.entries {
			if entry.Expired(now) {
				continue
			}
			digest = util.FoldHashes(digest, util.HashEntry(key, entry.CreatedAt))
		}
		s.version = util.FormatDigest(digest)
		s.dirty = false
	}
	return s.version, nil
}

func (s *MemoryStore) Purge() (int, error) {
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.entries {
		if entry.Expired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	// purged entries were already invisible, the version does not move
	return removed, nil
}

func (s *MemoryStore) Len() (int, error) {
	return len(s.visible()), nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// visible copies all non-expired entries under a short read lock. The
// expensive serialization and diff math happens on the copy, outside the
// lock, so large-state operations do not starve readers or writers.
func (s *MemoryStore) visible() codec.Batch {
	now := s.clock()

	s.mu.RLock()
	out := make(codec.Batch, len(s.entries))
	for key, entry := range s.entries {
		if entry.Expired(now) {
			continue
		}
		out[key] = entry
	}
	s.mu.RUnlock()
	return out
}

// serialize encodes a batch, mapping codec failures to internal errors
func (s *MemoryStore) serialize(batch codec.Batch) ([]byte, error) {
	blob, err := s.codec.Serialize(batch)
	if err != nil {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("encode batch: %v", err))
	}
	return blob, nil
}
