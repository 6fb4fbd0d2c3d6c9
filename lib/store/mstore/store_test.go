package mstore

import (
	"bytes"
	"testing"
	"time"

	"github.com/ValentinKolb/dSync/lib/codec"
	"github.com/ValentinKolb/dSync/lib/store"
)

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// testClock is a manually advanced time source
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestStore(t *testing.T, opts *Options) (*MemoryStore, *testClock) {
	t.Helper()
	clock := &testClock{now: time.UnixMilli(1_000_000)}
	if opts == nil {
		opts = DefaultOptions()
	}
	opts.Clock = clock.Now
	return NewMemoryStore(codec.NewJSONCodec(), opts), clock
}

// encode serializes a batch with the same codec the test stores use
func encode(t *testing.T, batch codec.Batch) []byte {
	t.Helper()
	blob, err := codec.NewJSONCodec().Serialize(batch)
	if err != nil {
		t.Fatalf("encode batch: %v", err)
	}
	return blob
}

func mustSet(t *testing.T, s *MemoryStore, batch codec.Batch) {
	t.Helper()
	if err := s.Set(encode(t, batch)); err != nil {
		t.Fatalf("set failed: %v", err)
	}
}

func mustGet(t *testing.T, s *MemoryStore, key string) []byte {
	t.Helper()
	value, loaded, err := s.Get(key)
	if err != nil {
		t.Fatalf("get %q failed: %v", key, err)
	}
	if !loaded {
		t.Fatalf("get %q: not found", key)
	}
	return value
}

func version(t *testing.T, s *MemoryStore) string {
	t.Helper()
	v, err := s.Version()
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	return v
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

// TestSetGetScenario runs the canonical write/conflict sequence: a fresh
// write is visible, an older concurrent write is rejected, a newer one wins.
func TestSetGetScenario(t *testing.T) {
	s, _ := newTestStore(t, nil)

	mustSet(t, s, codec.Batch{"a": {Value: []byte("1"), CreatedAt: 100}})
	if got := mustGet(t, s, "a"); !bytes.Equal(got, []byte("1")) {
		t.Errorf("got %q, want %q", got, "1")
	}

	// older write must be rejected
	mustSet(t, s, codec.Batch{"a": {Value: []byte("2"), CreatedAt: 50}})
	if got := mustGet(t, s, "a"); !bytes.Equal(got, []byte("1")) {
		t.Errorf("older write accepted: got %q, want %q", got, "1")
	}

	// newer write must win
	mustSet(t, s, codec.Batch{"a": {Value: []byte("3"), CreatedAt: 200}})
	if got := mustGet(t, s, "a"); !bytes.Equal(got, []byte("3")) {
		t.Errorf("got %q, want %q", got, "3")
	}
}

// TestLWWNoOp tests that an equal creation timestamp never replaces the
// stored value
func TestLWWNoOp(t *testing.T) {
	s, _ := newTestStore(t, nil)

	mustSet(t, s, codec.Batch{"a": {Value: []byte("first"), CreatedAt: 100}})
	v1 := version(t, s)

	mustSet(t, s, codec.Batch{"a": {Value: []byte("second"), CreatedAt: 100}})
	if got := mustGet(t, s, "a"); !bytes.Equal(got, []byte("first")) {
		t.Errorf("equal timestamp replaced value: got %q", got)
	}
	if v2 := version(t, s); v2 != v1 {
		t.Errorf("rejected merge changed version: %s -> %s", v1, v2)
	}
}

// TestGetOr tests the default-value convenience wrapper
func TestGetOr(t *testing.T) {
	s, _ := newTestStore(t, nil)

	got, err := s.GetOr("missing", []byte("fallback"))
	if err != nil {
		t.Fatalf("getOr failed: %v", err)
	}
	if !bytes.Equal(got, []byte("fallback")) {
		t.Errorf("got %q, want fallback", got)
	}

	mustSet(t, s, codec.Batch{"present": {Value: []byte("real"), CreatedAt: 1}})
	got, err = s.GetOr("present", []byte("fallback"))
	if err != nil {
		t.Fatalf("getOr failed: %v", err)
	}
	if !bytes.Equal(got, []byte("real")) {
		t.Errorf("got %q, want real", got)
	}
}

// TestExpiryVisibility tests that an expired entry is invisible to reads
// before any purge sweep ran
func TestExpiryVisibility(t *testing.T) {
	s, clock := newTestStore(t, nil)

	expiresAt := clock.Now().Add(time.Second).UnixMilli()
	mustSet(t, s, codec.Batch{"short": {Value: []byte("x"), CreatedAt: 1, ExpiresAt: expiresAt}})

	if _, loaded, _ := s.Get("short"); !loaded {
		t.Fatal("entry should be visible before expiry")
	}

	clock.Advance(2 * time.Second)

	if _, loaded, _ := s.Get("short"); loaded {
		t.Error("expired entry must be invisible even without a purge sweep")
	}
	if n, _ := s.Len(); n != 0 {
		t.Errorf("expired entry counted as visible, len = %d", n)
	}
}

// TestExpiredIncomingSkipped tests that already expired entries are never
// merged
func TestExpiredIncomingSkipped(t *testing.T) {
	s, clock := newTestStore(t, nil)

	mustSet(t, s, codec.Batch{
		"dead": {Value: []byte("x"), CreatedAt: 1, ExpiresAt: clock.Now().Add(-time.Second).UnixMilli()},
	})
	if _, loaded, _ := s.Get("dead"); loaded {
		t.Error("expired incoming entry was merged")
	}
}

// TestDefaultTTL tests that a configured default TTL is applied to incoming
// entries without an expiry of their own
func TestDefaultTTL(t *testing.T) {
	s, clock := newTestStore(t, &Options{DefaultTTL: time.Minute})

	mustSet(t, s, codec.Batch{
		"implicit": {Value: []byte("a"), CreatedAt: 1},
		"explicit": {Value: []byte("b"), CreatedAt: 2, ExpiresAt: clock.Now().Add(time.Hour).UnixMilli()},
	})

	clock.Advance(2 * time.Minute)

	if _, loaded, _ := s.Get("implicit"); loaded {
		t.Error("default TTL not applied: entry still visible after it elapsed")
	}
	if _, loaded, _ := s.Get("explicit"); !loaded {
		t.Error("explicit expiry was overridden by the default TTL")
	}
}

// TestSetDecodeError tests that malformed blobs are rejected without any
// mutation
func TestSetDecodeError(t *testing.T) {
	s, _ := newTestStore(t, nil)
	mustSet(t, s, codec.Batch{"a": {Value: []byte("1"), CreatedAt: 100}})
	v1 := version(t, s)

	err := s.Set([]byte("this is not a batch"))
	if err == nil {
		t.Fatal("expected decode error")
	}
	if !store.IsDecodeError(err) {
		t.Errorf("expected RetCDecodeError, got %v", err)
	}
	if v2 := version(t, s); v2 != v1 {
		t.Errorf("failed set mutated the store: version %s -> %s", v1, v2)
	}
}

// TestVersionStability tests that the version is order-independent and
// changes after any accepted mutation
func TestVersionStability(t *testing.T) {
	a, _ := newTestStore(t, nil)
	b, _ := newTestStore(t, nil)

	batch1 := codec.Batch{"x": {Value: []byte("1"), CreatedAt: 10}}
	batch2 := codec.Batch{"y": {Value: []byte("2"), CreatedAt: 20}}
	batch3 := codec.Batch{"z": {Value: []byte("3"), CreatedAt: 30}}

	// same entries, different merge order
	mustSet(t, a, batch1)
	mustSet(t, a, batch2)
	mustSet(t, a, batch3)

	mustSet(t, b, batch3)
	mustSet(t, b, batch1)
	mustSet(t, b, batch2)

	if version(t, a) != version(t, b) {
		t.Errorf("same entries, different versions: %s vs %s", version(t, a), version(t, b))
	}

	before := version(t, a)
	mustSet(t, a, codec.Batch{"x": {Value: []byte("new"), CreatedAt: 99}})
	if version(t, a) == before {
		t.Error("accepted mutation did not change the version")
	}
}

// TestVersionCached tests that the version is only recomputed after a
// mutation marked the store dirty
func TestVersionCached(t *testing.T) {
	s, _ := newTestStore(t, nil)

	if version(t, s) != "0000000000000000" {
		t.Errorf("empty store version: got %s", version(t, s))
	}

	mustSet(t, s, codec.Batch{"a": {Value: []byte("1"), CreatedAt: 1}})
	v1 := version(t, s)
	v2 := version(t, s)
	if v1 != v2 {
		t.Errorf("version not stable between reads: %s vs %s", v1, v2)
	}
}

// TestDiffRoundTrip tests that applying diff(S0) computed from S1 to a store
// at S0 yields S1
func TestDiffRoundTrip(t *testing.T) {
	s, _ := newTestStore(t, nil)

	mustSet(t, s, codec.Batch{
		"a": {Value: []byte("1"), CreatedAt: 1},
		"b": {Value: []byte("2"), CreatedAt: 2},
	})
	baseline, err := s.GetRoot()
	if err != nil {
		t.Fatalf("getRoot failed: %v", err)
	}

	// move s forward to S1
	mustSet(t, s, codec.Batch{
		"b": {Value: []byte("2'"), CreatedAt: 20},
		"c": {Value: []byte("3"), CreatedAt: 3},
	})

	diff, err := s.Diff(baseline)
	if err != nil {
		t.Fatalf("diff failed: %v", err)
	}

	// a second store already at S0, catching up via the diff
	other, _ := newTestStore(t, nil)
	if err := other.Set(baseline); err != nil {
		t.Fatalf("apply baseline: %v", err)
	}
	if err := other.Set(diff); err != nil {
		t.Fatalf("apply diff: %v", err)
	}

	if version(t, s) != version(t, other) {
		t.Errorf("diff round trip diverged: %s vs %s", version(t, s), version(t, other))
	}
	if got := mustGet(t, other, "b"); !bytes.Equal(got, []byte("2'")) {
		t.Errorf("got %q, want %q", got, "2'")
	}
}

// TestDiffFallback tests that an unusable baseline yields the full snapshot
func TestDiffFallback(t *testing.T) {
	s, _ := newTestStore(t, nil)
	mustSet(t, s, codec.Batch{
		"a": {Value: []byte("1"), CreatedAt: 1},
		"b": {Value: []byte("2"), CreatedAt: 2},
	})

	for _, baseline := range [][]byte{nil, []byte("garbage")} {
		blob, err := s.Diff(baseline)
		if err != nil {
			t.Fatalf("diff with bad baseline failed: %v", err)
		}
		batch := codec.Batch{}
		if err := codec.NewJSONCodec().Deserialize(blob, &batch); err != nil {
			t.Fatalf("diff output undecodable: %v", err)
		}
		if len(batch) != 2 {
			t.Errorf("expected full snapshot fallback (2 entries), got %d", len(batch))
		}
	}
}

// TestConvergence tests that two stores that exchanged all their entries end
// up with identical visible state, regardless of exchange order
func TestConvergence(t *testing.T) {
	a, _ := newTestStore(t, nil)
	b, _ := newTestStore(t, nil)

	updatesA := codec.Batch{
		"k1": {Value: []byte("a1"), CreatedAt: 100},
		"k2": {Value: []byte("a2"), CreatedAt: 300},
	}
	updatesB := codec.Batch{
		"k1": {Value: []byte("b1"), CreatedAt: 200},
		"k3": {Value: []byte("b3"), CreatedAt: 50},
	}

	mustSet(t, a, updatesA)
	mustSet(t, b, updatesB)

	// full exchange in both directions, asymmetric order
	rootA, _ := a.GetRoot()
	rootB, _ := b.GetRoot()
	if err := a.Set(rootB); err != nil {
		t.Fatalf("merge into a: %v", err)
	}
	if err := b.Set(rootA); err != nil {
		t.Fatalf("merge into b: %v", err)
	}

	if version(t, a) != version(t, b) {
		t.Fatalf("stores diverged: %s vs %s", version(t, a), version(t, b))
	}
	// LWW winners
	if got := mustGet(t, a, "k1"); !bytes.Equal(got, []byte("b1")) {
		t.Errorf("k1: got %q, want b1 (greater CreatedAt)", got)
	}
	if got := mustGet(t, b, "k2"); !bytes.Equal(got, []byte("a2")) {
		t.Errorf("k2: got %q, want a2", got)
	}

	// merging again must be idempotent
	before := version(t, a)
	rootB2, _ := b.GetRoot()
	if err := a.Set(rootB2); err != nil {
		t.Fatalf("re-merge: %v", err)
	}
	if version(t, a) != before {
		t.Error("idempotent re-merge changed the version")
	}
}
