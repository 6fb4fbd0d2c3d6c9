package exchange

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/dSync/lib/codec"
	"github.com/ValentinKolb/dSync/lib/store/mstore"
)

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func newTestEndpoint(t *testing.T) (*mstore.MemoryStore, *httptest.Server) {
	t.Helper()
	s := mstore.NewMemoryStore(codec.NewJSONCodec(), nil)
	srv := httptest.NewServer(NewServer(s, "", false).Handler())
	t.Cleanup(srv.Close)
	return s, srv
}

func encode(t *testing.T, batch codec.Batch) []byte {
	t.Helper()
	blob, err := codec.NewJSONCodec().Serialize(batch)
	if err != nil {
		t.Fatalf("encode batch: %v", err)
	}
	return blob
}

func doPut(t *testing.T, url string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPut, url+"/", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("put failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

// TestPullEmptyVersion tests that GET / returns the full snapshot
func TestPullEmptyVersion(t *testing.T) {
	s, srv := newTestEndpoint(t)
	if err := s.Set(encode(t, codec.Batch{"a": {Value: []byte("1"), CreatedAt: 1}})); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	batch := codec.Batch{}
	if err := codec.NewJSONCodec().Deserialize(body, &batch); err != nil {
		t.Fatalf("snapshot body undecodable: %v", err)
	}
	if len(batch) != 1 {
		t.Errorf("snapshot has %d entries, want 1", len(batch))
	}
}

// TestPullStaleVersion tests that a mismatching version yields the snapshot
func TestPullStaleVersion(t *testing.T) {
	s, srv := newTestEndpoint(t)
	if err := s.Set(encode(t, codec.Batch{"a": {Value: []byte("1"), CreatedAt: 1}})); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	resp, err := http.Get(srv.URL + "/definitely-stale")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("got status %d, want 200", resp.StatusCode)
	}
}

// TestPullCurrentVersion tests that a matching version yields 204 and no body
func TestPullCurrentVersion(t *testing.T) {
	s, srv := newTestEndpoint(t)
	if err := s.Set(encode(t, codec.Batch{"a": {Value: []byte("1"), CreatedAt: 1}})); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	version, err := s.Version()
	if err != nil {
		t.Fatalf("version: %v", err)
	}

	resp, err := http.Get(srv.URL + "/" + version)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("got status %d, want 204", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if len(body) != 0 {
		t.Errorf("204 response carried a body of %d bytes", len(body))
	}
}

// TestPushMerges tests that a pushed blob lands in the store
func TestPushMerges(t *testing.T) {
	s, srv := newTestEndpoint(t)

	resp := doPut(t, srv.URL, encode(t, codec.Batch{"k": {Value: []byte("v"), CreatedAt: 7}}))
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("got status %d, want 204", resp.StatusCode)
	}

	value, loaded, err := s.Get("k")
	if err != nil || !loaded {
		t.Fatalf("pushed entry missing: loaded=%v err=%v", loaded, err)
	}
	if !bytes.Equal(value, []byte("v")) {
		t.Errorf("got %q, want %q", value, "v")
	}
}

// TestPushUndecodable tests that garbage bodies give 422 and leave the store
// unchanged
func TestPushUndecodable(t *testing.T) {
	s, srv := newTestEndpoint(t)
	before, _ := s.Version()

	resp := doPut(t, srv.URL, []byte("certainly not a batch"))
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("got status %d, want 422", resp.StatusCode)
	}

	after, _ := s.Version()
	if before != after {
		t.Errorf("rejected push mutated the store: %s -> %s", before, after)
	}
}

// TestMetricsEndpoint tests that metrics are exposed in Prometheus format
func TestMetricsEndpoint(t *testing.T) {
	_, srv := newTestEndpoint(t)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("metrics output misses process metrics")
	}
}

// TestClientPullPushRoundTrip tests the client against a live endpoint
func TestClientPullPushRoundTrip(t *testing.T) {
	s, srv := newTestEndpoint(t)
	addr := strings.TrimPrefix(srv.URL, "http://")
	client := NewClient(2 * time.Second)

	// push state in
	if err := client.Push(addr, encode(t, codec.Batch{"x": {Value: []byte("1"), CreatedAt: 5}})); err != nil {
		t.Fatalf("push failed: %v", err)
	}

	// pull with an empty version returns the snapshot
	blob, changed, err := client.Pull(addr, "")
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if !changed {
		t.Fatal("pull with empty version should report a change")
	}
	batch := codec.Batch{}
	if err := codec.NewJSONCodec().Deserialize(blob, &batch); err != nil {
		t.Fatalf("pulled blob undecodable: %v", err)
	}

	// pull with the current version reports no change
	version, _ := s.Version()
	_, changed, err = client.Pull(addr, version)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if changed {
		t.Error("pull with current version should report no change")
	}

	// a rejected push is surfaced and counted
	if err := client.Push(addr, []byte("garbage")); err == nil {
		t.Error("expected error pushing garbage")
	}
	if client.Failures() == 0 {
		t.Error("failure counter not incremented")
	}
}
