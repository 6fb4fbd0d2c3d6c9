package agent

import (
	"io"
	"net/http"

	"github.com/ValentinKolb/dSync/lib/store"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("agent")

// NewServer creates the application-facing endpoint a local process talks
// to. It only ever touches the store through Get, GetOr and Set, so an
// application never observes replication internals.
func NewServer(s store.IStore, endpoint string, debug bool) *Server {
	return &Server{
		store:    s,
		endpoint: endpoint,
		debug:    debug,
	}
}

// Server serves the local read/write surface:
//
//	GET /kv/{key}            -> 200 + value, 404 if absent
//	GET /kv/{key}?default=.. -> 200 + value or the supplied default
//	PUT /kv                  -> merge body batch, 204 ok / 422 decode failure
type Server struct {
	store    store.IStore
	endpoint string
	debug    bool
}

// Handler builds the route table. Split from Listen so tests can drive the
// endpoint through httptest.
func (t *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	handle := func(pattern string, h http.HandlerFunc) {
		if t.debug {
			h = loggerMiddleware(h)
		}
		mux.HandleFunc(pattern, h)
	}

	handle("GET /kv/{key}", t.handleGet)
	handle("PUT /kv", t.handleSet)

	return mux
}

// Listen starts the agent endpoint and blocks for the lifetime of the
// process.
func (t *Server) Listen() error {
	Logger.Infof("starting agent endpoint on %s", t.endpoint)
	return http.ListenAndServe(t.endpoint, t.Handler())
}

// --------------------------------------------------------------------------
// Handlers
// --------------------------------------------------------------------------

// handleGet reads a single value. A default query parameter turns a miss
// into a hit with the supplied value.
func (t *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	metrics.GetOrCreateCounter("dsync_agent_gets_total").Inc()

	key := r.PathValue("key")

	if def, ok := r.URL.Query()["default"]; ok && len(def) > 0 {
		value, err := t.store.GetOr(key, []byte(def[0]))
		if err != nil {
			Logger.Errorf("read of %q failed: %v", key, err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeValue(w, value)
		return
	}

	value, loaded, err := t.store.Get(key)
	if err != nil {
		Logger.Errorf("read of %q failed: %v", key, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !loaded {
		http.Error(w, "key not found", http.StatusNotFound)
		return
	}
	writeValue(w, value)
}

// handleSet merges a batch blob written by a local application.
func (t *Server) handleSet(w http.ResponseWriter, r *http.Request) {
	metrics.GetOrCreateCounter("dsync_agent_sets_total").Inc()

	body, err := io.ReadAll(r.Body)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusInternalServerError)
		return
	}

	if err := t.store.Set(body); err != nil {
		if store.IsDecodeError(err) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		Logger.Errorf("local write failed: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeValue(w http.ResponseWriter, value []byte) {
	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := w.Write(value); err != nil {
		Logger.Errorf("failed to write value response: %v", err)
	}
}
