package exchange

import (
	"io"
	"net/http"
	"time"

	"github.com/ValentinKolb/dSync/lib/store"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("exchange")

// NewServer creates the exchange endpoint every agent exposes so peers can
// pull from and push to it. debug enables per-request logging.
func NewServer(s store.IStore, endpoint string, debug bool) *Server {
	return &Server{
		store:    s,
		endpoint: endpoint,
		debug:    debug,
	}
}

// Server serves the two-operation exchange surface:
//
//	GET /{version} -> 200 + full snapshot if version differs, 204 if equal
//	PUT /          -> merge body into the store, 204 ok / 422 decode failure
//
// plus GET /metrics with the process metrics in Prometheus text format.
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

	handle("GET /metrics", t.handleMetrics)
	handle("GET /{version}", t.handlePull)
	handle("GET /", t.handlePull)
	handle("PUT /", t.handlePush)

	return mux
}

// Listen starts the exchange endpoint and blocks for the lifetime of the
// process.
func (t *Server) Listen() error {
	metrics.GetOrCreateGauge("dsync_store_entries", func() float64 {
		n, err := t.store.Len()
		if err != nil {
			return 0
		}
		return float64(n)
	})

	Logger.Infof("starting exchange endpoint on %s", t.endpoint)
	return http.ListenAndServe(t.endpoint, t.Handler())
}

// --------------------------------------------------------------------------
// Handlers
// --------------------------------------------------------------------------

// handlePull answers a version-conditional snapshot request. The path
// component is the requester's currently known version and may be empty.
func (t *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	metrics.GetOrCreateCounter("dsync_exchange_pulls_total").Inc()

	remoteVersion := r.PathValue("version")

	localVersion, err := t.store.Version()
	if err != nil {
		Logger.Errorf("version computation failed: %v", err)
		http.Error(w, "version unavailable", http.StatusInternalServerError)
		return
	}

	if remoteVersion == localVersion {
		// the peer already holds exactly our state
		w.WriteHeader(http.StatusNoContent)
		return
	}

	blob, err := t.store.GetRoot()
	if err != nil {
		Logger.Errorf("snapshot serialization failed: %v", err)
		http.Error(w, "snapshot unavailable", http.StatusInternalServerError)
		return
	}

	metrics.GetOrCreateCounter("dsync_exchange_snapshots_served_total").Inc()
	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := w.Write(blob); err != nil {
		Logger.Errorf("failed to write snapshot response: %v", err)
	}
}

// handlePush merges a pushed blob into the local store.
func (t *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	metrics.GetOrCreateCounter("dsync_exchange_pushes_total").Inc()

	body, err := io.ReadAll(r.Body)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusInternalServerError)
		return
	}

	if err := t.store.Set(body); err != nil {
		if store.IsDecodeError(err) {
			metrics.GetOrCreateCounter("dsync_exchange_push_rejects_total").Inc()
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		Logger.Errorf("push merge failed: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleMetrics exposes process metrics in Prometheus text format.
func (t *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	metrics.WritePrometheus(w, true)
}

// --------------------------------------------------------------------------
// Middleware (logging)
// --------------------------------------------------------------------------

// responseWriter is a custom ResponseWriter that captures the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// loggerMiddleware is a middleware that logs HTTP requests
func loggerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create custom response writer to capture status code
		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		// Process request
		next.ServeHTTP(rw, r)

		// Log the request
		duration := time.Since(start)
		Logger.Debugf("%s %s => %d took %s", r.Method, r.URL.Path, rw.statusCode, duration)
	}
}
