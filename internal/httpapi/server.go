// Package httpapi serves the normalized market API over HTTP.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/daszybak/omniverse_markets/internal/connector"
	"github.com/daszybak/omniverse_markets/internal/ingest"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "omniverse-market-api"

// RequestObserver records per-route request metrics.
type RequestObserver interface {
	ObserveRequest(method, route string, status int, elapsed time.Duration)
}

type Config struct {
	// Connectors are consulted in order when resolving a market ID.
	Connectors []*connector.Connector
	Syncer     *ingest.Syncer

	// Stream and Metrics are mounted when set.
	Stream  http.Handler
	Metrics http.Handler

	Observer RequestObserver
	Now      func() time.Time
}

type API struct {
	connectors []*connector.Connector
	syncer     *ingest.Syncer
	stream     http.Handler
	metrics    http.Handler
	observer   RequestObserver
	log        *slog.Logger
	now        func() time.Time
}

func New(cfg Config, log *slog.Logger) *API {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &API{
		connectors: cfg.Connectors,
		syncer:     cfg.Syncer,
		stream:     cfg.Stream,
		metrics:    cfg.Metrics,
		observer:   cfg.Observer,
		log:        log.With("component", "httpapi"),
		now:        now,
	}
}

// Router returns the HTTP handler with every route mounted.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(withCORS)
	r.Use(a.observe)
	r.Use(a.recoverer)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, msgNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.health)
		r.Get("/markets", a.listMarkets)
		r.Get("/markets/{id}", a.getMarket)
		r.Get("/markets/{id}/price", a.getPrice)
		r.Get("/markets/{id}/timeseries", a.getTimeSeries)
		r.Get("/markets/{id}/orderbook", a.getOrderBook)
		r.Get("/markets/{id}/events", a.getEvents)
		r.Post("/ingest/{provider}/sync", a.syncProvider)
		if a.stream != nil {
			r.Handle("/stream", a.stream)
		}
	})
	if a.metrics != nil {
		r.Handle("/metrics", a.metrics)
	}
	return r
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// recoverer turns a panic into the generic 500 envelope. The panic value is
// logged, never returned.
func (a *API) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			a.log.Error("handler panicked",
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", middleware.GetReqID(r.Context()),
				"panic", rec,
			)
			writeError(w, http.StatusInternalServerError, msgInternal)
		}()
		next.ServeHTTP(w, r)
	})
}

func (a *API) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.observer == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		a.observer.ObserveRequest(r.Method, route, status, time.Since(start))
	})
}
