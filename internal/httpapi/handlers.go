package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/daszybak/omniverse_markets/internal/connector"
	"github.com/daszybak/omniverse_markets/internal/ingest"
	"github.com/daszybak/omniverse_markets/internal/schema"
	"github.com/daszybak/omniverse_markets/pkg/hashset"
)

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	providers := make(map[string]string, len(a.connectors))
	for _, c := range a.connectors {
		providers[c.Name()] = string(c.Mode())
	}
	writeOK(w, map[string]any{
		"status":    "healthy",
		"service":   ServiceName,
		"providers": providers,
	}, Meta{"timestamp": a.now().UTC().Format(time.RFC3339)})
}

// listMarkets merges every provider's markets in lookup order, then filters
// by status (case-insensitive equality) and q (case-insensitive substring of
// the title).
func (a *API) listMarkets(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	providerParam := query.Get("provider")

	wanted := hashset.NewSet[schema.Provider]()
	providers := []string{}
	if providerParam != "" {
		p, err := schema.ParseProvider(providerParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, unknownProvider(providerParam))
			return
		}
		wanted.Set(p)
		providers = append(providers, providerParam)
	} else {
		for _, c := range a.connectors {
			wanted.Set(c.Provider())
			providers = append(providers, c.Name())
		}
	}

	markets := []schema.Market{}
	for _, c := range a.connectors {
		if wanted.Has(c.Provider()) {
			markets = append(markets, c.Markets(r.Context())...)
		}
	}

	if status := query.Get("status"); status != "" {
		markets = filter(markets, func(m schema.Market) bool {
			return strings.EqualFold(m.Status, status)
		})
	}
	if q := strings.ToLower(query.Get("q")); q != "" {
		markets = filter(markets, func(m schema.Market) bool {
			return strings.Contains(strings.ToLower(m.Title), q)
		})
	}

	writeOK(w, markets, Meta{"total": len(markets), "providers": providers})
}

func (a *API) getMarket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	m := firstFound(a.connectors, func(c *connector.Connector) *schema.Market {
		return c.Market(r.Context(), id)
	})
	if m == nil {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}
	writeOK(w, m, Meta{"market_id": id})
}

func (a *API) getPrice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	price := firstFound(a.connectors, func(c *connector.Connector) *schema.MarketPrice {
		return c.Price(r.Context(), id)
	})
	if price == nil {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}
	writeOK(w, price, Meta{"market_id": id, "timestamp": a.now().UTC().Format(time.RFC3339)})
}

func (a *API) getTimeSeries(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	query := r.URL.Query()

	interval, err := schema.ParseInterval(query.Get("interval"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	start, err := parseTimeParam(query, "start")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	end, err := parseTimeParam(query, "end")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		writeError(w, http.StatusBadRequest, "end must not be before start")
		return
	}

	q := schema.TimeSeriesQuery{Start: start, End: end, Interval: interval}
	ts := firstFound(a.connectors, func(c *connector.Connector) *schema.TimeSeries {
		return c.TimeSeries(r.Context(), id, q)
	})
	if ts == nil {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}
	writeOK(w, ts, Meta{
		"market_id": id,
		"interval":  string(interval),
		"start":     optionalParam(query.Get("start")),
		"end":       optionalParam(query.Get("end")),
	})
}

func (a *API) getOrderBook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	depth, err := parseIntParam(r.URL.Query(), "depth", schema.DefaultDepth)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	book := firstFound(a.connectors, func(c *connector.Connector) *schema.OrderBook {
		return c.OrderBook(r.Context(), id, depth)
	})
	if book == nil {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}
	writeOK(w, book, Meta{
		"market_id": id,
		"depth":     depth,
		"timestamp": a.now().UTC().Format(time.RFC3339),
	})
}

func (a *API) getEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	query := r.URL.Query()

	limit, err := parseIntParam(query, "limit", schema.DefaultEventsLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	since, err := parseTimeParam(query, "since")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := schema.EventQuery{Since: since, Limit: limit}
	var events []schema.Event
	for _, c := range a.connectors {
		if events = c.Events(r.Context(), id, q); events != nil {
			break
		}
	}
	if events == nil {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}
	writeOK(w, events, Meta{
		"market_id": id,
		"since":     optionalParam(query.Get("since")),
		"limit":     limit,
		"count":     len(events),
	})
}

func (a *API) syncProvider(w http.ResponseWriter, r *http.Request) {
	provider := strings.ToLower(chi.URLParam(r, "provider"))
	res, err := a.syncer.Sync(r.Context(), provider)
	if errors.Is(err, ingest.ErrUnknownProvider) {
		writeError(w, http.StatusBadRequest, unknownProvider(provider))
		return
	}
	if err != nil {
		a.log.Error("sync failed", "provider", provider, "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	writeOK(w, res, Meta{
		"provider":       provider,
		"sync_timestamp": a.now().UTC().Format(time.RFC3339),
		"status":         "completed",
	})
}

// firstFound asks each connector in turn and returns the first non-nil answer.
func firstFound[T any](connectors []*connector.Connector, get func(*connector.Connector) *T) *T {
	for _, c := range connectors {
		if v := get(c); v != nil {
			return v
		}
	}
	return nil
}

func filter(markets []schema.Market, keep func(schema.Market) bool) []schema.Market {
	out := markets[:0]
	for _, m := range markets {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}

func parseIntParam(query map[string][]string, name string, def int) (int, error) {
	vals := query[name]
	if len(vals) == 0 || vals[0] == "" {
		return def, nil
	}
	n, err := strconv.Atoi(vals[0])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return n, nil
}

func parseTimeParam(query map[string][]string, name string) (time.Time, error) {
	vals := query[name]
	if len(vals) == 0 {
		return time.Time{}, nil
	}
	t, err := schema.ParseTime(vals[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be an ISO 8601 timestamp", name)
	}
	return t, nil
}

// optionalParam echoes a query parameter, or null when it wasn't given.
func optionalParam(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func unknownProvider(name string) string {
	return fmt.Sprintf("Unknown provider: %s. Supported: kalshi, polymarket", name)
}
