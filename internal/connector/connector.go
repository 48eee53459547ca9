// Package connector exposes a provider platform through the uniform surface
// the API serves. Connectors never return provider failures: they log them,
// count them and answer with an empty result instead.
package connector

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/daszybak/omniverse_markets/internal/orderbook"
	"github.com/daszybak/omniverse_markets/internal/platform"
	"github.com/daszybak/omniverse_markets/internal/schema"
)

// MarketCache stores a provider's market listing between requests.
type MarketCache interface {
	GetMarkets(ctx context.Context, p schema.Provider) ([]schema.Market, bool, error)
	SetMarkets(ctx context.Context, p schema.Provider, markets []schema.Market) error
}

// Recorder counts swallowed failures and cache effectiveness.
type Recorder interface {
	ProviderError(provider, operation string)
	CacheLookup(hit bool)
}

type Connector struct {
	platform platform.Platform
	mode     platform.Mode
	cache    MarketCache
	metrics  Recorder
	log      *slog.Logger
	now      func() time.Time
	newID    func() string
}

type Option func(*Connector)

func WithCache(c MarketCache) Option {
	return func(cn *Connector) { cn.cache = c }
}

func WithMetrics(r Recorder) Option {
	return func(cn *Connector) { cn.metrics = r }
}

func WithClock(now func() time.Time) Option {
	return func(cn *Connector) { cn.now = now }
}

// WithIDs replaces the sync ID generator.
func WithIDs(newID func() string) Option {
	return func(cn *Connector) { cn.newID = newID }
}

func New(p platform.Platform, mode platform.Mode, log *slog.Logger, opts ...Option) *Connector {
	c := &Connector{
		platform: p,
		mode:     mode,
		log:      log.With("component", "connector", "provider", string(p.Provider()), "mode", string(mode)),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Connector) Name() string { return string(c.platform.Provider()) }

func (c *Connector) Provider() schema.Provider { return c.platform.Provider() }

func (c *Connector) Mode() platform.Mode { return c.mode }

// Markets lists the provider's markets, from the cache when it holds them.
func (c *Connector) Markets(ctx context.Context) []schema.Market {
	if markets, ok := c.cached(ctx); ok {
		return markets
	}

	markets, err := c.platform.Markets(ctx)
	if err != nil {
		c.fail("markets", err)
		return []schema.Market{}
	}
	c.store(ctx, markets)
	return markets
}

// Market returns nil when the provider doesn't know id or can't be reached.
func (c *Connector) Market(ctx context.Context, id string) *schema.Market {
	m, err := c.platform.Market(ctx, id)
	if errors.Is(err, schema.ErrNotFound) {
		return nil
	}
	if err != nil {
		c.fail("market", err, "market_id", id)
		return nil
	}
	return m
}

// Price is the current price of each outcome of the market.
func (c *Connector) Price(ctx context.Context, id string) *schema.MarketPrice {
	m := c.Market(ctx, id)
	if m == nil {
		return nil
	}
	return &schema.MarketPrice{
		MarketID:  m.ID,
		Provider:  m.Provider,
		Timestamp: c.now().UTC(),
		Outcomes:  m.Outcomes,
	}
}

func (c *Connector) TimeSeries(ctx context.Context, id string, q schema.TimeSeriesQuery) *schema.TimeSeries {
	m := c.Market(ctx, id)
	if m == nil {
		return nil
	}
	if q.Interval == "" {
		q.Interval = schema.DefaultInterval
	}
	ts, err := c.platform.TimeSeries(ctx, m, q)
	if err != nil {
		c.fail("timeseries", err, "market_id", id)
		return nil
	}
	ts.Provider = m.Provider
	return ts
}

// OrderBook keeps the best depth levels of each side and recomputes the
// spread from what is left. A non-positive depth means schema.DefaultDepth.
func (c *Connector) OrderBook(ctx context.Context, id string, depth int) *schema.OrderBook {
	if depth <= 0 {
		depth = schema.DefaultDepth
	}
	m := c.Market(ctx, id)
	if m == nil {
		return nil
	}
	book, err := c.platform.OrderBook(ctx, m, depth)
	if err != nil {
		c.fail("orderbook", err, "market_id", id)
		return nil
	}
	book.Provider = m.Provider
	book.Bids, book.Asks, book.Spread = orderbook.FromEntries(book.Bids, book.Asks).Entries(depth)
	return book
}

// Events returns nil for an unknown market and an empty slice when the
// provider fails, so callers can tell the two apart.
func (c *Connector) Events(ctx context.Context, id string, q schema.EventQuery) []schema.Event {
	m := c.Market(ctx, id)
	if m == nil {
		return nil
	}
	events, err := c.platform.Events(ctx, m, q)
	if err != nil {
		c.fail("events", err, "market_id", id)
		return []schema.Event{}
	}
	return q.Apply(events)
}

// Sync pulls the full market listing past the cache and refreshes it. The
// markets are returned for the sinks downstream.
func (c *Connector) Sync(ctx context.Context) (schema.SyncResult, []schema.Market) {
	res := schema.SyncResult{
		SyncID:    c.newID(),
		Provider:  c.platform.Provider(),
		Timestamp: c.now().UTC(),
	}

	markets, err := c.platform.Markets(ctx)
	if err != nil {
		c.fail("sync", err, "sync_id", res.SyncID)
		res.Status = schema.SyncError
		res.Error = err.Error()
		return res, nil
	}

	c.store(ctx, markets)
	res.Status = schema.SyncSuccess
	res.MarketsSynced = len(markets)
	c.log.Info("synced markets", "sync_id", res.SyncID, "count", len(markets))
	return res, markets
}

func (c *Connector) cached(ctx context.Context) ([]schema.Market, bool) {
	if c.cache == nil {
		return nil, false
	}
	markets, ok, err := c.cache.GetMarkets(ctx, c.platform.Provider())
	if err != nil {
		c.log.Warn("market cache read failed", "error", err)
	}
	if c.metrics != nil {
		c.metrics.CacheLookup(ok)
	}
	return markets, ok
}

func (c *Connector) store(ctx context.Context, markets []schema.Market) {
	if c.cache == nil {
		return
	}
	if err := c.cache.SetMarkets(ctx, c.platform.Provider(), markets); err != nil {
		c.log.Warn("market cache write failed", "error", err)
	}
}

func (c *Connector) fail(op string, err error, attrs ...any) {
	c.log.Error("provider request failed", append([]any{"operation", op, "error", err}, attrs...)...)
	if c.metrics != nil {
		c.metrics.ProviderError(c.Name(), op)
	}
}
