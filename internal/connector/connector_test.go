package connector

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/daszybak/omniverse_markets/internal/platform"
	"github.com/daszybak/omniverse_markets/internal/sample"
	"github.com/daszybak/omniverse_markets/internal/schema"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func clock() time.Time { return fixedNow }

func newMock(p schema.Provider, opts ...Option) *Connector {
	opts = append([]Option{WithClock(clock)}, opts...)
	return New(sample.New(p, sample.Fallback(), clock, discard()), platform.ModeMock, discard(), opts...)
}

// brokenPlatform fails every call except the market lookup.
type brokenPlatform struct{ calls int }

var errUpstream = errors.New("upstream down")

func (b *brokenPlatform) Provider() schema.Provider { return schema.Kalshi }
func (b *brokenPlatform) Markets(context.Context) ([]schema.Market, error) {
	b.calls++
	return nil, errUpstream
}
func (b *brokenPlatform) Market(_ context.Context, id string) (*schema.Market, error) {
	if id == "boom" {
		return nil, errUpstream
	}
	return &schema.Market{ID: id, Provider: schema.Kalshi}, nil
}
func (b *brokenPlatform) OrderBook(context.Context, *schema.Market, int) (*schema.OrderBook, error) {
	return nil, errUpstream
}
func (b *brokenPlatform) TimeSeries(context.Context, *schema.Market, schema.TimeSeriesQuery) (*schema.TimeSeries, error) {
	return nil, errUpstream
}
func (b *brokenPlatform) Events(context.Context, *schema.Market, schema.EventQuery) ([]schema.Event, error) {
	return nil, errUpstream
}

type recorder struct {
	errors map[string]int
	hits   int
	misses int
}

func (r *recorder) ProviderError(_, op string) {
	if r.errors == nil {
		r.errors = map[string]int{}
	}
	r.errors[op]++
}

func (r *recorder) CacheLookup(hit bool) {
	if hit {
		r.hits++
	} else {
		r.misses++
	}
}

type memCache struct {
	markets map[schema.Provider][]schema.Market
}

func (m *memCache) GetMarkets(_ context.Context, p schema.Provider) ([]schema.Market, bool, error) {
	ms, ok := m.markets[p]
	return ms, ok, nil
}

func (m *memCache) SetMarkets(_ context.Context, p schema.Provider, ms []schema.Market) error {
	if m.markets == nil {
		m.markets = map[schema.Provider][]schema.Market{}
	}
	m.markets[p] = ms
	return nil
}

func TestMockConnector(t *testing.T) {
	ctx := context.Background()
	c := newMock(schema.Kalshi)

	if c.Name() != "kalshi" || c.Mode() != platform.ModeMock {
		t.Errorf("Name/Mode = %s/%s", c.Name(), c.Mode())
	}

	markets := c.Markets(ctx)
	if len(markets) != 1 || markets[0].Provider != schema.Kalshi {
		t.Fatalf("Markets() = %+v", markets)
	}
	if m := c.Market(ctx, "POLY-CRYPTO2024"); m != nil {
		t.Errorf("Market(other provider) = %+v, want nil", m)
	}

	price := c.Price(ctx, "KALSHI-PRES2024")
	if price == nil || len(price.Outcomes) != 2 || !price.Timestamp.Equal(fixedNow) {
		t.Errorf("Price() = %+v", price)
	}

	ts := c.TimeSeries(ctx, "KALSHI-PRES2024", schema.TimeSeriesQuery{})
	if ts == nil || ts.Interval != schema.Interval1h || len(ts.DataPoints) != 24 {
		t.Errorf("TimeSeries() = %+v", ts)
	}
	if ts := c.TimeSeries(ctx, "NOPE", schema.TimeSeriesQuery{}); ts != nil {
		t.Errorf("TimeSeries(unknown) = %+v, want nil", ts)
	}
}

func TestOrderBookDepth(t *testing.T) {
	c := newMock(schema.Kalshi)

	book := c.OrderBook(context.Background(), "KALSHI-PRES2024", 1)
	if book == nil {
		t.Fatal("OrderBook() = nil")
	}
	if len(book.Bids) != 1 || len(book.Asks) != 1 {
		t.Fatalf("got %d bids / %d asks, want 1/1", len(book.Bids), len(book.Asks))
	}
	if book.Bids[0].Price != 0.64 || book.Asks[0].Price != 0.66 {
		t.Errorf("best levels = %v/%v", book.Bids[0].Price, book.Asks[0].Price)
	}
	if book.Spread == nil || *book.Spread != 0.02 {
		t.Errorf("Spread = %v, want 0.02", book.Spread)
	}

	full := c.OrderBook(context.Background(), "KALSHI-PRES2024", 0)
	if len(full.Bids) != 2 {
		t.Errorf("default depth kept %d bids, want 2", len(full.Bids))
	}
}

func TestEventsFilter(t *testing.T) {
	c := newMock(schema.Polymarket)
	ctx := context.Background()

	if events := c.Events(ctx, "POLY-CRYPTO2024", schema.EventQuery{}); len(events) != 1 || events[0].ID != "evt_poly_456" {
		t.Errorf("Events() = %+v", events)
	}
	if events := c.Events(ctx, "POLY-CRYPTO2024", schema.EventQuery{Since: fixedNow}); len(events) != 1 {
		t.Errorf("Events(since=now) = %d events, want 1 (inclusive)", len(events))
	}
	events := c.Events(ctx, "POLY-CRYPTO2024", schema.EventQuery{Since: fixedNow.Add(time.Second)})
	if events == nil || len(events) != 0 {
		t.Errorf("Events(since future) = %v, want empty", events)
	}
	if events := c.Events(ctx, "NOPE", schema.EventQuery{}); events != nil {
		t.Errorf("Events(unknown) = %v, want nil", events)
	}
}

func TestSync(t *testing.T) {
	for _, p := range schema.Providers {
		t.Run(string(p), func(t *testing.T) {
			res, markets := newMock(p).Sync(context.Background())
			if res.Status != schema.SyncSuccess || res.MarketsSynced < 0 || res.MarketsSynced != len(markets) {
				t.Errorf("Sync() = %+v", res)
			}
			if _, err := uuid.Parse(res.SyncID); err != nil {
				t.Errorf("SyncID %q is not a uuid: %v", res.SyncID, err)
			}
			if res.Provider != p || !res.Timestamp.Equal(fixedNow) {
				t.Errorf("Sync() provider/timestamp = %s/%v", res.Provider, res.Timestamp)
			}
		})
	}
}

func TestFailuresAreSwallowed(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	c := New(&brokenPlatform{}, platform.ModeLive, discard(), WithMetrics(rec), WithIDs(func() string { return "fixed" }))

	if markets := c.Markets(ctx); markets == nil || len(markets) != 0 {
		t.Errorf("Markets() = %v, want empty", markets)
	}
	if m := c.Market(ctx, "boom"); m != nil {
		t.Errorf("Market() = %+v, want nil", m)
	}
	if book := c.OrderBook(ctx, "A", 5); book != nil {
		t.Errorf("OrderBook() = %+v, want nil", book)
	}
	if ts := c.TimeSeries(ctx, "A", schema.TimeSeriesQuery{}); ts != nil {
		t.Errorf("TimeSeries() = %+v, want nil", ts)
	}
	if events := c.Events(ctx, "A", schema.EventQuery{}); events == nil || len(events) != 0 {
		t.Errorf("Events() = %v, want empty", events)
	}

	res, _ := c.Sync(ctx)
	if res.Status != schema.SyncError || res.MarketsSynced != 0 || res.Error == "" || res.SyncID != "fixed" {
		t.Errorf("Sync() = %+v", res)
	}

	for _, op := range []string{"markets", "market", "orderbook", "timeseries", "events", "sync"} {
		if rec.errors[op] != 1 {
			t.Errorf("errors[%s] = %d, want 1", op, rec.errors[op])
		}
	}
}

func TestMarketsCache(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	cache := &memCache{}
	c := newMock(schema.Kalshi, WithCache(cache), WithMetrics(rec))

	first := c.Markets(ctx)
	second := c.Markets(ctx)
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("Markets() = %d then %d markets", len(first), len(second))
	}
	if rec.misses != 1 || rec.hits != 1 {
		t.Errorf("cache misses/hits = %d/%d, want 1/1", rec.misses, rec.hits)
	}

	broken := &brokenPlatform{}
	cached := New(broken, platform.ModeLive, discard(), WithCache(&memCache{
		markets: map[schema.Provider][]schema.Market{schema.Kalshi: first},
	}))
	if got := cached.Markets(ctx); len(got) != 1 || broken.calls != 0 {
		t.Errorf("cached Markets() = %d markets after %d platform calls", len(got), broken.calls)
	}
}
