// Package kalshi adapts Kalshi's trading API to the Platform interface.
package kalshi

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/daszybak/omniverse_markets/internal/kalshi/api"
	"github.com/daszybak/omniverse_markets/internal/normalize"
	"github.com/daszybak/omniverse_markets/internal/orderbook"
	"github.com/daszybak/omniverse_markets/internal/platform"
	"github.com/daszybak/omniverse_markets/internal/price"
	"github.com/daszybak/omniverse_markets/internal/schema"
	"github.com/daszybak/omniverse_markets/pkg/httpclient"
)

// defaultWindow is how many intervals a timeseries covers when no start is given.
const defaultWindow = 24

type Kalshi struct {
	client *api.Client
	norm   *normalize.Normalizer
	now    func() time.Time
	log    *slog.Logger
}

var _ platform.Platform = (*Kalshi)(nil)

func New(client *api.Client, now func() time.Time, log *slog.Logger) *Kalshi {
	if now == nil {
		now = time.Now
	}
	return &Kalshi{
		client: client,
		norm:   normalize.New(schema.Kalshi, now, log),
		now:    now,
		log:    log.With("component", "kalshi"),
	}
}

func (k *Kalshi) Provider() schema.Provider { return schema.Kalshi }

func (k *Kalshi) Markets(ctx context.Context) ([]schema.Market, error) {
	markets, err := k.client.GetAllMarkets(ctx)
	if err != nil && len(markets) == 0 {
		return nil, fmt.Errorf("couldn't get markets: %w", err)
	}
	if err != nil {
		k.log.Warn("market listing incomplete", "fetched", len(markets), "error", err)
	}

	raws := make([]normalize.RawMarket, 0, len(markets))
	for _, m := range markets {
		raws = append(raws, rawMarket(m))
	}
	return k.norm.Markets(raws), nil
}

func (k *Kalshi) Market(ctx context.Context, id string) (*schema.Market, error) {
	m, err := k.client.GetMarket(ctx, id)
	if httpclient.IsNotFound(err) || (err == nil && m == nil) {
		return nil, schema.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	market := k.norm.Market(rawMarket(m))
	return &market, nil
}

// OrderBook reports the YES side. Kalshi only lists bids, so a NO bid at p is
// a YES ask at 1-p.
func (k *Kalshi) OrderBook(ctx context.Context, m *schema.Market, depth int) (*schema.OrderBook, error) {
	raw, err := k.client.GetOrderBook(ctx, m.ID, depth)
	if err != nil {
		return nil, err
	}

	book := orderbook.New()
	for _, lvl := range raw.Yes {
		if err := book.Set(orderbook.Bids, centsPrice(lvl[0]), contracts(lvl[1])); err != nil {
			return nil, err
		}
	}
	for _, lvl := range raw.No {
		if err := book.Set(orderbook.Asks, centsPrice(100-lvl[0]), contracts(lvl[1])); err != nil {
			return nil, err
		}
	}

	bids, asks, spread := book.Entries(max(book.Len(orderbook.Bids), book.Len(orderbook.Asks)))
	return &schema.OrderBook{
		MarketID:  m.ID,
		Provider:  schema.Kalshi,
		OutcomeID: "yes",
		Timestamp: k.now().UTC(),
		Bids:      bids,
		Asks:      asks,
		Spread:    spread,
	}, nil
}

// TimeSeries reads candlesticks, which Kalshi serves per series. The
// market's event is looked up first to find its series ticker.
func (k *Kalshi) TimeSeries(ctx context.Context, m *schema.Market, q schema.TimeSeriesQuery) (*schema.TimeSeries, error) {
	raw, err := k.source(ctx, m)
	if err != nil {
		return nil, err
	}
	event, err := k.client.GetEvent(ctx, raw.EventTicker)
	if err != nil {
		return nil, err
	}
	if event == nil || event.SeriesTicker == "" {
		return nil, fmt.Errorf("event %s has no series ticker", raw.EventTicker)
	}

	interval := q.Interval
	if interval == "" {
		interval = schema.DefaultInterval
	}
	end := q.End
	if end.IsZero() {
		end = k.now().UTC()
	}
	start := q.Start
	if start.IsZero() {
		start = end.Add(-defaultWindow * interval.Duration())
	}

	period, stride := candlePeriod(interval)
	candles, err := k.client.GetCandlesticks(ctx, event.SeriesTicker, m.ID, start, end, period)
	if err != nil {
		return nil, err
	}

	ts := &schema.TimeSeries{
		MarketID:   m.ID,
		Provider:   schema.Kalshi,
		OutcomeID:  "yes",
		Interval:   interval,
		DataPoints: []schema.PricePoint{},
	}
	for _, c := range candles {
		if c.Price.Close == nil || c.EndPeriodTS%stride != 0 {
			continue
		}
		ts.DataPoints = append(ts.DataPoints, schema.PricePoint{
			Timestamp: time.Unix(c.EndPeriodTS, 0).UTC(),
			Price:     normalize.CentsToProbability(*c.Price.Close),
			Volume:    schema.Float(float64(c.Volume)),
			OutcomeID: "yes",
		})
	}
	return ts, nil
}

// Events reports trades on the market, newest first.
func (k *Kalshi) Events(ctx context.Context, m *schema.Market, q schema.EventQuery) ([]schema.Event, error) {
	trades, err := k.client.GetTrades(ctx, m.ID, q.Since, q.Limit)
	if err != nil {
		return nil, err
	}

	events := make([]schema.Event, 0, len(trades))
	for _, t := range trades {
		ts, err := schema.ParseTime(t.CreatedTime)
		if err != nil {
			k.log.Warn("invalid trade timestamp", "trade_id", t.TradeID, "value", t.CreatedTime)
			continue
		}
		events = append(events, schema.Event{
			ID:        t.TradeID,
			MarketID:  m.ID,
			Provider:  schema.Kalshi,
			EventType: "trade",
			Timestamp: ts,
			Data: map[string]any{
				"outcome_id": "yes",
				"price":      normalize.CentsToProbability(t.YesPrice),
				"volume":     float64(t.Count),
				"side":       takerSide(t.TakerSide),
			},
		})
	}
	return events, nil
}

// source returns the Kalshi record m was built from, fetching it only when m
// didn't come from this provider directly.
func (k *Kalshi) source(ctx context.Context, m *schema.Market) (*api.Market, error) {
	if raw, ok := m.Source.(*api.Market); ok && raw != nil {
		return raw, nil
	}
	raw, err := k.client.GetMarket(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, schema.ErrNotFound
	}
	return raw, nil
}

func rawMarket(m *api.Market) normalize.RawMarket {
	yes := yesPrice(m)
	volume := float64(m.Volume)
	// Kalshi reports liquidity in cents.
	liquidity := float64(m.Liquidity) / 100

	return normalize.RawMarket{
		Ticker:         m.Ticker,
		Title:          m.Title,
		RulesPrimary:   m.RulesPrimary,
		Status:         m.Status,
		Category:       m.Category,
		CreatedTime:    m.CreatedTime,
		CloseTime:      m.CloseTime,
		ExpirationTime: m.ExpirationTime,
		Outcomes: []schema.Outcome{
			{ID: "yes", Name: outcomeName(m.YesSubTitle, "Yes"), Price: yes},
			{ID: "no", Name: outcomeName(m.NoSubTitle, "No"), Price: complement(yes)},
		},
		Volume:    &volume,
		Liquidity: &liquidity,
		Source:    m,
	}
}

// yesPrice is the last traded price, or the bid/ask midpoint for markets
// that haven't traded. Nil when neither is known.
func yesPrice(m *api.Market) *float64 {
	switch {
	case m.LastPrice > 0:
		return schema.Float(normalize.CentsToProbability(m.LastPrice))
	case m.YesBid > 0 && m.YesAsk > 0:
		return schema.Float(normalize.CentsToProbability(m.YesBid+m.YesAsk) / 2)
	}
	return nil
}

func complement(p *float64) *float64 {
	if p == nil {
		return nil
	}
	return schema.Float(normalize.Complement(*p))
}

func outcomeName(sub, fallback string) string {
	if sub != "" {
		return sub
	}
	return fallback
}

// candlePeriod maps an interval to a Kalshi candle period in minutes. Kalshi
// has no 5 minute candles, so 5m reads minute candles and keeps every fifth.
func candlePeriod(iv schema.Interval) (minutes int, strideSeconds int64) {
	switch iv {
	case schema.Interval1m:
		return 1, 60
	case schema.Interval5m:
		return 1, 300
	case schema.Interval1d:
		return 1440, 86400
	}
	return 60, 3600
}

func centsPrice(cents int) price.Price {
	return price.Price(int64(cents) * price.PriceScale / 100)
}

func contracts(n int) price.Size {
	return price.Size(int64(n) * price.PriceScale)
}

func takerSide(side string) string {
	switch side {
	case "yes":
		return "buy"
	case "no":
		return "sell"
	}
	return side
}
