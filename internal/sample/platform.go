package sample

import (
	"context"
	"log/slog"
	"time"

	"github.com/daszybak/omniverse_markets/internal/normalize"
	"github.com/daszybak/omniverse_markets/internal/platform"
	"github.com/daszybak/omniverse_markets/internal/schema"
)

// profile holds the fixed per-provider values served in mock mode.
type profile struct {
	basePrice  float64
	priceStep  float64
	baseVolume float64
	volumeStep float64
	bids       []schema.OrderBookEntry
	asks       []schema.OrderBookEntry
	event      schema.Event
}

var profiles = map[schema.Provider]profile{
	schema.Kalshi: {
		basePrice: 0.60, priceStep: 0.001, baseVolume: 100, volumeStep: 10,
		bids: []schema.OrderBookEntry{{Price: 0.64, Size: 100}, {Price: 0.63, Size: 250}},
		asks: []schema.OrderBookEntry{{Price: 0.66, Size: 150}, {Price: 0.67, Size: 200}},
		event: schema.Event{
			ID:        "evt_kalshi_123",
			EventType: "trade",
			Data:      map[string]any{"outcome_id": "yes", "price": 0.65, "volume": 50.0, "side": "buy"},
		},
	},
	schema.Polymarket: {
		basePrice: 0.42, priceStep: 0.002, baseVolume: 150, volumeStep: 15,
		bids: []schema.OrderBookEntry{{Price: 0.41, Size: 200}, {Price: 0.40, Size: 350}},
		asks: []schema.OrderBookEntry{{Price: 0.43, Size: 180}, {Price: 0.44, Size: 220}},
		event: schema.Event{
			ID:        "evt_poly_456",
			EventType: "trade",
			Data:      map[string]any{"outcome_id": "yes", "price": 0.42, "volume": 75.0, "side": "sell"},
		},
	},
}

// generatedPoints is the length of a synthesized timeseries.
const generatedPoints = 24

// Platform serves one provider's share of a Dataset.
type Platform struct {
	provider schema.Provider
	data     *Dataset
	norm     *normalize.Normalizer
	now      func() time.Time
}

var _ platform.Platform = (*Platform)(nil)

// New returns the mock platform for provider p. A nil now uses time.Now.
func New(p schema.Provider, data *Dataset, now func() time.Time, log *slog.Logger) *Platform {
	if now == nil {
		now = time.Now
	}
	return &Platform{
		provider: p,
		data:     data,
		norm:     normalize.New(p, now, log),
		now:      now,
	}
}

func (p *Platform) Provider() schema.Provider { return p.provider }

func (p *Platform) Markets(_ context.Context) ([]schema.Market, error) {
	return p.norm.Markets(p.data.MarketsFor(p.provider)), nil
}

func (p *Platform) Market(ctx context.Context, id string) (*schema.Market, error) {
	markets, err := p.Markets(ctx)
	if err != nil {
		return nil, err
	}
	for i := range markets {
		if markets[i].ID == id {
			return &markets[i], nil
		}
	}
	return nil, schema.ErrNotFound
}

func (p *Platform) OrderBook(_ context.Context, m *schema.Market, _ int) (*schema.OrderBook, error) {
	prof := profiles[p.provider]
	return &schema.OrderBook{
		MarketID:  m.ID,
		Provider:  p.provider,
		OutcomeID: "yes",
		Timestamp: p.now().UTC(),
		Bids:      append([]schema.OrderBookEntry(nil), prof.bids...),
		Asks:      append([]schema.OrderBookEntry(nil), prof.asks...),
	}, nil
}

// TimeSeries serves the dataset's series for the market when it has one,
// otherwise a synthetic upward-trending series ending at q.End, or now.
// Either way only points inside the query window are kept.
func (p *Platform) TimeSeries(_ context.Context, m *schema.Market, q schema.TimeSeriesQuery) (*schema.TimeSeries, error) {
	ts := &schema.TimeSeries{
		MarketID:   m.ID,
		Provider:   p.provider,
		OutcomeID:  "yes",
		Interval:   q.Interval,
		DataPoints: []schema.PricePoint{},
	}
	if ts.Interval == "" {
		ts.Interval = schema.DefaultInterval
	}

	if points, ok := p.data.TimeSeries[m.ID]; ok {
		for _, pt := range points {
			if q.Contains(pt.Timestamp) {
				ts.DataPoints = append(ts.DataPoints, pt)
			}
		}
		return ts, nil
	}

	prof := profiles[p.provider]
	step := ts.Interval.Duration()
	end := q.End
	if end.IsZero() {
		end = p.now().UTC()
	}
	for i := range generatedPoints {
		pt := schema.PricePoint{
			Timestamp: end.Add(-time.Duration(generatedPoints-1-i) * step),
			Price:     prof.basePrice + float64(i)*prof.priceStep,
			Volume:    schema.Float(prof.baseVolume + float64(i)*prof.volumeStep),
			OutcomeID: "yes",
		}
		if q.Contains(pt.Timestamp) {
			ts.DataPoints = append(ts.DataPoints, pt)
		}
	}
	return ts, nil
}

func (p *Platform) Events(_ context.Context, m *schema.Market, _ schema.EventQuery) ([]schema.Event, error) {
	evt := profiles[p.provider].event
	data := make(map[string]any, len(evt.Data))
	for k, v := range evt.Data {
		data[k] = v
	}
	evt.MarketID = m.ID
	evt.Provider = p.provider
	evt.Timestamp = p.now().UTC()
	evt.Data = data
	return []schema.Event{evt}, nil
}
