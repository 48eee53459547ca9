// Package polymarket adapts Polymarket's APIs (Gamma, CLOB, Data) to the Platform interface.
package polymarket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/daszybak/omniverse_markets/internal/normalize"
	"github.com/daszybak/omniverse_markets/internal/orderbook"
	"github.com/daszybak/omniverse_markets/internal/platform"
	"github.com/daszybak/omniverse_markets/internal/polymarket/clob"
	"github.com/daszybak/omniverse_markets/internal/polymarket/data"
	"github.com/daszybak/omniverse_markets/internal/polymarket/gamma"
	"github.com/daszybak/omniverse_markets/internal/price"
	"github.com/daszybak/omniverse_markets/internal/schema"
	"github.com/daszybak/omniverse_markets/pkg/httpclient"
)

const platformName = "polymarket"

// defaultWindow is how many intervals a timeseries covers when no start is given.
const defaultWindow = 24

type Config struct {
	GammaURL string
	ClobURL  string
	DataURL  string
	APIKey   string
}

type Polymarket struct {
	log  *slog.Logger
	norm *normalize.Normalizer
	now  func() time.Time

	gamma *gamma.Client
	clob  *clob.Client
	data  *data.Client
}

var _ platform.Platform = (*Polymarket)(nil)

// New creates a Polymarket platform. Extra options apply to every API client.
func New(cfg Config, now func() time.Time, log *slog.Logger, opts ...httpclient.Option) *Polymarket {
	if now == nil {
		now = time.Now
	}
	if cfg.APIKey != "" {
		opts = append([]httpclient.Option{httpclient.WithAPIKey(cfg.APIKey)}, opts...)
	}
	return &Polymarket{
		log:   log.With("component", platformName),
		norm:  normalize.New(schema.Polymarket, now, log),
		now:   now,
		gamma: gamma.New(cfg.GammaURL, opts...),
		clob:  clob.New(cfg.ClobURL, opts...),
		data:  data.New(cfg.DataURL, opts...),
	}
}

func (p *Polymarket) Provider() schema.Provider { return schema.Polymarket }

func (p *Polymarket) Markets(ctx context.Context) ([]schema.Market, error) {
	markets, err := p.gamma.GetMarkets(ctx)
	if err != nil && len(markets) == 0 {
		return nil, fmt.Errorf("couldn't get markets: %w", err)
	}
	if err != nil {
		p.log.Warn("market listing incomplete", "fetched", len(markets), "error", err)
	}

	raws := make([]normalize.RawMarket, 0, len(markets))
	for _, m := range markets {
		raws = append(raws, p.rawMarket(m))
	}
	return p.norm.Markets(raws), nil
}

func (p *Polymarket) Market(ctx context.Context, id string) (*schema.Market, error) {
	m, err := p.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	market := p.norm.Market(p.rawMarket(m))
	return &market, nil
}

// OrderBook reports the book of the market's first outcome token.
func (p *Polymarket) OrderBook(ctx context.Context, m *schema.Market, _ int) (*schema.OrderBook, error) {
	raw, err := p.source(ctx, m)
	if err != nil {
		return nil, err
	}
	tokenID, outcomeID, err := firstToken(raw)
	if err != nil {
		return nil, err
	}

	book, err := p.clob.GetBook(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	ob := orderbook.New()
	for _, lvl := range book.Bids {
		if err := ob.Set(orderbook.Bids, lvl.Price, lvl.Size); err != nil {
			return nil, err
		}
	}
	for _, lvl := range book.Asks {
		if err := ob.Set(orderbook.Asks, lvl.Price, lvl.Size); err != nil {
			return nil, err
		}
	}

	bids, asks, spread := ob.Entries(max(ob.Len(orderbook.Bids), ob.Len(orderbook.Asks)))
	return &schema.OrderBook{
		MarketID:  m.ID,
		Provider:  schema.Polymarket,
		OutcomeID: outcomeID,
		Timestamp: p.now().UTC(),
		Bids:      bids,
		Asks:      asks,
		Spread:    spread,
	}, nil
}

func (p *Polymarket) TimeSeries(ctx context.Context, m *schema.Market, q schema.TimeSeriesQuery) (*schema.TimeSeries, error) {
	raw, err := p.source(ctx, m)
	if err != nil {
		return nil, err
	}
	tokenID, outcomeID, err := firstToken(raw)
	if err != nil {
		return nil, err
	}

	interval := q.Interval
	if interval == "" {
		interval = schema.DefaultInterval
	}
	end := q.End
	if end.IsZero() {
		end = p.now().UTC()
	}
	start := q.Start
	if start.IsZero() {
		start = end.Add(-defaultWindow * interval.Duration())
	}

	history, err := p.clob.GetPriceHistory(ctx, tokenID, start, end, int(interval.Duration()/time.Minute))
	if err != nil {
		return nil, err
	}

	ts := &schema.TimeSeries{
		MarketID:   m.ID,
		Provider:   schema.Polymarket,
		OutcomeID:  outcomeID,
		Interval:   interval,
		DataPoints: make([]schema.PricePoint, 0, len(history)),
	}
	for _, h := range history {
		ts.DataPoints = append(ts.DataPoints, schema.PricePoint{
			Timestamp: time.Unix(h.T, 0).UTC(),
			Price:     h.P,
			OutcomeID: outcomeID,
		})
	}
	return ts, nil
}

// Events reports trades on the market, newest first.
func (p *Polymarket) Events(ctx context.Context, m *schema.Market, q schema.EventQuery) ([]schema.Event, error) {
	raw, err := p.source(ctx, m)
	if err != nil {
		return nil, err
	}
	trades, err := p.data.GetTrades(ctx, raw.ConditionID, q.Limit)
	if err != nil {
		return nil, err
	}

	events := make([]schema.Event, 0, len(trades))
	for i, t := range trades {
		id := t.TransactionHash
		if id == "" {
			id = fmt.Sprintf("%s-%d", raw.ConditionID, i)
		}
		events = append(events, schema.Event{
			ID:        id,
			MarketID:  m.ID,
			Provider:  schema.Polymarket,
			EventType: "trade",
			Timestamp: time.Unix(t.Timestamp, 0).UTC(),
			Data: map[string]any{
				"outcome_id": strings.ToLower(t.Outcome),
				"price":      t.Price,
				"volume":     t.Size,
				"side":       strings.ToLower(t.Side),
			},
		})
	}
	return events, nil
}

// lookup fetches the gamma market. Gamma rejects IDs it can't parse with a
// client error, which is treated the same as an unknown market.
func (p *Polymarket) lookup(ctx context.Context, id string) (*gamma.Market, error) {
	m, err := p.gamma.GetMarket(ctx, id)
	var se *httpclient.StatusError
	if errors.As(err, &se) && (se.StatusCode == http.StatusNotFound || se.StatusCode == http.StatusBadRequest || se.StatusCode == http.StatusUnprocessableEntity) {
		return nil, schema.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, schema.ErrNotFound
	}
	return m, nil
}

// source returns the gamma record m was built from, looking it up only when
// m didn't come from this provider directly.
func (p *Polymarket) source(ctx context.Context, m *schema.Market) (*gamma.Market, error) {
	if raw, ok := m.Source.(*gamma.Market); ok && raw != nil {
		return raw, nil
	}
	return p.lookup(ctx, m.ID)
}

func (p *Polymarket) rawMarket(m *gamma.Market) normalize.RawMarket {
	raw := normalize.RawMarket{
		ID:          m.ID,
		ConditionID: m.ConditionID,
		Question:    m.Question,
		Description: m.Description,
		Active:      m.Active,
		Closed:      m.Closed,
		Category:    m.Category,
		CreatedAt:   m.CreatedAt,
		EndDate:     m.EndDate,
		SettleDate:  m.UMAEndDate,
		Volume:      m.VolumeNum,
		Liquidity:   m.LiquidityNum,
		Source:      m,
	}
	for _, t := range m.Tags {
		raw.Tags = append(raw.Tags, t.Label)
	}

	for i, name := range m.Outcomes {
		o := schema.Outcome{ID: strings.ToLower(name), Name: name}
		if i < len(m.OutcomePrices) {
			pr, err := price.Parse(m.OutcomePrices[i])
			if err != nil {
				p.log.Warn("invalid outcome price", "market_id", m.ID, "outcome", name, "value", m.OutcomePrices[i])
			} else {
				o.Price = schema.Float(pr.Float64())
			}
		}
		raw.Outcomes = append(raw.Outcomes, o)
	}
	return raw
}

func firstToken(m *gamma.Market) (tokenID, outcomeID string, err error) {
	if len(m.ClobTokenIDs) == 0 {
		return "", "", fmt.Errorf("market %s has no clob tokens", m.ID)
	}
	outcomeID = "yes"
	if len(m.Outcomes) > 0 {
		outcomeID = strings.ToLower(m.Outcomes[0])
	}
	return m.ClobTokenIDs[0], outcomeID, nil
}
