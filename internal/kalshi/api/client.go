// Package api is used to call Kalshi's API endpoints.
package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/daszybak/omniverse_markets/pkg/httpclient"
)

// DefaultBaseURL is Kalshi's trading API.
const DefaultBaseURL = "https://trading-api.kalshi.com/trade-api/v2"

type Client struct {
	http *httpclient.Client
}

// New returns a client authenticated with apiKey. The user ID is sent on
// every request as X-User-Id.
func New(baseURL, apiKey, userID string, opts ...httpclient.Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	opts = append([]httpclient.Option{
		httpclient.WithAPIKey(apiKey),
		httpclient.WithHeader("X-User-Id", userID),
	}, opts...)
	return &Client{http: httpclient.New(baseURL, opts...)}
}

type Market struct {
	Ticker         string `json:"ticker"`
	EventTicker    string `json:"event_ticker"`
	Title          string `json:"title"`
	Subtitle       string `json:"subtitle"`
	YesSubTitle    string `json:"yes_sub_title"`
	NoSubTitle     string `json:"no_sub_title"`
	Status         string `json:"status"`
	Category       string `json:"category"`
	RulesPrimary   string `json:"rules_primary"`
	RulesSecondary string `json:"rules_secondary"`

	// Prices in cents.
	YesBid    int `json:"yes_bid"`
	YesAsk    int `json:"yes_ask"`
	NoBid     int `json:"no_bid"`
	NoAsk     int `json:"no_ask"`
	LastPrice int `json:"last_price"`

	Volume       int64 `json:"volume"`
	Volume24h    int64 `json:"volume_24h"`
	OpenInterest int64 `json:"open_interest"`
	Liquidity    int64 `json:"liquidity"`

	CreatedTime          string `json:"created_time"`
	OpenTime             string `json:"open_time"`
	CloseTime            string `json:"close_time"`
	ExpirationTime       string `json:"expiration_time"`
	LatestExpirationTime string `json:"latest_expiration_time"`
}

type MarketPage struct {
	Markets []*Market `json:"markets"`
	Cursor  string    `json:"cursor"`
}

type marketResponse struct {
	Market *Market `json:"market"`
}

// MarketPageSize is the largest page Kalshi serves.
const MarketPageSize = 1000

// MarketStatusOpen limits a listing to markets still trading.
const MarketStatusOpen = "open"

type GetMarketsOptions struct {
	Cursor string
	Limit  int
	Status string
}

func (c *Client) GetMarkets(ctx context.Context, opts GetMarketsOptions) (*MarketPage, error) {
	q := url.Values{}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.Cursor != "" {
		q.Set("cursor", opts.Cursor)
	}
	markets, err := httpclient.GetResource[*MarketPage](ctx, c.http, "/markets", q, []int{http.StatusOK})
	if err != nil {
		return nil, fmt.Errorf("couldn't get markets from cursor: %w", err)
	}
	return markets, nil
}

// GetAllMarkets pages through open markets until Kalshi returns an empty
// cursor. Markets fetched before a failing page are returned alongside the
// error.
func (c *Client) GetAllMarkets(ctx context.Context) ([]*Market, error) {
	markets := []*Market{}
	opts := GetMarketsOptions{Limit: MarketPageSize, Status: MarketStatusOpen}
	for {
		page, err := c.GetMarkets(ctx, opts)
		if err != nil {
			return markets, fmt.Errorf("couldn't get markets for cursor %q: %w", opts.Cursor, err)
		}
		markets = append(markets, page.Markets...)
		if page.Cursor == "" || page.Cursor == opts.Cursor {
			break
		}
		opts.Cursor = page.Cursor
	}
	return markets, nil
}

func (c *Client) GetMarket(ctx context.Context, ticker string) (*Market, error) {
	res, err := httpclient.GetResource[marketResponse](ctx, c.http, "/markets/"+url.PathEscape(ticker), nil, []int{http.StatusOK})
	if err != nil {
		return nil, fmt.Errorf("couldn't get market %s: %w", ticker, err)
	}
	return res.Market, nil
}

// OrderBook holds resting bids per side as [price_cents, quantity] pairs.
type OrderBook struct {
	Yes [][2]int `json:"yes"`
	No  [][2]int `json:"no"`
}

type orderBookResponse struct {
	OrderBook OrderBook `json:"orderbook"`
}

func (c *Client) GetOrderBook(ctx context.Context, ticker string, depth int) (*OrderBook, error) {
	q := url.Values{}
	if depth > 0 {
		q.Set("depth", strconv.Itoa(depth))
	}
	res, err := httpclient.GetResource[orderBookResponse](ctx, c.http, "/markets/"+url.PathEscape(ticker)+"/orderbook", q, []int{http.StatusOK})
	if err != nil {
		return nil, fmt.Errorf("couldn't get orderbook for %s: %w", ticker, err)
	}
	return &res.OrderBook, nil
}

type Trade struct {
	TradeID     string `json:"trade_id"`
	Ticker      string `json:"ticker"`
	Count       int64  `json:"count"`
	YesPrice    int    `json:"yes_price"`
	NoPrice     int    `json:"no_price"`
	TakerSide   string `json:"taker_side"`
	CreatedTime string `json:"created_time"`
}

type tradesResponse struct {
	Trades []*Trade `json:"trades"`
	Cursor string   `json:"cursor"`
}

// GetTrades returns the most recent trades for ticker, newest first. A zero
// since means no lower bound.
func (c *Client) GetTrades(ctx context.Context, ticker string, since time.Time, limit int) ([]*Trade, error) {
	q := url.Values{"ticker": {ticker}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if !since.IsZero() {
		q.Set("min_ts", strconv.FormatInt(since.Unix(), 10))
	}
	res, err := httpclient.GetResource[tradesResponse](ctx, c.http, "/markets/trades", q, []int{http.StatusOK})
	if err != nil {
		return nil, fmt.Errorf("couldn't get trades for %s: %w", ticker, err)
	}
	return res.Trades, nil
}

type Event struct {
	EventTicker  string `json:"event_ticker"`
	SeriesTicker string `json:"series_ticker"`
	Title        string `json:"title"`
	Category     string `json:"category"`
}

type eventResponse struct {
	Event *Event `json:"event"`
}

func (c *Client) GetEvent(ctx context.Context, eventTicker string) (*Event, error) {
	res, err := httpclient.GetResource[eventResponse](ctx, c.http, "/events/"+url.PathEscape(eventTicker), nil, []int{http.StatusOK})
	if err != nil {
		return nil, fmt.Errorf("couldn't get event %s: %w", eventTicker, err)
	}
	return res.Event, nil
}

// CandlePrice is the traded price over one candle, in cents. Fields are nil
// when nothing traded.
type CandlePrice struct {
	Open  *int `json:"open"`
	Close *int `json:"close"`
	High  *int `json:"high"`
	Low   *int `json:"low"`
}

type Candlestick struct {
	EndPeriodTS int64       `json:"end_period_ts"`
	Price       CandlePrice `json:"price"`
	Volume      int64       `json:"volume"`
}

type candlesticksResponse struct {
	Ticker       string         `json:"ticker"`
	Candlesticks []*Candlestick `json:"candlesticks"`
}

// GetCandlesticks returns candles of periodMinutes (1, 60 or 1440) between start and end.
func (c *Client) GetCandlesticks(ctx context.Context, seriesTicker, ticker string, start, end time.Time, periodMinutes int) ([]*Candlestick, error) {
	q := url.Values{
		"start_ts":        {strconv.FormatInt(start.Unix(), 10)},
		"end_ts":          {strconv.FormatInt(end.Unix(), 10)},
		"period_interval": {strconv.Itoa(periodMinutes)},
	}
	endpoint := "/series/" + url.PathEscape(seriesTicker) + "/markets/" + url.PathEscape(ticker) + "/candlesticks"
	res, err := httpclient.GetResource[candlesticksResponse](ctx, c.http, endpoint, q, []int{http.StatusOK})
	if err != nil {
		return nil, fmt.Errorf("couldn't get candlesticks for %s: %w", ticker, err)
	}
	return res.Candlesticks, nil
}
