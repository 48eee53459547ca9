// Package clob is used to call clob polymarket endpoints.
package clob

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/daszybak/omniverse_markets/internal/price"
	"github.com/daszybak/omniverse_markets/pkg/httpclient"
)

const DefaultBaseURL = "https://clob.polymarket.com"

type Client struct {
	http *httpclient.Client
}

func New(baseURL string, opts ...httpclient.Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{http: httpclient.New(baseURL, opts...)}
}

type Level struct {
	Price price.Price `json:"price"`
	Size  price.Size  `json:"size"`
}

type Book struct {
	Market    string  `json:"market"`
	AssetID   string  `json:"asset_id"`
	Timestamp string  `json:"timestamp"`
	Bids      []Level `json:"bids"`
	Asks      []Level `json:"asks"`
}

func (c *Client) GetBook(ctx context.Context, tokenID string) (*Book, error) {
	q := url.Values{"token_id": {tokenID}}
	book, err := httpclient.GetResource[*Book](ctx, c.http, "/book", q, []int{http.StatusOK})
	if err != nil {
		return nil, fmt.Errorf("couldn't get book for token %s: %w", tokenID, err)
	}
	return book, nil
}

type HistoryPoint struct {
	T int64   `json:"t"`
	P float64 `json:"p"`
}

type priceHistory struct {
	History []HistoryPoint `json:"history"`
}

// GetPriceHistory returns the token's price between start and end with one
// point per fidelity minutes.
func (c *Client) GetPriceHistory(ctx context.Context, tokenID string, start, end time.Time, fidelity int) ([]HistoryPoint, error) {
	q := url.Values{
		"market":   {tokenID},
		"startTs":  {strconv.FormatInt(start.Unix(), 10)},
		"endTs":    {strconv.FormatInt(end.Unix(), 10)},
		"fidelity": {strconv.Itoa(fidelity)},
	}
	res, err := httpclient.GetResource[priceHistory](ctx, c.http, "/prices-history", q, []int{http.StatusOK})
	if err != nil {
		return nil, fmt.Errorf("couldn't get price history for token %s: %w", tokenID, err)
	}
	return res.History, nil
}
