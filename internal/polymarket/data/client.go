// Package data calls Polymarket's data API for trade history.
package data

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/daszybak/omniverse_markets/pkg/httpclient"
)

const DefaultBaseURL = "https://data-api.polymarket.com"

type Client struct {
	http *httpclient.Client
}

func New(baseURL string, opts ...httpclient.Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{http: httpclient.New(baseURL, opts...)}
}

type Trade struct {
	ConditionID     string  `json:"conditionId"`
	Asset           string  `json:"asset"`
	Side            string  `json:"side"`
	Outcome         string  `json:"outcome"`
	OutcomeIndex    int     `json:"outcomeIndex"`
	Size            float64 `json:"size"`
	Price           float64 `json:"price"`
	Timestamp       int64   `json:"timestamp"`
	TransactionHash string  `json:"transactionHash"`
}

// GetTrades returns the latest trades on a market, newest first.
func (c *Client) GetTrades(ctx context.Context, conditionID string, limit int) ([]*Trade, error) {
	q := url.Values{"market": {conditionID}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	trades, err := httpclient.GetResource[[]*Trade](ctx, c.http, "/trades", q, []int{http.StatusOK})
	if err != nil {
		return nil, fmt.Errorf("couldn't get trades for %s: %w", conditionID, err)
	}
	return trades, nil
}
