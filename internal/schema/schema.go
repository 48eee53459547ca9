// Package schema defines the provider-agnostic records served by the API.
//
// Every record carries the provider it came from. IDs are namespaced by the
// provider and are never merged across providers.
package schema

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned by platforms when a record doesn't exist at the provider.
var ErrNotFound = errors.New("not found")

type Provider string

const (
	Kalshi     Provider = "kalshi"
	Polymarket Provider = "polymarket"
)

// Providers lists the supported providers in lookup order.
var Providers = []Provider{Kalshi, Polymarket}

// ParseProvider resolves a provider name case-insensitively.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Providers {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

func (p Provider) String() string { return string(p) }

// Market status values after normalization.
const (
	StatusActive  = "active"
	StatusClosed  = "closed"
	StatusSettled = "settled"
)

type Outcome struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Price  *float64 `json:"price"`
	Volume *float64 `json:"volume"`
}

type Market struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Provider    Provider   `json:"provider"`
	Status      string     `json:"status"`
	Category    string     `json:"category"`
	CreatedAt   time.Time  `json:"created_at"`
	CloseDate   *time.Time `json:"close_date"`
	SettleDate  *time.Time `json:"settle_date"`
	Outcomes    []Outcome  `json:"outcomes"`
	TotalVolume float64    `json:"total_volume"`
	Liquidity   float64    `json:"liquidity"`

	// Source is the provider record the market was normalized from. It is
	// not serialized, so markets read back from a cache have none.
	Source any `json:"-"`
}

// MarketPrice is the current price of every outcome of a market.
type MarketPrice struct {
	MarketID  string    `json:"market_id"`
	Provider  Provider  `json:"provider"`
	Timestamp time.Time `json:"timestamp"`
	Outcomes  []Outcome `json:"outcomes"`
}

type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	Volume    *float64  `json:"volume,omitempty"`
	OutcomeID string    `json:"outcome_id,omitempty"`
}

type TimeSeries struct {
	MarketID   string       `json:"market_id"`
	Provider   Provider     `json:"provider"`
	OutcomeID  string       `json:"outcome_id,omitempty"`
	Interval   Interval     `json:"interval"`
	DataPoints []PricePoint `json:"data_points"`
}

type OrderBookEntry struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

type OrderBook struct {
	MarketID  string           `json:"market_id"`
	Provider  Provider         `json:"provider"`
	OutcomeID string           `json:"outcome_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Bids      []OrderBookEntry `json:"bids"`
	Asks      []OrderBookEntry `json:"asks"`
	Spread    *float64         `json:"spread"`
}

type Event struct {
	ID        string         `json:"id"`
	MarketID  string         `json:"market_id"`
	Provider  Provider       `json:"provider"`
	EventType string         `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// Sync statuses.
const (
	SyncSuccess = "success"
	SyncPartial = "partial"
	SyncError   = "error"
)

// SyncResult reports the outcome of pulling a provider's market list.
type SyncResult struct {
	SyncID        string    `json:"sync_id"`
	Provider      Provider  `json:"provider"`
	MarketsSynced int       `json:"markets_synced"`
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Float returns a pointer to v, for the optional numeric fields.
func Float(v float64) *float64 { return &v }
