// Package platform provides an adapter interface for prediction market platforms.
package platform

import (
	"context"

	"github.com/daszybak/omniverse_markets/internal/schema"
)

// Platform fetches normalized records from one provider. Implementations
// return schema.ErrNotFound for unknown markets and surface every other
// failure as an error; deciding what callers see is the connector's job.
type Platform interface {
	Provider() schema.Provider
	Markets(ctx context.Context) ([]schema.Market, error)
	Market(ctx context.Context, id string) (*schema.Market, error)
	OrderBook(ctx context.Context, m *schema.Market, depth int) (*schema.OrderBook, error)
	TimeSeries(ctx context.Context, m *schema.Market, q schema.TimeSeriesQuery) (*schema.TimeSeries, error)
	Events(ctx context.Context, m *schema.Market, q schema.EventQuery) ([]schema.Event, error)
}

// Mode tells whether a platform talks to the provider or serves sample data.
type Mode string

const (
	ModeLive Mode = "live"
	ModeMock Mode = "mock"
)
