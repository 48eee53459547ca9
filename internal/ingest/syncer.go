// Package ingest runs provider syncs and hands the results to the configured sinks.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/daszybak/omniverse_markets/internal/connector"
	"github.com/daszybak/omniverse_markets/internal/schema"
)

var ErrUnknownProvider = errors.New("unknown provider")

// Store persists a sync.
type Store interface {
	SaveSync(ctx context.Context, res schema.SyncResult, markets []schema.Market) error
}

// Publisher forwards synced markets downstream.
type Publisher interface {
	PublishMarkets(ctx context.Context, syncID string, provider schema.Provider, markets []schema.Market) error
}

// Broadcaster notifies live subscribers of a synced market.
type Broadcaster interface {
	MarketSynced(syncID string, m schema.Market)
}

// Recorder counts syncs by outcome.
type Recorder interface {
	Sync(provider, status string, markets int)
}

type Syncer struct {
	connectors map[schema.Provider]*connector.Connector
	log        *slog.Logger

	store     Store
	publisher Publisher
	stream    Broadcaster
	metrics   Recorder
}

type Option func(*Syncer)

func WithStore(s Store) Option { return func(sy *Syncer) { sy.store = s } }

func WithPublisher(p Publisher) Option { return func(sy *Syncer) { sy.publisher = p } }

func WithBroadcaster(b Broadcaster) Option { return func(sy *Syncer) { sy.stream = b } }

func WithMetrics(r Recorder) Option { return func(sy *Syncer) { sy.metrics = r } }

func New(connectors []*connector.Connector, log *slog.Logger, opts ...Option) *Syncer {
	s := &Syncer{
		connectors: make(map[schema.Provider]*connector.Connector, len(connectors)),
		log:        log.With("component", "ingest"),
	}
	for _, c := range connectors {
		s.connectors[c.Provider()] = c
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync syncs the named provider. The name is matched case-insensitively.
func (s *Syncer) Sync(ctx context.Context, name string) (schema.SyncResult, error) {
	p, err := schema.ParseProvider(name)
	if err != nil {
		return schema.SyncResult{}, fmt.Errorf("%w: %q", ErrUnknownProvider, strings.ToLower(name))
	}
	c, ok := s.connectors[p]
	if !ok {
		return schema.SyncResult{}, fmt.Errorf("%w: %q", ErrUnknownProvider, p)
	}

	res, markets := c.Sync(ctx)
	if res.Status == schema.SyncSuccess {
		if errs := s.deliver(ctx, res, markets); len(errs) > 0 {
			res.Status = schema.SyncPartial
			res.Error = errors.Join(errs...).Error()
		}
	}

	if s.metrics != nil {
		s.metrics.Sync(string(p), res.Status, res.MarketsSynced)
	}
	return res, nil
}

// deliver hands the sync to every configured sink and collects their failures.
func (s *Syncer) deliver(ctx context.Context, res schema.SyncResult, markets []schema.Market) []error {
	var errs []error
	log := s.log.With("provider", string(res.Provider), "sync_id", res.SyncID)

	if s.store != nil {
		if err := s.store.SaveSync(ctx, res, markets); err != nil {
			log.Error("couldn't save sync", "error", err)
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishMarkets(ctx, res.SyncID, res.Provider, markets); err != nil {
			log.Error("couldn't publish sync", "error", err)
			errs = append(errs, fmt.Errorf("publish: %w", err))
		}
	}
	if s.stream != nil {
		for _, m := range markets {
			s.stream.MarketSynced(res.SyncID, m)
		}
	}
	return errs
}

// Run syncs every provider on each tick until ctx is done. A non-positive
// interval disables the loop.
func (s *Syncer) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		s.log.Info("scheduled sync disabled")
		return
	}

	s.syncAll(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.syncAll(ctx)
		case <-ctx.Done():
			s.log.Info("scheduled sync stopped", "reason", ctx.Err())
			return
		}
	}
}

func (s *Syncer) syncAll(ctx context.Context) {
	for _, p := range schema.Providers {
		if _, ok := s.connectors[p]; !ok {
			continue
		}
		res, err := s.Sync(ctx, string(p))
		if err != nil {
			s.log.Error("scheduled sync failed", "provider", string(p), "error", err)
			continue
		}
		s.log.Info("scheduled sync", "provider", string(p), "status", res.Status, "markets", res.MarketsSynced)
	}
}
