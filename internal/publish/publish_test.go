package publish

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/daszybak/omniverse_markets/internal/schema"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestPublishMarkets(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w, slog.New(slog.NewTextHandler(io.Discard, nil)))

	markets := []schema.Market{{ID: "A", Provider: schema.Kalshi}, {ID: "B", Provider: schema.Kalshi}}
	if err := p.PublishMarkets(context.Background(), "sync-1", schema.Kalshi, markets); err != nil {
		t.Fatalf("PublishMarkets() error = %v", err)
	}
	if len(w.msgs) != 2 {
		t.Fatalf("wrote %d messages, want 2", len(w.msgs))
	}
	if string(w.msgs[1].Key) != "kalshi:B" {
		t.Errorf("key = %q, want kalshi:B", w.msgs[1].Key)
	}
	var got MarketSynced
	if err := json.Unmarshal(w.msgs[0].Value, &got); err != nil {
		t.Fatal(err)
	}
	if got.SyncID != "sync-1" || got.Market.ID != "A" {
		t.Errorf("message = %+v", got)
	}
}

func TestPublishMarketsEmpty(t *testing.T) {
	w := &fakeWriter{err: errors.New("unreachable")}
	p := newPublisher(w, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := p.PublishMarkets(context.Background(), "s", schema.Kalshi, nil); err != nil {
		t.Errorf("PublishMarkets(nil) error = %v, want nil", err)
	}
}

func TestPublishMarketsWriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := newPublisher(w, slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := p.PublishMarkets(context.Background(), "s", schema.Kalshi, []schema.Market{{ID: "A"}})
	if !errors.Is(err, w.err) {
		t.Errorf("PublishMarkets() error = %v, want wrapped broker error", err)
	}
}
