// Package publish fans synced markets out to a Kafka topic.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/daszybak/omniverse_markets/internal/schema"
)

// DefaultTopic receives one message per synced market.
const DefaultTopic = "omniverse.markets"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	writer messageWriter
	log    *slog.Logger
	now    func() time.Time
}

// New returns a publisher writing to topic on brokers.
func New(brokers []string, topic string, log *slog.Logger) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
		ReadTimeout:            10 * time.Second,
		WriteTimeout:           10 * time.Second,
	}
	return newPublisher(w, log)
}

func newPublisher(w messageWriter, log *slog.Logger) *Publisher {
	return &Publisher{writer: w, log: log.With("component", "publish"), now: time.Now}
}

// MarketSynced is the message body for one market of a sync.
type MarketSynced struct {
	SyncID   string          `json:"sync_id"`
	Provider schema.Provider `json:"provider"`
	Market   schema.Market   `json:"market"`
}

// PublishMarkets writes every market in one batch, keyed by provider and
// market ID so updates to a market stay on one partition.
func (p *Publisher) PublishMarkets(ctx context.Context, syncID string, provider schema.Provider, markets []schema.Market) error {
	if len(markets) == 0 {
		return nil
	}
	now := p.now()
	msgs := make([]kafka.Message, 0, len(markets))
	for _, m := range markets {
		value, err := json.Marshal(MarketSynced{SyncID: syncID, Provider: provider, Market: m})
		if err != nil {
			return fmt.Errorf("couldn't encode market %s: %w", m.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(string(provider) + ":" + m.ID),
			Value: value,
			Time:  now,
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("couldn't publish %d markets: %w", len(msgs), err)
	}
	p.log.Debug("published markets", "provider", provider, "count", len(msgs), "sync_id", syncID)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
