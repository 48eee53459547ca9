// Package store persists synced markets and sync runs in Postgres.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/daszybak/omniverse_markets/internal/schema"
)

// Store wraps Queries and provides transaction support.
type Store struct {
	*Queries
	pool *pgxpool.Pool
}

// New creates a new Store with the given connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{
		Queries: newQueries(pool),
		pool:    pool,
	}
}

// Close closes the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// WithTx executes fn within a transaction.
// If fn returns an error, the transaction is rolled back.
// Otherwise, the transaction is committed.
func (s *Store) WithTx(ctx context.Context, fn func(*Queries) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	qtx := s.Queries.WithTx(tx)

	if err := fn(qtx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// SaveSync upserts the synced markets with their outcomes and records the
// run, all in one transaction.
func (s *Store) SaveSync(ctx context.Context, res schema.SyncResult, markets []schema.Market) error {
	syncID, err := uuid.Parse(res.SyncID)
	if err != nil {
		return fmt.Errorf("invalid sync id %q: %w", res.SyncID, err)
	}

	return s.WithTx(ctx, func(q *Queries) error {
		for _, m := range markets {
			if err := q.UpsertMarket(ctx, marketParams(m)); err != nil {
				return fmt.Errorf("upsert market %s: %w", m.ID, err)
			}
			for _, o := range m.Outcomes {
				if err := q.UpsertOutcome(ctx, outcomeParams(m, o)); err != nil {
					return fmt.Errorf("upsert outcome %s/%s: %w", m.ID, o.ID, err)
				}
			}
		}
		return q.InsertSyncRun(ctx, syncRunParams(syncID, res))
	})
}

func marketParams(m schema.Market) UpsertMarketParams {
	return UpsertMarketParams{
		Provider:    string(m.Provider),
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Status:      m.Status,
		Category:    m.Category,
		CreatedAt:   m.CreatedAt,
		CloseDate:   timestamptz(m.CloseDate),
		SettleDate:  timestamptz(m.SettleDate),
		TotalVolume: m.TotalVolume,
		Liquidity:   m.Liquidity,
	}
}

func outcomeParams(m schema.Market, o schema.Outcome) UpsertOutcomeParams {
	return UpsertOutcomeParams{
		Provider: string(m.Provider),
		MarketID: m.ID,
		ID:       o.ID,
		Name:     o.Name,
		Price:    float8(o.Price),
		Volume:   float8(o.Volume),
	}
}

func syncRunParams(id uuid.UUID, res schema.SyncResult) InsertSyncRunParams {
	return InsertSyncRunParams{
		SyncID:        id,
		Provider:      string(res.Provider),
		Status:        res.Status,
		MarketsSynced: int32(res.MarketsSynced),
		Error:         pgtype.Text{String: res.Error, Valid: res.Error != ""},
		SyncedAt:      res.Timestamp,
	}
}

func timestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func float8(v *float64) pgtype.Float8 {
	if v == nil {
		return pgtype.Float8{}
	}
	return pgtype.Float8{Float64: *v, Valid: true}
}
