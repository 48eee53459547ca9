package store

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

//go:embed schema.sql
var schemaSQL string

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Queries struct {
	db DBTX
}

func newQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

// EnsureSchema creates the tables if they don't exist.
func (q *Queries) EnsureSchema(ctx context.Context) error {
	if _, err := q.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

type UpsertMarketParams struct {
	Provider    string
	ID          string
	Title       string
	Description string
	Status      string
	Category    string
	CreatedAt   time.Time
	CloseDate   pgtype.Timestamptz
	SettleDate  pgtype.Timestamptz
	TotalVolume float64
	Liquidity   float64
}

const upsertMarket = `
INSERT INTO markets (provider, id, title, description, status, category, created_at, close_date, settle_date, total_volume, liquidity, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
ON CONFLICT (provider, id) DO UPDATE SET
    title        = EXCLUDED.title,
    description  = EXCLUDED.description,
    status       = EXCLUDED.status,
    category     = EXCLUDED.category,
    close_date   = EXCLUDED.close_date,
    settle_date  = EXCLUDED.settle_date,
    total_volume = EXCLUDED.total_volume,
    liquidity    = EXCLUDED.liquidity,
    updated_at   = now()`

func (q *Queries) UpsertMarket(ctx context.Context, arg UpsertMarketParams) error {
	_, err := q.db.Exec(ctx, upsertMarket,
		arg.Provider, arg.ID, arg.Title, arg.Description, arg.Status, arg.Category,
		arg.CreatedAt, arg.CloseDate, arg.SettleDate, arg.TotalVolume, arg.Liquidity,
	)
	return err
}

type UpsertOutcomeParams struct {
	Provider string
	MarketID string
	ID       string
	Name     string
	Price    pgtype.Float8
	Volume   pgtype.Float8
}

const upsertOutcome = `
INSERT INTO outcomes (provider, market_id, id, name, price, volume)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (provider, market_id, id) DO UPDATE SET
    name   = EXCLUDED.name,
    price  = EXCLUDED.price,
    volume = EXCLUDED.volume`

func (q *Queries) UpsertOutcome(ctx context.Context, arg UpsertOutcomeParams) error {
	_, err := q.db.Exec(ctx, upsertOutcome, arg.Provider, arg.MarketID, arg.ID, arg.Name, arg.Price, arg.Volume)
	return err
}

type InsertSyncRunParams struct {
	SyncID        uuid.UUID
	Provider      string
	Status        string
	MarketsSynced int32
	Error         pgtype.Text
	SyncedAt      time.Time
}

const insertSyncRun = `
INSERT INTO sync_runs (sync_id, provider, status, markets_synced, error, synced_at)
VALUES ($1, $2, $3, $4, $5, $6)`

func (q *Queries) InsertSyncRun(ctx context.Context, arg InsertSyncRunParams) error {
	_, err := q.db.Exec(ctx, insertSyncRun, arg.SyncID, arg.Provider, arg.Status, arg.MarketsSynced, arg.Error, arg.SyncedAt)
	return err
}
