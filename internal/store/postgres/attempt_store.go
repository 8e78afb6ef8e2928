package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arbiq/spreadbot/internal/domain"
)

// AttemptStore implements domain.AttemptStore using PostgreSQL.
type AttemptStore struct {
	pool *pgxpool.Pool
}

// NewAttemptStore creates a new AttemptStore backed by the given pool.
func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{pool: pool}
}

// Insert journals one completed attempt.
func (s *AttemptStore) Insert(ctx context.Context, rec domain.AttemptRecord) error {
	const query = `
		INSERT INTO arbitrage_attempts (
			id, symbol, buy_exchange, sell_exchange,
			buy_price, sell_price, spread_pct, base_amount,
			profit, buy_fee, sell_fee,
			simulated, success, error, executed_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11,
			$12, $13, $14, $15
		) ON CONFLICT (id) DO NOTHING`

	// Decimals travel as strings; Postgres casts them into NUMERIC.
	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.Symbol, rec.BuyExchange, rec.SellExchange,
		rec.BuyPrice.String(), rec.SellPrice.String(), rec.SpreadPct.String(), rec.BaseAmount.String(),
		rec.Profit.String(), rec.BuyFee.String(), rec.SellFee.String(),
		rec.Simulated, rec.Success, rec.Error, rec.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert attempt %s: %w", rec.ID, err)
	}
	return nil
}

// CountLive returns the number of successful non-simulated attempts on record.
func (s *AttemptStore) CountLive(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM arbitrage_attempts WHERE simulated = FALSE AND success = TRUE",
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count live attempts: %w", err)
	}
	return n, nil
}

// Compile-time interface check.
var _ domain.AttemptStore = (*AttemptStore)(nil)
