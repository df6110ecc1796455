package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rosterfi/rosterfi/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL. Only terminal
// outcomes land here; in-flight state lives in the orchestrator.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id, wallet, player_id, side, amount, bound, nonce,
	tx_hash, status, category, message, sign_source, quoted_price,
	created_at, confirmed_at`

func scanTradeRow(row pgx.Row) (domain.TradeRecord, error) {
	var rec domain.TradeRecord
	err := row.Scan(
		&rec.ID, &rec.Wallet, &rec.PlayerID, &rec.Side, &rec.Amount,
		&rec.Bound, &rec.Nonce, &rec.TxHash, &rec.Status, &rec.Category,
		&rec.Message, &rec.SignSource, &rec.QuotedPrice,
		&rec.CreatedAt, &rec.ConfirmedAt,
	)
	return rec, err
}

// Create inserts a terminal trade record.
func (s *TradeStore) Create(ctx context.Context, rec domain.TradeRecord) error {
	const query = `
		INSERT INTO trades (
			id, wallet, player_id, side, amount, bound, nonce,
			tx_hash, status, category, message, sign_source, quoted_price,
			created_at, confirmed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13,
			$14, $15
		)`

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.Wallet, rec.PlayerID, rec.Side, rec.Amount,
		rec.Bound, rec.Nonce, rec.TxHash, rec.Status, rec.Category,
		rec.Message, rec.SignSource, rec.QuotedPrice,
		rec.CreatedAt, rec.ConfirmedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade %s: %w", rec.ID, err)
	}
	return nil
}

// GetByID returns a single trade record. It returns domain.ErrNotFound when
// no record exists with the given ID.
func (s *TradeStore) GetByID(ctx context.Context, id string) (domain.TradeRecord, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades WHERE id = $1`

	rec, err := scanTradeRow(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TradeRecord{}, domain.ErrNotFound
		}
		return domain.TradeRecord{}, fmt.Errorf("postgres: get trade %s: %w", id, err)
	}
	return rec, nil
}

// ListByWallet returns a wallet's trade history, newest first.
func (s *TradeStore) ListByWallet(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades WHERE wallet = $1 ORDER BY created_at DESC`
	args := []any{wallet}
	argIdx := 2

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades by wallet: %w", err)
	}
	defer rows.Close()

	var records []domain.TradeRecord
	for rows.Next() {
		rec, err := scanTradeRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan trade row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list trades by wallet: %w", err)
	}
	return records, nil
}

// Compile-time interface check.
var _ domain.TradeStore = (*TradeStore)(nil)
