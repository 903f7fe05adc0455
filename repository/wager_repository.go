package repository

import (
	"context"
	"fmt"

	"roulette/database"
	"roulette/domain/entities"
	"roulette/domain/interfaces"

	"github.com/jackc/pgx/v5"
)

const wagerColumns = `id, account_id, username, round_id, category, amount, won, payout, created_at, settled_at`

// WagerRepository implements the WagerRepository interface
type WagerRepository struct {
	q queryable
}

// NewWagerRepository creates a new wager repository
func NewWagerRepository(db *database.DB) interfaces.WagerRepository {
	return &WagerRepository{q: db.Pool}
}

// newWagerRepositoryWithTx creates a new wager repository with a transaction
func newWagerRepositoryWithTx(tx queryable) *WagerRepository {
	return &WagerRepository{q: tx}
}

func scanWager(row pgx.Row) (*entities.Wager, error) {
	var wager entities.Wager
	var category string
	err := row.Scan(
		&wager.ID,
		&wager.AccountID,
		&wager.Username,
		&wager.RoundID,
		&category,
		&wager.Amount,
		&wager.Won,
		&wager.Payout,
		&wager.CreatedAt,
		&wager.SettledAt,
	)
	if err != nil {
		return nil, err
	}
	wager.Category = entities.Category(category)
	return &wager, nil
}

// Create inserts an unsettled wager
func (r *WagerRepository) Create(ctx context.Context, wager *entities.Wager) error {
	query := `
		INSERT INTO wagers (account_id, username, round_id, category, amount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, payout, created_at
	`

	err := r.q.QueryRow(ctx, query,
		wager.AccountID,
		wager.Username,
		wager.RoundID,
		string(wager.Category),
		wager.Amount,
	).Scan(&wager.ID, &wager.Payout, &wager.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create wager for account %d in round %d: %w", wager.AccountID, wager.RoundID, err)
	}

	return nil
}

// MarkSettled writes the result once; a settled wager is left untouched
func (r *WagerRepository) MarkSettled(ctx context.Context, wagerID int64, won bool, payout int64) (bool, error) {
	query := `
		UPDATE wagers
		SET won = $1, payout = $2, settled_at = NOW()
		WHERE id = $3 AND won IS NULL
	`

	result, err := r.q.Exec(ctx, query, won, payout, wagerID)
	if err != nil {
		return false, fmt.Errorf("failed to settle wager %d: %w", wagerID, err)
	}

	return result.RowsAffected() == 1, nil
}

// GetByRound returns all wagers of a round in submission order
func (r *WagerRepository) GetByRound(ctx context.Context, roundID int64) ([]*entities.Wager, error) {
	query := `SELECT ` + wagerColumns + ` FROM wagers WHERE round_id = $1 ORDER BY id ASC`
	return r.queryWagers(ctx, query, roundID)
}

// GetByAccount returns the newest wagers of an account
func (r *WagerRepository) GetByAccount(ctx context.Context, accountID int64, limit int) ([]*entities.Wager, error) {
	query := `SELECT ` + wagerColumns + ` FROM wagers WHERE account_id = $1 ORDER BY id DESC LIMIT $2`
	return r.queryWagers(ctx, query, accountID, limit)
}

func (r *WagerRepository) queryWagers(ctx context.Context, query string, args ...any) ([]*entities.Wager, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query wagers: %w", err)
	}
	defer rows.Close()

	var wagers []*entities.Wager
	for rows.Next() {
		wager, err := scanWager(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wager: %w", err)
		}
		wagers = append(wagers, wager)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate wagers: %w", err)
	}

	return wagers, nil
}
