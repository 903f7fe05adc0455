package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"roulette/database"
	"roulette/domain/entities"
	"roulette/domain/interfaces"

	"github.com/jackc/pgx/v5"
)

const accountColumns = `id, username, balance, total_wagers, total_wins, total_wagered, total_won,
	is_admin, last_activity_at, created_at, updated_at`

// AccountRepository implements the AccountRepository interface
type AccountRepository struct {
	q queryable
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *database.DB) interfaces.AccountRepository {
	return &AccountRepository{q: db.Pool}
}

// newAccountRepositoryWithTx creates a new account repository with a transaction
func newAccountRepositoryWithTx(tx queryable) *AccountRepository {
	return &AccountRepository{q: tx}
}

func scanAccount(row pgx.Row) (*entities.Account, error) {
	var account entities.Account
	err := row.Scan(
		&account.ID,
		&account.Username,
		&account.Balance,
		&account.TotalWagers,
		&account.TotalWins,
		&account.TotalWagered,
		&account.TotalWon,
		&account.IsAdmin,
		&account.LastActivityAt,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetByID retrieves an account by ID
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*entities.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	account, err := scanAccount(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %d: %w", id, err)
	}

	return account, nil
}

// Create creates a new account with the initial balance
func (r *AccountRepository) Create(ctx context.Context, id int64, username string, initialBalance int64) (*entities.Account, error) {
	query := `
		INSERT INTO accounts (id, username, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
		RETURNING ` + accountColumns

	account, err := scanAccount(r.q.QueryRow(ctx, query, id, username, initialBalance))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create account %d: %w", id, err)
	}

	return account, nil
}

// Debit subtracts from the balance only when it covers the amount
func (r *AccountRepository) Debit(ctx context.Context, id int64, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("amount must be positive")
	}

	query := `
		UPDATE accounts
		SET balance = balance - $1, last_activity_at = NOW(), updated_at = NOW()
		WHERE id = $2 AND balance >= $1
		RETURNING balance
	`

	var newBalance int64
	err := r.q.QueryRow(ctx, query, amount, id).Scan(&newBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		account, getErr := r.GetByID(ctx, id)
		if getErr != nil {
			return 0, getErr
		}
		if account == nil {
			return 0, fmt.Errorf("%w: %d", entities.ErrAccountNotFound, id)
		}
		return 0, entities.Reject(entities.ReasonInsufficientFunds, "balance %d is below %d", account.Balance, amount)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to debit account %d: %w", id, err)
	}

	return newBalance, nil
}

// Credit adds to the balance
func (r *AccountRepository) Credit(ctx context.Context, id int64, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("amount must be positive")
	}

	query := `
		UPDATE accounts
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING balance
	`

	var newBalance int64
	err := r.q.QueryRow(ctx, query, amount, id).Scan(&newBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %d", entities.ErrAccountNotFound, id)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to credit account %d: %w", id, err)
	}

	return newBalance, nil
}

// ApplySettlement credits the round's payouts and bumps the counters
func (r *AccountRepository) ApplySettlement(ctx context.Context, s entities.AccountSettlement) (int64, error) {
	query := `
		UPDATE accounts
		SET balance = balance + $1,
			total_wagers = total_wagers + $2,
			total_wins = total_wins + $3,
			total_wagered = total_wagered + $4,
			total_won = total_won + $1,
			updated_at = NOW()
		WHERE id = $5
		RETURNING balance
	`

	var newBalance int64
	err := r.q.QueryRow(ctx, query, s.Credit, s.WagerCount, s.WinCount, s.AmountStaked, s.AccountID).Scan(&newBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %d", entities.ErrAccountNotFound, s.AccountID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to apply settlement to account %d: %w", s.AccountID, err)
	}

	return newBalance, nil
}

// SetAdmin grants or revokes the admin flag
func (r *AccountRepository) SetAdmin(ctx context.Context, id int64, isAdmin bool) error {
	result, err := r.q.Exec(ctx, `UPDATE accounts SET is_admin = $1, updated_at = NOW() WHERE id = $2`, isAdmin, id)
	if err != nil {
		return fmt.Errorf("failed to set admin flag for account %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", entities.ErrAccountNotFound, id)
	}
	return nil
}

// List returns accounts ordered by balance
func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*entities.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY balance DESC, id ASC LIMIT $1 OFFSET $2`

	rows, err := r.q.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*entities.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}

	return accounts, nil
}

// GetStats aggregates platform activity
func (r *AccountRepository) GetStats(ctx context.Context, activeSince time.Time) (*entities.PlatformStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM accounts),
			(SELECT COUNT(*) FROM accounts WHERE last_activity_at >= $1),
			(SELECT COUNT(*) FROM wagers),
			(SELECT COUNT(*) FROM rounds WHERE status = 'completed'),
			(SELECT COALESCE(SUM(amount), 0) FROM wagers WHERE won IS NOT NULL),
			(SELECT COALESCE(SUM(payout), 0) FROM wagers WHERE won IS NOT NULL)
	`

	var stats entities.PlatformStats
	err := r.q.QueryRow(ctx, query, activeSince).Scan(
		&stats.TotalAccounts,
		&stats.ActiveAccounts,
		&stats.TotalWagers,
		&stats.TotalRounds,
		&stats.TotalWagered,
		&stats.TotalPayout,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get platform stats: %w", err)
	}
	stats.HouseProfit = stats.TotalWagered - stats.TotalPayout

	return &stats, nil
}
