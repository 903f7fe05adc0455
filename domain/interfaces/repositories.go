package interfaces

import (
	"context"
	"time"

	"roulette/domain/entities"
	"roulette/events"
)

// AccountRepository defines the interface for account data access.
// Lookups return nil, nil when the account does not exist.
type AccountRepository interface {
	// GetByID retrieves an account by its identity
	GetByID(ctx context.Context, id int64) (*entities.Account, error)

	// Create inserts a new account with the starting balance. It returns
	// nil, nil when the account already exists.
	Create(ctx context.Context, id int64, username string, initialBalance int64) (*entities.Account, error)

	// Debit subtracts amount only if the balance covers it and returns the new
	// balance. entities.ErrInsufficientFunds is returned when it does not.
	Debit(ctx context.Context, id int64, amount int64) (int64, error)

	// Credit adds amount and returns the new balance
	Credit(ctx context.Context, id int64, amount int64) (int64, error)

	// ApplySettlement credits the payout sum and bumps the lifetime counters
	// in one statement, returning the new balance.
	ApplySettlement(ctx context.Context, settlement entities.AccountSettlement) (int64, error)

	// SetAdmin grants or revokes the privileged role
	SetAdmin(ctx context.Context, id int64, isAdmin bool) error

	// List returns accounts ordered by balance, highest first
	List(ctx context.Context, limit, offset int) ([]*entities.Account, error)

	// GetStats aggregates platform activity. Accounts active since the given
	// time count as active.
	GetStats(ctx context.Context, activeSince time.Time) (*entities.PlatformStats, error)
}

// WagerRepository defines the interface for wager data access
type WagerRepository interface {
	// Create persists an unsettled wager and fills in its ID and timestamps
	Create(ctx context.Context, wager *entities.Wager) error

	// MarkSettled writes won/payout once. It returns false when the wager was
	// already settled, in which case nothing changes.
	MarkSettled(ctx context.Context, wagerID int64, won bool, payout int64) (bool, error)

	// GetByRound returns the wagers of a round in submission order
	GetByRound(ctx context.Context, roundID int64) ([]*entities.Wager, error)

	// GetByAccount returns the newest wagers of an account
	GetByAccount(ctx context.Context, accountID int64, limit int) ([]*entities.Wager, error)
}

// RoundRepository defines the interface for round data access
type RoundRepository interface {
	// Create persists a new round with its pre-allocated ID
	Create(ctx context.Context, round *entities.Round) error

	// Update writes status, outcome, totals and completion time
	Update(ctx context.Context, round *entities.Round) error

	// GetByID retrieves a round, locking the row when called inside a transaction
	GetByID(ctx context.Context, id int64) (*entities.Round, error)

	// GetLatest returns the round with the highest ID
	GetLatest(ctx context.Context) (*entities.Round, error)

	// GetRecentCompleted returns completed rounds, newest first
	GetRecentCompleted(ctx context.Context, limit int) ([]*entities.Round, error)
}

// BalanceHistoryRepository defines the interface for balance history data access
type BalanceHistoryRepository interface {
	// Record creates a new balance history entry
	Record(ctx context.Context, history *entities.BalanceHistory) error

	// GetByAccount returns the newest entries for an account
	GetByAccount(ctx context.Context, accountID int64, limit int) ([]*entities.BalanceHistory, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event) error
}

// UnitOfWork groups repository calls into one database transaction.
// Events published through EventBus are delivered only after Commit.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	AccountRepository() AccountRepository
	WagerRepository() WagerRepository
	RoundRepository() RoundRepository
	BalanceHistoryRepository() BalanceHistoryRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}
