package interfaces

import (
	"context"

	"roulette/domain/entities"
)

// AccountService defines account lifecycle operations
type AccountService interface {
	// GetOrCreateAccount returns the account, creating it with the starting
	// balance on first contact.
	GetOrCreateAccount(ctx context.Context, id int64, username string) (*entities.Account, error)
}

// LedgerService owns balances, wagers and rounds for the round engine
type LedgerService interface {
	// OpenRound persists a new round with ID latest+1
	OpenRound(ctx context.Context) (*entities.Round, error)

	// PlaceWager debits the stake and persists an unsettled wager. It
	// returns the wager and the account balance after the debit.
	PlaceWager(ctx context.Context, roundID int64, request entities.WagerRequest) (*entities.Wager, int64, error)

	// RecordOutcome stores the drawn sector and moves the round to spinning
	RecordOutcome(ctx context.Context, roundID int64, outcome entities.Outcome) error

	// SettleRound resolves every wager of the round against the outcome,
	// credits winners and marks the round completed. Settling a completed
	// round returns it unchanged.
	SettleRound(ctx context.Context, roundID int64, outcome entities.Outcome) (*entities.RoundSettlement, error)

	// VoidRound refunds every unsettled wager of the round and marks it void
	VoidRound(ctx context.Context, roundID int64) (*entities.RoundSettlement, error)
}

// AdminService defines privileged account operations that bypass rounds
type AdminService interface {
	// AdjustBalance credits a positive amount or debits a negative one.
	// A debit below zero is rejected with entities.ErrInsufficientFunds.
	AdjustBalance(ctx context.Context, accountID int64, amount int64, adminID int64) (*entities.Account, error)

	// GrantAdmin sets the privileged role flag
	GrantAdmin(ctx context.Context, accountID int64) error

	// ListAccounts returns accounts ordered by balance
	ListAccounts(ctx context.Context, limit, offset int) ([]*entities.Account, error)

	// Stats aggregates platform activity over the last day
	Stats(ctx context.Context) (*entities.PlatformStats, error)
}
