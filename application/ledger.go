package application

import (
	"context"
	"fmt"
	"time"

	"roulette/domain/entities"
	"roulette/domain/interfaces"
	"roulette/domain/services"
)

// DefaultOperationTimeout bounds a single ledger transaction
const DefaultOperationTimeout = 5 * time.Second

// unitOfWorkLedger runs each ledger operation in its own unit of work
type unitOfWorkLedger struct {
	uowFactory interfaces.UnitOfWorkFactory
	wheel      *entities.Wheel
	timeout    time.Duration
}

// NewLedger creates the transactional ledger used by the round engine
func NewLedger(uowFactory interfaces.UnitOfWorkFactory, wheel *entities.Wheel, timeout time.Duration) Ledger {
	if timeout <= 0 {
		timeout = DefaultOperationTimeout
	}
	return &unitOfWorkLedger{
		uowFactory: uowFactory,
		wheel:      wheel,
		timeout:    timeout,
	}
}

// withLedger begins a unit of work, hands a ledger service bound to it to fn
// and commits when fn succeeds. Any error rolls the transaction back.
func (l *unitOfWorkLedger) withLedger(ctx context.Context, fn func(ctx context.Context, ledger interfaces.LedgerService, uow interfaces.UnitOfWork) error) error {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	uow := l.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	ledger := services.NewLedgerService(
		uow.AccountRepository(),
		uow.WagerRepository(),
		uow.RoundRepository(),
		uow.BalanceHistoryRepository(),
		uow.EventBus(),
		l.wheel,
	)

	if err := fn(ctx, ledger, uow); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (l *unitOfWorkLedger) OpenRound(ctx context.Context) (*entities.Round, error) {
	var round *entities.Round
	err := l.withLedger(ctx, func(ctx context.Context, ledger interfaces.LedgerService, _ interfaces.UnitOfWork) error {
		var err error
		round, err = ledger.OpenRound(ctx)
		return err
	})
	return round, err
}

func (l *unitOfWorkLedger) PlaceWager(ctx context.Context, roundID int64, request entities.WagerRequest) (*entities.Wager, int64, error) {
	var wager *entities.Wager
	var balance int64
	err := l.withLedger(ctx, func(ctx context.Context, ledger interfaces.LedgerService, _ interfaces.UnitOfWork) error {
		var err error
		wager, balance, err = ledger.PlaceWager(ctx, roundID, request)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return wager, balance, nil
}

func (l *unitOfWorkLedger) RecordOutcome(ctx context.Context, roundID int64, outcome entities.Outcome) error {
	return l.withLedger(ctx, func(ctx context.Context, ledger interfaces.LedgerService, _ interfaces.UnitOfWork) error {
		return ledger.RecordOutcome(ctx, roundID, outcome)
	})
}

func (l *unitOfWorkLedger) SettleRound(ctx context.Context, roundID int64, outcome entities.Outcome) (*entities.RoundSettlement, error) {
	var settlement *entities.RoundSettlement
	err := l.withLedger(ctx, func(ctx context.Context, ledger interfaces.LedgerService, _ interfaces.UnitOfWork) error {
		var err error
		settlement, err = ledger.SettleRound(ctx, roundID, outcome)
		return err
	})
	if err != nil {
		return nil, err
	}
	return settlement, nil
}

func (l *unitOfWorkLedger) VoidRound(ctx context.Context, roundID int64) (*entities.RoundSettlement, error) {
	var settlement *entities.RoundSettlement
	err := l.withLedger(ctx, func(ctx context.Context, ledger interfaces.LedgerService, _ interfaces.UnitOfWork) error {
		var err error
		settlement, err = ledger.VoidRound(ctx, roundID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return settlement, nil
}

func (l *unitOfWorkLedger) LatestRound(ctx context.Context) (*entities.Round, error) {
	var round *entities.Round
	err := l.withLedger(ctx, func(ctx context.Context, _ interfaces.LedgerService, uow interfaces.UnitOfWork) error {
		var err error
		round, err = uow.RoundRepository().GetLatest(ctx)
		return err
	})
	return round, err
}

func (l *unitOfWorkLedger) RecentResults(ctx context.Context, limit int) ([]*entities.Round, error) {
	var rounds []*entities.Round
	err := l.withLedger(ctx, func(ctx context.Context, _ interfaces.LedgerService, uow interfaces.UnitOfWork) error {
		var err error
		rounds, err = uow.RoundRepository().GetRecentCompleted(ctx, limit)
		return err
	})
	return rounds, err
}
