package application

import (
	"context"
	"fmt"
	"time"

	"roulette/domain/entities"
	"roulette/domain/interfaces"
	"roulette/domain/services"
)

// AccountHandler serves account reads and admin operations outside the
// round loop. It is used by the gateway and the command line.
type AccountHandler interface {
	GetOrCreateAccount(ctx context.Context, id int64, username string) (*entities.Account, error)
	GetAccount(ctx context.Context, id int64) (*entities.Account, error)
	RecentWagers(ctx context.Context, accountID int64, limit int) ([]*entities.Wager, error)
	BalanceHistory(ctx context.Context, accountID int64, limit int) ([]*entities.BalanceHistory, error)
	RecentRounds(ctx context.Context, limit int) ([]*entities.Round, error)

	AdjustBalance(ctx context.Context, accountID int64, amount int64, adminID int64) (*entities.Account, error)
	GrantAdmin(ctx context.Context, accountID int64) error
	ListAccounts(ctx context.Context, limit, offset int) ([]*entities.Account, error)
	Stats(ctx context.Context) (*entities.PlatformStats, error)
}

type accountHandler struct {
	uowFactory      interfaces.UnitOfWorkFactory
	startingBalance int64
	timeout         time.Duration
}

// NewAccountHandler creates an account handler backed by units of work
func NewAccountHandler(uowFactory interfaces.UnitOfWorkFactory, startingBalance int64, timeout time.Duration) AccountHandler {
	if timeout <= 0 {
		timeout = DefaultOperationTimeout
	}
	return &accountHandler{
		uowFactory:      uowFactory,
		startingBalance: startingBalance,
		timeout:         timeout,
	}
}

func (h *accountHandler) withUnitOfWork(ctx context.Context, fn func(ctx context.Context, uow interfaces.UnitOfWork) error) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := fn(ctx, uow); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (h *accountHandler) adminService(uow interfaces.UnitOfWork) interfaces.AdminService {
	return services.NewAdminService(uow.AccountRepository(), uow.BalanceHistoryRepository(), uow.EventBus())
}

func (h *accountHandler) GetOrCreateAccount(ctx context.Context, id int64, username string) (*entities.Account, error) {
	var account *entities.Account
	err := h.withUnitOfWork(ctx, func(ctx context.Context, uow interfaces.UnitOfWork) error {
		accountService := services.NewAccountService(
			uow.AccountRepository(),
			uow.BalanceHistoryRepository(),
			uow.EventBus(),
			h.startingBalance,
		)
		var err error
		account, err = accountService.GetOrCreateAccount(ctx, id, username)
		return err
	})
	return account, err
}

func (h *accountHandler) GetAccount(ctx context.Context, id int64) (*entities.Account, error) {
	var account *entities.Account
	err := h.withUnitOfWork(ctx, func(ctx context.Context, uow interfaces.UnitOfWork) error {
		var err error
		account, err = uow.AccountRepository().GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get account %d: %w", id, err)
		}
		if account == nil {
			return fmt.Errorf("%w: %d", entities.ErrAccountNotFound, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (h *accountHandler) RecentWagers(ctx context.Context, accountID int64, limit int) ([]*entities.Wager, error) {
	var wagers []*entities.Wager
	err := h.withUnitOfWork(ctx, func(ctx context.Context, uow interfaces.UnitOfWork) error {
		var err error
		wagers, err = uow.WagerRepository().GetByAccount(ctx, accountID, clampLimit(limit))
		return err
	})
	return wagers, err
}

func (h *accountHandler) BalanceHistory(ctx context.Context, accountID int64, limit int) ([]*entities.BalanceHistory, error) {
	var history []*entities.BalanceHistory
	err := h.withUnitOfWork(ctx, func(ctx context.Context, uow interfaces.UnitOfWork) error {
		var err error
		history, err = uow.BalanceHistoryRepository().GetByAccount(ctx, accountID, clampLimit(limit))
		return err
	})
	return history, err
}

func (h *accountHandler) RecentRounds(ctx context.Context, limit int) ([]*entities.Round, error) {
	var rounds []*entities.Round
	err := h.withUnitOfWork(ctx, func(ctx context.Context, uow interfaces.UnitOfWork) error {
		var err error
		rounds, err = uow.RoundRepository().GetRecentCompleted(ctx, clampLimit(limit))
		return err
	})
	return rounds, err
}

func (h *accountHandler) AdjustBalance(ctx context.Context, accountID int64, amount int64, adminID int64) (*entities.Account, error) {
	var account *entities.Account
	err := h.withUnitOfWork(ctx, func(ctx context.Context, uow interfaces.UnitOfWork) error {
		var err error
		account, err = h.adminService(uow).AdjustBalance(ctx, accountID, amount, adminID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (h *accountHandler) GrantAdmin(ctx context.Context, accountID int64) error {
	return h.withUnitOfWork(ctx, func(ctx context.Context, uow interfaces.UnitOfWork) error {
		return h.adminService(uow).GrantAdmin(ctx, accountID)
	})
}

func (h *accountHandler) ListAccounts(ctx context.Context, limit, offset int) ([]*entities.Account, error) {
	var accounts []*entities.Account
	err := h.withUnitOfWork(ctx, func(ctx context.Context, uow interfaces.UnitOfWork) error {
		var err error
		accounts, err = h.adminService(uow).ListAccounts(ctx, limit, offset)
		return err
	})
	return accounts, err
}

func (h *accountHandler) Stats(ctx context.Context) (*entities.PlatformStats, error) {
	var stats *entities.PlatformStats
	err := h.withUnitOfWork(ctx, func(ctx context.Context, uow interfaces.UnitOfWork) error {
		var err error
		stats, err = h.adminService(uow).Stats(ctx)
		return err
	})
	return stats, err
}

// clampLimit keeps read pages between 1 and 100 entries
func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 100
	}
	return limit
}
