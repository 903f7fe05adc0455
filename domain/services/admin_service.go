package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"roulette/domain/entities"
	"roulette/domain/interfaces"
	"roulette/domain/utils"

	log "github.com/sirupsen/logrus"
)

// ErrZeroAdjustment is returned when an adjustment would not change anything
var ErrZeroAdjustment = errors.New("adjustment amount cannot be zero")

// activeWindow is how recently an account must have wagered to count as active
const activeWindow = 24 * time.Hour

type adminService struct {
	accountRepo        interfaces.AccountRepository
	balanceHistoryRepo interfaces.BalanceHistoryRepository
	eventPublisher     interfaces.EventPublisher
}

// NewAdminService creates a new admin service
func NewAdminService(accountRepo interfaces.AccountRepository, balanceHistoryRepo interfaces.BalanceHistoryRepository, eventPublisher interfaces.EventPublisher) interfaces.AdminService {
	return &adminService{
		accountRepo:        accountRepo,
		balanceHistoryRepo: balanceHistoryRepo,
		eventPublisher:     eventPublisher,
	}
}

func (s *adminService) AdjustBalance(ctx context.Context, accountID int64, amount int64, adminID int64) (*entities.Account, error) {
	if amount == 0 {
		return nil, ErrZeroAdjustment
	}

	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("%w: %d", entities.ErrAccountNotFound, accountID)
	}

	var newBalance int64
	if amount > 0 {
		newBalance, err = s.accountRepo.Credit(ctx, accountID, amount)
	} else {
		newBalance, err = s.accountRepo.Debit(ctx, accountID, -amount)
	}
	if err != nil {
		if errors.Is(err, entities.ErrInsufficientFunds) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to adjust balance: %w", err)
	}

	history := &entities.BalanceHistory{
		AccountID:       accountID,
		BalanceBefore:   newBalance - amount,
		BalanceAfter:    newBalance,
		ChangeAmount:    amount,
		TransactionType: entities.TransactionTypeAdminAdjustment,
		TransactionMetadata: map[string]any{
			"admin_id": adminID,
		},
	}
	if err := utils.RecordBalanceChange(ctx, s.balanceHistoryRepo, s.eventPublisher, history); err != nil {
		return nil, fmt.Errorf("failed to record balance change: %w", err)
	}

	log.WithFields(log.Fields{
		"accountID":  accountID,
		"adminID":    adminID,
		"amount":     amount,
		"newBalance": newBalance,
	}).Info("Admin adjusted balance")

	account.Balance = newBalance
	return account, nil
}

func (s *adminService) GrantAdmin(ctx context.Context, accountID int64) error {
	if err := s.accountRepo.SetAdmin(ctx, accountID, true); err != nil {
		return fmt.Errorf("failed to grant admin to account %d: %w", accountID, err)
	}
	log.WithField("accountID", accountID).Info("Granted admin role")
	return nil
}

func (s *adminService) ListAccounts(ctx context.Context, limit, offset int) ([]*entities.Account, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	accounts, err := s.accountRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

func (s *adminService) Stats(ctx context.Context) (*entities.PlatformStats, error) {
	stats, err := s.accountRepo.GetStats(ctx, time.Now().UTC().Add(-activeWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to get platform stats: %w", err)
	}
	return stats, nil
}
