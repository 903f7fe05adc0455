package services

import (
	"context"
	"fmt"

	"roulette/domain/entities"
	"roulette/domain/interfaces"
	"roulette/domain/utils"

	log "github.com/sirupsen/logrus"
)

type accountService struct {
	accountRepo        interfaces.AccountRepository
	balanceHistoryRepo interfaces.BalanceHistoryRepository
	eventPublisher     interfaces.EventPublisher
	startingBalance    int64
}

// NewAccountService creates a new account service
func NewAccountService(accountRepo interfaces.AccountRepository, balanceHistoryRepo interfaces.BalanceHistoryRepository, eventPublisher interfaces.EventPublisher, startingBalance int64) interfaces.AccountService {
	return &accountService{
		accountRepo:        accountRepo,
		balanceHistoryRepo: balanceHistoryRepo,
		eventPublisher:     eventPublisher,
		startingBalance:    startingBalance,
	}
}

func (s *accountService) GetOrCreateAccount(ctx context.Context, id int64, username string) (*entities.Account, error) {
	account, err := s.accountRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account != nil {
		return account, nil
	}

	account, err = s.accountRepo.Create(ctx, id, username, s.startingBalance)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	if account == nil {
		// Another connection created it first
		account, err = s.accountRepo.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get account after create race: %w", err)
		}
		if account == nil {
			return nil, fmt.Errorf("account %d vanished after create", id)
		}
		return account, nil
	}

	log.WithFields(log.Fields{
		"accountID": id,
		"username":  username,
		"balance":   account.Balance,
	}).Info("Created new account")

	if s.startingBalance > 0 {
		history := &entities.BalanceHistory{
			AccountID:       id,
			BalanceBefore:   0,
			BalanceAfter:    s.startingBalance,
			ChangeAmount:    s.startingBalance,
			TransactionType: entities.TransactionTypeInitial,
			TransactionMetadata: map[string]any{
				"username": username,
			},
		}
		if err := utils.RecordBalanceChange(ctx, s.balanceHistoryRepo, s.eventPublisher, history); err != nil {
			return nil, fmt.Errorf("failed to record initial balance: %w", err)
		}
	}

	return account, nil
}
