package services

import (
	"context"
	"testing"
	"time"

	"roulette/domain/entities"
	"roulette/domain/testhelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAdminService_AdjustBalance_Credit(t *testing.T) {
	ctx := context.Background()
	accounts := new(testhelpers.MockAccountRepository)
	history := new(testhelpers.MockBalanceHistoryRepository)
	publisher := new(testhelpers.MockEventPublisher)

	accounts.On("GetByID", ctx, int64(3)).Return(&entities.Account{ID: 3, Balance: 100}, nil)
	accounts.On("Credit", ctx, int64(3), int64(500)).Return(int64(600), nil)
	history.On("Record", ctx, mock.MatchedBy(func(h *entities.BalanceHistory) bool {
		return h.BalanceBefore == 100 && h.BalanceAfter == 600 &&
			h.TransactionType == entities.TransactionTypeAdminAdjustment &&
			h.TransactionMetadata["admin_id"] == int64(1)
	})).Return(nil)
	publisher.On("Publish", mock.AnythingOfType("events.BalanceChangeEvent")).Return(nil)

	svc := NewAdminService(accounts, history, publisher)
	account, err := svc.AdjustBalance(ctx, 3, 500, 1)

	require.NoError(t, err)
	assert.Equal(t, int64(600), account.Balance)
	accounts.AssertExpectations(t)
	history.AssertExpectations(t)
}

func TestAdminService_AdjustBalance_DebitBelowZero(t *testing.T) {
	ctx := context.Background()
	accounts := new(testhelpers.MockAccountRepository)
	history := new(testhelpers.MockBalanceHistoryRepository)
	publisher := new(testhelpers.MockEventPublisher)

	accounts.On("GetByID", ctx, int64(3)).Return(&entities.Account{ID: 3, Balance: 100}, nil)
	accounts.On("Debit", ctx, int64(3), int64(150)).Return(int64(0), entities.ErrInsufficientFunds)

	svc := NewAdminService(accounts, history, publisher)
	_, err := svc.AdjustBalance(ctx, 3, -150, 1)

	assert.ErrorIs(t, err, entities.ErrInsufficientFunds)
	history.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestAdminService_AdjustBalance_Validation(t *testing.T) {
	ctx := context.Background()
	accounts := new(testhelpers.MockAccountRepository)
	svc := NewAdminService(accounts, new(testhelpers.MockBalanceHistoryRepository), new(testhelpers.MockEventPublisher))

	_, err := svc.AdjustBalance(ctx, 3, 0, 1)
	assert.ErrorIs(t, err, ErrZeroAdjustment)

	accounts.On("GetByID", ctx, int64(4)).Return(nil, nil)
	_, err = svc.AdjustBalance(ctx, 4, 10, 1)
	assert.ErrorIs(t, err, entities.ErrAccountNotFound)
}

func TestAdminService_Stats_UsesLastDay(t *testing.T) {
	ctx := context.Background()
	accounts := new(testhelpers.MockAccountRepository)
	svc := NewAdminService(accounts, new(testhelpers.MockBalanceHistoryRepository), new(testhelpers.MockEventPublisher))

	expected := &entities.PlatformStats{TotalAccounts: 3}
	accounts.On("GetStats", ctx, mock.MatchedBy(func(since time.Time) bool {
		age := time.Since(since)
		return age > 23*time.Hour && age < 25*time.Hour
	})).Return(expected, nil)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Same(t, expected, stats)
}

func TestAdminService_ListAccounts_ClampsLimit(t *testing.T) {
	ctx := context.Background()
	accounts := new(testhelpers.MockAccountRepository)
	svc := NewAdminService(accounts, new(testhelpers.MockBalanceHistoryRepository), new(testhelpers.MockEventPublisher))

	accounts.On("List", ctx, 100, 0).Return([]*entities.Account{}, nil)

	_, err := svc.ListAccounts(ctx, 0, -5)
	require.NoError(t, err)
	accounts.AssertExpectations(t)
}
