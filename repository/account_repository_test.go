package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"roulette/domain/entities"
	"roulette/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountRepository_CreateAndGet(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewAccountRepository(testDB.DB)
	ctx := context.Background()

	t.Run("account not found", func(t *testing.T) {
		account, err := repo.GetByID(ctx, 999999)
		require.NoError(t, err)
		assert.Nil(t, account)
	})

	t.Run("create then get", func(t *testing.T) {
		created, err := repo.Create(ctx, 100, "alice", 1000)
		require.NoError(t, err)
		require.NotNil(t, created)
		assert.Equal(t, int64(1000), created.Balance)
		assert.False(t, created.CreatedAt.IsZero())

		account, err := repo.GetByID(ctx, 100)
		require.NoError(t, err)
		require.NotNil(t, account)
		assert.Equal(t, "alice", account.Username)
		assert.Equal(t, int64(1000), account.Balance)
		assert.False(t, account.IsAdmin)
	})

	t.Run("duplicate create returns nil", func(t *testing.T) {
		_, err := repo.Create(ctx, 101, "bob", 1000)
		require.NoError(t, err)

		again, err := repo.Create(ctx, 101, "bob", 5000)
		require.NoError(t, err)
		assert.Nil(t, again)

		account, err := repo.GetByID(ctx, 101)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), account.Balance)
	})
}

func TestAccountRepository_Debit(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewAccountRepository(testDB.DB)
	ctx := context.Background()
	testutil.CreateTestAccount(t, testDB.DB, 1, "alice", 100)

	balance, err := repo.Debit(ctx, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)

	_, err = repo.Debit(ctx, 1, 51)
	assert.ErrorIs(t, err, entities.ErrInsufficientFunds)
	assert.Equal(t, int64(50), testutil.GetBalance(t, testDB.DB, 1))

	_, err = repo.Debit(ctx, 404, 10)
	assert.ErrorIs(t, err, entities.ErrAccountNotFound)
}

func TestAccountRepository_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewAccountRepository(testDB.DB)
	ctx := context.Background()
	testutil.CreateTestAccount(t, testDB.DB, 1, "alice", 100)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Debit(ctx, 1, 10); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, int64(0), testutil.GetBalance(t, testDB.DB, 1))
}

func TestAccountRepository_ApplySettlement(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewAccountRepository(testDB.DB)
	ctx := context.Background()
	testutil.CreateTestAccount(t, testDB.DB, 1, "alice", 90)

	balance, err := repo.ApplySettlement(ctx, entities.AccountSettlement{
		AccountID:    1,
		Credit:       140,
		WagerCount:   2,
		WinCount:     1,
		AmountStaked: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(230), balance)

	account, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), account.TotalWagers)
	assert.Equal(t, int64(1), account.TotalWins)
	assert.Equal(t, int64(20), account.TotalWagered)
	assert.Equal(t, int64(140), account.TotalWon)
}

func TestAccountRepository_AdminAndStats(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewAccountRepository(testDB.DB)
	ctx := context.Background()
	testutil.CreateTestAccount(t, testDB.DB, 1, "alice", 500)
	testutil.CreateTestAccount(t, testDB.DB, 2, "bob", 900)

	require.NoError(t, repo.SetAdmin(ctx, 2, true))
	assert.ErrorIs(t, repo.SetAdmin(ctx, 3, true), entities.ErrAccountNotFound)

	accounts, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, int64(2), accounts[0].ID)
	assert.True(t, accounts[0].IsAdmin)

	stats, err := repo.GetStats(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalAccounts)
	assert.Equal(t, int64(2), stats.ActiveAccounts)
	assert.Equal(t, int64(0), stats.TotalWagers)
	assert.Equal(t, int64(0), stats.HouseProfit)
}
