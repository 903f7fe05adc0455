package repository

import (
	"context"
	"testing"

	"roulette/domain/entities"
	"roulette/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWagerRepository_CreateAndSettleOnce(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewWagerRepository(testDB.DB)
	ctx := context.Background()
	testutil.CreateTestAccount(t, testDB.DB, 1, "alice", 100)
	testutil.CreateTestRound(t, testDB.DB, 1, entities.RoundStatusBetting)

	wager := testutil.CreateTestWager(1, 1, entities.CategoryGreen, 10)
	require.NoError(t, repo.Create(ctx, wager))
	assert.NotZero(t, wager.ID)
	assert.Equal(t, int64(0), wager.Payout)

	updated, err := repo.MarkSettled(ctx, wager.ID, true, 140)
	require.NoError(t, err)
	assert.True(t, updated)

	// A second settlement must not overwrite the first
	updated, err = repo.MarkSettled(ctx, wager.ID, false, 0)
	require.NoError(t, err)
	assert.False(t, updated)

	wagers, err := repo.GetByRound(ctx, 1)
	require.NoError(t, err)
	require.Len(t, wagers, 1)
	require.NotNil(t, wagers[0].Won)
	assert.True(t, *wagers[0].Won)
	assert.Equal(t, int64(140), wagers[0].Payout)
	assert.NotNil(t, wagers[0].SettledAt)
}

func TestWagerRepository_GetByAccount(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewWagerRepository(testDB.DB)
	ctx := context.Background()
	testutil.CreateTestAccount(t, testDB.DB, 1, "alice", 100)
	testutil.CreateTestAccount(t, testDB.DB, 2, "bob", 100)
	testutil.CreateTestRound(t, testDB.DB, 1, entities.RoundStatusBetting)

	require.NoError(t, repo.Create(ctx, testutil.CreateTestWager(1, 1, entities.CategoryRed, 10)))
	require.NoError(t, repo.Create(ctx, testutil.CreateTestWager(2, 1, entities.CategoryBlack, 20)))
	require.NoError(t, repo.Create(ctx, testutil.CreateTestWager(1, 1, entities.CategoryBlack, 30)))

	wagers, err := repo.GetByAccount(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, wagers, 2)
	assert.Equal(t, int64(30), wagers[0].Amount)
	assert.Equal(t, int64(10), wagers[1].Amount)

	limited, err := repo.GetByAccount(ctx, 1, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestWagerRepository_RejectsNonPositiveAmount(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewWagerRepository(testDB.DB)
	testutil.CreateTestAccount(t, testDB.DB, 1, "alice", 100)
	testutil.CreateTestRound(t, testDB.DB, 1, entities.RoundStatusBetting)

	err := repo.Create(context.Background(), testutil.CreateTestWager(1, 1, entities.CategoryRed, 0))
	assert.Error(t, err)
}
