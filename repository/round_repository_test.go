package repository

import (
	"context"
	"testing"
	"time"

	"roulette/domain/entities"
	"roulette/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundRepository_Lifecycle(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewRoundRepository(testDB.DB)
	ctx := context.Background()

	latest, err := repo.GetLatest(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	round := &entities.Round{ID: 1, Status: entities.RoundStatusBetting}
	require.NoError(t, repo.Create(ctx, round))
	assert.False(t, round.CreatedAt.IsZero())

	round.Status = entities.RoundStatusSpinning
	round.Outcome = &entities.Outcome{Index: 0, Number: 0, Category: entities.CategoryGreen}
	require.NoError(t, repo.Update(ctx, round))

	got, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got.Outcome)
	assert.Equal(t, entities.RoundStatusSpinning, got.Status)
	assert.Equal(t, entities.CategoryGreen, got.Outcome.Category)

	now := time.Now().UTC()
	got.Status = entities.RoundStatusCompleted
	got.TotalStaked = 10
	got.TotalPayout = 140
	got.CompletedAt = &now
	require.NoError(t, repo.Update(ctx, got))

	require.NoError(t, repo.Create(ctx, &entities.Round{ID: 2, Status: entities.RoundStatusBetting}))

	latest, err = repo.GetLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), latest.ID)
	assert.Nil(t, latest.Outcome)

	completed, err := repo.GetRecentCompleted(ctx, 15)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, int64(1), completed[0].ID)
	assert.Equal(t, int64(140), completed[0].TotalPayout)
}

func TestRoundRepository_DuplicateIDFails(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewRoundRepository(testDB.DB)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &entities.Round{ID: 5, Status: entities.RoundStatusBetting}))
	assert.Error(t, repo.Create(ctx, &entities.Round{ID: 5, Status: entities.RoundStatusBetting}))
}
