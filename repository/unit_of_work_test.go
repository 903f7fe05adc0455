package repository

import (
	"context"
	"testing"
	"time"

	"roulette/domain/entities"
	"roulette/domain/interfaces"
	"roulette/domain/services"
	"roulette/events"
	"roulette/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ledgerFor(uow interfaces.UnitOfWork) interfaces.LedgerService {
	return services.NewLedgerService(
		uow.AccountRepository(),
		uow.WagerRepository(),
		uow.RoundRepository(),
		uow.BalanceHistoryRepository(),
		uow.EventBus(),
		entities.DefaultWheel(),
	)
}

func TestUnitOfWork_RollbackUndoesDebitAndDropsEvents(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	bus := events.NewBus()
	delivered := make(chan events.Event, 4)
	bus.Subscribe(events.EventTypeWagerPlaced, func(ctx context.Context, e events.Event) { delivered <- e })

	testutil.CreateTestAccount(t, testDB.DB, 1, "alice", 100)
	testutil.CreateTestRound(t, testDB.DB, 1, entities.RoundStatusBetting)

	factory := NewUnitOfWorkFactory(testDB.DB, bus)
	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))

	_, balance, err := ledgerFor(uow).PlaceWager(ctx, 1, entities.WagerRequest{
		AccountID: 1, Username: "alice", Category: entities.CategoryRed, Amount: 40,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(60), balance)

	require.NoError(t, uow.Rollback())

	assert.Equal(t, int64(100), testutil.GetBalance(t, testDB.DB, 1))
	wagers, err := NewWagerRepository(testDB.DB).GetByRound(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, wagers)

	select {
	case <-delivered:
		t.Fatal("event from rolled back transaction was delivered")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUnitOfWork_CommitPublishesEvents(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	bus := events.NewBus()
	delivered := make(chan events.Event, 4)
	bus.Subscribe(events.EventTypeWagerPlaced, func(ctx context.Context, e events.Event) { delivered <- e })

	testutil.CreateTestAccount(t, testDB.DB, 1, "alice", 100)
	testutil.CreateTestRound(t, testDB.DB, 1, entities.RoundStatusBetting)

	uow := NewUnitOfWorkFactory(testDB.DB, bus).Create()
	require.NoError(t, uow.Begin(ctx))
	_, _, err := ledgerFor(uow).PlaceWager(ctx, 1, entities.WagerRequest{
		AccountID: 1, Username: "alice", Category: entities.CategoryRed, Amount: 40,
	})
	require.NoError(t, err)
	require.NoError(t, uow.Commit())

	select {
	case e := <-delivered:
		placed, ok := e.(events.WagerPlacedEvent)
		require.True(t, ok)
		assert.Equal(t, int64(40), placed.Amount)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered after commit")
	}
}

// Settling a round twice must not credit anyone twice
func TestLedger_SettlementIsIdempotent(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()
	factory := NewUnitOfWorkFactory(testDB.DB, events.NewBus())

	testutil.CreateTestAccount(t, testDB.DB, 1, "alice", 100)
	testutil.CreateTestAccount(t, testDB.DB, 2, "bob", 100)

	run := func(fn func(ledger interfaces.LedgerService) error) {
		uow := factory.Create()
		require.NoError(t, uow.Begin(ctx))
		if err := fn(ledgerFor(uow)); err != nil {
			require.NoError(t, uow.Rollback())
			t.Fatalf("ledger call failed: %v", err)
		}
		require.NoError(t, uow.Commit())
	}

	var roundID int64
	run(func(ledger interfaces.LedgerService) error {
		round, err := ledger.OpenRound(ctx)
		if err != nil {
			return err
		}
		roundID = round.ID
		return nil
	})
	assert.Equal(t, int64(1), roundID)

	run(func(ledger interfaces.LedgerService) error {
		_, _, err := ledger.PlaceWager(ctx, roundID, entities.WagerRequest{AccountID: 1, Username: "alice", Category: entities.CategoryGreen, Amount: 10})
		return err
	})
	run(func(ledger interfaces.LedgerService) error {
		_, _, err := ledger.PlaceWager(ctx, roundID, entities.WagerRequest{AccountID: 2, Username: "bob", Category: entities.CategoryRed, Amount: 50})
		return err
	})

	outcome := entities.Outcome{Index: 0, Number: 0, Category: entities.CategoryGreen}
	run(func(ledger interfaces.LedgerService) error {
		return ledger.RecordOutcome(ctx, roundID, outcome)
	})

	for i := 0; i < 2; i++ {
		run(func(ledger interfaces.LedgerService) error {
			_, err := ledger.SettleRound(ctx, roundID, outcome)
			return err
		})
	}

	assert.Equal(t, int64(230), testutil.GetBalance(t, testDB.DB, 1))
	assert.Equal(t, int64(50), testutil.GetBalance(t, testDB.DB, 2))

	account, err := NewAccountRepository(testDB.DB).GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), account.TotalWagers)
	assert.Equal(t, int64(140), account.TotalWon)

	round, err := NewRoundRepository(testDB.DB).GetLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, entities.RoundStatusCompleted, round.Status)
	assert.Equal(t, int64(60), round.TotalStaked)
	assert.Equal(t, int64(140), round.TotalPayout)

	// Next round continues the sequence after a "restart"
	run(func(ledger interfaces.LedgerService) error {
		next, err := ledger.OpenRound(ctx)
		if err != nil {
			return err
		}
		roundID = next.ID
		return nil
	})
	assert.Equal(t, int64(2), roundID)
}

func TestLedger_VoidRoundRefunds(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()
	factory := NewUnitOfWorkFactory(testDB.DB, events.NewBus())

	testutil.CreateTestAccount(t, testDB.DB, 1, "alice", 100)
	testutil.CreateTestRound(t, testDB.DB, 1, entities.RoundStatusBetting)

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	_, _, err := ledgerFor(uow).PlaceWager(ctx, 1, entities.WagerRequest{AccountID: 1, Username: "alice", Category: entities.CategoryRed, Amount: 30})
	require.NoError(t, err)
	require.NoError(t, uow.Commit())
	assert.Equal(t, int64(70), testutil.GetBalance(t, testDB.DB, 1))

	uow = factory.Create()
	require.NoError(t, uow.Begin(ctx))
	settlement, err := ledgerFor(uow).VoidRound(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, uow.Commit())

	assert.Equal(t, int64(100), settlement.Balances[1])
	assert.Equal(t, int64(100), testutil.GetBalance(t, testDB.DB, 1))

	round, err := NewRoundRepository(testDB.DB).GetLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, entities.RoundStatusVoid, round.Status)
}
