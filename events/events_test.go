package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"roulette/domain/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionalBus_FlushDeliversToMainBus(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	received := make(chan BalanceChangeEvent, 1)
	mainBus.Subscribe(EventTypeBalanceChange, func(ctx context.Context, event Event) {
		if balanceEvent, ok := event.(BalanceChangeEvent); ok {
			received <- balanceEvent
		}
	})

	roundID := int64(7)
	testEvent := BalanceChangeEvent{
		AccountID:       42,
		OldBalance:      100,
		NewBalance:      230,
		ChangeAmount:    140,
		TransactionType: entities.TransactionTypeWagerPayout,
		RoundID:         &roundID,
	}

	require.NoError(t, transactionalBus.Publish(testEvent))
	assert.Equal(t, 1, transactionalBus.Pending())

	require.NoError(t, transactionalBus.Flush(context.Background()))
	assert.Equal(t, 0, transactionalBus.Pending())

	select {
	case got := <-received:
		assert.Equal(t, testEvent, got)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestTransactionalBus_DiscardDropsEvents(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	delivered := make(chan struct{}, 1)
	mainBus.Subscribe(EventTypeWagerPlaced, func(ctx context.Context, event Event) {
		delivered <- struct{}{}
	})

	require.NoError(t, transactionalBus.Publish(WagerPlacedEvent{WagerID: 1, AccountID: 2, RoundID: 3}))
	transactionalBus.Discard()
	require.NoError(t, transactionalBus.Flush(context.Background()))

	select {
	case <-delivered:
		t.Fatal("discarded event was delivered")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBus_FlushedContextIsNotCancelled(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	ctxErr := make(chan error, 1)
	mainBus.Subscribe(EventTypeRoundCompleted, func(ctx context.Context, event Event) {
		time.Sleep(20 * time.Millisecond)
		ctxErr <- ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, transactionalBus.Publish(RoundCompletedEvent{RoundID: 1}))
	require.NoError(t, transactionalBus.Flush(ctx))
	cancel()

	select {
	case err := <-ctxErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not run")
	}
}

func TestBus_PanickingHandlerDoesNotStopOthers(t *testing.T) {
	bus := NewBus()

	var wg sync.WaitGroup
	wg.Add(2)
	calls := make(chan string, 2)

	bus.Subscribe(EventTypeRoundVoided, func(ctx context.Context, event Event) {
		defer wg.Done()
		calls <- "panicking"
		panic("boom")
	})
	bus.Subscribe(EventTypeRoundVoided, func(ctx context.Context, event Event) {
		defer wg.Done()
		calls <- "healthy"
	})

	require.NoError(t, bus.Publish(RoundVoidedEvent{RoundID: 9}))
	wg.Wait()
	close(calls)

	var got []string
	for c := range calls {
		got = append(got, c)
	}
	assert.ElementsMatch(t, []string{"panicking", "healthy"}, got)
}
