package events

import (
	"context"
	"sync"

	"roulette/domain/entities"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChange  EventType = "balance_change"
	EventTypeAccountCreated EventType = "account_created"
	EventTypeWagerPlaced    EventType = "wager_placed"
	EventTypeRoundCompleted EventType = "round_completed"
	EventTypeRoundVoided    EventType = "round_voided"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BalanceChangeEvent represents a balance change that occurred
type BalanceChangeEvent struct {
	AccountID       int64                    `json:"accountId"`
	OldBalance      int64                    `json:"oldBalance"`
	NewBalance      int64                    `json:"newBalance"`
	ChangeAmount    int64                    `json:"changeAmount"`
	TransactionType entities.TransactionType `json:"transactionType"`
	RoundID         *int64                   `json:"roundId,omitempty"`
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// AccountCreatedEvent is emitted on first contact with a new account
type AccountCreatedEvent struct {
	AccountID      int64  `json:"accountId"`
	Username       string `json:"username"`
	InitialBalance int64  `json:"initialBalance"`
}

func (e AccountCreatedEvent) Type() EventType {
	return EventTypeAccountCreated
}

// WagerPlacedEvent is emitted once a stake has been debited and recorded
type WagerPlacedEvent struct {
	WagerID   int64             `json:"wagerId"`
	AccountID int64             `json:"accountId"`
	Username  string            `json:"username"`
	RoundID   int64             `json:"roundId"`
	Category  entities.Category `json:"category"`
	Amount    int64             `json:"amount"`
}

func (e WagerPlacedEvent) Type() EventType {
	return EventTypeWagerPlaced
}

// RoundCompletedEvent is emitted after a round has been settled
type RoundCompletedEvent struct {
	RoundID     int64            `json:"roundId"`
	Outcome     entities.Outcome `json:"outcome"`
	TotalStaked int64            `json:"totalStaked"`
	TotalPayout int64            `json:"totalPayout"`
	WagerCount  int              `json:"wagerCount"`
	WinnerCount int              `json:"winnerCount"`
}

func (e RoundCompletedEvent) Type() EventType {
	return EventTypeRoundCompleted
}

// RoundVoidedEvent is emitted when an interrupted round is cancelled and refunded
type RoundVoidedEvent struct {
	RoundID       int64 `json:"roundId"`
	RefundedCount int   `json:"refundedCount"`
	RefundedTotal int64 `json:"refundedTotal"`
}

func (e RoundVoidedEvent) Type() EventType {
	return EventTypeRoundVoided
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Emit publishes an event to all registered handlers. Handlers run on their
// own goroutines and a panicking handler is logged, not propagated.
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event")

	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// Publish emits immediately, for events that are not tied to a transaction
func (b *Bus) Publish(event Event) error {
	b.Emit(context.Background(), event)
	return nil
}

// TransactionalBus holds events raised inside a unit of work until the
// transaction commits.
type TransactionalBus struct {
	real    *Bus
	mu      sync.Mutex
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

// Publish stashes the event until Flush
func (b *TransactionalBus) Publish(e Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending = append(b.pending, e)
	return nil
}

// Flush is called after a successful commit
func (b *TransactionalBus) Flush(ctx context.Context) error {
	b.mu.Lock()
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()

	log.WithField("pendingEventCount", len(pending)).Debug("Flushing transactional events")

	// Handlers outlive the transaction, so they must not inherit its context
	eventCtx := context.WithoutCancel(ctx)
	for _, ev := range pending {
		b.real.Emit(eventCtx, ev)
	}
	return nil
}

// Discard is called after a rollback
func (b *TransactionalBus) Discard() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = nil
}

// Pending returns the number of events waiting for Flush
func (b *TransactionalBus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
