package infrastructure

import (
	"fmt"

	"roulette/events"
)

// EventSubjectMapper handles mapping between domain events and NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts a domain event to its corresponding NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	switch event.Type() {
	case events.EventTypeRoundCompleted:
		return "roulette.rounds.completed"
	case events.EventTypeRoundVoided:
		return "roulette.rounds.voided"
	case events.EventTypeWagerPlaced:
		return "roulette.wagers.placed"
	case events.EventTypeBalanceChange:
		return "roulette.accounts.balance_changed"
	case events.EventTypeAccountCreated:
		return "roulette.accounts.created"
	default:
		// Fallback for unknown event types
		return fmt.Sprintf("roulette.unknown.%s", event.Type())
	}
}

// MapSubjectToEventType converts a NATS subject back to an event type
func (m *EventSubjectMapper) MapSubjectToEventType(subject string) events.EventType {
	switch subject {
	case "roulette.rounds.completed":
		return events.EventTypeRoundCompleted
	case "roulette.rounds.voided":
		return events.EventTypeRoundVoided
	case "roulette.wagers.placed":
		return events.EventTypeWagerPlaced
	case "roulette.accounts.balance_changed":
		return events.EventTypeBalanceChange
	case "roulette.accounts.created":
		return events.EventTypeAccountCreated
	default:
		return events.EventType(subject)
	}
}

// PublishedEventTypes lists the event types forwarded to NATS
func (m *EventSubjectMapper) PublishedEventTypes() []events.EventType {
	return []events.EventType{
		events.EventTypeRoundCompleted,
		events.EventTypeRoundVoided,
		events.EventTypeWagerPlaced,
		events.EventTypeBalanceChange,
		events.EventTypeAccountCreated,
	}
}

// GetAllSubjects returns all subjects that this service publishes to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	return []string{
		"roulette.rounds.completed",
		"roulette.rounds.voided",
		"roulette.wagers.placed",
		"roulette.accounts.balance_changed",
		"roulette.accounts.created",
	}
}
