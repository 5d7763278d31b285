package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/galexy/revivo-mk1-sub001/internal/core"
)

// EventMessage is the envelope a domain event travels in. The routing key of
// the publishing is the event name, so consumers can bind to patterns such
// as "transaction.*".
type EventMessage struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	AggregateID string          `json:"aggregate_id"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Payload     json.RawMessage `json:"payload"`
}

// NewEventMessage wraps e in an envelope with a fresh message id.
func NewEventMessage(e core.Event) (*EventMessage, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", e.EventName(), err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("message id: %w", err)
	}
	return &EventMessage{
		ID:          id.String(),
		Name:        e.EventName(),
		AggregateID: e.AggregateID(),
		OccurredAt:  e.OccurredAt(),
		Payload:     payload,
	}, nil
}

// ToJSON converts the message to JSON bytes
func (m *EventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventMessageFromJSON creates a message from JSON bytes
func EventMessageFromJSON(data []byte) (*EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Name == "" {
		return nil, fmt.Errorf("event message %q has no name", msg.ID)
	}
	return &msg, nil
}

var eventTypes = map[string]func() core.Event{
	core.EventAccountCreated:           func() core.Event { return &core.AccountCreated{} },
	core.EventAccountUpdated:           func() core.Event { return &core.AccountUpdated{} },
	core.EventAccountClosed:            func() core.Event { return &core.AccountClosed{} },
	core.EventAccountReopened:          func() core.Event { return &core.AccountReopened{} },
	core.EventCategoryCreated:          func() core.Event { return &core.CategoryCreated{} },
	core.EventCategoryUpdated:          func() core.Event { return &core.CategoryUpdated{} },
	core.EventCategoryDeleted:          func() core.Event { return &core.CategoryDeleted{} },
	core.EventPayeeCreated:             func() core.Event { return &core.PayeeCreated{} },
	core.EventPayeeUpdated:             func() core.Event { return &core.PayeeUpdated{} },
	core.EventPayeeUsed:                func() core.Event { return &core.PayeeUsed{} },
	core.EventTransactionCreated:       func() core.Event { return &core.TransactionCreated{} },
	core.EventTransactionStatusChanged: func() core.Event { return &core.TransactionStatusChanged{} },
	core.EventTransactionUpdated:       func() core.Event { return &core.TransactionUpdated{} },
	core.EventTransactionDeleted:       func() core.Event { return &core.TransactionDeleted{} },
}

// Decode unmarshals the payload into the concrete event type named by the
// envelope.
func (m *EventMessage) Decode() (core.Event, error) {
	factory, ok := eventTypes[m.Name]
	if !ok {
		return nil, fmt.Errorf("unknown event %q", m.Name)
	}
	e := factory()
	if err := json.Unmarshal(m.Payload, e); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", m.Name, err)
	}
	return e, nil
}
