// Package events publishes expense workflow notifications to a message broker.
package events

import (
	"context"
	"encoding/json"
	"time"

	"expenseflow/internal/models"
)

// TypeStatusChanged is the routing key for status transitions.
const TypeStatusChanged = "expense.status_changed"

// StatusChanged announces that an expense moved between workflow states.
type StatusChanged struct {
	Type       string               `json:"type"`
	ExpenseID  uint                 `json:"expense_id"`
	OwnerID    uint                 `json:"owner_id"`
	From       models.ExpenseStatus `json:"from"`
	To         models.ExpenseStatus `json:"to"`
	ActorID    uint                 `json:"actor_id,omitempty"`
	OccurredAt time.Time            `json:"occurred_at"`
}

// NewStatusChanged builds a status change event stamped with the current time.
func NewStatusChanged(expense *models.Expense, from models.ExpenseStatus, actorID uint) *StatusChanged {
	return &StatusChanged{
		Type:       TypeStatusChanged,
		ExpenseID:  expense.ID,
		OwnerID:    expense.UserID,
		From:       from,
		To:         expense.Status,
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
	}
}

// ToJSON encodes the event as a message body.
func (e *StatusChanged) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// StatusChangedFromJSON decodes a message body.
func StatusChangedFromJSON(data []byte) (*StatusChanged, error) {
	var e StatusChanged
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Publisher delivers workflow events. Callers treat delivery as best effort.
type Publisher interface {
	PublishStatusChanged(ctx context.Context, event *StatusChanged) error
	Close() error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishStatusChanged(context.Context, *StatusChanged) error { return nil }

func (NopPublisher) Close() error { return nil }
