package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"goflare.io/quoting/models/enum"
)

// Event is a domain event waiting in, or delivered from, the outbox.
type Event struct {
	ID            uuid.UUID       `json:"id"`
	Type          enum.EventType  `json:"type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   uint64          `json:"aggregate_id"`
	Payload       json.RawMessage `json:"payload"`
	Attempts      int             `json:"attempts"`
	LastError     string          `json:"last_error,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	DeliveredAt   *time.Time      `json:"delivered_at,omitempty"`
}

// NewEvent builds an undelivered event with payload marshalled to JSON.
func NewEvent(eventType enum.EventType, aggregateType string, aggregateID uint64, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:            uuid.New(),
		Type:          eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Payload:       data,
		CreatedAt:     time.Now().UTC(),
	}, nil
}
