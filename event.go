package quoting

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"goflare.io/quoting/models"
	"goflare.io/quoting/models/enum"
)

const (
	subjectPrefix  = "quoting.event."
	publishTimeout = 5 * time.Second
)

// Subject is the NATS subject an event type is published on.
func Subject(eventType enum.EventType) string {
	return subjectPrefix + string(eventType)
}

type EventHandler func(context.Context, *models.Event) error

type EventManager struct {
	natsConn *nats.Conn
	handlers map[enum.EventType][]EventHandler
	mu       sync.RWMutex
	logger   *zap.Logger
}

func NewEventManager(natsConn *nats.Conn, logger *zap.Logger) *EventManager {
	return &EventManager{
		natsConn: natsConn,
		handlers: make(map[enum.EventType][]EventHandler),
		logger:   logger,
	}
}

// RegisterHandler adds a listener for events received from the bus. Several
// handlers may listen to the same type.
func (em *EventManager) RegisterHandler(eventType enum.EventType, handler EventHandler) {
	em.mu.Lock()
	defer em.mu.Unlock()
	em.handlers[eventType] = append(em.handlers[eventType], handler)
}

func (em *EventManager) GetHandlers(eventType enum.EventType) []EventHandler {
	em.mu.RLock()
	defer em.mu.RUnlock()
	return em.handlers[eventType]
}

// PublishEvent sends the event and waits until the server has acknowledged
// the connection flush. The event ID travels as the Nats-Msg-Id header so
// that redelivered outbox rows can be deduplicated downstream.
func (em *EventManager) PublishEvent(ctx context.Context, event *models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := nats.NewMsg(Subject(event.Type))
	msg.Header.Set(nats.MsgIdHdr, event.ID.String())
	msg.Data = data

	if err = em.natsConn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err = em.natsConn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush %s event: %w", event.Type, err)
	}
	return nil
}

// SubscribeToEvents delivers every quoting event on the bus to the
// registered handlers.
func (em *EventManager) SubscribeToEvents() (*nats.Subscription, error) {
	return em.natsConn.Subscribe(subjectPrefix+">", func(msg *nats.Msg) {
		var event models.Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			em.logger.Error("Failed to unmarshal event", zap.Error(err), zap.String("subject", msg.Subject))
			return
		}

		for _, handler := range em.GetHandlers(event.Type) {
			if err := handler(context.Background(), &event); err != nil {
				em.logger.Warn("Event handler failed",
					zap.Error(err),
					zap.String("event_type", string(event.Type)),
					zap.String("event_id", event.ID.String()))
			}
		}
	})
}
