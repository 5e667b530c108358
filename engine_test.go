package quoting

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"goflare.io/quoting/adjustment"
	"goflare.io/quoting/catalog"
	"goflare.io/quoting/config"
	"goflare.io/quoting/customer"
	"goflare.io/quoting/lead"
	"goflare.io/quoting/malleable"
	"goflare.io/quoting/memstore"
	"goflare.io/quoting/models"
	"goflare.io/quoting/models/enum"
	"goflare.io/quoting/outbox"
	"goflare.io/quoting/quote"
	"goflare.io/quoting/schema"
)

// countingCache never hits and counts active schema writes per entity type.
type countingCache struct {
	mu     sync.Mutex
	active map[enum.EntityType]int
}

func (c *countingCache) GetActive(context.Context, enum.EntityType) (*models.SchemaDefinition, bool, error) {
	return nil, false, nil
}

func (c *countingCache) SetActive(_ context.Context, schema *models.SchemaDefinition) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		c.active = map[enum.EntityType]int{}
	}
	c.active[schema.EntityType]++
	return nil
}

func (c *countingCache) GetVersion(context.Context, enum.EntityType, int) (*models.SchemaDefinition, bool, error) {
	return nil, false, nil
}

func (c *countingCache) SetVersion(context.Context, *models.SchemaDefinition) error { return nil }

func (c *countingCache) count(entityType enum.EntityType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active[entityType]
}

func newTestEngine(t *testing.T, nc *nats.Conn, cache schema.Cache) *Engine {
	t.Helper()
	store := memstore.New()
	logger := zap.NewNop()
	binder := malleable.NewBinder(store.Schemas(), cache, logger)

	cfg := &config.Config{Outbox: config.OutboxConfig{Workers: 2, BatchSize: 10, QueueSize: 10}}
	engine, err := NewEngine(cfg, nc,
		schema.NewService(store.Schemas(), store.Outbox(), cache, store, logger),
		cache,
		quote.NewService(store.Quotes(), store.Adjustments(), store.Catalog(), store.Outbox(), binder, store, logger),
		adjustment.NewService(store.Adjustments(), store.Quotes(), store.Outbox(), store, logger),
		catalog.NewService(store.Catalog(), store, logger),
		lead.NewService(store.Leads(), binder, store, logger),
		customer.NewService(store.Customers(), binder, store, logger),
		outbox.NewService(store.Outbox(), store),
		logger)
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	return engine
}

func TestEngine_WithoutBus(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, nil, nil)

	engine.RegisterHandler(enum.EventTypeQuoteSent, func(context.Context, *models.Event) error {
		t.Fatal("handler must not run without a bus")
		return nil
	})

	view, err := engine.CreateQuote(ctx, quote.CreateCommand{CustomerID: 5})
	require.NoError(t, err)
	_, err = engine.SendQuote(ctx, view.ID)
	require.NoError(t, err)

	events, err := engine.ListEvents(ctx, "quote", view.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, enum.EventTypeQuoteSent, events[0].Type)
	assert.Nil(t, events[0].DeliveredAt)
}

func TestEngine_RelaysEvents(t *testing.T) {
	ctx := context.Background()
	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)

	engine := newTestEngine(t, nc, nil)

	received := make(chan *models.Event, 4)
	engine.RegisterHandler(enum.EventTypeQuoteSent, func(_ context.Context, e *models.Event) error {
		received <- e
		return nil
	})

	view, err := engine.CreateQuote(ctx, quote.CreateCommand{CustomerID: 5})
	require.NoError(t, err)
	_, err = engine.SendQuote(ctx, view.ID)
	require.NoError(t, err)

	select {
	case e := <-received:
		assert.Equal(t, view.ID, e.AggregateID)
		assert.Equal(t, "quote", e.AggregateType)
	case <-time.After(10 * time.Second):
		t.Fatal("quote.sent was not relayed")
	}

	assert.Eventually(t, func() bool {
		events, err := engine.ListEvents(ctx, "quote", view.ID)
		return err == nil && len(events) == 1 && events[0].DeliveredAt != nil
	}, 5*time.Second, 20*time.Millisecond)
}

func TestEngine_SchemaPublishedRefreshesCache(t *testing.T) {
	ctx := context.Background()
	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)

	cache := &countingCache{}
	engine := newTestEngine(t, nc, cache)

	draft, err := engine.CreateSchemaDraft(ctx, enum.EntityTypeLead, false)
	require.NoError(t, err)
	_, err = engine.PublishSchema(ctx, draft.ID)
	require.NoError(t, err)

	// Once by the publishing call, once more when the event comes back over the bus.
	assert.Eventually(t, func() bool {
		return cache.count(enum.EntityTypeLead) >= 2
	}, 10*time.Second, 20*time.Millisecond)
}
