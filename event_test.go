package quoting

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"goflare.io/quoting/models"
	"goflare.io/quoting/models/enum"
)

func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()
	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	}
	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()
	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("nats server not ready")
	}
	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})
	return server
}

func connect(t *testing.T, server *natsserver.Server) *nats.Conn {
	t.Helper()
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	return nc
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "quoting.event.quote.sent", Subject(enum.EventTypeQuoteSent))
	assert.Equal(t, "quoting.event.cost_adjustment.removed", Subject(enum.EventTypeCostAdjustmentRemoved))
}

func TestEventManager_PublishEvent(t *testing.T) {
	server := startTestNATSServer(t)
	em := NewEventManager(connect(t, server), zap.NewNop())

	listener := connect(t, server)
	sub, err := listener.SubscribeSync("quoting.event.>")
	require.NoError(t, err)
	require.NoError(t, listener.Flush())

	event, err := models.NewEvent(enum.EventTypeQuoteAccepted, "quote", 42, map[string]uint64{"quote_id": 42})
	require.NoError(t, err)
	require.NoError(t, em.PublishEvent(context.Background(), event))

	msg, err := sub.NextMsg(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "quoting.event.quote.accepted", msg.Subject)
	assert.Equal(t, event.ID.String(), msg.Header.Get(nats.MsgIdHdr))

	var got models.Event
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, event.ID, got.ID)
	assert.Equal(t, uint64(42), got.AggregateID)
	assert.JSONEq(t, `{"quote_id":42}`, string(got.Payload))
}

func TestEventManager_SubscribeToEvents(t *testing.T) {
	server := startTestNATSServer(t)
	nc := connect(t, server)
	em := NewEventManager(nc, zap.NewNop())

	received := make(chan *models.Event, 2)
	em.RegisterHandler(enum.EventTypeQuoteSent, func(_ context.Context, e *models.Event) error {
		received <- e
		return nil
	})
	em.RegisterHandler(enum.EventTypeQuoteSent, func(_ context.Context, e *models.Event) error {
		received <- e
		return nil
	})
	assert.Len(t, em.GetHandlers(enum.EventTypeQuoteSent), 2)

	sub, err := em.SubscribeToEvents()
	require.NoError(t, err)
	defer sub.Unsubscribe()
	require.NoError(t, nc.Flush())

	ignored, err := models.NewEvent(enum.EventTypeQuoteRejected, "quote", 1, nil)
	require.NoError(t, err)
	sent, err := models.NewEvent(enum.EventTypeQuoteSent, "quote", 2, nil)
	require.NoError(t, err)

	require.NoError(t, em.PublishEvent(context.Background(), ignored))
	require.NoError(t, em.PublishEvent(context.Background(), sent))

	for i := 0; i < 2; i++ {
		select {
		case e := <-received:
			assert.Equal(t, sent.ID, e.ID)
		case <-time.After(5 * time.Second):
			t.Fatal("handler not called")
		}
	}
}
