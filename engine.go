package quoting

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"goflare.io/quoting/adjustment"
	"goflare.io/quoting/catalog"
	"goflare.io/quoting/config"
	"goflare.io/quoting/customer"
	"goflare.io/quoting/lead"
	"goflare.io/quoting/models"
	"goflare.io/quoting/models/enum"
	"goflare.io/quoting/outbox"
	"goflare.io/quoting/quote"
	"goflare.io/quoting/schema"
)

var _ Quoting = (*Engine)(nil)

type Engine struct {
	natsConn     *nats.Conn
	eventManager *EventManager
	dispatcher   *Dispatcher
	subscription *nats.Subscription
	logger       *zap.Logger

	schema      schema.Service
	schemaCache schema.Cache
	quote       quote.Service
	adjustment  adjustment.Service
	catalog     catalog.Service
	lead        lead.Service
	customer    customer.Service
	outbox      outbox.Service
}

// NewEngine wires the services behind the Quoting facade. With a nil nc the
// outbox relay does not run and events accumulate in storage. cache may be
// nil.
func NewEngine(config *config.Config,
	nc *nats.Conn,
	schemas schema.Service,
	cache schema.Cache,
	quotes quote.Service,
	adjustments adjustment.Service,
	catalogItems catalog.Service,
	leads lead.Service,
	customers customer.Service,
	events outbox.Service,
	logger *zap.Logger) (*Engine, error) {
	e := &Engine{
		natsConn:    nc,
		logger:      logger,
		schema:      schemas,
		schemaCache: cache,
		quote:       quotes,
		adjustment:  adjustments,
		catalog:     catalogItems,
		lead:        leads,
		customer:    customers,
		outbox:      events,
	}

	if nc == nil {
		return e, nil
	}

	e.eventManager = NewEventManager(nc, logger)
	e.registerEventHandlers()

	subscription, err := e.eventManager.SubscribeToEvents()
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to events: %w", err)
	}
	e.subscription = subscription

	e.dispatcher = NewDispatcher(config.Outbox.Workers, config.Outbox.QueueSize, config.Outbox.BatchSize,
		events, e.eventManager, logger)
	e.dispatcher.Run()

	return e, nil
}

// 註冊事件處理器
func (e *Engine) registerEventHandlers() {
	e.eventManager.RegisterHandler(enum.EventTypeSchemaPublished, e.handleSchemaPublished)
}

// handleSchemaPublished points the cached active schema at the version any
// instance published.
func (e *Engine) handleSchemaPublished(ctx context.Context, event *models.Event) error {
	if e.schemaCache == nil {
		return nil
	}

	var published models.SchemaDefinition
	if err := json.Unmarshal(event.Payload, &published); err != nil {
		return fmt.Errorf("failed to decode schema.published payload: %w", err)
	}

	if err := e.schemaCache.SetActive(ctx, &published); err != nil {
		return fmt.Errorf("failed to refresh %s schema cache: %w", published.EntityType, err)
	}
	return nil
}

func (e *Engine) RegisterHandler(eventType enum.EventType, handler EventHandler) {
	if e.eventManager == nil {
		e.logger.Warn("event bus disabled, handler ignored", zap.String("event_type", string(eventType)))
		return
	}
	e.eventManager.RegisterHandler(eventType, handler)
}

func (e *Engine) CreateQuote(ctx context.Context, cmd quote.CreateCommand) (*models.QuoteView, error) {
	return e.quote.Create(ctx, cmd)
}

func (e *Engine) GetQuote(ctx context.Context, quoteID uint64) (*models.QuoteView, error) {
	return e.quote.GetByID(ctx, quoteID)
}

func (e *Engine) ListQuotes(ctx context.Context, customerID uint64, includeArchived bool) ([]*models.Quote, error) {
	return e.quote.ListByCustomer(ctx, customerID, includeArchived)
}

func (e *Engine) AddQuoteLine(ctx context.Context, cmd quote.AddLineCommand) (*models.QuoteView, error) {
	return e.quote.AddLine(ctx, cmd)
}

func (e *Engine) RemoveQuoteLine(ctx context.Context, quoteID uint64, lineID string) (*models.QuoteView, error) {
	return e.quote.RemoveLine(ctx, quoteID, lineID)
}

func (e *Engine) AddComponent(ctx context.Context, cmd quote.AddComponentCommand) (*models.QuoteView, error) {
	return e.quote.AddComponent(ctx, cmd)
}

func (e *Engine) RemoveComponent(ctx context.Context, quoteID uint64, componentID string) (*models.QuoteView, error) {
	return e.quote.RemoveComponent(ctx, quoteID, componentID)
}

func (e *Engine) SetPaymentSchedule(ctx context.Context, cmd quote.SetPaymentScheduleCommand) (*models.QuoteView, error) {
	return e.quote.SetPaymentSchedule(ctx, cmd)
}

func (e *Engine) SendQuote(ctx context.Context, quoteID uint64) (*models.QuoteView, error) {
	return e.quote.Send(ctx, quoteID)
}

func (e *Engine) AcceptQuote(ctx context.Context, quoteID uint64) (*models.QuoteView, error) {
	return e.quote.Accept(ctx, quoteID)
}

func (e *Engine) RejectQuote(ctx context.Context, quoteID uint64) (*models.QuoteView, error) {
	return e.quote.Reject(ctx, quoteID)
}

func (e *Engine) ArchiveQuote(ctx context.Context, quoteID uint64) error {
	return e.quote.Archive(ctx, quoteID)
}

func (e *Engine) UpdateQuoteMalleableData(ctx context.Context, quoteID uint64, data models.MalleableData) (*models.QuoteView, error) {
	return e.quote.UpdateMalleableData(ctx, quoteID, data)
}

func (e *Engine) AddCostAdjustment(ctx context.Context, cmd adjustment.AddCommand) (*models.CostAdjustment, error) {
	return e.adjustment.Add(ctx, cmd)
}

func (e *Engine) RemoveCostAdjustment(ctx context.Context, cmd adjustment.RemoveCommand) error {
	return e.adjustment.Remove(ctx, cmd)
}

func (e *Engine) ListCostAdjustments(ctx context.Context, quoteID uint64) ([]*models.CostAdjustment, error) {
	return e.adjustment.ListByQuote(ctx, quoteID)
}

func (e *Engine) CreateSchemaDraft(ctx context.Context, entityType enum.EntityType, cloneFromActive bool) (*models.SchemaDefinition, error) {
	return e.schema.CreateDraft(ctx, entityType, cloneFromActive)
}

func (e *Engine) UpdateSchemaDraft(ctx context.Context, draftID uint64, fields []models.FieldDefinition) (*models.SchemaDefinition, error) {
	return e.schema.UpdateDraftFields(ctx, draftID, fields)
}

func (e *Engine) PublishSchema(ctx context.Context, draftID uint64) (*models.SchemaDefinition, error) {
	return e.schema.Publish(ctx, draftID)
}

func (e *Engine) DiscardSchemaDraft(ctx context.Context, draftID uint64) error {
	return e.schema.DiscardDraft(ctx, draftID)
}

func (e *Engine) GetSchema(ctx context.Context, schemaID uint64) (*models.SchemaDefinition, error) {
	return e.schema.GetByID(ctx, schemaID)
}

func (e *Engine) GetActiveSchema(ctx context.Context, entityType enum.EntityType) (*models.SchemaDefinition, error) {
	return e.schema.FindActiveByEntityType(ctx, entityType)
}

func (e *Engine) GetSchemaVersion(ctx context.Context, entityType enum.EntityType, version int) (*models.SchemaDefinition, error) {
	return e.schema.FindByEntityTypeAndVersion(ctx, entityType, version)
}

func (e *Engine) ListSchemas(ctx context.Context, entityType enum.EntityType) ([]*models.SchemaDefinition, error) {
	return e.schema.ListByEntityType(ctx, entityType)
}

func (e *Engine) CreateCatalogItem(ctx context.Context, item *models.CatalogItem) error {
	return e.catalog.Create(ctx, item)
}

func (e *Engine) GetCatalogItem(ctx context.Context, itemID uint64) (*models.CatalogItem, error) {
	return e.catalog.GetByID(ctx, itemID)
}

func (e *Engine) UpdateCatalogItem(ctx context.Context, item *models.CatalogItem) error {
	return e.catalog.Update(ctx, item)
}

func (e *Engine) ListCatalogItems(ctx context.Context, limit, offset uint64, activeOnly bool) ([]*models.CatalogItem, error) {
	return e.catalog.List(ctx, limit, offset, activeOnly)
}

func (e *Engine) CreateLead(ctx context.Context, cmd lead.CreateCommand) (*models.Lead, error) {
	return e.lead.Create(ctx, cmd)
}

func (e *Engine) GetLead(ctx context.Context, leadID uint64) (*models.Lead, error) {
	return e.lead.GetByID(ctx, leadID)
}

func (e *Engine) UpdateLead(ctx context.Context, cmd lead.UpdateCommand) (*models.Lead, error) {
	return e.lead.Update(ctx, cmd)
}

func (e *Engine) ListLeads(ctx context.Context, limit, offset uint64) ([]*models.Lead, error) {
	return e.lead.List(ctx, limit, offset)
}

func (e *Engine) CreateCustomer(ctx context.Context, cmd customer.CreateCommand) (*models.Customer, error) {
	return e.customer.Create(ctx, cmd)
}

func (e *Engine) GetCustomer(ctx context.Context, customerID uint64) (*models.Customer, error) {
	return e.customer.GetByID(ctx, customerID)
}

func (e *Engine) UpdateCustomer(ctx context.Context, cmd customer.UpdateCommand) (*models.Customer, error) {
	return e.customer.Update(ctx, cmd)
}

func (e *Engine) DeleteCustomer(ctx context.Context, customerID uint64) error {
	return e.customer.Delete(ctx, customerID)
}

func (e *Engine) ListCustomers(ctx context.Context, limit, offset uint64) ([]*models.Customer, error) {
	return e.customer.List(ctx, limit, offset)
}

func (e *Engine) ListEvents(ctx context.Context, aggregateType string, aggregateID uint64) ([]*models.Event, error) {
	return e.outbox.ListByAggregate(ctx, aggregateType, aggregateID)
}

func (e *Engine) Close() {
	e.logger.Info("Initiating graceful shutdown of outbox relay")
	if e.dispatcher != nil {
		e.dispatcher.Stop()
	}
	if e.subscription != nil {
		if err := e.subscription.Unsubscribe(); err != nil {
			e.logger.Warn("Failed to unsubscribe from events", zap.Error(err))
		}
	}
	if e.natsConn != nil {
		if err := e.natsConn.Drain(); err != nil {
			e.logger.Warn("Failed to drain nats connection", zap.Error(err))
		}
	}
	e.logger.Info("Quoting engine successfully shutdown")
}
