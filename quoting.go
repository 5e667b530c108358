package quoting

import (
	"context"

	"goflare.io/quoting/adjustment"
	"goflare.io/quoting/customer"
	"goflare.io/quoting/lead"
	"goflare.io/quoting/models"
	"goflare.io/quoting/models/enum"
	"goflare.io/quoting/quote"
)

type Quoting interface {
	CreateQuote(ctx context.Context, cmd quote.CreateCommand) (*models.QuoteView, error)
	GetQuote(ctx context.Context, quoteID uint64) (*models.QuoteView, error)
	ListQuotes(ctx context.Context, customerID uint64, includeArchived bool) ([]*models.Quote, error)
	AddQuoteLine(ctx context.Context, cmd quote.AddLineCommand) (*models.QuoteView, error)
	RemoveQuoteLine(ctx context.Context, quoteID uint64, lineID string) (*models.QuoteView, error)
	AddComponent(ctx context.Context, cmd quote.AddComponentCommand) (*models.QuoteView, error)
	RemoveComponent(ctx context.Context, quoteID uint64, componentID string) (*models.QuoteView, error)
	SetPaymentSchedule(ctx context.Context, cmd quote.SetPaymentScheduleCommand) (*models.QuoteView, error)
	SendQuote(ctx context.Context, quoteID uint64) (*models.QuoteView, error)   // Emits quote.sent
	AcceptQuote(ctx context.Context, quoteID uint64) (*models.QuoteView, error) // Emits quote.accepted
	RejectQuote(ctx context.Context, quoteID uint64) (*models.QuoteView, error) // Emits quote.rejected
	ArchiveQuote(ctx context.Context, quoteID uint64) error                     // Emits quote.archived
	UpdateQuoteMalleableData(ctx context.Context, quoteID uint64, data models.MalleableData) (*models.QuoteView, error)

	AddCostAdjustment(ctx context.Context, cmd adjustment.AddCommand) (*models.CostAdjustment, error) // Emits cost_adjustment.added
	RemoveCostAdjustment(ctx context.Context, cmd adjustment.RemoveCommand) error                     // Emits cost_adjustment.removed
	ListCostAdjustments(ctx context.Context, quoteID uint64) ([]*models.CostAdjustment, error)

	CreateSchemaDraft(ctx context.Context, entityType enum.EntityType, cloneFromActive bool) (*models.SchemaDefinition, error)
	UpdateSchemaDraft(ctx context.Context, draftID uint64, fields []models.FieldDefinition) (*models.SchemaDefinition, error)
	PublishSchema(ctx context.Context, draftID uint64) (*models.SchemaDefinition, error) // Emits schema.published
	DiscardSchemaDraft(ctx context.Context, draftID uint64) error
	GetSchema(ctx context.Context, schemaID uint64) (*models.SchemaDefinition, error)
	GetActiveSchema(ctx context.Context, entityType enum.EntityType) (*models.SchemaDefinition, error)
	GetSchemaVersion(ctx context.Context, entityType enum.EntityType, version int) (*models.SchemaDefinition, error)
	ListSchemas(ctx context.Context, entityType enum.EntityType) ([]*models.SchemaDefinition, error)

	CreateCatalogItem(ctx context.Context, item *models.CatalogItem) error
	GetCatalogItem(ctx context.Context, itemID uint64) (*models.CatalogItem, error)
	UpdateCatalogItem(ctx context.Context, item *models.CatalogItem) error
	ListCatalogItems(ctx context.Context, limit, offset uint64, activeOnly bool) ([]*models.CatalogItem, error)

	CreateLead(ctx context.Context, cmd lead.CreateCommand) (*models.Lead, error)
	GetLead(ctx context.Context, leadID uint64) (*models.Lead, error)
	UpdateLead(ctx context.Context, cmd lead.UpdateCommand) (*models.Lead, error)
	ListLeads(ctx context.Context, limit, offset uint64) ([]*models.Lead, error)

	CreateCustomer(ctx context.Context, cmd customer.CreateCommand) (*models.Customer, error)
	GetCustomer(ctx context.Context, customerID uint64) (*models.Customer, error)
	UpdateCustomer(ctx context.Context, cmd customer.UpdateCommand) (*models.Customer, error)
	DeleteCustomer(ctx context.Context, customerID uint64) error
	ListCustomers(ctx context.Context, limit, offset uint64) ([]*models.Customer, error)

	// ListEvents returns the outbox history of one aggregate, delivered or not.
	ListEvents(ctx context.Context, aggregateType string, aggregateID uint64) ([]*models.Event, error)
	RegisterHandler(eventType enum.EventType, handler EventHandler)

	Close()
}
