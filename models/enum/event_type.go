package enum

type EventType string

const (
	EventTypeQuoteSent             EventType = "quote.sent"
	EventTypeQuoteAccepted         EventType = "quote.accepted"
	EventTypeQuoteRejected         EventType = "quote.rejected"
	EventTypeQuoteArchived         EventType = "quote.archived"
	EventTypeCostAdjustmentAdded   EventType = "cost_adjustment.added"
	EventTypeCostAdjustmentRemoved EventType = "cost_adjustment.removed"
	EventTypeSchemaPublished       EventType = "schema.published"
)
