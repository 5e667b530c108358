package enum

// EntityType names an entity that can carry malleable data.
type EntityType string

const (
	EntityTypeLead     EntityType = "lead"
	EntityTypeQuote    EntityType = "quote"
	EntityTypeCustomer EntityType = "customer"
	EntityTypeEmployee EntityType = "employee"
	EntityTypeTicket   EntityType = "ticket"
	EntityTypeProject  EntityType = "project"
	EntityTypeSite     EntityType = "site"
	EntityTypeContact  EntityType = "contact"
	EntityTypeArticle  EntityType = "article"
)

func (t EntityType) IsValid() bool {
	switch t {
	case EntityTypeLead, EntityTypeQuote, EntityTypeCustomer, EntityTypeEmployee, EntityTypeTicket,
		EntityTypeProject, EntityTypeSite, EntityTypeContact, EntityTypeArticle:
		return true
	}
	return false
}
