package models

import (
	"time"
)

// Customer 代表系統中的客戶
// Customer represents a customer in the system
type Customer struct {
	ID            uint64        `json:"id"`
	Name          string        `json:"name"`
	Email         string        `json:"email"`
	MalleableData MalleableData `json:"malleable_data"`
	SchemaVersion *int          `json:"malleable_schema_version,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func NewCustomer() *Customer {
	return &Customer{}
}
