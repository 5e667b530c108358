package models

import "time"

type Lead struct {
	ID            uint64        `json:"id"`
	Name          string        `json:"name"`
	Email         string        `json:"email"`
	Company       string        `json:"company"`
	Source        string        `json:"source"`
	MalleableData MalleableData `json:"malleable_data"`
	SchemaVersion *int          `json:"malleable_schema_version,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}
