package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docfields/constants"
)

// Document is a tracked input file and the outcome of its latest extraction run.
type Document struct {
	ID           uuid.UUID                  `json:"id"`
	Name         string                     `json:"name"`
	SourcePath   string                     `json:"source_path"`
	SchemaName   string                     `json:"schema_name,omitempty"`
	Status       constants.ProcessingStatus `json:"status"`
	PageCount    int                        `json:"page_count"`
	Fields       map[string]string          `json:"fields,omitempty"`
	ErrorMessage string                     `json:"error_message,omitempty"`
	CreatedAt    time.Time                  `json:"created_at"`
	UpdatedAt    time.Time                  `json:"updated_at"`
}
