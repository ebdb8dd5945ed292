package entity

import (
	"encoding/json"
	"time"
)

// ExtractionRun is one ingestion of a provider PDF.
type ExtractionRun struct {
	ID                string          `json:"id"`
	ProviderID        string          `json:"provider_id"`
	Status            string          `json:"status"`     // constants.JobStatus
	RunStatus         *string         `json:"run_status"` // constants.RunStatus, unset for failed runs
	SourcePath        *string         `json:"source_path,omitempty"`
	ContentHash       *string         `json:"content_hash,omitempty"`
	TotalPages        int             `json:"total_pages"`
	ContributingPages int             `json:"contributing_pages"`
	Procedures        int             `json:"procedures"`
	Conflicts         int             `json:"conflicts"`
	Report            json.RawMessage `json:"report,omitempty"`
	ErrorMessage      *string         `json:"error_message,omitempty"`
	StartedAt         time.Time       `json:"started_at"`
	FinishedAt        *time.Time      `json:"finished_at,omitempty"`
}
