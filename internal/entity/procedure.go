package entity

import (
	"time"

	"github.com/joseph-ayodele/tariff-catalog/internal/catalog"
)

// Procedure is a stored catalog entry.
type Procedure struct {
	ProviderID  string          `json:"provider_id"`
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Value       *catalog.Amount `json:"value"`
	Page        int             `json:"page"`
	RunID       string          `json:"run_id"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Candidate converts the row back to a pipeline candidate.
func (p Procedure) Candidate() catalog.CandidateProcedure {
	return catalog.CandidateProcedure{Code: p.Code, Description: p.Description, Value: p.Value, Page: p.Page}
}
