package pipeline

import (
	"time"

	"github.com/joseph-ayodele/tariff-catalog/constants"
	"github.com/joseph-ayodele/tariff-catalog/internal/catalog"
)

// PageOutcome records what happened to one page.
type PageOutcome struct {
	Index      int                  `json:"index" yaml:"index"`
	Status     constants.PageStatus `json:"status" yaml:"status"`
	Reason     string               `json:"reason,omitempty" yaml:"reason,omitempty"`
	Candidates int                  `json:"candidates" yaml:"candidates"`
	Dropped    int                  `json:"dropped,omitempty" yaml:"dropped,omitempty"`
	Confidence float64              `json:"confidence" yaml:"confidence"`
	Language   string               `json:"language,omitempty" yaml:"language,omitempty"`
	Chars      int                  `json:"chars" yaml:"chars"`
	Attempts   int                  `json:"attempts,omitempty" yaml:"attempts,omitempty"`
	DurationMS int64                `json:"duration_ms" yaml:"duration_ms"`
}

// RunReport is the per-run observability record. It is built once by the
// controller and not modified afterwards.
type RunReport struct {
	RunID                 string              `json:"run_id" yaml:"run_id"`
	ProviderID            string              `json:"provider_id" yaml:"provider_id"`
	Status                constants.RunStatus `json:"status" yaml:"status"`
	TotalPages            int                 `json:"total_pages" yaml:"total_pages"`
	Pages                 []PageOutcome       `json:"pages" yaml:"pages"`
	SkippedPages          []int               `json:"skipped_pages" yaml:"skipped_pages"`
	ContributingPages     int                 `json:"contributing_pages" yaml:"contributing_pages"`
	CandidatesBeforeDedup int                 `json:"candidates_before_dedup" yaml:"candidates_before_dedup"`
	CandidatesAfterDedup  int                 `json:"candidates_after_dedup" yaml:"candidates_after_dedup"`
	DroppedCandidates     int                 `json:"dropped_candidates" yaml:"dropped_candidates"`
	Conflicts             []catalog.Conflict  `json:"conflicts,omitempty" yaml:"conflicts,omitempty"`
	StartedAt             time.Time           `json:"started_at" yaml:"started_at"`
	FinishedAt            time.Time           `json:"finished_at" yaml:"finished_at"`
}

// Duration is the wall time of the run.
func (r RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// CountByStatus tallies page outcomes.
func (r RunReport) CountByStatus() map[constants.PageStatus]int {
	out := make(map[constants.PageStatus]int)
	for _, p := range r.Pages {
		out[p.Status]++
	}
	return out
}

// Page returns the outcome for a 1-based page index.
func (r RunReport) Page(index int) (PageOutcome, bool) {
	for _, p := range r.Pages {
		if p.Index == index {
			return p, true
		}
	}
	return PageOutcome{}, false
}

// runStatus derives the run status from page outcomes.
func runStatus(pages []PageOutcome, contributing int, cancelled bool) constants.RunStatus {
	switch {
	case cancelled:
		return constants.RunCancelled
	case contributing == 0:
		return constants.RunTotalFailure
	}
	for _, p := range pages {
		if p.Status.Failed() {
			return constants.RunPartial
		}
	}
	return constants.RunOK
}
