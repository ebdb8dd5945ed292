// Package catalog holds the procedure catalog domain: candidates proposed
// per page, code and amount normalization, and the merge that reduces all
// candidates of one document into a catalog with one entry per code.
package catalog

import (
	"encoding/json"
	"slices"
)

// CandidateProcedure is one page-local proposal for a procedure line.
// Value nil means no price was found for the code on that page.
type CandidateProcedure struct {
	Code        string  `json:"code" yaml:"code"`
	Description string  `json:"description" yaml:"description"`
	Value       *Amount `json:"value" yaml:"value"`
	Page        int     `json:"page,omitempty" yaml:"page,omitempty"`
}

func (c CandidateProcedure) HasValue() bool { return c.Value != nil }

// NewCandidate normalizes code and description. It reports false when the
// code is missing or cannot be canonicalized; such candidates must be
// discarded.
func NewCandidate(code, description string, value *Amount, page int) (CandidateProcedure, bool) {
	normalized, ok := NormalizeCode(code)
	if !ok {
		return CandidateProcedure{}, false
	}
	return CandidateProcedure{
		Code:        normalized,
		Description: NormalizeDescription(description),
		Value:       value,
		Page:        page,
	}, true
}

// sameContent compares code, description and value, ignoring the page.
func sameContent(a, b CandidateProcedure) bool {
	if a.Code != b.Code || a.Description != b.Description {
		return false
	}
	if a.Value == nil || b.Value == nil {
		return a.Value == nil && b.Value == nil
	}
	return *a.Value == *b.Value
}

// ProcedureCatalog maps each procedure code to exactly one candidate. It is
// built by the Merger and never mutated afterwards.
type ProcedureCatalog struct {
	entries map[string]CandidateProcedure
}

// Entry is the exported view of one catalog line.
type Entry struct {
	Description string  `json:"description" yaml:"description"`
	Value       *Amount `json:"value" yaml:"value"`
}

// Empty returns a catalog without entries.
func Empty() *ProcedureCatalog {
	return &ProcedureCatalog{entries: map[string]CandidateProcedure{}}
}

func (c *ProcedureCatalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Get looks up a code, normalizing it first.
func (c *ProcedureCatalog) Get(code string) (CandidateProcedure, bool) {
	if c == nil {
		return CandidateProcedure{}, false
	}
	normalized, ok := NormalizeCode(code)
	if !ok {
		return CandidateProcedure{}, false
	}
	p, ok := c.entries[normalized]
	return p, ok
}

// Codes returns the codes in natural order.
func (c *ProcedureCatalog) Codes() []string {
	if c == nil {
		return nil
	}
	codes := make([]string, 0, len(c.entries))
	for code := range c.entries {
		codes = append(codes, code)
	}
	slices.SortFunc(codes, CompareCodes)
	return codes
}

// Candidates returns the surviving candidates ordered by code.
func (c *ProcedureCatalog) Candidates() []CandidateProcedure {
	codes := c.Codes()
	out := make([]CandidateProcedure, 0, len(codes))
	for _, code := range codes {
		out = append(out, c.entries[code])
	}
	return out
}

// Entries returns a copy of the code → entry mapping.
func (c *ProcedureCatalog) Entries() map[string]Entry {
	out := make(map[string]Entry, c.Len())
	if c == nil {
		return out
	}
	for code, p := range c.entries {
		out[code] = Entry{Description: p.Description, Value: p.Value}
	}
	return out
}

// Equal reports whether both catalogs hold the same codes with the same
// descriptions and values.
func (c *ProcedureCatalog) Equal(other *ProcedureCatalog) bool {
	if c.Len() != other.Len() {
		return false
	}
	for code, p := range c.entriesOrEmpty() {
		q, ok := other.entries[code]
		if !ok || !sameContent(p, q) {
			return false
		}
	}
	return true
}

func (c *ProcedureCatalog) entriesOrEmpty() map[string]CandidateProcedure {
	if c == nil {
		return nil
	}
	return c.entries
}

func (c *ProcedureCatalog) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Entries())
}

func (c *ProcedureCatalog) MarshalYAML() (any, error) {
	return c.Entries(), nil
}
