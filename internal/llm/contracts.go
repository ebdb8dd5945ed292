package llm

import "context"

// ExtractRequest carries one page of recognized text to the model.
type ExtractRequest struct {
	ProviderID string
	PageIndex  int
	Text       string
	Language   string // winning OCR hypothesis, hint only
}

// ProcedureExtractor returns the raw JSON document produced by the model
// for a page. Validation and decoding happen in the caller.
type ProcedureExtractor interface {
	ExtractProcedures(ctx context.Context, req ExtractRequest) ([]byte, error)
}

// ProcedureItem is one element of the "procedures" array. Value is a
// json.Number or nil once the document has been validated.
type ProcedureItem struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Value       any    `json:"value"`
}

type ProcedureDocument struct {
	Procedures []ProcedureItem `json:"procedures"`
}
