package parser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/joseph-ayodele/tariff-catalog/internal/catalog"
	"github.com/joseph-ayodele/tariff-catalog/internal/llm"
	"github.com/joseph-ayodele/tariff-catalog/internal/ocr"
)

type reply struct {
	raw string
	err error
}

// scriptedExtractor returns its replies in order, repeating the last one.
type scriptedExtractor struct {
	replies []reply
	calls   int
	reqs    []llm.ExtractRequest
}

func (s *scriptedExtractor) ExtractProcedures(_ context.Context, req llm.ExtractRequest) ([]byte, error) {
	s.reqs = append(s.reqs, req)
	r := s.replies[min(s.calls, len(s.replies)-1)]
	s.calls++
	if r.err != nil {
		return nil, r.err
	}
	return []byte(r.raw), nil
}

func newTestParser(ex llm.ProcedureExtractor, cfg Config) *Parser {
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = time.Millisecond
	}
	return New(cfg, ex, nil)
}

var page = ocr.PageText{Index: 7, Text: "A1.01.01.01 Consulta geral 15,75", Language: "por"}

func TestParseCandidates(t *testing.T) {
	ex := &scriptedExtractor{replies: []reply{{raw: "```json\n" + `{"procedures": [
		{"code": "a1 .01.01.01", "description": "  Consulta   geral ", "value": 15.75},
		{"code": "A2.02", "description": "Raio-X", "value": null},
		{"code": "", "description": "sem código", "value": 10},
		{"code": "Observação", "description": "", "value": null},
		{"code": "B3.01", "description": "Extração", "value": 120}
	]}` + "\n```"}}}

	res, err := newTestParser(ex, Config{}).Parse(context.Background(), page)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	want := []catalog.CandidateProcedure{
		{Code: "A1.01.01.01", Description: "Consulta geral", Value: catalog.AmountPtr(15.75), Page: 7},
		{Code: "A2.02", Description: "Raio-X", Page: 7},
		{Code: "B3.01", Description: "Extração", Value: catalog.AmountPtr(120), Page: 7},
	}
	if diff := cmp.Diff(want, res.Candidates); diff != "" {
		t.Errorf("candidates mismatch (-want +got):\n%s", diff)
	}
	if res.Dropped != 2 || res.Attempts != 1 {
		t.Errorf("Dropped = %d Attempts = %d, want 2 and 1", res.Dropped, res.Attempts)
	}
	if ex.reqs[0].PageIndex != 7 || ex.reqs[0].Text != page.Text {
		t.Errorf("request = %+v", ex.reqs[0])
	}
}

func TestParseEmptyList(t *testing.T) {
	ex := &scriptedExtractor{replies: []reply{{raw: `{"procedures": []}`}}}
	res, err := newTestParser(ex, Config{}).Parse(context.Background(), page)
	if err != nil || len(res.Candidates) != 0 {
		t.Errorf("Parse() = %+v, %v; want no candidates and no error", res, err)
	}
}

func TestParseFailures(t *testing.T) {
	tests := []struct {
		name      string
		replies   []reply
		cfg       Config
		wantKind  string
		wantCalls int
	}{
		{"not an array", []reply{{raw: `{"procedures": "not-an-array"}`}}, Config{}, FailureSchema, 3},
		{"invalid json", []reply{{raw: `{"procedures": [`}}, Config{}, FailureInvalidJSON, 3},
		{"no retry on invalid output", []reply{{raw: `procedures: none`}}, Config{NoRetryInvalidOutput: true}, FailureInvalidJSON, 1},
		{"top-level array", []reply{{raw: `[]`}}, Config{NoRetryInvalidOutput: true}, FailureSchema, 1},
		{"item missing value and description", []reply{{raw: `{"procedures": [{"code": "A1.01.01.01"}]}`}}, Config{}, FailureSchema, 3},
		{"item missing value", []reply{{raw: `{"procedures": [{"code": "A1.01.01.01", "description": "Consulta"}]}`}}, Config{}, FailureSchema, 3},
		{"textual value", []reply{{raw: `{"procedures": [{"code": "A1.01.01.01", "description": "Consulta", "value": "abc"}]}`}}, Config{}, FailureSchema, 3},
		{"localized textual value", []reply{{raw: `{"procedures": [{"code": "A1.01.01.01", "description": "Consulta", "value": "R$ 15,75"}]}`}}, Config{}, FailureSchema, 3},
		{"extra item key", []reply{{raw: `{"procedures": [{"code": "A1.01.01.01", "description": "Consulta", "value": null, "price": 15.75}]}`}}, Config{}, FailureSchema, 3},
		{"numeric code", []reply{{raw: `{"procedures": [{"code": 101, "description": "Consulta", "value": null}]}`}}, Config{}, FailureSchema, 3},
		{"transport keeps failing", []reply{{err: errors.New("502 bad gateway")}}, Config{MaxAttempts: 2}, FailureExtraction, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := &scriptedExtractor{replies: tt.replies}
			res, err := newTestParser(ex, tt.cfg).Parse(context.Background(), page)
			var pf *ParseFailure
			if !errors.As(err, &pf) {
				t.Fatalf("error = %v, want *ParseFailure", err)
			}
			if pf.Kind != tt.wantKind || pf.Page != 7 {
				t.Errorf("failure = %+v, want kind %s", pf, tt.wantKind)
			}
			if ex.calls != tt.wantCalls || res.Attempts != tt.wantCalls {
				t.Errorf("calls = %d attempts = %d, want %d", ex.calls, res.Attempts, tt.wantCalls)
			}
			if len(res.Candidates) != 0 {
				t.Errorf("failed parse returned %d candidates", len(res.Candidates))
			}
		})
	}
}

func TestParseRetrySucceeds(t *testing.T) {
	ex := &scriptedExtractor{replies: []reply{
		{err: errors.New("429 too many requests")},
		{raw: `{"procedures": "oops"}`},
		{raw: `{"procedures": [{"code": "C1.10", "description": "Profilaxia", "value": 60.5}]}`},
	}}
	res, err := newTestParser(ex, Config{}).Parse(context.Background(), page)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if res.Attempts != 3 || len(res.Candidates) != 1 {
		t.Errorf("Attempts = %d candidates = %d", res.Attempts, len(res.Candidates))
	}
}

func TestParseCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ex := &scriptedExtractor{replies: []reply{{raw: `{"procedures": []}`}}}
	_, err := newTestParser(ex, Config{}).Parse(ctx, page)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if ex.calls != 0 {
		t.Errorf("extractor called %d times after cancellation", ex.calls)
	}
}
