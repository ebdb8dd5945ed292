package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joseph-ayodele/tariff-catalog/constants"
	"github.com/joseph-ayodele/tariff-catalog/internal/catalog"
	"github.com/joseph-ayodele/tariff-catalog/internal/common"
	"github.com/joseph-ayodele/tariff-catalog/internal/ocr"
	"github.com/joseph-ayodele/tariff-catalog/internal/parser"
	"github.com/joseph-ayodele/tariff-catalog/internal/raster"
)

type fakeRasterizer struct {
	pages int
	err   error
}

func (f fakeRasterizer) Rasterize(context.Context, []byte) ([]raster.PageImage, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]raster.PageImage, f.pages)
	for i := range out {
		out[i] = raster.PageImage{Index: i + 1, Data: []byte{byte(i)}, Scale: raster.DefaultScale}
	}
	return out, nil
}

// fakeRecognizer returns text per page index.
type fakeRecognizer struct {
	texts map[int]string
	errs  map[int]error
	delay time.Duration
}

func (f fakeRecognizer) Recognize(ctx context.Context, img raster.PageImage) ocr.PageText {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ocr.PageText{Index: img.Index, Err: ctx.Err()}
		}
	}
	if err := f.errs[img.Index]; err != nil {
		return ocr.PageText{Index: img.Index, Err: err}
	}
	text := f.texts[img.Index]
	conf := 90.0
	if text == "" {
		conf = 0
	}
	return ocr.PageText{Index: img.Index, Text: text, Confidence: conf, Language: "por"}
}

// fakeParser returns scripted candidates per page and records calls.
type fakeParser struct {
	mu      sync.Mutex
	byPage  map[int][]catalog.CandidateProcedure
	errs    map[int]error
	calls   []int
	active  atomic.Int32
	maxSeen atomic.Int32
	delay   time.Duration
}

func (f *fakeParser) Parse(ctx context.Context, page ocr.PageText) (parser.ParseResult, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	f.mu.Lock()
	f.calls = append(f.calls, page.Index)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return parser.ParseResult{Attempts: 1}, &parser.ParseFailure{Page: page.Index, Kind: parser.FailureCancelled, Attempts: 1, Err: ctx.Err()}
		}
	}
	if err := f.errs[page.Index]; err != nil {
		return parser.ParseResult{Attempts: 3}, &parser.ParseFailure{Page: page.Index, Kind: parser.FailureSchema, Attempts: 3, Err: err}
	}
	cands := f.byPage[page.Index]
	for i := range cands {
		cands[i].Page = page.Index
	}
	return parser.ParseResult{Candidates: cands, Attempts: 1}, nil
}

func cand(code, desc string, v *catalog.Amount) catalog.CandidateProcedure {
	c, _ := catalog.NewCandidate(code, desc, v, 0)
	return c
}

const longText = "A1.01.01.01 Consulta geral odontológica 15,75"

func newController(pages int, rec Recognizer, p PageParser, cfg Config) *Controller {
	return NewController(cfg, fakeRasterizer{pages: pages}, rec, p, nil, nil)
}

func TestRunMergesAcrossPages(t *testing.T) {
	rec := fakeRecognizer{texts: map[int]string{1: longText, 2: longText, 3: longText}}
	p := &fakeParser{byPage: map[int][]catalog.CandidateProcedure{
		1: {cand("A1.01.01.01", "Consulta", nil)},
		2: {cand("A1.01.01.01", "Consulta geral odontológica", catalog.AmountPtr(15.75))},
		3: {cand("A2.02.01.01", "Raio-X panorâmico digital", nil)},
	}}
	res, err := newController(3, rec, p, Config{}).Run(context.Background(), Input{ProviderID: "unimed", PDF: []byte("%PDF-")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	got, ok := res.Catalog.Get("A1.01.01.01")
	if !ok || got.Description != "Consulta geral odontológica" || got.Value == nil || *got.Value != catalog.NewAmount(15.75) {
		t.Errorf("A1.01.01.01 = %+v", got)
	}
	r := res.Report
	if r.Status != constants.RunOK || r.TotalPages != 3 || r.ContributingPages != 3 {
		t.Errorf("report = %+v", r)
	}
	if r.CandidatesBeforeDedup != 3 || r.CandidatesAfterDedup != 2 {
		t.Errorf("dedup counts = %d -> %d, want 3 -> 2", r.CandidatesBeforeDedup, r.CandidatesAfterDedup)
	}
	if r.ProviderID != "unimed" || r.RunID == "" {
		t.Errorf("run ids = %q %q", r.ProviderID, r.RunID)
	}
	for i, p := range r.Pages {
		if p.Index != i+1 {
			t.Fatalf("pages not sorted: %+v", r.Pages)
		}
	}
}

func TestRunSkipsInsufficientText(t *testing.T) {
	rec := fakeRecognizer{texts: map[int]string{1: "Capa.", 2: longText}}
	p := &fakeParser{byPage: map[int][]catalog.CandidateProcedure{2: {cand("A1.01", "Consulta", catalog.AmountPtr(10))}}}

	res, err := newController(2, rec, p, Config{}).Run(context.Background(), Input{PDF: []byte("%PDF-")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for _, idx := range p.calls {
		if idx == 1 {
			t.Error("parser called for a page with 5 characters")
		}
	}
	page1, _ := res.Report.Page(1)
	if page1.Status != constants.PageSkippedInsufficientText {
		t.Errorf("page 1 status = %s", page1.Status)
	}
	if len(res.Report.SkippedPages) != 1 || res.Report.SkippedPages[0] != 1 {
		t.Errorf("SkippedPages = %v, want [1]", res.Report.SkippedPages)
	}
	if res.Report.Status != constants.RunOK {
		t.Errorf("Status = %s, want OK", res.Report.Status)
	}
}

func TestRunPageFailuresAreLocal(t *testing.T) {
	rec := fakeRecognizer{
		texts: map[int]string{1: longText, 2: longText, 4: longText},
		errs:  map[int]error{3: errors.New("engine crashed")},
	}
	p := &fakeParser{
		byPage: map[int][]catalog.CandidateProcedure{1: {cand("A1.01", "Consulta", nil)}},
		errs:   map[int]error{2: errors.New(`{"procedures": "not-an-array"}`)},
	}
	res, err := newController(4, rec, p, Config{}).Run(context.Background(), Input{PDF: []byte("%PDF-")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := map[int]constants.PageStatus{
		1: constants.PageContributed,
		2: constants.PageParseFailed,
		3: constants.PageRecognitionFailed,
		4: constants.PageNoCandidates,
	}
	for idx, status := range want {
		if got, _ := res.Report.Page(idx); got.Status != status {
			t.Errorf("page %d status = %s, want %s", idx, got.Status, status)
		}
	}
	if res.Report.Status != constants.RunPartial {
		t.Errorf("Status = %s, want PARTIAL", res.Report.Status)
	}
	if res.Catalog.Len() != 1 {
		t.Errorf("catalog has %d entries, want 1", res.Catalog.Len())
	}
}

func TestRunTotalFailure(t *testing.T) {
	rec := fakeRecognizer{texts: map[int]string{1: "", 2: "curto"}}
	res, err := newController(2, rec, &fakeParser{}, Config{}).Run(context.Background(), Input{PDF: []byte("%PDF-")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Report.Status != constants.RunTotalFailure || res.Catalog.Len() != 0 {
		t.Errorf("status %s with %d entries, want TOTAL_FAILURE and empty", res.Report.Status, res.Catalog.Len())
	}
}

func TestRunZeroPages(t *testing.T) {
	res, err := newController(0, fakeRecognizer{}, &fakeParser{}, Config{}).Run(context.Background(), Input{PDF: []byte("%PDF-")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Report.TotalPages != 0 || res.Catalog == nil || res.Catalog.Len() != 0 {
		t.Errorf("report %+v catalog %v", res.Report, res.Catalog)
	}
	if res.Report.Status != constants.RunTotalFailure {
		t.Errorf("Status = %s, want TOTAL_FAILURE", res.Report.Status)
	}
}

// blockingRasterizer waits for the run to be cancelled, like pdftoppm
// killed mid-render.
type blockingRasterizer struct{}

func (blockingRasterizer) Rasterize(ctx context.Context, _ []byte) ([]raster.PageImage, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRunCancelledWhileRendering(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewController(Config{}, blockingRasterizer{}, fakeRecognizer{}, &fakeParser{}, nil, nil)

	res, err := c.Run(ctx, Input{ProviderID: "unimed", PDF: []byte("%PDF-")})
	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if res.Report.Status != constants.RunCancelled {
		t.Errorf("Status = %s, want CANCELLED", res.Report.Status)
	}
	if res.Catalog == nil || res.Catalog.Len() != 0 || res.Report.TotalPages != 0 {
		t.Errorf("catalog %v report %+v, want empty", res.Catalog, res.Report)
	}
}

func TestRunMalformedDocument(t *testing.T) {
	mdErr := fmt.Errorf("rasterize: %w", common.ErrMalformedDocument)
	c := NewController(Config{}, fakeRasterizer{err: mdErr}, fakeRecognizer{}, &fakeParser{}, nil, nil)
	if _, err := c.Run(context.Background(), Input{PDF: []byte("junk")}); !errors.Is(err, common.ErrMalformedDocument) {
		t.Fatalf("Run() error = %v, want malformed document", err)
	}
}

func TestRunSequentialWhenConcurrencyOne(t *testing.T) {
	texts := map[int]string{}
	for i := 1; i <= 6; i++ {
		texts[i] = longText
	}
	p := &fakeParser{delay: time.Millisecond}
	if _, err := newController(6, fakeRecognizer{texts: texts}, p, Config{Concurrency: 1}).Run(context.Background(), Input{PDF: []byte("%PDF-")}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for i, idx := range p.calls {
		if idx != i+1 {
			t.Fatalf("parse order = %v, want 1..6", p.calls)
		}
	}
	if p.maxSeen.Load() != 1 {
		t.Errorf("max concurrent parses = %d, want 1", p.maxSeen.Load())
	}
}

func TestRunBoundedConcurrency(t *testing.T) {
	texts := map[int]string{}
	for i := 1; i <= 12; i++ {
		texts[i] = longText
	}
	p := &fakeParser{delay: 5 * time.Millisecond}
	if _, err := newController(12, fakeRecognizer{texts: texts}, p, Config{Concurrency: 3}).Run(context.Background(), Input{PDF: []byte("%PDF-")}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := p.maxSeen.Load(); got > 3 {
		t.Errorf("max concurrent parses = %d, want <= 3", got)
	}
	if len(p.calls) != 12 {
		t.Errorf("parsed %d pages, want 12", len(p.calls))
	}
}

func TestRunParseTimeout(t *testing.T) {
	p := &fakeParser{delay: time.Second}
	c := newController(1, fakeRecognizer{texts: map[int]string{1: longText}}, p, Config{ParseTimeout: 10 * time.Millisecond})
	res, err := c.Run(context.Background(), Input{PDF: []byte("%PDF-")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got, _ := res.Report.Page(1); got.Status != constants.PageTimeout {
		t.Errorf("page status = %s, want TIMEOUT", got.Status)
	}
}

func TestRunCancelled(t *testing.T) {
	texts := map[int]string{}
	byPage := map[int][]catalog.CandidateProcedure{}
	for i := 1; i <= 8; i++ {
		texts[i] = longText
		byPage[i] = []catalog.CandidateProcedure{cand(fmt.Sprintf("A%d.01", i), "Consulta", nil)}
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &cancellingParser{fakeParser: &fakeParser{byPage: byPage}, cancelAfter: 2, cancel: cancel}

	res, err := newController(8, fakeRecognizer{texts: texts}, p, Config{Concurrency: 1}).Run(ctx, Input{PDF: []byte("%PDF-")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Report.Status != constants.RunCancelled {
		t.Errorf("Status = %s, want CANCELLED", res.Report.Status)
	}
	if res.Catalog.Len() != 2 {
		t.Errorf("catalog has %d entries, want the 2 finished pages", res.Catalog.Len())
	}
	if n := res.Report.CountByStatus()[constants.PageCancelled]; n != 6 {
		t.Errorf("cancelled pages = %d, want 6", n)
	}
	if len(res.Report.Pages) != 8 {
		t.Errorf("report has %d pages, want 8", len(res.Report.Pages))
	}
}

// cancellingParser cancels the run once it has answered cancelAfter pages.
type cancellingParser struct {
	*fakeParser
	cancelAfter int
	cancel      context.CancelFunc
	n           int
}

func (c *cancellingParser) Parse(ctx context.Context, page ocr.PageText) (parser.ParseResult, error) {
	res, err := c.fakeParser.Parse(ctx, page)
	c.n++
	if c.n == c.cancelAfter {
		c.cancel()
	}
	return res, err
}

func TestWriteReport(t *testing.T) {
	rec := fakeRecognizer{texts: map[int]string{1: longText, 2: "x"}}
	p := &fakeParser{byPage: map[int][]catalog.CandidateProcedure{
		1: {cand("B3.01", "Extração simples", catalog.AmountPtr(120)), cand("B3.01", "Extração", catalog.AmountPtr(110))},
	}}
	res, err := newController(2, rec, p, Config{}).Run(context.Background(), Input{ProviderID: "amil", PDF: []byte("%PDF-")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var buf bytes.Buffer
	if err := WriteReport(&buf, res.Report, FormatJSON); err != nil {
		t.Fatalf("WriteReport(json) error = %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("report json invalid: %v", err)
	}
	if decoded["status"] != "OK" || decoded["provider_id"] != "amil" {
		t.Errorf("decoded report = %v", decoded)
	}
	if conflicts, _ := decoded["conflicts"].([]any); len(conflicts) != 1 {
		t.Errorf("conflicts = %v, want one", decoded["conflicts"])
	}

	for _, format := range []string{FormatYAML, FormatText} {
		buf.Reset()
		if err := WriteReport(&buf, res.Report, format); err != nil {
			t.Fatalf("WriteReport(%s) error = %v", format, err)
		}
		if !strings.Contains(buf.String(), "SKIPPED_INSUFFICIENT_TEXT") {
			t.Errorf("%s report missing page status:\n%s", format, buf.String())
		}
	}
	if err := WriteReport(&buf, res.Report, "xml"); err == nil {
		t.Error("WriteReport(xml) error = nil")
	}
}
