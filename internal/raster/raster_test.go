package raster

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"slices"
	"testing"

	"codeberg.org/go-pdf/fpdf"

	"github.com/joseph-ayodele/tariff-catalog/internal/common"
)

type fakeInspector struct {
	pages int
	err   error
}

func (f fakeInspector) PageCount([]byte) (int, error) { return f.pages, f.err }

// fakeRunner emulates pdftoppm by writing PNG files next to the prefix
// passed as the last argument.
type fakeRunner struct {
	names []string
	err   error
	calls [][]string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.err != nil {
		return nil, []byte("Syntax Error: Couldn't read xref table"), f.err
	}
	prefix := args[len(args)-1]
	for _, n := range f.names {
		if err := os.WriteFile(prefix+"-"+n+".png", tinyPNG(), 0o600); err != nil {
			return nil, nil, err
		}
	}
	return nil, nil, nil
}

func tinyPNG() []byte {
	img := image.NewGray(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.White)
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func TestRasterizeOrdersPages(t *testing.T) {
	runner := &fakeRunner{names: []string{"10", "2", "1"}}
	r := New(Config{TempDir: t.TempDir()}, runner, fakeInspector{pages: 10}, nil)

	pages, err := r.Rasterize(context.Background(), []byte("%PDF-1.7 fake"))
	if err != nil {
		t.Fatalf("Rasterize() error = %v", err)
	}
	var got []int
	for _, p := range pages {
		got = append(got, p.Index)
		if p.Scale != DefaultScale {
			t.Errorf("page %d scale = %v, want %v", p.Index, p.Scale, DefaultScale)
		}
		if p.Width != 4 || p.Height != 3 {
			t.Errorf("page %d size = %dx%d, want 4x3", p.Index, p.Width, p.Height)
		}
	}
	if want := []int{1, 2, 10}; !slices.Equal(got, want) {
		t.Errorf("page order = %v, want %v", got, want)
	}

	args := runner.calls[0]
	if args[0] != "pdftoppm" {
		t.Errorf("binary = %q, want pdftoppm", args[0])
	}
	if i := slices.Index(args, "-r"); i < 0 || args[i+1] != "216" {
		t.Errorf("args = %v, want -r 216", args)
	}
}

func TestRasterizeZeroPages(t *testing.T) {
	runner := &fakeRunner{}
	r := New(Config{}, runner, fakeInspector{pages: 0}, nil)

	pages, err := r.Rasterize(context.Background(), []byte("%PDF-1.4 empty"))
	if err != nil {
		t.Fatalf("Rasterize() error = %v, want nil", err)
	}
	if len(pages) != 0 {
		t.Errorf("len(pages) = %d, want 0", len(pages))
	}
	if len(runner.calls) != 0 {
		t.Errorf("renderer called %d times for a zero-page document", len(runner.calls))
	}
}

func TestRasterizeMalformed(t *testing.T) {
	tests := []struct {
		name      string
		input     []byte
		inspector Inspector
		runner    *fakeRunner
	}{
		{"empty bytes", nil, fakeInspector{pages: 1}, &fakeRunner{}},
		{"not a pdf", []byte("this is not a pdf at all"), PDFCPUInspector{}, &fakeRunner{}},
		{"inspector error", []byte("%PDF-"), fakeInspector{err: errors.New("xref broken")}, &fakeRunner{}},
		{"render failure", []byte("%PDF-"), fakeInspector{pages: 2}, &fakeRunner{err: errors.New("exit status 1")}},
		{"renders nothing", []byte("%PDF-"), fakeInspector{pages: 2}, &fakeRunner{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(Config{TempDir: t.TempDir()}, tt.runner, tt.inspector, nil)
			_, err := r.Rasterize(context.Background(), tt.input)
			if err == nil {
				t.Fatal("Rasterize() error = nil, want malformed document")
			}
			var mdErr *MalformedDocumentError
			if !errors.As(err, &mdErr) {
				t.Errorf("error %T is not *MalformedDocumentError", err)
			}
			if !errors.Is(err, common.ErrMalformedDocument) {
				t.Errorf("error %v does not match common.ErrMalformedDocument", err)
			}
		})
	}
}

func TestRasterizeMaxPages(t *testing.T) {
	runner := &fakeRunner{names: []string{"1", "2"}}
	r := New(Config{MaxPages: 2, TempDir: t.TempDir()}, runner, fakeInspector{pages: 5}, nil)
	if _, err := r.Rasterize(context.Background(), []byte("%PDF-")); err != nil {
		t.Fatalf("Rasterize() error = %v", err)
	}
	args := runner.calls[0]
	if i := slices.Index(args, "-l"); i < 0 || args[i+1] != "2" {
		t.Errorf("args = %v, want -l 2", args)
	}
}

func TestPDFCPUInspectorCountsPages(t *testing.T) {
	doc := fpdf.New("P", "mm", "A4", "")
	for _, line := range []string{"A1.01.01.01 Consulta 15,75", "A2.02.01.01 Raio-X panoramico"} {
		doc.AddPage()
		doc.SetFont("Helvetica", "", 12)
		doc.Cell(80, 10, line)
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		t.Fatalf("fpdf Output() error = %v", err)
	}

	n, err := PDFCPUInspector{}.PageCount(buf.Bytes())
	if err != nil {
		t.Fatalf("PageCount() error = %v", err)
	}
	if n != 2 {
		t.Errorf("PageCount() = %d, want 2", n)
	}
}
