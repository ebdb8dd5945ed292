package ocr

import (
	"context"
	"errors"
	"math"
	"slices"
	"strings"
	"testing"
)

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t800\t600\t-1\t\n" +
	"4\t1\t1\t1\t1\t0\t10\t10\t300\t20\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t10\t10\t80\t20\t96.5\tA1.01.01.01\n" +
	"5\t1\t1\t1\t1\t2\t95\t10\t80\t20\t90\tConsulta\n" +
	"5\t1\t1\t1\t1\t3\t180\t10\t40\t20\t93.5\t15,75\n" +
	"5\t1\t1\t1\t2\t1\t10\t40\t80\t20\t88\tA2.02.01.01\n" +
	"5\t1\t1\t1\t2\t2\t95\t40\t80\t20\t-1\t \n" +
	"5\t1\t2\t1\t1\t1\t10\t90\t80\t20\t82\tObservações\n"

func TestParseTSV(t *testing.T) {
	text, conf := ParseTSV(sampleTSV)
	want := "A1.01.01.01 Consulta 15,75\nA2.02.01.01\n\nObservações"
	if text != want {
		t.Errorf("text = %q, want %q", text, want)
	}
	if wantConf := (96.5 + 90 + 93.5 + 88 + 82) / 5; math.Abs(conf-wantConf) > 1e-9 {
		t.Errorf("conf = %v, want %v", conf, wantConf)
	}
}

func TestParseTSVEmpty(t *testing.T) {
	for _, in := range []string{"", "level\tpage_num\n", "garbage"} {
		if text, conf := ParseTSV(in); text != "" || conf != 0 {
			t.Errorf("ParseTSV(%q) = %q, %v", in, text, conf)
		}
	}
}

type tsvRunner struct {
	out    string
	stderr string
	err    error
	args   []string
}

func (r *tsvRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	r.args = append([]string{name}, args...)
	return []byte(r.out), []byte(r.stderr), r.err
}

func TestTesseractRecognize(t *testing.T) {
	runner := &tsvRunner{out: sampleTSV}
	eng := NewTesseract(TesseractConfig{PSM: 6, TessdataDir: "/opt/tessdata", TempDir: t.TempDir()}, runner)

	text, conf, err := eng.Recognize(context.Background(), []byte{0x89, 'P', 'N', 'G'}, "por")
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if !strings.HasPrefix(text, "A1.01.01.01 Consulta") || conf < 80 {
		t.Errorf("Recognize() = %q, %v", text, conf)
	}
	if runner.args[0] != "tesseract" || runner.args[len(runner.args)-1] != "tsv" {
		t.Errorf("args = %v", runner.args)
	}
	for _, pair := range [][2]string{{"-l", "por"}, {"--psm", "6"}, {"--tessdata-dir", "/opt/tessdata"}} {
		if i := slices.Index(runner.args, pair[0]); i < 0 || runner.args[i+1] != pair[1] {
			t.Errorf("args = %v, want %s %s", runner.args, pair[0], pair[1])
		}
	}
}

func TestTesseractUnreadableImageIsBlank(t *testing.T) {
	runner := &tsvRunner{stderr: "Error in pixReadMem: Unknown format: no pix returned\nError in pixRead: image not returned", err: errors.New("exit status 1")}
	eng := NewTesseract(TesseractConfig{TempDir: t.TempDir()}, runner)

	text, conf, err := eng.Recognize(context.Background(), []byte("corrupt"), "por")
	if err != nil || text != "" || conf != 0 {
		t.Errorf("Recognize() = %q, %v, %v; want blank result", text, conf, err)
	}
}

func TestTesseractFailure(t *testing.T) {
	runner := &tsvRunner{stderr: "Failed loading language 'xyz'", err: errors.New("exit status 1")}
	eng := NewTesseract(TesseractConfig{TempDir: t.TempDir()}, runner)
	if _, _, err := eng.Recognize(context.Background(), []byte{1}, "xyz"); err == nil {
		t.Fatal("Recognize() error = nil, want failure")
	}
}
