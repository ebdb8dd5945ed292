package constants

import "testing"

func TestLooksLikePDF(t *testing.T) {
	tests := []struct {
		name string
		head []byte
		want bool
	}{
		{"plain header", []byte("%PDF-1.7\n%âãÏÓ"), true},
		{"leading junk", append([]byte{0xEF, 0xBB, 0xBF}, "%PDF-1.4"...), true},
		{"png", []byte{0x89, 'P', 'N', 'G'}, false},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		if got := LooksLikePDF(tt.head); got != tt.want {
			t.Errorf("%s: LooksLikePDF() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestIsPDFExt(t *testing.T) {
	for ext, want := range map[string]bool{".pdf": true, "PDF": true, ".Pdf": true, ".png": false, "": false} {
		if got := IsPDFExt(ext); got != want {
			t.Errorf("IsPDFExt(%q) = %v, want %v", ext, got, want)
		}
	}
}

func TestPageStatusFailed(t *testing.T) {
	failed := map[PageStatus]bool{
		PageContributed:             false,
		PageNoCandidates:            false,
		PageSkippedInsufficientText: false,
		PageCancelled:               false,
		PageRecognitionFailed:       true,
		PageParseFailed:             true,
		PageTimeout:                 true,
	}
	for s, want := range failed {
		if s.Failed() != want {
			t.Errorf("%s.Failed() = %v, want %v", s, s.Failed(), want)
		}
	}
}
