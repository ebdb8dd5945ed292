package catalog

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var (
	reCanonicalCode = regexp.MustCompile(`^[A-Z]\d+(\.\d+)*$`)
	reRepeatedDots  = regexp.MustCompile(`\.{2,}`)
	// a dot right after the leading letter ("A.1.01") is OCR noise
	reLetterDot = regexp.MustCompile(`^([A-Z])\.`)
)

// NormalizeCode canonicalizes a loosely formatted procedure code
// ("a 1 . 01. 01 .01", "A1,01,01") into the dotted form "A1.01.01.01".
// The second return value is false when the input cannot be coerced.
func NormalizeCode(raw string) (string, bool) {
	s := norm.NFKC.String(raw)
	s = strings.ToUpper(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return -1
		case r == ',' || r == '·':
			return '.'
		}
		return r
	}, s)
	s = reRepeatedDots.ReplaceAllString(s, ".")
	s = strings.Trim(s, ".")
	s = reLetterDot.ReplaceAllString(s, "$1")
	if !reCanonicalCode.MatchString(s) {
		return "", false
	}
	return s, true
}

// NormalizeDescription collapses whitespace and applies NFC so that
// descriptions compare and measure consistently.
func NormalizeDescription(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// descriptionLength counts code points of the normalized description.
func descriptionLength(s string) int {
	return utf8.RuneCountInString(NormalizeDescription(s))
}

// CompareCodes orders codes by letter then numerically by dot group, so
// A1.2 sorts before A1.10.
func CompareCodes(a, b string) int {
	if a == b {
		return 0
	}
	if a == "" || b == "" || a[0] != b[0] {
		return strings.Compare(a, b)
	}
	ga := strings.Split(a[1:], ".")
	gb := strings.Split(b[1:], ".")
	for i := 0; i < len(ga) && i < len(gb); i++ {
		if c := compareNumeric(ga[i], gb[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(ga) < len(gb):
		return -1
	case len(ga) > len(gb):
		return 1
	}
	return strings.Compare(a, b)
}

func compareNumeric(a, b string) int {
	ta := strings.TrimLeft(a, "0")
	tb := strings.TrimLeft(b, "0")
	if len(ta) != len(tb) {
		if len(ta) < len(tb) {
			return -1
		}
		return 1
	}
	if c := strings.Compare(ta, tb); c != 0 {
		return c
	}
	// "01" after "1" keeps the order total
	return strings.Compare(a, b)
}
