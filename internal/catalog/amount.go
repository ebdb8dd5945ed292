package catalog

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Amount is a two-decimal currency value stored as integer cents.
type Amount int64

// NewAmount rounds f to the nearest cent.
func NewAmount(f float64) Amount {
	return Amount(math.Round(f * 100))
}

func (a Amount) Float64() float64 { return float64(a) / 100 }

func (a Amount) String() string {
	v := int64(a)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	f, err := strconv.ParseFloat(strings.Trim(string(b), `"`), 64)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	*a = NewAmount(f)
	return nil
}

func (a Amount) MarshalYAML() (any, error) {
	return a.Float64(), nil
}

// AmountPtr is a convenience for literals in callers and tests.
func AmountPtr(f float64) *Amount {
	a := NewAmount(f)
	return &a
}

var (
	// markers tariff tables use for "no price on this line"
	noValueMarkers = map[string]struct{}{
		"-": {}, "--": {}, "—": {}, "–": {}, "n/a": {}, "na": {}, "s/v": {}, "s/valor": {},
		"sem valor": {}, "null": {}, "none": {}, "nil": {}, "*": {}, "x": {},
	}
	reAmountChars = regexp.MustCompile(`[^0-9.,\-]`)
)

// ParseAmount turns a decoded JSON value (number, string or null) into an
// amount. A missing, empty, negative or unparseable value yields nil; it is
// never turned into zero.
func ParseAmount(v any) *Amount {
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		return nonNegative(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil
		}
		return nonNegative(f)
	case int:
		return nonNegative(float64(t))
	case string:
		return ParseAmountText(t)
	default:
		return nil
	}
}

// ParseAmountText parses amounts written as "R$ 1.234,56", "1,234.56",
// "15,75", "15.75" or "150".
func ParseAmountText(s string) *Amount {
	s = strings.ToLower(strings.TrimSpace(s))
	if _, ok := noValueMarkers[s]; ok || s == "" {
		return nil
	}
	s = reAmountChars.ReplaceAllString(s, "")
	if !strings.ContainsAny(s, "0123456789") {
		return nil
	}
	if strings.HasPrefix(s, "-") {
		return nil
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		// the separator that comes last is the decimal one
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		s = resolveSingleSeparator(s, ",")
	case lastDot >= 0:
		s = resolveSingleSeparator(s, ".")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return nonNegative(f)
}

// resolveSingleSeparator decides whether sep is a decimal or a thousands
// separator when it is the only kind present.
func resolveSingleSeparator(s, sep string) string {
	parts := strings.Split(s, sep)
	last := parts[len(parts)-1]
	if len(parts) == 2 && len(last) > 0 && len(last) <= 2 {
		return parts[0] + "." + last
	}
	if len(parts) == 2 && len(last) == 0 {
		return parts[0]
	}
	return strings.Join(parts, "")
}

func nonNegative(f float64) *Amount {
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	a := NewAmount(f)
	return &a
}
