package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"unicode/utf8"
)

// Truncate cuts s to at most max bytes without splitting a rune.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "...(truncated)"
}

// StrOrEmpty dereferences an optional string.
func StrOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// SHA256Hex returns the hex encoded sha256 of b.
func SHA256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
