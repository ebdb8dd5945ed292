package llm

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

var reFence = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

// StripCodeFences removes a surrounding markdown fence, which chat models
// add even in JSON mode.
func StripCodeFences(raw []byte) []byte {
	s := strings.TrimSpace(string(raw))
	if m := reFence.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	return []byte(strings.TrimSpace(s))
}

// DecodeProcedureDocument decodes a validated document keeping numbers as
// json.Number so amounts are not routed through float formatting twice.
func DecodeProcedureDocument(doc []byte) (ProcedureDocument, error) {
	var out ProcedureDocument
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	err := dec.Decode(&out)
	return out, err
}
