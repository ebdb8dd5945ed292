package llm

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Temperature is sent with every extraction call. It is not configurable.
const Temperature = 0.0

// MaxPromptChars bounds the page text sent to the model. Dense fee tables
// at 216 DPI rarely exceed it.
const MaxPromptChars = 12000

// BuildSystemPrompt returns the fixed instructions. They forbid inventing
// data and allow an empty list.
func BuildSystemPrompt() string {
	parts := []string{
		"You extract dental and medical procedures from one page of an insurance fee table.",
		"The text comes from OCR and may contain noise, broken columns and headers.",
		"Return ONLY a JSON object of the form {\"procedures\": [{\"code\": string, \"description\": string, \"value\": number|null}]}.",
		"Only report procedures whose code appears in the text. Codes look like A1.01.01.01: one letter followed by digit groups separated by dots.",
		"Never invent codes, descriptions or values. Copy the description as written.",
		"Set \"value\" to the price written on the same row as a JSON number with a dot as decimal separator (R$ 1.234,56 becomes 1234.56). If no price is present, set \"value\" to null. Never use 0 for a missing price.",
		"If the page has no procedures, return {\"procedures\": []}.",
		"Do not add any other keys. Do not wrap the JSON in markdown.",
		"JSON Schema:\n" + mustJSON(BuildProcedureJSONSchema()),
	}
	return strings.Join(parts, "\n")
}

// BuildUserPrompt packages the page text with its position in the document.
func BuildUserPrompt(req ExtractRequest) string {
	var b strings.Builder
	if req.ProviderID != "" {
		b.WriteString("Provider: ")
		b.WriteString(req.ProviderID)
		b.WriteString("\n")
	}
	if req.PageIndex > 0 {
		b.WriteString("Page: ")
		b.WriteString(strconv.Itoa(req.PageIndex))
		b.WriteString("\n")
	}
	b.WriteString("\nPage text:\n")
	text := strings.TrimSpace(req.Text)
	if r := []rune(text); len(r) > MaxPromptChars {
		text = string(r[:MaxPromptChars])
	}
	b.WriteString(text)
	b.WriteString("\n\nReturn ONLY JSON that matches the schema.")
	return b.String()
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
