package raster

import (
	"fmt"

	"github.com/joseph-ayodele/tariff-catalog/internal/common"
)

// MalformedDocumentError means the byte stream could not be used as a PDF.
// It is fatal for the whole run.
type MalformedDocumentError struct {
	Reason string
	Cause  error
}

func (e *MalformedDocumentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed document: %s: %v", e.Reason, e.Cause)
	}
	return "malformed document: " + e.Reason
}

// Unwrap exposes both the sentinel and the underlying cause to errors.Is.
func (e *MalformedDocumentError) Unwrap() []error {
	if e.Cause == nil {
		return []error{common.ErrMalformedDocument}
	}
	return []error{common.ErrMalformedDocument, e.Cause}
}

func malformed(reason string, cause error) error {
	return &MalformedDocumentError{Reason: reason, Cause: cause}
}
