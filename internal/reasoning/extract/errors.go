package extract

import (
	"errors"
	"fmt"
)

// Error kinds, used as metric labels.
const (
	KindExtraction = "extraction"
	KindMalformed  = "malformed_json"
	KindSchema     = "schema"
)

const maxQuotedLength = 200

// ExtractionError means no JSON candidate was found in the response.
type ExtractionError struct {
	Response string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("no JSON object found in model response: %q", truncate(e.Response))
}

// MalformedJSONError means a candidate was found but is not a JSON object.
type MalformedJSONError struct {
	Candidate string
	Response  string
	Err       error
}

func (e *MalformedJSONError) Error() string {
	return fmt.Sprintf("malformed JSON in model response: %v", e.Err)
}

func (e *MalformedJSONError) Unwrap() error { return e.Err }

// SchemaValidationError means the object parsed but a field is missing,
// mistyped or outside its allowed range. Field is the JSON path, e.g.
// maintenanceWindow.startTime or orderItems[0].quantity.
type SchemaValidationError struct {
	Field    string
	Reason   string
	Response string
	Err      error
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("invalid field %s: %s", e.Field, e.Reason)
}

func (e *SchemaValidationError) Unwrap() error { return e.Err }

// Kind returns the error kind of an extractor error, or "" for other errors.
func Kind(err error) string {
	var (
		extractionErr *ExtractionError
		malformedErr  *MalformedJSONError
		schemaErr     *SchemaValidationError
	)
	switch {
	case errors.As(err, &extractionErr):
		return KindExtraction
	case errors.As(err, &malformedErr):
		return KindMalformed
	case errors.As(err, &schemaErr):
		return KindSchema
	}
	return ""
}

func truncate(s string) string {
	if len(s) <= maxQuotedLength {
		return s
	}
	return s[:maxQuotedLength] + "..."
}
