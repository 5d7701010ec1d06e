package extract

// Package extract turns a free-text model reply into a validated decision.
//
// Steps, each with its own error type:
//   1. Locate the JSON candidate: a fenced json block if present, otherwise
//      the span from the first '{' to the last '}'        (ExtractionError)
//   2. Parse the candidate as a JSON object               (MalformedJSONError)
//   3. Decode into the decision shape, check presence, ranges and value
//      sets, parse timestamps                            (SchemaValidationError)
//
// Nothing partial is returned on failure. Every error carries the raw
// response for diagnosis.
//
// Known limitation: a stray '{' in prose before the real object breaks the
// bare-object fallback. Fenced blocks are not affected.

import (
	"encoding/json"
	"errors"
	"strings"
)

var fenceMarkers = []string{"```json", "```JSON"}

const fence = "```"

// ExtractJSON returns the JSON candidate contained in text.
func ExtractJSON(text string) (string, error) {
	if candidate, ok := fencedBlock(text); ok {
		return candidate, nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", &ExtractionError{Response: text}
	}
	return text[start : end+1], nil
}

// fencedBlock returns the body of the earliest json fence that is closed.
func fencedBlock(text string) (string, bool) {
	open := -1
	marker := ""
	for _, m := range fenceMarkers {
		if i := strings.Index(text, m); i >= 0 && (open < 0 || i < open) {
			open, marker = i, m
		}
	}
	if open < 0 {
		return "", false
	}
	body := text[open+len(marker):]
	closing := strings.Index(body, fence)
	if closing < 0 {
		return "", false
	}
	return strings.TrimSpace(body[:closing]), true
}

// decode extracts, checks the candidate is a JSON object and decodes it
// into out. Type mismatches are reported as schema errors on the field.
func decode(text string, out interface{}) error {
	candidate, err := ExtractJSON(text)
	if err != nil {
		return err
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return &MalformedJSONError{Candidate: candidate, Response: text, Err: err}
	}

	if err := json.Unmarshal([]byte(candidate), out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			field := typeErr.Field
			if field == "" {
				field = "(root)"
			}
			return &SchemaValidationError{
				Field:    field,
				Reason:   "expected " + strings.TrimPrefix(typeErr.Type.String(), "*") + ", got " + typeErr.Value,
				Response: text,
				Err:      err,
			}
		}
		return &MalformedJSONError{Candidate: candidate, Response: text, Err: err}
	}
	return nil
}
