package prompt

import "fmt"

// Package prompt holds the fixed texts the agent is primed with.
//
// Two kinds of text are managed per purpose:
//
//   1. Instructions
//      - The system message: the agent's role and what to weigh
//      - Constant for a purpose; never contains run data
//
//   2. Output schema
//      - Appended as the last section of every briefing
//      - Names every output field with its type and closed value set
//      - Ends with a literal JSON skeleton of the expected shape
//
// Both are plain constants so that briefings stay byte-identical for
// identical inputs.

// Purpose identifies a reasoning task. It also tags stored transcripts.
type Purpose string

const (
	PurposePredictiveMaintenance Purpose = "predictive_maintenance"
	PurposePartsOrdering         Purpose = "parts_ordering"
)

// Manager defines the interface for prompt lookup.
type Manager interface {
	// Instructions returns the system instructions for purpose.
	Instructions(purpose Purpose) (string, error)

	// OutputSchema returns the output instruction block for purpose.
	OutputSchema(purpose Purpose) (string, error)
}

// ErrUnknownPurpose is returned for a purpose without texts.
var ErrUnknownPurpose = fmt.Errorf("unknown prompt purpose")
