package conversation

// Package conversation keeps a bounded transcript per entity so that
// successive reasoning calls about the same machine or work order see
// their earlier exchanges.
//
// A transcript is at most MaxTurns (role, content) pairs, oldest first, and
// every save overwrites the previous one. Transcript problems never abort a
// run: the manager logs them at warn level and returns *TranscriptError so
// the caller can record a warning and continue without history.
//
// Concurrent runs for the same entity race on save; the last writer wins.

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kubilitics/maintenance-agent/internal/db"
	"github.com/kubilitics/maintenance-agent/internal/llm/types"
	"github.com/kubilitics/maintenance-agent/internal/metrics"
)

// MaxTurns is the default transcript bound.
const MaxTurns = 10

// TranscriptError wraps a failed load or save.
type TranscriptError struct {
	Op       string // load or save
	EntityID string
	Err      error
}

func (e *TranscriptError) Error() string {
	return fmt.Sprintf("transcript %s for %s: %v", e.Op, e.EntityID, e.Err)
}

func (e *TranscriptError) Unwrap() error { return e.Err }

// Manager loads and saves transcripts.
type Manager struct {
	store    db.TranscriptStore
	logger   *zap.Logger
	maxTurns int
	now      func() time.Time
}

// NewManager creates a manager over store. maxTurns <= 0 means MaxTurns.
func NewManager(store db.TranscriptStore, logger *zap.Logger, maxTurns int) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxTurns <= 0 {
		maxTurns = MaxTurns
	}
	return &Manager{
		store:    store,
		logger:   logger.Named("conversation"),
		maxTurns: maxTurns,
		now:      time.Now,
	}
}

// Load returns the stored turns for entityID in chronological order. A
// missing transcript is not an error: the result is nil.
func (m *Manager) Load(ctx context.Context, entityID string) ([]types.Message, error) {
	rec, err := m.store.LoadTranscript(ctx, entityID)
	if err != nil {
		return nil, m.fail("load", entityID, err)
	}
	if rec == nil {
		return nil, nil
	}

	turns := make([]types.Message, 0, len(rec.Turns))
	for _, t := range rec.Turns {
		turns = append(turns, types.Message{Role: t.Role, Content: t.Content})
	}
	return Window(turns, m.maxTurns), nil
}

// Save overwrites the transcript for entityID with the last turns.
func (m *Manager) Save(ctx context.Context, entityID, purpose string, turns []types.Message) error {
	kept := Window(turns, m.maxTurns)
	rec := &db.TranscriptRecord{
		EntityID:  entityID,
		Purpose:   purpose,
		Turns:     make([]db.TurnRecord, 0, len(kept)),
		UpdatedAt: m.now().UTC(),
	}
	for _, t := range kept {
		rec.Turns = append(rec.Turns, db.TurnRecord{Role: t.Role, Content: t.Content})
	}

	if err := m.store.SaveTranscript(ctx, rec); err != nil {
		return m.fail("save", entityID, err)
	}
	return nil
}

func (m *Manager) fail(op, entityID string, err error) error {
	m.logger.Warn("transcript unavailable, continuing without it",
		zap.String("op", op),
		zap.String("entity_id", entityID),
		zap.Error(err),
	)
	metrics.TranscriptErrors.WithLabelValues(op).Inc()
	return &TranscriptError{Op: op, EntityID: entityID, Err: err}
}

// Window returns the last max turns, keeping their order. The result never
// aliases turns.
func Window(turns []types.Message, max int) []types.Message {
	if max <= 0 {
		max = MaxTurns
	}
	start := 0
	if len(turns) > max {
		start = len(turns) - max
	}
	out := make([]types.Message, len(turns)-start)
	copy(out, turns[start:])
	return out
}
