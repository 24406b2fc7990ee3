package callflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/flowpbx/ivrflow/internal/database"
	"github.com/flowpbx/ivrflow/internal/database/models"
)

// FlowName namespaces the outcome monitoring flow's data on a contact.
const FlowName = "outcome_monitoring"

// ErrContactRefRequired is returned when an event does not name a contact.
var ErrContactRefRequired = errors.New("contact reference required")

// Result is the outcome of handling one inbound event.
type Result struct {
	// Transitioned is true if the step fired a transition.
	Transitioned bool

	// From is the status before the step and To the status after it. They
	// are equal when no transition fired.
	From State
	To   State

	// Instruction is what the caller should hear next, composed from To.
	Instruction Instruction
}

// StepStats counts Handle outcomes since the engine was created.
type StepStats struct {
	Transitioned uint64
	NoOp         uint64
	Failed       uint64
}

// Engine runs the outcome monitoring flow for one inbound event at a time.
// Handle does not serialize events itself: the caller must not run two
// Handle calls for the same contact concurrently.
type Engine struct {
	contacts database.ContactRepository
	logger   *slog.Logger

	transitioned atomic.Uint64
	noop         atomic.Uint64
	failed       atomic.Uint64
}

// NewEngine creates a new call flow engine.
func NewEngine(contacts database.ContactRepository, logger *slog.Logger) *Engine {
	return &Engine{
		contacts: contacts,
		logger:   logger.With("subsystem", "callflow", "flow", FlowName),
	}
}

// Handle loads the contact, steps its flow once and composes the response
// for the resulting state. When a transition fires, the status and the audit
// entry are persisted with a single contact save; if that save fails the
// transition is discarded and the error returned without retry.
func (e *Engine) Handle(ctx context.Context, event Event) (*Result, error) {
	res, err := e.handle(ctx, event)
	switch {
	case err != nil:
		e.failed.Add(1)
	case res.Transitioned:
		e.transitioned.Add(1)
	default:
		e.noop.Add(1)
	}
	return res, err
}

func (e *Engine) handle(ctx context.Context, event Event) (*Result, error) {
	if event.ContactRef == "" {
		return nil, ErrContactRefRequired
	}

	contact, err := e.contacts.GetByRef(ctx, event.ContactRef)
	if err != nil {
		return nil, fmt.Errorf("loading contact: %w", err)
	}
	if contact == nil {
		contact = &models.Contact{Ref: event.ContactRef, Metadata: make(map[string]any)}
	}

	m := NewMachine(NewContactStore(contact, FlowName))

	transitioned, err := m.Step(event)
	if err != nil {
		e.logger.Error("contact has invalid flow status",
			"contact", event.ContactRef,
			"event_id", event.ID,
			"error", err,
		)
		return nil, fmt.Errorf("contact %s: %w", event.ContactRef, err)
	}
	from, _ := m.Previous()

	if transitioned {
		if err := e.contacts.Save(ctx, contact); err != nil {
			m.Discard()
			return nil, fmt.Errorf("saving contact: %w", err)
		}
		e.logger.Info("call flow transitioned",
			"contact", event.ContactRef,
			"event_id", event.ID,
			"from", from,
			"to", m.Current(),
		)
	} else {
		e.logger.Debug("call flow step matched no transition",
			"contact", event.ContactRef,
			"event_id", event.ID,
			"status", m.Current(),
			"digits", event.Digits,
		)
	}

	instr, err := Compose(m.Current(), m.Reentered())
	if err != nil {
		return nil, err
	}

	return &Result{
		Transitioned: transitioned,
		From:         from,
		To:           m.Current(),
		Instruction:  instr,
	}, nil
}

// Record returns the typed flow record for a contact, or nil if the contact
// does not exist.
func (e *Engine) Record(ctx context.Context, ref string) (*Record, error) {
	contact, err := e.contacts.GetByRef(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("loading contact: %w", err)
	}
	if contact == nil {
		return nil, nil
	}
	return ReadRecord(contact, FlowName)
}

// Stats returns a snapshot of the step counters.
func (e *Engine) Stats() StepStats {
	return StepStats{
		Transitioned: e.transitioned.Load(),
		NoOp:         e.noop.Load(),
		Failed:       e.failed.Load(),
	}
}
