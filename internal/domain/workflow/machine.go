// Package workflow tracks the linear stage sequence of a document-processing
// run: authenticate, fetch the record, resolve the attachment field, extract
// fields, transfer attachments, submit the approval. There are no back-edges;
// any stage may fail directly.
package workflow

import (
	"fmt"
	"time"
)

// forward lists the only successful transition out of each stage
var forward = map[State]struct {
	trigger Trigger
	next    State
}{
	StateAuthenticating:          {TriggerAuthenticated, StateFetchingRecord},
	StateFetchingRecord:          {TriggerRecordFetched, StateResolvingField},
	StateResolvingField:          {TriggerFieldResolved, StateExtractingFields},
	StateExtractingFields:        {TriggerFieldsExtracted, StateTransferringAttachments},
	StateTransferringAttachments: {TriggerAttachmentsTransferred, StateSubmittingApproval},
	StateSubmittingApproval:      {TriggerApprovalSubmitted, StateSucceeded},
}

// Transition records one state change
type Transition struct {
	From    State
	To      State
	Trigger Trigger
	At      time.Time
}

// Machine is the per-invocation state tracker. It is not safe for
// concurrent use; each request owns its own machine.
type Machine struct {
	current State
	err     error
	history []Transition
	now     func() time.Time
}

// NewMachine creates a machine positioned at the first stage
func NewMachine() *Machine {
	return &Machine{current: StateAuthenticating, now: time.Now}
}

// State returns the current state
func (m *Machine) State() State {
	return m.current
}

// Err returns the error that moved the machine to StateFailed
func (m *Machine) Err() error {
	return m.err
}

// History returns the transitions taken so far
func (m *Machine) History() []Transition {
	return append([]Transition(nil), m.history...)
}

// CanFire returns true if the trigger is permitted in the current state
func (m *Machine) CanFire(trigger Trigger) bool {
	if m.current.IsTerminal() {
		return false
	}
	if trigger == TriggerFail {
		return true
	}
	return forward[m.current].trigger == trigger
}

// Fire advances to the next stage
func (m *Machine) Fire(trigger Trigger) error {
	if m.current.IsTerminal() {
		return fmt.Errorf("%w: cannot fire %s from %s", ErrTerminal, trigger, m.current)
	}
	if trigger == TriggerFail {
		return fmt.Errorf("%w: use Fail to report errors", ErrInvalidTransition)
	}

	step, ok := forward[m.current]
	if !ok || step.trigger != trigger {
		return fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, m.current)
	}

	m.move(trigger, step.next)
	return nil
}

// Fail moves the machine to StateFailed carrying err. Failing a finished run
// is a no-op.
func (m *Machine) Fail(err error) {
	if m.current.IsTerminal() {
		return
	}
	m.err = err
	m.move(TriggerFail, StateFailed)
}

func (m *Machine) move(trigger Trigger, to State) {
	m.history = append(m.history, Transition{
		From:    m.current,
		To:      to,
		Trigger: trigger,
		At:      m.now(),
	})
	m.current = to
}
