package callflow

// Event is a single inbound telephony occurrence for a contact.
type Event struct {
	// ID identifies this occurrence. It is only used for the audit trail.
	ID string

	// ContactRef identifies the contact the call belongs to.
	ContactRef string

	// Digits holds the keypresses captured by the transport, or "" when the
	// caller pressed nothing before the gather timed out.
	Digits string
}

// guard decides whether a transition may fire. Guards must be pure and only
// look at the inbound event.
type guard func(Event) bool

type transition struct {
	from  State
	to    State
	guard guard
}

func answeredYes(e Event) bool { return e.Digits == "1" }

func answeredNo(e Event) bool { return e.Digits == "2" }

// transitions is evaluated in order; the first entry whose source matches the
// current state and whose guard passes wins. A nil guard always passes.
// StateGatheringReceivedTransferAmount and StateFinished have no outgoing
// entries and absorb every event.
var transitions = []transition{
	{from: StateInitialized, to: StatePlayingIntroduction},
	{from: StatePlayingIntroduction, to: StateGatheringReceivedTransfer},
	{from: StateGatheringReceivedTransfer, to: StateGatheringReceivedTransferAmount, guard: answeredYes},
	{from: StateGatheringReceivedTransfer, to: StateRecordingTransferNotReceivedReason, guard: answeredNo},
	{from: StateRecordingTransferNotReceivedReason, to: StatePlayingTransferNotReceivedExitMessage},
	{from: StatePlayingTransferNotReceivedExitMessage, to: StateFinished},
}

// Machine steps one flow instance. It is not safe for concurrent use, and
// two Machines must not step the same contact at the same time: the read
// then write against the StatusStore is not atomic, so callers serialize
// events per contact.
type Machine struct {
	store    StatusStore
	current  State
	previous State
	stepped  bool
}

// NewMachine creates a Machine over the given store. The status is read
// lazily on Step.
func NewMachine(store StatusStore) *Machine {
	return &Machine{store: store, current: InitialState}
}

// Load reads the persisted status into the machine without stepping.
func (m *Machine) Load() error {
	raw, _, err := m.store.Get(statusKey)
	if err != nil {
		return err
	}
	st, err := ParseState(raw)
	if err != nil {
		return err
	}
	m.current = st
	return nil
}

// Step applies at most one transition for the event. It returns false when no
// transition matches the current state, including an unmatched guard and any
// event received in an absorbing state; nothing is written in that case.
// On a match the new status is written first and the audit entry second.
func (m *Machine) Step(event Event) (bool, error) {
	if err := m.Load(); err != nil {
		return false, err
	}
	m.previous = m.current
	m.stepped = true

	for _, t := range transitions {
		if t.from != m.current {
			continue
		}
		if t.guard != nil && !t.guard(event) {
			continue
		}

		if err := m.store.Set(statusKey, string(t.to)); err != nil {
			return false, err
		}
		if err := m.store.Set(auditKey(t.to), event.ID); err != nil {
			return false, err
		}
		m.current = t.to
		return true, nil
	}
	return false, nil
}

// Discard rolls the in-memory status back to the value captured at the start
// of the last Step. It is used when committing the step failed.
func (m *Machine) Discard() {
	if !m.stepped {
		return
	}
	m.current = m.previous
}

// Current returns the machine's status.
func (m *Machine) Current() State {
	return m.current
}

// Previous returns the status captured at the start of the last Step and
// whether a Step has run.
func (m *Machine) Previous() (State, bool) {
	return m.previous, m.stepped
}

// Reentered reports whether the last Step left the status unchanged, i.e. the
// caller is hearing the same state again.
func (m *Machine) Reentered() bool {
	return m.stepped && m.previous == m.current
}
