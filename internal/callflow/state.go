package callflow

import (
	"errors"
	"fmt"
)

// ErrUnknownState is returned when a persisted status is not one of the
// flow's states. It indicates tampering or a schema change and is never
// defaulted to the initial state.
var ErrUnknownState = errors.New("unknown call flow state")

// State is a node in the outcome monitoring call flow. The string value is
// what gets persisted on the contact record.
type State string

const (
	StateInitialized                           State = "initialized"
	StatePlayingIntroduction                   State = "playing_introduction"
	StateGatheringReceivedTransfer             State = "gathering_received_transfer"
	StateGatheringReceivedTransferAmount       State = "gathering_received_transfer_amount"
	StateRecordingTransferNotReceivedReason    State = "recording_transfer_not_received_reason"
	StatePlayingTransferNotReceivedExitMessage State = "playing_transfer_not_received_exit_message"
	StateFinished                              State = "finished"
)

// InitialState is the state of a contact that has never been stepped.
const InitialState = StateInitialized

// allStates lists every state in declaration order.
var allStates = []State{
	StateInitialized,
	StatePlayingIntroduction,
	StateGatheringReceivedTransfer,
	StateGatheringReceivedTransferAmount,
	StateRecordingTransferNotReceivedReason,
	StatePlayingTransferNotReceivedExitMessage,
	StateFinished,
}

// States returns a copy of all states in declaration order.
func States() []State {
	out := make([]State, len(allStates))
	copy(out, allStates)
	return out
}

// ParseState converts a persisted status into a State. An empty string means
// the status was never written and maps to the initial state.
func ParseState(s string) (State, error) {
	if s == "" {
		return InitialState, nil
	}
	for _, st := range allStates {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownState, s)
}

// Terminal reports whether the state is the flow's designated end state.
func (s State) Terminal() bool {
	return s == StateFinished
}

func (s State) String() string {
	return string(s)
}
