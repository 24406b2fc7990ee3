package callflow

import "fmt"

// Prompt keys that do not correspond to a state.
const (
	PromptDidNotUnderstand = "did_not_understand_response"
	PromptAlreadyFinished  = "survey_is_already_finished"
)

// InstructionKind is the intent of a response. Transports render it into
// their own wire format.
type InstructionKind string

const (
	// KindNoOp says nothing.
	KindNoOp InstructionKind = "no_op"
	// KindPlayAndAdvance plays the prompts and redirects back to the flow.
	KindPlayAndAdvance InstructionKind = "play_and_advance"
	// KindGatherDigits plays the prompts while collecting NumDigits digits.
	KindGatherDigits InstructionKind = "gather_digits"
	// KindPlayAndRecord plays the prompts then records the caller.
	KindPlayAndRecord InstructionKind = "play_and_record"
	// KindPlayAndHangup plays the prompts then hangs up.
	KindPlayAndHangup InstructionKind = "play_and_hangup"
)

// Instruction is what the caller should hear or be asked next.
type Instruction struct {
	Kind InstructionKind `json:"kind"`
	// Prompts are prompt keys in play order.
	Prompts   []string `json:"prompts,omitempty"`
	NumDigits int      `json:"num_digits,omitempty"`
}

type composeFunc func(state State, reentered bool) Instruction

var composers = map[State]composeFunc{
	StateInitialized:                           composeNoOp,
	StatePlayingIntroduction:                   composePlayAndAdvance,
	StateGatheringReceivedTransfer:             composeGatherWithRetry(1),
	StateGatheringReceivedTransferAmount:       composeGather(3),
	StateRecordingTransferNotReceivedReason:    composePlayAndRecord,
	StatePlayingTransferNotReceivedExitMessage: composePlayAndAdvance,
	StateFinished:                              composeFinished,
}

func init() {
	for _, st := range allStates {
		if composers[st] == nil {
			panic(fmt.Sprintf("callflow: no composer for state %q", st))
		}
	}
}

// Compose returns the instruction for state. reentered is true when the step
// that led here left the status unchanged; gathering states then prepend
// the "did not understand" prompt.
func Compose(state State, reentered bool) (Instruction, error) {
	fn, ok := composers[state]
	if !ok {
		return Instruction{}, fmt.Errorf("%w: %q", ErrUnknownState, state)
	}
	return fn(state, reentered), nil
}

func composeNoOp(State, bool) Instruction {
	return Instruction{Kind: KindNoOp}
}

func composePlayAndAdvance(state State, _ bool) Instruction {
	return Instruction{Kind: KindPlayAndAdvance, Prompts: []string{string(state)}}
}

func composeGather(numDigits int) composeFunc {
	return func(state State, _ bool) Instruction {
		return Instruction{
			Kind:      KindGatherDigits,
			Prompts:   []string{string(state)},
			NumDigits: numDigits,
		}
	}
}

func composeGatherWithRetry(numDigits int) composeFunc {
	return func(state State, reentered bool) Instruction {
		prompts := make([]string, 0, 2)
		if reentered {
			prompts = append(prompts, PromptDidNotUnderstand)
		}
		prompts = append(prompts, string(state))
		return Instruction{
			Kind:      KindGatherDigits,
			Prompts:   prompts,
			NumDigits: numDigits,
		}
	}
}

func composePlayAndRecord(state State, _ bool) Instruction {
	return Instruction{Kind: KindPlayAndRecord, Prompts: []string{string(state)}}
}

func composeFinished(State, bool) Instruction {
	return Instruction{Kind: KindPlayAndHangup, Prompts: []string{PromptAlreadyFinished}}
}
