package callflow

import (
	"errors"
	"reflect"
	"testing"
)

func TestEveryStateHasComposer(t *testing.T) {
	for _, st := range States() {
		if _, err := Compose(st, false); err != nil {
			t.Errorf("Compose(%q) error: %v", st, err)
		}
	}
}

func TestComposeUnknownState(t *testing.T) {
	_, err := Compose(State("bogus"), false)
	if !errors.Is(err, ErrUnknownState) {
		t.Fatalf("Compose(bogus) error = %v, want ErrUnknownState", err)
	}
}

func TestCompose(t *testing.T) {
	tests := []struct {
		state     State
		reentered bool
		want      Instruction
	}{
		{StateInitialized, false, Instruction{Kind: KindNoOp}},
		{StatePlayingIntroduction, false, Instruction{
			Kind:    KindPlayAndAdvance,
			Prompts: []string{"playing_introduction"},
		}},
		{StateGatheringReceivedTransfer, false, Instruction{
			Kind:      KindGatherDigits,
			Prompts:   []string{"gathering_received_transfer"},
			NumDigits: 1,
		}},
		{StateGatheringReceivedTransfer, true, Instruction{
			Kind:      KindGatherDigits,
			Prompts:   []string{PromptDidNotUnderstand, "gathering_received_transfer"},
			NumDigits: 1,
		}},
		{StateGatheringReceivedTransferAmount, false, Instruction{
			Kind:      KindGatherDigits,
			Prompts:   []string{"gathering_received_transfer_amount"},
			NumDigits: 3,
		}},
		// No retry prompt is defined for the amount gather.
		{StateGatheringReceivedTransferAmount, true, Instruction{
			Kind:      KindGatherDigits,
			Prompts:   []string{"gathering_received_transfer_amount"},
			NumDigits: 3,
		}},
		{StateRecordingTransferNotReceivedReason, false, Instruction{
			Kind:    KindPlayAndRecord,
			Prompts: []string{"recording_transfer_not_received_reason"},
		}},
		{StatePlayingTransferNotReceivedExitMessage, false, Instruction{
			Kind:    KindPlayAndAdvance,
			Prompts: []string{"playing_transfer_not_received_exit_message"},
		}},
		{StateFinished, false, Instruction{
			Kind:    KindPlayAndHangup,
			Prompts: []string{PromptAlreadyFinished},
		}},
		{StateFinished, true, Instruction{
			Kind:    KindPlayAndHangup,
			Prompts: []string{PromptAlreadyFinished},
		}},
	}

	for _, tt := range tests {
		got, err := Compose(tt.state, tt.reentered)
		if err != nil {
			t.Fatalf("Compose(%q, %v) error: %v", tt.state, tt.reentered, err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Compose(%q, %v) = %+v, want %+v", tt.state, tt.reentered, got, tt.want)
		}
	}
}
