package callflow

import (
	"errors"
	"testing"

	"github.com/flowpbx/ivrflow/internal/database/models"
)

func TestContactStoreNamespacing(t *testing.T) {
	contact := &models.Contact{Ref: "+15550001"}

	a := NewContactStore(contact, "outcome_monitoring")
	b := NewContactStore(contact, "satisfaction_survey")

	if _, ok, err := a.Get("status"); ok || err != nil {
		t.Fatalf("Get() on empty metadata = %v, %v; want absent", ok, err)
	}
	if contact.Metadata != nil {
		t.Error("Get() should not create metadata")
	}

	a.Set("status", "finished")
	b.Set("status", "initialized")

	if v, _, _ := a.Get("status"); v != "finished" {
		t.Errorf("a status = %q, want finished", v)
	}
	if v, _, _ := b.Get("status"); v != "initialized" {
		t.Errorf("b status = %q, want initialized", v)
	}

	flows, ok := contact.Metadata["call_flow_data"].(map[string]any)
	if !ok {
		t.Fatalf("call_flow_data is %T, want map", contact.Metadata["call_flow_data"])
	}
	if len(flows) != 2 {
		t.Errorf("namespaces = %d, want 2", len(flows))
	}
}

func TestContactStoreKeepsOtherMetadata(t *testing.T) {
	contact := &models.Contact{
		Ref:      "+15550002",
		Metadata: map[string]any{"name": "Ada"},
	}

	NewContactStore(contact, FlowName).Set("status", "playing_introduction")

	if contact.Metadata["name"] != "Ada" {
		t.Errorf("name = %v, want Ada", contact.Metadata["name"])
	}
}

func TestContactStoreRejectsNonStringValues(t *testing.T) {
	contact := &models.Contact{
		Metadata: map[string]any{
			"call_flow_data": map[string]any{
				FlowName: map[string]any{"status": float64(3)},
			},
		},
	}

	_, ok, err := NewContactStore(contact, FlowName).Get("status")
	if !errors.Is(err, ErrUnknownState) {
		t.Fatalf("Get() error = %v, want ErrUnknownState", err)
	}
	if ok {
		t.Error("Get() reported a non-string value as present")
	}
}

func TestContactStoreRejectsNonObjectNamespace(t *testing.T) {
	tests := []struct {
		name     string
		metadata map[string]any
	}{
		{"flow data", map[string]any{"call_flow_data": "garbage"}},
		{"namespace", map[string]any{"call_flow_data": map[string]any{FlowName: []any{"x"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contact := &models.Contact{Metadata: tt.metadata}
			store := NewContactStore(contact, FlowName)

			if _, _, err := store.Get(statusKey); !errors.Is(err, ErrUnknownState) {
				t.Errorf("Get() error = %v, want ErrUnknownState", err)
			}
			if err := store.Set(statusKey, "finished"); !errors.Is(err, ErrUnknownState) {
				t.Errorf("Set() error = %v, want ErrUnknownState", err)
			}
			if _, err := ReadRecord(contact, FlowName); !errors.Is(err, ErrUnknownState) {
				t.Errorf("ReadRecord() error = %v, want ErrUnknownState", err)
			}
		})
	}
}

func TestContactStoreNullNamespaceIsAbsent(t *testing.T) {
	contact := &models.Contact{Metadata: map[string]any{"call_flow_data": nil}}

	rec, err := ReadRecord(contact, FlowName)
	if err != nil {
		t.Fatalf("ReadRecord() error: %v", err)
	}
	if rec.Status != StateInitialized {
		t.Errorf("Status = %q, want initialized", rec.Status)
	}
}

func TestReadRecord(t *testing.T) {
	contact := &models.Contact{}
	store := NewContactStore(contact, FlowName)
	store.Set(statusKey, string(StateGatheringReceivedTransfer))
	store.Set(auditKey(StatePlayingIntroduction), "evt-1")
	store.Set(auditKey(StateGatheringReceivedTransfer), "evt-2")
	store.Set("unrelated", "x")

	rec, err := ReadRecord(contact, FlowName)
	if err != nil {
		t.Fatalf("ReadRecord() error: %v", err)
	}
	if rec.Status != StateGatheringReceivedTransfer {
		t.Errorf("Status = %q, want %q", rec.Status, StateGatheringReceivedTransfer)
	}
	if len(rec.AuditTrail) != 2 {
		t.Fatalf("AuditTrail = %v, want 2 entries", rec.AuditTrail)
	}
	if rec.AuditTrail[StatePlayingIntroduction] != "evt-1" {
		t.Errorf("audit[playing_introduction] = %q, want evt-1", rec.AuditTrail[StatePlayingIntroduction])
	}
}

func TestReadRecordEmpty(t *testing.T) {
	rec, err := ReadRecord(&models.Contact{}, FlowName)
	if err != nil {
		t.Fatalf("ReadRecord() error: %v", err)
	}
	if rec.Status != StateInitialized {
		t.Errorf("Status = %q, want initialized", rec.Status)
	}
	if len(rec.AuditTrail) != 0 {
		t.Errorf("AuditTrail = %v, want empty", rec.AuditTrail)
	}
}

func TestReadRecordUnknownStatus(t *testing.T) {
	contact := &models.Contact{}
	NewContactStore(contact, FlowName).Set(statusKey, "nope")

	if _, err := ReadRecord(contact, FlowName); !errors.Is(err, ErrUnknownState) {
		t.Fatalf("ReadRecord() error = %v, want ErrUnknownState", err)
	}
}

func TestParseState(t *testing.T) {
	for _, st := range States() {
		got, err := ParseState(string(st))
		if err != nil || got != st {
			t.Errorf("ParseState(%q) = %q, %v", st, got, err)
		}
	}

	if got, err := ParseState(""); err != nil || got != StateInitialized {
		t.Errorf("ParseState(\"\") = %q, %v; want initialized", got, err)
	}
	if _, err := ParseState("Finished"); !errors.Is(err, ErrUnknownState) {
		t.Errorf("ParseState(Finished) error = %v, want ErrUnknownState", err)
	}
}
