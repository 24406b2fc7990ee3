package pgstore

import (
	"context"
	"os"
	"testing"

	"github.com/flowpbx/ivrflow/internal/database/models"
	"github.com/google/uuid"
)

// openTestStore connects to the database named by IVRFLOW_TEST_POSTGRES_DSN
// and skips the test when it is not set.
func openTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("IVRFLOW_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("IVRFLOW_TEST_POSTGRES_DSN not set")
	}

	s, err := New(dsn)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreSaveAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ref := "+1555" + uuid.NewString()[:8]

	got, err := s.GetByRef(ctx, ref)
	if err != nil {
		t.Fatalf("GetByRef() error: %v", err)
	}
	if got != nil {
		t.Fatalf("GetByRef(%q) = %+v, want nil", ref, got)
	}

	c := &models.Contact{
		Ref: ref,
		Metadata: map[string]any{
			"call_flow_data": map[string]any{
				"outcome_monitoring": map[string]any{"status": "playing_introduction"},
			},
		},
	}
	if err := s.Save(ctx, c); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if c.ID == 0 {
		t.Fatal("Save() did not populate ID")
	}
	firstID := c.ID

	c.Metadata["other"] = "value"
	if err := s.Save(ctx, c); err != nil {
		t.Fatalf("Save() update error: %v", err)
	}
	if c.ID != firstID {
		t.Errorf("ID changed on update: %d -> %d", firstID, c.ID)
	}

	got, err = s.GetByRef(ctx, ref)
	if err != nil {
		t.Fatalf("GetByRef() error: %v", err)
	}
	if got == nil {
		t.Fatal("GetByRef() returned nil after Save")
	}
	if got.Metadata["other"] != "value" {
		t.Errorf("metadata[other] = %v, want value", got.Metadata["other"])
	}
}
