package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/flowpbx/ivrflow/internal/auth"
	"github.com/flowpbx/ivrflow/internal/config"
	"github.com/flowpbx/ivrflow/internal/database/models"
)

func TestHashPassword(t *testing.T) {
	var out bytes.Buffer
	if err := hashPassword(strings.NewReader("s3cret\n"), &out); err != nil {
		t.Fatalf("hashPassword() error: %v", err)
	}

	hash := strings.TrimSpace(out.String())
	ok, err := auth.CheckPassword("s3cret", hash)
	if err != nil {
		t.Fatalf("CheckPassword() error: %v", err)
	}
	if !ok {
		t.Fatal("printed hash does not verify the input password")
	}
}

func TestHashPasswordEmpty(t *testing.T) {
	var out bytes.Buffer
	if err := hashPassword(strings.NewReader("\n"), &out); err == nil {
		t.Fatal("expected error for empty password")
	}
}

func TestOpenSQLiteStore(t *testing.T) {
	cfg := &config.Config{Store: "sqlite", DataDir: t.TempDir()}

	store, err := openStore(cfg)
	if err != nil {
		t.Fatalf("openStore() error: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Save(ctx, &models.Contact{Ref: "+15550001111", Metadata: map[string]any{}}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error: %v", err)
	}
	if n != 1 {
		t.Fatalf("Count() = %d, want 1", n)
	}
}
