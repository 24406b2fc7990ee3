// Package pgstore implements the contact repository on PostgreSQL for
// deployments that share contacts with other services.
package pgstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowpbx/ivrflow/internal/database"
	"github.com/flowpbx/ivrflow/internal/database/models"

	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Store implements database.ContactRepository using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New opens a PostgreSQL connection and runs pending migrations.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgresql: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgresql: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := database.Migrate(db, migrationsFS, migrationsTable, "$1"); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	slog.Info("postgresql contact store opened")
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetByRef returns the contact with the given reference, or nil if none exists.
func (s *Store) GetByRef(ctx context.Context, ref string) (*models.Contact, error) {
	var (
		c        models.Contact
		metadata string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, ref, metadata::text, created_at, updated_at
		 FROM contacts WHERE ref = $1`, ref,
	).Scan(&c.ID, &c.Ref, &metadata, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying contact: %w", err)
	}

	c.Metadata, err = models.DecodeMetadata(metadata)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Save upserts the contact by reference and populates its ID and timestamps.
func (s *Store) Save(ctx context.Context, contact *models.Contact) error {
	metadata, err := models.EncodeMetadata(contact.Metadata)
	if err != nil {
		return err
	}

	err = s.db.QueryRowContext(ctx,
		`INSERT INTO contacts (ref, metadata)
		 VALUES ($1, $2::jsonb)
		 ON CONFLICT (ref) DO UPDATE SET metadata = EXCLUDED.metadata, updated_at = NOW()
		 RETURNING id, created_at, updated_at`,
		contact.Ref, metadata,
	).Scan(&contact.ID, &contact.CreatedAt, &contact.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving contact: %w", err)
	}
	return nil
}

// Count returns the number of stored contacts.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting contacts: %w", err)
	}
	return n, nil
}

var _ database.ContactRepository = (*Store)(nil)
