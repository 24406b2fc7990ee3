package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/flowpbx/ivrflow/internal/database/models"
)

// contactRepo implements ContactRepository on SQLite.
type contactRepo struct {
	db *DB
}

// NewContactRepository creates a new ContactRepository.
func NewContactRepository(db *DB) ContactRepository {
	return &contactRepo{db: db}
}

// GetByRef returns the contact with the given reference, or nil if none exists.
func (r *contactRepo) GetByRef(ctx context.Context, ref string) (*models.Contact, error) {
	var (
		c        models.Contact
		metadata string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, ref, metadata, created_at, updated_at
		 FROM contacts WHERE ref = ?`, ref,
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

// Save inserts the contact or replaces the metadata of the existing contact
// with the same reference. The contact's ID is populated on return.
func (r *contactRepo) Save(ctx context.Context, contact *models.Contact) error {
	metadata, err := models.EncodeMetadata(contact.Metadata)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO contacts (ref, metadata, created_at, updated_at)
		 VALUES (?, ?, datetime('now'), datetime('now'))
		 ON CONFLICT(ref) DO UPDATE SET metadata = excluded.metadata, updated_at = excluded.updated_at`,
		contact.Ref, metadata,
	)
	if err != nil {
		return fmt.Errorf("saving contact: %w", err)
	}

	if contact.ID == 0 {
		if err := r.db.QueryRowContext(ctx,
			`SELECT id FROM contacts WHERE ref = ?`, contact.Ref,
		).Scan(&contact.ID); err != nil {
			return fmt.Errorf("getting contact id: %w", err)
		}
	}
	return nil
}

// Count returns the number of stored contacts.
func (r *contactRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting contacts: %w", err)
	}
	return n, nil
}
