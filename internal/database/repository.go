package database

import (
	"context"

	"github.com/flowpbx/ivrflow/internal/database/models"
)

// ContactRepository manages contacts and their flow metadata. The SQLite,
// PostgreSQL and Redis stores all implement it.
type ContactRepository interface {
	GetByRef(ctx context.Context, ref string) (*models.Contact, error)
	Save(ctx context.Context, contact *models.Contact) error
	Count(ctx context.Context) (int64, error)
}
