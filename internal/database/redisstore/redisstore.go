// Package redisstore implements the contact repository on Redis. Each contact
// is a hash at <prefix>contact:<ref>; refs are also kept in a set for counting.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flowpbx/ivrflow/internal/database"
	"github.com/flowpbx/ivrflow/internal/database/models"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "ivrflow:"

const (
	fieldID        = "id"
	fieldMetadata  = "metadata"
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"
)

// Store implements database.ContactRepository using Redis.
type Store struct {
	client *redis.Client
	prefix string
}

// New connects to the Redis server at url (redis://host:port/db).
func New(ctx context.Context, url string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	slog.Info("redis contact store opened", "addr", opts.Addr)
	return NewWithClient(client, DefaultPrefix), nil
}

// NewWithClient wraps an existing client. An empty prefix uses DefaultPrefix.
func NewWithClient(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

// Close closes the Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) contactKey(ref string) string { return s.prefix + "contact:" + ref }
func (s *Store) refsKey() string              { return s.prefix + "contacts" }
func (s *Store) seqKey() string               { return s.prefix + "contact_seq" }

// GetByRef returns the contact with the given reference, or nil if none exists.
func (s *Store) GetByRef(ctx context.Context, ref string) (*models.Contact, error) {
	fields, err := s.client.HGetAll(ctx, s.contactKey(ref)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading contact: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	c := &models.Contact{Ref: ref}
	if c.ID, err = strconv.ParseInt(fields[fieldID], 10, 64); err != nil {
		return nil, fmt.Errorf("parsing contact id: %w", err)
	}
	if c.Metadata, err = models.DecodeMetadata(fields[fieldMetadata]); err != nil {
		return nil, err
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields[fieldCreatedAt])
	c.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields[fieldUpdatedAt])
	return c, nil
}

// Save writes the contact's metadata, assigning an ID on first save.
func (s *Store) Save(ctx context.Context, contact *models.Contact) error {
	metadata, err := models.EncodeMetadata(contact.Metadata)
	if err != nil {
		return err
	}

	key := s.contactKey(contact.Ref)
	if contact.ID == 0 {
		id, err := s.client.HGet(ctx, key, fieldID).Int64()
		switch {
		case errors.Is(err, redis.Nil):
			if id, err = s.client.Incr(ctx, s.seqKey()).Result(); err != nil {
				return fmt.Errorf("allocating contact id: %w", err)
			}
		case err != nil:
			return fmt.Errorf("reading contact id: %w", err)
		}
		contact.ID = id
	}

	now := time.Now().UTC()
	if contact.CreatedAt.IsZero() {
		contact.CreatedAt = now
	}
	contact.UpdatedAt = now

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, fieldCreatedAt, contact.CreatedAt.Format(time.RFC3339Nano))
		pipe.HSet(ctx, key,
			fieldID, contact.ID,
			fieldMetadata, metadata,
			fieldUpdatedAt, contact.UpdatedAt.Format(time.RFC3339Nano),
		)
		pipe.SAdd(ctx, s.refsKey(), contact.Ref)
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving contact: %w", err)
	}
	return nil
}

// Count returns the number of stored contacts.
func (s *Store) Count(ctx context.Context) (int64, error) {
	n, err := s.client.SCard(ctx, s.refsKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("counting contacts: %w", err)
	}
	return n, nil
}

var _ database.ContactRepository = (*Store)(nil)
