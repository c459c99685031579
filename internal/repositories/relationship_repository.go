package repositories

import (
	"context"
	"time"

	"github.com/vidfriends/friends/internal/models"
)

// RelationshipStore defines data access for directed relationship records.
//
// Implementations own the pair invariants: CreatePending rejects any record
// between the pair in either direction, Accept flips the record and upserts its
// reciprocal in one unit, and DeleteAccepted removes both directions together.
type RelationshipStore interface {
	// CreatePending stores a pending record. It returns ErrConflict when any
	// record already links the two accounts and ErrNotFound when either account
	// does not exist.
	CreatePending(ctx context.Context, rel models.Relationship) error
	// Find loads a record by id.
	Find(ctx context.Context, id string) (models.Relationship, error)
	// Accept marks the record addressed to addressee as accepted and ensures the
	// reciprocal accepted record exists. It returns the original record and
	// reports whether it moved from pending to accepted during this call.
	Accept(ctx context.Context, id, addressee, reciprocalID string, at time.Time) (models.Relationship, bool, error)
	// DeletePending removes a pending record when party is its sender (asSender)
	// or its addressee.
	DeletePending(ctx context.Context, id, party string, asSender bool) (models.Relationship, error)
	// DeleteAccepted removes every accepted record between a and b and reports
	// how many were removed.
	DeleteAccepted(ctx context.Context, a, b string) (int64, error)
	// ListForAccount returns every record where the account is sender or addressee.
	ListForAccount(ctx context.Context, accountID string) ([]models.Relationship, error)
}
