package credentials

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Store.Get when no credential record exists for
// the user, i.e. the user never completed the consent flow.
var ErrNotFound = errors.New("credential record not found")

// Store is the credential store as seen by the aggregation core: read one
// record, write back rotated token fields. Record creation and deletion
// belong to the external authentication flow and account unlinking.
type Store interface {
	// Get returns the record for userID, or ErrNotFound.
	Get(ctx context.Context, userID string) (*Record, error)

	// Update applies the non-nil fields of update to the record and
	// stamps it with updatedAt. Returns ErrNotFound when no record
	// exists for userID.
	Update(ctx context.Context, userID string, update Update, updatedAt time.Time) error
}

// Writer is implemented by stores that can create or replace whole records.
// Only the consent flow needs it.
type Writer interface {
	// Put inserts the record, replacing any existing record for the
	// same user.
	Put(ctx context.Context, rec *Record) error
}
