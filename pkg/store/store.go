// Package store defines the document and key providers the validator reads
// from, plus an in-memory implementation and a retry wrapper for providers
// backed by remote storage.
package store

import (
	"context"
	"crypto/ed25519"
	"errors"

	"github.com/google/uuid"

	"signeddoc/pkg/envelope"
	"signeddoc/pkg/keyid"
	"signeddoc/pkg/metadata"
)

var (
	// ErrUnavailable marks a transient fetch failure. Validation surfaces
	// it as an indeterminate outcome, not a rejection.
	ErrUnavailable = errors.New("document store unavailable")
	// ErrStaleVersion rejects a document whose ver does not advance the
	// latest accepted version of its id.
	ErrStaleVersion = errors.New("document version is not newer than the latest accepted")
	// ErrChainFork rejects a second document chaining to the same
	// predecessor.
	ErrChainFork = errors.New("chain predecessor already has a successor")
	// ErrDuplicate rejects re-accepting an already accepted id/ver.
	ErrDuplicate = errors.New("document version already accepted")
)

// DocumentProvider reads accepted documents. Lookups that find nothing
// return (nil, nil); errors are reserved for failures.
type DocumentProvider interface {
	// GetDocument fetches the exact version named by a reference.
	GetDocument(ctx context.Context, ref metadata.DocumentRef) (*envelope.Document, error)
	// GetLatest fetches the highest accepted version of an id.
	GetLatest(ctx context.Context, id uuid.UUID) (*envelope.Document, error)
	// GetFirst fetches the version whose ver equals the id.
	GetFirst(ctx context.Context, id uuid.UUID) (*envelope.Document, error)
	// ListByType lists every accepted document of a primary type.
	ListByType(ctx context.Context, docType uuid.UUID) ([]*envelope.Document, error)
	// ChainSuccessor finds the accepted document whose chain field points
	// at the given predecessor version.
	ChainSuccessor(ctx context.Context, id, ver uuid.UUID) (*envelope.Document, error)
}

// KeyProvider resolves registered signing keys by key ID. An unregistered
// key returns (nil, nil).
type KeyProvider interface {
	RegisteredKey(ctx context.Context, kid keyid.KeyID) (ed25519.PublicKey, error)
}
