package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"signeddoc/pkg/envelope"
	"signeddoc/pkg/metadata"
)

// Retrying wraps a DocumentProvider backed by remote storage and retries
// transient failures (errors wrapping ErrUnavailable) with a fixed backoff.
// The final failure still wraps ErrUnavailable so validation turns
// indeterminate instead of rejecting.
type Retrying struct {
	Inner    DocumentProvider
	Attempts int
	Backoff  time.Duration
}

func NewRetrying(inner DocumentProvider, attempts int, backoff time.Duration) *Retrying {
	if attempts < 1 {
		attempts = 1
	}
	return &Retrying{Inner: inner, Attempts: attempts, Backoff: backoff}
}

func retry[T any](ctx context.Context, r *Retrying, op func(context.Context) (T, error)) (T, error) {
	var (
		out T
		err error
	)
	for attempt := 0; attempt < r.Attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return out, ctx.Err()
			case <-time.After(r.Backoff):
			}
		}
		out, err = op(ctx)
		if err == nil || !errors.Is(err, ErrUnavailable) {
			return out, err
		}
	}
	return out, err
}

func (r *Retrying) GetDocument(ctx context.Context, ref metadata.DocumentRef) (*envelope.Document, error) {
	return retry(ctx, r, func(ctx context.Context) (*envelope.Document, error) {
		return r.Inner.GetDocument(ctx, ref)
	})
}

func (r *Retrying) GetLatest(ctx context.Context, id uuid.UUID) (*envelope.Document, error) {
	return retry(ctx, r, func(ctx context.Context) (*envelope.Document, error) {
		return r.Inner.GetLatest(ctx, id)
	})
}

func (r *Retrying) GetFirst(ctx context.Context, id uuid.UUID) (*envelope.Document, error) {
	return retry(ctx, r, func(ctx context.Context) (*envelope.Document, error) {
		return r.Inner.GetFirst(ctx, id)
	})
}

func (r *Retrying) ListByType(ctx context.Context, docType uuid.UUID) ([]*envelope.Document, error) {
	return retry(ctx, r, func(ctx context.Context) ([]*envelope.Document, error) {
		return r.Inner.ListByType(ctx, docType)
	})
}

func (r *Retrying) ChainSuccessor(ctx context.Context, id, ver uuid.UUID) (*envelope.Document, error) {
	return retry(ctx, r, func(ctx context.Context) (*envelope.Document, error) {
		return r.Inner.ChainSuccessor(ctx, id, ver)
	})
}
