package metadata

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"signeddoc/pkg/uuidx"
)

// Revocations lists prior versions of this document id that are revoked.
// Wire form: the boolean `true` (every version, permanently) or an array of
// tagged UUIDv7 version values sorted bytewise. `false` is not a legal
// encoding.
type Revocations struct {
	All      bool
	Versions []uuid.UUID
}

func (r *Revocations) String() string {
	if r.All {
		return "all"
	}
	return fmt.Sprintf("%v", r.Versions)
}

// Revokes reports whether the given version is revoked by this list.
func (r *Revocations) Revokes(ver uuid.UUID) bool {
	if r.All {
		return true
	}
	for _, v := range r.Versions {
		if v == ver {
			return true
		}
	}
	return false
}

func (r *Revocations) toWire() any {
	if r.All {
		return true
	}
	out := make([]any, len(r.Versions))
	for i, v := range r.Versions {
		out[i] = uuidx.Tagged(v)
	}
	return out
}

func revocationsFromWire(v any) (*Revocations, error) {
	switch rv := v.(type) {
	case bool:
		if !rv {
			return nil, errors.New("revocations: `false` value is not allowed")
		}
		return &Revocations{All: true}, nil
	case []any:
		out := make([]uuid.UUID, 0, len(rv))
		for _, item := range rv {
			ver, err := uuidx.FromTaggedV7(item)
			if err != nil {
				return nil, fmt.Errorf("revocations: %w", err)
			}
			if n := len(out); n > 0 && uuidx.Compare(out[n-1], ver) >= 0 {
				return nil, fmt.Errorf("revocations: version %s out of order", ver)
			}
			out = append(out, ver)
		}
		return &Revocations{Versions: out}, nil
	default:
		return nil, fmt.Errorf("revocations: expected `true` or array, got %T", v)
	}
}
