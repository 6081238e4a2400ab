package metadata

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"signeddoc/pkg/uuidx"
)

// CBOR tag of IPLD content identifiers.
const cidTag = 42

// Map key of the locator map.
const cidKey = "cid"

var (
	ErrMalformedRef     = errors.New("malformed document reference")
	ErrMalformedLocator = errors.New("malformed document locator")
	ErrUnsortedRefs     = errors.New("document references are not sorted")
)

// DocLocator is the raw CID of the referenced document envelope.
// On the wire it is a single-entry map {"cid": 42(bytes)}.
type DocLocator []byte

func (l DocLocator) String() string {
	return fmt.Sprintf("cid(%x)", []byte(l))
}

func (l DocLocator) toWire() map[any]any {
	return map[any]any{cidKey: cbor.Tag{Number: cidTag, Content: []byte(l)}}
}

func locatorFromWire(v any) (DocLocator, error) {
	m, ok := v.(map[any]any)
	if !ok || len(m) != 1 {
		return nil, fmt.Errorf("%w: expected single-entry map, got %T", ErrMalformedLocator, v)
	}
	tagged, ok := m[any(cidKey)]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q key", ErrMalformedLocator, cidKey)
	}
	tag, ok := tagged.(cbor.Tag)
	if !ok || tag.Number != cidTag {
		return nil, fmt.Errorf("%w: value must be tag %d", ErrMalformedLocator, cidTag)
	}
	raw, ok := tag.Content.([]byte)
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty cid bytes", ErrMalformedLocator)
	}
	return DocLocator(raw), nil
}

// DocumentRef points at an exact version of another document.
// Wire form: [ 37(id), 37(ver), locator ].
type DocumentRef struct {
	ID      uuid.UUID
	Ver     uuid.UUID
	Locator DocLocator
}

func (r DocumentRef) String() string {
	return fmt.Sprintf("id: %s, ver: %s, locator: %s", r.ID, r.Ver, r.Locator)
}

// Key identifies the referenced version without the locator.
func (r DocumentRef) Key() string {
	return r.ID.String() + "/" + r.Ver.String()
}

func (r DocumentRef) toWire() []any {
	return []any{uuidx.Tagged(r.ID), uuidx.Tagged(r.Ver), r.Locator.toWire()}
}

func refFromWire(v any) (DocumentRef, error) {
	arr, ok := v.([]any)
	if !ok {
		return DocumentRef{}, fmt.Errorf("%w: expected array, got %T", ErrMalformedRef, v)
	}
	if len(arr) != 3 {
		return DocumentRef{}, fmt.Errorf("%w: expected 3 items, found %d", ErrMalformedRef, len(arr))
	}
	id, err := uuidx.FromTaggedV7(arr[0])
	if err != nil {
		return DocumentRef{}, fmt.Errorf("%w: id: %v", ErrMalformedRef, err)
	}
	ver, err := uuidx.FromTaggedV7(arr[1])
	if err != nil {
		return DocumentRef{}, fmt.Errorf("%w: ver: %v", ErrMalformedRef, err)
	}
	loc, err := locatorFromWire(arr[2])
	if err != nil {
		return DocumentRef{}, err
	}
	return DocumentRef{ID: id, Ver: ver, Locator: loc}, nil
}

// DocumentRefs is a non-empty list of document references.
// Wire form: array of reference arrays, sorted by the canonical encoding
// of each element (length first, then bytewise).
type DocumentRefs []DocumentRef

func (rs DocumentRefs) String() string {
	var b bytes.Buffer
	for i, r := range rs {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(r.String())
	}
	return b.String()
}

func (rs DocumentRefs) toWire() []any {
	out := make([]any, len(rs))
	for i, r := range rs {
		out[i] = r.toWire()
	}
	return out
}

func refsFromWire(v any) (DocumentRefs, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected array, got %T", ErrMalformedRef, v)
	}
	if len(arr) == 0 {
		return nil, fmt.Errorf("%w: empty reference list", ErrMalformedRef)
	}
	out := make(DocumentRefs, 0, len(arr))
	for _, item := range arr {
		r, err := refFromWire(item)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := out.checkSorted(); err != nil {
		return nil, err
	}
	return out, nil
}

// checkSorted rejects a multi-reference list whose elements are not in
// canonical encoded order. A malformed (unsorted) list is a terminal error,
// not a fixable one: accepting it would break content addressing.
func (rs DocumentRefs) checkSorted() error {
	if len(rs) < 2 {
		return nil
	}
	prev, err := encodeCanonical(rs[0].toWire())
	if err != nil {
		return err
	}
	for _, r := range rs[1:] {
		cur, err := encodeCanonical(r.toWire())
		if err != nil {
			return err
		}
		if compareCanonical(prev, cur) > 0 {
			return fmt.Errorf("%w: %s out of order", ErrUnsortedRefs, r)
		}
		prev = cur
	}
	return nil
}

// compareCanonical orders encoded items length first, then bytewise.
func compareCanonical(a, b []byte) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return bytes.Compare(a, b)
}
