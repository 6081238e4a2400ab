// Package uuidx provides UUIDv4/UUIDv7 helpers for document identifiers,
// including the tagged CBOR form used on the wire.
package uuidx

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// CBOR tag number for a binary UUID (16 bytes).
const Tag = 37

var (
	ErrNotUUIDv4  = errors.New("not a UUIDv4")
	ErrNotUUIDv7  = errors.New("not a UUIDv7")
	ErrInvalidTag = errors.New("invalid UUID CBOR tag")
)

// NewV7 returns a fresh time-ordered UUIDv7.
func NewV7() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// IsV4 reports whether u is a random UUIDv4.
func IsV4(u uuid.UUID) bool {
	return u.Version() == 4 && u.Variant() == uuid.RFC4122
}

// IsV7 reports whether u is a time-ordered UUIDv7.
func IsV7(u uuid.UUID) bool {
	return u.Version() == 7 && u.Variant() == uuid.RFC4122
}

// ParseV4 parses s and requires it to be a UUIDv4.
func ParseV4(s string) (uuid.UUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, err
	}
	if !IsV4(u) {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrNotUUIDv4, s)
	}
	return u, nil
}

// ParseV7 parses s and requires it to be a UUIDv7.
func ParseV7(s string) (uuid.UUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, err
	}
	if !IsV7(u) {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrNotUUIDv7, s)
	}
	return u, nil
}

// MustV4 parses s as a UUIDv4 and panics on failure. For static tables only.
func MustV4(s string) uuid.UUID {
	u, err := ParseV4(s)
	if err != nil {
		panic(err)
	}
	return u
}

// Time extracts the millisecond timestamp embedded in a UUIDv7.
func Time(u uuid.UUID) time.Time {
	ms := int64(u[0])<<40 | int64(u[1])<<32 | int64(u[2])<<24 |
		int64(u[3])<<16 | int64(u[4])<<8 | int64(u[5])
	return time.UnixMilli(ms).UTC()
}

// Compare orders two UUIDs bytewise. For UUIDv7 values this is also a
// chronological order.
func Compare(a, b uuid.UUID) int {
	return bytes.Compare(a[:], b[:])
}

// Tagged wraps u in the CBOR tag used on the wire.
func Tagged(u uuid.UUID) cbor.Tag {
	return cbor.Tag{Number: Tag, Content: u[:]}
}

// FromTagged unpacks a decoded CBOR value into a UUID, requiring tag 37
// around a 16-byte string.
func FromTagged(v any) (uuid.UUID, error) {
	tag, ok := v.(cbor.Tag)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: expected tag, got %T", ErrInvalidTag, v)
	}
	if tag.Number != Tag {
		return uuid.Nil, fmt.Errorf("%w: tag number %d", ErrInvalidTag, tag.Number)
	}
	raw, ok := tag.Content.([]byte)
	if !ok || len(raw) != 16 {
		return uuid.Nil, fmt.Errorf("%w: content must be 16 bytes", ErrInvalidTag)
	}
	var u uuid.UUID
	copy(u[:], raw)
	return u, nil
}

// FromTaggedV7 unpacks a tagged UUID and requires version 7.
func FromTaggedV7(v any) (uuid.UUID, error) {
	u, err := FromTagged(v)
	if err != nil {
		return uuid.Nil, err
	}
	if !IsV7(u) {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrNotUUIDv7, u)
	}
	return u, nil
}

// FromTaggedV4 unpacks a tagged UUID and requires version 4.
func FromTaggedV4(v any) (uuid.UUID, error) {
	u, err := FromTagged(v)
	if err != nil {
		return uuid.Nil, err
	}
	if !IsV4(u) {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrNotUUIDv4, u)
	}
	return u, nil
}
