// Package problems collects validation findings for a document. A report
// aggregates every violated constraint instead of failing fast, so a caller
// can see the full reason a document was rejected.
package problems

import (
	"fmt"
	"sync"
)

// Kind classifies a validation finding.
type Kind string

const (
	KindUnknownType          Kind = "UNKNOWN_TYPE"
	KindMalformedEnvelope    Kind = "MALFORMED_ENVELOPE"
	KindReferenceNotFound    Kind = "REFERENCE_NOT_FOUND"
	KindHashMismatch         Kind = "HASH_MISMATCH"
	KindMetadataViolation    Kind = "METADATA_CONSTRAINT_VIOLATION"
	KindUnauthorized         Kind = "UNAUTHORIZED"
	KindChainBroken          Kind = "CHAIN_BROKEN"
	KindPayloadSchema        Kind = "PAYLOAD_SCHEMA_VIOLATION"
	KindReferenceUnavailable Kind = "REFERENCE_UNAVAILABLE"
)

// Entry is a single validation finding.
type Entry struct {
	Kind       Kind   `json:"kind"`
	Field      string `json:"field,omitempty"`
	Value      string `json:"value,omitempty"`
	Constraint string `json:"constraint,omitempty"`
	Context    string `json:"context,omitempty"`
}

func (e Entry) String() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: field %q: %s (%s)", e.Kind, e.Field, e.Constraint, e.Context)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Constraint, e.Context)
}

// Report accumulates entries. Safe for concurrent use.
type Report struct {
	mu      sync.Mutex
	entries []Entry
}

func New() *Report { return &Report{} }

// Add records an arbitrary entry.
func (r *Report) Add(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

// MissingField records a required metadata field that is absent.
func (r *Report) MissingField(field, context string) {
	r.Add(Entry{Kind: KindMetadataViolation, Field: field, Constraint: "required field is missing", Context: context})
}

// UnknownField records a metadata field the document type does not allow.
func (r *Report) UnknownField(field, value, context string) {
	r.Add(Entry{Kind: KindMetadataViolation, Field: field, Value: value, Constraint: "field is not expected", Context: context})
}

// InvalidValue records a field whose value violates a constraint.
func (r *Report) InvalidValue(field, value, constraint, context string) {
	r.Add(Entry{Kind: KindMetadataViolation, Field: field, Value: value, Constraint: constraint, Context: context})
}

// Functional records a violated cross-field or cross-document rule.
func (r *Report) Functional(constraint, context string) {
	r.Add(Entry{Kind: KindMetadataViolation, Constraint: constraint, Context: context})
}

// Problematic reports whether any finding was recorded.
func (r *Report) Problematic() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries) > 0
}

// HasKind reports whether any finding of the given kind was recorded.
func (r *Report) HasKind(k Kind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.Kind == k {
			return true
		}
	}
	return false
}

// Entries returns a copy of all recorded findings.
func (r *Report) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
