package store

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"signeddoc/pkg/envelope"
	"signeddoc/pkg/keyid"
	"signeddoc/pkg/metadata"
	"signeddoc/pkg/uuidx"
)

// Memory is an in-memory append-only document store. Accepted documents are
// immutable; only new versions are added. Safe for concurrent use.
type Memory struct {
	mu sync.RWMutex
	// byVersion maps "id/ver" to the accepted document.
	byVersion map[string]*envelope.Document
	// versions maps an id to its accepted versions in ascending order.
	versions map[uuid.UUID][]uuid.UUID
	// byType maps a primary type to accepted documents in acceptance order.
	byType map[uuid.UUID][]*envelope.Document
	// successors maps a chained-to "id/ver" to the successor, for fork
	// detection.
	successors map[string]*envelope.Document
	keys       map[string]ed25519.PublicKey
}

func NewMemory() *Memory {
	return &Memory{
		byVersion:  make(map[string]*envelope.Document),
		versions:   make(map[uuid.UUID][]uuid.UUID),
		byType:     make(map[uuid.UUID][]*envelope.Document),
		successors: make(map[string]*envelope.Document),
		keys:       make(map[string]ed25519.PublicKey),
	}
}

func versionKey(id, ver uuid.UUID) string {
	return id.String() + "/" + ver.String()
}

// Accept adds a validated document. Writes are serialized; a version that
// does not advance the id's latest accepted version is rejected, as is a
// second document chaining to an already taken predecessor.
func (m *Memory) Accept(_ context.Context, doc *envelope.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ver := doc.Meta.ID, doc.Meta.Ver
	key := versionKey(id, ver)
	if _, ok := m.byVersion[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, key)
	}
	if vs := m.versions[id]; len(vs) > 0 && uuidx.Compare(ver, vs[len(vs)-1]) <= 0 {
		return fmt.Errorf("%w: id %s, ver %s, latest %s", ErrStaleVersion, id, ver, vs[len(vs)-1])
	}
	if c := doc.Meta.Chain; c != nil && c.Ref != nil {
		prevKey := versionKey(c.Ref.ID, c.Ref.Ver)
		if _, taken := m.successors[prevKey]; taken {
			return fmt.Errorf("%w: %s", ErrChainFork, prevKey)
		}
		m.successors[prevKey] = doc
	}

	m.byVersion[key] = doc
	m.versions[id] = append(m.versions[id], ver)
	t := doc.Meta.PrimaryType()
	m.byType[t] = append(m.byType[t], doc)
	return nil
}

// RegisterKey registers a public key under the key ID's short form.
func (m *Memory) RegisterKey(kid keyid.KeyID, pk ed25519.PublicKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[kid.ShortID()] = pk
}

func (m *Memory) GetDocument(_ context.Context, ref metadata.DocumentRef) (*envelope.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byVersion[versionKey(ref.ID, ref.Ver)], nil
}

func (m *Memory) GetLatest(_ context.Context, id uuid.UUID) (*envelope.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	vs := m.versions[id]
	if len(vs) == 0 {
		return nil, nil
	}
	return m.byVersion[versionKey(id, vs[len(vs)-1])], nil
}

func (m *Memory) GetFirst(_ context.Context, id uuid.UUID) (*envelope.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byVersion[versionKey(id, id)], nil
}

func (m *Memory) ListByType(_ context.Context, docType uuid.UUID) ([]*envelope.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*envelope.Document, len(m.byType[docType]))
	copy(out, m.byType[docType])
	return out, nil
}

func (m *Memory) ChainSuccessor(_ context.Context, id, ver uuid.UUID) (*envelope.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.successors[versionKey(id, ver)], nil
}

func (m *Memory) RegisteredKey(_ context.Context, kid keyid.KeyID) (ed25519.PublicKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.keys[kid.ShortID()], nil
}
