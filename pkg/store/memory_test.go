package store

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"signeddoc/pkg/doctypes"
	"signeddoc/pkg/envelope"
	"signeddoc/pkg/keyid"
	"signeddoc/pkg/metadata"
	"signeddoc/pkg/uuidx"
)

func buildDoc(t *testing.T, meta *metadata.Metadata) *envelope.Document {
	t.Helper()
	_, sk, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pk := sk.Public().(ed25519.PublicKey)
	doc, err := envelope.NewBuilder(meta).
		WithContent([]byte(`{}`)).
		Sign(sk, keyid.New("testnet", pk)).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return doc
}

func simpleMeta(id, ver uuid.UUID) *metadata.Metadata {
	return &metadata.Metadata{
		Type:        []uuid.UUID{doctypes.Proposal},
		ID:          id,
		Ver:         ver,
		ContentType: metadata.ContentTypeJSON,
	}
}

func TestMemoryVersioning(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	id := uuidx.NewV7()
	first := buildDoc(t, simpleMeta(id, id))
	if err := m.Accept(ctx, first); err != nil {
		t.Fatalf("accept first: %v", err)
	}

	time.Sleep(2 * time.Millisecond)
	v2 := uuidx.NewV7()
	second := buildDoc(t, simpleMeta(id, v2))
	if err := m.Accept(ctx, second); err != nil {
		t.Fatalf("accept second: %v", err)
	}

	got, err := m.GetFirst(ctx, id)
	if err != nil || got == nil || got.Meta.Ver != id {
		t.Fatalf("first lookup: %v %v", got, err)
	}
	got, err = m.GetLatest(ctx, id)
	if err != nil || got == nil || got.Meta.Ver != v2 {
		t.Fatalf("latest lookup: %v %v", got, err)
	}
	got, err = m.GetDocument(ctx, metadata.DocumentRef{ID: id, Ver: v2})
	if err != nil || got == nil {
		t.Fatalf("exact lookup: %v %v", got, err)
	}

	docs, err := m.ListByType(ctx, doctypes.Proposal)
	if err != nil || len(docs) != 2 {
		t.Fatalf("list by type: %d %v", len(docs), err)
	}
}

func TestMemoryRejectsStaleAndDuplicate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	id := uuidx.NewV7()
	doc := buildDoc(t, simpleMeta(id, id))
	if err := m.Accept(ctx, doc); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := m.Accept(ctx, doc); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}

	time.Sleep(2 * time.Millisecond)
	mid := uuidx.NewV7()
	time.Sleep(2 * time.Millisecond)
	newer := buildDoc(t, simpleMeta(id, uuidx.NewV7()))
	if err := m.Accept(ctx, newer); err != nil {
		t.Fatalf("accept newer: %v", err)
	}
	// A version between the first and the latest no longer advances the id.
	stale := buildDoc(t, simpleMeta(id, mid))
	if err := m.Accept(ctx, stale); !errors.Is(err, ErrStaleVersion) {
		t.Fatalf("expected stale version, got %v", err)
	}
}

func TestMemoryChainForkDetection(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	headID := uuidx.NewV7()
	head := buildDoc(t, simpleMeta(headID, headID))
	head.Meta.Chain = &metadata.Chain{Height: 0}
	if err := m.Accept(ctx, head); err != nil {
		t.Fatalf("accept head: %v", err)
	}

	link := func(ver uuid.UUID) *envelope.Document {
		meta := simpleMeta(headID, ver)
		meta.Chain = &metadata.Chain{
			Height: 1,
			Ref:    &metadata.DocumentRef{ID: headID, Ver: headID, Locator: metadata.DocLocator{0x01}},
		}
		return buildDoc(t, meta)
	}

	time.Sleep(2 * time.Millisecond)
	if err := m.Accept(ctx, link(uuidx.NewV7())); err != nil {
		t.Fatalf("accept link: %v", err)
	}
	succ, err := m.ChainSuccessor(ctx, headID, headID)
	if err != nil || succ == nil {
		t.Fatalf("successor lookup: %v %v", succ, err)
	}

	time.Sleep(2 * time.Millisecond)
	if err := m.Accept(ctx, link(uuidx.NewV7())); !errors.Is(err, ErrChainFork) {
		t.Fatalf("expected chain fork, got %v", err)
	}
}

func TestMemoryKeys(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	pk, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	kid := keyid.New("testnet", pk).WithRole(keyid.RoleProposer)
	m.RegisterKey(kid, pk)

	got, err := m.RegisteredKey(ctx, kid.WithRole(keyid.RoleRegistered))
	if err != nil || got == nil {
		t.Fatalf("key lookup must ignore role: %v %v", got, err)
	}
	missing, err := m.RegisteredKey(ctx, keyid.New("testnet", make([]byte, ed25519.PublicKeySize)))
	if err != nil || missing != nil {
		t.Fatalf("missing key must be (nil, nil): %v %v", missing, err)
	}
}
