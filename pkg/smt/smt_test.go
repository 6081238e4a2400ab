package smt

import (
	"fmt"
	"testing"
)

func TestEmptyTreeRoot(t *testing.T) {
	a := New().Root()
	b := New().Root()
	if a != b {
		t.Fatal("empty root must be stable")
	}
}

func TestRootIsOrderIndependent(t *testing.T) {
	a := New()
	b := New()
	keys := make([][32]byte, 8)
	for i := range keys {
		keys[i] = KeyOf([]byte(fmt.Sprintf("ballot-%d", i)))
	}
	for _, k := range keys {
		a.Insert(k, []byte("v"))
	}
	for i := len(keys) - 1; i >= 0; i-- {
		b.Insert(keys[i], []byte("v"))
	}
	if a.Root() != b.Root() {
		t.Fatal("insertion order must not change the root")
	}
	if a.Len() != 8 {
		t.Fatalf("expected 8 leaves, got %d", a.Len())
	}
}

func TestRootChangesWithContent(t *testing.T) {
	base := New()
	base.Insert(KeyOf([]byte("a")), []byte("1"))
	root := base.Root()

	extra := New()
	extra.Insert(KeyOf([]byte("a")), []byte("1"))
	extra.Insert(KeyOf([]byte("b")), []byte("2"))
	if extra.Root() == root {
		t.Fatal("adding a leaf must change the root")
	}

	mutated := New()
	mutated.Insert(KeyOf([]byte("a")), []byte("2"))
	if mutated.Root() == root {
		t.Fatal("changing a value must change the root")
	}
}

func TestInsertReplaces(t *testing.T) {
	tr := New()
	k := KeyOf([]byte("a"))
	tr.Insert(k, []byte("1"))
	tr.Insert(k, []byte("2"))
	if tr.Len() != 1 {
		t.Fatalf("expected 1 leaf, got %d", tr.Len())
	}

	want := New()
	want.Insert(k, []byte("2"))
	if tr.Root() != want.Root() {
		t.Fatal("replacement must equal a fresh insert of the new value")
	}
}
