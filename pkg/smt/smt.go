// Package smt implements the sparse Merkle tree that ballot checkpoints
// commit to. Keys are 256-bit blake3 digests; the root over the full key
// space is computed with per-depth default hashes so that sparse trees stay
// cheap.
package smt

import (
	"sort"

	"github.com/zeebo/blake3"
)

// Depth of the tree, one level per key bit.
const Depth = 256

// Domain separation prefixes for leaf and interior nodes.
const (
	leafPrefix = 0x00
	nodePrefix = 0x01
)

// defaults[d] is the hash of an empty subtree whose root sits d levels
// above the leaves.
var defaults [Depth + 1][32]byte

func init() {
	defaults[0] = leafHash([32]byte{}, nil)
	for d := 1; d <= Depth; d++ {
		defaults[d] = nodeHash(defaults[d-1], defaults[d-1])
	}
}

func leafHash(key [32]byte, value []byte) [32]byte {
	h := blake3.New()
	h.Write([]byte{leafPrefix})
	h.Write(key[:])
	h.Write(value)
	var out [32]byte
	h.Sum(out[:0])
	return out
}

func nodeHash(left, right [32]byte) [32]byte {
	h := blake3.New()
	h.Write([]byte{nodePrefix})
	h.Write(left[:])
	h.Write(right[:])
	var out [32]byte
	h.Sum(out[:0])
	return out
}

// KeyOf derives a tree key from arbitrary identifying bytes.
func KeyOf(data []byte) [32]byte {
	return blake3.Sum256(data)
}

type entry struct {
	key   [32]byte
	value []byte
}

// Tree is an insert-only sparse Merkle tree.
type Tree struct {
	entries map[[32]byte][]byte
}

func New() *Tree {
	return &Tree{entries: make(map[[32]byte][]byte)}
}

// Insert sets the value under key, replacing any previous value.
func (t *Tree) Insert(key [32]byte, value []byte) {
	t.entries[key] = append([]byte(nil), value...)
}

// Len returns the number of occupied leaves.
func (t *Tree) Len() int { return len(t.entries) }

// Root computes the tree root over the current entry set.
func (t *Tree) Root() [32]byte {
	if len(t.entries) == 0 {
		return defaults[Depth]
	}
	sorted := make([]entry, 0, len(t.entries))
	for k, v := range t.entries {
		sorted = append(sorted, entry{key: k, value: v})
	}
	sort.Slice(sorted, func(i, j int) bool {
		for b := range sorted[i].key {
			if sorted[i].key[b] != sorted[j].key[b] {
				return sorted[i].key[b] < sorted[j].key[b]
			}
		}
		return false
	})
	return subtreeRoot(sorted, 0)
}

// subtreeRoot computes the root of the subtree at the given bit depth over a
// key-sorted slice of entries belonging to that subtree.
func subtreeRoot(entries []entry, depth int) [32]byte {
	if len(entries) == 0 {
		return defaults[Depth-depth]
	}
	if len(entries) == 1 {
		// Fold the single leaf up against default siblings.
		e := entries[0]
		h := leafHash(e.key, e.value)
		for d := Depth - 1; d >= depth; d-- {
			if bitAt(e.key, d) == 1 {
				h = nodeHash(defaults[Depth-d-1], h)
			} else {
				h = nodeHash(h, defaults[Depth-d-1])
			}
		}
		return h
	}
	split := sort.Search(len(entries), func(i int) bool {
		return bitAt(entries[i].key, depth) == 1
	})
	left := subtreeRoot(entries[:split], depth+1)
	right := subtreeRoot(entries[split:], depth+1)
	return nodeHash(left, right)
}

func bitAt(key [32]byte, depth int) byte {
	return (key[depth/8] >> (7 - depth%8)) & 1
}
