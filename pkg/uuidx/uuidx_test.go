package uuidx

import (
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

func TestNewV7IsOrdered(t *testing.T) {
	a := NewV7()
	time.Sleep(2 * time.Millisecond)
	b := NewV7()
	if Compare(a, b) >= 0 {
		t.Fatalf("expected %s < %s", a, b)
	}
}

func TestParseV7RejectsV4(t *testing.T) {
	if _, err := ParseV7(uuid.NewString()); err == nil {
		t.Fatal("expected error for a v4 value")
	}
}

func TestParseV4RejectsV7(t *testing.T) {
	if _, err := ParseV4(NewV7().String()); err == nil {
		t.Fatal("expected error for a v7 value")
	}
}

func TestTimeRoundsToGenerationInstant(t *testing.T) {
	before := time.Now().Truncate(time.Millisecond)
	u := NewV7()
	after := time.Now()
	got := Time(u)
	if got.Before(before.Add(-time.Millisecond)) || got.After(after.Add(time.Millisecond)) {
		t.Fatalf("timestamp %s outside [%s, %s]", got, before, after)
	}
}

func TestTaggedRoundTrip(t *testing.T) {
	u := NewV7()
	b, err := cbor.Marshal(Tagged(u))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var v any
	if err := cbor.Unmarshal(b, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got, err := FromTaggedV7(v)
	if err != nil {
		t.Fatalf("from tagged: %v", err)
	}
	if got != u {
		t.Fatalf("round trip mismatch: %s != %s", got, u)
	}
}

func TestFromTaggedRejections(t *testing.T) {
	cases := []struct {
		name string
		in   any
	}{
		{"not a tag", []byte{1, 2, 3}},
		{"wrong tag number", cbor.Tag{Number: 42, Content: make([]byte, 16)}},
		{"short content", cbor.Tag{Number: Tag, Content: []byte{1, 2}}},
	}
	for _, tc := range cases {
		if _, err := FromTagged(tc.in); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}
