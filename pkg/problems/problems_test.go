package problems

import (
	"sync"
	"testing"
)

func TestReportAggregates(t *testing.T) {
	r := New()
	if r.Problematic() {
		t.Fatal("fresh report must be clean")
	}
	r.MissingField("ref", "ctx")
	r.InvalidValue("ver", "x", "ver >= id", "ctx")
	r.Add(Entry{Kind: KindHashMismatch, Field: "parameters"})
	if !r.Problematic() {
		t.Fatal("report must be problematic")
	}
	if got := len(r.Entries()); got != 3 {
		t.Fatalf("expected 3 entries, got %d", got)
	}
	if !r.HasKind(KindHashMismatch) {
		t.Fatal("expected hash mismatch kind")
	}
	if r.HasKind(KindChainBroken) {
		t.Fatal("unexpected chain broken kind")
	}
}

func TestReportConcurrentAdd(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Functional("rule", "ctx")
		}()
	}
	wg.Wait()
	if got := len(r.Entries()); got != 32 {
		t.Fatalf("expected 32 entries, got %d", got)
	}
}
