package core

import (
	"strings"
	"testing"
)

func TestSequence(t *testing.T) {
	seq := newSequence("B-", 100)
	seq.observe("B-7")
	seq.observe("X-500")
	seq.observe("B-abc")
	if id, n := seq.next(); id != "B-101" || n != 101 {
		t.Fatalf("unexpected first id %s %d", id, n)
	}
	seq.observe("B-120")
	if id, _ := seq.next(); id != "B-121" {
		t.Fatalf("expected B-121, got %s", id)
	}
}

func TestRandomCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := randomCode(6)
		if err != nil {
			t.Fatalf("random code: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("unexpected length %q", code)
		}
		for _, r := range code {
			if !strings.ContainsRune(codeAlphabet, r) {
				t.Fatalf("unexpected rune %q in %q", r, code)
			}
		}
		seen[code] = true
	}
	if len(seen) < 45 {
		t.Fatalf("codes not random enough: %d distinct", len(seen))
	}
}
