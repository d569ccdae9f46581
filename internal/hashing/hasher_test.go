package hashing

import (
	"strings"
	"testing"
)

func TestDigestIsStableAndKeyed(t *testing.T) {
	a, err := NewTokenHasher("pepper-one")
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewTokenHasher("pepper-two")
	if err != nil {
		t.Fatal(err)
	}

	if a.Digest("tok") != a.Digest("tok") {
		t.Fatal("expected digest to be deterministic")
	}
	if a.Digest("tok") == b.Digest("tok") {
		t.Fatal("expected different peppers to give different digests")
	}
	if a.Digest("tok") == a.Digest("tok2") {
		t.Fatal("expected different tokens to give different digests")
	}
	if len(a.Digest("tok")) != 64 {
		t.Fatalf("expected 64 hex chars got %d", len(a.Digest("tok")))
	}
}

func TestPepperTooLong(t *testing.T) {
	if _, err := NewTokenHasher(strings.Repeat("x", 65)); err != ErrPepperTooLong {
		t.Fatalf("expected ErrPepperTooLong got %v", err)
	}
}
