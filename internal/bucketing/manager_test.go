package bucketing

import (
	"fmt"
	"testing"
)

func TestBucketStableAndInRange(t *testing.T) {
	bm := NewBucketingManager(16)
	seen := make(map[int]bool)

	for i := 0; i < 1000; i++ {
		key := fmt.Sprintf("0xabc%d:post:2026-03-01", i)
		b := bm.Bucket(key)
		if b < 0 || b >= 16 {
			t.Fatalf("bucket %d out of range", b)
		}
		if bm.Bucket(key) != b {
			t.Fatalf("bucket for %s not stable", key)
		}
		seen[b] = true
	}
	if len(seen) < 8 {
		t.Fatalf("expected keys to spread over buckets, only hit %d", len(seen))
	}
}

func TestNonPositiveBucketsClamped(t *testing.T) {
	bm := NewBucketingManager(0)
	if bm.Buckets() != 1 || bm.Bucket("x") != 0 {
		t.Fatal("expected single bucket")
	}
}
