package bucketing

import (
	"hash"
	"sync"

	"github.com/spaolacci/murmur3"
)

// BucketingManager maps string keys onto a fixed number of shards.
type BucketingManager struct {
	buckets    int
	hasherPool sync.Pool
}

func NewBucketingManager(buckets int) *BucketingManager {
	if buckets <= 0 {
		buckets = 1
	}
	bm := &BucketingManager{buckets: buckets}

	// pooled to avoid an allocation per lookup
	bm.hasherPool = sync.Pool{
		New: func() interface{} {
			return murmur3.New32()
		},
	}
	return bm
}

// Bucket returns a stable bucket in [0, Buckets()) for key.
func (bm *BucketingManager) Bucket(key string) int {
	h := bm.hasherPool.Get().(hash.Hash32)
	defer bm.hasherPool.Put(h)

	h.Reset()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(bm.buckets))
}

func (bm *BucketingManager) Buckets() int {
	return bm.buckets
}
