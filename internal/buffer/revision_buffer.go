// Package buffer keeps a bounded, ordered history so reconnecting readers can
// catch up on what they missed.
package buffer

import (
	"sort"
	"sync"
)

// Revisioned items carry a revision that increases by one per item.
type Revisioned interface {
	Revision() int64
}

type RevisionBuffer[T Revisioned] struct {
	mu     sync.RWMutex
	items  []T
	size   int
	head   int
	isFull bool
}

func NewRevisionBuffer[T Revisioned](size int) *RevisionBuffer[T] {
	if size <= 0 {
		size = 256
	}
	return &RevisionBuffer[T]{
		items: make([]T, size),
		size:  size,
	}
}

func (b *RevisionBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.size
	if b.head == 0 {
		b.isFull = true
	}
}

// Since returns the items after lastRev, oldest first. ok is false when some
// of them have already been evicted and the reader must start over from a
// snapshot.
func (b *RevisionBuffer[T]) Since(lastRev int64) ([]T, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := b.head
	start := 0
	if b.isFull {
		count = b.size
		start = b.head
	}
	if count == 0 {
		return nil, true
	}

	// revisions are contiguous, so a gap before the oldest item means loss
	if oldest := b.items[start].Revision(); lastRev+1 < oldest {
		return nil, false
	}

	// logical index i lives at (start+i) % size
	idx := sort.Search(count, func(i int) bool {
		return b.items[(start+i)%b.size].Revision() > lastRev
	})
	if idx == count {
		return nil, true
	}

	out := make([]T, 0, count-idx)
	for i := idx; i < count; i++ {
		out = append(out, b.items[(start+i)%b.size])
	}
	return out, true
}
