package heap

// freeListCache is the front end: a per-thread (here, per the single
// VThread) sub-allocator for one size class, holding its own object
// free list. Allocate pops from the free list, pulling a transfer batch
// from the middle end when empty; Deallocate pushes, returning to the
// middle end when the free list exceeds NumToMove (spec.md §4.3).
type freeListCache struct {
	class    SizeClass
	central  *centralFreeList
	freeList []uint64
}

func newFreeListCache(class SizeClass, central *centralFreeList) *freeListCache {
	return &freeListCache{class: class, central: central}
}

// allocate pops a slot id from the free list, refilling from the
// central allocator with a NumToMove-sized transfer batch when empty.
func (f *freeListCache) allocate() (uint64, error) {
	if len(f.freeList) == 0 {
		batch, err := f.central.fetchBatch(f.class.NumToMove)
		if err != nil {
			return 0, err
		}
		f.freeList = append(f.freeList, batch...)
	}
	n := len(f.freeList)
	id := f.freeList[n-1]
	f.freeList = f.freeList[:n-1]
	return id, nil
}

// deallocate pushes id back onto the free list, returning a
// NumToMove-sized batch to the central allocator once the cache grows
// past that threshold.
func (f *freeListCache) deallocate(id uint64) {
	f.freeList = append(f.freeList, id)
	if len(f.freeList) > f.class.NumToMove {
		n := f.class.NumToMove
		batch := f.freeList[len(f.freeList)-n:]
		f.central.returnBatch(batch)
		f.freeList = f.freeList[:len(f.freeList)-n]
	}
}

// reset empties the cache's free list without returning its slots to
// the central allocator.
func (f *freeListCache) reset() {
	f.freeList = f.freeList[:0]
}
