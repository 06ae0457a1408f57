package heap

import "github.com/pkg/errors"

// centralFreeList is the middle end: a per size-class object allocator
// holding page-spans on loan from the back end, with a per-span
// refcount and an object free list. It allocates and returns objects in
// fixed-count transfer batches (spec.md §4.3).
type centralFreeList struct {
	class    SizeClass
	pages    *pageHeap
	newSlot  func() uint64 // mints a fresh, globally unique slot id
	freeList []uint64
	spanOf   map[uint64]*span
	spans    []*span
}

func newCentralFreeList(class SizeClass, pages *pageHeap, newSlot func() uint64) *centralFreeList {
	return &centralFreeList{
		class:   class,
		pages:   pages,
		newSlot: newSlot,
		spanOf:  make(map[uint64]*span),
	}
}

// growSpan acquires a new span from the back end and mints slotsPerSpan
// fresh slot ids onto the free list, all owned by that span.
func (c *centralFreeList) growSpan() error {
	s, err := c.pages.acquire(c.class.Index, c.class.PagesPerSpan)
	if err != nil {
		return errors.Wrapf(err, "central: size class %d", c.class.Index)
	}
	c.spans = append(c.spans, s)
	slotsPerSpan := (c.class.PagesPerSpan * PageSize) / c.class.WordsPerSlot
	for i := 0; i < slotsPerSpan; i++ {
		id := c.newSlot()
		c.spanOf[id] = s
		c.freeList = append(c.freeList, id)
	}
	return nil
}

// fetchBatch removes up to n slot ids from the free list, growing the
// central allocator's span set as needed. Each returned id's owning
// span has its refcount incremented to reflect that it is now on loan
// to a front-end cache.
func (c *centralFreeList) fetchBatch(n int) ([]uint64, error) {
	for len(c.freeList) < n {
		if err := c.growSpan(); err != nil {
			if len(c.freeList) == 0 {
				return nil, err
			}
			break
		}
	}
	if n > len(c.freeList) {
		n = len(c.freeList)
	}
	batch := append([]uint64(nil), c.freeList[:n]...)
	c.freeList = c.freeList[n:]
	for _, id := range batch {
		c.spanOf[id].refcount++
	}
	return batch, nil
}

// returnBatch gives a batch of slot ids back to the central free list,
// decrementing each id's owning span's refcount.
func (c *centralFreeList) returnBatch(ids []uint64) {
	for _, id := range ids {
		if s, ok := c.spanOf[id]; ok {
			s.refcount--
		}
	}
	c.freeList = append(c.freeList, ids...)
}

// trimUnusedPages returns every span whose refcount has reached zero
// back to the back end, removing its slot ids from the free list so
// they can never be handed out again (spec.md §4.3's
// trim_unused_pages).
func (c *centralFreeList) trimUnusedPages() {
	var kept []*span
	dead := make(map[*span]bool)
	for _, s := range c.spans {
		if s.refcount == 0 {
			dead[s] = true
			c.pages.release(s)
			continue
		}
		kept = append(kept, s)
	}
	if len(dead) == 0 {
		return
	}
	c.spans = kept
	var keptFree []uint64
	for _, id := range c.freeList {
		if s := c.spanOf[id]; !dead[s] {
			keptFree = append(keptFree, id)
		} else {
			delete(c.spanOf, id)
		}
	}
	c.freeList = keptFree
}
