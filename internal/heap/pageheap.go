package heap

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrOutOfMemory is returned once the back end's page region is
// exhausted. Allocation failure is fatal per spec.md §4.3 ("allocation
// failure of a size class raises a fatal error; no swap-to-disk or
// compaction is attempted").
var ErrOutOfMemory = errors.New("heap: out of memory")

// span is a contiguous run of pages handed out by the page heap to a
// central free list for one size class.
type span struct {
	sci      int
	startPg  int
	numPages int
	refcount int
}

// pageHeap is the back end: it owns a single contiguous region of N
// aligned pages and hands out page-spans from a page-free-list.
//
// pageHeap takes a real sync.Mutex even though the VM is single
// threaded (spec.md §5 "the allocator supports an optional mutex...the
// single-threaded build compiles these out"): Go has no preprocessor to
// compile the lock out, and an uncontended mutex is inexpensive, so this
// module keeps the lock unconditionally and documents the tradeoff in
// DESIGN.md rather than special-casing it away.
type pageHeap struct {
	mu        sync.Mutex
	numPages  int
	nextFree  int // bump pointer into the unclaimed region
	freeSpans []*span
}

func newPageHeap(numPages int) *pageHeap {
	return &pageHeap{numPages: numPages}
}

// acquire hands out a span of numPages pages for size class sci, first
// trying to recycle a free span, then falling back to the bump
// allocator. It returns ErrOutOfMemory when the region is exhausted.
func (ph *pageHeap) acquire(sci, numPages int) (*span, error) {
	ph.mu.Lock()
	defer ph.mu.Unlock()
	for i, s := range ph.freeSpans {
		if s.numPages == numPages {
			ph.freeSpans = append(ph.freeSpans[:i], ph.freeSpans[i+1:]...)
			s.sci = sci
			s.refcount = 0
			return s, nil
		}
	}
	if ph.nextFree+numPages > ph.numPages {
		return nil, errors.Wrapf(ErrOutOfMemory, "need %d pages, %d remain", numPages, ph.numPages-ph.nextFree)
	}
	s := &span{sci: sci, startPg: ph.nextFree, numPages: numPages}
	ph.nextFree += numPages
	return s, nil
}

// release returns a span to the free-span list for future reuse by any
// size class (trim_unused_pages, spec.md §4.3).
func (ph *pageHeap) release(s *span) {
	ph.mu.Lock()
	defer ph.mu.Unlock()
	ph.freeSpans = append(ph.freeSpans, s)
}
