package heap

import (
	"sort"

	"github.com/ssvm/ssvm/internal/value"
)

// Marker is the collaborator interface for root enumeration and
// reachability marking. spec.md §4.3 is explicit that "the present core
// does not implement a complete mark phase"; an embedder supplies one
// (e.g. walking VThread registers, the value stack, and the global
// table) and calls Sweep with the resulting MarkedSet. This is one of
// the two Open Questions spec.md §9 says "must not be silently
// resolved" — see DESIGN.md.
type Marker interface {
	// Mark returns every Ref currently reachable from the embedder's
	// roots, in no particular order; Sweep sorts it.
	Mark() []Ref
}

// MarkedSet is a set of live references sorted by (size class, then
// slot id), the input to Sweep (spec.md §4.3).
type MarkedSet []Ref

func (h *Heap) newMarkedSet(refs []Ref) MarkedSet {
	ms := append(MarkedSet(nil), refs...)
	sort.Slice(ms, func(i, j int) bool {
		oi, oj := h.get(ms[i]), h.get(ms[j])
		if oi.sci != oj.sci {
			return oi.sci < oj.sci
		}
		return ms[i] < ms[j]
	})
	return ms
}

// Sweep runs the sweep phase: every allocated slot whose reference is
// not in the marker's MarkedSet is freed one at a time through the
// ordinary deallocate path (the front-end cache, which hands batches on
// to the middle end as it overflows); marked slots are left untouched.
// The front-end free lists are not cleared first. It finishes by
// trimming fully-idle spans back to the back end.
//
// Marking itself (root enumeration and the reachability walk) is the
// declared Marker collaborator; passing a nil Marker marks nothing, so
// every allocated object is freed.
func (h *Heap) Sweep(marker Marker) {
	var live []Ref
	if marker != nil {
		live = marker.Mark()
	}
	marked := h.newMarkedSet(live)

	keep := make(map[uint64]bool, len(marked))
	for _, ref := range marked {
		keep[value.UnpackRef(ref)] = true
	}

	for id := range h.objects {
		sid := uint64(id)
		if !h.allocated[sid] || keep[sid] {
			continue
		}
		h.free(value.PackRef(sid))
	}
	h.TrimUnusedPages()
}
