package heap

// SizeClass describes one entry of the fixed size-class table used by
// the segregated allocator (spec.md §4.3). Index 0 is reserved for
// oversized allocations and is deliberately left unimplemented, as the
// spec requires ("sci=0 is reserved for oversized allocations (not
// implemented in core)").
type SizeClass struct {
	Index        int // sci
	WordsPerSlot int // object size, measured in value.Object words
	PagesPerSpan int // pages a span loaned to this class spans
	NumToMove    int // transfer-batch size between central and front end
}

// sizeClasses is the fixed table. Word sizes grow roughly geometrically,
// matching the shape of a typical tcmalloc-derived size-class table: a
// handful of small exact classes for the common boxed kinds (Box=1 word,
// Pair=2 words, Float64=1 word, small Closures/Vectors), then coarser
// classes for larger vectors and strings-as-words.
var sizeClasses = []SizeClass{
	{Index: 0, WordsPerSlot: 0, PagesPerSpan: 0, NumToMove: 0}, // oversized, unimplemented
	{Index: 1, WordsPerSlot: 1, PagesPerSpan: 1, NumToMove: 32},
	{Index: 2, WordsPerSlot: 2, PagesPerSpan: 1, NumToMove: 32},
	{Index: 3, WordsPerSlot: 4, PagesPerSpan: 1, NumToMove: 16},
	{Index: 4, WordsPerSlot: 8, PagesPerSpan: 1, NumToMove: 16},
	{Index: 5, WordsPerSlot: 16, PagesPerSpan: 2, NumToMove: 8},
	{Index: 6, WordsPerSlot: 32, PagesPerSpan: 2, NumToMove: 8},
	{Index: 7, WordsPerSlot: 64, PagesPerSpan: 4, NumToMove: 4},
	{Index: 8, WordsPerSlot: 128, PagesPerSpan: 8, NumToMove: 2},
	{Index: 9, WordsPerSlot: 256, PagesPerSpan: 16, NumToMove: 1},
}

// NumSizeClasses returns the number of entries in the size-class table,
// including the reserved oversized class 0.
func NumSizeClasses() int { return len(sizeClasses) }

// ClassOf returns the smallest size class whose WordsPerSlot can hold an
// object of the given number of words ("sci is chosen at allocation
// sites by a sizeof(T) → sci computation", spec.md §4.3). It returns
// class 0 (oversized, unimplemented) if no class is large enough.
func ClassOf(words int) SizeClass {
	for _, sc := range sizeClasses[1:] {
		if sc.WordsPerSlot >= words {
			return sc
		}
	}
	return sizeClasses[0]
}

// PageSize is the size, in words, of one page in the back end's region.
const PageSize = 512
