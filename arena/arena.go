// Package arena implements a bump allocator with segmented growth and a
// scoped destructor registry. Every ParamVec, Operator, Extractor and
// Histogram table built by the analysis graph is allocated from one of
// two double-buffered arenas owned by the RunController.
package arena

import (
	"fmt"
	"unsafe"
)

// DefaultSegmentSize is used for every new segment unless the requested
// allocation does not fit, in which case a segment sized to the request
// is created instead.
const DefaultSegmentSize = 1 << 20 // 1 MiB

// OutOfMemoryError is recorded when no segment, existing or freshly
// grown, can satisfy a request. This should not normally happen since
// segments always grow to fit; it exists for the degenerate case of a
// request larger than the address space can represent.
type OutOfMemoryError struct {
	Requested int
	Align     int
}

func (e *OutOfMemoryError) Error() string {
	return fmt.Sprintf("arena: out of memory requesting %d bytes (align %d)", e.Requested, e.Align)
}

// segment tracks a logical byte budget. Real byte storage for values
// allocated "from" a segment is still heap-managed by Go so that the
// garbage collector keeps internal pointers (e.g. the float64 slices
// inside a ParamVec) correctly scanned; the segment only polices the
// size budget and alignment bookkeeping the spec requires.
type segment struct {
	capacity int
	used     int
}

func (s *segment) reset() { s.used = 0 }

func (s *segment) pushSize(size, align int) (offset int, ok bool) {
	if align < 1 {
		align = 1
	}

	pad := (align - s.used%align) % align
	if s.used+pad+size > s.capacity {
		return 0, false
	}

	offset = s.used + pad
	s.used = offset + size

	return offset, true
}

// Arena is an append-only region allocator. It is not safe for
// concurrent use: callers serialize allocation during graph
// construction, and the graph is read-only while processing events.
type Arena struct {
	segmentSize int
	segments    []*segment
	current     int
	destructors []func()
	// owned keeps every object pushed via PushObject reachable for the
	// lifetime of the arena so Go's GC cannot collect it out from under
	// a stored pointer, mirroring the C++ arena's raw ownership.
	owned []any
}

// New creates an Arena with one initial segment of segmentSize bytes.
// A non-positive size selects DefaultSegmentSize.
func New(segmentSize int) *Arena {
	if segmentSize <= 0 {
		segmentSize = DefaultSegmentSize
	}

	a := &Arena{segmentSize: segmentSize}
	a.segments = append(a.segments, &segment{capacity: segmentSize})

	return a
}

// Used returns the total number of bytes accounted for across all
// segments.
func (a *Arena) Used() int {
	sum := 0
	for _, s := range a.segments {
		sum += s.used
	}

	return sum
}

// Size returns the total capacity across all segments.
func (a *Arena) Size() int {
	sum := 0
	for _, s := range a.segments {
		sum += s.capacity
	}

	return sum
}

// PushSize advances the cursor past size bytes aligned to align. It
// returns a logical offset into the arena's address space, used by
// callers that only need stable identity (e.g. the Adapter's ID->offset
// binding table), not real backing storage.
func (a *Arena) PushSize(size, align int) int {
	seg := a.segments[a.current]
	if off, ok := seg.pushSize(size, align); ok {
		return a.baseOffset(a.current) + off
	}

	for i := a.current + 1; i < len(a.segments); i++ {
		if off, ok := a.segments[i].pushSize(size, align); ok {
			a.current = i
			return a.baseOffset(i) + off
		}
	}

	newSize := a.segmentSize
	if size+align > newSize {
		newSize = size + align
	}

	ns := &segment{capacity: newSize}
	a.segments = append(a.segments, ns)
	a.current = len(a.segments) - 1

	off, ok := ns.pushSize(size, align)
	if !ok {
		panic(&OutOfMemoryError{Requested: size, Align: align})
	}

	return a.baseOffset(a.current) + off
}

func (a *Arena) baseOffset(segIdx int) int {
	base := 0
	for i := 0; i < segIdx; i++ {
		base += a.segments[i].capacity
	}

	return base
}

// PushObject allocates logical space for one T (accounted against the
// segment budget), constructs it via init, retains a strong reference
// so the arena keeps it alive, and registers destroy to run in reverse
// order at Reset. destroy may be nil for objects with nothing to clean
// up, which is the common case for ParamVec/Operator/Histogram.
func PushObject[T any](a *Arena, init func(*T), destroy func(*T)) *T {
	var zero T
	size := int(unsafe.Sizeof(zero))

	a.PushSize(size, 8)

	obj := new(T)
	if init != nil {
		init(obj)
	}

	a.owned = append(a.owned, obj)

	if destroy != nil {
		a.destructors = append(a.destructors, func() { destroy(obj) })
	}

	return obj
}

// Reset runs all registered destructors in reverse order, releases
// strong references to owned objects, and clears every segment back to
// empty. Segments are not deallocated so repeated begin_run/end_run
// cycles reuse the same capacity accounting.
func (a *Arena) Reset() {
	for i := len(a.destructors) - 1; i >= 0; i-- {
		a.destructors[i]()
	}
	a.destructors = a.destructors[:0]
	a.owned = a.owned[:0]

	for _, s := range a.segments {
		s.reset()
	}
	a.current = 0
}
