// Package rangeset implements half-open byte-range arithmetic and a disjoint
// range set used to track completion of a multi-part transfer.
package rangeset

import (
	"fmt"
	"sort"
)

// Range is a half-open byte interval [Low, High).
type Range struct {
	Low  int64
	High int64
}

// Length returns the number of bytes the range covers.
func (r Range) Length() int64 {
	if r.High <= r.Low {
		return 0
	}
	return r.High - r.Low
}

// Valid reports whether the range is well formed (Low >= 0, High >= Low).
func (r Range) Valid() bool {
	return r.Low >= 0 && r.High >= r.Low
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d)", r.Low, r.High)
}

// Set is a sorted collection of disjoint, non-adjacent ranges. The zero value
// is an empty set ready to use. Set is not safe for concurrent use; callers
// that share a Set across goroutines (e.g. JoinTransferParts) must guard it
// with their own lock, matching the "driver-only mutation" rule in the
// concurrency model.
type Set struct {
	ranges []Range
}

// Add inserts r into the set, merging with any overlapping or touching
// existing ranges. Add is idempotent: adding the same range twice has no
// additional effect. Locates the insertion point in O(log n), but then
// copies every range after the merge point, so Add is O(n) overall.
func (s *Set) Add(r Range) {
	if r.Length() <= 0 {
		return
	}

	// Find the first range whose High >= r.Low (candidate for merge/insert point).
	i := sort.Search(len(s.ranges), func(i int) bool {
		return s.ranges[i].High >= r.Low
	})

	lo, hi := r.Low, r.High
	j := i
	for j < len(s.ranges) && s.ranges[j].Low <= hi {
		if s.ranges[j].Low < lo {
			lo = s.ranges[j].Low
		}
		if s.ranges[j].High > hi {
			hi = s.ranges[j].High
		}
		j++
	}

	merged := Range{Low: lo, High: hi}
	tail := append([]Range{}, s.ranges[j:]...)
	s.ranges = append(append(s.ranges[:i:i], merged), tail...)
}

// TotalLength returns the sum of all range lengths in the set.
func (s *Set) TotalLength() int64 {
	var total int64
	for _, r := range s.ranges {
		total += r.Length()
	}
	return total
}

// Covers reports whether the set fully covers [0, n). For n <= 0 this is
// vacuously true.
func (s *Set) Covers(n int64) bool {
	if n <= 0 {
		return true
	}
	if len(s.ranges) == 0 {
		return false
	}
	first := s.ranges[0]
	if first.Low > 0 {
		return false
	}
	covered := first.High
	for _, r := range s.ranges[1:] {
		if r.Low > covered {
			return false
		}
		if r.High > covered {
			covered = r.High
		}
	}
	return covered >= n
}

// Ranges returns a copy of the set's ranges in ascending order.
func (s *Set) Ranges() []Range {
	out := make([]Range, len(s.ranges))
	copy(out, s.ranges)
	return out
}
