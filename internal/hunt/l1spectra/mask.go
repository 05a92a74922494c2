package l1spectra

import "sort"

// Range is a run of consecutive active bins.
type Range struct {
	Start int
	Len   int
}

// End returns one past the last bin of the range.
func (r Range) End() int { return r.Start + r.Len }

// Mask selects the active bins of an array of ArraySize bins. It is stored as
// sorted, non-overlapping active ranges computed once per header and reused
// for every slice. Masks have value semantics: Cut returns a new mask and
// never modifies the receiver.
type Mask struct {
	arraySize int
	ranges    []Range
}

// FullMask returns a mask with every bin of an n-bin array active.
func FullMask(n int) Mask {
	if n <= 0 {
		return Mask{}
	}
	return Mask{arraySize: n, ranges: []Range{{Start: 0, Len: n}}}
}

// ArraySize returns the number of bins of the array the mask applies to.
func (m Mask) ArraySize() int { return m.arraySize }

// Size returns the number of active bins.
func (m Mask) Size() int {
	n := 0
	for _, r := range m.ranges {
		n += r.Len
	}
	return n
}

// Ranges returns a copy of the active ranges.
func (m Mask) Ranges() []Range {
	out := make([]Range, len(m.ranges))
	copy(out, m.ranges)
	return out
}

// IsActive reports whether bin is active.
func (m Mask) IsActive(bin int) bool {
	i := sort.Search(len(m.ranges), func(i int) bool { return m.ranges[i].End() > bin })
	return i < len(m.ranges) && m.ranges[i].Start <= bin
}

// Cut deactivates n bins starting at start. Bins outside the array are
// ignored. Cutting an already inactive range is a no-op.
func (m Mask) Cut(start, n int) Mask {
	end := start + n
	if start < 0 {
		start = 0
	}
	if end > m.arraySize {
		end = m.arraySize
	}
	if n <= 0 || start >= end {
		return m.clone()
	}

	out := Mask{arraySize: m.arraySize, ranges: make([]Range, 0, len(m.ranges)+1)}
	for _, r := range m.ranges {
		if r.End() <= start || r.Start >= end {
			out.ranges = append(out.ranges, r)
			continue
		}
		if r.Start < start {
			out.ranges = append(out.ranges, Range{Start: r.Start, Len: start - r.Start})
		}
		if r.End() > end {
			out.ranges = append(out.ranges, Range{Start: end, Len: r.End() - end})
		}
	}
	return out
}

// CutBelow deactivates every bin below first.
func (m Mask) CutBelow(first int) Mask {
	if first <= 0 {
		return m.clone()
	}
	return m.Cut(0, first)
}

// Restrict keeps only bins in [first, last] active.
func (m Mask) Restrict(first, last int) Mask {
	out := m.CutBelow(first)
	if last+1 < m.arraySize {
		out = out.Cut(last+1, m.arraySize-last-1)
	}
	return out
}

// ActiveBins returns the strictly increasing list of active bin indices.
func (m Mask) ActiveBins() []int {
	out := make([]int, 0, m.Size())
	m.ForEach(func(bin int) { out = append(out, bin) })
	return out
}

// ForEach calls fn for every active bin in ascending order.
func (m Mask) ForEach(fn func(bin int)) {
	for _, r := range m.ranges {
		for b := r.Start; b < r.End(); b++ {
			fn(b)
		}
	}
}

// FindPositionOrNext returns the first active bin >= bin. ok is false when
// no such bin exists.
func (m Mask) FindPositionOrNext(bin int) (next int, ok bool) {
	i := sort.Search(len(m.ranges), func(i int) bool { return m.ranges[i].End() > bin })
	if i == len(m.ranges) {
		return 0, false
	}
	if m.ranges[i].Start > bin {
		return m.ranges[i].Start, true
	}
	return bin, true
}

// Equal reports whether two masks select the same bins of the same array.
func (m Mask) Equal(o Mask) bool {
	if m.arraySize != o.arraySize || len(m.ranges) != len(o.ranges) {
		return false
	}
	for i := range m.ranges {
		if m.ranges[i] != o.ranges[i] {
			return false
		}
	}
	return true
}

func (m Mask) clone() Mask {
	return Mask{arraySize: m.arraySize, ranges: m.Ranges()}
}
