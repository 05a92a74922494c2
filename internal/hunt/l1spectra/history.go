package l1spectra

// History is a bounded ring buffer of the most recent slices. It lets a
// freshly started collection window recover lead-time spectra that streamed
// past before its track was known. Not safe for concurrent use.
type History struct {
	buf   []Slice
	start int
	n     int
}

// NewHistory returns a history keeping at most depth slices. depth <= 0
// yields a history that keeps nothing.
func NewHistory(depth int) *History {
	if depth < 0 {
		depth = 0
	}
	return &History{buf: make([]Slice, depth)}
}

// Depth returns the capacity of the history.
func (h *History) Depth() int { return len(h.buf) }

// Len returns the number of slices held.
func (h *History) Len() int { return h.n }

// Push appends s, evicting the oldest slice when full.
func (h *History) Push(s Slice) {
	if len(h.buf) == 0 {
		return
	}
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = s
		h.n++
		return
	}
	h.buf[h.start] = s
	h.start = (h.start + 1) % len(h.buf)
}

// Slices returns the held slices, oldest first.
func (h *History) Slices() []Slice {
	out := make([]Slice, h.n)
	for i := 0; i < h.n; i++ {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

// Reset drops every held slice.
func (h *History) Reset() {
	for i := range h.buf {
		h.buf[i] = Slice{}
	}
	h.start, h.n = 0, 0
}
