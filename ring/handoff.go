package ring

import "sync"

// DefaultHandoffSize is large enough to absorb scheduling jitter of the
// consumer thread.
const DefaultHandoffSize = 1 << 20

// Handoff is a byte circular buffer between an OS callback thread and the
// application thread. Neither side blocks longer than a copy. Writes never
// fail: when there is no room the oldest whole frames are overwritten and
// the overflow is reported.
type Handoff struct {
	m     sync.Mutex
	data  []byte
	align int
	start int
	n     int
}

// NewHandoff returns a handoff of size bytes holding frames of align bytes.
// Size is rounded down to a multiple of align.
func NewHandoff(size, align int) *Handoff {
	if align < 1 {
		align = 1
	}
	size -= size % align
	if size < align {
		size = align
	}
	return &Handoff{
		data:  make([]byte, size),
		align: align,
	}
}

// Write stores p and reports whether older data was dropped to make room.
// If p is larger than the whole buffer only its tail is kept.
func (h *Handoff) Write(p []byte) (overflow bool) {
	p = p[:len(p)-len(p)%h.align]
	h.m.Lock()
	defer h.m.Unlock()
	if len(p) > len(h.data) {
		p = p[len(p)-len(h.data):]
		overflow = true
	}
	if drop := h.n + len(p) - len(h.data); drop > 0 {
		if rem := drop % h.align; rem != 0 {
			drop += h.align - rem
		}
		h.start = (h.start + drop) % len(h.data)
		h.n -= drop
		overflow = true
	}
	h.put(p)
	return overflow
}

// WriteAvailable stores as many whole frames of p as fit without
// overwriting and returns the number of bytes stored.
func (h *Handoff) WriteAvailable(p []byte) int {
	h.m.Lock()
	defer h.m.Unlock()
	free := len(h.data) - h.n
	if len(p) > free {
		p = p[:free]
	}
	p = p[:len(p)-len(p)%h.align]
	h.put(p)
	return len(p)
}

// put copies p at the end of stored data. Caller must ensure it fits.
func (h *Handoff) put(p []byte) {
	end := (h.start + h.n) % len(h.data)
	c := copy(h.data[end:], p)
	copy(h.data, p[c:])
	h.n += len(p)
}

// Read moves at most len(p) bytes of whole frames into p and returns the
// number of bytes read. Zero means no data is available.
func (h *Handoff) Read(p []byte) int {
	h.m.Lock()
	defer h.m.Unlock()
	size := min(len(p)-len(p)%h.align, h.n)
	if size == 0 {
		return 0
	}
	c := copy(p[:size], h.data[h.start:])
	copy(p[c:size], h.data)
	h.start = (h.start + size) % len(h.data)
	h.n -= size
	return size
}

// Len returns the number of stored bytes.
func (h *Handoff) Len() int {
	h.m.Lock()
	defer h.m.Unlock()
	return h.n
}

// Free returns the number of bytes that can be written without overflow.
func (h *Handoff) Free() int {
	h.m.Lock()
	defer h.m.Unlock()
	return len(h.data) - h.n
}

// Cap returns the capacity in bytes.
func (h *Handoff) Cap() int {
	return len(h.data)
}

// Reset drops all stored data.
func (h *Handoff) Reset() {
	h.m.Lock()
	defer h.m.Unlock()
	h.start, h.n = 0, 0
}
