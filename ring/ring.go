// Package ring implements the buffering between the application pull loop
// and the hardware: Ring is the fixed array of logical buffers a device
// plays from, Handoff is the byte queue shared with an OS callback thread.
package ring

import (
	"fmt"

	"github.com/pipelined/rtio"
)

// Ring is a single-producer single-consumer ring of logical buffers.
// Fill writes at firstEmpty, the device reads from firstFull. Buffers are
// consumed strictly in fill order. Ring is not safe for concurrent use.
type Ring struct {
	buffers    []rtio.Buffer
	firstEmpty int
	firstFull  int
}

// New allocates count empty buffers of size samples.
func New(count, size int, p rtio.Params) (*Ring, error) {
	if count < 1 || size < 1 {
		return nil, rtio.Errorf(rtio.Invalid, "set buffers", fmt.Errorf("%d buffers of %d samples", count, size))
	}
	r := Ring{
		buffers: make([]rtio.Buffer, count),
	}
	for i := range r.buffers {
		r.buffers[i] = rtio.NewBuffer(size, p)
	}
	return &r, nil
}

// Len returns the number of buffers.
func (r *Ring) Len() int {
	return len(r.buffers)
}

// Size returns the size of a single buffer in samples.
func (r *Ring) Size() int {
	return r.buffers[0].Size()
}

// Slot returns a copy of the i-th buffer descriptor.
func (r *Ring) Slot(i int) rtio.Buffer {
	return r.buffers[i]
}

// Fill copies data into the buffer at firstEmpty. If that buffer is still
// occupied, BufferFull is returned and the ring is unchanged.
func (r *Ring) Fill(data []rtio.Sample) error {
	if len(data) == 0 || len(data) > r.Size() {
		return rtio.Errorf(rtio.Invalid, "fill", fmt.Errorf("%d samples into buffer of %d", len(data), r.Size()))
	}
	b := &r.buffers[r.firstEmpty]
	if !b.Empty {
		return rtio.BufferFull
	}
	b.Valid = copy(b.Data, data)
	b.Cursor = 0
	b.Empty = false
	r.firstEmpty = r.next(r.firstEmpty)
	return nil
}

// Front returns the oldest filled buffer. The caller may advance its
// Cursor; it must call Retire once the buffer is fully transferred.
func (r *Ring) Front() (*rtio.Buffer, bool) {
	b := &r.buffers[r.firstFull]
	if b.Empty {
		return nil, false
	}
	return b, true
}

// Retire marks the front buffer empty and advances to the next one.
func (r *Ring) Retire() {
	b := &r.buffers[r.firstFull]
	if b.Empty {
		return
	}
	b.Reset()
	r.firstFull = r.next(r.firstFull)
}

// Queued returns the number of filled buffers.
func (r *Ring) Queued() int {
	n := 0
	for i := range r.buffers {
		if !r.buffers[i].Empty {
			n++
		}
	}
	return n
}

// Empty reports whether no buffer is filled.
func (r *Ring) Empty() bool {
	return r.buffers[r.firstFull].Empty
}

// Full reports whether Fill would return BufferFull.
func (r *Ring) Full() bool {
	return !r.buffers[r.firstEmpty].Empty
}

// Discard drops filled buffers that did not start a transfer. A front
// buffer with a non-zero Cursor is kept so it can finish.
func (r *Ring) Discard() {
	keep := false
	if b, ok := r.Front(); ok && b.Cursor > 0 {
		keep = true
	}
	for i := range r.buffers {
		if keep && i == r.firstFull {
			continue
		}
		r.buffers[i].Reset()
	}
	r.firstEmpty = r.firstFull
	if keep {
		r.firstEmpty = r.next(r.firstFull)
	}
}

func (r *Ring) next(i int) int {
	return (i + 1) % len(r.buffers)
}
