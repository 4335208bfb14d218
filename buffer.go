package rtio

// Buffer carries samples through the chain and through device rings.
// It is owned by whoever holds it at the moment; stages must not keep
// references to Data after returning.
type Buffer struct {
	// Data is the storage, its length is the buffer capacity.
	Data   []Sample
	Params Params
	// Valid is the number of meaningful samples at the start of Data.
	Valid int
	Empty bool
	// Cursor is the offset of the first sample not yet transferred to
	// hardware.
	Cursor int
}

// NewBuffer allocates an empty buffer of size samples.
func NewBuffer(size int, p Params) Buffer {
	return Buffer{
		Data:   make([]Sample, size),
		Params: p,
		Empty:  true,
	}
}

// Samples returns the valid part of the buffer.
func (b *Buffer) Samples() []Sample {
	return b.Data[:b.Valid]
}

// Pending returns valid samples not yet transferred.
func (b *Buffer) Pending() []Sample {
	if b.Cursor >= b.Valid {
		return nil
	}
	return b.Data[b.Cursor:b.Valid]
}

// Reset marks the buffer empty. Storage is kept.
func (b *Buffer) Reset() {
	b.Valid = 0
	b.Cursor = 0
	b.Empty = true
}

// Size returns the buffer capacity in samples.
func (b Buffer) Size() int {
	return len(b.Data)
}
