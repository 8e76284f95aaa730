package reactor

// Buffer is a growable, contiguous byte container: append a view,
// query the length, truncate (resize) it, and take a read-only
// subspan — the four operations spec.md's byte buffer component
// names, with no aliasing guarantee across an Append that relocates
// the backing array. httpcodec's header/body accumulators and its
// response writer are built on top of one.
type Buffer struct {
	data []byte
}

// NewBuffer allocates a Buffer with the given starting capacity and
// zero length.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{data: make([]byte, 0, capacity)}
}

// Append adds p to the end of the buffer, growing the backing array
// if needed.
func (b *Buffer) Append(p []byte) {
	b.data = append(b.data, p...)
}

// Len reports the number of bytes currently held.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Truncate resizes the buffer to n bytes. n must not exceed Len.
func (b *Buffer) Truncate(n int) {
	b.data = b.data[:n]
}

// Slice returns the subspan [i:j) as a read-only view into the
// buffer's backing array — valid only until the next Append that
// relocates storage.
func (b *Buffer) Slice(i, j int) []byte {
	return b.data[i:j]
}

// Bytes returns the full contents currently held.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Full returns the buffer's entire capacity as a slice, ignoring its
// current logical length — the view a caller fills directly (e.g. a
// socket read) before reporting back how much of it is now valid via
// Truncate.
func (b *Buffer) Full() []byte {
	return b.data[:cap(b.data)]
}

// Reset truncates the buffer to empty, keeping its backing array for
// reuse.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
}
