// Package buffer provides the growable byte container used for session input
// and output. Storage is borrowed from a bytebufferpool and returned on
// Release, so short-lived connections do not churn the allocator.
package buffer

import (
	"fmt"

	"github.com/valyala/bytebufferpool"
)

var pool bytebufferpool.Pool

// Buffer is an ordered byte sequence supporting append, prefix-consume and
// length query. When an append does not fit, capacity is doubled (or grown to
// the required size if doubling is not enough).
//
// Buffer is not safe for concurrent use.
type Buffer struct {
	bb *bytebufferpool.ByteBuffer
}

// New returns an empty Buffer with at least the given initial capacity.
//
// Parameters:
//   - capacity: Initial capacity in bytes; values <= 0 leave the pooled default
//
// Returns:
//   - A new *Buffer; call Release when it is no longer needed
func New(capacity int) *Buffer {
	bb := pool.Get()
	if capacity > cap(bb.B) {
		bb.B = make([]byte, 0, capacity)
	}

	return &Buffer{bb: bb}
}

// Len returns the number of unconsumed bytes.
func (b *Buffer) Len() int {
	if b.bb == nil {
		return 0
	}

	return len(b.bb.B)
}

// Cap returns the current capacity of the backing storage.
func (b *Buffer) Cap() int {
	if b.bb == nil {
		return 0
	}

	return cap(b.bb.B)
}

// Bytes returns the unconsumed bytes. The slice aliases the buffer and is
// only valid until the next mutating call.
func (b *Buffer) Bytes() []byte {
	if b.bb == nil {
		return nil
	}

	return b.bb.B
}

// Append copies p to the end of the buffer.
//
// Parameters:
//   - p: The bytes to append
func (b *Buffer) Append(p []byte) {
	if len(p) == 0 {
		return
	}

	b.grow(len(p))
	b.bb.B = append(b.bb.B, p...)
}

// AppendString copies s to the end of the buffer.
//
// Parameters:
//   - s: The string to append
func (b *Buffer) AppendString(s string) {
	if len(s) == 0 {
		return
	}

	b.grow(len(s))
	b.bb.B = append(b.bb.B, s...)
}

// Appendf formats according to a format specifier and appends the result.
//
// Parameters:
//   - format: A fmt-style format string
//   - args: Arguments for the format string
func (b *Buffer) Appendf(format string, args ...any) {
	_, _ = fmt.Fprintf(b, format, args...)
}

// Write implements io.Writer. It never fails.
func (b *Buffer) Write(p []byte) (int, error) {
	b.Append(p)
	return len(p), nil
}

// Consume drops the first n bytes and shifts the remaining bytes to the
// front. n is clamped to [0, Len()].
//
// Parameters:
//   - n: Number of bytes to drop from the front
//
// Returns:
//   - The number of bytes actually dropped
func (b *Buffer) Consume(n int) int {
	l := b.Len()
	if n <= 0 || l == 0 {
		return 0
	}

	if n >= l {
		b.bb.B = b.bb.B[:0]
		return l
	}

	rest := copy(b.bb.B, b.bb.B[n:])
	b.bb.B = b.bb.B[:rest]
	return n
}

// Release returns the storage to the pool. The Buffer reads as empty
// afterwards; a later append borrows fresh storage. Safe to call multiple
// times.
func (b *Buffer) Release() {
	if b.bb == nil {
		return
	}

	pool.Put(b.bb)
	b.bb = nil
}

func (b *Buffer) grow(n int) {
	if b.bb == nil {
		b.bb = pool.Get()
	}

	need := len(b.bb.B) + n
	if need <= cap(b.bb.B) {
		return
	}

	newCap := 2 * cap(b.bb.B)
	if newCap < need {
		newCap = need
	}

	grown := make([]byte, len(b.bb.B), newCap)
	copy(grown, b.bb.B)
	b.bb.B = grown
}
