// TETRADEC - A TETRA air interface decoder and security analysis engine.
// Copyright (C) 2026 The tetradec authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package frame

// BitBuffer is a fixed-size ring of demodulated bits addressed by
// absolute stream offset, with burst boundary markers. Writes past
// capacity evict the oldest bits; reads of evicted ranges fail rather
// than returning stale data.
type BitBuffer struct {
	buf   []byte
	head  uint64 // absolute offset of the next bit written
	marks []uint64
}

// NewBitBuffer allocates a ring holding the most recent n bits.
func NewBitBuffer(n int) *BitBuffer {
	if n < BitsPerBurst {
		n = BitsPerBurst
	}
	return &BitBuffer{buf: make([]byte, n)}
}

// Write appends bits to the stream.
func (b *BitBuffer) Write(bits []byte) {
	for _, bit := range bits {
		b.buf[b.head%uint64(len(b.buf))] = bit & 1
		b.head++
	}
	// Drop markers that have scrolled out of the ring.
	low := b.Start()
	trim := 0
	for trim < len(b.marks) && b.marks[trim] < low {
		trim++
	}
	if trim > 0 {
		b.marks = append(b.marks[:0], b.marks[trim:]...)
	}
}

// End returns the absolute offset one past the newest bit.
func (b *BitBuffer) End() uint64 { return b.head }

// Start returns the absolute offset of the oldest retained bit.
func (b *BitBuffer) Start() uint64 {
	if b.head <= uint64(len(b.buf)) {
		return 0
	}
	return b.head - uint64(len(b.buf))
}

// Range copies n bits starting at absolute offset start. ok is false if
// any part of the range has been evicted or not yet written.
func (b *BitBuffer) Range(start uint64, n int) (bits []byte, ok bool) {
	if n <= 0 || start < b.Start() || start+uint64(n) > b.head {
		return nil, false
	}
	bits = make([]byte, n)
	for idx := range bits {
		bits[idx] = b.buf[(start+uint64(idx))%uint64(len(b.buf))]
	}
	return bits, true
}

// MarkBurst records a burst boundary at absolute offset start.
func (b *BitBuffer) MarkBurst(start uint64) {
	b.marks = append(b.marks, start)
}

// Marks returns the burst boundaries still inside the ring.
func (b *BitBuffer) Marks() []uint64 {
	out := make([]uint64, len(b.marks))
	copy(out, b.marks)
	return out
}
