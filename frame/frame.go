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

// Package frame holds the TETRA physical-layer data model: bursts, the
// TDMA frame hierarchy and the bit ring buffer the synchronizer
// correlates over when a burst arrives unscored.
package frame

import (
	"errors"
	"fmt"
	"time"
)

// TDMA timing hierarchy: 4 slots per frame, 18 frames per multiframe,
// 60 multiframes per hyperframe.
const (
	SymbolsPerSlot           = 255
	BitsPerBurst             = SymbolsPerSlot * 2
	SlotsPerFrame            = 4
	FramesPerMultiframe      = 18
	MultiframesPerHyperframe = 60

	BurstsPerMultiframe = SlotsPerFrame * FramesPerMultiframe
	BurstsPerHyperframe = BurstsPerMultiframe * MultiframesPerHyperframe
)

// BurstPeriod is the on-air duration of one slot (14.167ms).
const BurstPeriod = 14167 * time.Microsecond

// BurstType tags the physical burst variant carried in one slot.
type BurstType byte

const (
	BurstNormal BurstType = iota
	BurstControl
	BurstSync
	BurstLinearization
)

func (t BurstType) String() string {
	switch t {
	case BurstNormal:
		return "normal"
	case BurstControl:
		return "control"
	case BurstSync:
		return "sync"
	case BurstLinearization:
		return "linearization"
	}
	return fmt.Sprintf("unknown(%d)", byte(t))
}

var ErrShortBurst = errors.New("frame: undersized burst")

// Burst is one slot's worth of demodulated bits. Bits are one bit per
// byte (0 or 1), the convention used throughout the decode path.
// A Burst is immutable after construction.
type Burst struct {
	Bits        []byte
	Type        BurstType
	Correlation float64
	Index       uint64
}

// NewBurst copies bits into an immutable Burst. Undersized input is the
// one unrecoverable per-burst condition; callers skip, count and
// continue.
func NewBurst(bits []byte, typ BurstType, corr float64, index uint64) (Burst, error) {
	if len(bits) < BitsPerBurst {
		return Burst{}, fmt.Errorf("%w: got %d bits, want %d", ErrShortBurst, len(bits), BitsPerBurst)
	}
	b := Burst{
		Bits:        make([]byte, BitsPerBurst),
		Type:        typ,
		Correlation: corr,
		Index:       index,
	}
	copy(b.Bits, bits)
	return b, nil
}

// Position locates a burst inside the TDMA hierarchy.
type Position struct {
	Hyperframe int
	Multiframe int
	Frame      int
	Slot       int
}

// PositionFromIndex derives the hierarchy position of a burst index by
// modular arithmetic. The anchor is the index at which the hierarchy
// was last known to start; after a gap the caller re-anchors rather
// than assuming monotonic continuity.
func PositionFromIndex(index, anchor uint64) Position {
	n := index - anchor
	return Position{
		Hyperframe: int(n / BurstsPerHyperframe),
		Multiframe: int(n / BurstsPerMultiframe % MultiframesPerHyperframe),
		Frame:      int(n / SlotsPerFrame % FramesPerMultiframe),
		Slot:       int(n % SlotsPerFrame),
	}
}

func (p Position) String() string {
	return fmt.Sprintf("%d/%d/%d/%d", p.Hyperframe, p.Multiframe, p.Frame, p.Slot)
}

// BitsToBytes packs one-bit-per-byte data MSB first, padding the final
// byte with zeros.
func BitsToBytes(bits []byte) []byte {
	out := make([]byte, (len(bits)+7)>>3)
	for idx, b := range bits {
		if b != 0 {
			out[idx>>3] |= 0x80 >> (idx & 7)
		}
	}
	return out
}

// BytesToBits unpacks bytes into one bit per byte, MSB first.
func BytesToBits(data []byte) []byte {
	out := make([]byte, len(data)*8)
	for idx := range out {
		out[idx] = data[idx>>3] >> (7 - idx&7) & 1
	}
	return out
}

// Uint extracts an unsigned big-endian field of width bits starting at
// offset. Returns 0 when the field runs past the end of bits.
func Uint(bits []byte, offset, width int) uint32 {
	if offset < 0 || width <= 0 || offset+width > len(bits) {
		return 0
	}
	var v uint32
	for _, b := range bits[offset : offset+width] {
		v = v<<1 | uint32(b&1)
	}
	return v
}

// Int extracts a two's-complement signed field of width bits.
func Int(bits []byte, offset, width int) int32 {
	v := Uint(bits, offset, width)
	if width < 32 && v&(1<<(width-1)) != 0 {
		v |= ^uint32(0) << width
	}
	return int32(v)
}

// OnesRatio reports the fraction of set bits. Used as the
// bit-distribution sanity gate in channel decoding.
func OnesRatio(bits []byte) float64 {
	if len(bits) == 0 {
		return 0
	}
	var ones int
	for _, b := range bits {
		if b != 0 {
			ones++
		}
	}
	return float64(ones) / float64(len(bits))
}
