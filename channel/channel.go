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

// Package channel deinterleaves burst data fields and applies the
// tolerant integrity check. Real captured TETRA bursts routinely carry
// residual bit errors after demodulation, so verification accepts a
// bounded Hamming distance on the check value, backstopped by a
// bit-distribution gate against degenerate all-0/all-1 payloads.
package channel

import (
	"github.com/pkg/errors"

	"tetradec/crc"
	"tetradec/frame"
)

// Burst data field geometry: two 108-bit half-slot blocks around the
// 14-bit training sequence.
const (
	FieldBits  = 216
	HalfBits   = 108
	trainStart = 108
	trainEnd   = 122
	fieldEnd   = 230

	PayloadBits = FieldBits - 16
)

// Deinterleave strides, co-prime with their block lengths.
const (
	SignallingStride = 101
	SpeechStride     = 53
)

// Result is the outcome of channel-decoding one burst.
type Result struct {
	// Payload is the deinterleaved data field without the check value,
	// one bit per byte.
	Payload []byte

	CRCOK bool
	// BitErrors is the Hamming distance between computed and received
	// check values; 0 on an exact match.
	BitErrors int
	// DistributionOK reports the ones-ratio sanity gate on the payload.
	DistributionOK bool
	// Stolen marks a mixed-interleave burst whose first half-slot was
	// stolen for signalling.
	Stolen bool
}

// Decoder validates burst data fields. The tolerance and distribution
// bounds are empirically tuned defaults, not protocol constants.
type Decoder struct {
	CRC       crc.CRC
	Tolerance int
	MinRatio  float64
	MaxRatio  float64
}

func NewDecoder(tolerance int) Decoder {
	return Decoder{
		CRC:       crc.NewCCITT(),
		Tolerance: tolerance,
		MinRatio:  0.15,
		MaxRatio:  0.85,
	}
}

// Decode extracts, deinterleaves and verifies the data field of a
// burst. stolen requests mixed deinterleaving for a frame-stealing
// burst. Linearization bursts carry no data field.
func (d Decoder) Decode(b frame.Burst, stolen bool) (Result, error) {
	if b.Type == frame.BurstLinearization {
		return Result{}, errors.New("channel: linearization burst carries no data")
	}
	if len(b.Bits) < fieldEnd {
		return Result{}, errors.Errorf("channel: burst truncated at %d bits", len(b.Bits))
	}

	field := make([]byte, 0, FieldBits)
	field = append(field, b.Bits[:trainStart]...)
	field = append(field, b.Bits[trainEnd:fieldEnd]...)

	switch {
	case b.Type == frame.BurstNormal && stolen:
		// First half-slot stolen for signalling, second half remains
		// speech-interleaved.
		field = append(
			deinterleave(field[:HalfBits], SignallingStride),
			deinterleave(field[HalfBits:], SpeechStride)...,
		)
	case b.Type == frame.BurstNormal:
		field = append(
			deinterleave(field[:HalfBits], SpeechStride),
			deinterleave(field[HalfBits:], SpeechStride)...,
		)
	default:
		// Control and sync bursts interleave the whole field as one
		// signalling block.
		field = deinterleave(field, SignallingStride)
	}

	res := Result{
		Payload: field[:PayloadBits],
		Stolen:  b.Type == frame.BurstNormal && stolen,
	}

	ratio := frame.OnesRatio(res.Payload)
	res.DistributionOK = ratio > d.MinRatio && ratio < d.MaxRatio

	ok, dist := d.CRC.Verify(res.Payload, field[PayloadBits:], d.Tolerance)
	res.BitErrors = dist
	// Exact matches always pass; tolerated near-misses additionally
	// require a sane bit distribution.
	res.CRCOK = dist == 0 || (ok && res.DistributionOK)

	return res, nil
}

func deinterleave(in []byte, stride int) []byte {
	out := make([]byte, len(in))
	for k := range out {
		out[k] = in[stride*k%len(in)]
	}
	return out
}

// Interleave is the encode-side inverse of the decoder's permutation,
// used to build test vectors and loopback fixtures.
func Interleave(in []byte, stride int) []byte {
	out := make([]byte, len(in))
	for k := range in {
		out[stride*k%len(in)] = in[k]
	}
	return out
}
