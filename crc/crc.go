// Package crc implements the bit-granular CRC-16 used by TETRA
// signalling channels, with a Hamming-tolerant verifier for payloads
// carrying residual demodulation errors.
package crc

import "fmt"

type CRC struct {
	Name string
	Init uint16
	Poly uint16
}

// NewCCITT returns the CRC-16-CCITT parameters used by TETRA
// (init 0xFFFF, poly 0x1021).
func NewCCITT() CRC {
	return CRC{Name: "CCITT", Init: 0xFFFF, Poly: 0x1021}
}

func (crc CRC) String() string {
	return fmt.Sprintf("{Name:%s Init:0x%04X Poly:0x%04X}", crc.Name, crc.Init, crc.Poly)
}

// Checksum computes the check value over bits given one bit per byte,
// MSB first. Channel coding operates below byte alignment, so a
// table-driven byte-wise form does not apply.
func (crc CRC) Checksum(bits []byte) uint16 {
	sum := crc.Init
	for _, bit := range bits {
		sum ^= uint16(bit&1) << 15
		if sum&0x8000 != 0 {
			sum = sum<<1 ^ crc.Poly
		} else {
			sum <<= 1
		}
	}
	return sum
}

// ChecksumBits returns the check value as 16 bits, MSB first.
func (crc CRC) ChecksumBits(bits []byte) []byte {
	sum := crc.Checksum(bits)
	out := make([]byte, 16)
	for idx := range out {
		out[idx] = byte(sum >> (15 - idx) & 1)
	}
	return out
}

// Distance returns the Hamming distance between two equal-length bit
// slices, or -1 on length mismatch.
func Distance(a, b []byte) int {
	if len(a) != len(b) {
		return -1
	}
	d := 0
	for idx := range a {
		if a[idx]&1 != b[idx]&1 {
			d++
		}
	}
	return d
}

// Verify checks payload bits against 16 received check bits. An exact
// match always passes; otherwise the Hamming distance between computed
// and received check values must not exceed tolerance.
func (crc CRC) Verify(payload, check []byte, tolerance int) (ok bool, distance int) {
	if len(check) != 16 {
		return false, -1
	}
	distance = Distance(crc.ChecksumBits(payload), check)
	if distance < 0 {
		return false, distance
	}
	return distance <= tolerance, distance
}
