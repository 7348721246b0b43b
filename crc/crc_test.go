package crc

import (
	mrand "math/rand"
	"testing"
)

const Trials = 512

func randBits(r *mrand.Rand, n int) []byte {
	bits := make([]byte, n)
	for idx := range bits {
		bits[idx] = byte(r.Intn(2))
	}
	return bits
}

// Appending the computed check bits to a payload must verify exactly.
func TestIdentity(t *testing.T) {
	crc := NewCCITT()
	r := mrand.New(mrand.NewSource(0x7e7a))

	for trial := 0; trial < Trials; trial++ {
		payload := randBits(r, 8+r.Intn(256))
		check := crc.ChecksumBits(payload)

		ok, dist := crc.Verify(payload, check, 0)
		if !ok || dist != 0 {
			t.Fatalf("identity failed: ok=%v dist=%d", ok, dist)
		}
	}
}

func TestVerifyTolerance(t *testing.T) {
	crc := NewCCITT()
	r := mrand.New(mrand.NewSource(0x1021))

	for flips := 0; flips <= 5; flips++ {
		payload := randBits(r, 124)
		check := crc.ChecksumBits(payload)
		for idx := 0; idx < flips; idx++ {
			check[idx] ^= 1
		}

		ok, dist := crc.Verify(payload, check, 3)
		if dist != flips {
			t.Errorf("flips=%d: dist=%d", flips, dist)
		}
		if want := flips <= 3; ok != want {
			t.Errorf("flips=%d: ok=%v, want %v", flips, ok, want)
		}
	}
}

func TestVerifyBadCheckLength(t *testing.T) {
	crc := NewCCITT()
	ok, dist := crc.Verify(make([]byte, 32), make([]byte, 15), 3)
	if ok || dist != -1 {
		t.Errorf("short check: ok=%v dist=%d", ok, dist)
	}
}

func TestDistance(t *testing.T) {
	if d := Distance([]byte{1, 0, 1}, []byte{1, 1, 0}); d != 2 {
		t.Errorf("Distance = %d, want 2", d)
	}
	if d := Distance([]byte{1}, []byte{1, 0}); d != -1 {
		t.Errorf("Distance length mismatch = %d, want -1", d)
	}
}
