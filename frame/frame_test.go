package frame

import (
	"bytes"
	"errors"
	"testing"
)

func TestPositionFromIndex(t *testing.T) {
	cases := []struct {
		index, anchor uint64
		want          Position
	}{
		{0, 0, Position{0, 0, 0, 0}},
		{1, 0, Position{0, 0, 0, 1}},
		{4, 0, Position{0, 0, 1, 0}},
		{71, 0, Position{0, 0, 17, 3}},
		{72, 0, Position{0, 1, 0, 0}},
		{BurstsPerHyperframe, 0, Position{1, 0, 0, 0}},
		{BurstsPerHyperframe + 77, BurstsPerHyperframe, Position{0, 1, 1, 1}},
	}
	for _, c := range cases {
		if got := PositionFromIndex(c.index, c.anchor); got != c.want {
			t.Errorf("PositionFromIndex(%d, %d) = %v, want %v", c.index, c.anchor, got, c.want)
		}
	}
}

func TestNewBurstShort(t *testing.T) {
	_, err := NewBurst(make([]byte, 100), BurstNormal, 0.9, 0)
	if !errors.Is(err, ErrShortBurst) {
		t.Fatalf("NewBurst short input: err = %v, want ErrShortBurst", err)
	}
}

func TestNewBurstCopies(t *testing.T) {
	bits := make([]byte, BitsPerBurst)
	bits[0] = 1
	b, err := NewBurst(bits, BurstSync, 0.95, 7)
	if err != nil {
		t.Fatal(err)
	}
	bits[0] = 0
	if b.Bits[0] != 1 {
		t.Error("Burst shares storage with caller's slice")
	}
}

func TestBitBytesRoundTrip(t *testing.T) {
	data := []byte{0xA5, 0x01, 0xFF, 0x00}
	if got := BitsToBytes(BytesToBits(data)); !bytes.Equal(got, data) {
		t.Errorf("round trip = %x, want %x", got, data)
	}
}

func TestUintInt(t *testing.T) {
	bits := BytesToBits([]byte{0b10110100, 0b11000000})
	if got := Uint(bits, 0, 3); got != 0b101 {
		t.Errorf("Uint(0,3) = %d, want 5", got)
	}
	if got := Uint(bits, 3, 5); got != 0b10100 {
		t.Errorf("Uint(3,5) = %d, want 20", got)
	}
	if got := Int(bits, 0, 3); got != -3 {
		t.Errorf("Int(0,3) = %d, want -3", got)
	}
	if got := Uint(bits, 10, 20); got != 0 {
		t.Errorf("Uint out of range = %d, want 0", got)
	}
}

func TestOnesRatio(t *testing.T) {
	if got := OnesRatio([]byte{1, 1, 0, 0}); got != 0.5 {
		t.Errorf("OnesRatio = %v, want 0.5", got)
	}
	if got := OnesRatio(nil); got != 0 {
		t.Errorf("OnesRatio(nil) = %v, want 0", got)
	}
}

func TestBitBufferRangeAndEviction(t *testing.T) {
	b := NewBitBuffer(BitsPerBurst)
	first := make([]byte, BitsPerBurst)
	for i := range first {
		first[i] = byte(i % 2)
	}
	b.Write(first)
	got, ok := b.Range(0, BitsPerBurst)
	if !ok || !bytes.Equal(got, first) {
		t.Fatal("Range over full ring failed")
	}

	b.MarkBurst(0)
	b.Write([]byte{1, 1, 1, 1})
	if _, ok := b.Range(0, 8); ok {
		t.Error("Range returned evicted bits")
	}
	if len(b.Marks()) != 0 {
		t.Error("evicted mark survived")
	}

	tail, ok := b.Range(b.End()-4, 4)
	if !ok || !bytes.Equal(tail, []byte{1, 1, 1, 1}) {
		t.Errorf("tail = %v ok=%v", tail, ok)
	}
}
