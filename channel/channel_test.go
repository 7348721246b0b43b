package channel

import (
	"bytes"
	mrand "math/rand"
	"testing"

	"tetradec/frame"
)

// buildBurst assembles burst bits whose data field deinterleaves to
// payload++check under the given burst type and stolen flag.
func buildBurst(t *testing.T, payload []byte, check []byte, typ frame.BurstType, stolen bool) frame.Burst {
	t.Helper()
	if len(payload)+len(check) != FieldBits {
		t.Fatalf("field must be %d bits", FieldBits)
	}
	field := append(append([]byte{}, payload...), check...)

	var wire []byte
	switch {
	case typ == frame.BurstNormal && stolen:
		wire = append(
			Interleave(field[:HalfBits], SignallingStride),
			Interleave(field[HalfBits:], SpeechStride)...,
		)
	case typ == frame.BurstNormal:
		wire = append(
			Interleave(field[:HalfBits], SpeechStride),
			Interleave(field[HalfBits:], SpeechStride)...,
		)
	default:
		wire = Interleave(field, SignallingStride)
	}

	bits := make([]byte, frame.BitsPerBurst)
	copy(bits[:108], wire[:108])
	copy(bits[122:230], wire[108:])

	b, err := frame.NewBurst(bits, typ, 0.92, 0)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func randPayload(seed int64) []byte {
	r := mrand.New(mrand.NewSource(seed))
	payload := make([]byte, PayloadBits)
	for idx := range payload {
		payload[idx] = byte(r.Intn(2))
	}
	return payload
}

func TestDecodeExactMatch(t *testing.T) {
	d := NewDecoder(3)
	for _, typ := range []frame.BurstType{frame.BurstControl, frame.BurstSync, frame.BurstNormal} {
		payload := randPayload(1)
		check := d.CRC.ChecksumBits(payload)
		res, err := d.Decode(buildBurst(t, payload, check, typ, false), false)
		if err != nil {
			t.Fatal(err)
		}
		if !res.CRCOK || res.BitErrors != 0 {
			t.Errorf("%v: CRCOK=%v BitErrors=%d", typ, res.CRCOK, res.BitErrors)
		}
		if !bytes.Equal(res.Payload, payload) {
			t.Errorf("%v: payload not recovered", typ)
		}
	}
}

func TestDecodeStolenBurst(t *testing.T) {
	d := NewDecoder(3)
	payload := randPayload(2)
	check := d.CRC.ChecksumBits(payload)
	res, err := d.Decode(buildBurst(t, payload, check, frame.BurstNormal, true), true)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Stolen {
		t.Error("Stolen flag not set")
	}
	if !res.CRCOK || !bytes.Equal(res.Payload, payload) {
		t.Error("stolen burst payload not recovered")
	}
}

func TestDecodeToleratedErrors(t *testing.T) {
	d := NewDecoder(3)
	payload := randPayload(3)
	check := d.CRC.ChecksumBits(payload)

	for flips := 1; flips <= 4; flips++ {
		damaged := append([]byte{}, check...)
		for idx := 0; idx < flips; idx++ {
			damaged[idx] ^= 1
		}
		res, err := d.Decode(buildBurst(t, payload, damaged, frame.BurstControl, false), false)
		if err != nil {
			t.Fatal(err)
		}
		if res.BitErrors != flips {
			t.Errorf("flips=%d: BitErrors=%d", flips, res.BitErrors)
		}
		if want := flips <= 3; res.CRCOK != want {
			t.Errorf("flips=%d: CRCOK=%v, want %v", flips, res.CRCOK, want)
		}
	}
}

// A degenerate payload passes on an exact check match but the
// distribution gate refuses to tolerate check-value errors on it.
func TestDecodeDistributionGate(t *testing.T) {
	d := NewDecoder(3)
	payload := make([]byte, PayloadBits) // all zeros

	check := d.CRC.ChecksumBits(payload)
	res, err := d.Decode(buildBurst(t, payload, check, frame.BurstControl, false), false)
	if err != nil {
		t.Fatal(err)
	}
	if !res.CRCOK {
		t.Error("exact match must pass regardless of distribution")
	}
	if res.DistributionOK {
		t.Error("all-zero payload reported as well distributed")
	}

	check[0] ^= 1
	res, err = d.Decode(buildBurst(t, payload, check, frame.BurstControl, false), false)
	if err != nil {
		t.Fatal(err)
	}
	if res.CRCOK {
		t.Error("tolerated error accepted on degenerate payload")
	}
}

func TestDecodeLinearization(t *testing.T) {
	d := NewDecoder(3)
	b, err := frame.NewBurst(make([]byte, frame.BitsPerBurst), frame.BurstLinearization, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Decode(b, false); err == nil {
		t.Error("linearization burst decoded without error")
	}
}

func TestDecodeTruncated(t *testing.T) {
	d := NewDecoder(3)
	if _, err := d.Decode(frame.Burst{Bits: make([]byte, 64), Type: frame.BurstControl}, false); err == nil {
		t.Error("truncated burst decoded without error")
	}
}
