package sds

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestReassembleReverseOrder(t *testing.T) {
	r := NewReassembler(DefaultTimeout, quietLogger())
	now := time.Now()

	first := []byte("0123456789")
	second := []byte("ABCDEFGHIJ")

	// Final fragment first, declared 2-of-2.
	msg := r.Add(Fragment{Source: 12345, SeqBase: 3, Index: 1, Total: 2, Final: true, Payload: second}, now)
	if msg != nil {
		t.Fatal("emitted on a partial assembly")
	}
	msg = r.Add(Fragment{Source: 12345, SeqBase: 3, Index: 0, Payload: first}, now)
	if msg == nil {
		t.Fatal("no message after all fragments arrived")
	}
	if len(msg.Payload) != 20 || !bytes.Equal(msg.Payload, append(append([]byte{}, first...), second...)) {
		t.Fatalf("payload: %q", msg.Payload)
	}
	if msg.Fragments != 2 || msg.Source != 12345 {
		t.Fatalf("message: %+v", msg)
	}
}

func TestFinalizeIdempotent(t *testing.T) {
	r := NewReassembler(DefaultTimeout, quietLogger())
	now := time.Now()

	final := Fragment{Source: 7, SeqBase: 1, Index: 1, Final: true, Payload: []byte("WORLD")}
	r.Add(Fragment{Source: 7, SeqBase: 1, Index: 0, Payload: []byte("HELLO ")}, now)

	if msg := r.Add(final, now); msg == nil {
		t.Fatal("completion not emitted")
	}
	if msg := r.Add(final, now); msg != nil {
		t.Fatal("duplicate final fragment double-emitted")
	}
	if msg := r.Add(final, now.Add(time.Second)); msg != nil {
		t.Fatal("late duplicate double-emitted")
	}
}

func TestAssembliesKeyedIndependently(t *testing.T) {
	r := NewReassembler(DefaultTimeout, quietLogger())
	now := time.Now()

	// Same sender, different sequence bases: no mixing.
	r.Add(Fragment{Source: 9, SeqBase: 1, Index: 0, Payload: []byte("AAA")}, now)
	r.Add(Fragment{Source: 9, SeqBase: 2, Index: 0, Payload: []byte("BBB")}, now)
	if r.Pending() != 2 {
		t.Fatalf("pending: %d", r.Pending())
	}

	msg := r.Add(Fragment{Source: 9, SeqBase: 2, Index: 1, Final: true, Payload: []byte("CCC")}, now)
	if msg == nil || !bytes.Equal(msg.Payload, []byte("BBBCCC")) {
		t.Fatalf("wrong assembly completed: %+v", msg)
	}
	if r.Pending() != 1 {
		t.Fatalf("pending after completion: %d", r.Pending())
	}
}

func TestSweepDropsStaleAssemblies(t *testing.T) {
	r := NewReassembler(10*time.Second, quietLogger())
	start := time.Now()

	r.Add(Fragment{Source: 1, SeqBase: 0, Index: 0, Payload: []byte("X")}, start)
	r.Add(Fragment{Source: 2, SeqBase: 0, Index: 0, Payload: []byte("Y")}, start.Add(5*time.Second))

	if dropped := r.Sweep(start.Add(6 * time.Second)); dropped != 0 {
		t.Fatalf("dropped live assemblies: %d", dropped)
	}
	if dropped := r.Sweep(start.Add(11 * time.Second)); dropped != 1 {
		t.Fatalf("dropped: %d, want 1", dropped)
	}
	if r.Pending() != 1 {
		t.Fatalf("pending: %d", r.Pending())
	}
	if dropped := r.Flush(); dropped != 1 {
		t.Fatalf("flush dropped: %d", dropped)
	}
	if r.Pending() != 0 {
		t.Fatal("flush left assemblies behind")
	}
}

func TestDecodeSDS1Text(t *testing.T) {
	data := []byte{0x05, 0x00, 0xC8, 'H', 'E', 'L', 'L', 'O'}
	d := Decode(data)
	if d.Encoding != Encoding8Bit || d.Text != "HELLO" {
		t.Fatalf("decoded: %+v", d)
	}
}

func TestDecodeGSM7(t *testing.T) {
	packed := PackGSM7("STATUS OK")
	data := append([]byte{0x07, 0x00, 9}, packed...)

	d := Decode(data)
	if d.Encoding != Encoding7Bit {
		t.Fatalf("encoding: %s", d.Encoding)
	}
	if d.Text != "STATUS OK" {
		t.Fatalf("text: %q", d.Text)
	}
}

func TestDecodeLatin1AndASCII(t *testing.T) {
	d := Decode(append([]byte{PIDText}, []byte("Einsatz beendet")...))
	if d.Encoding != Encoding8Bit || d.Text != "Einsatz beendet" {
		t.Fatalf("latin-1: %+v", d)
	}

	d = Decode(append([]byte{PIDSimpleText}, []byte("UNIT 42 ON SCENE")...))
	if d.Encoding != Encoding8Bit || d.Text != "UNIT 42 ON SCENE" {
		t.Fatalf("ascii: %+v", d)
	}
}

func TestDecodeLocationShortReport(t *testing.T) {
	var bits []byte
	push := func(val uint32, width int) {
		for i := width - 1; i >= 0; i-- {
			bits = append(bits, byte(val>>uint(i))&1)
		}
	}
	push(0, 2)         // short report
	push(0, 2)         // time elapsed
	push(1<<21, 24)    // latitude raw -> 22.5 degrees
	push(1<<22, 25)    // longitude raw -> 45 degrees
	push(0, 12)        // pos error, velocity, direction
	push(0x7f, 7)      // padding, nonzero so the tail survives trimming

	payload := make([]byte, len(bits)/8)
	for i, b := range bits {
		payload[i/8] |= b << uint(7-i%8)
	}

	d := Decode(append([]byte{PIDLocation}, payload...))
	if d.Encoding != EncodingLocation || d.Location == nil {
		t.Fatalf("decoded: %+v", d)
	}
	if d.Location.Latitude != 22.5 || d.Location.Longitude != 45.0 {
		t.Fatalf("position: %f, %f", d.Location.Latitude, d.Location.Longitude)
	}
}

func TestDecodeNMEAFallback(t *testing.T) {
	sentence := "$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A"
	d := Decode(append([]byte{PIDGPS}, []byte(sentence)...))
	if d.Encoding != EncodingLocation || d.Location == nil || d.Location.NMEA == "" {
		t.Fatalf("decoded: %+v", d)
	}
}

func TestDecodeBinaryEntropy(t *testing.T) {
	// High-entropy payload: flagged as likely ciphertext, preview only.
	random := make([]byte, 24)
	for i := range random {
		random[i] = byte(0x80 + i*5)
	}
	d := Decode(append([]byte{0xE0}, random...))
	if d.Encoding != EncodingBinary || !d.Encrypted {
		t.Fatalf("high entropy: %+v", d)
	}
	if d.Preview == "" {
		t.Fatal("binary payload lost its preview")
	}

	// Low-entropy structured binary: binary but not flagged encrypted.
	d = Decode(append([]byte{0xE0}, bytes.Repeat([]byte{0x10}, 12)...))
	if d.Encoding != EncodingBinary || d.Encrypted {
		t.Fatalf("low entropy: %+v", d)
	}
}

func TestGSM7RoundTrip(t *testing.T) {
	for _, text := range []string{
		"HELLO",
		"STATUS OK",
		"Einsatz 5 beendet um 14:30",
	} {
		got := UnpackGSM7(PackGSM7(text), len([]rune(text)), 0)
		if got != text {
			t.Fatalf("round trip %q -> %q", text, got)
		}
	}
}

func TestGSM7UDH(t *testing.T) {
	packed := PackGSM7("PAYLOAD")
	data := append([]byte{0x02, 0xAA, 0xBB}, packed...)
	// 3 header octets occupy 4 septets, plus 7 payload septets.
	if got := UnpackGSM7UDH(data, 11); got != "PAYLOAD" {
		t.Fatalf("UDH decode: %q", got)
	}
	if got := UnpackGSM7UDH([]byte{0x00, 0x01}, 0); got != "" {
		t.Fatalf("zero-length UDH decoded %q", got)
	}
}
