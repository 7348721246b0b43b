package mac

import (
	"bytes"
	"errors"
	"testing"
)

func appendBits(dst []byte, val uint32, width int) []byte {
	for i := width - 1; i >= 0; i-- {
		dst = append(dst, byte(val>>uint(i))&1)
	}
	return dst
}

func appendOctets(dst []byte, octets ...byte) []byte {
	for _, o := range octets {
		dst = appendBits(dst, uint32(o), 8)
	}
	return dst
}

func TestParseResource(t *testing.T) {
	var bits []byte
	bits = appendBits(bits, majorResource, 2)
	bits = appendBits(bits, EncModeSCK, 2)
	bits = appendBits(bits, 1, 1) // fill present
	bits = appendBits(bits, 0x123456, 24)
	bits = appendBits(bits, 2, 6) // two octets
	bits = appendOctets(bits, 0xDE, 0xAD)
	bits = appendBits(bits, 0, 5) // fill

	p, err := Parse(bits)
	if err != nil {
		t.Fatal(err)
	}
	if p.Type != PduResource {
		t.Fatalf("type: %s", p.Type)
	}
	if !p.Encrypted || p.EncryptionMode != EncModeSCK {
		t.Fatalf("encryption: mode %d encrypted %v", p.EncryptionMode, p.Encrypted)
	}
	if !p.HasAddress || p.Address != 0x123456 {
		t.Fatalf("address: %06x", p.Address)
	}
	if !bytes.Equal(p.Payload, []byte{0xDE, 0xAD}) {
		t.Fatalf("payload: %x", p.Payload)
	}
	if p.FillBits != 5 {
		t.Fatalf("fill bits: %d", p.FillBits)
	}
}

func TestFillStrippedByDeclaredLengthOnly(t *testing.T) {
	// Fill bits that happen to look like data must still be stripped;
	// only the length indicator decides.
	var bits []byte
	bits = appendBits(bits, majorResource, 2)
	bits = appendBits(bits, EncModeClear, 2)
	bits = appendBits(bits, 1, 1)
	bits = appendBits(bits, 42, 24)
	bits = appendBits(bits, 1, 6)
	bits = appendOctets(bits, 0x41)
	bits = appendOctets(bits, 0x42, 0x43) // fill resembling ASCII

	p, err := Parse(bits)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(p.Payload, []byte{0x41}) {
		t.Fatalf("payload: %x", p.Payload)
	}
	if p.FillBits != 16 {
		t.Fatalf("fill bits: %d", p.FillBits)
	}
	if p.Encrypted {
		t.Fatal("clear mode PDU marked encrypted")
	}
}

func TestParseBroadcastSysinfo(t *testing.T) {
	var bits []byte
	bits = appendBits(bits, majorBroadcast, 2)
	bits = appendBits(bits, 0, 2) // SYSINFO
	bits = appendBits(bits, 262, 10)
	bits = appendBits(bits, 1007, 14)
	bits = appendBits(bits, 13, 6)
	bits = appendOctets(bits, 0x00, 0x00)

	p, err := Parse(bits)
	if err != nil {
		t.Fatal(err)
	}
	if p.Type != PduBroadcast || p.Sysinfo == nil {
		t.Fatalf("not a sysinfo broadcast: %+v", p)
	}
	if p.Sysinfo.MCC != 262 || p.Sysinfo.MNC != 1007 || p.Sysinfo.ColourCode != 13 {
		t.Fatalf("sysinfo: %+v", p.Sysinfo)
	}
}

func TestParseEndSequence(t *testing.T) {
	var bits []byte
	bits = appendBits(bits, majorExtended, 2)
	bits = appendBits(bits, 0, 3) // MAC-END
	bits = appendBits(bits, EncModeDCK, 2)
	bits = appendBits(bits, 0, 1)
	bits = appendBits(bits, 0xABCDEF, 24)
	bits = appendBits(bits, 0x73, 8) // base 7, index 3
	bits = appendBits(bits, 1, 6)
	bits = appendOctets(bits, 0x99)

	p, err := Parse(bits)
	if err != nil {
		t.Fatal(err)
	}
	if p.Type != PduEnd {
		t.Fatalf("type: %s", p.Type)
	}
	if p.SequenceBase() != 7 || p.FragmentIndex() != 3 {
		t.Fatalf("sequence: base %d index %d", p.SequenceBase(), p.FragmentIndex())
	}
	if !bytes.Equal(p.Payload, []byte{0x99}) {
		t.Fatalf("payload: %x", p.Payload)
	}
}

func TestParseUSignal(t *testing.T) {
	var bits []byte
	bits = appendBits(bits, majorExtended, 2)
	bits = appendBits(bits, 2, 3) // MAC-U-SIGNAL
	bits = appendBits(bits, EncModeClear, 2)
	bits = appendBits(bits, 0, 1)
	bits = appendBits(bits, 0, 6) // rest of slot
	bits = appendOctets(bits, 0x00, 0x01, 0xF4, 0x00, 0x00, 0x64)

	p, err := Parse(bits)
	if err != nil {
		t.Fatal(err)
	}
	if p.Type != PduUSignal {
		t.Fatalf("type: %s", p.Type)
	}
	if p.HasAddress {
		t.Fatal("u-signal has no header address")
	}
	if len(p.Payload) != 6 {
		t.Fatalf("payload: %x", p.Payload)
	}
}

func TestUnknownTypeIsNotAnError(t *testing.T) {
	var bits []byte
	bits = appendBits(bits, majorExtended, 2)
	bits = appendBits(bits, 6, 3) // reserved subtype
	bits = appendBits(bits, 0, 3)
	bits = appendOctets(bits, 0xFF, 0xFF)

	p, err := Parse(bits)
	if err != nil {
		t.Fatal(err)
	}
	if p.Type != PduUnknown {
		t.Fatalf("type: %s", p.Type)
	}
	if p.Sysinfo != nil || p.HasAddress {
		t.Fatal("unknown PDU carries metadata fields")
	}
}

func TestTruncated(t *testing.T) {
	var bits []byte
	bits = appendBits(bits, majorResource, 2)
	bits = appendBits(bits, 0, 3)
	bits = appendBits(bits, 42, 10) // address cut short

	if _, err := Parse(bits); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}

	if _, err := Parse(bits[:4]); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated on tiny input, got %v", err)
	}
}

func TestImplausibleLengthRejected(t *testing.T) {
	var bits []byte
	bits = appendBits(bits, majorResource, 2)
	bits = appendBits(bits, 0, 2)
	bits = appendBits(bits, 0, 1)
	bits = appendBits(bits, 1, 24)
	bits = appendBits(bits, 63, 6) // 63 octets cannot fit the slot
	bits = appendOctets(bits, 0x01, 0x02)

	if _, err := Parse(bits); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated on bogus length, got %v", err)
	}
}
