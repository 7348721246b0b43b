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

// Package mac parses MAC layer PDUs out of decoded channel payloads.
// Parsing is a pure function over the payload bits: the parser keeps no
// state between PDUs, and an unrecognized type is a result, not an
// error.
package mac

import (
	"github.com/pkg/errors"

	"tetradec/frame"
)

// PduType enumerates the MAC PDU kinds.
type PduType int

const (
	PduResource PduType = iota
	PduFragment
	PduEnd
	PduBroadcast
	PduSupplementary
	PduUSignal
	PduData
	PduUBlock
	// PduUnknown tags PDUs whose type encoding is reserved. They still
	// produce a decoded frame, just without metadata.
	PduUnknown
)

func (t PduType) String() string {
	switch t {
	case PduResource:
		return "MAC-RESOURCE"
	case PduFragment:
		return "MAC-FRAG"
	case PduEnd:
		return "MAC-END"
	case PduBroadcast:
		return "MAC-BROADCAST"
	case PduSupplementary:
		return "MAC-SUPPL"
	case PduUSignal:
		return "MAC-U-SIGNAL"
	case PduData:
		return "MAC-DATA"
	case PduUBlock:
		return "MAC-U-BLK"
	}
	return "MAC-UNKNOWN"
}

// Encryption mode values carried in the PDU header.
const (
	EncModeClear    = 0
	EncModeSCK      = 1
	EncModeDCK      = 2
	EncModeReserved = 3
)

// Sysinfo is the network identity block of a SYSINFO broadcast.
type Sysinfo struct {
	MCC        uint32
	MNC        uint32
	ColourCode uint8
}

// Pdu is one parsed MAC PDU. Built fresh per burst payload and not
// mutated afterwards.
type Pdu struct {
	Type           PduType
	EncryptionMode uint8
	Encrypted      bool

	// Address is the 24-bit SSI or GSSI; HasAddress distinguishes a
	// genuine zero address from an absent field.
	Address    uint32
	HasAddress bool

	// Length is the declared payload length in octets. Zero means the
	// PDU claims the rest of the slot.
	Length int

	// Sequence carries the fragmentation sequence octet of frag/end
	// PDUs: high nibble is the sequence base, low nibble the fragment
	// index.
	Sequence uint8

	Payload  []byte
	FillBits int

	Sysinfo *Sysinfo
}

// SequenceBase returns the transaction identifier half of the sequence
// octet.
func (p *Pdu) SequenceBase() uint8 { return p.Sequence >> 4 }

// FragmentIndex returns the position half of the sequence octet.
func (p *Pdu) FragmentIndex() uint8 { return p.Sequence & 0x0F }

var ErrTruncated = errors.New("mac: truncated pdu")

// Wire layout constants. The two-bit major type selects resource,
// fragment or broadcast directly; the fourth encoding carries a
// three-bit subtype for the remaining kinds.
const (
	majorResource  = 0
	majorFragment  = 1
	majorBroadcast = 2
	majorExtended  = 3

	addressBits  = 24
	lengthBits   = 6
	sequenceBits = 8
)

// Parse decodes one MAC PDU from payload bits (one bit per byte). A
// reserved type encoding yields Type == PduUnknown with a nil error;
// only a payload too short for its own declared structure fails.
func Parse(bits []byte) (*Pdu, error) {
	if len(bits) < 8 {
		return nil, errors.Wrapf(ErrTruncated, "%d bits", len(bits))
	}

	major := frame.Uint(bits, 0, 2)
	switch major {
	case majorResource:
		return parseResource(bits)
	case majorFragment:
		return parseFragment(bits)
	case majorBroadcast:
		return parseBroadcast(bits)
	default:
		return parseExtended(bits)
	}
}

// parseResource handles MAC-RESOURCE:
// type(2) enc(2) fill(1) address(24) length(6) payload.
func parseResource(bits []byte) (*Pdu, error) {
	p := &Pdu{Type: PduResource}
	p.EncryptionMode = uint8(frame.Uint(bits, 2, 2))
	p.Encrypted = p.EncryptionMode != EncModeClear
	fill := bits[4] == 1

	pos := 5
	if len(bits) < pos+addressBits+lengthBits {
		return nil, errors.Wrap(ErrTruncated, "resource header")
	}
	p.Address = frame.Uint(bits, pos, addressBits)
	p.HasAddress = true
	pos += addressBits
	p.Length = int(frame.Uint(bits, pos, lengthBits))
	pos += lengthBits

	return p, takePayload(p, bits, pos, fill)
}

// parseFragment handles MAC-FRAG:
// type(2) enc(2) fill(1) address(24) sequence(8) payload.
func parseFragment(bits []byte) (*Pdu, error) {
	p := &Pdu{Type: PduFragment}
	p.EncryptionMode = uint8(frame.Uint(bits, 2, 2))
	p.Encrypted = p.EncryptionMode != EncModeClear
	fill := bits[4] == 1

	pos := 5
	if len(bits) < pos+addressBits+sequenceBits {
		return nil, errors.Wrap(ErrTruncated, "fragment header")
	}
	p.Address = frame.Uint(bits, pos, addressBits)
	p.HasAddress = true
	pos += addressBits
	p.Sequence = uint8(frame.Uint(bits, pos, sequenceBits))
	pos += sequenceBits

	return p, takePayload(p, bits, pos, fill)
}

// parseBroadcast handles MAC-BROADCAST:
// type(2) subtype(2) elements. Subtype zero is SYSINFO carrying
// MCC(10) MNC(14) colour code(6).
func parseBroadcast(bits []byte) (*Pdu, error) {
	p := &Pdu{Type: PduBroadcast}
	subtype := frame.Uint(bits, 2, 2)

	pos := 4
	if subtype == 0 {
		if len(bits) < pos+30 {
			return nil, errors.Wrap(ErrTruncated, "sysinfo")
		}
		p.Sysinfo = &Sysinfo{
			MCC:        frame.Uint(bits, pos, 10),
			MNC:        frame.Uint(bits, pos+10, 14),
			ColourCode: uint8(frame.Uint(bits, pos+24, 6)),
		}
		pos += 30
	}

	return p, takePayload(p, bits, pos, false)
}

// parseExtended handles the shared layout of the remaining kinds:
// type(2) subtype(3) enc(2) fill(1) then per-kind fields.
func parseExtended(bits []byte) (*Pdu, error) {
	if len(bits) < 8 {
		return nil, errors.Wrap(ErrTruncated, "extended header")
	}
	sub := frame.Uint(bits, 2, 3)
	p := &Pdu{}
	p.EncryptionMode = uint8(frame.Uint(bits, 5, 2))
	p.Encrypted = p.EncryptionMode != EncModeClear
	fill := bits[7] == 1
	pos := 8

	switch sub {
	case 0: // MAC-END: address(24) sequence(8) length(6)
		p.Type = PduEnd
		if len(bits) < pos+addressBits+sequenceBits+lengthBits {
			return nil, errors.Wrap(ErrTruncated, "end header")
		}
		p.Address = frame.Uint(bits, pos, addressBits)
		p.HasAddress = true
		pos += addressBits
		p.Sequence = uint8(frame.Uint(bits, pos, sequenceBits))
		pos += sequenceBits
		p.Length = int(frame.Uint(bits, pos, lengthBits))
		pos += lengthBits

	case 1: // MAC-SUPPL: address(24) length(6)
		p.Type = PduSupplementary
		if len(bits) < pos+addressBits+lengthBits {
			return nil, errors.Wrap(ErrTruncated, "suppl header")
		}
		p.Address = frame.Uint(bits, pos, addressBits)
		p.HasAddress = true
		pos += addressBits
		p.Length = int(frame.Uint(bits, pos, lengthBits))
		pos += lengthBits

	case 2: // MAC-U-SIGNAL: length(6), SSIs live in the payload
		p.Type = PduUSignal
		if len(bits) < pos+lengthBits {
			return nil, errors.Wrap(ErrTruncated, "u-signal header")
		}
		p.Length = int(frame.Uint(bits, pos, lengthBits))
		pos += lengthBits

	case 3: // MAC-DATA: address(24) length(6)
		p.Type = PduData
		if len(bits) < pos+addressBits+lengthBits {
			return nil, errors.Wrap(ErrTruncated, "data header")
		}
		p.Address = frame.Uint(bits, pos, addressBits)
		p.HasAddress = true
		pos += addressBits
		p.Length = int(frame.Uint(bits, pos, lengthBits))
		pos += lengthBits

	case 4: // MAC-U-BLK: address(24), payload is the rest
		p.Type = PduUBlock
		if len(bits) < pos+addressBits {
			return nil, errors.Wrap(ErrTruncated, "u-blk header")
		}
		p.Address = frame.Uint(bits, pos, addressBits)
		p.HasAddress = true
		pos += addressBits

	default:
		p.Type = PduUnknown
		return p, nil
	}

	return p, takePayload(p, bits, pos, fill)
}

// takePayload extracts the PDU payload starting at pos. Fill stripping
// follows the declared length indicator: with a length and the fill
// flag set, everything past length octets is fill; bit patterns are
// never consulted. A declared length grossly exceeding the available
// bits is a truncated PDU.
func takePayload(p *Pdu, bits []byte, pos int, fill bool) error {
	if pos > len(bits) {
		return errors.Wrap(ErrTruncated, "payload offset")
	}
	rest := bits[pos:]
	want := p.Length * 8

	// Small margin mirrors the slack left by tolerant channel
	// decoding; beyond it the length field cannot be trusted.
	if want > len(rest)+16 {
		return errors.Wrapf(ErrTruncated, "declared %d octets, %d bits left", p.Length, len(rest))
	}

	take := rest
	if want > 0 && fill && want <= len(rest) {
		take = rest[:want]
		p.FillBits = len(rest) - want
	} else if want > 0 && want <= len(rest) {
		take = rest[:want]
	}

	p.Payload = frame.BitsToBytes(take)
	return nil
}
