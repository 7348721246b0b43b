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

package sds

import "strings"

// GSM 03.38 default alphabet. Index is the 7-bit code.
var gsm7Alphabet = [128]rune{
	'@', '£', '$', '¥', 'è', 'é', 'ù', 'ì', 'ò', 'Ç', '\n', 'Ø', 'ø', '\r', 'Å', 'å',
	'Δ', '_', 'Φ', 'Γ', 'Λ', 'Ω', 'Π', 'Ψ', 'Σ', 'Θ', 'Ξ', 0x1B, 'Æ', 'æ', 'ß', 'É',
	' ', '!', '"', '#', '¤', '%', '&', '\'', '(', ')', '*', '+', ',', '-', '.', '/',
	'0', '1', '2', '3', '4', '5', '6', '7', '8', '9', ':', ';', '<', '=', '>', '?',
	'¡', 'A', 'B', 'C', 'D', 'E', 'F', 'G', 'H', 'I', 'J', 'K', 'L', 'M', 'N', 'O',
	'P', 'Q', 'R', 'S', 'T', 'U', 'V', 'W', 'X', 'Y', 'Z', 'Ä', 'Ö', 'Ñ', 'Ü', '§',
	'¿', 'a', 'b', 'c', 'd', 'e', 'f', 'g', 'h', 'i', 'j', 'k', 'l', 'm', 'n', 'o',
	'p', 'q', 'r', 's', 't', 'u', 'v', 'w', 'x', 'y', 'z', 'ä', 'ö', 'ñ', 'ü', 'à',
}

// Escape-prefixed extension characters.
var gsm7Extension = map[byte]rune{
	0x0A: '\f',
	0x14: '^',
	0x28: '{',
	0x29: '}',
	0x2F: '\\',
	0x3C: '[',
	0x3D: '~',
	0x3E: ']',
	0x40: '|',
	0x65: '€',
}

const gsm7Escape = 0x1B

// UnpackGSM7 decodes GSM 03.38 7-bit packed septets. Septets are
// packed LSB first. A septetCount of zero decodes as many whole
// septets as the data holds; skipBits realigns past a user data
// header.
func UnpackGSM7(data []byte, septetCount, skipBits int) string {
	if len(data) == 0 {
		return ""
	}

	bits := make([]byte, 0, len(data)*8)
	for _, b := range data {
		for i := 0; i < 8; i++ {
			bits = append(bits, (b>>uint(i))&1)
		}
	}
	if skipBits > 0 {
		if skipBits >= len(bits) {
			return ""
		}
		bits = bits[skipBits:]
	}

	max := len(bits) / 7
	if septetCount <= 0 || septetCount > max {
		septetCount = max
	}

	var sb strings.Builder
	escaped := false
	for i := 0; i < septetCount; i++ {
		var code byte
		for j := 0; j < 7; j++ {
			code |= bits[i*7+j] << uint(j)
		}

		if escaped {
			if r, ok := gsm7Extension[code]; ok {
				sb.WriteRune(r)
			}
			escaped = false
			continue
		}
		if code == gsm7Escape {
			escaped = true
			continue
		}
		if r := gsm7Alphabet[code]; r != 0x1B {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// UnpackGSM7UDH treats the first octet as a user-data-header length
// and decodes the septets that follow the header.
func UnpackGSM7UDH(data []byte, septetCount int) string {
	if len(data) < 2 {
		return ""
	}
	udhLen := int(data[0])
	if udhLen == 0 || udhLen+1 > len(data) {
		return ""
	}

	skipBits := (udhLen + 1) * 8
	payloadSeptets := 0
	if septetCount > 0 {
		udhSeptets := (skipBits + 6) / 7
		if septetCount > udhSeptets {
			payloadSeptets = septetCount - udhSeptets
		}
	}
	return UnpackGSM7(data, payloadSeptets, skipBits)
}

// PackGSM7 packs text into 7-bit septets. Characters outside the
// default alphabet are dropped. Used by fixtures and key-verification
// tooling; the air interface itself only unpacks.
func PackGSM7(text string) []byte {
	var codes []byte
	for _, r := range text {
		for c, a := range gsm7Alphabet {
			if a == r {
				codes = append(codes, byte(c))
				break
			}
		}
	}

	var bits []byte
	for _, code := range codes {
		for i := 0; i < 7; i++ {
			bits = append(bits, (code>>uint(i))&1)
		}
	}

	out := make([]byte, (len(bits)+7)/8)
	for i, b := range bits {
		out[i/8] |= b << uint(i%8)
	}
	return out
}
