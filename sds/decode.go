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

import (
	"bytes"
	"encoding/hex"
	"strings"
	"unicode"
)

// Encoding tags how a message payload was interpreted.
type Encoding int

const (
	EncodingBinary Encoding = iota
	Encoding7Bit
	Encoding8Bit
	EncodingLocation
)

func (e Encoding) String() string {
	switch e {
	case Encoding7Bit:
		return "7bit"
	case Encoding8Bit:
		return "8bit"
	case EncodingLocation:
		return "location"
	}
	return "binary"
}

// Protocol identifiers observed in the wild.
const (
	PIDSimpleText = 0x03
	PIDSDS1       = 0x05
	PIDGSM7       = 0x07
	PIDGPS        = 0x0C
	PIDText       = 0x82
	PIDLocation   = 0x83
)

// Decoded is the interpretation of one complete SDS payload. Binary
// payloads keep a byte-accurate preview instead of being force-decoded
// as text.
type Decoded struct {
	Encoding Encoding
	PID      byte
	Text     string
	Location *Location
	// Encrypted marks binary payloads whose byte entropy looks like
	// ciphertext rather than structured data.
	Encrypted bool
	Preview   string
}

// Decode interprets a complete SDS payload by protocol identifier,
// falling back to text heuristics and finally a binary preview.
func Decode(data []byte) Decoded {
	stripped := bytes.TrimRight(data, "\x00")
	if len(stripped) == 0 {
		return Decoded{Encoding: EncodingBinary}
	}
	pid := data[0]

	// SDS-1 fixed text: 05 00 <len> <ascii...>
	if len(data) > 3 && pid == PIDSDS1 && data[1] == 0x00 {
		text := string(bytes.TrimRight(data[3:], "\x00"))
		if validText(text, 0.8) {
			return Decoded{Encoding: Encoding8Bit, PID: pid, Text: text}
		}
	}

	// GSM 7-bit packed: 07 00 <septets> <packed...>
	if len(data) > 3 && pid == PIDGSM7 && data[1] == 0x00 {
		if text, ok := best7Bit(data); ok {
			return Decoded{Encoding: Encoding7Bit, PID: pid, Text: text}
		}
	}

	payload := bytes.TrimRight(data[1:], "\x00")
	switch pid {
	case PIDText: // ISO 8859-1
		text := latin1(payload)
		if validText(text, 0.8) {
			return Decoded{Encoding: Encoding8Bit, PID: pid, Text: text}
		}

	case PIDSimpleText:
		if ascii(payload) && validText(string(payload), 0.8) {
			return Decoded{Encoding: Encoding8Bit, PID: pid, Text: string(payload)}
		}

	case PIDLocation, PIDGPS:
		if loc, ok := ParseLocation(payload); ok {
			return Decoded{Encoding: EncodingLocation, PID: pid, Text: loc.String(), Location: &loc}
		}
		return Decoded{Encoding: EncodingBinary, PID: pid, Preview: preview(payload, 32)}
	}

	return fallback(stripped)
}

// fallback applies the text heuristics, then the entropy check, for
// payloads with no recognized protocol identifier.
func fallback(data []byte) Decoded {
	pid := data[0]

	printable := 0
	for _, b := range data {
		if (b >= 0x20 && b <= 0x7E) || b == '\n' || b == '\r' {
			printable++
		}
	}
	if float64(printable)/float64(len(data)) > 0.6 {
		text := latin1(data)
		if validText(text, 0.6) {
			return Decoded{Encoding: Encoding8Bit, PID: pid, Text: text}
		}
	}

	unique := make(map[byte]struct{}, len(data))
	for _, b := range data {
		unique[b] = struct{}{}
	}
	highEntropy := len(data) > 8 && float64(len(unique))/float64(len(data)) > 0.7

	// Ciphertext-like payloads skip the packed-text guess: random
	// septets decode to alphabet characters often enough to fake a
	// plausible message.
	if !highEntropy {
		if text, ok := bestCandidate(UnpackGSM7(data, 0, 0), UnpackGSM7UDH(data, 0)); ok {
			return Decoded{Encoding: Encoding7Bit, PID: pid, Text: text}
		}
	}

	return Decoded{
		Encoding:  EncodingBinary,
		PID:       pid,
		Preview:   preview(data, 32),
		Encrypted: highEntropy,
	}
}

// best7Bit decodes a 07 00 payload, trying the declared septet count,
// UDH-skipped variants and both payload offsets, keeping the most
// plausible candidate.
func best7Bit(data []byte) (string, bool) {
	var candidates []string

	septets := int(data[2])
	rest := data[3:]
	if len(rest) > 0 {
		maxSeptets := len(rest) * 8 / 7
		if septets > 0 && septets <= maxSeptets && septets <= 160 {
			candidates = append(candidates,
				UnpackGSM7(rest, septets, 0),
				UnpackGSM7UDH(rest, septets))
		}
		candidates = append(candidates,
			UnpackGSM7(rest, 0, 0),
			UnpackGSM7UDH(rest, 0))
	}
	// Some senders pack content from the count octet onward.
	candidates = append(candidates,
		UnpackGSM7(data[2:], 0, 0),
		UnpackGSM7UDH(data[2:], 0))

	return bestCandidate(candidates...)
}

// bestCandidate keeps the highest-scoring plausible decode, requiring
// the relaxed validity threshold used for packed text.
func bestCandidate(candidates ...string) (string, bool) {
	best := ""
	bestScore := 0.0
	seen := make(map[string]struct{})
	for _, text := range candidates {
		text = strings.TrimSpace(strings.Trim(text, "\x00"))
		if text == "" {
			continue
		}
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		if s := scoreText(text); s > bestScore {
			bestScore = s
			best = text
		}
	}
	if best == "" || !validText(best, 0.55) {
		return "", false
	}
	return best, true
}

// scoreText ranks decode candidates: printable density, alphanumeric
// density, and a flat bonus for containing letters at all.
func scoreText(text string) float64 {
	if text == "" {
		return 0
	}
	var printable, alnum, alpha int
	n := 0
	for _, r := range text {
		n++
		if unicode.IsPrint(r) {
			printable++
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			alnum++
		}
		if unicode.IsLetter(r) {
			alpha++
		}
	}
	score := float64(printable)/float64(n) + float64(alnum)/float64(n)
	if alpha > 0 {
		score += 0.5
	}
	return score
}

// validText decides whether a candidate looks like human-readable
// text: enough printable characters, enough alphanumerics, and not a
// single repeated padding character.
func validText(text string, threshold float64) bool {
	if len(text) < 2 {
		return false
	}
	trimmed := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' || r == ' ' {
			return -1
		}
		return r
	}, text)
	if trimmed == "" {
		return false
	}

	var printable, alnum, n int
	repeated := true
	var first rune
	for i, r := range text {
		n++
		if i == 0 {
			first = r
		} else if r != first {
			repeated = false
		}
		if unicode.IsPrint(r) || r == '\n' || r == '\r' || r == '\t' {
			printable++
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' {
			alnum++
		}
	}
	if n > 4 && repeated {
		return false
	}
	return float64(printable)/float64(n) >= threshold && float64(alnum)/float64(n) > 0.5
}

func latin1(data []byte) string {
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}

func ascii(data []byte) bool {
	for _, b := range data {
		if b > 0x7F {
			return false
		}
	}
	return true
}

func preview(data []byte, max int) string {
	if len(data) == 0 {
		return ""
	}
	truncated := false
	if len(data) > max {
		data = data[:max]
		truncated = true
	}
	s := strings.ToUpper(hex.EncodeToString(data))
	var sb strings.Builder
	for i := 0; i < len(s); i += 2 {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(s[i : i+2])
	}
	if truncated {
		sb.WriteString(" ...")
	}
	return sb.String()
}
