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

// Package tea implements the TEA air interface cipher family and the
// trial-decryption service built on it. The published TEA1, TEA3 and
// TEA4 algorithms are proprietary; the variants here follow the openly
// circulated reconstructions, which is sufficient for weak-key analysis
// but makes no interoperability claim.
package tea

import (
	"encoding/binary"
	"strings"

	"github.com/pkg/errors"
)

// Algorithm identifies a member of the cipher family.
type Algorithm int

const (
	AlgUnknown Algorithm = iota
	TEA1
	TEA2
	TEA3
	TEA4
)

func (a Algorithm) String() string {
	switch a {
	case TEA1:
		return "TEA1"
	case TEA2:
		return "TEA2"
	case TEA3:
		return "TEA3"
	case TEA4:
		return "TEA4"
	}
	return "unknown"
}

// KeySize returns the key length in bytes, or zero for AlgUnknown.
func (a Algorithm) KeySize() int {
	switch a {
	case TEA1:
		return 10
	case TEA2, TEA3, TEA4:
		return 16
	}
	return 0
}

// Algorithms lists the concrete family members in trial order.
var Algorithms = []Algorithm{TEA1, TEA2, TEA3, TEA4}

// ParseAlgorithm maps a textual name to an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TEA1":
		return TEA1, nil
	case "TEA2":
		return TEA2, nil
	case "TEA3":
		return TEA3, nil
	case "TEA4":
		return TEA4, nil
	}
	return AlgUnknown, errors.Errorf("tea: unknown algorithm %q", s)
}

// BlockSize is the cipher block size in bytes for the whole family.
const BlockSize = 8

const (
	delta  = 0x9e3779b9
	rounds = 32
)

// Cipher is a stateless block decryptor for one (algorithm, key) pair.
type Cipher struct {
	alg Algorithm
	// Round keys. TEA1 uses the first five 16-bit words; the 128-bit
	// variants use four 32-bit words after their per-variant schedule.
	w16 [5]uint16
	w32 [4]uint32
}

// NewCipher validates the key length for the algorithm and prepares
// the round keys.
func NewCipher(alg Algorithm, key []byte) (*Cipher, error) {
	want := alg.KeySize()
	if want == 0 {
		return nil, errors.Errorf("tea: cannot build cipher for %s", alg)
	}
	if len(key) != want {
		return nil, errors.Errorf("tea: %s key must be %d bytes, got %d", alg, want, len(key))
	}

	c := &Cipher{alg: alg}
	switch alg {
	case TEA1:
		for i := range c.w16 {
			c.w16[i] = binary.BigEndian.Uint16(key[2*i:])
		}
	case TEA2, TEA3, TEA4:
		var w [4]uint32
		for i := range w {
			w[i] = binary.BigEndian.Uint32(key[4*i:])
		}
		c.w32 = schedule(alg, w)
	}
	return c, nil
}

// schedule applies the per-variant key word ordering. TEA2 consumes
// the key words directly; TEA3 rotates them, TEA4 swaps the halves.
func schedule(alg Algorithm, w [4]uint32) [4]uint32 {
	switch alg {
	case TEA3:
		return [4]uint32{w[1], w[2], w[3], w[0]}
	case TEA4:
		return [4]uint32{w[2], w[3], w[0], w[1]}
	}
	return w
}

// Algorithm returns the cipher's family member.
func (c *Cipher) Algorithm() Algorithm { return c.alg }

// DecryptBlock decrypts one 8-byte block from src into dst. The slices
// may overlap.
func (c *Cipher) DecryptBlock(dst, src []byte) {
	v0 := binary.BigEndian.Uint32(src)
	v1 := binary.BigEndian.Uint32(src[4:])

	if c.alg == TEA1 {
		v0, v1 = c.decrypt80(v0, v1)
	} else {
		v0, v1 = c.decrypt128(v0, v1)
	}

	binary.BigEndian.PutUint32(dst, v0)
	binary.BigEndian.PutUint32(dst[4:], v1)
}

// EncryptBlock encrypts one 8-byte block from src into dst. The
// decoder only ever runs the decrypt direction; encryption exists for
// key verification and fixture generation.
func (c *Cipher) EncryptBlock(dst, src []byte) {
	v0 := binary.BigEndian.Uint32(src)
	v1 := binary.BigEndian.Uint32(src[4:])

	if c.alg == TEA1 {
		v0, v1 = c.encrypt80(v0, v1)
	} else {
		v0, v1 = c.encrypt128(v0, v1)
	}

	binary.BigEndian.PutUint32(dst, v0)
	binary.BigEndian.PutUint32(dst[4:], v1)
}

// Encrypt encrypts data in ECB mode. The length must be a multiple of
// the block size.
func (c *Cipher) Encrypt(data []byte) ([]byte, error) {
	if len(data)%BlockSize != 0 {
		return nil, errors.Errorf("tea: data length %d not a block multiple", len(data))
	}
	out := make([]byte, len(data))
	for i := 0; i < len(data); i += BlockSize {
		c.EncryptBlock(out[i:], data[i:])
	}
	return out, nil
}

func (c *Cipher) encrypt80(v0, v1 uint32) (uint32, uint32) {
	var sum uint32
	for i := 0; i < rounds; i++ {
		v0 += ((v1<<4 ^ v1>>5 ^ sum) + v1) ^ (uint32(c.w16[sum&3]) + sum)
		sum += delta
		v1 += ((v0<<4 ^ v0>>5 ^ sum) + v0) ^ (uint32(c.w16[(sum>>11)&3]) + sum)
	}
	return v0, v1
}

func (c *Cipher) encrypt128(v0, v1 uint32) (uint32, uint32) {
	k := c.w32
	var sum uint32
	for i := 0; i < rounds; i++ {
		v0 += (v1<<4 + k[0]) ^ (v1 + sum) ^ (v1>>5 + k[1])
		sum += delta
		v1 += (v0<<4 + k[2]) ^ (v0 + sum) ^ (v0>>5 + k[3])
	}
	return v0, v1
}

func (c *Cipher) decrypt80(v0, v1 uint32) (uint32, uint32) {
	sum := uint32(delta)
	sum *= rounds
	for i := 0; i < rounds; i++ {
		v1 -= ((v0<<4 ^ v0>>5 ^ sum) + v0) ^ (uint32(c.w16[(sum>>11)&3]) + sum)
		sum -= delta
		v0 -= ((v1<<4 ^ v1>>5 ^ sum) + v1) ^ (uint32(c.w16[sum&3]) + sum)
	}
	return v0, v1
}

func (c *Cipher) decrypt128(v0, v1 uint32) (uint32, uint32) {
	k := c.w32
	sum := uint32(delta)
	sum *= rounds
	for i := 0; i < rounds; i++ {
		v1 -= (v0<<4 + k[2]) ^ (v0 + sum) ^ (v0>>5 + k[3])
		sum -= delta
		v0 -= (v1<<4 + k[0]) ^ (v1 + sum) ^ (v1>>5 + k[1])
	}
	return v0, v1
}

// Decrypt decrypts data in ECB mode. The length must be a multiple of
// the block size.
func (c *Cipher) Decrypt(data []byte) ([]byte, error) {
	if len(data)%BlockSize != 0 {
		return nil, errors.Errorf("tea: data length %d not a block multiple", len(data))
	}
	out := make([]byte, len(data))
	for i := 0; i < len(data); i += BlockSize {
		c.DecryptBlock(out[i:], data[i:])
	}
	return out, nil
}

// DecryptCBC decrypts data in CBC mode with an 8-byte IV.
func (c *Cipher) DecryptCBC(data, iv []byte) ([]byte, error) {
	if len(data)%BlockSize != 0 {
		return nil, errors.Errorf("tea: data length %d not a block multiple", len(data))
	}
	if len(iv) != BlockSize {
		return nil, errors.Errorf("tea: iv must be %d bytes", BlockSize)
	}
	out := make([]byte, len(data))
	prev := iv
	for i := 0; i < len(data); i += BlockSize {
		c.DecryptBlock(out[i:], data[i:])
		for j := 0; j < BlockSize; j++ {
			out[i+j] ^= prev[j]
		}
		prev = data[i : i+BlockSize]
	}
	return out, nil
}
