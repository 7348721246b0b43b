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

package tea

import (
	"bufio"
	"encoding/hex"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Key is one named catalog entry.
type Key struct {
	ID        string
	Algorithm Algorithm
	Bytes     []byte
}

// Catalog is an ordered set of trial keys per algorithm. Order matters
// for reproducible bruteforce runs.
type Catalog struct {
	byAlg map[Algorithm][]Key
}

func NewCatalog() *Catalog {
	return &Catalog{byAlg: make(map[Algorithm][]Key)}
}

// Add appends a key, normalizing oversized material by truncation to
// the algorithm's key size. Undersized keys are rejected.
func (c *Catalog) Add(alg Algorithm, id string, key []byte) error {
	want := alg.KeySize()
	if want == 0 {
		return errors.Errorf("tea: no key size for %s", alg)
	}
	if len(key) < want {
		return errors.Errorf("tea: %s key %q too short: %d bytes, need %d", alg, id, len(key), want)
	}
	norm := make([]byte, want)
	copy(norm, key[:want])
	c.byAlg[alg] = append(c.byAlg[alg], Key{ID: id, Algorithm: alg, Bytes: norm})
	return nil
}

// Keys returns the catalog entries for one algorithm, in load order.
func (c *Catalog) Keys(alg Algorithm) []Key { return c.byAlg[alg] }

// Len returns the total key count across all algorithms.
func (c *Catalog) Len() int {
	n := 0
	for _, keys := range c.byAlg {
		n += len(keys)
	}
	return n
}

// LoadFile merges a supplemental key file into the catalog. The format
// is one key per line, ALGORITHM:ID:HEXKEY, with # comments and blank
// lines ignored. Bad lines are logged and skipped so one typo does not
// abandon the rest of the file.
func (c *Catalog) LoadFile(path string, log *logrus.Logger) error {
	if log == nil {
		log = logrus.StandardLogger()
	}
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "tea: open key file")
	}
	defer f.Close()

	loaded := 0
	scanner := bufio.NewScanner(f)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, ":", 3)
		if len(parts) != 3 {
			log.WithFields(logrus.Fields{"file": path, "line": lineNum}).Warn("malformed key line")
			continue
		}
		alg, err := ParseAlgorithm(parts[0])
		if err != nil {
			log.WithFields(logrus.Fields{"file": path, "line": lineNum, "algorithm": parts[0]}).Warn("unknown algorithm in key file")
			continue
		}
		raw, err := hex.DecodeString(strings.TrimSpace(parts[2]))
		if err != nil {
			log.WithFields(logrus.Fields{"file": path, "line": lineNum}).Warn("invalid hex key")
			continue
		}
		if err := c.Add(alg, parts[1], raw); err != nil {
			log.WithFields(logrus.Fields{"file": path, "line": lineNum}).WithError(err).Warn("rejected key")
			continue
		}
		loaded++
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "tea: read key file")
	}

	log.WithFields(logrus.Fields{"file": path, "keys": loaded}).Info("loaded supplemental key catalog")
	return nil
}

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// Builtin returns the fixed weak-key catalog: null keys, counting
// patterns and widely circulated vendor defaults. Oversized source
// material is truncated to the algorithm's key size.
func Builtin() *Catalog {
	c := NewCatalog()
	add := func(alg Algorithm, id, hexKey string) {
		if err := c.Add(alg, id, mustHex(hexKey)); err != nil {
			panic(err)
		}
	}

	add(TEA1, "null", "00000000000000000000")
	add(TEA1, "ones", "FFFFFFFFFFFFFFFFFFFF")
	add(TEA1, "sequential", "0123456789ABCDEF0123")
	add(TEA1, "reverse", "FEDCBA9876543210FEDC")
	add(TEA1, "repeat-1", "11111111111111111111")
	add(TEA1, "repeat-a", "AAAAAAAAAAAAAAAAAAAA")
	add(TEA1, "repeat-5", "55555555555555555555")
	add(TEA1, "counting", "00010203040506070809")
	add(TEA1, "test", "1234567890ABCDEF1234")
	add(TEA1, "deadbeef", "DEADBEEFCAFEBABEFACE")
	add(TEA1, "vendor-a", "A0B1C2D3E4F506172839")
	add(TEA1, "vendor-b", "112233445566778899AA")
	add(TEA1, "nibble", "0F0F0F0F0F0F0F0F0F0F")

	add(TEA2, "null", "00000000000000000000000000000000")
	add(TEA2, "ones", "FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF")
	add(TEA2, "sequential", "0123456789ABCDEF0123456789ABCDEF")
	add(TEA2, "reverse", "FEDCBA9876543210FEDCBA9876543210")
	add(TEA2, "repeat-1", "11111111111111111111111111111111")
	add(TEA2, "repeat-a", "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	add(TEA2, "repeat-5", "55555555555555555555555555555555")
	add(TEA2, "counting", "000102030405060708090A0B0C0D0E0F")
	add(TEA2, "test", "1234567890ABCDEF1234567890ABCDEF")
	add(TEA2, "deadbeef", "DEADBEEFCAFEBABEDEADBEEFCAFEBABE")
	add(TEA2, "vendor-a", "A0B1C2D3E4F5061728394A5B6C7D8E9F")
	add(TEA2, "vendor-b", "11223344556677889900112233445566")

	add(TEA3, "null", "00000000000000000000000000000000")
	add(TEA3, "ones", "FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF")

	add(TEA4, "null", "00000000000000000000000000000000")
	add(TEA4, "ones", "FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF")

	return c
}
