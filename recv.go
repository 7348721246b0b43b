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

package main

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"io"
	"math"

	"github.com/pkg/errors"

	"tetradec/frame"
)

// BurstRecord is one demodulated burst as produced by the capture
// front end: packed bits plus the demodulator's correlation score.
type BurstRecord struct {
	// Bits is the hex-encoded packed bit field, MSB first.
	Bits        string  `json:"bits"`
	Type        byte    `json:"type"`
	Correlation float64 `json:"correlation"`
	Index       uint64  `json:"index"`
}

func (r BurstRecord) Burst() (frame.Burst, error) {
	data, err := hex.DecodeString(r.Bits)
	if err != nil {
		return frame.Burst{}, errors.Wrap(err, "burst bits")
	}
	bits := frame.BytesToBits(data)
	if len(bits) > frame.BitsPerBurst {
		bits = bits[:frame.BitsPerBurst]
	}
	return frame.NewBurst(bits, frame.BurstType(r.Type), r.Correlation, r.Index)
}

// A BurstReader yields bursts from a capture stream until io.EOF.
type BurstReader interface {
	Next() (frame.Burst, error)
}

// jsonlReader reads one JSON burst record per line. Blank lines are
// skipped.
type jsonlReader struct {
	sc *bufio.Scanner
}

func newJSONLReader(r io.Reader) *jsonlReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	return &jsonlReader{sc: sc}
}

func (j *jsonlReader) Next() (frame.Burst, error) {
	for j.sc.Scan() {
		line := bytes.TrimSpace(j.sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec BurstRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return frame.Burst{}, errors.Wrap(err, "burst record")
		}
		return rec.Burst()
	}
	if err := j.sc.Err(); err != nil {
		return frame.Burst{}, err
	}
	return frame.Burst{}, io.EOF
}

// binaryReader reads length-prefixed burst records:
// type(1) index(8) correlation(8) bit count(2), all big endian,
// followed by the packed bits.
type binaryReader struct {
	r *bufio.Reader
}

func newBinaryReader(r io.Reader) *binaryReader {
	return &binaryReader{r: bufio.NewReader(r)}
}

func (b *binaryReader) Next() (frame.Burst, error) {
	var hdr [19]byte
	if _, err := io.ReadFull(b.r, hdr[:]); err != nil {
		return frame.Burst{}, err
	}

	typ := hdr[0]
	index := binary.BigEndian.Uint64(hdr[1:9])
	corr := math.Float64frombits(binary.BigEndian.Uint64(hdr[9:17]))
	nbits := int(binary.BigEndian.Uint16(hdr[17:19]))

	if nbits == 0 || nbits > 4*frame.BitsPerBurst {
		return frame.Burst{}, errors.Errorf("implausible record length %d bits", nbits)
	}

	data := make([]byte, (nbits+7)/8)
	if _, err := io.ReadFull(b.r, data); err != nil {
		return frame.Burst{}, err
	}

	bits := frame.BytesToBits(data)[:nbits]
	return frame.NewBurst(bits, frame.BurstType(typ), corr, index)
}
