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

// Package csv renders decoded frame records as CSV.
package csv

import (
	"encoding/csv"
	"io"

	"golang.org/x/xerrors"
)

// Header is the column list for decoded frame records.
var Header = []string{
	"timestamp",
	"index",
	"position",
	"sync_state",
	"crc_ok",
	"pdu_type",
	"address",
	"encrypted",
	"decrypt_band",
	"key_id",
	"sds_text",
}

// Produces the list of fields making up a record.
type Recorder interface {
	Record() []string
}

// An Encoder writes frame records to an output stream.
type Encoder struct {
	w      *csv.Writer
	header bool
}

// NewEncoder returns a new encoder that writes to w. The column header
// is written ahead of the first record.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: csv.NewWriter(w)}
}

// Encode writes one CSV record representing v to the stream. Value
// given must implement the Recorder interface.
func (enc *Encoder) Encode(v interface{}) (err error) {
	defer func() {
		if err, _ = recover().(error); err != nil {
			err = xerrors.Errorf("recovered: %w", err)
		}
	}()

	if !enc.header {
		enc.header = true
		if err = enc.w.Write(Header); err != nil {
			return err
		}
	}

	err = enc.w.Write(v.(Recorder).Record())
	enc.w.Flush()

	return err
}
