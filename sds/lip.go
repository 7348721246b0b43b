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
	"fmt"
	"strings"

	"tetradec/frame"
)

// Location is a decoded LIP position report (ETSI TS 100 392-18-1
// basic location reports).
type Location struct {
	Latitude  float64
	Longitude float64
	Long      bool
	NMEA      string
}

func (l Location) String() string {
	if l.NMEA != "" {
		return "NMEA: " + l.NMEA
	}
	form := "Short"
	if l.Long {
		form = "Long"
	}
	return fmt.Sprintf("Lat: %.5f, Lon: %.5f (%s)", l.Latitude, l.Longitude, form)
}

// ParseLocation decodes a LIP payload. Short reports carry a 24-bit
// latitude and 25-bit longitude, long reports 25 and 26 bits, both as
// two's complement fractions of 90 and 180 degrees. Payloads that are
// raw NMEA sentences pass through untouched.
func ParseLocation(data []byte) (Location, bool) {
	if len(data) < 2 {
		return Location{}, false
	}

	bits := frame.BytesToBits(data)
	switch frame.Uint(bits, 0, 2) {
	case 0: // short report
		if len(bits) < 65 {
			break
		}
		lat := frame.Int(bits, 4, 24)
		lon := frame.Int(bits, 28, 25)
		return Location{
			Latitude:  float64(lat) * 90.0 / (1 << 23),
			Longitude: float64(lon) * 180.0 / (1 << 24),
		}, true

	case 1: // long report
		if len(bits) < 75 {
			break
		}
		lat := frame.Int(bits, 4, 25)
		lon := frame.Int(bits, 29, 26)
		return Location{
			Latitude:  float64(lat) * 90.0 / (1 << 24),
			Longitude: float64(lon) * 180.0 / (1 << 25),
			Long:      true,
		}, true
	}

	// Some radios ship plain NMEA text under the location PID.
	text := string(data)
	if strings.Contains(text, "$GPGGA") || strings.Contains(text, "$GPRMC") {
		return Location{NMEA: strings.TrimSpace(text)}, true
	}

	return Location{}, false
}
