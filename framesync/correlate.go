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

package framesync

// PatternLen is the length of the normal training sequences in bits.
const PatternLen = 22

// Normal training sequences. Bursts that arrive without a correlation
// score from the demodulator are scored against these.
var patterns = map[string][]byte{
	"TS1": {1, 1, 0, 1, 0, 0, 0, 0, 1, 1, 1, 0, 1, 0, 0, 1, 1, 1, 0, 1, 0, 0},
	"TS2": {0, 1, 1, 1, 1, 0, 1, 0, 0, 1, 0, 0, 0, 0, 1, 1, 0, 1, 1, 1, 0, 0},
}

// Peak is one training-sequence correlation peak within a bit stream.
type Peak struct {
	Offset  int
	Pattern string
	Score   float64
}

// Correlate slides every known training sequence over bits and returns
// all peaks at or above threshold along with the best score seen
// anywhere. The peak list is ordered by offset; overlapping hits keep
// only the better pattern.
func Correlate(bits []byte, threshold float64) (peaks []Peak, best float64) {
	if len(bits) < PatternLen {
		return nil, 0
	}
	for off := 0; off+PatternLen <= len(bits); off++ {
		var top Peak
		for name, pat := range patterns {
			match := 0
			for i, b := range pat {
				if bits[off+i] == b {
					match++
				}
			}
			score := float64(match) / PatternLen
			if score > top.Score {
				top = Peak{Offset: off, Pattern: name, Score: score}
			}
		}
		if top.Score > best {
			best = top.Score
		}
		if top.Score >= threshold {
			peaks = append(peaks, top)
			// A genuine peak cannot recur within one pattern length.
			off += PatternLen - 1
		}
	}
	return peaks, best
}
