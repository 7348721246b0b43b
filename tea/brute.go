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
	"context"
	"sync"
)

// Band buckets a confidence score. The thresholds are empirical
// defaults, not protocol constants.
type Band int

const (
	BandNoMatch Band = iota
	BandWeak
	BandMedium
	BandHigh
	// BandPending marks frames whose trials did not finish inside the
	// real-time budget.
	BandPending
)

func (b Band) String() string {
	switch b {
	case BandWeak:
		return "weak"
	case BandMedium:
		return "medium"
	case BandHigh:
		return "high"
	case BandPending:
		return "pending"
	}
	return "nomatch"
}

// Result is the outcome of a bruteforce run. Matched is false when no
// candidate cleared the minimum bar; Score and KeyID still describe
// the best trial for diagnostics.
type Result struct {
	Matched   bool
	Band      Band
	Algorithm Algorithm
	KeyID     string
	Plaintext []byte
	Score     int
	Trials    int
}

// Score rates a candidate plaintext for plausibility. It is heuristic:
// a high score means the bytes look like signalling or text, not that
// the decryption is correct.
//
//	+2  per printable byte (0x20..0x7E)
//	+30 if the unique-byte count exceeds 1/8 of the length
//	+10 if there is any byte diversity at all
//	+10 if the leading byte is neither 0x00 nor 0xFF
//	+20 if the leading byte is a common signalling header value
//	-100 if the candidate is all-zero or all-0xFF
func Score(plain []byte) int {
	if len(plain) == 0 {
		return 0
	}

	score := 0
	unique := make(map[byte]struct{}, len(plain))
	for _, b := range plain {
		if b >= 0x20 && b <= 0x7E {
			score += 2
		}
		unique[b] = struct{}{}
	}

	if len(unique) > len(plain)/8 {
		score += 30
	}
	if len(unique) > 1 {
		score += 10
	} else {
		// A constant payload is never a real decrypt.
		score -= 100
	}

	head := plain[0]
	if head != 0x00 && head != 0xFF {
		score += 10
	}
	switch head {
	case 0x01, 0x02, 0x03, 0x04, 0x05, 0x08, 0x0A, 0x0C:
		score += 20
	}

	return score
}

// Engine runs catalog bruteforce over ciphertext. It is safe for
// concurrent use; all state is read-only after construction.
type Engine struct {
	Catalog *Catalog

	// CrossTry bounds how many keys from each non-identified algorithm
	// family are attempted after the identified family's full catalog.
	CrossTry int

	// Confidence thresholds: Min..Medium is weak, Medium..High is
	// medium, above High is high confidence.
	Min    int
	Medium int
	High   int
}

// NewEngine builds an engine over the given catalog with the default
// thresholds.
func NewEngine(catalog *Catalog) *Engine {
	if catalog == nil {
		catalog = Builtin()
	}
	return &Engine{
		Catalog:  catalog,
		CrossTry: 5,
		Min:      10,
		Medium:   30,
		High:     80,
	}
}

func (e *Engine) band(score int) Band {
	switch {
	case score > e.High:
		return BandHigh
	case score > e.Medium:
		return BandMedium
	case score > e.Min:
		return BandWeak
	}
	return BandNoMatch
}

// trials assembles the ordered key list for one run: the identified
// algorithm's full catalog first, then a bounded cross-try slice of
// every other family, since misidentified algorithm tags occur.
func (e *Engine) trials(alg Algorithm) []Key {
	if alg == AlgUnknown {
		alg = TEA1
	}

	var out []Key
	out = append(out, e.Catalog.Keys(alg)...)
	for _, other := range Algorithms {
		if other == alg {
			continue
		}
		keys := e.Catalog.Keys(other)
		if len(keys) > e.CrossTry {
			keys = keys[:e.CrossTry]
		}
		out = append(out, keys...)
	}
	return out
}

func degenerate(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	first := data[0]
	if first != 0x00 && first != 0xFF {
		return false
	}
	for _, b := range data[1:] {
		if b != first {
			return false
		}
	}
	return true
}

// pad right-pads ciphertext with zeros to a block multiple.
func pad(data []byte) []byte {
	if rem := len(data) % BlockSize; rem != 0 {
		padded := make([]byte, len(data)+BlockSize-rem)
		copy(padded, data)
		return padded
	}
	return data
}

// Bruteforce tries the whole trial list against ciphertext and returns
// the single best-scoring candidate. It never stops at the first key
// over the bar: a later key may score materially higher. The run is
// deterministic for identical inputs.
func (e *Engine) Bruteforce(ciphertext []byte, alg Algorithm) Result {
	if len(ciphertext) < BlockSize {
		return Result{Band: BandNoMatch}
	}

	// Constant input carries no signal; trying keys against it only
	// manufactures plausible-looking noise.
	if degenerate(ciphertext) {
		return Result{Band: BandNoMatch, Score: Score(ciphertext)}
	}

	data := pad(ciphertext)
	trials := e.trials(alg)

	best := Result{Trials: len(trials)}
	first := true
	for _, key := range trials {
		r, ok := e.trial(data, key)
		if !ok {
			continue
		}
		if first || r.Score > best.Score {
			r.Trials = len(trials)
			best = r
			first = false
		}
	}

	best.Band = e.band(best.Score)
	best.Matched = best.Band != BandNoMatch
	if !best.Matched {
		best.Plaintext = nil
	}
	return best
}

func (e *Engine) trial(data []byte, key Key) (Result, bool) {
	c, err := NewCipher(key.Algorithm, key.Bytes)
	if err != nil {
		return Result{}, false
	}
	plain, err := c.Decrypt(data)
	if err != nil {
		return Result{}, false
	}
	return Result{
		Algorithm: key.Algorithm,
		KeyID:     key.ID,
		Plaintext: plain,
		Score:     Score(plain),
	}, true
}

// Run is the parallel form of Bruteforce: trials fan out across
// workers and the results join into the same deterministic best-of
// reduction. It returns ctx.Err when cancelled before all trials
// finish, so callers can emit the frame as pending instead of
// blocking the intake path.
func (e *Engine) Run(ctx context.Context, ciphertext []byte, alg Algorithm, workers int) (Result, error) {
	if len(ciphertext) < BlockSize {
		return Result{Band: BandNoMatch}, nil
	}
	if degenerate(ciphertext) {
		return Result{Band: BandNoMatch, Score: Score(ciphertext)}, nil
	}
	if workers <= 1 {
		return e.Bruteforce(ciphertext, alg), nil
	}

	data := pad(ciphertext)
	trials := e.trials(alg)
	results := make([]Result, len(trials))
	done := make([]bool, len(trials))

	var wg sync.WaitGroup
	next := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				if r, ok := e.trial(data, trials[i]); ok {
					results[i] = r
					done[i] = true
				}
			}
		}()
	}

	cancelled := false
feed:
	for i := range trials {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		select {
		case next <- i:
		case <-ctx.Done():
			cancelled = true
			break feed
		}
	}
	close(next)
	wg.Wait()

	if cancelled {
		return Result{Band: BandPending}, ctx.Err()
	}

	// Index-ordered reduction keeps the result identical to the
	// sequential run regardless of worker scheduling.
	best := Result{Trials: len(trials)}
	first := true
	for i := range trials {
		if !done[i] {
			continue
		}
		if first || results[i].Score > best.Score {
			trialsTotal := best.Trials
			best = results[i]
			best.Trials = trialsTotal
			first = false
		}
	}
	best.Band = e.band(best.Score)
	best.Matched = best.Band != BandNoMatch
	if !best.Matched {
		best.Plaintext = nil
	}
	return best, nil
}
