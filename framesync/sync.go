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

// Package framesync tracks burst synchronization over the training
// sequence correlation stream. Absence of lock is a steady state, never
// an error: the synchronizer only ever reports Searching, Locked or
// Degraded, and feeds its hit/miss history to the statistics
// aggregator.
package framesync

import (
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"tetradec/frame"
	"tetradec/stats"
)

// State is the synchronizer's externally visible condition.
type State int

const (
	Searching State = iota
	Locked
	// Degraded means locked while running below the primary
	// correlation threshold.
	Degraded
)

func (s State) String() string {
	switch s {
	case Searching:
		return "searching"
	case Locked:
		return "locked"
	case Degraded:
		return "degraded"
	}
	return "invalid"
}

// Config holds the tuning knobs. Defaults are empirically chosen, not
// protocol constants.
type Config struct {
	// Primary correlation threshold; the ladder below it is tried when
	// no lock is achieved within RelaxAfter bursts.
	Primary float64
	Ladder  []float64
	// RelaxAfter bounds how long Searching holds a rung before
	// relaxing to the next one.
	RelaxAfter int
	// UnlockAfter is the number of consecutive low-correlation bursts
	// needed to drop a lock. A single miss never unlocks.
	UnlockAfter int
	// Debounce gates externally visible signal-present transitions in
	// both directions.
	Debounce time.Duration
	// Window is the rolling correlation window length used for
	// threshold adaptation.
	Window int
}

func DefaultConfig() Config {
	return Config{
		Primary:     0.90,
		Ladder:      []float64{0.85, 0.80},
		RelaxAfter:  50,
		UnlockAfter: 6,
		Debounce:    250 * time.Millisecond,
		Window:      64,
	}
}

// Observation is the synchronizer's verdict for one burst.
type Observation struct {
	State         State
	Hit           bool
	Threshold     float64
	Position      frame.Position
	SignalPresent bool
}

type Synchronizer struct {
	cfg Config
	agg *stats.Aggregator
	log *logrus.Entry

	// ring keeps the most recent Window bursts of demodulated bits so
	// unscored bursts can be correlated across slot boundaries.
	ring *frame.BitBuffer

	state     State
	rung      int // index into [Primary, Ladder...]
	searching int // bursts spent searching on the current rung
	misses    int // consecutive low-correlation bursts while locked

	window []float64

	anchored  bool
	anchor    uint64
	lastIndex uint64

	signal        bool
	pendingSignal bool
	pendingSince  time.Time
}

func New(cfg Config, agg *stats.Aggregator, log *logrus.Logger) *Synchronizer {
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}
	if cfg.UnlockAfter <= 0 {
		cfg.UnlockAfter = DefaultConfig().UnlockAfter
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Synchronizer{
		cfg:  cfg,
		agg:  agg,
		log:  log.WithField("component", "framesync"),
		ring: frame.NewBitBuffer(cfg.Window * frame.BitsPerBurst),
	}
}

// Threshold returns the correlation threshold currently in force.
func (s *Synchronizer) Threshold() float64 {
	if s.rung == 0 {
		return s.cfg.Primary
	}
	return s.cfg.Ladder[s.rung-1]
}

// State returns the current sync state.
func (s *Synchronizer) State() State { return s.state }

// Observe consumes one burst and advances the sync state machine.
// Bursts delivered without a demodulator correlation score are scored
// here against the known training sequences.
func (s *Synchronizer) Observe(b frame.Burst, now time.Time) Observation {
	start := s.ring.End()
	s.ring.Write(b.Bits)
	s.ring.MarkBurst(start)

	threshold := s.Threshold()
	corr := b.Correlation
	if corr == 0 {
		corr = s.rescore(start)
	}
	hit := corr >= threshold

	s.push(corr)
	if s.agg != nil {
		s.agg.Sync(hit)
	}

	switch s.state {
	case Searching:
		if hit {
			s.lock(b)
		} else {
			s.searching++
			s.relax()
		}

	case Locked, Degraded:
		if hit {
			s.misses = 0
			// A gap in the input stream invalidates the advisory
			// position; re-anchor instead of assuming continuity.
			if b.Index > s.lastIndex+1 {
				s.log.WithFields(logrus.Fields{
					"gap":   b.Index - s.lastIndex - 1,
					"index": b.Index,
				}).Debug("input gap, re-deriving frame position")
				s.anchor = b.Index
			}
			s.restore()
		} else {
			s.misses++
			if s.misses >= s.cfg.UnlockAfter {
				s.unlock()
			}
		}
	}
	s.lastIndex = b.Index

	obs := Observation{
		State:     s.state,
		Hit:       hit,
		Threshold: s.Threshold(),
	}
	if s.anchored {
		obs.Position = frame.PositionFromIndex(b.Index, s.anchor)
	}
	obs.SignalPresent = s.debounce(now)
	return obs
}

// rescore correlates the training sequences over the ring window for
// the burst written at start. The window reaches back across the
// previous burst boundary so a sequence straddling the slot edge still
// matches.
func (s *Synchronizer) rescore(start uint64) float64 {
	from := start
	if back := uint64(PatternLen - 1); from > back {
		from -= back
	} else {
		from = 0
	}
	if low := s.ring.Start(); from < low {
		from = low
	}
	bits, ok := s.ring.Range(from, int(s.ring.End()-from))
	if !ok {
		return 0
	}
	_, best := Correlate(bits, s.Threshold())
	return best
}

func (s *Synchronizer) lock(b frame.Burst) {
	s.state = Locked
	if s.rung > 0 {
		s.state = Degraded
	}
	s.misses = 0
	s.searching = 0
	s.anchored = true
	// Sync bursts carry the hierarchy reference; anything else anchors
	// relative to itself until one arrives.
	s.anchor = b.Index
	s.log.WithFields(logrus.Fields{
		"index":     b.Index,
		"threshold": s.Threshold(),
		"state":     s.state.String(),
	}).Info("burst sync acquired")
}

func (s *Synchronizer) unlock() {
	s.log.WithFields(logrus.Fields{
		"misses": s.misses,
	}).Info("burst sync lost")
	s.state = Searching
	s.misses = 0
	s.searching = 0
	s.rung = 0
	s.anchored = false
}

// relax steps down the threshold ladder when searching stalls, but
// only when the recent correlation level suggests a marginal signal
// rather than dead air.
func (s *Synchronizer) relax() {
	if s.searching < s.cfg.RelaxAfter || s.rung >= len(s.cfg.Ladder) {
		return
	}
	mean := stat.Mean(s.window, nil)
	sd := stat.StdDev(s.window, nil)
	if mean+sd < s.cfg.Ladder[s.rung] {
		// Not even close; relaxing would only admit noise.
		s.searching = 0
		return
	}
	s.rung++
	s.searching = 0
	s.log.WithFields(logrus.Fields{
		"threshold": s.Threshold(),
		"mean":      mean,
		"stddev":    sd,
	}).Warn("relaxing correlation threshold")
}

// restore climbs back toward the primary threshold once the rolling
// correlation comfortably clears it.
func (s *Synchronizer) restore() {
	if s.rung == 0 {
		s.state = Locked
		return
	}
	if stat.Mean(s.window, nil) >= s.cfg.Primary {
		s.rung = 0
		s.state = Locked
		s.log.Info("correlation recovered, primary threshold restored")
		return
	}
	s.state = Degraded
}

func (s *Synchronizer) push(corr float64) {
	s.window = append(s.window, corr)
	if len(s.window) > s.cfg.Window {
		s.window = s.window[len(s.window)-s.cfg.Window:]
	}
}

// debounce turns the raw locked/searching condition into the
// externally visible signal-present flag, holding transitions until
// the new condition has been stable for the debounce window.
func (s *Synchronizer) debounce(now time.Time) bool {
	target := s.state != Searching
	if target == s.signal {
		s.pendingSignal = s.signal
		return s.signal
	}
	if s.pendingSignal != target {
		s.pendingSignal = target
		s.pendingSince = now
		return s.signal
	}
	if now.Sub(s.pendingSince) >= s.cfg.Debounce {
		s.signal = target
	}
	return s.signal
}
