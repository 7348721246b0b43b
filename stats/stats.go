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

// Package stats keeps the pipeline's rolling counters. Counters are
// atomic per field; no cross-field consistency is promised. An
// Aggregator is an explicit instance, never package state, so several
// decode pipelines can run in one process.
package stats

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Confidence bands for trial-decryption outcomes.
const (
	BandHigh    = "high"
	BandMedium  = "medium"
	BandWeak    = "weak"
	BandNoMatch = "nomatch"
	BandPending = "pending"
)

type Aggregator struct {
	bursts      atomic.Uint64
	dropped     atomic.Uint64
	short       atomic.Uint64
	syncHits    atomic.Uint64
	syncMisses  atomic.Uint64
	crcPass     atomic.Uint64
	crcFail     atomic.Uint64
	parseFail   atomic.Uint64
	implausible atomic.Uint64
	clear       atomic.Uint64
	encrypted   atomic.Uint64
	voice       atomic.Uint64
	sdsDone     atomic.Uint64
	sdsTimeout  atomic.Uint64

	decryptAttempts atomic.Uint64
	decryptHigh     atomic.Uint64
	decryptMedium   atomic.Uint64
	decryptWeak     atomic.Uint64
	decryptNoMatch  atomic.Uint64
	decryptPending  atomic.Uint64

	algMu sync.Mutex
	byAlg map[string]uint64
	netMu sync.Mutex
	byNet map[[2]uint32]struct{}

	prom *collectors
}

type collectors struct {
	bursts      prometheus.Counter
	dropped     prometheus.Counter
	crc         *prometheus.CounterVec
	encryption  *prometheus.CounterVec
	decryptions *prometheus.CounterVec
	syncRate    prometheus.Gauge
}

// New creates an Aggregator. reg may be nil, in which case the
// prometheus collectors are created unregistered.
func New(reg prometheus.Registerer) *Aggregator {
	factory := promauto.With(reg)
	return &Aggregator{
		byAlg: make(map[string]uint64),
		byNet: make(map[[2]uint32]struct{}),
		prom: &collectors{
			bursts: factory.NewCounter(prometheus.CounterOpts{
				Name: "tetradec_bursts_total",
				Help: "Bursts accepted by the decode pipeline.",
			}),
			dropped: factory.NewCounter(prometheus.CounterOpts{
				Name: "tetradec_bursts_dropped_total",
				Help: "Bursts dropped because the input queue was full.",
			}),
			crc: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "tetradec_crc_total",
				Help: "Channel integrity check outcomes.",
			}, []string{"result"}),
			encryption: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "tetradec_encryption_total",
				Help: "Frames by encryption classification.",
			}, []string{"algorithm"}),
			decryptions: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "tetradec_decrypt_total",
				Help: "Trial-decryption outcomes by confidence band.",
			}, []string{"band"}),
			syncRate: factory.NewGauge(prometheus.GaugeOpts{
				Name: "tetradec_sync_rate",
				Help: "Fraction of recent bursts passing sync correlation.",
			}),
		},
	}
}

func (a *Aggregator) Burst()      { a.bursts.Add(1); a.prom.bursts.Inc() }
func (a *Aggregator) Dropped()    { a.dropped.Add(1); a.prom.dropped.Inc() }
func (a *Aggregator) ShortBurst() { a.short.Add(1) }

func (a *Aggregator) Sync(hit bool) {
	if hit {
		a.syncHits.Add(1)
	} else {
		a.syncMisses.Add(1)
	}
	a.prom.syncRate.Set(a.SyncRate())
}

func (a *Aggregator) CRC(ok bool) {
	if ok {
		a.crcPass.Add(1)
		a.prom.crc.WithLabelValues("pass").Inc()
	} else {
		a.crcFail.Add(1)
		a.prom.crc.WithLabelValues("fail").Inc()
	}
}

func (a *Aggregator) ParseFailure()       { a.parseFail.Add(1) }
func (a *Aggregator) ImplausibleNetwork() { a.implausible.Add(1) }
func (a *Aggregator) VoiceFrame()         { a.voice.Add(1) }
func (a *Aggregator) SDSCompleted()       { a.sdsDone.Add(1) }
func (a *Aggregator) SDSTimeout()         { a.sdsTimeout.Add(1) }

// Encryption records a frame's encryption classification. alg is the
// algorithm label, or "clear" for unencrypted frames.
func (a *Aggregator) Encryption(alg string, encrypted bool) {
	if encrypted {
		a.encrypted.Add(1)
	} else {
		a.clear.Add(1)
		alg = "clear"
	}
	a.algMu.Lock()
	a.byAlg[alg]++
	a.algMu.Unlock()
	a.prom.encryption.WithLabelValues(alg).Inc()
}

// Decryption records a trial-decryption outcome by confidence band.
func (a *Aggregator) Decryption(band string) {
	a.decryptAttempts.Add(1)
	switch band {
	case BandHigh:
		a.decryptHigh.Add(1)
	case BandMedium:
		a.decryptMedium.Add(1)
	case BandWeak:
		a.decryptWeak.Add(1)
	case BandPending:
		a.decryptPending.Add(1)
	default:
		a.decryptNoMatch.Add(1)
	}
	a.prom.decryptions.WithLabelValues(band).Inc()
}

// Network remembers a validated (MCC, MNC) observation.
func (a *Aggregator) Network(mcc, mnc uint32) {
	a.netMu.Lock()
	a.byNet[[2]uint32{mcc, mnc}] = struct{}{}
	a.netMu.Unlock()
}

// SyncRate is the fraction of bursts passing sync correlation, read by
// the synchronizer for threshold adaptation.
func (a *Aggregator) SyncRate() float64 {
	hits, misses := a.syncHits.Load(), a.syncMisses.Load()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

// Snapshot is a read-only view of the counters, composed field by
// field; it is eventually consistent across fields.
type Snapshot struct {
	Bursts             uint64            `json:"bursts"`
	Dropped            uint64            `json:"dropped"`
	ShortBursts        uint64            `json:"short_bursts"`
	SyncHits           uint64            `json:"sync_hits"`
	SyncMisses         uint64            `json:"sync_misses"`
	SyncRate           float64           `json:"sync_rate"`
	CRCPass            uint64            `json:"crc_pass"`
	CRCFail            uint64            `json:"crc_fail"`
	CRCRate            float64           `json:"crc_rate"`
	ParseFailures      uint64            `json:"parse_failures"`
	ImplausibleNetwork uint64            `json:"implausible_network"`
	ClearFrames        uint64            `json:"clear_frames"`
	EncryptedFrames    uint64            `json:"encrypted_frames"`
	VoiceFrames        uint64            `json:"voice_frames"`
	SDSCompleted       uint64            `json:"sds_completed"`
	SDSTimeouts        uint64            `json:"sds_timeouts"`
	DecryptAttempts    uint64            `json:"decrypt_attempts"`
	DecryptHigh        uint64            `json:"decrypt_high"`
	DecryptMedium      uint64            `json:"decrypt_medium"`
	DecryptWeak        uint64            `json:"decrypt_weak"`
	DecryptNoMatch     uint64            `json:"decrypt_nomatch"`
	DecryptPending     uint64            `json:"decrypt_pending"`
	ByAlgorithm        map[string]uint64 `json:"by_algorithm"`
	Networks           [][2]uint32       `json:"networks"`
}

func (a *Aggregator) Snapshot() Snapshot {
	s := Snapshot{
		Bursts:             a.bursts.Load(),
		Dropped:            a.dropped.Load(),
		ShortBursts:        a.short.Load(),
		SyncHits:           a.syncHits.Load(),
		SyncMisses:         a.syncMisses.Load(),
		SyncRate:           a.SyncRate(),
		CRCPass:            a.crcPass.Load(),
		CRCFail:            a.crcFail.Load(),
		ParseFailures:      a.parseFail.Load(),
		ImplausibleNetwork: a.implausible.Load(),
		ClearFrames:        a.clear.Load(),
		EncryptedFrames:    a.encrypted.Load(),
		VoiceFrames:        a.voice.Load(),
		SDSCompleted:       a.sdsDone.Load(),
		SDSTimeouts:        a.sdsTimeout.Load(),
		DecryptAttempts:    a.decryptAttempts.Load(),
		DecryptHigh:        a.decryptHigh.Load(),
		DecryptMedium:      a.decryptMedium.Load(),
		DecryptWeak:        a.decryptWeak.Load(),
		DecryptNoMatch:     a.decryptNoMatch.Load(),
		DecryptPending:     a.decryptPending.Load(),
		ByAlgorithm:        make(map[string]uint64),
	}
	if s.CRCPass+s.CRCFail > 0 {
		s.CRCRate = float64(s.CRCPass) / float64(s.CRCPass+s.CRCFail)
	}
	a.algMu.Lock()
	for alg, n := range a.byAlg {
		s.ByAlgorithm[alg] = n
	}
	a.algMu.Unlock()
	a.netMu.Lock()
	for net := range a.byNet {
		s.Networks = append(s.Networks, net)
	}
	a.netMu.Unlock()
	return s
}

// Reset zeroes the counters. Only an explicit operator restart calls
// this; the prometheus counters are monotonic and left alone.
func (a *Aggregator) Reset() {
	a.bursts.Store(0)
	a.dropped.Store(0)
	a.short.Store(0)
	a.syncHits.Store(0)
	a.syncMisses.Store(0)
	a.crcPass.Store(0)
	a.crcFail.Store(0)
	a.parseFail.Store(0)
	a.implausible.Store(0)
	a.clear.Store(0)
	a.encrypted.Store(0)
	a.voice.Store(0)
	a.sdsDone.Store(0)
	a.sdsTimeout.Store(0)
	a.decryptAttempts.Store(0)
	a.decryptHigh.Store(0)
	a.decryptMedium.Store(0)
	a.decryptWeak.Store(0)
	a.decryptNoMatch.Store(0)
	a.decryptPending.Store(0)
	a.algMu.Lock()
	a.byAlg = make(map[string]uint64)
	a.algMu.Unlock()
	a.netMu.Lock()
	a.byNet = make(map[[2]uint32]struct{})
	a.netMu.Unlock()
}
