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

// Package pipeline drives one burst through sync, channel decode, PDU
// parsing and the metadata/SDS/cipher consumers, emitting a
// DecodedFrame per parsed burst. The intake path is real-time: a full
// queue drops the oldest unprocessed burst, and cipher trials that
// miss their deadline leave the frame pending rather than stalling the
// next slot.
package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"tetradec/channel"
	"tetradec/frame"
	"tetradec/framesync"
	"tetradec/mac"
	"tetradec/meta"
	"tetradec/sds"
	"tetradec/stats"
	"tetradec/tea"
)

// VoiceSink receives traffic-channel payloads for an external codec.
// Implementations must not block; the pipeline calls them inline.
type VoiceSink interface {
	VoiceFrame(pos frame.Position, payload []byte, decrypted bool)
}

// DecodedFrame is the externally visible unit: one per parsed burst,
// emitted even on CRC failure so downstream consumers can still see
// whatever metadata survived.
type DecodedFrame struct {
	ID        uuid.UUID       `json:"id"`
	Index     uint64          `json:"index"`
	Position  frame.Position  `json:"position"`
	SyncState framesync.State `json:"sync_state"`

	CRCOK     bool `json:"crc_ok"`
	BitErrors int  `json:"bit_errors"`

	Pdu        *mac.Pdu             `json:"pdu,omitempty"`
	Metadata   *meta.CallMetadata   `json:"metadata,omitempty"`
	Encryption meta.EncryptionState `json:"encryption"`
	SDS        *sds.Message         `json:"sds,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

func (df DecodedFrame) String() string {
	pduType := "none"
	if df.Pdu != nil {
		pduType = df.Pdu.Type.String()
	}
	return fmt.Sprintf("{Position:%s Type:%s CRC:%t Encrypted:%t}",
		df.Position, pduType, df.CRCOK, df.Encryption.Encrypted,
	)
}

// Record implements the csv Recorder interface.
func (df DecodedFrame) Record() (r []string) {
	r = append(r, df.Timestamp.Format(time.RFC3339Nano))
	r = append(r, strconv.FormatUint(df.Index, 10))
	r = append(r, df.Position.String())
	r = append(r, df.SyncState.String())
	r = append(r, strconv.FormatBool(df.CRCOK))

	if df.Pdu != nil {
		r = append(r, df.Pdu.Type.String())
		r = append(r, strconv.FormatUint(uint64(df.Pdu.Address), 10))
	} else {
		r = append(r, "", "")
	}

	r = append(r, strconv.FormatBool(df.Encryption.Encrypted))
	if res := df.Encryption.Result; res != nil {
		r = append(r, res.Band.String(), res.KeyID)
	} else if df.Encryption.Encrypted {
		r = append(r, tea.BandPending.String(), "")
	} else {
		r = append(r, "", "")
	}

	if df.SDS != nil {
		r = append(r, df.SDS.Decoded.Text)
	} else {
		r = append(r, "")
	}
	return
}

// Config collects the pipeline's tunables.
type Config struct {
	// QueueDepth bounds the intake queue; a full queue drops the
	// oldest unprocessed burst.
	QueueDepth int

	// CipherDeadline is the per-frame budget for trial decryption.
	// Trials that outlive it leave the frame pending.
	CipherDeadline time.Duration
	CipherWorkers  int

	// Tolerance is the accepted Hamming distance on the burst check
	// value.
	Tolerance int

	SDSTimeout    time.Duration
	SweepInterval time.Duration

	Sync framesync.Config
}

func DefaultConfig() Config {
	return Config{
		QueueDepth:     64,
		CipherDeadline: 10 * time.Millisecond,
		CipherWorkers:  4,
		Tolerance:      3,
		SDSTimeout:     sds.DefaultTimeout,
		SweepInterval:  time.Second,
		Sync:           framesync.DefaultConfig(),
	}
}

// Pipeline owns the per-burst decode path. Feed is safe to call from
// the intake goroutine while Run drains; Process is the synchronous
// single-burst path underneath.
type Pipeline struct {
	cfg    Config
	sync   *framesync.Synchronizer
	dec    channel.Decoder
	meta   *meta.Extractor
	asm    *sds.Reassembler
	engine *tea.Engine
	agg    *stats.Aggregator
	voice  VoiceSink
	log    *logrus.Entry

	in  chan frame.Burst
	out chan DecodedFrame

	// lastAlg is the cipher family announced by the most recent call
	// setup, used to order bruteforce trials for later frames.
	lastAlg   tea.Algorithm
	lastSweep time.Time
}

func New(cfg Config, engine *tea.Engine, agg *stats.Aggregator, voice VoiceSink, log *logrus.Logger) *Pipeline {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if agg == nil {
		agg = stats.New(nil)
	}
	if engine == nil {
		engine = tea.NewEngine(nil)
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = DefaultConfig().QueueDepth
	}
	if cfg.CipherDeadline <= 0 {
		cfg.CipherDeadline = DefaultConfig().CipherDeadline
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultConfig().SweepInterval
	}

	return &Pipeline{
		cfg:    cfg,
		sync:   framesync.New(cfg.Sync, agg, log),
		dec:    channel.NewDecoder(cfg.Tolerance),
		meta:   meta.NewExtractor(log),
		asm:    sds.NewReassembler(cfg.SDSTimeout, log),
		engine: engine,
		agg:    agg,
		voice:  voice,
		log:    log.WithField("component", "pipeline"),
		in:     make(chan frame.Burst, cfg.QueueDepth),
		out:    make(chan DecodedFrame, cfg.QueueDepth),
	}
}

// Frames is the emitted DecodedFrame stream. Closed when Run returns.
func (p *Pipeline) Frames() <-chan DecodedFrame { return p.out }

// Stats exposes the aggregator for external reporting.
func (p *Pipeline) Stats() *stats.Aggregator { return p.agg }

// Feed queues a burst without blocking. When the queue is full the
// oldest unprocessed burst is dropped: stale bursts have lost their
// real-time relevance, the newest has not.
func (p *Pipeline) Feed(b frame.Burst) {
	for {
		select {
		case p.in <- b:
			return
		default:
		}
		select {
		case <-p.in:
			p.agg.Dropped()
		default:
		}
	}
}

// Run drains the intake queue until ctx is cancelled, then flushes
// incomplete SDS assemblies and closes the frame stream.
func (p *Pipeline) Run(ctx context.Context) error {
	defer close(p.out)
	for {
		select {
		case <-ctx.Done():
			p.teardown()
			return ctx.Err()
		case b := <-p.in:
			df, err := p.Process(ctx, b, time.Now())
			if err != nil {
				p.log.WithError(err).Debug("burst rejected")
				continue
			}
			if df == nil {
				continue
			}
			select {
			case p.out <- *df:
			case <-ctx.Done():
				p.teardown()
				return ctx.Err()
			}
		}
	}
}

// Process runs one burst through the full decode path. A nil frame
// with nil error means the burst carried nothing to report (no sync
// hit). Errors are per-burst: the caller counts and continues.
func (p *Pipeline) Process(ctx context.Context, b frame.Burst, now time.Time) (*DecodedFrame, error) {
	p.agg.Burst()

	if len(b.Bits) < frame.BitsPerBurst {
		p.agg.ShortBurst()
		return nil, errors.Wrapf(frame.ErrShortBurst, "burst %d", b.Index)
	}

	obs := p.sync.Observe(b, now)
	p.sweep(now)
	if !obs.Hit {
		return nil, nil
	}

	res, err := p.dec.Decode(b, false)
	if err != nil {
		return nil, errors.Wrapf(err, "burst %d", b.Index)
	}
	if !res.CRCOK && b.Type == frame.BurstNormal {
		// A failed normal burst may be a frame-stealing burst; the
		// mixed deinterleave is the only other candidate order.
		if stolen, serr := p.dec.Decode(b, true); serr == nil && stolen.CRCOK {
			res = stolen
		}
	}
	p.agg.CRC(res.CRCOK)

	df := &DecodedFrame{
		ID:        uuid.New(),
		Index:     b.Index,
		Position:  obs.Position,
		SyncState: obs.State,
		CRCOK:     res.CRCOK,
		BitErrors: res.BitErrors,
		Timestamp: now,
	}

	pdu, err := mac.Parse(res.Payload)
	if err != nil {
		p.agg.ParseFailure()
		df.Encryption = meta.Encryption(nil)
		return df, nil
	}
	df.Pdu = pdu

	md, err := p.meta.Extract(pdu)
	switch {
	case errors.Is(err, meta.ErrImplausibleNetwork):
		p.agg.ImplausibleNetwork()
	case err != nil:
		p.agg.ParseFailure()
	case md != nil:
		df.Metadata = md
		if md.Network != nil {
			p.agg.Network(md.Network.MCC, md.Network.MNC)
		}
	}

	if alg := meta.SetupAlgorithm(pdu); alg != tea.AlgUnknown {
		p.lastAlg = alg
	}

	df.Encryption = meta.Encryption(pdu)
	if df.Encryption.Encrypted {
		df.Encryption.Algorithm = p.lastAlg
	}
	p.agg.Encryption(df.Encryption.Algorithm.String(), df.Encryption.Encrypted)

	if df.Encryption.Encrypted && len(pdu.Payload) >= tea.BlockSize {
		p.decrypt(ctx, df, pdu)
	}

	payload := pdu.Payload
	decrypted := false
	if r := df.Encryption.Result; r != nil && r.Matched {
		payload = r.Plaintext
		decrypted = true
	}

	if msg := p.routeSDS(pdu, payload, now); msg != nil {
		df.SDS = msg
		p.agg.SDSCompleted()
	}

	if p.voice != nil && df.Metadata != nil && df.Metadata.Kind == meta.ChannelVoice {
		p.voice.VoiceFrame(obs.Position, payload, decrypted)
		p.agg.VoiceFrame()
	}

	return df, nil
}

// decrypt fans the key catalog out under the per-frame deadline. A
// deadline miss leaves Result nil; the frame ships pending instead of
// delaying the next slot.
func (p *Pipeline) decrypt(ctx context.Context, df *DecodedFrame, pdu *mac.Pdu) {
	tctx, cancel := context.WithTimeout(ctx, p.cfg.CipherDeadline)
	defer cancel()

	res, err := p.engine.Run(tctx, pdu.Payload, df.Encryption.Algorithm, p.cfg.CipherWorkers)
	if err != nil || res.Band == tea.BandPending {
		p.agg.Decryption(stats.BandPending)
		return
	}
	df.Encryption.Result = &res
	p.agg.Decryption(res.Band.String())

	if res.Matched {
		p.log.WithFields(logrus.Fields{
			"alg":   res.Algorithm,
			"key":   res.KeyID,
			"band":  res.Band,
			"score": res.Score,
		}).Info("trial decryption matched")
	}
}

// routeSDS forwards fragment-bearing PDUs to the reassembler. A
// MAC-DATA PDU is a complete single-fragment message; MAC-FRAG and
// MAC-END carry the sequence octet.
func (p *Pipeline) routeSDS(pdu *mac.Pdu, payload []byte, now time.Time) *sds.Message {
	if !pdu.HasAddress || len(payload) == 0 {
		return nil
	}

	var frag sds.Fragment
	switch pdu.Type {
	case mac.PduFragment, mac.PduEnd:
		frag = sds.Fragment{
			Source:  pdu.Address,
			SeqBase: pdu.SequenceBase(),
			Index:   pdu.FragmentIndex(),
			Final:   pdu.Type == mac.PduEnd,
			Payload: payload,
		}
	case mac.PduData:
		frag = sds.Fragment{
			Source:  pdu.Address,
			Total:   1,
			Final:   true,
			Payload: payload,
		}
	default:
		return nil
	}

	return p.asm.Add(frag, now)
}

func (p *Pipeline) sweep(now time.Time) {
	if now.Sub(p.lastSweep) < p.cfg.SweepInterval {
		return
	}
	p.lastSweep = now
	for i := p.asm.Sweep(now); i > 0; i-- {
		p.agg.SDSTimeout()
	}
}

// teardown discards incomplete assemblies explicitly so shutdown never
// emits a partial message.
func (p *Pipeline) teardown() {
	flushed := p.asm.Flush()
	for i := 0; i < flushed; i++ {
		p.agg.SDSTimeout()
	}
	if flushed > 0 {
		p.log.WithField("flushed", flushed).Info("discarded incomplete assemblies")
	}
}
