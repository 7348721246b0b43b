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

// Package sds reassembles fragmented short data messages and decodes
// their text, location and binary payload encodings.
package sds

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultTimeout is the liveness window for incomplete assemblies.
const DefaultTimeout = 30 * time.Second

// Key identifies one assembly: fragments mix only within the same
// sender and sequence base.
type Key struct {
	Source  uint32
	SeqBase uint8
}

// Fragment is one short-data fragment routed to the reassembler.
type Fragment struct {
	Source  uint32
	SeqBase uint8
	Index   uint8
	// Total declares the fragment count when known; zero means
	// undeclared. A Final fragment implies Total = Index+1 when no
	// declaration arrived.
	Total   uint8
	Final   bool
	Payload []byte
}

// Message is a completed reassembly.
type Message struct {
	ID        uuid.UUID
	Source    uint32
	SeqBase   uint8
	Fragments int
	Payload   []byte
	Decoded   Decoded
}

type assembly struct {
	id       uuid.UUID
	parts    map[uint8][]byte
	received uint32 // fragment bitmap
	total    int    // 0 until declared
	deadline time.Time
	done     bool
}

func (a *assembly) complete() bool {
	if a.done || a.total == 0 || a.total > 32 {
		return false
	}
	want := uint32(1)<<uint(a.total) - 1
	return a.received&want == want
}

// Reassembler accumulates fragments across bursts. Assemblies are
// keyed independently; finalization is idempotent, so a duplicated
// final fragment cannot double-emit.
type Reassembler struct {
	mu      sync.Mutex
	byKey   map[Key]*assembly
	timeout time.Duration
	log     *logrus.Entry
}

func NewReassembler(timeout time.Duration, log *logrus.Logger) *Reassembler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Reassembler{
		byKey:   make(map[Key]*assembly),
		timeout: timeout,
		log:     log.WithField("component", "sds"),
	}
}

// Add routes one fragment. When the fragment completes its assembly,
// the reassembled message is returned exactly once; all other calls
// return nil.
func (r *Reassembler) Add(f Fragment, now time.Time) *Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := Key{Source: f.Source, SeqBase: f.SeqBase}
	a, ok := r.byKey[key]
	if !ok {
		a = &assembly{id: uuid.New(), parts: make(map[uint8][]byte)}
		r.byKey[key] = a
	}
	if a.done {
		// Late or duplicated fragment of an already-emitted message.
		return nil
	}
	a.deadline = now.Add(r.timeout)

	if f.Index < 32 {
		if _, dup := a.parts[f.Index]; !dup {
			a.parts[f.Index] = append([]byte(nil), f.Payload...)
			a.received |= 1 << uint(f.Index)
		}
	}
	if f.Total > 0 {
		a.total = int(f.Total)
	} else if f.Final && a.total == 0 {
		a.total = int(f.Index) + 1
	}

	if !a.complete() {
		return nil
	}
	a.done = true

	payload := make([]byte, 0)
	for i := 0; i < a.total; i++ {
		payload = append(payload, a.parts[uint8(i)]...)
	}

	msg := &Message{
		ID:        a.id,
		Source:    f.Source,
		SeqBase:   f.SeqBase,
		Fragments: a.total,
		Payload:   payload,
		Decoded:   Decode(payload),
	}
	r.log.WithFields(logrus.Fields{
		"source":    f.Source,
		"fragments": a.total,
		"bytes":     len(payload),
		"encoding":  msg.Decoded.Encoding.String(),
	}).Debug("short data message completed")
	return msg
}

// Sweep garbage-collects assemblies whose liveness window elapsed. It
// returns the number of incomplete assemblies dropped; completed
// tombstones are removed silently.
func (r *Reassembler) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	dropped := 0
	for key, a := range r.byKey {
		if now.Before(a.deadline) {
			continue
		}
		if !a.done {
			dropped++
			r.log.WithFields(logrus.Fields{
				"source":   key.Source,
				"received": len(a.parts),
				"declared": a.total,
			}).Debug("dropped stale partial assembly")
		}
		delete(r.byKey, key)
	}
	return dropped
}

// Flush discards all incomplete assemblies, for teardown. Returns the
// number discarded.
func (r *Reassembler) Flush() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	dropped := 0
	for key, a := range r.byKey {
		if !a.done {
			dropped++
		}
		delete(r.byKey, key)
	}
	return dropped
}

// Pending reports the number of live incomplete assemblies.
func (r *Reassembler) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, a := range r.byKey {
		if !a.done {
			n++
		}
	}
	return n
}
