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

// Package meta derives call and network level facts from parsed MAC
// PDUs. Everything here is derived, never authoritative: absent fields
// mean unknown, not none.
package meta

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"tetradec/mac"
	"tetradec/tea"
)

// Valid ITU-T E.212 ranges. Identifiers outside them mark the burst as
// noise rather than a network observation.
const (
	MCCMin = 200
	MCCMax = 799
	MNCMax = 999
)

// ErrImplausibleNetwork rejects out-of-range MCC/MNC values.
var ErrImplausibleNetwork = errors.New("meta: implausible network identifier")

// ChannelKind classifies the traffic a call carries.
type ChannelKind int

const (
	ChannelUnknown ChannelKind = iota
	ChannelVoice
	ChannelData
)

func (k ChannelKind) String() string {
	switch k {
	case ChannelVoice:
		return "voice"
	case ChannelData:
		return "data"
	}
	return "unknown"
}

// Phase is the signalling phase a PDU belongs to.
type Phase int

const (
	PhaseUnknown Phase = iota
	PhaseSetup
	PhaseActive
	PhaseTeardown
	PhaseRegistration
)

func (p Phase) String() string {
	switch p {
	case PhaseSetup:
		return "setup"
	case PhaseActive:
		return "active"
	case PhaseTeardown:
		return "teardown"
	case PhaseRegistration:
		return "registration"
	}
	return "unknown"
}

// Network is a validated network identity observation.
type Network struct {
	MCC        uint32
	MNC        uint32
	ColourCode uint8
}

// CallMetadata carries whatever call-level facts a PDU yielded. Has*
// flags distinguish genuine zero values from absent fields.
type CallMetadata struct {
	Kind  ChannelKind
	Phase Phase
	Group bool

	Talkgroup    uint32
	HasTalkgroup bool
	SourceSSI    uint32
	HasSource    bool
	DestSSI      uint32
	HasDest      bool

	Channel    uint8
	HasChannel bool
	CallID     uint32
	HasCallID  bool
	Priority   uint8

	Network *Network
}

// EncryptionState is the presumed-encrypted verdict for one frame plus
// the trial-decryption outcome once attempted. Result stays nil when
// no attempt was made or it missed the real-time budget.
type EncryptionState struct {
	Encrypted bool
	Algorithm tea.Algorithm
	Result    *tea.Result
}

// Encryption derives the encryption state for a PDU. The default is
// encrypted: real networks encrypt by default, and a false "clear"
// classification is the costlier error. Clear requires the explicit
// clear-mode header flag together with a payload whose byte entropy is
// consistent with plaintext signalling.
func Encryption(p *mac.Pdu) EncryptionState {
	state := EncryptionState{Encrypted: true}
	if p == nil {
		return state
	}
	if p.EncryptionMode == mac.EncModeClear && plaintextLike(p.Payload) {
		state.Encrypted = false
	}
	return state
}

// plaintextLike corroborates a clear-mode claim: ciphertext is close
// to uniformly random, so a high unique-byte ratio over a non-trivial
// payload contradicts the clear flag. Short payloads cannot be judged
// and get the benefit of the doubt.
func plaintextLike(payload []byte) bool {
	if len(payload) <= 8 {
		return true
	}
	unique := make(map[byte]struct{}, len(payload))
	for _, b := range payload {
		unique[b] = struct{}{}
	}
	return float64(len(unique))/float64(len(payload)) <= 0.7
}

// Extractor turns PDUs into call metadata. It remembers the last
// validated network identity so call records carry it even when the
// triggering PDU has no SYSINFO of its own.
type Extractor struct {
	lastNet *Network
	log     *logrus.Entry
}

func NewExtractor(log *logrus.Logger) *Extractor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Extractor{log: log.WithField("component", "meta")}
}

// LastNetwork returns the most recent validated network identity, or
// nil before the first SYSINFO.
func (e *Extractor) LastNetwork() *Network { return e.lastNet }

// Extract derives CallMetadata from one PDU. A nil result with nil
// error means the PDU type carries no call metadata. An implausible
// network identifier returns ErrImplausibleNetwork and must suppress
// the frame from metadata reporting.
func (e *Extractor) Extract(p *mac.Pdu) (*CallMetadata, error) {
	if p == nil {
		return nil, nil
	}
	switch p.Type {
	case mac.PduResource:
		return e.resourceAssignment(p)
	case mac.PduUSignal:
		return e.callSetup(p)
	case mac.PduBroadcast:
		return e.broadcast(p)
	case mac.PduSupplementary:
		return e.teardown(p)
	}
	return nil, nil
}

// resourceAssignment maps the channel-allocation layout:
// byte 0 call flags, 1-3 talkgroup, 4 channel, 5 encryption and
// priority, 6-7 call identifier, then the TM-SDU.
func (e *Extractor) resourceAssignment(p *mac.Pdu) (*CallMetadata, error) {
	data := p.Payload
	if len(data) < 8 {
		return nil, nil
	}

	m := &CallMetadata{
		Kind:    ChannelVoice,
		Phase:   PhaseActive,
		Group:   data[0]&0x80 != 0,
		Network: e.lastNet,
	}
	m.Talkgroup = uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3])
	m.HasTalkgroup = true
	m.Channel = data[4] & 0x3F
	m.HasChannel = true
	m.Priority = (data[5] >> 2) & 0x0F
	m.CallID = uint32(data[6]&0x0F)<<10 | uint32(data[7])<<2
	m.HasCallID = true

	// The calling party SSI sits somewhere in the TM-SDU; scan for a
	// 24-bit value in the plausible subscriber range that is not the
	// talkgroup itself.
	for i := 8; i+3 <= len(data); i++ {
		val := uint32(data[i])<<16 | uint32(data[i+1])<<8 | uint32(data[i+2])
		if val != m.Talkgroup && val > 1000 && val < 16000000 {
			m.SourceSSI = val
			m.HasSource = true
			break
		}
	}

	return m, nil
}

// callSetup maps the U-SIGNAL layout: bytes 0-2 source SSI, 3-5
// destination SSI, 6 call flags, 7 encryption flags.
func (e *Extractor) callSetup(p *mac.Pdu) (*CallMetadata, error) {
	data := p.Payload
	if len(data) < 8 {
		return nil, nil
	}

	m := &CallMetadata{Phase: PhaseSetup, Network: e.lastNet}
	m.SourceSSI = uint32(data[0])<<16 | uint32(data[1])<<8 | uint32(data[2])
	m.HasSource = true
	m.DestSSI = uint32(data[3])<<16 | uint32(data[4])<<8 | uint32(data[5])
	m.HasDest = true

	if data[6]&0x80 != 0 {
		m.Kind = ChannelVoice
		m.Talkgroup = m.DestSSI
		m.HasTalkgroup = true
		m.Group = true
	} else {
		m.Kind = ChannelData
	}

	return m, nil
}

// SetupAlgorithm reads the cipher family announced in a call-setup
// PDU, or AlgUnknown when none is announced.
func SetupAlgorithm(p *mac.Pdu) tea.Algorithm {
	if p == nil || p.Type != mac.PduUSignal || len(p.Payload) < 8 {
		return tea.AlgUnknown
	}
	if p.Payload[7]&0x80 == 0 {
		return tea.AlgUnknown
	}
	switch (p.Payload[7] >> 4) & 0x07 {
	case 1:
		return tea.TEA1
	case 2:
		return tea.TEA2
	case 3:
		return tea.TEA3
	case 4:
		return tea.TEA4
	}
	return tea.AlgUnknown
}

func (e *Extractor) broadcast(p *mac.Pdu) (*CallMetadata, error) {
	if p.Sysinfo == nil {
		return nil, nil
	}
	net, err := ValidateNetwork(p.Sysinfo.MCC, p.Sysinfo.MNC, p.Sysinfo.ColourCode)
	if err != nil {
		e.log.WithFields(logrus.Fields{
			"mcc": p.Sysinfo.MCC,
			"mnc": p.Sysinfo.MNC,
		}).Debug("rejected implausible network identity")
		return nil, err
	}

	if e.lastNet == nil || *e.lastNet != *net {
		e.log.WithFields(logrus.Fields{
			"mcc":    net.MCC,
			"mnc":    net.MNC,
			"colour": net.ColourCode,
		}).Info("network identity observed")
	}
	e.lastNet = net

	return &CallMetadata{Phase: PhaseRegistration, Network: net}, nil
}

func (e *Extractor) teardown(p *mac.Pdu) (*CallMetadata, error) {
	m := &CallMetadata{Phase: PhaseTeardown, Network: e.lastNet}
	if p.HasAddress {
		m.DestSSI = p.Address
		m.HasDest = true
	}
	return m, nil
}

// ValidateNetwork applies the E.212 plausibility gate.
func ValidateNetwork(mcc, mnc uint32, colour uint8) (*Network, error) {
	if mcc < MCCMin || mcc > MCCMax {
		return nil, errors.Wrapf(ErrImplausibleNetwork, "mcc %d", mcc)
	}
	if mnc > MNCMax {
		return nil, errors.Wrapf(ErrImplausibleNetwork, "mnc %d", mnc)
	}
	return &Network{MCC: mcc, MNC: mnc, ColourCode: colour}, nil
}
