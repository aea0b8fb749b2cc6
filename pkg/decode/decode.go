// Package decode extracts physical signal values from raw CAN frames
// using a compiled catalog. Decoding is pure computation over the frame
// payload and the read-only catalog, so one Decoder may serve many
// goroutines.
package decode

import (
	"time"

	"github.com/cockroachdb/errors"
	"go.einride.tech/can"

	"parren.ch/candi/pkg/catalog"
)

var (
	// ErrUnknownMessage marks a frame whose identifier is not in the
	// catalog. Fatal to that frame, not to the session.
	ErrUnknownMessage = errors.New("unknown message")

	// ErrTruncatedFrame marks a payload too short to cover an active
	// signal's bit range.
	ErrTruncatedFrame = errors.New("truncated frame")
)

type (
	// Frame is one runtime input: a CAN frame plus its arrival time.
	Frame struct {
		can.Frame
		Timestamp time.Time
	}

	// Observation is one decoded signal value. Produced fresh per decode
	// call; no state is shared between observations.
	Observation struct {
		MessageID   uint32
		MessageName string
		Signal      string
		Raw         uint64
		Value       float64
		Unit        string
		UnitMapped  bool
		OutOfRange  bool
		Transmitter string
		Timestamp   time.Time
	}

	Decoder struct {
		cat *catalog.Catalog
	}
)

func NewDecoder(cat *catalog.Catalog) *Decoder {
	return &Decoder{cat: cat}
}

// Decode returns the observations for every signal active in the frame,
// in catalog order. An unknown identifier or a payload too short for an
// active signal fails the whole frame and yields no observations.
func (d *Decoder) Decode(f Frame) ([]Observation, error) {
	m, ok := d.cat.Message(f.ID)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownMessage, "id 0x%X", f.ID)
	}
	payload := f.Data[:]
	if f.Length < 8 {
		payload = payload[:f.Length]
	}

	var muxValue uint64
	if m.Multiplexer != nil {
		v, err := rawValue(payload, m, m.Multiplexer)
		if err != nil {
			return nil, err
		}
		muxValue = v
	}

	obs := make([]Observation, 0, len(m.Signals))
	for _, s := range m.Signals {
		if s.IsMultiplexed && s.MultiplexerValue != muxValue {
			continue
		}
		o, err := d.decodeSignal(payload, m, s, f.Timestamp)
		if err != nil {
			return nil, err
		}
		obs = append(obs, o)
	}
	return obs, nil
}

func (d *Decoder) decodeSignal(payload []byte, m *catalog.Message, s *catalog.Signal, ts time.Time) (Observation, error) {
	raw, err := rawValue(payload, m, s)
	if err != nil {
		return Observation{}, err
	}
	phys := float64(raw)
	if s.IsSigned {
		phys = float64(signedValue(raw, s))
	}
	value := phys*s.Scale + s.Offset
	return Observation{
		MessageID:   m.ID,
		MessageName: m.Name,
		Signal:      s.Name,
		Raw:         raw,
		Value:       value,
		Unit:        s.CanonicalUnit,
		UnitMapped:  s.UnitMapped,
		OutOfRange:  s.HasRange() && (value < s.Min || value > s.Max),
		Transmitter: m.Transmitter,
		Timestamp:   ts,
	}, nil
}

func rawValue(payload []byte, m *catalog.Message, s *catalog.Signal) (uint64, error) {
	if int(s.RequiredBytes()) > len(payload) {
		return 0, errors.Wrapf(ErrTruncatedFrame,
			"message %v, signal %v: need %d bytes, have %d",
			m.Name, s.Name, s.RequiredBytes(), len(payload))
	}
	if s.IsBigEndian {
		return extractBigEndian(payload, s.Start, s.Length), nil
	}
	return extractLittleEndian(payload, s.Start, s.Length), nil
}

// extractLittleEndian reads an Intel layout signal: bits are numbered
// LSB-first within each byte and the signal grows towards higher bytes.
func extractLittleEndian(payload []byte, start, length uint8) uint64 {
	var v uint64
	for i := uint8(0); i < length; i++ {
		pos := int(start) + int(i)
		bit := (payload[pos/8] >> uint(pos%8)) & 1
		v |= uint64(bit) << uint(i)
	}
	return v
}

// extractBigEndian reads a Motorola layout signal: the start bit is the
// most significant bit, and the walk descends within a byte before
// moving to bit 7 of the next one.
func extractBigEndian(payload []byte, start, length uint8) uint64 {
	var v uint64
	pos := int(start)
	for i := uint8(0); i < length; i++ {
		bit := (payload[pos/8] >> uint(pos%8)) & 1
		v = v<<1 | uint64(bit)
		if pos%8 == 0 {
			pos += 15
		} else {
			pos--
		}
	}
	return v
}

// signedValue sign-extends the raw two's complement pattern.
func signedValue(raw uint64, s *catalog.Signal) int64 {
	if s.Length >= 64 {
		return int64(raw)
	}
	if raw&(uint64(1)<<uint(s.Length-1)) != 0 {
		raw |= ^(uint64(1)<<uint(s.Length) - 1)
	}
	return int64(raw)
}
