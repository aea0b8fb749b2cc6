// Package catalog builds an in-memory signal catalog from a DBC file.
// The catalog is compiled once per decoding session and is read-only
// afterwards, so it can be shared across concurrently decoding frames.
package catalog

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrMalformedCatalog marks DBC input that violates structural assumptions:
// bad bit ranges, overlapping signals, unsupported frame sizes.
var ErrMalformedCatalog = errors.New("malformed catalog")

type (
	Catalog struct {
		Version  string
		Messages map[uint32]*Message
		Nodes    []string
	}

	Message struct {
		ID          uint32
		IsExtended  bool
		Name        string
		Length      uint8
		Transmitter string
		Signals     []*Signal

		// Multiplexer is the switch signal, nil for plain messages.
		// MuxGroups indexes the signals active under each switch value.
		Multiplexer *Signal
		MuxGroups   map[uint64][]*Signal
	}

	Signal struct {
		Name        string
		Start       uint8
		Length      uint8
		IsBigEndian bool
		IsSigned    bool
		Scale       float64
		Offset      float64
		Min         float64
		Max         float64
		Unit        string
		Receivers   []string

		IsMultiplexer    bool
		IsMultiplexed    bool
		MultiplexerValue uint64

		// Set by units.Annotate during session start.
		CanonicalUnit string
		UnitMapped    bool

		bits     uint64
		lastByte uint8
	}
)

// UnknownNode is substituted for the placeholder transmitter/receiver
// name DBC files use for unassigned nodes.
const UnknownNode = "Unknown"

func (c *Catalog) Message(id uint32) (*Message, bool) {
	m, ok := c.Messages[id]
	return m, ok
}

// HasRange reports whether the signal declares a physical min/max.
// DBC encodes "no range" as [0|0].
func (s *Signal) HasRange() bool {
	return s.Min != 0 || s.Max != 0
}

// RequiredBytes is the payload length needed to cover the signal's bits.
func (s *Signal) RequiredBytes() uint8 {
	return s.lastByte + 1
}

// layoutBits walks the signal's bit positions and returns its occupancy
// mask over the 64-bit payload plus the highest byte touched. Little-endian
// signals occupy start..start+length-1. Big-endian signals start at their
// most significant bit and walk the Motorola sawtooth: down within a byte,
// then on to bit 7 of the next byte.
func layoutBits(start, length uint8, bigEndian bool) (mask uint64, lastByte uint8, err error) {
	if length == 0 || length > 64 {
		return 0, 0, fmt.Errorf("bit length %d out of range", length)
	}
	pos := int(start)
	for i := uint8(0); i < length; i++ {
		if pos < 0 || pos > 63 {
			return 0, 0, fmt.Errorf("bit %d of %d falls outside the payload", pos, length)
		}
		mask |= uint64(1) << uint(pos)
		if b := uint8(pos / 8); b > lastByte {
			lastByte = b
		}
		if bigEndian {
			if pos%8 == 0 {
				pos += 15
			} else {
				pos--
			}
		} else {
			pos++
		}
	}
	return mask, lastByte, nil
}
