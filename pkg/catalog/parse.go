package catalog

import (
	"os"
	"sort"

	"github.com/cockroachdb/errors"
	"go.einride.tech/can/pkg/dbc"
)

const vectorPlaceholderNode = "Vector__XXX"

// LoadFile reads and compiles a DBC file into a Catalog.
func LoadFile(path string) (*Catalog, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedCatalog, "read %v: %v", path, err)
	}
	return Compile(path, source)
}

// Compile parses DBC source text and builds the validated catalog.
// Any structural violation fails the whole compile; a partial catalog
// is never returned.
func Compile(name string, source []byte) (*Catalog, error) {
	p := dbc.NewParser(name, source)
	if err := p.Parse(); err != nil {
		return nil, errors.Wrapf(ErrMalformedCatalog, "%v", err)
	}

	c := &Catalog{Messages: map[uint32]*Message{}}
	for _, def := range p.Defs() {
		switch def := def.(type) {
		case *dbc.VersionDef:
			c.Version = def.Version
		case *dbc.NodesDef:
			for _, n := range def.NodeNames {
				c.Nodes = append(c.Nodes, nodeName(string(n)))
			}
		case *dbc.MessageDef:
			if def.MessageID == dbc.IndependentSignalsMessageID {
				continue
			}
			m, err := compileMessage(def)
			if err != nil {
				return nil, err
			}
			c.Messages[m.ID] = m
		}
	}
	sort.Strings(c.Nodes)
	return c, nil
}

func compileMessage(def *dbc.MessageDef) (*Message, error) {
	m := &Message{
		ID:          def.MessageID.ToCAN(),
		IsExtended:  def.MessageID.IsExtended(),
		Name:        string(def.Name),
		Length:      uint8(def.Size),
		Transmitter: nodeName(string(def.Transmitter)),
		MuxGroups:   map[uint64][]*Signal{},
	}
	if def.Size > 8 {
		return nil, errors.Wrapf(ErrMalformedCatalog,
			"message %v: frame length %d exceeds 8 bytes", m.Name, def.Size)
	}
	for i := range def.Signals {
		s, err := compileSignal(m, &def.Signals[i])
		if err != nil {
			return nil, err
		}
		m.Signals = append(m.Signals, s)
		if s.IsMultiplexer {
			if m.Multiplexer != nil {
				return nil, errors.Wrapf(ErrMalformedCatalog,
					"message %v: multiplexer signals %v and %v", m.Name, m.Multiplexer.Name, s.Name)
			}
			m.Multiplexer = s
		}
		if s.IsMultiplexed {
			m.MuxGroups[s.MultiplexerValue] = append(m.MuxGroups[s.MultiplexerValue], s)
		}
	}
	if m.Multiplexer == nil && len(m.MuxGroups) > 0 {
		return nil, errors.Wrapf(ErrMalformedCatalog,
			"message %v: multiplexed signals without a multiplexer switch", m.Name)
	}
	sort.SliceStable(m.Signals, func(i, j int) bool {
		return m.Signals[i].Start < m.Signals[j].Start
	})
	for _, g := range m.MuxGroups {
		sort.SliceStable(g, func(i, j int) bool { return g[i].Start < g[j].Start })
	}
	if err := checkOverlaps(m); err != nil {
		return nil, err
	}
	return m, nil
}

func compileSignal(m *Message, def *dbc.SignalDef) (*Signal, error) {
	s := &Signal{
		Name:             string(def.Name),
		Start:            uint8(def.StartBit),
		Length:           uint8(def.Size),
		IsBigEndian:      def.IsBigEndian,
		IsSigned:         def.IsSigned,
		Scale:            def.Factor,
		Offset:           def.Offset,
		Min:              def.Minimum,
		Max:              def.Maximum,
		Unit:             def.Unit,
		IsMultiplexer:    def.IsMultiplexerSwitch,
		IsMultiplexed:    def.IsMultiplexed,
		MultiplexerValue: uint64(def.MultiplexerSwitch),
	}
	for _, r := range def.Receivers {
		s.Receivers = append(s.Receivers, nodeName(string(r)))
	}
	bits, lastByte, err := layoutBits(s.Start, s.Length, s.IsBigEndian)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedCatalog,
			"message %v, signal %v: %v", m.Name, s.Name, err)
	}
	if lastByte >= m.Length {
		return nil, errors.Wrapf(ErrMalformedCatalog,
			"message %v, signal %v: bits extend to byte %d of a %d byte frame",
			m.Name, s.Name, lastByte, m.Length)
	}
	s.bits = bits
	s.lastByte = lastByte
	return s, nil
}

// checkOverlaps rejects bit overlaps within one multiplex context: all
// plain signals share one context, and each multiplexer value forms a
// context of the plain signals plus its own group.
func checkOverlaps(m *Message) error {
	var base []*Signal
	for _, s := range m.Signals {
		if !s.IsMultiplexed {
			base = append(base, s)
		}
	}
	if err := checkContext(m, base); err != nil {
		return err
	}
	for _, group := range m.MuxGroups {
		if err := checkContext(m, append(append([]*Signal{}, base...), group...)); err != nil {
			return err
		}
	}
	return nil
}

func checkContext(m *Message, signals []*Signal) error {
	var used uint64
	var placed []*Signal
	for _, s := range signals {
		if used&s.bits != 0 {
			for _, o := range placed {
				if o.bits&s.bits != 0 {
					return errors.Wrapf(ErrMalformedCatalog,
						"message %v: signals %v and %v overlap", m.Name, o.Name, s.Name)
				}
			}
		}
		used |= s.bits
		placed = append(placed, s)
	}
	return nil
}

func nodeName(n string) string {
	if n == "" || n == vectorPlaceholderNode {
		return UnknownNode
	}
	return n
}
