// Package units maps DBC-declared unit strings to a canonical unit
// vocabulary (QUDT identifiers in the stock mapping). The table is loaded
// once per session; lookups never fail, an unmapped unit degrades to the
// declared string plus a warning.
package units

import (
	"encoding/json"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/vishalkuo/bimap"

	"parren.ch/candi/pkg/catalog"
)

// ErrConfiguration marks a missing or unreadable unit mapping table.
// Without it normalization is undefined for every signal, so session
// start must abort.
var ErrConfiguration = errors.New("unit mapping configuration")

type (
	// Table is the read-only declared-unit to canonical-unit mapping.
	Table struct {
		units *bimap.BiMap[string, string]
	}

	// Warning reports one unmapped unit declaration.
	Warning struct {
		Signal string
		Unit   string
	}

	// Sink receives warnings. Implementations must tolerate concurrent
	// callers; each warning is delivered as one atomic event.
	Sink interface {
		UnmappedUnit(w Warning)
	}
)

// LoadFile reads a JSON mapping of declared unit (lowercase) to canonical
// identifier.
func LoadFile(path string) (*Table, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(ErrConfiguration, "read %v: %v", path, err)
	}
	var raw map[string]string
	if err := json.Unmarshal(bs, &raw); err != nil {
		return nil, errors.Wrapf(ErrConfiguration, "parse %v: %v", path, err)
	}
	return NewTable(raw)
}

func NewTable(mapping map[string]string) (*Table, error) {
	units := bimap.NewBiMap[string, string]()
	for declared, canonical := range mapping {
		key := strings.ToLower(strings.TrimSpace(declared))
		if _, ok := units.Get(key); ok {
			return nil, errors.Wrapf(ErrConfiguration, "duplicate unit key %q", key)
		}
		units.Insert(key, canonical)
	}
	units.MakeImmutable()
	return &Table{units: units}, nil
}

// Canonical looks up the canonical identifier for a declared unit string.
func (t *Table) Canonical(declared string) (string, bool) {
	return t.units.Get(strings.ToLower(strings.TrimSpace(declared)))
}

// Declared is the reverse lookup, canonical identifier to declared unit.
func (t *Table) Declared(canonical string) (string, bool) {
	return t.units.GetInverse(canonical)
}

// Normalize resolves a signal's declared unit. On a miss the declared
// string passes through unchanged and one warning goes to the sink.
// An empty declared unit maps to empty without a warning.
func (t *Table) Normalize(signal, declared string, warn Sink) (unit string, mapped bool) {
	if declared == "" {
		return "", true
	}
	if canonical, ok := t.Canonical(declared); ok {
		return canonical, true
	}
	if warn != nil {
		warn.UnmappedUnit(Warning{Signal: signal, Unit: declared})
	}
	return declared, false
}

// Annotate stamps every signal in the catalog with its canonical unit.
// Run once per session, before the catalog is shared with decoders.
func (t *Table) Annotate(c *catalog.Catalog, warn Sink) {
	for _, m := range c.Messages {
		for _, s := range m.Signals {
			s.CanonicalUnit, s.UnitMapped = t.Normalize(s.Name, s.Unit, warn)
		}
	}
}

type (
	// LogSink writes warnings to the standard logger.
	LogSink struct{}

	// CollectSink accumulates warnings, serializing concurrent writers.
	CollectSink struct {
		mu       sync.Mutex
		warnings []Warning
	}
)

func (LogSink) UnmappedUnit(w Warning) {
	log.Printf("Unknown unit %q for signal %v, keeping as-is\n", w.Unit, w.Signal)
}

func (s *CollectSink) UnmappedUnit(w Warning) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = append(s.warnings, w)
}

func (s *CollectSink) Warnings() []Warning {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Warning{}, s.warnings...)
}
