// Package session wires catalog, unit table, decoder and emitter into one
// decoding session. Session start is all-or-nothing; a bad DBC or unit
// table aborts before any frame is decoded. Per-frame failures are
// isolated so a malformed frame never stalls the stream.
package session

import (
	"context"
	"log"
	"sync/atomic"

	"parren.ch/candi/pkg/canbus"
	"parren.ch/candi/pkg/catalog"
	"parren.ch/candi/pkg/decode"
	"parren.ch/candi/pkg/kgmatrix"
	"parren.ch/candi/pkg/record"
	"parren.ch/candi/pkg/units"
)

type (
	Config struct {
		DBCFile         string
		UnitMappingFile string
		Platform        string
		Sensor          string
		// Warnings receives unit-mapping misses; defaults to the log sink.
		Warnings units.Sink
	}

	Session struct {
		cfg     Config
		catalog *catalog.Catalog
		decoder *decode.Decoder
		emitter *record.Emitter

		frames       uint64
		failures     uint64
		observations uint64
	}

	Stats struct {
		Frames       uint64
		Failures     uint64
		Observations uint64
	}
)

// Start loads and validates the catalog and unit mapping, annotates
// canonical units and returns a ready session. Any failure here is fatal;
// no partial catalog is usable.
func Start(cfg Config) (*Session, error) {
	cat, err := catalog.LoadFile(cfg.DBCFile)
	if err != nil {
		return nil, err
	}
	table, err := units.LoadFile(cfg.UnitMappingFile)
	if err != nil {
		return nil, err
	}
	warn := cfg.Warnings
	if warn == nil {
		warn = units.LogSink{}
	}
	table.Annotate(cat, warn)
	return &Session{
		cfg:     cfg,
		catalog: cat,
		decoder: decode.NewDecoder(cat),
		emitter: record.NewEmitter(cfg.Sensor),
	}, nil
}

func (s *Session) Catalog() *catalog.Catalog {
	return s.catalog
}

// Matrix produces the knowledge-graph matrix snapshot for this session's
// catalog, once per DBC load.
func (s *Session) Matrix() []kgmatrix.Table {
	return kgmatrix.Snapshot(s.catalog, s.cfg.Platform, s.cfg.Sensor)
}

// Decode runs one frame through the decoder and shapes the results.
// The error is scoped to this frame; the session stays usable.
func (s *Session) Decode(f decode.Frame) ([]record.SignalLog, error) {
	atomic.AddUint64(&s.frames, 1)
	obs, err := s.decoder.Decode(f)
	if err != nil {
		atomic.AddUint64(&s.failures, 1)
		return nil, err
	}
	atomic.AddUint64(&s.observations, uint64(len(obs)))
	return s.emitter.EmitAll(obs), nil
}

// Run pumps a frame source through the session until the source dries up
// or the context ends. Frame failures are logged and counted, and the
// stream continues.
func (s *Session) Run(ctx context.Context, recv canbus.Receiver, out chan<- record.SignalLog) {
	for recv.Receive() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		f := recv.Frame()
		logs, err := s.Decode(f)
		if err != nil {
			log.Printf("Decode error: %v for %v\n", err, f.Frame)
			continue
		}
		for _, l := range logs {
			select {
			case <-ctx.Done():
				return
			case out <- l:
			}
		}
	}
}

func (s *Session) Stats() Stats {
	return Stats{
		Frames:       atomic.LoadUint64(&s.frames),
		Failures:     atomic.LoadUint64(&s.failures),
		Observations: atomic.LoadUint64(&s.observations),
	}
}
