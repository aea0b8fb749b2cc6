// Package record shapes decoded observations into the SignalLog records
// consumed by the virtual-knowledge-graph mapping layer. Emission only
// attaches provenance; values pass through untouched.
package record

import (
	"fmt"
	"sync/atomic"
	"time"

	"parren.ch/candi/pkg/decode"
)

// SignalLogType is the rdf:type of every emitted record.
const SignalLogType = "dbc:SignalLog"

type (
	// SignalLog is the stable record shape of one signal observation.
	// Field naming follows the knowledge-graph matrix vocabulary.
	SignalLog struct {
		Individual       string    // <signal>_<yyyymmddhhmmss>_<seq>
		Type             string    // rdf:type
		DecodedFrom      string    // dbc:decodedFrom
		Result           float64   // sosa:hasSimpleResult
		Unit             string    // qudt:hasUnit
		UnitMapped       bool      // false when the declared unit passed through
		OutOfRange       bool      // outside the declared physical min/max
		Sensor           string    // sosa:madeBySensor
		ObservedProperty string    // sosa:observedProperty
		ResultTime       time.Time // sosa:resultTime
		Transmitter      string    // owning ECU
		MessageID        uint32
	}

	// Emitter stamps observations with the sniffing sensor's identity
	// and a session-unique sequence number.
	Emitter struct {
		sensor string
		seq    uint64
	}
)

func NewEmitter(sensor string) *Emitter {
	return &Emitter{sensor: sensor}
}

func (e *Emitter) Emit(o decode.Observation) SignalLog {
	seq := atomic.AddUint64(&e.seq, 1)
	return SignalLog{
		Individual:       fmt.Sprintf("%s_%s_%d", o.Signal, o.Timestamp.Format("20060102150405"), seq),
		Type:             SignalLogType,
		DecodedFrom:      o.Signal,
		Result:           o.Value,
		Unit:             o.Unit,
		UnitMapped:       o.UnitMapped,
		OutOfRange:       o.OutOfRange,
		Sensor:           e.sensor,
		ObservedProperty: o.Signal,
		ResultTime:       o.Timestamp,
		Transmitter:      o.Transmitter,
		MessageID:        o.MessageID,
	}
}

// EmitAll shapes a whole frame's observations, preserving their order.
func (e *Emitter) EmitAll(obs []decode.Observation) []SignalLog {
	logs := make([]SignalLog, len(obs))
	for i, o := range obs {
		logs[i] = e.Emit(o)
	}
	return logs
}

func FormatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}
