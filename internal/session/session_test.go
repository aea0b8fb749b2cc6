package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"go.einride.tech/can"

	"parren.ch/candi/pkg/decode"
	"parren.ch/candi/pkg/record"
	"parren.ch/candi/pkg/units"
)

const testDBC = `VERSION ""

BU_: ECM

BO_ 256 EngineData: 8 ECM
 SG_ Speed : 0|16@1+ (0.01,0) [0|655.35] "km/h" Vector__XXX
 SG_ Pressure : 16|8@1+ (1,0) [0|0] "bar" Vector__XXX
`

const testUnits = `{"km/h": "KM-PER-HR", "degC": "DEG_C"}`

type fakeBus struct {
	frames []decode.Frame
	at     int
}

func (b *fakeBus) Receive() bool {
	b.at++
	return b.at <= len(b.frames)
}

func (b *fakeBus) Frame() decode.Frame {
	return b.frames[b.at-1]
}

func startTestSession(t *testing.T, warn units.Sink) *Session {
	t.Helper()
	dir := t.TempDir()
	dbcFile := filepath.Join(dir, "test.dbc")
	if err := os.WriteFile(dbcFile, []byte(testDBC), 0666); err != nil {
		t.Fatal(err)
	}
	unitFile := filepath.Join(dir, "unit_mapping.json")
	if err := os.WriteFile(unitFile, []byte(testUnits), 0666); err != nil {
		t.Fatal(err)
	}
	s, err := Start(Config{
		DBCFile:         dbcFile,
		UnitMappingFile: unitFile,
		Platform:        "can2",
		Sensor:          "can2_sniffer",
		Warnings:        warn,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return s
}

func speedFrame(t time.Time) decode.Frame {
	return decode.Frame{
		Frame:     can.Frame{ID: 256, Length: 8, Data: can.Data{0x10, 0x27}},
		Timestamp: t,
	}
}

func TestStartAnnotatesUnits(t *testing.T) {
	warn := &units.CollectSink{}
	s := startTestSession(t, warn)

	sig := s.Catalog().Messages[256].Signals[0]
	if got, want := sig.CanonicalUnit, "KM-PER-HR"; got != want {
		t.Errorf("CanonicalUnit: got %q, want %q", got, want)
	}
	if !sig.UnitMapped {
		t.Errorf("expected Speed unit mapped")
	}
	// "bar" has no canonical mapping and passes through with one warning.
	sig = s.Catalog().Messages[256].Signals[1]
	if got, want := sig.CanonicalUnit, "bar"; got != want {
		t.Errorf("CanonicalUnit: got %q, want %q", got, want)
	}
	if sig.UnitMapped {
		t.Errorf("expected Pressure unit unmapped")
	}
	if got, want := len(warn.Warnings()), 1; got != want {
		t.Errorf("warnings: got %v (%v), want %v", got, warn.Warnings(), want)
	}
}

func TestStartRejectsBadInputs(t *testing.T) {
	dir := t.TempDir()
	dbcFile := filepath.Join(dir, "test.dbc")
	unitFile := filepath.Join(dir, "unit_mapping.json")
	if err := os.WriteFile(dbcFile, []byte(testDBC), 0666); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(unitFile, []byte("{not json"), 0666); err != nil {
		t.Fatal(err)
	}

	_, err := Start(Config{DBCFile: filepath.Join(dir, "missing.dbc"), UnitMappingFile: unitFile})
	if err == nil {
		t.Errorf("expected error for missing DBC file")
	}
	_, err = Start(Config{DBCFile: dbcFile, UnitMappingFile: unitFile})
	if !errors.Is(err, units.ErrConfiguration) {
		t.Errorf("expected unit configuration error, got %v", err)
	}
}

func TestDecodeIsolatesFrameFailures(t *testing.T) {
	s := startTestSession(t, &units.CollectSink{})
	at := time.Date(2024, 5, 17, 10, 30, 0, 0, time.UTC)

	logs, err := s.Decode(speedFrame(at))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got, want := len(logs), 2; got != want {
		t.Fatalf("logs: got %v, want %v", got, want)
	}
	if got, want := logs[0].Result, 100.0; got != want {
		t.Errorf("Result: got %v, want %v", got, want)
	}
	if got, want := logs[0].Unit, "KM-PER-HR"; got != want {
		t.Errorf("Unit: got %q, want %q", got, want)
	}

	_, err = s.Decode(decode.Frame{Frame: can.Frame{ID: 999, Length: 8}})
	if !errors.Is(err, decode.ErrUnknownMessage) {
		t.Errorf("expected unknown message error, got %v", err)
	}
	_, err = s.Decode(decode.Frame{Frame: can.Frame{ID: 256, Length: 1}})
	if !errors.Is(err, decode.ErrTruncatedFrame) {
		t.Errorf("expected truncated frame error, got %v", err)
	}

	// The session stays usable after frame failures.
	if _, err := s.Decode(speedFrame(at)); err != nil {
		t.Errorf("Decode after failures: %v", err)
	}

	st := s.Stats()
	if got, want := st.Frames, uint64(4); got != want {
		t.Errorf("Frames: got %v, want %v", got, want)
	}
	if got, want := st.Failures, uint64(2); got != want {
		t.Errorf("Failures: got %v, want %v", got, want)
	}
	if got, want := st.Observations, uint64(4); got != want {
		t.Errorf("Observations: got %v, want %v", got, want)
	}
}

func TestRunPumpsFramesToRecords(t *testing.T) {
	s := startTestSession(t, &units.CollectSink{})
	at := time.Date(2024, 5, 17, 10, 30, 0, 0, time.UTC)
	bus := &fakeBus{frames: []decode.Frame{
		speedFrame(at),
		{Frame: can.Frame{ID: 999, Length: 8}},
		speedFrame(at.Add(time.Second)),
	}}

	out := make(chan record.SignalLog, 10)
	done := make(chan struct{})
	go func() {
		s.Run(context.Background(), bus, out)
		close(out)
		close(done)
	}()

	var logs []record.SignalLog
	for l := range out {
		logs = append(logs, l)
	}
	<-done

	// Two good frames with two signals each; the unknown ID is dropped.
	if got, want := len(logs), 4; got != want {
		t.Fatalf("logs: got %v, want %v", got, want)
	}
	for _, l := range logs {
		if got, want := l.Type, record.SignalLogType; got != want {
			t.Errorf("Type: got %q, want %q", got, want)
		}
		if got, want := l.Sensor, "can2_sniffer"; got != want {
			t.Errorf("Sensor: got %q, want %q", got, want)
		}
	}
	st := s.Stats()
	if got, want := st.Failures, uint64(1); got != want {
		t.Errorf("Failures: got %v, want %v", got, want)
	}
}

func TestMatrixSnapshot(t *testing.T) {
	s := startTestSession(t, &units.CollectSink{})
	tables := s.Matrix()
	if got, want := len(tables), 6; got != want {
		t.Fatalf("tables: got %v, want %v", got, want)
	}
	names := map[string]bool{}
	for _, tb := range tables {
		names[tb.Name] = true
	}
	for _, want := range []string{"Message", "Signal", "SignalEncoding", "Node", "Platform", "Sensor"} {
		if !names[want] {
			t.Errorf("missing table %q", want)
		}
	}
}
