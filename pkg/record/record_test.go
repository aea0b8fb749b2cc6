package record

import (
	"fmt"
	"regexp"
	"testing"
	"time"

	"parren.ch/candi/pkg/decode"
)

var individualPat = regexp.MustCompile(`^Speed_20240517103000_(\d+)$`)

func testObservation() decode.Observation {
	return decode.Observation{
		MessageID:   256,
		MessageName: "EngineData",
		Signal:      "Speed",
		Raw:         0x2710,
		Value:       100.0,
		Unit:        "KM-PER-HR",
		UnitMapped:  true,
		Transmitter: "ECM",
		Timestamp:   time.Date(2024, 5, 17, 10, 30, 0, 0, time.UTC),
	}
}

func TestEmit(t *testing.T) {
	e := NewEmitter("can2_sniffer")
	l := e.Emit(testObservation())

	if !individualPat.MatchString(l.Individual) {
		t.Errorf("individual: %v", l.Individual)
	}
	if l.Type != SignalLogType {
		t.Errorf("type: %v", l.Type)
	}
	if l.DecodedFrom != "Speed" || l.ObservedProperty != "Speed" {
		t.Errorf("signal: %+v", l)
	}
	if l.Result != 100.0 || l.Unit != "KM-PER-HR" || !l.UnitMapped || l.OutOfRange {
		t.Errorf("value: %+v", l)
	}
	if l.Sensor != "can2_sniffer" || l.Transmitter != "ECM" || l.MessageID != 256 {
		t.Errorf("provenance: %+v", l)
	}
	if !l.ResultTime.Equal(time.Date(2024, 5, 17, 10, 30, 0, 0, time.UTC)) {
		t.Errorf("result time: %v", l.ResultTime)
	}
}

func TestEmitSequenceIsUnique(t *testing.T) {
	e := NewEmitter("can2_sniffer")
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		l := e.Emit(testObservation())
		if seen[l.Individual] {
			t.Fatalf("duplicate individual %v", l.Individual)
		}
		seen[l.Individual] = true
	}
}

func TestEmitAllPreservesOrder(t *testing.T) {
	e := NewEmitter("can2_sniffer")
	obs := make([]decode.Observation, 3)
	for i := range obs {
		obs[i] = testObservation()
		obs[i].Signal = fmt.Sprintf("S%d", i)
	}
	logs := e.EmitAll(obs)
	if len(logs) != 3 {
		t.Fatalf("have %v logs", len(logs))
	}
	for i, l := range logs {
		if want := fmt.Sprintf("S%d", i); l.DecodedFrom != want {
			t.Errorf("order: have %v at %v, want %v", l.DecodedFrom, i, want)
		}
	}
}
