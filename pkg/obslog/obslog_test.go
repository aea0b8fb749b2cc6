package obslog

import (
	"fmt"
	"os"
	"testing"
	"time"

	. "github.com/karlseguin/expect"

	"parren.ch/candi/pkg/record"
)

type Tests struct{}

func Test_ObsLog(t *testing.T) {
	Expectify(new(Tests), t)
}

func (Tests) WritesDayFilesUnderHeaderHash() {
	d := logDir()
	defer os.RemoveAll(d)

	st := Store{Dir: d}

	t1 := time.Date(2024, 5, 17, 10, 30, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	t3 := t1.Add(time.Hour * 24)

	Expect(st.Write(speedLog(t1, 1, 100.0))).ToEqual(nil)

	hd := hashDir(d)
	Expect(readFile(fmt.Sprintf("%s/%s/header.csv", d, hd))).
		ToEqual("Individual,rdf:type,dbc:decodedFrom,sosa:hasSimpleResult,"+
			"qudt:hasUnit,unitMapped,outOfRange,sosa:madeBySensor,"+
			"sosa:observedProperty,sosa:resultTime,transmitter\n", nil)
	Expect(readFile(fmt.Sprintf("%s/%s/2024-05-17.csv", d, hd))).
		ToEqual("Speed_20240517103000_1,dbc:SignalLog,Speed,100,KM-PER-HR,"+
			"true,false,can2_sniffer,Speed,2024-05-17 10:30:00,ECM\n", nil)

	Expect(st.Write(speedLog(t2, 2, 101.5))).ToEqual(nil)
	Expect(readFile(fmt.Sprintf("%s/%s/2024-05-17.csv", d, hd))).
		ToEqual("Speed_20240517103000_1,dbc:SignalLog,Speed,100,KM-PER-HR,"+
			"true,false,can2_sniffer,Speed,2024-05-17 10:30:00,ECM\n"+
			"Speed_20240517113000_2,dbc:SignalLog,Speed,101.5,KM-PER-HR,"+
			"true,false,can2_sniffer,Speed,2024-05-17 11:30:00,ECM\n", nil)

	Expect(st.Write(speedLog(t3, 3, 99.0))).ToEqual(nil)
	Expect(readFile(fmt.Sprintf("%s/%s/2024-05-18.csv", d, hd))).
		ToEqual("Speed_20240518103000_3,dbc:SignalLog,Speed,99,KM-PER-HR,"+
			"true,false,can2_sniffer,Speed,2024-05-18 10:30:00,ECM\n", nil)
}

func speedLog(t time.Time, seq int, value float64) record.SignalLog {
	return record.SignalLog{
		Individual:       fmt.Sprintf("Speed_%s_%d", t.Format("20060102150405"), seq),
		Type:             record.SignalLogType,
		DecodedFrom:      "Speed",
		Result:           value,
		Unit:             "KM-PER-HR",
		UnitMapped:       true,
		Sensor:           "can2_sniffer",
		ObservedProperty: "Speed",
		ResultTime:       t,
		Transmitter:      "ECM",
		MessageID:        256,
	}
}

func logDir() string {
	d, err := os.MkdirTemp("", "candi_obslog_test")
	if err != nil {
		panic(err)
	}
	return d
}

func hashDir(d string) string {
	entries, err := os.ReadDir(d)
	if err != nil {
		panic(err)
	}
	if len(entries) != 1 {
		panic(fmt.Sprintf("expected one hash dir, got %v", entries))
	}
	return entries[0].Name()
}

func readFile(fn string) (string, error) {
	b, err := os.ReadFile(fn)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
