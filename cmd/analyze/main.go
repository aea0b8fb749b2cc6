package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/cockroachdb/errors"

	"parren.ch/candi/internal/session"
	"parren.ch/candi/pkg/canbus"
	"parren.ch/candi/pkg/decode"
	"parren.ch/candi/pkg/units"
)

var (
	logFile     string
	dbcFile     string
	unitsFile   string
	sensor      string
	showRecords bool
)

func main() {
	flag.StringVar(&logFile, "log", "", "Candump log file")
	flag.StringVar(&dbcFile, "dbc", "", "DBC file to decode against")
	flag.StringVar(&unitsFile, "unit-mapping", "unit_mapping.json",
		"JSON mapping of declared units to canonical identifiers")
	flag.StringVar(&sensor, "sensor", "can2_sniffer", "Sniffing sensor individual")
	flag.BoolVar(&showRecords, "records", true, "print each decoded record")
	flag.Parse()
	if len(logFile) == 0 || len(dbcFile) == 0 {
		fmt.Println("Usage:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	warnings := &units.CollectSink{}
	s, err := session.Start(session.Config{
		DBCFile:         dbcFile,
		UnitMappingFile: unitsFile,
		Sensor:          sensor,
		Warnings:        warnings,
	})
	if err != nil {
		fmt.Printf("Failed to start session: %v\n", err)
		os.Exit(1)
	}
	for _, w := range warnings.Warnings() {
		fmt.Printf("\tUnknown unit %q for signal %v\n", w.Unit, w.Signal)
	}

	f, err := os.Open(logFile)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	signalsSeen := make(map[string]int)
	unknownIds := make(map[uint32]int)
	truncated := 0

	reader := canbus.NewLogReader(f)
	for reader.Receive() {
		frame := reader.Frame()
		logs, err := s.Decode(frame)
		if err != nil {
			switch {
			case errors.Is(err, decode.ErrUnknownMessage):
				unknownIds[frame.ID] = unknownIds[frame.ID] + 1
			case errors.Is(err, decode.ErrTruncatedFrame):
				truncated++
				fmt.Printf("\tTruncated %v: %v\n", frame.Frame, err)
			default:
				fmt.Printf("\tFailed to decode %v: %v\n", frame.Frame, err)
			}
			continue
		}
		for _, l := range logs {
			signalsSeen[l.DecodedFrom] = signalsSeen[l.DecodedFrom] + 1
			if showRecords {
				flags := ""
				if l.OutOfRange {
					flags += " OUT-OF-RANGE"
				}
				if !l.UnitMapped {
					flags += " UNMAPPED-UNIT"
				}
				fmt.Printf("%v %v = %v %v%v\n",
					l.Individual, l.ObservedProperty, l.Result, l.Unit, flags)
			}
		}
	}

	stats := s.Stats()
	fmt.Printf("Frames: %v decoded, %v failed (%v truncated), %v lines skipped\n",
		stats.Frames-stats.Failures, stats.Failures, truncated, reader.Skipped())

	fmt.Println("Signals seen:")
	for name, n := range signalsSeen {
		fmt.Printf("  %v: %v\n", name, n)
	}
	if len(unknownIds) > 0 {
		fmt.Println("Unknown message ids:")
		for id, n := range unknownIds {
			fmt.Printf("  0x%X: %v\n", id, n)
		}
	}
}
