package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"parren.ch/candi/internal/session"
	"parren.ch/candi/pkg/canbus"
	"parren.ch/candi/pkg/kgmsheet"
	"parren.ch/candi/pkg/obslog"
	"parren.ch/candi/pkg/record"
)

var (
	device        string
	dbcFile       string
	unitsFile     string
	logDir        string
	platform      string
	sensor        string
	flushInterval time.Duration
	sheetCfg      kgmsheet.Config
)

func main() {
	flag.StringVar(&device, "can-device", "can0", "CAN interface to sniff")
	flag.StringVar(&dbcFile, "dbc", "", "DBC file to decode against")
	flag.StringVar(&unitsFile, "unit-mapping", "unit_mapping.json",
		"JSON mapping of declared units to canonical identifiers")
	flag.StringVar(&logDir, "log-dir", "raw", "Directory for decoded record CSV files")
	flag.StringVar(&platform, "platform", "can2", "Platform individual hosting the sensor")
	flag.StringVar(&sensor, "sensor", "can2_sniffer", "Sniffing sensor individual")
	flag.DurationVar(&flushInterval, "sheet-flush-interval", time.Minute,
		"Interval between sheet appends of buffered records")
	flag.StringVar(&sheetCfg.CredentialsFile, "google-api-credentials-file", "",
		"File downloaded when following https://developers.google.com/sheets/api/quickstart/go")
	flag.StringVar(&sheetCfg.SheetId, "google-sheet-id", "",
		"Sheet to append records to; local CSV only if empty")
	flag.Parse()
	if len(dbcFile) == 0 {
		fmt.Println("Usage:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	s, err := session.Start(session.Config{
		DBCFile:         dbcFile,
		UnitMappingFile: unitsFile,
		Platform:        platform,
		Sensor:          sensor,
	})
	if err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}

	ctx := context.Background()

	var exporter *kgmsheet.Exporter
	if len(sheetCfg.SheetId) > 0 {
		exporter = kgmsheet.NewExporter(kgmsheet.NewServiceClient(ctx, sheetCfg), sheetCfg)
		exporter.AppendMatrix(ctx, s.Matrix())
		log.Printf("Appended matrix to sheet %v", sheetCfg.SheetId)
	}

	store := obslog.Store{Dir: logDir}
	bus := canbus.NewClient(ctx, device)
	records := make(chan record.SignalLog, 100)

	go s.Run(ctx, bus, records)
	storeRecordsForever(ctx, records, store, exporter)
}

func storeRecordsForever(ctx context.Context, records <-chan record.SignalLog,
	store obslog.Store, exporter *kgmsheet.Exporter,
) {
	var pending []record.SignalLog
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-records:
			if err := store.Write(r); err != nil {
				log.Printf("Failed to log record %v: %v\n", r.Individual, err)
			}
			if exporter != nil {
				pending = append(pending, r)
			}
		case <-ticker.C:
			if exporter != nil && len(pending) > 0 {
				exporter.AppendRecords(ctx, pending)
				pending = nil
			}
		}
	}
}
