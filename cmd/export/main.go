package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"parren.ch/candi/internal/session"
	"parren.ch/candi/pkg/kgmatrix"
	"parren.ch/candi/pkg/kgmsheet"
)

var (
	dbcFile   string
	unitsFile string
	outDir    string
	platform  string
	sensor    string
	sheetCfg  kgmsheet.Config
)

func main() {
	flag.StringVar(&dbcFile, "dbc", "", "DBC file to compile")
	flag.StringVar(&unitsFile, "unit-mapping", "unit_mapping.json",
		"JSON mapping of declared units to canonical identifiers")
	flag.StringVar(&outDir, "out", "owl", "Directory for the matrix CSV files")
	flag.StringVar(&platform, "platform", "can2", "Platform individual hosting the sensor")
	flag.StringVar(&sensor, "sensor", "can2_sniffer", "Sniffing sensor individual")
	flag.StringVar(&sheetCfg.CredentialsFile, "google-api-credentials-file", "",
		"File downloaded when following https://developers.google.com/sheets/api/quickstart/go")
	flag.StringVar(&sheetCfg.SheetId, "google-sheet-id", "",
		"Sheet to append the matrix to; CSV only if empty")
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

	tables := s.Matrix()
	if err := kgmatrix.WriteCSV(outDir, tables); err != nil {
		log.Fatalf("Failed to write matrix: %v", err)
	}
	log.Printf("Wrote %v tables to %v", len(tables), outDir)

	if len(sheetCfg.SheetId) > 0 {
		ctx := context.Background()
		exp := kgmsheet.NewExporter(kgmsheet.NewServiceClient(ctx, sheetCfg), sheetCfg)
		exp.AppendMatrix(ctx, tables)
		log.Printf("Appended matrix to sheet %v", sheetCfg.SheetId)
	}
}
