// Package kgmsheet publishes the knowledge-graph matrix and decoded
// records to a Google spreadsheet, one tab per table.
package kgmsheet

import (
	"context"
	"log"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"parren.ch/candi/pkg/kgmatrix"
	"parren.ch/candi/pkg/record"
)

type (
	Config struct {
		CredentialsFile string
		SheetId         string
	}

	// ServiceClient is the thin seam over the Sheets API, fake-able in
	// tests.
	ServiceClient interface {
		Write(ctx context.Context, sheetId, rng string, vals [][]interface{})
		Append(ctx context.Context, sheetId, rng string, vals [][]interface{})
	}

	Exporter struct {
		cfg Config
		srv ServiceClient
	}

	serviceImpl struct {
		srv *sheets.Service
	}
)

func NewServiceClient(ctx context.Context, cfg Config) ServiceClient {
	srv, err := sheets.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope))
	if err != nil {
		log.Fatalf("Unable to retrieve Google Sheets client: %v", err)
	}
	return &serviceImpl{srv: srv}
}

func NewExporter(srv ServiceClient, cfg Config) *Exporter {
	return &Exporter{cfg: cfg, srv: srv}
}

// AppendMatrix writes each table's header and appends its rows to the
// tab of the same name.
func (e *Exporter) AppendMatrix(ctx context.Context, tables []kgmatrix.Table) {
	for _, t := range tables {
		rng := t.Name + "!A1"
		e.srv.Write(ctx, e.cfg.SheetId, rng, [][]interface{}{toCells(t.Columns)})
		rows := make([][]interface{}, 0, len(t.Rows))
		for _, r := range t.Rows {
			rows = append(rows, toCells(r))
		}
		e.srv.Append(ctx, e.cfg.SheetId, rng, rows)
	}
}

// AppendRecords appends decoded observations to the SignalLog tab.
func (e *Exporter) AppendRecords(ctx context.Context, logs []record.SignalLog) {
	rows := make([][]interface{}, 0, len(logs))
	for _, l := range logs {
		rows = append(rows, []interface{}{
			l.Individual, l.Type, l.DecodedFrom, l.Result, l.Unit,
			l.Sensor, l.ObservedProperty, record.FormatTimestamp(l.ResultTime),
		})
	}
	e.srv.Append(ctx, e.cfg.SheetId, "SignalLog!A1", rows)
}

func toCells(ss []string) []interface{} {
	cells := make([]interface{}, len(ss))
	for i, s := range ss {
		cells[i] = s
	}
	return cells
}

func (s *serviceImpl) Write(ctx context.Context, sheetId, rng string, vals [][]interface{}) {
	rb := &sheets.ValueRange{Values: vals}
	_, err := s.srv.Spreadsheets.Values.
		Update(sheetId, rng, rb).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	if err != nil {
		log.Printf("Unable to write range %v to sheet: %v", rng, err)
	}
}

func (s *serviceImpl) Append(ctx context.Context, sheetId, rng string, vals [][]interface{}) {
	rb := &sheets.ValueRange{Values: vals}
	_, err := s.srv.Spreadsheets.Values.
		Append(sheetId, rng, rb).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	if err != nil {
		log.Printf("Unable to append range %v to sheet: %v", rng, err)
	}
}
