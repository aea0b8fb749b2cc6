package kgmatrix

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// WriteCSV writes one semicolon-separated file per table into dir,
// exploding comma-joined multi-value cells into one row per value so the
// mapping layer can join on them. Parallel lists in one row (signals and
// their encodings) stay paired by index.
func WriteCSV(dir string, tables []Table) error {
	if err := os.MkdirAll(dir, 0777); err != nil {
		return fmt.Errorf("failed to create %s: %v", dir, err)
	}
	for _, t := range tables {
		if err := writeTable(dir, t); err != nil {
			return err
		}
	}
	return nil
}

func writeTable(dir string, t Table) error {
	fn := filepath.Join(dir, t.Name+".csv")
	f, err := os.Create(fn)
	if err != nil {
		return fmt.Errorf("failed to create %s: %v", fn, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = ';'
	if err := w.Write(t.Columns); err != nil {
		return err
	}
	for _, row := range t.Rows {
		for _, exploded := range explodeRow(row) {
			if err := w.Write(exploded); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}

func explodeRow(row []string) [][]string {
	parts := make([][]string, len(row))
	n := 1
	for i, cell := range row {
		parts[i] = splitCell(cell)
		if len(parts[i]) > n {
			n = len(parts[i])
		}
	}
	out := make([][]string, n)
	for r := 0; r < n; r++ {
		out[r] = make([]string, len(row))
		for i, ps := range parts {
			if r < len(ps) {
				out[r][i] = ps[r]
			} else {
				out[r][i] = ps[len(ps)-1]
			}
		}
	}
	return out
}

func splitCell(cell string) []string {
	if !strings.Contains(cell, ",") {
		return []string{cell}
	}
	ps := strings.Split(cell, ",")
	for i := range ps {
		ps[i] = strings.TrimSpace(ps[i])
	}
	return ps
}
