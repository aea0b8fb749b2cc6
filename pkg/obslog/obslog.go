// Package obslog stores decoded signal records as CSV files by day,
// under a directory keyed by the hash of the column header. A header
// change starts a fresh tree instead of corrupting existing files.
package obslog

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"hash/fnv"
	"os"
	"time"

	"parren.ch/candi/pkg/record"
)

var header = []string{
	"Individual", "rdf:type", "dbc:decodedFrom", "sosa:hasSimpleResult",
	"qudt:hasUnit", "unitMapped", "outOfRange", "sosa:madeBySensor",
	"sosa:observedProperty", "sosa:resultTime", "transmitter",
}

type Store struct {
	Dir string
}

// Write appends one record to the day file for its result time.
func (st Store) Write(l record.SignalLog) error {
	hs := encode(header)
	hid, err := hash(hs)
	if err != nil {
		return err
	}
	dn := fmt.Sprintf("%s/%v", st.Dir, hid)
	if err := os.Mkdir(dn, 0777); err != nil {
		if !os.IsExist(err) {
			return fmt.Errorf("failed to create %s: %v", dn, err)
		}
	} else {
		if err := write(hs, dn+"/header.csv", os.O_EXCL); err != nil {
			return err
		}
	}
	t := l.ResultTime
	fn := fmt.Sprintf("%s/%04d-%02d-%02d.csv", dn, t.Year(), t.Month(), t.Day())
	return write(encode(row(l)), fn, os.O_APPEND)
}

// WriteAll appends a batch, stopping at the first failure.
func (st Store) WriteAll(logs []record.SignalLog) error {
	for _, l := range logs {
		if err := st.Write(l); err != nil {
			return err
		}
	}
	return nil
}

func row(l record.SignalLog) []string {
	return []string{
		l.Individual,
		l.Type,
		l.DecodedFrom,
		fmt.Sprintf("%v", l.Result),
		l.Unit,
		fmt.Sprintf("%v", l.UnitMapped),
		fmt.Sprintf("%v", l.OutOfRange),
		l.Sensor,
		l.ObservedProperty,
		FormatTimestamp(l.ResultTime),
		l.Transmitter,
	}
}

func FormatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

func encode(ss []string) string {
	b := bytes.Buffer{}
	w := csv.NewWriter(&b)
	w.Write(ss)
	w.Flush()
	return b.String()
}

func hash(s string) (uint64, error) {
	h := fnv.New64()
	if _, err := h.Write([]byte(s)); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

func write(s string, fn string, mode int) error {
	f, err := os.OpenFile(fn, os.O_WRONLY|os.O_CREATE|mode, 0666)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(s)
	return err
}
