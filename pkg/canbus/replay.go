package canbus

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"time"

	"go.einride.tech/can"

	"parren.ch/candi/pkg/decode"
)

// (1670677101.571858) can0 1F400FFF#19BB70A100015208
var candumpPat = regexp.MustCompile(`^\((\d+)\.(\d+)\) (\S+) ([0-9A-Fa-f]+#[0-9A-Fa-f]*R?)$`)

// LogReader replays a candump log as a frame source, with the logged
// capture times as arrival timestamps. Lines that are not frames are
// skipped and counted.
type LogReader struct {
	s       *bufio.Scanner
	frame   decode.Frame
	skipped int
}

func NewLogReader(r io.Reader) *LogReader {
	return &LogReader{s: bufio.NewScanner(r)}
}

func (lr *LogReader) Receive() bool {
	for lr.s.Scan() {
		match := candumpPat.FindStringSubmatch(lr.s.Text())
		if match == nil {
			lr.skipped++
			continue
		}
		f := can.Frame{}
		if err := f.UnmarshalString(match[4]); err != nil {
			lr.skipped++
			continue
		}
		lr.frame = decode.Frame{Frame: f, Timestamp: logTime(match[1], match[2])}
		return true
	}
	return false
}

func (lr *LogReader) Frame() decode.Frame {
	return lr.frame
}

// Skipped is the number of lines that did not parse as frames.
func (lr *LogReader) Skipped() int {
	return lr.skipped
}

func logTime(secs, micros string) time.Time {
	s, _ := strconv.ParseInt(secs, 10, 64)
	us, _ := strconv.ParseInt(micros, 10, 64)
	return time.Unix(s, us*int64(time.Microsecond/time.Nanosecond))
}
