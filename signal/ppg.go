package signal

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/sirupsen/logrus"
)

const (
	ColumnTimestamp = "timestamp"
	ColumnPPG       = "ppg_gr"
)

// ErrMalformed marks input that cannot be read as a PPG recording at all.
var ErrMalformed = errors.New("malformed ppg csv")

// Recording is the concatenated PPG stream of a CSV export.
type Recording struct {
	Start   time.Time // first parseable timestamp of a kept row; zero if none
	Samples []float64
	Rows    int // data rows read
	Skipped int // rows dropped as unparseable or gap markers
}

func ReadPPGFile(path string, log logrus.FieldLogger) (*Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadPPG(f, log)
}

// ReadPPG reads timestamp/ppg_gr rows. Bad rows are logged and skipped; an
// empty input is an empty recording.
func ReadPPG(r io.Reader, log logrus.FieldLogger) (*Recording, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	rec := &Recording{Samples: []float64{}}

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return rec, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrMalformed, err)
	}
	tsCol, ppgCol := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) {
		case ColumnTimestamp:
			tsCol = i
		case ColumnPPG:
			ppgCol = i
		}
	}
	if tsCol < 0 || ppgCol < 0 {
		return nil, fmt.Errorf("%w: need %q and %q columns, got %v", ErrMalformed, ColumnTimestamp, ColumnPPG, header)
	}

	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		rec.Rows++
		idx := rec.Rows - 1
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				log.WithField("row", idx).WithError(err).Warn("unreadable csv row")
				rec.Skipped++
				continue
			}
			return nil, err
		}
		if ppgCol >= len(row) {
			log.WithField("row", idx).Warn("row has no ppg value")
			rec.Skipped++
			continue
		}

		values, err := ParseSamples(row[ppgCol])
		if err != nil {
			log.WithField("row", idx).WithError(err).Warn("invalid ppg data")
			rec.Skipped++
			continue
		}
		if isGap(values) {
			rec.Skipped++
			continue
		}
		rec.Samples = append(rec.Samples, values...)

		if rec.Start.IsZero() && tsCol < len(row) {
			if ts, err := dateparse.ParseIn(strings.TrimSpace(row[tsCol]), time.UTC); err == nil {
				rec.Start = ts
			}
		}
	}
	return rec, nil
}

// ParseSamples accepts "[1, 2, 3]", "1,2,3" or "7".
func ParseSamples(raw string) ([]float64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("sample %q: %w", p, err)
		}
		out = append(out, float64(v))
	}
	return out, nil
}

// isGap reports the sensor's "no reading" rows: nothing, or a lone -1.
func isGap(values []float64) bool {
	return len(values) == 0 || (len(values) == 1 && values[0] == -1)
}
