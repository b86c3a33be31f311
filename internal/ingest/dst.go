// Package ingest parses raw index and element-set files into domain records.
package ingest

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"storm-decay-lab/internal/domain"
)

// ErrMalformedRecord is wrapped by every parse error in this package.
var ErrMalformedRecord = errors.New("malformed record")

// WDC hourly Dst line layout (0-based byte offsets).
const (
	wdcPrefix      = "DST"
	wdcYear        = 3  // [3:5] two-digit year
	wdcMonth       = 5  // [5:7]
	wdcDay         = 8  // [8:10]
	wdcCentury     = 14 // [14:16] century digits, blank for 19xx
	wdcBase        = 16 // [16:20] base value in units of 100 nT
	wdcFirstHour   = 20 // first of 24 four-character hourly values
	wdcValueWidth  = 4
	wdcMissing     = 9999
	wdcMinLineSize = wdcFirstHour + 24*wdcValueWidth
)

// ParseDstWDC parses hourly Dst values in the WDC exchange format.
// Lines that do not start with "DST" are ignored; missing values (9999) are
// skipped. Samples are returned in file order.
func ParseDstWDC(r io.Reader) ([]*domain.IndexSample, error) {
	var samples []*domain.IndexSample

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if !strings.HasPrefix(line, wdcPrefix) {
			continue
		}
		if len(line) < wdcMinLineSize {
			return nil, fmt.Errorf("line %d: %d characters: %w", lineNo, len(line), ErrMalformedRecord)
		}

		date, err := wdcDate(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		base := 0
		if s := strings.TrimSpace(line[wdcBase : wdcBase+4]); s != "" {
			if base, err = strconv.Atoi(s); err != nil {
				return nil, fmt.Errorf("line %d: base %q: %w", lineNo, s, ErrMalformedRecord)
			}
		}

		for h := 0; h < 24; h++ {
			off := wdcFirstHour + h*wdcValueWidth
			raw := strings.TrimSpace(line[off : off+wdcValueWidth])
			v, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("line %d hour %d: value %q: %w", lineNo, h, raw, ErrMalformedRecord)
			}
			if v == wdcMissing {
				continue
			}
			samples = append(samples, &domain.IndexSample{
				Time:      date.Add(time.Duration(h) * time.Hour),
				NanoTesla: float64(base*100 + v),
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dst data: %w", err)
	}

	return samples, nil
}

func wdcDate(line string) (time.Time, error) {
	century := strings.TrimSpace(line[wdcCentury : wdcCentury+2])
	if century == "" {
		century = "19"
	}
	s := century + line[wdcYear:wdcYear+2] + "-" + line[wdcMonth:wdcMonth+2] + "-" + line[wdcDay:wdcDay+2]
	date, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: %w", s, ErrMalformedRecord)
	}
	return date, nil
}

// Dst CSV columns.
const (
	ColTimestamp = "TIMESTAMP"
	ColNanoTesla = "nT"
)

// timestampLayouts are accepted for index and element timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a UTC timestamp in any accepted layout.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp %q: %w", s, ErrMalformedRecord)
}

// ReadDstCSV reads a TIMESTAMP,nT file.
func ReadDstCSV(r io.Reader) ([]*domain.IndexSample, error) {
	rows, err := readCSV(r, ColTimestamp, ColNanoTesla)
	if err != nil {
		return nil, err
	}

	samples := make([]*domain.IndexSample, 0, len(rows))
	for i, row := range rows {
		ts, err := ParseTimestamp(row[ColTimestamp])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[ColNanoTesla]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: nT %q: %w", i+2, row[ColNanoTesla], ErrMalformedRecord)
		}
		samples = append(samples, &domain.IndexSample{Time: ts, NanoTesla: v})
	}
	return samples, nil
}

// WriteDstCSV writes samples as TIMESTAMP,nT rows.
func WriteDstCSV(w io.Writer, samples []*domain.IndexSample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{ColTimestamp, ColNanoTesla}); err != nil {
		return err
	}
	for _, s := range samples {
		rec := []string{
			s.Time.UTC().Format("2006-01-02 15:04:05"),
			strconv.FormatFloat(s.NanoTesla, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Magnitude returns |nT| for every sample, leaving samples untouched.
func Magnitude(samples []*domain.IndexSample) []*domain.IndexSample {
	out := make([]*domain.IndexSample, len(samples))
	for i, s := range samples {
		out[i] = &domain.IndexSample{Time: s.Time, NanoTesla: math.Abs(s.NanoTesla)}
	}
	return out
}

// readCSV reads a headed CSV and returns rows keyed by column name.
// Every required column must be present in the header.
func readCSV(r io.Reader, required ...string) ([]map[string]string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[h] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("missing column %s: %w", col, ErrMalformedRecord)
		}
	}

	var rows []map[string]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		row := make(map[string]string, len(header))
		for name, i := range index {
			if i < len(rec) {
				row[name] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
