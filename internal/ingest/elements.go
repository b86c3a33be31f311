package ingest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"storm-decay-lab/internal/domain"
)

// Mean-motion to altitude constants, as used to build the published dataset.
const (
	gravitationalConstant = 6.67408e-11 // m^3 kg^-1 s^-2
	earthMassKG           = 5.9722e24
	earthRadiusM          = 6378135.0 // WGS-72 equatorial radius
	secondsPerDay         = 86400.0
)

// MeanMotionToAltitudeKM converts mean motion (revolutions per day) to
// altitude above the equatorial radius in km, via Kepler's third law.
func MeanMotionToAltitudeKM(revPerDay float64) float64 {
	period := secondsPerDay / revPerDay
	a := math.Cbrt(gravitationalConstant * earthMassKG * period * period / (4 * math.Pi * math.Pi))
	return (a - earthRadiusM) / 1000
}

// gpRecord is the subset of a catalog gp_history record that is projected.
// The catalog API serialises numbers as strings.
type gpRecord struct {
	NoradCatID  flexString `json:"NORAD_CAT_ID"`
	LaunchDate  flexString `json:"LAUNCH_DATE"`
	Epoch       flexString `json:"EPOCH"`
	Inclination flexString `json:"INCLINATION"`
	MeanMotion  flexString `json:"MEAN_MOTION"`
	Bstar       flexString `json:"BSTAR"`
	Line1       flexString `json:"TLE_LINE1"`
}

// flexString accepts JSON strings, numbers and null.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(b)
	return nil
}

// ReadGPHistoryJSON projects a JSON array of catalog gp_history records to
// element samples (catalog number, launch date, epoch, inclination,
// altitude from mean motion, BSTAR drag).
func ReadGPHistoryJSON(r io.Reader) ([]*domain.ElementSample, error) {
	var records []gpRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode gp history: %w", err)
	}

	out := make([]*domain.ElementSample, 0, len(records))
	for i, rec := range records {
		e, err := rec.project()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (rec gpRecord) project() (*domain.ElementSample, error) {
	id, err := strconv.Atoi(strings.TrimSpace(string(rec.NoradCatID)))
	if err != nil {
		return nil, fmt.Errorf("NORAD_CAT_ID %q: %w", rec.NoradCatID, ErrMalformedRecord)
	}
	epoch, err := ParseTimestamp(string(rec.Epoch))
	if err != nil {
		return nil, fmt.Errorf("EPOCH: %w", err)
	}
	mm, err := parseFloat(string(rec.MeanMotion))
	if err != nil || mm <= 0 {
		return nil, fmt.Errorf("MEAN_MOTION %q: %w", rec.MeanMotion, ErrMalformedRecord)
	}

	e := &domain.ElementSample{
		CatalogID:  id,
		Epoch:      epoch,
		AltitudeKM: MeanMotionToAltitudeKM(mm),
	}

	if s := strings.TrimSpace(string(rec.LaunchDate)); s != "" {
		if e.LaunchDate, err = ParseTimestamp(s); err != nil {
			return nil, fmt.Errorf("LAUNCH_DATE: %w", err)
		}
	}
	if s := string(rec.Inclination); s != "" {
		if e.Inclination, err = parseFloat(s); err != nil {
			return nil, fmt.Errorf("INCLINATION %q: %w", s, ErrMalformedRecord)
		}
	}

	switch {
	case strings.TrimSpace(string(rec.Bstar)) != "":
		if e.Drag, err = parseFloat(string(rec.Bstar)); err != nil {
			return nil, fmt.Errorf("BSTAR %q: %w", rec.Bstar, ErrMalformedRecord)
		}
	case rec.Line1 != "":
		if e.Drag, err = BstarFromLine1(string(rec.Line1)); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// BstarFromLine1 decodes the BSTAR field (columns 54-61) of a TLE line 1.
// The field is an implied-decimal mantissa with a signed exponent, e.g.
// " 12345-3" = 0.12345e-3.
func BstarFromLine1(line1 string) (float64, error) {
	if len(line1) < 61 {
		return 0, fmt.Errorf("line1 too short for BSTAR: %w", ErrMalformedRecord)
	}
	field := strings.TrimSpace(line1[53:61])
	if field == "" {
		return 0, nil
	}

	sign := 1.0
	switch field[0] {
	case '-':
		sign = -1
		field = field[1:]
	case '+':
		field = field[1:]
	}

	cut := strings.LastIndexAny(field, "+-")
	if cut <= 0 {
		return 0, fmt.Errorf("BSTAR %q: %w", field, ErrMalformedRecord)
	}
	mantissa, err := strconv.ParseFloat("0."+strings.TrimSpace(field[:cut]), 64)
	if err != nil {
		return 0, fmt.Errorf("BSTAR mantissa %q: %w", field[:cut], ErrMalformedRecord)
	}
	exp, err := strconv.Atoi(field[cut:])
	if err != nil {
		return 0, fmt.Errorf("BSTAR exponent %q: %w", field[cut:], ErrMalformedRecord)
	}
	return sign * mantissa * math.Pow10(exp), nil
}

// Element CSV columns.
const (
	ColCatalogID   = "NORAD_CAT_ID"
	ColLaunchDate  = "LAUNCH_DATE"
	ColEpoch       = "EPOCH"
	ColInclination = "INCLINATION"
	ColAltitudeKM  = "KM"
	ColDrag        = "DRAG"
)

// ReadElementCSV reads projected element sets. INCLINATION is optional.
func ReadElementCSV(r io.Reader) ([]*domain.ElementSample, error) {
	rows, err := readCSV(r, ColCatalogID, ColLaunchDate, ColEpoch, ColAltitudeKM, ColDrag)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.ElementSample, 0, len(rows))
	for i, row := range rows {
		e, err := elementFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func elementFromRow(row map[string]string) (*domain.ElementSample, error) {
	id, err := strconv.Atoi(strings.TrimSpace(row[ColCatalogID]))
	if err != nil {
		return nil, fmt.Errorf("%s %q: %w", ColCatalogID, row[ColCatalogID], ErrMalformedRecord)
	}
	e := &domain.ElementSample{CatalogID: id}

	if e.Epoch, err = ParseTimestamp(row[ColEpoch]); err != nil {
		return nil, err
	}
	if s := strings.TrimSpace(row[ColLaunchDate]); s != "" {
		if e.LaunchDate, err = ParseTimestamp(s); err != nil {
			return nil, err
		}
	}
	if e.AltitudeKM, err = parseFloat(row[ColAltitudeKM]); err != nil {
		return nil, fmt.Errorf("%s %q: %w", ColAltitudeKM, row[ColAltitudeKM], ErrMalformedRecord)
	}
	if e.Drag, err = parseFloat(row[ColDrag]); err != nil {
		return nil, fmt.Errorf("%s %q: %w", ColDrag, row[ColDrag], ErrMalformedRecord)
	}
	if s := strings.TrimSpace(row[ColInclination]); s != "" {
		if e.Inclination, err = parseFloat(s); err != nil {
			return nil, fmt.Errorf("%s %q: %w", ColInclination, s, ErrMalformedRecord)
		}
	}
	return e, nil
}

// WriteElementCSV writes element sets with a header row.
func WriteElementCSV(w io.Writer, elems []*domain.ElementSample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{ColCatalogID, ColLaunchDate, ColEpoch, ColInclination, ColAltitudeKM, ColDrag}); err != nil {
		return err
	}
	for _, e := range elems {
		rec := []string{
			strconv.Itoa(e.CatalogID),
			formatDate(e.LaunchDate),
			e.Epoch.UTC().Format(time.RFC3339Nano),
			strconv.FormatFloat(e.Inclination, 'f', -1, 64),
			strconv.FormatFloat(e.AltitudeKM, 'f', -1, 64),
			strconv.FormatFloat(e.Drag, 'g', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
