package reporting

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"storm-decay-lab/internal/observability"
)

// Output file names.
const (
	FileReport          = "REPORT.md"
	FileWindows         = "windows.csv"
	FileMeasurements    = "measurements.csv"
	FileClassifications = "classifications.csv"
	FileEventAggregates = "event_aggregates.csv"
	FileDeviationCDF    = "deviation_cdf.csv"
	FileTracking        = "tracking.csv"
	FileParquet         = "measurements.parquet"
)

// WriteOptions controls WriteDir.
type WriteOptions struct {
	Parquet            bool   // also write measurements.parquet
	ParquetCompression string // snappy, gzip or none
}

type outputFile struct {
	name   string
	format string
	render func(io.Writer) error
}

// WriteDir writes the report and its CSV tables into dir, creating it when
// needed, and returns the written paths in write order.
func WriteDir(dir string, r *Report, opts WriteOptions) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var written []string
	write := func(name, format string, render func(io.Writer) error) error {
		p := filepath.Join(dir, name)
		f, err := os.Create(p)
		if err != nil {
			return err
		}
		if err := render(f); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", name, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		observability.RecordReport(format)
		written = append(written, p)
		return nil
	}

	steps := []outputFile{
		{FileReport, "markdown", func(w io.Writer) error {
			_, err := io.WriteString(w, RenderMarkdown(r))
			return err
		}},
		{FileWindows, "csv", func(w io.Writer) error { return WriteWindowsCSV(w, r.Windows) }},
		{FileMeasurements, "csv", func(w io.Writer) error { return WriteMeasurementsCSV(w, r.Measurements) }},
		{FileClassifications, "csv", func(w io.Writer) error { return WriteClassificationsCSV(w, r.Classifications) }},
		{FileEventAggregates, "csv", func(w io.Writer) error { return WriteEventAggregatesCSV(w, r.Events) }},
		{FileDeviationCDF, "csv", func(w io.Writer) error { return WriteCDFCSV(w, r.CDFs) }},
	}
	if len(r.Tracking) > 0 {
		steps = append(steps, outputFile{FileTracking, "csv", func(w io.Writer) error { return WriteTrackingCSV(w, r.Tracking) }})
	}
	if opts.Parquet {
		steps = append(steps, outputFile{FileParquet, "parquet", func(w io.Writer) error {
			data, err := EncodeMeasurementsParquet(r.Measurements, opts.ParquetCompression)
			if err != nil {
				return err
			}
			_, err = w.Write(data)
			return err
		}})
	}

	for _, s := range steps {
		if err := write(s.name, s.format, s.render); err != nil {
			return written, err
		}
	}
	return written, nil
}
