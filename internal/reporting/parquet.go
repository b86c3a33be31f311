package reporting

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"storm-decay-lab/internal/domain"
)

type memFile struct {
	buffer *bytes.Buffer
}

func newMemFile() *memFile {
	return &memFile{buffer: &bytes.Buffer{}}
}

func (m *memFile) Create(string) (source.ParquetFile, error) { return m, nil }
func (m *memFile) Open(string) (source.ParquetFile, error)   { return m, nil }
func (m *memFile) Seek(int64, int) (int64, error)            { return int64(m.buffer.Len()), nil }
func (m *memFile) Read([]byte) (int, error)                  { return 0, io.EOF }
func (m *memFile) Write(b []byte) (int, error)               { return m.buffer.Write(b) }
func (m *memFile) Close() error                              { return nil }
func (m *memFile) Bytes() []byte                             { return m.buffer.Bytes() }

// measurementRecord defines the parquet schema of a measurement row.
// Optional values are pointers.
type measurementRecord struct {
	RunID           string   `parquet:"name=run_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	WindowLabel     string   `parquet:"name=window_label, type=BYTE_ARRAY, convertedtype=UTF8"`
	EventStart      int64    `parquet:"name=event_start, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	EventEnd        int64    `parquet:"name=event_end, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	CatalogID       int32    `parquet:"name=catalog_id, type=INT32"`
	OffsetDays      int32    `parquet:"name=offset_days, type=INT32"`
	Status          string   `parquet:"name=status, type=BYTE_ARRAY, convertedtype=UTF8"`
	DeviationKM     float64  `parquet:"name=deviation_km, type=DOUBLE"`
	BaselineKM      float64  `parquet:"name=baseline_km, type=DOUBLE"`
	AnchorEpoch     int64    `parquet:"name=anchor_epoch, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	AnchorKM        float64  `parquet:"name=anchor_km, type=DOUBLE"`
	SampleEpoch     *int64   `parquet:"name=sample_epoch, type=INT64, convertedtype=TIMESTAMP_MILLIS, repetitiontype=OPTIONAL"`
	MaxDrag         *float64 `parquet:"name=max_drag, type=DOUBLE, repetitiontype=OPTIONAL"`
	PeakDeviationKM *float64 `parquet:"name=peak_deviation_km, type=DOUBLE, repetitiontype=OPTIONAL"`
	IndexNT         *float64 `parquet:"name=index_nt, type=DOUBLE, repetitiontype=OPTIONAL"`
}

// compressionCodec maps a configured name to a parquet codec.
func compressionCodec(name string) (parquet.CompressionCodec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "snappy":
		return parquet.CompressionCodec_SNAPPY, nil
	case "gzip":
		return parquet.CompressionCodec_GZIP, nil
	case "none", "uncompressed":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return 0, fmt.Errorf("unsupported parquet compression %q", name)
	}
}

// EncodeMeasurementsParquet encodes rows as a parquet file.
func EncodeMeasurementsParquet(rows []*domain.MeasurementRow, compression string) ([]byte, error) {
	codec, err := compressionCodec(compression)
	if err != nil {
		return nil, err
	}

	mf := newMemFile()
	pw, err := writer.NewParquetWriter(mf, new(measurementRecord), 1)
	if err != nil {
		return nil, err
	}
	pw.CompressionType = codec

	for _, r := range rows {
		rec := measurementRecord{
			RunID:           r.RunID,
			WindowLabel:     r.WindowLabel,
			EventStart:      r.EventStart.UTC().UnixMilli(),
			EventEnd:        r.EventEnd.UTC().UnixMilli(),
			CatalogID:       int32(r.CatalogID),
			OffsetDays:      int32(r.OffsetDays),
			Status:          string(r.Status),
			DeviationKM:     r.DeviationKM,
			BaselineKM:      r.BaselineKM,
			AnchorEpoch:     r.AnchorEpoch.UTC().UnixMilli(),
			AnchorKM:        r.AnchorKM,
			MaxDrag:         r.MaxDrag,
			PeakDeviationKM: r.PeakDeviationKM,
			IndexNT:         r.IndexNT,
		}
		if r.SampleEpoch != nil {
			ms := r.SampleEpoch.UTC().UnixMilli()
			rec.SampleEpoch = &ms
		}
		if err := pw.Write(rec); err != nil {
			return nil, fmt.Errorf("write parquet row: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("finish parquet: %w", err)
	}
	return mf.Bytes(), nil
}
