package domain

import "time"

// Sample is one timestamped value of a series.
type Sample struct {
	Time  time.Time // sample instant (UTC)
	Value float64   // measured value
}

// IndexSample is one hourly geomagnetic index reading.
// Corresponds to dst_index table in ClickHouse.
type IndexSample struct {
	Time      time.Time // hour start (UTC)
	NanoTesla float64   // signed Dst value in nT
}

// ElementSample is one projected element set of a tracked satellite.
// Corresponds to element_samples table in ClickHouse.
type ElementSample struct {
	CatalogID   int       // NORAD catalog number
	LaunchDate  time.Time // launch date (UTC midnight)
	Epoch       time.Time // element set epoch
	Inclination float64   // degrees
	AltitudeKM  float64   // altitude above the reference radius, derived from mean motion
	Drag        float64   // BSTAR drag term
}

// Satellite is the catalog entry of a tracked satellite.
// Corresponds to satellites table in PostgreSQL.
type Satellite struct {
	CatalogID   int       // NORAD catalog number
	LaunchDate  time.Time // launch date (UTC midnight)
	FirstEpoch  time.Time // earliest retained epoch
	LastEpoch   time.Time // latest retained epoch
	SampleCount int       // retained element sets
	CreatedAt   time.Time // row creation time, set by the store
}
