package ingest

import (
	"fmt"
	"io"
	"time"
)

// Orbit-raise CSV columns. The completion column is published with a
// misspelled header; both spellings are accepted.
const (
	ColOrbitRaiseComplete = "ORBIT_RAISE_COMPLETE"
	colOrbitRaiseMisspelt = "ORBIT_RAISE_COMEPLETE"
)

// OrbitRaise maps a launch date (UTC midnight) to the instant its satellites
// completed orbit raising.
type OrbitRaise map[time.Time]time.Time

// CompleteFor returns the orbit-raise completion for a launch date.
func (o OrbitRaise) CompleteFor(launch time.Time) (time.Time, bool) {
	t, ok := o[launchKey(launch)]
	return t, ok
}

func launchKey(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

// ReadOrbitRaiseCSV reads LAUNCH_DATE,ORBIT_RAISE_COMEPLETE rows. A later row
// for the same launch date replaces an earlier one.
func ReadOrbitRaiseCSV(r io.Reader) (OrbitRaise, error) {
	rows, err := readCSV(r, ColLaunchDate)
	if err != nil {
		return nil, err
	}

	out := make(OrbitRaise, len(rows))
	for i, row := range rows {
		completeRaw, ok := row[ColOrbitRaiseComplete]
		if !ok {
			completeRaw, ok = row[colOrbitRaiseMisspelt]
		}
		if !ok {
			return nil, fmt.Errorf("missing column %s: %w", ColOrbitRaiseComplete, ErrMalformedRecord)
		}

		launch, err := ParseTimestamp(row[ColLaunchDate])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		complete, err := ParseTimestamp(completeRaw)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		out[launchKey(launch)] = complete
	}
	return out, nil
}
