package storage

import "errors"

// Sentinels shared by the memory, PostgreSQL and ClickHouse stores. Index
// hours, element sets, windows and result rows are written once per key and
// never updated.
var (
	// ErrNotFound means the run, satellite or catalog sync asked for is not stored.
	ErrNotFound = errors.New("storage: not found")

	// ErrDuplicateKey means a batch repeats a key that is already stored,
	// such as an index hour, a satellite epoch or a run's window start.
	// The whole batch is rejected.
	ErrDuplicateKey = errors.New("storage: key already stored")

	// ErrInvalidInput means a record lacks its key: a zero time, a missing
	// run id or a non-positive catalog number.
	ErrInvalidInput = errors.New("storage: record missing key fields")
)
