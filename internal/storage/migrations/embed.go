package migrations

import "embed"

// PostgresFS holds the relational schema: satellites, event windows per run,
// classifications, pipeline runs and catalog progress.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS holds the time-series schema: the hourly Dst index, element
// sets and measurement rows.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
