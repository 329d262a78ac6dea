// Package store loads decoded instrument records and gridded fields into
// ClickHouse.
//
// Instrument records go through the ch-go native client with columnar
// batches. Gridded fields go through clickhouse-go/v2, whose row-oriented
// PrepareBatch API suits the one-value-per-cell layout.
package store

import (
	"fmt"
	"strings"
)

// Table names.
const (
	SonicTable = "sonic"
	IMUTable   = "imu"
	GPSTable   = "gps"
	GridTable  = "grid_values"
)

// DefaultBatchSize is the number of rows sent per INSERT.
const DefaultBatchSize = 100_000

const sonicDDL = `CREATE TABLE IF NOT EXISTS %s (
    time   DateTime64(3),
    u      Float64,
    v      Float64,
    w      Float64,
    t_sos  Float64,
    source String
) ENGINE = MergeTree
PARTITION BY toYYYYMM(time)
ORDER BY (source, time)`

const imuDDL = `CREATE TABLE IF NOT EXISTS %s (
    time   DateTime64(3),
    x_rate Float64,
    y_rate Float64,
    z_rate Float64,
    x_accl Float64,
    y_accl Float64,
    z_accl Float64,
    roll   Float64,
    pitch  Float64,
    yaw    Float64,
    source String
) ENGINE = MergeTree
PARTITION BY toYYYYMM(time)
ORDER BY (source, time)`

const gpsDDL = `CREATE TABLE IF NOT EXISTS %s (
    gps_time    DateTime64(3),
    logger_time DateTime64(3),
    status      String,
    lat         Float64,
    lon         Float64,
    sog_knots   Float64,
    cog         Float64,
    mag_var     Float64,
    var_dir     String,
    source      String
) ENGINE = MergeTree
PARTITION BY toYYYYMM(logger_time)
ORDER BY (source, logger_time)`

const gridDDL = `CREATE TABLE IF NOT EXISTS %s (
    time     DateTime('UTC'),
    variable LowCardinality(String),
    lat      Float32,
    lon      Float32,
    value    Float64,
    source   LowCardinality(String)
) ENGINE = MergeTree
PARTITION BY toYYYYMM(time)
ORDER BY (variable, time, lat, lon)`

var ddl = map[string]string{
	SonicTable: sonicDDL,
	IMUTable:   imuDDL,
	GPSTable:   gpsDDL,
	GridTable:  gridDDL,
}

// CreateTableSQL returns the CREATE TABLE statement for table in database.
func CreateTableSQL(database, table string) (string, error) {
	stmt, ok := ddl[table]
	if !ok {
		return "", fmt.Errorf("store: unknown table %q", table)
	}
	return fmt.Sprintf(stmt, fqn(database, table)), nil
}

// deleteSourceSQL removes rows previously loaded from source so a file can
// be re-ingested without duplicates.
func deleteSourceSQL(database, table, source string) string {
	return fmt.Sprintf("ALTER TABLE %s DELETE WHERE source = %s SETTINGS mutations_sync = 1",
		fqn(database, table), quote(source))
}

func fqn(database, table string) string {
	if database == "" {
		return table
	}
	return database + "." + table
}

// quote renders s as a ClickHouse string literal.
func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(s) + "'"
}
