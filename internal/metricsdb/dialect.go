package metricsdb

import (
	"regexp"
	"strings"

	// DuckDB (CGO) and SQLite (pure Go) database/sql drivers.
	_ "github.com/marcboeker/go-duckdb"
	_ "modernc.org/sqlite"

	pkgerrors "github.com/YuminosukeSato/paxcast/pkg/errors"
)

// Supported drivers.
const (
	DriverDuckDB = "duckdb"
	DriverSQLite = "sqlite"
)

// dialect holds the driver-specific DDL and DSN handling.
type dialect struct {
	driver string
	schema []string
	dsn    func(path string) string
}

var duckdbDialect = dialect{
	driver: DriverDuckDB,
	schema: []string{
		`CREATE SEQUENCE IF NOT EXISTS seq_operational_metrics_id START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_ml_metrics_id START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_predictions_id START 1`,
		`CREATE TABLE IF NOT EXISTS operational_metrics (
			id BIGINT PRIMARY KEY DEFAULT NEXTVAL('seq_operational_metrics_id'),
			timestamp TIMESTAMP,
			method TEXT,
			url TEXT,
			response_status INTEGER,
			latency DOUBLE
		)`,
		`CREATE TABLE IF NOT EXISTS ml_metrics (
			id BIGINT PRIMARY KEY DEFAULT NEXTVAL('seq_ml_metrics_id'),
			timestamp TIMESTAMP,
			rmse DOUBLE,
			mae DOUBLE
		)`,
		`CREATE TABLE IF NOT EXISTS predictions (
			id BIGINT PRIMARY KEY DEFAULT NEXTVAL('seq_predictions_id'),
			timestamp TIMESTAMP,
			model_type TEXT,
			input_data TEXT,
			predicted_value DOUBLE,
			actual_value DOUBLE
		)`,
	},
	dsn: func(path string) string {
		if path == ":memory:" {
			return ""
		}
		return path
	},
}

var sqliteDialect = dialect{
	driver: DriverSQLite,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS operational_metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME,
			method TEXT,
			url TEXT,
			response_status INTEGER,
			latency REAL
		)`,
		`CREATE TABLE IF NOT EXISTS ml_metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME,
			rmse REAL,
			mae REAL
		)`,
		`CREATE TABLE IF NOT EXISTS predictions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME,
			model_type TEXT,
			input_data TEXT,
			predicted_value REAL,
			actual_value REAL
		)`,
	},
	dsn: func(path string) string {
		if path == "" || path == ":memory:" {
			return ":memory:?_time_format=sqlite"
		}
		return path + "?_time_format=sqlite&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	},
}

func dialectFor(driver string) (dialect, error) {
	switch strings.ToLower(driver) {
	case "", DriverDuckDB:
		return duckdbDialect, nil
	case DriverSQLite:
		return sqliteDialect, nil
	default:
		return dialect{}, pkgerrors.NewValidationError("db_driver", "must be duckdb or sqlite", driver)
	}
}

// tableColumns is the allow-list of tables and the columns selected from them.
// Only names listed here are ever interpolated into SQL.
var tableColumns = map[string][]string{
	"operational_metrics": {"id", "timestamp", "method", "url", "response_status", "latency"},
	"ml_metrics":          {"id", "timestamp", "rmse", "mae"},
	"predictions":         {"id", "timestamp", "model_type", "input_data", "predicted_value", "actual_value"},
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validateIdentifier accepts name only if it is a plain identifier and a
// member of allowed.
func validateIdentifier(name string, allowed []string) error {
	if !identRe.MatchString(name) {
		return pkgerrors.NewValidationError("identifier", "not a plain SQL identifier", name)
	}
	for _, a := range allowed {
		if a == name {
			return nil
		}
	}
	return pkgerrors.NewValidationError("identifier", "not in allow-list", name)
}

// selectAllQuery builds "SELECT <cols> FROM <table> ORDER BY id" for an allow-listed table.
func selectAllQuery(table string) (string, error) {
	tables := make([]string, 0, len(tableColumns))
	for t := range tableColumns {
		tables = append(tables, t)
	}
	if err := validateIdentifier(table, tables); err != nil {
		return "", err
	}
	cols := tableColumns[table]
	for _, c := range cols {
		if err := validateIdentifier(c, cols); err != nil {
			return "", err
		}
	}
	return "SELECT " + strings.Join(cols, ", ") + " FROM " + table + " ORDER BY id", nil
}
