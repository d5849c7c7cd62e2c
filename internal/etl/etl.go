// Package etl turns the raw flight-statistics parquet export into the
// processed dataset used for training. The transformations run inside DuckDB.
package etl

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/YuminosukeSato/paxcast/internal/config"
	pkgerrors "github.com/YuminosukeSato/paxcast/pkg/errors"
	"github.com/YuminosukeSato/paxcast/pkg/log"
)

// Table is the staging table the raw file is loaded into.
const Table = "raw_dataset"

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type job struct {
	conn    *sql.Conn
	columns map[string]string // 小文字 -> 実際の列名
}

// Process runs one ETL pass described by cfg: load input_path into DuckDB,
// apply the configured column transformations and write output_path as
// parquet. Every configured column must exist in the loaded table.
func Process(ctx context.Context, cfg config.ETLConfig) (err error) {
	defer pkgerrors.Recover(&err, "etl.Process")

	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := log.GetLoggerWithName("etl")
	start := time.Now()

	db, err := sql.Open("duckdb", cfg.DatabasePath)
	if err != nil {
		return pkgerrors.NewPersistenceError("open duckdb", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		return pkgerrors.NewPersistenceError("open duckdb connection", err)
	}
	defer conn.Close()

	j := &job{conn: conn}
	steps := []struct {
		name string
		run  func(context.Context, config.ETLConfig) error
	}{
		{"load", j.load},
		{"drop_columns", j.dropColumns},
		{"replace_comma_with_dot", j.replaceCommaWithDot},
		{"set_empty_to_null", j.setEmptyToNull},
		{"numeric_columns", j.castNumeric},
		{"date_column", j.addDateColumn},
		{"save", j.save},
	}
	for _, st := range steps {
		if err := st.run(ctx, cfg); err != nil {
			logger.Error("etl step failed", err, log.OperationKey, st.name)
			return err
		}
		logger.Debug("etl step done", log.OperationKey, st.name)
	}

	logger.Info("dataset processed",
		log.PathKey, cfg.OutputPath,
		log.FeaturesKey, len(j.columns),
		log.DurationMsKey, time.Since(start).Milliseconds())
	return nil
}

func (j *job) exec(ctx context.Context, query string) error {
	if _, err := j.conn.ExecContext(ctx, query); err != nil {
		return pkgerrors.Wrapf(err, "etl: %s", query)
	}
	return nil
}

func (j *job) load(ctx context.Context, cfg config.ETLConfig) error {
	q := "CREATE OR REPLACE TABLE " + Table + " AS SELECT * FROM read_parquet(" + quoteLiteral(cfg.InputPath) + ")"
	if err := j.exec(ctx, q); err != nil {
		return pkgerrors.NewPersistenceError("load "+cfg.InputPath, err)
	}
	return j.refreshColumns(ctx)
}

// refreshColumns reads the staging table's column names.
func (j *job) refreshColumns(ctx context.Context) error {
	rows, err := j.conn.QueryContext(ctx,
		`SELECT column_name FROM information_schema.columns WHERE table_name = ? ORDER BY ordinal_position`, Table)
	if err != nil {
		return pkgerrors.Wrap(err, "list columns")
	}
	defer rows.Close()

	cols := make(map[string]string)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return pkgerrors.Wrap(err, "scan column name")
		}
		cols[strings.ToLower(name)] = name
	}
	if err := rows.Err(); err != nil {
		return pkgerrors.Wrap(err, "list columns")
	}
	j.columns = cols
	return nil
}

// column resolves a configured name to a quoted identifier of an existing
// column. Names that are not plain identifiers are rejected before lookup.
func (j *job) column(param, name string) (string, error) {
	if !identRe.MatchString(name) {
		return "", pkgerrors.NewValidationError(param, "not a plain SQL identifier", name)
	}
	actual, ok := j.columns[strings.ToLower(name)]
	if !ok {
		return "", pkgerrors.NewValidationError(param, "column does not exist in "+Table, name)
	}
	return quoteIdent(actual), nil
}

func (j *job) dropColumns(ctx context.Context, cfg config.ETLConfig) error {
	for _, name := range cfg.DropColumns {
		col, err := j.column("drop_columns", name)
		if err != nil {
			return err
		}
		if err := j.exec(ctx, "ALTER TABLE "+Table+" DROP COLUMN "+col); err != nil {
			return err
		}
	}
	return j.refreshColumns(ctx)
}

func (j *job) replaceCommaWithDot(ctx context.Context, cfg config.ETLConfig) error {
	for _, name := range cfg.ReplaceCommaWithDotColumns {
		col, err := j.column("replace_comma_with_dot_columns", name)
		if err != nil {
			return err
		}
		// 数値列は VARCHAR に変換してから置換する
		q := "ALTER TABLE " + Table + " ALTER COLUMN " + col +
			" SET DATA TYPE VARCHAR USING REPLACE(CAST(" + col + " AS VARCHAR), ',', '.')"
		if err := j.exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (j *job) setEmptyToNull(ctx context.Context, cfg config.ETLConfig) error {
	for _, name := range cfg.SetEmptyToNullColumns {
		col, err := j.column("set_empty_to_null_columns", name)
		if err != nil {
			return err
		}
		q := "UPDATE " + Table + " SET " + col + " = NULL WHERE LENGTH(TRIM(CAST(" + col + " AS VARCHAR))) = 0"
		if err := j.exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (j *job) castNumeric(ctx context.Context, cfg config.ETLConfig) error {
	for _, name := range cfg.NumericColumns {
		col, err := j.column("numeric_columns", name)
		if err != nil {
			return err
		}
		// 変換できない値は NULL になる
		q := "ALTER TABLE " + Table + " ALTER COLUMN " + col +
			" SET DATA TYPE DOUBLE USING TRY_CAST(" + col + " AS DOUBLE)"
		if err := j.exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (j *job) addDateColumn(ctx context.Context, cfg config.ETLConfig) error {
	if cfg.NewDateColumn == "" {
		return nil
	}
	if !identRe.MatchString(cfg.NewDateColumn) {
		return pkgerrors.NewValidationError("new_date_column", "not a plain SQL identifier", cfg.NewDateColumn)
	}
	if _, exists := j.columns[strings.ToLower(cfg.NewDateColumn)]; exists {
		return pkgerrors.NewValidationError("new_date_column", "column already exists in "+Table, cfg.NewDateColumn)
	}
	year, err := j.column("date_columns", cfg.DateColumns[0])
	if err != nil {
		return err
	}
	month, err := j.column("date_columns", cfg.DateColumns[1])
	if err != nil {
		return err
	}

	target := quoteIdent(cfg.NewDateColumn)
	if err := j.exec(ctx, "ALTER TABLE "+Table+" ADD COLUMN "+target+" DATE"); err != nil {
		return err
	}
	expr := "CAST(TRY_CAST(" + year + " AS BIGINT) AS VARCHAR) || '-' || " +
		"LPAD(CAST(TRY_CAST(" + month + " AS BIGINT) AS VARCHAR), 2, '0') || " +
		quoteLiteral(cfg.DateConcatFormat)
	if err := j.exec(ctx, "UPDATE "+Table+" SET "+target+" = TRY_CAST("+expr+" AS DATE)"); err != nil {
		return err
	}
	return j.refreshColumns(ctx)
}

func (j *job) save(ctx context.Context, cfg config.ETLConfig) error {
	if dir := filepath.Dir(cfg.OutputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return pkgerrors.NewPersistenceError("create output directory", err)
		}
	}
	q := "COPY " + Table + " TO " + quoteLiteral(cfg.OutputPath) + " (FORMAT PARQUET)"
	if err := j.exec(ctx, q); err != nil {
		return pkgerrors.NewPersistenceError("write "+cfg.OutputPath, err)
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
