// Package metricsdb is the embedded store for operational metrics,
// predictions and the cumulative RMSE/MAE history.
//
// One *sql.DB limited to a single connection is shared by all requests.
// Writers are serialized with a mutex; readers share the read lock.
package metricsdb

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/YuminosukeSato/paxcast/metrics"
	pkgerrors "github.com/YuminosukeSato/paxcast/pkg/errors"
	"github.com/YuminosukeSato/paxcast/pkg/log"
)

// OperationalMetric is one inbound HTTP request.
type OperationalMetric struct {
	ID             int64     `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Method         string    `json:"method"`
	URL            string    `json:"url"`
	ResponseStatus int       `json:"response_status"`
	// Latency in seconds.
	Latency float64 `json:"latency"`
}

// MLMetric is a snapshot of RMSE and MAE over every prediction that had an
// actual value at Timestamp.
type MLMetric struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	RMSE      float64   `json:"rmse"`
	MAE       float64   `json:"mae"`
}

// Prediction is one served prediction. ActualValue is nil until reported.
type Prediction struct {
	ID             int64     `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	ModelType      string    `json:"model_type"`
	InputData      string    `json:"input_data"`
	PredictedValue float64   `json:"predicted_value"`
	ActualValue    *float64  `json:"actual_value"`
}

// Options selects the engine and database file.
type Options struct {
	// Driver is "duckdb" (default) or "sqlite".
	Driver string
	// Path is the database file; "" or ":memory:" keeps it in memory.
	Path string
}

// Store is the metrics store.
type Store struct {
	db      *sql.DB
	dialect dialect
	mu      sync.RWMutex
	logger  log.Logger
	now     func() time.Time
}

// Open opens the database and creates the schema if it does not exist.
func Open(ctx context.Context, opts Options) (*Store, error) {
	d, err := dialectFor(opts.Driver)
	if err != nil {
		return nil, err
	}
	if opts.Path != "" && opts.Path != ":memory:" {
		if dir := filepath.Dir(opts.Path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, pkgerrors.NewPersistenceError("create database directory", err)
			}
		}
	}

	db, err := sql.Open(d.driver, d.dsn(opts.Path))
	if err != nil {
		return nil, pkgerrors.NewPersistenceError("open "+d.driver, err)
	}
	// 組み込み DB は単一ライター
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, pkgerrors.NewPersistenceError("ping "+d.driver, err)
	}

	s := &Store{
		db:      db,
		dialect: d,
		logger:  log.GetLoggerWithName("metricsdb").With("driver", d.driver),
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
	if err := s.Setup(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Setup creates the sequences and tables. It is idempotent.
func (s *Store) Setup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return pkgerrors.NewPersistenceError("setup schema", err)
		}
	}
	return nil
}

// Driver returns the engine name.
func (s *Store) Driver() string { return s.dialect.driver }

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// InsertOperationalMetric records one HTTP request. A zero Timestamp is set to now.
func (s *Store) InsertOperationalMetric(ctx context.Context, m OperationalMetric) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = s.now()
	}
	if m.Latency < 0 {
		m.Latency = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO operational_metrics (timestamp, method, url, response_status, latency) VALUES (?, ?, ?, ?, ?)`,
		m.Timestamp, m.Method, m.URL, m.ResponseStatus, m.Latency,
	)
	return pkgerrors.NewPersistenceError("insert operational metric", err)
}

// InsertPrediction stores a prediction and returns its id.
func (s *Store) InsertPrediction(ctx context.Context, p Prediction) (int64, error) {
	if p.Timestamp.IsZero() {
		p.Timestamp = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO predictions (timestamp, model_type, input_data, predicted_value, actual_value) VALUES (?, ?, ?, ?, ?) RETURNING id`,
		p.Timestamp, p.ModelType, p.InputData, p.PredictedValue, nullFloat(p.ActualValue),
	).Scan(&id)
	if err != nil {
		return 0, pkgerrors.NewPersistenceError("insert prediction", err)
	}
	return id, nil
}

// UpdateActualValue sets the actual value of prediction id, recomputes RMSE
// and MAE over every prediction that has both values, and appends the result
// to ml_metrics. All of it happens in one transaction. An unknown id returns
// NotFoundError and writes nothing.
func (s *Store) UpdateActualValue(ctx context.Context, id int64, actual float64) (_ MLMetric, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return MLMetric{}, pkgerrors.NewPersistenceError("begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM predictions WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return MLMetric{}, pkgerrors.NewPersistenceError("lookup prediction", err)
	}
	if exists == 0 {
		return MLMetric{}, pkgerrors.NewNotFoundError("prediction", id, sql.ErrNoRows)
	}

	if _, err = tx.ExecContext(ctx, `UPDATE predictions SET actual_value = ? WHERE id = ?`, actual, id); err != nil {
		return MLMetric{}, pkgerrors.NewPersistenceError("update actual value", err)
	}

	report, err := evaluateTx(ctx, tx)
	if err != nil {
		return MLMetric{}, err
	}

	m := MLMetric{Timestamp: s.now(), RMSE: report.RMSE, MAE: report.MAE}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO ml_metrics (timestamp, rmse, mae) VALUES (?, ?, ?) RETURNING id`,
		m.Timestamp, m.RMSE, m.MAE,
	).Scan(&m.ID)
	if err != nil {
		return MLMetric{}, pkgerrors.NewPersistenceError("insert ml metric", err)
	}

	if err = tx.Commit(); err != nil {
		return MLMetric{}, pkgerrors.NewPersistenceError("commit", err)
	}

	s.logger.Debug("ml metrics recomputed",
		log.PredictionIDKey, id,
		log.SamplesKey, report.N,
		log.RMSEKey, m.RMSE,
		log.MAEKey, m.MAE)
	return m, nil
}

// evaluateTx computes RMSE/MAE over all predictions with both values.
// Zero qualifying rows yields InsufficientDataError.
func evaluateTx(ctx context.Context, tx *sql.Tx) (metrics.Report, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT actual_value, predicted_value FROM predictions
		 WHERE actual_value IS NOT NULL AND predicted_value IS NOT NULL ORDER BY id`)
	if err != nil {
		return metrics.Report{}, pkgerrors.NewPersistenceError("select evaluated predictions", err)
	}
	defer rows.Close()

	var actual, predicted []float64
	for rows.Next() {
		var a, p float64
		if err := rows.Scan(&a, &p); err != nil {
			return metrics.Report{}, pkgerrors.NewPersistenceError("scan evaluated prediction", err)
		}
		actual = append(actual, a)
		predicted = append(predicted, p)
	}
	if err := rows.Err(); err != nil {
		return metrics.Report{}, pkgerrors.NewPersistenceError("iterate evaluated predictions", err)
	}
	return metrics.Evaluate(actual, predicted)
}

// FetchOperationalMetrics returns the whole operational_metrics table ordered by id.
func (s *Store) FetchOperationalMetrics(ctx context.Context) ([]OperationalMetric, error) {
	out := []OperationalMetric{}
	err := s.selectAll(ctx, "operational_metrics", func(rows *sql.Rows) error {
		var (
			m  OperationalMetric
			ts any
		)
		if err := rows.Scan(&m.ID, &ts, &m.Method, &m.URL, &m.ResponseStatus, &m.Latency); err != nil {
			return err
		}
		t, err := scanTime(ts)
		if err != nil {
			return err
		}
		m.Timestamp = t
		out = append(out, m)
		return nil
	})
	return out, err
}

// FetchMLMetrics returns the whole ml_metrics table ordered by id.
func (s *Store) FetchMLMetrics(ctx context.Context) ([]MLMetric, error) {
	out := []MLMetric{}
	err := s.selectAll(ctx, "ml_metrics", func(rows *sql.Rows) error {
		var (
			m  MLMetric
			ts any
		)
		if err := rows.Scan(&m.ID, &ts, &m.RMSE, &m.MAE); err != nil {
			return err
		}
		t, err := scanTime(ts)
		if err != nil {
			return err
		}
		m.Timestamp = t
		out = append(out, m)
		return nil
	})
	return out, err
}

// FetchPredictions returns the whole predictions table ordered by id.
func (s *Store) FetchPredictions(ctx context.Context) ([]Prediction, error) {
	out := []Prediction{}
	err := s.selectAll(ctx, "predictions", func(rows *sql.Rows) error {
		var (
			p      Prediction
			ts     any
			actual sql.NullFloat64
		)
		if err := rows.Scan(&p.ID, &ts, &p.ModelType, &p.InputData, &p.PredictedValue, &actual); err != nil {
			return err
		}
		t, err := scanTime(ts)
		if err != nil {
			return err
		}
		p.Timestamp = t
		if actual.Valid {
			v := actual.Float64
			p.ActualValue = &v
		}
		out = append(out, p)
		return nil
	})
	return out, err
}

func (s *Store) selectAll(ctx context.Context, table string, scan func(*sql.Rows) error) error {
	query, err := selectAllQuery(table)
	if err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return pkgerrors.NewPersistenceError("select "+table, err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return pkgerrors.NewPersistenceError("scan "+table, err)
		}
	}
	if err := rows.Err(); err != nil {
		return pkgerrors.NewPersistenceError("iterate "+table, err)
	}
	return nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

// sqlite は宣言型によって time.Time ではなく文字列を返すことがある。
var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func scanTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case nil:
		return time.Time{}, nil
	case int64:
		return time.Unix(t, 0).UTC(), nil
	case []byte:
		return parseTime(string(t))
	case string:
		return parseTime(t)
	default:
		return time.Time{}, pkgerrors.Newf("unsupported timestamp type %T", v)
	}
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, pkgerrors.Newf("unparseable timestamp %q", s)
}
