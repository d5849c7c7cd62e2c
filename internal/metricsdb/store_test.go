package metricsdb

import (
	"context"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/YuminosukeSato/paxcast/pkg/errors"
)

var drivers = []string{DriverDuckDB, DriverSQLite}

func openStore(t *testing.T, driver string) *Store {
	t.Helper()
	s, err := Open(context.Background(), Options{Driver: driver, Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func forEachDriver(t *testing.T, fn func(t *testing.T, s *Store)) {
	for _, d := range drivers {
		t.Run(d, func(t *testing.T) {
			fn(t, openStore(t, d))
		})
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "postgres"})
	var ve *pkgerrors.ValidationError
	require.True(t, pkgerrors.As(err, &ve))
}

func TestSetup_Idempotent(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		require.NoError(t, s.Setup(context.Background()))
		require.NoError(t, s.Setup(context.Background()))
	})
}

func TestOperationalMetrics(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

		require.NoError(t, s.InsertOperationalMetric(ctx, OperationalMetric{
			Timestamp: ts, Method: "POST", URL: "http://localhost/predict", ResponseStatus: 200, Latency: 0.012,
		}))
		require.NoError(t, s.InsertOperationalMetric(ctx, OperationalMetric{
			Method: "PUT", URL: "http://localhost/prediction/999", ResponseStatus: 404, Latency: -1,
		}))

		got, err := s.FetchOperationalMetrics(ctx)
		require.NoError(t, err)
		require.Len(t, got, 2)

		assert.Equal(t, int64(1), got[0].ID)
		assert.Equal(t, int64(2), got[1].ID)
		assert.True(t, ts.Equal(got[0].Timestamp), "got %v", got[0].Timestamp)
		assert.Equal(t, "POST", got[0].Method)
		assert.Equal(t, 200, got[0].ResponseStatus)
		assert.InDelta(t, 0.012, got[0].Latency, 1e-12)

		assert.Equal(t, 404, got[1].ResponseStatus)
		assert.Equal(t, 0.0, got[1].Latency, "negative latency is clamped")
		assert.False(t, got[1].Timestamp.IsZero())
	})
}

func TestInsertPrediction_ReturnsMonotonicIDs(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		for want := int64(1); want <= 3; want++ {
			id, err := s.InsertPrediction(ctx, Prediction{ModelType: "baseline", InputData: `{"ASK":1}`, PredictedValue: 30})
			require.NoError(t, err)
			assert.Equal(t, want, id)
		}

		preds, err := s.FetchPredictions(ctx)
		require.NoError(t, err)
		require.Len(t, preds, 3)
		for _, p := range preds {
			assert.Nil(t, p.ActualValue)
			assert.Equal(t, "baseline", p.ModelType)
		}
	})
}

func TestUpdateActualValue_RecomputesOverAllEvaluated(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		predicted := []float64{30, 30, 50, 10}
		for _, v := range predicted {
			_, err := s.InsertPrediction(ctx, Prediction{ModelType: "xgboost", InputData: "{}", PredictedValue: v})
			require.NoError(t, err)
		}

		m1, err := s.UpdateActualValue(ctx, 1, 25)
		require.NoError(t, err)
		assert.InDelta(t, 5, m1.RMSE, 1e-12)
		assert.InDelta(t, 5, m1.MAE, 1e-12)

		m2, err := s.UpdateActualValue(ctx, 3, 40)
		require.NoError(t, err)
		// errors: 5, 10
		assert.InDelta(t, math.Sqrt((25+100)/2.0), m2.RMSE, 1e-12)
		assert.InDelta(t, 7.5, m2.MAE, 1e-12)

		// 上書きも再計算される
		m3, err := s.UpdateActualValue(ctx, 1, 30)
		require.NoError(t, err)
		assert.InDelta(t, math.Sqrt(100/2.0), m3.RMSE, 1e-12)
		assert.InDelta(t, 5, m3.MAE, 1e-12)

		history, err := s.FetchMLMetrics(ctx)
		require.NoError(t, err)
		require.Len(t, history, 3)
		assert.Equal(t, []int64{1, 2, 3}, []int64{history[0].ID, history[1].ID, history[2].ID})
		assert.Equal(t, m3.ID, history[2].ID)
		assert.InDelta(t, m3.RMSE, history[2].RMSE, 1e-12)

		preds, err := s.FetchPredictions(ctx)
		require.NoError(t, err)
		require.Len(t, preds, 4)
		require.NotNil(t, preds[0].ActualValue)
		assert.Equal(t, 30.0, *preds[0].ActualValue)
		assert.Nil(t, preds[1].ActualValue)
		require.NotNil(t, preds[2].ActualValue)
		assert.Equal(t, 40.0, *preds[2].ActualValue)
	})
}

func TestUpdateActualValue_NotFoundWritesNothing(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()

		_, err := s.UpdateActualValue(ctx, 999, 10)
		var nf *pkgerrors.NotFoundError
		require.True(t, pkgerrors.As(err, &nf))
		assert.Equal(t, int64(999), nf.ID)

		history, err := s.FetchMLMetrics(ctx)
		require.NoError(t, err)
		assert.Empty(t, history)
		assert.NotNil(t, history, "empty tables encode as [] not null")
	})
}

func TestConcurrentWriters(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id, err := s.InsertPrediction(ctx, Prediction{ModelType: "baseline", InputData: "{}", PredictedValue: float64(i)})
				assert.NoError(t, err)
				_, err = s.UpdateActualValue(ctx, id, float64(i)+1)
				assert.NoError(t, err)
				assert.NoError(t, s.InsertOperationalMetric(ctx, OperationalMetric{Method: "GET", URL: "/", ResponseStatus: 200}))
			}(i)
		}
		wg.Wait()

		preds, err := s.FetchPredictions(ctx)
		require.NoError(t, err)
		assert.Len(t, preds, 20)

		history, err := s.FetchMLMetrics(ctx)
		require.NoError(t, err)
		require.Len(t, history, 20)
		// 全予測の誤差は 1
		assert.InDelta(t, 1, history[19].RMSE, 1e-12)
		assert.InDelta(t, 1, history[19].MAE, 1e-12)

		ops, err := s.FetchOperationalMetrics(ctx)
		require.NoError(t, err)
		assert.Len(t, ops, 20)
	})
}

func TestOpen_FileBackedPersists(t *testing.T) {
	for _, d := range drivers {
		t.Run(d, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "sub", "metrics.db")

			s, err := Open(ctx, Options{Driver: d, Path: path})
			require.NoError(t, err)
			_, err = s.InsertPrediction(ctx, Prediction{ModelType: "baseline", InputData: "{}", PredictedValue: 1})
			require.NoError(t, err)
			require.NoError(t, s.Close())

			s, err = Open(ctx, Options{Driver: d, Path: path})
			require.NoError(t, err)
			defer s.Close()
			preds, err := s.FetchPredictions(ctx)
			require.NoError(t, err)
			assert.Len(t, preds, 1)

			id, err := s.InsertPrediction(ctx, Prediction{ModelType: "baseline", InputData: "{}", PredictedValue: 2})
			require.NoError(t, err)
			assert.Equal(t, int64(2), id, "sequence continues after reopen")
		})
	}
}

func TestValidateIdentifier(t *testing.T) {
	allowed := []string{"ASK", "PASSAGEIROS_PAGOS"}
	assert.NoError(t, validateIdentifier("ASK", allowed))
	assert.Error(t, validateIdentifier("ATK", allowed))
	assert.Error(t, validateIdentifier("ASK; DROP TABLE predictions", allowed))
	assert.Error(t, validateIdentifier("1ASK", []string{"1ASK"}))

	_, err := selectAllQuery("users")
	assert.Error(t, err)
	q, err := selectAllQuery("ml_metrics")
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, timestamp, rmse, mae FROM ml_metrics ORDER BY id", q)
}

func TestScanTime(t *testing.T) {
	want := time.Date(2024, 5, 1, 12, 30, 0, 123000000, time.UTC)
	for _, in := range []any{
		want,
		"2024-05-01 12:30:00.123+00:00",
		"2024-05-01T12:30:00.123Z",
		[]byte("2024-05-01 12:30:00.123"),
	} {
		got, err := scanTime(in)
		require.NoError(t, err, "%v", in)
		assert.True(t, want.Equal(got), "%v -> %v", in, got)
	}
	_, err := scanTime(3.5)
	assert.Error(t, err)
}
