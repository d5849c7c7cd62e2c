package training

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/paxcast/dataset"
	pkgerrors "github.com/YuminosukeSato/paxcast/pkg/errors"
)

func scenarioFrame() *dataset.Frame {
	return dataset.FromRecords([]map[string]any{
		{"ASK": 100.0, "ATK": 50.0, "COMBUSTIVEL_LITROS": 10.0, "PASSAGEIROS_PAGOS": 20.0},
		{"ASK": 200.0, "ATK": 80.0, "COMBUSTIVEL_LITROS": 15.0, "PASSAGEIROS_PAGOS": 40.0},
	})
}

func TestTrainBaseline_Scenario(t *testing.T) {
	got, n, err := TrainBaseline(scenarioFrame())
	require.NoError(t, err)
	assert.Equal(t, 30.0, got)
	assert.Equal(t, 2, n)
}

func TestTrainBaseline_IgnoresInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		in   []any
		want float64
	}{
		{"all numeric", []any{1.0, 2.0, 3.0, 4.0}, 2.5},
		{"strings coerced", []any{"10", "20", 30.0}, 20},
		{"garbage dropped", []any{10.0, "abc", nil, "", 20.0}, 15},
		{"single value", []any{7.0}, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := make([]map[string]any, len(tt.in))
			for i, v := range tt.in {
				records[i] = map[string]any{Target: v}
			}
			got, _, err := TrainBaseline(dataset.FromRecords(records))
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestTrainBaseline_Empty(t *testing.T) {
	frame := dataset.FromRecords([]map[string]any{{Target: "n/a"}, {Target: nil}})
	_, _, err := TrainBaseline(frame)

	var ee *pkgerrors.EmptyDatasetError
	require.True(t, pkgerrors.As(err, &ee))
	assert.Equal(t, Target, ee.Column)
	assert.Equal(t, 2, ee.Rows)
}

func TestTrainBaseline_MissingColumn(t *testing.T) {
	_, _, err := TrainBaseline(dataset.NewFrame("ASK"))
	var ve *pkgerrors.ValidationError
	require.True(t, pkgerrors.As(err, &ve))
}

func TestTrainRegressor(t *testing.T) {
	reg, n, err := TrainRegressor(scenarioFrame())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, NEstimators, reg.NumTrees())
	assert.Equal(t, Features, reg.FeatureNames)
	assert.Equal(t, MaxDepth, reg.Params.MaxDepth)
	assert.Equal(t, RegAlpha, reg.Params.RegAlpha)

	low, err := reg.PredictOne([]float64{100, 50, 10})
	require.NoError(t, err)
	high, err := reg.PredictOne([]float64{200, 80, 15})
	require.NoError(t, err)
	assert.Less(t, low, high)
}

func TestTrainRegressor_DropsIncompleteRows(t *testing.T) {
	frame := dataset.FromRecords([]map[string]any{
		{"ASK": 100.0, "ATK": 50.0, "COMBUSTIVEL_LITROS": 10.0, "PASSAGEIROS_PAGOS": 20.0},
		{"ASK": "x", "ATK": 80.0, "COMBUSTIVEL_LITROS": 15.0, "PASSAGEIROS_PAGOS": 40.0},
		{"ASK": 300.0, "ATK": nil, "COMBUSTIVEL_LITROS": 15.0, "PASSAGEIROS_PAGOS": 40.0},
		{"ASK": 400.0, "ATK": 90.0, "COMBUSTIVEL_LITROS": 20.0, "PASSAGEIROS_PAGOS": 80.0},
	})
	_, n, err := TrainRegressor(frame)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestTrainRegressor_NoCompleteRows(t *testing.T) {
	frame := dataset.FromRecords([]map[string]any{
		{"ASK": 100.0, "ATK": nil, "COMBUSTIVEL_LITROS": 10.0, "PASSAGEIROS_PAGOS": 20.0},
	})
	_, _, err := TrainRegressor(frame)
	var ee *pkgerrors.EmptyDatasetError
	require.True(t, pkgerrors.As(err, &ee))
}

func TestRun(t *testing.T) {
	res, err := Run(scenarioFrame())
	require.NoError(t, err)
	assert.Equal(t, 30.0, res.Baseline)
	assert.Equal(t, 2, res.BaselineSamples)
	assert.Equal(t, 2, res.Samples)
	require.NotNil(t, res.Regressor)

	_, err = Run(nil)
	var ee *pkgerrors.EmptyDatasetError
	require.True(t, pkgerrors.As(err, &ee))
}
