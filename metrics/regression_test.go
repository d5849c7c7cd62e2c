package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/paxcast/pkg/errors"
)

func TestMSE(t *testing.T) {
	tests := []struct {
		name      string
		yTrue     *mat.VecDense
		yPred     *mat.VecDense
		want      float64
		tolerance float64
		wantErr   bool
	}{
		{
			name:      "perfect prediction",
			yTrue:     mat.NewVecDense(5, []float64{1.0, 2.0, 3.0, 4.0, 5.0}),
			yPred:     mat.NewVecDense(5, []float64{1.0, 2.0, 3.0, 4.0, 5.0}),
			want:      0.0,
			tolerance: 1e-10,
		},
		{
			name:      "simple case",
			yTrue:     mat.NewVecDense(4, []float64{1.0, 2.0, 3.0, 4.0}),
			yPred:     mat.NewVecDense(4, []float64{1.5, 2.5, 2.5, 3.5}),
			want:      0.25,
			tolerance: 1e-10,
		},
		{
			name:      "larger errors",
			yTrue:     mat.NewVecDense(3, []float64{10.0, 20.0, 30.0}),
			yPred:     mat.NewVecDense(3, []float64{12.0, 18.0, 33.0}),
			want:      17.0 / 3.0, // (4 + 4 + 9) / 3
			tolerance: 1e-10,
		},
		{
			name:    "dimension mismatch",
			yTrue:   mat.NewVecDense(3, []float64{1.0, 2.0, 3.0}),
			yPred:   mat.NewVecDense(2, []float64{1.0, 2.0}),
			wantErr: true,
		},
		{
			name:    "empty vectors",
			yTrue:   &mat.VecDense{},
			yPred:   &mat.VecDense{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MSE(tt.yTrue, tt.yPred)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, tt.tolerance)
		})
	}
}

func TestRMSEAndMAE(t *testing.T) {
	yTrue := mat.NewVecDense(3, []float64{20, 40, 30})
	yPred := mat.NewVecDense(3, []float64{30, 30, 30})

	rmse, err := RMSE(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(200.0/3.0), rmse, 1e-12)

	mae, err := MAE(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 20.0/3.0, mae, 1e-12)
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		yTrue    []float64
		yPred    []float64
		wantRMSE float64
		wantMAE  float64
	}{
		{"single pair", []float64{25}, []float64{30}, 5, 5},
		{"two pairs", []float64{25, 35}, []float64{30, 30}, 5, 5},
		{"asymmetric", []float64{0, 4}, []float64{3, 0}, math.Sqrt(12.5), 3.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.yTrue, tt.yPred)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantRMSE, got.RMSE, 1e-12)
			assert.InDelta(t, tt.wantMAE, got.MAE, 1e-12)
			assert.Equal(t, len(tt.yTrue), got.N)
			assert.GreaterOrEqual(t, got.RMSE, got.MAE, "RMSE is never below MAE")
		})
	}
}

func TestEvaluate_EmptyIsInsufficient(t *testing.T) {
	_, err := Evaluate(nil, nil)

	var ie *errors.InsufficientDataError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, 0, ie.Got)
}

func TestEvaluate_LengthMismatch(t *testing.T) {
	_, err := Evaluate([]float64{1, 2}, []float64{1})

	var de *errors.DimensionError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 2, de.Expected)
	assert.Equal(t, 1, de.Got)
}

func TestEvaluate_DoesNotMutateInputs(t *testing.T) {
	yTrue := []float64{1, 2, 3}
	yPred := []float64{1, 1, 1}
	_, err := Evaluate(yTrue, yPred)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, yTrue)
	assert.Equal(t, []float64{1, 1, 1}, yPred)
}
