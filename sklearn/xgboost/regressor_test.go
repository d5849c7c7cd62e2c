package xgboost

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	pkgerrors "github.com/YuminosukeSato/paxcast/pkg/errors"
)

// flights は ASK/ATK/燃料 から乗客数がほぼ線形に決まる合成データ。
func flights(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 3, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		ask := 100 + float64(i)*10
		atk := 50 + float64(i%7)*5
		fuel := 10 + float64(i%5)
		X.SetRow(i, []float64{ask, atk, fuel})
		y.Set(i, 0, 0.2*ask+0.1*atk)
	}
	return X, y
}

func productionRegressor() *XGBRegressor {
	return NewXGBRegressor().
		WithMaxDepth(5).
		WithNEstimators(100).
		WithLearningRate(0.1).
		WithRegAlpha(0.5).
		WithObjective(ObjectiveSquaredError)
}

func TestXGBRegressor_FitReducesError(t *testing.T) {
	X, y := flights(60)
	reg := productionRegressor()
	require.NoError(t, reg.Fit(X, y))
	assert.True(t, reg.IsFitted())
	assert.Equal(t, 100, reg.NumTrees())

	pred, err := reg.Predict(X)
	require.NoError(t, err)

	var mean float64
	for i := 0; i < 60; i++ {
		mean += y.At(i, 0)
	}
	mean /= 60

	var sseModel, sseMean float64
	for i := 0; i < 60; i++ {
		d := pred.At(i, 0) - y.At(i, 0)
		sseModel += d * d
		m := mean - y.At(i, 0)
		sseMean += m * m
	}
	assert.Less(t, sseModel, 0.05*sseMean)
}

func TestXGBRegressor_TreesRespectMaxDepth(t *testing.T) {
	X, y := flights(80)
	reg := productionRegressor().WithNEstimators(5)
	require.NoError(t, reg.Fit(X, y))

	for i, tree := range reg.booster.Trees {
		assert.LessOrEqual(t, tree.Depth(), 5, "tree %d", i)
	}
}

func TestXGBRegressor_TwoRowScenario(t *testing.T) {
	X := mat.NewDense(2, 3, []float64{
		100, 50, 10,
		200, 80, 15,
	})
	y := mat.NewDense(2, 1, []float64{20, 40})

	reg := productionRegressor()
	require.NoError(t, reg.Fit(X, y))
	assert.Equal(t, 30.0, reg.booster.BaseScore)

	low, err := reg.PredictOne([]float64{100, 50, 10})
	require.NoError(t, err)
	high, err := reg.PredictOne([]float64{200, 80, 15})
	require.NoError(t, err)

	assert.Less(t, low, high)
	assert.Greater(t, low, 20.0)
	assert.Less(t, high, 40.0)
	assert.InDelta(t, 60.0, low+high, 1e-9, "symmetric targets give symmetric predictions")
}

func TestXGBRegressor_StrongL1KeepsBaseScore(t *testing.T) {
	X, y := flights(20)
	reg := productionRegressor().WithRegAlpha(1e9)
	require.NoError(t, reg.Fit(X, y))

	pred, err := reg.Predict(X)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		assert.Equal(t, reg.booster.BaseScore, pred.At(i, 0))
	}
}

func TestXGBRegressor_SingleSample(t *testing.T) {
	reg := productionRegressor()
	require.NoError(t, reg.Fit(mat.NewDense(1, 3, []float64{1, 2, 3}), mat.NewDense(1, 1, []float64{7})))

	got, err := reg.PredictOne([]float64{9, 9, 9})
	require.NoError(t, err)
	assert.Equal(t, 7.0, got)
}

func TestXGBRegressor_MissingFeatureFollowsDefault(t *testing.T) {
	X, y := flights(30)
	reg := productionRegressor()
	require.NoError(t, reg.Fit(X, y))

	got, err := reg.PredictOne([]float64{math.NaN(), 60, 12})
	require.NoError(t, err)
	assert.False(t, math.IsNaN(got))
}

func TestXGBRegressor_Errors(t *testing.T) {
	reg := productionRegressor()

	_, err := reg.PredictOne([]float64{1, 2, 3})
	var nt *pkgerrors.ModelNotTrainedError
	require.True(t, pkgerrors.As(err, &nt))
	assert.Equal(t, ModelKind, nt.Kind)

	err = reg.Fit(mat.NewDense(3, 2, nil), mat.NewDense(2, 1, nil))
	var de *pkgerrors.DimensionError
	require.True(t, pkgerrors.As(err, &de))

	X, y := flights(10)
	require.NoError(t, reg.Fit(X, y))
	_, err = reg.PredictOne([]float64{1, 2})
	require.True(t, pkgerrors.As(err, &de))

	err = NewXGBRegressor().WithObjective("reg:gamma").Fit(X, y)
	var ve *pkgerrors.ValidationError
	require.True(t, pkgerrors.As(err, &ve))

	err = NewXGBRegressor().WithLearningRate(0).Fit(X, y)
	require.True(t, pkgerrors.As(err, &ve))
	assert.Equal(t, "learning_rate", ve.ParamName)
}

func TestXGBRegressor_SaveLoadRoundTrip(t *testing.T) {
	X, y := flights(40)
	reg := productionRegressor().WithFeatureNames("ASK", "ATK", "COMBUSTIVEL_LITROS")
	require.NoError(t, reg.Fit(X, y))

	path := filepath.Join(t.TempDir(), "xgboost_model.json")
	require.NoError(t, reg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, reg.FeatureNames, loaded.FeatureNames)
	assert.Equal(t, reg.Params, loaded.Params)

	inputs := [][]float64{{100, 50, 10}, {250, 70, 13}, {555, 80, 11}, {1e6, 0, 0}}
	for _, p := range inputs {
		want, err := reg.PredictOne(p)
		require.NoError(t, err)
		got, err := loaded.PredictOne(p)
		require.NoError(t, err)
		assert.InDelta(t, want, got, 1e-9)
	}
}

func TestXGBRegressor_EncodeDecode(t *testing.T) {
	X, y := flights(15)
	reg := productionRegressor().WithNEstimators(3)
	require.NoError(t, reg.Fit(X, y))

	var buf bytes.Buffer
	require.NoError(t, reg.Encode(&buf))
	decoded, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 3, decoded.NumTrees())

	_, err = Decode(bytes.NewBufferString(`{"trees":[]}`))
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "xgboost_model.json"))
	var nf *pkgerrors.NotFoundError
	require.True(t, pkgerrors.As(err, &nf))
}

func TestMarshalUnfitted(t *testing.T) {
	_, err := NewXGBRegressor().MarshalJSON()
	var nt *pkgerrors.ModelNotTrainedError
	require.True(t, pkgerrors.As(err, &nt))
}
