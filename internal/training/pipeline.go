// Package training fits the baseline and the gradient-boosted regressor from
// a dataset frame.
package training

import (
	"github.com/YuminosukeSato/paxcast/dataset"
	pkgerrors "github.com/YuminosukeSato/paxcast/pkg/errors"
	"github.com/YuminosukeSato/paxcast/pkg/log"
	"github.com/YuminosukeSato/paxcast/preprocessing"
	"github.com/YuminosukeSato/paxcast/sklearn/xgboost"
)

// Column names of the training dataset.
const (
	ColumnASK        = "ASK"
	ColumnATK        = "ATK"
	ColumnFuel       = "COMBUSTIVEL_LITROS"
	ColumnPassengers = "PASSAGEIROS_PAGOS"
)

// Features lists the regressor inputs in the order the model expects them.
var Features = []string{ColumnASK, ColumnATK, ColumnFuel}

// Target is the predicted column.
const Target = ColumnPassengers

// Hyperparameters of the production regressor.
const (
	MaxDepth     = 5
	NEstimators  = 100
	LearningRate = 0.1
	RegAlpha     = 0.5
)

// NewRegressor returns an unfitted regressor with the production hyperparameters.
func NewRegressor() *xgboost.XGBRegressor {
	return xgboost.NewXGBRegressor().
		WithMaxDepth(MaxDepth).
		WithNEstimators(NEstimators).
		WithLearningRate(LearningRate).
		WithRegAlpha(RegAlpha).
		WithObjective(xgboost.ObjectiveSquaredError).
		WithFeatureNames(Features...)
}

// TrainBaseline returns the mean of the numeric, non-missing target values.
func TrainBaseline(frame *dataset.Frame) (float64, int, error) {
	values, err := preprocessing.NumericColumn(frame, Target)
	if err != nil {
		return 0, 0, err
	}
	if len(values) == 0 {
		return 0, 0, pkgerrors.NewEmptyDatasetError(Target, frame.Len())
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), len(values), nil
}

// TrainRegressor fits the regressor on rows that are complete in the three
// features and the target.
func TrainRegressor(frame *dataset.Frame) (*xgboost.XGBRegressor, int, error) {
	columns := append(append([]string(nil), Features...), Target)
	data, n, err := preprocessing.CompleteCases(frame, columns...)
	if err != nil {
		return nil, 0, err
	}
	if n == 0 {
		return nil, 0, pkgerrors.NewEmptyDatasetError(Target, frame.Len())
	}

	nf := len(Features)
	X := data.Slice(0, n, 0, nf)
	y := data.Slice(0, n, nf, nf+1)

	reg := NewRegressor()
	if err := reg.Fit(X, y); err != nil {
		return nil, 0, err
	}
	return reg, n, nil
}

// Result is the output of a full training run.
type Result struct {
	Baseline        float64
	BaselineSamples int
	Regressor       *xgboost.XGBRegressor
	Samples         int
}

// Run trains both models. Nothing is persisted here.
func Run(frame *dataset.Frame) (res Result, err error) {
	defer pkgerrors.Recover(&err, "training.Run")

	logger := log.GetLoggerWithName("training")
	if frame == nil {
		return Result{}, pkgerrors.NewEmptyDatasetError(Target, 0)
	}

	res.Baseline, res.BaselineSamples, err = TrainBaseline(frame)
	if err != nil {
		return Result{}, err
	}
	logger.Info("baseline trained",
		log.ModelKindKey, "baseline",
		log.BaselineValueKey, res.Baseline,
		log.SamplesKey, res.BaselineSamples)

	res.Regressor, res.Samples, err = TrainRegressor(frame)
	if err != nil {
		return Result{}, err
	}
	logger.Info("regressor trained",
		log.ModelKindKey, xgboost.ModelKind,
		log.SamplesKey, res.Samples,
		log.FeaturesKey, len(Features))
	return res, nil
}
