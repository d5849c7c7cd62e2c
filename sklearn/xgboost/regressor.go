package xgboost

import (
	"encoding/json"
	"io"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/paxcast/core/model"
	"github.com/YuminosukeSato/paxcast/core/parallel"
	pkgerrors "github.com/YuminosukeSato/paxcast/pkg/errors"
	"github.com/YuminosukeSato/paxcast/pkg/log"
)

// ModelKind identifies the regressor in logs and errors.
const ModelKind = "xgboost"

var _ model.Regressor = (*XGBRegressor)(nil)

// XGBRegressor implements a gradient-boosted tree regressor with a
// scikit-learn style API.
type XGBRegressor struct {
	model.BaseEstimator

	Params       Params
	FeatureNames []string

	booster *Booster
}

// NewXGBRegressor creates a regressor with XGBoost's default parameters.
func NewXGBRegressor() *XGBRegressor {
	return &XGBRegressor{Params: DefaultParams()}
}

// WithMaxDepth sets the maximum tree depth
func (r *XGBRegressor) WithMaxDepth(d int) *XGBRegressor {
	r.Params.MaxDepth = d
	return r
}

// WithNEstimators sets the number of boosting rounds
func (r *XGBRegressor) WithNEstimators(n int) *XGBRegressor {
	r.Params.NEstimators = n
	return r
}

// WithLearningRate sets the shrinkage applied to each tree
func (r *XGBRegressor) WithLearningRate(lr float64) *XGBRegressor {
	r.Params.LearningRate = lr
	return r
}

// WithRegAlpha sets the L1 regularization weight
func (r *XGBRegressor) WithRegAlpha(alpha float64) *XGBRegressor {
	r.Params.RegAlpha = alpha
	return r
}

// WithRegLambda sets the L2 regularization weight
func (r *XGBRegressor) WithRegLambda(lambda float64) *XGBRegressor {
	r.Params.RegLambda = lambda
	return r
}

// WithObjective sets the learning objective
func (r *XGBRegressor) WithObjective(obj string) *XGBRegressor {
	r.Params.Objective = obj
	return r
}

// WithFeatureNames records the column names of X, stored with the model.
func (r *XGBRegressor) WithFeatureNames(names ...string) *XGBRegressor {
	r.FeatureNames = append([]string(nil), names...)
	return r
}

// Fit trains the regressor on X (n×d) and y (n×1).
func (r *XGBRegressor) Fit(X, y mat.Matrix) (err error) {
	defer pkgerrors.Recover(&err, "XGBRegressor.Fit")

	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows != yRows {
		return pkgerrors.NewDimensionError("Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return pkgerrors.NewDimensionError("Fit", 1, yCols, 1)
	}
	if len(r.FeatureNames) > 0 && len(r.FeatureNames) != cols {
		return pkgerrors.NewDimensionError("Fit", len(r.FeatureNames), cols, 1)
	}

	logger := log.GetLoggerWithName("xgboost.regressor")
	logger.Debug("fitting regressor",
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		"max_depth", r.Params.MaxDepth,
		"n_estimators", r.Params.NEstimators)

	trainer := NewTrainer(r.Params)
	if err := trainer.Fit(X, y); err != nil {
		return pkgerrors.Wrap(err, "training failed")
	}

	booster := trainer.Booster()
	booster.FeatureNames = r.FeatureNames
	r.booster = booster
	r.SetFitted(rows, cols)
	return nil
}

// Predict returns an n×1 matrix of predictions.
func (r *XGBRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !r.IsFitted() {
		return nil, pkgerrors.NewModelNotTrainedError(ModelKind)
	}
	rows, cols := X.Dims()
	if cols != r.booster.NumFeatures {
		return nil, pkgerrors.NewDimensionError("Predict", r.booster.NumFeatures, cols, 1)
	}

	out := mat.NewDense(rows, 1, nil)
	parallel.Rows(rows, parallel.DefaultThreshold, func(start, end int) {
		row := make([]float64, cols)
		for i := start; i < end; i++ {
			mat.Row(row, i, X)
			out.Set(i, 0, r.booster.PredictRow(row))
		}
	})
	return out, nil
}

// PredictOne predicts a single sample given its features in training order.
func (r *XGBRegressor) PredictOne(features []float64) (float64, error) {
	if !r.IsFitted() {
		return 0, pkgerrors.NewModelNotTrainedError(ModelKind)
	}
	if len(features) != r.booster.NumFeatures {
		return 0, pkgerrors.NewDimensionError("PredictOne", r.booster.NumFeatures, len(features), 1)
	}
	return r.booster.PredictRow(features), nil
}

// NumTrees returns the number of trees in the fitted ensemble.
func (r *XGBRegressor) NumTrees() int {
	if r.booster == nil {
		return 0
	}
	return len(r.booster.Trees)
}

// MarshalJSON encodes the fitted booster.
func (r *XGBRegressor) MarshalJSON() ([]byte, error) {
	if !r.IsFitted() {
		return nil, pkgerrors.NewModelNotTrainedError(ModelKind)
	}
	return json.Marshal(r.booster)
}

// UnmarshalJSON restores a booster written by MarshalJSON.
func (r *XGBRegressor) UnmarshalJSON(data []byte) error {
	var b Booster
	if err := json.Unmarshal(data, &b); err != nil {
		return pkgerrors.Wrap(err, "failed to decode xgboost model")
	}
	if b.NumFeatures <= 0 {
		return pkgerrors.NewValidationError("num_features", "must be positive", b.NumFeatures)
	}
	r.booster = &b
	r.Params = b.Params
	r.FeatureNames = b.FeatureNames
	r.SetFitted(0, b.NumFeatures)
	return nil
}

// Save writes the model as JSON to path, replacing any previous file atomically.
func (r *XGBRegressor) Save(path string) error {
	return model.SaveJSON(path, r)
}

// Load reads a model written by Save.
func Load(path string) (*XGBRegressor, error) {
	r := &XGBRegressor{}
	if err := model.LoadJSON(path, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Encode writes the model as JSON to w.
func (r *XGBRegressor) Encode(w io.Writer) error {
	return model.WriteJSON(w, r)
}

// Decode reads a model written by Encode.
func Decode(rd io.Reader) (*XGBRegressor, error) {
	r := &XGBRegressor{}
	if err := model.ReadJSON(rd, r); err != nil {
		return nil, err
	}
	return r, nil
}
