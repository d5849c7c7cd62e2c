package xgboost

import (
	pkgerrors "github.com/YuminosukeSato/paxcast/pkg/errors"
)

// ObjectiveSquaredError is XGBoost's name for the L2 regression loss.
const ObjectiveSquaredError = "reg:squarederror"

// Objective supplies first and second order gradients of a loss.
type Objective interface {
	Name() string
	// Gradient returns dL/dpred and d²L/dpred² for one sample.
	Gradient(pred, label float64) (grad, hess float64)
	// InitScore returns the constant prediction the ensemble starts from.
	InitScore(labels []float64) float64
	// Loss is the mean training loss, used for progress logging.
	Loss(preds, labels []float64) float64
}

// NewObjective returns the objective registered under name.
func NewObjective(name string) (Objective, error) {
	switch name {
	case "", ObjectiveSquaredError:
		return squaredError{}, nil
	default:
		return nil, pkgerrors.NewValidationError("objective", "unsupported objective", name)
	}
}

type squaredError struct{}

func (squaredError) Name() string { return ObjectiveSquaredError }

func (squaredError) Gradient(pred, label float64) (float64, float64) {
	return pred - label, 1
}

func (squaredError) InitScore(labels []float64) float64 {
	if len(labels) == 0 {
		return 0.5
	}
	var sum float64
	for _, y := range labels {
		sum += y
	}
	return sum / float64(len(labels))
}

func (squaredError) Loss(preds, labels []float64) float64 {
	if len(labels) == 0 {
		return 0
	}
	var sum float64
	for i, y := range labels {
		d := preds[i] - y
		sum += d * d
	}
	return sum / float64(len(labels))
}
