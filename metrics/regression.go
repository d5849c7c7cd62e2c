// Package metrics は回帰モデルの品質指標を計算する。
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/paxcast/pkg/errors"
)

// MSE は平均二乗誤差（Mean Squared Error）を計算する。
// 空のベクトルに対しては InsufficientDataError を返す。
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	if err := checkPair("MSE", yTrue, yPred); err != nil {
		return 0, err
	}

	// MSE = (1/n) * Σ(yTrue - yPred)²
	var diff mat.VecDense
	diff.SubVec(yTrue, yPred)
	n := diff.Len()
	return mat.Dot(&diff, &diff) / float64(n), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	if err := checkPair("RMSE", yTrue, yPred); err != nil {
		return 0, err
	}
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	if err := checkPair("MAE", yTrue, yPred); err != nil {
		return 0, err
	}

	// MAE = (1/n) * Σ|yTrue - yPred|
	n := yTrue.Len()
	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}
	return sum / float64(n), nil
}

func checkPair(op string, yTrue, yPred *mat.VecDense) error {
	n := yTrue.Len()
	if n == 0 {
		return errors.NewInsufficientDataError(op, 0)
	}
	if yPred.Len() != n {
		return errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return nil
}

// Report は一度の評価で得られる指標の組。
type Report struct {
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
	N    int     `json:"n"`
}

// Evaluate は実測値と予測値のペアから RMSE と MAE をまとめて計算する。
// ml_metrics の再計算はこの関数を通る。
func Evaluate(yTrue, yPred []float64) (Report, error) {
	if len(yTrue) == 0 {
		return Report{}, errors.NewInsufficientDataError("RMSE/MAE", 0)
	}
	if len(yPred) != len(yTrue) {
		return Report{}, errors.NewDimensionError("Evaluate", len(yTrue), len(yPred), 0)
	}

	t := mat.NewVecDense(len(yTrue), append([]float64(nil), yTrue...))
	p := mat.NewVecDense(len(yPred), append([]float64(nil), yPred...))

	rmse, err := RMSE(t, p)
	if err != nil {
		return Report{}, err
	}
	mae, err := MAE(t, p)
	if err != nil {
		return Report{}, err
	}
	return Report{RMSE: rmse, MAE: mae, N: len(yTrue)}, nil
}
