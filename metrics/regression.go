// Package metrics implements the regression error measures used during
// cross-validation and in-sample scoring.
package metrics

import (
	"math"

	"github.com/YuminosukeSato/housecv/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrZeroVariance は yTrue の分散が 0 で R² が定義できない場合に返されます。
var ErrZeroVariance = errors.New("total sum of squares is zero (no variance in yTrue)")

func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue.IsEmpty() {
		return 0, errors.NewValueError(op, "empty vector")
	}
	n := yTrue.Len()
	if yPred.IsEmpty() || yPred.Len() != n {
		got := 0
		if !yPred.IsEmpty() {
			got = yPred.Len()
		}
		return 0, errors.NewDimensionError(op, n, got, 0)
	}
	return n, nil
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += diff * diff
	}
	return sum / float64(n), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// RMSLE は対数変換済みの目的変数に対する誤差 sqrt(mean((|pred| − actual)²)) を計算する。
// 目的変数がすでに対数スケールなので RMSE と等しく、予測値にだけ絶対値を適用して
// 真値がほぼ 0 のときに負の予測が入る退化ケースを防ぐ。
func RMSLE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("RMSLE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		diff := math.Abs(yPred.AtVec(i)) - yTrue.AtVec(i)
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(n)), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}
	return sum / float64(n), nil
}

// R2Score は決定係数（R²）を計算する。yTrue が定数の場合は ErrZeroVariance を返す
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	yMean := mat.Sum(yTrue) / float64(n)

	var tss, rss float64
	for i := 0; i < n; i++ {
		d := yTrue.AtVec(i) - yMean
		r := yTrue.AtVec(i) - yPred.AtVec(i)
		tss += d * d
		rss += r * r
	}
	if tss == 0 {
		return 0, errors.Wrap(ErrZeroVariance, "R2Score")
	}
	return 1 - rss/tss, nil
}

// Residuals は予測値 − 実測値を返す
func Residuals(yTrue, yPred *mat.VecDense) ([]float64, error) {
	n, err := checkPair("Residuals", yTrue, yPred)
	if err != nil {
		return nil, err
	}
	res := make([]float64, n)
	for i := range res {
		res[i] = yPred.AtVec(i) - yTrue.AtVec(i)
	}
	return res, nil
}

// ColumnVector converts an n×1 matrix to a vector, sharing storage when m
// is already a *mat.VecDense.
func ColumnVector(op string, m mat.Matrix) (*mat.VecDense, error) {
	if v, ok := m.(*mat.VecDense); ok {
		return v, nil
	}
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewValueError(op, "empty matrix")
	}
	if c != 1 {
		return nil, errors.NewValueError(op, "must be a column vector (n×1 matrix)")
	}
	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v, nil
}
