// Package linear provides the linear regressors compared by the workflow:
// ordinary least squares, elastic net (with ridge and LASSO as special cases)
// and BIC-driven stepwise subset selection.
package linear

import (
	"github.com/YuminosukeSato/housecv/core/model"
	"github.com/YuminosukeSato/housecv/core/parallel"
	"github.com/YuminosukeSato/housecv/metrics"
	"github.com/YuminosukeSato/housecv/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const defaultRankTol = 1e-10

// LinearRegression は最小二乗法による線形回帰モデル。
// 特異値分解で解くため、ランク落ちした計画行列に対しては最小ノルム解を返す。
type LinearRegression struct {
	State *model.StateManager

	Coef_      []float64 // 係数
	Intercept_ float64   // 切片
	Rank_      int       // 中心化した計画行列のランク
	Singular_  []float64 // 特異値

	FitIntercept bool
	RankTol      float64
}

// NewLinearRegression は新しい線形回帰モデルを作成する
func NewLinearRegression(opts ...Option) *LinearRegression {
	lr := &LinearRegression{
		State:        model.NewStateManager(),
		FitIntercept: true,
		RankTol:      defaultRankTol,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// Fit はモデルを訓練データで学習させる
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("LinearRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	yv, err := targetVector("LinearRegression.Fit", y, r)
	if err != nil {
		return err
	}

	Xw := mat.DenseCopyOf(X)
	yw := mat.VecDenseCopyOf(yv)

	var xMean []float64
	var yMean float64
	if lr.FitIntercept {
		xMean = centerColumns(Xw)
		yMean = centerVector(yw)
	}

	coef, rank, sv, err := leastSquares("LinearRegression.Fit", Xw, yw, lr.RankTol)
	if err != nil {
		return err
	}

	lr.Coef_ = coef
	lr.Rank_ = rank
	lr.Singular_ = sv
	lr.Intercept_ = 0
	if lr.FitIntercept {
		lr.Intercept_ = yMean - floats.Dot(coef, xMean)
	}
	if err := errors.CheckNumericalStability("LinearRegression.Fit", coef, 0); err != nil {
		return err
	}

	lr.State.SetFitted(c, r)
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.State.RequireFitted("LinearRegression", "Predict"); err != nil {
		return nil, err
	}
	_, c := X.Dims()
	if err := lr.State.RequireFeatures("LinearRegression.Predict", c); err != nil {
		return nil, err
	}
	return affinePredict(X, lr.Coef_, lr.Intercept_), nil
}

// Score はモデルの決定係数（R²）を計算する
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	return score(lr, X, y)
}

// Coefficients は学習された係数を返す
func (lr *LinearRegression) Coefficients() []float64 { return lr.Coef_ }

// InterceptValue は学習された切片を返す
func (lr *LinearRegression) InterceptValue() float64 { return lr.Intercept_ }

// GetParams returns the parameters of the model
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": lr.FitIntercept,
		"rank_tol":      lr.RankTol,
	}
}

// leastSquares solves min ‖Xβ − y‖ by thin SVD, truncating singular values
// below rcond·s_max. Truncation yields the minimum-norm solution.
func leastSquares(op string, X *mat.Dense, y *mat.VecDense, rcond float64) ([]float64, int, []float64, error) {
	_, c := X.Dims()

	var svd mat.SVD
	if ok := svd.Factorize(X, mat.SVDThin); !ok {
		return nil, 0, nil, errors.NewModelError(op, "SVD factorization failed", errors.ErrSingularMatrix)
	}
	sv := svd.Values(nil)
	coef := make([]float64, c)

	rank := svd.Rank(rcond)
	if rank == 0 {
		return coef, 0, sv, nil
	}

	var b mat.VecDense
	svd.SolveVecTo(&b, y, rank)
	for j := range coef {
		coef[j] = b.AtVec(j)
	}
	return coef, rank, sv, nil
}

// affinePredict returns X·coef + intercept as an n×1 column vector.
func affinePredict(X mat.Matrix, coef []float64, intercept float64) *mat.VecDense {
	r, c := X.Dims()
	out := mat.NewVecDense(r, nil)

	// 並列処理の閾値（この値以下の行数では逐次処理を使用）
	const parallelThreshold = 1000
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			pred := intercept
			for j := 0; j < c; j++ {
				if coef[j] != 0 {
					pred += X.At(i, j) * coef[j]
				}
			}
			out.SetVec(i, pred)
		}
	})
	return out
}

func score(p model.Predictor, X, y mat.Matrix) (float64, error) {
	r, _ := X.Dims()
	yv, err := targetVector("Score", y, r)
	if err != nil {
		return 0, err
	}
	pred, err := p.Predict(X)
	if err != nil {
		return 0, err
	}
	pv, err := metrics.ColumnVector("Score", pred)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(yv, pv)
}

func targetVector(op string, y mat.Matrix, n int) (*mat.VecDense, error) {
	yv, err := metrics.ColumnVector(op, y)
	if err != nil {
		return nil, err
	}
	if yv.Len() != n {
		return nil, errors.NewDimensionError(op, n, yv.Len(), 0)
	}
	return yv, nil
}

// centerColumns subtracts each column mean in place and returns the means.
func centerColumns(X *mat.Dense) []float64 {
	r, c := X.Dims()
	means := make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		means[j] = floats.Sum(col) / float64(r)
		floats.AddConst(-means[j], col)
		X.SetCol(j, col)
	}
	return means
}

// centerVector subtracts the mean of v in place and returns it.
func centerVector(v *mat.VecDense) float64 {
	n := v.Len()
	mean := mat.Sum(v) / float64(n)
	for i := 0; i < n; i++ {
		v.SetVec(i, v.AtVec(i)-mean)
	}
	return mean
}

var (
	_ model.Regressor       = (*LinearRegression)(nil)
	_ model.LinearModel     = (*LinearRegression)(nil)
	_ model.ParameterGetter = (*LinearRegression)(nil)
)
