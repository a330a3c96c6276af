package linear

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/housecv/core/model"
	"github.com/YuminosukeSato/housecv/pkg/errors"
	"github.com/YuminosukeSato/housecv/preprocessing"
	"gonum.org/v1/gonum/mat"
)

const (
	defaultMaxIter = 10000
	defaultTol     = 1e-7
)

// ElasticNet minimises
//
//	1/(2n)·‖y − b0 − Xβ‖² + λ·(α‖β‖₁ + (1−α)/2·‖β‖²)
//
// by cyclic coordinate descent. Columns are standardised internally and the
// penalty applies to the standardised coefficients; the intercept is not
// penalised. Alpha=0 is ridge regression and Alpha=1 is the LASSO.
type ElasticNet struct {
	State *model.StateManager

	Alpha   float64
	Lambda  float64
	MaxIter int
	Tol     float64

	Coef_      []float64
	Intercept_ float64
	NIter_     int
	Converged_ bool
}

// NewElasticNet creates an elastic net with mixing parameter alpha and
// penalty strength lambda.
func NewElasticNet(alpha, lambda float64, opts ...ElasticNetOption) *ElasticNet {
	en := &ElasticNet{
		State:   model.NewStateManager(),
		Alpha:   alpha,
		Lambda:  lambda,
		MaxIter: defaultMaxIter,
		Tol:     defaultTol,
	}
	for _, opt := range opts {
		opt(en)
	}
	return en
}

// NewRidge is NewElasticNet with alpha fixed at 0.
func NewRidge(lambda float64, opts ...ElasticNetOption) *ElasticNet {
	return NewElasticNet(0, lambda, opts...)
}

// NewLasso is NewElasticNet with alpha fixed at 1.
func NewLasso(lambda float64, opts ...ElasticNetOption) *ElasticNet {
	return NewElasticNet(1, lambda, opts...)
}

func (en *ElasticNet) validate() error {
	if en.Alpha < 0 || en.Alpha > 1 || math.IsNaN(en.Alpha) {
		return errors.NewValidationError("alpha", "must be in [0, 1]", en.Alpha)
	}
	if en.Lambda < 0 || math.IsNaN(en.Lambda) {
		return errors.NewValidationError("lambda", "must be non-negative", en.Lambda)
	}
	if en.MaxIter < 1 {
		return errors.NewValidationError("max_iter", "must be positive", en.MaxIter)
	}
	return nil
}

// Fit はモデルを訓練データで学習させる
func (en *ElasticNet) Fit(X, y mat.Matrix) error {
	if err := en.validate(); err != nil {
		return err
	}
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("ElasticNet.Fit", "empty data", errors.ErrEmptyData)
	}
	yv, err := targetVector("ElasticNet.Fit", y, r)
	if err != nil {
		return err
	}

	scaler := preprocessing.NewStandardScalerDefault()
	Z, err := scaler.FitTransform(X)
	if err != nil {
		return errors.Wrap(err, "ElasticNet.Fit")
	}
	yc := mat.VecDenseCopyOf(yv)
	yMean := centerVector(yc)

	n := float64(r)
	var gram mat.SymDense
	gram.SymOuterK(1/n, Z.T())

	var zy mat.VecDense
	zy.MulVec(Z.T(), yc)
	zy.ScaleVec(1/n, &zy)

	// grad[j] = (1/n)·z_jᵀ(y − Zβ)
	grad := make([]float64, c)
	for j := range grad {
		grad[j] = zy.AtVec(j)
	}
	beta := make([]float64, c)

	l1 := en.Lambda * en.Alpha
	l2 := en.Lambda * (1 - en.Alpha)
	thresh := en.Tol * mat.Dot(yc, yc) / n

	en.Converged_ = false
	for iter := 1; iter <= en.MaxIter; iter++ {
		en.NIter_ = iter
		maxDelta := 0.0
		for j := 0; j < c; j++ {
			if scaler.Constant[j] {
				continue
			}
			gjj := gram.At(j, j)
			old := beta[j]
			nb := SoftThreshold(grad[j]+gjj*old, l1) / (gjj + l2)
			if nb == old {
				continue
			}
			d := nb - old
			beta[j] = nb
			for k := 0; k < c; k++ {
				grad[k] -= gram.At(k, j) * d
			}
			if dd := d * d * gjj; dd > maxDelta {
				maxDelta = dd
			}
		}
		if err := errors.CheckNumericalStability("ElasticNet.Fit", beta, iter); err != nil {
			return err
		}
		if maxDelta <= thresh {
			en.Converged_ = true
			break
		}
	}
	if !en.Converged_ {
		errors.Warn(errors.NewConvergenceWarning("ElasticNet", en.MaxIter,
			fmt.Sprintf("alpha=%g lambda=%g; consider a larger lambda or more iterations", en.Alpha, en.Lambda)))
	}

	en.Coef_, en.Intercept_ = scaler.Unscale(beta, yMean)
	en.State.SetFitted(c, r)
	return nil
}

// Predict は入力データに対する予測を行う
func (en *ElasticNet) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := en.State.RequireFitted("ElasticNet", "Predict"); err != nil {
		return nil, err
	}
	_, c := X.Dims()
	if err := en.State.RequireFeatures("ElasticNet.Predict", c); err != nil {
		return nil, err
	}
	return affinePredict(X, en.Coef_, en.Intercept_), nil
}

// Score はモデルの決定係数（R²）を計算する
func (en *ElasticNet) Score(X, y mat.Matrix) (float64, error) {
	return score(en, X, y)
}

// Coefficients は元のスケールの係数を返す
func (en *ElasticNet) Coefficients() []float64 { return en.Coef_ }

// InterceptValue は学習された切片を返す
func (en *ElasticNet) InterceptValue() float64 { return en.Intercept_ }

// NonZero returns the number of non-zero coefficients.
func (en *ElasticNet) NonZero() int {
	nz := 0
	for _, b := range en.Coef_ {
		if b != 0 {
			nz++
		}
	}
	return nz
}

// GetParams returns the parameters of the model
func (en *ElasticNet) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"alpha":    en.Alpha,
		"lambda":   en.Lambda,
		"max_iter": en.MaxIter,
		"tol":      en.Tol,
	}
}

// SoftThreshold returns sign(z)·max(|z|−gamma, 0).
func SoftThreshold(z, gamma float64) float64 {
	switch {
	case z > gamma:
		return z - gamma
	case z < -gamma:
		return z + gamma
	default:
		return 0
	}
}

var (
	_ model.Regressor       = (*ElasticNet)(nil)
	_ model.LinearModel     = (*ElasticNet)(nil)
	_ model.ParameterGetter = (*ElasticNet)(nil)
)
