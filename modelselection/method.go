package modelselection

import (
	"fmt"
	"strings"

	"github.com/YuminosukeSato/housecv/core/model"
	"github.com/YuminosukeSato/housecv/dataset"
	"github.com/YuminosukeSato/housecv/linear"
	"github.com/YuminosukeSato/housecv/pkg/errors"
	"github.com/YuminosukeSato/housecv/tree"
	"github.com/samber/lo"
)

// ParamSet marks which fields of Params a method tunes.
type ParamSet uint8

const (
	ParamMaxVars ParamSet = 1 << iota
	ParamAlpha
	ParamLambda
	ParamCP
)

// Params is one hyperparameter tuple of a grid.
type Params struct {
	Tuned   ParamSet
	MaxVars int
	Alpha   float64
	Lambda  float64
	CP      float64
}

// String renders the tuned fields, e.g. "alpha=0.5, lambda=0.001".
// A tuple of an untuned method renders as "none".
func (p Params) String() string {
	var parts []string
	if p.Tuned&ParamMaxVars != 0 {
		parts = append(parts, fmt.Sprintf("nvmax=%d", p.MaxVars))
	}
	if p.Tuned&ParamAlpha != 0 {
		parts = append(parts, fmt.Sprintf("alpha=%g", p.Alpha))
	}
	if p.Tuned&ParamLambda != 0 {
		parts = append(parts, fmt.Sprintf("lambda=%g", p.Lambda))
	}
	if p.Tuned&ParamCP != 0 {
		parts = append(parts, fmt.Sprintf("cp=%g", p.CP))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

// Method is one of the eight regression variants compared by a run:
// FullOLS, ManualOLS, ForwardStepwise, BackwardStepwise, Ridge, Lasso,
// ElasticNet and DecisionTree. The set is closed.
type Method interface {
	// Name is the stable identifier used in tables and logs.
	Name() string
	// Grid returns the hyperparameter tuples in evaluation order.
	Grid() []Params
	// NewEstimator returns an unfitted estimator for one tuple.
	NewEstimator(p Params) model.Estimator

	formula(base dataset.Formula) dataset.Formula
	validate() error
}

type allFeatures struct{}

func (allFeatures) formula(base dataset.Formula) dataset.Formula { return base }

// FullOLS is ordinary least squares on every explanatory column.
type FullOLS struct{ allFeatures }

func (FullOLS) Name() string    { return "full_ols" }
func (FullOLS) Grid() []Params  { return []Params{{}} }
func (FullOLS) validate() error { return nil }

func (FullOLS) NewEstimator(Params) model.Estimator {
	return linear.NewLinearRegression()
}

// ManualOLS is ordinary least squares on a fixed list of columns.
type ManualOLS struct {
	Features []string
}

func (ManualOLS) Name() string   { return "manual_ols" }
func (ManualOLS) Grid() []Params { return []Params{{}} }

func (m ManualOLS) validate() error {
	if len(m.Features) == 0 {
		return errors.NewValidationError("manual_ols.features", "must not be empty", m.Features)
	}
	return nil
}

func (m ManualOLS) formula(base dataset.Formula) dataset.Formula {
	return dataset.Formula{Target: base.Target, Features: m.Features}
}

func (ManualOLS) NewEstimator(Params) model.Estimator {
	return linear.NewLinearRegression()
}

// ForwardStepwise selects columns forward by BIC, capped at each MaxVars.
type ForwardStepwise struct {
	allFeatures
	MaxVars []int
}

func (ForwardStepwise) Name() string { return "forward_stepwise" }

func (m ForwardStepwise) Grid() []Params { return maxVarsGrid(m.MaxVars) }

func (m ForwardStepwise) validate() error { return validateMaxVars(m.Name(), m.MaxVars) }

func (ForwardStepwise) NewEstimator(p Params) model.Estimator {
	return linear.NewStepwise(linear.Forward, p.MaxVars)
}

// BackwardStepwise eliminates columns backward by BIC, capped at each MaxVars.
type BackwardStepwise struct {
	allFeatures
	MaxVars []int
}

func (BackwardStepwise) Name() string { return "backward_stepwise" }

func (m BackwardStepwise) Grid() []Params { return maxVarsGrid(m.MaxVars) }

func (m BackwardStepwise) validate() error { return validateMaxVars(m.Name(), m.MaxVars) }

func (BackwardStepwise) NewEstimator(p Params) model.Estimator {
	return linear.NewStepwise(linear.Backward, p.MaxVars)
}

// Ridge is the elastic net with mixing parameter 0.
type Ridge struct {
	allFeatures
	Lambdas []float64
}

func (Ridge) Name() string { return "ridge" }

func (m Ridge) Grid() []Params {
	return lo.Map(m.Lambdas, func(l float64, _ int) Params {
		return Params{Tuned: ParamLambda, Alpha: 0, Lambda: l}
	})
}

func (m Ridge) validate() error { return validateLambdas(m.Name(), m.Lambdas) }

func (Ridge) NewEstimator(p Params) model.Estimator {
	return linear.NewRidge(p.Lambda)
}

// Lasso is the elastic net with mixing parameter 1.
type Lasso struct {
	allFeatures
	Lambdas []float64
}

func (Lasso) Name() string { return "lasso" }

func (m Lasso) Grid() []Params {
	return lo.Map(m.Lambdas, func(l float64, _ int) Params {
		return Params{Tuned: ParamLambda, Alpha: 1, Lambda: l}
	})
}

func (m Lasso) validate() error { return validateLambdas(m.Name(), m.Lambdas) }

func (Lasso) NewEstimator(p Params) model.Estimator {
	return linear.NewLasso(p.Lambda)
}

// ElasticNet tunes the mixing parameter and the penalty jointly. The grid
// is ordered by alpha, then lambda.
type ElasticNet struct {
	allFeatures
	Alphas  []float64
	Lambdas []float64
}

func (ElasticNet) Name() string { return "elastic_net" }

func (m ElasticNet) Grid() []Params {
	grid := make([]Params, 0, len(m.Alphas)*len(m.Lambdas))
	for _, a := range m.Alphas {
		for _, l := range m.Lambdas {
			grid = append(grid, Params{Tuned: ParamAlpha | ParamLambda, Alpha: a, Lambda: l})
		}
	}
	return grid
}

func (m ElasticNet) validate() error {
	for _, a := range m.Alphas {
		if a < 0 || a > 1 {
			return errors.NewValidationError("elastic_net.alphas", "must be in [0, 1]", a)
		}
	}
	return validateLambdas(m.Name(), m.Lambdas)
}

func (ElasticNet) NewEstimator(p Params) model.Estimator {
	return linear.NewElasticNet(p.Alpha, p.Lambda)
}

// DecisionTree is a CART regression tree pruned by each complexity parameter.
type DecisionTree struct {
	allFeatures
	CPs []float64
}

func (DecisionTree) Name() string { return "decision_tree" }

func (m DecisionTree) Grid() []Params {
	return lo.Map(m.CPs, func(cp float64, _ int) Params {
		return Params{Tuned: ParamCP, CP: cp}
	})
}

func (m DecisionTree) validate() error {
	for _, cp := range m.CPs {
		if cp < 0 {
			return errors.NewValidationError("decision_tree.cps", "must be non-negative", cp)
		}
	}
	return nil
}

func (DecisionTree) NewEstimator(p Params) model.Estimator {
	return tree.NewDecisionTreeRegressor(tree.WithCP(p.CP))
}

func maxVarsGrid(maxVars []int) []Params {
	return lo.Map(maxVars, func(n int, _ int) Params {
		return Params{Tuned: ParamMaxVars, MaxVars: n}
	})
}

func validateMaxVars(name string, maxVars []int) error {
	for _, n := range maxVars {
		if n < 1 {
			return errors.NewValidationError(name+".max_vars", "must be at least 1", n)
		}
	}
	return nil
}

func validateLambdas(name string, lambdas []float64) error {
	for _, l := range lambdas {
		if l < 0 {
			return errors.NewValidationError(name+".lambdas", "must be non-negative", l)
		}
	}
	return nil
}

var (
	_ Method = FullOLS{}
	_ Method = ManualOLS{}
	_ Method = ForwardStepwise{}
	_ Method = BackwardStepwise{}
	_ Method = Ridge{}
	_ Method = Lasso{}
	_ Method = ElasticNet{}
	_ Method = DecisionTree{}
)
