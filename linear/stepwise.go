package linear

import (
	"math"
	"slices"

	"github.com/YuminosukeSato/housecv/core/model"
	"github.com/YuminosukeSato/housecv/pkg/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const defaultAliasTol = 1e-9

// Direction is the search direction of a stepwise selection.
type Direction int

const (
	// Forward starts from the intercept-only model and adds columns.
	Forward Direction = iota
	// Backward starts from all columns and removes them.
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// Stepwise performs greedy subset selection on the design columns by the
// Bayesian information criterion
//
//	BIC = n·ln(RSS/n) + k·ln(n)
//
// where k counts the intercept and the selected columns, and then fits OLS
// on the selected subset.
//
// Forward search adds the column giving the lowest BIC while BIC strictly
// decreases and fewer than MaxVars columns are selected. Backward search
// starts from every linearly independent column; removals are forced while
// more than MaxVars columns remain and continue afterwards only while BIC
// strictly decreases.
type Stepwise struct {
	State *model.StateManager

	Direction Direction
	MaxVars   int
	AliasTol  float64

	Selected_  []int // 選択された列（昇順）
	Path_      []int // 追加（前進）または削除（後退）された列の順序
	BIC_       float64
	Coef_      []float64
	Intercept_ float64
}

// NewStepwise creates a stepwise selector capped at maxVars columns.
func NewStepwise(direction Direction, maxVars int, opts ...StepwiseOption) *Stepwise {
	s := &Stepwise{
		State:     model.NewStateManager(),
		Direction: direction,
		MaxVars:   maxVars,
		AliasTol:  defaultAliasTol,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BIC returns n·ln(RSS/n) + k·ln(n). A zero RSS is floored at the smallest
// positive float so that the criterion stays finite.
func BIC(n int, rss float64, k int) float64 {
	nf := float64(n)
	return nf*math.Log(math.Max(rss, math.SmallestNonzeroFloat64)/nf) + float64(k)*math.Log(nf)
}

// Fit selects the columns and fits OLS on them.
func (s *Stepwise) Fit(X, y mat.Matrix) error {
	if s.MaxVars < 1 {
		return errors.NewValidationError("max_vars", "must be at least 1", s.MaxVars)
	}
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("Stepwise.Fit", "empty data", errors.ErrEmptyData)
	}
	yv, err := targetVector("Stepwise.Fit", y, r)
	if err != nil {
		return err
	}

	cols, usable := unitColumns(X)
	yc := make([]float64, r)
	for i := range yc {
		yc[i] = yv.AtVec(i)
	}
	yMean := floats.Sum(yc) / float64(r)
	floats.AddConst(-yMean, yc)

	var path []int
	switch s.Direction {
	case Forward:
		path, s.BIC_ = s.forward(cols, usable, yc)
		s.Selected_ = append([]int(nil), path...)
	case Backward:
		var remaining []int
		remaining, path, s.BIC_, err = s.backward(cols, usable, yc)
		if err != nil {
			return err
		}
		s.Selected_ = remaining
	default:
		return errors.NewValidationError("direction", "unknown stepwise direction", int(s.Direction))
	}
	s.Path_ = path
	slices.Sort(s.Selected_)

	s.Coef_ = make([]float64, c)
	s.Intercept_ = yMean
	if len(s.Selected_) > 0 {
		sub := selectColumns(X, s.Selected_)
		ols := NewLinearRegression()
		if err := ols.Fit(sub, yv); err != nil {
			return errors.Wrap(err, "Stepwise.Fit: refit on selected columns")
		}
		for i, j := range s.Selected_ {
			s.Coef_[j] = ols.Coef_[i]
		}
		s.Intercept_ = ols.Intercept_
	}

	s.State.SetFitted(c, r)
	return nil
}

// forward runs forward selection with modified Gram-Schmidt updates: each
// candidate is kept orthogonal to the selected columns, so the RSS after
// adding column j is RSS − (q_jᵀr)²/(q_jᵀq_j).
func (s *Stepwise) forward(q [][]float64, usable []bool, resid []float64) ([]int, float64) {
	n := len(resid)
	candidate := append([]bool(nil), usable...)
	rss := floats.Dot(resid, resid)
	best := BIC(n, rss, 1)

	var selected []int
	for len(selected) < s.MaxVars {
		bestJ, bestRSS := -1, rss
		for j := range q {
			if !candidate[j] {
				continue
			}
			qq := floats.Dot(q[j], q[j])
			if qq <= s.AliasTol {
				candidate[j] = false
				continue
			}
			qr := floats.Dot(q[j], resid)
			if cand := rss - qr*qr/qq; bestJ < 0 || cand < bestRSS {
				bestJ, bestRSS = j, cand
			}
		}
		if bestJ < 0 {
			break
		}
		score := BIC(n, bestRSS, len(selected)+2)
		if !(score < best) {
			break
		}
		best = score

		u := q[bestJ]
		floats.Scale(1/floats.Norm(u, 2), u)
		floats.AddScaled(resid, -floats.Dot(u, resid), u)
		rss = floats.Dot(resid, resid)
		candidate[bestJ] = false
		for j := range q {
			if candidate[j] {
				floats.AddScaled(q[j], -floats.Dot(u, q[j]), u)
			}
		}
		selected = append(selected, bestJ)
	}
	return selected, best
}

// backward runs backward elimination on the inverse Gram matrix G of the
// linearly independent columns. Removing column j raises the RSS by
// β_j²/G_jj, and G and β are downdated in O(m²) per removal.
func (s *Stepwise) backward(cols [][]float64, usable []bool, y []float64) ([]int, []int, float64, error) {
	n := len(y)
	keep := independentColumns(cols, usable, s.AliasTol)
	m := len(keep)
	if m == 0 {
		return nil, nil, BIC(n, floats.Dot(y, y), 1), nil
	}

	Z := mat.NewDense(n, m, nil)
	for i, j := range keep {
		Z.SetCol(i, cols[j])
	}
	var gram mat.SymDense
	gram.SymOuterK(1, Z.T())

	var chol mat.Cholesky
	var G mat.Dense
	if ok := chol.Factorize(&gram); ok {
		var inv mat.SymDense
		if err := chol.InverseTo(&inv); err != nil {
			return nil, nil, 0, errors.NewModelError("Stepwise.Fit", "singular Gram matrix", errors.ErrSingularMatrix)
		}
		G.CloneFrom(&inv)
	} else if err := G.Inverse(&gram); err != nil {
		return nil, nil, 0, errors.NewModelError("Stepwise.Fit", "singular Gram matrix", errors.ErrSingularMatrix)
	}

	yv := mat.NewVecDense(n, y)
	var zy, beta mat.VecDense
	zy.MulVec(Z.T(), yv)
	beta.MulVec(&G, &zy)

	var fitted mat.VecDense
	fitted.MulVec(Z, &beta)
	var res mat.VecDense
	res.SubVec(yv, &fitted)
	rss := mat.Dot(&res, &res)

	active := make([]bool, m)
	for i := range active {
		active[i] = true
	}
	size := m
	cur := BIC(n, rss, size+1)

	var removed []int
	for size > 0 {
		pos, delta := -1, 0.0
		for i := 0; i < m; i++ {
			if !active[i] {
				continue
			}
			d := beta.AtVec(i) * beta.AtVec(i) / G.At(i, i)
			if pos < 0 || d < delta {
				pos, delta = i, d
			}
		}
		score := BIC(n, rss+delta, size)
		if size <= s.MaxVars && !(score < cur) {
			break
		}

		gjj := G.At(pos, pos)
		bj := beta.AtVec(pos)
		for i := 0; i < m; i++ {
			if !active[i] || i == pos {
				continue
			}
			gij := G.At(i, pos)
			beta.SetVec(i, beta.AtVec(i)-gij*bj/gjj)
			for k := 0; k < m; k++ {
				if active[k] && k != pos {
					G.Set(i, k, G.At(i, k)-gij*G.At(pos, k)/gjj)
				}
			}
		}
		active[pos] = false
		size--
		rss += delta
		cur = score
		removed = append(removed, keep[pos])
	}

	remaining := lo.Filter(keep, func(_ int, i int) bool { return active[i] })
	return remaining, removed, cur, nil
}

// GetParams returns the parameters of the model
func (s *Stepwise) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"direction": s.Direction.String(),
		"max_vars":  s.MaxVars,
	}
}

// Predict は選択された列の OLS で予測する
func (s *Stepwise) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := s.State.RequireFitted("Stepwise", "Predict"); err != nil {
		return nil, err
	}
	_, c := X.Dims()
	if err := s.State.RequireFeatures("Stepwise.Predict", c); err != nil {
		return nil, err
	}
	return affinePredict(X, s.Coef_, s.Intercept_), nil
}

// Score はモデルの決定係数（R²）を計算する
func (s *Stepwise) Score(X, y mat.Matrix) (float64, error) {
	return score(s, X, y)
}

// Coefficients returns one coefficient per column, zero for unselected ones.
func (s *Stepwise) Coefficients() []float64 { return s.Coef_ }

// InterceptValue は学習された切片を返す
func (s *Stepwise) InterceptValue() float64 { return s.Intercept_ }

// unitColumns returns the centred columns of X scaled to unit norm. Columns
// with zero variance are marked unusable.
func unitColumns(X mat.Matrix) ([][]float64, []bool) {
	r, c := X.Dims()
	cols := make([][]float64, c)
	usable := make([]bool, c)
	for j := 0; j < c; j++ {
		col := mat.Col(nil, j, X)
		floats.AddConst(-floats.Sum(col)/float64(r), col)
		if norm := floats.Norm(col, 2); norm > 0 {
			floats.Scale(1/norm, col)
			usable[j] = true
		}
		cols[j] = col
	}
	return cols, usable
}

// independentColumns keeps, in column order, each usable column whose
// residual after projection on the kept ones exceeds tol in squared norm.
func independentColumns(cols [][]float64, usable []bool, tol float64) []int {
	var keep []int
	var basis [][]float64
	for j, col := range cols {
		if !usable[j] {
			continue
		}
		v := append([]float64(nil), col...)
		for _, u := range basis {
			floats.AddScaled(v, -floats.Dot(u, v), u)
		}
		nn := floats.Dot(v, v)
		if nn <= tol {
			continue
		}
		floats.Scale(1/math.Sqrt(nn), v)
		basis = append(basis, v)
		keep = append(keep, j)
	}
	return keep
}

func selectColumns(X mat.Matrix, idx []int) *mat.Dense {
	r, _ := X.Dims()
	out := mat.NewDense(r, len(idx), nil)
	col := make([]float64, r)
	for i, j := range idx {
		mat.Col(col, j, X)
		out.SetCol(i, col)
	}
	return out
}

var (
	_ model.Regressor       = (*Stepwise)(nil)
	_ model.LinearModel     = (*Stepwise)(nil)
	_ model.ParameterGetter = (*Stepwise)(nil)
)
