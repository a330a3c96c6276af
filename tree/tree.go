// Package tree implements a CART regression tree with cost-complexity
// pruning controlled by a complexity parameter.
package tree

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/YuminosukeSato/housecv/core/model"
	"github.com/YuminosukeSato/housecv/metrics"
	"github.com/YuminosukeSato/housecv/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const (
	defaultMinSamplesSplit = 20
	defaultMinSamplesLeaf  = 7
	defaultMaxDepth        = 30
	defaultCP              = 0.01
)

// Node is one node of a fitted tree. Leaves have Feature == -1.
type Node struct {
	Feature     int
	Threshold   float64
	Left        int
	Right       int
	Value       float64 // 平均値
	NSamples    int
	SSE         float64 // ノード内の二乗誤差和
	Improvement float64 // 分割による二乗誤差の減少量
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return n.Feature < 0 }

// DecisionTreeRegressor grows a binary tree by greedy squared-error
// reducing splits and prunes it by cost complexity with
// α = CP · (root squared error).
//
// Defaults are MinSamplesSplit=20, MinSamplesLeaf=7, MaxDepth=30 and
// CP=0.01. CP >= 1 always yields a single leaf predicting the training mean.
type DecisionTreeRegressor struct {
	State *model.StateManager

	CP              float64
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxDepth        int

	Nodes_              []Node
	FeatureImportances_ []float64
}

// NewDecisionTreeRegressor creates a regression tree.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	dt := &DecisionTreeRegressor{
		State:           model.NewStateManager(),
		CP:              defaultCP,
		MinSamplesSplit: defaultMinSamplesSplit,
		MinSamplesLeaf:  defaultMinSamplesLeaf,
		MaxDepth:        defaultMaxDepth,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

func (dt *DecisionTreeRegressor) validate() error {
	switch {
	case dt.CP < 0:
		return errors.NewValidationError("cp", "must be non-negative", dt.CP)
	case dt.MinSamplesSplit < 2:
		return errors.NewValidationError("min_samples_split", "must be at least 2", dt.MinSamplesSplit)
	case dt.MinSamplesLeaf < 1:
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", dt.MinSamplesLeaf)
	case dt.MaxDepth < 0:
		return errors.NewValidationError("max_depth", "must be non-negative", dt.MaxDepth)
	}
	return nil
}

// grower holds the training data while the tree is grown.
type grower struct {
	dt    *DecisionTreeRegressor
	cols  [][]float64
	y     []float64
	alpha float64
	nodes []Node
}

// Fit grows and prunes the tree.
func (dt *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	if err := dt.validate(); err != nil {
		return err
	}
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("DecisionTreeRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	yv, err := metrics.ColumnVector("DecisionTreeRegressor.Fit", y)
	if err != nil {
		return err
	}
	if yv.Len() != r {
		return errors.NewDimensionError("DecisionTreeRegressor.Fit", r, yv.Len(), 0)
	}

	g := &grower{dt: dt, cols: make([][]float64, c), y: make([]float64, r)}
	for j := 0; j < c; j++ {
		g.cols[j] = mat.Col(nil, j, X)
	}
	for i := range g.y {
		g.y[i] = yv.AtVec(i)
	}

	idx := make([]int, r)
	for i := range idx {
		idx[i] = i
	}
	_, rootSSE := meanSSE(g.y, idx)
	g.alpha = dt.CP * rootSSE

	g.grow(idx, 0)
	g.prune()

	dt.Nodes_ = compact(g.nodes)
	dt.FeatureImportances_ = importances(dt.Nodes_, c)
	dt.State.SetFitted(c, r)
	return nil
}

// grow appends the subtree for idx and returns its node index.
func (g *grower) grow(idx []int, depth int) int {
	mean, sse := meanSSE(g.y, idx)
	id := len(g.nodes)
	g.nodes = append(g.nodes, Node{Feature: -1, Left: -1, Right: -1, Value: mean, NSamples: len(idx), SSE: sse})

	if len(idx) < g.dt.MinSamplesSplit || depth >= g.dt.MaxDepth || sse == 0 {
		return id
	}
	feature, threshold, gain := g.bestSplit(idx, mean)
	if feature < 0 || gain <= 0 {
		return id
	}

	var left, right []int
	for _, i := range idx {
		if g.cols[feature][i] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := g.grow(left, depth+1)
	r := g.grow(right, depth+1)

	n := &g.nodes[id]
	n.Feature, n.Threshold, n.Improvement = feature, threshold, gain
	n.Left, n.Right = l, r
	return id
}

// bestSplit scans every feature for the threshold with the largest
// reduction in squared error, respecting MinSamplesLeaf. Ties keep the
// first feature and the lowest threshold.
func (g *grower) bestSplit(idx []int, mean float64) (int, float64, float64) {
	n := len(idx)
	minLeaf := g.dt.MinSamplesLeaf
	if n < 2*minLeaf {
		return -1, 0, 0
	}

	// 数値誤差を抑えるためノード平均で中心化する
	var totalSq float64
	for _, i := range idx {
		d := g.y[i] - mean
		totalSq += d * d
	}

	bestFeature, bestThreshold, bestGain := -1, 0.0, 0.0
	order := make([]int, n)
	for j, col := range g.cols {
		copy(order, idx)
		slices.SortStableFunc(order, func(a, b int) int { return cmp.Compare(col[a], col[b]) })
		if col[order[0]] == col[order[n-1]] {
			continue
		}

		var sumL, sqL float64
		for k := 0; k < n-minLeaf; k++ {
			d := g.y[order[k]] - mean
			sumL += d
			sqL += d * d
			nl := k + 1
			if nl < minLeaf || col[order[k]] == col[order[k+1]] {
				continue
			}
			nr := n - nl
			sumR := -sumL
			sqR := totalSq - sqL
			sseL := sqL - sumL*sumL/float64(nl)
			sseR := sqR - sumR*sumR/float64(nr)
			if gain := totalSq - sseL - sseR; gain > bestGain {
				bestFeature = j
				bestThreshold = (col[order[k]] + col[order[k+1]]) / 2
				bestGain = gain
			}
		}
	}
	return bestFeature, bestThreshold, bestGain
}

// prune performs weakest-link pruning: while the internal node with the
// smallest g(t) = (R(t) − R(T_t)) / (|T_t| − 1) has g(t) <= α, every node
// attaining that minimum is collapsed. The result is the smallest subtree
// minimising R(T) + α|T|, so trees are nested as α grows.
func (g *grower) prune() {
	nNodes := len(g.nodes)
	risk := make([]float64, nNodes)
	leaves := make([]int, nNodes)
	link := make([]float64, nNodes)
	var internal []int

	var walk func(id int)
	walk = func(id int) {
		n := &g.nodes[id]
		if n.IsLeaf() {
			risk[id], leaves[id] = n.SSE, 1
			return
		}
		walk(n.Left)
		walk(n.Right)
		risk[id] = risk[n.Left] + risk[n.Right]
		leaves[id] = leaves[n.Left] + leaves[n.Right]
		link[id] = (n.SSE - risk[id]) / float64(leaves[id]-1)
		internal = append(internal, id)
	}

	for !g.nodes[0].IsLeaf() {
		internal = internal[:0]
		walk(0)
		weakest := math.Inf(1)
		for _, id := range internal {
			weakest = math.Min(weakest, link[id])
		}
		if weakest > g.alpha {
			return
		}
		tol := 1e-12 * math.Max(1, math.Abs(weakest))
		for _, id := range internal {
			if link[id] <= weakest+tol {
				n := &g.nodes[id]
				n.Feature, n.Left, n.Right, n.Improvement = -1, -1, -1, 0
			}
		}
	}
}

// compact drops nodes made unreachable by pruning, keeping pre-order.
func compact(nodes []Node) []Node {
	out := make([]Node, 0, len(nodes))
	var walk func(id int) int
	walk = func(id int) int {
		n := nodes[id]
		pos := len(out)
		out = append(out, n)
		if !n.IsLeaf() {
			l := walk(n.Left)
			r := walk(n.Right)
			out[pos].Left, out[pos].Right = l, r
		}
		return pos
	}
	walk(0)
	return out
}

func importances(nodes []Node, nFeatures int) []float64 {
	imp := make([]float64, nFeatures)
	var total float64
	for _, n := range nodes {
		if !n.IsLeaf() {
			imp[n.Feature] += n.Improvement
			total += n.Improvement
		}
	}
	if total > 0 {
		for j := range imp {
			imp[j] /= total
		}
	}
	return imp
}

func meanSSE(y []float64, idx []int) (float64, float64) {
	var sum float64
	for _, i := range idx {
		sum += y[i]
	}
	mean := sum / float64(len(idx))
	var sse float64
	for _, i := range idx {
		d := y[i] - mean
		sse += d * d
	}
	return mean, sse
}

// Predict returns the leaf mean for every row of X.
func (dt *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.State.RequireFitted("DecisionTreeRegressor", "Predict"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := dt.State.RequireFeatures("DecisionTreeRegressor.Predict", c); err != nil {
		return nil, err
	}

	out := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		id := 0
		for !dt.Nodes_[id].IsLeaf() {
			n := &dt.Nodes_[id]
			if X.At(i, n.Feature) <= n.Threshold {
				id = n.Left
			} else {
				id = n.Right
			}
		}
		out.SetVec(i, dt.Nodes_[id].Value)
	}
	return out, nil
}

// Score はモデルの決定係数（R²）を計算する
func (dt *DecisionTreeRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0, err
	}
	yv, err := metrics.ColumnVector("DecisionTreeRegressor.Score", y)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(yv, pred.(*mat.VecDense))
}

// GetFeatureImportances returns the normalised total squared-error
// reduction contributed by each feature.
func (dt *DecisionTreeRegressor) GetFeatureImportances() []float64 {
	return dt.FeatureImportances_
}

// GetDepth returns the depth of the fitted tree.
func (dt *DecisionTreeRegressor) GetDepth() int {
	if len(dt.Nodes_) == 0 {
		return 0
	}
	var depth func(id int) int
	depth = func(id int) int {
		n := dt.Nodes_[id]
		if n.IsLeaf() {
			return 0
		}
		return 1 + max(depth(n.Left), depth(n.Right))
	}
	return depth(0)
}

// GetNLeaves returns the number of leaves of the fitted tree.
func (dt *DecisionTreeRegressor) GetNLeaves() int {
	leaves := 0
	for i := range dt.Nodes_ {
		if dt.Nodes_[i].IsLeaf() {
			leaves++
		}
	}
	return leaves
}

// GetParams returns the parameters of the model
func (dt *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"cp":                dt.CP,
		"min_samples_split": dt.MinSamplesSplit,
		"min_samples_leaf":  dt.MinSamplesLeaf,
		"max_depth":         dt.MaxDepth,
	}
}

// SetParams sets the parameters of the model
func (dt *DecisionTreeRegressor) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		switch k {
		case "cp":
			f, ok := v.(float64)
			if !ok {
				return errors.NewValidationError(k, "must be a float64", v)
			}
			dt.CP = f
		case "min_samples_split", "min_samples_leaf", "max_depth":
			n, ok := v.(int)
			if !ok {
				return errors.NewValidationError(k, "must be an int", v)
			}
			switch k {
			case "min_samples_split":
				dt.MinSamplesSplit = n
			case "min_samples_leaf":
				dt.MinSamplesLeaf = n
			default:
				dt.MaxDepth = n
			}
		default:
			return errors.NewValidationError(k, "unknown parameter", v)
		}
	}
	return nil
}

// String returns a compact description of the tree.
func (dt *DecisionTreeRegressor) String() string {
	if !dt.State.IsFitted() {
		return fmt.Sprintf("DecisionTreeRegressor(cp=%g)", dt.CP)
	}
	return fmt.Sprintf("DecisionTreeRegressor(cp=%g, depth=%d, leaves=%d)", dt.CP, dt.GetDepth(), dt.GetNLeaves())
}

var (
	_ model.Regressor       = (*DecisionTreeRegressor)(nil)
	_ model.ParameterGetter = (*DecisionTreeRegressor)(nil)
)
