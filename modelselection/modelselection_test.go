package modelselection

import (
	"bytes"
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/YuminosukeSato/housecv/dataset"
	"github.com/YuminosukeSato/housecv/linear"
	"github.com/YuminosukeSato/housecv/pkg/errors"
	"github.com/YuminosukeSato/housecv/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func numericFrame(t *testing.T, names []string, cols ...[]float64) *dataset.Frame {
	t.Helper()
	require.Equal(t, len(names), len(cols))
	columns := make([]*dataset.Column, len(cols))
	for i, c := range cols {
		columns[i] = &dataset.Column{Name: names[i], Kind: dataset.Numeric, Floats: c}
	}
	frame, err := dataset.NewFrame(columns...)
	require.NoError(t, err)
	return frame
}

func quietOption() TrainOption {
	logger, _ := log.NewTestLogger(log.LevelWarn)
	return WithLogger(logger)
}

func testConfig(folds int) Config {
	cfg := DefaultConfig()
	cfg.Folds = folds
	cfg.Seed = 42
	return cfg
}

func TestKFoldSplit(t *testing.T) {
	kf := NewKFold(3, true, 7)
	folds, err := kf.Split(10)
	require.NoError(t, err)
	require.Len(t, folds, kf.GetNSplits())

	seen := make(map[int]int)
	for i, f := range folds {
		assert.Len(t, f.Train, 10-len(f.Test))
		for _, idx := range f.Test {
			seen[idx]++
		}
		for _, idx := range f.Train {
			assert.NotContains(t, f.Test, idx, "fold %d", i)
		}
	}
	// 4, 3, 3
	assert.Len(t, folds[0].Test, 4)
	assert.Len(t, folds[1].Test, 3)
	assert.Len(t, folds[2].Test, 3)
	assert.Len(t, seen, 10)
	for idx, count := range seen {
		assert.Equal(t, 1, count, "row %d", idx)
	}
}

func TestKFoldDeterministic(t *testing.T) {
	a, err := NewKFold(5, true, 99).Split(103)
	require.NoError(t, err)
	b, err := NewKFold(5, true, 99).Split(103)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := NewKFold(5, true, 100).Split(103)
	require.NoError(t, err)
	assert.NotEqual(t, a, c, "a different seed should change the assignment")

	plain, err := NewKFold(2, false, 0).Split(4)
	require.NoError(t, err)
	assert.Equal(t, []Fold{
		{Train: []int{2, 3}, Test: []int{0, 1}},
		{Train: []int{0, 1}, Test: []int{2, 3}},
	}, plain)
}

func TestKFoldErrors(t *testing.T) {
	var valErr *errors.ValidationError
	_, err := NewKFold(1, true, 0).Split(10)
	assert.True(t, errors.As(err, &valErr))
	_, err = NewKFold(11, true, 0).Split(10)
	assert.True(t, errors.As(err, &valErr))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Folds = 1
	err := cfg.Validate()
	var valErr *errors.ValidationError
	require.True(t, errors.As(err, &valErr))
	assert.Equal(t, "Config.Folds", valErr.ParamName)

	cfg = DefaultConfig()
	cfg.Workers = -1
	assert.True(t, errors.As(cfg.Validate(), &valErr))
}

func TestMethodGrids(t *testing.T) {
	tests := []struct {
		method Method
		size   int
		first  string
	}{
		{FullOLS{}, 1, "none"},
		{ManualOLS{Features: []string{"x"}}, 1, "none"},
		{ForwardStepwise{MaxVars: []int{1, 2, 3}}, 3, "nvmax=1"},
		{BackwardStepwise{MaxVars: []int{4}}, 1, "nvmax=4"},
		{Ridge{Lambdas: []float64{0.1, 1}}, 2, "lambda=0.1"},
		{Lasso{Lambdas: []float64{0.01}}, 1, "lambda=0.01"},
		{ElasticNet{Alphas: []float64{0, 0.5}, Lambdas: []float64{0.1, 1, 10}}, 6, "alpha=0, lambda=0.1"},
		{DecisionTree{CPs: []float64{0.01, 0.1}}, 2, "cp=0.01"},
	}
	for _, tt := range tests {
		t.Run(tt.method.Name(), func(t *testing.T) {
			grid := tt.method.Grid()
			require.Len(t, grid, tt.size)
			assert.Equal(t, tt.first, grid[0].String())
			assert.NotNil(t, tt.method.NewEstimator(grid[0]))
		})
	}

	grid := ElasticNet{Alphas: []float64{0, 0.5}, Lambdas: []float64{0.1, 1}}.Grid()
	assert.Equal(t, "alpha=0.5, lambda=0.1", grid[2].String(), "grid is ordered by alpha, then lambda")
	assert.Equal(t, 0.0, Ridge{Lambdas: []float64{1}}.Grid()[0].Alpha)
	assert.Equal(t, 1.0, Lasso{Lambdas: []float64{1}}.Grid()[0].Alpha)
}

func TestSelectBest(t *testing.T) {
	rows := []ResultRow{{RMSE: 0.3}, {RMSE: 0.1}, {RMSE: 0.2}, {RMSE: 0.1}}
	assert.Equal(t, 1, SelectBest(rows), "ties keep the earliest row")

	nan := []ResultRow{{RMSE: math.NaN()}, {RMSE: 0.5}, {RMSE: 0.4}}
	assert.Equal(t, 2, SelectBest(nan))
}

func TestMeanSD(t *testing.T) {
	m, sd := meanSD([]float64{1, 2, 3, 4})
	assert.InDelta(t, 2.5, m, 1e-12)
	// 標本標準偏差 (n-1)
	assert.InDelta(t, math.Sqrt(5.0/3.0), sd, 1e-12)

	m, sd = meanSD(nil)
	assert.True(t, math.IsNaN(m))
	assert.True(t, math.IsNaN(sd))
}

// 10行・2列・2分割の OLS
func TestTrainFullOLSScenario(t *testing.T) {
	x1 := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	x2 := []float64{3, 1, 4, 1, 5, 9, 2, 6, 5, 3}
	y := make([]float64, 10)
	for i := range y {
		y[i] = 1 + 0.5*x1[i] - 0.25*x2[i] + 0.01*float64(i%3)
	}
	frame := numericFrame(t, []string{"x1", "x2", "y"}, x1, x2, y)

	tm, err := Train(context.Background(), frame, dataset.All("y"), FullOLS{}, testConfig(2), quietOption())
	require.NoError(t, err)

	require.Len(t, tm.Results, 1)
	assert.Equal(t, 0, tm.BestIndex)
	assert.Equal(t, []string{"x1", "x2"}, tm.Columns)
	assert.GreaterOrEqual(t, tm.Results[0].RMSE, 0.0)
	assert.GreaterOrEqual(t, tm.Results[0].RMSESD, 0.0)
	assert.Len(t, tm.Results[0].FoldRMSE, 2)

	d, err := tm.Design(frame)
	require.NoError(t, err)
	pred, err := tm.Predict(d.X)
	require.NoError(t, err)
	r, _ := pred.Dims()
	assert.Equal(t, 10, r)
}

// ノイズのない線形関係ではもっとも弱い正則化が選ばれる
func TestTrainRidgeScenario(t *testing.T) {
	n := 40
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = float64(i) / 10
		y[i] = 2*x[i] + 1
	}
	frame := numericFrame(t, []string{"x", "y"}, x, y)

	method := Ridge{Lambdas: []float64{0.1, 0.01, 0.001}}
	tm, err := Train(context.Background(), frame, dataset.All("y"), method, testConfig(5), quietOption())
	require.NoError(t, err)

	require.Len(t, tm.Results, 3)
	assert.Equal(t, 2, tm.BestIndex)
	assert.Equal(t, 0.001, tm.Best.Lambda)
	assert.Less(t, tm.Results[2].RMSE, tm.Results[1].RMSE)
	assert.Less(t, tm.Results[1].RMSE, tm.Results[0].RMSE)

	d, err := tm.Design(frame)
	require.NoError(t, err)
	pred, err := tm.Predict(d.X)
	require.NoError(t, err)
	var sq float64
	for i := 0; i < n; i++ {
		diff := pred.At(i, 0) - y[i]
		sq += diff * diff
	}
	assert.Less(t, math.Sqrt(sq/float64(n)), 0.01)
}

// 大きな λ の LASSO はノイズ列の係数を厳密に 0 にする
func TestTrainLassoScenario(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	n := 200
	names := []string{"signal"}
	cols := [][]float64{make([]float64, n)}
	for i := 0; i < n; i++ {
		cols[0][i] = rng.NormFloat64()
	}
	for j := 0; j < 20; j++ {
		names = append(names, "noise"+string(rune('a'+j)))
		c := make([]float64, n)
		for i := range c {
			c[i] = rng.NormFloat64()
		}
		cols = append(cols, c)
	}
	y := make([]float64, n)
	for i := range y {
		y[i] = 3 * cols[0][i]
	}
	names = append(names, "y")
	cols = append(cols, y)
	frame := numericFrame(t, names, cols...)

	tm, err := Train(context.Background(), frame, dataset.All("y"), Lasso{Lambdas: []float64{1}}, testConfig(5), quietOption())
	require.NoError(t, err)

	en, ok := tm.Final.(*linear.ElasticNet)
	require.True(t, ok)
	coef := en.Coefficients()
	require.Len(t, coef, 21)
	assert.NotZero(t, coef[0])
	for j := 1; j < 21; j++ {
		assert.Zero(t, coef[j], "noise column %s", names[j])
	}
}

// cp >= 0.5 では木が根だけに刈り込まれ、全予測が平均になる
func TestTrainDecisionTreeScenario(t *testing.T) {
	n := 40
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
		y[i] = 10 + float64(1-2*(i%2))
	}
	frame := numericFrame(t, []string{"x", "y"}, x, y)

	tm, err := Train(context.Background(), frame, dataset.All("y"), DecisionTree{CPs: []float64{0.5, 1}}, testConfig(4), quietOption())
	require.NoError(t, err)

	assert.Equal(t, tm.Results[0].RMSE, tm.Results[1].RMSE)
	assert.Equal(t, 0, tm.BestIndex, "equal RMSE keeps the first tuple")
	assert.Equal(t, 0.5, tm.Best.CP)

	d, err := tm.Design(frame)
	require.NoError(t, err)
	pred, err := tm.Predict(d.X)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		assert.InDelta(t, 10.0, pred.At(i, 0), 1e-12)
	}
}

func stepFrame(t *testing.T) *dataset.Frame {
	t.Helper()
	rng := rand.New(rand.NewPCG(11, 13))
	n := 100
	a := make([]float64, n)
	b := make([]float64, n)
	c := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		a[i] = rng.NormFloat64()
		b[i] = rng.NormFloat64()
		c[i] = rng.NormFloat64()
		y[i] = 2*a[i] - b[i] + 0.1*rng.NormFloat64()
	}
	return numericFrame(t, []string{"a", "b", "c", "y"}, a, b, c, y)
}

func TestTrainDeterministicAndParallel(t *testing.T) {
	frame := stepFrame(t)
	method := ElasticNet{Alphas: []float64{0, 0.5, 1}, Lambdas: []float64{0.01, 0.1}}

	first, err := Train(context.Background(), frame, dataset.All("y"), method, testConfig(5), quietOption())
	require.NoError(t, err)
	second, err := Train(context.Background(), frame, dataset.All("y"), method, testConfig(5), quietOption())
	require.NoError(t, err)
	assert.Equal(t, first.Results, second.Results)

	cfg := testConfig(5)
	cfg.Parallel = true
	cfg.Workers = 3
	par, err := Train(context.Background(), frame, dataset.All("y"), method, cfg, quietOption())
	require.NoError(t, err)
	require.Len(t, par.Results, len(first.Results))
	for i := range first.Results {
		assert.InDelta(t, first.Results[i].RMSE, par.Results[i].RMSE, 1e-12)
	}
	assert.Equal(t, first.BestIndex, par.BestIndex)

	for _, row := range first.Results {
		assert.GreaterOrEqual(t, row.RMSE, 0.0)
		assert.GreaterOrEqual(t, row.RMSESD, 0.0)
	}
}

func TestTrainStepwiseSelectsSignal(t *testing.T) {
	frame := stepFrame(t)

	for _, method := range []Method{
		ForwardStepwise{MaxVars: []int{1, 2, 3}},
		BackwardStepwise{MaxVars: []int{1, 2, 3}},
	} {
		tm, err := Train(context.Background(), frame, dataset.All("y"), method, testConfig(5), quietOption())
		require.NoError(t, err, method.Name())
		require.Len(t, tm.Results, 3)

		sw, ok := tm.Final.(*linear.Stepwise)
		require.True(t, ok)
		assert.Subset(t, sw.Selected_, []int{0, 1}, method.Name())
		assert.NotEqual(t, 0, tm.BestIndex, "%s: one variable cannot be best", method.Name())
	}
}

func TestTrainManualOLSUsesSubset(t *testing.T) {
	frame := stepFrame(t)
	tm, err := Train(context.Background(), frame, dataset.All("y"), ManualOLS{Features: []string{"a", "c"}}, testConfig(3), quietOption())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, tm.Columns)
	assert.Equal(t, "y ~ a + c", tm.Formula.String())
}

func TestTrainSavePredictions(t *testing.T) {
	frame := stepFrame(t)
	cfg := testConfig(4)
	cfg.SavePredictions = true

	tm, err := Train(context.Background(), frame, dataset.All("y"), Ridge{Lambdas: []float64{0.1, 1}}, cfg, quietOption())
	require.NoError(t, err)
	require.Len(t, tm.Predictions, 2*frame.NRows())

	rows := make(map[[2]int]bool)
	for _, p := range tm.Predictions {
		key := [2]int{p.GridIndex, p.Row}
		assert.False(t, rows[key], "row %d predicted twice for grid %d", p.Row, p.GridIndex)
		rows[key] = true
		assert.GreaterOrEqual(t, p.Fold, 1)
		assert.LessOrEqual(t, p.Fold, 4)
	}

	tm, err = Train(context.Background(), frame, dataset.All("y"), Ridge{Lambdas: []float64{0.1}}, testConfig(4), quietOption())
	require.NoError(t, err)
	assert.Empty(t, tm.Predictions)
}

func TestTrainSharesFoldsAcrossMethods(t *testing.T) {
	frame := stepFrame(t)
	cfg := testConfig(5)
	cfg.SavePredictions = true

	foldOf := func(method Method) map[int]int {
		tm, err := Train(context.Background(), frame, dataset.All("y"), method, cfg, quietOption())
		require.NoError(t, err)
		folds := make(map[int]int)
		for _, p := range tm.Predictions {
			if p.GridIndex == 0 {
				folds[p.Row] = p.Fold
			}
		}
		require.Len(t, folds, frame.NRows())
		return folds
	}

	ridge := foldOf(Ridge{Lambdas: []float64{0.1}})
	tree := foldOf(DecisionTree{CPs: []float64{0.01}})
	assert.Equal(t, ridge, tree)
}

// factorFrame cycles g through levels, which must be sorted.
func factorFrame(t *testing.T, levels []string, n int) *dataset.Frame {
	t.Helper()
	x := make([]float64, n)
	y := make([]float64, n)
	codes := make([]int, n)
	for i := range x {
		x[i] = float64(i % 7)
		codes[i] = i % len(levels)
		y[i] = 1 + 0.5*x[i] + float64(codes[i])
	}
	frame, err := dataset.NewFrame(
		&dataset.Column{Name: "x", Kind: dataset.Numeric, Floats: x},
		&dataset.Column{Name: "g", Kind: dataset.Categorical, Levels: levels, Codes: codes},
		&dataset.Column{Name: "y", Kind: dataset.Numeric, Floats: y},
	)
	require.NoError(t, err)
	return frame
}

func TestTrainedModelDesignUsesTrainingLevels(t *testing.T) {
	cfg := testConfig(3)
	cfg.StrictLevels = false
	tm, err := Train(context.Background(), factorFrame(t, []string{"a", "b", "c"}, 30), dataset.All("y"), FullOLS{}, cfg, quietOption())
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"g": {"a", "b", "c"}}, tm.Levels)
	assert.Equal(t, []string{"x", "gb", "gc"}, tm.Columns)

	var buf bytes.Buffer
	require.NoError(t, SaveModel(&buf, tm))
	loaded, err := LoadModel(&buf)
	require.NoError(t, err)
	assert.Equal(t, tm.Levels, loaded.Levels)

	// c を含まないフレームも学習時と同じ列に符号化される
	d, err := loaded.Design(factorFrame(t, []string{"a", "b"}, 4))
	require.NoError(t, err)
	assert.Equal(t, tm.Columns, d.Columns)
	assert.Equal(t, []float64{1, 1, 0}, d.X.RawRowView(1))
	assert.Equal(t, []float64{0, 0, 0}, d.X.RawRowView(0))

	_, err = loaded.Design(factorFrame(t, []string{"a", "d"}, 4))
	var levelErr *errors.UnseenLevelError
	require.True(t, errors.As(err, &levelErr), "got %v", err)
	assert.Equal(t, "g", levelErr.Column)
	assert.Equal(t, "d", levelErr.Level)
	assert.Equal(t, 0, levelErr.Fold)
}

func TestTrainErrors(t *testing.T) {
	frame := stepFrame(t)
	ctx := context.Background()
	var valErr *errors.ValidationError

	_, err := Train(ctx, frame, dataset.Formula{Target: "y", Features: []string{"a", "zz"}}, FullOLS{}, testConfig(3), quietOption())
	var colErr *errors.ColumnNotFoundError
	assert.True(t, errors.As(err, &colErr))

	_, err = Train(ctx, frame, dataset.All("y"), Ridge{}, testConfig(3), quietOption())
	assert.True(t, errors.Is(err, errors.ErrEmptyGrid))

	_, err = Train(ctx, frame, dataset.All("y"), FullOLS{}, testConfig(1), quietOption())
	assert.True(t, errors.As(err, &valErr))

	_, err = Train(ctx, frame, dataset.All("y"), FullOLS{}, testConfig(101), quietOption())
	assert.True(t, errors.As(err, &valErr))

	_, err = Train(ctx, frame, dataset.All("y"), ElasticNet{Alphas: []float64{2}, Lambdas: []float64{1}}, testConfig(3), quietOption())
	assert.True(t, errors.As(err, &valErr))

	_, err = Train(ctx, frame, dataset.All("y"), ManualOLS{}, testConfig(3), quietOption())
	assert.True(t, errors.As(err, &valErr))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = Train(cancelled, frame, dataset.All("y"), FullOLS{}, testConfig(3), quietOption())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTrainUnseenLevel(t *testing.T) {
	n := 12
	x := make([]float64, n)
	y := make([]float64, n)
	codes := make([]int, n)
	for i := range x {
		x[i] = float64(i)
		y[i] = float64(i % 4)
	}
	// 水準 "rare" は1行にしかない
	codes[5] = 1
	frame, err := dataset.NewFrame(
		&dataset.Column{Name: "x", Kind: dataset.Numeric, Floats: x},
		&dataset.Column{Name: "g", Kind: dataset.Categorical, Levels: []string{"common", "rare"}, Codes: codes},
		&dataset.Column{Name: "y", Kind: dataset.Numeric, Floats: y},
	)
	require.NoError(t, err)

	_, err = Train(context.Background(), frame, dataset.All("y"), FullOLS{}, testConfig(3), quietOption())
	var levelErr *errors.UnseenLevelError
	require.True(t, errors.As(err, &levelErr))
	assert.Equal(t, "g", levelErr.Column)
	assert.Equal(t, "rare", levelErr.Level)

	cfg := testConfig(3)
	cfg.StrictLevels = false
	tm, err := Train(context.Background(), frame, dataset.All("y"), FullOLS{}, cfg, quietOption())
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "grare"}, tm.Columns)
}

func TestTrainLogsLifecycle(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	_, err := Train(context.Background(), stepFrame(t), dataset.All("y"), DecisionTree{CPs: []float64{0.01, 0.1}}, testConfig(3), WithLogger(logger))
	require.NoError(t, err)

	assert.True(t, logger.ContainsMessage("cross-validation started"))
	assert.True(t, logger.ContainsMessage("grid tuple evaluated"))
	assert.True(t, logger.ContainsMessage("cross-validation finished"))
	assert.True(t, logger.ContainsField(log.MethodKey, "decision_tree"))
	assert.True(t, logger.ContainsField(log.GridSizeKey, 2.0))
	assert.True(t, logger.ContainsField(log.HyperParamsKey, "cp=0.1"))
}

func TestSaveLoadModel(t *testing.T) {
	frame := stepFrame(t)
	for _, method := range []Method{
		FullOLS{},
		Lasso{Lambdas: []float64{0.01}},
		BackwardStepwise{MaxVars: []int{2}},
		DecisionTree{CPs: []float64{0.01}},
	} {
		t.Run(method.Name(), func(t *testing.T) {
			tm, err := Train(context.Background(), frame, dataset.All("y"), method, testConfig(3), quietOption())
			require.NoError(t, err)

			var buf bytes.Buffer
			require.NoError(t, SaveModel(&buf, tm))
			loaded, err := LoadModel(&buf)
			require.NoError(t, err)

			assert.Equal(t, tm.Method, loaded.Method)
			assert.Equal(t, tm.Best, loaded.Best)
			assert.Equal(t, tm.Results, loaded.Results)

			d, err := loaded.Design(frame)
			require.NoError(t, err)
			want, err := tm.Predict(d.X)
			require.NoError(t, err)
			got, err := loaded.Predict(d.X)
			require.NoError(t, err)
			assert.True(t, mat.EqualApprox(want, got, 1e-12))
		})
	}
}
