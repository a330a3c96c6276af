package evaluation

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/YuminosukeSato/housecv/dataset"
	"github.com/YuminosukeSato/housecv/modelselection"
	"github.com/YuminosukeSato/housecv/pkg/errors"
	"github.com/YuminosukeSato/housecv/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// fixedPredictor returns the same predictions for any input.
type fixedPredictor struct {
	pred []float64
}

func (f fixedPredictor) Predict(mat.Matrix) (mat.Matrix, error) {
	return mat.NewVecDense(len(f.pred), append([]float64(nil), f.pred...)), nil
}

func quietScorer() *Scorer {
	logger, _ := log.NewTestLogger(log.LevelWarn)
	return NewScorer(WithScorerLogger(logger))
}

func TestScorerResidualsAndRMSLE(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	y := mat.NewVecDense(3, []float64{12, 11.5, 12.5})
	p := fixedPredictor{pred: []float64{12.5, 11, 12.5}}

	s, err := quietScorer().Score("full_ols", p, X, y)
	require.NoError(t, err)

	assert.Equal(t, "full_ols", s.Method)
	assert.Equal(t, []float64{12.5, 11, 12.5}, s.Predictions)
	assert.Equal(t, []float64{0.5, -0.5, 0}, s.Residuals)
	assert.InDelta(t, math.Sqrt(0.5/3), s.RMSLE, 1e-12)
}

func TestScorerAbsGuard(t *testing.T) {
	X := mat.NewDense(2, 1, []float64{0, 0})
	y := mat.NewVecDense(2, []float64{0.1, 0.2})
	p := fixedPredictor{pred: []float64{-0.1, -0.2}}

	s, err := quietScorer().Score("lasso", p, X, y)
	require.NoError(t, err)
	// 負の予測は絶対値を取ってから比較する
	assert.InDelta(t, 0, s.RMSLE, 1e-12)
	assert.Equal(t, []float64{-0.2, -0.4}, s.Residuals)
}

func TestScorerIsIdempotent(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewVecDense(4, []float64{1, 2, 3, 5})
	p := fixedPredictor{pred: []float64{1.1, 1.9, 3.2, 4.4}}
	scorer := quietScorer()

	first, err := scorer.Score("m", p, X, y)
	require.NoError(t, err)
	second, err := scorer.Score("m", p, X, y)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestScorerDimensionMismatch(t *testing.T) {
	X := mat.NewDense(2, 1, []float64{1, 2})
	y := mat.NewVecDense(3, []float64{1, 2, 3})
	_, err := quietScorer().Score("m", fixedPredictor{pred: []float64{1, 2}}, X, y)
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr), "got %v", err)
}

func TestScoreTrained(t *testing.T) {
	n := 20
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
		y[i] = 11 + 0.05*x[i]
	}
	frame, err := dataset.NewFrame(
		&dataset.Column{Name: "x", Kind: dataset.Numeric, Floats: x},
		&dataset.Column{Name: "y", Kind: dataset.Numeric, Floats: y},
	)
	require.NoError(t, err)

	logger, _ := log.NewTestLogger(log.LevelWarn)
	cfg := modelselection.DefaultConfig()
	cfg.Folds = 4
	tm, err := modelselection.Train(context.Background(), frame, dataset.All("y"), modelselection.FullOLS{}, cfg, modelselection.WithLogger(logger))
	require.NoError(t, err)

	s, err := quietScorer().ScoreTrained(tm, frame)
	require.NoError(t, err)
	assert.Len(t, s.Predictions, n)
	assert.InDelta(t, 0, s.RMSLE, 1e-9)
}

func sampleComparison(t *testing.T) *Comparator {
	t.Helper()
	c := NewComparator()
	require.NoError(t, c.Add(ComparisonRow{Method: "full_ols", Params: "none", CVRMSE: 0.15, CVRMSESD: 0.02, RMSLE: 0.11}))
	require.NoError(t, c.Add(ComparisonRow{Method: "lasso", Params: "lambda=0.001", CVRMSE: 0.12, CVRMSESD: 0.01, RMSLE: 0.1}))
	require.NoError(t, c.Add(ComparisonRow{Method: "ridge", Params: "lambda=0.1", CVRMSE: 0.12, CVRMSESD: 0.015, RMSLE: 0.105}))
	return c
}

func TestComparator(t *testing.T) {
	c := sampleComparison(t)

	assert.Equal(t, 3, c.Len())
	table := c.Table()
	assert.Equal(t, []string{"full_ols", "lasso", "ridge"}, table.Methods())

	row, ok := table.Get("ridge")
	require.True(t, ok)
	assert.Equal(t, 0.105, row.RMSLE)
	_, ok = table.Get("tree")
	assert.False(t, ok)

	best, ok := c.Best()
	require.True(t, ok)
	assert.Equal(t, "lasso", best.Method, "ties keep the earliest row")

	// Table はコピーを返す
	table.Rows[0].CVRMSE = 99
	assert.Equal(t, 0.15, c.Table().Rows[0].CVRMSE)
}

func TestComparatorRejectsDuplicates(t *testing.T) {
	c := sampleComparison(t)
	err := c.Add(ComparisonRow{Method: "lasso", CVRMSE: 0.1})
	var valueErr *errors.ValueError
	require.True(t, errors.As(err, &valueErr))
	assert.Equal(t, 3, c.Len())

	var valErr *errors.ValidationError
	assert.True(t, errors.As(c.Add(ComparisonRow{}), &valErr))

	_, ok := NewComparator().Best()
	assert.False(t, ok)
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderTable(&buf, sampleComparison(t).Table()))

	out := buf.String()
	for _, want := range []string{"full_ols", "lasso", "ridge", "lambda=0.001", "0.12000", "0.01500"} {
		assert.Contains(t, out, want)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleComparison(t).Table()))

	want := "method,params,cv_rmse,cv_rmse_sd,rmsle\n" +
		"full_ols,none,0.15,0.02,0.11\n" +
		"lasso,lambda=0.001,0.12,0.01,0.1\n" +
		"ridge,lambda=0.1,0.12,0.015,0.105\n"
	assert.Equal(t, want, buf.String())
}

func TestRenderResults(t *testing.T) {
	tm := &modelselection.TrainedModel{
		Method:    "decision_tree",
		BestIndex: 1,
		Results: []modelselection.ResultRow{
			{Params: modelselection.Params{Tuned: modelselection.ParamCP, CP: 0.1}, RMSE: 0.2},
			{Params: modelselection.Params{Tuned: modelselection.ParamCP, CP: 0.01}, RMSE: 0.18},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, RenderResults(&buf, tm))

	lines := strings.Split(buf.String(), "\n")
	var marked []string
	for _, l := range lines {
		if strings.Contains(l, "*") {
			marked = append(marked, l)
		}
	}
	require.Len(t, marked, 1)
	assert.Contains(t, marked[0], "cp=0.01")
}

func TestPlots(t *testing.T) {
	dir := t.TempDir()

	cmpPath := filepath.Join(dir, "comparison.png")
	require.NoError(t, PlotComparison(sampleComparison(t).Table(), cmpPath))

	score := &Score{
		Method:      "ridge",
		Predictions: []float64{11.9, 12.1, 12.4},
		Residuals:   []float64{-0.1, 0.05, 0.02},
	}
	resPath := filepath.Join(dir, "residuals.svg")
	require.NoError(t, PlotResiduals(score, resPath))

	tm := &modelselection.TrainedModel{
		Method: "lasso",
		Results: []modelselection.ResultRow{
			{RMSE: 0.2, RMSESD: 0.02},
			{RMSE: 0.15, RMSESD: 0.01},
			{RMSE: 0.17, RMSESD: 0.03},
		},
	}
	profPath := filepath.Join(dir, "profile.pdf")
	require.NoError(t, PlotProfile(tm, profPath))

	for _, p := range []string{cmpPath, resPath, profPath} {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size(), p)
	}

	assert.Error(t, PlotComparison(Comparison{}, filepath.Join(dir, "empty.png")))
	assert.Error(t, PlotResiduals(&Score{}, filepath.Join(dir, "empty.png")))
}
