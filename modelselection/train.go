package modelselection

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/YuminosukeSato/housecv/core/model"
	"github.com/YuminosukeSato/housecv/core/parallel"
	"github.com/YuminosukeSato/housecv/dataset"
	"github.com/YuminosukeSato/housecv/metrics"
	"github.com/YuminosukeSato/housecv/pkg/errors"
	"github.com/YuminosukeSato/housecv/pkg/log"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ResultRow holds the cross-validated statistics of one grid tuple.
// SD columns are sample standard deviations across folds.
type ResultRow struct {
	Params     Params
	RMSE       float64
	RMSESD     float64
	Rsquared   float64
	RsquaredSD float64
	MAE        float64
	MAESD      float64
	FoldRMSE   []float64
}

// HoldoutPrediction is one held-out prediction kept when
// Config.SavePredictions is set.
type HoldoutPrediction struct {
	GridIndex int
	Fold      int // 1-based
	Row       int
	Observed  float64
	Predicted float64
}

// TrainedModel is the outcome of one Train call: the model refitted on all
// rows with the selected tuple plus the complete results table.
type TrainedModel struct {
	Method    string
	Formula   dataset.Formula // resolved
	Columns   []string        // encoded design columns
	Folds     int
	Seed      uint64
	Best      Params
	BestIndex int
	Results   []ResultRow // grid order
	Final     model.Estimator

	// Levels holds the training level list of every categorical feature.
	Levels      map[string][]string
	Predictions []HoldoutPrediction
}

// BestResult returns the results row of the selected tuple.
func (tm *TrainedModel) BestResult() ResultRow {
	return tm.Results[tm.BestIndex]
}

// Predict applies the final model to an encoded design matrix.
func (tm *TrainedModel) Predict(X mat.Matrix) (mat.Matrix, error) {
	return tm.Final.Predict(X)
}

// Design encodes frame with the model's formula and the training levels of
// its categorical features. Levels absent from frame still get their
// columns; a level the model never saw gives an UnseenLevelError.
func (tm *TrainedModel) Design(frame *dataset.Frame) (*dataset.Design, error) {
	d, err := dataset.NewDesign(frame, tm.Formula, dataset.WithLevels(tm.Levels))
	if err != nil {
		return nil, err
	}
	if !slices.Equal(d.Columns, tm.Columns) {
		return nil, errors.NewDimensionError(tm.Method+".Design", len(tm.Columns), len(d.Columns), 1)
	}
	return d, nil
}

// TrainOption configures Train.
type TrainOption func(*trainConfig)

type trainConfig struct {
	logger log.Logger
}

// WithLogger sets the logger. The default is the "modelselection" logger
// of the global provider.
func WithLogger(l log.Logger) TrainOption {
	return func(c *trainConfig) {
		c.logger = l
	}
}

type foldData struct {
	trainX *mat.Dense
	trainY *mat.VecDense
	testX  *mat.Dense
	testY  *mat.VecDense
	test   []int
}

type foldEval struct {
	rmse, r2, mae float64
	pred          []float64
}

// Train cross-validates method on frame and refits the selected tuple.
//
// Every tuple is evaluated on the same folds. The selected tuple is the
// one with the smallest mean RMSE; ties go to the earliest tuple in grid
// order. Any fold failure aborts the call and no partial result is
// returned.
func Train(ctx context.Context, frame *dataset.Frame, formula dataset.Formula, method Method, cfg Config, opts ...TrainOption) (*TrainedModel, error) {
	tc := &trainConfig{}
	for _, opt := range opts {
		opt(tc)
	}
	if tc.logger == nil {
		tc.logger = log.GetLoggerWithName("modelselection")
	}
	logger := tc.logger.With(log.MethodKey, method.Name())

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := method.validate(); err != nil {
		return nil, err
	}
	grid := method.Grid()
	if len(grid) == 0 {
		return nil, errors.Wrapf(errors.ErrEmptyGrid, "housecv: method %s", method.Name())
	}

	design, err := dataset.NewDesign(frame, method.formula(formula))
	if err != nil {
		return nil, err
	}
	n := design.NRows()
	folds, err := NewKFold(cfg.Folds, true, cfg.Seed).Split(n)
	if err != nil {
		return nil, err
	}
	data := make([]foldData, len(folds))
	for k, f := range folds {
		if cfg.StrictLevels {
			if err := design.CheckLevels(f.Train, f.Test, k+1); err != nil {
				logger.Error("degenerate fold", err, log.FoldKey, k+1, log.ErrorCodeKey, log.ErrorUnseenLevel)
				return nil, err
			}
		}
		data[k].trainX, data[k].trainY = design.Rows(f.Train)
		data[k].testX, data[k].testY = design.Rows(f.Test)
		data[k].test = f.Test
	}

	start := time.Now()
	logger.Info("cross-validation started",
		log.OperationKey, log.OperationCrossValidate,
		log.SamplesKey, n,
		log.FeaturesKey, design.NCols(),
		log.FoldsKey, cfg.Folds,
		log.GridSizeKey, len(grid),
		log.RandomSeedKey, cfg.Seed,
	)

	tm := &TrainedModel{
		Method:  method.Name(),
		Formula: design.Formula,
		Columns: design.Columns,
		Levels:  design.Levels(),
		Folds:   cfg.Folds,
		Seed:    cfg.Seed,
		Results: make([]ResultRow, len(grid)),
	}
	for g, p := range grid {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		evals := make([]foldEval, len(data))
		evalFold := func(_ context.Context, k int) error {
			op := fmt.Sprintf("%s fold %d (%s)", method.Name(), k+1, p)
			return errors.SafeExecute(op, func() error {
				e, err := evaluate(method.NewEstimator(p), &data[k])
				if err != nil {
					return errors.Wrapf(err, "housecv: %s", op)
				}
				evals[k] = e
				return nil
			})
		}
		if cfg.Parallel {
			err = parallel.Jobs(ctx, len(data), cfg.Workers, evalFold)
		} else {
			for k := range data {
				if err = evalFold(ctx, k); err != nil {
					break
				}
			}
		}
		if err != nil {
			logger.Error("cross-validation failed", err, log.GridIndexKey, g, log.HyperParamsKey, p.String())
			return nil, err
		}

		tm.Results[g] = aggregate(p, evals)
		if cfg.SavePredictions {
			for k, e := range evals {
				for t, row := range data[k].test {
					tm.Predictions = append(tm.Predictions, HoldoutPrediction{
						GridIndex: g,
						Fold:      k + 1,
						Row:       row,
						Observed:  data[k].testY.AtVec(t),
						Predicted: e.pred[t],
					})
				}
			}
		}
		logger.Debug("grid tuple evaluated",
			log.GridIndexKey, g,
			log.HyperParamsKey, p.String(),
			log.RMSEKey, tm.Results[g].RMSE,
			log.RMSESDKey, tm.Results[g].RMSESD,
		)
	}

	tm.BestIndex = SelectBest(tm.Results)
	tm.Best = grid[tm.BestIndex]

	final := method.NewEstimator(tm.Best)
	err = errors.SafeExecute(method.Name()+" final fit", func() error {
		return final.Fit(design.X, design.Y)
	})
	if err != nil {
		logger.Error("final fit failed", err, log.HyperParamsKey, tm.Best.String())
		return nil, err
	}
	tm.Final = final
	if pg, ok := final.(model.ParameterGetter); ok {
		logger.Debug("final model fitted", log.ModelNameKey, fmt.Sprintf("%T", final), "params", pg.GetParams())
	}

	logger.Info("cross-validation finished",
		log.HyperParamsKey, tm.Best.String(),
		log.RMSEKey, tm.BestResult().RMSE,
		log.RMSESDKey, tm.BestResult().RMSESD,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return tm, nil
}

func evaluate(est model.Estimator, d *foldData) (foldEval, error) {
	if err := est.Fit(d.trainX, d.trainY); err != nil {
		return foldEval{}, err
	}
	out, err := est.Predict(d.testX)
	if err != nil {
		return foldEval{}, err
	}
	pred, err := metrics.ColumnVector("modelselection.evaluate", out)
	if err != nil {
		return foldEval{}, err
	}

	var e foldEval
	if e.rmse, err = metrics.RMSE(d.testY, pred); err != nil {
		return foldEval{}, err
	}
	if e.mae, err = metrics.MAE(d.testY, pred); err != nil {
		return foldEval{}, err
	}
	e.r2, err = metrics.R2Score(d.testY, pred)
	if errors.Is(err, metrics.ErrZeroVariance) {
		// 定数ターゲットのフォールドでは R² は定義されない
		e.r2 = math.NaN()
	} else if err != nil {
		return foldEval{}, err
	}
	e.pred = mat.Col(nil, 0, pred)
	return e, nil
}

func aggregate(p Params, evals []foldEval) ResultRow {
	rmse := lo.Map(evals, func(e foldEval, _ int) float64 { return e.rmse })
	mae := lo.Map(evals, func(e foldEval, _ int) float64 { return e.mae })
	r2 := lo.FilterMap(evals, func(e foldEval, _ int) (float64, bool) { return e.r2, !math.IsNaN(e.r2) })

	row := ResultRow{Params: p, FoldRMSE: rmse}
	row.RMSE, row.RMSESD = meanSD(rmse)
	row.MAE, row.MAESD = meanSD(mae)
	row.Rsquared, row.RsquaredSD = meanSD(r2)
	return row
}

// meanSD returns the mean and the sample standard deviation. A single
// value has SD 0 and an empty slice gives NaN for both.
func meanSD(x []float64) (float64, float64) {
	switch len(x) {
	case 0:
		return math.NaN(), math.NaN()
	case 1:
		return x[0], 0
	}
	return stat.Mean(x, nil), stat.StdDev(x, nil)
}

// SelectBest returns the index of the row with the smallest mean RMSE.
// The scan uses a strict comparison, so ties keep the earliest row. Rows
// with a NaN RMSE are never selected unless every row is NaN.
func SelectBest(rows []ResultRow) int {
	best := 0
	for i := 1; i < len(rows); i++ {
		if math.IsNaN(rows[best].RMSE) && !math.IsNaN(rows[i].RMSE) || rows[i].RMSE < rows[best].RMSE {
			best = i
		}
	}
	return best
}
