package analysis

import (
	"context"
	"time"

	"github.com/YuminosukeSato/housecv/dataset"
	"github.com/YuminosukeSato/housecv/evaluation"
	"github.com/YuminosukeSato/housecv/modelselection"
	"github.com/YuminosukeSato/housecv/pkg/log"
	"github.com/google/uuid"
)

// Report is the outcome of one Run. Models and Scores are keyed by method
// name; Comparison keeps run order.
type Report struct {
	RunID    uuid.UUID
	Started  time.Time
	Elapsed  time.Duration
	Formula  dataset.Formula
	Samples  int
	Features int // raw columns after dropping, target excluded

	Comparison evaluation.Comparison
	Best       evaluation.ComparisonRow
	Models     map[string]*modelselection.TrainedModel
	Scores     map[string]*evaluation.Score
}

// Progress is reported after each method finishes.
type Progress struct {
	Method  string
	Done    int
	Total   int
	Elapsed time.Duration
}

// Option configures Run.
type Option func(*runConfig)

type runConfig struct {
	logger   log.Logger
	progress func(Progress)
}

// WithLogger sets the logger handed to every stage of the run.
func WithLogger(l log.Logger) Option {
	return func(c *runConfig) {
		c.logger = l
	}
}

// WithProgress registers a callback invoked after each method.
func WithProgress(fn func(Progress)) Option {
	return func(c *runConfig) {
		c.progress = fn
	}
}

// Run loads the dataset named by cfg, drops the id and redundant columns,
// trains the selected methods one after another on the same folds, scores
// each final model on every row and compares them. When cfg.OutputDir is
// set the outputs are written there before returning.
//
// Any failure ends the run; no partial report is returned.
func Run(ctx context.Context, cfg Config, opts ...Option) (*Report, error) {
	rc := &runConfig{}
	for _, opt := range opts {
		opt(rc)
	}
	if rc.logger == nil {
		rc.logger = log.GetLoggerWithName("analysis")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:   uuid.New(),
		Started: time.Now(),
		Models:  make(map[string]*modelselection.TrainedModel),
		Scores:  make(map[string]*evaluation.Score),
	}
	logger := rc.logger.With(log.RunIDKey, report.RunID.String())

	frame, err := loadFrame(cfg, logger)
	if err != nil {
		logger.Error("loading failed", err, log.SourceKey, cfg.DataPath)
		return nil, err
	}
	report.Formula, err = dataset.All(cfg.Target).Resolve(frame)
	if err != nil {
		return nil, err
	}
	report.Samples = frame.NRows()
	report.Features = len(report.Formula.Features)

	methods := cfg.BuildMethods()
	scorer := evaluation.NewScorer(evaluation.WithScorerLogger(logger))
	comparator := evaluation.NewComparator()

	logger.Info("run started",
		log.OperationKey, log.OperationCompare,
		log.SamplesKey, report.Samples,
		log.ColumnsKey, frame.NCols(),
		log.FoldsKey, cfg.CV.Folds,
		log.RandomSeedKey, cfg.CV.Seed,
	)
	for i, m := range methods {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tm, err := modelselection.Train(ctx, frame, report.Formula, m, cfg.CV, modelselection.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		score, err := scorer.ScoreTrained(tm, frame)
		if err != nil {
			return nil, err
		}
		if err := comparator.AddResult(tm, score); err != nil {
			return nil, err
		}
		report.Models[m.Name()] = tm
		report.Scores[m.Name()] = score

		if rc.progress != nil {
			rc.progress(Progress{
				Method:  m.Name(),
				Done:    i + 1,
				Total:   len(methods),
				Elapsed: time.Since(report.Started),
			})
		}
	}

	report.Comparison = comparator.Table()
	report.Best, _ = comparator.Best()
	report.Elapsed = time.Since(report.Started)

	if cfg.OutputDir != "" {
		if err := report.WriteOutputs(cfg.OutputDir, cfg.Charts, cfg.SaveModels); err != nil {
			logger.Error("writing outputs failed", err)
			return nil, err
		}
	}

	logger.Info("run finished",
		log.MethodKey, report.Best.Method,
		log.HyperParamsKey, report.Best.Params,
		log.RMSEKey, report.Best.CVRMSE,
		log.RMSLEKey, report.Best.RMSLE,
		log.DurationMsKey, report.Elapsed.Milliseconds(),
	)
	return report, nil
}

func loadFrame(cfg Config, logger log.Logger) (*dataset.Frame, error) {
	opts := []dataset.LoadOption{dataset.WithLogger(logger)}
	if len(cfg.CategoricalColumns) > 0 {
		opts = append(opts, dataset.WithCategorical(cfg.CategoricalColumns...))
	}
	if len(cfg.NAValues) > 0 {
		opts = append(opts, dataset.WithNAValues(cfg.NAValues...))
	}
	frame, err := dataset.LoadCSV(cfg.DataPath, opts...)
	if err != nil {
		return nil, err
	}

	var drop []string
	if cfg.IDColumn != "" {
		drop = append(drop, cfg.IDColumn)
	}
	drop = append(drop, cfg.DropColumns...)
	if len(drop) == 0 {
		return frame, nil
	}
	return frame.Drop(drop...)
}
