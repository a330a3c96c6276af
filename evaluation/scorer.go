// Package evaluation scores fitted models on the full dataset and
// assembles the per-method comparison table, with text, CSV and chart
// renderings of it.
package evaluation

import (
	"github.com/YuminosukeSato/housecv/core/model"
	"github.com/YuminosukeSato/housecv/dataset"
	"github.com/YuminosukeSato/housecv/metrics"
	"github.com/YuminosukeSato/housecv/modelselection"
	"github.com/YuminosukeSato/housecv/pkg/errors"
	"github.com/YuminosukeSato/housecv/pkg/log"
	"gonum.org/v1/gonum/mat"
)

// Score is the in-sample evaluation of one fitted model.
type Score struct {
	Method      string
	Predictions []float64
	Actual      []float64
	// Residuals are prediction minus actual.
	Residuals []float64
	// RMSLE is sqrt(mean((|prediction| − actual)²)); on a log-transformed
	// target it equals the RMSE of the log values.
	RMSLE float64
}

// Scorer computes predictions, residuals and RMSLE. It has no state, so
// scoring the same model on the same data twice gives identical results.
type Scorer struct {
	logger log.Logger
}

// ScorerOption configures a Scorer.
type ScorerOption func(*Scorer)

// WithScorerLogger sets the scorer's logger.
func WithScorerLogger(l log.Logger) ScorerOption {
	return func(s *Scorer) {
		s.logger = l
	}
}

// NewScorer creates a scorer.
func NewScorer(opts ...ScorerOption) *Scorer {
	s := &Scorer{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.GetLoggerWithName("evaluation")
	}
	return s
}

// Score predicts every row of X and compares the predictions with y.
func (s *Scorer) Score(method string, p model.Predictor, X, y mat.Matrix) (*Score, error) {
	out, err := p.Predict(X)
	if err != nil {
		return nil, errors.Wrapf(err, "housecv: score %s", method)
	}
	pred, err := metrics.ColumnVector("Scorer.Score", out)
	if err != nil {
		return nil, err
	}
	actual, err := metrics.ColumnVector("Scorer.Score", y)
	if err != nil {
		return nil, err
	}
	rmsle, err := metrics.RMSLE(actual, pred)
	if err != nil {
		return nil, err
	}
	residuals, err := metrics.Residuals(actual, pred)
	if err != nil {
		return nil, err
	}

	s.logger.Info("model scored",
		log.MethodKey, method,
		log.OperationKey, log.OperationScore,
		log.SamplesKey, pred.Len(),
		log.RMSLEKey, rmsle,
	)
	return &Score{
		Method:      method,
		Predictions: mat.Col(nil, 0, pred),
		Actual:      mat.Col(nil, 0, actual),
		Residuals:   residuals,
		RMSLE:       rmsle,
	}, nil
}

// ScoreTrained encodes frame with the trained model's formula and scores
// its final model on every row.
func (s *Scorer) ScoreTrained(tm *modelselection.TrainedModel, frame *dataset.Frame) (*Score, error) {
	d, err := tm.Design(frame)
	if err != nil {
		return nil, err
	}
	return s.Score(tm.Method, tm.Final, d.X, d.Y)
}
