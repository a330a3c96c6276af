// Package model provides the estimator interfaces shared by the linear and
// tree packages and by the cross-validation trainer.
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Scorer is the interface for models that can compute a score.
type Scorer interface {
	// Score returns the coefficient of determination R^2 of the prediction.
	Score(X mat.Matrix, y mat.Matrix) (float64, error)
}

// Regressor combines interfaces for regression models.
type Regressor interface {
	Estimator
	Scorer
}

// LinearModel is implemented by regressors whose prediction is an affine
// function of the design columns.
type LinearModel interface {
	// Coefficients returns one coefficient per design column on the
	// original (unstandardised) scale.
	Coefficients() []float64
	// InterceptValue returns the fitted intercept.
	InterceptValue() float64
}

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	// GetParams returns the model's hyperparameters.
	GetParams() map[string]interface{}
}
