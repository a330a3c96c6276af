package linear

// Option is a function that configures LinearRegression
type Option func(*LinearRegression)

// WithFitIntercept sets whether to calculate the intercept
func WithFitIntercept(fit bool) Option {
	return func(lr *LinearRegression) {
		lr.FitIntercept = fit
	}
}

// WithRankTol sets the relative singular value cutoff used to determine
// the rank of the design matrix
func WithRankTol(tol float64) Option {
	return func(lr *LinearRegression) {
		lr.RankTol = tol
	}
}

// ElasticNetOption is a function that configures ElasticNet
type ElasticNetOption func(*ElasticNet)

// WithMaxIter sets the maximum number of coordinate descent sweeps
func WithMaxIter(n int) ElasticNetOption {
	return func(en *ElasticNet) {
		en.MaxIter = n
	}
}

// WithTol sets the convergence tolerance, relative to the variance of y
func WithTol(tol float64) ElasticNetOption {
	return func(en *ElasticNet) {
		en.Tol = tol
	}
}

// StepwiseOption is a function that configures Stepwise
type StepwiseOption func(*Stepwise)

// WithAliasTol sets the relative tolerance below which a column is treated
// as a linear combination of the columns already in the model
func WithAliasTol(tol float64) StepwiseOption {
	return func(s *Stepwise) {
		s.AliasTol = tol
	}
}
