// Package log defines standard attribute keys for model-selection runs.
//
// Using these keys keeps log records from the loader, the cross-validation
// trainer and the comparator queryable with the same field names
// (e.g. filter on "ml.method" to follow one estimator through a run).

package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator type, e.g. "ElasticNet".
	ModelNameKey = "model.name"

	// MethodKey identifies a workflow method variant, e.g. "lasso" or "forward_stepwise".
	MethodKey = "ml.method"

	// RunIDKey identifies one end-to-end analysis run.
	RunIDKey = "run.id"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "score", "cross_validate", "load".
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging, e.g. "modelselection".
	ComponentKey = "ml.component"

	// PhaseKey indicates the lifecycle phase, e.g. "training" or "validation".
	PhaseKey = "ml.phase"
)

// Data shape.
const (
	// SamplesKey is the number of rows being processed.
	SamplesKey = "data.samples"

	// FeaturesKey is the number of encoded feature columns.
	FeaturesKey = "data.features"

	// ColumnsKey is the number of raw table columns.
	ColumnsKey = "data.columns"

	// SourceKey is the path of the loaded file.
	SourceKey = "data.source"
)

// Cross-validation.
const (
	// FoldKey is the 1-based fold index.
	FoldKey = "cv.fold"

	// FoldsKey is the configured fold count.
	FoldsKey = "cv.folds"

	// GridSizeKey is the number of hyperparameter tuples evaluated.
	GridSizeKey = "cv.grid_size"

	// GridIndexKey is the 0-based position of a tuple in its grid.
	GridIndexKey = "cv.grid_index"

	// HyperParamsKey holds the rendered hyperparameter tuple.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the fold-assignment seed.
	RandomSeedKey = "config.random_seed"
)

// Metrics and timing.
const (
	RMSEKey       = "metrics.rmse"
	RMSESDKey     = "metrics.rmse_sd"
	RMSLEKey      = "metrics.rmsle"
	R2ScoreKey    = "metrics.r2_score"
	DurationMsKey = "perf.duration_ms"
	IterationKey  = "training.iteration"
)

// Error context.
const (
	ErrorCodeKey  = "error.code"
	SuggestionKey = "error.suggestion"
)

// Standard attribute values.
const (
	OperationFit           = "fit"
	OperationPredict       = "predict"
	OperationScore         = "score"
	OperationCrossValidate = "cross_validate"
	OperationLoad          = "load"
	OperationCompare       = "compare"

	PhaseTraining   = "training"
	PhaseValidation = "validation"
	PhaseReporting  = "reporting"

	ErrorConvergence = "CONVERGENCE_FAILURE"
	ErrorUnseenLevel = "UNSEEN_LEVEL"
)
