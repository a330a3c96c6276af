// Package housecv compares regression methods for house-price prediction
// under shared k-fold cross-validation.
//
// A run loads a preprocessed housing table whose target is already
// log-transformed, trains eight methods on exactly the same folds, picks
// each method's hyperparameters by the lowest mean held-out RMSE, refits
// the winner on every row and compares the methods side by side.
//
// # Methods
//
//   - full_ols: ordinary least squares on every explanatory column
//   - manual_ols: OLS on eleven hand-picked columns
//   - forward_stepwise / backward_stepwise: BIC-driven selection, tuned by nvmax
//   - ridge, lasso, elastic_net: penalised least squares, tuned by lambda (and alpha)
//   - decision_tree: CART regression tree, tuned by the complexity parameter cp
//
// # Quick Start
//
//	housecv run --data train_preprocessed.csv --target SalePrice --output out/
//
// or from Go:
//
//	cfg := analysis.DefaultConfig()
//	cfg.DataPath = "train_preprocessed.csv"
//	report, err := analysis.Run(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	evaluation.RenderTable(os.Stdout, report.Comparison)
//
// # Packages
//
//   - dataset: gota-backed CSV loading, column table, formula and design-matrix encoding
//   - modelselection: k-fold splitting, method variants, grids and Train
//   - evaluation: in-sample scoring, comparison table, tables and charts
//   - analysis: the end-to-end workflow and its configuration
//   - linear: OLS, elastic net (ridge and LASSO) and stepwise selection
//   - tree: regression tree with cost-complexity pruning
//   - metrics: RMSE, MAE, R², RMSLE and residuals
//   - preprocessing: column standardisation
//   - core/model, core/parallel: estimator interfaces, persistence, fan-out
//   - pkg/errors, pkg/log: error taxonomy and structured logging
//
// # Error Handling
//
// Errors carry stack traces (cockroachdb/errors) and a typed cause that can
// be matched with errors.As: ValidationError for configuration, ParseError
// and ColumnNotFoundError for data, UnseenLevelError, DimensionError and
// ModelError for fitting. Every error ends the run; there are no partial
// results. Solver non-convergence is a ConvergenceWarning routed to the
// logger.
//
// # Logging
//
// Packages log through pkg/log, whose default provider is zerolog. Replace
// it with log.SetProvider, e.g. log.NewSlogProvider for slog JSON output.
package housecv
