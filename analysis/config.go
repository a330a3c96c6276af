// Package analysis runs the end-to-end comparison: it loads the housing
// dataset, trains every regression method under one cross-validation
// configuration, scores the final models in-sample and collects the
// comparison table.
package analysis

import (
	"github.com/YuminosukeSato/housecv/modelselection"
	"github.com/YuminosukeSato/housecv/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// Method names accepted by Config.Methods.
const (
	MethodFullOLS          = "full_ols"
	MethodManualOLS        = "manual_ols"
	MethodForwardStepwise  = "forward_stepwise"
	MethodBackwardStepwise = "backward_stepwise"
	MethodRidge            = "ridge"
	MethodLasso            = "lasso"
	MethodElasticNet       = "elastic_net"
	MethodDecisionTree     = "decision_tree"
)

// AllMethods lists every method in run order.
var AllMethods = []string{
	MethodFullOLS,
	MethodManualOLS,
	MethodForwardStepwise,
	MethodBackwardStepwise,
	MethodRidge,
	MethodLasso,
	MethodElasticNet,
	MethodDecisionTree,
}

// DefaultManualFeatures are the eleven columns of the manually reduced OLS.
var DefaultManualFeatures = []string{
	"OverallQual",
	"GrLivArea",
	"GarageCars",
	"TotalBsmtSF",
	"1stFlrSF",
	"FullBath",
	"YearBuilt",
	"YearRemodAdd",
	"Fireplaces",
	"LotArea",
	"OverallCond",
}

// DefaultDropColumns are categorical columns that duplicate information
// carried by other columns or are nearly constant.
var DefaultDropColumns = []string{
	"Street",
	"Utilities",
	"Condition2",
	"RoofMatl",
	"Heating",
}

// Grids holds the hyperparameter values of the tuned methods.
type Grids struct {
	MaxVars           []int     `mapstructure:"max_vars" validate:"min=1,dive,gte=1"`
	RidgeLambdas      []float64 `mapstructure:"ridge_lambdas" validate:"min=1,dive,gte=0"`
	LassoLambdas      []float64 `mapstructure:"lasso_lambdas" validate:"min=1,dive,gte=0"`
	ElasticNetAlphas  []float64 `mapstructure:"elastic_net_alphas" validate:"min=1,dive,gte=0,lte=1"`
	ElasticNetLambdas []float64 `mapstructure:"elastic_net_lambdas" validate:"min=1,dive,gte=0"`
	TreeCPs           []float64 `mapstructure:"tree_cps" validate:"min=1,dive,gte=0"`
}

// Config describes one run.
type Config struct {
	// DataPath is the preprocessed CSV file.
	DataPath string `mapstructure:"data" validate:"required"`
	// IDColumn is dropped after loading when set.
	IDColumn string `mapstructure:"id_column"`
	// Target is the (log-transformed) response column.
	Target string `mapstructure:"target" validate:"required"`
	// DropColumns are removed together with IDColumn.
	DropColumns []string `mapstructure:"drop_columns" validate:"dive,required"`
	// CategoricalColumns are read as categorical even if they parse as numbers.
	CategoricalColumns []string `mapstructure:"categorical_columns" validate:"dive,required"`
	// NAValues are the cells treated as missing; empty keeps the loader default.
	NAValues []string `mapstructure:"na_values"`
	// ManualFeatures are the columns of the manually reduced OLS.
	ManualFeatures []string `mapstructure:"manual_features" validate:"min=1,dive,required"`
	// Methods restricts the run to a subset; empty runs all eight.
	Methods []string `mapstructure:"methods" validate:"dive,oneof=full_ols manual_ols forward_stepwise backward_stepwise ridge lasso elastic_net decision_tree"`

	CV    modelselection.Config `mapstructure:"cv"`
	Grids Grids                 `mapstructure:"grids"`

	// OutputDir receives comparison.csv and, when enabled, charts and
	// saved models. Nothing is written when empty.
	OutputDir  string `mapstructure:"output_dir"`
	Charts     bool   `mapstructure:"charts"`
	SaveModels bool   `mapstructure:"save_models"`
}

// DefaultConfig returns the configuration of the reference analysis:
// 10-fold CV with seed 1 and the grids below.
//
//	stepwise     nvmax 1..20
//	ridge        lambda 10^-3..10^1
//	lasso        lambda 10^-4..10^0
//	elastic net  alpha 0, 0.1, ..., 1 × lambda 10^-4..10^0
//	tree         cp 0.0001, 0.001, 0.01, 0.1, 1
func DefaultConfig() Config {
	return Config{
		DataPath:       "train_preprocessed.csv",
		IDColumn:       "Id",
		Target:         "SalePrice",
		DropColumns:    append([]string(nil), DefaultDropColumns...),
		ManualFeatures: append([]string(nil), DefaultManualFeatures...),
		CV:             modelselection.DefaultConfig(),
		Grids: Grids{
			MaxVars:           lo.RangeFrom(1, 20),
			RidgeLambdas:      []float64{0.001, 0.01, 0.1, 1, 10},
			LassoLambdas:      []float64{0.0001, 0.001, 0.01, 0.1, 1},
			ElasticNetAlphas:  lo.Map(lo.Range(11), func(i int, _ int) float64 { return float64(i) / 10 }),
			ElasticNetLambdas: []float64{0.0001, 0.001, 0.01, 0.1, 1},
			TreeCPs:           []float64{0.0001, 0.001, 0.01, 0.1, 1},
		},
		OutputDir: "",
		Charts:    true,
	}
}

// Validate checks the struct tags of c, including the nested CV settings.
func (c Config) Validate() error {
	if err := modelselection.ValidateStruct(c); err != nil {
		return err
	}
	if lo.Contains(c.DropColumns, c.Target) || c.IDColumn == c.Target {
		return errors.NewValidationError("Config.Target", "must not be dropped", c.Target)
	}
	return nil
}

// BuildMethods returns the methods selected by c in run order.
func (c Config) BuildMethods() []modelselection.Method {
	all := []modelselection.Method{
		modelselection.FullOLS{},
		modelselection.ManualOLS{Features: c.ManualFeatures},
		modelselection.ForwardStepwise{MaxVars: c.Grids.MaxVars},
		modelselection.BackwardStepwise{MaxVars: c.Grids.MaxVars},
		modelselection.Ridge{Lambdas: c.Grids.RidgeLambdas},
		modelselection.Lasso{Lambdas: c.Grids.LassoLambdas},
		modelselection.ElasticNet{Alphas: c.Grids.ElasticNetAlphas, Lambdas: c.Grids.ElasticNetLambdas},
		modelselection.DecisionTree{CPs: c.Grids.TreeCPs},
	}
	if len(c.Methods) == 0 {
		return all
	}
	return lo.Filter(all, func(m modelselection.Method, _ int) bool {
		return lo.Contains(c.Methods, m.Name())
	})
}

// SetDefaults registers every key of DefaultConfig on v so that config
// files, environment variables and flags only need to override what
// differs.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("data", d.DataPath)
	v.SetDefault("id_column", d.IDColumn)
	v.SetDefault("target", d.Target)
	v.SetDefault("drop_columns", d.DropColumns)
	v.SetDefault("categorical_columns", d.CategoricalColumns)
	v.SetDefault("na_values", d.NAValues)
	v.SetDefault("manual_features", d.ManualFeatures)
	v.SetDefault("methods", d.Methods)

	v.SetDefault("cv.folds", d.CV.Folds)
	v.SetDefault("cv.seed", d.CV.Seed)
	v.SetDefault("cv.save_predictions", d.CV.SavePredictions)
	v.SetDefault("cv.parallel", d.CV.Parallel)
	v.SetDefault("cv.workers", d.CV.Workers)
	v.SetDefault("cv.strict_levels", d.CV.StrictLevels)

	v.SetDefault("grids.max_vars", d.Grids.MaxVars)
	v.SetDefault("grids.ridge_lambdas", d.Grids.RidgeLambdas)
	v.SetDefault("grids.lasso_lambdas", d.Grids.LassoLambdas)
	v.SetDefault("grids.elastic_net_alphas", d.Grids.ElasticNetAlphas)
	v.SetDefault("grids.elastic_net_lambdas", d.Grids.ElasticNetLambdas)
	v.SetDefault("grids.tree_cps", d.Grids.TreeCPs)

	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("charts", d.Charts)
	v.SetDefault("save_models", d.SaveModels)
}

// LoadConfig decodes and validates the configuration held by v. Call
// SetDefaults on v first.
func LoadConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "housecv: decode configuration")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfigFile reads a YAML, TOML or JSON file on top of the defaults.
func LoadConfigFile(path string) (Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, errors.Wrapf(err, "housecv: read config %s", path)
	}
	return LoadConfig(v)
}
