// Package modelselection trains a regression method under k-fold
// cross-validation, evaluates its hyperparameter grid, selects the tuple
// with the lowest mean held-out RMSE and refits it on every row.
package modelselection

import (
	"fmt"
	"sync"

	"github.com/YuminosukeSato/housecv/pkg/errors"
	"github.com/go-playground/validator/v10"
)

// Config is the cross-validation configuration shared, read-only, by every
// Train call of a run. Equal configurations give identical fold
// assignments, which makes results of different methods comparable.
type Config struct {
	// Folds is the number of folds k.
	Folds int `mapstructure:"folds" validate:"gte=2"`
	// Seed drives the fold shuffle.
	Seed uint64 `mapstructure:"seed"`
	// SavePredictions keeps every held-out prediction in the result.
	SavePredictions bool `mapstructure:"save_predictions"`
	// Parallel evaluates the folds of a tuple concurrently.
	Parallel bool `mapstructure:"parallel"`
	// Workers bounds the goroutines used when Parallel is set; 0 means NumCPU.
	Workers int `mapstructure:"workers" validate:"gte=0"`
	// StrictLevels fails a run whose test fold holds a categorical level
	// absent from its training rows. When unset the level's dummy column is
	// simply constant in that fold.
	StrictLevels bool `mapstructure:"strict_levels"`
}

// DefaultConfig returns 10-fold cross-validation with seed 1 and strict
// level checking.
func DefaultConfig() Config {
	return Config{
		Folds:        10,
		Seed:         1,
		StrictLevels: true,
	}
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared struct validator.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateStruct checks the validate tags of s and converts the first
// violation into a ValidationError.
func ValidateStruct(s interface{}) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		reason := fe.Tag()
		if fe.Param() != "" {
			reason = fmt.Sprintf("%s=%s", fe.Tag(), fe.Param())
		}
		return errors.NewValidationError(fe.Namespace(), "violates "+reason, fe.Value())
	}
	return errors.Wrap(err, "housecv: validate configuration")
}

// Validate checks the configuration.
func (c Config) Validate() error {
	return ValidateStruct(c)
}
