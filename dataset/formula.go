package dataset

import (
	"strings"

	"github.com/YuminosukeSato/housecv/pkg/errors"
	"github.com/samber/lo"
)

// Formula names the dependent variable and the explanatory columns.
// An empty Features list means every column other than Target.
type Formula struct {
	Target   string
	Features []string
}

// All returns a formula using every remaining column as a feature.
func All(target string) Formula {
	return Formula{Target: target}
}

// ParseFormula parses "target ~ a + b" or "target ~ .".
func ParseFormula(s string) (Formula, error) {
	lhs, rhs, ok := strings.Cut(s, "~")
	target := strings.TrimSpace(lhs)
	rhs = strings.TrimSpace(rhs)
	if !ok || target == "" || rhs == "" {
		return Formula{}, errors.NewValidationError("formula", "expected \"target ~ terms\"", s)
	}
	if rhs == "." {
		return All(target), nil
	}
	terms := lo.Map(strings.Split(rhs, "+"), func(t string, _ int) string { return strings.TrimSpace(t) })
	if lo.Contains(terms, "") {
		return Formula{}, errors.NewValidationError("formula", "empty term", s)
	}
	return Formula{Target: target, Features: terms}, nil
}

// String renders the formula in "target ~ terms" form.
func (f Formula) String() string {
	if len(f.Features) == 0 {
		return f.Target + " ~ ."
	}
	return f.Target + " ~ " + strings.Join(f.Features, " + ")
}

// Resolve checks the formula against a frame and returns a copy with the
// feature list made explicit. Absent columns give a ColumnNotFoundError;
// the target must be numeric and must not appear among the features.
func (f Formula) Resolve(frame *Frame) (Formula, error) {
	referenced := append([]string{f.Target}, f.Features...)
	if missing := lo.Reject(referenced, func(n string, _ int) bool { return frame.Has(n) }); len(missing) > 0 {
		return Formula{}, errors.NewColumnNotFoundError("Formula.Resolve", lo.Uniq(missing)...)
	}
	target, _ := frame.Column(f.Target)
	if target.Kind != Numeric {
		return Formula{}, errors.NewValidationError("target", "must be a numeric column", f.Target)
	}

	features := f.Features
	if len(features) == 0 {
		features = lo.Without(frame.Names(), f.Target)
	}
	if lo.Contains(features, f.Target) {
		return Formula{}, errors.NewValidationError("features", "must not include the target", f.Target)
	}
	if dup := lo.FindDuplicates(features); len(dup) > 0 {
		return Formula{}, errors.NewValidationError("features", "duplicate feature", dup[0])
	}
	if len(features) == 0 {
		return Formula{}, errors.NewValidationError("features", "no explanatory columns", f.String())
	}
	return Formula{Target: f.Target, Features: append([]string(nil), features...)}, nil
}
