package dataset

import (
	"slices"

	"github.com/YuminosukeSato/housecv/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Design is the numeric encoding of a resolved formula over a frame.
//
// Numeric features map to one column each. Categorical features are
// treatment coded: one 0/1 column per level except the first (sorted)
// level, named feature+level. The encoding is fixed on the whole frame,
// so every row subset shares the same columns.
type Design struct {
	Formula Formula
	X       *mat.Dense
	Y       *mat.VecDense
	Columns []string
	// Terms maps each encoded column to its index in Formula.Features.
	Terms []int

	factors []factor
}

// factor is a categorical feature coded against a level list.
type factor struct {
	name   string
	levels []string
	codes  []int
}

// DesignOption configures NewDesign.
type DesignOption func(*designConfig)

type designConfig struct {
	levels map[string][]string
}

// WithLevels codes the named categorical features against the given level
// lists instead of the levels found in the frame, so that a frame loaded
// later encodes to the same columns as the training frame. A row whose
// level is not in the list gives an UnseenLevelError with fold 0.
func WithLevels(levels map[string][]string) DesignOption {
	return func(c *designConfig) {
		c.levels = levels
	}
}

// NewDesign encodes frame according to formula.
func NewDesign(frame *Frame, formula Formula, opts ...DesignOption) (*Design, error) {
	cfg := &designConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	resolved, err := formula.Resolve(frame)
	if err != nil {
		return nil, err
	}
	n := frame.NRows()
	if n == 0 {
		return nil, errors.NewModelError("NewDesign", "empty data", errors.ErrEmptyData)
	}

	d := &Design{Formula: resolved}
	var data [][]float64
	for t, name := range resolved.Features {
		col, _ := frame.Column(name)
		fixed, hasFixed := cfg.levels[name]
		switch {
		case col.Kind == Numeric && hasFixed:
			return nil, errors.NewValidationError(name, "expected a categorical column", col.Kind.String())
		case col.Kind == Numeric:
			d.Columns = append(d.Columns, name)
			d.Terms = append(d.Terms, t)
			data = append(data, col.Floats)
		default:
			f := factor{name: name, levels: col.Levels, codes: col.Codes}
			if hasFixed {
				if f, err = recode(col, fixed); err != nil {
					return nil, err
				}
			}
			d.factors = append(d.factors, f)
			for level := 1; level < len(f.levels); level++ {
				dummy := make([]float64, n)
				for i, code := range f.codes {
					if code == level {
						dummy[i] = 1
					}
				}
				d.Columns = append(d.Columns, name+f.levels[level])
				d.Terms = append(d.Terms, t)
				data = append(data, dummy)
			}
		}
	}
	if len(data) == 0 {
		return nil, errors.NewValidationError("features", "no encoded columns (every categorical feature has a single level)", resolved.String())
	}

	d.X = mat.NewDense(n, len(data), nil)
	for j, col := range data {
		d.X.SetCol(j, col)
	}
	if err := errors.CheckMatrix("NewDesign", d.X, n, len(data), 0); err != nil {
		return nil, err
	}
	target, _ := frame.Column(resolved.Target)
	if err := errors.CheckNumericalStability("NewDesign", target.Floats, 0); err != nil {
		return nil, err
	}
	d.Y = mat.NewVecDense(n, append([]float64(nil), target.Floats...))
	return d, nil
}

// recode maps the rows of col onto levels.
func recode(col *Column, levels []string) (factor, error) {
	lookup := make(map[string]int, len(levels))
	for i, l := range levels {
		lookup[l] = i
	}
	codes := make([]int, col.Len())
	for i := range codes {
		code, ok := lookup[col.Level(i)]
		if !ok {
			return factor{}, errors.NewUnseenLevelError(col.Name, col.Level(i), 0)
		}
		codes[i] = code
	}
	return factor{name: col.Name, levels: slices.Clone(levels), codes: codes}, nil
}

// Levels returns the level list of every categorical feature, keyed by
// feature name. Pass it to WithLevels to reproduce the encoding.
func (d *Design) Levels() map[string][]string {
	out := make(map[string][]string, len(d.factors))
	for _, f := range d.factors {
		out[f.name] = slices.Clone(f.levels)
	}
	return out
}

// NRows returns the number of encoded rows.
func (d *Design) NRows() int {
	r, _ := d.X.Dims()
	return r
}

// NCols returns the number of encoded columns.
func (d *Design) NCols() int {
	_, c := d.X.Dims()
	return c
}

// Rows copies the given rows of X and Y. idx must be non-empty.
func (d *Design) Rows(idx []int) (*mat.Dense, *mat.VecDense) {
	X := mat.NewDense(len(idx), d.NCols(), nil)
	y := mat.NewVecDense(len(idx), nil)
	for k, i := range idx {
		X.SetRow(k, d.X.RawRowView(i))
		y.SetVec(k, d.Y.AtVec(i))
	}
	return X, y
}

// CheckLevels returns an UnseenLevelError for the first categorical level
// that occurs in the test rows but not in the training rows. fold is
// reported in the error.
func (d *Design) CheckLevels(train, test []int, fold int) error {
	for _, f := range d.factors {
		seen := make([]bool, len(f.levels))
		for _, i := range train {
			seen[f.codes[i]] = true
		}
		for _, i := range test {
			if !seen[f.codes[i]] {
				return errors.NewUnseenLevelError(f.name, f.levels[f.codes[i]], fold)
			}
		}
	}
	return nil
}
