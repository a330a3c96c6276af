// Package dataset holds the in-memory table used by a model-selection run:
// a gota DataFrame loaded from delimited text, a formula naming the target
// and explanatory columns, and the numeric design matrix derived from both.
package dataset

import (
	"fmt"
	"slices"

	"github.com/YuminosukeSato/housecv/pkg/errors"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/samber/lo"
)

// Kind is the storage type of a column.
type Kind int

const (
	// Numeric columns hold float64 values.
	Numeric Kind = iota
	// Categorical columns hold level codes into a sorted level list.
	Categorical
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Column is one named column of a Frame.
//
// Numeric columns use Floats. Categorical columns use Levels (sorted,
// unique) and Codes, where Codes[i] indexes Levels.
type Column struct {
	Name   string
	Kind   Kind
	Floats []float64
	Levels []string
	Codes  []int
}

// Len returns the number of rows.
func (c *Column) Len() int {
	if c.Kind == Categorical {
		return len(c.Codes)
	}
	return len(c.Floats)
}

// Level returns the level label of row i of a categorical column.
func (c *Column) Level(i int) string {
	return c.Levels[c.Codes[i]]
}

// MissingLevel is the level label given to missing cells of a categorical
// column.
const MissingLevel = "NA"

// Frame is an immutable, ordered collection of equally long columns backed
// by a gota DataFrame. Operations that change the column set return a new
// Frame.
type Frame struct {
	df      dataframe.DataFrame
	columns []*Column
	index   map[string]int
	nRows   int
}

// NewFrame builds a frame from columns, checking that names are unique and
// lengths agree. Categorical columns keep only the levels that occur.
func NewFrame(columns ...*Column) (*Frame, error) {
	if dup := lo.FindDuplicates(lo.Map(columns, func(c *Column, _ int) string { return c.Name })); len(dup) > 0 {
		return nil, errors.NewValueError("NewFrame", fmt.Sprintf("duplicate column %q", dup[0]))
	}
	if len(columns) == 0 {
		return &Frame{index: map[string]int{}}, nil
	}
	n := columns[0].Len()
	list := make([]series.Series, len(columns))
	for i, c := range columns {
		if c.Len() != n {
			return nil, errors.NewDimensionError("NewFrame", n, c.Len(), 0)
		}
		if c.Kind == Categorical {
			labels := lo.Map(c.Codes, func(code, _ int) string { return c.Levels[code] })
			list[i] = series.New(labels, series.String, c.Name)
		} else {
			list[i] = series.New(c.Floats, series.Float, c.Name)
		}
	}
	return fromDataFrame("NewFrame", dataframe.New(list...))
}

// fromDataFrame wraps df, deriving a Column view for every series. Int and
// Float series are numeric; String and Bool series are categorical with
// their distinct labels sorted as levels.
func fromDataFrame(op string, df dataframe.DataFrame) (*Frame, error) {
	if df.Err != nil {
		return nil, errors.Wrapf(df.Err, "housecv: %s", op)
	}
	names := df.Names()
	f := &Frame{
		df:      df,
		columns: make([]*Column, len(names)),
		index:   make(map[string]int, len(names)),
		nRows:   df.Nrow(),
	}
	for i, name := range names {
		f.columns[i] = columnFromSeries(df.Col(name))
		f.index[name] = i
	}
	return f, nil
}

func columnFromSeries(s series.Series) *Column {
	switch s.Type() {
	case series.Int, series.Float:
		return &Column{Name: s.Name, Kind: Numeric, Floats: s.Float()}
	}
	labels := s.Records()
	for i, na := range s.IsNaN() {
		if na {
			labels[i] = MissingLevel
		}
	}
	levels := lo.Uniq(labels)
	slices.Sort(levels)
	lookup := make(map[string]int, len(levels))
	for i, l := range levels {
		lookup[l] = i
	}
	codes := lo.Map(labels, func(l string, _ int) int { return lookup[l] })
	return &Column{Name: s.Name, Kind: Categorical, Levels: levels, Codes: codes}
}

// NRows returns the number of rows.
func (f *Frame) NRows() int { return f.nRows }

// NCols returns the number of columns.
func (f *Frame) NCols() int { return len(f.columns) }

// Names returns the column names in order.
func (f *Frame) Names() []string {
	return lo.Map(f.columns, func(c *Column, _ int) string { return c.Name })
}

// Has reports whether the frame has a column with the given name.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column returns the named column.
func (f *Frame) Column(name string) (*Column, error) {
	i, ok := f.index[name]
	if !ok {
		return nil, errors.NewColumnNotFoundError("Frame.Column", name)
	}
	return f.columns[i], nil
}

// Drop returns a frame without the named columns. Every name must exist;
// the receiver is left unchanged.
func (f *Frame) Drop(names ...string) (*Frame, error) {
	missing := lo.Reject(names, func(n string, _ int) bool { return f.Has(n) })
	if len(missing) > 0 {
		return nil, errors.NewColumnNotFoundError("Frame.Drop", missing...)
	}
	if len(names) == 0 {
		return f, nil
	}
	if len(lo.Without(f.Names(), names...)) == 0 {
		// 全列を削除しても行数は保持する
		return &Frame{index: map[string]int{}, nRows: f.nRows}, nil
	}
	return fromDataFrame("Frame.Drop", f.df.Drop(lo.Uniq(names)))
}
