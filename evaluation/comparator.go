package evaluation

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/housecv/modelselection"
	"github.com/YuminosukeSato/housecv/pkg/errors"
)

// ComparisonRow summarises one method: its best cross-validated RMSE with
// the SD across folds, and the in-sample RMSLE of its final model.
type ComparisonRow struct {
	Method   string
	Params   string
	CVRMSE   float64
	CVRMSESD float64
	RMSLE    float64
}

// Comparison is the per-method table in insertion order.
type Comparison struct {
	Rows []ComparisonRow
}

// Get returns the row of a method.
func (c Comparison) Get(method string) (ComparisonRow, bool) {
	for _, r := range c.Rows {
		if r.Method == method {
			return r, true
		}
	}
	return ComparisonRow{}, false
}

// Methods returns the method names in order.
func (c Comparison) Methods() []string {
	names := make([]string, len(c.Rows))
	for i, r := range c.Rows {
		names[i] = r.Method
	}
	return names
}

// Comparator collects one row per method.
type Comparator struct {
	rows  []ComparisonRow
	index map[string]int
}

// NewComparator creates an empty comparator.
func NewComparator() *Comparator {
	return &Comparator{index: make(map[string]int)}
}

// Add appends a row. A method may be added only once.
func (c *Comparator) Add(row ComparisonRow) error {
	if row.Method == "" {
		return errors.NewValidationError("method", "must not be empty", row.Method)
	}
	if _, dup := c.index[row.Method]; dup {
		return errors.NewValueError("Comparator.Add", fmt.Sprintf("method %q already added", row.Method))
	}
	c.index[row.Method] = len(c.rows)
	c.rows = append(c.rows, row)
	return nil
}

// AddResult adds the row built from a trained model and its score.
func (c *Comparator) AddResult(tm *modelselection.TrainedModel, s *Score) error {
	best := tm.BestResult()
	return c.Add(ComparisonRow{
		Method:   tm.Method,
		Params:   tm.Best.String(),
		CVRMSE:   best.RMSE,
		CVRMSESD: best.RMSESD,
		RMSLE:    s.RMSLE,
	})
}

// Len returns the number of rows.
func (c *Comparator) Len() int { return len(c.rows) }

// Table returns a copy of the collected rows.
func (c *Comparator) Table() Comparison {
	return Comparison{Rows: append([]ComparisonRow(nil), c.rows...)}
}

// Best returns the row with the lowest CV RMSE; ties keep the earliest row.
func (c *Comparator) Best() (ComparisonRow, bool) {
	if len(c.rows) == 0 {
		return ComparisonRow{}, false
	}
	best := 0
	for i := 1; i < len(c.rows); i++ {
		if c.rows[i].CVRMSE < c.rows[best].CVRMSE || math.IsNaN(c.rows[best].CVRMSE) {
			best = i
		}
	}
	return c.rows[best], true
}
