package analysis

import (
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/housecv/evaluation"
	"github.com/YuminosukeSato/housecv/modelselection"
	"github.com/YuminosukeSato/housecv/pkg/errors"
)

// Output file names inside the output directory.
const (
	ComparisonCSV   = "comparison.csv"
	ComparisonChart = "comparison.png"
)

// WriteOutputs writes comparison.csv to dir. With charts it adds the
// comparison bar chart plus one residual plot and one CV profile per
// method; with models it saves each trained model as <method>.gob.
func (r *Report) WriteOutputs(dir string, charts, models bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "housecv: create output directory %s", dir)
	}

	if err := writeFile(filepath.Join(dir, ComparisonCSV), func(f *os.File) error {
		return evaluation.WriteCSV(f, r.Comparison)
	}); err != nil {
		return err
	}

	if charts {
		if err := evaluation.PlotComparison(r.Comparison, filepath.Join(dir, ComparisonChart)); err != nil {
			return err
		}
		for _, name := range r.Comparison.Methods() {
			if err := evaluation.PlotResiduals(r.Scores[name], filepath.Join(dir, "residuals_"+name+".png")); err != nil {
				return err
			}
			if err := evaluation.PlotProfile(r.Models[name], filepath.Join(dir, "profile_"+name+".png")); err != nil {
				return err
			}
		}
	}

	if models {
		for _, name := range r.Comparison.Methods() {
			if err := modelselection.SaveModelFile(filepath.Join(dir, name+".gob"), r.Models[name]); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeFile(path string, fn func(f *os.File) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "housecv: create %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "housecv: close %s", path)
		}
	}()
	return fn(f)
}
