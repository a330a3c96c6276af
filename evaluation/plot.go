package evaluation

import (
	"github.com/YuminosukeSato/housecv/modelselection"
	"github.com/YuminosukeSato/housecv/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// errPoints pairs bar centres with their ± SD extent.
type errPoints struct {
	plotter.XYs
	plotter.YErrors
}

// PlotComparison saves a bar chart of CV RMSE per method with ±1 SD error
// bars. The format follows the file extension (png, svg, pdf, ...).
func PlotComparison(cmp Comparison, path string) error {
	if len(cmp.Rows) == 0 {
		return errors.NewModelError("PlotComparison", "empty comparison", errors.ErrEmptyData)
	}
	p := plot.New()
	p.Title.Text = "Cross-validated RMSE by method"
	p.Y.Label.Text = "RMSE"

	values := make(plotter.Values, len(cmp.Rows))
	pts := errPoints{
		XYs:     make(plotter.XYs, len(cmp.Rows)),
		YErrors: make(plotter.YErrors, len(cmp.Rows)),
	}
	for i, r := range cmp.Rows {
		values[i] = r.CVRMSE
		pts.XYs[i] = plotter.XY{X: float64(i), Y: r.CVRMSE}
		pts.YErrors[i].Low = r.CVRMSESD
		pts.YErrors[i].High = r.CVRMSESD
	}

	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return errors.Wrap(err, "housecv: comparison bars")
	}
	bars.LineStyle.Width = vg.Length(0)
	bars.Color = plotutil.Color(0)
	errBars, err := plotter.NewYErrorBars(pts)
	if err != nil {
		return errors.Wrap(err, "housecv: comparison error bars")
	}
	p.Add(bars, errBars, plotter.NewGrid())
	p.NominalX(cmp.Methods()...)

	return save(p, 8*vg.Inch, 4*vg.Inch, path)
}

// PlotResiduals saves a scatter of residuals against predictions with a
// zero reference line.
func PlotResiduals(score *Score, path string) error {
	if len(score.Predictions) == 0 {
		return errors.NewModelError("PlotResiduals", "empty score", errors.ErrEmptyData)
	}
	p := plot.New()
	p.Title.Text = "Residuals: " + score.Method
	p.X.Label.Text = "Prediction"
	p.Y.Label.Text = "Residual"

	xys := make(plotter.XYs, len(score.Predictions))
	for i := range xys {
		xys[i] = plotter.XY{X: score.Predictions[i], Y: score.Residuals[i]}
	}
	scatter, err := plotter.NewScatter(xys)
	if err != nil {
		return errors.Wrap(err, "housecv: residual scatter")
	}
	scatter.GlyphStyle.Radius = vg.Points(1.5)

	zero := plotter.NewFunction(func(float64) float64 { return 0 })
	zero.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	p.Add(scatter, zero, plotter.NewGrid())
	return save(p, 6*vg.Inch, 4*vg.Inch, path)
}

// PlotProfile saves the mean CV RMSE of each grid tuple of a method, with
// ±1 SD error bars, in grid order.
func PlotProfile(tm *modelselection.TrainedModel, path string) error {
	p := plot.New()
	p.Title.Text = "Cross-validation profile: " + tm.Method
	p.X.Label.Text = "Grid index"
	p.Y.Label.Text = "RMSE"

	pts := errPoints{
		XYs:     make(plotter.XYs, len(tm.Results)),
		YErrors: make(plotter.YErrors, len(tm.Results)),
	}
	for i, r := range tm.Results {
		pts.XYs[i] = plotter.XY{X: float64(i), Y: r.RMSE}
		pts.YErrors[i].Low = r.RMSESD
		pts.YErrors[i].High = r.RMSESD
	}
	line, points, err := plotter.NewLinePoints(pts.XYs)
	if err != nil {
		return errors.Wrap(err, "housecv: profile line")
	}
	errBars, err := plotter.NewYErrorBars(pts)
	if err != nil {
		return errors.Wrap(err, "housecv: profile error bars")
	}
	p.Add(line, points, errBars, plotter.NewGrid())
	return save(p, 6*vg.Inch, 4*vg.Inch, path)
}

func save(p *plot.Plot, w, h vg.Length, path string) error {
	if err := p.Save(w, h, path); err != nil {
		return errors.Wrapf(err, "housecv: save plot %s", path)
	}
	return nil
}
