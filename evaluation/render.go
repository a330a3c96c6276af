package evaluation

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/YuminosukeSato/housecv/modelselection"
	"github.com/YuminosukeSato/housecv/pkg/errors"
	"github.com/olekukonko/tablewriter"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 5, 64)
}

// RenderTable writes the comparison as a text table.
func RenderTable(w io.Writer, cmp Comparison) error {
	table := tablewriter.NewWriter(w)
	table.Header("Method", "Params", "CV RMSE", "CV RMSE SD", "RMSLE")
	for _, r := range cmp.Rows {
		err := table.Append([]string{
			r.Method,
			r.Params,
			formatFloat(r.CVRMSE),
			formatFloat(r.CVRMSESD),
			formatFloat(r.RMSLE),
		})
		if err != nil {
			return errors.Wrap(err, "housecv: render comparison")
		}
	}
	return errors.Wrap(table.Render(), "housecv: render comparison")
}

// RenderResults writes the cross-validation results table of one method,
// one line per grid tuple, marking the selected tuple.
func RenderResults(w io.Writer, tm *modelselection.TrainedModel) error {
	table := tablewriter.NewWriter(w)
	table.Header("#", "Params", "RMSE", "RMSE SD", "Rsquared", "MAE", "")
	for i, r := range tm.Results {
		mark := ""
		if i == tm.BestIndex {
			mark = "*"
		}
		err := table.Append([]string{
			strconv.Itoa(i),
			r.Params.String(),
			formatFloat(r.RMSE),
			formatFloat(r.RMSESD),
			formatFloat(r.Rsquared),
			formatFloat(r.MAE),
			mark,
		})
		if err != nil {
			return errors.Wrapf(err, "housecv: render %s results", tm.Method)
		}
	}
	return errors.Wrapf(table.Render(), "housecv: render %s results", tm.Method)
}

// WriteCSV writes the comparison with a header row.
func WriteCSV(w io.Writer, cmp Comparison) error {
	cw := csv.NewWriter(w)
	records := [][]string{{"method", "params", "cv_rmse", "cv_rmse_sd", "rmsle"}}
	for _, r := range cmp.Rows {
		records = append(records, []string{
			r.Method,
			r.Params,
			strconv.FormatFloat(r.CVRMSE, 'g', -1, 64),
			strconv.FormatFloat(r.CVRMSESD, 'g', -1, 64),
			strconv.FormatFloat(r.RMSLE, 'g', -1, 64),
		})
	}
	return errors.Wrap(cw.WriteAll(records), "housecv: write comparison csv")
}
