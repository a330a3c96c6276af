package main

import (
	"fmt"
	"maps"
	"slices"

	"github.com/YuminosukeSato/housecv/analysis"
	"github.com/YuminosukeSato/housecv/dataset"
	"github.com/YuminosukeSato/housecv/evaluation"
	"github.com/YuminosukeSato/housecv/modelselection"
	"github.com/YuminosukeSato/housecv/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var scoreBindings = map[string]string{
	"data":        "data",
	"id-column":   "id_column",
	"categorical": "categorical_columns",
	"na-values":   "na_values",
	"residuals":   "residuals",
}

func scoreDefaults(v *viper.Viper) {
	d := analysis.DefaultConfig()
	v.SetDefault("data", "")
	v.SetDefault("id_column", d.IDColumn)
	v.SetDefault("categorical_columns", []string{})
	v.SetDefault("na_values", d.NAValues)
	v.SetDefault("residuals", "")
}

func newScoreCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score MODEL",
		Short: "Re-score a saved model on a dataset",
		Long: "Loads a model written by \"run --save-models\" and reports its RMSLE on every row of\n" +
			"the dataset. Columns not used by the model are ignored. Categorical columns are coded\n" +
			"with the levels seen in training, so the dataset may lack some of them.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newViper(cmd, scoreDefaults, scoreBindings)
			if err != nil {
				return err
			}
			data := v.GetString("data")
			if data == "" {
				return errors.NewValidationError("data", "is required", data)
			}

			tm, err := modelselection.LoadModelFile(args[0])
			if err != nil {
				return err
			}
			frame, err := loadScoringFrame(data, tm, v)
			if err != nil {
				return err
			}
			score, err := evaluation.NewScorer().ScoreTrained(tm, frame)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s) on %s: %d rows, RMSLE %.5f\n",
				tm.Method, tm.Best, data, len(score.Predictions), score.RMSLE)
			if path := v.GetString("residuals"); path != "" {
				if err := evaluation.PlotResiduals(score, path); err != nil {
					return err
				}
				fmt.Fprintf(out, "residual plot written to %s\n", path)
			}
			return nil
		},
	}
	d := analysis.DefaultConfig()
	flags := cmd.Flags()
	flags.String("data", "", "CSV file with the model's columns and target")
	flags.String("id-column", d.IDColumn, "index column to drop when present")
	flags.StringSlice("categorical", nil, "extra columns to read as categorical")
	flags.StringSlice("na-values", d.NAValues, "cells read as missing (default \"NA\" and empty)")
	flags.String("residuals", "", "write a residual plot to this path")
	return cmd
}

// loadScoringFrame reads path the way run does, forcing every factor of the
// model to be categorical.
func loadScoringFrame(path string, tm *modelselection.TrainedModel, v *viper.Viper) (*dataset.Frame, error) {
	factors := slices.Sorted(maps.Keys(tm.Levels))
	cats := lo.Union(factors, v.GetStringSlice("categorical_columns"))
	opts := []dataset.LoadOption{dataset.WithCategorical(cats...)}
	if na := v.GetStringSlice("na_values"); len(na) > 0 {
		opts = append(opts, dataset.WithNAValues(na...))
	}
	frame, err := dataset.LoadCSV(path, opts...)
	if err != nil {
		return nil, err
	}
	if id := v.GetString("id_column"); id != "" && frame.Has(id) && id != tm.Formula.Target && !lo.Contains(tm.Formula.Features, id) {
		return frame.Drop(id)
	}
	return frame, nil
}
