package main

import (
	"fmt"
	"os"
	"time"

	"github.com/YuminosukeSato/housecv/analysis"
	"github.com/YuminosukeSato/housecv/evaluation"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var runBindings = map[string]string{
	"data":             "data",
	"target":           "target",
	"id-column":        "id_column",
	"drop":             "drop_columns",
	"categorical":      "categorical_columns",
	"na-values":        "na_values",
	"methods":          "methods",
	"folds":            "cv.folds",
	"seed":             "cv.seed",
	"parallel":         "cv.parallel",
	"workers":          "cv.workers",
	"save-predictions": "cv.save_predictions",
	"strict-levels":    "cv.strict_levels",
	"output":           "output_dir",
	"charts":           "charts",
	"save-models":      "save_models",
}

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Train and compare every method under shared cross-validation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newViper(cmd, analysis.SetDefaults, runBindings)
			if err != nil {
				return err
			}
			cfg, err := analysis.LoadConfig(v)
			if err != nil {
				return err
			}

			bar := progressbar.NewOptions(len(cfg.BuildMethods()),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionSetDescription("training"),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
			report, err := analysis.Run(cmd.Context(), cfg, analysis.WithProgress(func(p analysis.Progress) {
				bar.Describe(p.Method)
				_ = bar.Add(1)
			}))
			_ = bar.Finish()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s: %d rows, %d columns, %d-fold CV (seed %d), %s\n",
				report.RunID, report.Samples, report.Features, cfg.CV.Folds, cfg.CV.Seed, report.Elapsed.Round(time.Millisecond))
			if details, _ := cmd.Flags().GetBool("details"); details {
				for _, name := range report.Comparison.Methods() {
					fmt.Fprintf(out, "\n%s\n", name)
					if err := evaluation.RenderResults(out, report.Models[name]); err != nil {
						return err
					}
				}
				fmt.Fprintln(out)
			}
			if err := evaluation.RenderTable(out, report.Comparison); err != nil {
				return err
			}
			fmt.Fprintf(out, "best: %s (%s), CV RMSE %.5f\n", report.Best.Method, report.Best.Params, report.Best.CVRMSE)
			if cfg.OutputDir != "" {
				fmt.Fprintf(out, "outputs written to %s\n", cfg.OutputDir)
			}
			return nil
		},
	}
	d := analysis.DefaultConfig()
	flags := cmd.Flags()
	flags.String("data", d.DataPath, "preprocessed CSV file")
	flags.String("target", d.Target, "log-transformed response column")
	flags.String("id-column", d.IDColumn, "index column to drop (empty keeps every column)")
	flags.StringSlice("drop", d.DropColumns, "redundant columns to drop")
	flags.StringSlice("categorical", nil, "columns to read as categorical")
	flags.StringSlice("na-values", d.NAValues, "cells read as missing (default \"NA\" and empty)")
	flags.StringSlice("methods", nil, fmt.Sprintf("methods to run (default all: %v)", analysis.AllMethods))
	flags.IntP("folds", "k", d.CV.Folds, "number of cross-validation folds")
	flags.Uint64("seed", d.CV.Seed, "fold assignment seed")
	flags.Bool("parallel", d.CV.Parallel, "evaluate folds concurrently")
	flags.Int("workers", d.CV.Workers, "worker goroutines with --parallel (0 = NumCPU)")
	flags.Bool("save-predictions", d.CV.SavePredictions, "keep held-out predictions in saved models")
	flags.Bool("strict-levels", d.CV.StrictLevels, "fail when a test fold has a level unseen in training")
	flags.StringP("output", "o", d.OutputDir, "directory for comparison.csv, charts and models")
	flags.Bool("charts", d.Charts, "write charts to the output directory")
	flags.Bool("save-models", d.SaveModels, "save trained models to the output directory")
	flags.Bool("details", false, "print the cross-validation results of every method")
	return cmd
}
