package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/streetlight-predictor/internal/dataset"
	"github.com/couchcryptid/streetlight-predictor/internal/oracle"
)

func newTrainCmd(g *globalFlags) *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit the regressor and print held-out metrics and feature importance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			model, err := trainModel(cmd.Context(), g)
			if err != nil {
				return err
			}
			m, err := model.Metrics()
			if err != nil {
				return err
			}
			scores, err := model.FeatureImportance()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			mt := newTable(g.markdown)
			mt.AppendHeader(table.Row{"Oracle", "MAE", "R2", "Train rows", "Test rows"})
			mt.AppendRow(table.Row{m.Oracle, num(m.MAE), num(m.R2), m.TrainRows, m.TestRows})
			rightAlign(mt, 2, 3, 4, 5)
			render(out, mt, g.markdown)

			if top > 0 && top < len(scores) {
				scores = scores[:top]
			}
			it := newTable(g.markdown)
			it.AppendHeader(table.Row{"#", "Feature", "Importance"})
			for i, s := range scores {
				it.AppendRow(table.Row{i + 1, s.Feature, num(s.Importance)})
			}
			rightAlign(it, 1, 3)
			render(out, it, g.markdown)
			return nil
		},
	}

	cmd.Flags().IntVar(&top, "top", 0, "show only the N most important features (0 for all)")
	return cmd
}

// trainModel loads the CSV named by the global flags and fits a fresh model.
func trainModel(ctx context.Context, g *globalFlags) (*oracle.Model, error) {
	trainer, err := oracle.NewTrainer(g.oracle, oracle.DefaultGBTConfig())
	if err != nil {
		return nil, err
	}

	set, err := dataset.TrainingLoader(g.csv)(ctx)
	if err != nil {
		return nil, err
	}

	model := oracle.NewModel(trainer, g.seed)
	if _, err := model.Train(set.Features, set.Labels()); err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	return model, nil
}
