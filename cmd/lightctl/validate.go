package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/streetlight-predictor/internal/dataset"
	"github.com/couchcryptid/streetlight-predictor/internal/domain"
)

func newValidateCmd(g *globalFlags) *cobra.Command {
	var features string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Range-check one feature vector, or every row of the training set",
		Long: "With --features, validate prints the range warnings for that vector.\n" +
			"Otherwise it engineers the training set from --csv and counts\n" +
			"out-of-range values per feature. Warnings never fail the command.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			if cmd.Flags().Changed("features") {
				v, err := parseFeatures(features)
				if err != nil {
					return err
				}
				warnings := domain.Validate(v)
				if len(warnings) == 0 {
					fmt.Fprintln(out, "all features within expected ranges")
					return nil
				}
				for _, w := range warnings {
					fmt.Fprintln(out, w)
				}
				return nil
			}

			set, err := dataset.TrainingLoader(g.csv)(cmd.Context())
			if err != nil {
				return err
			}
			var counts [domain.FeatureCount]int
			for _, v := range set.Features {
				for _, w := range domain.CheckFeatures(v) {
					counts[featureIndex(w.Feature)]++
				}
			}

			t := newTable(g.markdown)
			t.AppendHeader(table.Row{"Feature", "Min", "Max", "Out of range"})
			total := 0
			for i, name := range domain.FeatureNames {
				r := domain.FeatureRanges[i]
				t.AppendRow(table.Row{name, r.Min, r.Max, counts[i]})
				total += counts[i]
			}
			t.AppendFooter(table.Row{"rows", len(set.Features), "", total})
			rightAlign(t, 2, 3, 4)
			render(out, t, g.markdown)
			return nil
		},
	}

	cmd.Flags().StringVar(&features, "features", "", "comma-separated raw feature vector (17 values)")
	return cmd
}

func featureIndex(name string) int {
	for i, n := range domain.FeatureNames {
		if n == name {
			return i
		}
	}
	return -1
}
