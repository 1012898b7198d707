// Command lightctl trains and queries the brightness model offline, straight
// from a weather history CSV, without starting the HTTP service.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// version is set at build time via -ldflags.
var version = "dev"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	csv      string
	oracle   string
	seed     uint64
	markdown bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "lightctl",
		Short:         "Offline trainer and predictor for streetlight brightness",
		Long:          "lightctl trains the brightness regressor from a daily weather history\nand runs single predictions through the adjustment cascade.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.csv, "csv", sharedcfg.EnvOrDefault("WEATHER_CSV", "./harareweather2.csv"), "weather history CSV")
	pf.StringVar(&g.oracle, "oracle", sharedcfg.EnvOrDefault("ORACLE_KIND", "gbt"), "regressor kind (gbt or linear)")
	pf.Uint64Var(&g.seed, "seed", 42, "train/test split seed")
	pf.BoolVar(&g.markdown, "markdown", false, "render tables as Markdown")

	root.AddCommand(newTrainCmd(g))
	root.AddCommand(newPredictCmd(g))
	root.AddCommand(newValidateCmd(g))
	return root
}

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
