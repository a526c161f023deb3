// Package cli implements the anomalyctl command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/i474232898/weather-anomaly/internal/app"
	"github.com/i474232898/weather-anomaly/internal/common"
	"github.com/i474232898/weather-anomaly/internal/config"
	"github.com/i474232898/weather-anomaly/internal/logging"
	"github.com/i474232898/weather-anomaly/internal/report"
	"github.com/i474232898/weather-anomaly/internal/weather"
)

// flags holds values shared by every command; zero values keep the
// configuration.
type flags struct {
	dataPath string
	workers  int
	logLevel string
	noColor  bool
}

// NewRootCommand builds the command tree writing results to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:           "anomalyctl",
		Short:         "Detect temperature anomalies against seasonal baselines.",
		Long:          `anomalyctl scores historical temperatures against per-city seasonal baselines and checks live readings for anomalies.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if f.noColor {
				color.NoColor = true
			}
		},
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVar(&f.dataPath, "data", "", "historical CSV dataset (default from config)")
	pf.IntVar(&f.workers, "workers", 0, "batch scoring workers (default from config)")
	pf.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&f.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newBatchCommand(f),
		newBaselinesCommand(f),
		newSummaryCommand(f),
		newLiveCommand(f),
	)
	return root
}

// Execute runs the root command against os.Args.
func Execute(ctx context.Context) error {
	return NewRootCommand(os.Stdout).ExecuteContext(ctx)
}

// setup loads configuration, applies flag overrides and wires the app.
func setup(cmd *cobra.Command, f *flags) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if f.dataPath != "" {
		cfg.DataPath = f.dataPath
	}
	if f.workers > 0 {
		cfg.WorkerCount = f.workers
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}

	logger := logging.New(cmd.ErrOrStderr(), cfg.LogLevel)
	return app.New(cfg, logger)
}

// setupLoaded is setup followed by loading the dataset.
func setupLoaded(cmd *cobra.Command, f *flags) (*app.App, *weather.Analysis, error) {
	a, err := setup(cmd, f)
	if err != nil {
		return nil, nil, err
	}
	analysis, err := a.LoadDataset(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	return a, analysis, nil
}

func newBatchCommand(f *flags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Score every historical reading and list the anomalies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, analysis, err := setupLoaded(cmd, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Scored %d readings from %d cities using %d workers.\n",
				analysis.Dataset.Len(), len(analysis.Dataset.Cities()), a.Service.Workers())
			return report.Anomalies(cmd.OutOrStdout(), analysis.Scored, limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum anomalies to list (0 = all)")
	return cmd
}

func newBaselinesCommand(f *flags) *cobra.Command {
	var city string
	cmd := &cobra.Command{
		Use:   "baselines",
		Short: "Print per-city seasonal baselines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, _, err := setupLoaded(cmd, f)
			if err != nil {
				return err
			}
			baselines, err := a.Service.Baselines(city)
			if err != nil {
				return err
			}
			return report.Baselines(cmd.OutOrStdout(), baselines)
		},
	}
	cmd.Flags().StringVar(&city, "city", "", "only this city")
	return cmd
}

func newSummaryCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "summary [city...]",
		Short: "Describe and compare temperature distributions",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, analysis, err := setupLoaded(cmd, f)
			if err != nil {
				return err
			}
			cities := args
			if len(cities) == 0 {
				cities = analysis.Dataset.Cities()
			}
			summaries, err := a.Service.Compare(cities)
			if err != nil {
				return err
			}
			return report.Summaries(cmd.OutOrStdout(), summaries)
		},
	}
}

func newLiveCommand(f *flags) *cobra.Command {
	var sequential bool
	cmd := &cobra.Command{
		Use:   "live [city...]",
		Short: "Fetch current temperatures and classify them",
		Long:  `Fetch the current temperature of each city concurrently and classify it against the historical baseline for the current season. Cities default to the configured list.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := setupLoaded(cmd, f)
			if err != nil {
				return err
			}
			cities := args
			if len(cities) == 1 {
				cities = common.SplitList(cities[0])
			}
			if len(cities) == 0 {
				cities = a.Config.CityList()
			}
			if len(cities) == 0 {
				return fmt.Errorf("%w: no cities given", weather.ErrConfig)
			}

			check := a.Service.CheckLive
			if sequential {
				check = a.Service.CheckLiveSequential
			}
			r, err := check(cmd.Context(), cities)
			if err != nil {
				return err
			}
			return report.Live(cmd.OutOrStdout(), r)
		},
	}
	cmd.Flags().BoolVar(&sequential, "sequential", false, "fetch one city at a time")
	return cmd
}
