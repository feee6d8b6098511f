package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/ianandersonlol/hivemigrate/pkg/config"
	"github.com/ianandersonlol/hivemigrate/pkg/report"
	"github.com/ianandersonlol/hivemigrate/pkg/rules"
	"github.com/ianandersonlol/hivemigrate/pkg/walker"
)

var (
	// Flags
	highFlag   bool
	dryRun     bool
	inPlace    bool
	verbose    bool
	assumeYes  bool
	debug      bool
	jobs       int
	configFile string
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hivemigrate [path]",
		Short: "Rewrite old-cluster job scripts and shell config for HIVE",
		Long: `hivemigrate scans a file or directory tree and rewrites stale cluster
conventions in place: software install paths, SLURM partitions and
accounts, Rosetta binary suffixes, conda environments, and the general
/share/siegellab/ storage prefix. By default each modified file is
written next to the original with a _fixed suffix.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runMigrate,
	}

	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (default: probe for .hivemigrate.{yaml,yml,hcl})")

	cmd.Flags().BoolVar(&highFlag, "high", false, "target the high partition for CPU jobs (30 day max, no requeue)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "preview changes without writing anything")
	cmd.Flags().BoolVar(&inPlace, "in-place", false, "overwrite originals instead of writing _fixed copies")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show before/after line diffs")
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip the confirmation prompt for directory rewrites")
	cmd.Flags().IntVar(&jobs, "jobs", 1, "number of files to rewrite concurrently")

	cmd.AddCommand(newRulesCmd())
	return cmd
}

// setupLogging configures zerolog based on flags.
func setupLogging() context.Context {
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}
	log := zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
		w.Out = os.Stderr
	})).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &log
	return log.WithContext(context.Background())
}

// buildRuleSet assembles the effective table: builtins plus any configured
// site rules, spliced ahead of the general storage-prefix rule.
func buildRuleSet(cfg *config.Config, high bool) (rules.RuleSet, error) {
	var extra []rules.Rule
	if cfg != nil {
		extra = cfg.CompileRules()
	}
	return rules.Build(rules.Options{HighPartition: high}, extra...)
}

func loadConfig(ctx context.Context) (*config.Config, error) {
	if configFile != "" {
		return config.Load(ctx, configFile)
	}
	return config.LoadDefault(ctx)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := setupLogging()
	logger := zerolog.Ctx(ctx)

	target := "."
	if len(args) == 1 {
		target = args[0]
	}

	info, err := os.Stat(target)
	if err != nil {
		logger.Error().Err(err).Str("path", target).Msg("path does not exist")
		return errors.Errorf("resolving %q: %w", target, err)
	}

	cfg, err := loadConfig(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("loading config")
		return err
	}

	high := highFlag || (cfg != nil && cfg.High)
	set, err := buildRuleSet(cfg, high)
	if err != nil {
		logger.Error().Err(err).Msg("building rule table")
		return err
	}

	// Recursive non-dry-run rewrites are destructive and easy to point at
	// the wrong tree, so directories need an explicit yes.
	if info.IsDir() && !dryRun && !assumeYes {
		abs, absErr := filepath.Abs(target)
		if absErr != nil {
			abs = target
		}
		ok, promptErr := pterm.DefaultInteractiveConfirm.
			WithDefaultText(fmt.Sprintf("Rewrite all text files under %s?", abs)).
			Show()
		if promptErr != nil {
			return errors.Errorf("reading confirmation: %w", promptErr)
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "cancelled, no files were modified")
			return nil
		}
	}

	opts := walker.Options{
		DryRun:  dryRun,
		InPlace: inPlace,
		Verbose: verbose,
		Jobs:    jobs,
	}
	if cfg != nil {
		opts.Ignore = cfg.Ignore
	}

	printer := report.NewPrinter(cmd.OutOrStdout(), report.Options{
		DryRun:  dryRun,
		InPlace: inPlace,
		Verbose: verbose,
		High:    high,
	})
	printer.Banner(target)

	summary, err := walker.Walk(ctx, target, set, opts)
	if err != nil {
		logger.Error().Err(err).Msg("walk failed")
		return err
	}

	printer.Results(summary)
	return nil
}
