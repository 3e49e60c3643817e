package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mfairbanks/jobsignal/internal/engine"
)

func processCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Match unprocessed emails against job applications",
		Long: `Run the matching pipeline over every unprocessed email: score each one
against the applications in its recency window, auto-link confident matches,
escalate ambiguous or low-confidence ones to the review queue, and record
no-matches for analytics.`,
		RunE: runProcess,
	}

	cmd.Flags().Int("batch-size", 0, "emails per cycle (default from config)")
	cmd.Flags().Int("workers", 0, "concurrent matching workers (default from config)")
	cmd.Flags().Duration("interval", 0, "poll continuously at this interval (default: run once)")

	_ = viper.BindPFlag("engine.batch_size", cmd.Flags().Lookup("batch-size"))
	_ = viper.BindPFlag("engine.workers", cmd.Flags().Lookup("workers"))

	return cmd
}

func runProcess(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := slog.Default()
	interval, _ := cmd.Flags().GetDuration("interval")

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	scoreCfg, err := scoringConfig()
	if err != nil {
		return err
	}

	selector, closeSelector, err := buildSelector(ctx, logger)
	if err != nil {
		return err
	}
	defer closeSelector()

	eng, err := engine.New(store, selector, scoreCfg, engineConfig(), logger)
	if err != nil {
		return err
	}

	if interval <= 0 {
		return runOneCycle(cmd, eng)
	}

	logger.Info("Polling for emails", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := runOneCycle(cmd, eng); err != nil {
			logger.Error("Match cycle failed", "error", err)
		}
		select {
		case <-ctx.Done():
			logger.Info("Shutting down")
			return nil
		case <-ticker.C:
		}
	}
}

func runOneCycle(cmd *cobra.Command, eng *engine.Engine) error {
	stats, err := eng.ProcessCycle(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("Processed %d emails: %d auto-matched (%d via disambiguation), %d queued for review, %d no-match, %d errors\n",
		stats.Processed, stats.AutoMatched, stats.Disambiguated,
		stats.QueuedReview, stats.NoMatch, stats.Errors)
	return nil
}
