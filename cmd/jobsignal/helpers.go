package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/mfairbanks/jobsignal/internal/common"
	"github.com/mfairbanks/jobsignal/internal/disambig"
	"github.com/mfairbanks/jobsignal/internal/engine"
	"github.com/mfairbanks/jobsignal/internal/llm"
	"github.com/mfairbanks/jobsignal/internal/scoring"
	"github.com/mfairbanks/jobsignal/internal/storage"
)

// initStorage opens the database and brings the schema up to date.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/jobsignal/jobsignal.db"
	}
	dbPath = expandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("failed to open database at %s", dbPath), err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// expandPath expands ~ and environment variables in a filesystem path.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return os.ExpandEnv(path)
}

// scoringConfig builds the scoring configuration: defaults overlaid with
// whatever the config file sets.
func scoringConfig() (scoring.Config, error) {
	cfg := scoring.DefaultConfig()

	if viper.IsSet("matching.auto_match_threshold") {
		cfg.AutoMatchThreshold = viper.GetFloat64("matching.auto_match_threshold")
	}
	if viper.IsSet("matching.review_threshold") {
		cfg.ReviewThreshold = viper.GetFloat64("matching.review_threshold")
	}
	if viper.IsSet("matching.ambiguity_margin") {
		cfg.AmbiguityMargin = viper.GetFloat64("matching.ambiguity_margin")
	}
	if viper.IsSet("matching.timeline_window_days") {
		cfg.TimelineWindowDays = viper.GetInt("matching.timeline_window_days")
	}
	if viper.IsSet("matching.grace_period_days") {
		cfg.GracePeriodDays = viper.GetInt("matching.grace_period_days")
	}
	if viper.IsSet("matching.disambiguation_top_k") {
		cfg.DisambiguationTopK = viper.GetInt("matching.disambiguation_top_k")
	}
	if viper.IsSet("matching.neutral_domain_score") {
		cfg.NeutralDomainScore = viper.GetFloat64("matching.neutral_domain_score")
	}
	if viper.IsSet("matching.ats_domains") {
		cfg.ATSDomains = viper.GetStringSlice("matching.ats_domains")
	}
	if viper.IsSet("matching.weights.name") {
		cfg.Weights = scoring.Weights{
			Name:     viper.GetFloat64("matching.weights.name"),
			Domain:   viper.GetFloat64("matching.weights.domain"),
			Title:    viper.GetFloat64("matching.weights.title"),
			Timeline: viper.GetFloat64("matching.weights.timeline"),
		}
	}

	if err := cfg.Validate(); err != nil {
		return scoring.Config{}, err
	}
	return cfg, nil
}

// engineConfig builds the engine tuning knobs.
func engineConfig() engine.Config {
	return engine.Config{
		MaxConcurrent: viper.GetInt("engine.workers"),
		BatchSize:     viper.GetInt("engine.batch_size"),
	}
}

// llmConfig builds the completion-service configuration.
func llmConfig() llm.Config {
	return llm.Config{
		Provider:    viper.GetString("llm.provider"),
		APIKey:      viper.GetString("llm.api_key"),
		Model:       viper.GetString("llm.model"),
		BaseURL:     viper.GetString("llm.base_url"),
		Timeout:     viper.GetDuration("llm.timeout"),
		RateLimit:   viper.GetInt("llm.rate_limit"),
		Temperature: viper.GetFloat64("llm.temperature"),
		MaxTokens:   viper.GetInt("llm.max_tokens"),
	}
}

// buildSelector wires the disambiguation resolver, or returns nil when no
// completion service is configured so the engine runs scoring-only.
func buildSelector(ctx context.Context, logger *slog.Logger) (engine.Selector, func(), error) {
	cfg := llmConfig()
	if cfg.APIKey == "" {
		logger.Warn("No completion service configured, ambiguous matches will not be disambiguated")
		return nil, func() {}, nil
	}

	client, err := llm.NewClient(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create completion client: %w", err)
	}

	closer := func() {}
	if c, ok := client.(interface{ Close() }); ok {
		closer = c.Close
	}

	resolver := disambig.NewResolver(client, cfg.Timeout, logger)
	return resolver, closer, nil
}
