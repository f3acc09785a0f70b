package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"leadwatch/internal/ai"
	"leadwatch/internal/ai/gemini"
	"leadwatch/internal/apify"
	logfields "leadwatch/internal/logger"
	"leadwatch/internal/monitor"
	"leadwatch/internal/secrets"
	"leadwatch/internal/store"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	defaultDatabase      = "leadwatch.db"
	defaultListen        = "127.0.0.1:8484"
	defaultIntervalHours = 4
)

func buildRunConfig(config *Config) monitor.RunConfig {
	cfg := monitor.RunConfig{
		Keywords:   config.Keywords,
		JobTitles:  config.JobTitles,
		Industries: config.Industries,
	}

	if config.Search != nil {
		cfg.ResultsPerKeyword = config.Search.ResultsPerKeyword
		cfg.DateFilter = config.Search.DateFilter
		cfg.SortType = config.Search.SortType
		cfg.UseJobTitleFilter = config.Search.UseJobTitleFilter
	}

	return cfg
}

func monitoringInterval(config *Config) time.Duration {
	hours := defaultIntervalHours
	if config.Monitoring != nil && config.Monitoring.IntervalHours > 0 {
		hours = config.Monitoring.IntervalHours
	}
	return time.Duration(hours) * time.Hour
}

func databasePath(config *Config) string {
	if strings.TrimSpace(config.Database) != "" {
		return config.Database
	}
	return defaultDatabase
}

func listenAddr(config *Config) string {
	if strings.TrimSpace(config.Listen) != "" {
		return config.Listen
	}
	return defaultListen
}

func newSearchClient(config *Config, logger *zap.Logger) (*apify.Client, error) {
	tokenFile := ""
	if config.Apify != nil {
		tokenFile = strings.TrimSpace(config.Apify.TokenFile)
	}
	if tokenFile == "" {
		tokenFile = strings.TrimSpace(viper.GetString("apify.token-file"))
	}

	token, err := secrets.Load(secrets.Source{
		Name: "apify token",
		File: tokenFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set apify.token-file or APIFY_TOKEN_FILE)", err)
	}

	client := apify.New(token, logger)
	if config.Apify != nil && strings.TrimSpace(config.Apify.Actor) != "" {
		client.Actor = config.Apify.Actor
	}

	return client, nil
}

func newClassifier(ctx context.Context, config *AIConfig, logger *zap.Logger) (ai.Classifier, error) {
	if config == nil || config.Gemini == nil {
		return nil, errors.New("ai.gemini configuration is required")
	}

	provider := strings.TrimSpace(strings.ToLower(config.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", config.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: config.Gemini.APIKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	genLogger := logfields.WithClassifier(logger, "gemini", config.Gemini.Model).
		With(zap.Int("ai_retry_attempts", config.Gemini.MaxRetries))

	generator, err := gemini.NewGenerator(ctx, apiKey, config.Gemini.Model, config.Gemini.MaxRetries, genLogger)
	if err != nil {
		return nil, err
	}

	classifierLogger := logfields.WithClassifier(logger, "gemini", generator.Model())

	return gemini.NewClassifier(generator, config.Gemini.MaxLogLength, classifierLogger), nil
}

func newRunner(ctx context.Context, config *Config, logger *zap.Logger) (*monitor.Runner, *store.Store, error) {
	search, err := newSearchClient(config, logger)
	if err != nil {
		return nil, nil, err
	}

	classifier, err := newClassifier(ctx, config.AI, logger)
	if err != nil {
		return nil, nil, err
	}

	leads, err := store.Open(databasePath(config), logger)
	if err != nil {
		return nil, nil, err
	}

	return monitor.NewRunner(search, classifier, leads, logger), leads, nil
}
