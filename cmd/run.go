package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"leadwatch/internal/logger"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one monitoring sweep and exit",
	Run: func(_ *cobra.Command, _ []string) {
		run()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// run executes a single sweep across the configured keywords.
func run() {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting leadwatch", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config == nil {
		logger.Fatal("config is required")
	}

	runner, leads, err := newRunner(ctx, config, logger)
	if err != nil {
		logger.Fatal("preparing the sweep", zap.Error(err))
	}
	defer leads.Close()

	summary, err := runner.Run(ctx, buildRunConfig(config))
	if err != nil {
		if summary != nil {
			logger.Error("sweep aborted",
				zap.Int("candidates", summary.CandidatesFetched),
				zap.Int("leads_created", summary.LeadsCreated),
				zap.Error(err),
			)
		}
		logger.Fatal("sweep failed", zap.Error(err))
	}

	logger.Info("sweep complete",
		zap.Int("candidates", summary.CandidatesFetched),
		zap.Int("filtered_out", summary.FilteredOut),
		zap.Int("classified", summary.Classified),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("leads_created", summary.LeadsCreated),
		zap.Int("errors", len(summary.Errors)),
	)
}
