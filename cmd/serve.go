package cmd

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"leadwatch/internal/logger"
	"leadwatch/internal/monitor"
	"leadwatch/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard API and the monitoring scheduler",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve() {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if config == nil {
		logger.Fatal("config is required")
	}

	logger.Info("starting leadwatch", zap.String("version", version))

	runner, leads, err := newRunner(ctx, config, logger)
	if err != nil {
		logger.Fatal("preparing the monitor", zap.Error(err))
	}
	defer leads.Close()

	runConfig := buildRunConfig(config)
	scheduler := monitor.NewScheduler(runner, monitoringInterval(config), logger)

	srv := server.New(leads, runner, scheduler, runConfig, logger)

	if config.Monitoring != nil && config.Monitoring.Active {
		if err := scheduler.Start(ctx, runConfig); err != nil {
			logger.Fatal("starting monitoring", zap.Error(err))
		}
	}

	httpServer := &http.Server{
		Addr:              listenAddr(config),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("dashboard api listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")

	scheduler.Stop()
	scheduler.Wait()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}
