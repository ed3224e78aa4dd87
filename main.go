package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/ekaya-inc/mirror-engine/pkg/config"
	"github.com/ekaya-inc/mirror-engine/pkg/logging"
	"github.com/ekaya-inc/mirror-engine/pkg/services"
)

func main() {
	// Configuration problems surface before anything touches a database.
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc := services.NewMirrorService(cfg, logger, nil)
	report, err := svc.Run(ctx)
	if err != nil {
		logger.Error("Mirror run failed", zap.String("error", logging.SanitizeError(err)))
		stop()
		os.Exit(1)
	}

	logger.Info("Sync finished",
		zap.String("run_id", report.RunID),
		zap.String("table", report.Table),
		zap.Int("source_rows", report.SourceRows),
		zap.Int("inserted", report.Counts.Inserted),
		zap.Int("updated", report.Counts.Updated),
		zap.Int("deleted", report.Counts.Deleted),
		zap.Duration("duration", report.Duration))
}
