// Command scheduler runs one incremental ingestion pass over all configured
// utility data streams and exits. Exit code 1 means the run produced nothing
// but errors; partial failures are logged and exit 0 so the next scheduled
// run can catch up.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/utility-ingest/internal/blobstore"
	"github.com/ignite/utility-ingest/internal/config"
	"github.com/ignite/utility-ingest/internal/ingest"
	"github.com/ignite/utility-ingest/internal/octopus"
	"github.com/ignite/utility-ingest/internal/pkg/logger"
	"github.com/ignite/utility-ingest/internal/tado"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	timeout := flag.Duration("timeout", 30*time.Minute, "overall run deadline")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// SIGINT/SIGTERM cancel the run; in-flight streams finish or fail fast.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		logger.Warn("signal received, cancelling run", "signal", sig.String())
		cancel()
	}()

	base, err := blobstore.NewS3Store(ctx, cfg.Storage.S3Bucket, "", cfg.Storage.AWSRegion, cfg.Storage.GetAWSProfile())
	if err != nil {
		logger.Error("initializing object store", "error", err.Error())
		os.Exit(1)
	}
	consumptionBlobs := base.WithPrefix(cfg.Storage.ConsumptionPrefix)
	heatingBlobs := base.WithPrefix(cfg.Storage.HeatingPrefix)

	var octo ingest.OctopusAPI
	if cfg.Octopus.Enabled {
		octo = octopus.NewClient(octopus.Config{
			APIKey:        cfg.Octopus.APIKey,
			AccountNumber: cfg.Octopus.AccountNumber,
			BaseURL:       cfg.Octopus.BaseURL,
			Timeout:       cfg.Octopus.Timeout(),
		})
	}

	var heat ingest.TadoAPI
	if cfg.Tado.Enabled {
		tokens := tado.NewRefreshingTokenSource(cfg.Tado.ClientID, cfg.Tado.TokenURL, heatingBlobs, nil)
		heat = tado.NewClient(tado.Config{
			HomeID:  cfg.Tado.HomeID,
			BaseURL: cfg.Tado.BaseURL,
			Tokens:  tokens,
			Timeout: cfg.Tado.Timeout(),
		})
	}

	runner := ingest.NewRunner(cfg, consumptionBlobs, heatingBlobs, octo, heat)
	report := runner.Run(ctx)
	if report.Failed() {
		logger.Error("run failed: no stream succeeded",
			"run_id", report.RunID, "errors", report.TotalErrors())
		os.Exit(1)
	}
}
