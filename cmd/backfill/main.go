// Command backfill bulk-loads historical Tado heating telemetry over a date
// range, one day at a time with a bounded worker pool per day. It does not
// touch cursors: the incremental scheduler owns those.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/utility-ingest/internal/backfill"
	"github.com/ignite/utility-ingest/internal/blobstore"
	"github.com/ignite/utility-ingest/internal/config"
	"github.com/ignite/utility-ingest/internal/pkg/logger"
	"github.com/ignite/utility-ingest/internal/tado"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	startFlag := flag.String("start", "", "first date to backfill (YYYY-MM-DD, required)")
	endFlag := flag.String("end", "", "last date to backfill (YYYY-MM-DD, defaults to yesterday)")
	maxWorkers := flag.Int("max-workers", 0, "concurrent device fetches per day (default from config)")
	dryRun := flag.Bool("dry-run", false, "fetch and parse but write nothing")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))

	if *startFlag == "" {
		fmt.Fprintln(os.Stderr, "--start is required")
		os.Exit(2)
	}
	start, err := time.ParseInLocation("2006-01-02", *startFlag, time.UTC)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parsing --start: %v\n", err)
		os.Exit(2)
	}
	end := time.Now().UTC().AddDate(0, 0, -1)
	if *endFlag != "" {
		end, err = time.ParseInLocation("2006-01-02", *endFlag, time.UTC)
		if err != nil {
			fmt.Fprintf(os.Stderr, "parsing --end: %v\n", err)
			os.Exit(2)
		}
	}
	if end.Before(start) {
		fmt.Fprintln(os.Stderr, "--end is before --start")
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		logger.Warn("signal received, stopping after current day", "signal", sig.String())
		cancel()
	}()

	base, err := blobstore.NewS3Store(ctx, cfg.Storage.S3Bucket, "", cfg.Storage.AWSRegion, cfg.Storage.GetAWSProfile())
	if err != nil {
		logger.Error("initializing object store", "error", err.Error())
		os.Exit(1)
	}
	heatingBlobs := base.WithPrefix(cfg.Storage.HeatingPrefix)

	tokens := tado.NewRefreshingTokenSource(cfg.Tado.ClientID, cfg.Tado.TokenURL, heatingBlobs, nil)
	client := tado.NewClient(tado.Config{
		HomeID:  cfg.Tado.HomeID,
		BaseURL: cfg.Tado.BaseURL,
		Tokens:  tokens,
		Timeout: cfg.Tado.Timeout(),
	})

	devices := cfg.Tado.Devices
	if len(devices) == 0 {
		devices, err = client.EnumerateZones(ctx)
		if err != nil {
			logger.Error("enumerating zones", "error", err.Error())
			os.Exit(1)
		}
	}
	if len(devices) == 0 {
		logger.Error("no heating devices configured or discovered")
		os.Exit(1)
	}

	workers := *maxWorkers
	if workers <= 0 {
		workers = cfg.Backfill.MaxWorkers
	}
	engine := backfill.NewEngine(heatingBlobs, client, devices, backfill.Options{
		MaxWorkers: workers,
		DryRun:     *dryRun,
	})

	logger.Info("backfill starting",
		"start", start.Format("2006-01-02"),
		"end", end.Format("2006-01-02"),
		"devices", len(devices),
		"max_workers", workers,
		"dry_run", *dryRun)

	if err := engine.Run(ctx, start, end); err != nil {
		logger.Error("backfill aborted", "error", err.Error())
		os.Exit(1)
	}
}
