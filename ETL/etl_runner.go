package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/LilVoxy/delivery_analytics/ETL/config"
	"github.com/LilVoxy/delivery_analytics/ETL/load"
	"github.com/LilVoxy/delivery_analytics/ETL/models"
	"github.com/LilVoxy/delivery_analytics/ETL/runner"
	"github.com/LilVoxy/delivery_analytics/ETL/utils"
	"github.com/LilVoxy/delivery_analytics/routes"
	"github.com/LilVoxy/delivery_analytics/websocket"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	mode := flag.String("mode", "once", "run mode: once, scheduled or serve")
	inputDir := flag.String("input", "", "batch directory, overrides input.dir")
	addr := flag.String("addr", "", "operator API address for serve mode, overrides api.addr")
	dryRun := flag.Bool("dry-run", false, "run once against an in-memory store, without touching the database")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}
	if *inputDir != "" {
		cfg.Input.Dir = *inputDir
	}
	if *addr != "" {
		cfg.API.Addr = *addr
	}

	logger, err := utils.NewETLLogger(utils.LoggerOptions{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	if err != nil {
		log.Fatalf("create logger: %v", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *dryRun {
		err = runDry(ctx, *cfg, *mode, logger)
	} else {
		err = run(ctx, *cfg, *mode, logger)
	}
	if err != nil {
		logger.Error("etl runner stopped", "mode", *mode, "error", err)
		stop()
		logger.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.ETLConfig, mode string, logger *utils.ETLLogger) error {
	switch mode {
	case "once", "scheduled", "serve":
	default:
		return fmt.Errorf("unknown mode %q, expected once, scheduled or serve", mode)
	}

	db, err := config.ConnectDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	loader := load.NewOLAPLoader(db, cfg.LockTimeout, logger)
	if err := loader.EnsureSchema(ctx); err != nil {
		return err
	}
	runLog := models.NewMySQLETLLogRepository(db)
	if err := runLog.CreateETLLogTable(ctx); err != nil {
		return err
	}

	etl, err := runner.NewETLRunner(cfg, loader, runLog, logger)
	if err != nil {
		return err
	}

	logger.Info("etl runner starting", "mode", mode, "input", cfg.Input.Dir)
	switch mode {
	case "once":
		return runOnce(ctx, etl, logger)
	case "scheduled":
		return etl.StartScheduler(ctx)
	default:
		return serve(ctx, cfg, etl, logger)
	}
}

// runDry executes one batch into a MemoryLoader; nothing is persisted
func runDry(ctx context.Context, cfg config.ETLConfig, mode string, logger *utils.ETLLogger) error {
	if mode != "once" {
		return fmt.Errorf("dry run supports mode once only, got %q", mode)
	}

	store := load.NewMemoryLoader()
	etl, err := runner.NewETLRunner(cfg, store, models.NewMemoryETLLogRepository(), logger)
	if err != nil {
		return err
	}

	logger.Info("etl dry run starting", "input", cfg.Input.Dir)
	if err := runOnce(ctx, etl, logger); err != nil {
		return err
	}
	logger.Info("etl dry run finished",
		"shift_facts", len(store.ShiftFacts()),
		"order_facts", len(store.OrderFacts()),
		"quarantined", len(store.Quarantine()))
	return nil
}

// runOnce executes a single batch and prints its summary
func runOnce(ctx context.Context, etl *runner.ETLRunner, logger *utils.ETLLogger) error {
	summary, err := etl.ExecuteETL(ctx)
	if summary != nil {
		if printErr := runner.PrintSummary(os.Stdout, summary); printErr != nil {
			logger.Warn("print summary", "error", printErr)
		}
	}
	return err
}

// serve runs the scheduler alongside the operator API and the run feed
func serve(ctx context.Context, cfg config.ETLConfig, etl *runner.ETLRunner, logger *utils.ETLLogger) error {
	hub := websocket.NewHub(logger)
	go hub.Run(ctx)
	etl.SetNotifier(hub)

	router := mux.NewRouter()
	routes.SetupRoutes(router, etl, hub.HandleConnections, logger)

	server := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("operator api listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	schedulerErr := make(chan error, 1)
	go func() { schedulerErr <- etl.StartScheduler(ctx) }()

	select {
	case err := <-serverErr:
		return fmt.Errorf("operator api: %w", err)
	case err := <-schedulerErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown operator api: %w", err)
	}
	logger.Info("operator api stopped")
	return nil
}
