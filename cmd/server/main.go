package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"queryguard/internal/api"
	"queryguard/internal/app"
	"queryguard/internal/config"
	internaldb "queryguard/internal/db"
	"queryguard/internal/domain"
	"queryguard/internal/service/generate"
)

func main() {
	ctx := context.Background()

	// Load .env file (if present)
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("warning: could not load .env: %v", err)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	// Analytics store the governed queries run against.
	dataDB, err := sql.Open("duckdb", cfg.DataDBPath)
	if err != nil {
		logger.Error("open analytics store failed", "path", cfg.DataDBPath, "error", err)
		os.Exit(1)
	}
	defer dataDB.Close()

	// Audit store: single-connection write pool, concurrent read pool.
	writeDB, readDB, err := internaldb.OpenAuditStore(cfg.AuditDBPath, 4)
	if err != nil {
		logger.Error("open audit store failed", "path", cfg.AuditDBPath, "error", err)
		os.Exit(1)
	}
	defer writeDB.Close()
	defer readDB.Close()

	if err := internaldb.RunMigrations(writeDB); err != nil {
		logger.Error("audit migrations failed", "error", err)
		os.Exit(1)
	}

	schema, err := generate.LoadSchemaContext(cfg.SchemaContextPath)
	if err != nil {
		logger.Error("schema context failed", "error", err)
		os.Exit(1)
	}
	var generator domain.Generator
	if cfg.LLM.APIKey != "" {
		oracle, oerr := generate.NewOpenAIOracle(logger, cfg.LLM)
		if oerr != nil {
			logger.Error("generator oracle failed", "error", oerr)
			os.Exit(1)
		}
		generator = generate.NewAdapter(logger, oracle, schema)
	} else {
		generator = generate.NewDisabled(logger)
	}

	application, err := app.New(ctx, app.Deps{
		Cfg:       cfg,
		DataDB:    dataDB,
		WriteDB:   writeDB,
		ReadDB:    readDB,
		Generator: generator,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("wiring failed", "error", err)
		os.Exit(1)
	}
	application.Start()
	defer application.Stop()

	handler := api.NewHandler(logger, application.Engine, application.Audit)
	router := api.NewRouter(handler, api.RouterConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP API listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
