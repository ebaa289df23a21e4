// Package app provides application-level wiring and dependency injection
// for the query safety service.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"queryguard/internal/config"
	"queryguard/internal/crypto"
	"queryguard/internal/db/repository"
	"queryguard/internal/domain"
	"queryguard/internal/engine"
	"queryguard/internal/service/access"
	"queryguard/internal/service/astcheck"
	"queryguard/internal/service/audit"
	"queryguard/internal/service/consensus"
	"queryguard/internal/service/generate"
	"queryguard/internal/service/governor"
	"queryguard/internal/service/injection"
	"queryguard/internal/service/intent"
	"queryguard/internal/service/redact"
	"queryguard/internal/service/sanity"
	"queryguard/internal/service/selfcorrect"
	"queryguard/internal/service/validate"
	"queryguard/internal/store"
)

// Deps holds the external dependencies that main() must provide:
// database handles, config, and the generator oracle boundary.
type Deps struct {
	Cfg       *config.Config
	DataDB    *sql.DB // analytics store the governed queries run against
	WriteDB   *sql.DB // audit store, serialized writes
	ReadDB    *sql.DB // audit store, concurrent reads
	Generator domain.Generator
	Logger    *slog.Logger
}

// App holds the fully-wired application: the engine the HTTP layer
// serves, the audit service backing the audit endpoint, and the
// retention scheduler.
type App struct {
	Engine   *engine.Engine
	Audit    *audit.Service
	rotation *cron.Cron
	logger   *slog.Logger
}

// New wires every service from the provided deps. The audit encryption
// key is mandatory; wiring fails without it.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg
	logger := deps.Logger

	enc, err := crypto.NewEncryptor(cfg.AuditEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("audit encryption: %w", err)
	}

	schema, err := generate.LoadSchemaContext(cfg.SchemaContextPath)
	if err != nil {
		return nil, fmt.Errorf("schema context: %w", err)
	}

	auditRepo := repository.NewAuditRepo(deps.WriteDB, deps.ReadDB)
	auditSvc := audit.NewService(logger, auditRepo, enc, cfg.AuditRetentionDays)

	rowStore := store.New(deps.DataDB)
	gov := governor.NewGovernor(logger, rowStore, cfg.QueryTimeout, cfg.MaxResponseSize)

	eng := engine.New(engine.Deps{
		Logger:     logger,
		Detector:   injection.NewDetector(logger),
		Classifier: intent.NewClassifier(logger),
		Prebuilt:   intent.NewPrebuilt(logger, gov),
		Generator:  deps.Generator,
		Validator:  validate.NewChecker(logger, schema),
		Security:   astcheck.NewValidator(logger, schema.TenantColumn),
		Access:     access.NewController(logger),
		Executor:   gov,
		Sanity:     sanity.NewChecker(logger, gov),
		Corrector:  selfcorrect.NewController(logger),
		Voter:      consensus.NewVoter(logger),
		Redactor:   redact.NewRedactor(logger),
		Audit:      auditSvc,
	})

	app := &App{
		Engine:   eng,
		Audit:    auditSvc,
		rotation: cron.New(),
		logger:   logger.With("component", "app"),
	}
	if _, err := app.rotation.AddFunc(cfg.RotationSchedule, func() {
		removed, rerr := auditSvc.RotateOlderThan(context.Background())
		if rerr != nil {
			app.logger.Error("audit rotation failed", "error", rerr)
			return
		}
		app.logger.Info("audit rotation completed", "removed", removed)
	}); err != nil {
		return nil, fmt.Errorf("rotation schedule %q: %w", cfg.RotationSchedule, err)
	}
	return app, nil
}

// Start launches the retention scheduler.
func (a *App) Start() {
	a.rotation.Start()
	a.logger.Info("audit retention scheduler started")
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (a *App) Stop() {
	<-a.rotation.Stop().Done()
}
