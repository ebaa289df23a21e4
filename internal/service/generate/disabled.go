package generate

import (
	"context"
	"log/slog"

	"queryguard/internal/domain"
)

// Disabled is the generator used when no model backend is configured.
// Prebuilt intent queries still serve; anything needing generation gets
// a retryable failure that the pipeline turns into a refusal.
type Disabled struct {
	logger *slog.Logger
}

func NewDisabled(logger *slog.Logger) *Disabled {
	return &Disabled{logger: logger.With("component", "sql_generator")}
}

func (d *Disabled) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResult, error) {
	d.logger.Warn("generation requested but no model backend is configured")
	return nil, domain.ErrGenerationFailed("no language model backend is configured")
}
