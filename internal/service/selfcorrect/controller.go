// Package selfcorrect drives the generate-validate-execute loop, feeding
// each failure back into the next generation attempt as error context.
package selfcorrect

import (
	"context"
	"log/slog"

	"queryguard/internal/domain"
)

// MaxAttempts caps the loop regardless of how promising the error context
// looks.
const MaxAttempts = 3

// State tracks where the loop ended, for audit detail.
type State string

const (
	StateIdle       State = "idle"
	StateGenerating State = "generating"
	StateSucceeded  State = "succeeded"
	StateExhausted  State = "exhausted"
	StateAborted    State = "aborted"
)

// Attempt is the successful product of one full pipeline pass.
type Attempt struct {
	Number    int
	SQL       string
	Tables    []string
	Verdicts  []domain.ValidationVerdict
	Execution *domain.ExecutionResult
	Warnings  []string
}

// AttemptFunc runs one complete pipeline pass. errorContext is empty on the
// first attempt and carries the previous failure afterwards.
type AttemptFunc func(ctx context.Context, number int, errorContext string) (*Attempt, error)

// Result describes the finished loop. Attempt is nil unless State is
// StateSucceeded.
type Result struct {
	Attempt       *Attempt
	AttemptCount  int
	SelfCorrected bool
	State         State
	LastErr       error
}

// Controller is stateless between runs and safe for concurrent use.
type Controller struct {
	logger *slog.Logger
}

func NewController(logger *slog.Logger) *Controller {
	return &Controller{logger: logger.With("component", "self_correct")}
}

// Run executes fn up to MaxAttempts times. Terminal errors abort instantly;
// non-retryable errors stop the loop without further generations. The
// returned error is nil only on success.
func (c *Controller) Run(ctx context.Context, fn AttemptFunc) (*Result, error) {
	result := &Result{State: StateIdle}
	errorContext := ""

	for number := 1; number <= MaxAttempts; number++ {
		if err := ctx.Err(); err != nil {
			result.State = StateAborted
			result.LastErr = err
			return result, err
		}

		result.State = StateGenerating
		result.AttemptCount = number
		attempt, err := fn(ctx, number, errorContext)
		if err == nil {
			result.State = StateSucceeded
			result.Attempt = attempt
			result.SelfCorrected = number > 1
			if result.SelfCorrected {
				c.logger.Info("query self-corrected", "attempts", number)
			}
			return result, nil
		}

		result.LastErr = err
		if domain.IsTerminal(err) {
			c.logger.Warn("attempt hit a terminal failure", "attempt", number, "error", err)
			result.State = StateAborted
			return result, err
		}
		if !domain.IsRetryable(err) {
			c.logger.Warn("attempt failed without a retry path", "attempt", number, "error", err)
			result.State = StateExhausted
			return result, err
		}

		c.logger.Info("attempt failed, feeding error back",
			"attempt", number, "error", err.Error())
		errorContext = err.Error()
	}

	result.State = StateExhausted
	c.logger.Warn("self-correction exhausted", "attempts", MaxAttempts, "error", result.LastErr)
	return result, result.LastErr
}
