// Package consensus runs three independently framed generations of the
// same question and votes on their executed results. Numeric cells agree
// within a relative tolerance so float formatting differences between
// otherwise identical queries do not split the vote.
package consensus

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"

	"queryguard/internal/domain"
)

// Framings are the prompt variants, one per branch. Kept deliberately
// different in shape so a prompt-sensitive failure mode cannot hit all
// three the same way.
var Framings = []string{
	"Answer the question directly with a single query.",
	"Think about which tables hold the answer, then write one query for it.",
	"Write the simplest correct query that answers the question.",
}

const (
	relativeTolerance = 0.01
	absoluteFloor     = 1e-9
)

// BranchFunc runs one complete pipeline pass with the given prompt framing
// and reports its outcome through the candidate, including failures.
type BranchFunc func(ctx context.Context, framing string) *domain.ConsensusCandidate

// Outcome is the vote's verdict.
type Outcome struct {
	Winner     *domain.ConsensusCandidate
	Confidence string
	Agreement  float64
	Caveat     string
	Candidates []*domain.ConsensusCandidate
}

// Voter is stateless and safe for concurrent use.
type Voter struct {
	logger *slog.Logger
}

func NewVoter(logger *slog.Logger) *Voter {
	return &Voter{logger: logger.With("component", "consensus")}
}

// Vote runs all branches concurrently and compares their results pairwise.
// A branch failure never cancels its siblings; only all three failing is a
// hard error.
func (v *Voter) Vote(ctx context.Context, fn BranchFunc) (*Outcome, error) {
	candidates := make([]*domain.ConsensusCandidate, len(Framings))

	var g errgroup.Group
	for i, framing := range Framings {
		g.Go(func() error {
			candidates[i] = fn(ctx, framing)
			return nil
		})
	}
	_ = g.Wait()

	var successes []*domain.ConsensusCandidate
	for _, c := range candidates {
		if c != nil && c.Err == nil && c.Execution != nil {
			successes = append(successes, c)
		}
	}
	if len(successes) == 0 {
		first := firstError(candidates)
		v.logger.Error("every consensus branch failed", "error", first)
		return nil, fmt.Errorf("consensus voting failed on all branches: %w", first)
	}

	outcome := &Outcome{Candidates: candidates}
	switch agreeing := largestAgreeingGroup(successes); {
	case agreeing >= 3:
		outcome.Winner = successes[0]
		outcome.Confidence = domain.ConfidenceHigh
		outcome.Agreement = 1.0
	case agreeing == 2:
		outcome.Winner = majorityWinner(successes)
		outcome.Confidence = domain.ConfidenceHigh
		outcome.Agreement = 2.0 / 3.0
	default:
		outcome.Winner = successes[0]
		outcome.Confidence = domain.ConfidenceLow
		outcome.Agreement = 0
		outcome.Caveat = "independent attempts disagreed on this answer; verify before acting on it"
	}

	v.logger.Info("consensus vote complete",
		"branches", len(candidates), "succeeded", len(successes),
		"agreement", outcome.Agreement, "confidence", outcome.Confidence)
	return outcome, nil
}

func firstError(candidates []*domain.ConsensusCandidate) error {
	for _, c := range candidates {
		if c != nil && c.Err != nil {
			return c.Err
		}
	}
	return fmt.Errorf("no branch produced a result")
}

// largestAgreeingGroup returns the size of the biggest cluster of mutually
// agreeing results among the successful branches.
func largestAgreeingGroup(successes []*domain.ConsensusCandidate) int {
	best := 1
	for i, a := range successes {
		size := 1
		for j, b := range successes {
			if i != j && resultsAgree(a.Execution.Result, b.Execution.Result) {
				size++
			}
		}
		if size > best {
			best = size
		}
	}
	if len(successes) < best {
		return len(successes)
	}
	return best
}

// majorityWinner returns a member of the agreeing pair.
func majorityWinner(successes []*domain.ConsensusCandidate) *domain.ConsensusCandidate {
	for i, a := range successes {
		for j, b := range successes {
			if i != j && resultsAgree(a.Execution.Result, b.Execution.Result) {
				return a
			}
		}
	}
	return successes[0]
}

// resultsAgree compares two result sets cell by cell. Column names are
// ignored since different framings alias columns differently; shape and
// values decide.
func resultsAgree(a, b *domain.ResultSet) bool {
	if a == nil || b == nil {
		return a == b
	}
	if len(a.Rows) != len(b.Rows) || len(a.Columns) != len(b.Columns) {
		return false
	}
	for i := range a.Rows {
		if len(a.Rows[i]) != len(b.Rows[i]) {
			return false
		}
		for j := range a.Rows[i] {
			if !cellsAgree(a.Rows[i][j], b.Rows[i][j]) {
				return false
			}
		}
	}
	return true
}

func cellsAgree(a, b interface{}) bool {
	fa, okA := asFloat(a)
	fb, okB := asFloat(b)
	if okA && okB {
		tolerance := relativeTolerance * math.Max(math.Abs(fa), math.Abs(fb))
		if tolerance < absoluteFloor {
			tolerance = absoluteFloor
		}
		return math.Abs(fa-fb) <= tolerance
	}
	if okA != okB {
		return false
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
