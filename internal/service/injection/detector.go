// Package injection detects prompt-injection attempts in raw question text
// before it can reach the SQL generator.
package injection

import (
	"log/slog"
	"regexp"
	"sort"

	"queryguard/internal/domain"
)

// Confidence tiers for matched patterns.
const (
	TierLow      = "LOW"
	TierMedium   = "MEDIUM"
	TierHigh     = "HIGH"
	TierCritical = "CRITICAL"
)

// Verdict is the detector's judgment of one question.
type Verdict struct {
	IsInjection     bool
	Confidence      string // highest tier among matched patterns
	MatchedPatterns []string
	ShouldBlock     bool
	RiskScore       float64 // 0..1 combined pattern and surface score
}

type pattern struct {
	name string
	tier string
	re   *regexp.Regexp
}

// Detector scores question text against known injection pattern classes and
// suspicious surface characteristics. Safe for concurrent use; all state is
// read-only after construction.
type Detector struct {
	logger   *slog.Logger
	patterns []pattern

	base64Run *regexp.Regexp
	markupTag *regexp.Regexp
}

// NewDetector creates a Detector with the built-in pattern table.
func NewDetector(logger *slog.Logger) *Detector {
	return &Detector{
		logger:    logger.With("component", "injection_detector"),
		patterns:  compiledPatterns,
		base64Run: regexp.MustCompile(`[A-Za-z0-9+/]{24,}={0,2}`),
		markupTag: regexp.MustCompile(`(?i)</?[a-z][a-z0-9_-]*[^>]*>`),
	}
}

var compiledPatterns = []pattern{
	// Instruction override.
	{"instruction_override", TierCritical,
		regexp.MustCompile(`(?i)\b(ignore|disregard|forget|override)\b.{0,40}\b(previous|prior|above|earlier|all|your)\b.{0,20}\b(instructions?|prompts?|rules?|directives?)\b`)},
	{"instruction_override", TierCritical,
		regexp.MustCompile(`(?i)\bnew\s+instructions?\s*:`)},
	{"instruction_override", TierHigh,
		regexp.MustCompile(`(?i)\bdo\s+not\s+follow\b.{0,30}\b(instructions?|rules?)\b`)},

	// Prompt / system revelation.
	{"prompt_revelation", TierHigh,
		regexp.MustCompile(`(?i)\b(show|reveal|print|repeat|output|display)\b.{0,30}\b(system\s+prompt|your\s+prompt|your\s+instructions|initial\s+instructions)\b`)},
	{"prompt_revelation", TierHigh,
		regexp.MustCompile(`(?i)\bwhat\s+(are|were)\s+your\s+(instructions|rules|guidelines)\b`)},
	{"prompt_revelation", TierMedium,
		regexp.MustCompile(`(?i)\b(show|list|reveal)\b.{0,20}\b(all\s+tables|database\s+schema|hidden\s+data)\b`)},

	// Role manipulation.
	{"role_manipulation", TierHigh,
		regexp.MustCompile(`(?i)\byou\s+are\s+(now|no\s+longer)\b`)},
	{"role_manipulation", TierHigh,
		regexp.MustCompile(`(?i)\b(act|behave)\s+as\s+(a|an|if|though)\b`)},
	{"role_manipulation", TierMedium,
		regexp.MustCompile(`(?i)\b(pretend|roleplay|imagine)\s+(to\s+be|you\s+are|being)\b`)},
	{"role_manipulation", TierHigh,
		regexp.MustCompile(`(?i)\b(developer|admin|god|jailbreak|dan)\s+mode\b`)},

	// Code execution requests.
	{"code_execution", TierCritical,
		regexp.MustCompile(`(?i)\b(execute|run|eval)\b.{0,20}\b(code|script|command|shell|python|javascript)\b`)},
	{"code_execution", TierCritical,
		regexp.MustCompile(`(?i)\b(os\.system|subprocess|exec\s*\(|eval\s*\(|import\s+os)\b`)},
	{"code_execution", TierHigh,
		regexp.MustCompile(`(?i)<\s*script\b`)},

	// SQL smuggled directly into the question.
	{"sql_smuggling", TierHigh,
		regexp.MustCompile(`(?i)\b(drop|truncate|alter|delete|insert|update)\s+(table|from|into|database)\b`)},
	{"sql_smuggling", TierHigh,
		regexp.MustCompile(`(?i);\s*--`)},
	{"sql_smuggling", TierMedium,
		regexp.MustCompile(`(?i)\bunion\s+(all\s+)?select\b`)},
}

var tierWeight = map[string]float64{
	TierLow:      0.25,
	TierMedium:   0.5,
	TierHigh:     0.75,
	TierCritical: 1.0,
}

// Check evaluates the question and returns a Verdict. A ShouldBlock verdict
// is terminal for the request.
func (d *Detector) Check(question string) Verdict {
	verdict := Verdict{}

	maxWeight := 0.0
	seen := map[string]bool{}
	for _, p := range d.patterns {
		if !p.re.MatchString(question) {
			continue
		}
		if !seen[p.name] {
			seen[p.name] = true
			verdict.MatchedPatterns = append(verdict.MatchedPatterns, p.name)
		}
		if w := tierWeight[p.tier]; w > maxWeight {
			maxWeight = w
			verdict.Confidence = p.tier
		}
	}
	sort.Strings(verdict.MatchedPatterns)

	surface := d.surfaceScore(question)
	verdict.RiskScore = maxWeight + surface*0.5
	if verdict.RiskScore > 1 {
		verdict.RiskScore = 1
	}

	verdict.IsInjection = maxWeight > 0
	verdict.ShouldBlock = maxWeight >= tierWeight[TierHigh] ||
		(maxWeight > 0 && surface >= 0.3) ||
		surface >= 0.8

	if verdict.ShouldBlock {
		d.logger.Warn("injection attempt blocked",
			"patterns", verdict.MatchedPatterns,
			"risk_score", verdict.RiskScore)
	}

	return verdict
}

// surfaceScore rates suspicious surface characteristics independent of the
// pattern table: special-character density, base64-looking runs, and
// XML/HTML-like tags.
func (d *Detector) surfaceScore(question string) float64 {
	if question == "" {
		return 0
	}

	score := 0.0

	special := 0
	for _, r := range question {
		if !isWordChar(r) && r != ' ' && r != '?' && r != '.' && r != ',' && r != '\'' && r != '-' {
			special++
		}
	}
	density := float64(special) / float64(len([]rune(question)))
	if density > 0.1 {
		score += density * 2
	}

	if d.base64Run.MatchString(question) {
		score += 0.4
	}
	if d.markupTag.MatchString(question) {
		score += 0.4
	}

	if score > 1 {
		score = 1
	}
	return score
}

func isWordChar(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// BlockError converts a blocking verdict into the terminal domain error.
// The message is generic on purpose: matched pattern names go to the audit
// log, never to the caller.
func (v Verdict) BlockError() *domain.InjectionDetectedError {
	return &domain.InjectionDetectedError{
		Message:         "This question cannot be processed. Please rephrase it as a business question about your own data.",
		MatchedPatterns: v.MatchedPatterns,
		RiskScore:       v.RiskScore,
	}
}
