// Package intent routes simple, well-known question shapes to prebuilt
// parameterized queries, bypassing SQL generation entirely.
package intent

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Intent names a canonical simple question shape.
type Intent string

// Canonical intents served by the fast path.
const (
	IntentAggregateSales Intent = "aggregate_sales"
	IntentAverageTicket  Intent = "average_ticket"
	IntentTopProducts    Intent = "top_products"
	IntentStaffRanking   Intent = "staff_ranking"
	IntentReviewStats    Intent = "review_stats"
)

// Classification is the classifier's judgment of one question.
type Classification struct {
	IsSimpleQuery bool
	Intent        Intent
	DateRange     DateRange
	TopN          int // for IntentTopProducts; 0 elsewhere
	Confidence    float64
}

// Classifier matches questions against canonical intents. A complexity
// check runs first: comparison language, time-of-day or day-of-week
// filters, and multi-dimension phrasing disqualify the fast path no matter
// which keywords match.
type Classifier struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewClassifier creates a Classifier using the system clock.
func NewClassifier(logger *slog.Logger) *Classifier {
	return &Classifier{
		logger: logger.With("component", "intent_classifier"),
		now:    time.Now,
	}
}

var (
	topNRe = regexp.MustCompile(`(?i)\btop\s+(\d+)\b`)

	comparisonWords = []string{
		"compare", "compared", "comparison", "versus", " vs ", " vs.",
		"than", "better", "worse", "difference", "growth", "trend",
		"change over", "increase", "decrease",
	}
	timeOfDayWords = []string{
		"morning", "afternoon", "evening", "night", "hourly",
		"per hour", "by hour", "lunch", "dinner", "breakfast",
	}
	dayOfWeekWords = []string{
		"monday", "tuesday", "wednesday", "thursday", "friday",
		"saturday", "sunday", "weekday", "weekend",
	}
	multiDimensionWords = []string{
		" and ", " with ", " broken down", " by category and", " per ",
	}
	importanceWords = []string{
		"rank", "ranking", "compare", "versus", " vs ", "should i",
		"performance", "perform", "best", "worst", "underperform",
	}
)

// IsComplex reports whether the question needs generated SQL rather than a
// prebuilt query.
func (c *Classifier) IsComplex(question string) bool {
	q := " " + strings.ToLower(question) + " "

	for _, w := range comparisonWords {
		if strings.Contains(q, w) {
			return true
		}
	}
	for _, w := range timeOfDayWords {
		if strings.Contains(q, w) {
			return true
		}
	}
	for _, w := range dayOfWeekWords {
		if strings.Contains(q, w) {
			return true
		}
	}
	for _, w := range multiDimensionWords {
		if strings.Contains(q, w) {
			return true
		}
	}
	return false
}

// IsImportant reports whether a wrong answer carries elevated stakes:
// rankings, comparisons, and decision-support questions. Together with
// IsComplex it decides when consensus voting is used.
func (c *Classifier) IsImportant(question string) bool {
	q := " " + strings.ToLower(question) + " "
	for _, w := range importanceWords {
		if strings.Contains(q, w) {
			return true
		}
	}
	return false
}

// Classify matches the question against the canonical intents. On any
// mismatch the zero Classification falls through to generation.
func (c *Classifier) Classify(question string) Classification {
	if c.IsComplex(question) {
		return Classification{}
	}

	q := strings.ToLower(question)

	matched, ok := matchIntent(q)
	if !ok {
		return Classification{}
	}

	result := Classification{
		IsSimpleQuery: true,
		Intent:        matched,
		Confidence:    0.95,
	}

	dr, found := ParseDateRange(q, c.now())
	if !found {
		// No recognized date phrase: default to the trailing 30 days with
		// slightly lower confidence.
		dr = relativeRange(c.now(), "last30days")
		result.Confidence = 0.9
	}
	result.DateRange = dr

	if matched == IntentTopProducts {
		result.TopN = 5
		if m := topNRe.FindStringSubmatch(q); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 && n <= 50 {
				result.TopN = n
			}
		}
	}

	c.logger.Debug("fast path matched",
		"intent", string(matched), "range", dr.Label)
	return result
}

// HasTopClaim reports whether the question asks for a "top N" style
// ranking, which downstream result verification cross-checks.
func HasTopClaim(question string) bool {
	return topNRe.MatchString(question) ||
		strings.Contains(strings.ToLower(question), "top ")
}

func matchIntent(q string) (Intent, bool) {
	hasAny := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(q, w) {
				return true
			}
		}
		return false
	}

	switch {
	case strings.Contains(q, "top") && hasAny("product", "item", "seller", "selling"):
		return IntentTopProducts, true
	case hasAny("average ticket", "avg ticket", "average order", "average check", "ticket size"):
		return IntentAverageTicket, true
	case hasAny("review", "rating"):
		return IntentReviewStats, true
	case hasAny("staff", "employee", "server", "cashier"):
		return IntentStaffRanking, true
	case hasAny("sales", "revenue", "how much did"):
		return IntentAggregateSales, true
	}
	return "", false
}
