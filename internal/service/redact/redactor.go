// Package redact masks personally identifying data in result sets before
// they leave the engine. Matching is two-pronged: column names that look
// sensitive are masked wholesale, and string values are scanned for PII
// shapes regardless of which column they sit in.
package redact

import (
	"log/slog"
	"regexp"

	"queryguard/internal/domain"
)

// Placeholder replaces every masked value and every matched substring.
const Placeholder = "***REDACTED***"

var sensitiveColumn = regexp.MustCompile(
	`(?i)(email|e_mail|phone|mobile|ssn|social_security|card|pan|cvv|password|passwd|pwd|token|secret|api_key|salary|wage|dob|date_of_birth|birth|tax_id|iban|account_number)`)

// Value shapes, applied to string cells only. The phone pattern requires a
// separator or leading + so plain order ids and totals survive.
var valuePatterns = []*regexp.Regexp{
	regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`),
	regexp.MustCompile(`\+\d{1,3}[\s.-]?\(?\d{1,4}\)?([\s.-]?\d{2,4}){2,4}`),
	regexp.MustCompile(`\b\d{3}[\s.-]\d{3}[\s.-]\d{4}\b`),
	regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	regexp.MustCompile(`\b(?:\d[ -]?){13,19}\b`),
}

// Redactor is stateless and safe for concurrent use.
type Redactor struct {
	logger *slog.Logger
}

func NewRedactor(logger *slog.Logger) *Redactor {
	return &Redactor{logger: logger.With("component", "redactor")}
}

// Apply masks PII in rs in place and returns the number of masked cells
// plus the names of wholly masked columns. Admin results pass through
// untouched.
func (r *Redactor) Apply(role domain.Role, rs *domain.ResultSet) (int, []string) {
	if rs == nil || role == domain.RoleAdmin {
		return 0, nil
	}

	maskedCols := make(map[int]bool)
	var maskedNames []string
	for i, col := range rs.Columns {
		if sensitiveColumn.MatchString(col) {
			maskedCols[i] = true
			maskedNames = append(maskedNames, col)
		}
	}

	count := 0
	for _, row := range rs.Rows {
		for i := range row {
			if i >= len(rs.Columns) {
				break
			}
			if maskedCols[i] {
				if row[i] != nil {
					row[i] = Placeholder
					count++
				}
				continue
			}
			s, ok := row[i].(string)
			if !ok {
				continue
			}
			masked := maskValues(s)
			if masked != s {
				row[i] = masked
				count++
			}
		}
	}

	if count > 0 {
		r.logger.Info("redacted result cells",
			"role", string(role), "cells", count, "columns", maskedNames)
	}
	return count, maskedNames
}

// Sanitize masks PII shapes in free text, used for answers and audited
// questions.
func Sanitize(text string) string {
	return maskValues(text)
}

func maskValues(s string) string {
	for _, pattern := range valuePatterns {
		s = pattern.ReplaceAllString(s, Placeholder)
	}
	return s
}
