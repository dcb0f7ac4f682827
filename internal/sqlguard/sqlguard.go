// Package sqlguard cleans and checks model-generated SQL before anything is
// fetched on its behalf.
//
// The check is shallow: text is accepted when it starts with
// "select" after code fences are removed. Column names, subqueries and
// functions are not inspected. A SELECT that smuggles side effects passes.
package sqlguard

import (
	"regexp"
	"strings"

	apperrors "github.com/JonMunkholm/olive/internal/errors"
)

var codeFence = regexp.MustCompile("(?i)```sql|```")

// GeneratedQuery is the outcome of validating one candidate answer.
type GeneratedQuery struct {
	RawText        string `json:"sql"`
	IsValidSelect  bool   `json:"isValidSelect"`
	ExtractedLimit *int   `json:"extractedLimit,omitempty"`
}

// HasLimit reports whether a row cap was recovered.
func (q GeneratedQuery) HasLimit() bool {
	return q.ExtractedLimit != nil
}

// Sanitize removes every code-fence token, wherever it appears, and trims the
// result. Removal repeats until nothing changes so Sanitize is idempotent.
func Sanitize(raw string) string {
	out := raw
	for {
		next := codeFence.ReplaceAllString(out, "")
		if next == out {
			break
		}
		out = next
	}
	return strings.TrimSpace(out)
}

// IsSelect reports whether sanitized text begins with "select", ignoring case.
func IsSelect(sanitized string) bool {
	return strings.HasPrefix(strings.ToLower(sanitized), "select")
}

// Validate sanitizes raw and accepts it only when it is a SELECT. Accepted
// text carries its recovered LIMIT, if any.
func Validate(raw string) (GeneratedQuery, error) {
	sql := Sanitize(raw)
	if !IsSelect(sql) {
		return GeneratedQuery{RawText: sql}, apperrors.New(apperrors.UnsupportedStatement, apperrors.MsgUnsupportedStatement)
	}

	q := GeneratedQuery{RawText: sql, IsValidSelect: true}
	if limit, ok := Parse(sql).Limit(); ok {
		q.ExtractedLimit = &limit
	}
	return q, nil
}
