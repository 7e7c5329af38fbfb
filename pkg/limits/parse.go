package limits

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// rateExpr accepts the "10/minute", "10 per minute" and "10/2 minutes"
// notations, case-insensitively, with an optional trailing plural "s".
var rateExpr = regexp.MustCompile(
	`(?i)^\s*([0-9]+)\s*(?:/|per)\s*([0-9]+)?\s*(second|minute|hour|day|month|year)s?\s*$`,
)

var granularities = map[string]Granularity{
	"second": Second,
	"minute": Minute,
	"hour":   Hour,
	"day":    Day,
	"month":  Month,
	"year":   Year,
}

// Parse converts a single rate limit expression such as "10/minute",
// "100 per hour" or "1000/24 hours" into a RateLimitItem.
func Parse(expr string) (RateLimitItem, error) {
	m := rateExpr.FindStringSubmatch(expr)
	if m == nil {
		return RateLimitItem{}, fmt.Errorf("limits: failed to parse rate limit expression %q", expr)
	}

	amount, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return RateLimitItem{}, fmt.Errorf("limits: invalid amount in %q: %w", expr, err)
	}

	var multiples int64 = 1
	if m[2] != "" {
		multiples, err = strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			return RateLimitItem{}, fmt.Errorf("limits: invalid multiple in %q: %w", expr, err)
		}
	}

	return NewRateLimitItem(amount, multiples, granularities[strings.ToLower(m[3])]), nil
}

// ParseMany converts a delimited list of rate limit expressions, separated by
// ";" or ",", into items. A single invalid expression fails the whole call.
func ParseMany(exprs string) ([]RateLimitItem, error) {
	fields := strings.FieldsFunc(exprs, func(r rune) bool {
		return r == ';' || r == ','
	})

	items := make([]RateLimitItem, 0, len(fields))

	for _, f := range fields {
		item, err := Parse(f)
		if err != nil {
			return nil, err
		}

		items = append(items, item)
	}

	return items, nil
}
