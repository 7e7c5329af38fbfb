// Package limits describes rate limits: how many hits are allowed per how
// much time, and how a limit plus a set of caller identifiers maps onto a
// deterministic storage key.
package limits

import (
	"fmt"
	"strings"
	"time"
)

// DefaultNamespace is the leading segment of every derived storage key. It
// keeps limiter-owned keys distinguishable from anything else living in a
// shared backend, which is what lets Storage.Reset find them again.
const DefaultNamespace = "LIMITER"

// Granularity is the unit a rate limit window is measured in.
type Granularity struct {
	Name     string
	Duration time.Duration
}

var (
	Second = Granularity{"second", time.Second}
	Minute = Granularity{"minute", time.Minute}
	Hour   = Granularity{"hour", time.Hour}
	Day    = Granularity{"day", 24 * time.Hour}
	Month  = Granularity{"month", 30 * 24 * time.Hour}
	Year   = Granularity{"year", 365 * 24 * time.Hour}
)

// RateLimitItem describes a single rate limit: at most Amount hits per
// (Multiples * Granularity). The item itself is immutable; the identifiers
// that scope it to a particular caller are supplied per call via KeyFor.
type RateLimitItem struct {
	Amount      int64
	Multiples   int64
	Granularity Granularity
	Namespace   string
}

// NewRateLimitItem constructs an item, normalizing Multiples < 1 to 1 and an
// empty namespace to DefaultNamespace.
func NewRateLimitItem(amount int64, multiples int64, g Granularity) RateLimitItem {
	if multiples < 1 {
		multiples = 1
	}

	return RateLimitItem{
		Amount:      amount,
		Multiples:   multiples,
		Granularity: g,
		Namespace:   DefaultNamespace,
	}
}

// PerSecond returns an item limiting to amount hits per multiples seconds
// (one second when multiples is omitted).
func PerSecond(amount int64, multiples ...int64) RateLimitItem {
	return NewRateLimitItem(amount, first(multiples), Second)
}

// PerMinute returns an item limiting to amount hits per multiples minutes.
func PerMinute(amount int64, multiples ...int64) RateLimitItem {
	return NewRateLimitItem(amount, first(multiples), Minute)
}

// PerHour returns an item limiting to amount hits per multiples hours.
func PerHour(amount int64, multiples ...int64) RateLimitItem {
	return NewRateLimitItem(amount, first(multiples), Hour)
}

// PerDay returns an item limiting to amount hits per multiples days.
func PerDay(amount int64, multiples ...int64) RateLimitItem {
	return NewRateLimitItem(amount, first(multiples), Day)
}

// PerMonth returns an item limiting to amount hits per multiples months
// (a month is 30 days).
func PerMonth(amount int64, multiples ...int64) RateLimitItem {
	return NewRateLimitItem(amount, first(multiples), Month)
}

// PerYear returns an item limiting to amount hits per multiples years
// (a year is 365 days).
func PerYear(amount int64, multiples ...int64) RateLimitItem {
	return NewRateLimitItem(amount, first(multiples), Year)
}

func first(multiples []int64) int64 {
	if len(multiples) == 0 {
		return 1
	}

	return multiples[0]
}

// Expiry is the full window length.
func (i RateLimitItem) Expiry() time.Duration {
	return time.Duration(i.Multiples) * i.Granularity.Duration
}

// KeyFor derives the storage key for this item scoped to the given
// identifiers. The derivation is pure: two items with identical parameters
// and identifiers always produce the same key, and any difference in amount,
// window length, or identifiers produces a distinct key.
//
//	LIMITER/user_123/api/10/1/minute
func (i RateLimitItem) KeyFor(identifiers ...string) string {
	ns := i.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}

	parts := make([]string, 0, len(identifiers)+4)
	parts = append(parts, ns)
	parts = append(parts, identifiers...)
	parts = append(parts,
		fmt.Sprintf("%d", i.Amount),
		fmt.Sprintf("%d", i.Multiples),
		i.Granularity.Name,
	)

	return strings.Join(parts, "/")
}

// String renders the item in the notation accepted by Parse.
func (i RateLimitItem) String() string {
	return fmt.Sprintf("%d per %d %s", i.Amount, i.Multiples, i.Granularity.Name)
}
