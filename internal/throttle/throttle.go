// Package throttle turns human-readable rates into limiters.
package throttle

import (
	"strconv"
	"strings"

	"golang.org/x/time/rate"
)

// ParseRate parses a rate string like "30/second" or "600/minute" into a
// limiter. It returns nil when the string is malformed.
func ParseRate(rateStr string) *rate.Limiter {
	parts := strings.SplitN(rateStr, "/", 2)
	if len(parts) != 2 {
		return nil
	}

	count, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || count <= 0 {
		return nil
	}

	unit := strings.ToLower(strings.TrimSpace(parts[1]))
	unit = strings.TrimSuffix(unit, "s")

	switch unit {
	case "second", "sec":
		return rate.NewLimiter(rate.Limit(float64(count)), 1)
	case "minute", "min":
		return rate.NewLimiter(rate.Limit(float64(count)/60.0), 1)
	case "hour", "hr":
		return rate.NewLimiter(rate.Limit(float64(count)/3600.0), 1)
	default:
		return nil
	}
}

// Unlimited returns a limiter that never waits.
func Unlimited() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 1)
}
