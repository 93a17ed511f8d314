package numerator

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Strategy selects how the next sequence of a scope is found.
type Strategy string

const (
	// StrategyCounter bumps a per-scope counter row with
	// INSERT ... ON CONFLICT DO UPDATE ... RETURNING.
	// Concurrent callers serialize on the row lock.
	StrategyCounter Strategy = "counter"

	// StrategyScan reads the latest stored number with the scope prefix and
	// adds one. Safe only together with the UNIQUE constraint on the number
	// column and a retry of the whole operation.
	StrategyScan Strategy = "scan"
)

// ParseStrategy accepts "counter" and "scan" (case-insensitive).
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyCounter, "":
		return StrategyCounter, nil
	case StrategyScan:
		return StrategyScan, nil
	default:
		return "", fmt.Errorf("unknown numbering strategy %q", s)
	}
}

// Options configures a single allocation.
type Options struct {
	Strategy Strategy
}

// DefaultOptions returns counter strategy options.
func DefaultOptions() *Options {
	return &Options{Strategy: StrategyCounter}
}

// Generator produces sequential numbers.
//
// Implementations run on the transaction carried by ctx, so the number is
// only durable if the caller's transaction commits.
type Generator interface {
	// Next returns the next number of the scope.
	Next(ctx context.Context, scope Scope, opts *Options) (string, error)

	// Seed raises the counter of the scope to at least value.
	// Used when switching a scope from scan to counter strategy.
	Seed(ctx context.Context, scope Scope, value int64) error
}

// Clock supplies the current time for period keys.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock returns wall-clock UTC time.
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })

// ClockIn returns wall-clock time in loc, so period keys follow the calendar
// month of that zone. A nil loc means UTC.
func ClockIn(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return ClockFunc(func() time.Time { return time.Now().In(loc) })
}

// FixedClock always returns t.
func FixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}

// Mark is the highest number stored for a scope.
type Mark struct {
	Scope    Scope
	Latest   string
	Sequence int64
}
