// Package cronexpr resolves cron expressions to concrete run times.
// It wraps robfig/cron's standard 5-field parser (plus @descriptors) and
// applies an IANA timezone so that next-run computation is a pure function
// of (expression, timezone, after).
package cronexpr

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Next returns the first time matching expr strictly after the given instant,
// evaluated in the named timezone. An empty timezone means UTC.
func Next(expr, timezone string, after time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing cron expression %q: %w", expr, err)
	}

	loc, err := loadLocation(timezone)
	if err != nil {
		return time.Time{}, err
	}

	return sched.Next(after.In(loc)), nil
}

// Validate checks that expr parses and timezone resolves.
func Validate(expr, timezone string) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("parsing cron expression %q: %w", expr, err)
	}
	if _, err := loadLocation(timezone); err != nil {
		return err
	}
	return nil
}

func loadLocation(timezone string) (*time.Location, error) {
	if timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", timezone, err)
	}
	return loc, nil
}
