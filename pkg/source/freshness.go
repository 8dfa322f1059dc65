package source

import (
	"fmt"
	"time"
)

// TimePeriod is the unit of a freshness threshold.
type TimePeriod string

// Supported periods.
const (
	PeriodMinute TimePeriod = "minute"
	PeriodHour   TimePeriod = "hour"
	PeriodDay    TimePeriod = "day"
)

// Duration returns the length of one period, or 0 for an unknown period.
func (p TimePeriod) Duration() time.Duration {
	switch p {
	case PeriodMinute:
		return time.Minute
	case PeriodHour:
		return time.Hour
	case PeriodDay:
		return 24 * time.Hour
	default:
		return 0
	}
}

// Time is a count of periods, e.g. 12 hours.
type Time struct {
	Count  int        `yaml:"count" json:"count,omitempty"`
	Period TimePeriod `yaml:"period" json:"period,omitempty"`
}

// IsConfigured reports whether both count and period are set.
func (t *Time) IsConfigured() bool {
	return t != nil && t.Count > 0 && t.Period.Duration() > 0
}

// Duration returns the threshold as a duration; 0 when unconfigured.
func (t *Time) Duration() time.Duration {
	if !t.IsConfigured() {
		return 0
	}
	return time.Duration(t.Count) * t.Period.Duration()
}

// Exceeded reports whether age is past the threshold. An unconfigured
// threshold is never exceeded.
func (t *Time) Exceeded(age time.Duration) bool {
	if !t.IsConfigured() {
		return false
	}
	return age > t.Duration()
}

func (t *Time) validate(field string) error {
	if t == nil || (t.Count == 0 && t.Period == "") {
		return nil
	}
	if t.Period.Duration() == 0 {
		return fmt.Errorf("%s: unknown period %q (expected minute, hour or day)", field, t.Period)
	}
	if t.Count <= 0 {
		return fmt.Errorf("%s: count must be positive, got %d", field, t.Count)
	}
	return nil
}

// FreshnessStatus is the outcome of a freshness check.
type FreshnessStatus string

// Freshness statuses.
const (
	FreshnessPass  FreshnessStatus = "pass"
	FreshnessWarn  FreshnessStatus = "warn"
	FreshnessError FreshnessStatus = "error"
)

// FreshnessThreshold holds the warn and error ages of a source table.
type FreshnessThreshold struct {
	WarnAfter  *Time  `yaml:"warn_after" json:"warn_after,omitempty"`
	ErrorAfter *Time  `yaml:"error_after" json:"error_after,omitempty"`
	Filter     string `yaml:"filter" json:"filter,omitempty"`
}

// IsConfigured reports whether either threshold is set.
func (f *FreshnessThreshold) IsConfigured() bool {
	return f != nil && (f.WarnAfter.IsConfigured() || f.ErrorAfter.IsConfigured())
}

// Status classifies age. The error threshold is checked first.
func (f *FreshnessThreshold) Status(age time.Duration) FreshnessStatus {
	if f == nil {
		return FreshnessPass
	}
	switch {
	case f.ErrorAfter.Exceeded(age):
		return FreshnessError
	case f.WarnAfter.Exceeded(age):
		return FreshnessWarn
	default:
		return FreshnessPass
	}
}

// Merged returns f with the fields set in override applied on top.
func (f *FreshnessThreshold) Merged(override *FreshnessThreshold) *FreshnessThreshold {
	if f == nil && override == nil {
		return nil
	}
	var out FreshnessThreshold
	if f != nil {
		out = *f
	}
	if override != nil {
		if override.WarnAfter != nil {
			out.WarnAfter = override.WarnAfter
		}
		if override.ErrorAfter != nil {
			out.ErrorAfter = override.ErrorAfter
		}
		if override.Filter != "" {
			out.Filter = override.Filter
		}
	}
	return &out
}

func (f *FreshnessThreshold) validate() error {
	if f == nil {
		return nil
	}
	if err := f.WarnAfter.validate("warn_after"); err != nil {
		return err
	}
	return f.ErrorAfter.validate("error_after")
}
