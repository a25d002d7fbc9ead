package registration

import "time"

// IsWithinThresholdPeriod checks if the given time is within the threshold
func IsWithinThresholdPeriod(t time.Time, window time.Duration, now time.Time) bool {
	threshold := now.Add(-window)
	return t.After(threshold)
}

// IsOutsideThresholdPeriod is the negation of IsWithinThresholdPeriod
func IsOutsideThresholdPeriod(t time.Time, window time.Duration, now time.Time) bool {
	return !IsWithinThresholdPeriod(t, window, now)
}
