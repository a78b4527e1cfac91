package util

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

// timeUnit is one unit of a formatted duration.
type timeUnit struct {
	value    int64  // Whole units in the duration (e.g., 2 for 2 hours).
	singular string // Singular label (e.g., "hour").
	plural   string // Plural label (e.g., "hours").
}

// SliceSubtract returns elements in the first slice that are not in the second slice.
//
// Parameters:
//   - slice: Source slice.
//   - subtractFrom: Slice containing elements to exclude.
//
// Returns:
//   - []string: Slice containing elements unique to the source slice, in source order.
func SliceSubtract(slice, subtractFrom []string) []string {
	result := []string{}

	for _, element := range slice {
		if !slices.Contains(subtractFrom, element) {
			result = append(result, element)
		}
	}

	return result
}

// FormatDuration converts a time.Duration into a human-readable string such as
// "1 hour, 2 minutes, 3 seconds". A zero duration yields "0 seconds".
//
// Parameters:
//   - duration: Duration to format.
//
// Returns:
//   - string: Formatted duration.
func FormatDuration(duration time.Duration) string {
	const (
		minutesPerHour   = 60
		secondsPerMinute = 60
	)

	units := []timeUnit{
		{int64(duration.Hours()), "hour", "hours"},
		{int64(math.Mod(duration.Minutes(), minutesPerHour)), "minute", "minutes"},
		{int64(math.Mod(duration.Seconds(), secondsPerMinute)), "second", "seconds"},
	}

	parts := make([]string, 0, len(units))

	for i, unit := range units {
		// Seconds are always shown when nothing else was.
		forceInclude := i == len(units)-1 && len(FilterEmpty(parts)) == 0
		parts = append(parts, FormatTimeUnit(unit.value, unit.singular, unit.plural, forceInclude))
	}

	joined := strings.Join(FilterEmpty(parts), ", ")
	if joined == "" {
		return "0 seconds"
	}

	return joined
}

// FormatTimeUnit formats a single unit, returning an empty string for a
// zero value unless forceInclude is set.
func FormatTimeUnit(value int64, singular, plural string, forceInclude bool) string {
	switch {
	case value == 1:
		return "1 " + singular
	case value > 1 || forceInclude:
		return fmt.Sprintf("%d %s", value, plural)
	default:
		return ""
	}
}

// FilterEmpty removes empty strings from a slice.
func FilterEmpty(parts []string) []string {
	var filtered []string

	for _, part := range parts {
		if part != "" {
			filtered = append(filtered, part)
		}
	}

	return filtered
}
