package model

// WeeklyLookback is the number of weekly commit buckets GitHub's
// participation statistics return. The stored series never exceeds it.
const WeeklyLookback = 52

// MetricsSnapshot is the latest computed activity metrics for one repository.
// A snapshot is built as an immutable value and replaces the previously
// stored one in a single write; it is never mutated in place.
type MetricsSnapshot struct {
	CommitsTotal  int
	CommitsWeekly []int // Most-recent-last, at most WeeklyLookback entries.

	OpenPRs   int
	ClosedPRs int // Closed without merging.
	MergedPRs int

	OpenIssues   int
	ClosedIssues int

	Contributors int

	// MergeTimeHours is the mean time from PR creation to merge over merged
	// PRs only. Zero when no PRs have been merged.
	MergeTimeHours float64
}

// LatestWeek returns the most recent weekly commit count and true, or 0 and
// false when the series is empty.
func (m MetricsSnapshot) LatestWeek() (int, bool) {
	if len(m.CommitsWeekly) == 0 {
		return 0, false
	}
	return m.CommitsWeekly[len(m.CommitsWeekly)-1], true
}

// PreviousWeek returns the second most recent weekly commit count and true,
// or 0 and false when fewer than two data points exist.
func (m MetricsSnapshot) PreviousWeek() (int, bool) {
	if len(m.CommitsWeekly) < 2 {
		return 0, false
	}
	return m.CommitsWeekly[len(m.CommitsWeekly)-2], true
}
