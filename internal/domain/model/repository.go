// Package model contains the core domain entities of repopulse.
package model

import "time"

// Repository represents a GitHub repository connected by one or more users.
// A repository is shared by all of its subscribers; it exists only while at
// least one subscription remains.
type Repository struct {
	ID       int64
	FullName string
	Owner    string
	Name     string

	// GitHub-facing counters, overwritten on each refresh.
	Stars      int
	Forks      int
	Watchers   int
	OpenIssues int

	// LastFetched is the time of the last successful metrics refresh.
	// Zero until the first refresh completes.
	LastFetched time.Time

	Metrics MetricsSnapshot

	// AlertFlags mirror the most recent alert evaluation result.
	AlertFlags AlertFlags

	AddedAt time.Time
}

// AlertFlags is the latest evaluation result per alert condition. These are
// display flags, distinct from Alert records which carry the full lifecycle.
type AlertFlags struct {
	NoActivity  bool
	LongOpenPRs bool
	CommitDrops bool
}

// IsFresh reports whether the stored snapshot is younger than the staleness
// window and can be served without hitting GitHub.
func (r Repository) IsFresh(now time.Time, window time.Duration) bool {
	if r.LastFetched.IsZero() {
		return false
	}
	return now.Sub(r.LastFetched) < window
}
