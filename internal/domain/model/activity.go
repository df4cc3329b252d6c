package model

import "time"

// RepoSummary is the repository-level data returned by GitHub's repo
// endpoint. It feeds the counters on Repository during a refresh.
type RepoSummary struct {
	GitHubID   int64
	FullName   string
	Owner      string
	Name       string
	Stars      int
	Forks      int
	Watchers   int
	OpenIssues int
}

// WeeklyCommits is one bucket of GitHub's commit activity statistics.
type WeeklyCommits struct {
	WeekStart time.Time
	Total     int
}

// PullRequest is a pull request as fetched from GitHub. It is an input to
// metrics aggregation and alert evaluation and is not persisted.
type PullRequest struct {
	Number    int
	Title     string
	Author    string
	State     string
	CreatedAt time.Time
	ClosedAt  time.Time
	MergedAt  *time.Time
}

// IsMerged reports whether the PR was merged (closed with a merge timestamp).
func (pr PullRequest) IsMerged() bool {
	return pr.MergedAt != nil && !pr.MergedAt.IsZero()
}

// Age returns how long the PR has been open as of now.
func (pr PullRequest) Age(now time.Time) time.Duration {
	return now.Sub(pr.CreatedAt)
}

// Issue is an issue as fetched from GitHub. Pull requests returned by the
// issues endpoint are filtered out by the adapter.
type Issue struct {
	Number    int
	Title     string
	State     string
	CreatedAt time.Time
	ClosedAt  time.Time
}

// Contributor is a repository contributor as fetched from GitHub.
type Contributor struct {
	Login         string
	Contributions int
}

// GitHubUser is the authenticated GitHub account behind a credential.
type GitHubUser struct {
	ID    int64
	Login string
	Email string
}
