package driven

import (
	"context"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
)

// GitHubClient defines the driven port for reading from the GitHub API on
// behalf of one credential. Each method fetches a single resource; failures
// are reported as *UpstreamError (GitHub error status) or *TransportError
// (network/timeout). Retry policy belongs to the caller.
type GitHubClient interface {
	// FetchAuthenticatedUser returns the account behind the client's credential.
	FetchAuthenticatedUser(ctx context.Context) (*model.GitHubUser, error)

	// FetchRepository returns the repository summary (counters, identity).
	FetchRepository(ctx context.Context, owner, name string) (*model.RepoSummary, error)

	// FetchWeeklyCommitActivity returns GitHub's fixed 52-week commit series,
	// oldest first. A 202 (statistics still being computed) surfaces as an
	// UpstreamError with that status.
	FetchWeeklyCommitActivity(ctx context.Context, owner, name string) ([]model.WeeklyCommits, error)

	// FetchPullRequests returns the first page (up to 100) of pull requests
	// in the given state ("open" or "closed").
	FetchPullRequests(ctx context.Context, owner, name, state string) ([]model.PullRequest, error)

	// FetchIssues returns the first page (up to 100) of true issues in the
	// given state; pull requests are filtered out.
	FetchIssues(ctx context.Context, owner, name, state string) ([]model.Issue, error)

	// FetchContributors returns the first page (up to 100) of contributors.
	FetchContributors(ctx context.Context, owner, name string) ([]model.Contributor, error)
}

// GitHubClientFactory hands out a GitHubClient scoped to a credential. The
// core never constructs clients itself, so tests can substitute fakes and
// the adapter can reuse transports per token.
type GitHubClientFactory interface {
	ClientFor(token string) GitHubClient
}
