// Package github implements the GitHubClient port using the go-github library.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
	"github.com/ericfisherdev/repopulse/internal/domain/port/driven"
)

// pageSize is the per-page cap applied to every list request. Only the first
// page is requested; counts derived from lists therefore cap at 100, which
// is accepted for dashboard purposes. Weekly commit activity is the
// exception: GitHub returns the full 52-week series in one response.
const pageSize = 100

// Compile-time interface satisfaction check.
var _ driven.GitHubClient = (*Client)(nil)

// Client implements the driven.GitHubClient port for a single credential.
type Client struct {
	gh *gh.Client
}

// NewClient creates a GitHub API client with the following transport stack:
//  1. bounded request timeout (outbound calls fail rather than hang)
//  2. httpcache (ETag-based conditional request caching)
//  3. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  4. go-github (GitHub REST API client with token auth)
func NewClient(token string, timeout time.Duration) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	rateLimitClient.Timeout = timeout
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	return &Client{gh: client}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base
// URL. This constructor is intended for testing, allowing injection of an
// httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{gh: client}, nil
}

// FetchAuthenticatedUser returns the account behind the client's credential.
func (c *Client) FetchAuthenticatedUser(ctx context.Context) (*model.GitHubUser, error) {
	user, resp, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return nil, mapError(err)
	}

	logRateLimit(resp, "user", 1)

	return &model.GitHubUser{
		ID:    user.GetID(),
		Login: user.GetLogin(),
		Email: user.GetEmail(),
	}, nil
}

// FetchRepository returns the repository summary used to refresh counters.
func (c *Client) FetchRepository(ctx context.Context, owner, name string) (*model.RepoSummary, error) {
	repo, resp, err := c.gh.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, mapError(err)
	}

	logRateLimit(resp, owner+"/"+name, 1)

	return &model.RepoSummary{
		GitHubID:   repo.GetID(),
		FullName:   repo.GetFullName(),
		Owner:      repo.GetOwner().GetLogin(),
		Name:       repo.GetName(),
		Stars:      repo.GetStargazersCount(),
		Forks:      repo.GetForksCount(),
		Watchers:   repo.GetSubscribersCount(),
		OpenIssues: repo.GetOpenIssuesCount(),
	}, nil
}

// FetchWeeklyCommitActivity returns GitHub's 52-week commit series, oldest
// first. GitHub computes these statistics lazily; a 202 response surfaces as
// an UpstreamError with status 202 and the caller may retry later.
func (c *Client) FetchWeeklyCommitActivity(ctx context.Context, owner, name string) ([]model.WeeklyCommits, error) {
	activity, resp, err := c.gh.Repositories.ListCommitActivity(ctx, owner, name)
	if err != nil {
		return nil, mapError(err)
	}

	logRateLimit(resp, owner+"/"+name+"/stats", len(activity))

	weeks := make([]model.WeeklyCommits, 0, len(activity))
	for _, w := range activity {
		weeks = append(weeks, model.WeeklyCommits{
			WeekStart: w.GetWeek().Time,
			Total:     w.GetTotal(),
		})
	}

	return weeks, nil
}

// FetchPullRequests returns the first page of pull requests in the given
// state ("open" or "closed"), newest first.
func (c *Client) FetchPullRequests(ctx context.Context, owner, name, state string) ([]model.PullRequest, error) {
	opts := &gh.PullRequestListOptions{
		State:     state,
		Sort:      "created",
		Direction: "desc",
		ListOptions: gh.ListOptions{
			PerPage: pageSize,
		},
	}

	prs, resp, err := c.gh.PullRequests.List(ctx, owner, name, opts)
	if err != nil {
		return nil, mapError(err)
	}

	logRateLimit(resp, owner+"/"+name+"/pulls", len(prs))

	result := make([]model.PullRequest, 0, len(prs))
	for _, pr := range prs {
		result = append(result, mapPullRequest(pr))
	}

	return result, nil
}

// FetchIssues returns the first page of true issues in the given state.
// GitHub's issues endpoint also returns pull requests; those are filtered out.
func (c *Client) FetchIssues(ctx context.Context, owner, name, state string) ([]model.Issue, error) {
	opts := &gh.IssueListByRepoOptions{
		State: state,
		ListOptions: gh.ListOptions{
			PerPage: pageSize,
		},
	}

	issues, resp, err := c.gh.Issues.ListByRepo(ctx, owner, name, opts)
	if err != nil {
		return nil, mapError(err)
	}

	logRateLimit(resp, owner+"/"+name+"/issues", len(issues))

	result := make([]model.Issue, 0, len(issues))
	for _, issue := range issues {
		if issue.IsPullRequest() {
			continue
		}
		result = append(result, model.Issue{
			Number:    issue.GetNumber(),
			Title:     issue.GetTitle(),
			State:     issue.GetState(),
			CreatedAt: issue.GetCreatedAt().Time,
			ClosedAt:  issue.GetClosedAt().Time,
		})
	}

	return result, nil
}

// FetchContributors returns the first page of repository contributors.
func (c *Client) FetchContributors(ctx context.Context, owner, name string) ([]model.Contributor, error) {
	opts := &gh.ListContributorsOptions{
		ListOptions: gh.ListOptions{
			PerPage: pageSize,
		},
	}

	contributors, resp, err := c.gh.Repositories.ListContributors(ctx, owner, name, opts)
	if err != nil {
		return nil, mapError(err)
	}

	logRateLimit(resp, owner+"/"+name+"/contributors", len(contributors))

	result := make([]model.Contributor, 0, len(contributors))
	for _, contributor := range contributors {
		result = append(result, model.Contributor{
			Login:         contributor.GetLogin(),
			Contributions: contributor.GetContributions(),
		})
	}

	return result, nil
}

// mapPullRequest converts a go-github PullRequest to the domain type.
// It uses GetXxx() helper methods exclusively to avoid nil pointer panics.
func mapPullRequest(pr *gh.PullRequest) model.PullRequest {
	var mergedAt *time.Time
	if !pr.GetMergedAt().IsZero() {
		t := pr.GetMergedAt().Time
		mergedAt = &t
	}

	return model.PullRequest{
		Number:    pr.GetNumber(),
		Title:     pr.GetTitle(),
		Author:    pr.GetUser().GetLogin(),
		State:     pr.GetState(),
		CreatedAt: pr.GetCreatedAt().Time,
		ClosedAt:  pr.GetClosedAt().Time,
		MergedAt:  mergedAt,
	}
}

// mapError translates go-github failures into the port's error taxonomy.
func mapError(err error) error {
	var accepted *gh.AcceptedError
	if errors.As(err, &accepted) {
		return &driven.UpstreamError{
			StatusCode: http.StatusAccepted,
			Message:    "statistics are being generated, retry later",
		}
	}

	var errResp *gh.ErrorResponse
	if errors.As(err, &errResp) {
		status := 0
		if errResp.Response != nil {
			status = errResp.Response.StatusCode
		}
		return &driven.UpstreamError{StatusCode: status, Message: errResp.Message}
	}

	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		status := http.StatusForbidden
		if rateErr.Response != nil {
			status = rateErr.Response.StatusCode
		}
		return &driven.UpstreamError{StatusCode: status, Message: rateErr.Message}
	}

	return &driven.TransportError{Err: err}
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}
