package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
	"github.com/ericfisherdev/repopulse/internal/domain/port/driven"
)

// DefaultStalenessWindow is how long a stored snapshot is served without
// hitting GitHub again.
const DefaultStalenessWindow = time.Hour

// MetricsService orchestrates the repository metrics refresh pipeline:
// fetch the required GitHub resources, aggregate them into a snapshot,
// persist it atomically, and hand the result to alert evaluation.
type MetricsService struct {
	clients   driven.GitHubClientFactory
	userStore driven.UserStore
	repoStore driven.RepoStore
	alertSvc  *AlertService
	staleness time.Duration
	group     singleflight.Group
	logger    *slog.Logger
}

// NewMetricsService creates a MetricsService. A non-positive staleness
// window falls back to DefaultStalenessWindow.
func NewMetricsService(
	clients driven.GitHubClientFactory,
	userStore driven.UserStore,
	repoStore driven.RepoStore,
	alertSvc *AlertService,
	staleness time.Duration,
) *MetricsService {
	if staleness <= 0 {
		staleness = DefaultStalenessWindow
	}
	return &MetricsService{
		clients:   clients,
		userStore: userStore,
		repoStore: repoStore,
		alertSvc:  alertSvc,
		staleness: staleness,
		logger:    slog.Default(),
	}
}

// ConnectRepository subscribes the user to a repository, creating it on
// first connect, and triggers an initial refresh. The refresh failing does
// not undo the connection; the repository simply has no metrics yet.
func (s *MetricsService) ConnectRepository(ctx context.Context, userID int64, owner, name string) (*model.Repository, error) {
	repo := model.Repository{
		FullName: owner + "/" + name,
		Owner:    owner,
		Name:     name,
		AddedAt:  time.Now().UTC(),
	}

	stored, err := s.repoStore.Connect(ctx, repo, userID)
	if err != nil {
		return nil, err
	}

	if _, err := s.RefreshRepository(ctx, userID, stored.FullName); err != nil {
		s.logger.Warn("initial refresh failed",
			"repo", stored.FullName,
			"user_id", userID,
			"error", err,
		)
	}

	return s.repoStore.GetByFullName(ctx, stored.FullName)
}

// DisconnectRepository removes the user's subscription. The repository is
// deleted when the last subscriber disconnects.
func (s *MetricsService) DisconnectRepository(ctx context.Context, userID int64, fullName string) error {
	return s.repoStore.Disconnect(ctx, fullName, userID)
}

// ListRepositories returns the user's connected repositories with their
// stored metrics.
func (s *MetricsService) ListRepositories(ctx context.Context, userID int64) ([]model.Repository, error) {
	return s.repoStore.ListByUser(ctx, userID)
}

// RefreshRepository refreshes the repository's metrics snapshot on behalf of
// the user and returns it. A snapshot younger than the staleness window is
// served from the store without touching GitHub; concurrent refreshes of the
// same repository are collapsed into a single fetch, with every caller
// receiving the shared result.
func (s *MetricsService) RefreshRepository(ctx context.Context, userID int64, fullName string) (model.MetricsSnapshot, error) {
	user, err := s.userStore.GetByID(ctx, userID)
	if err != nil {
		return model.MetricsSnapshot{}, err
	}
	if user == nil {
		return model.MetricsSnapshot{}, driven.ErrUserNotFound
	}

	repo, err := s.repoStore.GetByFullName(ctx, fullName)
	if err != nil {
		return model.MetricsSnapshot{}, err
	}
	if repo == nil {
		return model.MetricsSnapshot{}, driven.ErrRepoNotFound
	}

	subscribed, err := s.repoStore.IsSubscriber(ctx, repo.ID, userID)
	if err != nil {
		return model.MetricsSnapshot{}, err
	}
	if !subscribed {
		return model.MetricsSnapshot{}, driven.ErrNotSubscribed
	}

	if repo.IsFresh(time.Now(), s.staleness) {
		return repo.Metrics, nil
	}

	result, err, shared := s.group.Do(fullName, func() (any, error) {
		// Re-read inside the flight: a refresh that completed while this
		// caller queued satisfies the staleness window.
		current, err := s.repoStore.GetByFullName(ctx, fullName)
		if err != nil {
			return model.MetricsSnapshot{}, err
		}
		if current == nil {
			return model.MetricsSnapshot{}, driven.ErrRepoNotFound
		}
		if current.IsFresh(time.Now(), s.staleness) {
			return current.Metrics, nil
		}
		return s.refresh(ctx, user, current)
	})
	if err != nil {
		return model.MetricsSnapshot{}, err
	}
	if shared {
		s.logger.Debug("refresh result shared", "repo", fullName)
	}

	return result.(model.MetricsSnapshot), nil
}

// refresh runs the full pipeline for one repository. Any fetch failure
// aborts the whole refresh; partial snapshots are never persisted.
func (s *MetricsService) refresh(ctx context.Context, user *model.User, repo *model.Repository) (model.MetricsSnapshot, error) {
	start := time.Now()
	client := s.clients.ClientFor(user.AccessToken)

	summary, err := client.FetchRepository(ctx, repo.Owner, repo.Name)
	if err != nil {
		return model.MetricsSnapshot{}, fmt.Errorf("fetch repository %s: %w", repo.FullName, err)
	}

	weekly, err := client.FetchWeeklyCommitActivity(ctx, repo.Owner, repo.Name)
	if err != nil {
		return model.MetricsSnapshot{}, fmt.Errorf("fetch commit activity %s: %w", repo.FullName, err)
	}

	// The remaining resources are independent; fetch them concurrently.
	// Any one failing fails the whole refresh.
	var openPRs, closedPRs []model.PullRequest
	var openIssues, closedIssues []model.Issue
	var contributors []model.Contributor

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		openPRs, err = client.FetchPullRequests(egCtx, repo.Owner, repo.Name, "open")
		return err
	})
	eg.Go(func() error {
		var err error
		closedPRs, err = client.FetchPullRequests(egCtx, repo.Owner, repo.Name, "closed")
		return err
	})
	eg.Go(func() error {
		var err error
		openIssues, err = client.FetchIssues(egCtx, repo.Owner, repo.Name, "open")
		return err
	})
	eg.Go(func() error {
		var err error
		closedIssues, err = client.FetchIssues(egCtx, repo.Owner, repo.Name, "closed")
		return err
	})
	eg.Go(func() error {
		var err error
		contributors, err = client.FetchContributors(egCtx, repo.Owner, repo.Name)
		return err
	})
	if err := eg.Wait(); err != nil {
		return model.MetricsSnapshot{}, fmt.Errorf("fetch resources %s: %w", repo.FullName, err)
	}

	snapshot := BuildSnapshot(weekly, openPRs, closedPRs, openIssues, closedIssues, contributors)

	fetchedAt := time.Now().UTC()
	if err := s.repoStore.SaveSnapshot(ctx, repo.ID, *summary, snapshot, fetchedAt); err != nil {
		return model.MetricsSnapshot{}, fmt.Errorf("save snapshot %s: %w", repo.FullName, err)
	}

	s.alertSvc.EvaluateAndRecord(ctx, user.ID, repo, snapshot, openPRs, fetchedAt)

	s.logger.Info("repository refreshed",
		"repo", repo.FullName,
		"commits_total", snapshot.CommitsTotal,
		"open_prs", snapshot.OpenPRs,
		"contributors", snapshot.Contributors,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return snapshot, nil
}

// BuildSnapshot aggregates fetched GitHub resources into a metrics snapshot.
// The weekly series is ordered most-recent-last and capped at the lookback
// window; the commit total is always its sum.
func BuildSnapshot(
	weekly []model.WeeklyCommits,
	openPRs, closedPRs []model.PullRequest,
	openIssues, closedIssues []model.Issue,
	contributors []model.Contributor,
) model.MetricsSnapshot {
	if len(weekly) > model.WeeklyLookback {
		weekly = weekly[len(weekly)-model.WeeklyLookback:]
	}

	series := make([]int, 0, len(weekly))
	total := 0
	for _, week := range weekly {
		count := week.Total
		if count < 0 {
			count = 0
		}
		series = append(series, count)
		total += count
	}

	merged := 0
	for _, pr := range closedPRs {
		if pr.IsMerged() {
			merged++
		}
	}

	return model.MetricsSnapshot{
		CommitsTotal:   total,
		CommitsWeekly:  series,
		OpenPRs:        len(openPRs),
		ClosedPRs:      len(closedPRs) - merged,
		MergedPRs:      merged,
		OpenIssues:     len(openIssues),
		ClosedIssues:   len(closedIssues),
		Contributors:   len(contributors),
		MergeTimeHours: MergeTimeHours(closedPRs),
	}
}

// MergeTimeHours returns the mean hours from creation to merge over merged
// PRs. Zero when no PRs were merged; never negative.
func MergeTimeHours(prs []model.PullRequest) float64 {
	var durations []float64
	for _, pr := range prs {
		if !pr.IsMerged() {
			continue
		}
		hours := pr.MergedAt.Sub(pr.CreatedAt).Hours()
		if hours < 0 {
			hours = 0
		}
		durations = append(durations, hours)
	}

	if len(durations) == 0 {
		return 0
	}

	mean, err := stats.Mean(durations)
	if err != nil {
		return 0
	}
	return mean
}
