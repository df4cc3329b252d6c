package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
	"github.com/ericfisherdev/repopulse/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RepoStore = (*RepoRepo)(nil)

// RepoRepo is the SQLite implementation of the RepoStore port interface.
type RepoRepo struct {
	db *DB
}

// NewRepoRepo creates a new RepoRepo backed by the given DB.
func NewRepoRepo(db *DB) *RepoRepo {
	return &RepoRepo{db: db}
}

const repoColumns = `id, full_name, owner, name, stars, forks, watchers, open_issues,
	last_fetched, commits_total, commits_weekly, prs_open, prs_closed, prs_merged,
	issues_open, issues_closed, contributors, merge_time_hours,
	alert_no_activity, alert_long_open_prs, alert_commit_drops, added_at`

// Connect ensures the repository exists and subscribes the user to it, both
// in one transaction. An existing repository keeps its stored metrics.
func (r *RepoRepo) Connect(ctx context.Context, repo model.Repository, userID int64) (*model.Repository, error) {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin connect: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	addedAt := repo.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now().UTC()
	}

	const insert = `
		INSERT INTO repositories (full_name, owner, name, added_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(full_name) DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, insert, repo.FullName, repo.Owner, repo.Name, formatTime(addedAt)); err != nil {
		return nil, fmt.Errorf("insert repository %s: %w", repo.FullName, err)
	}

	stored, err := scanRepository(tx.QueryRowContext(ctx,
		`SELECT `+repoColumns+` FROM repositories WHERE full_name = ?`, repo.FullName))
	if err != nil {
		return nil, fmt.Errorf("load repository %s: %w", repo.FullName, err)
	}

	const subscribe = `
		INSERT INTO repo_subscriptions (user_id, repo_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, repo_id) DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, subscribe, userID, stored.ID, formatTime(time.Now())); err != nil {
		return nil, fmt.Errorf("subscribe user %d to %s: %w", userID, repo.FullName, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit connect: %w", err)
	}

	return stored, nil
}

// Disconnect removes the user's subscription and deletes the repository when
// no subscribers remain, all in one transaction.
func (r *RepoRepo) Disconnect(ctx context.Context, fullName string, userID int64) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin disconnect: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var repoID int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM repositories WHERE full_name = ?`, fullName).Scan(&repoID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("disconnect %s: %w", fullName, driven.ErrRepoNotFound)
	}
	if err != nil {
		return fmt.Errorf("find repository %s: %w", fullName, err)
	}

	result, err := tx.ExecContext(ctx,
		`DELETE FROM repo_subscriptions WHERE user_id = ? AND repo_id = ?`, userID, repoID)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("disconnect %s: %w", fullName, driven.ErrNotSubscribed)
	}

	var remaining int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM repo_subscriptions WHERE repo_id = ?`, repoID).Scan(&remaining); err != nil {
		return fmt.Errorf("count subscribers: %w", err)
	}

	// No orphaned repositories: the last subscriber takes the record with them.
	if remaining == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM repositories WHERE id = ?`, repoID); err != nil {
			return fmt.Errorf("delete orphaned repository %s: %w", fullName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit disconnect: %w", err)
	}

	return nil
}

// GetByFullName retrieves a repository by its full name. Returns nil, nil if
// the repository does not exist.
func (r *RepoRepo) GetByFullName(ctx context.Context, fullName string) (*model.Repository, error) {
	repo, err := scanRepository(r.db.Reader.QueryRowContext(ctx,
		`SELECT `+repoColumns+` FROM repositories WHERE full_name = ?`, fullName))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get repository %s: %w", fullName, err)
	}

	return repo, nil
}

// ListByUser returns the repositories the user subscribes to, ordered by
// full name.
func (r *RepoRepo) ListByUser(ctx context.Context, userID int64) ([]model.Repository, error) {
	query := `SELECT ` + repoColumns + ` FROM repositories
		WHERE id IN (SELECT repo_id FROM repo_subscriptions WHERE user_id = ?)
		ORDER BY full_name`

	rows, err := r.db.Reader.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list repositories for user %d: %w", userID, err)
	}
	defer rows.Close()

	var repos []model.Repository
	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return nil, fmt.Errorf("scan repository: %w", err)
		}
		repos = append(repos, *repo)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate repositories: %w", err)
	}

	return repos, nil
}

// IsSubscriber reports whether the user subscribes to the repository.
func (r *RepoRepo) IsSubscriber(ctx context.Context, repoID, userID int64) (bool, error) {
	var count int
	err := r.db.Reader.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM repo_subscriptions WHERE repo_id = ? AND user_id = ?`,
		repoID, userID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check subscription: %w", err)
	}
	return count > 0, nil
}

// SaveSnapshot atomically replaces the repository's counters, metrics
// snapshot, and last-fetched timestamp in a single UPDATE.
func (r *RepoRepo) SaveSnapshot(ctx context.Context, repoID int64, summary model.RepoSummary, snapshot model.MetricsSnapshot, fetchedAt time.Time) error {
	weekly, err := encodeWeekly(snapshot.CommitsWeekly)
	if err != nil {
		return err
	}

	const query = `
		UPDATE repositories SET
			stars = ?, forks = ?, watchers = ?, open_issues = ?,
			last_fetched = ?, commits_total = ?, commits_weekly = ?,
			prs_open = ?, prs_closed = ?, prs_merged = ?,
			issues_open = ?, issues_closed = ?, contributors = ?, merge_time_hours = ?
		WHERE id = ?
	`

	result, err := r.db.Writer.ExecContext(ctx, query,
		summary.Stars, summary.Forks, summary.Watchers, summary.OpenIssues,
		formatTime(fetchedAt), snapshot.CommitsTotal, weekly,
		snapshot.OpenPRs, snapshot.ClosedPRs, snapshot.MergedPRs,
		snapshot.OpenIssues, snapshot.ClosedIssues, snapshot.Contributors, snapshot.MergeTimeHours,
		repoID,
	)
	if err != nil {
		return fmt.Errorf("save snapshot for repo %d: %w", repoID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("save snapshot for repo %d: %w", repoID, driven.ErrRepoNotFound)
	}

	return nil
}

// SaveAlertFlags stores the latest alert evaluation flags.
func (r *RepoRepo) SaveAlertFlags(ctx context.Context, repoID int64, flags model.AlertFlags) error {
	const query = `
		UPDATE repositories SET alert_no_activity = ?, alert_long_open_prs = ?, alert_commit_drops = ?
		WHERE id = ?
	`

	_, err := r.db.Writer.ExecContext(ctx, query,
		boolToInt(flags.NoActivity), boolToInt(flags.LongOpenPRs), boolToInt(flags.CommitDrops), repoID)
	if err != nil {
		return fmt.Errorf("save alert flags for repo %d: %w", repoID, err)
	}

	return nil
}

func scanRepository(s scanner) (*model.Repository, error) {
	var repo model.Repository
	var lastFetched sql.NullString
	var weekly, addedAt string
	var noActivity, longOpenPRs, commitDrops int

	err := s.Scan(
		&repo.ID, &repo.FullName, &repo.Owner, &repo.Name,
		&repo.Stars, &repo.Forks, &repo.Watchers, &repo.OpenIssues,
		&lastFetched, &repo.Metrics.CommitsTotal, &weekly,
		&repo.Metrics.OpenPRs, &repo.Metrics.ClosedPRs, &repo.Metrics.MergedPRs,
		&repo.Metrics.OpenIssues, &repo.Metrics.ClosedIssues,
		&repo.Metrics.Contributors, &repo.Metrics.MergeTimeHours,
		&noActivity, &longOpenPRs, &commitDrops, &addedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastFetched.Valid && lastFetched.String != "" {
		repo.LastFetched, err = parseTime(lastFetched.String)
		if err != nil {
			return nil, fmt.Errorf("parse last_fetched: %w", err)
		}
	}

	repo.Metrics.CommitsWeekly, err = decodeWeekly(weekly)
	if err != nil {
		return nil, err
	}

	repo.AlertFlags = model.AlertFlags{
		NoActivity:  noActivity != 0,
		LongOpenPRs: longOpenPRs != 0,
		CommitDrops: commitDrops != 0,
	}

	repo.AddedAt, err = parseTime(addedAt)
	if err != nil {
		return nil, fmt.Errorf("parse added_at: %w", err)
	}

	return &repo, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
