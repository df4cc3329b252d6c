package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
	"github.com/ericfisherdev/repopulse/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ThresholdStore = (*ThresholdRepo)(nil)

// ThresholdRepo is the SQLite implementation of the ThresholdStore port interface.
type ThresholdRepo struct {
	db *DB
}

// NewThresholdRepo creates a new ThresholdRepo backed by the given DB.
func NewThresholdRepo(db *DB) *ThresholdRepo {
	return &ThresholdRepo{db: db}
}

// GetGlobalSettings returns the current global threshold defaults.
// Falls back to model.DefaultAlertSettings() for any missing key or if the
// table is empty.
func (r *ThresholdRepo) GetGlobalSettings(ctx context.Context) (model.AlertSettings, error) {
	const query = `SELECT key, value FROM global_settings WHERE key IN ('no_activity_days', 'long_open_prs_days', 'commit_drop_percentage')`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return model.DefaultAlertSettings(), fmt.Errorf("query global_settings: %w", err)
	}
	defer rows.Close()

	settings := model.DefaultAlertSettings()
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return model.DefaultAlertSettings(), fmt.Errorf("scan global_settings row: %w", err)
		}
		switch key {
		case "no_activity_days":
			if v, err := strconv.Atoi(value); err == nil {
				settings.NoActivityDays = v
			}
		case "long_open_prs_days":
			if v, err := strconv.Atoi(value); err == nil {
				settings.LongOpenPRsDays = v
			}
		case "commit_drop_percentage":
			if v, err := strconv.Atoi(value); err == nil {
				settings.CommitDropPercentage = v
			}
		}
	}
	if err := rows.Err(); err != nil {
		return model.DefaultAlertSettings(), fmt.Errorf("iterate global_settings: %w", err)
	}

	return settings, nil
}

// SetGlobalSettings persists the global threshold defaults using a transaction.
func (r *ThresholdRepo) SetGlobalSettings(ctx context.Context, settings model.AlertSettings) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const upsert = `INSERT OR REPLACE INTO global_settings (key, value) VALUES (?, ?)`

	rows := []struct{ key, value string }{
		{"no_activity_days", strconv.Itoa(settings.NoActivityDays)},
		{"long_open_prs_days", strconv.Itoa(settings.LongOpenPRsDays)},
		{"commit_drop_percentage", strconv.Itoa(settings.CommitDropPercentage)},
	}
	for _, row := range rows {
		if _, err := tx.ExecContext(ctx, upsert, row.key, row.value); err != nil {
			return fmt.Errorf("upsert global_settings %q: %w", row.key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit global_settings: %w", err)
	}
	return nil
}

// GetRepoThreshold returns the per-repository threshold overrides for the
// given repository. Returns a zero-value RepoAlertThreshold (all nil
// pointers) when no override exists.
func (r *ThresholdRepo) GetRepoThreshold(ctx context.Context, repoFullName string) (model.RepoAlertThreshold, error) {
	const query = `
		SELECT repo_full_name, no_activity_days, long_open_prs_days, commit_drop_percentage
		FROM repo_alert_thresholds
		WHERE repo_full_name = ?
	`

	var result model.RepoAlertThreshold
	var noActivity, longOpen, commitDrop sql.NullInt64

	err := r.db.Reader.QueryRowContext(ctx, query, repoFullName).Scan(
		&result.RepoFullName,
		&noActivity,
		&longOpen,
		&commitDrop,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RepoAlertThreshold{RepoFullName: repoFullName}, nil
	}
	if err != nil {
		return model.RepoAlertThreshold{}, fmt.Errorf("get repo threshold %q: %w", repoFullName, err)
	}

	if noActivity.Valid {
		v := int(noActivity.Int64)
		result.NoActivityDays = &v
	}
	if longOpen.Valid {
		v := int(longOpen.Int64)
		result.LongOpenPRsDays = &v
	}
	if commitDrop.Valid {
		v := int(commitDrop.Int64)
		result.CommitDropPercentage = &v
	}

	return result, nil
}

// SetRepoThreshold persists per-repository threshold overrides.
func (r *ThresholdRepo) SetRepoThreshold(ctx context.Context, threshold model.RepoAlertThreshold) error {
	const query = `
		INSERT OR REPLACE INTO repo_alert_thresholds (repo_full_name, no_activity_days, long_open_prs_days, commit_drop_percentage)
		VALUES (?, ?, ?, ?)
	`

	var noActivity, longOpen, commitDrop any
	if threshold.NoActivityDays != nil {
		noActivity = *threshold.NoActivityDays
	}
	if threshold.LongOpenPRsDays != nil {
		longOpen = *threshold.LongOpenPRsDays
	}
	if threshold.CommitDropPercentage != nil {
		commitDrop = *threshold.CommitDropPercentage
	}

	_, err := r.db.Writer.ExecContext(ctx, query,
		threshold.RepoFullName, noActivity, longOpen, commitDrop,
	)
	if err != nil {
		return fmt.Errorf("set repo threshold %q: %w", threshold.RepoFullName, err)
	}
	return nil
}

// DeleteRepoThreshold removes the per-repository override for the given
// repo, causing it to fall back to global settings.
func (r *ThresholdRepo) DeleteRepoThreshold(ctx context.Context, repoFullName string) error {
	const query = `DELETE FROM repo_alert_thresholds WHERE repo_full_name = ?`
	_, err := r.db.Writer.ExecContext(ctx, query, repoFullName)
	if err != nil {
		return fmt.Errorf("delete repo threshold %q: %w", repoFullName, err)
	}
	return nil
}
