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
var _ driven.UserStore = (*UserRepo)(nil)

// UserRepo is the SQLite implementation of the UserStore port interface.
type UserRepo struct {
	db *DB
}

// NewUserRepo creates a new UserRepo backed by the given DB.
func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, github_id, github_login, email, access_token,
	email_reports_enabled, email_cadence, report_email, created_at, updated_at`

// Upsert creates the user on first authentication or refreshes identity,
// email, and cached access token on later ones. Report preferences are not
// touched by re-authentication.
func (r *UserRepo) Upsert(ctx context.Context, user *model.User) error {
	now := formatTime(time.Now())
	cadence := user.EmailReports.Cadence
	if cadence == "" {
		cadence = model.ReportWeekly
	}

	const query = `
		INSERT INTO users (github_id, github_login, email, access_token,
			email_reports_enabled, email_cadence, report_email, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(github_login) DO UPDATE SET
			github_id = excluded.github_id,
			email = excluded.email,
			access_token = excluded.access_token,
			updated_at = excluded.updated_at
	`

	_, err := r.db.Writer.ExecContext(ctx, query,
		user.GitHubID, user.GitHubLogin, user.Email, user.AccessToken,
		boolToInt(user.EmailReports.Enabled), string(cadence), user.EmailReports.Address, now, now)
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", user.GitHubLogin, err)
	}

	stored, err := r.GetByLogin(ctx, user.GitHubLogin)
	if err != nil {
		return err
	}
	if stored == nil {
		return fmt.Errorf("upsert user %s: %w", user.GitHubLogin, driven.ErrUserNotFound)
	}

	*user = *stored
	return nil
}

// GetByID retrieves a user. Returns nil, nil when no such user exists.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	user, err := scanUser(r.db.Reader.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}

	return user, nil
}

// GetByLogin retrieves a user by GitHub login. Returns nil, nil when no such
// user exists.
func (r *UserRepo) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	user, err := scanUser(r.db.Reader.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE github_login = ?`, login))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", login, err)
	}

	return user, nil
}

// UpdateEmailReports stores the user's report preference.
func (r *UserRepo) UpdateEmailReports(ctx context.Context, userID int64, settings model.EmailReportSettings) error {
	const query = `
		UPDATE users SET email_reports_enabled = ?, email_cadence = ?, report_email = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Writer.ExecContext(ctx, query,
		boolToInt(settings.Enabled), string(settings.Cadence), settings.Address, formatTime(time.Now()), userID)
	if err != nil {
		return fmt.Errorf("update email reports for user %d: %w", userID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update email reports for user %d: %w", userID, driven.ErrUserNotFound)
	}

	return nil
}

// ListWithReportsEnabled returns users whose email reports are enabled at
// the given cadence, ordered by login.
func (r *UserRepo) ListWithReportsEnabled(ctx context.Context, cadence model.ReportType) ([]model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE email_reports_enabled = 1 AND email_cadence = ?
		ORDER BY github_login`

	rows, err := r.db.Reader.QueryContext(ctx, query, string(cadence))
	if err != nil {
		return nil, fmt.Errorf("list users with reports at %s: %w", cadence, err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

// Delete removes the user, their subscriptions, and any repositories left
// without subscribers, all in one transaction.
func (r *UserRepo) Delete(ctx context.Context, userID int64) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete user: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Subscriptions, alerts, and reports cascade via foreign keys.
	result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete user %d: %w", userID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("delete user %d: %w", userID, driven.ErrUserNotFound)
	}

	// Cascade-evaluate emptiness: repositories left without any subscriber
	// go with the departing user.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM repositories WHERE id NOT IN (SELECT repo_id FROM repo_subscriptions)`); err != nil {
		return fmt.Errorf("delete orphaned repositories: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete user: %w", err)
	}

	return nil
}

func scanUser(s scanner) (*model.User, error) {
	var user model.User
	var enabled int
	var cadence, address, createdAt, updatedAt string

	err := s.Scan(
		&user.ID, &user.GitHubID, &user.GitHubLogin, &user.Email, &user.AccessToken,
		&enabled, &cadence, &address, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.EmailReports = model.EmailReportSettings{
		Enabled: enabled != 0,
		Cadence: model.ReportType(cadence),
		Address: address,
	}

	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if user.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &user, nil
}
