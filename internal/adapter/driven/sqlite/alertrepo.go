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
var _ driven.AlertStore = (*AlertRepo)(nil)

// AlertRepo is the SQLite implementation of the AlertStore port interface.
type AlertRepo struct {
	db *DB
}

// NewAlertRepo creates a new AlertRepo backed by the given DB.
func NewAlertRepo(db *DB) *AlertRepo {
	return &AlertRepo{db: db}
}

const alertColumns = `a.id, a.user_id, a.repo_id, r.full_name, a.type, a.message,
	a.threshold, a.value, a.status, a.created_at, a.resolved_at`

// Create inserts a new alert and fills in its assigned ID.
func (r *AlertRepo) Create(ctx context.Context, alert *model.Alert) error {
	createdAt := alert.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO alerts (user_id, repo_id, type, message, threshold, value, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Writer.ExecContext(ctx, query,
		alert.UserID, alert.RepoID, string(alert.Type), alert.Message,
		alert.Threshold, alert.Value, string(alert.Status), formatTime(createdAt))
	if err != nil {
		return fmt.Errorf("create alert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("alert insert id: %w", err)
	}

	alert.ID = id
	alert.CreatedAt = createdAt
	return nil
}

// GetByID retrieves an alert. Returns nil, nil when no such alert exists.
func (r *AlertRepo) GetByID(ctx context.Context, id int64) (*model.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts a
		JOIN repositories r ON r.id = a.repo_id
		WHERE a.id = ?`

	alert, err := scanAlert(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get alert %d: %w", id, err)
	}

	return alert, nil
}

// GetActive returns the active alert of the given type for the repository,
// or nil, nil when none is active.
func (r *AlertRepo) GetActive(ctx context.Context, repoID int64, alertType model.AlertType) (*model.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts a
		JOIN repositories r ON r.id = a.repo_id
		WHERE a.repo_id = ? AND a.type = ? AND a.status = ?
		ORDER BY a.created_at DESC
		LIMIT 1`

	alert, err := scanAlert(r.db.Reader.QueryRowContext(ctx, query,
		repoID, string(alertType), string(model.AlertStatusActive)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active alert repo %d type %s: %w", repoID, alertType, err)
	}

	return alert, nil
}

// ListByUser returns all alerts for repositories the user subscribes to,
// newest first.
func (r *AlertRepo) ListByUser(ctx context.Context, userID int64) ([]model.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts a
		JOIN repositories r ON r.id = a.repo_id
		WHERE a.repo_id IN (SELECT repo_id FROM repo_subscriptions WHERE user_id = ?)
		ORDER BY a.created_at DESC, a.id DESC`

	rows, err := r.db.Reader.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list alerts for user %d: %w", userID, err)
	}
	defer rows.Close()

	var alerts []model.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, *alert)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}

	return alerts, nil
}

// UpdateStatus transitions an alert. resolved_at is stamped when the alert
// leaves the active state and cleared otherwise.
func (r *AlertRepo) UpdateStatus(ctx context.Context, id int64, status model.AlertStatus) error {
	var resolvedAt any
	if status != model.AlertStatusActive {
		resolvedAt = formatTime(time.Now())
	}

	const query = `UPDATE alerts SET status = ?, resolved_at = ? WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, string(status), resolvedAt, id)
	if err != nil {
		return fmt.Errorf("update alert %d status: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update alert %d status: %w", id, driven.ErrAlertNotFound)
	}

	return nil
}

func scanAlert(s scanner) (*model.Alert, error) {
	var alert model.Alert
	var alertType, status, createdAt string
	var resolvedAt sql.NullString

	err := s.Scan(
		&alert.ID, &alert.UserID, &alert.RepoID, &alert.RepoFullName,
		&alertType, &alert.Message, &alert.Threshold, &alert.Value,
		&status, &createdAt, &resolvedAt,
	)
	if err != nil {
		return nil, err
	}

	alert.Type = model.AlertType(alertType)
	alert.Status = model.AlertStatus(status)

	alert.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	if resolvedAt.Valid && resolvedAt.String != "" {
		t, err := parseTime(resolvedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse resolved_at: %w", err)
		}
		alert.ResolvedAt = &t
	}

	return &alert, nil
}
