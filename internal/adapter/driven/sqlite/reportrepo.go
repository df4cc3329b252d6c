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
var _ driven.ReportStore = (*ReportRepo)(nil)

// ReportRepo is the SQLite implementation of the ReportStore port interface.
type ReportRepo struct {
	db *DB
}

// NewReportRepo creates a new ReportRepo backed by the given DB.
func NewReportRepo(db *DB) *ReportRepo {
	return &ReportRepo{db: db}
}

const reportColumns = `rp.id, rp.user_id, rp.repo_id, r.full_name, rp.report_type,
	rp.start_date, rp.end_date, rp.commits_total, rp.commits_weekly,
	rp.prs_open, rp.prs_closed, rp.prs_merged, rp.issues_open, rp.issues_closed,
	rp.contributors, rp.merge_time_hours, rp.status, rp.sent_at, rp.created_at`

// Create inserts a new report and fills in its assigned ID.
func (r *ReportRepo) Create(ctx context.Context, report *model.Report) error {
	weekly, err := encodeWeekly(report.Data.CommitsWeekly)
	if err != nil {
		return err
	}

	createdAt := report.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO reports (
			user_id, repo_id, report_type, start_date, end_date,
			commits_total, commits_weekly, prs_open, prs_closed, prs_merged,
			issues_open, issues_closed, contributors, merge_time_hours,
			status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Writer.ExecContext(ctx, query,
		report.UserID, report.RepoID, string(report.Type),
		formatTime(report.StartDate), formatTime(report.EndDate),
		report.Data.CommitsTotal, weekly,
		report.Data.OpenPRs, report.Data.ClosedPRs, report.Data.MergedPRs,
		report.Data.OpenIssues, report.Data.ClosedIssues,
		report.Data.Contributors, report.Data.MergeTimeHours,
		string(report.Status), formatTime(createdAt),
	)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("report insert id: %w", err)
	}

	report.ID = id
	report.CreatedAt = createdAt
	return nil
}

// GetByID retrieves a report. Returns nil, nil when no such report exists.
func (r *ReportRepo) GetByID(ctx context.Context, id int64) (*model.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports rp
		JOIN repositories r ON r.id = rp.repo_id
		WHERE rp.id = ?`

	report, err := scanReport(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get report %d: %w", id, err)
	}

	return report, nil
}

// ListByUser returns the user's reports, newest first.
func (r *ReportRepo) ListByUser(ctx context.Context, userID int64) ([]model.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports rp
		JOIN repositories r ON r.id = rp.repo_id
		WHERE rp.user_id = ?
		ORDER BY rp.created_at DESC, rp.id DESC`

	rows, err := r.db.Reader.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list reports for user %d: %w", userID, err)
	}
	defer rows.Close()

	var reports []model.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, *report)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}

	return reports, nil
}

// MarkSent stamps the report sent at the given time.
func (r *ReportRepo) MarkSent(ctx context.Context, id int64, sentAt time.Time) error {
	return r.setStatus(ctx, id, model.ReportStatusSent, &sentAt)
}

// MarkFailed records a delivery failure.
func (r *ReportRepo) MarkFailed(ctx context.Context, id int64) error {
	return r.setStatus(ctx, id, model.ReportStatusFailed, nil)
}

func (r *ReportRepo) setStatus(ctx context.Context, id int64, status model.ReportStatus, sentAt *time.Time) error {
	var sentAtVal any
	if sentAt != nil {
		sentAtVal = formatTime(*sentAt)
	}

	const query = `UPDATE reports SET status = ?, sent_at = ? WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, string(status), sentAtVal, id)
	if err != nil {
		return fmt.Errorf("update report %d status: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update report %d status: %w", id, driven.ErrReportNotFound)
	}

	return nil
}

func scanReport(s scanner) (*model.Report, error) {
	var report model.Report
	var reportType, startDate, endDate, weekly, status, createdAt string
	var sentAt sql.NullString

	err := s.Scan(
		&report.ID, &report.UserID, &report.RepoID, &report.RepoFullName,
		&reportType, &startDate, &endDate,
		&report.Data.CommitsTotal, &weekly,
		&report.Data.OpenPRs, &report.Data.ClosedPRs, &report.Data.MergedPRs,
		&report.Data.OpenIssues, &report.Data.ClosedIssues,
		&report.Data.Contributors, &report.Data.MergeTimeHours,
		&status, &sentAt, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	report.Type = model.ReportType(reportType)
	report.Status = model.ReportStatus(status)

	if report.StartDate, err = parseTime(startDate); err != nil {
		return nil, fmt.Errorf("parse start_date: %w", err)
	}
	if report.EndDate, err = parseTime(endDate); err != nil {
		return nil, fmt.Errorf("parse end_date: %w", err)
	}
	if report.Data.CommitsWeekly, err = decodeWeekly(weekly); err != nil {
		return nil, err
	}
	if report.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	if sentAt.Valid && sentAt.String != "" {
		t, err := parseTime(sentAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse sent_at: %w", err)
		}
		report.SentAt = &t
	}

	return &report, nil
}
