package application

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
	"github.com/ericfisherdev/repopulse/internal/domain/port/driven"
)

// DefaultSchedulerInterval is how often the report scheduler checks for due
// cadences.
const DefaultSchedulerInterval = time.Hour

// ReportService generates metric reports on demand and on a schedule, and
// delivers the scheduled ones by email.
type ReportService struct {
	reportStore driven.ReportStore
	userStore   driven.UserStore
	repoStore   driven.RepoStore
	sender      driven.EmailSender
	interval    time.Duration
	reportHour  int
	logger      *slog.Logger

	// lastRun tracks the day each cadence last ran, so a restart or an
	// interval shorter than an hour never doubles a batch.
	lastRun map[model.ReportType]string
}

// NewReportService creates a ReportService. A non-positive interval falls
// back to DefaultSchedulerInterval; reportHour is the local hour of day
// scheduled batches run at.
func NewReportService(
	reportStore driven.ReportStore,
	userStore driven.UserStore,
	repoStore driven.RepoStore,
	sender driven.EmailSender,
	interval time.Duration,
	reportHour int,
) *ReportService {
	if interval <= 0 {
		interval = DefaultSchedulerInterval
	}
	return &ReportService{
		reportStore: reportStore,
		userStore:   userStore,
		repoStore:   repoStore,
		sender:      sender,
		interval:    interval,
		reportHour:  reportHour,
		logger:      slog.Default(),
		lastRun:     make(map[model.ReportType]string),
	}
}

// Start runs the scheduler loop until the context is cancelled. Each tick
// runs the batches for whichever cadences are due at that moment.
func (s *ReportService) Start(ctx context.Context) {
	s.logger.Info("report scheduler started",
		"interval", s.interval,
		"report_hour", s.reportHour,
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("report scheduler stopped")
			return
		case now := <-ticker.C:
			s.tick(ctx, now)
		}
	}
}

func (s *ReportService) tick(ctx context.Context, now time.Time) {
	day := now.Format("2006-01-02")
	for _, cadence := range DueCadences(now, s.reportHour) {
		if s.lastRun[cadence] == day {
			continue
		}
		s.lastRun[cadence] = day
		s.RunBatch(ctx, cadence, now)
	}
}

// DueCadences returns the report cadences due at the given time: daily at
// the report hour, plus weekly on Mondays and monthly on the first of the
// month.
func DueCadences(now time.Time, reportHour int) []model.ReportType {
	if now.Hour() != reportHour {
		return nil
	}

	due := []model.ReportType{model.ReportDaily}
	if now.Weekday() == time.Monday {
		due = append(due, model.ReportWeekly)
	}
	if now.Day() == 1 {
		due = append(due, model.ReportMonthly)
	}
	return due
}

// RunBatch generates and sends reports for every user subscribed to the
// cadence, across all of their repositories. Failures are isolated per
// (user, repository) pair; one bad repo or address never stops the batch.
func (s *ReportService) RunBatch(ctx context.Context, cadence model.ReportType, now time.Time) {
	users, err := s.userStore.ListWithReportsEnabled(ctx, cadence)
	if err != nil {
		s.logger.Error("report batch aborted, user listing failed",
			"cadence", cadence, "error", err)
		return
	}

	generated, failed := 0, 0
	for _, user := range users {
		repos, err := s.repoStore.ListByUser(ctx, user.ID)
		if err != nil {
			s.logger.Error("skipping user, repo listing failed",
				"user_id", user.ID, "error", err)
			failed++
			continue
		}

		for _, repo := range repos {
			if _, err := s.generateAndSend(ctx, user, repo, cadence, now); err != nil {
				s.logger.Error("report delivery failed",
					"user_id", user.ID,
					"repo", repo.FullName,
					"cadence", cadence,
					"error", err,
				)
				failed++
				continue
			}
			generated++
		}
	}

	s.logger.Info("report batch complete",
		"cadence", cadence,
		"users", len(users),
		"sent", generated,
		"failed", failed,
	)
}

// generateAndSend builds one report from the repository's stored snapshot,
// persists it as pending, and attempts delivery, recording the outcome on
// the report.
func (s *ReportService) generateAndSend(ctx context.Context, user model.User, repo model.Repository, cadence model.ReportType, now time.Time) (*model.Report, error) {
	report, err := s.createReport(ctx, user.ID, repo, cadence, now)
	if err != nil {
		return nil, err
	}

	text, html, err := RenderReportEmail(*report)
	if err != nil {
		s.markFailed(ctx, report)
		return report, err
	}

	msg := driven.EmailMessage{
		To:       user.ReportAddress(),
		Subject:  fmt.Sprintf("[repopulse] %s %s report", repo.FullName, cadence),
		TextBody: text,
		HTMLBody: html,
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		s.markFailed(ctx, report)
		return report, fmt.Errorf("send report %d: %w", report.ID, err)
	}

	sentAt := time.Now().UTC()
	if err := s.reportStore.MarkSent(ctx, report.ID, sentAt); err != nil {
		return report, fmt.Errorf("mark report %d sent: %w", report.ID, err)
	}
	report.Status = model.ReportStatusSent
	report.SentAt = &sentAt
	return report, nil
}

func (s *ReportService) createReport(ctx context.Context, userID int64, repo model.Repository, cadence model.ReportType, now time.Time) (*model.Report, error) {
	end := now.UTC()
	report := model.Report{
		UserID:       userID,
		RepoID:       repo.ID,
		RepoFullName: repo.FullName,
		Type:         cadence,
		StartDate:    end.Add(-cadence.Period()),
		EndDate:      end,
		Data:         repo.Metrics,
		Status:       model.ReportStatusPending,
		CreatedAt:    end,
	}
	if err := s.reportStore.Create(ctx, &report); err != nil {
		return nil, fmt.Errorf("create report for %s: %w", repo.FullName, err)
	}
	return &report, nil
}

func (s *ReportService) markFailed(ctx context.Context, report *model.Report) {
	if err := s.reportStore.MarkFailed(ctx, report.ID); err != nil {
		s.logger.Error("mark report failed", "report_id", report.ID, "error", err)
		return
	}
	report.Status = model.ReportStatusFailed
}

// GenerateReport builds and delivers a report on demand for a repository
// the user subscribes to. Unlike the scheduled batch, delivery errors are
// returned to the caller.
func (s *ReportService) GenerateReport(ctx context.Context, userID int64, fullName string, cadence model.ReportType) (*model.Report, error) {
	if !model.ValidReportType(cadence) {
		return nil, &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown report type %q", cadence)}
	}

	user, err := s.userStore.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, driven.ErrUserNotFound
	}

	repo, err := s.repoStore.GetByFullName(ctx, fullName)
	if err != nil {
		return nil, err
	}
	if repo == nil {
		return nil, driven.ErrRepoNotFound
	}

	subscribed, err := s.repoStore.IsSubscriber(ctx, repo.ID, userID)
	if err != nil {
		return nil, err
	}
	if !subscribed {
		return nil, driven.ErrNotSubscribed
	}

	return s.generateAndSend(ctx, *user, *repo, cadence, time.Now())
}

// GetReport returns one of the user's reports.
func (s *ReportService) GetReport(ctx context.Context, userID, reportID int64) (*model.Report, error) {
	report, err := s.reportStore.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report == nil || report.UserID != userID {
		return nil, driven.ErrReportNotFound
	}
	return report, nil
}

// ListReports returns the user's reports, newest first.
func (s *ReportService) ListReports(ctx context.Context, userID int64) ([]model.Report, error) {
	return s.reportStore.ListByUser(ctx, userID)
}

// ExportCSV renders one of the user's reports as a CSV document with a
// Metric,Value,Details header row.
func (s *ReportService) ExportCSV(ctx context.Context, userID, reportID int64) ([]byte, error) {
	report, err := s.GetReport(ctx, userID, reportID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	m := report.Data
	records := [][]string{
		{"Metric", "Value", "Details"},
		{"repository", report.RepoFullName, string(report.Type)},
		{"period_start", report.StartDate.Format(time.RFC3339), ""},
		{"period_end", report.EndDate.Format(time.RFC3339), ""},
		{"commits_total", strconv.Itoa(m.CommitsTotal), fmt.Sprintf("%d weekly data points", len(m.CommitsWeekly))},
		{"open_prs", strconv.Itoa(m.OpenPRs), ""},
		{"merged_prs", strconv.Itoa(m.MergedPRs), ""},
		{"closed_prs", strconv.Itoa(m.ClosedPRs), "closed without merging"},
		{"open_issues", strconv.Itoa(m.OpenIssues), ""},
		{"closed_issues", strconv.Itoa(m.ClosedIssues), ""},
		{"contributors", strconv.Itoa(m.Contributors), ""},
		{"merge_time_hours", strconv.FormatFloat(m.MergeTimeHours, 'f', 2, 64), "mean over merged PRs"},
	}
	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}

	return buf.Bytes(), nil
}
