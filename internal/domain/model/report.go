package model

import "time"

// ReportType is the cadence a report covers.
type ReportType string

const (
	ReportDaily   ReportType = "daily"
	ReportWeekly  ReportType = "weekly"
	ReportMonthly ReportType = "monthly"
)

// ValidReportType reports whether t is a known report type.
func ValidReportType(t ReportType) bool {
	switch t {
	case ReportDaily, ReportWeekly, ReportMonthly:
		return true
	}
	return false
}

// Period returns the window length covered by a report of this type.
func (t ReportType) Period() time.Duration {
	switch t {
	case ReportDaily:
		return 24 * time.Hour
	case ReportMonthly:
		return 30 * 24 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}

// ReportStatus is the delivery state of a report.
type ReportStatus string

const (
	ReportStatusPending ReportStatus = "pending"
	ReportStatusSent    ReportStatus = "sent"
	ReportStatusFailed  ReportStatus = "failed"
)

// Report is one generated summary for a (user, repository) pair. Once sent
// or failed, only Status and SentAt ever change.
type Report struct {
	ID           int64
	UserID       int64
	RepoID       int64
	RepoFullName string
	Type         ReportType
	StartDate    time.Time
	EndDate      time.Time

	// Data mirrors the repository's metrics snapshot at generation time.
	Data MetricsSnapshot

	Status ReportStatus
	SentAt *time.Time

	CreatedAt time.Time
}
