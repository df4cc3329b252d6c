package driven

import (
	"context"
	"errors"
	"time"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
)

// ErrReportNotFound indicates the requested report does not exist.
var ErrReportNotFound = errors.New("report not found")

// ReportStore defines the driven port for report persistence. Reports are
// immutable once sent or failed apart from their delivery status fields.
type ReportStore interface {
	// Create inserts a new report (normally status pending) and fills in its
	// assigned ID.
	Create(ctx context.Context, report *model.Report) error

	// GetByID returns nil, nil when no such report exists.
	GetByID(ctx context.Context, id int64) (*model.Report, error)

	// ListByUser returns the user's reports, newest first.
	ListByUser(ctx context.Context, userID int64) ([]model.Report, error)

	// MarkSent stamps the report sent at the given time.
	MarkSent(ctx context.Context, id int64, sentAt time.Time) error

	// MarkFailed records a delivery failure.
	MarkFailed(ctx context.Context, id int64) error
}
