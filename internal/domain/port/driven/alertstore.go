package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
)

// ErrAlertNotFound indicates the requested alert does not exist.
var ErrAlertNotFound = errors.New("alert not found")

// AlertStore defines the driven port for alert persistence. Alerts are
// append-and-transition: rows are created once and only their status and
// resolved-at timestamp ever change.
type AlertStore interface {
	// Create inserts a new alert and fills in its assigned ID.
	Create(ctx context.Context, alert *model.Alert) error

	// GetByID returns nil, nil when no such alert exists.
	GetByID(ctx context.Context, id int64) (*model.Alert, error)

	// GetActive returns the active alert of the given type for the
	// repository, or nil, nil when none is active. At most one active alert
	// per (repository, type) exists at any time.
	GetActive(ctx context.Context, repoID int64, alertType model.AlertType) (*model.Alert, error)

	// ListByUser returns all alerts for repositories the user subscribes to,
	// newest first.
	ListByUser(ctx context.Context, userID int64) ([]model.Alert, error)

	// UpdateStatus transitions an alert and sets resolved_at when the alert
	// leaves the active state. Returns ErrAlertNotFound for unknown IDs.
	UpdateStatus(ctx context.Context, id int64, status model.AlertStatus) error
}
