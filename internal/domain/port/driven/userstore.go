package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
)

// ErrUserNotFound indicates the requested user does not exist.
var ErrUserNotFound = errors.New("user not found")

// UserStore defines the driven port for user persistence.
type UserStore interface {
	// Upsert creates the user on first authentication or refreshes the
	// GitHub identity, email, and cached access token on later ones. The
	// stored ID is filled in on the passed user.
	Upsert(ctx context.Context, user *model.User) error

	// GetByID returns nil, nil when no such user exists.
	GetByID(ctx context.Context, id int64) (*model.User, error)

	// GetByLogin returns nil, nil when no such user exists.
	GetByLogin(ctx context.Context, login string) (*model.User, error)

	// UpdateEmailReports stores the user's report preference.
	UpdateEmailReports(ctx context.Context, userID int64, settings model.EmailReportSettings) error

	// ListWithReportsEnabled returns users whose email reports are enabled
	// at the given cadence.
	ListWithReportsEnabled(ctx context.Context, cadence model.ReportType) ([]model.User, error)

	// Delete removes the user, their subscriptions, and any repositories
	// left without subscribers. Returns ErrUserNotFound for unknown IDs.
	Delete(ctx context.Context, userID int64) error
}
