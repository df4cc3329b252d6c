package driven

import (
	"context"
	"errors"
	"time"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
)

// Sentinel errors returned by store implementations.
var (
	// ErrRepoNotFound indicates the requested repository does not exist.
	ErrRepoNotFound = errors.New("repository not found")

	// ErrNotSubscribed indicates the acting user has no subscription to the
	// target repository.
	ErrNotSubscribed = errors.New("user is not subscribed to repository")
)

// RepoStore defines the driven port for repository persistence.
//
// Repositories are shared between their subscribers: Connect creates the row
// on first subscription, Disconnect removes the subscription and deletes the
// repository when the last subscriber leaves. No orphaned repositories
// survive either operation.
type RepoStore interface {
	// Connect ensures the repository exists and subscribes the user to it.
	// Returns the stored repository (existing metrics intact when another
	// subscriber connected it earlier).
	Connect(ctx context.Context, repo model.Repository, userID int64) (*model.Repository, error)

	// Disconnect removes the user's subscription. The repository row is
	// deleted in the same transaction when no subscriptions remain. Returns
	// ErrNotSubscribed when no such subscription exists.
	Disconnect(ctx context.Context, fullName string, userID int64) error

	// GetByFullName returns nil, nil when the repository does not exist.
	GetByFullName(ctx context.Context, fullName string) (*model.Repository, error)

	// ListByUser returns the repositories the user subscribes to, ordered
	// by full name.
	ListByUser(ctx context.Context, userID int64) ([]model.Repository, error)

	// IsSubscriber reports whether the user subscribes to the repository.
	IsSubscriber(ctx context.Context, repoID, userID int64) (bool, error)

	// SaveSnapshot atomically replaces the repository's counters, metrics
	// snapshot, and last-fetched timestamp in one write.
	SaveSnapshot(ctx context.Context, repoID int64, summary model.RepoSummary, snapshot model.MetricsSnapshot, fetchedAt time.Time) error

	// SaveAlertFlags stores the latest alert evaluation flags.
	SaveAlertFlags(ctx context.Context, repoID int64, flags model.AlertFlags) error
}
