package driven

import (
	"context"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
)

// ThresholdStore defines the driven port for alert threshold configuration.
// Implementations fall back to model.DefaultAlertSettings() for missing keys.
type ThresholdStore interface {
	GetGlobalSettings(ctx context.Context) (model.AlertSettings, error)
	SetGlobalSettings(ctx context.Context, settings model.AlertSettings) error
	// GetRepoThreshold returns a zero-value override (all nil pointers) when
	// no per-repo row exists.
	GetRepoThreshold(ctx context.Context, repoFullName string) (model.RepoAlertThreshold, error)
	SetRepoThreshold(ctx context.Context, threshold model.RepoAlertThreshold) error
	DeleteRepoThreshold(ctx context.Context, repoFullName string) error
}
