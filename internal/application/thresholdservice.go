package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
	"github.com/ericfisherdev/repopulse/internal/domain/port/driven"
)

// ThresholdService manages the global alert settings and per-repository
// overrides consumed by alert evaluation.
type ThresholdService struct {
	thresholdStore driven.ThresholdStore
	repoStore      driven.RepoStore
	logger         *slog.Logger
}

func NewThresholdService(thresholdStore driven.ThresholdStore, repoStore driven.RepoStore) *ThresholdService {
	return &ThresholdService{
		thresholdStore: thresholdStore,
		repoStore:      repoStore,
		logger:         slog.Default(),
	}
}

// GetGlobalSettings returns the current global alert thresholds.
func (s *ThresholdService) GetGlobalSettings(ctx context.Context) (model.AlertSettings, error) {
	return s.thresholdStore.GetGlobalSettings(ctx)
}

// UpdateGlobalSettings validates and stores new global thresholds.
func (s *ThresholdService) UpdateGlobalSettings(ctx context.Context, settings model.AlertSettings) error {
	if settings.NoActivityDays < 1 {
		return &ValidationError{Field: "no_activity_days", Reason: "must be at least 1"}
	}
	if settings.LongOpenPRsDays < 1 {
		return &ValidationError{Field: "long_open_prs_days", Reason: "must be at least 1"}
	}
	if settings.CommitDropPercentage < 1 || settings.CommitDropPercentage > 100 {
		return &ValidationError{Field: "commit_drop_percentage", Reason: "must be between 1 and 100"}
	}

	if err := s.thresholdStore.SetGlobalSettings(ctx, settings); err != nil {
		return fmt.Errorf("save global settings: %w", err)
	}

	s.logger.Info("global alert settings updated",
		"no_activity_days", settings.NoActivityDays,
		"long_open_prs_days", settings.LongOpenPRsDays,
		"commit_drop_percentage", settings.CommitDropPercentage,
	)
	return nil
}

// GetRepoThresholds returns the effective thresholds for a repository the
// user subscribes to, alongside the raw override.
func (s *ThresholdService) GetRepoThresholds(ctx context.Context, userID int64, fullName string) (model.EffectiveAlertThresholds, model.RepoAlertThreshold, error) {
	if err := s.authorize(ctx, userID, fullName); err != nil {
		return model.EffectiveAlertThresholds{}, model.RepoAlertThreshold{}, err
	}

	global, err := s.thresholdStore.GetGlobalSettings(ctx)
	if err != nil {
		return model.EffectiveAlertThresholds{}, model.RepoAlertThreshold{}, err
	}
	override, err := s.thresholdStore.GetRepoThreshold(ctx, fullName)
	if err != nil {
		return model.EffectiveAlertThresholds{}, model.RepoAlertThreshold{}, err
	}

	return global.Resolve(override), override, nil
}

// SetRepoThreshold validates and stores a per-repository override. Nil
// fields fall through to the global settings.
func (s *ThresholdService) SetRepoThreshold(ctx context.Context, userID int64, threshold model.RepoAlertThreshold) error {
	if err := s.authorize(ctx, userID, threshold.RepoFullName); err != nil {
		return err
	}

	if threshold.NoActivityDays != nil && *threshold.NoActivityDays < 1 {
		return &ValidationError{Field: "no_activity_days", Reason: "must be at least 1"}
	}
	if threshold.LongOpenPRsDays != nil && *threshold.LongOpenPRsDays < 1 {
		return &ValidationError{Field: "long_open_prs_days", Reason: "must be at least 1"}
	}
	if threshold.CommitDropPercentage != nil &&
		(*threshold.CommitDropPercentage < 1 || *threshold.CommitDropPercentage > 100) {
		return &ValidationError{Field: "commit_drop_percentage", Reason: "must be between 1 and 100"}
	}

	if err := s.thresholdStore.SetRepoThreshold(ctx, threshold); err != nil {
		return fmt.Errorf("save repo threshold for %s: %w", threshold.RepoFullName, err)
	}
	return nil
}

// DeleteRepoThreshold removes a per-repository override, restoring the
// global settings for that repository.
func (s *ThresholdService) DeleteRepoThreshold(ctx context.Context, userID int64, fullName string) error {
	if err := s.authorize(ctx, userID, fullName); err != nil {
		return err
	}
	return s.thresholdStore.DeleteRepoThreshold(ctx, fullName)
}

func (s *ThresholdService) authorize(ctx context.Context, userID int64, fullName string) error {
	repo, err := s.repoStore.GetByFullName(ctx, fullName)
	if err != nil {
		return err
	}
	if repo == nil {
		return driven.ErrRepoNotFound
	}
	subscribed, err := s.repoStore.IsSubscriber(ctx, repo.ID, userID)
	if err != nil {
		return err
	}
	if !subscribed {
		return driven.ErrNotSubscribed
	}
	return nil
}
