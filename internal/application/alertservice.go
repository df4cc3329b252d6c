package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
	"github.com/ericfisherdev/repopulse/internal/domain/port/driven"
)

// AlertService evaluates alert conditions against fresh snapshots and
// manages the lifecycle of the resulting alerts.
type AlertService struct {
	alertStore     driven.AlertStore
	repoStore      driven.RepoStore
	thresholdStore driven.ThresholdStore
	logger         *slog.Logger
}

func NewAlertService(alertStore driven.AlertStore, repoStore driven.RepoStore, thresholdStore driven.ThresholdStore) *AlertService {
	return &AlertService{
		alertStore:     alertStore,
		repoStore:      repoStore,
		thresholdStore: thresholdStore,
		logger:         slog.Default(),
	}
}

// EvaluateAlertConditions inspects a snapshot and the open pull requests
// behind it and reports, per condition, whether it triggered, cleared, or
// could not be evaluated.
//
// No-activity triggers when the most recent week in the commit series has
// zero commits. Long-open-PRs triggers when any open PR has been open longer
// than the threshold in days. Commit-drops needs at least two weekly points;
// it triggers when the previous week had commits and the latest week fell to
// zero or below the configured fraction of it.
func EvaluateAlertConditions(
	snapshot model.MetricsSnapshot,
	openPRs []model.PullRequest,
	now time.Time,
	thresholds model.EffectiveAlertThresholds,
) model.AlertFindings {
	var findings model.AlertFindings

	if latest, ok := snapshot.LatestWeek(); ok {
		findings.NoActivity = model.AlertFinding{
			State:     stateFor(latest == 0),
			Value:     float64(latest),
			Threshold: 0,
		}
	}

	maxAgeDays := 0.0
	for _, pr := range openPRs {
		if age := pr.Age(now).Hours() / 24; age > maxAgeDays {
			maxAgeDays = age
		}
	}
	findings.LongOpenPRs = model.AlertFinding{
		State:     stateFor(maxAgeDays > float64(thresholds.LongOpenPRsDays)),
		Value:     maxAgeDays,
		Threshold: float64(thresholds.LongOpenPRsDays),
	}

	latest, okLatest := snapshot.LatestWeek()
	previous, okPrevious := snapshot.PreviousWeek()
	if okLatest && okPrevious {
		dropped := previous > 0 &&
			(latest == 0 || float64(latest)/float64(previous) < 1-float64(thresholds.CommitDropPercentage)/100)
		findings.CommitDrops = model.AlertFinding{
			State:     stateFor(dropped),
			Value:     float64(latest),
			Threshold: float64(previous),
		}
	}

	return findings
}

func stateFor(triggered bool) model.ConditionState {
	if triggered {
		return model.ConditionTriggered
	}
	return model.ConditionClear
}

// EvaluateAndRecord evaluates all alert conditions for a freshly refreshed
// repository, creates alerts for newly triggered conditions, and persists
// the updated alert flags. A condition already covered by an active alert
// does not spawn a duplicate, and existing alerts are never resolved here:
// resolution is an explicit user action.
//
// Recording failures are logged per condition and never fail the refresh
// that triggered the evaluation.
func (s *AlertService) EvaluateAndRecord(
	ctx context.Context,
	userID int64,
	repo *model.Repository,
	snapshot model.MetricsSnapshot,
	openPRs []model.PullRequest,
	now time.Time,
) model.AlertFindings {
	thresholds := s.effectiveThresholds(ctx, repo.FullName)
	findings := EvaluateAlertConditions(snapshot, openPRs, now, thresholds)

	s.record(ctx, userID, repo, model.AlertNoActivity, findings.NoActivity, now)
	s.record(ctx, userID, repo, model.AlertLongOpenPRs, findings.LongOpenPRs, now)
	s.record(ctx, userID, repo, model.AlertCommitDrops, findings.CommitDrops, now)

	flags := findings.Flags(repo.AlertFlags)
	if err := s.repoStore.SaveAlertFlags(ctx, repo.ID, flags); err != nil {
		s.logger.Error("save alert flags failed", "repo", repo.FullName, "error", err)
	}

	return findings
}

func (s *AlertService) record(
	ctx context.Context,
	userID int64,
	repo *model.Repository,
	alertType model.AlertType,
	finding model.AlertFinding,
	now time.Time,
) {
	if !finding.Triggered() {
		return
	}

	existing, err := s.alertStore.GetActive(ctx, repo.ID, alertType)
	if err != nil {
		s.logger.Error("active alert lookup failed",
			"repo", repo.FullName, "type", alertType, "error", err)
		return
	}
	if existing != nil {
		return
	}

	alert := model.Alert{
		UserID:       userID,
		RepoID:       repo.ID,
		RepoFullName: repo.FullName,
		Type:         alertType,
		Status:       model.AlertStatusActive,
		Message:      alertMessage(alertType, repo.FullName, finding),
		Value:        finding.Value,
		Threshold:    finding.Threshold,
		CreatedAt:    now,
	}
	if err := s.alertStore.Create(ctx, &alert); err != nil {
		s.logger.Error("alert create failed",
			"repo", repo.FullName, "type", alertType, "error", err)
		return
	}

	s.logger.Info("alert raised",
		"repo", repo.FullName,
		"type", alertType,
		"value", finding.Value,
		"threshold", finding.Threshold,
	)
}

func alertMessage(alertType model.AlertType, fullName string, finding model.AlertFinding) string {
	switch alertType {
	case model.AlertNoActivity:
		return fmt.Sprintf("%s had no commits in the most recent week", fullName)
	case model.AlertLongOpenPRs:
		return fmt.Sprintf("%s has a pull request open for %.0f days (threshold %.0f)",
			fullName, finding.Value, finding.Threshold)
	case model.AlertCommitDrops:
		return fmt.Sprintf("%s commit activity dropped from %.0f to %.0f week over week",
			fullName, finding.Threshold, finding.Value)
	default:
		return fullName
	}
}

// effectiveThresholds merges the global settings with any per-repo override.
// Store failures fall back to the built-in defaults so evaluation never
// blocks on settings.
func (s *AlertService) effectiveThresholds(ctx context.Context, repoFullName string) model.EffectiveAlertThresholds {
	global, err := s.thresholdStore.GetGlobalSettings(ctx)
	if err != nil {
		s.logger.Warn("global settings unavailable, using defaults", "error", err)
		global = model.DefaultAlertSettings()
	}

	override, err := s.thresholdStore.GetRepoThreshold(ctx, repoFullName)
	if err != nil {
		s.logger.Warn("repo threshold unavailable, using global settings",
			"repo", repoFullName, "error", err)
		override = model.RepoAlertThreshold{}
	}

	return global.Resolve(override)
}

// ListAlerts returns the alerts visible to the user, optionally filtered by
// status. An empty status means all.
func (s *AlertService) ListAlerts(ctx context.Context, userID int64, status model.AlertStatus) ([]model.Alert, error) {
	if status != "" && !model.ValidAlertStatus(status) {
		return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
	}

	alerts, err := s.alertStore.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return alerts, nil
	}

	filtered := alerts[:0]
	for _, alert := range alerts {
		if alert.Status == status {
			filtered = append(filtered, alert)
		}
	}
	return filtered, nil
}

// UpdateStatus transitions an alert on behalf of a subscriber of its
// repository. Only active alerts can move, and only to resolved or
// dismissed.
func (s *AlertService) UpdateStatus(ctx context.Context, userID, alertID int64, status model.AlertStatus) (*model.Alert, error) {
	if !model.ValidAlertStatus(status) {
		return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
	}

	alert, err := s.alertStore.GetByID(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if alert == nil {
		return nil, driven.ErrAlertNotFound
	}

	subscribed, err := s.repoStore.IsSubscriber(ctx, alert.RepoID, userID)
	if err != nil {
		return nil, err
	}
	if !subscribed {
		return nil, driven.ErrNotSubscribed
	}

	if !alert.Status.CanTransition(status) {
		return nil, &ValidationError{
			Field:  "status",
			Reason: fmt.Sprintf("cannot transition alert from %s to %s", alert.Status, status),
		}
	}

	if err := s.alertStore.UpdateStatus(ctx, alertID, status); err != nil {
		if errors.Is(err, driven.ErrAlertNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update alert %d: %w", alertID, err)
	}

	return s.alertStore.GetByID(ctx, alertID)
}
