package model

import "time"

// AlertType identifies the condition an alert was raised for.
type AlertType string

const (
	AlertNoActivity  AlertType = "no_activity"
	AlertLongOpenPRs AlertType = "long_open_prs"
	AlertCommitDrops AlertType = "commit_drops"
)

// AlertStatus is the lifecycle state of an alert.
// The state machine is one-way: active -> resolved or active -> dismissed.
// Resolved and dismissed are terminal; a fresh trigger of the same type
// creates a new record rather than reactivating an old one.
type AlertStatus string

const (
	AlertStatusActive    AlertStatus = "active"
	AlertStatusResolved  AlertStatus = "resolved"
	AlertStatusDismissed AlertStatus = "dismissed"
)

// ValidAlertStatus reports whether s is a known alert status value.
func ValidAlertStatus(s AlertStatus) bool {
	switch s {
	case AlertStatusActive, AlertStatusResolved, AlertStatusDismissed:
		return true
	}
	return false
}

// CanTransition reports whether an alert may move from its current status
// to the target status.
func (s AlertStatus) CanTransition(to AlertStatus) bool {
	if s != AlertStatusActive {
		return false
	}
	return to == AlertStatusResolved || to == AlertStatusDismissed
}

// Alert is a raised threshold condition for a repository. Alerts are never
// hard-deleted, only transitioned out of active.
type Alert struct {
	ID           int64
	UserID       int64 // User whose refresh triggered the alert.
	RepoID       int64
	RepoFullName string
	Type         AlertType
	Message      string
	Threshold    float64
	Value        float64
	Status       AlertStatus
	CreatedAt    time.Time
	ResolvedAt   *time.Time // Set on the transition out of active.
}

// ConditionState is the outcome of evaluating one alert rule.
type ConditionState int

const (
	// ConditionNotEvaluated means the rule lacked enough data to run
	// (e.g. commit drop with fewer than two weekly data points).
	ConditionNotEvaluated ConditionState = iota
	ConditionClear
	ConditionTriggered
)

// AlertFinding is the result of evaluating a single rule: its state plus the
// observed value and the threshold it was compared against.
type AlertFinding struct {
	State     ConditionState
	Value     float64
	Threshold float64
}

// Triggered reports whether the finding fired.
func (f AlertFinding) Triggered() bool { return f.State == ConditionTriggered }

// AlertFindings is the full evaluation result for one snapshot.
type AlertFindings struct {
	NoActivity  AlertFinding
	LongOpenPRs AlertFinding
	CommitDrops AlertFinding
}

// Flags collapses the findings into the boolean triple stored on the
// repository. NotEvaluated keeps the previous flag value.
func (f AlertFindings) Flags(prev AlertFlags) AlertFlags {
	flags := prev
	if f.NoActivity.State != ConditionNotEvaluated {
		flags.NoActivity = f.NoActivity.Triggered()
	}
	if f.LongOpenPRs.State != ConditionNotEvaluated {
		flags.LongOpenPRs = f.LongOpenPRs.Triggered()
	}
	if f.CommitDrops.State != ConditionNotEvaluated {
		flags.CommitDrops = f.CommitDrops.Triggered()
	}
	return flags
}
