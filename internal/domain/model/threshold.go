package model

// AlertSettings holds the global default thresholds for alert evaluation.
type AlertSettings struct {
	NoActivityDays       int
	LongOpenPRsDays      int
	CommitDropPercentage int
}

const (
	defaultNoActivityDays       = 7
	defaultLongOpenPRsDays      = 14
	defaultCommitDropPercentage = 70
)

// DefaultAlertSettings returns the hard-coded defaults used when no global
// settings row exists in the database.
func DefaultAlertSettings() AlertSettings {
	return AlertSettings{
		NoActivityDays:       defaultNoActivityDays,
		LongOpenPRsDays:      defaultLongOpenPRsDays,
		CommitDropPercentage: defaultCommitDropPercentage,
	}
}

// RepoAlertThreshold holds per-repository threshold overrides. Nil pointer
// fields mean "use the global default" for that setting.
type RepoAlertThreshold struct {
	RepoFullName         string
	NoActivityDays       *int
	LongOpenPRsDays      *int
	CommitDropPercentage *int
}

// EffectiveAlertThresholds is the resolved global + per-repo merge actually
// used by the evaluator.
type EffectiveAlertThresholds struct {
	NoActivityDays       int
	LongOpenPRsDays      int
	CommitDropPercentage int
}

// Resolve merges the global settings with a per-repo override. Repo values
// win where non-nil.
func (s AlertSettings) Resolve(override RepoAlertThreshold) EffectiveAlertThresholds {
	effective := EffectiveAlertThresholds{
		NoActivityDays:       s.NoActivityDays,
		LongOpenPRsDays:      s.LongOpenPRsDays,
		CommitDropPercentage: s.CommitDropPercentage,
	}

	if override.NoActivityDays != nil {
		effective.NoActivityDays = *override.NoActivityDays
	}
	if override.LongOpenPRsDays != nil {
		effective.LongOpenPRsDays = *override.LongOpenPRsDays
	}
	if override.CommitDropPercentage != nil {
		effective.CommitDropPercentage = *override.CommitDropPercentage
	}

	return effective
}
