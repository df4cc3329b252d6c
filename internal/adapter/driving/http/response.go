package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// MetricsResponse is the JSON representation of a metrics snapshot.
type MetricsResponse struct {
	CommitsTotal   int     `json:"commits_total"`
	CommitsWeekly  []int   `json:"commits_weekly"`
	OpenPRs        int     `json:"open_prs"`
	ClosedPRs      int     `json:"closed_prs"`
	MergedPRs      int     `json:"merged_prs"`
	OpenIssues     int     `json:"open_issues"`
	ClosedIssues   int     `json:"closed_issues"`
	Contributors   int     `json:"contributors"`
	MergeTimeHours float64 `json:"merge_time_hours"`
}

// AlertFlagsResponse is the latest alert evaluation result per condition.
type AlertFlagsResponse struct {
	NoActivity  bool `json:"no_activity"`
	LongOpenPRs bool `json:"long_open_prs"`
	CommitDrops bool `json:"commit_drops"`
}

// RepoResponse is the JSON representation of a connected repository.
type RepoResponse struct {
	FullName    string             `json:"full_name"`
	Owner       string             `json:"owner"`
	Name        string             `json:"name"`
	Stars       int                `json:"stars"`
	Forks       int                `json:"forks"`
	Watchers    int                `json:"watchers"`
	OpenIssues  int                `json:"open_issues"`
	LastFetched string             `json:"last_fetched,omitempty"`
	Metrics     MetricsResponse    `json:"metrics"`
	AlertFlags  AlertFlagsResponse `json:"alert_flags"`
	AddedAt     string             `json:"added_at"`
}

// AlertResponse is the JSON representation of an alert.
type AlertResponse struct {
	ID         int64   `json:"id"`
	Repository string  `json:"repository"`
	Type       string  `json:"type"`
	Message    string  `json:"message"`
	Value      float64 `json:"value"`
	Threshold  float64 `json:"threshold"`
	Status     string  `json:"status"`
	CreatedAt  string  `json:"created_at"`
	ResolvedAt string  `json:"resolved_at,omitempty"`
}

// ReportResponse is the JSON representation of a generated report.
type ReportResponse struct {
	ID         int64           `json:"id"`
	Repository string          `json:"repository"`
	Type       string          `json:"type"`
	StartDate  string          `json:"start_date"`
	EndDate    string          `json:"end_date"`
	Data       MetricsResponse `json:"data"`
	Status     string          `json:"status"`
	SentAt     string          `json:"sent_at,omitempty"`
	CreatedAt  string          `json:"created_at"`
}

// UserResponse is the JSON representation of an account.
type UserResponse struct {
	ID           int64                  `json:"id"`
	GitHubLogin  string                 `json:"github_login"`
	Email        string                 `json:"email"`
	EmailReports ReportSettingsResponse `json:"email_reports"`
}

// ReportSettingsResponse is the recurring report preference.
type ReportSettingsResponse struct {
	Enabled bool   `json:"enabled"`
	Cadence string `json:"cadence,omitempty"`
	Email   string `json:"email,omitempty"`
}

// ThresholdsResponse pairs the effective thresholds for a repository with
// the raw override that produced them.
type ThresholdsResponse struct {
	Effective GlobalSettingsResponse  `json:"effective"`
	Override  ThresholdRequestPayload `json:"override"`
}

// GlobalSettingsResponse is the JSON representation of alert threshold
// settings.
type GlobalSettingsResponse struct {
	NoActivityDays       int `json:"no_activity_days"`
	LongOpenPRsDays      int `json:"long_open_prs_days"`
	CommitDropPercentage int `json:"commit_drop_percentage"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// ConnectRepoRequest is the JSON body for the connect repository endpoint.
type ConnectRepoRequest struct {
	FullName string `json:"full_name"`
}

// AuthRequest is the JSON body for the token authentication endpoint.
type AuthRequest struct {
	Token string `json:"token"`
}

// UpdateAlertRequest is the JSON body for the alert status endpoint.
type UpdateAlertRequest struct {
	Status string `json:"status"`
}

// GenerateReportRequest is the JSON body for the on-demand report endpoint.
type GenerateReportRequest struct {
	Type string `json:"type"`
}

// ReportSettingsRequest is the JSON body for the report settings endpoint.
type ReportSettingsRequest struct {
	Enabled bool   `json:"enabled"`
	Cadence string `json:"cadence"`
	Email   string `json:"email"`
}

// ThresholdRequestPayload carries per-repo threshold overrides. Nil fields
// fall through to the global settings.
type ThresholdRequestPayload struct {
	NoActivityDays       *int `json:"no_activity_days"`
	LongOpenPRsDays      *int `json:"long_open_prs_days"`
	CommitDropPercentage *int `json:"commit_drop_percentage"`
}

// toMetricsResponse converts a metrics snapshot to its JSON representation.
func toMetricsResponse(m model.MetricsSnapshot) MetricsResponse {
	weekly := m.CommitsWeekly
	if weekly == nil {
		weekly = []int{}
	}

	return MetricsResponse{
		CommitsTotal:   m.CommitsTotal,
		CommitsWeekly:  weekly,
		OpenPRs:        m.OpenPRs,
		ClosedPRs:      m.ClosedPRs,
		MergedPRs:      m.MergedPRs,
		OpenIssues:     m.OpenIssues,
		ClosedIssues:   m.ClosedIssues,
		Contributors:   m.Contributors,
		MergeTimeHours: m.MergeTimeHours,
	}
}

// toRepoResponse converts a domain Repository to its JSON representation.
func toRepoResponse(repo model.Repository) RepoResponse {
	resp := RepoResponse{
		FullName:   repo.FullName,
		Owner:      repo.Owner,
		Name:       repo.Name,
		Stars:      repo.Stars,
		Forks:      repo.Forks,
		Watchers:   repo.Watchers,
		OpenIssues: repo.OpenIssues,
		Metrics:    toMetricsResponse(repo.Metrics),
		AlertFlags: AlertFlagsResponse{
			NoActivity:  repo.AlertFlags.NoActivity,
			LongOpenPRs: repo.AlertFlags.LongOpenPRs,
			CommitDrops: repo.AlertFlags.CommitDrops,
		},
		AddedAt: repo.AddedAt.UTC().Format(time.RFC3339),
	}
	if !repo.LastFetched.IsZero() {
		resp.LastFetched = repo.LastFetched.UTC().Format(time.RFC3339)
	}
	return resp
}

// toAlertResponse converts a domain Alert to its JSON representation.
func toAlertResponse(alert model.Alert) AlertResponse {
	resp := AlertResponse{
		ID:         alert.ID,
		Repository: alert.RepoFullName,
		Type:       string(alert.Type),
		Message:    alert.Message,
		Value:      alert.Value,
		Threshold:  alert.Threshold,
		Status:     string(alert.Status),
		CreatedAt:  alert.CreatedAt.UTC().Format(time.RFC3339),
	}
	if alert.ResolvedAt != nil {
		resp.ResolvedAt = alert.ResolvedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// toReportResponse converts a domain Report to its JSON representation.
func toReportResponse(report model.Report) ReportResponse {
	resp := ReportResponse{
		ID:         report.ID,
		Repository: report.RepoFullName,
		Type:       string(report.Type),
		StartDate:  report.StartDate.UTC().Format(time.RFC3339),
		EndDate:    report.EndDate.UTC().Format(time.RFC3339),
		Data:       toMetricsResponse(report.Data),
		Status:     string(report.Status),
		CreatedAt:  report.CreatedAt.UTC().Format(time.RFC3339),
	}
	if report.SentAt != nil {
		resp.SentAt = report.SentAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// toUserResponse converts a domain User to its JSON representation.
func toUserResponse(user model.User) UserResponse {
	return UserResponse{
		ID:          user.ID,
		GitHubLogin: user.GitHubLogin,
		Email:       user.Email,
		EmailReports: ReportSettingsResponse{
			Enabled: user.EmailReports.Enabled,
			Cadence: string(user.EmailReports.Cadence),
			Email:   user.EmailReports.Address,
		},
	}
}
