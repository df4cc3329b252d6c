// Package httphandler is the HTTP driving adapter that serves the REST API.
//
// The acting user is taken from the X-User-ID header, which a fronting auth
// layer is expected to set after validating the session. The one exception
// is the token authentication endpoint, which creates the account.
package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/repopulse/internal/application"
	"github.com/ericfisherdev/repopulse/internal/domain/model"
	"github.com/ericfisherdev/repopulse/internal/domain/port/driven"
)

// userIDHeader carries the acting user's ID, set by the fronting auth layer.
const userIDHeader = "X-User-ID"

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	userSvc      *application.UserService
	metricsSvc   *application.MetricsService
	alertSvc     *application.AlertService
	reportSvc    *application.ReportService
	thresholdSvc *application.ThresholdService
	logger       *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	userSvc *application.UserService,
	metricsSvc *application.MetricsService,
	alertSvc *application.AlertService,
	reportSvc *application.ReportService,
	thresholdSvc *application.ThresholdService,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		userSvc:      userSvc,
		metricsSvc:   metricsSvc,
		alertSvc:     alertSvc,
		reportSvc:    reportSvc,
		thresholdSvc: thresholdSvc,
		logger:       logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("POST /api/v1/auth/token", h.AuthenticateToken)

	mux.HandleFunc("GET /api/v1/repos", h.ListRepos)
	mux.HandleFunc("POST /api/v1/repos", h.ConnectRepo)
	mux.HandleFunc("DELETE /api/v1/repos/{owner}/{repo}", h.DisconnectRepo)
	mux.HandleFunc("POST /api/v1/repos/{owner}/{repo}/refresh", h.RefreshRepo)

	mux.HandleFunc("GET /api/v1/repos/{owner}/{repo}/thresholds", h.GetRepoThresholds)
	mux.HandleFunc("PUT /api/v1/repos/{owner}/{repo}/thresholds", h.SetRepoThresholds)
	mux.HandleFunc("DELETE /api/v1/repos/{owner}/{repo}/thresholds", h.DeleteRepoThresholds)

	mux.HandleFunc("GET /api/v1/alerts", h.ListAlerts)
	mux.HandleFunc("PATCH /api/v1/alerts/{id}", h.UpdateAlert)

	mux.HandleFunc("GET /api/v1/reports", h.ListReports)
	mux.HandleFunc("GET /api/v1/reports/{id}", h.GetReport)
	mux.HandleFunc("GET /api/v1/reports/{id}/csv", h.ExportReportCSV)
	mux.HandleFunc("POST /api/v1/repos/{owner}/{repo}/reports", h.GenerateReport)

	mux.HandleFunc("GET /api/v1/settings/reports", h.GetReportSettings)
	mux.HandleFunc("PUT /api/v1/settings/reports", h.UpdateReportSettings)
	mux.HandleFunc("GET /api/v1/settings/thresholds", h.GetGlobalThresholds)
	mux.HandleFunc("PUT /api/v1/settings/thresholds", h.UpdateGlobalThresholds)
	mux.HandleFunc("DELETE /api/v1/settings/account", h.DeleteAccount)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// AuthenticateToken verifies a GitHub token and creates or refreshes the
// account behind it.
func (h *Handler) AuthenticateToken(w http.ResponseWriter, r *http.Request) {
	var req AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.userSvc.AuthenticateWithToken(r.Context(), req.Token)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(*user))
}

// ListRepos returns the acting user's connected repositories.
func (h *Handler) ListRepos(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	repos, err := h.metricsSvc.ListRepositories(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := make([]RepoResponse, 0, len(repos))
	for _, repo := range repos {
		resp = append(resp, toRepoResponse(repo))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ConnectRepo subscribes the acting user to a repository and triggers its
// initial refresh.
func (h *Handler) ConnectRepo(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req ConnectRepoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !isValidRepoName(req.FullName) {
		writeError(w, http.StatusBadRequest, "invalid repository name: expected owner/repo format")
		return
	}

	parts := strings.SplitN(req.FullName, "/", 2)
	repo, err := h.metricsSvc.ConnectRepository(r.Context(), userID, parts[0], parts[1])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toRepoResponse(*repo))
}

// DisconnectRepo removes the acting user's subscription to a repository.
func (h *Handler) DisconnectRepo(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	fullName := r.PathValue("owner") + "/" + r.PathValue("repo")
	if err := h.metricsSvc.DisconnectRepository(r.Context(), userID, fullName); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RefreshRepo refreshes a repository's metrics and returns the snapshot.
// Within the staleness window this serves the stored snapshot.
func (h *Handler) RefreshRepo(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	fullName := r.PathValue("owner") + "/" + r.PathValue("repo")
	snapshot, err := h.metricsSvc.RefreshRepository(r.Context(), userID, fullName)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toMetricsResponse(snapshot))
}

// GetRepoThresholds returns the effective alert thresholds for a repository
// alongside its raw override.
func (h *Handler) GetRepoThresholds(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	fullName := r.PathValue("owner") + "/" + r.PathValue("repo")
	effective, override, err := h.thresholdSvc.GetRepoThresholds(r.Context(), userID, fullName)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ThresholdsResponse{
		Effective: GlobalSettingsResponse{
			NoActivityDays:       effective.NoActivityDays,
			LongOpenPRsDays:      effective.LongOpenPRsDays,
			CommitDropPercentage: effective.CommitDropPercentage,
		},
		Override: ThresholdRequestPayload{
			NoActivityDays:       override.NoActivityDays,
			LongOpenPRsDays:      override.LongOpenPRsDays,
			CommitDropPercentage: override.CommitDropPercentage,
		},
	})
}

// SetRepoThresholds stores per-repository alert threshold overrides.
func (h *Handler) SetRepoThresholds(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req ThresholdRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fullName := r.PathValue("owner") + "/" + r.PathValue("repo")
	threshold := model.RepoAlertThreshold{
		RepoFullName:         fullName,
		NoActivityDays:       req.NoActivityDays,
		LongOpenPRsDays:      req.LongOpenPRsDays,
		CommitDropPercentage: req.CommitDropPercentage,
	}
	if err := h.thresholdSvc.SetRepoThreshold(r.Context(), userID, threshold); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.GetRepoThresholds(w, r)
}

// DeleteRepoThresholds removes the per-repository overrides, restoring the
// global settings.
func (h *Handler) DeleteRepoThresholds(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	fullName := r.PathValue("owner") + "/" + r.PathValue("repo")
	if err := h.thresholdSvc.DeleteRepoThreshold(r.Context(), userID, fullName); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListAlerts returns the acting user's alerts, optionally filtered by the
// status query parameter.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	status := model.AlertStatus(r.URL.Query().Get("status"))
	alerts, err := h.alertSvc.ListAlerts(r.Context(), userID, status)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := make([]AlertResponse, 0, len(alerts))
	for _, alert := range alerts {
		resp = append(resp, toAlertResponse(alert))
	}

	writeJSON(w, http.StatusOK, resp)
}

// UpdateAlert transitions an alert to resolved or dismissed.
func (h *Handler) UpdateAlert(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	alertID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid alert id")
		return
	}

	var req UpdateAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	alert, err := h.alertSvc.UpdateStatus(r.Context(), userID, alertID, model.AlertStatus(req.Status))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAlertResponse(*alert))
}

// ListReports returns the acting user's reports, newest first.
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	reports, err := h.reportSvc.ListReports(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := make([]ReportResponse, 0, len(reports))
	for _, report := range reports {
		resp = append(resp, toReportResponse(report))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetReport returns one of the acting user's reports.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	reportID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report id")
		return
	}

	report, err := h.reportSvc.GetReport(r.Context(), userID, reportID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toReportResponse(*report))
}

// ExportReportCSV returns one of the acting user's reports as CSV.
func (h *Handler) ExportReportCSV(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	reportID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report id")
		return
	}

	data, err := h.reportSvc.ExportCSV(r.Context(), userID, reportID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=report-%d.csv", reportID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// GenerateReport builds and emails an on-demand report for a repository.
func (h *Handler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req GenerateReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fullName := r.PathValue("owner") + "/" + r.PathValue("repo")
	report, err := h.reportSvc.GenerateReport(r.Context(), userID, fullName, model.ReportType(req.Type))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toReportResponse(*report))
}

// GetReportSettings returns the acting user's report preference.
func (h *Handler) GetReportSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	user, err := h.userSvc.GetUser(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(*user).EmailReports)
}

// UpdateReportSettings stores the acting user's report preference.
func (h *Handler) UpdateReportSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req ReportSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	settings := model.EmailReportSettings{
		Enabled: req.Enabled,
		Cadence: model.ReportType(req.Cadence),
		Address: req.Email,
	}
	user, err := h.userSvc.UpdateEmailReports(r.Context(), userID, settings)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(*user).EmailReports)
}

// GetGlobalThresholds returns the global alert threshold settings.
func (h *Handler) GetGlobalThresholds(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.userID(w, r); !ok {
		return
	}

	settings, err := h.thresholdSvc.GetGlobalSettings(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, GlobalSettingsResponse{
		NoActivityDays:       settings.NoActivityDays,
		LongOpenPRsDays:      settings.LongOpenPRsDays,
		CommitDropPercentage: settings.CommitDropPercentage,
	})
}

// UpdateGlobalThresholds stores new global alert threshold settings.
func (h *Handler) UpdateGlobalThresholds(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.userID(w, r); !ok {
		return
	}

	var req GlobalSettingsResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	settings := model.AlertSettings{
		NoActivityDays:       req.NoActivityDays,
		LongOpenPRsDays:      req.LongOpenPRsDays,
		CommitDropPercentage: req.CommitDropPercentage,
	}
	if err := h.thresholdSvc.UpdateGlobalSettings(r.Context(), settings); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, req)
}

// DeleteAccount removes the acting user and everything only they own.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	if err := h.userSvc.DeleteAccount(r.Context(), userID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// userID extracts the acting user from the X-User-ID header. Writes a 401
// and returns false when the header is missing or malformed.
func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.Header.Get(userIDHeader)
	if raw == "" {
		writeError(w, http.StatusUnauthorized, "missing "+userIDHeader+" header")
		return 0, false
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusUnauthorized, "invalid "+userIDHeader+" header")
		return 0, false
	}

	return id, true
}

// writeServiceError maps service-layer errors to HTTP status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *application.ValidationError
	var upstream *driven.UpstreamError
	var transport *driven.TransportError

	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Error())
	case errors.Is(err, driven.ErrNotSubscribed):
		writeError(w, http.StatusForbidden, "not subscribed to repository")
	case errors.Is(err, driven.ErrRepoNotFound):
		writeError(w, http.StatusNotFound, "repository not found")
	case errors.Is(err, driven.ErrAlertNotFound):
		writeError(w, http.StatusNotFound, "alert not found")
	case errors.Is(err, driven.ErrReportNotFound):
		writeError(w, http.StatusNotFound, "report not found")
	case errors.Is(err, driven.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	case errors.As(err, &upstream):
		if upstream.StatusCode == http.StatusUnauthorized || upstream.StatusCode == http.StatusForbidden {
			writeError(w, http.StatusUnauthorized, "github rejected the credential")
			return
		}
		h.logger.Warn("github error", "path", r.URL.Path, "status", upstream.StatusCode, "error", err)
		writeError(w, http.StatusBadGateway, "github error: "+upstream.Message)
	case errors.As(err, &transport):
		h.logger.Warn("github unreachable", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadGateway, "github unreachable")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "request timed out")
	default:
		h.logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// isValidRepoName validates that name is in owner/repo format where each part
// contains only alphanumeric characters, hyphens, dots, or underscores.
func isValidRepoName(name string) bool {
	parts := strings.SplitN(name, "/", 3)
	if len(parts) != 2 {
		return false
	}

	for _, part := range parts {
		if part == "" {
			return false
		}
		for _, ch := range part {
			if !isValidRepoChar(ch) {
				return false
			}
		}
	}

	return true
}

func isValidRepoChar(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') ||
		ch == '-' || ch == '.' || ch == '_'
}
