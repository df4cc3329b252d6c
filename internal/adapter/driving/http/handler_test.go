package httphandler_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httphandler "github.com/ericfisherdev/repopulse/internal/adapter/driving/http"
	"github.com/ericfisherdev/repopulse/internal/application"
	"github.com/ericfisherdev/repopulse/internal/domain/model"
	"github.com/ericfisherdev/repopulse/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockUserStore struct {
	user      *model.User
	users     []model.User
	err       error
	deleteErr error
}

func (m *mockUserStore) Upsert(_ context.Context, user *model.User) error {
	if user.ID == 0 {
		user.ID = 1
	}
	u := *user
	m.user = &u
	return m.err
}
func (m *mockUserStore) GetByID(_ context.Context, _ int64) (*model.User, error) {
	return m.user, m.err
}
func (m *mockUserStore) GetByLogin(_ context.Context, _ string) (*model.User, error) {
	return m.user, m.err
}
func (m *mockUserStore) UpdateEmailReports(_ context.Context, _ int64, settings model.EmailReportSettings) error {
	if m.user != nil {
		m.user.EmailReports = settings
	}
	return m.err
}
func (m *mockUserStore) ListWithReportsEnabled(_ context.Context, _ model.ReportType) ([]model.User, error) {
	return m.users, m.err
}
func (m *mockUserStore) Delete(_ context.Context, _ int64) error {
	return m.deleteErr
}

type mockRepoStore struct {
	repo          *model.Repository
	repos         []model.Repository
	subscribed    bool
	err           error
	disconnectErr error
}

func (m *mockRepoStore) Connect(_ context.Context, repo model.Repository, _ int64) (*model.Repository, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.repo != nil {
		return m.repo, nil
	}
	repo.ID = 1
	m.repo = &repo
	return &repo, nil
}
func (m *mockRepoStore) Disconnect(_ context.Context, _ string, _ int64) error {
	return m.disconnectErr
}
func (m *mockRepoStore) GetByFullName(_ context.Context, _ string) (*model.Repository, error) {
	return m.repo, m.err
}
func (m *mockRepoStore) ListByUser(_ context.Context, _ int64) ([]model.Repository, error) {
	return m.repos, m.err
}
func (m *mockRepoStore) IsSubscriber(_ context.Context, _, _ int64) (bool, error) {
	return m.subscribed, nil
}
func (m *mockRepoStore) SaveSnapshot(_ context.Context, _ int64, _ model.RepoSummary, _ model.MetricsSnapshot, _ time.Time) error {
	return nil
}
func (m *mockRepoStore) SaveAlertFlags(_ context.Context, _ int64, _ model.AlertFlags) error {
	return nil
}

type mockAlertStore struct {
	alert  *model.Alert
	alerts []model.Alert
	err    error
}

func (m *mockAlertStore) Create(_ context.Context, alert *model.Alert) error {
	alert.ID = 1
	return m.err
}
func (m *mockAlertStore) GetByID(_ context.Context, _ int64) (*model.Alert, error) {
	return m.alert, m.err
}
func (m *mockAlertStore) GetActive(_ context.Context, _ int64, _ model.AlertType) (*model.Alert, error) {
	return nil, nil
}
func (m *mockAlertStore) ListByUser(_ context.Context, _ int64) ([]model.Alert, error) {
	return m.alerts, m.err
}
func (m *mockAlertStore) UpdateStatus(_ context.Context, _ int64, status model.AlertStatus) error {
	if m.alert != nil {
		m.alert.Status = status
		now := testTime
		m.alert.ResolvedAt = &now
	}
	return m.err
}

type mockReportStore struct {
	report  *model.Report
	reports []model.Report
	err     error
}

func (m *mockReportStore) Create(_ context.Context, report *model.Report) error {
	report.ID = 77
	return m.err
}
func (m *mockReportStore) GetByID(_ context.Context, _ int64) (*model.Report, error) {
	return m.report, m.err
}
func (m *mockReportStore) ListByUser(_ context.Context, _ int64) ([]model.Report, error) {
	return m.reports, m.err
}
func (m *mockReportStore) MarkSent(_ context.Context, _ int64, _ time.Time) error { return m.err }
func (m *mockReportStore) MarkFailed(_ context.Context, _ int64) error            { return m.err }

type mockThresholdStore struct {
	global   model.AlertSettings
	override model.RepoAlertThreshold
	saved    *model.AlertSettings
}

func (m *mockThresholdStore) GetGlobalSettings(_ context.Context) (model.AlertSettings, error) {
	return m.global, nil
}
func (m *mockThresholdStore) SetGlobalSettings(_ context.Context, settings model.AlertSettings) error {
	m.saved = &settings
	m.global = settings
	return nil
}
func (m *mockThresholdStore) GetRepoThreshold(_ context.Context, fullName string) (model.RepoAlertThreshold, error) {
	override := m.override
	override.RepoFullName = fullName
	return override, nil
}
func (m *mockThresholdStore) SetRepoThreshold(_ context.Context, threshold model.RepoAlertThreshold) error {
	m.override = threshold
	return nil
}
func (m *mockThresholdStore) DeleteRepoThreshold(_ context.Context, _ string) error {
	m.override = model.RepoAlertThreshold{}
	return nil
}

type mockGitHubClient struct {
	user *model.GitHubUser
	err  error
}

func (m *mockGitHubClient) FetchAuthenticatedUser(_ context.Context) (*model.GitHubUser, error) {
	return m.user, m.err
}
func (m *mockGitHubClient) FetchRepository(_ context.Context, _, _ string) (*model.RepoSummary, error) {
	return &model.RepoSummary{}, m.err
}
func (m *mockGitHubClient) FetchWeeklyCommitActivity(_ context.Context, _, _ string) ([]model.WeeklyCommits, error) {
	return nil, m.err
}
func (m *mockGitHubClient) FetchPullRequests(_ context.Context, _, _, _ string) ([]model.PullRequest, error) {
	return nil, m.err
}
func (m *mockGitHubClient) FetchIssues(_ context.Context, _, _, _ string) ([]model.Issue, error) {
	return nil, m.err
}
func (m *mockGitHubClient) FetchContributors(_ context.Context, _, _ string) ([]model.Contributor, error) {
	return nil, m.err
}

type mockFactory struct {
	client *mockGitHubClient
}

func (m *mockFactory) ClientFor(_ string) driven.GitHubClient { return m.client }

type mockSender struct {
	sent []driven.EmailMessage
	err  error
}

func (m *mockSender) Send(_ context.Context, msg driven.EmailMessage) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

// --- Test helpers ---

var (
	testTime    = time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
	testTimeStr = "2026-08-10T12:00:00Z"
)

// env bundles the mock stores behind a fully wired mux.
type env struct {
	users      *mockUserStore
	repos      *mockRepoStore
	alerts     *mockAlertStore
	reports    *mockReportStore
	thresholds *mockThresholdStore
	github     *mockGitHubClient
	sender     *mockSender
}

func newEnv() *env {
	return &env{
		users:      &mockUserStore{},
		repos:      &mockRepoStore{},
		alerts:     &mockAlertStore{},
		reports:    &mockReportStore{},
		thresholds: &mockThresholdStore{global: model.DefaultAlertSettings()},
		github:     &mockGitHubClient{},
		sender:     &mockSender{},
	}
}

func setupMux(e *env) http.Handler {
	factory := &mockFactory{client: e.github}
	alertSvc := application.NewAlertService(e.alerts, e.repos, e.thresholds)
	metricsSvc := application.NewMetricsService(factory, e.users, e.repos, alertSvc, time.Hour)
	reportSvc := application.NewReportService(e.reports, e.users, e.repos, e.sender, time.Hour, 8)
	userSvc := application.NewUserService(factory, e.users)
	thresholdSvc := application.NewThresholdService(e.thresholds, e.repos)

	h := httphandler.NewHandler(userSvc, metricsSvc, alertSvc, reportSvc, thresholdSvc, slog.Default())
	return httphandler.NewServeMux(h, slog.Default())
}

// authedRequest builds a request carrying the standard test user header.
func authedRequest(method, path, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	req.Header.Set("X-User-ID", "1")
	return req
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	err := json.NewDecoder(rec.Body).Decode(v)
	require.NoError(t, err)
}

func testUser() *model.User {
	return &model.User{ID: 1, GitHubID: 7001, GitHubLogin: "alice", Email: "alice@example.com"}
}

func testRepo() *model.Repository {
	return &model.Repository{
		ID:          1,
		FullName:    "acme/widgets",
		Owner:       "acme",
		Name:        "widgets",
		Stars:       120,
		Forks:       14,
		Watchers:    9,
		OpenIssues:  3,
		LastFetched: time.Now().UTC(),
		Metrics: model.MetricsSnapshot{
			CommitsTotal:   25,
			CommitsWeekly:  []int{5, 5, 5, 5, 5},
			OpenPRs:        2,
			ClosedPRs:      1,
			MergedPRs:      4,
			OpenIssues:     3,
			ClosedIssues:   8,
			Contributors:   6,
			MergeTimeHours: 6.25,
		},
		AddedAt: testTime,
	}
}

// --- Tests ---

func TestHealth(t *testing.T) {
	mux := setupMux(newEnv())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "ok", resp["status"])
}

func TestAuthenticateToken(t *testing.T) {
	e := newEnv()
	e.github.user = &model.GitHubUser{ID: 7001, Login: "alice", Email: "alice@example.com"}
	mux := setupMux(e)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", strings.NewReader(`{"token":"ghp_test"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	decodeJSON(t, rec, &resp)
	assert.Equal(t, float64(1), resp["id"])
	assert.Equal(t, "alice", resp["github_login"])
	assert.Equal(t, "alice@example.com", resp["email"])
}

func TestAuthenticateToken_EmptyToken(t *testing.T) {
	mux := setupMux(newEnv())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", strings.NewReader(`{"token":""}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserIDHeader_Required(t *testing.T) {
	mux := setupMux(newEnv())

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/repos"},
		{http.MethodGet, "/api/v1/alerts"},
		{http.MethodGet, "/api/v1/reports"},
		{http.MethodGet, "/api/v1/settings/reports"},
		{http.MethodDelete, "/api/v1/settings/account"},
	}

	for _, route := range routes {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			req := httptest.NewRequest(route.method, route.path, nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestUserIDHeader_Malformed(t *testing.T) {
	mux := setupMux(newEnv())

	for _, value := range []string{"abc", "0", "-3"} {
		t.Run(value, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/repos", nil)
			req.Header.Set("X-User-ID", value)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestListRepos(t *testing.T) {
	e := newEnv()
	e.repos.repos = []model.Repository{*testRepo()}
	mux := setupMux(e)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/repos", ""))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp []map[string]any
	decodeJSON(t, rec, &resp)
	require.Len(t, resp, 1)

	repo := resp[0]
	assert.Equal(t, "acme/widgets", repo["full_name"])
	assert.Equal(t, "acme", repo["owner"])
	assert.Equal(t, float64(120), repo["stars"])
	assert.Equal(t, testTimeStr, repo["added_at"])
	assert.NotEmpty(t, repo["last_fetched"])

	metrics, ok := repo["metrics"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(25), metrics["commits_total"])
	assert.Equal(t, 6.25, metrics["merge_time_hours"])
	weekly, ok := metrics["commits_weekly"].([]any)
	require.True(t, ok)
	assert.Len(t, weekly, 5)
}

func TestListRepos_EmptyIsArray(t *testing.T) {
	mux := setupMux(newEnv())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/repos", ""))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestConnectRepo(t *testing.T) {
	e := newEnv()
	e.users.user = testUser()
	e.repos.repo = testRepo()
	e.repos.subscribed = true
	mux := setupMux(e)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/repos", `{"full_name":"acme/widgets"}`))

	assert.Equal(t, http.StatusCreated, rec.Code)
	var resp map[string]any
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "acme/widgets", resp["full_name"])
}

func TestConnectRepo_InvalidName(t *testing.T) {
	mux := setupMux(newEnv())

	for _, name := range []string{"no-slash", "/repo", "owner/", "own er/repo"} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			body := `{"full_name":"` + name + `"}`
			mux.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/repos", body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestDisconnectRepo(t *testing.T) {
	e := newEnv()
	mux := setupMux(e)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(http.MethodDelete, "/api/v1/repos/acme/widgets", ""))

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestDisconnectRepo_NotSubscribed(t *testing.T) {
	e := newEnv()
	e.repos.disconnectErr = driven.ErrNotSubscribed
	mux := setupMux(e)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(http.MethodDelete, "/api/v1/repos/acme/widgets", ""))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRefreshRepo_ServesFreshSnapshot(t *testing.T) {
	e := newEnv()
	e.users.user = testUser()
	e.repos.repo = testRepo()
	e.repos.subscribed = true
	mux := setupMux(e)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/repos/acme/widgets/refresh", ""))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	decodeJSON(t, rec, &resp)
	assert.Equal(t, float64(25), resp["commits_total"])
	assert.Equal(t, float64(2), resp["open_prs"])
}

func TestRefreshRepo_UnknownRepo(t *testing.T) {
	e := newEnv()
	e.users.user = testUser()
	mux := setupMux(e)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/repos/acme/missing/refresh", ""))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefreshRepo_NotSubscribed(t *testing.T) {
	e := newEnv()
	e.users.user = testUser()
	e.repos.repo = testRepo()
	e.repos.subscribed = false
	mux := setupMux(e)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/repos/acme/widgets/refresh", ""))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListAlerts(t *testing.T) {
	e := newEnv()
	resolved := testTime
	e.alerts.alerts = []model.Alert{
		{
			ID: 2, RepoID: 1, RepoFullName: "acme/widgets",
			Type: model.AlertNoActivity, Message: "no commits in 7 days",
			Value: 0, Threshold: 7,
			Status: model.AlertStatusActive, CreatedAt: testTime,
		},
		{
			ID: 1, RepoID: 1, RepoFullName: "acme/widgets",
			Type: model.AlertLongOpenPRs, Message: "PR open for 20 days",
			Value: 20, Threshold: 14,
			Status: model.AlertStatusResolved, CreatedAt: testTime, ResolvedAt: &resolved,
		},
	}
	mux := setupMux(e)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/alerts", ""))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp []map[string]any
	decodeJSON(t, rec, &resp)
	require.Len(t, resp, 2)
	assert.Equal(t, "no_activity", resp[0]["type"])
	assert.Equal(t, "active", resp[0]["status"])
	assert.Nil(t, resp[0]["resolved_at"])
	assert.Equal(t, testTimeStr, resp[1]["resolved_at"])
}

func TestListAlerts_StatusFilter(t *testing.T) {
	e := newEnv()
	e.alerts.alerts = []model.Alert{
		{ID: 1, RepoFullName: "acme/widgets", Type: model.AlertNoActivity, Status: model.AlertStatusActive, CreatedAt: testTime},
		{ID: 2, RepoFullName: "acme/widgets", Type: model.AlertCommitDrops, Status: model.AlertStatusDismissed, CreatedAt: testTime},
	}
	mux := setupMux(e)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/alerts?status=active", ""))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp []map[string]any
	decodeJSON(t, rec, &resp)
	require.Len(t, resp, 1)
	assert.Equal(t, float64(1), resp[0]["id"])

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/alerts?status=bogus", ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateAlert_Resolve(t *testing.T) {
	e := newEnv()
	e.repos.subscribed = true
	e.alerts.alert = &model.Alert{
		ID: 5, RepoID: 1, RepoFullName: "acme/widgets",
		Type: model.AlertNoActivity, Status: model.AlertStatusActive, CreatedAt: testTime,
	}
	mux := setupMux(e)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(http.MethodPatch, "/api/v1/alerts/5", `{"status":"resolved"}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "resolved", resp["status"])
	assert.Equal(t, testTimeStr, resp["resolved_at"])
}

func TestUpdateAlert_Errors(t *testing.T) {
	resolved := testTime

	tests := []struct {
		name       string
		alert      *model.Alert
		subscribed bool
		body       string
		wantStatus int
	}{
		{
			name:       "unknown alert",
			alert:      nil,
			subscribed: true,
			body:       `{"status":"resolved"}`,
			wantStatus: http.StatusNotFound,
		},
		{
			name: "terminal alert",
			alert: &model.Alert{
				ID: 5, RepoID: 1, Status: model.AlertStatusResolved,
				CreatedAt: testTime, ResolvedAt: &resolved,
			},
			subscribed: true,
			body:       `{"status":"dismissed"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown status",
			alert:      &model.Alert{ID: 5, RepoID: 1, Status: model.AlertStatusActive, CreatedAt: testTime},
			subscribed: true,
			body:       `{"status":"archived"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "not a subscriber",
			alert:      &model.Alert{ID: 5, RepoID: 1, Status: model.AlertStatusActive, CreatedAt: testTime},
			subscribed: false,
			body:       `{"status":"resolved"}`,
			wantStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv()
			e.alerts.alert = tt.alert
			e.repos.subscribed = tt.subscribed
			mux := setupMux(e)

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, authedRequest(http.MethodPatch, "/api/v1/alerts/5", tt.body))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestGetReport(t *testing.T) {
	e := newEnv()
	e.reports.report = &model.Report{
		ID: 77, UserID: 1, RepoID: 1, RepoFullName: "acme/widgets",
		Type:      model.ReportWeekly,
		StartDate: testTime.AddDate(0, 0, -7),
		EndDate:   testTime,
		Data:      testRepo().Metrics,
		Status:    model.ReportStatusSent,
		SentAt:    &testTime,
		CreatedAt: testTime,
	}
	mux := setupMux(e)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/reports/77", ""))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	decodeJSON(t, rec, &resp)
	assert.Equal(t, float64(77), resp["id"])
	assert.Equal(t, "weekly", resp["type"])
	assert.Equal(t, "sent", resp["status"])
	assert.Equal(t, testTimeStr, resp["sent_at"])
}

func TestGetReport_OtherUser(t *testing.T) {
	e := newEnv()
	e.reports.report = &model.Report{ID: 77, UserID: 99, RepoFullName: "acme/widgets", CreatedAt: testTime}
	mux := setupMux(e)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/reports/77", ""))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenerateReport(t *testing.T) {
	e := newEnv()
	e.users.user = testUser()
	e.repos.repo = testRepo()
	e.repos.subscribed = true
	mux := setupMux(e)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/repos/acme/widgets/reports", `{"type":"weekly"}`))

	assert.Equal(t, http.StatusCreated, rec.Code)
	var resp map[string]any
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "weekly", resp["type"])
	assert.Equal(t, "sent", resp["status"])

	require.Len(t, e.sender.sent, 1)
	assert.Equal(t, "alice@example.com", e.sender.sent[0].To)
	assert.Contains(t, e.sender.sent[0].Subject, "weekly")
}

func TestGenerateReport_UnknownCadence(t *testing.T) {
	e := newEnv()
	e.users.user = testUser()
	e.repos.repo = testRepo()
	e.repos.subscribed = true
	mux := setupMux(e)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/repos/acme/widgets/reports", `{"type":"quarterly"}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, e.sender.sent)
}

func TestExportReportCSV(t *testing.T) {
	e := newEnv()
	e.reports.report = &model.Report{
		ID: 77, UserID: 1, RepoID: 1, RepoFullName: "acme/widgets",
		Type:      model.ReportWeekly,
		StartDate: testTime.AddDate(0, 0, -7),
		EndDate:   testTime,
		Data:      testRepo().Metrics,
		Status:    model.ReportStatusSent,
		CreatedAt: testTime,
	}
	mux := setupMux(e)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/reports/77/csv", ""))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=report-77.csv", rec.Header().Get("Content-Disposition"))

	body := rec.Body.String()
	assert.Contains(t, body, "repository,acme/widgets")
	assert.Contains(t, body, "commits_total,25")
}

func TestReportSettings_RoundTrip(t *testing.T) {
	e := newEnv()
	e.users.user = testUser()
	mux := setupMux(e)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/settings/reports", ""))
	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	decodeJSON(t, rec, &resp)
	assert.Equal(t, false, resp["enabled"])

	rec = httptest.NewRecorder()
	body := `{"enabled":true,"cadence":"weekly","email":"reports@example.com"}`
	mux.ServeHTTP(rec, authedRequest(http.MethodPut, "/api/v1/settings/reports", body))
	assert.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &resp)
	assert.Equal(t, true, resp["enabled"])
	assert.Equal(t, "weekly", resp["cadence"])
	assert.Equal(t, "reports@example.com", resp["email"])
}

func TestReportSettings_InvalidCadence(t *testing.T) {
	e := newEnv()
	e.users.user = testUser()
	mux := setupMux(e)

	rec := httptest.NewRecorder()
	body := `{"enabled":true,"cadence":"hourly"}`
	mux.ServeHTTP(rec, authedRequest(http.MethodPut, "/api/v1/settings/reports", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRepoThresholds_EffectiveMergesOverride(t *testing.T) {
	e := newEnv()
	e.repos.repo = testRepo()
	e.repos.subscribed = true
	days := 30
	e.thresholds.override = model.RepoAlertThreshold{LongOpenPRsDays: &days}
	mux := setupMux(e)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/repos/acme/widgets/thresholds", ""))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	decodeJSON(t, rec, &resp)

	effective, ok := resp["effective"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(30), effective["long_open_prs_days"])
	assert.Equal(t, float64(model.DefaultAlertSettings().NoActivityDays), effective["no_activity_days"])

	override, ok := resp["override"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(30), override["long_open_prs_days"])
	assert.Nil(t, override["no_activity_days"])
}

func TestRepoThresholds_UnknownRepo(t *testing.T) {
	mux := setupMux(newEnv())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/repos/acme/missing/thresholds", ""))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGlobalThresholds_RoundTrip(t *testing.T) {
	e := newEnv()
	mux := setupMux(e)

	rec := httptest.NewRecorder()
	body := `{"no_activity_days":3,"long_open_prs_days":30,"commit_drop_percentage":50}`
	mux.ServeHTTP(rec, authedRequest(http.MethodPut, "/api/v1/settings/thresholds", body))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/settings/thresholds", ""))
	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	decodeJSON(t, rec, &resp)
	assert.Equal(t, float64(3), resp["no_activity_days"])
	assert.Equal(t, float64(30), resp["long_open_prs_days"])
	assert.Equal(t, float64(50), resp["commit_drop_percentage"])
}

func TestGlobalThresholds_Validation(t *testing.T) {
	mux := setupMux(newEnv())

	rec := httptest.NewRecorder()
	body := `{"no_activity_days":0,"long_open_prs_days":14,"commit_drop_percentage":70}`
	mux.ServeHTTP(rec, authedRequest(http.MethodPut, "/api/v1/settings/thresholds", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteAccount(t *testing.T) {
	e := newEnv()
	e.users.user = testUser()
	mux := setupMux(e)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(http.MethodDelete, "/api/v1/settings/account", ""))

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestDeleteAccount_Unknown(t *testing.T) {
	e := newEnv()
	e.users.deleteErr = driven.ErrUserNotFound
	mux := setupMux(e)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(http.MethodDelete, "/api/v1/settings/account", ""))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
