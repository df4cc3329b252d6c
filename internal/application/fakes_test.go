package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
	"github.com/ericfisherdev/repopulse/internal/domain/port/driven"
)

// fakeGitHubClient returns canned responses per method, or the configured
// error for every call when err is set.
type fakeGitHubClient struct {
	user         *model.GitHubUser
	summary      *model.RepoSummary
	weekly       []model.WeeklyCommits
	openPRs      []model.PullRequest
	closedPRs    []model.PullRequest
	openIssues   []model.Issue
	closedIssues []model.Issue
	contributors []model.Contributor

	err       error
	weeklyErr error

	mu    sync.Mutex
	calls int
}

func (f *fakeGitHubClient) countCall() {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
}

func (f *fakeGitHubClient) FetchAuthenticatedUser(context.Context) (*model.GitHubUser, error) {
	f.countCall()
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

func (f *fakeGitHubClient) FetchRepository(context.Context, string, string) (*model.RepoSummary, error) {
	f.countCall()
	if f.err != nil {
		return nil, f.err
	}
	return f.summary, nil
}

func (f *fakeGitHubClient) FetchWeeklyCommitActivity(context.Context, string, string) ([]model.WeeklyCommits, error) {
	f.countCall()
	if f.err != nil {
		return nil, f.err
	}
	if f.weeklyErr != nil {
		return nil, f.weeklyErr
	}
	return f.weekly, nil
}

func (f *fakeGitHubClient) FetchPullRequests(_ context.Context, _, _, state string) ([]model.PullRequest, error) {
	f.countCall()
	if f.err != nil {
		return nil, f.err
	}
	if state == "open" {
		return f.openPRs, nil
	}
	return f.closedPRs, nil
}

func (f *fakeGitHubClient) FetchIssues(_ context.Context, _, _, state string) ([]model.Issue, error) {
	f.countCall()
	if f.err != nil {
		return nil, f.err
	}
	if state == "open" {
		return f.openIssues, nil
	}
	return f.closedIssues, nil
}

func (f *fakeGitHubClient) FetchContributors(context.Context, string, string) ([]model.Contributor, error) {
	f.countCall()
	if f.err != nil {
		return nil, f.err
	}
	return f.contributors, nil
}

// fakeClientFactory hands out one client per token, falling back to def.
type fakeClientFactory struct {
	def      *fakeGitHubClient
	perToken map[string]*fakeGitHubClient
}

func (f *fakeClientFactory) ClientFor(token string) driven.GitHubClient {
	if c, ok := f.perToken[token]; ok {
		return c
	}
	return f.def
}

// fakeUserStore is an in-memory UserStore.
type fakeUserStore struct {
	mu     sync.Mutex
	users  map[int64]*model.User
	nextID int64
}

func newFakeUserStore(users ...model.User) *fakeUserStore {
	s := &fakeUserStore{users: make(map[int64]*model.User), nextID: 1}
	for _, u := range users {
		u := u
		if u.ID == 0 {
			u.ID = s.nextID
		}
		if u.ID >= s.nextID {
			s.nextID = u.ID + 1
		}
		s.users[u.ID] = &u
	}
	return s
}

func (s *fakeUserStore) Upsert(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.GitHubLogin == user.GitHubLogin {
			existing.GitHubID = user.GitHubID
			existing.Email = user.Email
			existing.AccessToken = user.AccessToken
			*user = *existing
			return nil
		}
	}
	user.ID = s.nextID
	s.nextID++
	stored := *user
	s.users[user.ID] = &stored
	return nil
}

func (s *fakeUserStore) GetByID(_ context.Context, id int64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, nil
}

func (s *fakeUserStore) GetByLogin(_ context.Context, login string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.GitHubLogin == login {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeUserStore) UpdateEmailReports(_ context.Context, userID int64, settings model.EmailReportSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return driven.ErrUserNotFound
	}
	u.EmailReports = settings
	return nil
}

func (s *fakeUserStore) ListWithReportsEnabled(_ context.Context, cadence model.ReportType) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.User
	for _, u := range s.users {
		if u.EmailReports.Enabled && u.EmailReports.Cadence == cadence {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeUserStore) Delete(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return driven.ErrUserNotFound
	}
	delete(s.users, userID)
	return nil
}

// fakeRepoStore is an in-memory RepoStore.
type fakeRepoStore struct {
	mu     sync.Mutex
	repos  map[int64]*model.Repository
	subs   map[int64]map[int64]bool // repoID -> userID set
	nextID int64

	saveErr error
	saves   int
}

func newFakeRepoStore() *fakeRepoStore {
	return &fakeRepoStore{
		repos:  make(map[int64]*model.Repository),
		subs:   make(map[int64]map[int64]bool),
		nextID: 1,
	}
}

func (s *fakeRepoStore) add(repo model.Repository, subscribers ...int64) *model.Repository {
	s.mu.Lock()
	defer s.mu.Unlock()
	if repo.ID == 0 {
		repo.ID = s.nextID
	}
	if repo.ID >= s.nextID {
		s.nextID = repo.ID + 1
	}
	s.repos[repo.ID] = &repo
	s.subs[repo.ID] = make(map[int64]bool)
	for _, userID := range subscribers {
		s.subs[repo.ID][userID] = true
	}
	return &repo
}

func (s *fakeRepoStore) Connect(_ context.Context, repo model.Repository, userID int64) (*model.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.repos {
		if existing.FullName == repo.FullName {
			s.subs[existing.ID][userID] = true
			copied := *existing
			return &copied, nil
		}
	}
	repo.ID = s.nextID
	s.nextID++
	stored := repo
	s.repos[repo.ID] = &stored
	s.subs[repo.ID] = map[int64]bool{userID: true}
	copied := stored
	return &copied, nil
}

func (s *fakeRepoStore) Disconnect(_ context.Context, fullName string, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, repo := range s.repos {
		if repo.FullName != fullName {
			continue
		}
		if !s.subs[id][userID] {
			return driven.ErrNotSubscribed
		}
		delete(s.subs[id], userID)
		if len(s.subs[id]) == 0 {
			delete(s.repos, id)
			delete(s.subs, id)
		}
		return nil
	}
	return driven.ErrNotSubscribed
}

func (s *fakeRepoStore) GetByFullName(_ context.Context, fullName string) (*model.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, repo := range s.repos {
		if repo.FullName == fullName {
			copied := *repo
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeRepoStore) ListByUser(_ context.Context, userID int64) ([]model.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Repository
	for id, repo := range s.repos {
		if s.subs[id][userID] {
			out = append(out, *repo)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (s *fakeRepoStore) IsSubscriber(_ context.Context, repoID, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs[repoID][userID], nil
}

func (s *fakeRepoStore) SaveSnapshot(_ context.Context, repoID int64, summary model.RepoSummary, snapshot model.MetricsSnapshot, fetchedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	repo, ok := s.repos[repoID]
	if !ok {
		return driven.ErrRepoNotFound
	}
	s.saves++
	repo.Stars = summary.Stars
	repo.Forks = summary.Forks
	repo.Watchers = summary.Watchers
	repo.OpenIssues = summary.OpenIssues
	repo.Metrics = snapshot
	repo.LastFetched = fetchedAt
	return nil
}

func (s *fakeRepoStore) SaveAlertFlags(_ context.Context, repoID int64, flags model.AlertFlags) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	repo, ok := s.repos[repoID]
	if !ok {
		return driven.ErrRepoNotFound
	}
	repo.AlertFlags = flags
	return nil
}

// fakeAlertStore is an in-memory AlertStore.
type fakeAlertStore struct {
	mu     sync.Mutex
	alerts map[int64]*model.Alert
	nextID int64
}

func newFakeAlertStore() *fakeAlertStore {
	return &fakeAlertStore{alerts: make(map[int64]*model.Alert), nextID: 1}
}

func (s *fakeAlertStore) Create(_ context.Context, alert *model.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert.ID = s.nextID
	s.nextID++
	stored := *alert
	s.alerts[alert.ID] = &stored
	return nil
}

func (s *fakeAlertStore) GetByID(_ context.Context, id int64) (*model.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.alerts[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, nil
}

func (s *fakeAlertStore) GetActive(_ context.Context, repoID int64, alertType model.AlertType) (*model.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.alerts {
		if a.RepoID == repoID && a.Type == alertType && a.Status == model.AlertStatusActive {
			copied := *a
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeAlertStore) ListByUser(context.Context, int64) ([]model.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *fakeAlertStore) UpdateStatus(_ context.Context, id int64, status model.AlertStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return driven.ErrAlertNotFound
	}
	if a.Status == model.AlertStatusActive && status != model.AlertStatusActive {
		now := time.Now().UTC()
		a.ResolvedAt = &now
	}
	a.Status = status
	return nil
}

func (s *fakeAlertStore) all() []model.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// fakeThresholdStore serves fixed settings.
type fakeThresholdStore struct {
	global    model.AlertSettings
	overrides map[string]model.RepoAlertThreshold
}

func newFakeThresholdStore() *fakeThresholdStore {
	return &fakeThresholdStore{
		global:    model.DefaultAlertSettings(),
		overrides: make(map[string]model.RepoAlertThreshold),
	}
}

func (s *fakeThresholdStore) GetGlobalSettings(context.Context) (model.AlertSettings, error) {
	return s.global, nil
}

func (s *fakeThresholdStore) SetGlobalSettings(_ context.Context, settings model.AlertSettings) error {
	s.global = settings
	return nil
}

func (s *fakeThresholdStore) GetRepoThreshold(_ context.Context, repoFullName string) (model.RepoAlertThreshold, error) {
	return s.overrides[repoFullName], nil
}

func (s *fakeThresholdStore) SetRepoThreshold(_ context.Context, threshold model.RepoAlertThreshold) error {
	s.overrides[threshold.RepoFullName] = threshold
	return nil
}

func (s *fakeThresholdStore) DeleteRepoThreshold(_ context.Context, repoFullName string) error {
	delete(s.overrides, repoFullName)
	return nil
}

// fakeReportStore is an in-memory ReportStore.
type fakeReportStore struct {
	mu      sync.Mutex
	reports map[int64]*model.Report
	nextID  int64
}

func newFakeReportStore() *fakeReportStore {
	return &fakeReportStore{reports: make(map[int64]*model.Report), nextID: 1}
}

func (s *fakeReportStore) Create(_ context.Context, report *model.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	report.ID = s.nextID
	s.nextID++
	stored := *report
	s.reports[report.ID] = &stored
	return nil
}

func (s *fakeReportStore) GetByID(_ context.Context, id int64) (*model.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.reports[id]; ok {
		copied := *r
		return &copied, nil
	}
	return nil, nil
}

func (s *fakeReportStore) ListByUser(_ context.Context, userID int64) ([]model.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Report
	for _, r := range s.reports {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *fakeReportStore) MarkSent(_ context.Context, id int64, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return driven.ErrReportNotFound
	}
	r.Status = model.ReportStatusSent
	r.SentAt = &sentAt
	return nil
}

func (s *fakeReportStore) MarkFailed(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return driven.ErrReportNotFound
	}
	r.Status = model.ReportStatusFailed
	return nil
}

func (s *fakeReportStore) all() []model.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Report, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// fakeSender records sent messages and can fail per recipient.
type fakeSender struct {
	mu      sync.Mutex
	sent    []driven.EmailMessage
	failFor map[string]error
}

func newFakeSender() *fakeSender {
	return &fakeSender{failFor: make(map[string]error)}
}

func (s *fakeSender) Send(_ context.Context, msg driven.EmailMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failFor[msg.To]; ok {
		return err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *fakeSender) messages() []driven.EmailMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]driven.EmailMessage(nil), s.sent...)
}
