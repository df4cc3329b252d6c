package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
	"github.com/ericfisherdev/repopulse/internal/domain/port/driven"
)

// UserService manages accounts and their report preferences. Accounts are
// created implicitly on first successful GitHub authentication.
type UserService struct {
	clients   driven.GitHubClientFactory
	userStore driven.UserStore
	logger    *slog.Logger
}

func NewUserService(clients driven.GitHubClientFactory, userStore driven.UserStore) *UserService {
	return &UserService{
		clients:   clients,
		userStore: userStore,
		logger:    slog.Default(),
	}
}

// AuthenticateWithToken verifies a GitHub personal access token against the
// API and upserts the account it belongs to. The token is cached on the user
// for later refreshes and scheduled work.
func (s *UserService) AuthenticateWithToken(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, &ValidationError{Field: "token", Reason: "must not be empty"}
	}

	ghUser, err := s.clients.ClientFor(token).FetchAuthenticatedUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}

	user := model.User{
		GitHubID:    ghUser.ID,
		GitHubLogin: ghUser.Login,
		Email:       ghUser.Email,
		AccessToken: token,
	}
	if err := s.userStore.Upsert(ctx, &user); err != nil {
		return nil, fmt.Errorf("upsert user %s: %w", ghUser.Login, err)
	}

	s.logger.Info("user authenticated", "login", user.GitHubLogin, "user_id", user.ID)
	return &user, nil
}

// GetUser returns the account, or ErrUserNotFound.
func (s *UserService) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.userStore.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, driven.ErrUserNotFound
	}
	return user, nil
}

// UpdateEmailReports stores the user's recurring report preference. An
// enabled preference requires a valid cadence.
func (s *UserService) UpdateEmailReports(ctx context.Context, userID int64, settings model.EmailReportSettings) (*model.User, error) {
	if settings.Enabled && !model.ValidReportType(settings.Cadence) {
		return nil, &ValidationError{Field: "cadence", Reason: fmt.Sprintf("unknown report cadence %q", settings.Cadence)}
	}
	if !settings.Enabled {
		settings.Cadence = ""
	}

	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.userStore.UpdateEmailReports(ctx, userID, settings); err != nil {
		return nil, fmt.Errorf("update report settings for user %d: %w", userID, err)
	}
	return s.GetUser(ctx, userID)
}

// DeleteAccount removes the user, their subscriptions, and any repositories
// left with no subscribers.
func (s *UserService) DeleteAccount(ctx context.Context, userID int64) error {
	start := time.Now()
	if err := s.userStore.Delete(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("account deleted", "user_id", userID, "duration", time.Since(start).Round(time.Millisecond))
	return nil
}
