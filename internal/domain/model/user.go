package model

import "time"

// User is an account created or updated on each successful GitHub
// authentication. The access token is the cached credential used for all
// GitHub calls made on this user's behalf.
type User struct {
	ID          int64
	GitHubID    int64
	GitHubLogin string
	Email       string
	AccessToken string

	EmailReports EmailReportSettings

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EmailReportSettings is the user's recurring report preference. Address
// overrides the account email as the delivery target when set.
type EmailReportSettings struct {
	Enabled bool
	Cadence ReportType
	Address string
}

// ReportAddress returns where this user's reports should be delivered.
func (u User) ReportAddress() string {
	if u.EmailReports.Address != "" {
		return u.EmailReports.Address
	}
	return u.Email
}
