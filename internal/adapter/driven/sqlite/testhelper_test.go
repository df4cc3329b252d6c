package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
)

// newTestDB opens a migrated database in a per-test temp directory. The
// file-backed database exercises the same dual reader/writer setup as
// production.
func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, RunMigrations(db.Writer))
	return db
}

// seedUser inserts a user and returns it with its assigned ID.
func seedUser(t *testing.T, db *DB, login string) *model.User {
	t.Helper()

	repo := NewUserRepo(db)
	user := &model.User{
		GitHubID:    int64(len(login)),
		GitHubLogin: login,
		Email:       login + "@example.com",
		AccessToken: "tok-" + login,
	}
	require.NoError(t, repo.Upsert(context.Background(), user))
	return user
}

// seedRepo connects a repository for the given user and returns it.
func seedRepo(t *testing.T, db *DB, fullName string, userID int64) *model.Repository {
	t.Helper()

	owner, name, _ := splitFullName(fullName)
	repo := NewRepoRepo(db)
	stored, err := repo.Connect(context.Background(), model.Repository{
		FullName: fullName,
		Owner:    owner,
		Name:     name,
		AddedAt:  time.Now().UTC(),
	}, userID)
	require.NoError(t, err)
	return stored
}

func splitFullName(fullName string) (owner, name string, ok bool) {
	for i := 0; i < len(fullName); i++ {
		if fullName[i] == '/' {
			return fullName[:i], fullName[i+1:], true
		}
	}
	return fullName, "", false
}
