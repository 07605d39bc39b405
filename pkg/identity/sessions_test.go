package identity

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaserve/ssobridge/pkg/sso"
)

func newSessionFixture(t *testing.T, ttl time.Duration) (*SessionManager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSessionManager(db, ttl, testLogger()), mock
}

func TestSessionManager_IssueSession(t *testing.T) {
	manager, mock := newSessionFixture(t, time.Hour)
	mock.ExpectQuery("SELECT username FROM users").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"username"}).AddRow("alice"))
	mock.ExpectExec("INSERT INTO sessions").
		WithArgs(sqlmock.AnyArg(), "user-1", "dev-1", "Living Room", "player", "1.2.3", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	device := sso.DeviceInfo{
		DeviceID:   "dev-1",
		DeviceName: "Living Room",
		AppName:    "player",
		AppVersion: "1.2.3",
	}
	session, err := manager.IssueSession(context.Background(), "user-1", device)
	require.NoError(t, err)
	assert.NotEmpty(t, session.AccessToken)
	assert.Equal(t, "user-1", session.UserID)
	assert.Equal(t, "alice", session.Username)
	assert.Equal(t, "dev-1", session.DeviceID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), session.ExpiresAt, time.Minute)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionManager_IssueSession_UnknownUser(t *testing.T) {
	manager, mock := newSessionFixture(t, time.Hour)
	mock.ExpectQuery("SELECT username FROM users").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"username"}))

	_, err := manager.IssueSession(context.Background(), "ghost", sso.DeviceInfo{})
	require.Error(t, err)
}

func TestSessionManager_DefaultTTL(t *testing.T) {
	manager, _ := newSessionFixture(t, 0)
	assert.Equal(t, DefaultSessionTTL, manager.ttl)
}

func TestSessionManager_CleanupExpiredSessions(t *testing.T) {
	manager, mock := newSessionFixture(t, time.Hour)
	mock.ExpectExec("DELETE FROM sessions WHERE expires_at").
		WillReturnResult(sqlmock.NewResult(0, 3))

	removed, err := manager.CleanupExpiredSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)
	require.NoError(t, mock.ExpectationsWereMet())
}
