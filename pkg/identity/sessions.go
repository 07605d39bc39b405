package identity

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mediaserve/ssobridge/pkg/sso"
)

// DefaultSessionTTL is how long an issued session remains usable.
const DefaultSessionTTL = 24 * time.Hour

// SessionManager is the sql-backed session authority. It implements
// sso.SessionAuthority.
type SessionManager struct {
	db  *sql.DB
	ttl time.Duration
	log *logrus.Logger
}

// NewSessionManager creates a session authority. A zero ttl uses
// DefaultSessionTTL.
func NewSessionManager(db *sql.DB, ttl time.Duration, log *logrus.Logger) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{db: db, ttl: ttl, log: log}
}

// IssueSession creates a session for the user and device and returns the
// opaque token result. A single invocation, never retried.
func (m *SessionManager) IssueSession(ctx context.Context, userID string, device sso.DeviceInfo) (*sso.SessionToken, error) {
	var username string
	err := m.db.QueryRowContext(ctx, `
		SELECT username FROM users WHERE id = $1
	`, userID).Scan(&username)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user for session: %w", err)
	}

	token := uuid.NewString()
	expiresAt := time.Now().Add(m.ttl)
	_, err = m.db.ExecContext(ctx, `
		INSERT INTO sessions (token, user_id, device_id, device_name, app_name, app_version, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), $7)
	`, token, userID, device.DeviceID, device.DeviceName, device.AppName, device.AppVersion, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &sso.SessionToken{
		AccessToken: token,
		UserID:      userID,
		Username:    username,
		DeviceID:    device.DeviceID,
		ExpiresAt:   expiresAt,
	}, nil
}

// CleanupExpiredSessions removes sessions past their expiry and reports how
// many were removed. Wired to a scheduler in the server entrypoint.
func (m *SessionManager) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	result, err := m.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < NOW()`)
	if err != nil {
		return 0, err
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		m.log.WithField("removed", removed).Debug("cleaned up expired sessions")
	}
	return removed, nil
}
