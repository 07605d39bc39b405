package identity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mediaserve/ssobridge/pkg/sso"
)

// Authority is the sql-backed local user authority. It implements
// sso.UserAuthority: users are keyed by username, so provisioning the same
// identity twice always resolves to the same account.
type Authority struct {
	db  *sql.DB
	log *logrus.Logger
}

// NewAuthority creates a user authority backed by db.
func NewAuthority(db *sql.DB, log *logrus.Logger) *Authority {
	return &Authority{db: db, log: log}
}

// EnsureUser looks up the user by username, creating one bound to the given
// authentication provider if absent.
func (a *Authority) EnsureUser(ctx context.Context, username, provider string) (*sso.User, error) {
	user := &sso.User{}
	err := a.db.QueryRowContext(ctx, `
		SELECT id, username, is_admin FROM users WHERE username = $1
	`, username).Scan(&user.ID, &user.Username, &user.IsAdmin)

	if err == sql.ErrNoRows {
		user.ID = uuid.NewString()
		user.Username = username
		_, err = a.db.ExecContext(ctx, `
			INSERT INTO users (id, username, auth_provider, is_admin, all_folders, created_at, updated_at, last_login_at)
			VALUES ($1, $2, $3, false, false, NOW(), NOW(), NOW())
		`, user.ID, username, provider)
		if err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		a.log.WithFields(logrus.Fields{
			"user":     username,
			"provider": provider,
		}).Info("provisioned new user")
		return user, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	_, err = a.db.ExecContext(ctx, `
		UPDATE users SET last_login_at = NOW(), updated_at = NOW() WHERE id = $1
	`, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

// SetUserPolicy writes the admin permission and folder-access preference.
func (a *Authority) SetUserPolicy(ctx context.Context, userID string, isAdmin, allFolders bool, folders []string) error {
	foldersJSON, err := json.Marshal(folders)
	if err != nil {
		return fmt.Errorf("failed to marshal folders: %w", err)
	}
	_, err = a.db.ExecContext(ctx, `
		UPDATE users SET is_admin = $2, all_folders = $3, folders = $4, updated_at = NOW()
		WHERE id = $1
	`, userID, isAdmin, allFolders, foldersJSON)
	if err != nil {
		return fmt.Errorf("failed to set user policy: %w", err)
	}
	return nil
}

// SetAuthProvider rebinds the user's authentication-provider identity, so
// future logins are handled by a different provider.
func (a *Authority) SetAuthProvider(ctx context.Context, userID, provider string) error {
	_, err := a.db.ExecContext(ctx, `
		UPDATE users SET auth_provider = $2, updated_at = NOW() WHERE id = $1
	`, userID, provider)
	if err != nil {
		return fmt.Errorf("failed to set auth provider: %w", err)
	}
	return nil
}
