package sso

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// UserAuthority is the external user store. EnsureUser must be idempotent:
// the same username always maps to the same user.
type UserAuthority interface {
	// EnsureUser looks up the user by username, provisioning a new user
	// bound to the given authentication provider if absent.
	EnsureUser(ctx context.Context, username, provider string) (*User, error)

	// SetUserPolicy sets the admin permission and folder-access preference.
	SetUserPolicy(ctx context.Context, userID string, isAdmin, allFolders bool, folders []string) error

	// SetAuthProvider rebinds the user's authentication-provider identity.
	SetAuthProvider(ctx context.Context, userID, provider string) error
}

// SessionAuthority issues sessions for provisioned users.
type SessionAuthority interface {
	IssueSession(ctx context.Context, userID string, device DeviceInfo) (*SessionToken, error)
}

// CompleteOptions carries the provider config flags the bridge honors.
type CompleteOptions struct {
	// EnableAuthorization controls whether the decision's admin flag and
	// folder grants are written to the user. When false, any pre-existing
	// local configuration is preserved untouched.
	EnableAuthorization bool

	// EnableAllFolders grants every library folder, ignoring the
	// decision's folder list.
	EnableAllFolders bool

	// DefaultProvider, when set, rebinds the user to a different
	// authentication provider immediately after provisioning, handing
	// future logins to that provider.
	DefaultProvider string
}

// Bridge turns a final IdentityDecision into a local user and a session.
type Bridge struct {
	users    UserAuthority
	sessions SessionAuthority
	log      *logrus.Logger
}

// NewBridge creates an authentication bridge over the given authorities.
func NewBridge(users UserAuthority, sessions SessionAuthority, log *logrus.Logger) *Bridge {
	return &Bridge{users: users, sessions: sessions, log: log}
}

// Complete provisions the decision's user and requests a session for the
// device. Provisioning and session issuance are each a single idempotent
// external invocation: failures are fatal and surfaced unmodified, never
// retried.
func (b *Bridge) Complete(ctx context.Context, provider string, decision IdentityDecision, device DeviceInfo, opts CompleteOptions) (*SessionToken, error) {
	if !decision.Valid || decision.Username == "" {
		return nil, fmt.Errorf("refusing to complete an invalid decision")
	}

	user, err := b.users.EnsureUser(ctx, decision.Username, provider)
	if err != nil {
		return nil, fmt.Errorf("user provisioning failed: %w", err)
	}

	if opts.EnableAuthorization {
		if err := b.users.SetUserPolicy(ctx, user.ID, decision.IsAdmin, opts.EnableAllFolders, decision.Folders); err != nil {
			return nil, fmt.Errorf("user provisioning failed: %w", err)
		}
	}

	if opts.DefaultProvider != "" {
		if err := b.users.SetAuthProvider(ctx, user.ID, opts.DefaultProvider); err != nil {
			return nil, fmt.Errorf("user provisioning failed: %w", err)
		}
	}

	session, err := b.sessions.IssueSession(ctx, user.ID, device)
	if err != nil {
		return nil, fmt.Errorf("session issuance failed: %w", err)
	}

	b.log.WithFields(logrus.Fields{
		"user":     decision.Username,
		"provider": provider,
		"admin":    decision.IsAdmin,
		"device":   device.DeviceID,
	}).Info("session issued")

	return session, nil
}
