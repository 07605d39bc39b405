package sso

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUserAuthority records calls so tests can assert on user mutations.
type fakeUserAuthority struct {
	users         map[string]*User
	policyCalls   []policyCall
	providerCalls []string
	ensureErr     error
	policyErr     error
}

type policyCall struct {
	UserID     string
	IsAdmin    bool
	AllFolders bool
	Folders    []string
}

func newFakeUserAuthority() *fakeUserAuthority {
	return &fakeUserAuthority{users: make(map[string]*User)}
}

func (f *fakeUserAuthority) EnsureUser(ctx context.Context, username, provider string) (*User, error) {
	if f.ensureErr != nil {
		return nil, f.ensureErr
	}
	if u, ok := f.users[username]; ok {
		return u, nil
	}
	u := &User{ID: "id-" + username, Username: username}
	f.users[username] = u
	return u, nil
}

func (f *fakeUserAuthority) SetUserPolicy(ctx context.Context, userID string, isAdmin, allFolders bool, folders []string) error {
	if f.policyErr != nil {
		return f.policyErr
	}
	f.policyCalls = append(f.policyCalls, policyCall{userID, isAdmin, allFolders, folders})
	return nil
}

func (f *fakeUserAuthority) SetAuthProvider(ctx context.Context, userID, provider string) error {
	f.providerCalls = append(f.providerCalls, provider)
	return nil
}

type fakeSessionAuthority struct {
	issued   int
	issueErr error
}

func (f *fakeSessionAuthority) IssueSession(ctx context.Context, userID string, device DeviceInfo) (*SessionToken, error) {
	if f.issueErr != nil {
		return nil, f.issueErr
	}
	f.issued++
	return &SessionToken{
		AccessToken: "session-" + userID,
		UserID:      userID,
		DeviceID:    device.DeviceID,
		ExpiresAt:   time.Now().Add(time.Hour),
	}, nil
}

func TestBridge_Complete(t *testing.T) {
	users := newFakeUserAuthority()
	sessions := &fakeSessionAuthority{}
	bridge := NewBridge(users, sessions, testLogger())

	decision := IdentityDecision{
		Valid:    true,
		Username: "alice",
		IsAdmin:  true,
		Folders:  []string{"movies"},
	}
	device := DeviceInfo{DeviceID: "dev-1", AppName: "player"}

	session, err := bridge.Complete(context.Background(), "corp", decision, device, CompleteOptions{
		EnableAuthorization: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "session-id-alice", session.AccessToken)
	assert.Equal(t, "dev-1", session.DeviceID)

	require.Len(t, users.policyCalls, 1)
	assert.True(t, users.policyCalls[0].IsAdmin)
	assert.Equal(t, []string{"movies"}, users.policyCalls[0].Folders)
	assert.Empty(t, users.providerCalls)
	assert.Equal(t, 1, sessions.issued)
}

func TestBridge_CompleteIdempotentProvisioning(t *testing.T) {
	users := newFakeUserAuthority()
	bridge := NewBridge(users, &fakeSessionAuthority{}, testLogger())

	decision := IdentityDecision{Valid: true, Username: "alice"}

	first, err := bridge.Complete(context.Background(), "corp", decision, DeviceInfo{}, CompleteOptions{})
	require.NoError(t, err)
	second, err := bridge.Complete(context.Background(), "corp", decision, DeviceInfo{}, CompleteOptions{})
	require.NoError(t, err)

	assert.Equal(t, first.UserID, second.UserID)
	assert.Len(t, users.users, 1)
}

func TestBridge_AuthorizationDisabledSkipsPolicy(t *testing.T) {
	users := newFakeUserAuthority()
	bridge := NewBridge(users, &fakeSessionAuthority{}, testLogger())

	decision := IdentityDecision{Valid: true, Username: "alice", IsAdmin: true}

	_, err := bridge.Complete(context.Background(), "corp", decision, DeviceInfo{}, CompleteOptions{
		EnableAuthorization: false,
	})
	require.NoError(t, err)
	assert.Empty(t, users.policyCalls, "pre-existing local configuration must be preserved")
}

func TestBridge_DefaultProviderRebind(t *testing.T) {
	users := newFakeUserAuthority()
	bridge := NewBridge(users, &fakeSessionAuthority{}, testLogger())

	decision := IdentityDecision{Valid: true, Username: "alice"}

	_, err := bridge.Complete(context.Background(), "corp", decision, DeviceInfo{}, CompleteOptions{
		DefaultProvider: "builtin",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"builtin"}, users.providerCalls)
}

func TestBridge_RefusesInvalidDecision(t *testing.T) {
	users := newFakeUserAuthority()
	bridge := NewBridge(users, &fakeSessionAuthority{}, testLogger())

	_, err := bridge.Complete(context.Background(), "corp", IdentityDecision{Valid: false, Username: "alice"}, DeviceInfo{}, CompleteOptions{})
	require.Error(t, err)
	assert.Empty(t, users.users)

	_, err = bridge.Complete(context.Background(), "corp", IdentityDecision{Valid: true}, DeviceInfo{}, CompleteOptions{})
	require.Error(t, err)
	assert.Empty(t, users.users)
}

func TestBridge_FailuresSurfaceUnmodified(t *testing.T) {
	provisionErr := errors.New("db down")
	users := newFakeUserAuthority()
	users.ensureErr = provisionErr
	sessions := &fakeSessionAuthority{}
	bridge := NewBridge(users, sessions, testLogger())

	decision := IdentityDecision{Valid: true, Username: "alice"}

	_, err := bridge.Complete(context.Background(), "corp", decision, DeviceInfo{}, CompleteOptions{})
	require.ErrorIs(t, err, provisionErr)
	assert.Zero(t, sessions.issued)

	issueErr := errors.New("session authority down")
	users.ensureErr = nil
	sessions.issueErr = issueErr
	_, err = bridge.Complete(context.Background(), "corp", decision, DeviceInfo{}, CompleteOptions{})
	require.ErrorIs(t, err, issueErr)
}
