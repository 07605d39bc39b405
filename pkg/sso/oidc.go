package sso

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// defaultUsernameClaim is the preferred-username-equivalent claim used when
// the provider config does not name one.
const defaultUsernameClaim = "preferred_username"

// OIDCAdapter drives the authorization-code challenge/callback sequence for
// one provider and normalizes the returned claim set into an
// IdentityDecision via the claim-path resolver and the role policy.
type OIDCAdapter struct {
	cfg          *OIDCProviderConfig
	states       *StateStore
	segments     []string
	verifier     *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
	log          *logrus.Logger
}

// NewOIDCAdapter discovers the provider and builds an adapter bound to the
// shared state store. Discovery is one network round trip, so constructed
// adapters are cached by the factory.
func NewOIDCAdapter(ctx context.Context, cfg *OIDCProviderConfig, baseURL string, states *StateStore, log *logrus.Logger) (*OIDCAdapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider %q: %w", cfg.Name, err)
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  fmt.Sprintf("%s/sso/oidc/callback/%s", baseURL, cfg.Name),
		Scopes:       cfg.Scopes,
	}

	return &OIDCAdapter{
		cfg:          cfg,
		states:       states,
		segments:     ParseClaimPath(cfg.RoleClaimPath),
		verifier:     verifier,
		oauth2Config: oauth2Config,
		log:          log,
	}, nil
}

// Name returns the provider name this adapter serves.
func (a *OIDCAdapter) Name() string { return a.cfg.Name }

// Protocol returns ProtocolOIDC.
func (a *OIDCAdapter) Protocol() Protocol { return ProtocolOIDC }

// Challenge registers a fresh pending login and returns the authorization
// redirect URL. Expired records are swept here, bounding store growth
// without a background timer.
func (a *OIDCAdapter) Challenge(ctx context.Context) (string, error) {
	a.states.Sweep()

	token, err := NewStateToken()
	if err != nil {
		return "", err
	}
	nonce, err := NewStateToken()
	if err != nil {
		return "", err
	}
	if err := a.states.Create(token, nonce); err != nil {
		return "", err
	}

	return a.oauth2Config.AuthCodeURL(token, oidc.Nonce(nonce)), nil
}

// Callback exchanges the authorization code, verifies the ID token against
// the stored protocol state, and folds the claim set into a decision. The
// decision is written into the pending record with a single atomic update;
// the record's valid flag only ever transitions false to true.
func (a *OIDCAdapter) Callback(ctx context.Context, stateToken, code string) (IdentityDecision, error) {
	rec, err := a.states.Get(stateToken)
	if err != nil {
		return IdentityDecision{}, err
	}

	oauth2Token, err := a.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return IdentityDecision{}, &ProtocolError{Reason: "code exchange failed", Err: err}
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return IdentityDecision{}, &ProtocolError{Reason: "missing id_token in token response"}
	}

	idToken, err := a.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return IdentityDecision{}, &ProtocolError{Reason: "ID token verification failed", Err: err}
	}
	if idToken.Nonce != rec.ProtocolState {
		return IdentityDecision{}, &ProtocolError{Reason: "nonce mismatch"}
	}

	var raw map[string]any
	if err := idToken.Claims(&raw); err != nil {
		return IdentityDecision{}, &ProtocolError{Reason: "failed to parse claims", Err: err}
	}

	usernameClaim := a.cfg.UsernameClaim
	if usernameClaim == "" {
		usernameClaim = defaultUsernameClaim
	}

	fold := foldClaims(claimSetFromMap(raw), a.segments, usernameClaim, idToken.Subject, a.cfg.Policy, a.log)
	decision := fold.Decision

	if err := a.states.Update(stateToken, func(p *PendingLogin) {
		if decision.Valid {
			p.Valid = true
		}
		p.Username = decision.Username
		p.IsAdmin = decision.IsAdmin
		p.Folders = append([]string(nil), decision.Folders...)
	}); err != nil {
		// Swept between Get and Update; a late callback is indistinguishable
		// from replay.
		return IdentityDecision{}, err
	}

	if !decision.Valid {
		a.log.WithFields(logrus.Fields{
			"provider": a.cfg.Name,
			"observed": fold.Roles,
			"expected": a.cfg.Policy.AllowedRoles,
		}).Warn("OIDC login rejected: role mismatch")
	}

	return decision, nil
}

// Validate checks the provider configuration.
func (c *OIDCProviderConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.IssuerURL == "" {
		return fmt.Errorf("issuer_url is required")
	}
	if c.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("client_secret is required")
	}
	if len(c.Scopes) == 0 {
		return fmt.Errorf("scopes are required")
	}
	hasOpenID := false
	for _, scope := range c.Scopes {
		if scope == oidc.ScopeOpenID {
			hasOpenID = true
			break
		}
	}
	if !hasOpenID {
		return fmt.Errorf("%q scope is required", oidc.ScopeOpenID)
	}
	if c.RoleClaimPath == "" {
		return fmt.Errorf("role_claim_path is required")
	}
	return nil
}
