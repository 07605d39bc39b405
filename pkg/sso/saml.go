package sso

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	saml2 "github.com/russellhaering/gosaml2"
	dsig "github.com/russellhaering/goxmldsig"
	"github.com/sirupsen/logrus"
)

// SAMLAdapter drives the assertion challenge/callback sequence for one
// provider. The provider returns a complete signed assertion directly, so no
// pending-login record is registered at challenge time; validity is decided
// entirely from the assertion itself.
type SAMLAdapter struct {
	cfg *SAMLProviderConfig
	sp  *saml2.SAMLServiceProvider
	log *logrus.Logger

	// retrieve verifies the encoded response and yields the assertion info.
	// Defaults to the service provider's verifier; replaceable in tests.
	retrieve func(encodedResponse string) (*saml2.AssertionInfo, error)
}

// NewSAMLAdapter parses the configured IdP certificate and builds a service
// provider for assertion verification.
func NewSAMLAdapter(cfg *SAMLProviderConfig, baseURL string, log *logrus.Logger) (*SAMLAdapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	certBlock, _ := pem.Decode([]byte(cfg.Certificate))
	if certBlock == nil {
		return nil, fmt.Errorf("provider %q: failed to decode certificate PEM", cfg.Name)
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("provider %q: failed to parse certificate: %w", cfg.Name, err)
	}

	certStore := dsig.MemoryX509CertificateStore{
		Roots: []*x509.Certificate{cert},
	}

	sp := &saml2.SAMLServiceProvider{
		IdentityProviderSSOURL:      cfg.SSOURL,
		IdentityProviderIssuer:      cfg.EntityID,
		ServiceProviderIssuer:       baseURL,
		AssertionConsumerServiceURL: fmt.Sprintf("%s/sso/saml/callback/%s", baseURL, cfg.Name),
		AudienceURI:                 baseURL,
		IDPCertificateStore:         &certStore,
	}

	return &SAMLAdapter{cfg: cfg, sp: sp, log: log, retrieve: sp.RetrieveAssertionInfo}, nil
}

// Name returns the provider name this adapter serves.
func (a *SAMLAdapter) Name() string { return a.cfg.Name }

// Protocol returns ProtocolSAML.
func (a *SAMLAdapter) Protocol() Protocol { return ProtocolSAML }

// Challenge builds the authentication request redirect URL.
func (a *SAMLAdapter) Challenge(ctx context.Context) (string, error) {
	authURL, err := a.sp.BuildAuthURL("")
	if err != nil {
		return "", &ProtocolError{Reason: "failed to build authentication request", Err: err}
	}
	return authURL, nil
}

// Callback verifies the base64-encoded assertion against the configured
// certificate and evaluates the flat role attribute values. A role mismatch
// aborts before any completion hand-off is produced.
func (a *SAMLAdapter) Callback(ctx context.Context, encodedResponse string) (IdentityDecision, error) {
	if encodedResponse == "" {
		return IdentityDecision{}, &ProtocolError{Reason: "missing assertion payload"}
	}

	info, err := a.retrieve(encodedResponse)
	if err != nil {
		return IdentityDecision{}, &ProtocolError{Reason: "assertion verification failed", Err: err}
	}
	if info.WarningInfo != nil {
		if info.WarningInfo.InvalidTime {
			return IdentityDecision{}, &ProtocolError{Reason: "assertion time window invalid"}
		}
		if info.WarningInfo.NotInAudience {
			return IdentityDecision{}, &ProtocolError{Reason: "assertion not in expected audience"}
		}
	}

	var roles []string
	for _, attr := range info.Values {
		if attr.Name != a.cfg.RoleAttribute {
			continue
		}
		for _, v := range attr.Values {
			roles = append(roles, v.Value)
		}
	}

	res := a.cfg.Policy.Evaluate(roles)
	if !res.Valid {
		a.log.WithFields(logrus.Fields{
			"provider": a.cfg.Name,
			"observed": roles,
			"expected": a.cfg.Policy.AllowedRoles,
		}).Warn("SAML login rejected: role mismatch")
		return IdentityDecision{}, ErrRoleMismatch
	}

	return IdentityDecision{
		Valid:    true,
		Username: info.NameID,
		IsAdmin:  res.IsAdmin,
		Folders:  res.Folders,
	}, nil
}

// Validate checks the provider configuration, including that the
// certificate parses.
func (c *SAMLProviderConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.SSOURL == "" {
		return fmt.Errorf("sso_url is required")
	}
	if c.EntityID == "" {
		return fmt.Errorf("entity_id is required")
	}
	if c.Certificate == "" {
		return fmt.Errorf("certificate is required")
	}

	block, _ := pem.Decode([]byte(c.Certificate))
	if block == nil {
		return fmt.Errorf("invalid certificate PEM format")
	}
	if _, err := x509.ParseCertificate(block.Bytes); err != nil {
		return fmt.Errorf("invalid certificate: %w", err)
	}
	return nil
}
