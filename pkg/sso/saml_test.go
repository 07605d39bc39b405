package sso

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"strings"
	"testing"
	"time"

	saml2 "github.com/russellhaering/gosaml2"
	samltypes "github.com/russellhaering/gosaml2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testCertificatePEM generates a throwaway self-signed certificate.
func testCertificatePEM(t *testing.T) string {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "idp.example.com"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	require.NoError(t, err)

	var sb strings.Builder
	require.NoError(t, pem.Encode(&sb, &pem.Block{Type: "CERTIFICATE", Bytes: der}))
	return sb.String()
}

func validSAMLConfig(t *testing.T) SAMLProviderConfig {
	return SAMLProviderConfig{
		Name:          "partner",
		SSOURL:        "https://idp.example.com/sso",
		EntityID:      "https://idp.example.com",
		Certificate:   testCertificatePEM(t),
		RoleAttribute: "memberOf",
	}
}

func TestSAMLProviderConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SAMLProviderConfig)
		wantErr string
	}{
		{"valid", func(c *SAMLProviderConfig) {}, ""},
		{"missing name", func(c *SAMLProviderConfig) { c.Name = "" }, "name is required"},
		{"missing sso url", func(c *SAMLProviderConfig) { c.SSOURL = "" }, "sso_url is required"},
		{"missing entity id", func(c *SAMLProviderConfig) { c.EntityID = "" }, "entity_id is required"},
		{"missing certificate", func(c *SAMLProviderConfig) { c.Certificate = "" }, "certificate is required"},
		{"not PEM", func(c *SAMLProviderConfig) { c.Certificate = "not a certificate" }, "invalid certificate PEM"},
		{
			"PEM but not a certificate",
			func(c *SAMLProviderConfig) {
				c.Certificate = "-----BEGIN CERTIFICATE-----\nZ29vZA==\n-----END CERTIFICATE-----\n"
			},
			"invalid certificate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validSAMLConfig(t)
			tt.mutate(&config)
			err := config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestNewSAMLAdapter(t *testing.T) {
	config := validSAMLConfig(t)

	adapter, err := NewSAMLAdapter(&config, "https://media.example.com", testLogger())
	require.NoError(t, err)
	assert.Equal(t, "partner", adapter.Name())
	assert.Equal(t, ProtocolSAML, adapter.Protocol())
}

func TestSAMLAdapter_Challenge(t *testing.T) {
	config := validSAMLConfig(t)
	adapter, err := NewSAMLAdapter(&config, "https://media.example.com", testLogger())
	require.NoError(t, err)

	redirect, err := adapter.Challenge(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(redirect, config.SSOURL), redirect)
	assert.Contains(t, redirect, "SAMLRequest=")
}

// stubAssertion replaces the adapter's verifier with one returning a fixed
// assertion for the given subject and role values.
func stubAssertion(t *testing.T, adapter *SAMLAdapter, subject, roleAttribute string, roles ...string) {
	t.Helper()

	values := make([]samltypes.AttributeValue, 0, len(roles))
	for _, r := range roles {
		values = append(values, samltypes.AttributeValue{Value: r})
	}
	info := &saml2.AssertionInfo{
		NameID: subject,
		Values: saml2.Values{
			roleAttribute: samltypes.Attribute{Name: roleAttribute, Values: values},
		},
	}
	adapter.retrieve = func(string) (*saml2.AssertionInfo, error) {
		return info, nil
	}
}

func TestSAMLAdapter_CallbackValid(t *testing.T) {
	config := validSAMLConfig(t)
	config.Policy = RolePolicy{
		AllowedRoles: []string{"media-users"},
		AdminRoles:   []string{"media-admins"},
	}
	adapter, err := NewSAMLAdapter(&config, "https://media.example.com", testLogger())
	require.NoError(t, err)
	stubAssertion(t, adapter, "bob", "memberOf", "media-users", "media-admins")

	decision, err := adapter.Callback(context.Background(), "payload")
	require.NoError(t, err)
	assert.True(t, decision.Valid)
	assert.Equal(t, "bob", decision.Username)
	assert.True(t, decision.IsAdmin)
}

func TestSAMLAdapter_CallbackRoleMismatch(t *testing.T) {
	config := validSAMLConfig(t)
	config.Policy = RolePolicy{AllowedRoles: []string{"media-users"}}
	adapter, err := NewSAMLAdapter(&config, "https://media.example.com", testLogger())
	require.NoError(t, err)
	stubAssertion(t, adapter, "bob", "memberOf", "interlopers")

	// The mismatch aborts before any decision is produced.
	decision, err := adapter.Callback(context.Background(), "payload")
	require.ErrorIs(t, err, ErrRoleMismatch)
	assert.False(t, decision.Valid)
	assert.Empty(t, decision.Username)
}

func TestSAMLAdapter_CallbackIgnoresOtherAttributes(t *testing.T) {
	config := validSAMLConfig(t)
	config.Policy = RolePolicy{AllowedRoles: []string{"media-users"}}
	adapter, err := NewSAMLAdapter(&config, "https://media.example.com", testLogger())
	require.NoError(t, err)

	// The matching role sits under a different attribute name.
	stubAssertion(t, adapter, "bob", "department", "media-users")

	_, err = adapter.Callback(context.Background(), "payload")
	require.ErrorIs(t, err, ErrRoleMismatch)
}

func TestSAMLAdapter_CallbackInvalidTimeWindow(t *testing.T) {
	config := validSAMLConfig(t)
	adapter, err := NewSAMLAdapter(&config, "https://media.example.com", testLogger())
	require.NoError(t, err)
	adapter.retrieve = func(string) (*saml2.AssertionInfo, error) {
		return &saml2.AssertionInfo{
			NameID:      "bob",
			WarningInfo: &saml2.WarningInfo{InvalidTime: true},
		}, nil
	}

	_, err = adapter.Callback(context.Background(), "payload")
	require.Error(t, err)
	assert.True(t, IsProtocolError(err))
}

func TestSAMLAdapter_CallbackEmptyPayload(t *testing.T) {
	config := validSAMLConfig(t)
	adapter, err := NewSAMLAdapter(&config, "https://media.example.com", testLogger())
	require.NoError(t, err)

	_, err = adapter.Callback(context.Background(), "")
	require.Error(t, err)
	assert.True(t, IsProtocolError(err))
}

func TestSAMLAdapter_CallbackGarbagePayload(t *testing.T) {
	config := validSAMLConfig(t)
	adapter, err := NewSAMLAdapter(&config, "https://media.example.com", testLogger())
	require.NoError(t, err)

	_, err = adapter.Callback(context.Background(), "not-base64-xml!!")
	require.Error(t, err)
	assert.True(t, IsProtocolError(err))
}
