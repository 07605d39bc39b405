package sso

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// Storage persists provider configurations. Pending logins never touch the
// database; only the per-provider configuration is durable.
type Storage struct {
	db *sql.DB
}

// NewStorage creates a provider-config store backed by db.
func NewStorage(db *sql.DB) *Storage {
	return &Storage{db: db}
}

// SaveOIDCProvider inserts or replaces an OIDC provider configuration.
func (s *Storage) SaveOIDCProvider(config *OIDCProviderConfig) error {
	policyJSON, err := json.Marshal(config.Policy)
	if err != nil {
		return fmt.Errorf("failed to marshal policy: %w", err)
	}
	scopesJSON, err := json.Marshal(config.Scopes)
	if err != nil {
		return fmt.Errorf("failed to marshal scopes: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO oidc_providers (
			name, enabled, issuer_url, client_id, client_secret, scopes,
			role_claim_path, username_claim, enable_authorization,
			default_provider, policy, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		ON CONFLICT (name) DO UPDATE SET
			enabled = $2, issuer_url = $3, client_id = $4, client_secret = $5,
			scopes = $6, role_claim_path = $7, username_claim = $8,
			enable_authorization = $9, default_provider = $10, policy = $11,
			updated_at = NOW()
	`, config.Name, config.Enabled, config.IssuerURL, config.ClientID,
		config.ClientSecret, scopesJSON, config.RoleClaimPath,
		config.UsernameClaim, config.EnableAuthorization,
		config.DefaultProvider, policyJSON)
	return err
}

// GetOIDCProvider retrieves an OIDC provider by name. Returns
// ErrUnknownProvider when no such provider exists.
func (s *Storage) GetOIDCProvider(name string) (*OIDCProviderConfig, error) {
	var (
		config     OIDCProviderConfig
		scopesJSON []byte
		policyJSON []byte
	)
	err := s.db.QueryRow(`
		SELECT name, enabled, issuer_url, client_id, client_secret, scopes,
		       role_claim_path, username_claim, enable_authorization,
		       default_provider, policy, created_at, updated_at
		FROM oidc_providers WHERE name = $1
	`, name).Scan(&config.Name, &config.Enabled, &config.IssuerURL,
		&config.ClientID, &config.ClientSecret, &scopesJSON,
		&config.RoleClaimPath, &config.UsernameClaim,
		&config.EnableAuthorization, &config.DefaultProvider, &policyJSON,
		&config.CreatedAt, &config.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(scopesJSON, &config.Scopes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scopes: %w", err)
	}
	if err := json.Unmarshal(policyJSON, &config.Policy); err != nil {
		return nil, fmt.Errorf("failed to unmarshal policy: %w", err)
	}
	return &config, nil
}

// ListOIDCProviders lists all OIDC provider configurations, ordered by name.
func (s *Storage) ListOIDCProviders() ([]*OIDCProviderConfig, error) {
	rows, err := s.db.Query(`
		SELECT name, enabled, issuer_url, client_id, client_secret, scopes,
		       role_claim_path, username_claim, enable_authorization,
		       default_provider, policy, created_at, updated_at
		FROM oidc_providers ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*OIDCProviderConfig
	for rows.Next() {
		var (
			config     OIDCProviderConfig
			scopesJSON []byte
			policyJSON []byte
		)
		if err := rows.Scan(&config.Name, &config.Enabled, &config.IssuerURL,
			&config.ClientID, &config.ClientSecret, &scopesJSON,
			&config.RoleClaimPath, &config.UsernameClaim,
			&config.EnableAuthorization, &config.DefaultProvider, &policyJSON,
			&config.CreatedAt, &config.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(scopesJSON, &config.Scopes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal scopes: %w", err)
		}
		if err := json.Unmarshal(policyJSON, &config.Policy); err != nil {
			return nil, fmt.Errorf("failed to unmarshal policy: %w", err)
		}
		configs = append(configs, &config)
	}
	return configs, rows.Err()
}

// DeleteOIDCProvider removes an OIDC provider configuration.
func (s *Storage) DeleteOIDCProvider(name string) error {
	_, err := s.db.Exec(`DELETE FROM oidc_providers WHERE name = $1`, name)
	return err
}

// SaveSAMLProvider inserts or replaces a SAML provider configuration.
func (s *Storage) SaveSAMLProvider(config *SAMLProviderConfig) error {
	policyJSON, err := json.Marshal(config.Policy)
	if err != nil {
		return fmt.Errorf("failed to marshal policy: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO saml_providers (
			name, enabled, sso_url, entity_id, certificate, role_attribute,
			enable_authorization, default_provider, policy, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT (name) DO UPDATE SET
			enabled = $2, sso_url = $3, entity_id = $4, certificate = $5,
			role_attribute = $6, enable_authorization = $7,
			default_provider = $8, policy = $9, updated_at = NOW()
	`, config.Name, config.Enabled, config.SSOURL, config.EntityID,
		config.Certificate, config.RoleAttribute, config.EnableAuthorization,
		config.DefaultProvider, policyJSON)
	return err
}

// GetSAMLProvider retrieves a SAML provider by name. Returns
// ErrUnknownProvider when no such provider exists.
func (s *Storage) GetSAMLProvider(name string) (*SAMLProviderConfig, error) {
	var (
		config     SAMLProviderConfig
		policyJSON []byte
	)
	err := s.db.QueryRow(`
		SELECT name, enabled, sso_url, entity_id, certificate, role_attribute,
		       enable_authorization, default_provider, policy, created_at, updated_at
		FROM saml_providers WHERE name = $1
	`, name).Scan(&config.Name, &config.Enabled, &config.SSOURL,
		&config.EntityID, &config.Certificate, &config.RoleAttribute,
		&config.EnableAuthorization, &config.DefaultProvider, &policyJSON,
		&config.CreatedAt, &config.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(policyJSON, &config.Policy); err != nil {
		return nil, fmt.Errorf("failed to unmarshal policy: %w", err)
	}
	return &config, nil
}

// ListSAMLProviders lists all SAML provider configurations, ordered by name.
func (s *Storage) ListSAMLProviders() ([]*SAMLProviderConfig, error) {
	rows, err := s.db.Query(`
		SELECT name, enabled, sso_url, entity_id, certificate, role_attribute,
		       enable_authorization, default_provider, policy, created_at, updated_at
		FROM saml_providers ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*SAMLProviderConfig
	for rows.Next() {
		var (
			config     SAMLProviderConfig
			policyJSON []byte
		)
		if err := rows.Scan(&config.Name, &config.Enabled, &config.SSOURL,
			&config.EntityID, &config.Certificate, &config.RoleAttribute,
			&config.EnableAuthorization, &config.DefaultProvider, &policyJSON,
			&config.CreatedAt, &config.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(policyJSON, &config.Policy); err != nil {
			return nil, fmt.Errorf("failed to unmarshal policy: %w", err)
		}
		configs = append(configs, &config)
	}
	return configs, rows.Err()
}

// DeleteSAMLProvider removes a SAML provider configuration.
func (s *Storage) DeleteSAMLProvider(name string) error {
	_, err := s.db.Exec(`DELETE FROM saml_providers WHERE name = $1`, name)
	return err
}
