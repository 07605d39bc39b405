package sso

import "time"

// Protocol identifies which federated-login protocol a provider speaks.
type Protocol string

const (
	ProtocolOIDC Protocol = "oidc"
	ProtocolSAML Protocol = "saml"
)

// OIDCProviderConfig configures a single authorization-code-flow provider.
// Owned by the admin API and the config store; read-only to the adapters.
type OIDCProviderConfig struct {
	Name                string     `json:"name"`
	Enabled             bool       `json:"enabled"`
	IssuerURL           string     `json:"issuer_url"`
	ClientID            string     `json:"client_id"`
	ClientSecret        string     `json:"client_secret,omitempty"` // Blanked before any response is written
	Scopes              []string   `json:"scopes"`
	RoleClaimPath       string     `json:"role_claim_path"` // Dotted, \. escapes a literal dot
	UsernameClaim       string     `json:"username_claim"`  // Defaults to "preferred_username"
	Policy              RolePolicy `json:"policy"`
	EnableAuthorization bool       `json:"enable_authorization"`
	DefaultProvider     string     `json:"default_provider,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// SAMLProviderConfig configures a single assertion-flow provider. Roles come
// from a flat multi-valued attribute, so there is no claim path to descend.
type SAMLProviderConfig struct {
	Name                string     `json:"name"`
	Enabled             bool       `json:"enabled"`
	SSOURL              string     `json:"sso_url"`
	EntityID            string     `json:"entity_id"`
	Certificate         string     `json:"certificate"` // PEM encoded IdP certificate
	RoleAttribute       string     `json:"role_attribute"`
	Policy              RolePolicy `json:"policy"`
	EnableAuthorization bool       `json:"enable_authorization"`
	DefaultProvider     string     `json:"default_provider,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Claim is a single typed attribute asserted by the IdP about the
// authenticated identity. Value holds either a plain string or a JSON
// document, depending on what the provider returned.
type Claim struct {
	Type  string
	Value string
}

// IdentityDecision is the local authorization outcome for one callback.
// Produced once per callback and consumed exactly once by the Bridge.
type IdentityDecision struct {
	Valid    bool     `json:"valid"`
	Username string   `json:"username"`
	IsAdmin  bool     `json:"is_admin"`
	Folders  []string `json:"folders,omitempty"`
}

// PendingLogin is an in-flight login attempt keyed by its state token.
// Created at challenge time, mutated once during callback evaluation, read by
// the completion call, and reclaimed by TTL sweep or explicit removal.
type PendingLogin struct {
	StateToken    string    `json:"state_token"`
	ProtocolState string    `json:"-"` // Opaque, owned by the adapter
	CreatedAt     time.Time `json:"created_at"`
	Valid         bool      `json:"valid"`
	Username      string    `json:"username,omitempty"`
	IsAdmin       bool      `json:"is_admin"`
	Folders       []string  `json:"folders,omitempty"`
}

// DeviceInfo describes the client device requesting a session.
type DeviceInfo struct {
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`
	AppName    string `json:"appName"`
	AppVersion string `json:"appVersion"`
}

// AuthRequest is the body of the client completion call. Data carries the
// state token for the code flow and the encoded assertion for the
// assertion flow.
type AuthRequest struct {
	DeviceInfo
	Data string `json:"data"`
}

// User is the local account a decision resolves to. The backing store is the
// external user authority; this package only sees the projection it needs.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

// SessionToken is the opaque session result issued by the session authority.
type SessionToken struct {
	AccessToken string    `json:"accessToken"`
	UserID      string    `json:"userId"`
	Username    string    `json:"username"`
	DeviceID    string    `json:"deviceId"`
	ExpiresAt   time.Time `json:"expiresAt"`
}
