package sso

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
)

const (
	adapterCacheSize = 64
	adapterCacheTTL  = 10 * time.Minute
)

// Factory builds protocol adapters from stored provider configurations.
// Constructed adapters are cached with a TTL: OIDC construction performs
// discovery against the issuer, and re-running it on every challenge would
// put a network round trip on the hot path. Admin mutations invalidate the
// cached entry.
type Factory struct {
	storage *Storage
	states  *StateStore
	baseURL string
	log     *logrus.Logger

	oidcCache *lru.LRU[string, *OIDCAdapter]
	samlCache *lru.LRU[string, *SAMLAdapter]
}

// NewFactory creates an adapter factory.
func NewFactory(storage *Storage, states *StateStore, baseURL string, log *logrus.Logger) *Factory {
	return &Factory{
		storage:   storage,
		states:    states,
		baseURL:   baseURL,
		log:       log,
		oidcCache: lru.NewLRU[string, *OIDCAdapter](adapterCacheSize, nil, adapterCacheTTL),
		samlCache: lru.NewLRU[string, *SAMLAdapter](adapterCacheSize, nil, adapterCacheTTL),
	}
}

// OIDC returns the adapter for the named OIDC provider, constructing and
// caching it if needed. Returns ErrUnknownProvider or ErrProviderDisabled
// for absent or disabled providers.
func (f *Factory) OIDC(ctx context.Context, name string) (*OIDCAdapter, error) {
	if adapter, ok := f.oidcCache.Get(name); ok {
		return adapter, nil
	}

	config, err := f.storage.GetOIDCProvider(name)
	if err != nil {
		return nil, err
	}
	if !config.Enabled {
		return nil, ErrProviderDisabled
	}

	adapter, err := NewOIDCAdapter(ctx, config, f.baseURL, f.states, f.log)
	if err != nil {
		return nil, err
	}
	f.oidcCache.Add(name, adapter)
	return adapter, nil
}

// SAML returns the adapter for the named SAML provider, constructing and
// caching it if needed.
func (f *Factory) SAML(ctx context.Context, name string) (*SAMLAdapter, error) {
	if adapter, ok := f.samlCache.Get(name); ok {
		return adapter, nil
	}

	config, err := f.storage.GetSAMLProvider(name)
	if err != nil {
		return nil, err
	}
	if !config.Enabled {
		return nil, ErrProviderDisabled
	}

	adapter, err := NewSAMLAdapter(config, f.baseURL, f.log)
	if err != nil {
		return nil, err
	}
	f.samlCache.Add(name, adapter)
	return adapter, nil
}

// Invalidate drops any cached adapter for the named provider. Called after
// admin mutations so the next login observes the new configuration.
func (f *Factory) Invalidate(name string) {
	f.oidcCache.Remove(name)
	f.samlCache.Remove(name)
}
