package sso

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/mediaserve/ssobridge/pkg/observability"
)

// completionPage hands the login result back to the client application. The
// embedded data value is the state token for the code flow and the encoded
// assertion for the assertion flow; the client presents it to the auth
// endpoint to obtain a session.
var completionPage = template.Must(template.New("completion").Parse(`<!DOCTYPE html>
<html>
<head><title>Login complete</title></head>
<body>
<p>Authentication succeeded. You may close this window.</p>
<input type="hidden" id="sso-data" value="{{.Data}}">
<input type="hidden" id="sso-provider" value="{{.Provider}}">
</body>
</html>
`))

// Handlers serves the per-protocol login surface and the admin surface.
type Handlers struct {
	storage *Storage
	factory *Factory
	states  *StateStore
	bridge  *Bridge
	metrics *observability.Metrics
	log     *logrus.Logger
}

// NewHandlers creates the HTTP handlers for the login bridge.
func NewHandlers(storage *Storage, factory *Factory, states *StateStore, bridge *Bridge, metrics *observability.Metrics, log *logrus.Logger) *Handlers {
	return &Handlers{
		storage: storage,
		factory: factory,
		states:  states,
		bridge:  bridge,
		metrics: metrics,
		log:     log,
	}
}

// RegisterRoutes registers all routes. The admin middleware guards the
// provider-configuration and diagnostic endpoints.
func (h *Handlers) RegisterRoutes(router *mux.Router, admin mux.MiddlewareFunc) {
	router.HandleFunc("/sso/oidc/challenge/{provider}", h.oidcChallenge).Methods("GET")
	router.HandleFunc("/sso/oidc/callback/{provider}", h.oidcCallback).Methods("GET")
	router.HandleFunc("/sso/oidc/auth/{provider}", h.oidcAuth).Methods("POST")

	router.HandleFunc("/sso/saml/challenge/{provider}", h.samlChallenge).Methods("GET")
	router.HandleFunc("/sso/saml/callback/{provider}", h.samlCallback).Methods("POST")
	router.HandleFunc("/sso/saml/auth/{provider}", h.samlAuth).Methods("POST")

	adminRouter := router.PathPrefix("/sso/admin").Subrouter()
	adminRouter.Use(admin)
	adminRouter.HandleFunc("/oidc/states", h.listStates).Methods("GET")
	adminRouter.HandleFunc("/oidc", h.listOIDCProviders).Methods("GET")
	adminRouter.HandleFunc("/oidc", h.saveOIDCProvider).Methods("POST")
	adminRouter.HandleFunc("/oidc/{name}", h.getOIDCProvider).Methods("GET")
	adminRouter.HandleFunc("/oidc/{name}", h.deleteOIDCProvider).Methods("DELETE")
	adminRouter.HandleFunc("/saml", h.listSAMLProviders).Methods("GET")
	adminRouter.HandleFunc("/saml", h.saveSAMLProvider).Methods("POST")
	adminRouter.HandleFunc("/saml/{name}", h.getSAMLProvider).Methods("GET")
	adminRouter.HandleFunc("/saml/{name}", h.deleteSAMLProvider).Methods("DELETE")
}

// oidcChallenge handles GET /sso/oidc/challenge/{provider}.
func (h *Handlers) oidcChallenge(w http.ResponseWriter, r *http.Request) {
	providerName := mux.Vars(r)["provider"]

	adapter, err := h.factory.OIDC(r.Context(), providerName)
	if err != nil {
		h.providerError(w, err)
		return
	}

	redirectURL, err := adapter.Challenge(r.Context())
	if err != nil {
		http.Error(w, "failed to initiate login", http.StatusInternalServerError)
		return
	}

	h.metrics.ChallengesTotal.WithLabelValues(string(ProtocolOIDC), providerName).Inc()
	h.metrics.PendingLogins.Set(float64(h.states.Len()))
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// oidcCallback handles GET /sso/oidc/callback/{provider}.
func (h *Handlers) oidcCallback(w http.ResponseWriter, r *http.Request) {
	providerName := mux.Vars(r)["provider"]
	started := time.Now()

	adapter, err := h.factory.OIDC(r.Context(), providerName)
	if err != nil {
		h.providerError(w, err)
		return
	}

	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		http.Error(w, "missing state or code parameter", http.StatusBadRequest)
		return
	}

	decision, err := adapter.Callback(r.Context(), state, code)
	h.metrics.CallbackDuration.WithLabelValues(string(ProtocolOIDC)).Observe(time.Since(started).Seconds())

	switch {
	case errors.Is(err, ErrNoMatchingState):
		h.metrics.CallbacksTotal.WithLabelValues(string(ProtocolOIDC), providerName, observability.OutcomeNoState).Inc()
		http.Error(w, "login failed", http.StatusBadRequest)
		return
	case IsProtocolError(err):
		h.metrics.CallbacksTotal.WithLabelValues(string(ProtocolOIDC), providerName, observability.OutcomeProtocol).Inc()
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	case !decision.Valid:
		h.metrics.CallbacksTotal.WithLabelValues(string(ProtocolOIDC), providerName, observability.OutcomeMismatch).Inc()
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	h.metrics.CallbacksTotal.WithLabelValues(string(ProtocolOIDC), providerName, observability.OutcomeValid).Inc()
	h.renderCompletion(w, providerName, state)
}

// oidcAuth handles POST /sso/oidc/auth/{provider}: the client completion
// call, keyed by the state token.
func (h *Handlers) oidcAuth(w http.ResponseWriter, r *http.Request) {
	providerName := mux.Vars(r)["provider"]

	var req AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	config, err := h.storage.GetOIDCProvider(providerName)
	if err != nil {
		h.providerError(w, err)
		return
	}
	if !config.Enabled {
		h.providerError(w, ErrProviderDisabled)
		return
	}

	// Expiry, replay, and forgery are indistinguishable here by design. The
	// record is consumed atomically, so concurrent calls presenting the same
	// token cannot both mint a session. A completion failure below does not
	// restore it; the client restarts the login.
	rec, err := h.states.Consume(req.Data)
	if err != nil || !rec.Valid {
		http.Error(w, "authentication failed", http.StatusUnauthorized)
		return
	}

	decision := IdentityDecision{
		Valid:    rec.Valid,
		Username: rec.Username,
		IsAdmin:  rec.IsAdmin,
		Folders:  rec.Folders,
	}
	session, err := h.bridge.Complete(r.Context(), providerName, decision, req.DeviceInfo, CompleteOptions{
		EnableAuthorization: config.EnableAuthorization,
		EnableAllFolders:    config.Policy.EnableAllFolders,
		DefaultProvider:     config.DefaultProvider,
	})
	if err != nil {
		h.log.WithError(err).WithField("provider", providerName).Error("completion failed")
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	h.metrics.SessionsIssued.WithLabelValues(string(ProtocolOIDC), providerName).Inc()
	h.metrics.PendingLogins.Set(float64(h.states.Len()))
	writeJSON(w, http.StatusOK, session)
}

// samlChallenge handles GET /sso/saml/challenge/{provider}.
func (h *Handlers) samlChallenge(w http.ResponseWriter, r *http.Request) {
	providerName := mux.Vars(r)["provider"]

	adapter, err := h.factory.SAML(r.Context(), providerName)
	if err != nil {
		h.providerError(w, err)
		return
	}

	redirectURL, err := adapter.Challenge(r.Context())
	if err != nil {
		http.Error(w, "failed to initiate login", http.StatusInternalServerError)
		return
	}

	h.metrics.ChallengesTotal.WithLabelValues(string(ProtocolSAML), providerName).Inc()
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// samlCallback handles POST /sso/saml/callback/{provider} with the
// form-encoded assertion payload.
func (h *Handlers) samlCallback(w http.ResponseWriter, r *http.Request) {
	providerName := mux.Vars(r)["provider"]
	started := time.Now()

	adapter, err := h.factory.SAML(r.Context(), providerName)
	if err != nil {
		h.providerError(w, err)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "failed to parse form", http.StatusBadRequest)
		return
	}
	samlResponse := r.FormValue("SAMLResponse")

	decision, err := adapter.Callback(r.Context(), samlResponse)
	h.metrics.CallbackDuration.WithLabelValues(string(ProtocolSAML)).Observe(time.Since(started).Seconds())

	switch {
	case errors.Is(err, ErrRoleMismatch):
		h.metrics.CallbacksTotal.WithLabelValues(string(ProtocolSAML), providerName, observability.OutcomeMismatch).Inc()
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	case err != nil:
		h.metrics.CallbacksTotal.WithLabelValues(string(ProtocolSAML), providerName, observability.OutcomeProtocol).Inc()
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case !decision.Valid:
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	h.metrics.CallbacksTotal.WithLabelValues(string(ProtocolSAML), providerName, observability.OutcomeValid).Inc()
	h.renderCompletion(w, providerName, samlResponse)
}

// samlAuth handles POST /sso/saml/auth/{provider}. The assertion rides in
// the request body and is verified again before a session is issued.
func (h *Handlers) samlAuth(w http.ResponseWriter, r *http.Request) {
	providerName := mux.Vars(r)["provider"]

	var req AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	config, err := h.storage.GetSAMLProvider(providerName)
	if err != nil {
		h.providerError(w, err)
		return
	}
	if !config.Enabled {
		h.providerError(w, ErrProviderDisabled)
		return
	}

	adapter, err := h.factory.SAML(r.Context(), providerName)
	if err != nil {
		h.providerError(w, err)
		return
	}

	decision, err := adapter.Callback(r.Context(), req.Data)
	if err != nil || !decision.Valid {
		http.Error(w, "authentication failed", http.StatusUnauthorized)
		return
	}

	session, err := h.bridge.Complete(r.Context(), providerName, decision, req.DeviceInfo, CompleteOptions{
		EnableAuthorization: config.EnableAuthorization,
		EnableAllFolders:    config.Policy.EnableAllFolders,
		DefaultProvider:     config.DefaultProvider,
	})
	if err != nil {
		h.log.WithError(err).WithField("provider", providerName).Error("completion failed")
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	h.metrics.SessionsIssued.WithLabelValues(string(ProtocolSAML), providerName).Inc()
	writeJSON(w, http.StatusOK, session)
}

// saveOIDCProvider handles POST /sso/admin/oidc.
func (h *Handlers) saveOIDCProvider(w http.ResponseWriter, r *http.Request) {
	var config OIDCProviderConfig
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if err := config.Validate(); err != nil {
		http.Error(w, fmt.Sprintf("invalid provider config: %v", err), http.StatusBadRequest)
		return
	}
	if err := h.storage.SaveOIDCProvider(&config); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.factory.Invalidate(config.Name)

	config.ClientSecret = ""
	writeJSON(w, http.StatusCreated, &config)
}

// listOIDCProviders handles GET /sso/admin/oidc.
func (h *Handlers) listOIDCProviders(w http.ResponseWriter, r *http.Request) {
	configs, err := h.storage.ListOIDCProviders()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	for _, c := range configs {
		c.ClientSecret = ""
	}
	writeJSON(w, http.StatusOK, configs)
}

// getOIDCProvider handles GET /sso/admin/oidc/{name}.
func (h *Handlers) getOIDCProvider(w http.ResponseWriter, r *http.Request) {
	config, err := h.storage.GetOIDCProvider(mux.Vars(r)["name"])
	if errors.Is(err, ErrUnknownProvider) {
		http.Error(w, "provider not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	config.ClientSecret = ""
	writeJSON(w, http.StatusOK, config)
}

// deleteOIDCProvider handles DELETE /sso/admin/oidc/{name}.
func (h *Handlers) deleteOIDCProvider(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := h.storage.DeleteOIDCProvider(name); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.factory.Invalidate(name)
	w.WriteHeader(http.StatusNoContent)
}

// saveSAMLProvider handles POST /sso/admin/saml.
func (h *Handlers) saveSAMLProvider(w http.ResponseWriter, r *http.Request) {
	var config SAMLProviderConfig
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if err := config.Validate(); err != nil {
		http.Error(w, fmt.Sprintf("invalid provider config: %v", err), http.StatusBadRequest)
		return
	}
	if err := h.storage.SaveSAMLProvider(&config); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.factory.Invalidate(config.Name)
	writeJSON(w, http.StatusCreated, &config)
}

// listSAMLProviders handles GET /sso/admin/saml.
func (h *Handlers) listSAMLProviders(w http.ResponseWriter, r *http.Request) {
	configs, err := h.storage.ListSAMLProviders()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, configs)
}

// getSAMLProvider handles GET /sso/admin/saml/{name}.
func (h *Handlers) getSAMLProvider(w http.ResponseWriter, r *http.Request) {
	config, err := h.storage.GetSAMLProvider(mux.Vars(r)["name"])
	if errors.Is(err, ErrUnknownProvider) {
		http.Error(w, "provider not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, config)
}

// deleteSAMLProvider handles DELETE /sso/admin/saml/{name}.
func (h *Handlers) deleteSAMLProvider(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := h.storage.DeleteSAMLProvider(name); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.factory.Invalidate(name)
	w.WriteHeader(http.StatusNoContent)
}

// listStates handles GET /sso/admin/oidc/states: a diagnostic listing of
// in-flight login attempts.
func (h *Handlers) listStates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.states.List())
}

// providerError maps provider lookup failures onto the HTTP boundary.
func (h *Handlers) providerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnknownProvider), errors.Is(err, ErrProviderDisabled):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "provider unavailable", http.StatusInternalServerError)
	}
}

func (h *Handlers) renderCompletion(w http.ResponseWriter, provider, data string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := completionPage.Execute(w, struct {
		Provider string
		Data     string
	}{Provider: provider, Data: data})
	if err != nil {
		h.log.WithError(err).Error("failed to render completion page")
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
