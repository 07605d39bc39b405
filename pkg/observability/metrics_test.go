package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	if metrics == nil {
		t.Fatal("NewMetrics returned nil")
	}
	if metrics.ChallengesTotal == nil {
		t.Error("ChallengesTotal is nil")
	}
	if metrics.CallbacksTotal == nil {
		t.Error("CallbacksTotal is nil")
	}
	if metrics.CallbackDuration == nil {
		t.Error("CallbackDuration is nil")
	}
	if metrics.SessionsIssued == nil {
		t.Error("SessionsIssued is nil")
	}
	if metrics.PendingLogins == nil {
		t.Error("PendingLogins is nil")
	}
	if metrics.SweptStatesTotal == nil {
		t.Error("SweptStatesTotal is nil")
	}
	if metrics.HTTPRequestsTotal == nil {
		t.Error("HTTPRequestsTotal is nil")
	}
}

func TestMetrics_Counters(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.ChallengesTotal.WithLabelValues("oidc", "corp").Inc()
	metrics.ChallengesTotal.WithLabelValues("oidc", "corp").Inc()
	metrics.CallbacksTotal.WithLabelValues("oidc", "corp", OutcomeValid).Inc()
	metrics.SweptStatesTotal.Add(3)
	metrics.PendingLogins.Set(5)

	if got := testutil.ToFloat64(metrics.ChallengesTotal.WithLabelValues("oidc", "corp")); got != 2 {
		t.Errorf("Expected 2 challenges, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.CallbacksTotal.WithLabelValues("oidc", "corp", OutcomeValid)); got != 1 {
		t.Errorf("Expected 1 callback, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.SweptStatesTotal); got != 3 {
		t.Errorf("Expected 3 swept states, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.PendingLogins); got != 5 {
		t.Errorf("Expected 5 pending logins, got %v", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	metrics.ChallengesTotal.WithLabelValues("saml", "partner").Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("Failed to read body: %v", err)
	}
	if !strings.Contains(string(body), "ssobridge_challenges_total") {
		t.Error("Expected exposition to contain ssobridge_challenges_total")
	}
}
