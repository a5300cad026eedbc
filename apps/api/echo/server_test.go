package echoapi

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestServer_home(t *testing.T) {
	s, _ := setup(t)

	req, rec := newRequest(http.MethodGet, "/")
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bienvenue sur l'API Invasion Latina!", rec.Body.String())
}

func TestServer_health(t *testing.T) {
	s, _ := setup(t)
	httpTest{path: "/api/health", wantData: []byte(`{"status":"ok","build":"test"}`)}.run(t, s)

	s.deps.HealthCheck = func(context.Context) error { return errors.New("connection refused") }
	httpTest{
		path:     "/api/health",
		wantCode: http.StatusServiceUnavailable,
		wantData: []byte(`{"status":"unavailable"}`),
	}.run(t, s)
}

func TestServer_errors(t *testing.T) {
	s, _ := setup(t)

	tests := []httpTest{
		{name: "unknown route", path: "/api/nope", wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "Not Found"})},
		{name: "missing token", path: "/api/users/me", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "invalid token", path: "/api/users/me", token: "not.a.jwt", wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "invalid or expired jwt"}),
		},
		{name: "trailing slash", path: "/api/health/", wantData: []byte(`{"status":"ok","build":"test"}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.run(t, s)
		})
	}
}

func TestServer_metrics(t *testing.T) {
	s, _ := setup(t)
	httpTest{path: "/api/health"}.run(t, s)
	httpTest{path: "/api/nope", wantCode: http.StatusNotFound}.run(t, s)

	req, rec := newRequest(http.MethodGet, "/metrics")
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body,
		`invasionlatina_http_requests_total{method="GET",path="/api/health",status="200"} 1`), body)
	assert.Contains(t, body, `status="404"`)
	assert.Contains(t, body, "invasionlatina_http_request_duration_seconds_bucket")
}

func TestServer_SignalShutdown(t *testing.T) {
	s, _ := setup(t)

	s.SignalShutdown()
	s.SignalShutdown() // never blocks
	select {
	case <-s.ShutdownSignal():
	default:
		t.Fatal("no shutdown signal")
	}
}
