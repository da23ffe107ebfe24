package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"medialib/handlers"
	"medialib/services/nmj"
	"medialib/services/providers"
)

type stubNotifier struct{}

func (stubNotifier) ProbeSettings(context.Context, string) (nmj.DeviceSettings, bool) {
	return nmj.DeviceSettings{}, false
}

func (stubNotifier) TestNotify(context.Context, string, string, string) bool { return false }

func TestRoutes(t *testing.T) {
	router := NewRouter(
		handlers.NewNMJHandler(stubNotifier{}),
		handlers.NewProvidersHandler(providers.NewRegistry(nil), nil),
	)

	cases := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/api/health", http.StatusOK},
		{http.MethodGet, "/api/providers", http.StatusOK},
		{http.MethodPost, "/api/notifiers/nmj/settings", http.StatusBadRequest},
		{http.MethodPost, "/api/notifiers/nmj/settings?host=pch", http.StatusBadGateway},
		{http.MethodOptions, "/api/notifiers/nmj/test", http.StatusOK},
		{http.MethodGet, "/api/providers/nyaa/search?q=x", http.StatusNotFound},
		{http.MethodGet, "/api/notifiers/nmj/settings", http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		if rec.Code != tc.status {
			t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.path, tc.status, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected CORS header, got %q", got)
	}
}
