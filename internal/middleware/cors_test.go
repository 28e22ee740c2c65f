package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func corsRequest(t *testing.T, allowed []string, method, origin string) *httptest.ResponseRecorder {
	t.Helper()
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = allowed
	h := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(method, "/api/v1/items", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCORS(t *testing.T) {
	const shop = "https://shop.stacklane.dev"

	tests := []struct {
		name       string
		allowed    []string
		method     string
		origin     string
		wantStatus int
		wantOrigin string
	}{
		{"nothing configured", nil, http.MethodGet, shop, http.StatusOK, ""},
		{"exact match", []string{shop}, http.MethodGet, shop, http.StatusOK, shop},
		{"configured origin is case folded", []string{"HTTPS://SHOP.STACKLANE.DEV"}, http.MethodGet, shop, http.StatusOK, shop},
		{"preflight allowed", []string{shop}, http.MethodOptions, shop, http.StatusNoContent, shop},
		{"preflight from stranger", []string{shop}, http.MethodOptions, "https://attacker.test", http.StatusForbidden, ""},
		{"wildcard label", []string{"*.stacklane.dev"}, http.MethodPatch, shop, http.StatusOK, shop},
		{"wildcard skips apex", []string{"*.stacklane.dev"}, http.MethodGet, "https://stacklane.dev", http.StatusOK, ""},
		{"wildcard skips lookalike", []string{"*.stacklane.dev"}, http.MethodOptions, "https://evilstacklane.dev", http.StatusForbidden, ""},
		{"same origin request", []string{shop}, http.MethodGet, "", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := corsRequest(t, tt.allowed, tt.method, tt.origin)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORS_PreflightAdvertisesPolicy(t *testing.T) {
	rec := corsRequest(t, []string{"https://shop.stacklane.dev"}, http.MethodOptions, "https://shop.stacklane.dev")

	h := rec.Header()
	assert.Contains(t, h.Get("Access-Control-Allow-Methods"), http.MethodPatch)
	assert.Contains(t, h.Get("Access-Control-Allow-Headers"), "X-API-Key")
	assert.Contains(t, h.Get("Access-Control-Expose-Headers"), RequestIDHeader)
	assert.Equal(t, "86400", h.Get("Access-Control-Max-Age"))
	assert.Equal(t, "Origin", h.Get("Vary"))
}
