package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func authedHandler(t *testing.T) http.Handler {
	t.Helper()
	return APIKeyAuth("secret-key")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
}

func TestAPIKeyAuth(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		value      string
		wantStatus int
	}{
		{"valid X-API-Key", "X-API-Key", "secret-key", http.StatusNoContent},
		{"valid bearer token", "Authorization", "Bearer secret-key", http.StatusNoContent},
		{"wrong key", "X-API-Key", "other-key", http.StatusUnauthorized},
		{"wrong bearer", "Authorization", "Bearer other-key", http.StatusUnauthorized},
		{"malformed authorization", "Authorization", "Basic secret-key", http.StatusUnauthorized},
		{"missing key", "", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("DELETE", "/api/v1/state", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()

			authedHandler(t).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
