package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/usersapi/usersapi/internal/auth"
	"github.com/usersapi/usersapi/internal/model"
)

func requestWithScopes(method string, scopes ...string) *http.Request {
	req := httptest.NewRequest(method, "/v2/users", nil)
	ac := &model.AuthContext{KeyID: "01K", Scopes: scopes}
	return req.WithContext(auth.ContextWithAuth(req.Context(), ac))
}

func TestRequireScope(t *testing.T) {
	tests := []struct {
		name       string
		scopes     []string
		required   string
		wantStatus int
	}{
		{"read allows read", []string{model.ScopeRead}, model.ScopeRead, http.StatusOK},
		{"write allows write", []string{model.ScopeWrite}, model.ScopeWrite, http.StatusOK},
		{"admin allows read", []string{model.ScopeAdmin}, model.ScopeRead, http.StatusOK},
		{"admin allows admin", []string{model.ScopeAdmin}, model.ScopeAdmin, http.StatusOK},
		{"read denies write", []string{model.ScopeRead}, model.ScopeWrite, http.StatusForbidden},
		{"write denies admin", []string{model.ScopeRead, model.ScopeWrite}, model.ScopeAdmin, http.StatusForbidden},
		{"no scopes", nil, model.ScopeRead, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RequireScope(tt.required)(okHandler()).ServeHTTP(rec, requestWithScopes(http.MethodGet, tt.scopes...))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestRequireScope_NoAuthContext(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireScope(model.ScopeRead)(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireMethodScope(t *testing.T) {
	tests := []struct {
		method     string
		scopes     []string
		wantStatus int
	}{
		{http.MethodGet, []string{model.ScopeRead}, http.StatusOK},
		{http.MethodGet, []string{model.ScopeWrite}, http.StatusForbidden},
		{http.MethodPost, []string{model.ScopeWrite}, http.StatusOK},
		{http.MethodPut, []string{model.ScopeRead}, http.StatusForbidden},
		{http.MethodDelete, []string{model.ScopeWrite}, http.StatusForbidden},
		{http.MethodDelete, []string{model.ScopeAdmin}, http.StatusOK},
	}

	handler := RequireMethodScope()(okHandler())
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, requestWithScopes(tt.method, tt.scopes...))
			if rec.Code != tt.wantStatus {
				t.Errorf("%s with %v: status = %d, want %d", tt.method, tt.scopes, rec.Code, tt.wantStatus)
			}
		})
	}
}
