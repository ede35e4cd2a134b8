package middlewarectx_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/entitlement-core/internal/http/middlewarectx"
	"github.com/magabrotheeeer/entitlement-core/internal/models"
)

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		policy  middlewarectx.Policy
		wantErr bool
	}{
		{"public", middlewarectx.Public(), false},
		{"authenticated", middlewarectx.Authenticated(), false},
		{"admin role", middlewarectx.RoleRequired(models.RoleAdmin), false},
		{"user role", middlewarectx.RoleRequired(models.RoleUser), false},
		{"zero value", middlewarectx.Policy{}, true},
		{"unknown role", middlewarectx.RoleRequired("ROOT"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, middlewarectx.ErrInvalidPolicy)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestRequire(t *testing.T) {
	admin := models.Principal{ID: "uid-2", Identifier: "a@example.com", Role: models.RoleAdmin}

	tests := []struct {
		name       string
		policy     middlewarectx.Policy
		principal  *models.Principal
		wantStatus int
		wantBody   string
	}{
		{"public anonymous", middlewarectx.Public(), nil, http.StatusOK, ""},
		{"public authenticated", middlewarectx.Public(), &viewer, http.StatusOK, ""},
		{"authenticated anonymous", middlewarectx.Authenticated(), nil, http.StatusUnauthorized, "authentication required"},
		{"authenticated user", middlewarectx.Authenticated(), &viewer, http.StatusOK, ""},
		{"admin route anonymous", middlewarectx.RoleRequired(models.RoleAdmin), nil, http.StatusUnauthorized, "authentication required"},
		{"admin route with user", middlewarectx.RoleRequired(models.RoleAdmin), &viewer, http.StatusForbidden, "insufficient privilege"},
		{"admin route with admin", middlewarectx.RoleRequired(models.RoleAdmin), &admin, http.StatusOK, ""},
		{"user route with admin", middlewarectx.RoleRequired(models.RoleUser), &admin, http.StatusForbidden, "insufficient privilege"},
		{"unset policy never opens", middlewarectx.Policy{}, &admin, http.StatusInternalServerError, "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.principal != nil {
				req = req.WithContext(middlewarectx.WithPrincipal(req.Context(), *tt.principal))
			}
			rec := httptest.NewRecorder()

			middlewarectx.Require(newNoopLogger(), tt.policy)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestPrincipalFromContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	_, ok := middlewarectx.PrincipalFromContext(req.Context())
	assert.False(t, ok)

	ctx := middlewarectx.WithPrincipal(req.Context(), viewer)
	p, ok := middlewarectx.PrincipalFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, viewer, p)
}
