package me

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/entitlement-core/internal/http/middlewarectx"
	"github.com/magabrotheeeer/entitlement-core/internal/models"
)

type MockService struct{ mock.Mock }

func (m *MockService) Check(ctx context.Context, identifier string) (*models.User, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func TestMeHandler(t *testing.T) {
	viewer := models.Principal{ID: "uid-1", Identifier: "v@example.com", Role: models.RoleUser}
	svc := new(MockService)
	svc.On("Check", mock.Anything, "v@example.com").Return(&models.User{
		UUID:         "uid-1",
		Email:        "v@example.com",
		PasswordHash: "secret-hash",
		Role:         models.RoleUser,
		DisplayName:  "Viewer",
		Status:       models.StatusInactive,
	}, nil).Once()
	h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req = req.WithContext(middlewarectx.WithPrincipal(req.Context(), viewer))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret-hash")

	var got struct {
		Data models.Profile `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "uid-1", got.Data.PrincipalID)
	assert.Equal(t, models.StatusInactive, got.Data.Status)
	assert.Equal(t, []string{}, got.Data.Preferences)
	svc.AssertExpectations(t)
}

func TestMeHandler_Anonymous(t *testing.T) {
	svc := new(MockService)
	h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	svc.AssertNotCalled(t, "Check", mock.Anything, mock.Anything)
}
