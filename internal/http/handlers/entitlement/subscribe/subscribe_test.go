package subscribe

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/entitlement-core/internal/http/middlewarectx"
	"github.com/magabrotheeeer/entitlement-core/internal/models"
)

type MockService struct{ mock.Mock }

func (m *MockService) Activate(ctx context.Context, identifier, planName string) (*models.User, error) {
	args := m.Called(ctx, identifier, planName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func TestSubscribeHandler(t *testing.T) {
	viewer := models.Principal{ID: "uid-1", Identifier: "v@example.com", Role: models.RoleUser}
	plan := "PREMIUM"
	expires := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		body           string
		setupMock      func(m *MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "activated",
			body: `{"planName":"PREMIUM"}`,
			setupMock: func(m *MockService) {
				m.On("Activate", mock.Anything, "v@example.com", "PREMIUM").Return(&models.User{
					UUID: "uid-1", Email: "v@example.com", Role: models.RoleUser,
					Status: models.StatusActive, PlanName: &plan, ExpiresAt: &expires,
				}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"ACTIVE"`,
		},
		{
			name:           "missing plan",
			body:           `{}`,
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   "field PlanName is a required field",
		},
		{
			name:           "blank plan",
			body:           `{"planName":"   "}`,
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   "field PlanName is a required field",
		},
		{
			name: "plan is trimmed",
			body: `{"planName":"  PREMIUM "}`,
			setupMock: func(m *MockService) {
				m.On("Activate", mock.Anything, "v@example.com", "PREMIUM").Return(&models.User{
					UUID: "uid-1", Email: "v@example.com", Role: models.RoleUser,
					Status: models.StatusActive, PlanName: &plan, ExpiresAt: &expires,
				}, nil).Once()
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "bad json",
			body:           `planName`,
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)
			h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)

			req := httptest.NewRequest(http.MethodPost, "/subscribe", bytes.NewBufferString(tt.body))
			req = req.WithContext(middlewarectx.WithPrincipal(req.Context(), viewer))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedBody != "" {
				assert.Contains(t, rec.Body.String(), tt.expectedBody)
			}
			svc.AssertExpectations(t)
		})
	}
}
