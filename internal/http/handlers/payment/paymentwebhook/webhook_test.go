package paymentwebhook

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/entitlement-core/internal/services/payment"
)

type ServiceMock struct{ mock.Mock }

func (m *ServiceMock) ProcessWebhookEvent(ctx context.Context, event payment.Event) (string, error) {
	args := m.Called(ctx, event)
	return args.String(0), args.Error(1)
}

const secret = "whsec"

const succeededBody = `{"event":"payment.succeeded","object":{"id":"p-1","status":"succeeded",` +
	`"metadata":{"identifier":"a@x.com","plan_name":"PREMIUM"}}}`

func TestWebhookHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		signature  func(body string) string
		setupMock  func(m *ServiceMock)
		wantStatus int
	}{
		{
			name:      "signed payment activates",
			body:      succeededBody,
			signature: func(b string) string { return Sign(secret, []byte(b)) },
			setupMock: func(m *ServiceMock) {
				m.On("ProcessWebhookEvent", mock.Anything, payment.Event{
					Type:       "payment.succeeded",
					PaymentID:  "p-1",
					Status:     "succeeded",
					Identifier: "a@x.com",
					PlanName:   "PREMIUM",
				}).Return(payment.OutcomeActivated, nil).Once()
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing signature",
			body:       succeededBody,
			signature:  func(string) string { return "" },
			setupMock:  func(*ServiceMock) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "signature from another secret",
			body:       succeededBody,
			signature:  func(b string) string { return Sign("other", []byte(b)) },
			setupMock:  func(*ServiceMock) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "signed garbage",
			body:       "{",
			signature:  func(b string) string { return Sign(secret, []byte(b)) },
			setupMock:  func(*ServiceMock) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:      "event without metadata",
			body:      `{"event":"payment.succeeded","object":{"id":"p-2"}}`,
			signature: func(b string) string { return Sign(secret, []byte(b)) },
			setupMock: func(m *ServiceMock) {
				m.On("ProcessWebhookEvent", mock.Anything, mock.Anything).
					Return("", payment.ErrInvalidEvent).Once()
			},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:      "processing failure asks provider to retry",
			body:      succeededBody,
			signature: func(b string) string { return Sign(secret, []byte(b)) },
			setupMock: func(m *ServiceMock) {
				m.On("ProcessWebhookEvent", mock.Anything, mock.Anything).
					Return("", errors.New("db down")).Once()
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			tt.setupMock(svc)
			h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc, secret)

			req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewBufferString(tt.body))
			if sig := tt.signature(tt.body); sig != "" {
				req.Header.Set(SignatureHeader, sig)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestWebhookHandler_EmptySecretRejectsAll(t *testing.T) {
	svc := new(ServiceMock)
	h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc, "")

	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewBufferString(succeededBody))
	req.Header.Set(SignatureHeader, Sign("", []byte(succeededBody)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	svc.AssertNotCalled(t, "ProcessWebhookEvent", mock.Anything, mock.Anything)
}
