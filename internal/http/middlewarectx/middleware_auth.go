// Package middlewarectx содержит HTTP middleware аутентификации и авторизации.
//
// Authenticate - шлюз аутентификации: проверяет bearer-токен из заголовка
// Authorization и кладёт принципала в контекст. Любая проблема с токеном
// оставляет запрос анонимным, решение об отказе принимает политика маршрута (Require).
package middlewarectx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/entitlement-core/internal/http/response"
	"github.com/magabrotheeeer/entitlement-core/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-core/internal/metrics"
	"github.com/magabrotheeeer/entitlement-core/internal/models"
)

// Authenticator проверяет токен и возвращает его владельца.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (models.Principal, error)
}

// Authenticate возвращает шлюз аутентификации.
//
// Нет заголовка, неверный токен или неизвестный subject - запрос идёт дальше анонимным.
// Если поиск владельца прерван отменой или таймаутом контекста запроса, отвечает 503.
func Authenticate(log *slog.Logger, auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.Authenticate"

			header := r.Header.Get("Authorization")
			if header == "" {
				metrics.AuthGateOutcomes.WithLabelValues(metrics.OutcomeAnonymous).Inc()
				next.ServeHTTP(w, r)
				return
			}

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			token, ok := bearerToken(header)
			if !ok {
				log.Debug("malformed authorization header")
				metrics.AuthGateOutcomes.WithLabelValues(metrics.OutcomeInvalidToken).Inc()
				next.ServeHTTP(w, r)
				return
			}

			principal, err := auth.Authenticate(r.Context(), token)
			switch {
			case err == nil:
				metrics.AuthGateOutcomes.WithLabelValues(metrics.OutcomeAuthenticated).Inc()
				next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
			case errors.Is(err, models.ErrInvalidToken):
				log.Debug("token rejected", sl.Err(err))
				metrics.AuthGateOutcomes.WithLabelValues(metrics.OutcomeInvalidToken).Inc()
				next.ServeHTTP(w, r)
			case errors.Is(err, models.ErrRecordNotFound):
				log.Info("token subject no longer exists")
				metrics.AuthGateOutcomes.WithLabelValues(metrics.OutcomeUnknownUser).Inc()
				next.ServeHTTP(w, r)
			case r.Context().Err() != nil,
				errors.Is(err, context.Canceled),
				errors.Is(err, context.DeadlineExceeded):
				log.Warn("principal lookup interrupted", sl.Err(err))
				metrics.AuthGateOutcomes.WithLabelValues(metrics.OutcomeCancelled).Inc()
				render.Status(r, http.StatusServiceUnavailable)
				render.JSON(w, r, response.Error(response.MsgUnavailable))
			default:
				log.Error("principal lookup failed", sl.Err(err))
				metrics.AuthGateOutcomes.WithLabelValues(metrics.OutcomeLookupFailed).Inc()
				next.ServeHTTP(w, r)
			}
		})
	}
}

// bearerToken извлекает токен из значения "Bearer <token>", схема без учёта регистра.
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
