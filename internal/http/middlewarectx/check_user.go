package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/entitlement-core/internal/http/response"
	"github.com/magabrotheeeer/entitlement-core/internal/lib/sl"
)

// EntitlementChecker сообщает текущий статус подписки с учётом ленивого истечения.
type EntitlementChecker interface {
	IsActive(ctx context.Context, identifier string) (bool, error)
}

// RequireEntitlement пропускает запрос только при активной подписке.
// Статус перечитывается на каждый запрос, кэшированное значение не используется.
func RequireEntitlement(log *slog.Logger, checker EntitlementChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.RequireEntitlement"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error(response.MsgAuthRequired))
				return
			}

			active, err := checker.IsActive(r.Context(), principal.Identifier)
			if err != nil {
				log.Error("failed to check entitlement", sl.Err(err))
				status, msg := response.StatusFromError(err)
				render.Status(r, status)
				render.JSON(w, r, response.Error(msg))
				return
			}
			if !active {
				log.Info("entitlement inactive, access denied", slog.String("user_uid", principal.ID))
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error(response.MsgEntitlementNeeded))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
