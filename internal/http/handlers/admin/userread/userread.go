// Package userread реализует административное чтение профиля любого пользователя.
package userread

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/entitlement-core/internal/http/response"
	"github.com/magabrotheeeer/entitlement-core/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-core/internal/models"
	"github.com/magabrotheeeer/entitlement-core/internal/services/auth"
)

// Service описывает чтение пользователя с ленивым истечением подписки.
type Service interface {
	Check(ctx context.Context, identifier string) (*models.User, error)
}

// Handler обрабатывает GET /admin/users/{identifier}.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Профиль пользователя (администратор)
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param identifier path string true "Идентификатор пользователя"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /admin/users/{identifier} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.userread"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	identifier := auth.NormalizeIdentifier(chi.URLParam(r, "identifier"))
	user, err := h.service.Check(r.Context(), identifier)
	if err != nil {
		log.Info("failed to read user", sl.Err(err))
		status, msg := response.StatusFromError(err)
		render.Status(r, status)
		render.JSON(w, r, response.Error(msg))
		return
	}

	render.JSON(w, r, response.OKWithData(user.Profile()))
}
