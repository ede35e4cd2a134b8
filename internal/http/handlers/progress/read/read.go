// Package read реализует HTTP-обработчик чтения позиции просмотра.
package read

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/entitlement-core/internal/http/middlewarectx"
	"github.com/magabrotheeeer/entitlement-core/internal/http/response"
	"github.com/magabrotheeeer/entitlement-core/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-core/internal/models"
)

// Handler обрабатывает GET /progress/{contentID}.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает чтение прогресса.
type Service interface {
	Get(ctx context.Context, principal models.Principal, contentID string) (*models.Progress, error)
}

// New создает новый Handler с переданным логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Позиция просмотра контента
// @Tags Progress
// @Produce json
// @Security BearerAuth
// @Param contentID path string true "ID контента"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /progress/{contentID} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.progress.read"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	principal, ok := middlewarectx.PrincipalFromContext(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error(response.MsgAuthRequired))
		return
	}

	res, err := h.service.Get(r.Context(), principal, chi.URLParam(r, "contentID"))
	if err != nil {
		if !errors.Is(err, models.ErrRecordNotFound) {
			log.Error("failed to read progress", sl.Err(err))
		}
		status, msg := response.StatusFromError(err)
		render.Status(r, status)
		render.JSON(w, r, response.Error(msg))
		return
	}

	render.JSON(w, r, response.OKWithData(res))
}
