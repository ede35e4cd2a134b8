// Package playback реализует премиальную точку доступа к контенту.
// Маршрут закрыт RequireEntitlement, обработчик возвращает позицию для продолжения просмотра.
package playback

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

// Service читает сохранённый прогресс.
type Service interface {
	Get(ctx context.Context, principal models.Principal, contentID string) (*models.Progress, error)
}

// Handler обрабатывает GET /content/{contentID}/playback.
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

// Session - ответ с данными для старта воспроизведения.
type Session struct {
	ContentID    string `json:"contentId"`
	ResumeOffset int    `json:"resumeOffset"`
}

// ServeHTTP godoc
// @Summary Старт воспроизведения премиального контента
// @Tags Content
// @Produce json
// @Security BearerAuth
// @Param contentID path string true "ID контента"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse "Нет активной подписки"
// @Router /content/{contentID}/playback [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.content.playback"

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
	contentID := chi.URLParam(r, "contentID")

	session := Session{ContentID: contentID}
	p, err := h.service.Get(r.Context(), principal, contentID)
	switch {
	case err == nil:
		session.ResumeOffset = p.Offset
	case errors.Is(err, models.ErrRecordNotFound):
	default:
		log.Error("failed to read progress", sl.Err(err))
		status, msg := response.StatusFromError(err)
		render.Status(r, status)
		render.JSON(w, r, response.Error(msg))
		return
	}

	render.JSON(w, r, response.OKWithData(session))
}
