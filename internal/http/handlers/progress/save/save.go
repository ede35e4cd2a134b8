// Package save реализует HTTP-обработчик записи позиции просмотра.
package save

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/entitlement-core/internal/http/middlewarectx"
	"github.com/magabrotheeeer/entitlement-core/internal/http/response"
	"github.com/magabrotheeeer/entitlement-core/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-core/internal/models"
	"github.com/magabrotheeeer/entitlement-core/internal/services/progress"
)

// MaxContentIDLen - максимальная длина идентификатора контента.
const MaxContentIDLen = 128

// Request - тело запроса.
type Request struct {
	Offset *int `json:"offset" validate:"required,gte=0"`
}

// Service описывает запись прогресса.
type Service interface {
	Save(ctx context.Context, principal models.Principal, contentID string, offset int) (*progress.SaveResult, error)
}

// Handler обрабатывает PUT /progress/{contentID}.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создаёт новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Сохранение позиции просмотра
// @Tags Progress
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param contentID path string true "ID контента"
// @Param request body Request true "Позиция"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.ErrorResponse "Конфликт записи, повторите"
// @Failure 422 {object} response.ErrorResponse
// @Router /progress/{contentID} [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.progress.save"

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
	if contentID == "" || len(contentID) > MaxContentIDLen {
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("invalid content id"))
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error(response.MsgInvalidBody))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		render.Status(r, http.StatusUnprocessableEntity)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			render.JSON(w, r, response.ValidationError(verrs))
			return
		}
		render.JSON(w, r, response.Error(response.MsgInvalidBody))
		return
	}

	res, err := h.service.Save(r.Context(), principal, contentID, *req.Offset)
	if err != nil {
		if errors.Is(err, models.ErrWriteConflict) {
			log.Warn("concurrent progress write", slog.String("content_id", contentID))
		} else {
			log.Error("failed to save progress", sl.Err(err))
		}
		status, msg := response.StatusFromError(err)
		render.Status(r, status)
		render.JSON(w, r, response.Error(msg))
		return
	}

	render.JSON(w, r, response.OKWithData(res))
}
