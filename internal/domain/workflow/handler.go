package workflow

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinova/hms/internal/platform/auth"
	"github.com/clinova/hms/pkg/apperr"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/procedures/:id/complete", h.CompleteProcedure, auth.RequireRole("clinical"))
}

func (h *Handler) CompleteProcedure(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	actor := auth.UserIDFromContext(c.Request().Context())
	if actor == "" {
		actor = "system"
	}
	res, err := h.svc.CompleteProcedure(c.Request().Context(), id, actor)
	if err != nil {
		if apperr.Is(err, apperr.KindTransient) {
			// Contention or timeout, the caller can safely retry.
			c.Response().Header().Set("Retry-After", "1")
		}
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, res)
}
