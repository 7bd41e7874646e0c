package billing

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/clinova/hms/internal/platform/auth"
	"github.com/clinova/hms/pkg/apperr"
	"github.com/clinova/hms/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/invoices", auth.RequireRole("billing"))
	g.GET("/:id", h.GetInvoice)
	g.POST("/:id/payments", h.RecordPayment)

	api.POST("/treatment-plans/:id/invoice", h.GenerateInvoice, auth.RequireRole("billing"))
	api.GET("/patients/:id/invoices", h.ListByPatient, auth.RequireRole("billing"))
}

func (h *Handler) GenerateInvoice(c echo.Context) error {
	planID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	inv, err := h.svc.GenerateInvoice(c.Request().Context(), planID)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, inv)
}

func (h *Handler) GetInvoice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	inv, err := h.svc.GetInvoice(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, invoiceResponse{Invoice: inv, Balance: inv.Balance()})
}

type invoiceResponse struct {
	*Invoice
	Balance decimal.Decimal `json:"balance"`
}

type recordPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount" validate:"required"`
	Method    string          `json:"method" validate:"omitempty,oneof=cash card transfer insurance"`
	Reference *string         `json:"reference"`
}

func (h *Handler) RecordPayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req recordPaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	actor := auth.UserIDFromContext(c.Request().Context())
	if actor == "" {
		actor = "system"
	}
	inv, payment, err := h.svc.RecordPayment(c.Request().Context(), id, req.Amount, req.Method, req.Reference, actor)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, paymentResponse{
		Invoice: inv,
		Payment: payment,
		Balance: inv.Balance(),
	})
}

type paymentResponse struct {
	Invoice *Invoice        `json:"invoice"`
	Payment *Payment        `json:"payment"`
	Balance decimal.Decimal `json:"balance"`
}

func (h *Handler) ListByPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
