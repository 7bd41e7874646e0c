package inventory

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

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
	g := api.Group("/inventory", auth.RequireRole("inventory", "clinical"))
	g.POST("/movements", h.RecordMovement)
	g.GET("/materials/:id/balance", h.GetBalance)
	g.GET("/materials/:id/history", h.GetHistory)
	g.GET("/low-stock", h.LowStock)
}

type recordMovementRequest struct {
	MaterialID    uuid.UUID    `json:"material_id" validate:"required"`
	Kind          MovementKind `json:"kind" validate:"required,oneof=IN OUT ADJUSTMENT RETURN"`
	Quantity      int          `json:"quantity" validate:"required,min=1"`
	ReferenceType *string      `json:"reference_type"`
	ReferenceID   *uuid.UUID   `json:"reference_id"`
	Note          *string      `json:"note"`
}

func (h *Handler) RecordMovement(c echo.Context) error {
	var req recordMovementRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	e := &StockLedgerEntry{
		MaterialID:    req.MaterialID,
		Kind:          req.Kind,
		Quantity:      req.Quantity,
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
		Note:          req.Note,
		CreatedBy:     auth.UserIDFromContext(c.Request().Context()),
	}
	if e.CreatedBy == "" {
		e.CreatedBy = "system"
	}
	if err := h.svc.RecordMovement(c.Request().Context(), e); err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, e)
}

type balanceResponse struct {
	MaterialID uuid.UUID `json:"material_id"`
	OnHand     int       `json:"on_hand_quantity"`
	Balance    int       `json:"ledger_balance"`
}

// GetBalance reports both the cached counter and the ledger sum so a
// mismatch is visible to operators.
func (h *Handler) GetBalance(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	onHand, balance, err := h.svc.AuditBalance(c.Request().Context(), id)
	if err != nil && apperr.KindOf(err) != apperr.KindStateConflict {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, balanceResponse{MaterialID: id, OnHand: onHand, Balance: balance})
}

func (h *Handler) GetHistory(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.History(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) LowStock(c echo.Context) error {
	items, err := h.svc.LowStock(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*LowStockItem{}
	}
	return c.JSON(http.StatusOK, items)
}
