package treatmentplan

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
	g := api.Group("/treatment-plans", auth.RequireRole("clinical"))
	g.POST("", h.CreatePlan)
	g.GET("/:id", h.GetPlan)
	g.POST("/:id/status", h.UpdatePlanStatus)
	g.POST("/:id/procedures", h.AddProcedure)

	p := api.Group("/procedures", auth.RequireRole("clinical"))
	p.DELETE("/:id", h.RemoveProcedure)
	p.POST("/:id/start", h.StartProcedure)
	p.POST("/:id/cancel", h.CancelProcedure)
	p.POST("/:id/materials", h.AddMaterialUsage)

	api.GET("/patients/:id/treatment-plans", h.ListByPatient, auth.RequireRole("clinical", "billing"))
	api.GET("/practitioners/:id/treatment-plans", h.ListByDoctor, auth.RequireRole("clinical"))
}

type createPlanRequest struct {
	PatientID     uuid.UUID  `json:"patient_id" validate:"required"`
	DoctorID      uuid.UUID  `json:"doctor_id" validate:"required"`
	AppointmentID *uuid.UUID `json:"appointment_id"`
	Title         string     `json:"title" validate:"required"`
	Diagnosis     *string    `json:"diagnosis"`
	Notes         *string    `json:"notes"`
}

func (h *Handler) CreatePlan(c echo.Context) error {
	var req createPlanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	p := &TreatmentPlan{
		PatientID:     req.PatientID,
		DoctorID:      req.DoctorID,
		AppointmentID: req.AppointmentID,
		Title:         req.Title,
		Diagnosis:     req.Diagnosis,
		Notes:         req.Notes,
	}
	if err := h.svc.CreatePlan(c.Request().Context(), p); err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPlan(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.GetPlan(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

type planStatusRequest struct {
	Status PlanStatus `json:"status" validate:"required,oneof=APPROVED IN_PROGRESS COMPLETED CANCELLED"`
}

func (h *Handler) UpdatePlanStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req planStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	p, err := h.svc.UpdatePlanStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

type addProcedureRequest struct {
	CatalogID      uuid.UUID        `json:"catalog_id" validate:"required"`
	Cost           *decimal.Decimal `json:"cost"`
	Priority       string           `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH"`
	ToothReference *string          `json:"tooth_reference"`
	Notes          *string          `json:"notes"`
}

func (h *Handler) AddProcedure(c echo.Context) error {
	planID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req addProcedureRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	proc, err := h.svc.AddProcedure(c.Request().Context(), planID, AddProcedureInput{
		CatalogID:      req.CatalogID,
		Cost:           req.Cost,
		Priority:       ProcedurePriority(req.Priority),
		ToothReference: req.ToothReference,
		Notes:          req.Notes,
	})
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, proc)
}

func (h *Handler) RemoveProcedure(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.RemoveProcedure(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) StartProcedure(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	proc, err := h.svc.StartProcedure(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, proc)
}

func (h *Handler) CancelProcedure(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	proc, err := h.svc.CancelProcedure(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, proc)
}

type addMaterialUsageRequest struct {
	MaterialID uuid.UUID `json:"material_id" validate:"required"`
	Quantity   int       `json:"quantity" validate:"required,min=1"`
}

func (h *Handler) AddMaterialUsage(c echo.Context) error {
	procID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req addMaterialUsageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	usage, err := h.svc.AddMaterialUsage(c.Request().Context(), procID, req.MaterialID, req.Quantity)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, usage)
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

func (h *Handler) ListByDoctor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByDoctor(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
