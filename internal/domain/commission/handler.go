package commission

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicops/incentive/internal/domain/clinical"
	"github.com/clinicops/incentive/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/commissions", h.List)
	api.GET("/commissions/:id", h.Get)
	api.POST("/commissions", h.Record)
	// Event facts handed over by the owning clinical workflows.
	api.POST("/commissions/events/visit", h.VisitConverted)
	api.POST("/commissions/events/nomination", h.NominationConverted)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	comm, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "commission not found")
	}
	return c.JSON(http.StatusOK, comm)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)

	var f ListFilter
	if v := c.QueryParam("employee_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid employee_id")
		}
		f.EmployeeID = &id
	}
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		f.PatientID = &id
	}
	f.Type = c.QueryParam("type")
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid from date")
		}
		f.From = &t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid to date")
		}
		f.To = &t
	}

	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Record(c echo.Context) error {
	var in RecordInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	comm, err := h.svc.Record(c.Request().Context(), in)
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return echo.NewHTTPError(http.StatusConflict, "commission already exists")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, comm)
}

// VisitConverted receives a visit conversion fact and runs both visit-driven
// award rules. Duplicate payouts are reported as already-applied, not as
// errors, so the clinical workflow can retry safely.
func (h *Handler) VisitConverted(c echo.Context) error {
	var fact clinical.VisitFact
	if err := c.Bind(&fact); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if fact.VisitID == uuid.Nil || fact.PatientID == uuid.Nil || fact.HospitalID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "visit_id, patient_id and hospital_id are required")
	}

	ctx := c.Request().Context()
	result := map[string]interface{}{}

	if comm, err := h.svc.AwardPatientCreation(ctx, fact); err != nil && !errors.Is(err, ErrDuplicate) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	} else if comm != nil {
		result["patient_creation"] = comm
	}

	if comm, err := h.svc.AwardFollowUp(ctx, fact); err != nil && !errors.Is(err, ErrDuplicate) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	} else if comm != nil {
		result["follow_up"] = comm
	}

	return c.JSON(http.StatusOK, result)
}

func (h *Handler) NominationConverted(c echo.Context) error {
	var fact clinical.NominationFact
	if err := c.Bind(&fact); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if fact.PatientID == uuid.Nil || fact.NominatorID == uuid.Nil || fact.VisitID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id, nominator_id and visit_id are required")
	}

	comm, err := h.svc.AwardNominationConversion(c.Request().Context(), fact)
	if err != nil && !errors.Is(err, ErrDuplicate) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	result := map[string]interface{}{}
	if comm != nil {
		result["nomination_conversion"] = comm
	}
	return c.JSON(http.StatusOK, result)
}
