package diagnosis

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/retinacare/retinacare/internal/platform/auth"
	"github.com/retinacare/retinacare/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/diagnoses", auth.RequireRole(auth.RoleDoctor))
	g.POST("", h.CreateDiagnosis)
	g.GET("", h.ListDiagnoses)
	g.GET("/:id", h.GetDiagnosis)
	g.DELETE("/:id", h.DeleteDiagnosis)

	api.GET("/patients/:id/most-severe", h.MostSevere, auth.RequireRole(auth.RoleDoctor))
}

func caller(c echo.Context) (uuid.UUID, string) {
	ctx := c.Request().Context()
	return auth.UserIDFromContext(ctx), auth.RoleFromContext(ctx)
}

type createRequest struct {
	RetinalImageID uuid.UUID `json:"retinal_image_id"`
	Notes          string    `json:"notes"`
}

func (h *Handler) CreateDiagnosis(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.RetinalImageID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "retinal_image_id is required")
	}
	callerID, role := caller(c)
	detail, err := h.svc.Create(c.Request().Context(), callerID, role, req.RetinalImageID, req.Notes)
	if err != nil {
		return mapDiagnosisError(err)
	}
	return c.JSON(http.StatusCreated, pagination.New("diagnosis created", detail))
}

func (h *Handler) GetDiagnosis(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	callerID, role := caller(c)
	detail, err := h.svc.Get(c.Request().Context(), callerID, role, id)
	if err != nil {
		return mapDiagnosisError(err)
	}
	return c.JSON(http.StatusOK, pagination.New("diagnosis retrieved", detail))
}

func (h *Handler) ListDiagnoses(c echo.Context) error {
	patientID, err := uuid.Parse(c.QueryParam("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}
	pg := pagination.FromContext(c)
	callerID, role := caller(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), callerID, role,
		patientID, pg.Limit, pg.Offset())
	if err != nil {
		return mapDiagnosisError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewList("diagnoses retrieved", items, total, pg))
}

func (h *Handler) MostSevere(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	callerID, role := caller(c)
	detail, err := h.svc.MostSevereForPatient(c.Request().Context(), callerID, role, patientID)
	if err != nil {
		return mapDiagnosisError(err)
	}
	return c.JSON(http.StatusOK, pagination.New("most severe diagnosis retrieved", detail))
}

func (h *Handler) DeleteDiagnosis(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	callerID, role := caller(c)
	if err := h.svc.Delete(c.Request().Context(), callerID, role, id); err != nil {
		return mapDiagnosisError(err)
	}
	return c.JSON(http.StatusOK, pagination.New("diagnosis deleted", nil))
}

func mapDiagnosisError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrImageNotFound), errors.Is(err, ErrNoDiagnoses):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDenied):
		return echo.NewHTTPError(http.StatusForbidden, "access denied")
	case errors.Is(err, ErrDuplicate), errors.Is(err, ErrValidation), errors.Is(err, ErrHasRecommendations):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		// Inference failures and database errors both land here.
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
