package recommendation

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
	g := api.Group("/recommendations", auth.RequireRole(auth.RoleDoctor))
	g.POST("", h.GenerateRecommendation)
	g.GET("", h.ListRecommendations)
	g.GET("/:id", h.GetRecommendation)
}

func caller(c echo.Context) (uuid.UUID, string) {
	ctx := c.Request().Context()
	return auth.UserIDFromContext(ctx), auth.RoleFromContext(ctx)
}

type generateRequest struct {
	DiagnosisID uuid.UUID `json:"diagnosis_id"`
}

func (h *Handler) GenerateRecommendation(c echo.Context) error {
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.DiagnosisID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "diagnosis_id is required")
	}
	callerID, role := caller(c)
	rec, err := h.svc.Generate(c.Request().Context(), callerID, role, req.DiagnosisID)
	if err != nil {
		return mapRecommendationError(err)
	}
	return c.JSON(http.StatusCreated, pagination.New("recommendation generated", rec))
}

func (h *Handler) GetRecommendation(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	callerID, role := caller(c)
	rec, err := h.svc.Get(c.Request().Context(), callerID, role, id)
	if err != nil {
		return mapRecommendationError(err)
	}
	return c.JSON(http.StatusOK, pagination.New("recommendation retrieved", rec))
}

func (h *Handler) ListRecommendations(c echo.Context) error {
	patientID, err := uuid.Parse(c.QueryParam("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}
	pg := pagination.FromContext(c)
	callerID, role := caller(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), callerID, role,
		patientID, pg.Limit, pg.Offset())
	if err != nil {
		return mapRecommendationError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewList("recommendations retrieved", items, total, pg))
}

func mapRecommendationError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrDiagnosisNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDenied):
		return echo.NewHTTPError(http.StatusForbidden, "access denied")
	case errors.Is(err, ErrDoctorOnly):
		return echo.NewHTTPError(http.StatusForbidden, ErrDoctorOnly.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
