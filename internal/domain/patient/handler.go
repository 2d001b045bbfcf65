package patient

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
	g := api.Group("/patients", auth.RequireRole(auth.RoleDoctor))
	g.POST("", h.CreatePatient)
	g.GET("", h.ListPatients)
	g.GET("/:id", h.GetPatient)
	g.PUT("/:id", h.UpdatePatient)
	g.DELETE("/:id", h.DeletePatient)
}

func caller(c echo.Context) (uuid.UUID, string) {
	ctx := c.Request().Context()
	return auth.UserIDFromContext(ctx), auth.RoleFromContext(ctx)
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	callerID, role := caller(c)
	if err := h.svc.Create(c.Request().Context(), callerID, role, &p); err != nil {
		return mapPatientError(err)
	}
	return c.JSON(http.StatusCreated, pagination.New("patient created", p))
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	callerID, role := caller(c)
	p, err := h.svc.Get(c.Request().Context(), callerID, role, id)
	if err != nil {
		return mapPatientError(err)
	}
	return c.JSON(http.StatusOK, pagination.New("patient retrieved", p))
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	callerID, role := caller(c)
	items, total, err := h.svc.List(c.Request().Context(), callerID, role,
		c.QueryParam("search"), pg.Limit, pg.Offset())
	if err != nil {
		return mapPatientError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewList("patients retrieved", items, total, pg))
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = id
	callerID, role := caller(c)
	updated, err := h.svc.Update(c.Request().Context(), callerID, role, &p)
	if err != nil {
		return mapPatientError(err)
	}
	return c.JSON(http.StatusOK, pagination.New("patient updated", updated))
}

func (h *Handler) DeletePatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	callerID, role := caller(c)
	if err := h.svc.Delete(c.Request().Context(), callerID, role, id); err != nil {
		return mapPatientError(err)
	}
	return c.JSON(http.StatusOK, pagination.New("patient deleted", nil))
}

func mapPatientError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, ErrNotFound.Error())
	case errors.Is(err, ErrDenied):
		return echo.NewHTTPError(http.StatusForbidden, "access denied")
	case errors.Is(err, ErrEmailTaken), errors.Is(err, ErrHasImages), errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
