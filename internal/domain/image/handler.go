package image

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/retinacare/retinacare/internal/platform/auth"
	"github.com/retinacare/retinacare/internal/platform/storage"
	"github.com/retinacare/retinacare/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/retinal-images", auth.RequireRole(auth.RoleDoctor))
	g.POST("", h.UploadImage)
	g.GET("", h.ListImages)
	g.GET("/:id", h.GetImage)
	g.DELETE("/:id", h.DeleteImage)
}

func caller(c echo.Context) (uuid.UUID, string) {
	ctx := c.Request().Context()
	return auth.UserIDFromContext(ctx), auth.RoleFromContext(ctx)
}

func (h *Handler) UploadImage(c echo.Context) error {
	patientID, err := uuid.Parse(c.FormValue("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}

	fh, err := c.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "image file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read uploaded file")
	}
	defer f.Close()

	callerID, role := caller(c)
	img, err := h.svc.Upload(c.Request().Context(), callerID, role,
		patientID, fh.Filename, fh.Header.Get(echo.HeaderContentType), f)
	if err != nil {
		return mapImageError(err)
	}
	return c.JSON(http.StatusCreated, pagination.New("retinal image uploaded", img))
}

func (h *Handler) GetImage(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	callerID, role := caller(c)
	img, err := h.svc.Get(c.Request().Context(), callerID, role, id)
	if err != nil {
		return mapImageError(err)
	}
	return c.JSON(http.StatusOK, pagination.New("retinal image retrieved", img))
}

func (h *Handler) ListImages(c echo.Context) error {
	patientID, err := uuid.Parse(c.QueryParam("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}
	pg := pagination.FromContext(c)
	callerID, role := caller(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), callerID, role,
		patientID, pg.Limit, pg.Offset())
	if err != nil {
		return mapImageError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewList("retinal images retrieved", items, total, pg))
}

func (h *Handler) DeleteImage(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	callerID, role := caller(c)
	if err := h.svc.Delete(c.Request().Context(), callerID, role, id); err != nil {
		return mapImageError(err)
	}
	return c.JSON(http.StatusOK, pagination.New("retinal image deleted", nil))
}

func mapImageError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, ErrNotFound.Error())
	case errors.Is(err, ErrDenied):
		return echo.NewHTTPError(http.StatusForbidden, "access denied")
	case errors.Is(err, ErrHasDiagnosis),
		errors.Is(err, storage.ErrInvalidContentType),
		errors.Is(err, storage.ErrFileTooLarge),
		errors.Is(err, storage.ErrMissingFileName):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
