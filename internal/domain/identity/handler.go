package identity

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

// RegisterRoutes registers the public auth endpoints and the authenticated
// user-management endpoints. The auth endpoints must be excluded from the
// JWT middleware by the server's skipper.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.POST("/auth/forgot-password", h.ForgotPassword)
	api.POST("/auth/reset-password", h.ResetPassword)
	api.GET("/auth/me", h.Me)

	admin := api.Group("/users", auth.RequireRole(auth.RoleAdmin))
	admin.GET("", h.ListUsers)
	admin.GET("/:id", h.GetUser)
	admin.PUT("/:id", h.UpdateUser)
	admin.DELETE("/:id", h.DeleteUser)
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (h *Handler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var fieldErrs []string
	if req.Name == "" {
		fieldErrs = append(fieldErrs, "name is required")
	}
	if req.Email == "" {
		fieldErrs = append(fieldErrs, "email is required")
	}
	if req.Password == "" {
		fieldErrs = append(fieldErrs, "password is required")
	}
	if len(fieldErrs) > 0 {
		return c.JSON(http.StatusBadRequest, &pagination.Response{Message: "validation failed", Errors: fieldErrs})
	}

	u, err := h.svc.Register(c.Request().Context(), req.Name, req.Email, req.Password, req.Role)
	if err != nil {
		return mapUserError(err)
	}
	return c.JSON(http.StatusCreated, pagination.New("user registered", u))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	token, u, err := h.svc.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return mapUserError(err)
	}
	return c.JSON(http.StatusOK, pagination.New("login successful", map[string]interface{}{
		"token": token,
		"user":  u,
	}))
}

func (h *Handler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	u, err := h.svc.GetUser(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return mapUserError(err)
	}
	return c.JSON(http.StatusOK, pagination.New("user retrieved", u))
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (h *Handler) ForgotPassword(c echo.Context) error {
	var req forgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email is required")
	}

	token, err := h.svc.ForgotPassword(c.Request().Context(), req.Email)
	if err != nil {
		return mapUserError(err)
	}

	// The response is identical whether or not the email exists; the token
	// rides along only when one was issued.
	resp := pagination.New("if the email is registered, a reset token has been issued", nil)
	if token != "" {
		resp.Data = map[string]string{"reset_token": token}
	}
	return c.JSON(http.StatusOK, resp)
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (h *Handler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Token == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "token and password are required")
	}

	if err := h.svc.ResetPassword(c.Request().Context(), req.Token, req.Password); err != nil {
		return mapUserError(err)
	}
	return c.JSON(http.StatusOK, pagination.New("password reset", nil))
}

func (h *Handler) ListUsers(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListUsers(c.Request().Context(), pg.Limit, pg.Offset())
	if err != nil {
		return mapUserError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewList("users retrieved", items, total, pg))
}

func (h *Handler) GetUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	u, err := h.svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return mapUserError(err)
	}
	return c.JSON(http.StatusOK, pagination.New("user retrieved", u))
}

type updateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (h *Handler) UpdateUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req updateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u, err := h.svc.UpdateUser(c.Request().Context(), id, req.Name, req.Email)
	if err != nil {
		return mapUserError(err)
	}
	return c.JSON(http.StatusOK, pagination.New("user updated", u))
}

func (h *Handler) DeleteUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteUser(c.Request().Context(), id); err != nil {
		return mapUserError(err)
	}
	return c.JSON(http.StatusOK, pagination.New("user deleted", nil))
}

func mapUserError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	case errors.Is(err, ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, ErrInvalidCredentials.Error())
	case errors.Is(err, ErrEmailTaken), errors.Is(err, ErrHasDependents), errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidResetToken):
		return echo.NewHTTPError(http.StatusBadRequest, ErrInvalidResetToken.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
