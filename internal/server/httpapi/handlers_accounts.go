package httpapi

import (
	"net/http"
	"strconv"

	"github.com/funews/funews/internal/server/models"
	"github.com/labstack/echo/v4"
)

type createAccountRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type updateAccountRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

func validRole(role string) bool {
	switch models.Role(role) {
	case models.RoleAdmin, models.RoleStaff, models.RoleLecturer:
		return true
	}
	return false
}

func pathID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

func (s *Server) handleCreateAccount(c echo.Context) error {
	var req createAccountRequest
	if err := c.Bind(&req); err != nil || req.Name == "" || req.Email == "" || req.Password == "" || !validRole(req.Role) {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "name, email, password and a valid role required"})
	}
	account, err := s.accounts.Create(c.Request().Context(), req.Name, req.Email, req.Password, models.Role(req.Role))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, accountResponse{
		ID: account.ID, Name: account.Name, Email: account.Email, Role: string(account.Role),
	})
}

func (s *Server) handleListAccounts(c echo.Context) error {
	accounts, err := s.accounts.List(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	out := make([]echo.Map, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, echo.Map{
			"id": a.ID, "name": a.Name, "email": a.Email,
			"role": string(a.Role), "active": a.IsActive,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetAccount(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
	}
	a, err := s.accounts.Get(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id": a.ID, "name": a.Name, "email": a.Email,
		"role": string(a.Role), "active": a.IsActive,
	})
}

func (s *Server) handleUpdateAccount(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
	}
	var req updateAccountRequest
	if err := c.Bind(&req); err != nil || req.Name == "" || req.Email == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "name and email required"})
	}
	if err := s.accounts.UpdateProfile(c.Request().Context(), id, req.Name, req.Email); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleSetAccountActive(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
	}
	var req setActiveRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
	}
	if err := s.accounts.SetActive(c.Request().Context(), id, req.Active); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
