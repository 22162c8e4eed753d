package httpapi

import (
	"net/http"
	"time"

	"github.com/funews/funews/internal/server/services"
	"github.com/labstack/echo/v4"
)

// ReasonLoggedOut is recorded when an account logs out everywhere.
const ReasonLoggedOut = "logged out"

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type revokeRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type accountResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type sessionResponse struct {
	AccessToken      string          `json:"accessToken"`
	AccessExpiresAt  time.Time       `json:"accessExpiresAt"`
	RefreshToken     string          `json:"refreshToken"`
	RefreshExpiresAt time.Time       `json:"refreshExpiresAt"`
	Account          accountResponse `json:"account"`
}

func sessionJSON(pair *services.SessionPair) sessionResponse {
	return sessionResponse{
		AccessToken:      pair.AccessToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshToken:     pair.RefreshToken,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		Account: accountResponse{
			ID:    pair.Account.ID,
			Name:  pair.Account.Name,
			Email: pair.Account.Email,
			Role:  string(pair.Account.Role),
		},
	}
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil || req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "email and password required"})
	}
	pair, err := s.sessions.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		s.logger.Warn(c.Request().Context(), "login denied", "email", req.Email)
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sessionJSON(pair))
}

func (s *Server) handleRefresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil || req.AccessToken == "" || req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "accessToken and refreshToken required"})
	}
	pair, err := s.sessions.Refresh(c.Request().Context(), req.AccessToken, req.RefreshToken)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sessionJSON(pair))
}

// handleValidate reports whether the presented bearer token is currently
// acceptable, without requiring the auth middleware: an invalid token is a
// 200 with valid=false, not a 401.
func (s *Server) handleValidate(c echo.Context) error {
	token := bearerToken(c)
	if token == "" {
		return c.JSON(http.StatusOK, echo.Map{"valid": false})
	}
	claims, err := s.sessions.Validate(c.Request().Context(), token)
	if err != nil {
		return c.JSON(http.StatusOK, echo.Map{"valid": false})
	}
	accountID, err := claims.AccountID()
	if err != nil {
		return c.JSON(http.StatusOK, echo.Map{"valid": false})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"valid":     true,
		"accountId": accountID,
		"email":     claims.Email,
		"role":      claims.Role,
		"expiresAt": claims.ExpiresAt.Time,
	})
}

func (s *Server) handleRevoke(c echo.Context) error {
	var req revokeRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "refreshToken required"})
	}
	if err := s.sessions.RevokeOne(c.Request().Context(), accountIDFrom(c), req.RefreshToken); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleLogout(c echo.Context) error {
	n, err := s.sessions.RevokeAll(c.Request().Context(), accountIDFrom(c), ReasonLoggedOut)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"revoked": n})
}

func (s *Server) handleProfile(c echo.Context) error {
	account, err := s.accounts.Get(c.Request().Context(), accountIDFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, accountResponse{
		ID:    account.ID,
		Name:  account.Name,
		Email: account.Email,
		Role:  string(account.Role),
	})
}

func (s *Server) handleChangePassword(c echo.Context) error {
	var req changePasswordRequest
	if err := c.Bind(&req); err != nil || req.CurrentPassword == "" || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "currentPassword and newPassword required"})
	}
	if err := s.accounts.ChangePassword(c.Request().Context(), accountIDFrom(c),
		req.CurrentPassword, req.NewPassword); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
