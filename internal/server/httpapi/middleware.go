package httpapi

import (
	"strings"

	"github.com/funews/funews/internal/server/models"
	"github.com/labstack/echo/v4"
)

// Context keys set by authRequired.
const (
	ctxAccountIDKey = "account_id" // int64
	ctxEmailKey     = "email"      // string
	ctxRoleKey      = "role"       // string
)

const (
	roleAdmin    = models.RoleAdmin
	roleStaff    = models.RoleStaff
	roleLecturer = models.RoleLecturer
)

// authRequired verifies the bearer access token and stores the caller's
// identity on the request context. Every failure looks the same to the
// client.
func (s *Server) authRequired() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c)
			if token == "" {
				return unauthorizedJSON(c)
			}
			claims, err := s.sessions.Validate(c.Request().Context(), token)
			if err != nil {
				return unauthorizedJSON(c)
			}
			accountID, err := claims.AccountID()
			if err != nil {
				return unauthorizedJSON(c)
			}
			c.Set(ctxAccountIDKey, accountID)
			c.Set(ctxEmailKey, claims.Email)
			c.Set(ctxRoleKey, claims.Role)
			return next(c)
		}
	}
}

// roleRequired allows only the listed roles past. Runs after authRequired.
func (s *Server) roleRequired(allowed ...models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(ctxRoleKey).(string)
			if !ok || role == "" {
				return unauthorizedJSON(c)
			}
			for _, a := range allowed {
				if role == string(a) {
					return next(c)
				}
			}
			return forbiddenJSON(c)
		}
	}
}

func bearerToken(c echo.Context) string {
	authz := c.Request().Header.Get("Authorization")
	parts := strings.SplitN(authz, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func accountIDFrom(c echo.Context) int64 {
	id, _ := c.Get(ctxAccountIDKey).(int64)
	return id
}
