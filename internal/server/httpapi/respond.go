package httpapi

import (
	"errors"
	"net/http"

	"github.com/funews/funews/internal/common"
	"github.com/labstack/echo/v4"
)

type errorResponse struct {
	Error string `json:"error"`
}

func unauthorizedJSON(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
}

func forbiddenJSON(c echo.Context) error {
	return c.JSON(http.StatusForbidden, errorResponse{Error: "forbidden"})
}

// respondError maps service errors onto HTTP statuses. Authentication
// failures collapse into one indistinct 401 body.
func respondError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return unauthorizedJSON(c)
	case errors.Is(err, common.ErrorForbidden):
		return forbiddenJSON(c)
	case errors.Is(err, common.ErrorNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, common.ErrConflict),
		errors.Is(err, common.ErrorAlreadyExists):
		return c.JSON(http.StatusConflict, errorResponse{Error: "conflict"})
	default:
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
