package handler

import (
	"net/http"

	"app/internal/domain/model"
	"app/internal/middleware"
	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		return c.JSON(he.Status, ErrorResponse{Error: he.Message})
	}

	//500
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

// contextから認証済みprincipalを復元
func principalFrom(c echo.Context) (model.Principal, bool) {
	id, _ := c.Get(middleware.CtxUserIDKey).(string)
	role, _ := c.Get(middleware.CtxUserRoleKey).(string)
	if id == "" || role == "" {
		return model.Principal{}, false
	}
	return model.Principal{ID: id, Role: model.Role(role)}, true
}
