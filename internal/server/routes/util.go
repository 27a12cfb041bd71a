package routes

import (
	"github.com/txgnn-explorer/backend/internal/server/middleware"

	"github.com/labstack/echo/v4"
)

func appFrom(c echo.Context) *middleware.App {
	return c.(*middleware.AppContext).App
}

func jsonError(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}
