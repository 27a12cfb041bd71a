package routes

import (
	"net/http"

	"github.com/txgnn-explorer/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

func GetStatsHandler(c echo.Context) error {
	stats, err := appFrom(c).Graph.Stats(c.Request().Context())
	if err != nil {
		logger.Error("Failed to query graph stats", "err", err)
		return jsonError(c, http.StatusInternalServerError, "Internal server error")
	}
	return c.JSON(http.StatusOK, stats)
}
