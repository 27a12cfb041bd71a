package routes

import (
	"context"
	"net/http"

	"github.com/txgnn-explorer/backend/pkg/cache"
	"github.com/txgnn-explorer/backend/pkg/common"
	"github.com/txgnn-explorer/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

// GetDiseasesHandler lists every disease as [id, treatable].
func GetDiseasesHandler(c echo.Context) error {
	app := appFrom(c)
	ctx := c.Request().Context()

	diseases, err := cache.Remember(ctx, app.Cache, cache.Key("diseases"), app.CacheTTL,
		func(ctx context.Context) ([]common.DiseaseStatus, error) {
			return app.Graph.QueryDiseases(ctx)
		})
	if err != nil {
		logger.Error("Failed to query diseases", "err", err)
		return jsonError(c, http.StatusInternalServerError, "Internal server error")
	}
	if diseases == nil {
		diseases = []common.DiseaseStatus{}
	}

	return c.JSON(http.StatusOK, diseases)
}
