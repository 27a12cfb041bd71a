package server

import (
	"os"

	"github.com/txgnn-explorer/backend/internal/server/middleware"
	"github.com/txgnn-explorer/backend/internal/server/routes"
	"github.com/txgnn-explorer/backend/pkg/logger"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

func RegisterRoutes(e *echo.Echo, frontRoot string) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	// Explorer routes
	apiRoutes := e.Group("/api")
	apiRoutes.GET("/diseases", routes.GetDiseasesHandler)
	apiRoutes.GET("/drug_predictions", routes.GetDrugPredictionsHandler)
	apiRoutes.GET("/attention", routes.GetAttentionHandler)
	apiRoutes.GET("/attention_pair", routes.GetAttentionPairHandler)
	apiRoutes.GET("/stats", routes.GetStatsHandler)

	// Data files used by the frontend
	e.GET("/data/:file", routes.GetDataFileHandler)

	// Path job routes
	jobRoutes := apiRoutes.Group("/path_jobs", middleware.AuthMiddleware, middleware.RequireJobs)
	jobRoutes.GET("", routes.GetPathJobsHandler, middleware.RequireAnyPermission(middleware.PermissionJobView, middleware.PermissionJobViewAll))
	jobRoutes.POST("", routes.CreatePathJobHandler, middleware.RequirePermission(middleware.PermissionJobCreate))
	jobRoutes.GET("/:id", routes.GetPathJobHandler, middleware.RequireAnyPermission(middleware.PermissionJobView, middleware.PermissionJobViewAll))
	jobRoutes.GET("/:id/result", routes.GetPathJobResultHandler, middleware.RequireAnyPermission(middleware.PermissionJobView, middleware.PermissionJobViewAll))
	jobRoutes.DELETE("/:id", routes.DeletePathJobHandler, middleware.RequirePermission(middleware.PermissionJobDelete))

	// Frontend build
	if frontRoot == "" {
		return
	}
	if info, err := os.Stat(frontRoot); err != nil || !info.IsDir() {
		logger.Debug("No frontend build found", "path", frontRoot)
		return
	}
	e.Use(echomw.StaticWithConfig(echomw.StaticConfig{
		Root:  frontRoot,
		HTML5: true,
	}))
}
