package routes

import (
	"net/http"

	"github.com/txgnn-explorer/backend/internal/db"
	"github.com/txgnn-explorer/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

// DeletePathJobHandler removes a job and its result file.
func DeletePathJobHandler(c echo.Context) error {
	job, err := loadJob(c)
	if err != nil || job == nil {
		return err
	}
	if job.Status == db.PathJobStatusRunning {
		return jsonError(c, http.StatusConflict, "Job is running")
	}

	app := appFrom(c)
	ctx := c.Request().Context()

	resultKey, err := db.New(app.DBConn).DeletePathJob(ctx, job.ID)
	if err != nil {
		logger.Error("Failed to delete path job", "job_id", job.ID, "err", err)
		return jsonError(c, http.StatusInternalServerError, "Internal server error")
	}
	if resultKey.Valid {
		if err := app.Results.Delete(ctx, resultKey.String); err != nil {
			logger.Warn("Failed to delete job result", "job_id", job.ID, "err", err)
		}
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Job deleted"})
}
