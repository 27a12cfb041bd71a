package routes

import (
	"net/http"

	"github.com/txgnn-explorer/backend/internal/config"
	"github.com/txgnn-explorer/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

// GetDataFileHandler serves the JSON lookup files of the data folder the
// frontend loads on start. Only whitelisted names are served.
func GetDataFileHandler(c echo.Context) error {
	type getDataFileParams struct {
		File string `param:"file" validate:"required"`
	}

	params := new(getDataFileParams)
	if err := c.Bind(params); err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid request params")
	}
	if err := c.Validate(params); err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid request params")
	}

	if !config.IsPublicDataFile(params.File) {
		return jsonError(c, http.StatusNotFound, "File not found")
	}

	app := appFrom(c)
	file := app.DataFile(params.File)
	content, err := app.Data.ReadAll(c.Request().Context(), file)
	if err != nil {
		logger.Warn("Failed to read data file", "file", file.Path, "err", err)
		return jsonError(c, http.StatusNotFound, "File not found")
	}

	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, content)
}
