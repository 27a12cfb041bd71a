package routes

import (
	"net/http"

	"github.com/txgnn-explorer/backend/pkg/common"
	"github.com/txgnn-explorer/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

// GetDrugPredictionsHandler returns the best predicted drugs of a disease.
// A missing disease id yields an empty list.
func GetDrugPredictionsHandler(c echo.Context) error {
	type getDrugPredictionsParams struct {
		DiseaseID string `query:"disease_id"`
		N         int    `query:"n" validate:"gte=0,lte=10000"`
	}

	params := new(getDrugPredictionsParams)
	if err := c.Bind(params); err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid request params")
	}
	if err := c.Validate(params); err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid request params")
	}

	if params.DiseaseID == "" {
		logger.Warn("Drug predictions requested without disease id")
		return c.JSON(http.StatusOK, []common.DrugPrediction{})
	}

	app := appFrom(c)
	predictions, err := app.Graph.QueryPredictedDrugs(c.Request().Context(), params.DiseaseID, params.N)
	if err != nil {
		logger.Error("Failed to query drug predictions", "disease_id", params.DiseaseID, "err", err)
		return jsonError(c, http.StatusInternalServerError, "Internal server error")
	}
	if predictions == nil {
		predictions = []common.DrugPrediction{}
	}

	logger.Debug("Returning drug predictions", "disease_id", params.DiseaseID, "count", len(predictions))
	return c.JSON(http.StatusOK, predictions)
}
