package routes

import (
	"encoding/json"
	"net/http"

	"github.com/txgnn-explorer/backend/internal/db"
	"github.com/txgnn-explorer/backend/internal/queue"
	"github.com/txgnn-explorer/backend/internal/server/middleware"
	"github.com/txgnn-explorer/backend/internal/timing"
	"github.com/txgnn-explorer/backend/pkg/logger"
	"github.com/txgnn-explorer/backend/pkg/pathgen"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// CreatePathJobHandler stores a batch meta-path job and queues it for the
// worker. The response is the pending job.
func CreatePathJobHandler(c echo.Context) error {
	params := new(queue.PathJobRequest)
	if err := c.Bind(params); err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid request params")
	}
	if err := c.Validate(params); err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid request params")
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return jsonError(c, http.StatusUnauthorized, "Unauthorized")
	}

	app := appFrom(c)
	ctx := c.Request().Context()

	request, err := json.Marshal(params)
	if err != nil {
		return jsonError(c, http.StatusInternalServerError, "Internal server error")
	}

	pairs := estimatePairs(c, params)
	var estimated pgtype.Int8
	if ms, err := timing.PredictJobProcessingTime(ctx, pairs, timing.StatPathGeneration, app.DBConn); err != nil {
		logger.Warn("Failed to predict job duration", "err", err)
	} else if ms > 0 {
		estimated = pgtype.Int8{Int64: ms, Valid: true}
	}

	id, err := gonanoid.New()
	if err != nil {
		return jsonError(c, http.StatusInternalServerError, "Internal server error")
	}

	q := db.New(app.DBConn)
	job, err := q.CreatePathJob(ctx, db.CreatePathJobParams{
		ID:                id,
		Owner:             user.Subject,
		Request:           request,
		Pairs:             int32(pairs),
		EstimatedDuration: estimated,
	})
	if err != nil {
		logger.Error("Failed to create path job", "err", err)
		return jsonError(c, http.StatusInternalServerError, "Internal server error")
	}

	msg, err := json.Marshal(queue.QueuePathJobMsg{
		Message: "Path job created",
		JobID:   job.ID,
		Request: *params,
	})
	if err != nil {
		return jsonError(c, http.StatusInternalServerError, "Internal server error")
	}
	if err := app.Queue.Publish(queue.PathsQueue, msg); err != nil {
		logger.Error("Failed to queue path job", "job_id", job.ID, "err", err)
		_ = q.FailPathJob(ctx, db.FailPathJobParams{
			ID:           job.ID,
			ErrorMessage: pgtype.Text{String: "failed to queue job", Valid: true},
		})
		return jsonError(c, http.StatusInternalServerError, "Failed to queue job")
	}

	logger.Info("Path job queued", "job_id", job.ID, "owner", user.Subject, "pairs", pairs)
	return c.JSON(http.StatusAccepted, newPathJobResponse(job))
}

// estimatePairs approximates the number of pairs a job explains from the
// number of diseases and drugs per disease.
func estimatePairs(c echo.Context, req *queue.PathJobRequest) int64 {
	topN := req.TopN
	if topN <= 0 {
		topN = pathgen.DefaultTopN
	}
	diseases := len(req.DiseaseIDs)
	if diseases == 0 {
		stats, err := appFrom(c).Graph.Stats(c.Request().Context())
		if err == nil {
			diseases = stats.Diseases
		}
	}
	return int64(diseases) * int64(topN)
}
