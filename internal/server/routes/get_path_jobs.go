package routes

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/txgnn-explorer/backend/internal/db"
	"github.com/txgnn-explorer/backend/internal/queue"
	"github.com/txgnn-explorer/backend/internal/server/middleware"
	"github.com/txgnn-explorer/backend/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
)

type pathJobResponse struct {
	ID                string               `json:"id"`
	Owner             string               `json:"owner"`
	Status            string               `json:"status"`
	Request           queue.PathJobRequest `json:"request"`
	Pairs             int32                `json:"pairs"`
	Error             string               `json:"error,omitempty"`
	EstimatedDuration int64                `json:"estimated_duration_ms,omitempty"`
	DownloadURL       string               `json:"download_url,omitempty"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

func newPathJobResponse(job db.PathJob) pathJobResponse {
	res := pathJobResponse{
		ID:        job.ID,
		Owner:     job.Owner,
		Status:    job.Status,
		Pairs:     job.Pairs,
		CreatedAt: job.CreatedAt.Time,
		UpdatedAt: job.UpdatedAt.Time,
	}
	if len(job.Request) > 0 {
		_ = json.Unmarshal(job.Request, &res.Request)
	}
	if job.ErrorMessage.Valid {
		res.Error = job.ErrorMessage.String
	}
	if job.EstimatedDuration.Valid {
		res.EstimatedDuration = job.EstimatedDuration.Int64
	}
	return res
}

func canViewJob(user *middleware.AppUser, job db.PathJob) bool {
	return middleware.HasPermission(user, middleware.PermissionJobViewAll) || job.Owner == user.Subject
}

func GetPathJobsHandler(c echo.Context) error {
	type getPathJobsParams struct {
		Limit int32 `query:"limit" validate:"gte=0,lte=500"`
	}

	params := new(getPathJobsParams)
	if err := c.Bind(params); err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid request params")
	}
	if err := c.Validate(params); err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid request params")
	}
	if params.Limit == 0 {
		params.Limit = 50
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return jsonError(c, http.StatusUnauthorized, "Unauthorized")
	}

	ctx := c.Request().Context()
	q := db.New(appFrom(c).DBConn)

	var (
		jobs []db.PathJob
		err  error
	)
	if middleware.HasPermission(user, middleware.PermissionJobViewAll) {
		jobs, err = q.ListPathJobs(ctx, params.Limit)
	} else {
		jobs, err = q.ListPathJobsForOwner(ctx, db.ListPathJobsForOwnerParams{
			Owner: user.Subject,
			Limit: params.Limit,
		})
	}
	if err != nil {
		logger.Error("Failed to list path jobs", "err", err)
		return jsonError(c, http.StatusInternalServerError, "Internal server error")
	}

	res := make([]pathJobResponse, 0, len(jobs))
	for _, job := range jobs {
		res = append(res, newPathJobResponse(job))
	}
	return c.JSON(http.StatusOK, res)
}

// GetPathJobHandler returns a job; finished jobs carry a download link when
// results live in S3.
func GetPathJobHandler(c echo.Context) error {
	job, err := loadJob(c)
	if err != nil || job == nil {
		return err
	}

	res := newPathJobResponse(*job)
	if job.Status == db.PathJobStatusCompleted && job.ResultKey.Valid {
		link, err := appFrom(c).Results.Link(c.Request().Context(), job.ResultKey.String)
		if err != nil {
			logger.Warn("Failed to create download link", "job_id", job.ID, "err", err)
		}
		res.DownloadURL = link
		if link == "" {
			res.DownloadURL = "/api/path_jobs/" + job.ID + "/result"
		}
	}

	return c.JSON(http.StatusOK, res)
}

// GetPathJobResultHandler streams the result table of a completed job.
func GetPathJobResultHandler(c echo.Context) error {
	job, err := loadJob(c)
	if err != nil || job == nil {
		return err
	}
	if job.Status != db.PathJobStatusCompleted || !job.ResultKey.Valid {
		return jsonError(c, http.StatusConflict, "Job has no result yet")
	}

	rc, err := appFrom(c).Results.Open(c.Request().Context(), job.ResultKey.String)
	if err != nil {
		logger.Error("Failed to open job result", "job_id", job.ID, "err", err)
		return jsonError(c, http.StatusNotFound, "Result not found")
	}
	defer rc.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+job.ID+`.csv"`)
	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().WriteHeader(http.StatusOK)
	_, err = io.Copy(c.Response(), rc)
	return err
}

// loadJob reads the job named by the id path param and checks the user may
// see it. On failure the response is written and a nil job is returned.
func loadJob(c echo.Context) (*db.PathJob, error) {
	type pathJobParams struct {
		ID string `param:"id" validate:"required,max=64"`
	}

	params := new(pathJobParams)
	if err := c.Bind(params); err != nil {
		return nil, jsonError(c, http.StatusBadRequest, "Invalid request params")
	}
	if err := c.Validate(params); err != nil {
		return nil, jsonError(c, http.StatusBadRequest, "Invalid request params")
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return nil, jsonError(c, http.StatusUnauthorized, "Unauthorized")
	}

	job, err := db.New(appFrom(c).DBConn).GetPathJob(c.Request().Context(), params.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, jsonError(c, http.StatusNotFound, "Job not found")
	}
	if err != nil {
		logger.Error("Failed to get path job", "job_id", params.ID, "err", err)
		return nil, jsonError(c, http.StatusInternalServerError, "Internal server error")
	}
	if !canViewJob(user, job) {
		return nil, jsonError(c, http.StatusNotFound, "Job not found")
	}

	return &job, nil
}
