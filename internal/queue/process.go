package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/txgnn-explorer/backend/internal/db"
	"github.com/txgnn-explorer/backend/internal/storage"
	"github.com/txgnn-explorer/backend/internal/timing"
	"github.com/txgnn-explorer/backend/pkg/graph"
	"github.com/txgnn-explorer/backend/pkg/leaselock"
	"github.com/txgnn-explorer/backend/pkg/logger"
	"github.com/txgnn-explorer/backend/pkg/pathgen"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PathJobEnv holds what the worker loads once at startup.
type PathJobEnv struct {
	// Engine is loaded without CYP genes.
	Engine  *graph.Engine
	Results storage.ResultStore
	Workers int
}

// PathJobResult summarises a finished job.
type PathJobResult struct {
	Key   string
	Pairs int
	Rows  int
}

// RunPathJob generates the meta-path table for req and stores it under the
// job's result key.
func RunPathJob(ctx context.Context, env PathJobEnv, jobID string, req PathJobRequest) (PathJobResult, error) {
	e := env.Engine
	pairs := pathgen.CandidatePairs(e.Predictions(), req.DiseaseIDs, e.KnownDrugs, req.TopN)
	logger.Info("[Queue] Generating meta paths", "job_id", jobID, "pairs", len(pairs))

	rows, err := pathgen.Generate(ctx, e.Graph(), pairs, pathgen.Options{
		MaxDepth:   req.MaxDepth,
		Layer:      req.Layer,
		Enrichment: req.Enrichment,
		Workers:    env.Workers,
	})
	if err != nil {
		return PathJobResult{}, err
	}

	var buf bytes.Buffer
	if err := pathgen.WriteCSV(&buf, rows); err != nil {
		return PathJobResult{}, fmt.Errorf("write result table: %w", err)
	}

	key := storage.ResultKey(jobID)
	if err := env.Results.Put(ctx, key, bytes.NewReader(buf.Bytes())); err != nil {
		return PathJobResult{}, fmt.Errorf("store result: %w", err)
	}

	return PathJobResult{Key: key, Pairs: len(pairs), Rows: len(rows)}, nil
}

// ProcessPathJob runs one queued path job under its lease. A job that is
// already held by another worker, or no longer exists, is skipped.
func ProcessPathJob(
	ctx context.Context,
	env PathJobEnv,
	conn *pgxpool.Pool,
	msg string,
) (err error) {
	var data QueuePathJobMsg
	if err = json.Unmarshal([]byte(msg), &data); err != nil {
		return err
	}
	if data.JobID == "" {
		logger.Warn("[Queue] Dropping path job message without id")
		return nil
	}

	lockClient := leaselock.New(conn)
	lease, err := lockClient.Acquire(ctx, leaselock.JobKey(data.JobID), leaselock.Options{
		TTL:        10 * time.Minute,
		RenewEvery: 4 * time.Minute,
		Owner:      "path-job/" + data.JobID + "/",
	})
	if errors.Is(err, leaselock.ErrBusy) {
		logger.Info("[Queue] Path job is already running elsewhere", "job_id", data.JobID)
		return nil
	}
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := lease.Release(context.Background()); releaseErr != nil {
			logger.Warn("[Queue] Failed to release job lease", "job_id", data.JobID, "err", releaseErr)
		}
	}()

	q := db.New(conn)
	if _, err = q.MarkPathJobRunning(lease.Context, data.JobID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			logger.Info("[Queue] Path job finished or deleted, skipping", "job_id", data.JobID)
			return nil
		}
		return err
	}

	defer func() {
		if err == nil {
			return
		}
		updateCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if updateErr := q.FailPathJob(updateCtx, db.FailPathJobParams{
			ID:           data.JobID,
			ErrorMessage: pgtype.Text{String: err.Error(), Valid: true},
		}); updateErr != nil {
			logger.Warn("[Queue] Failed to mark path job as failed", "job_id", data.JobID, "err", updateErr)
		}
	}()

	start := time.Now()
	result, err := RunPathJob(lease.Context, env, data.JobID, data.Request)
	if err != nil {
		return err
	}
	duration := time.Since(start)

	if statErr := timing.AddJobProcessingTime(ctx, int64(result.Pairs), duration.Milliseconds(), timing.StatPathGeneration, conn); statErr != nil {
		logger.Warn("[Queue] Failed to record job duration", "job_id", data.JobID, "err", statErr)
	}

	err = q.CompletePathJob(ctx, db.CompletePathJobParams{
		ID:        data.JobID,
		ResultKey: pgtype.Text{String: result.Key, Valid: true},
	})
	if err != nil {
		return err
	}

	logger.Info("[Queue] Path job completed", "job_id", data.JobID, "pairs", result.Pairs, "rows", result.Rows, "duration", duration)
	return nil
}
