package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/txgnn-explorer/backend/internal/db"
	"github.com/txgnn-explorer/backend/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rabbitmq/amqp091-go"
)

// StaleAfter is how long a job may stay pending or running before it is
// republished on worker start.
const StaleAfter = 30 * time.Minute

// RecoverStalePathJobs republishes jobs whose message was lost, e.g. because
// a worker died while running them.
func RecoverStalePathJobs(
	ctx context.Context,
	ch *amqp091.Channel,
	conn *pgxpool.Pool,
) error {
	q := db.New(conn)

	staleJobs, err := q.GetStalePathJobs(ctx, int64(StaleAfter.Seconds()))
	if err != nil {
		return fmt.Errorf("failed to get stale path jobs: %w", err)
	}

	if len(staleJobs) == 0 {
		logger.Debug("[Queue] No stale path jobs found")
		return nil
	}

	logger.Info("[Queue] Found stale path jobs", "count", len(staleJobs))

	for _, job := range staleJobs {
		msgBytes, err := RecoveryMessage(job)
		if err != nil {
			logger.Error("[Queue] Failed to build recovery message", "job_id", job.ID, "err", err)
			continue
		}

		if err := q.ResetPathJobToPending(ctx, job.ID); err != nil {
			logger.Error("[Queue] Failed to reset path job status", "job_id", job.ID, "err", err)
			continue
		}

		if err := PublishFIFO(ch, PathsQueue, msgBytes); err != nil {
			logger.Error("[Queue] Failed to republish path job", "job_id", job.ID, "err", err)
			continue
		}

		logger.Info("[Queue] Recovered stale path job", "job_id", job.ID)
	}

	return nil
}

// RecoveryMessage rebuilds the queue message of a stored job.
func RecoveryMessage(job db.PathJob) ([]byte, error) {
	var req PathJobRequest
	if len(job.Request) > 0 {
		if err := json.Unmarshal(job.Request, &req); err != nil {
			return nil, err
		}
	}
	return json.Marshal(QueuePathJobMsg{
		Message: "Recovered stale path job",
		JobID:   job.ID,
		Request: req,
	})
}

// ResetJobStatusForRetry shows a failed job as pending again while its
// message waits in the retry queue.
func ResetJobStatusForRetry(
	ctx context.Context,
	conn *pgxpool.Pool,
	queueName string,
	msgBody []byte,
) {
	if queueName != PathsQueue {
		return
	}
	var data QueuePathJobMsg
	if err := json.Unmarshal(msgBody, &data); err != nil || data.JobID == "" {
		return
	}
	_ = db.New(conn).ResetPathJobToPending(ctx, data.JobID)
}
