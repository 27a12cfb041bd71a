package timing

import (
	"context"

	"github.com/txgnn-explorer/backend/internal/db"
)

// StatPathGeneration is the stat type of batch meta-path jobs.
const StatPathGeneration = "path_generation"

func AddJobProcessingTime(
	ctx context.Context,
	pairs int64,
	durationMs int64,
	statType string,
	conn db.DBTX,
) error {
	q := db.New(conn)

	return q.AddJobStat(ctx, db.AddJobStatParams{
		Pairs:    int32(pairs),
		Duration: durationMs,
		StatType: statType,
	})
}

// PredictJobProcessingTime estimates the duration in milliseconds of a job
// explaining pairs disease/drug pairs from the recent job history. It
// returns 0 without history.
func PredictJobProcessingTime(ctx context.Context, pairs int64, statType string, conn db.DBTX) (int64, error) {
	if pairs <= 0 {
		return 0, nil
	}
	q := db.New(conn)

	return q.PredictJobDuration(ctx, db.PredictJobDurationParams{
		Pairs:    float64(pairs),
		StatType: statType,
	})
}
