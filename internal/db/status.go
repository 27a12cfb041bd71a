package db

const (
	PathJobStatusPending   = "pending"
	PathJobStatusRunning   = "running"
	PathJobStatusCompleted = "completed"
	PathJobStatusFailed    = "failed"
)
