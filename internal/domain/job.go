package domain

import (
	"database/sql"
	"time"
)

type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Job is one unit of transcode work: produce the HLS rendition of a single
// video at a single target height. The scheduler fans out one job per
// configured height when a video is created.
type Job struct {
	ID           int64
	VideoID      int64
	Height       int
	Status       JobStatus
	ErrorMessage string
	Attempts     int64
	CreatedAt    time.Time
	StartedAt    sql.NullTime
	CompletedAt  sql.NullTime
}
