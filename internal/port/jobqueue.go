package port

import "github.com/videoflix/videoflix/internal/domain"

type JobQueue interface {
	// Schedule flips the video to processing and enqueues one transcode job
	// per height, all in a single commit. Jobs only become visible to
	// workers once the commit lands, so a claimed job always references a
	// durable video row.
	Schedule(videoID int64, heights []int) error
	// Claim atomically takes the oldest pending job, or returns nil when
	// the queue is empty.
	Claim() (*domain.Job, error)
	Complete(jobID int64) error
	Fail(jobID int64, errMsg string) error
	// ResetStalled requeues jobs left running by a crashed worker.
	ResetStalled() error
}
