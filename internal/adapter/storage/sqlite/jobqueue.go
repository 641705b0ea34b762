package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/videoflix/videoflix/internal/domain"
	"github.com/videoflix/videoflix/internal/port"
)

// JobQueue is the persisted transcode queue. Because jobs live in the same
// database as videos, Schedule commits the processing transition and the
// fan-out in one transaction: a worker can never claim a job whose video row
// is not yet durable, and a client can never read pending for a video whose
// jobs are already queued.
type JobQueue struct {
	db *sql.DB
}

func NewJobQueue(store *Store) *JobQueue {
	return &JobQueue{db: store.db}
}

func (q *JobQueue) Schedule(videoID int64, heights []int) error {
	if len(heights) == 0 {
		return fmt.Errorf("schedule video %d: no target heights", videoID)
	}

	tx, err := q.db.Begin()
	if err != nil {
		return fmt.Errorf("begin schedule: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.Exec(`
		UPDATE videos SET status = 'processing'
		WHERE id = ? AND status = 'pending'`,
		videoID,
	)
	if err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("video %d: %w", videoID, domain.ErrInvalidTransition)
	}

	now := time.Now()
	for _, h := range heights {
		if _, err := tx.Exec(`
			INSERT INTO variants (video_id, height, status, created_at)
			VALUES (?, ?, 'pending', ?)`,
			videoID, h, now,
		); err != nil {
			return fmt.Errorf("insert variant %dp: %w", h, err)
		}
		if _, err := tx.Exec(`
			INSERT INTO jobs (video_id, height, status, created_at)
			VALUES (?, ?, 'pending', ?)`,
			videoID, h, now,
		); err != nil {
			return fmt.Errorf("enqueue job %dp: %w", h, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schedule: %w", err)
	}
	return nil
}

const jobColumns = `id, video_id, height, status, error_message, attempts, created_at, started_at, completed_at`

func (q *JobQueue) Claim() (*domain.Job, error) {
	row := q.db.QueryRow(`
		UPDATE jobs
		SET status = 'running', started_at = ?, attempts = attempts + 1
		WHERE id = (SELECT id FROM jobs WHERE status = 'pending' ORDER BY id LIMIT 1)
		RETURNING ` + jobColumns,
		time.Now(),
	)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

func (q *JobQueue) Complete(jobID int64) error {
	_, err := q.db.Exec(`
		UPDATE jobs SET status = 'done', completed_at = ? WHERE id = ?`,
		time.Now(), jobID,
	)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

func (q *JobQueue) Fail(jobID int64, errMsg string) error {
	_, err := q.db.Exec(`
		UPDATE jobs SET status = 'failed', error_message = ?, completed_at = ? WHERE id = ?`,
		errMsg, time.Now(), jobID,
	)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

// ResetStalled requeues jobs a crashed worker left running. Workers overwrite
// prior partial output, so redelivery is safe.
func (q *JobQueue) ResetStalled() error {
	_, err := q.db.Exec(`
		UPDATE jobs SET status = 'pending', started_at = NULL WHERE status = 'running'`)
	if err != nil {
		return fmt.Errorf("reset stalled jobs: %w", err)
	}
	return nil
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var j domain.Job
	var status string
	err := row.Scan(&j.ID, &j.VideoID, &j.Height, &status, &j.ErrorMessage,
		&j.Attempts, &j.CreatedAt, &j.StartedAt, &j.CompletedAt)
	if err != nil {
		return nil, err
	}
	j.Status = domain.JobStatus(status)
	return &j, nil
}

var _ port.JobQueue = (*JobQueue)(nil)
