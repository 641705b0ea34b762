package service

import (
	"context"
	"fmt"
	"time"

	"github.com/videoflix/videoflix/internal/domain"
	"github.com/videoflix/videoflix/internal/hls"
	"github.com/videoflix/videoflix/internal/infrastructure/logger"
	"github.com/videoflix/videoflix/internal/port"
)

// EventPublisher decouples the workers from the SSE layer.
type EventPublisher interface {
	Publish(videoID int64, event Event)
}

// WorkerPool consumes transcode jobs from the persisted queue. Each job
// produces one HLS rendition; the video flips to a terminal status only once
// every rendition has finished, and to failed as soon as the last rendition
// lands if any of them failed.
type WorkerPool struct {
	queue      port.JobQueue
	store      port.VideoStore
	transcoder port.Transcoder
	layout     hls.Layout
	eventBus   EventPublisher
	timeout    time.Duration
	workers    int
}

func NewWorkerPool(
	queue port.JobQueue,
	store port.VideoStore,
	transcoder port.Transcoder,
	layout hls.Layout,
	eventBus EventPublisher,
	timeout time.Duration,
	workers int,
) *WorkerPool {
	return &WorkerPool{
		queue:      queue,
		store:      store,
		transcoder: transcoder,
		layout:     layout,
		eventBus:   eventBus,
		timeout:    timeout,
		workers:    workers,
	}
}

func (wp *WorkerPool) Start(ctx context.Context) {
	// Requeue jobs a previous process left running
	if err := wp.queue.ResetStalled(); err != nil {
		logger.Errorf("failed to reset stalled jobs: %v", err)
	}

	for i := range wp.workers {
		go wp.runWorker(ctx, i)
	}
	logger.Infof("started %d transcode workers", wp.workers)
}

func (wp *WorkerPool) runWorker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			logger.Infof("worker %d shutting down", id)
			return
		default:
		}

		job, err := wp.queue.Claim()
		if err != nil {
			logger.Errorf("worker %d: failed to claim job: %v", id, err)
			time.Sleep(2 * time.Second)
			continue
		}

		if job == nil {
			// No pending jobs, wait before polling again
			time.Sleep(500 * time.Millisecond)
			continue
		}

		logger.Infow("processing job", "worker", id, "job_id", job.ID,
			"video_id", job.VideoID, "height", job.Height)
		wp.ProcessJob(ctx, job)
	}
}

// ProcessJob runs one transcode job to a terminal outcome. Encoder and
// filesystem errors never propagate: they end up as a failed variant and,
// once the fan-out set is complete, a failed video.
func (wp *WorkerPool) ProcessJob(ctx context.Context, job *domain.Job) {
	err := wp.transcode(ctx, job)
	if err != nil {
		logger.Errorw("job failed", "job_id", job.ID, "video_id", job.VideoID,
			"height", job.Height, "error", err)
		_ = wp.queue.Fail(job.ID, err.Error())
		wp.markVariant(job, domain.VariantFailed, err.Error())
		return
	}

	_ = wp.queue.Complete(job.ID)
	wp.markVariant(job, domain.VariantDone, "")
}

func (wp *WorkerPool) transcode(ctx context.Context, job *domain.Job) error {
	video, err := wp.store.Get(job.VideoID)
	if err != nil {
		return fmt.Errorf("get video: %w", err)
	}

	variant, err := wp.store.GetVariant(job.VideoID, job.Height)
	if err != nil {
		return fmt.Errorf("get variant: %w", err)
	}
	_ = wp.store.UpdateVariantStatus(variant.ID, domain.VariantProcessing, "")

	outputDir, err := wp.layout.EnsureVariantDir(job.VideoID, job.Height)
	if err != nil {
		return err
	}

	// Bound the encoder runtime so a hung subprocess cannot starve the pool.
	encodeCtx, cancel := context.WithTimeout(ctx, wp.timeout)
	defer cancel()

	if err := wp.transcoder.TranscodeHLS(encodeCtx, video.SourcePath, outputDir, job.Height); err != nil {
		return fmt.Errorf("transcode %dp: %w", job.Height, err)
	}

	if video.ThumbPath == "" {
		wp.generateThumbnail(ctx, video)
	}

	return nil
}

// generateThumbnail extracts a poster frame after the first successful
// rendition. Best effort: the catalog falls back to a derived reference
// when no poster exists.
func (wp *WorkerPool) generateThumbnail(ctx context.Context, video *domain.Video) {
	thumbPath := wp.layout.ThumbnailPath(video.ID)

	thumbCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	if err := wp.transcoder.Thumbnail(thumbCtx, video.SourcePath, thumbPath); err != nil {
		logger.Warnw("thumbnail generation failed", "video_id", video.ID, "error", err)
		return
	}
	if err := wp.store.UpdateThumbPath(video.ID, thumbPath); err != nil {
		logger.Errorw("failed to store thumb path", "video_id", video.ID, "error", err)
	}
}

func (wp *WorkerPool) markVariant(job *domain.Job, status domain.VariantStatus, errMsg string) {
	variant, err := wp.store.GetVariant(job.VideoID, job.Height)
	if err != nil {
		logger.Errorw("failed to get variant for status update",
			"video_id", job.VideoID, "height", job.Height, "error", err)
		return
	}
	if err := wp.store.UpdateVariantStatus(variant.ID, status, errMsg); err != nil {
		logger.Errorw("failed to update variant status", "variant_id", variant.ID, "error", err)
		return
	}
	wp.finalize(job.VideoID)
}

// finalize applies the all-renditions rule: the video completes only when
// every rendition succeeded, and fails as soon as the fan-out set is
// terminal with at least one failure. The store keeps terminal statuses
// sticky, so duplicate deliveries are no-ops.
func (wp *WorkerPool) finalize(videoID int64) {
	video, err := wp.store.Get(videoID)
	if err != nil {
		logger.Errorw("failed to re-fetch video for finalize", "video_id", videoID, "error", err)
		return
	}

	if !video.AllVariantsTerminal() {
		wp.publish(videoID, Event{Status: domain.StatusProcessing})
		return
	}

	if failed := video.FailedVariant(); failed != nil {
		msg := failed.ErrorMessage
		if msg == "" {
			msg = fmt.Sprintf("transcode to %dp failed", failed.Height)
		}
		if err := wp.store.UpdateStatus(videoID, domain.StatusFailed, msg); err != nil {
			logger.Errorw("failed to mark video failed", "video_id", videoID, "error", err)
			return
		}
		wp.publish(videoID, Event{Status: domain.StatusFailed, Message: msg})
		return
	}

	if err := wp.store.UpdateStatus(videoID, domain.StatusCompleted, ""); err != nil {
		logger.Errorw("failed to mark video completed", "video_id", videoID, "error", err)
		return
	}
	logger.Infow("video completed", "video_id", videoID, "renditions", len(video.Variants))
	wp.publish(videoID, Event{Status: domain.StatusCompleted})
}

func (wp *WorkerPool) publish(videoID int64, event Event) {
	if wp.eventBus != nil {
		wp.eventBus.Publish(videoID, event)
	}
}
