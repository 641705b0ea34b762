package service

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/videoflix/videoflix/internal/domain"
	"github.com/videoflix/videoflix/internal/hls"
	"github.com/videoflix/videoflix/internal/infrastructure/logger"
	"github.com/videoflix/videoflix/internal/port"
)

// CatalogService owns the video catalog: ingesting uploads, listing, and
// deletion. Conversion itself happens in the worker pool; creation only
// persists the source and schedules the per-resolution fan-out.
type CatalogService struct {
	store   port.VideoStore
	queue   port.JobQueue
	layout  hls.Layout
	heights []int
}

func NewCatalogService(store port.VideoStore, queue port.JobQueue, layout hls.Layout, heights []int) *CatalogService {
	return &CatalogService{
		store:   store,
		queue:   queue,
		layout:  layout,
		heights: heights,
	}
}

// Create stores the uploaded source file, persists the catalog entry and
// schedules one transcode job per configured resolution. The returned video
// is already in the processing state: scheduling commits the status change
// together with the enqueue, so clients never observe a pending video whose
// jobs are dispatched.
func (s *CatalogService) Create(title, description, category, originalName string, src io.Reader) (*domain.Video, error) {
	if err := s.layout.EnsureSourceDir(); err != nil {
		return nil, fmt.Errorf("create source directory: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	sourcePath := filepath.Join(s.layout.SourceDir(), uuid.New().String()+ext)

	dst, err := os.Create(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("create source file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(sourcePath)
		return nil, fmt.Errorf("write source file: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(sourcePath)
		return nil, fmt.Errorf("close source file: %w", err)
	}

	if title == "" {
		title = strings.TrimSuffix(filepath.Base(originalName), ext)
	}

	video := domain.NewVideo(title, description, category, sourcePath)
	if err := s.store.Save(video); err != nil {
		_ = os.Remove(sourcePath)
		return nil, fmt.Errorf("save video: %w", err)
	}

	if err := s.queue.Schedule(video.ID, s.heights); err != nil {
		// The row exists but no jobs do; leave a terminal failure instead
		// of a video stuck in pending forever.
		_ = s.store.UpdateStatus(video.ID, domain.StatusFailed, "scheduling failed: "+err.Error())
		return nil, fmt.Errorf("schedule transcode: %w", err)
	}
	video.Status = domain.StatusProcessing

	logger.Infow("video created",
		"video_id", video.ID,
		"title", logger.SanitizeForLog(video.Title),
		"resolutions", s.heights,
	)
	return video, nil
}

func (s *CatalogService) Get(id int64) (*domain.Video, error) {
	return s.store.Get(id)
}

// List returns catalog entries newest first. Failed videos are listed like
// any other; they are simply not streamable.
func (s *CatalogService) List() ([]*domain.Video, error) {
	return s.store.List()
}

// Delete removes the catalog entry, the source file and the entire derived
// HLS tree for the video.
func (s *CatalogService) Delete(id int64) error {
	video, err := s.store.Get(id)
	if err != nil {
		return err
	}

	if err := s.store.Delete(id); err != nil {
		return err
	}

	if video.SourcePath != "" {
		if err := os.Remove(video.SourcePath); err != nil && !os.IsNotExist(err) {
			logger.Warnw("failed to remove source file", "video_id", id, "error", err)
		}
	}
	if err := s.layout.RemoveVideoTree(id); err != nil {
		logger.Warnw("failed to remove derived output", "video_id", id, "error", err)
	}

	logger.Infow("video deleted", "video_id", id)
	return nil
}
