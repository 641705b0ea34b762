package service

import (
	"os"

	"github.com/videoflix/videoflix/internal/hls"
)

// StreamingService is the read side of the HLS tree. All lookups funnel
// through the layout's resolver so that manifest, segment and thumbnail
// requests share one path-containment check.
type StreamingService struct {
	layout hls.Layout
}

func NewStreamingService(layout hls.Layout) *StreamingService {
	return &StreamingService{layout: layout}
}

// OpenManifest opens the playlist for one rendition. videoID and resolution
// are untrusted path segments straight from the URL.
func (s *StreamingService) OpenManifest(videoID, resolution string) (*os.File, error) {
	return s.open(videoID, resolution, hls.ManifestName)
}

// OpenSegment opens one media segment of a rendition.
func (s *StreamingService) OpenSegment(videoID, resolution, segment string) (*os.File, error) {
	return s.open(videoID, resolution, segment)
}

// OpenThumbnail opens the poster image for a video.
func (s *StreamingService) OpenThumbnail(videoID string) (*os.File, error) {
	return s.open(videoID, hls.ThumbnailName)
}

func (s *StreamingService) open(segments ...string) (*os.File, error) {
	path, err := s.layout.Resolve(segments...)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}
