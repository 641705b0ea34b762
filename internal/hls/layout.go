package hls

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	// ManifestName is the playlist filename inside every rendition directory.
	ManifestName = "index.m3u8"
	// ThumbnailName is the poster image filename inside hls/{id}.
	ThumbnailName = "thumbnail.jpg"

	hlsDir    = "hls"
	sourceDir = "videos"
)

// Layout defines the on-disk convention for uploaded sources and derived
// HLS output: root/videos/{file} for sources and
// root/hls/{video_id}/{height}p/index.m3u8 plus sibling segments for output.
type Layout struct {
	Root string
}

func NewLayout(root string) Layout {
	return Layout{Root: filepath.Clean(root)}
}

// SourceDir returns the directory holding uploaded source files.
func (l Layout) SourceDir() string {
	return filepath.Join(l.Root, sourceDir)
}

// VideoDir returns the directory holding all derived output for one video.
func (l Layout) VideoDir(videoID int64) string {
	return filepath.Join(l.Root, hlsDir, strconv.FormatInt(videoID, 10))
}

// VariantDir returns the rendition directory for one (video, height) pair.
// Each pair owns its directory exclusively, so concurrent workers never
// contend on the same path.
func (l Layout) VariantDir(videoID int64, height int) string {
	return filepath.Join(l.VideoDir(videoID), fmt.Sprintf("%dp", height))
}

// ManifestPath returns the playlist path for one rendition.
func (l Layout) ManifestPath(videoID int64, height int) string {
	return filepath.Join(l.VariantDir(videoID, height), ManifestName)
}

// ThumbnailPath returns the poster image path for one video.
func (l Layout) ThumbnailPath(videoID int64) string {
	return filepath.Join(l.VideoDir(videoID), ThumbnailName)
}

// EnsureSourceDir creates the upload directory if missing.
func (l Layout) EnsureSourceDir() error {
	return os.MkdirAll(l.SourceDir(), 0755)
}

// EnsureVariantDir creates the rendition directory. Safe to call
// concurrently and repeatedly for the same pair.
func (l Layout) EnsureVariantDir(videoID int64, height int) (string, error) {
	dir := l.VariantDir(videoID, height)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create rendition directory: %w", err)
	}
	return dir, nil
}

// RemoveVideoTree deletes every derived artifact for a video. Deleting a
// video must not leave orphaned renditions behind.
func (l Layout) RemoveVideoTree(videoID int64) error {
	if err := os.RemoveAll(l.VideoDir(videoID)); err != nil {
		return fmt.Errorf("remove video tree: %w", err)
	}
	return nil
}
