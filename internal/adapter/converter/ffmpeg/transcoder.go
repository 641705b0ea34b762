package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/videoflix/videoflix/internal/hls"
	"github.com/videoflix/videoflix/internal/port"
)

var (
	ErrEmptyPath   = errors.New("empty path")
	ErrInvalidPath = errors.New("path contains invalid characters")
)

// stderr grows unbounded on long encodes; keep only the tail for the
// stored error message.
const maxStderrBytes = 4096

// Transcoder drives the ffmpeg binary as a subprocess. One invocation
// produces one complete VOD rendition: a static playlist numbering segments
// from 0 plus the segment files alongside it.
type Transcoder struct {
	segmentSeconds int
}

func NewTranscoder(segmentSeconds int) *Transcoder {
	return &Transcoder{segmentSeconds: segmentSeconds}
}

func (t *Transcoder) TranscodeHLS(ctx context.Context, inputPath, outputDir string, height int) error {
	if err := validatePath(inputPath); err != nil {
		return fmt.Errorf("input path: %w", err)
	}
	if err := validatePath(outputDir); err != nil {
		return fmt.Errorf("output dir: %w", err)
	}
	if height <= 0 {
		return fmt.Errorf("invalid target height %d", height)
	}

	manifestPath := filepath.Join(outputDir, hls.ManifestName)

	// Width -2 keeps the aspect ratio and rounds to an even value, which
	// libx264 requires.
	args := []string{
		"-i", inputPath,
		"-vf", fmt.Sprintf("scale=-2:%d", height),
		"-start_number", "0",
		"-hls_time", strconv.Itoa(t.segmentSeconds),
		"-hls_list_size", "0",
		"-f", "hls",
		"-y", manifestPath,
	}

	return runFFmpeg(ctx, args)
}

func (t *Transcoder) Thumbnail(ctx context.Context, inputPath, outputPath string) error {
	if err := validatePath(inputPath); err != nil {
		return fmt.Errorf("input path: %w", err)
	}
	if err := validatePath(outputPath); err != nil {
		return fmt.Errorf("output path: %w", err)
	}

	args := []string{
		"-i", inputPath,
		"-vframes", "1",
		"-ss", "00:00:01",
		"-f", "image2",
		"-y", outputPath,
	}

	return runFFmpeg(ctx, args)
}

func runFFmpeg(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}

	if ctx.Err() != nil {
		return fmt.Errorf("ffmpeg: %w", ctx.Err())
	}

	return fmt.Errorf("ffmpeg: %w: %s", err, stderrTail(stderr.Bytes()))
}

func stderrTail(out []byte) string {
	if len(out) > maxStderrBytes {
		out = out[len(out)-maxStderrBytes:]
	}
	return strings.TrimSpace(string(out))
}

func validatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if strings.ContainsRune(path, '\x00') {
		return ErrInvalidPath
	}
	return nil
}

var _ port.Transcoder = (*Transcoder)(nil)
