package domain

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type ConversionStatus string

const (
	StatusPending    ConversionStatus = "pending"
	StatusProcessing ConversionStatus = "processing"
	StatusCompleted  ConversionStatus = "completed"
	StatusFailed     ConversionStatus = "failed"
)

// IsTerminal reports whether the status can never change again.
func (s ConversionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether moving from s to next is a legal step of the
// conversion lifecycle: pending -> processing -> {completed|failed}.
func (s ConversionStatus) CanTransition(next ConversionStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing || next == StatusFailed
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

type VariantStatus string

const (
	VariantPending    VariantStatus = "pending"
	VariantProcessing VariantStatus = "processing"
	VariantDone       VariantStatus = "done"
	VariantFailed     VariantStatus = "failed"
)

// Variant is one resolution rendition of a video. Each variant owns the
// hls/{video_id}/{height}p directory on disk.
type Variant struct {
	ID           int64         `json:"id"`
	VideoID      int64         `json:"video_id"`
	Height       int           `json:"height"`
	Status       VariantStatus `json:"status"`
	ErrorMessage string        `json:"error_message"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Video is one uploaded source asset plus its conversion lifecycle.
// SourcePath is immutable after creation; a re-upload creates a new record.
type Video struct {
	ID           int64            `json:"id"`
	Title        string           `json:"title"`
	Description  string           `json:"description"`
	Category     string           `json:"category"`
	SourcePath   string           `json:"-"`
	ThumbPath    string           `json:"-"`
	Status       ConversionStatus `json:"conversion_status"`
	ErrorMessage string           `json:"error_message,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	Variants     []Variant        `json:"variants,omitempty"`
}

func NewVideo(title, description, category, sourcePath string) *Video {
	return &Video{
		Title:       title,
		Description: description,
		Category:    category,
		SourcePath:  sourcePath,
		Status:      StatusPending,
		CreatedAt:   time.Now(),
	}
}

// MarkProcessing advances the video into the processing state.
func (v *Video) MarkProcessing() error {
	if !v.Status.CanTransition(StatusProcessing) {
		return ErrInvalidTransition
	}
	v.Status = StatusProcessing
	return nil
}

// MarkCompleted advances the video into the terminal completed state.
func (v *Video) MarkCompleted() error {
	if !v.Status.CanTransition(StatusCompleted) {
		return ErrInvalidTransition
	}
	v.Status = StatusCompleted
	v.ErrorMessage = ""
	return nil
}

// MarkFailed advances the video into the terminal failed state, recording
// the cause. A failed video always carries a non-empty error message.
func (v *Video) MarkFailed(msg string) error {
	if !v.Status.CanTransition(StatusFailed) {
		return ErrInvalidTransition
	}
	if msg == "" {
		msg = "transcode failed"
	}
	v.Status = StatusFailed
	v.ErrorMessage = msg
	return nil
}

// AllVariantsTerminal reports whether every variant finished, one way or
// the other. False when the video has no variants at all.
func (v *Video) AllVariantsTerminal() bool {
	if len(v.Variants) == 0 {
		return false
	}
	for _, vr := range v.Variants {
		if vr.Status != VariantDone && vr.Status != VariantFailed {
			return false
		}
	}
	return true
}

// FailedVariant returns the first failed variant, or nil.
func (v *Video) FailedVariant() *Variant {
	for i := range v.Variants {
		if v.Variants[i].Status == VariantFailed {
			return &v.Variants[i]
		}
	}
	return nil
}

// DoneHeights lists the heights of successfully converted variants,
// in the order the variants were scheduled.
func (v *Video) DoneHeights() []int {
	var heights []int
	for _, vr := range v.Variants {
		if vr.Status == VariantDone {
			heights = append(heights, vr.Height)
		}
	}
	return heights
}

// ThumbnailURL maps a video to its catalog thumbnail reference with a fixed
// fallback order: explicit poster asset, then the source-name .jpg heuristic,
// then absent (empty string).
func (v *Video) ThumbnailURL() string {
	if v.ThumbPath != "" {
		return "/video/" + strconv.FormatInt(v.ID, 10) + "/thumbnail.jpg"
	}
	if v.SourcePath != "" {
		base := filepath.Base(v.SourcePath)
		if i := strings.LastIndex(base, "."); i > 0 {
			return "/media/videos/" + base[:i] + ".jpg"
		}
	}
	return ""
}
