package port

import "github.com/videoflix/videoflix/internal/domain"

type VideoStore interface {
	Save(v *domain.Video) error
	Get(id int64) (*domain.Video, error)
	// List returns all videos, newest first.
	List() ([]*domain.Video, error)
	Delete(id int64) error
	// UpdateStatus advances a video's conversion status. Terminal states are
	// never overwritten; updating a terminal video is a no-op.
	UpdateStatus(id int64, status domain.ConversionStatus, errMsg string) error
	UpdateThumbPath(id int64, thumbPath string) error

	GetVariant(videoID int64, height int) (*domain.Variant, error)
	UpdateVariantStatus(id int64, status domain.VariantStatus, errMsg string) error
}
