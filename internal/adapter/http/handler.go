package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/videoflix/videoflix/internal/domain"
	"github.com/videoflix/videoflix/internal/infrastructure/logger"
)

const (
	manifestContentType = "application/vnd.apple.mpegurl"
	segmentContentType  = "video/mp2t"
)

type CatalogService interface {
	Create(title, description, category, originalName string, src io.Reader) (*domain.Video, error)
	Get(id int64) (*domain.Video, error)
	List() ([]*domain.Video, error)
	Delete(id int64) error
}

type StreamService interface {
	OpenManifest(videoID, resolution string) (*os.File, error)
	OpenSegment(videoID, resolution, segment string) (*os.File, error)
	OpenThumbnail(videoID string) (*os.File, error)
}

type Handlers struct {
	catalog   CatalogService
	streams   StreamService
	maxSizeMB int
}

func NewHandlers(catalog CatalogService, streams StreamService, maxSizeMB int) *Handlers {
	return &Handlers{
		catalog:   catalog,
		streams:   streams,
		maxSizeMB: maxSizeMB,
	}
}

// videoEntry is the catalog representation of a video.
type videoEntry struct {
	ID           int64  `json:"id"`
	CreatedAt    string `json:"created_at"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	ThumbnailURL string `json:"thumbnail_url"`
	Category     string `json:"category"`
}

func toEntry(v *domain.Video) videoEntry {
	return videoEntry{
		ID:           v.ID,
		CreatedAt:    v.CreatedAt.UTC().Format(time.RFC3339),
		Title:        v.Title,
		Description:  v.Description,
		ThumbnailURL: v.ThumbnailURL(),
		Category:     v.Category,
	}
}

// ListVideos returns all catalog entries, newest first. Transcode failures
// never hide an entry from the catalog.
func (h *Handlers) ListVideos() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videos, err := h.catalog.List()
		if err != nil {
			logger.Errorf("list videos: %v", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		entries := make([]videoEntry, 0, len(videos))
		for _, v := range videos {
			entries = append(entries, toEntry(v))
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

// VideoDetail returns one entry plus its conversion state and the
// resolutions that are ready to stream.
func (h *Handlers) VideoDetail() http.HandlerFunc {
	type detail struct {
		videoEntry
		ConversionStatus     domain.ConversionStatus `json:"conversion_status"`
		ErrorMessage         string                  `json:"error_message,omitempty"`
		AvailableResolutions []int                   `json:"available_resolutions"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("movie_id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusNotFound, "not found")
			return
		}

		video, err := h.catalog.Get(id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				writeError(w, http.StatusNotFound, "not found")
				return
			}
			logger.Errorf("get video %d: %v", id, err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		heights := video.DoneHeights()
		if heights == nil {
			heights = []int{}
		}
		writeJSON(w, http.StatusOK, detail{
			videoEntry:           toEntry(video),
			ConversionStatus:     video.Status,
			ErrorMessage:         video.ErrorMessage,
			AvailableResolutions: heights,
		})
	}
}

// Upload ingests a source video and schedules its conversion.
func (h *Handlers) Upload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		maxBytes := int64(h.maxSizeMB) * 1024 * 1024
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

		if err := r.ParseMultipartForm(maxBytes); err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}

		file, header, err := r.FormFile("video_file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "missing video_file field")
			return
		}
		defer file.Close() //nolint:errcheck

		video, err := h.catalog.Create(
			r.FormValue("title"),
			r.FormValue("description"),
			r.FormValue("category"),
			header.Filename,
			file,
		)
		if err != nil {
			logger.Errorf("upload %s: %v", logger.SanitizeForLog(header.Filename), err)
			writeError(w, http.StatusInternalServerError, "upload failed")
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{
			"id":                video.ID,
			"title":             video.Title,
			"conversion_status": video.Status,
		})
	}
}

// DeleteVideo removes the catalog entry together with its source file and
// derived HLS tree.
func (h *Handlers) DeleteVideo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("movie_id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusNotFound, "not found")
			return
		}

		if err := h.catalog.Delete(id); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				writeError(w, http.StatusNotFound, "not found")
				return
			}
			logger.Errorf("delete video %d: %v", id, err)
			writeError(w, http.StatusInternalServerError, "delete failed")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// Manifest streams one rendition's playlist.
func (h *Handlers) Manifest() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := h.streams.OpenManifest(r.PathValue("movie_id"), r.PathValue("resolution"))
		if err != nil {
			h.streamError(w, r, err)
			return
		}
		h.serveFile(w, f, manifestContentType)
	}
}

// Segment streams one media segment.
func (h *Handlers) Segment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := h.streams.OpenSegment(
			r.PathValue("movie_id"),
			r.PathValue("resolution"),
			r.PathValue("segment"),
		)
		if err != nil {
			h.streamError(w, r, err)
			return
		}
		h.serveFile(w, f, segmentContentType)
	}
}

// Thumbnail streams the poster image.
func (h *Handlers) Thumbnail() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := h.streams.OpenThumbnail(r.PathValue("movie_id"))
		if err != nil {
			h.streamError(w, r, err)
			return
		}
		h.serveFile(w, f, "image/jpeg")
	}
}

// streamError collapses traversal attempts and genuinely missing files into
// the same response so the API is not an existence oracle.
func (h *Handlers) streamError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrPathEscape) {
		logger.Warnw("path traversal attempt rejected",
			"path", logger.SanitizeForLog(r.URL.Path))
	} else if !errors.Is(err, domain.ErrNotFound) && !os.IsNotExist(err) {
		logger.Errorf("stream open: %v", err)
	}
	writeError(w, http.StatusNotFound, "not found")
}

func (h *Handlers) serveFile(w http.ResponseWriter, f *os.File, contentType string) {
	defer f.Close() //nolint:errcheck

	w.Header().Set("Content-Type", contentType)
	if info, err := f.Stat(); err == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	}
	if _, err := io.Copy(w, f); err != nil {
		logger.Debugf("stream copy interrupted: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
