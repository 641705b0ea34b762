package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/videoflix/videoflix/internal/domain"
	"github.com/videoflix/videoflix/internal/service"
)

// SSEHandler streams conversion progress so clients don't have to poll the
// detail endpoint while a video converts.
type SSEHandler struct {
	eventBus *service.EventBus
	catalog  CatalogService
}

func NewSSEHandler(eventBus *service.EventBus, catalog CatalogService) *SSEHandler {
	return &SSEHandler{
		eventBus: eventBus,
		catalog:  catalog,
	}
}

// sseWrite writes one SSE event with a JSON payload.
func sseWrite(w http.ResponseWriter, event service.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: status\ndata: %s\n\n", data)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func sendKeepAlive(w http.ResponseWriter) {
	_, _ = fmt.Fprint(w, ": keep-alive\n\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func (h *SSEHandler) Events() http.HandlerFunc {
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
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		// Send current state first; terminal videos get one event and done.
		sseWrite(w, service.Event{Status: video.Status, Message: video.ErrorMessage})
		if video.Status.IsTerminal() {
			return
		}

		ch := h.eventBus.Subscribe(id)
		defer h.eventBus.Unsubscribe(id, ch)

		ctx := r.Context()
		keepAlive := time.NewTicker(15 * time.Second)
		defer keepAlive.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-keepAlive.C:
				sendKeepAlive(w)
			case event, ok := <-ch:
				if !ok {
					return
				}
				sseWrite(w, event)
				if event.Status.IsTerminal() {
					return
				}
			}
		}
	}
}
