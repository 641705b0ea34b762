package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sqlitestore "github.com/videoflix/videoflix/internal/adapter/storage/sqlite"
	"github.com/videoflix/videoflix/internal/domain"
	"github.com/videoflix/videoflix/internal/hls"
	"github.com/videoflix/videoflix/internal/service"
)

type testApp struct {
	server  *Server
	store   *sqlitestore.Store
	queue   *sqlitestore.JobQueue
	layout  hls.Layout
	catalog *service.CatalogService
	tokens  *service.TokenService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	root := t.TempDir()

	store, err := sqlitestore.NewStore(root)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	layout := hls.NewLayout(root)
	queue := sqlitestore.NewJobQueue(store)
	catalog := service.NewCatalogService(store, queue, layout, []int{360, 480, 720, 1080})
	streams := service.NewStreamingService(layout)
	tokens := service.NewTokenService("test-secret")
	eventBus := service.NewEventBus()

	return &testApp{
		server:  NewServer(tokens, catalog, streams, eventBus, 10),
		store:   store,
		queue:   queue,
		layout:  layout,
		catalog: catalog,
		tokens:  tokens,
	}
}

func (a *testApp) request(t *testing.T, method, target string, body *bytes.Buffer, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, target, body)
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	if authed {
		token, err := a.tokens.Sign(1, "viewer@example.com", time.Hour)
		require.NoError(t, err)
		r.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	}
	w := httptest.NewRecorder()
	a.server.ServeHTTP(w, r)
	return w
}

func (a *testApp) seedVideo(t *testing.T, title string) *domain.Video {
	t.Helper()
	v := domain.NewVideo(title, "desc", "drama", filepath.Join(a.layout.SourceDir(), title+".mp4"))
	require.NoError(t, a.store.Save(v))
	return v
}

func (a *testApp) seedRendition(t *testing.T, videoID int64, height int) {
	t.Helper()
	dir, err := a.layout.EnsureVariantDir(videoID, height)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, hls.ManifestName),
		[]byte("#EXTM3U\n#EXTINF:10.0,\nindex0.ts\n#EXT-X-ENDLIST\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index0.ts"), []byte("segment-bytes"), 0644))
}

func TestUnauthenticatedRequestsAreRejected(t *testing.T) {
	app := newTestApp(t)
	v := app.seedVideo(t, "hidden")
	app.seedRendition(t, v.ID, 360)

	targets := []string{
		"/video/",
		fmt.Sprintf("/video/%d/", v.ID),
		fmt.Sprintf("/video/%d/360p/index.m3u8", v.ID),
		fmt.Sprintf("/video/%d/360p/index0.ts/", v.ID),
		fmt.Sprintf("/video/%d/thumbnail.jpg", v.ID),
	}

	for _, target := range targets {
		t.Run(target, func(t *testing.T) {
			w := app.request(t, http.MethodGet, target, nil, false)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.NotContains(t, w.Body.String(), "hidden", "no catalog content leaks")
			assert.NotContains(t, w.Body.String(), "EXTM3U", "no file content leaks")
		})
	}
}

func TestInvalidTokenIsRejected(t *testing.T) {
	app := newTestApp(t)

	r := httptest.NewRequest(http.MethodGet, "/video/", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: "forged-token"})
	w := httptest.NewRecorder()
	app.server.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListVideos(t *testing.T) {
	app := newTestApp(t)
	app.seedVideo(t, "older")
	app.seedVideo(t, "newer")

	w := app.request(t, http.MethodGet, "/video/", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var entries []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "newer", entries[0]["title"])
	assert.Equal(t, "older", entries[1]["title"])
	assert.Equal(t, "drama", entries[0]["category"])
	assert.Contains(t, entries[0], "thumbnail_url")
	assert.Contains(t, entries[0], "created_at")
}

func TestListVideos_IncludesFailedVideos(t *testing.T) {
	app := newTestApp(t)
	v := app.seedVideo(t, "broken")
	require.NoError(t, app.store.UpdateStatus(v.ID, domain.StatusProcessing, ""))
	require.NoError(t, app.store.UpdateStatus(v.ID, domain.StatusFailed, "encoder exit 1"))

	w := app.request(t, http.MethodGet, "/video/", nil, true)
	require.Equal(t, http.StatusOK, w.Code)

	var entries []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "broken", entries[0]["title"])
}

func TestGetManifest(t *testing.T) {
	app := newTestApp(t)
	v := app.seedVideo(t, "clip")
	app.seedRendition(t, v.ID, 720)

	w := app.request(t, http.MethodGet, fmt.Sprintf("/video/%d/720p/index.m3u8", v.ID), nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/vnd.apple.mpegurl", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "#EXTM3U")
}

func TestGetSegment(t *testing.T) {
	app := newTestApp(t)
	v := app.seedVideo(t, "clip")
	app.seedRendition(t, v.ID, 720)

	w := app.request(t, http.MethodGet, fmt.Sprintf("/video/%d/720p/index0.ts/", v.ID), nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "video/mp2t", w.Header().Get("Content-Type"))
	assert.Equal(t, "segment-bytes", w.Body.String())
}

func TestManifest_NotFound(t *testing.T) {
	app := newTestApp(t)

	w := app.request(t, http.MethodGet, "/video/9999/720p/index.m3u8", nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTraversalCollapsesToNotFound(t *testing.T) {
	app := newTestApp(t)
	v := app.seedVideo(t, "clip")
	app.seedRendition(t, v.ID, 720)

	// A real file outside the hls tree that must stay unreachable
	require.NoError(t, os.MkdirAll(app.layout.SourceDir(), 0755))
	secret := filepath.Join(app.layout.SourceDir(), "secret.mp4")
	require.NoError(t, os.WriteFile(secret, []byte("top secret"), 0644))

	targets := []string{
		fmt.Sprintf("/video/%d/720p/..%%2F..%%2F..%%2Fvideos%%2Fsecret.mp4/", v.ID),
		fmt.Sprintf("/video/%d/..%%2F..%%2Fvideos/index.m3u8", v.ID),
		"/video/..%2F..%2Fvideos/720p/index.m3u8",
		fmt.Sprintf("/video/%d/720p/%%2e%%2e%%2f%%2e%%2e%%2fvideoflix.db/", v.ID),
	}

	for _, target := range targets {
		t.Run(target, func(t *testing.T) {
			w := app.request(t, http.MethodGet, target, nil, true)
			assert.Equal(t, http.StatusNotFound, w.Code)
			assert.NotContains(t, w.Body.String(), "top secret")
			assert.NotContains(t, w.Body.String(), app.layout.Root, "no real path leaks")
		})
	}
}

func TestVideoDetail(t *testing.T) {
	app := newTestApp(t)
	v := app.seedVideo(t, "clip")
	require.NoError(t, app.queue.Schedule(v.ID, []int{360, 720}))

	variant, err := app.store.GetVariant(v.ID, 360)
	require.NoError(t, err)
	require.NoError(t, app.store.UpdateVariantStatus(variant.ID, domain.VariantDone, ""))

	w := app.request(t, http.MethodGet, fmt.Sprintf("/video/%d/", v.ID), nil, true)
	require.Equal(t, http.StatusOK, w.Code)

	var detail map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Equal(t, "processing", detail["conversion_status"])
	assert.Equal(t, []any{float64(360)}, detail["available_resolutions"])
}

func TestVideoDetail_NotFound(t *testing.T) {
	app := newTestApp(t)

	w := app.request(t, http.MethodGet, "/video/424242/", nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = app.request(t, http.MethodGet, "/video/not-a-number/", nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpload(t *testing.T) {
	app := newTestApp(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", "Uploaded Clip"))
	require.NoError(t, mw.WriteField("category", "howto"))
	fw, err := mw.CreateFormFile("video_file", "clip.mp4")
	require.NoError(t, err)
	_, err = fw.Write([]byte("fake mp4 content"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/video/", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	token, err := app.tokens.Sign(1, "uploader@example.com", time.Hour)
	require.NoError(t, err)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: token})

	w := httptest.NewRecorder()
	app.server.ServeHTTP(w, r)
	require.Equal(t, http.StatusCreated, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Uploaded Clip", body["title"])
	assert.Equal(t, "processing", body["conversion_status"])

	// The fan-out was scheduled with the upload
	job, err := app.queue.Claim()
	require.NoError(t, err)
	assert.NotNil(t, job)
}

func TestUpload_MissingFile(t *testing.T) {
	app := newTestApp(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", "no file"))
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/video/", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	token, err := app.tokens.Sign(1, "uploader@example.com", time.Hour)
	require.NoError(t, err)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: token})

	w := httptest.NewRecorder()
	app.server.ServeHTTP(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteVideo(t *testing.T) {
	app := newTestApp(t)
	v := app.seedVideo(t, "doomed")
	app.seedRendition(t, v.ID, 360)

	w := app.request(t, http.MethodDelete, fmt.Sprintf("/video/%d/", v.ID), nil, true)
	require.Equal(t, http.StatusNoContent, w.Code)

	_, err := app.store.Get(v.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = os.Stat(app.layout.VideoDir(v.ID))
	assert.True(t, os.IsNotExist(err))
}

func TestThumbnail(t *testing.T) {
	app := newTestApp(t)
	v := app.seedVideo(t, "clip")
	require.NoError(t, os.MkdirAll(app.layout.VideoDir(v.ID), 0755))
	require.NoError(t, os.WriteFile(app.layout.ThumbnailPath(v.ID), []byte("jpeg-bytes"), 0644))

	w := app.request(t, http.MethodGet, fmt.Sprintf("/video/%d/thumbnail.jpg", v.ID), nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, "jpeg-bytes", w.Body.String())
}

func TestEvents_TerminalVideoGetsOneEventAndCloses(t *testing.T) {
	app := newTestApp(t)
	v := app.seedVideo(t, "clip")
	require.NoError(t, app.store.UpdateStatus(v.ID, domain.StatusProcessing, ""))
	require.NoError(t, app.store.UpdateStatus(v.ID, domain.StatusFailed, "encoder exit 1"))

	w := app.request(t, http.MethodGet, fmt.Sprintf("/video/%d/events", v.ID), nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "event: status")
	assert.Contains(t, w.Body.String(), `"conversion_status":"failed"`)
	assert.Contains(t, w.Body.String(), "encoder exit 1")
}

func TestEvents_NotFound(t *testing.T) {
	app := newTestApp(t)

	w := app.request(t, http.MethodGet, "/video/9999/events", nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)

	w := app.request(t, http.MethodGet, "/health", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSecurityHeaders(t *testing.T) {
	app := newTestApp(t)

	w := app.request(t, http.MethodGet, "/health", nil, false)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}
