package api

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/camera"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/domain"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/enrollment"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/gallery"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/provider/mock"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/session"
)

type memoryRecorder struct {
	mu      sync.Mutex
	entries []domain.Verification
}

func (r *memoryRecorder) Record(v domain.Verification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, v)
}

func (r *memoryRecorder) all() []domain.Verification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Verification(nil), r.entries...)
}

type testServer struct {
	router   *Router
	store    *gallery.Store
	camera   *camera.Shared
	recorder *memoryRecorder
}

// writeStill writes a JPEG camera still. Enrollment stores it as PNG, so a
// login against it compares a JPEG frame with a PNG reference.
func writeStill(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8((x*7 + y*13) % 256), B: uint8(y * 5), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))

	path := filepath.Join(dir, "face.jpg")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	camCfg := camera.DefaultConfig()
	camCfg.FPS = 50
	cam := camera.NewShared(camera.NewStillSource(writeStill(t, t.TempDir()), camCfg, logger))
	store := gallery.NewStore(t.TempDir(), logger)
	recorder := &memoryRecorder{}

	manager := session.NewManager(cam, store, mock.New(), recorder, session.Config{
		Width:           64,
		Height:          48,
		DisplayInterval: 20 * time.Millisecond,
		PreviewWidth:    32,
		TeardownTimeout: time.Second,
		Scheduler: session.SchedulerConfig{
			Interval:       20 * time.Millisecond,
			MatcherTimeout: time.Second,
		},
	}, logger)
	sequencer := enrollment.NewSequencer(cam, store, enrollment.Config{
		Width:           64,
		Height:          48,
		DisplayInterval: 20 * time.Millisecond,
		PreviewWidth:    32,
	}, logger)

	router := NewRouter(logger, &Dependencies{
		Session:    manager,
		Enrollment: sequencer,
		Gallery:    store,
	})
	router.Setup()

	t.Cleanup(func() {
		_ = manager.Stop()
		sequencer.Leave()
		_ = router.Shutdown()
	})

	return &testServer{router: router, store: store, camera: cam, recorder: recorder}
}

func (s *testServer) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.router.App().Test(req, 5000)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func (s *testServer) enroll(t *testing.T, first, last string) {
	t.Helper()

	resp := s.do(t, "POST", "/v1/enrollment/name", `{"first_name":"`+first+`","last_name":"`+last+`"}`)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var state enrollment.State
	for range domain.Poses {
		resp = s.do(t, "POST", "/v1/enrollment/capture", "")
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		decode(t, resp, &state)
	}
	require.Equal(t, enrollment.PhaseComplete, state.Phase)
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, "GET", "/health", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = s.do(t, "GET", "/ready", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRouter_EnrollThenLogin(t *testing.T) {
	s := newTestServer(t)

	s.enroll(t, "Jane", "Doe")
	assert.Equal(t, 0, s.camera.Holders(), "enrollment releases the camera when complete")

	resp := s.do(t, "GET", "/v1/gallery/doe", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var identity handler.IdentityResponse
	decode(t, resp, &identity)
	assert.True(t, identity.Complete)
	assert.True(t, identity.HasCanonical)

	resp = s.do(t, "POST", "/v1/session/start", "")
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var final handler.MatchStateResponse
	require.Eventually(t, func() bool {
		resp := s.do(t, "GET", "/v1/session/state", "")
		decode(t, resp, &final)
		return final.Verified && !final.Active
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, "DOE", final.MatchedIdentity)
	assert.Equal(t, "Login Successful! Welcome DOE", final.Message)
	assert.Equal(t, 0, s.camera.Holders(), "session releases the camera after a match")

	entries := s.recorder.all()
	require.NotEmpty(t, entries)
	last := entries[len(entries)-1]
	assert.True(t, last.Verified)
	assert.Equal(t, "DOE", last.Label)
}

func TestRouter_LoginWithEmptyGallery(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, "POST", "/v1/session/start", "")
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = s.do(t, "POST", "/v1/session/start", "")
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	var state handler.MatchStateResponse
	require.Eventually(t, func() bool {
		resp := s.do(t, "GET", "/v1/session/state", "")
		decode(t, resp, &state)
		return state.LastCheckedAt != ""
	}, 5*time.Second, 20*time.Millisecond)
	assert.True(t, state.Active)
	assert.False(t, state.Verified)
	assert.Equal(t, "No Match", state.Message)

	require.Eventually(t, func() bool {
		resp := s.do(t, "GET", "/v1/session/frame", "")
		return resp.StatusCode == fiber.StatusOK && resp.Header.Get("Content-Type") == "image/jpeg"
	}, 5*time.Second, 20*time.Millisecond)

	resp = s.do(t, "POST", "/v1/session/stop", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, s.camera.Holders())
	assert.Empty(t, s.recorder.all(), "attempts that compared nothing are not audited")
}

func TestRouter_LoginAndEnrollmentShareTheCamera(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, "POST", "/v1/session/start", "")
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = s.do(t, "POST", "/v1/enrollment/name", `{"first_name":"Ana","last_name":"Lima"}`)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, 2, s.camera.Holders())

	resp = s.do(t, "POST", "/v1/enrollment/leave", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, s.camera.Holders())
	assert.True(t, s.camera.IsOpen())
}

func TestRouter_VerificationsNotMountedWithoutDatabase(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, "GET", "/v1/verifications", "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
