package handler

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/domain"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/enrollment"
)

// MockEnrollmentService is a mock implementation of EnrollmentService
type MockEnrollmentService struct {
	mock.Mock
}

func (m *MockEnrollmentService) SubmitName(ctx context.Context, firstName, lastName string) (enrollment.State, error) {
	args := m.Called(ctx, firstName, lastName)
	return args.Get(0).(enrollment.State), args.Error(1)
}

func (m *MockEnrollmentService) Capture(ctx context.Context) (enrollment.State, error) {
	args := m.Called(ctx)
	return args.Get(0).(enrollment.State), args.Error(1)
}

func (m *MockEnrollmentService) Leave() enrollment.State {
	args := m.Called()
	return args.Get(0).(enrollment.State)
}

func (m *MockEnrollmentService) State() enrollment.State {
	args := m.Called()
	return args.Get(0).(enrollment.State)
}

func (m *MockEnrollmentService) LatestFrame() (domain.Frame, bool) {
	args := m.Called()
	return args.Get(0).(domain.Frame), args.Bool(1)
}

func newEnrollmentApp(svc EnrollmentService) *fiber.App {
	app := newTestApp()
	h := NewEnrollmentHandler(svc, testLogger())
	app.Post("/v1/enrollment/name", h.SubmitName)
	app.Post("/v1/enrollment/capture", h.Capture)
	app.Post("/v1/enrollment/leave", h.Leave)
	app.Get("/v1/enrollment/state", h.State)
	app.Get("/v1/enrollment/frame", h.Frame)
	return app
}

func TestEnrollmentHandler_SubmitName(t *testing.T) {
	capturing := enrollment.State{Phase: enrollment.PhaseCapturing, Pose: domain.PoseFront, Label: "DOE", Total: 5}

	tests := []struct {
		name       string
		body       string
		setup      func(m *MockEnrollmentService)
		wantStatus int
		wantCode   string
	}{
		{
			name: "valid name starts capturing",
			body: `{"first_name":"Jane","last_name":"Doe"}`,
			setup: func(m *MockEnrollmentService) {
				m.On("SubmitName", mock.Anything, "Jane", "Doe").Return(capturing, nil)
			},
			wantStatus: fiber.StatusCreated,
		},
		{
			name: "missing last name",
			body: `{"first_name":"Jane"}`,
			setup: func(m *MockEnrollmentService) {
				m.On("SubmitName", mock.Anything, "Jane", "").Return(enrollment.State{Phase: enrollment.PhaseAwaitingName}, domain.ErrInvalidName)
			},
			wantStatus: fiber.StatusUnprocessableEntity,
			wantCode:   "INVALID_NAME",
		},
		{
			name:       "malformed body",
			body:       `{"first_name":`,
			setup:      func(m *MockEnrollmentService) {},
			wantStatus: fiber.StatusBadRequest,
			wantCode:   "BAD_REQUEST",
		},
		{
			name: "camera unavailable",
			body: `{"first_name":"Jane","last_name":"Doe"}`,
			setup: func(m *MockEnrollmentService) {
				m.On("SubmitName", mock.Anything, "Jane", "Doe").Return(enrollment.State{Phase: enrollment.PhaseAwaitingName}, domain.ErrDeviceUnavailable)
			},
			wantStatus: fiber.StatusServiceUnavailable,
			wantCode:   "DEVICE_UNAVAILABLE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockEnrollmentService)
			tt.setup(svc)

			req := httptest.NewRequest("POST", "/v1/enrollment/name", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := newEnrollmentApp(svc).Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, errorCode(t, resp))
			} else {
				var body enrollment.State
				decodeJSON(t, resp, &body)
				assert.Equal(t, enrollment.PhaseCapturing, body.Phase)
				assert.Equal(t, "DOE", body.Label)
				assert.Equal(t, domain.PoseFront, body.Pose)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestEnrollmentHandler_Capture(t *testing.T) {
	t.Run("advances to the next pose", func(t *testing.T) {
		svc := new(MockEnrollmentService)
		svc.On("Capture", mock.Anything).Return(enrollment.State{
			Phase:     enrollment.PhaseCapturing,
			PoseIndex: 1,
			Pose:      domain.PoseLeft,
			Captured:  []domain.ImageRef{{Label: "DOE", Pose: domain.PoseFront}},
		}, nil)

		resp, err := newEnrollmentApp(svc).Test(httptest.NewRequest("POST", "/v1/enrollment/capture", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		var body enrollment.State
		decodeJSON(t, resp, &body)
		assert.Equal(t, 1, body.PoseIndex)
		assert.Equal(t, domain.PoseLeft, body.Pose)
		require.Len(t, body.Captured, 1)
	})

	t.Run("outside the capturing phase", func(t *testing.T) {
		svc := new(MockEnrollmentService)
		svc.On("Capture", mock.Anything).Return(enrollment.State{Phase: enrollment.PhaseAwaitingName}, domain.ErrInvalidTransition)

		resp, err := newEnrollmentApp(svc).Test(httptest.NewRequest("POST", "/v1/enrollment/capture", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
		assert.Equal(t, "INVALID_TRANSITION", errorCode(t, resp))
	})

	t.Run("read timeout", func(t *testing.T) {
		svc := new(MockEnrollmentService)
		svc.On("Capture", mock.Anything).Return(enrollment.State{Phase: enrollment.PhaseCapturing}, domain.ErrReadTimeout)

		resp, err := newEnrollmentApp(svc).Test(httptest.NewRequest("POST", "/v1/enrollment/capture", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusGatewayTimeout, resp.StatusCode)
	})
}

func TestEnrollmentHandler_LeaveAndState(t *testing.T) {
	svc := new(MockEnrollmentService)
	svc.On("Leave").Return(enrollment.State{Phase: enrollment.PhaseAwaitingName, Total: 5})
	svc.On("State").Return(enrollment.State{Phase: enrollment.PhaseAwaitingName, Total: 5})
	app := newEnrollmentApp(svc)

	for _, req := range []*struct{ method, path string }{
		{"POST", "/v1/enrollment/leave"},
		{"GET", "/v1/enrollment/state"},
	} {
		resp, err := app.Test(httptest.NewRequest(req.method, req.path, nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		var body enrollment.State
		decodeJSON(t, resp, &body)
		assert.Equal(t, enrollment.PhaseAwaitingName, body.Phase)
		assert.Equal(t, 5, body.Total)
	}
	svc.AssertExpectations(t)
}

func TestEnrollmentHandler_Frame(t *testing.T) {
	svc := new(MockEnrollmentService)
	svc.On("LatestFrame").Return(domain.Frame{}, false)

	resp, err := newEnrollmentApp(svc).Test(httptest.NewRequest("GET", "/v1/enrollment/frame", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
