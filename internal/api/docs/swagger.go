package docs

import (
	"github.com/go-swagno/swagno"
	"github.com/go-swagno/swagno/components/endpoint"
	"github.com/go-swagno/swagno/components/http/response"
	"github.com/go-swagno/swagno/components/mime"
	"github.com/go-swagno/swagno/components/parameter"
)

// MatchStateResponse represents the login session state
type MatchStateResponse struct {
	SessionID       string `json:"session_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Active          bool   `json:"active" example:"true"`
	Verified        bool   `json:"verified" example:"true"`
	MatchedIdentity string `json:"matched_identity" example:"DOE"`
	LastCheckedAt   string `json:"last_checked_at" example:"2024-01-01T00:00:00Z"`
	Error           string `json:"error" example:"DEVICE_UNAVAILABLE"`
	Message         string `json:"message" example:"Login Successful! Welcome DOE"`
}

// SubmitNameRequest represents the enrollment name form
type SubmitNameRequest struct {
	FirstName string `json:"first_name" example:"Jane"`
	LastName  string `json:"last_name" example:"Doe"`
}

// ImageRefData represents one stored reference image
type ImageRefData struct {
	Label      string `json:"label" example:"DOE"`
	Pose       string `json:"pose" example:"Front View"`
	Path       string `json:"path" example:"reference/DOE/DOE_Front View_Face.png"`
	CapturedAt string `json:"captured_at" example:"2024-01-01T00:00:00Z"`
}

// EnrollmentStateResponse represents the pose capture sequence
type EnrollmentStateResponse struct {
	Phase     string         `json:"phase" example:"capturing"`
	PoseIndex int            `json:"pose_index" example:"1"`
	Pose      string         `json:"pose" example:"Left Side"`
	Total     int            `json:"total" example:"5"`
	Label     string         `json:"label" example:"DOE"`
	FirstName string         `json:"first_name" example:"JANE"`
	LastName  string         `json:"last_name" example:"DOE"`
	Captured  []ImageRefData `json:"captured"`
	UpdatedAt string         `json:"updated_at" example:"2024-01-01T00:00:00Z"`
}

// IdentityData represents an enrolled identity
type IdentityData struct {
	Label        string   `json:"label" example:"DOE"`
	Poses        []string `json:"poses" example:"Front View,Left Side"`
	HasCanonical bool     `json:"has_canonical" example:"true"`
	Complete     bool     `json:"complete" example:"false"`
}

// GalleryResponse represents the enrolled identities
type GalleryResponse struct {
	Identities []IdentityData `json:"identities"`
	Total      int            `json:"total" example:"3"`
	Revision   uint64         `json:"revision" example:"7"`
}

// VerificationData represents one audited verification attempt
type VerificationData struct {
	ID         string  `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	SessionID  string  `json:"session_id" example:"550e8400-e29b-41d4-a716-446655440001"`
	Label      string  `json:"label" example:"DOE"`
	Verified   bool    `json:"verified" example:"true"`
	Confidence float64 `json:"confidence" example:"0.92"`
	Compared   int     `json:"compared" example:"2"`
	LatencyMs  int64   `json:"latency_ms" example:"830"`
	CreatedAt  string  `json:"created_at" example:"2024-01-01T00:00:00Z"`
}

// VerificationListResponse represents a page of the audit log
type VerificationListResponse struct {
	Verifications []VerificationData `json:"verifications"`
	Count         int                `json:"count" example:"1"`
}

// VerificationStatsResponse summarizes the audit log over a window
type VerificationStatsResponse struct {
	Since        string  `json:"since" example:"2026-01-01T12:00:00Z"`
	Attempts     int64   `json:"attempts" example:"12"`
	Verified     int64   `json:"verified" example:"3"`
	Sessions     int64   `json:"sessions" example:"4"`
	AvgLatencyMs float64 `json:"avg_latency_ms" example:"840.5"`
	SuccessRate  float64 `json:"success_rate" example:"0.25"`
}

// HealthResponse represents liveness and readiness
type HealthResponse struct {
	Status  string            `json:"status" example:"ok"`
	Version string            `json:"version" example:"0.1.0"`
	Checks  map[string]string `json:"checks"`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code      string `json:"code" example:"SESSION_ACTIVE"`
	Message   string `json:"message" example:"A login session is already running"`
	RequestID string `json:"request_id" example:"7f0c3a1e-1b2c-4d5e-8f90-1234567890ab"`
}

var internalError = response.New(ErrorResponse{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}, "500", "Internal Server Error")

func NewSwagger() *swagno.Swagger {
	sw := swagno.New(swagno.Config{
		Title:       "UnlockX Face Login API",
		Version:     "v1.0.0",
		Description: "Continuous face verification against a local gallery, with guided multi-pose enrollment",
		Host:        "localhost:3000",
		Path:        "/v1",
	})

	endpoints := []*endpoint.EndPoint{
		// POST /v1/session/start
		endpoint.New(
			endpoint.POST,
			"/session/start",
			endpoint.WithTags("Session"),
			endpoint.WithSummary("Start a login session"),
			endpoint.WithDescription("Opens the camera, starts the preview and the throttled verification loop. The session stops by itself on the first match."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(MatchStateResponse{}, "201", "Session started"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "SESSION_ACTIVE", Message: "A login session is already running"}, "409", "Conflict"),
				response.New(ErrorResponse{Code: "DEVICE_UNAVAILABLE", Message: "Camera could not be opened"}, "503", "Service Unavailable"),
				internalError,
			}),
		),

		// POST /v1/session/stop
		endpoint.New(
			endpoint.POST,
			"/session/stop",
			endpoint.WithTags("Session"),
			endpoint.WithSummary("Stop the login session"),
			endpoint.WithDescription("Stops the verification loop and releases the camera. The last outcome stays readable."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(MatchStateResponse{}, "200", "Session stopped"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "SESSION_NOT_ACTIVE", Message: "No login session is running"}, "409", "Conflict"),
				internalError,
			}),
		),

		// GET /v1/session/state
		endpoint.New(
			endpoint.GET,
			"/session/state",
			endpoint.WithTags("Session"),
			endpoint.WithSummary("Current match state"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(MatchStateResponse{}, "200", "Match state"),
			}),
		),

		// GET /v1/session/frame
		endpoint.New(
			endpoint.GET,
			"/session/frame",
			endpoint.WithTags("Session"),
			endpoint.WithSummary("Latest preview frame"),
			endpoint.WithDescription("Returns the newest downscaled camera frame as image/jpeg"),
			endpoint.WithProduce([]mime.MIME{mime.MIME("image/jpeg")}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "NO_FRAME", Message: "No frame available"}, "404", "Not Found"),
			}),
		),

		// POST /v1/enrollment/name
		endpoint.New(
			endpoint.POST,
			"/enrollment/name",
			endpoint.WithTags("Enrollment"),
			endpoint.WithSummary("Save the name and start capturing"),
			endpoint.WithDescription("Creates the identity directory named after the upper-cased last name and opens the camera"),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithBody(SubmitNameRequest{}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(EnrollmentStateResponse{}, "201", "Capturing started"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "BAD_REQUEST", Message: "Invalid request"}, "400", "Bad Request"),
				response.New(ErrorResponse{Code: "INVALID_TRANSITION", Message: "Operation not allowed in the current enrollment phase"}, "409", "Conflict"),
				response.New(ErrorResponse{Code: "INVALID_NAME", Message: "First and last name are required"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "DEVICE_UNAVAILABLE", Message: "Camera could not be opened"}, "503", "Service Unavailable"),
				internalError,
			}),
		),

		// POST /v1/enrollment/capture
		endpoint.New(
			endpoint.POST,
			"/enrollment/capture",
			endpoint.WithTags("Enrollment"),
			endpoint.WithSummary("Capture the current pose"),
			endpoint.WithDescription("Stores the current frame for the current pose and advances. The camera is released after the last pose."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(EnrollmentStateResponse{}, "200", "Pose captured"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "INVALID_TRANSITION", Message: "Operation not allowed in the current enrollment phase"}, "409", "Conflict"),
				response.New(ErrorResponse{Code: "READ_TIMEOUT", Message: "No frame arrived in time"}, "504", "Gateway Timeout"),
				response.New(ErrorResponse{Code: "GALLERY_IO_ERROR", Message: "Gallery could not be read or written"}, "500", "Internal Server Error"),
			}),
		),

		// POST /v1/enrollment/leave
		endpoint.New(
			endpoint.POST,
			"/enrollment/leave",
			endpoint.WithTags("Enrollment"),
			endpoint.WithSummary("Leave enrollment"),
			endpoint.WithDescription("Releases the camera and returns to the name form. Images already stored are kept."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(EnrollmentStateResponse{}, "200", "Enrollment reset"),
			}),
		),

		// GET /v1/enrollment/state
		endpoint.New(
			endpoint.GET,
			"/enrollment/state",
			endpoint.WithTags("Enrollment"),
			endpoint.WithSummary("Current enrollment state"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(EnrollmentStateResponse{}, "200", "Enrollment state"),
			}),
		),

		// GET /v1/enrollment/frame
		endpoint.New(
			endpoint.GET,
			"/enrollment/frame",
			endpoint.WithTags("Enrollment"),
			endpoint.WithSummary("Latest enrollment preview frame"),
			endpoint.WithProduce([]mime.MIME{mime.MIME("image/jpeg")}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "NO_FRAME", Message: "No frame available"}, "404", "Not Found"),
			}),
		),

		// GET /v1/gallery
		endpoint.New(
			endpoint.GET,
			"/gallery",
			endpoint.WithTags("Gallery"),
			endpoint.WithSummary("List enrolled identities"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(GalleryResponse{}, "200", "Gallery listed"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "GALLERY_IO_ERROR", Message: "Gallery could not be read or written"}, "500", "Internal Server Error"),
			}),
		),

		// GET /v1/gallery/{label}
		endpoint.New(
			endpoint.GET,
			"/gallery/{label}",
			endpoint.WithTags("Gallery"),
			endpoint.WithSummary("Get one identity"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("label", parameter.Path, parameter.WithDescription("Identity label, case-insensitive")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(IdentityData{}, "200", "Identity found"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "IDENTITY_NOT_FOUND", Message: "Identity not found"}, "404", "Not Found"),
			}),
		),

		// GET /v1/verifications
		endpoint.New(
			endpoint.GET,
			"/verifications",
			endpoint.WithTags("Audit"),
			endpoint.WithSummary("List audited verification attempts"),
			endpoint.WithDescription("Only available when DATABASE_URL is configured"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.IntParam("limit", parameter.Query, parameter.WithDescription("Maximum number of entries (default: 50, max: 500)")),
				parameter.StrParam("session_id", parameter.Query, parameter.WithDescription("Only entries of this session")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(VerificationListResponse{}, "200", "Entries listed"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "BAD_REQUEST", Message: "Invalid request"}, "400", "Bad Request"),
				internalError,
			}),
		),

		// GET /v1/verifications/stats
		endpoint.New(
			endpoint.GET,
			"/verifications/stats",
			endpoint.WithTags("Audit"),
			endpoint.WithSummary("Summarize audited verification attempts"),
			endpoint.WithDescription("Attempts, matches and average latency over a trailing window. Only available when DATABASE_URL is configured"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("window", parameter.Query, parameter.WithDescription("Trailing window as a Go duration (default: 24h)")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(VerificationStatsResponse{}, "200", "Summary computed"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "BAD_REQUEST", Message: "Invalid request"}, "400", "Bad Request"),
				internalError,
			}),
		),

		// GET /v1/ws
		endpoint.New(
			endpoint.GET,
			"/ws",
			endpoint.WithTags("Events"),
			endpoint.WithSummary("WebSocket event stream"),
			endpoint.WithDescription("Streams match.updated and enrollment.updated events. The current state of each topic is sent on connect."),
			endpoint.WithParams(
				parameter.StrParam("topics", parameter.Query, parameter.WithDescription("Comma separated topics: match, enrollment (default: all)")),
			),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "HTTP_ERROR", Message: "Upgrade Required"}, "426", "Upgrade Required"),
			}),
		),
	}

	sw.AddEndpoints(endpoints)

	return sw
}
