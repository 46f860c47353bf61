package domain

import (
	"fmt"
)

type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError carrying the same code, so errors.Is works on
// values produced by WithError.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		StatusCode: e.StatusCode,
		Err:        err,
	}
}

// Pre-defined errors
var (
	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		StatusCode: 500,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: 400,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: 404,
	}

	// Camera errors
	ErrDeviceUnavailable = &AppError{
		Code:       "DEVICE_UNAVAILABLE",
		Message:    "Camera device could not be opened",
		StatusCode: 503,
	}

	ErrReadTimeout = &AppError{
		Code:       "READ_TIMEOUT",
		Message:    "No frame available within one frame interval",
		StatusCode: 504,
	}

	ErrNoFrame = &AppError{
		Code:       "NO_FRAME",
		Message:    "No frame has been captured yet",
		StatusCode: 404,
	}

	// Matcher errors
	ErrNoFaceDetected = &AppError{
		Code:       "NO_FACE_DETECTED",
		Message:    "No face detected in the image",
		StatusCode: 422,
	}

	ErrModelError = &AppError{
		Code:       "MODEL_ERROR",
		Message:    "Face matcher failed",
		StatusCode: 502,
	}

	// Gallery errors
	ErrGalleryIO = &AppError{
		Code:       "GALLERY_IO_ERROR",
		Message:    "Gallery could not be read or written",
		StatusCode: 500,
	}

	ErrIdentityNotFound = &AppError{
		Code:       "IDENTITY_NOT_FOUND",
		Message:    "Identity not found in gallery",
		StatusCode: 404,
	}

	ErrInvalidImage = &AppError{
		Code:       "INVALID_IMAGE",
		Message:    "Invalid image format or corrupted file",
		StatusCode: 422,
	}

	// Enrollment errors
	ErrInvalidName = &AppError{
		Code:       "INVALID_NAME",
		Message:    "First name and last name are required",
		StatusCode: 422,
	}

	ErrInvalidTransition = &AppError{
		Code:       "INVALID_TRANSITION",
		Message:    "Operation not allowed in the current enrollment state",
		StatusCode: 409,
	}

	// Session errors
	ErrSessionActive = &AppError{
		Code:       "SESSION_ACTIVE",
		Message:    "A login session is already running",
		StatusCode: 409,
	}

	ErrSessionNotActive = &AppError{
		Code:       "SESSION_NOT_ACTIVE",
		Message:    "No login session is running",
		StatusCode: 409,
	}
)
