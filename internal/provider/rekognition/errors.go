package rekognition

import "errors"

var (
	// ErrInvalidCredentials indicates that AWS credentials are invalid or missing
	ErrInvalidCredentials = errors.New("invalid or missing AWS credentials")

	// ErrNoFaceDetected indicates that no face was found in the provided image
	ErrNoFaceDetected = errors.New("no face detected in image")

	// ErrInvalidImage indicates the image is not a format Rekognition accepts
	ErrInvalidImage = errors.New("image rejected by rekognition")

	// ErrImageTooLarge indicates the image exceeds the 5MB API limit
	ErrImageTooLarge = errors.New("image exceeds maximum size")

	// ErrImageTooSmall indicates the image is too small to hold a face
	ErrImageTooSmall = errors.New("image below minimum size")
)
