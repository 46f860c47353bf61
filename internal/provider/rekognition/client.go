package rekognition

import (
	"context"
	"errors"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/smithy-go"
)

const (
	errCodeAccessDenied       = "AccessDeniedException"
	errCodeInvalidParameter   = "InvalidParameterException"
	errCodeInvalidImageFormat = "InvalidImageFormatException"
	errCodeImageTooLarge      = "ImageTooLargeException"
)

// CompareFacesAPI is the subset of the Rekognition client used here
type CompareFacesAPI interface {
	CompareFaces(ctx context.Context, params *rekognition.CompareFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.CompareFacesOutput, error)
}

// Client wraps the AWS Rekognition client
type Client struct {
	rekognition CompareFacesAPI
	config      Config
}

// NewClient creates a new Rekognition client with the provided configuration
// It uses the AWS default credential chain to authenticate
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewClientWithAPI(rekognition.NewFromConfig(awsCfg), cfg), nil
}

// NewClientWithAPI wraps an already configured API implementation
func NewClientWithAPI(api CompareFacesAPI, cfg Config) *Client {
	return &Client{
		rekognition: api,
		config:      cfg,
	}
}

// ParseCompareError maps AWS error codes returned by CompareFaces to package errors
func ParseCompareError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case errCodeInvalidParameter:
			// Rekognition answers InvalidParameter when the source image holds no face
			if msg := apiErr.ErrorMessage(); msg != "" {
				return fmt.Errorf("%w: %s", ErrNoFaceDetected, msg)
			}
			return ErrNoFaceDetected
		case errCodeAccessDenied:
			return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
		case errCodeInvalidImageFormat:
			return fmt.Errorf("%w: %v", ErrInvalidImage, err)
		case errCodeImageTooLarge:
			return fmt.Errorf("%w: %v", ErrImageTooLarge, err)
		}
	}

	return err
}
