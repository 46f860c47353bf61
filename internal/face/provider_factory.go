package face

import (
	"context"
	"fmt"
	"time"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/config"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/provider"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/provider/deepface"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/provider/mock"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/provider/rekognition"
)

// ProviderType defines supported face matcher types
type ProviderType string

const (
	// ProviderTypeDeepFace is the DeepFace REST API (local, default)
	ProviderTypeDeepFace ProviderType = "deepface"
	// ProviderTypeRekognition is AWS Rekognition CompareFaces (cloud)
	ProviderTypeRekognition ProviderType = "rekognition"
	// ProviderTypeMock compares raw bytes, for demos and tests
	ProviderTypeMock ProviderType = "mock"
)

// NewFaceMatcher creates a FaceMatcher based on configuration
//
// Environment variables:
//   - FACE_PROVIDER: "deepface", "rekognition" or "mock" (default: "deepface")
//   - FACE_MODEL, FACE_DETECTOR: DeepFace model and detector backend
//   - DEEPFACE_URL: DeepFace API URL (default: "http://localhost:5005")
//   - AWS_REGION: AWS region for Rekognition (default: "us-east-1")
//   - MATCH_THRESHOLD: minimum similarity, 0 keeps the provider default
func NewFaceMatcher(ctx context.Context, cfg *config.Config) (provider.FaceMatcher, error) {
	switch ProviderType(cfg.ProviderType) {
	case ProviderTypeRekognition:
		return createRekognitionMatcher(ctx, cfg)

	case ProviderTypeDeepFace, "":
		return createDeepFaceMatcher(cfg), nil

	case ProviderTypeMock:
		return mock.New(), nil

	default:
		return nil, fmt.Errorf("unknown provider type: %s (supported: %s, %s, %s)",
			cfg.ProviderType, ProviderTypeDeepFace, ProviderTypeRekognition, ProviderTypeMock)
	}
}

// createRekognitionMatcher creates an AWS Rekognition matcher
func createRekognitionMatcher(ctx context.Context, cfg *config.Config) (provider.FaceMatcher, error) {
	rekogConfig := rekognition.DefaultConfig()
	if cfg.AWSRegion != "" {
		rekogConfig.Region = cfg.AWSRegion
	}
	if cfg.MatchThreshold > 0 {
		rekogConfig.SimilarityThreshold = cfg.MatchThreshold
	}

	prov, err := rekognition.NewProvider(ctx, rekogConfig)
	if err != nil {
		return nil, fmt.Errorf("create rekognition provider in %s: %w", rekogConfig.Region, err)
	}

	return prov, nil
}

// createDeepFaceMatcher creates a DeepFace matcher
func createDeepFaceMatcher(cfg *config.Config) provider.FaceMatcher {
	deepfaceConfig := deepface.DefaultConfig()
	if cfg.DeepFaceURL != "" {
		deepfaceConfig.BaseURL = cfg.DeepFaceURL
	}
	if cfg.FaceModel != "" {
		deepfaceConfig.Model = cfg.FaceModel
	}
	if cfg.FaceDetector != "" {
		deepfaceConfig.Detector = cfg.FaceDetector
	}
	// Leave headroom for retries inside one matcher call
	if cfg.MatcherTimeout > 0 {
		deepfaceConfig.Timeout = cfg.MatcherTimeout
		deepfaceConfig.RetryCount = retriesWithin(cfg.MatcherTimeout)
	}

	return deepface.NewProvider(deepfaceConfig)
}

// retriesWithin returns how many retries fit in budget with the default
// backoff schedule, capped at the DeepFace default.
func retriesWithin(budget time.Duration) int {
	retries := 0
	spent := time.Duration(0)
	backoff := time.Second
	for retries < deepface.DefaultConfig().RetryCount {
		spent += backoff
		if spent >= budget {
			break
		}
		retries++
		backoff *= 2
	}
	return retries
}
