package rekognition

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/domain"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/provider"
)

const (
	// maxImageSize is the maximum image size supported by AWS Rekognition (5MB)
	maxImageSize = 5 * 1024 * 1024
	// minImageSize is the minimum image size for valid processing
	minImageSize = 100
	modelName    = "rekognition"
)

// Provider implements provider.FaceMatcher using AWS Rekognition CompareFaces
type Provider struct {
	client *Client
}

// Ensure Provider implements provider.FaceMatcher interface at compile time
var _ provider.FaceMatcher = (*Provider)(nil)

// NewProvider creates a Rekognition provider using the default AWS credential chain
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create rekognition client: %w", err)
	}
	return &Provider{client: client}, nil
}

// NewProviderWithClient builds a provider around an existing client
func NewProviderWithClient(client *Client) *Provider {
	return &Provider{client: client}
}

func (p *Provider) Name() string {
	return modelName
}

// Verify compares the probe (source) against the reference (target).
// Similarity is reported in [0,1].
func (p *Provider) Verify(ctx context.Context, probe, reference []byte, opts provider.VerifyOptions) (*provider.VerifyResult, error) {
	if err := validateImage(probe); err != nil {
		return nil, domain.ErrModelError.WithError(fmt.Errorf("probe image: %w", err))
	}
	if err := validateImage(reference); err != nil {
		return nil, domain.ErrModelError.WithError(fmt.Errorf("reference image: %w", err))
	}

	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = p.client.config.SimilarityThreshold
	}

	input := &rekognition.CompareFacesInput{
		SourceImage: &types.Image{
			Bytes: probe,
		},
		TargetImage: &types.Image{
			Bytes: reference,
		},
		SimilarityThreshold: aws.Float32(float32(threshold * 100)), // Convert 0-1 to 0-100
	}
	if p.client.config.QualityFilter != "" {
		input.QualityFilter = p.client.config.QualityFilter
	}

	output, err := p.client.rekognition.CompareFaces(ctx, input)
	if err != nil {
		parsed := ParseCompareError(err)
		if errors.Is(parsed, ErrNoFaceDetected) {
			if !opts.EnforceDetection {
				return &provider.VerifyResult{Model: modelName}, nil
			}
			return nil, domain.ErrNoFaceDetected.WithError(parsed)
		}
		return nil, domain.ErrModelError.WithError(fmt.Errorf("compare faces: %w", parsed))
	}

	// If no matches found, return 0 similarity
	if len(output.FaceMatches) == 0 || output.FaceMatches[0].Similarity == nil {
		return &provider.VerifyResult{Model: modelName}, nil
	}

	similarity := float64(*output.FaceMatches[0].Similarity) / 100.0

	return &provider.VerifyResult{
		Verified:   similarity >= threshold,
		Confidence: similarity,
		Distance:   1 - similarity,
		Model:      modelName,
	}, nil
}

// validateImage checks if the image meets AWS Rekognition requirements
func validateImage(image []byte) error {
	if len(image) < minImageSize {
		return fmt.Errorf("%w: %d bytes", ErrImageTooSmall, len(image))
	}
	if len(image) > maxImageSize {
		return fmt.Errorf("%w: %d bytes", ErrImageTooLarge, len(image))
	}
	return nil
}
