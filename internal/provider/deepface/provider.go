package deepface

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/domain"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/provider"
)

// noFaceMarker is the text DeepFace puts in its error when detection fails
const noFaceMarker = "could not be detected"

// Provider implements provider.FaceMatcher using DeepFace API
type Provider struct {
	client *Client
	config Config
}

var _ provider.FaceMatcher = (*Provider)(nil)

// NewProvider creates a new DeepFace provider
func NewProvider(config Config) *Provider {
	client := NewClient(config)
	return &Provider{
		client: client,
		config: client.config,
	}
}

func (p *Provider) Name() string {
	return "deepface"
}

// Verify compares probe against reference through POST /verify
func (p *Provider) Verify(ctx context.Context, probe, reference []byte, opts provider.VerifyOptions) (*provider.VerifyResult, error) {
	img1, err := dataURI(probe)
	if err != nil {
		return nil, domain.ErrModelError.WithError(fmt.Errorf("probe: %w", err))
	}
	img2, err := dataURI(reference)
	if err != nil {
		return nil, domain.ErrModelError.WithError(fmt.Errorf("reference: %w", err))
	}

	model := opts.Model
	if model == "" {
		model = p.config.Model
	}

	resp, err := p.client.Verify(ctx, VerifyRequest{
		Img1:             img1,
		Img2:             img2,
		Model:            model,
		Detector:         p.config.Detector,
		DistanceMetric:   p.config.DistanceMetric,
		EnforceDetection: opts.EnforceDetection,
	})
	if err != nil {
		if isNoFaceError(err) {
			if !opts.EnforceDetection {
				return &provider.VerifyResult{Model: model}, nil
			}
			return nil, domain.ErrNoFaceDetected.WithError(err)
		}
		return nil, domain.ErrModelError.WithError(fmt.Errorf("verify: %w", err))
	}

	confidence := DistanceToConfidence(resp.Distance, resp.Threshold)
	verified := resp.Verified
	if opts.Threshold > 0 && confidence < opts.Threshold {
		verified = false
	}

	if resp.Model != "" {
		model = resp.Model
	}

	return &provider.VerifyResult{
		Verified:   verified,
		Confidence: confidence,
		Distance:   resp.Distance,
		Model:      model,
	}, nil
}

// Ping reports whether the DeepFace service is reachable
func (p *Provider) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

func isNoFaceError(err error) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.StatusCode < 500 && strings.Contains(strings.ToLower(statusErr.Body), noFaceMarker)
}

// dataURI encodes an image the way the DeepFace API accepts base64 input
func dataURI(image []byte) (string, error) {
	if len(image) == 0 {
		return "", ErrInvalidImageFormat
	}
	mime := http.DetectContentType(image)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("%w: %s", ErrInvalidImageFormat, mime)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image), nil
}
