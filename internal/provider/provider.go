package provider

import "context"

// FaceMatcher define a interface para provedores de comparação facial.
//
// Implementations return errors wrapping domain.ErrNoFaceDetected when either
// image holds no detectable face (only when detection is enforced) and
// domain.ErrModelError for any other failure.
type FaceMatcher interface {
	// Verify compara a imagem capturada com uma imagem de referência
	Verify(ctx context.Context, probe, reference []byte, opts VerifyOptions) (*VerifyResult, error)

	// Name identifica o provider nos logs e no audit
	Name() string
}

// VerifyOptions tunes a single comparison. Zero values mean "provider default".
type VerifyOptions struct {
	Model            string
	EnforceDetection bool
	// Threshold is the minimum similarity in [0,1] for a positive result.
	Threshold float64
}

// VerifyResult is the outcome of one comparison.
type VerifyResult struct {
	Verified   bool    `json:"verified"`
	Confidence float64 `json:"confidence"`
	Distance   float64 `json:"distance"`
	Model      string  `json:"model"`
}
