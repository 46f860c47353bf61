package mock

import (
	"bytes"
	"context"
	"crypto/sha256"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"sync"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/domain"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/provider"
)

// minImageSize below which the mock reports that no face was found
const minImageSize = 64

// Provider implementa provider.FaceMatcher para testes e desenvolvimento.
// Duas imagens são consideradas a mesma pessoa quando os bytes ou os pixels
// decodificados são idênticos, então um frame JPEG gravado como PNG ainda
// corresponde ao frame original.
type Provider struct {
	mu    sync.Mutex
	calls int
}

var _ provider.FaceMatcher = (*Provider)(nil)

// New cria uma nova instância do MockProvider
func New() *Provider {
	return &Provider{}
}

func (p *Provider) Name() string {
	return "mock"
}

// Verify compara o hash SHA-256 das duas imagens e, se diferirem, os pixels
func (p *Provider) Verify(ctx context.Context, probe, reference []byte, opts provider.VerifyOptions) (*provider.VerifyResult, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, domain.ErrModelError.WithError(err)
	}

	if len(probe) < minImageSize || len(reference) < minImageSize {
		if opts.EnforceDetection {
			return nil, domain.ErrNoFaceDetected
		}
		return &provider.VerifyResult{Model: "mock"}, nil
	}

	same := sha256.Sum256(probe) == sha256.Sum256(reference) || samePixels(probe, reference)
	result := &provider.VerifyResult{Model: "mock", Distance: 1}
	if same {
		result.Verified = true
		result.Confidence = 1
		result.Distance = 0
	}
	return result, nil
}

// samePixels reports whether both images decode to the same 8-bit colors.
func samePixels(a, b []byte) bool {
	imgA, _, err := image.Decode(bytes.NewReader(a))
	if err != nil {
		return false
	}
	imgB, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return false
	}

	ra, rb := imgA.Bounds(), imgB.Bounds()
	if ra.Dx() != rb.Dx() || ra.Dy() != rb.Dy() {
		return false
	}
	for y := 0; y < ra.Dy(); y++ {
		for x := 0; x < ra.Dx(); x++ {
			if !sameColor(imgA.At(ra.Min.X+x, ra.Min.Y+y), imgB.At(rb.Min.X+x, rb.Min.Y+y)) {
				return false
			}
		}
	}
	return true
}

func sameColor(a, b color.Color) bool {
	r1, g1, b1, a1 := a.RGBA()
	r2, g2, b2, a2 := b.RGBA()
	return r1>>8 == r2>>8 && g1>>8 == g2>>8 && b1>>8 == b2>>8 && a1>>8 == a2>>8
}

// Calls returns how many comparisons were requested
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
