package rekognition

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/provider"
)

// BenchmarkProvider_Verify measures the overhead around the API call
func BenchmarkProvider_Verify(b *testing.B) {
	api := &mockRekognitionAPI{
		compareFacesFunc: func(ctx context.Context, params *rekognition.CompareFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.CompareFacesOutput, error) {
			return &rekognition.CompareFacesOutput{
				FaceMatches: []types.CompareFacesMatch{{Similarity: aws.Float32(91)}},
			}, nil
		},
	}
	p := newTestProvider(api)
	probe := imageBytes(200 * 1024)
	ref := imageBytes(300 * 1024)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.Verify(ctx, probe, ref, provider.VerifyOptions{EnforceDetection: true}); err != nil {
			b.Fatal(err)
		}
	}
}
