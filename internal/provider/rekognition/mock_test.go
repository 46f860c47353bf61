package rekognition

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/rekognition"
)

// mockRekognitionAPI is a mock implementation of CompareFacesAPI for testing
type mockRekognitionAPI struct {
	compareFacesFunc func(ctx context.Context, params *rekognition.CompareFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.CompareFacesOutput, error)
	calls            int
}

func (m *mockRekognitionAPI) CompareFaces(ctx context.Context, params *rekognition.CompareFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.CompareFacesOutput, error) {
	m.calls++
	if m.compareFacesFunc != nil {
		return m.compareFacesFunc(ctx, params, optFns...)
	}
	return &rekognition.CompareFacesOutput{}, nil
}
