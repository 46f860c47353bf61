package rekognition

import "github.com/aws/aws-sdk-go-v2/service/rekognition/types"

// Config holds configuration for AWS Rekognition provider
type Config struct {
	// Region is the AWS region where Rekognition service will be used (e.g., "us-east-1")
	Region string

	// SimilarityThreshold is the default minimum similarity in [0,1] for a match
	SimilarityThreshold float64

	// QualityFilter drops low quality faces before comparison
	QualityFilter types.QualityFilter
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		Region:              "us-east-1",
		SimilarityThreshold: 0.8,
		QualityFilter:       types.QualityFilterAuto,
	}
}
