package deepface

// DistanceToConfidence maps a DeepFace distance onto [0,1]. A distance equal
// to the model threshold maps to 0.5, zero distance maps to 1.
func DistanceToConfidence(distance, threshold float64) float64 {
	if threshold <= 0 {
		return clamp01(1 - distance)
	}
	return clamp01(1 - distance/(2*threshold))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
