package deepface

// VerifyRequest for POST /verify
type VerifyRequest struct {
	Img1             string `json:"img1"` // base64 data URI
	Img2             string `json:"img2"`
	Model            string `json:"model_name,omitempty"`       // "VGG-Face", "Facenet512", etc
	Detector         string `json:"detector_backend,omitempty"` // "opencv", "retinaface", etc
	DistanceMetric   string `json:"distance_metric,omitempty"`  // "cosine", "euclidean", "euclidean_l2"
	EnforceDetection bool   `json:"enforce_detection"`
	AntiSpoofing     bool   `json:"anti_spoofing"`
}

// VerifyResponse from POST /verify
type VerifyResponse struct {
	Verified         bool        `json:"verified"`
	Distance         float64     `json:"distance"`
	Threshold        float64     `json:"threshold"`
	Model            string      `json:"model"`
	DetectorBackend  string      `json:"detector_backend"`
	SimilarityMetric string      `json:"similarity_metric"`
	FacialAreas      FacialAreas `json:"facial_areas"`
	Time             float64     `json:"time"`
}

type FacialAreas struct {
	Img1 FacialArea `json:"img1"`
	Img2 FacialArea `json:"img2"`
}

type FacialArea struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// ErrorResponse is the body DeepFace returns on failures
type ErrorResponse struct {
	Error string `json:"error"`
}
