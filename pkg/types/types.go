package types

// SourceImage is a raw binary image as supplied by camera capture or file
// selection. The payload is owned by the caller and is never mutated.
type SourceImage struct {
	Data      []byte
	MediaType string
	Filename  string
	// Natural pixel dimensions, 0 when unknown (e.g. the file was never decoded).
	Width  int
	Height int
}

// Size returns the payload length in bytes.
func (s SourceImage) Size() int64 {
	return int64(len(s.Data))
}

// EncodingPolicy bounds the output of the codec: a byte budget, a maximum
// width and a monotone quality walk from InitialQuality down to MinQuality.
type EncodingPolicy struct {
	MaxBytes       int64
	MaxWidthPx     int
	InitialQuality float64 // (0,1]
	QualityStep    float64 // > 0
	MinQuality     float64 // <= InitialQuality
}

// EncodedBlob is the codec output handed to the transport.
type EncodedBlob struct {
	Data      []byte
	MediaType string
	Filename  string
	// Quality is the encoding quality the blob was produced at, 0 when the
	// source bytes were passed through unchanged.
	Quality float64
	// BudgetMet reports whether the blob fits the policy byte budget.
	BudgetMet bool
}

// Size returns the blob length in bytes.
func (b EncodedBlob) Size() int64 {
	return int64(len(b.Data))
}

// Detection is one classified object from the backend.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	// BoundingBox is carried opaquely; the backend's box format is not
	// interpreted client-side.
	BoundingBox any `json:"boundingBox,omitempty"`
}

// Diagnostics carries backend health hints. DetectionCount is always
// recomputed from the detections list, never trusted from the wire.
type Diagnostics struct {
	ModelLoaded    bool `json:"modelLoaded"`
	DetectionCount int  `json:"detectionCount"`
}

// AnalysisResult is the single canonical shape every renderer consumes,
// regardless of which of the tolerated backend response shapes produced it.
type AnalysisResult struct {
	Success         bool        `json:"success"`
	Detections      []Detection `json:"detections"`
	Recommendations []string    `json:"recommendations"`
	EcoPoints       int         `json:"ecoPoints"`
	CarbonSavedKg   float64     `json:"carbonSavedKg"`
	Filename        string      `json:"filename"`
	Diagnostics     Diagnostics `json:"diagnostics"`
}

// RecyclingCenter is one entry from the centers endpoint.
type RecyclingCenter struct {
	ID      int     `json:"id"`
	Name    string  `json:"name"`
	Address string  `json:"address"`
	Lat     float64 `json:"lat,omitempty"`
	Lng     float64 `json:"lng,omitempty"`
}
