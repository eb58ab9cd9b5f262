// Package normalize maps the loosely-specified classification backend
// response onto the canonical AnalysisResult.
//
// Backends in the wild disagree on field names (detected_objects vs
// detections, conf vs confidence, total_points vs eco_points, ...), so every
// canonical field is read through an ordered alias list with first-match-wins
// semantics. Normalization is total: any input, including nil, produces a
// well-formed result.
package normalize

import (
	"strconv"

	"github.com/menta2k/ecoscan/pkg/types"
)

// Alias lists, in priority order. The canonical name always comes first so
// that normalizing an already-canonical payload is the identity.
var (
	detectionsAliases     = []string{"detections", "detected_objects", "objects", "items", "predictions", "results"}
	labelAliases          = []string{"label", "name", "class", "class_name", "object"}
	confidenceAliases     = []string{"confidence", "conf", "score", "probability"}
	boundingBoxAliases    = []string{"boundingBox", "bbox", "box", "bounding_box"}
	recommendationAliases = []string{"recommendations", "recommendation", "tips", "advice", "suggestions"}
	ecoPointsAliases      = []string{"ecoPoints", "eco_points", "total_points", "points"}
	carbonAliases         = []string{"carbonSavedKg", "carbon_saved_kg", "carbon_saved", "co2_saved_kg", "co2_saved"}
	diagnosticsAliases    = []string{"diagnostics", "debug"}
	modelLoadedAliases    = []string{"modelLoaded", "model_loaded"}
	filenameAliases       = []string{"filename", "file_name", "file"}
)

// Normalize converts a decoded backend payload into the canonical result.
// It never fails; unusable input degrades to the all-default failure shape.
func Normalize(raw any) types.AnalysisResult {
	result := types.AnalysisResult{
		Detections:      []types.Detection{},
		Recommendations: []string{},
	}

	obj, ok := raw.(map[string]any)
	if !ok || obj == nil {
		return result
	}

	detections, detectionsPresent := firstArray(obj, detectionsAliases)
	for _, entry := range detections {
		det, ok := normalizeDetection(entry)
		if !ok {
			continue
		}
		result.Detections = append(result.Detections, det)
	}

	result.Recommendations = normalizeRecommendations(obj)
	if len(result.Recommendations) == 0 && len(result.Detections) > 0 {
		for _, det := range result.Detections {
			result.Recommendations = append(result.Recommendations,
				det.Label+" — consult local disposal guidance.")
		}
	}

	if v, ok := firstField(obj, ecoPointsAliases); ok {
		if n, ok := toFloat(v); ok && n > 0 {
			result.EcoPoints = int(n + 0.5)
		}
	}
	if v, ok := firstField(obj, carbonAliases); ok {
		if n, ok := toFloat(v); ok && n > 0 {
			result.CarbonSavedKg = n
		}
	}
	if v, ok := firstField(obj, filenameAliases); ok {
		if s, ok := toString(v); ok {
			result.Filename = s
		}
	}

	if v, ok := obj["success"]; ok {
		if b, isBool := v.(bool); isBool {
			result.Success = b
		} else {
			result.Success = anyMarkerPresent(obj, detectionsPresent)
		}
	} else {
		result.Success = anyMarkerPresent(obj, detectionsPresent)
	}

	if v, ok := firstField(obj, diagnosticsAliases); ok {
		if diag, ok := v.(map[string]any); ok {
			if loaded, ok := firstField(diag, modelLoadedAliases); ok {
				if b, isBool := loaded.(bool); isBool {
					result.Diagnostics.ModelLoaded = b
				}
			}
		}
	}
	// Never trusted from the wire.
	result.Diagnostics.DetectionCount = len(result.Detections)

	return result
}

// anyMarkerPresent reports whether the payload carried any recognized shape
// marker. With success absent, a structurally-present detections field (even
// an empty one) means the backend answered; an input with no marker at all is
// treated as unusable.
func anyMarkerPresent(obj map[string]any, detectionsPresent bool) bool {
	if detectionsPresent {
		return true
	}
	for _, aliases := range [][]string{recommendationAliases, ecoPointsAliases, carbonAliases, diagnosticsAliases} {
		if _, ok := firstField(obj, aliases); ok {
			return true
		}
	}
	return false
}

func normalizeDetection(entry any) (types.Detection, bool) {
	obj, ok := entry.(map[string]any)
	if !ok {
		return types.Detection{}, false
	}

	det := types.Detection{}
	if v, ok := firstField(obj, labelAliases); ok {
		if s, ok := toString(v); ok {
			det.Label = s
		}
	}
	if v, ok := firstField(obj, confidenceAliases); ok {
		if n, ok := toFloat(v); ok {
			det.Confidence = clamp(n, 0, 1)
		}
	}
	if v, ok := firstField(obj, boundingBoxAliases); ok {
		det.BoundingBox = v
	}
	return det, true
}

// normalizeRecommendations resolves the recommendations alias; a singular
// string is promoted to a one-element list.
func normalizeRecommendations(obj map[string]any) []string {
	recs := []string{}
	v, ok := firstField(obj, recommendationAliases)
	if !ok {
		return recs
	}
	switch value := v.(type) {
	case []any:
		for _, item := range value {
			if s, ok := toString(item); ok && s != "" {
				recs = append(recs, s)
			}
		}
	case string:
		if value != "" {
			recs = append(recs, value)
		}
	}
	return recs
}

// firstField returns the value of the first alias present in obj.
func firstField(obj map[string]any, aliases []string) (any, bool) {
	for _, key := range aliases {
		if v, ok := obj[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// firstArray returns the first alias whose value is an array. An explicit
// empty array wins; a present alias holding a non-array does not.
func firstArray(obj map[string]any, aliases []string) ([]any, bool) {
	for _, key := range aliases {
		if v, ok := obj[key]; ok {
			if arr, isArr := v.([]any); isArr {
				return arr, true
			}
		}
	}
	return nil, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	default:
		return "", false
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
