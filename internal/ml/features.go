// Package ml implements the tremor classification pipeline: feature
// extraction from band-power windows, a deterministic rule-based labeler,
// synthetic training data generation from clinical priors, a random forest
// trainer, and an inference service with a rule-based fallback.
//
// The feature formula here is shared by training and inference. Any change
// to it invalidates every persisted model artifact.
package ml

import (
	"math"
)

// NoiseFloor is the band power below which a signal is treated as noise.
// It drives both weak labeling and the inference fallback, so the two can
// never disagree on what counts as "no tremor".
const NoiseFloor = 0.01

const eps = 1e-6

// NumFeatures is the length of the extracted feature vector.
const NumFeatures = 7

// FeatureNames lists the features in vector order.
var FeatureNames = []string{
	"b1", "b2", "b3",
	"total_power", "meanNorm",
	"dom_ratio", "spectral_centroid",
}

// Class is a tremor phenotype label. The numeric order is load-bearing:
// probability vectors, confusion matrix axes and plurality-vote tie-breaks
// all follow it.
type Class int

const (
	NoTremor Class = iota
	Parkinsonian
	Essential
	Physiological
)

// NumClasses is the size of the label set.
const NumClasses = 4

// ClassNames maps Class values to their wire names, in index order.
var ClassNames = []string{"no_tremor", "parkinsonian", "essential", "physiological"}

func (c Class) String() string {
	if c < 0 || int(c) >= NumClasses {
		return "unknown"
	}
	return ClassNames[c]
}

// ClassFromName resolves a wire name back to its Class index.
func ClassFromName(name string) (Class, bool) {
	for i, n := range ClassNames {
		if n == name {
			return Class(i), true
		}
	}
	return NoTremor, false
}

// Window is one sampling interval of sensor data: three band-power
// magnitudes (4-6Hz, 6-8Hz, 8-12Hz) and a motion-magnitude scalar.
// Absent JSON fields decode to zero, which is the permissive behavior
// the upstream sensor glue relies on.
type Window struct {
	B1       float64 `json:"b1"`
	B2       float64 `json:"b2"`
	B3       float64 `json:"b3"`
	MeanNorm float64 `json:"meanNorm"`
}

// ExtractFeatures derives the 7-element feature vector from a window:
//
//	[b1, b2, b3, total_power, meanNorm, dom_ratio, spectral_centroid]
//
// dom_ratio is max/(min+eps) over the three bands; spectral_centroid is the
// power-weighted band index in [0,2]. The function is pure: it is called
// identically at training time and inference time.
func ExtractFeatures(w Window) []float64 {
	total := w.B1 + w.B2 + w.B3
	maxBand := math.Max(w.B1, math.Max(w.B2, w.B3))
	minBand := math.Min(w.B1, math.Min(w.B2, w.B3))
	domRatio := maxBand / (minBand + eps)
	centroid := (w.B2 + 2*w.B3) / (total + eps)
	return []float64{w.B1, w.B2, w.B3, total, w.MeanNorm, domRatio, centroid}
}

// ExtractFeatureMatrix extracts features for a batch of windows.
func ExtractFeatureMatrix(windows []Window) [][]float64 {
	rows := make([][]float64, len(windows))
	for i, w := range windows {
		rows[i] = ExtractFeatures(w)
	}
	return rows
}
