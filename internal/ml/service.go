package ml

import (
	"math"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// MetricsInterface defines the metrics hooks the inference service needs.
// The concrete implementation lives in internal/metrics; tests inject a
// mock.
type MetricsInterface interface {
	ClassificationsInc()
	ClassificationFailuresInc()
	FallbackUseInc()
	ClassifyLatencyObserve(float64)
	ModelAgeSet(float64)
}

// FallbackVersion is the model version reported when the rule-based
// fallback answered instead of a trained forest.
const FallbackVersion = "rule_based_fallback"

// modelVersion is the version string reported alongside forest
// predictions. The artifact itself carries no schema version; callers
// infer freshness from the date.
func modelVersion() string {
	return "rf_v1_" + time.Now().Format("2006-01-02")
}

// Service classifies windows using the persisted forest, degrading to the
// rule-based labeler when no artifact exists. It owns the model cache
// explicitly: the artifact is loaded at most once per process, on first
// use, under a mutex, and stays cached for the process lifetime. There is
// no hot reload; retraining requires a restart to pick up the new model.
type Service struct {
	modelPath string
	metrics   MetricsInterface

	mu     sync.Mutex
	loaded bool
	forest *Forest // nil after load means no artifact: fallback mode
}

// NewService creates an inference service reading the artifact at
// modelPath. The artifact is not touched until the first classification.
func NewService(modelPath string, metrics MetricsInterface) *Service {
	return &Service{modelPath: modelPath, metrics: metrics}
}

// classifier returns the cached forest, loading it on first call. A nil
// result means no usable artifact exists and callers must fall back.
func (s *Service) classifier() *Forest {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return s.forest
	}
	s.loaded = true

	f, err := LoadForest(s.modelPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("model_path", s.modelPath).
				Msg("no model artifact found, rule-based fallback active")
		} else {
			log.Error().Err(err).Str("model_path", s.modelPath).
				Msg("model artifact unreadable, rule-based fallback active")
		}
		return nil
	}

	s.forest = f
	if s.metrics != nil {
		if info, statErr := os.Stat(s.modelPath); statErr == nil {
			s.metrics.ModelAgeSet(time.Since(info.ModTime()).Seconds())
		}
	}
	log.Info().Str("model_path", s.modelPath).Int("trees", len(f.Trees)).
		Str("version", f.Version).Msg("random forest model loaded")
	return f
}

// ModelAvailable reports whether a trained model is serving predictions.
func (s *Service) ModelAvailable() bool {
	return s.classifier() != nil
}

// ModelInfo describes the loaded artifact for the /model/info endpoint.
type ModelInfo struct {
	Available bool      `json:"available"`
	Version   string    `json:"version,omitempty"`
	Trees     int       `json:"trees,omitempty"`
	TrainedAt time.Time `json:"trained_at,omitempty"`
	Features  []string  `json:"features,omitempty"`
	Classes   []string  `json:"classes,omitempty"`
}

// ModelInfo returns metadata about the cached model, or Available=false in
// fallback mode.
func (s *Service) ModelInfo() ModelInfo {
	f := s.classifier()
	if f == nil {
		return ModelInfo{Available: false}
	}
	return ModelInfo{
		Available: true,
		Version:   f.Version,
		Trees:     len(f.Trees),
		TrainedAt: f.CreatedAt,
		Features:  f.FeatureNames,
		Classes:   f.Classes,
	}
}

// WindowResult is the classification of a single window.
type WindowResult struct {
	Prediction    string             `json:"prediction"`
	TremorType    string             `json:"tremor_type"`
	IsTremor      bool               `json:"is_tremor"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
	ModelVersion  string             `json:"model_version"`
}

// WindowPrediction is the per-window slice of a batch result.
type WindowPrediction struct {
	Prediction string  `json:"prediction"`
	Confidence float64 `json:"confidence"`
}

// BatchResult aggregates classification over a session's windows. A
// non-empty Error field is the degraded shape: the batch path never
// panics or returns a Go error to its caller.
type BatchResult struct {
	Error              string             `json:"error,omitempty"`
	NWindows           int                `json:"n_windows"`
	DominantPrediction string             `json:"dominant_prediction,omitempty"`
	IsTremor           bool               `json:"is_tremor"`
	TremorFraction     float64            `json:"tremor_fraction"`
	ClassCounts        map[string]int     `json:"class_counts,omitempty"`
	MeanProbabilities  map[string]float64 `json:"mean_probabilities,omitempty"`
	PerWindow          []WindowPrediction `json:"per_window,omitempty"`
	ModelVersion       string             `json:"model_version,omitempty"`
}

// ClassifyWindow classifies a single window. With no model artifact it
// degrades to the rule-based labeler, wrapped with a synthesized
// confidence and a flat-ish probability distribution.
func (s *Service) ClassifyWindow(w Window) WindowResult {
	start := time.Now()
	defer s.observeLatency(start)

	f := s.classifier()
	if f == nil {
		if s.metrics != nil {
			s.metrics.ClassificationsInc()
			s.metrics.FallbackUseInc()
		}
		return s.fallbackClassify(w)
	}

	probs := f.PredictProba(ExtractFeatures(w))
	pred := argmax(probs)
	if s.metrics != nil {
		s.metrics.ClassificationsInc()
	}

	return WindowResult{
		Prediction:    pred.String(),
		TremorType:    tremorType(pred),
		IsTremor:      pred != NoTremor,
		Confidence:    probs[pred],
		Probabilities: probMap(probs),
		ModelVersion:  modelVersion(),
	}
}

// fallbackClassify mirrors the firmware's rule-based classify() and dresses
// the label up as a classification result: 0.9 probability on the chosen
// label, the remaining 0.1 split evenly across the other three.
func (s *Service) fallbackClassify(w Window) WindowResult {
	label := LabelWindow(w)

	total := w.B1 + w.B2 + w.B3
	conf := 1.0
	if total > NoiseFloor {
		maxBand := math.Max(w.B1, math.Max(w.B2, w.B3))
		conf = math.Min(maxBand/(total+eps), 1.0)
	}

	probs := make(map[string]float64, NumClasses)
	for c := 0; c < NumClasses; c++ {
		if Class(c) == label {
			probs[ClassNames[c]] = 0.9
		} else {
			probs[ClassNames[c]] = 0.1 / 3
		}
	}

	return WindowResult{
		Prediction:    label.String(),
		TremorType:    tremorType(label),
		IsTremor:      label != NoTremor,
		Confidence:    conf,
		Probabilities: probs,
		ModelVersion:  FallbackVersion,
	}
}

// ClassifyBatch classifies a session's windows and aggregates the results.
// An empty input or a missing model yields an error-shaped result, never a
// Go error or panic.
func (s *Service) ClassifyBatch(windows []Window) BatchResult {
	start := time.Now()
	defer s.observeLatency(start)

	f := s.classifier()
	if f == nil || len(windows) == 0 {
		if s.metrics != nil {
			s.metrics.ClassificationFailuresInc()
		}
		return BatchResult{Error: "no model loaded or empty input"}
	}

	proba := f.PredictProbaMatrix(ExtractFeatureMatrix(windows))

	perWindow := make([]WindowPrediction, len(windows))
	var counts [NumClasses]int
	meanProbs := make([]float64, NumClasses)
	tremorWindows := 0

	for i, probs := range proba {
		pred := argmax(probs)
		perWindow[i] = WindowPrediction{
			Prediction: pred.String(),
			Confidence: probs[pred],
		}
		counts[pred]++
		if pred != NoTremor {
			tremorWindows++
		}
		for c, p := range probs {
			meanProbs[c] += p
		}
	}
	for c := range meanProbs {
		meanProbs[c] /= float64(len(windows))
	}

	// Plurality vote, lowest class index winning ties.
	dominant := NoTremor
	for c := Class(1); c < NumClasses; c++ {
		if counts[c] > counts[dominant] {
			dominant = c
		}
	}

	classCounts := make(map[string]int)
	for c, n := range counts {
		if n > 0 {
			classCounts[ClassNames[c]] = n
		}
	}

	if s.metrics != nil {
		s.metrics.ClassificationsInc()
	}

	return BatchResult{
		NWindows:           len(windows),
		DominantPrediction: dominant.String(),
		IsTremor:           dominant != NoTremor,
		TremorFraction:     float64(tremorWindows) / float64(len(windows)),
		ClassCounts:        classCounts,
		MeanProbabilities:  probMap(meanProbs),
		PerWindow:          perWindow,
		ModelVersion:       modelVersion(),
	}
}

func (s *Service) observeLatency(start time.Time) {
	if s.metrics != nil {
		s.metrics.ClassifyLatencyObserve(time.Since(start).Seconds())
	}
}

func tremorType(c Class) string {
	if c == NoTremor {
		return "none"
	}
	return c.String()
}

func probMap(probs []float64) map[string]float64 {
	out := make(map[string]float64, len(probs))
	for c, p := range probs {
		out[ClassNames[c]] = p
	}
	return out
}
