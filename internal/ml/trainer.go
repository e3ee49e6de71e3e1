package ml

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// TrainConfig controls the training pipeline.
type TrainConfig struct {
	Forest       ForestConfig
	TestFraction float64
	CVFolds      int
	Seed         int64
}

// DefaultTrainConfig returns the standard evaluation setup: stratified
// 80/20 split plus 5-fold stratified cross-validation.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Forest:       DefaultForestConfig(),
		TestFraction: 0.2,
		CVFolds:      5,
		Seed:         42,
	}
}

// ClassMetrics holds per-class evaluation results.
type ClassMetrics struct {
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// FeatureImportance pairs a feature name with its mean impurity decrease.
type FeatureImportance struct {
	Name  string
	Value float64
}

// EvalReport aggregates held-out and cross-validation results.
type EvalReport struct {
	TrainSamples int
	TestSamples  int
	Accuracy     float64
	CVMean       float64
	CVStd        float64
	PerClass     [NumClasses]ClassMetrics
	// Confusion rows are true classes, columns predicted, both in fixed
	// class order.
	Confusion   [NumClasses][NumClasses]int
	Importances []FeatureImportance
}

// Train fits a forest on the dataset and evaluates it. The returned forest
// is fitted on the training split only, matching how the held-out accuracy
// was measured.
func Train(ds Dataset, cfg TrainConfig) (*Forest, *EvalReport, error) {
	if ds.Len() < NumClasses*2 {
		return nil, nil, fmt.Errorf("training set too small: %d samples", ds.Len())
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	trainIdx, testIdx := stratifiedSplit(ds.Y, cfg.TestFraction, rng)

	trainSet := subset(ds, trainIdx)
	testSet := subset(ds, testIdx)

	log.Info().Int("train", trainSet.Len()).Int("test", testSet.Len()).
		Int("trees", cfg.Forest.NumTrees).Msg("training random forest")

	forest, err := TrainForest(trainSet, cfg.Forest)
	if err != nil {
		return nil, nil, err
	}

	report := evaluate(forest, testSet)
	report.TrainSamples = trainSet.Len()
	report.TestSamples = testSet.Len()
	report.Importances = sortedImportances(forest.Importances)

	if cfg.CVFolds > 1 {
		mean, std, err := crossValidate(ds, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("cross-validation: %w", err)
		}
		report.CVMean = mean
		report.CVStd = std
	}

	return forest, report, nil
}

// stratifiedSplit partitions sample indices into train/test per class so
// class proportions survive the split.
func stratifiedSplit(y []Class, testFraction float64, rng *rand.Rand) (train, test []int) {
	byClass := make([][]int, NumClasses)
	for i, c := range y {
		byClass[c] = append(byClass[c], i)
	}
	for _, idx := range byClass {
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		nTest := int(math.Round(float64(len(idx)) * testFraction))
		if nTest == 0 && len(idx) > 1 {
			nTest = 1
		}
		test = append(test, idx[:nTest]...)
		train = append(train, idx[nTest:]...)
	}
	return train, test
}

func subset(ds Dataset, idx []int) Dataset {
	out := Dataset{
		X: make([][]float64, len(idx)),
		Y: make([]Class, len(idx)),
	}
	for i, j := range idx {
		out.X[i] = ds.X[j]
		out.Y[i] = ds.Y[j]
	}
	return out
}

func evaluate(f *Forest, test Dataset) *EvalReport {
	report := &EvalReport{}
	correct := 0
	for i, x := range test.X {
		pred := f.Predict(x)
		truth := test.Y[i]
		report.Confusion[truth][pred]++
		if pred == truth {
			correct++
		}
	}
	if test.Len() > 0 {
		report.Accuracy = float64(correct) / float64(test.Len())
	}

	for c := 0; c < NumClasses; c++ {
		tp := report.Confusion[c][c]
		fn, fp := 0, 0
		for other := 0; other < NumClasses; other++ {
			if other == c {
				continue
			}
			fn += report.Confusion[c][other]
			fp += report.Confusion[other][c]
		}
		m := ClassMetrics{Support: tp + fn}
		if tp+fp > 0 {
			m.Precision = float64(tp) / float64(tp+fp)
		}
		if tp+fn > 0 {
			m.Recall = float64(tp) / float64(tp+fn)
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		report.PerClass[c] = m
	}
	return report
}

// crossValidate runs stratified k-fold cross-validation, refitting a fresh
// forest per fold.
func crossValidate(ds Dataset, cfg TrainConfig) (mean, std float64, err error) {
	k := cfg.CVFolds
	rng := rand.New(rand.NewSource(cfg.Seed + 1))

	folds := make([][]int, k)
	byClass := make([][]int, NumClasses)
	for i, c := range ds.Y {
		byClass[c] = append(byClass[c], i)
	}
	for _, idx := range byClass {
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		for pos, i := range idx {
			folds[pos%k] = append(folds[pos%k], i)
		}
	}

	scores := make([]float64, 0, k)
	for fold := 0; fold < k; fold++ {
		var trainIdx []int
		for other := 0; other < k; other++ {
			if other != fold {
				trainIdx = append(trainIdx, folds[other]...)
			}
		}
		f, err := TrainForest(subset(ds, trainIdx), cfg.Forest)
		if err != nil {
			return 0, 0, err
		}

		holdout := subset(ds, folds[fold])
		correct := 0
		for i, x := range holdout.X {
			if f.Predict(x) == holdout.Y[i] {
				correct++
			}
		}
		if holdout.Len() > 0 {
			scores = append(scores, float64(correct)/float64(holdout.Len()))
		}
	}

	for _, s := range scores {
		mean += s
	}
	mean /= float64(len(scores))
	for _, s := range scores {
		std += (s - mean) * (s - mean)
	}
	std = math.Sqrt(std / float64(len(scores)))
	return mean, std, nil
}

func sortedImportances(values []float64) []FeatureImportance {
	out := make([]FeatureImportance, len(values))
	for i, v := range values {
		out[i] = FeatureImportance{Name: FeatureNames[i], Value: v}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Value > out[b].Value })
	return out
}

// SessionSource yields the raw summary payloads of persisted sessions; the
// storage package implements it.
type SessionSource interface {
	RawSummaries() ([][]byte, error)
}

// realSampleUpsample is how many copies of each weak-labeled real sample
// enter the training set. Real observations are scarce next to the
// synthetic volume, so they are tiled rather than concatenated raw.
const realSampleUpsample = 3

// AugmentFromSessions weak-labels stored session summaries with the
// rule-based labeler and appends them, upsampled, to the dataset. Missing
// or unusable data is a warning, not an error: synthetic-only training
// proceeds.
func AugmentFromSessions(ds Dataset, src SessionSource) (Dataset, int) {
	raws, err := src.RawSummaries()
	if err != nil {
		log.Warn().Err(err).Msg("loading stored sessions failed, skipping augmentation")
		return ds, 0
	}
	if len(raws) == 0 {
		log.Warn().Msg("no stored sessions found, skipping augmentation")
		return ds, 0
	}

	added := 0
	for _, raw := range raws {
		var payload struct {
			FrequencyProfile struct {
				BandPowerMean struct {
					Hz46  float64 `json:"hz_4_6"`
					Hz68  float64 `json:"hz_6_8"`
					Hz812 float64 `json:"hz_8_12"`
				} `json:"band_power_mean"`
			} `json:"frequency_profile"`
			IntensityProfile struct {
				RMSMean float64 `json:"rms_mean"`
			} `json:"intensity_profile"`
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			continue
		}

		w := Window{
			B1:       payload.FrequencyProfile.BandPowerMean.Hz46,
			B2:       payload.FrequencyProfile.BandPowerMean.Hz68,
			B3:       payload.FrequencyProfile.BandPowerMean.Hz812,
			MeanNorm: payload.IntensityProfile.RMSMean,
		}
		if w.B1 == 0 && w.B2 == 0 && w.B3 == 0 {
			continue
		}

		label := LabelWindow(w)
		features := ExtractFeatures(w)
		for i := 0; i < realSampleUpsample; i++ {
			ds.Append(features, label)
		}
		added++
	}

	if added == 0 {
		log.Warn().Int("sessions", len(raws)).Msg("no usable sessions extracted, training on synthetic data only")
	} else {
		log.Info().Int("sessions", added).Int("upsample", realSampleUpsample).
			Int("total", ds.Len()).Msg("augmented training set with real session data")
	}
	return ds, added
}

// Print writes human-readable training diagnostics. The format is for
// operators reading a terminal, not a machine contract.
func (r *EvalReport) Print(w io.Writer) {
	fmt.Fprintf(w, "Test accuracy: %.4f\n", r.Accuracy)
	fmt.Fprintf(w, "%d-sample train / %d-sample held-out split\n\n", r.TrainSamples, r.TestSamples)

	fmt.Fprintf(w, "%-16s %9s %9s %9s %9s\n", "class", "precision", "recall", "f1", "support")
	for c := 0; c < NumClasses; c++ {
		m := r.PerClass[c]
		fmt.Fprintf(w, "%-16s %9.3f %9.3f %9.3f %9d\n", ClassNames[c], m.Precision, m.Recall, m.F1, m.Support)
	}

	if r.CVMean > 0 {
		fmt.Fprintf(w, "\nCross-validation accuracy: %.4f (±%.4f)\n", r.CVMean, r.CVStd)
	}

	fmt.Fprintln(w, "\nFeature importances:")
	for _, imp := range r.Importances {
		bar := strings.Repeat("#", int(imp.Value*50))
		fmt.Fprintf(w, "  %18s: %.4f  %s\n", imp.Name, imp.Value, bar)
	}

	fmt.Fprintln(w, "\nConfusion matrix (rows = true, columns = predicted):")
	fmt.Fprintf(w, "%18s", "")
	for c := 0; c < NumClasses; c++ {
		fmt.Fprintf(w, "%14s", ClassNames[c])
	}
	fmt.Fprintln(w)
	for i := 0; i < NumClasses; i++ {
		fmt.Fprintf(w, "%18s", ClassNames[i])
		for j := 0; j < NumClasses; j++ {
			fmt.Fprintf(w, "%14d", r.Confusion[i][j])
		}
		fmt.Fprintln(w)
	}
}
