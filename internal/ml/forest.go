package ml

import (
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"time"
)

// ForestConfig holds random forest hyperparameters. The defaults are sized
// for the 7-dimensional tremor feature space: enough trees for stable
// probabilities, shallow enough not to memorize synthetic data.
type ForestConfig struct {
	NumTrees        int   `json:"num_trees"`
	MaxDepth        int   `json:"max_depth"`
	MinSamplesLeaf  int   `json:"min_samples_leaf"`
	MinSamplesSplit int   `json:"min_samples_split"`
	Seed            int64 `json:"seed"`
}

// DefaultForestConfig returns the production hyperparameters.
func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		NumTrees:        150,
		MaxDepth:        12,
		MinSamplesLeaf:  3,
		MinSamplesSplit: 5,
		Seed:            42,
	}
}

// treeNode is one node of a decision tree. Interior nodes route on
// Feature < Threshold; leaves carry a class probability distribution.
type treeNode struct {
	Feature   int       `json:"f"`
	Threshold float64   `json:"t"`
	Left      *treeNode `json:"l,omitempty"`
	Right     *treeNode `json:"r,omitempty"`
	Probs     []float64 `json:"p,omitempty"`
}

func (n *treeNode) isLeaf() bool { return n.Left == nil }

// Forest is a trained random forest classifier. It is the opaque model
// artifact: written wholesale by the trainer, read-only everywhere else.
type Forest struct {
	Version      string       `json:"version"`
	CreatedAt    time.Time    `json:"created_at"`
	Config       ForestConfig `json:"config"`
	FeatureNames []string     `json:"feature_names"`
	Classes      []string     `json:"classes"`
	Trees        []*treeNode  `json:"trees"`
	Importances  []float64    `json:"feature_importances"`
}

// TrainForest fits a random forest on the dataset. Each tree is grown on a
// bootstrap sample with sqrt-rule feature subsampling and inverse-frequency
// class weighting. Trees build in parallel; per-tree RNGs are derived from
// the config seed, so results are deterministic for a given seed
// regardless of scheduling.
func TrainForest(ds Dataset, cfg ForestConfig) (*Forest, error) {
	n := ds.Len()
	if n == 0 {
		return nil, fmt.Errorf("empty training set")
	}
	if cfg.NumTrees <= 0 {
		return nil, fmt.Errorf("invalid tree count: %d", cfg.NumTrees)
	}

	weights := classWeights(ds.Y)
	sampleWeight := make([]float64, n)
	for i, c := range ds.Y {
		sampleWeight[i] = weights[c]
	}

	mtry := int(math.Sqrt(float64(NumFeatures)))
	if mtry < 1 {
		mtry = 1
	}

	trees := make([]*treeNode, cfg.NumTrees)
	importances := make([][]float64, cfg.NumTrees)

	workers := runtime.GOMAXPROCS(0)
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for t := 0; t < cfg.NumTrees; t++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(t int) {
			defer wg.Done()
			defer func() { <-sem }()

			b := &treeBuilder{
				ds:         ds,
				weight:     sampleWeight,
				cfg:        cfg,
				mtry:       mtry,
				rng:        rand.New(rand.NewSource(cfg.Seed + int64(t)*7919)),
				importance: make([]float64, NumFeatures),
			}
			idx := b.bootstrap(n)
			trees[t] = b.build(idx, 0)
			importances[t] = b.normalizedImportance()
		}(t)
	}
	wg.Wait()

	return &Forest{
		Version:      modelVersion(),
		CreatedAt:    time.Now().UTC(),
		Config:       cfg,
		FeatureNames: append([]string(nil), FeatureNames...),
		Classes:      append([]string(nil), ClassNames...),
		Trees:        trees,
		Importances:  meanImportance(importances),
	}, nil
}

// PredictProba returns the class probability distribution for one feature
// vector: the mean of the per-tree leaf distributions, index-aligned with
// ClassNames.
func (f *Forest) PredictProba(features []float64) []float64 {
	probs := make([]float64, NumClasses)
	for _, root := range f.Trees {
		node := root
		for !node.isLeaf() {
			if features[node.Feature] < node.Threshold {
				node = node.Left
			} else {
				node = node.Right
			}
		}
		for c, p := range node.Probs {
			probs[c] += p
		}
	}
	inv := 1.0 / float64(len(f.Trees))
	for c := range probs {
		probs[c] *= inv
	}
	return probs
}

// Predict returns the arg-max class, lowest index winning ties.
func (f *Forest) Predict(features []float64) Class {
	return argmax(f.PredictProba(features))
}

// PredictProbaMatrix classifies a batch, returning one probability row per
// sample.
func (f *Forest) PredictProbaMatrix(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, x := range X {
		out[i] = f.PredictProba(x)
	}
	return out
}

// classWeights computes inverse-frequency ("balanced") class weights:
// n / (k * count_c) for each class present in y.
func classWeights(y []Class) [NumClasses]float64 {
	var counts [NumClasses]int
	for _, c := range y {
		counts[c]++
	}
	var w [NumClasses]float64
	n := float64(len(y))
	for c := 0; c < NumClasses; c++ {
		if counts[c] > 0 {
			w[c] = n / (float64(NumClasses) * float64(counts[c]))
		}
	}
	return w
}

func argmax(v []float64) Class {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return Class(best)
}

// treeBuilder grows a single decision tree.
type treeBuilder struct {
	ds         Dataset
	weight     []float64
	cfg        ForestConfig
	mtry       int
	rng        *rand.Rand
	importance []float64
}

func (b *treeBuilder) bootstrap(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = b.rng.Intn(n)
	}
	return idx
}

func (b *treeBuilder) build(idx []int, depth int) *treeNode {
	counts := b.weightedCounts(idx)
	total := sum(counts[:])

	if depth >= b.cfg.MaxDepth || len(idx) < b.cfg.MinSamplesSplit || isPure(counts) {
		return leafNode(counts, total)
	}

	split := b.bestSplit(idx, counts, total)
	if split.feature < 0 {
		return leafNode(counts, total)
	}

	b.importance[split.feature] += split.gain

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.ds.X[i][split.feature] < split.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return &treeNode{
		Feature:   split.feature,
		Threshold: split.threshold,
		Left:      b.build(left, depth+1),
		Right:     b.build(right, depth+1),
	}
}

type splitResult struct {
	feature   int
	threshold float64
	gain      float64
}

// bestSplit evaluates mtry randomly chosen features and returns the split
// with the largest weighted Gini impurity decrease, or feature=-1 when no
// candidate respects MinSamplesLeaf.
func (b *treeBuilder) bestSplit(idx []int, parentCounts [NumClasses]float64, parentWeight float64) splitResult {
	best := splitResult{feature: -1}
	parentImpurity := gini(parentCounts, parentWeight)

	features := b.rng.Perm(NumFeatures)[:b.mtry]
	for _, f := range features {
		sorted := make([]int, len(idx))
		copy(sorted, idx)
		sort.Slice(sorted, func(a, c int) bool {
			return b.ds.X[sorted[a]][f] < b.ds.X[sorted[c]][f]
		})

		var leftCounts [NumClasses]float64
		leftWeight := 0.0
		for pos := 1; pos < len(sorted); pos++ {
			prev := sorted[pos-1]
			leftCounts[b.ds.Y[prev]] += b.weight[prev]
			leftWeight += b.weight[prev]

			vPrev := b.ds.X[prev][f]
			vCur := b.ds.X[sorted[pos]][f]
			if vCur == vPrev {
				continue
			}
			if pos < b.cfg.MinSamplesLeaf || len(sorted)-pos < b.cfg.MinSamplesLeaf {
				continue
			}

			rightWeight := parentWeight - leftWeight
			var rightCounts [NumClasses]float64
			for c := 0; c < NumClasses; c++ {
				rightCounts[c] = parentCounts[c] - leftCounts[c]
			}

			gain := parentWeight*parentImpurity -
				leftWeight*gini(leftCounts, leftWeight) -
				rightWeight*gini(rightCounts, rightWeight)
			if gain > best.gain {
				best = splitResult{feature: f, threshold: (vPrev + vCur) / 2, gain: gain}
			}
		}
	}
	return best
}

func (b *treeBuilder) weightedCounts(idx []int) [NumClasses]float64 {
	var counts [NumClasses]float64
	for _, i := range idx {
		counts[b.ds.Y[i]] += b.weight[i]
	}
	return counts
}

func (b *treeBuilder) normalizedImportance() []float64 {
	total := sum(b.importance)
	out := make([]float64, NumFeatures)
	if total <= 0 {
		return out
	}
	for i, v := range b.importance {
		out[i] = v / total
	}
	return out
}

func leafNode(counts [NumClasses]float64, total float64) *treeNode {
	probs := make([]float64, NumClasses)
	if total > 0 {
		for c := range probs {
			probs[c] = counts[c] / total
		}
	} else {
		for c := range probs {
			probs[c] = 1.0 / NumClasses
		}
	}
	return &treeNode{Feature: -1, Probs: probs}
}

func gini(counts [NumClasses]float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	impurity := 1.0
	for _, c := range counts {
		p := c / total
		impurity -= p * p
	}
	return impurity
}

func isPure(counts [NumClasses]float64) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func sum(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x
	}
	return s
}

func meanImportance(perTree [][]float64) []float64 {
	out := make([]float64, NumFeatures)
	if len(perTree) == 0 {
		return out
	}
	for _, imp := range perTree {
		for i, v := range imp {
			out[i] += v
		}
	}
	inv := 1.0 / float64(len(perTree))
	for i := range out {
		out[i] *= inv
	}
	return out
}
