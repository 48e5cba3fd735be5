// Package ml implements the isolation-forest anomaly model used by the
// scoring stage. The forest is trained once at startup and is read-only
// afterwards, so scoring is safe for concurrent use.
package ml

import (
	"errors"
	"math"
	"math/rand"
)

const (
	defaultTrees      = 100
	defaultSampleSize = 256
)

// IsolationForest isolates anomalies by random recursive partitioning:
// anomalous points have short average path lengths.
type IsolationForest struct {
	trees      []*treeNode
	sampleSize int
	dims       int
}

type treeNode struct {
	splitDim float64 // stored as float to keep the struct flat; index into the vector
	splitVal float64
	left     *treeNode
	right    *treeNode
	size     int // samples at this leaf; 0 for internal nodes
}

// TrainIsolationForest fits a forest of 100 trees on data with a seeded RNG
// so scoring is reproducible across restarts.
func TrainIsolationForest(data [][]float64, seed int64) (*IsolationForest, error) {
	if len(data) == 0 {
		return nil, errors.New("empty training set")
	}
	dims := len(data[0])
	rng := rand.New(rand.NewSource(seed))

	sampleSize := defaultSampleSize
	if sampleSize > len(data) {
		sampleSize = len(data)
	}
	heightLimit := int(math.Ceil(math.Log2(float64(sampleSize))))

	f := &IsolationForest{
		trees:      make([]*treeNode, 0, defaultTrees),
		sampleSize: sampleSize,
		dims:       dims,
	}
	for i := 0; i < defaultTrees; i++ {
		sample := make([][]float64, sampleSize)
		for j := range sample {
			sample[j] = data[rng.Intn(len(data))]
		}
		f.trees = append(f.trees, buildTree(sample, 0, heightLimit, rng))
	}
	return f, nil
}

func buildTree(sample [][]float64, depth, heightLimit int, rng *rand.Rand) *treeNode {
	if depth >= heightLimit || len(sample) <= 1 {
		return &treeNode{size: len(sample)}
	}

	dim := rng.Intn(len(sample[0]))
	lo, hi := sample[0][dim], sample[0][dim]
	for _, row := range sample {
		if row[dim] < lo {
			lo = row[dim]
		}
		if row[dim] > hi {
			hi = row[dim]
		}
	}
	if hi == lo {
		return &treeNode{size: len(sample)}
	}
	split := lo + rng.Float64()*(hi-lo)

	var left, right [][]float64
	for _, row := range sample {
		if row[dim] < split {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}
	return &treeNode{
		splitDim: float64(dim),
		splitVal: split,
		left:     buildTree(left, depth+1, heightLimit, rng),
		right:    buildTree(right, depth+1, heightLimit, rng),
	}
}

// Score returns the anomaly score for x in [0,1]; higher means more
// anomalous. The average path length is normalized by the expected path
// length for the sample size and mapped through the standard 2^(-E/c) form,
// then clamped.
func (f *IsolationForest) Score(x []float64) (float64, error) {
	if len(x) != f.dims {
		return 0, errors.New("feature vector has wrong dimensionality")
	}
	var total float64
	for _, tree := range f.trees {
		total += pathLength(tree, x, 0)
	}
	avg := total / float64(len(f.trees))
	score := math.Pow(2, -avg/avgPathLength(f.sampleSize))
	return math.Max(0, math.Min(1, score)), nil
}

func pathLength(n *treeNode, x []float64, depth int) float64 {
	if n.left == nil && n.right == nil {
		// Unresolved leaf: add the expected depth of an unbuilt subtree.
		return float64(depth) + avgPathLength(n.size)
	}
	if x[int(n.splitDim)] < n.splitVal {
		return pathLength(n.left, x, depth+1)
	}
	return pathLength(n.right, x, depth+1)
}

// avgPathLength is c(n), the expected path length of an unsuccessful BST
// search over n items.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	h := math.Log(float64(n-1)) + 0.5772156649 // harmonic number approximation
	return 2*h - 2*float64(n-1)/float64(n)
}
