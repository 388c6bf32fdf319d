package model

import (
	"container/heap"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// defaultMaxBins bounds the candidate thresholds per feature
const defaultMaxBins = 64

// Node is one node of a regression tree stored in a flat slice.
// Left and Right are -1 for leaves.
type Node struct {
	Feature   int
	Threshold float64 // x <= Threshold goes left
	Left      int
	Right     int
	Value     float64
}

// Tree is a fitted regression tree
type Tree struct {
	Nodes []Node
}

// Predict returns the leaf value reached by row
func (t *Tree) Predict(row []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Left < 0 {
			return n.Value
		}
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Leaves counts the leaf nodes
func (t *Tree) Leaves() int {
	n := 0
	for i := range t.Nodes {
		if t.Nodes[i].Left < 0 {
			n++
		}
	}
	return n
}

// treeConfig controls growth of one gradient/hessian regression tree.
//
// With MaxLeaves == 0 every leaf with a positive gain is split until
// MaxDepth (depth-wise). With MaxLeaves > 0 the leaf with the largest gain
// is split first until MaxLeaves is reached (leaf-wise).
type treeConfig struct {
	MaxDepth        int // 0 → unlimited
	MaxLeaves       int // 0 → unlimited
	MinSamplesSplit int
	MinSamplesLeaf  int
	MinChildWeight  float64 // minimum hessian sum per child
	Lambda          float64 // L2 on leaf values
	MaxFeatures     int     // features drawn per split, 0 → all allowed
}

// binned is the training matrix bucketed once per fit.
// codes[f][i] is the bin of row i for feature f; bin b holds x <= cuts[f][b].
type binned struct {
	cuts  [][]float64
	codes [][]uint8
	rows  int
}

func newBinned(X mat.Matrix, maxBins int) *binned {
	if maxBins <= 1 || maxBins > 256 {
		maxBins = defaultMaxBins
	}
	rows, cols := X.Dims()
	b := &binned{
		cuts:  make([][]float64, cols),
		codes: make([][]uint8, cols),
		rows:  rows,
	}

	col := make([]float64, rows)
	for f := 0; f < cols; f++ {
		for i := 0; i < rows; i++ {
			col[i] = X.At(i, f)
		}
		b.cuts[f] = cutPoints(col, maxBins)

		codes := make([]uint8, rows)
		cuts := b.cuts[f]
		for i := 0; i < rows; i++ {
			codes[i] = uint8(sort.SearchFloat64s(cuts, X.At(i, f)))
		}
		b.codes[f] = codes
	}
	return b
}

// cutPoints returns at most maxBins-1 ascending thresholds. Each threshold
// is a midpoint between two adjacent distinct values.
func cutPoints(col []float64, maxBins int) []float64 {
	sorted := append([]float64(nil), col...)
	sort.Float64s(sorted)

	uniq := sorted[:0:0]
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			uniq = append(uniq, v)
		}
	}
	if len(uniq) <= 1 {
		return nil
	}

	var cuts []float64
	if len(uniq) <= maxBins {
		cuts = make([]float64, 0, len(uniq)-1)
		for i := 1; i < len(uniq); i++ {
			cuts = append(cuts, (uniq[i-1]+uniq[i])/2)
		}
		return cuts
	}

	// quantile cuts over the sorted sample
	n := len(sorted)
	for k := 1; k < maxBins; k++ {
		idx := k * n / maxBins
		if idx <= 0 || idx >= n {
			continue
		}
		lo, hi := sorted[idx-1], sorted[idx]
		if lo == hi {
			continue
		}
		c := (lo + hi) / 2
		if len(cuts) == 0 || c > cuts[len(cuts)-1] {
			cuts = append(cuts, c)
		}
	}
	return cuts
}

type candidate struct {
	node    int
	depth   int
	rows    []int
	gain    float64
	feature int
	bin     int
	left    []int
	right   []int
}

type candidateHeap []*candidate

func (h candidateHeap) Len() int            { return len(h) }
func (h candidateHeap) Less(i, j int) bool  { return h[i].gain > h[j].gain }
func (h candidateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x interface{}) { *h = append(*h, x.(*candidate)) }
func (h *candidateHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// growTree fits one tree to gradients g and hessians h over rows.
// features lists the columns this tree may split on.
func growTree(data *binned, g, h []float64, rows, features []int, cfg treeConfig, rng *rand.Rand) Tree {
	t := Tree{}
	leaf := func(rows []int) int {
		var sg, sh float64
		for _, i := range rows {
			sg += g[i]
			sh += h[i]
		}
		t.Nodes = append(t.Nodes, Node{Left: -1, Right: -1, Value: -sg / (sh + cfg.Lambda)})
		return len(t.Nodes) - 1
	}

	root := leaf(rows)
	pq := &candidateHeap{}
	if c := bestSplit(data, g, h, root, 0, rows, features, cfg, rng); c != nil {
		heap.Push(pq, c)
	}

	leaves := 1
	for pq.Len() > 0 {
		if cfg.MaxLeaves > 0 && leaves >= cfg.MaxLeaves {
			break
		}
		c := heap.Pop(pq).(*candidate)

		left := leaf(c.left)
		right := leaf(c.right)
		n := &t.Nodes[c.node]
		n.Feature = c.feature
		n.Threshold = data.cuts[c.feature][c.bin]
		n.Left, n.Right = left, right
		leaves++

		for _, child := range []struct {
			node int
			rows []int
		}{{left, c.left}, {right, c.right}} {
			if next := bestSplit(data, g, h, child.node, c.depth+1, child.rows, features, cfg, rng); next != nil {
				heap.Push(pq, next)
			}
		}
	}
	return t
}

// bestSplit scans the bin histograms of rows and returns the split with the
// largest positive gain, or nil when the node must stay a leaf.
func bestSplit(data *binned, g, h []float64, node, depth int, rows, features []int, cfg treeConfig, rng *rand.Rand) *candidate {
	if cfg.MaxDepth > 0 && depth >= cfg.MaxDepth {
		return nil
	}
	minSplit := cfg.MinSamplesSplit
	if minSplit < 2 {
		minSplit = 2
	}
	if len(rows) < minSplit {
		return nil
	}
	minLeaf := cfg.MinSamplesLeaf
	if minLeaf < 1 {
		minLeaf = 1
	}

	var G, H float64
	for _, i := range rows {
		G += g[i]
		H += h[i]
	}
	parent := G * G / (H + cfg.Lambda)

	candidates := features
	if cfg.MaxFeatures > 0 && cfg.MaxFeatures < len(features) {
		perm := rng.Perm(len(features))[:cfg.MaxFeatures]
		candidates = make([]int, len(perm))
		for k, p := range perm {
			candidates[k] = features[p]
		}
	}

	best := &candidate{node: node, depth: depth, rows: rows, gain: 1e-12, feature: -1}
	var hg, hh [256]float64
	var hc [256]int

	for _, f := range candidates {
		cuts := data.cuts[f]
		if len(cuts) == 0 {
			continue
		}
		nb := len(cuts) + 1
		for b := 0; b < nb; b++ {
			hg[b], hh[b], hc[b] = 0, 0, 0
		}
		codes := data.codes[f]
		for _, i := range rows {
			b := codes[i]
			hg[b] += g[i]
			hh[b] += h[i]
			hc[b]++
		}

		var gl, hl float64
		cl := 0
		for b := 0; b < nb-1; b++ {
			gl += hg[b]
			hl += hh[b]
			cl += hc[b]
			cr := len(rows) - cl
			if cl < minLeaf || cr < minLeaf {
				continue
			}
			hr := H - hl
			if hl < cfg.MinChildWeight || hr < cfg.MinChildWeight {
				continue
			}
			gr := G - gl
			gain := gl*gl/(hl+cfg.Lambda) + gr*gr/(hr+cfg.Lambda) - parent
			if gain > best.gain && !math.IsNaN(gain) {
				best.gain, best.feature, best.bin = gain, f, b
			}
		}
	}
	if best.feature < 0 {
		return nil
	}

	codes := data.codes[best.feature]
	for _, i := range rows {
		if int(codes[i]) <= best.bin {
			best.left = append(best.left, i)
		} else {
			best.right = append(best.right, i)
		}
	}
	return best
}

// denseRows copies X into row slices for repeated prediction
func denseRows(X mat.Matrix) [][]float64 {
	r, c := X.Dims()
	out := make([][]float64, r)
	for i := 0; i < r; i++ {
		row := make([]float64, c)
		for j := 0; j < c; j++ {
			row[j] = X.At(i, j)
		}
		out[i] = row
	}
	return out
}

func allFeatures(n int) []int {
	f := make([]int, n)
	for i := range f {
		f[i] = i
	}
	return f
}
