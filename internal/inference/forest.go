package inference

import (
	"fmt"
)

// leafChild marks a node without children
const leafChild = -1

// Node is one node of a fitted decision tree. Internal nodes send x to Left
// when x[Feature] <= Threshold, to Right otherwise. Leaves have Left == -1
// and carry per-class weights (counts or fractions) in Value.
type Node struct {
	Feature   int       `json:"feature" yaml:"feature"`
	Threshold float64   `json:"threshold" yaml:"threshold"`
	Left      int       `json:"left" yaml:"left"`
	Right     int       `json:"right" yaml:"right"`
	Value     []float64 `json:"value,omitempty" yaml:"value,omitempty"`
}

// IsLeaf reports whether the node has no children
func (n Node) IsLeaf() bool {
	return n.Left == leafChild
}

// Tree is a fitted decision tree rooted at Nodes[0]
type Tree struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
}

// RandomForest averages the normalised leaf distributions of its trees
type RandomForest struct {
	classes     []string
	numFeatures int
	trees       []Tree
	// leafProba caches normalised leaf distributions, indexed [tree][node]
	leafProba [][][]float64
}

// NewRandomForest validates the trees against the class list and feature count
func NewRandomForest(classes []string, numFeatures int, trees []Tree) (*RandomForest, error) {
	if len(classes) == 0 {
		return nil, fmt.Errorf("forest has no classes")
	}
	if len(trees) == 0 {
		return nil, fmt.Errorf("forest has no trees")
	}
	if numFeatures <= 0 {
		return nil, fmt.Errorf("forest needs a positive feature count, got %d", numFeatures)
	}

	f := &RandomForest{
		classes:     append([]string(nil), classes...),
		numFeatures: numFeatures,
		trees:       trees,
		leafProba:   make([][][]float64, len(trees)),
	}
	for ti, tree := range trees {
		probs, err := f.validateTree(tree)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", ti, err)
		}
		f.leafProba[ti] = probs
	}
	return f, nil
}

func (f *RandomForest) validateTree(t Tree) ([][]float64, error) {
	n := len(t.Nodes)
	if n == 0 {
		return nil, fmt.Errorf("tree has no nodes")
	}
	probs := make([][]float64, n)
	for i, node := range t.Nodes {
		if node.IsLeaf() {
			p, err := normalise(node.Value, len(f.classes))
			if err != nil {
				return nil, fmt.Errorf("leaf %d: %w", i, err)
			}
			probs[i] = p
			continue
		}
		if node.Feature < 0 || node.Feature >= f.numFeatures {
			return nil, fmt.Errorf("node %d splits on feature %d, want [0,%d)", i, node.Feature, f.numFeatures)
		}
		if node.Left <= i || node.Left >= n || node.Right <= i || node.Right >= n {
			return nil, fmt.Errorf("node %d has invalid children %d/%d", i, node.Left, node.Right)
		}
	}
	return probs, nil
}

// normalise turns leaf weights into a probability distribution
func normalise(value []float64, numClasses int) ([]float64, error) {
	if len(value) != numClasses {
		return nil, fmt.Errorf("has %d class weights, want %d", len(value), numClasses)
	}
	var sum float64
	for _, v := range value {
		if v < 0 {
			return nil, fmt.Errorf("negative class weight %g", v)
		}
		sum += v
	}
	if sum <= 0 {
		return nil, fmt.Errorf("class weights sum to zero")
	}
	p := make([]float64, len(value))
	for i, v := range value {
		p[i] = v / sum
	}
	return p, nil
}

// Classes returns the class labels in native order
func (f *RandomForest) Classes() []string {
	return f.classes
}

// NumFeatures returns the expected input length
func (f *RandomForest) NumFeatures() int {
	return f.numFeatures
}

// NumTrees returns the number of trees in the ensemble
func (f *RandomForest) NumTrees() int {
	return len(f.trees)
}

// PredictProba averages the leaf distributions reached by x in every tree
func (f *RandomForest) PredictProba(x []float64) ([]float64, error) {
	if len(x) != f.numFeatures {
		return nil, fmt.Errorf("X has %d features, but RandomForestClassifier is expecting %d features as input", len(x), f.numFeatures)
	}

	out := make([]float64, len(f.classes))
	for ti, tree := range f.trees {
		leaf := descend(tree, x)
		for c, p := range f.leafProba[ti][leaf] {
			out[c] += p
		}
	}
	n := float64(len(f.trees))
	for c := range out {
		out[c] /= n
	}
	return out, nil
}

// descend walks from the root to a leaf. Children always have a higher index
// than their parent (checked at construction), so the walk terminates.
func descend(t Tree, x []float64) int {
	i := 0
	for {
		node := t.Nodes[i]
		if node.IsLeaf() {
			return i
		}
		if x[node.Feature] <= node.Threshold {
			i = node.Left
		} else {
			i = node.Right
		}
	}
}
