package xgboost

import (
	"math"
)

// Node is one node of a regression tree. Leaves have Feature == -1.
type Node struct {
	Feature     int     `json:"feature"`
	Threshold   float64 `json:"threshold,omitempty"`
	Left        int     `json:"left,omitempty"`
	Right       int     `json:"right,omitempty"`
	DefaultLeft bool    `json:"default_left,omitempty"`
	// Value is the leaf weight with the learning rate already applied.
	Value float64 `json:"value,omitempty"`
	Gain  float64 `json:"gain,omitempty"`
	Cover float64 `json:"cover"`
}

// IsLeaf returns true if the node is a leaf node
func (n *Node) IsLeaf() bool {
	return n.Feature < 0
}

// Tree is a single regression tree stored as a flat node slice, root at 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Predict returns the leaf value reached by features.
// Samples go left when feature < threshold; missing values follow DefaultLeft.
func (t *Tree) Predict(features []float64) float64 {
	idx := 0
	for idx >= 0 && idx < len(t.Nodes) {
		node := &t.Nodes[idx]
		if node.IsLeaf() {
			return node.Value
		}
		v := features[node.Feature]
		switch {
		case math.IsNaN(v):
			if node.DefaultLeft {
				idx = node.Left
			} else {
				idx = node.Right
			}
		case v < node.Threshold:
			idx = node.Left
		default:
			idx = node.Right
		}
	}
	return 0
}

// Depth returns the maximum depth of the tree (a lone leaf has depth 0).
func (t *Tree) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	var walk func(idx int) int
	walk = func(idx int) int {
		n := &t.Nodes[idx]
		if n.IsLeaf() {
			return 0
		}
		l, r := walk(n.Left), walk(n.Right)
		if l > r {
			return l + 1
		}
		return r + 1
	}
	return walk(0)
}

// Booster is the trained ensemble: base score plus the sum of tree outputs.
type Booster struct {
	Objective    string   `json:"objective"`
	Params       Params   `json:"params"`
	BaseScore    float64  `json:"base_score"`
	NumFeatures  int      `json:"num_features"`
	FeatureNames []string `json:"feature_names,omitempty"`
	Trees        []Tree   `json:"trees"`
}

// PredictRow predicts a single sample.
func (b *Booster) PredictRow(features []float64) float64 {
	out := b.BaseScore
	for i := range b.Trees {
		out += b.Trees[i].Predict(features)
	}
	return out
}
