package xgboost

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThresholdL1(t *testing.T) {
	tr := NewTrainer(Params{RegAlpha: 0.5})
	tests := []struct {
		g, want float64
	}{
		{10, 9.5},
		{-10, -9.5},
		{0.3, 0},
		{-0.5, 0},
		{0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tr.thresholdL1(tt.g), "g=%v", tt.g)
	}
}

func TestLeafWeightAndScore(t *testing.T) {
	tr := NewTrainer(Params{RegAlpha: 0.5, RegLambda: 1, LearningRate: 0.1})

	// G=10, H=1: T(G)=9.5, weight=-9.5/2*0.1
	assert.InDelta(t, -0.475, tr.leafWeight(10, 1), 1e-12)
	assert.InDelta(t, 45.125, tr.score(10, 1), 1e-12)
	assert.Equal(t, 0.0, tr.leafWeight(0.2, 5))
}

func TestTreePredict(t *testing.T) {
	tree := Tree{Nodes: []Node{
		{Feature: 0, Threshold: 150, Left: 1, Right: 2, DefaultLeft: true},
		{Feature: -1, Value: -1},
		{Feature: -1, Value: 1},
	}}
	assert.Equal(t, -1.0, tree.Predict([]float64{100}))
	assert.Equal(t, 1.0, tree.Predict([]float64{150}), "ties go right")
	assert.Equal(t, 1, tree.Depth())
}
