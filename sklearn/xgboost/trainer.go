package xgboost

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/paxcast/core/parallel"
	pkgerrors "github.com/YuminosukeSato/paxcast/pkg/errors"
	"github.com/YuminosukeSato/paxcast/pkg/log"
)

// kRtEps is the minimum loss change a split must achieve.
const kRtEps = 1e-6

// Params contains the booster hyperparameters, named as in XGBoost.
type Params struct {
	MaxDepth       int     `json:"max_depth"`
	NEstimators    int     `json:"n_estimators"`
	LearningRate   float64 `json:"learning_rate"`
	RegAlpha       float64 `json:"reg_alpha"`
	RegLambda      float64 `json:"reg_lambda"`
	Gamma          float64 `json:"gamma"`
	MinChildWeight float64 `json:"min_child_weight"`
	Objective      string  `json:"objective"`
}

// DefaultParams returns XGBoost's defaults.
func DefaultParams() Params {
	return Params{
		MaxDepth:       6,
		NEstimators:    100,
		LearningRate:   0.3,
		RegAlpha:       0,
		RegLambda:      1,
		Gamma:          0,
		MinChildWeight: 1,
		Objective:      ObjectiveSquaredError,
	}
}

func (p Params) validate() error {
	switch {
	case p.MaxDepth < 0:
		return pkgerrors.NewValidationError("max_depth", "must be >= 0", p.MaxDepth)
	case p.NEstimators < 1:
		return pkgerrors.NewValidationError("n_estimators", "must be >= 1", p.NEstimators)
	case p.LearningRate <= 0:
		return pkgerrors.NewValidationError("learning_rate", "must be > 0", p.LearningRate)
	case p.RegAlpha < 0:
		return pkgerrors.NewValidationError("reg_alpha", "must be >= 0", p.RegAlpha)
	case p.RegLambda < 0:
		return pkgerrors.NewValidationError("reg_lambda", "must be >= 0", p.RegLambda)
	case p.MinChildWeight < 0:
		return pkgerrors.NewValidationError("min_child_weight", "must be >= 0", p.MinChildWeight)
	}
	return nil
}

// Trainer grows the ensemble with the exact greedy split finder.
type Trainer struct {
	params    Params
	objective Objective

	X     *mat.Dense
	y     []float64
	preds []float64
	grad  []float64
	hess  []float64

	trees     []Tree
	baseScore float64
}

// NewTrainer creates a trainer for params.
func NewTrainer(params Params) *Trainer {
	return &Trainer{params: params}
}

// splitInfo describes the best split found for a node.
type splitInfo struct {
	feature   int
	threshold float64
	gain      float64
}

// Fit trains the ensemble on X (n×d) and y (n×1).
func (t *Trainer) Fit(X, y mat.Matrix) error {
	if err := t.params.validate(); err != nil {
		return err
	}
	obj, err := NewObjective(t.params.Objective)
	if err != nil {
		return err
	}
	t.objective = obj

	rows, _ := X.Dims()
	yRows, _ := y.Dims()
	if rows == 0 {
		return pkgerrors.NewEmptyDatasetError("X", 0)
	}
	if rows != yRows {
		return pkgerrors.NewDimensionError("Fit", rows, yRows, 0)
	}

	t.X = mat.DenseCopyOf(X)
	t.y = make([]float64, rows)
	for i := range t.y {
		t.y[i] = y.At(i, 0)
	}

	t.baseScore = t.objective.InitScore(t.y)
	t.preds = make([]float64, rows)
	for i := range t.preds {
		t.preds[i] = t.baseScore
	}
	t.grad = make([]float64, rows)
	t.hess = make([]float64, rows)
	t.trees = make([]Tree, 0, t.params.NEstimators)

	logger := log.GetLoggerWithName("xgboost.trainer")
	all := make([]int, rows)
	for i := range all {
		all[i] = i
	}

	for iter := 0; iter < t.params.NEstimators; iter++ {
		for i := range t.y {
			t.grad[i], t.hess[i] = t.objective.Gradient(t.preds[i], t.y[i])
		}

		tree := Tree{}
		t.buildNode(&tree, all, 0)
		t.trees = append(t.trees, tree)

		parallel.Rows(rows, parallel.DefaultThreshold, func(start, end int) {
			for i := start; i < end; i++ {
				t.preds[i] += tree.Predict(t.X.RawRowView(i))
			}
		})

		if iter%10 == 0 || iter == t.params.NEstimators-1 {
			logger.Debug("boosting round",
				log.IterationKey, iter,
				log.LossKey, t.objective.Loss(t.preds, t.y))
		}
	}
	return nil
}

// buildNode appends the subtree for indices to tree and returns its node index.
func (t *Trainer) buildNode(tree *Tree, indices []int, depth int) int {
	nodeIdx := len(tree.Nodes)
	sumG, sumH := t.sums(indices)

	tree.Nodes = append(tree.Nodes, Node{Feature: -1, Cover: sumH})

	if depth >= t.params.MaxDepth || sumH < 2*t.params.MinChildWeight || len(indices) < 2 {
		tree.Nodes[nodeIdx].Value = t.leafWeight(sumG, sumH)
		return nodeIdx
	}

	best := t.findBestSplit(indices, sumG, sumH)
	if best.feature < 0 || best.gain <= kRtEps {
		tree.Nodes[nodeIdx].Value = t.leafWeight(sumG, sumH)
		return nodeIdx
	}

	left, right := t.partition(indices, best)
	tree.Nodes[nodeIdx] = Node{
		Feature:     best.feature,
		Threshold:   best.threshold,
		DefaultLeft: true,
		Gain:        best.gain,
		Cover:       sumH,
	}
	l := t.buildNode(tree, left, depth+1)
	r := t.buildNode(tree, right, depth+1)
	tree.Nodes[nodeIdx].Left = l
	tree.Nodes[nodeIdx].Right = r
	return nodeIdx
}

func (t *Trainer) sums(indices []int) (g, h float64) {
	for _, i := range indices {
		g += t.grad[i]
		h += t.hess[i]
	}
	return g, h
}

// findBestSplit enumerates every distinct cut point of every feature.
func (t *Trainer) findBestSplit(indices []int, sumG, sumH float64) splitInfo {
	_, cols := t.X.Dims()
	best := splitInfo{feature: -1, gain: math.Inf(-1)}
	parent := t.score(sumG, sumH)

	order := make([]int, len(indices))
	for j := 0; j < cols; j++ {
		copy(order, indices)
		sort.SliceStable(order, func(a, b int) bool {
			return t.X.At(order[a], j) < t.X.At(order[b], j)
		})

		var gl, hl float64
		for k := 0; k < len(order)-1; k++ {
			idx := order[k]
			gl += t.grad[idx]
			hl += t.hess[idx]

			cur, next := t.X.At(idx, j), t.X.At(order[k+1], j)
			if cur == next {
				continue
			}
			gr, hr := sumG-gl, sumH-hl
			if hl < t.params.MinChildWeight || hr < t.params.MinChildWeight {
				continue
			}
			gain := 0.5*(t.score(gl, hl)+t.score(gr, hr)-parent) - t.params.Gamma
			if gain > best.gain {
				best = splitInfo{feature: j, threshold: cur + (next-cur)/2, gain: gain}
			}
		}
	}
	return best
}

func (t *Trainer) partition(indices []int, s splitInfo) (left, right []int) {
	for _, i := range indices {
		if t.X.At(i, s.feature) < s.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}

// thresholdL1 は L1 正則化による勾配和のソフト閾値処理。
func (t *Trainer) thresholdL1(g float64) float64 {
	a := t.params.RegAlpha
	switch {
	case g > a:
		return g - a
	case g < -a:
		return g + a
	default:
		return 0
	}
}

func (t *Trainer) score(g, h float64) float64 {
	tg := t.thresholdL1(g)
	den := h + t.params.RegLambda
	if den <= 0 {
		return 0
	}
	return tg * tg / den
}

func (t *Trainer) leafWeight(g, h float64) float64 {
	den := h + t.params.RegLambda
	if den <= 0 {
		return 0
	}
	return -t.thresholdL1(g) / den * t.params.LearningRate
}

// Booster returns the trained ensemble.
func (t *Trainer) Booster() *Booster {
	_, cols := t.X.Dims()
	trees := make([]Tree, len(t.trees))
	copy(trees, t.trees)
	return &Booster{
		Objective:   t.objective.Name(),
		Params:      t.params,
		BaseScore:   t.baseScore,
		NumFeatures: cols,
		Trees:       trees,
	}
}
