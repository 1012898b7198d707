package oracle

import (
	"errors"
	"sort"
)

// GBTConfig controls gradient boosting.
type GBTConfig struct {
	Trees        int
	MaxDepth     int
	LearningRate float64
	// Lambda is the L2 regularization on leaf weights.
	Lambda float64
	// MinChildWeight is the minimum hessian sum (row count under squared
	// error) on each side of a split.
	MinChildWeight float64
}

// DefaultGBTConfig matches the reference training run.
func DefaultGBTConfig() GBTConfig {
	return GBTConfig{
		Trees:          100,
		MaxDepth:       6,
		LearningRate:   0.1,
		Lambda:         1,
		MinChildWeight: 1,
	}
}

// GBTTrainer fits an ensemble of regression trees by gradient boosting on
// squared error. Splits are exact and greedy.
type GBTTrainer struct {
	cfg GBTConfig
}

// NewGBTTrainer returns a trainer with cfg.
func NewGBTTrainer(cfg GBTConfig) *GBTTrainer {
	return &GBTTrainer{cfg: cfg}
}

// Name implements Trainer.
func (t *GBTTrainer) Name() string { return "gbt" }

// Fit implements Trainer.
func (t *GBTTrainer) Fit(x [][]float64, y []float64) (Regressor, error) {
	if len(x) == 0 {
		return nil, ErrEmptyTrainingSet
	}
	if len(x) != len(y) {
		return nil, ErrFeatureLength
	}
	if t.cfg.Trees < 1 || t.cfg.MaxDepth < 1 || t.cfg.LearningRate <= 0 {
		return nil, errors.New("invalid boosting configuration")
	}
	nFeatures := len(x[0])
	for _, row := range x {
		if len(row) != nFeatures {
			return nil, ErrFeatureLength
		}
	}

	var base float64
	for _, v := range y {
		base += v
	}
	base /= float64(len(y))

	b := &builder{
		cfg:       t.cfg,
		x:         x,
		grad:      make([]float64, len(y)),
		gainSum:   make([]float64, nFeatures),
		gainCount: make([]int, nFeatures),
	}

	pred := make([]float64, len(y))
	for i := range pred {
		pred[i] = base
	}

	all := make([]int, len(y))
	for i := range all {
		all[i] = i
	}

	trees := make([]tree, 0, t.cfg.Trees)
	for range t.cfg.Trees {
		for i := range y {
			b.grad[i] = pred[i] - y[i]
		}
		tr := tree{}
		b.grow(&tr, append([]int(nil), all...), 0)
		for i, row := range x {
			pred[i] += tr.predict(row)
		}
		trees = append(trees, tr)
	}

	avgGain := make([]float64, nFeatures)
	for j := range avgGain {
		if b.gainCount[j] > 0 {
			avgGain[j] = b.gainSum[j] / float64(b.gainCount[j])
		}
	}

	return &GBTRegressor{base: base, trees: trees, importance: normalize(avgGain)}, nil
}

// GBTRegressor is a fitted boosted ensemble.
type GBTRegressor struct {
	base       float64
	trees      []tree
	importance []float64
}

// Predict implements Regressor.
func (r *GBTRegressor) Predict(x []float64) float64 {
	out := r.base
	for i := range r.trees {
		out += r.trees[i].predict(x)
	}
	return out
}

// Importance implements Regressor. Scores are the average split gain per
// feature, normalized to sum to 1.
func (r *GBTRegressor) Importance() []float64 {
	out := make([]float64, len(r.importance))
	copy(out, r.importance)
	return out
}

// Trees returns the ensemble size.
func (r *GBTRegressor) Trees() int { return len(r.trees) }

type node struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	left      int
	right     int
}

type tree struct {
	nodes []node
}

// predict walks from the root. Rows with x < threshold go left; NaN goes right.
func (t *tree) predict(x []float64) float64 {
	i := 0
	for {
		n := &t.nodes[i]
		if n.leaf {
			return n.value
		}
		if x[n.feature] < n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
}

type builder struct {
	cfg       GBTConfig
	x         [][]float64
	grad      []float64
	gainSum   []float64
	gainCount []int
}

type candidate struct {
	gain      float64
	feature   int
	threshold float64
	pos       int
	order     []int
}

// grow appends the subtree for rows to t and returns its node index. Under
// squared error every hessian is 1, so a side's weight is its row count.
func (b *builder) grow(t *tree, rows []int, depth int) int {
	idx := len(t.nodes)
	t.nodes = append(t.nodes, node{})

	var g float64
	for _, r := range rows {
		g += b.grad[r]
	}
	h := float64(len(rows))

	if depth >= b.cfg.MaxDepth || h < 2*b.cfg.MinChildWeight {
		t.nodes[idx] = b.leaf(g, h)
		return idx
	}

	best := b.bestSplit(rows, g, h)
	if best.gain <= 1e-12 {
		t.nodes[idx] = b.leaf(g, h)
		return idx
	}

	b.gainSum[best.feature] += best.gain
	b.gainCount[best.feature]++

	leftRows := append([]int(nil), best.order[:best.pos]...)
	rightRows := append([]int(nil), best.order[best.pos:]...)
	left := b.grow(t, leftRows, depth+1)
	right := b.grow(t, rightRows, depth+1)

	t.nodes[idx] = node{
		feature:   best.feature,
		threshold: best.threshold,
		left:      left,
		right:     right,
	}
	return idx
}

func (b *builder) leaf(g, h float64) node {
	return node{leaf: true, value: -g / (h + b.cfg.Lambda) * b.cfg.LearningRate}
}

func (b *builder) bestSplit(rows []int, g, h float64) candidate {
	lambda := b.cfg.Lambda
	parent := g * g / (h + lambda)
	best := candidate{}

	order := make([]int, len(rows))
	for f := range b.x[rows[0]] {
		copy(order, rows)
		sort.Slice(order, func(i, j int) bool {
			return b.x[order[i]][f] < b.x[order[j]][f]
		})

		var gl, hl float64
		for k := 0; k < len(order)-1; k++ {
			gl += b.grad[order[k]]
			hl++
			cur, next := b.x[order[k]][f], b.x[order[k+1]][f]
			if !(cur < next) {
				continue
			}
			hr := h - hl
			if hl < b.cfg.MinChildWeight || hr < b.cfg.MinChildWeight {
				continue
			}
			gr := g - gl
			gain := 0.5 * (gl*gl/(hl+lambda) + gr*gr/(hr+lambda) - parent)
			if gain > best.gain {
				threshold := cur + (next-cur)/2
				if threshold <= cur {
					threshold = next
				}
				best = candidate{
					gain:      gain,
					feature:   f,
					threshold: threshold,
					pos:       k + 1,
					order:     append(best.order[:0:0], order...),
				}
			}
		}
	}
	return best
}
