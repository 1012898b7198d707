// Package oracle fits and serves the regression model that maps a feature
// vector to a base light intensity.
package oracle

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/streetlight-predictor/internal/domain"
)

var (
	// ErrEmptyTrainingSet is returned when Train receives no rows.
	ErrEmptyTrainingSet = errors.New("empty training set")
	// ErrFeatureLength is returned when features and labels disagree in length.
	ErrFeatureLength = errors.New("features and labels differ in length")
	// ErrUnknownOracle is returned by NewTrainer for an unsupported kind.
	ErrUnknownOracle = errors.New("unknown oracle kind")
)

// testFraction is the share of rows held out for evaluation.
const testFraction = 0.2

// Regressor is a fitted model.
type Regressor interface {
	Predict(x []float64) float64
	// Importance returns one non-negative score per feature, summing to 1
	// (or all zero when no feature carried signal).
	Importance() []float64
}

// Trainer fits a Regressor to a design matrix.
type Trainer interface {
	Fit(x [][]float64, y []float64) (Regressor, error)
	Name() string
}

// Metrics are computed on the held-out split.
type Metrics struct {
	MAE       float64   `json:"mae"`
	R2        float64   `json:"r2"`
	TrainRows int       `json:"train_rows"`
	TestRows  int       `json:"test_rows"`
	Oracle    string    `json:"oracle"`
	TrainedAt time.Time `json:"trained_at"`
}

// FeatureScore is a single entry of the importance ranking.
type FeatureScore struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

type fitted struct {
	reg        Regressor
	metrics    Metrics
	importance []FeatureScore
}

// Model holds the fitted state. It starts Untrained; Train swaps in a new
// fitted state atomically so concurrent Predict calls never see a partial one.
type Model struct {
	trainer Trainer
	seed    uint64
	now     func() time.Time
	state   atomic.Pointer[fitted]
}

// NewModel returns an untrained model that fits with trainer. seed controls
// the train/test shuffle.
func NewModel(trainer Trainer, seed uint64) *Model {
	return &Model{trainer: trainer, seed: seed, now: time.Now}
}

// Train shuffles the rows, holds out 20% for evaluation, fits the trainer on
// the rest and replaces the fitted state.
func (m *Model) Train(features []domain.FeatureVector, labels []float64) (Metrics, error) {
	if len(features) == 0 {
		return Metrics{}, ErrEmptyTrainingSet
	}
	if len(features) != len(labels) {
		return Metrics{}, fmt.Errorf("%w: %d features, %d labels", ErrFeatureLength, len(features), len(labels))
	}

	trainIdx, testIdx := split(len(features), m.seed)

	x := make([][]float64, len(trainIdx))
	y := make([]float64, len(trainIdx))
	for i, idx := range trainIdx {
		x[i] = features[idx].Slice()
		y[i] = labels[idx]
	}

	reg, err := m.trainer.Fit(x, y)
	if err != nil {
		return Metrics{}, fmt.Errorf("fit %s: %w", m.trainer.Name(), err)
	}

	// With a single row there is nothing to hold out; evaluate on the fit.
	evalIdx := testIdx
	if len(evalIdx) == 0 {
		evalIdx = trainIdx
	}
	actual := make([]float64, len(evalIdx))
	predicted := make([]float64, len(evalIdx))
	for i, idx := range evalIdx {
		actual[i] = labels[idx]
		predicted[i] = reg.Predict(features[idx].Slice())
	}

	metrics := Metrics{
		MAE:       meanAbsoluteError(actual, predicted),
		R2:        r2Score(actual, predicted),
		TrainRows: len(trainIdx),
		TestRows:  len(testIdx),
		Oracle:    m.trainer.Name(),
		TrainedAt: m.now().UTC(),
	}

	m.state.Store(&fitted{
		reg:        reg,
		metrics:    metrics,
		importance: rankImportance(reg.Importance()),
	})
	return metrics, nil
}

// Trained reports whether a fitted state is present.
func (m *Model) Trained() bool {
	return m.state.Load() != nil
}

// Predict returns the unclipped base intensity for v.
func (m *Model) Predict(v domain.FeatureVector) (float64, error) {
	st := m.state.Load()
	if st == nil {
		return 0, domain.ErrModelNotTrained
	}
	return st.reg.Predict(v.Slice()), nil
}

// FeatureImportance returns features ranked by descending importance.
func (m *Model) FeatureImportance() ([]FeatureScore, error) {
	st := m.state.Load()
	if st == nil {
		return nil, domain.ErrModelNotTrained
	}
	out := make([]FeatureScore, len(st.importance))
	copy(out, st.importance)
	return out, nil
}

// Metrics returns the evaluation of the last successful Train.
func (m *Model) Metrics() (Metrics, error) {
	st := m.state.Load()
	if st == nil {
		return Metrics{}, domain.ErrModelNotTrained
	}
	return st.metrics, nil
}

// split returns a seeded permutation of [0, n) cut into train and test
// indices. The test side gets ceil(n * testFraction) rows, at least one row
// is always kept for training.
func split(n int, seed uint64) (train, test []int) {
	perm := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)).Perm(n)
	nTest := int(math.Ceil(float64(n) * testFraction))
	if nTest >= n {
		nTest = n - 1
	}
	return perm[nTest:], perm[:nTest]
}

func rankImportance(scores []float64) []FeatureScore {
	out := make([]FeatureScore, 0, len(scores))
	for i, s := range scores {
		out = append(out, FeatureScore{Feature: featureName(i), Importance: s})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Importance > out[j].Importance
	})
	return out
}

func meanAbsoluteError(actual, predicted []float64) float64 {
	var sum float64
	for i := range actual {
		sum += math.Abs(actual[i] - predicted[i])
	}
	return sum / float64(len(actual))
}

// r2Score is the coefficient of determination. A constant target yields 1
// for a perfect fit and 0 otherwise.
func r2Score(actual, predicted []float64) float64 {
	var mean float64
	for _, a := range actual {
		mean += a
	}
	mean /= float64(len(actual))

	var ssRes, ssTot float64
	for i := range actual {
		ssRes += (actual[i] - predicted[i]) * (actual[i] - predicted[i])
		ssTot += (actual[i] - mean) * (actual[i] - mean)
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}

func normalize(scores []float64) []float64 {
	var total float64
	for _, s := range scores {
		total += s
	}
	out := make([]float64, len(scores))
	if total <= 0 {
		return out
	}
	for i, s := range scores {
		out[i] = s / total
	}
	return out
}

// NewTrainer returns the trainer registered under kind ("gbt" or "linear").
func NewTrainer(kind string, gbt GBTConfig) (Trainer, error) {
	switch kind {
	case "gbt":
		return NewGBTTrainer(gbt), nil
	case "linear":
		return NewLinearTrainer(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOracle, kind)
	}
}
