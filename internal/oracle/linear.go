package oracle

import (
	"errors"
	"fmt"
	"math"

	"github.com/sajari/regression"

	"github.com/couchcryptid/streetlight-predictor/internal/domain"
)

// collinearTolerance is the relative residual norm below which a centered
// column is treated as a linear combination of the columns already kept.
const collinearTolerance = 1e-8

// LinearTrainer fits ordinary least squares. Constant and collinear columns
// (hour on date-only data, weather_severity against its inputs) are dropped
// before solving and get a zero coefficient.
type LinearTrainer struct{}

// NewLinearTrainer returns a least-squares trainer.
func NewLinearTrainer() *LinearTrainer { return &LinearTrainer{} }

// Name implements Trainer.
func (t *LinearTrainer) Name() string { return "linear" }

// Fit implements Trainer.
func (t *LinearTrainer) Fit(x [][]float64, y []float64) (Regressor, error) {
	if len(x) == 0 {
		return nil, ErrEmptyTrainingSet
	}
	if len(x) != len(y) {
		return nil, ErrFeatureLength
	}
	nFeatures := len(x[0])
	for _, row := range x {
		if len(row) != nFeatures {
			return nil, ErrFeatureLength
		}
	}

	kept := independentColumns(x)
	if len(kept) == 0 {
		var mean float64
		for _, v := range y {
			mean += v
		}
		return &LinearRegressor{
			intercept:  mean / float64(len(y)),
			weights:    make([]float64, nFeatures),
			importance: make([]float64, nFeatures),
		}, nil
	}
	if len(x) <= len(kept)+1 {
		return nil, fmt.Errorf("least squares: %d rows cannot support %d features", len(x), len(kept))
	}

	var r regression.Regression
	r.SetObserved("light_intensity")
	for i, col := range kept {
		r.SetVar(i, featureName(col))
	}
	for i, row := range x {
		vars := make([]float64, len(kept))
		for k, col := range kept {
			vars[k] = row[col]
		}
		r.Train(regression.DataPoint(y[i], vars))
	}
	if err := r.Run(); err != nil {
		return nil, fmt.Errorf("least squares: %w", err)
	}

	coeffs := r.GetCoeffs()
	if len(coeffs) != len(kept)+1 {
		return nil, errors.New("least squares: unexpected coefficient count")
	}
	for _, c := range coeffs {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, errors.New("least squares: singular design matrix")
		}
	}

	weights := make([]float64, nFeatures)
	for k, col := range kept {
		weights[col] = coeffs[k+1]
	}

	stds := columnStd(x)
	scores := make([]float64, nFeatures)
	for j := range scores {
		scores[j] = math.Abs(weights[j]) * stds[j]
	}

	return &LinearRegressor{
		intercept:  coeffs[0],
		weights:    weights,
		importance: normalize(scores),
	}, nil
}

// LinearRegressor is a fitted linear model.
type LinearRegressor struct {
	intercept  float64
	weights    []float64
	importance []float64
}

// Predict implements Regressor.
func (r *LinearRegressor) Predict(x []float64) float64 {
	out := r.intercept
	for j, w := range r.weights {
		out += w * x[j]
	}
	return out
}

// Importance implements Regressor. Scores are |coefficient| scaled by the
// feature's standard deviation, normalized to sum to 1.
func (r *LinearRegressor) Importance() []float64 {
	out := make([]float64, len(r.importance))
	copy(out, r.importance)
	return out
}

// Coefficients returns the intercept and per-feature weights.
func (r *LinearRegressor) Coefficients() (float64, []float64) {
	w := make([]float64, len(r.weights))
	copy(w, r.weights)
	return r.intercept, w
}

// independentColumns runs modified Gram-Schmidt over the centered columns and
// returns the indices that add a new direction.
func independentColumns(x [][]float64) []int {
	n := len(x)
	nFeatures := len(x[0])
	var basis [][]float64
	var kept []int

	for j := range nFeatures {
		v := make([]float64, n)
		var mean float64
		for i := range x {
			mean += x[i][j]
		}
		mean /= float64(n)
		for i := range x {
			v[i] = x[i][j] - mean
		}
		norm0 := l2(v)
		if norm0 == 0 {
			continue
		}
		for _, q := range basis {
			d := dot(v, q)
			for i := range v {
				v[i] -= d * q[i]
			}
		}
		norm := l2(v)
		if norm/norm0 < collinearTolerance {
			continue
		}
		for i := range v {
			v[i] /= norm
		}
		basis = append(basis, v)
		kept = append(kept, j)
	}
	return kept
}

func columnStd(x [][]float64) []float64 {
	n := float64(len(x))
	out := make([]float64, len(x[0]))
	for j := range out {
		var mean float64
		for i := range x {
			mean += x[i][j]
		}
		mean /= n
		var ss float64
		for i := range x {
			d := x[i][j] - mean
			ss += d * d
		}
		out[j] = math.Sqrt(ss / n)
	}
	return out
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func l2(v []float64) float64 {
	return math.Sqrt(dot(v, v))
}

func featureName(i int) string {
	if i < domain.FeatureCount {
		return domain.FeatureNames[i]
	}
	return fmt.Sprintf("f%d", i)
}
