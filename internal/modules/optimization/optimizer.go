// Package optimization provides mean-variance portfolio optimization used to
// derive target weights for the rebalancing engine.
package optimization

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// Supported strategies.
const (
	StrategyMaxSharpe     = "max_sharpe"
	StrategyMinVolatility = "min_volatility"
)

const penaltyWeight = 1000.0

// Optimizer solves the mean-variance problem with box bounds and a
// sum-to-one penalty.
//
// Formulation:
//   - max_sharpe:     maximize μ'w / sqrt(w'Σw), risk-free rate 0
//   - min_volatility: minimize w'Σw
//
// subject to Σw = 1 and lower_i <= w_i <= upper_i.
type Optimizer struct {
	log zerolog.Logger
}

// NewOptimizer creates a new mean-variance optimizer.
func NewOptimizer(log zerolog.Logger) *Optimizer {
	return &Optimizer{log: log.With().Str("service", "optimization").Logger()}
}

// Result is the optimized allocation plus the statistics at the solution.
type Result struct {
	Weights            map[string]float64 `json:"weights"`
	ExpectedReturn     float64            `json:"expectedReturn"`
	ExpectedVolatility float64            `json:"expectedVolatility"`
	SharpeRatio        float64            `json:"sharpeRatio"`
}

// Optimize solves for the given strategy. Symbols order the expected-return
// vector and covariance matrix; min/max weight maps are optional per-symbol
// bounds defaulting to [0, 1].
func (o *Optimizer) Optimize(
	expectedReturns map[string]float64,
	covMatrix [][]float64,
	symbols []string,
	minWeights map[string]float64,
	maxWeights map[string]float64,
	strategy string,
) (*Result, error) {
	n := len(symbols)
	if n == 0 {
		return nil, fmt.Errorf("no symbols provided")
	}
	if len(covMatrix) != n {
		return nil, fmt.Errorf("covariance matrix size %d does not match symbol count %d", len(covMatrix), n)
	}
	for i := range covMatrix {
		if len(covMatrix[i]) != n {
			return nil, fmt.Errorf("covariance matrix row %d has size %d, expected %d", i, len(covMatrix[i]), n)
		}
	}

	mu := make([]float64, n)
	for i, symbol := range symbols {
		ret, ok := expectedReturns[symbol]
		if !ok {
			return nil, fmt.Errorf("missing expected return for %s", symbol)
		}
		mu[i] = ret
	}

	sigma := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			sigma.Set(i, j, covMatrix[i][j])
		}
	}

	lower, upper := o.bounds(symbols, minWeights, maxWeights)

	var objective func(x []float64) float64
	switch strategy {
	case StrategyMinVolatility:
		objective = func(x []float64) float64 {
			w := project(x, lower, upper)
			return variance(w, sigma) + sumPenalty(w)
		}
	case StrategyMaxSharpe:
		objective = func(x []float64) float64 {
			w := project(x, lower, upper)
			vol := math.Sqrt(math.Max(variance(w, sigma), 1e-10))
			return -dot(mu, w)/vol + sumPenalty(w)
		}
	default:
		return nil, fmt.Errorf("unknown strategy: %s", strategy)
	}

	problem := optimize.Problem{Func: objective}

	initial := make([]float64, n)
	for i := range initial {
		initial[i] = 1.0 / float64(n)
	}

	// NelderMead is the fallback when BFGS stalls on the penalty surface.
	result, err := optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.BFGS{})
	if err != nil {
		result, err = optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.NelderMead{})
		if err != nil {
			return nil, fmt.Errorf("optimization failed: %w", err)
		}
	}

	final := project(result.X, lower, upper)
	normalize(final)

	weights := make(map[string]float64, n)
	for i, symbol := range symbols {
		weights[symbol] = final[i]
	}

	ret := dot(mu, final)
	vol := math.Sqrt(math.Max(variance(final, sigma), 0))
	sharpe := 0.0
	if vol > 0 {
		sharpe = ret / vol
	}

	o.log.Debug().
		Str("strategy", strategy).
		Int("symbols", n).
		Float64("expected_return", ret).
		Float64("expected_volatility", vol).
		Msg("Optimization completed")

	return &Result{
		Weights:            weights,
		ExpectedReturn:     ret,
		ExpectedVolatility: vol,
		SharpeRatio:        sharpe,
	}, nil
}

func (o *Optimizer) bounds(symbols []string, minWeights, maxWeights map[string]float64) ([]float64, []float64) {
	lower := make([]float64, len(symbols))
	upper := make([]float64, len(symbols))
	for i, symbol := range symbols {
		upper[i] = 1.0
		if v, ok := minWeights[symbol]; ok {
			lower[i] = v
		}
		if v, ok := maxWeights[symbol]; ok {
			upper[i] = v
		}
	}
	return lower, upper
}

func project(x, lower, upper []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = math.Min(math.Max(x[i], lower[i]), upper[i])
	}
	return out
}

func variance(w []float64, sigma *mat.Dense) float64 {
	total := 0.0
	for i := range w {
		for j := range w {
			total += w[i] * w[j] * sigma.At(i, j)
		}
	}
	return total
}

func dot(a, b []float64) float64 {
	total := 0.0
	for i := range a {
		total += a[i] * b[i]
	}
	return total
}

func sumPenalty(w []float64) float64 {
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	return penaltyWeight * (sum - 1) * (sum - 1)
}

func normalize(w []float64) {
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	if sum <= 0 {
		return
	}
	for i := range w {
		w[i] = math.Max(0, w[i]/sum)
	}
}
