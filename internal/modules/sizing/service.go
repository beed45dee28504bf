// Package sizing recommends position quantities from historical trade
// outcomes and volatility measures.
package sizing

import (
	"fmt"
	"math"
	"time"

	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"

	"github.com/meridianquant/riskdesk/internal/domain"
	"github.com/meridianquant/riskdesk/pkg/formulas"
)

// Sizing defaults and floors.
const (
	DefaultFractionalKelly = 0.25
	MaxKellyFraction       = 0.5
	MinPositionSize        = 0.001
	DefaultRiskPercent     = 2.0
	DefaultATRPeriod       = 14

	// atrStopMultiple sets the stop distance of the volatility-adjusted
	// method.
	atrStopMultiple = 2.0

	// minTradesForKelly is the trade-history depth the recommender needs
	// before trusting the Kelly estimate.
	minTradesForKelly = 20
)

// KellyInput parameterizes a Kelly-criterion size. FractionalKelly defaults
// to quarter-Kelly when 0.
type KellyInput struct {
	WinRate         float64 `json:"winRate"`
	AvgWin          float64 `json:"avgWin"`
	AvgLoss         float64 `json:"avgLoss"`
	Balance         float64 `json:"balance"`
	Price           float64 `json:"price"`
	FractionalKelly float64 `json:"fractionalKelly"`
}

// FixedFractionalInput parameterizes a fixed-fractional size. A zero
// StopLossPrice means no stop is set and the full price is at risk.
type FixedFractionalInput struct {
	Balance       float64 `json:"balance"`
	RiskPercent   float64 `json:"riskPercent"`
	Price         float64 `json:"price"`
	StopLossPrice float64 `json:"stopLossPrice"`
}

// VolatilityInput parameterizes a volatility-adjusted size.
type VolatilityInput struct {
	Balance           float64 `json:"balance"`
	Price             float64 `json:"price"`
	ATR               float64 `json:"atr"`
	TargetRiskPercent float64 `json:"targetRiskPercent"`
}

// HistoricalStats summarizes a user's closed trades.
type HistoricalStats struct {
	WinRate     float64 `json:"winRate"`
	AvgWin      float64 `json:"avgWin"`
	AvgLoss     float64 `json:"avgLoss"`
	TotalTrades int     `json:"totalTrades"`
}

// Recommendation is the outcome of the method-selection logic.
type Recommendation struct {
	Quantity float64                `json:"quantity"`
	Method   string                 `json:"method"`
	Details  map[string]interface{} `json:"details"`
}

// RecommendRequest is the input of the recommender. ATR overrides the
// candle-derived estimate when set.
type RecommendRequest struct {
	UserID      string
	Symbol      string
	Balance     float64
	Price       float64
	RiskPercent float64
	Days        int
	ATR         *float64
}

// Service sizes positions.
type Service struct {
	trades  domain.TradeHistory
	candles domain.CandleProvider
	log     zerolog.Logger
}

// NewService creates a new position sizing service.
func NewService(trades domain.TradeHistory, candles domain.CandleProvider, log zerolog.Logger) *Service {
	return &Service{
		trades:  trades,
		candles: candles,
		log:     log.With().Str("service", "sizing").Logger(),
	}
}

// CalculateKelly sizes a position by the Kelly criterion, scaled by the
// fractional multiplier and clamped to half-Kelly. Invalid inputs yield 0
// with a warning, never an error.
func (s *Service) CalculateKelly(in KellyInput) float64 {
	if in.WinRate <= 0 || in.WinRate >= 1 || in.AvgWin <= 0 || in.AvgLoss <= 0 || in.Price <= 0 {
		s.log.Warn().
			Float64("win_rate", in.WinRate).
			Float64("avg_win", in.AvgWin).
			Float64("avg_loss", in.AvgLoss).
			Msg("Invalid Kelly inputs, sizing 0")
		return 0
	}

	fractional := in.FractionalKelly
	if fractional <= 0 {
		fractional = DefaultFractionalKelly
	}

	kelly := (in.WinRate*in.AvgWin - (1-in.WinRate)*in.AvgLoss) / in.AvgWin
	kelly = formulas.Clamp(kelly*fractional, 0, MaxKellyFraction)

	return floorQuantity(in.Balance * kelly / in.Price)
}

// CalculateFixedFractional risks a fixed percentage of the balance per trade.
// With a stop price the risk amount is spread over the stop distance,
// otherwise over the full price.
func (s *Service) CalculateFixedFractional(in FixedFractionalInput) float64 {
	if in.Balance <= 0 || in.Price <= 0 {
		s.log.Warn().Float64("balance", in.Balance).Float64("price", in.Price).Msg("Invalid fixed-fractional inputs, sizing 0")
		return 0
	}

	riskPercent := in.RiskPercent
	if riskPercent <= 0 {
		riskPercent = DefaultRiskPercent
	}
	riskAmount := in.Balance * riskPercent / 100

	stopDistance := math.Abs(in.Price - in.StopLossPrice)
	if in.StopLossPrice <= 0 || stopDistance == 0 {
		return floorQuantity(riskAmount / in.Price)
	}
	return floorQuantity(riskAmount / stopDistance)
}

// CalculateVolatilityAdjusted sizes against a stop distance of 2x ATR,
// falling back to fixed-fractional when ATR is unusable.
func (s *Service) CalculateVolatilityAdjusted(in VolatilityInput) float64 {
	if in.ATR <= 0 {
		s.log.Warn().Float64("atr", in.ATR).Msg("Non-positive ATR, falling back to fixed-fractional sizing")
		return s.CalculateFixedFractional(FixedFractionalInput{
			Balance:     in.Balance,
			RiskPercent: in.TargetRiskPercent,
			Price:       in.Price,
		})
	}
	if in.Balance <= 0 || in.Price <= 0 {
		return 0
	}

	riskPercent := in.TargetRiskPercent
	if riskPercent <= 0 {
		riskPercent = DefaultRiskPercent
	}
	riskAmount := in.Balance * riskPercent / 100

	return floorQuantity(riskAmount / (atrStopMultiple * in.ATR))
}

// GetHistoricalStats aggregates the user's closed trades over the last
// `days` days. AvgLoss is reported as a positive magnitude.
func (s *Service) GetHistoricalStats(userID string, days int) (*HistoricalStats, error) {
	outcomes, err := s.trades.GetTradeOutcomes(userID, days)
	if err != nil {
		return nil, fmt.Errorf("failed to get trade outcomes for %s: %w", userID, err)
	}

	stats := &HistoricalStats{TotalTrades: len(outcomes)}
	if len(outcomes) == 0 {
		return stats, nil
	}

	wins, winSum, lossSum, losses := 0, 0.0, 0.0, 0
	for _, o := range outcomes {
		if o.PnL > 0 {
			wins++
			winSum += o.PnL
		} else if o.PnL < 0 {
			losses++
			lossSum += -o.PnL
		}
	}

	stats.WinRate = float64(wins) / float64(len(outcomes))
	if wins > 0 {
		stats.AvgWin = winSum / float64(wins)
	}
	if losses > 0 {
		stats.AvgLoss = lossSum / float64(losses)
	}
	return stats, nil
}

// ATRFromCandles estimates the current ATR of a symbol from its daily
// candles. Returns 0 when history is too thin.
func (s *Service) ATRFromCandles(symbol string, days, period int) (float64, error) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)

	candles, err := s.candles.GetDailyCandles(symbol, from, to)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch candles for %s: %w", symbol, err)
	}
	if len(candles) <= period {
		return 0, nil
	}

	high := make([]float64, len(candles))
	low := make([]float64, len(candles))
	closes := make([]float64, len(candles))
	for i, c := range candles {
		high[i] = c.High
		low[i] = c.Low
		closes[i] = c.Close
	}

	atr := talib.Atr(high, low, closes, period)
	return atr[len(atr)-1], nil
}

// Recommend picks the sizing method by priority: Kelly when enough trade
// history exists, then volatility-adjusted when an ATR is available, then
// fixed-fractional.
func (s *Service) Recommend(req RecommendRequest) (*Recommendation, error) {
	days := req.Days
	if days <= 0 {
		days = 90
	}

	stats, err := s.GetHistoricalStats(req.UserID, days)
	if err != nil {
		return nil, err
	}

	if stats.TotalTrades >= minTradesForKelly && stats.AvgWin > 0 && stats.AvgLoss > 0 {
		quantity := s.CalculateKelly(KellyInput{
			WinRate: stats.WinRate,
			AvgWin:  stats.AvgWin,
			AvgLoss: stats.AvgLoss,
			Balance: req.Balance,
			Price:   req.Price,
		})
		return &Recommendation{
			Quantity: quantity,
			Method:   "kelly",
			Details: map[string]interface{}{
				"winRate":     stats.WinRate,
				"avgWin":      stats.AvgWin,
				"avgLoss":     stats.AvgLoss,
				"totalTrades": stats.TotalTrades,
			},
		}, nil
	}

	atr, err := s.resolveATR(req, days)
	if err != nil {
		return nil, err
	}
	if atr > 0 {
		quantity := s.CalculateVolatilityAdjusted(VolatilityInput{
			Balance:           req.Balance,
			Price:             req.Price,
			ATR:               atr,
			TargetRiskPercent: req.RiskPercent,
		})
		return &Recommendation{
			Quantity: quantity,
			Method:   "volatility-adjusted",
			Details: map[string]interface{}{
				"atr":          atr,
				"stopDistance": atrStopMultiple * atr,
			},
		}, nil
	}

	quantity := s.CalculateFixedFractional(FixedFractionalInput{
		Balance:     req.Balance,
		RiskPercent: req.RiskPercent,
		Price:       req.Price,
	})
	riskPercent := req.RiskPercent
	if riskPercent <= 0 {
		riskPercent = DefaultRiskPercent
	}
	return &Recommendation{
		Quantity: quantity,
		Method:   "fixed-fractional",
		Details: map[string]interface{}{
			"riskPercent": riskPercent,
		},
	}, nil
}

func (s *Service) resolveATR(req RecommendRequest, days int) (float64, error) {
	if req.ATR != nil {
		return *req.ATR, nil
	}
	if req.Symbol == "" || s.candles == nil {
		return 0, nil
	}
	return s.ATRFromCandles(req.Symbol, days, DefaultATRPeriod)
}

func floorQuantity(quantity float64) float64 {
	if quantity < MinPositionSize {
		return MinPositionSize
	}
	return quantity
}
