// Package beta computes market-sensitivity metrics (beta, Jensen's alpha, R²)
// of portfolio returns against market-proxy return series via OLS regression.
package beta

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/meridianquant/riskdesk/internal/domain"
	"github.com/meridianquant/riskdesk/internal/valuation"
	"github.com/meridianquant/riskdesk/pkg/formulas"
)

// MinSamples is the minimum number of aligned observations a regression needs.
const MinSamples = 10

// Market regime classification thresholds on the raw mean of market returns.
const regimeThreshold = 0.05

// Default market proxies for multi-market analysis.
const (
	PrimaryMarketSymbol   = "BTC"
	SecondaryMarketSymbol = "ETH"
)

// MarketRegime classifies the market-proxy trend over the analysis window.
type MarketRegime string

const (
	RegimeBull     MarketRegime = "BULL"
	RegimeBear     MarketRegime = "BEAR"
	RegimeSideways MarketRegime = "SIDEWAYS"
)

// Result is a single-market OLS regression outcome.
type Result struct {
	Beta             float64          `json:"beta"`
	Alpha            float64          `json:"alpha"`
	RSquared         float64          `json:"rSquared"`
	Correlation      float64          `json:"correlation"`
	MarketSymbol     string           `json:"marketSymbol"`
	SampleSize       int              `json:"sampleSize"`
	PortfolioReturns []float64        `json:"portfolioReturns"`
	MarketReturns    []float64        `json:"marketReturns"`
	Period           domain.DateRange `json:"period"`
}

// MultiMarketResult regresses the portfolio against the primary and, when
// available, secondary market proxies and decomposes total risk.
type MultiMarketResult struct {
	BTCBeta           float64      `json:"btcBeta"`
	ETHBeta           *float64     `json:"ethBeta,omitempty"`
	MarketRegime      MarketRegime `json:"marketRegime"`
	SystematicRisk    float64      `json:"systematicRisk"`
	IdiosyncraticRisk float64      `json:"idiosyncraticRisk"`
}

// RollingPoint is one observation of a rolling beta series.
type RollingPoint struct {
	Date     time.Time `json:"date"`
	Beta     float64   `json:"beta"`
	RSquared float64   `json:"rSquared"`
}

// Service computes beta analyses.
type Service struct {
	valuation *valuation.Service
	returns   domain.ReturnSeriesProvider
	log       zerolog.Logger
}

// NewService creates a new beta calculation service.
func NewService(valuation *valuation.Service, returns domain.ReturnSeriesProvider, log zerolog.Logger) *Service {
	return &Service{
		valuation: valuation,
		returns:   returns,
		log:       log.With().Str("service", "beta").Logger(),
	}
}

// Calculate regresses portfolio returns against a market-proxy return series
// over the last `days` days. Fails with ErrInsufficientData below MinSamples
// aligned observations; a zero-variance market yields beta 0.
func (s *Service) Calculate(portfolioID string, days int, marketSymbol string) (*Result, error) {
	portfolioSeries, marketSeries, period, err := s.alignedSeries(portfolioID, days, marketSymbol)
	if err != nil {
		return nil, err
	}

	if len(portfolioSeries) < MinSamples {
		return nil, fmt.Errorf("need %d aligned samples for %s vs %s, have %d: %w",
			MinSamples, portfolioID, marketSymbol, len(portfolioSeries), domain.ErrInsufficientData)
	}

	result := regress(marketSeries, portfolioSeries)
	result.MarketSymbol = marketSymbol
	result.SampleSize = len(portfolioSeries)
	result.PortfolioReturns = portfolioSeries
	result.MarketReturns = marketSeries
	result.Period = period

	s.log.Debug().
		Str("portfolio_id", portfolioID).
		Str("market", marketSymbol).
		Float64("beta", result.Beta).
		Float64("r_squared", result.RSquared).
		Msg("Calculated beta")

	return result, nil
}

// CalculateMultiMarket regresses against the primary proxy, optionally the
// secondary one, classifies the market regime and decomposes portfolio risk
// into systematic and idiosyncratic components.
func (s *Service) CalculateMultiMarket(portfolioID string, days int) (*MultiMarketResult, error) {
	primary, err := s.Calculate(portfolioID, days, PrimaryMarketSymbol)
	if err != nil {
		return nil, err
	}

	result := &MultiMarketResult{
		BTCBeta:      primary.Beta,
		MarketRegime: classifyRegime(primary.MarketReturns),
	}

	// Secondary proxy is best-effort; thin history degrades to absent.
	if secondary, err := s.Calculate(portfolioID, days, SecondaryMarketSymbol); err == nil {
		ethBeta := secondary.Beta
		result.ETHBeta = &ethBeta
	} else {
		s.log.Debug().Err(err).Msg("Skipping secondary market beta")
	}

	// Both components are on the raw percentage scale of the return series.
	portfolioVariance := formulas.Variance(primary.PortfolioReturns)
	result.SystematicRisk = primary.RSquared * portfolioVariance * 100
	result.IdiosyncraticRisk = (1 - primary.RSquared) * portfolioVariance * 100

	return result, nil
}

// CalculateRolling recomputes the regression over every windowDays-length
// sliding window across the aligned series, one point per window end-date.
func (s *Service) CalculateRolling(portfolioID string, totalDays, windowDays int, marketSymbol string) ([]RollingPoint, error) {
	if windowDays < MinSamples {
		return nil, fmt.Errorf("rolling window must be at least %d: %w", MinSamples, domain.ErrInsufficientData)
	}

	portfolioPoints, _, err := s.valuation.PortfolioReturns(portfolioID, totalDays)
	if err != nil {
		return nil, err
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -totalDays)
	marketPoints, err := s.returns.GetDailyReturns(marketSymbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch returns for %s: %w", marketSymbol, err)
	}

	length := len(portfolioPoints)
	if len(marketPoints) < length {
		length = len(marketPoints)
	}
	if length < windowDays {
		return nil, fmt.Errorf("need %d aligned samples, have %d: %w", windowDays, length, domain.ErrInsufficientData)
	}

	alignedPortfolio := portfolioPoints[len(portfolioPoints)-length:]
	alignedMarket := marketPoints[len(marketPoints)-length:]
	portfolioSeries := domain.Returns(alignedPortfolio)
	marketSeries := domain.Returns(alignedMarket)

	rolling := make([]RollingPoint, 0, length-windowDays+1)
	for end := windowDays; end <= length; end++ {
		start := end - windowDays
		window := regress(marketSeries[start:end], portfolioSeries[start:end])
		rolling = append(rolling, RollingPoint{
			Date:     alignedPortfolio[end-1].Date,
			Beta:     window.Beta,
			RSquared: window.RSquared,
		})
	}

	return rolling, nil
}

func (s *Service) alignedSeries(portfolioID string, days int, marketSymbol string) ([]float64, []float64, domain.DateRange, error) {
	portfolioPoints, _, err := s.valuation.PortfolioReturns(portfolioID, days)
	if err != nil {
		return nil, nil, domain.DateRange{}, err
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)
	marketPoints, err := s.returns.GetDailyReturns(marketSymbol, from, to)
	if err != nil {
		return nil, nil, domain.DateRange{}, fmt.Errorf("failed to fetch returns for %s: %w", marketSymbol, err)
	}

	length := len(portfolioPoints)
	if len(marketPoints) < length {
		length = len(marketPoints)
	}

	portfolioSeries := domain.Returns(portfolioPoints[len(portfolioPoints)-length:])
	marketSeries := domain.Returns(marketPoints[len(marketPoints)-length:])

	return portfolioSeries, marketSeries, domain.DateRange{From: from, To: to}, nil
}

// regress runs the ordinary least squares regression of portfolio on market
// returns. Zero market variance yields beta 0; zero deviation on either side
// yields correlation 0.
func regress(market, portfolio []float64) *Result {
	covariance := formulas.Covariance(market, portfolio)
	marketVariance := formulas.Variance(market)

	beta := 0.0
	if marketVariance != 0 {
		beta = covariance / marketVariance
	}

	alpha := formulas.Mean(portfolio) - beta*formulas.Mean(market)

	correlation := 0.0
	stdMarket := formulas.StdDev(market)
	stdPortfolio := formulas.StdDev(portfolio)
	if stdMarket != 0 && stdPortfolio != 0 {
		correlation = covariance / (stdMarket * stdPortfolio)
	}

	return &Result{
		Beta:        beta,
		Alpha:       alpha,
		Correlation: correlation,
		RSquared:    correlation * correlation,
	}
}

// classifyRegime labels the market trend from the raw mean of its returns.
// Thresholds are absolute, not annualized.
func classifyRegime(marketReturns []float64) MarketRegime {
	mean := formulas.Mean(marketReturns)
	switch {
	case mean > regimeThreshold:
		return RegimeBull
	case mean < -regimeThreshold:
		return RegimeBear
	default:
		return RegimeSideways
	}
}
