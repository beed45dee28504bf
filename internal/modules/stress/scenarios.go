package stress

// DefaultShockKey is the fallback entry applied to symbols a scenario does
// not list explicitly.
const DefaultShockKey = "default"

// Scenario is a named market shock. PriceShocks maps symbol to a percentage
// price change; the DefaultShockKey entry covers unlisted symbols. The
// volume/spread/liquidity/correlation fields are informational and do not
// enter the value recompute.
type Scenario struct {
	Name             string             `json:"name"`
	Description      string             `json:"description"`
	PriceShocks      map[string]float64 `json:"priceShocks"`
	VolumeShock      float64            `json:"volumeShock,omitempty"`
	SpreadShock      float64            `json:"spreadShock,omitempty"`
	LiquidityShock   float64            `json:"liquidityShock,omitempty"`
	CorrelationShock float64            `json:"correlationShock,omitempty"`
}

// shockFor resolves the shock percentage for a symbol: the explicit entry
// first, then the default entry, then 0.
func (sc Scenario) shockFor(symbol string) float64 {
	if shock, ok := sc.PriceShocks[symbol]; ok {
		return shock
	}
	if shock, ok := sc.PriceShocks[DefaultShockKey]; ok {
		return shock
	}
	return 0
}

// historicalScenarios are the predefined shock tables modeled on past crypto
// market events.
var historicalScenarios = []Scenario{
	{
		Name:        "COVID-19 Crash (March 2020)",
		Description: "Pandemic-driven liquidity crisis: all risk assets sold off within days",
		PriceShocks: map[string]float64{
			"BTC":          -50,
			"ETH":          -60,
			DefaultShockKey: -70,
		},
		VolumeShock:    300,
		LiquidityShock: -40,
	},
	{
		Name:        "Crypto Winter (2018)",
		Description: "Prolonged bear market following the 2017 bubble",
		PriceShocks: map[string]float64{
			"BTC":          -84,
			"ETH":          -94,
			DefaultShockKey: -95,
		},
		VolumeShock:    -60,
		LiquidityShock: -50,
	},
	{
		Name:        "China Mining Ban (May 2021)",
		Description: "Regulatory crackdown forcing hashrate migration",
		PriceShocks: map[string]float64{
			"BTC":          -45,
			"ETH":          -55,
			DefaultShockKey: -60,
		},
		VolumeShock: 150,
	},
	{
		Name:        "Terra/LUNA Collapse (May 2022)",
		Description: "Algorithmic stablecoin death spiral with broad contagion",
		PriceShocks: map[string]float64{
			"BTC":          -30,
			"ETH":          -40,
			"LUNA":         -99,
			"UST":          -95,
			DefaultShockKey: -50,
		},
		VolumeShock:      200,
		CorrelationShock: 30,
	},
	{
		Name:        "Celsius/3AC Contagion (June 2022)",
		Description: "Lender and fund insolvencies triggering forced deleveraging",
		PriceShocks: map[string]float64{
			"BTC":          -35,
			"ETH":          -45,
			DefaultShockKey: -55,
		},
		LiquidityShock: -35,
	},
	{
		Name:        "FTX Collapse (November 2022)",
		Description: "Major exchange insolvency and counterparty panic",
		PriceShocks: map[string]float64{
			"BTC":          -25,
			"ETH":          -30,
			"SOL":          -60,
			"FTT":          -90,
			DefaultShockKey: -40,
		},
		VolumeShock:    250,
		SpreadShock:    80,
		LiquidityShock: -45,
	},
	{
		Name:        "Flash Crash",
		Description: "Cascading liquidations in thin order books, partial same-day recovery",
		PriceShocks: map[string]float64{
			"BTC":          -20,
			"ETH":          -25,
			DefaultShockKey: -30,
		},
		VolumeShock: 400,
		SpreadShock: 150,
	},
	{
		Name:        "Regulatory Shock",
		Description: "Coordinated restrictions in major markets",
		PriceShocks: map[string]float64{
			"BTC":          -40,
			"ETH":          -45,
			DefaultShockKey: -55,
		},
		VolumeShock:    100,
		LiquidityShock: -30,
	},
}
