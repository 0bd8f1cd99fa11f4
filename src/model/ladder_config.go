package model

import (
	"database/sql/driver"
	"encoding/json"
)

type LadderConfig struct {
	BaseBudget     float64   `json:"baseBudget"`
	DcaBudgets     []float64 `json:"dcaBudgets"`
	DcaPercentages []float64 `json:"dcaPercentages"`

	ProfitRatio       float64 `json:"profitRatio"`
	MinProfit         float64 `json:"minProfit"`
	MinProfitAfterDca float64 `json:"minProfitAfterDca"`

	// buffer between a trigger price and its limit price
	StopPriceLimitPriceDistance float64 `json:"stopPriceLimitPriceDistance"`
	// minimum repricing step before cancel-and-replace
	StopPricesDistance float64 `json:"stopPricesDistance"`
	// per-pending-attempt budget growth
	IncreaseVolParam float64 `json:"increaseVolParam"`

	LongNumPos  int `json:"longNumPos"`
	ShortNumPos int `json:"shortNumPos"`

	MaxEntryBudgetDiffAllow float64 `json:"maxEntryBudgetDiffAllow"`
	// minimum notional to count an exposure as an active position
	MinBudget float64 `json:"minBudget"`
	// exchange minimum order notional
	MinNotional float64 `json:"minNotional"`

	// account value display, refreshed every tick
	Usd float64 `json:"usd"`
}

func (c *LadderConfig) Scan(src interface{}) error {
	return json.Unmarshal(src.([]byte), &c)
}

func (c LadderConfig) Value() (driver.Value, error) {
	jsonV, err := json.Marshal(c)
	return string(jsonV), err
}

// DcaBudget returns the budget for the given rung, repeating the last
// configured value for deeper rungs.
func (c LadderConfig) DcaBudget(rung int) float64 {
	if rung < len(c.DcaBudgets) {
		return c.DcaBudgets[rung]
	}

	return c.DcaBudgets[len(c.DcaBudgets)-1]
}

// DcaPercentage returns the offset-from-price for the given rung, repeating
// the last configured value for deeper rungs.
func (c LadderConfig) DcaPercentage(rung int) float64 {
	if rung < len(c.DcaPercentages) {
		return c.DcaPercentages[rung]
	}

	return c.DcaPercentages[len(c.DcaPercentages)-1]
}

func DefaultLadderConfig() LadderConfig {
	return LadderConfig{
		BaseBudget:                  7.00,
		DcaBudgets:                  []float64{7.00, 7.00, 7.00},
		DcaPercentages:              []float64{0.05, 0.05, 0.05},
		ProfitRatio:                 0.0075,
		MinProfit:                   0.05,
		MinProfitAfterDca:           0.05,
		StopPriceLimitPriceDistance: 0.01,
		StopPricesDistance:          0.01,
		IncreaseVolParam:            0.50,
		LongNumPos:                  2,
		ShortNumPos:                 2,
		MaxEntryBudgetDiffAllow:     5.00,
		MinBudget:                   6.00,
		MinNotional:                 6.00,
	}
}
